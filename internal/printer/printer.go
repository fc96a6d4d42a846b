// Package printer composes the textual IR: a subset of LLVM IR >= 15 with
// opaque pointers, covering named struct declarations, globals, function
// declarations/definitions, and one instruction per line.
//
// A stateful struct wraps a strings.Builder with one print* method per IR
// shape, composing the single textual form by straight concatenation; no
// intermediate print tree is needed.
package printer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rustlite/rlc/internal/ir"
	"github.com/rustlite/rlc/internal/irtype"
)

// Printer renders one ir.Module as text.
type Printer struct {
	buf    strings.Builder
	indent int
}

// New creates a ready-to-use printer.
func New() *Printer { return &Printer{} }

// Print renders m in full and returns the resulting text.
func Print(m *ir.Module) string {
	p := New()
	return p.PrintModule(m)
}

// PrintModule renders an entire module: struct type declarations, globals,
// then functions, each group separated by a blank line when non-empty,
// mirroring a typical `llc`/`opt`-emitted `.ll` file's layout.
func (p *Printer) PrintModule(m *ir.Module) string {
	p.buf.Reset()

	for _, st := range m.Structs {
		p.printStruct(st)
	}
	if len(m.Structs) > 0 {
		p.buf.WriteByte('\n')
	}

	for _, g := range m.Globals {
		p.printGlobal(g)
	}
	if len(m.Globals) > 0 {
		p.buf.WriteByte('\n')
	}

	for i, f := range m.Functions {
		p.printFunction(f)
		if i < len(m.Functions)-1 {
			p.buf.WriteByte('\n')
		}
	}

	return p.buf.String()
}

func (p *Printer) write(s string)            { p.buf.WriteString(s) }
func (p *Printer) writef(f string, a ...any) { fmt.Fprintf(&p.buf, f, a...) }

func (p *Printer) printStruct(st *irtype.StructType) {
	fields := make([]string, len(st.Fields))
	for i, f := range st.Fields {
		fields[i] = f.String()
	}
	p.writef("%%struct.%s = type { %s }\n", st.Name, strings.Join(fields, ", "))
}

func (p *Printer) printGlobal(g *ir.GlobalVariable) {
	kind := "global"
	if g.IsConstant {
		kind = "constant"
	}
	init := "zeroinitializer"
	if g.Initializer != nil {
		init = p.valueText(g.Initializer)
	}
	p.writef("@%s = %s %s %s\n", g.Name, kind, g.ElemType.String(), init)
}

func (p *Printer) printFunction(f *ir.Function) {
	params := make([]string, len(f.Sig.Params))
	for i, pt := range f.Sig.Params {
		if f.IsDeclaration || i >= len(f.Params) {
			params[i] = pt.String()
		} else {
			params[i] = fmt.Sprintf("%s %%%s", pt.String(), f.Params[i].Name)
		}
	}
	sig := fmt.Sprintf("%s @%s(%s)", f.Sig.Ret.String(), f.Name, strings.Join(params, ", "))

	if f.IsDeclaration {
		p.writef("declare %s\n", sig)
		return
	}

	p.writef("define %s {\n", sig)
	for _, b := range f.Blocks {
		p.printBlock(b)
	}
	p.write("}\n")
}

func (p *Printer) printBlock(b *ir.BasicBlock) {
	p.writef("%s:\n", blockLabel(b))
	for _, instr := range b.Instrs {
		p.write("  ")
		p.write(p.instrText(instr))
		p.write("\n")
	}
}

// blockLabel returns b's label text unchanged: blocks are already named
// like "if.then.0" by internal/irbuild and need no escaping, so this is the
// identity, kept as the single place where labels are formatted.
func blockLabel(b *ir.BasicBlock) string { return b.Name }

// instrText renders one instruction's line, without the destination name
// prefix for void instructions and without the leading indent (the caller
// adds that).
func (p *Printer) instrText(i *ir.Instruction) string {
	switch i.Opcode {
	case ir.OpAdd:
		return p.binText(i, "add")
	case ir.OpSub:
		return p.binText(i, "sub")
	case ir.OpMul:
		return p.binText(i, "mul")
	case ir.OpSDiv:
		return p.binText(i, "sdiv")
	case ir.OpUDiv:
		return p.binText(i, "udiv")
	case ir.OpSRem:
		return p.binText(i, "srem")
	case ir.OpURem:
		return p.binText(i, "urem")
	case ir.OpAnd:
		return p.binText(i, "and")
	case ir.OpOr:
		return p.binText(i, "or")
	case ir.OpXor:
		return p.binText(i, "xor")
	case ir.OpShl:
		return p.binText(i, "shl")
	case ir.OpLShr:
		return p.binText(i, "lshr")
	case ir.OpAShr:
		return p.binText(i, "ashr")
	case ir.OpICmp:
		return fmt.Sprintf("%%%s = icmp %s %s %s, %s",
			i.Name, predText(i.Predicate), i.Operands[0].Type().String(),
			p.valueText(i.Operands[0]), p.valueText(i.Operands[1]))
	case ir.OpAlloca:
		return fmt.Sprintf("%%%s = alloca %s", i.Name, i.SourceType.String())
	case ir.OpLoad:
		return fmt.Sprintf("%%%s = load %s, ptr %s", i.Name, i.SourceType.String(), p.valueText(i.Operands[0]))
	case ir.OpStore:
		return fmt.Sprintf("store %s %s, ptr %s",
			i.Operands[0].Type().String(), p.valueText(i.Operands[0]), p.valueText(i.Operands[1]))
	case ir.OpGEP:
		parts := make([]string, 0, len(i.Operands))
		parts = append(parts, fmt.Sprintf("ptr %s", p.valueText(i.Operands[0])))
		for _, idx := range i.Operands[1:] {
			parts = append(parts, fmt.Sprintf("%s %s", idx.Type().String(), p.valueText(idx)))
		}
		return fmt.Sprintf("%%%s = getelementptr %s, %s", i.Name, i.SourceType.String(), strings.Join(parts, ", "))
	case ir.OpPtrToInt:
		return fmt.Sprintf("%%%s = ptrtoint ptr %s to %s", i.Name, p.valueText(i.Operands[0]), i.Typ.String())
	case ir.OpTrunc:
		return fmt.Sprintf("%%%s = trunc %s %s to %s",
			i.Name, i.Operands[0].Type().String(), p.valueText(i.Operands[0]), i.Typ.String())
	case ir.OpZExt:
		return fmt.Sprintf("%%%s = zext %s %s to %s",
			i.Name, i.Operands[0].Type().String(), p.valueText(i.Operands[0]), i.Typ.String())
	case ir.OpSExt:
		return fmt.Sprintf("%%%s = sext %s %s to %s",
			i.Name, i.Operands[0].Type().String(), p.valueText(i.Operands[0]), i.Typ.String())
	case ir.OpCall:
		args := make([]string, len(i.Operands))
		for idx, a := range i.Operands {
			args[idx] = fmt.Sprintf("%s %s", a.Type().String(), p.valueText(a))
		}
		call := fmt.Sprintf("call %s @%s(%s)", i.Typ.String(), i.Callee, strings.Join(args, ", "))
		if i.Name == "" {
			return call
		}
		return fmt.Sprintf("%%%s = %s", i.Name, call)
	case ir.OpBr:
		return fmt.Sprintf("br label %%%s", blockLabel(i.Target))
	case ir.OpCondBr:
		return fmt.Sprintf("br i1 %s, label %%%s, label %%%s",
			p.valueText(i.Operands[0]), blockLabel(i.TrueTarget), blockLabel(i.FalseTarget))
	case ir.OpRet:
		return fmt.Sprintf("ret %s %s", i.Operands[0].Type().String(), p.valueText(i.Operands[0]))
	case ir.OpRetVoid:
		return "ret void"
	case ir.OpPhi:
		incs := make([]string, len(i.Operands))
		for idx, v := range i.Operands {
			incs[idx] = fmt.Sprintf("[ %s, %%%s ]", p.valueText(v), blockLabel(i.IncomingBlocks[idx]))
		}
		return fmt.Sprintf("%%%s = phi %s %s", i.Name, i.Typ.String(), strings.Join(incs, ", "))
	case ir.OpUnreachable:
		return "unreachable"
	default:
		return fmt.Sprintf("; unknown opcode %d", i.Opcode)
	}
}

func (p *Printer) binText(i *ir.Instruction, mnemonic string) string {
	return fmt.Sprintf("%%%s = %s %s %s, %s",
		i.Name, mnemonic, i.Typ.String(), p.valueText(i.Operands[0]), p.valueText(i.Operands[1]))
}

func predText(pred ir.ICmpPredicate) string {
	switch pred {
	case ir.PredEQ:
		return "eq"
	case ir.PredNE:
		return "ne"
	case ir.PredSGT:
		return "sgt"
	case ir.PredSGE:
		return "sge"
	case ir.PredSLT:
		return "slt"
	case ir.PredSLE:
		return "sle"
	case ir.PredUGT:
		return "ugt"
	case ir.PredUGE:
		return "uge"
	case ir.PredULT:
		return "ult"
	case ir.PredULE:
		return "ule"
	default:
		return "eq"
	}
}

// valueText renders an operand's bare literal/reference text (no type
// prefix — callers that need "type value" pairs build that themselves,
// since some instructions share one operand's type across the whole line
// and others pair each operand with its own type).
func (p *Printer) valueText(v ir.Value) string {
	switch val := v.(type) {
	case *ir.ConstantInt:
		return strconv.FormatUint(val.Val, 10)
	case *ir.ConstantAggregateZero:
		return "zeroinitializer"
	case *ir.ConstantPointerNull:
		return "null"
	case *ir.GlobalVariable:
		return "@" + val.Name
	case *ir.Param:
		return "%" + val.Name
	case *ir.Instruction:
		return "%" + val.Name
	default:
		return "<?>"
	}
}

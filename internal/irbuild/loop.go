package irbuild

import (
	"github.com/rustlite/rlc/internal/ir"
	"github.com/rustlite/rlc/internal/irtype"
)

// LoopContext tracks one enclosing `loop`/`while` so the lowerer can resolve
// `break`/`continue` without threading the target blocks through every
// recursive call; the builder keeps a stack of these, innermost last.
//
// CondBlock is present only for `while` (the block re-evaluating the
// condition each iteration); a `continue` inside a `loop` has no condition
// to return to and instead re-enters BodyBlock directly. ContinueTarget
// picks between the two so the lowerer never has to ask which loop kind it
// is in.
type LoopContext struct {
	CondBlock  *ir.BasicBlock // nil for `loop`
	BodyBlock  *ir.BasicBlock
	AfterBlock *ir.BasicBlock // `break` target

	// BreakType is set to the type of the first value-carrying `break`
	// lowered in this loop; a later break of a different type is a
	// semantic error caught before lowering ever runs, so it is only
	// recorded here for the phi the loop epilogue builds from
	// BreakValues/BreakPreds. Remains nil for a loop that never breaks
	// with a value (every `while`, and any `loop` with only bare
	// `break`s).
	BreakType irtype.Type

	// BreakValues/BreakPreds accumulate one entry per `break <expr>`
	// reached during lowering of the loop body, in the order encountered.
	// Once the loop is fully lowered, the caller builds a phi in
	// AfterBlock from these pairs. If both are empty the loop yields no
	// value: the caller marks AfterBlock unreachable when the loop's type
	// is Never, and otherwise continues there without a phi.
	BreakValues []ir.Value
	BreakPreds  []*ir.BasicBlock
}

// ContinueTarget returns the block a `continue` inside this loop branches
// to: CondBlock for `while`, BodyBlock for `loop`.
func (lc *LoopContext) ContinueTarget() *ir.BasicBlock {
	if lc.CondBlock != nil {
		return lc.CondBlock
	}
	return lc.BodyBlock
}

// RecordBreak appends one break from pred carrying val (nil for a bare
// `break` with no value, which contributes nothing to the epilogue phi).
func (lc *LoopContext) RecordBreak(val ir.Value, pred *ir.BasicBlock) {
	if val == nil {
		return
	}
	if lc.BreakType == nil {
		lc.BreakType = val.Type()
	}
	lc.BreakValues = append(lc.BreakValues, val)
	lc.BreakPreds = append(lc.BreakPreds, pred)
}

// PushWhileLoop opens a loop context for a `while` loop, whose `continue`
// always re-evaluates condBlock.
func (b *Builder) PushWhileLoop(condBlock, bodyBlock, afterBlock *ir.BasicBlock) *LoopContext {
	lc := &LoopContext{CondBlock: condBlock, BodyBlock: bodyBlock, AfterBlock: afterBlock}
	b.loops = append(b.loops, lc)
	return lc
}

// PushLoop opens a loop context for a bare `loop`, whose `continue`
// re-enters bodyBlock directly.
func (b *Builder) PushLoop(bodyBlock, afterBlock *ir.BasicBlock) *LoopContext {
	lc := &LoopContext{BodyBlock: bodyBlock, AfterBlock: afterBlock}
	b.loops = append(b.loops, lc)
	return lc
}

// PopLoop closes the innermost loop context. The caller must have already
// finished emitting the loop's after-block before popping, since
// CurrentLoop stops seeing it afterward.
func (b *Builder) PopLoop() {
	b.loops = b.loops[:len(b.loops)-1]
}

// CurrentLoop returns the innermost open loop context, or nil outside any
// loop (a bare `break`/`continue` there is a semantic error the type-check
// pass catches before lowering ever runs).
func (b *Builder) CurrentLoop() *LoopContext {
	if len(b.loops) == 0 {
		return nil
	}
	return b.loops[len(b.loops)-1]
}

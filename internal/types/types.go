// Package types implements the resolved-type sum carried on every
// expression and symbol, plus unification: a Type interface with an
// Equals/String contract and one concrete struct per type family
// (Primitive, Reference, Array, Named, Unit, Never, Unknown), including
// the three integer-placeholder scalars that exist only during inference.
package types

import "fmt"

// Type is the resolved-type sum type. Every concrete type below satisfies
// it; isType is an unexported marker so no type outside this package can
// implement Type.
type Type interface {
	String() string
	Equals(Type) bool
	isType()
}

// PrimitiveKind enumerates the primitive type names, including the three
// unification-only integer placeholders produced by unsuffixed integer
// literals.
type PrimitiveKind uint8

const (
	I32 PrimitiveKind = iota
	U32
	Isize
	Usize
	Bool
	Char
	Str

	// Placeholders: never survive past the integer-type confirmer.
	IntPlaceholder
	SignedIntPlaceholder
	UnsignedIntPlaceholder
)

func (k PrimitiveKind) String() string {
	switch k {
	case I32:
		return "i32"
	case U32:
		return "u32"
	case Isize:
		return "isize"
	case Usize:
		return "usize"
	case Bool:
		return "bool"
	case Char:
		return "char"
	case Str:
		return "str"
	case IntPlaceholder:
		return "int"
	case SignedIntPlaceholder:
		return "signed int"
	case UnsignedIntPlaceholder:
		return "unsigned int"
	default:
		return "?"
	}
}

// IsInteger reports whether k denotes a concrete integer type.
func (k PrimitiveKind) IsInteger() bool {
	switch k {
	case I32, U32, Isize, Usize:
		return true
	default:
		return false
	}
}

// IsSigned reports whether k is a signed concrete integer type.
func (k PrimitiveKind) IsSigned() bool {
	return k == I32 || k == Isize
}

// IsPlaceholder reports whether k is one of the three unification-only
// integer placeholders.
func (k PrimitiveKind) IsPlaceholder() bool {
	return k == IntPlaceholder || k == SignedIntPlaceholder || k == UnsignedIntPlaceholder
}

// Primitive is a scalar primitive type, or an integer-unification
// placeholder.
type Primitive struct {
	Kind PrimitiveKind
}

func (p *Primitive) isType()        {}
func (p *Primitive) String() string { return p.Kind.String() }
func (p *Primitive) Equals(other Type) bool {
	o, ok := other.(*Primitive)
	return ok && o.Kind == p.Kind
}

// Reference is &T or &mut T.
type Reference struct {
	Inner Type
	IsMut bool
}

func (r *Reference) isType() {}
func (r *Reference) String() string {
	if r.IsMut {
		return "&mut " + r.Inner.String()
	}
	return "&" + r.Inner.String()
}
func (r *Reference) Equals(other Type) bool {
	o, ok := other.(*Reference)
	return ok && o.IsMut == r.IsMut && o.Inner.Equals(r.Inner)
}

// Array is [T; N]. Length is -1 when still symbolic (not yet confirmed).
type Array struct {
	Element Type
	Length  int
}

func (a *Array) isType() {}
func (a *Array) String() string {
	if a.Length < 0 {
		return fmt.Sprintf("[%s; ?]", a.Element.String())
	}
	return fmt.Sprintf("[%s; %d]", a.Element.String(), a.Length)
}
func (a *Array) Equals(other Type) bool {
	o, ok := other.(*Array)
	return ok && o.Length == a.Length && o.Element.Equals(a.Element)
}

// NamedSymbol is the minimal surface Named needs from a symbol-table entry,
// satisfied by *scope.Symbol without this package importing scope (which
// would create an import cycle: scope needs Type for its symbol fields).
type NamedSymbol interface {
	SymbolName() string
}

// Named is a user-defined struct or enum type.
type Named struct {
	Name   string
	Symbol NamedSymbol
}

func (n *Named) isType()        {}
func (n *Named) String() string { return n.Name }
func (n *Named) Equals(other Type) bool {
	o, ok := other.(*Named)
	return ok && o.Name == n.Name
}

// Unit is ().
type Unit struct{}

func (u *Unit) isType()            {}
func (u *Unit) String() string     { return "()" }
func (u *Unit) Equals(o Type) bool { _, ok := o.(*Unit); return ok }

// Never is the bottom type produced by break/continue/return and by loops
// that never break.
type Never struct{}

func (n *Never) isType()            {}
func (n *Never) String() string     { return "!" }
func (n *Never) Equals(o Type) bool { _, ok := o.(*Never); return ok }

// Unknown marks a type that has not yet been resolved. Never survives past
// the confirmer pass.
type Unknown struct{}

func (u *Unknown) isType()            {}
func (u *Unknown) String() string     { return "<unknown>" }
func (u *Unknown) Equals(o Type) bool { _, ok := o.(*Unknown); return ok }

// Convenience singletons; Type values are otherwise compared structurally,
// never by pointer identity (unlike the uniqued IR type system in internal/irtype).
var (
	I32Type                    Type = &Primitive{Kind: I32}
	U32Type                    Type = &Primitive{Kind: U32}
	IsizeType                  Type = &Primitive{Kind: Isize}
	UsizeType                  Type = &Primitive{Kind: Usize}
	BoolType                   Type = &Primitive{Kind: Bool}
	CharType                   Type = &Primitive{Kind: Char}
	StrType                    Type = &Primitive{Kind: Str}
	UnitType                   Type = &Unit{}
	NeverType                  Type = &Never{}
	UnknownType                Type = &Unknown{}
	IntPlaceholderType         Type = &Primitive{Kind: IntPlaceholder}
	SignedIntPlaceholderType   Type = &Primitive{Kind: SignedIntPlaceholder}
	UnsignedIntPlaceholderType Type = &Primitive{Kind: UnsignedIntPlaceholder}
)

// IsInteger reports whether t is a concrete integer type or an integer
// placeholder.
func IsInteger(t Type) bool {
	p, ok := t.(*Primitive)
	if !ok {
		return false
	}
	return p.Kind.IsInteger() || p.Kind.IsPlaceholder()
}

// IsConcreteInteger reports whether t is i32/u32/isize/usize exactly.
func IsConcreteInteger(t Type) bool {
	p, ok := t.(*Primitive)
	return ok && p.Kind.IsInteger()
}

// Mismatch is raised by Unify when two types do not unify.
type Mismatch struct {
	A, B Type
}

func (m *Mismatch) Error() string {
	return fmt.Sprintf("type mismatch: %s vs %s", m.A.String(), m.B.String())
}

// Unify is total and commutative modulo swap.
//
//   - equal types unify to themselves
//   - Never unifies with anything, yielding the other type
//   - the three integer placeholders unify with any integer type whose
//     signedness they admit, yielding the concrete type
//   - references of equal mutability, and arrays of equal length (or where
//     either length is still symbolic), unify element-wise
//   - otherwise, TypeMismatch
func Unify(a, b Type) (Type, error) {
	if a.Equals(b) {
		return a, nil
	}
	if _, ok := a.(*Never); ok {
		return b, nil
	}
	if _, ok := b.(*Never); ok {
		return a, nil
	}
	if u, ok := unifyPlaceholder(a, b); ok {
		return u, nil
	}
	if u, ok := unifyPlaceholder(b, a); ok {
		return u, nil
	}
	if ra, ok := a.(*Reference); ok {
		if rb, ok := b.(*Reference); ok && ra.IsMut == rb.IsMut {
			inner, err := Unify(ra.Inner, rb.Inner)
			if err != nil {
				return nil, err
			}
			return &Reference{Inner: inner, IsMut: ra.IsMut}, nil
		}
	}
	if aa, ok := a.(*Array); ok {
		if ab, ok := b.(*Array); ok && (aa.Length == ab.Length || aa.Length < 0 || ab.Length < 0) {
			elem, err := Unify(aa.Element, ab.Element)
			if err != nil {
				return nil, err
			}
			length := aa.Length
			if length < 0 {
				length = ab.Length
			}
			return &Array{Element: elem, Length: length}, nil
		}
	}
	return nil, &Mismatch{A: a, B: b}
}

// unifyPlaceholder unifies placeholder p against concrete, yielding the
// concrete type when signedness is compatible.
func unifyPlaceholder(p, concrete Type) (Type, bool) {
	ph, ok := p.(*Primitive)
	if !ok || !ph.Kind.IsPlaceholder() {
		return nil, false
	}
	c, ok := concrete.(*Primitive)
	if !ok || !c.Kind.IsInteger() {
		return nil, false
	}
	switch ph.Kind {
	case IntPlaceholder:
		return c, true
	case SignedIntPlaceholder:
		if c.Kind.IsSigned() {
			return c, true
		}
	case UnsignedIntPlaceholder:
		if !c.Kind.IsSigned() {
			return c, true
		}
	}
	return nil, false
}

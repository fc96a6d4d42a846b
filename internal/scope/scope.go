// Package scope implements the lexical scope tree and symbol tables: a
// tree of scopes with parent links, each owning a local symbol table,
// navigated through a single mutable cursor that every visitor saves and
// restores on entry/exit.
//
// Symbols never point at AST nodes directly; cross-references between
// symbols go by name and are resolved by a later pass, so cyclic symbol
// graphs (a struct whose methods mention the struct) need no special
// handling.
package scope

import (
	"fmt"

	"github.com/rustlite/rlc/internal/types"
)

// Kind discriminates the six scope kinds.
type Kind uint8

const (
	Crate Kind = iota
	Block
	Function
	Loop
	Impl
	Trait
)

func (k Kind) String() string {
	switch k {
	case Crate:
		return "crate"
	case Block:
		return "block"
	case Function:
		return "function"
	case Loop:
		return "loop"
	case Impl:
		return "impl"
	case Trait:
		return "trait"
	default:
		return "?"
	}
}

// Scope is one node of the lexical scope tree.
type Scope struct {
	Kind   Kind
	Parent *Scope
	locals map[string]*Symbol

	// FunctionScope fields, valid when Kind == Function.
	ReturnType types.Type
	OwnerFunc  *Symbol

	// LoopScope fields, valid when Kind == Loop.
	BreakType types.Type // nil until the first `break value` is seen

	// ImplScope fields, valid when Kind == Impl.
	ImplType types.Type

	// TraitScope fields, valid when Kind == Trait.
	TraitSymbol *Symbol
}

// NewCrate creates the root scope of a compilation.
func NewCrate() *Scope {
	return &Scope{Kind: Crate, locals: make(map[string]*Symbol)}
}

// Enter creates and returns a child scope of the given kind.
func (s *Scope) Enter(kind Kind) *Scope {
	return &Scope{Kind: kind, Parent: s, locals: make(map[string]*Symbol)}
}

// RedeclarationError is returned by DeclareLocal when name is already bound
// to a different symbol in the current scope.
type RedeclarationError struct {
	Name string
}

func (e *RedeclarationError) Error() string {
	return fmt.Sprintf("%q is already declared in this scope", e.Name)
}

// DeclareLocal binds name to sym in s's own symbol table. Binding a name
// this scope already binds to a different symbol fails, whatever its kind;
// shadowing a name from an ancestor scope is always permitted (a fresh
// local table entry simply shadows the lookup).
func (s *Scope) DeclareLocal(name string, sym *Symbol) error {
	if existing, ok := s.locals[name]; ok && redeclarationConflicts(existing, sym) {
		return &RedeclarationError{Name: name}
	}
	s.locals[name] = sym
	return nil
}

// redeclarationConflicts decides whether binding sym over existing in the
// same scope counts as a redeclaration. Function/struct/enum/trait items may
// be declared once each in pass 1 and then filled in during pass 2, which
// looks like "redeclaring" the same shell symbol — only a genuine clash
// between two distinct declarations is an error.
func redeclarationConflicts(existing, sym *Symbol) bool {
	return existing != sym
}

// LookupLocal returns the symbol bound to name in s's own table only.
func (s *Scope) LookupLocal(name string) (*Symbol, bool) {
	sym, ok := s.locals[name]
	return sym, ok
}

// Lookup walks s and its ancestors, returning the nearest binding of name.
func (s *Scope) Lookup(name string) (*Symbol, bool) {
	for cur := s; cur != nil; cur = cur.Parent {
		if sym, ok := cur.locals[name]; ok {
			return sym, true
		}
	}
	return nil, false
}

// EnclosingFunction walks up from s to the nearest FunctionScope, used to
// validate `return` against the function's return type and as the starting
// point for resolving `Self`.
func (s *Scope) EnclosingFunction() *Scope {
	for cur := s; cur != nil; cur = cur.Parent {
		if cur.Kind == Function {
			return cur
		}
	}
	return nil
}

// EnclosingLoop walks up from s to the nearest LoopScope, used to validate
// `break`/`continue` without crossing a
// FunctionScope boundary (a loop in an outer function does not enclose a
// nested function's body).
func (s *Scope) EnclosingLoop() *Scope {
	for cur := s; cur != nil; cur = cur.Parent {
		if cur.Kind == Loop {
			return cur
		}
		if cur.Kind == Function {
			return nil
		}
	}
	return nil
}

// Cursor is the single mutable pointer into the scope tree. Every
// visitor saves the prior value, repoints the
// cursor to the node's recorded scope, and restores it on every exit path
// — including error returns — so a subtree failure never corrupts it.
type Cursor struct {
	Current *Scope
}

// NewCursor creates a cursor positioned at root.
func NewCursor(root *Scope) *Cursor {
	return &Cursor{Current: root}
}

// Enter repoints the cursor at a freshly entered child scope and returns a
// restore function; callers defer the restore so every control-flow path
// (including panics unwound by a recover, and early error returns) puts the
// cursor back.
func (c *Cursor) Enter(kind Kind) (child *Scope, restore func()) {
	prev := c.Current
	child = prev.Enter(kind)
	c.Current = child
	return child, func() { c.Current = prev }
}

// EnterExisting repositions the cursor at an already-created scope (used
// when a later pass revisits a node whose scope was recorded in pass 1) and
// returns a restore function with the same contract as Enter.
func (c *Cursor) EnterExisting(s *Scope) (restore func()) {
	prev := c.Current
	c.Current = s
	return func() { c.Current = prev }
}

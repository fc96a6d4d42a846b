// Package sema implements the five-pass semantic analyzer and the
// integer-type confirmer: item declaration, type resolution on
// declarations, expression type inference, place/mutability checking, and
// path finalization, followed by a sixth top-down pass that pushes concrete
// integer types down onto literal-typed leaves.
//
// One struct holds the shared traversal state, with one method per ordered
// phase, called in a fixed sequence from a single entry point and returning
// at the first error. Later phases assume everything earlier ones computed.
package sema

import (
	"github.com/rustlite/rlc/internal/ast"
	"github.com/rustlite/rlc/internal/diagnostic"
	"github.com/rustlite/rlc/internal/scope"
)

// Analyzer holds the scope tree and cursor shared across all five passes
// plus the confirmer. A single instance runs the whole pipeline once; it is
// not reused across compilations.
type Analyzer struct {
	Root   *scope.Scope
	cursor *scope.Cursor
	mod    *ast.Module
}

// Analyze runs all five passes and the integer-type confirmer over mod in
// order, stopping at the first error; there is no recovery within a pass.
func Analyze(mod *ast.Module) (*Analyzer, error) {
	root := scope.NewCrate()
	a := &Analyzer{Root: root, cursor: scope.NewCursor(root), mod: mod}

	steps := []func() error{
		a.pass1ItemDeclaration,
		a.pass2TypeResolution,
		a.pass3TypeInference,
		a.pass4PlaceMutability,
		a.pass5PathFinalization,
		a.confirmIntegerLiterals,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return a, err
		}
	}
	return a, nil
}

func posOf(loc ast.Loc) diagnostic.Position {
	return diagnostic.Position{Offset: loc.Offset, Line: loc.Line, Column: loc.Col}
}

// enter repoints the cursor at a freshly entered scope of kind, stores it
// on the node via assign, and returns a restore func the caller defers so
// every exit path, including an error return, restores the prior cursor.
func (a *Analyzer) enter(kind scope.Kind, assign func(s *scope.Scope)) (s *scope.Scope, restore func()) {
	s, restore = a.cursor.Enter(kind)
	assign(s)
	return s, restore
}

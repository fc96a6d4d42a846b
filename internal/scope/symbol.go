package scope

import "github.com/rustlite/rlc/internal/types"

// SymbolKind discriminates the symbol variants.
type SymbolKind uint8

const (
	VariableSym SymbolKind = iota
	ConstantSym
	FunctionSym
	StructSym
	EnumSym
	VariantSym
	TraitSym
)

// Symbol is the symbol sum type. All fields live on one struct (rather
// than one Go type per variant behind an interface) because, unlike the
// AST, symbols are mutated progressively across passes 1-5 — Struct's
// Fields start empty and are filled by pass 2, Function's ParamTypes
// likewise — and a single struct keeps that in-place mutation simple
// without needing a second arena indirection. Symbol never points at an
// ast node directly; lowering consults the scope that declared it.
type Symbol struct {
	Kind SymbolKind
	Name string

	// Variable
	VarType    types.Type
	IsMut      bool
	IRSlot     any // *ir.Value once lowered; any to avoid an import cycle with internal/ir

	// Constant
	ConstType  types.Type
	ConstValue uint64 // only integer constants are admitted at IR time
	HasValue   bool
	IRGlobal   any // *ir.GlobalVariable once defined, set by internal/predefine; any to avoid an import cycle

	// Function
	SelfParam    *SelfParam // nil if not a method
	ParamNames   []string
	ParamTypes   []types.Type
	ReturnType   types.Type
	IsMethod     bool
	IsAssociated bool // associated function (no self), e.g. Struct::new
	OwnerType    types.Type // the struct/enum this function is attached to, if any
	IRFunc       any        // *ir.Function once declared, set by internal/predefine; any to avoid an import cycle

	// Struct
	FieldNames   []string
	FieldTypes   map[string]types.Type
	AssocConsts  map[string]*Symbol
	AssocFuncs   map[string]*Symbol // associated functions (no self)
	Methods      map[string]*Symbol // functions with self

	// Enum
	Variants       []string           // ordered variant names
	VariantSymbols map[string]*Symbol // variant name -> VariantSym symbol, for Type::Variant path lookup

	// Variant
	OwningEnum types.Type

	// Trait
	RequiredItems map[string]*Symbol // name -> function-shaped Symbol describing the signature
}

// SelfParam describes a method's implicit receiver.
type SelfParam struct {
	IsRef bool
	IsMut bool
}

// SymbolName satisfies types.NamedSymbol so *Symbol can back a types.Named
// without internal/types importing internal/scope.
func (s *Symbol) SymbolName() string { return s.Name }

// NewStructSymbol creates an empty struct symbol shell, as emitted by
// pass 1; the member dictionaries start empty and fill in during pass 2.
func NewStructSymbol(name string) *Symbol {
	return &Symbol{
		Kind:        StructSym,
		Name:        name,
		FieldTypes:  make(map[string]types.Type),
		AssocConsts: make(map[string]*Symbol),
		AssocFuncs:  make(map[string]*Symbol),
		Methods:     make(map[string]*Symbol),
	}
}

// NewEnumSymbol creates an empty enum symbol shell.
func NewEnumSymbol(name string) *Symbol {
	return &Symbol{Kind: EnumSym, Name: name, VariantSymbols: make(map[string]*Symbol)}
}

// NewTraitSymbol creates an empty trait symbol shell.
func NewTraitSymbol(name string) *Symbol {
	return &Symbol{Kind: TraitSym, Name: name, RequiredItems: make(map[string]*Symbol)}
}

// NewFunctionSymbol creates an empty function symbol shell.
func NewFunctionSymbol(name string) *Symbol {
	return &Symbol{Kind: FunctionSym, Name: name}
}

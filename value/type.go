package value

import "fmt"

// Kind identifies the shape of a Type descriptor. A Value's type is a
// separate structure from the Value itself, per the data model: Values
// never carry their own Type pointer except for TagType Values, which
// exist to let the language manipulate types as first-class data.
type Kind uint8

const (
	KindNil Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindArray
	KindDict
	KindProcessClass
	KindPromise
	KindFunction
)

func (k Kind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindDict:
		return "dict"
	case KindProcessClass:
		return "process-class"
	case KindPromise:
		return "promise"
	case KindFunction:
		return "function"
	default:
		return "unknown"
	}
}

// Type is a constructed or primitive type descriptor. Primitives are
// interned singletons (see the package-level vars below); constructed
// types (array-of-T, promise-of-T, process-class, function-signature) are
// deduplicated by a TypeInterner so reference equality implies structural
// equality.
type Type struct {
	kind Kind

	// varying is the element type of an array, the result type of a
	// promise, or the class type of a process-class. nil means
	// incomplete — type inference has not yet resolved it.
	varying *Type

	// className labels a process-class type (e.g. the name of the
	// process constructor it describes).
	className string

	// sig is populated only for KindFunction.
	sig *Signature
}

// Signature describes a function-typed Value's shape.
type Signature struct {
	Params []*Type
	Return *Type
}

func (k Kind) isVaryingKind() bool {
	switch k {
	case KindArray, KindPromise, KindProcessClass:
		return true
	default:
		return false
	}
}

// Primitive singletons. Never mutated after package init.
var (
	NilType    = &Type{kind: KindNil}
	BoolType   = &Type{kind: KindBool}
	IntType    = &Type{kind: KindInt}
	FloatType  = &Type{kind: KindFloat}
	StringType = &Type{kind: KindString}
	DictType   = &Type{kind: KindDict}
)

func (t *Type) Kind() Kind { return t.kind }

// Varying returns the element/result/class type, or nil if incomplete.
func (t *Type) Varying() *Type { return t.varying }

// Incomplete reports whether this type still needs its varying type
// resolved by type inference.
func (t *Type) Incomplete() bool {
	return t.kind.isVaryingKind() && t.varying == nil
}

// SetVarying completes an incomplete varying type. Overwriting a complete
// varying type with a conflicting one is a TypeMismatch, reported via ok
// so the caller (the front-end's inference pass, or a test standing in
// for it) can surface errors.TypeMismatch.
func (t *Type) SetVarying(v *Type) (ok bool) {
	if !t.kind.isVaryingKind() {
		return false
	}
	if t.varying == nil {
		t.varying = v
		return true
	}
	return t.varying == v
}

func (t *Type) Signature() *Signature { return t.sig }

func (t *Type) String() string {
	switch t.kind {
	case KindArray:
		if t.varying == nil {
			return "array<?>"
		}
		return "array<" + t.varying.String() + ">"
	case KindPromise:
		if t.varying == nil {
			return "promise<?>"
		}
		return "promise<" + t.varying.String() + ">"
	case KindProcessClass:
		return "class<" + t.className + ">"
	case KindFunction:
		if t.sig == nil {
			return "function<?>"
		}
		parts := make([]string, 0, len(t.sig.Params))
		for _, p := range t.sig.Params {
			parts = append(parts, p.String())
		}
		ret := "nil"
		if t.sig.Return != nil {
			ret = t.sig.Return.String()
		}
		return fmt.Sprintf("function(%v) -> %s", parts, ret)
	default:
		return t.kind.String()
	}
}

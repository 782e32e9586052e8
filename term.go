package rhema

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies the value variant a term holds, or KindBranch for
// interior nodes.
type Kind int

const (
	KindUnit Kind = iota
	KindBool
	KindInt
	KindNative
	KindStr
	KindSym
	KindBranch
)

func (k Kind) String() string {
	switch k {
	case KindUnit:
		return "Unit"
	case KindBool:
		return "Bool"
	case KindInt:
		return "Int"
	case KindNative:
		return "Native"
	case KindStr:
		return "String"
	case KindSym:
		return "Symbol"
	case KindBranch:
		return "Branch"
	default:
		return "Unknown"
	}
}

// UnitValue is the payload of a unit leaf. Ignore is its only value; it
// stands in wherever a term carries no meaningful value.
type UnitValue int

// Ignore is the unit sentinel.
const Ignore UnitValue = 0

func (UnitValue) String() string { return "#ignore" }

// Term is the uniform tree the evaluator works on. A term is either a
// leaf wrapping exactly one value variant or a branch holding an ordered
// sequence of child terms. The only way to build one is through the
// leaf constructors and BranchTerm, so the discriminator always agrees
// with the payload.
//
// Terms are built once and then shared read-only. There is no internal
// locking; concurrent mutation through the *Mut accessors is the
// caller's problem.
type Term struct {
	kind Kind
	b    bool
	n    int64
	s    string
	sym  Symbol
	fn   NativeFn
	u    UnitValue
	subs []Term
}

// New returns the default term: a leaf holding the unit sentinel.
// The zero Term is identical to it.
func New() Term {
	return Term{kind: KindUnit}
}

func BoolTerm(b bool) Term        { return Term{kind: KindBool, b: b} }
func IntTerm(n int64) Term        { return Term{kind: KindInt, n: n} }
func NativeTerm(fn NativeFn) Term { return Term{kind: KindNative, fn: fn} }
func StrTerm(s string) Term       { return Term{kind: KindStr, s: s} }
func SymTerm(sym Symbol) Term     { return Term{kind: KindSym, sym: sym} }
func UnitTerm(u UnitValue) Term   { return Term{kind: KindUnit, u: u} }

// BranchTerm assembles a branch from the given children, taking
// ownership of the slice. A branch with no children is the unit leaf,
// so IsBranch is equivalent to having at least one child.
func BranchTerm(subs ...Term) Term {
	if len(subs) == 0 {
		return Term{kind: KindUnit}
	}
	return Term{kind: KindBranch, subs: subs}
}

// Kind returns the variant this term holds, or KindBranch.
func (t Term) Kind() Kind { return t.kind }

// IsBranch reports whether the term is an interior node.
func (t Term) IsBranch() bool { return t.kind == KindBranch }

// Len returns the number of direct children; 0 for any leaf.
func (t Term) Len() int { return len(t.subs) }

// Sub returns the i-th child. It panics if i is out of range, like any
// slice index.
func (t Term) Sub(i int) Term { return t.subs[i] }

// Subs returns the child slice. Callers must treat it as read-only.
func (t Term) Subs() []Term { return t.subs }

func (t Term) mustBe(want Kind) {
	if t.kind != want {
		panic(fmt.Sprintf("term: %s access on %s term", want, t.kind))
	}
}

// --- Trusted accessors ---
//
// The trusted family is for code that has already dispatched on Kind:
// a mismatch is a bug in the caller, so it panics instead of returning
// an error.

func (t Term) Bool() bool {
	t.mustBe(KindBool)
	return t.b
}

func (t Term) Int() int64 {
	t.mustBe(KindInt)
	return t.n
}

func (t Term) Native() NativeFn {
	t.mustBe(KindNative)
	return t.fn
}

func (t Term) Str() string {
	t.mustBe(KindStr)
	return t.s
}

func (t Term) Sym() Symbol {
	t.mustBe(KindSym)
	return t.sym
}

func (t Term) Unit() UnitValue {
	t.mustBe(KindUnit)
	return t.u
}

// --- Trusted mutable accessors ---

func (t *Term) BoolMut() *bool {
	t.mustBe(KindBool)
	return &t.b
}

func (t *Term) IntMut() *int64 {
	t.mustBe(KindInt)
	return &t.n
}

func (t *Term) NativeMut() *NativeFn {
	t.mustBe(KindNative)
	return &t.fn
}

func (t *Term) StrMut() *string {
	t.mustBe(KindStr)
	return &t.s
}

func (t *Term) SymMut() *Symbol {
	t.mustBe(KindSym)
	return &t.sym
}

func (t *Term) UnitMut() *UnitValue {
	t.mustBe(KindUnit)
	return &t.u
}

// --- Fallible accessors ---
//
// The fallible family is for boundary code validating terms it has not
// dispatched on yet. A mismatch comes back as a *TypeMismatchError.

func (t Term) AsBool() (bool, error) {
	if t.kind != KindBool {
		return false, &TypeMismatchError{Want: KindBool, Got: t.kind}
	}
	return t.b, nil
}

func (t Term) AsInt() (int64, error) {
	if t.kind != KindInt {
		return 0, &TypeMismatchError{Want: KindInt, Got: t.kind}
	}
	return t.n, nil
}

func (t Term) AsNative() (NativeFn, error) {
	if t.kind != KindNative {
		return NativeFn{}, &TypeMismatchError{Want: KindNative, Got: t.kind}
	}
	return t.fn, nil
}

func (t Term) AsStr() (string, error) {
	if t.kind != KindStr {
		return "", &TypeMismatchError{Want: KindStr, Got: t.kind}
	}
	return t.s, nil
}

func (t Term) AsSym() (Symbol, error) {
	if t.kind != KindSym {
		return Symbol{}, &TypeMismatchError{Want: KindSym, Got: t.kind}
	}
	return t.sym, nil
}

func (t Term) AsUnit() (UnitValue, error) {
	if t.kind != KindUnit {
		return Ignore, &TypeMismatchError{Want: KindUnit, Got: t.kind}
	}
	return t.u, nil
}

// --- Fallible mutable accessors ---

func (t *Term) AsBoolMut() (*bool, error) {
	if t.kind != KindBool {
		return nil, &TypeMismatchError{Want: KindBool, Got: t.kind}
	}
	return &t.b, nil
}

func (t *Term) AsIntMut() (*int64, error) {
	if t.kind != KindInt {
		return nil, &TypeMismatchError{Want: KindInt, Got: t.kind}
	}
	return &t.n, nil
}

func (t *Term) AsNativeMut() (*NativeFn, error) {
	if t.kind != KindNative {
		return nil, &TypeMismatchError{Want: KindNative, Got: t.kind}
	}
	return &t.fn, nil
}

func (t *Term) AsStrMut() (*string, error) {
	if t.kind != KindStr {
		return nil, &TypeMismatchError{Want: KindStr, Got: t.kind}
	}
	return &t.s, nil
}

func (t *Term) AsSymMut() (*Symbol, error) {
	if t.kind != KindSym {
		return nil, &TypeMismatchError{Want: KindSym, Got: t.kind}
	}
	return &t.sym, nil
}

func (t *Term) AsUnitMut() (*UnitValue, error) {
	if t.kind != KindUnit {
		return nil, &TypeMismatchError{Want: KindUnit, Got: t.kind}
	}
	return &t.u, nil
}

// Truthy implements unit-as-flow: unit and false are falsy, everything
// else is truthy.
func (t Term) Truthy() bool {
	switch t.kind {
	case KindUnit:
		return false
	case KindBool:
		return t.b
	default:
		return true
	}
}

// String renders the term for diagnostics. The output is not a stable
// serialization format.
func (t Term) String() string {
	switch t.kind {
	case KindUnit:
		return t.u.String()
	case KindBool:
		if t.b {
			return "true"
		}
		return "false"
	case KindInt:
		return strconv.FormatInt(t.n, 10)
	case KindNative:
		return t.fn.String()
	case KindStr:
		return t.s
	case KindSym:
		return t.sym.Name()
	case KindBranch:
		parts := make([]string, len(t.subs))
		for i, sub := range t.subs {
			if sub.kind == KindStr {
				parts[i] = fmt.Sprintf("%q", sub.s)
			} else {
				parts[i] = sub.String()
			}
		}
		return "(" + strings.Join(parts, " ") + ")"
	default:
		return fmt.Sprintf("<unknown:%d>", t.kind)
	}
}

// TermsEqual compares two terms for deep structural equality. Terms of
// different kinds are never equal; symbols and natives compare by
// identity.
func TermsEqual(a, b Term) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindUnit:
		return true
	case KindBool:
		return a.b == b.b
	case KindInt:
		return a.n == b.n
	case KindNative:
		return a.fn == b.fn
	case KindStr:
		return a.s == b.s
	case KindSym:
		return a.sym == b.sym
	case KindBranch:
		if len(a.subs) != len(b.subs) {
			return false
		}
		for i := range a.subs {
			if !TermsEqual(a.subs[i], b.subs[i]) {
				return false
			}
		}
		return true
	}
	return false
}

package rhema

import (
	"fmt"
	"strings"
)

// NativeImpl is the Go implementation behind a primitive, called with
// eagerly evaluated arguments.
type NativeImpl func(ev *Evaluator, args []Term) (Term, error)

// NativeFn is a handle to a callable: either a primitive implemented in
// Go or a lambda built at evaluation time. Handles compare equal exactly
// when they came from the same registration, matching symbol identity
// semantics. The zero NativeFn is not callable.
type NativeFn struct {
	impl *nativeImpl
}

type nativeImpl struct {
	name   string
	arity  int // exact argument count; -1 for variadic
	fn     NativeImpl
	lambda *lambdaFn // non-nil for user-defined functions
}

type lambdaFn struct {
	params  []Symbol
	body    Term
	closure map[Symbol]Term
}

// NewNative registers a primitive under the given name. An arity of -1
// disables the argument count check. The implementation must be
// non-nil; registering without one panics.
func NewNative(name string, arity int, fn NativeImpl) NativeFn {
	if fn == nil {
		panic(fmt.Sprintf("native %s: nil implementation", name))
	}
	return NativeFn{impl: &nativeImpl{name: name, arity: arity, fn: fn}}
}

// Name returns the registered name, or "lambda" for user-defined
// functions.
func (f NativeFn) Name() string {
	if f.impl == nil {
		return ""
	}
	return f.impl.name
}

// Arity returns the expected argument count, -1 for variadic.
func (f NativeFn) Arity() int {
	if f.impl == nil {
		return 0
	}
	return f.impl.arity
}

func (f NativeFn) String() string {
	if f.impl == nil {
		return "<native nil>"
	}
	if f.impl.lambda != nil {
		params := make([]string, len(f.impl.lambda.params))
		for i, p := range f.impl.lambda.params {
			params[i] = p.Name()
		}
		return fmt.Sprintf("<fn(%s)>", strings.Join(params, ", "))
	}
	return fmt.Sprintf("<native %s>", f.impl.name)
}

// Invoke applies the callable to pre-evaluated arguments. Primitives get
// an arity check first; lambdas run through the evaluator's trampoline.
func (f NativeFn) Invoke(ev *Evaluator, args []Term) (Term, error) {
	if f.impl == nil {
		return Term{}, fmt.Errorf("invoke: %w", ErrNotCallable)
	}
	if f.impl.lambda != nil {
		return ev.callLambda(f.impl, args)
	}
	if f.impl.arity >= 0 && len(args) != f.impl.arity {
		return Term{}, &ArityError{Name: f.impl.name, Want: f.impl.arity, Got: len(args)}
	}
	return f.impl.fn(ev, args)
}

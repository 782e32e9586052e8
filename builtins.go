package rhema

import (
	"fmt"
	"strings"
)

// Builtins returns the standard primitive registry. Each call returns a
// fresh map so a session can add its own entries without sharing.
func Builtins() map[Symbol]NativeFn {
	natives := make(map[Symbol]NativeFn)
	register := func(name string, arity int, fn NativeImpl) {
		natives[Intern(name)] = NewNative(name, arity, fn)
	}

	register("add", 2, func(_ *Evaluator, args []Term) (Term, error) {
		a, b, err := intArgs("add", args)
		if err != nil {
			return Term{}, err
		}
		return IntTerm(a + b), nil
	})
	register("sub", 2, func(_ *Evaluator, args []Term) (Term, error) {
		a, b, err := intArgs("sub", args)
		if err != nil {
			return Term{}, err
		}
		return IntTerm(a - b), nil
	})
	register("mul", 2, func(_ *Evaluator, args []Term) (Term, error) {
		a, b, err := intArgs("mul", args)
		if err != nil {
			return Term{}, err
		}
		return IntTerm(a * b), nil
	})
	register("div", 2, func(_ *Evaluator, args []Term) (Term, error) {
		a, b, err := intArgs("div", args)
		if err != nil {
			return Term{}, err
		}
		if b == 0 {
			return Term{}, fmt.Errorf("div: division by zero")
		}
		return IntTerm(a / b), nil
	})
	register("mod", 2, func(_ *Evaluator, args []Term) (Term, error) {
		a, b, err := intArgs("mod", args)
		if err != nil {
			return Term{}, err
		}
		if b == 0 {
			return Term{}, fmt.Errorf("mod: division by zero")
		}
		return IntTerm(a % b), nil
	})

	register("lt", 2, func(_ *Evaluator, args []Term) (Term, error) {
		cmp, err := compareTerms("lt", args[0], args[1])
		if err != nil {
			return Term{}, err
		}
		return BoolTerm(cmp < 0), nil
	})
	register("gt", 2, func(_ *Evaluator, args []Term) (Term, error) {
		cmp, err := compareTerms("gt", args[0], args[1])
		if err != nil {
			return Term{}, err
		}
		return BoolTerm(cmp > 0), nil
	})
	register("eq", 2, func(_ *Evaluator, args []Term) (Term, error) {
		return BoolTerm(TermsEqual(args[0], args[1])), nil
	})
	register("not", 1, func(_ *Evaluator, args []Term) (Term, error) {
		return BoolTerm(!args[0].Truthy()), nil
	})

	register("list", -1, func(_ *Evaluator, args []Term) (Term, error) {
		return BranchTerm(args...), nil
	})
	register("head", 1, func(_ *Evaluator, args []Term) (Term, error) {
		switch {
		case args[0].IsBranch():
			return args[0].Sub(0), nil
		case args[0].Kind() == KindUnit:
			return New(), nil
		default:
			return Term{}, fmt.Errorf("head: %w", &TypeMismatchError{Want: KindBranch, Got: args[0].Kind()})
		}
	})
	register("rest", 1, func(_ *Evaluator, args []Term) (Term, error) {
		switch {
		case args[0].IsBranch():
			subs := args[0].Subs()
			rest := make([]Term, len(subs)-1)
			copy(rest, subs[1:])
			return BranchTerm(rest...), nil
		case args[0].Kind() == KindUnit:
			return New(), nil
		default:
			return Term{}, fmt.Errorf("rest: %w", &TypeMismatchError{Want: KindBranch, Got: args[0].Kind()})
		}
	})
	register("cons", 2, func(_ *Evaluator, args []Term) (Term, error) {
		switch {
		case args[1].IsBranch():
			subs := make([]Term, 0, args[1].Len()+1)
			subs = append(subs, args[0])
			subs = append(subs, args[1].Subs()...)
			return BranchTerm(subs...), nil
		case args[1].Kind() == KindUnit:
			return BranchTerm(args[0]), nil
		default:
			return Term{}, fmt.Errorf("cons: %w", &TypeMismatchError{Want: KindBranch, Got: args[1].Kind()})
		}
	})
	register("nth", 2, func(_ *Evaluator, args []Term) (Term, error) {
		idx, err := args[1].AsInt()
		if err != nil {
			return Term{}, fmt.Errorf("nth: %w", err)
		}
		switch {
		case args[0].IsBranch():
			if idx < 0 || idx >= int64(args[0].Len()) {
				return New(), nil
			}
			return args[0].Sub(int(idx)), nil
		case args[0].Kind() == KindUnit:
			return New(), nil
		default:
			return Term{}, fmt.Errorf("nth: %w", &TypeMismatchError{Want: KindBranch, Got: args[0].Kind()})
		}
	})
	register("len", 1, func(_ *Evaluator, args []Term) (Term, error) {
		switch args[0].Kind() {
		case KindBranch:
			return IntTerm(int64(args[0].Len())), nil
		case KindStr:
			return IntTerm(int64(len([]rune(args[0].Str())))), nil
		case KindUnit:
			return IntTerm(0), nil
		default:
			return Term{}, fmt.Errorf("len: %w", &TypeMismatchError{Want: KindBranch, Got: args[0].Kind()})
		}
	})
	register("append", 2, func(_ *Evaluator, args []Term) (Term, error) {
		var subs []Term
		for _, arg := range args {
			switch {
			case arg.IsBranch():
				subs = append(subs, arg.Subs()...)
			case arg.Kind() == KindUnit:
				// empty list contributes nothing
			default:
				return Term{}, fmt.Errorf("append: %w", &TypeMismatchError{Want: KindBranch, Got: arg.Kind()})
			}
		}
		return BranchTerm(subs...), nil
	})

	register("concat", -1, func(_ *Evaluator, args []Term) (Term, error) {
		if len(args) == 0 {
			return Term{}, &ArityError{Name: "concat", Want: 1, Got: 0, Variadic: true}
		}
		var sb strings.Builder
		for _, arg := range args {
			s, err := arg.AsStr()
			if err != nil {
				return Term{}, fmt.Errorf("concat: %w", err)
			}
			sb.WriteString(s)
		}
		return StrTerm(sb.String()), nil
	})
	register("to-string", 1, func(_ *Evaluator, args []Term) (Term, error) {
		return StrTerm(args[0].String()), nil
	})
	register("split-once", 2, func(_ *Evaluator, args []Term) (Term, error) {
		needle, err := args[0].AsStr()
		if err != nil {
			return Term{}, fmt.Errorf("split-once: %w", err)
		}
		haystack, err := args[1].AsStr()
		if err != nil {
			return Term{}, fmt.Errorf("split-once: %w", err)
		}
		if needle == "" {
			return Term{}, fmt.Errorf("split-once: empty separator")
		}
		before, after, found := strings.Cut(haystack, needle)
		if !found {
			return New(), nil
		}
		return BranchTerm(StrTerm(before), StrTerm(after)), nil
	})

	register("type", 1, func(_ *Evaluator, args []Term) (Term, error) {
		var name string
		switch args[0].Kind() {
		case KindBool:
			name = "bool"
		case KindInt:
			name = "int"
		case KindNative:
			name = "native"
		case KindStr:
			name = "string"
		case KindSym:
			name = "symbol"
		case KindUnit:
			name = "unit"
		case KindBranch:
			name = "branch"
		}
		return SymTerm(Intern(name)), nil
	})
	register("branch?", 1, func(_ *Evaluator, args []Term) (Term, error) {
		return BoolTerm(args[0].IsBranch()), nil
	})

	register("assert", 2, func(_ *Evaluator, args []Term) (Term, error) {
		msg, err := args[1].AsStr()
		if err != nil {
			return Term{}, fmt.Errorf("assert: %w", err)
		}
		if !args[0].Truthy() {
			return Term{}, &AssertError{Message: msg}
		}
		return BoolTerm(true), nil
	})

	return natives
}

func intArgs(name string, args []Term) (int64, int64, error) {
	a, err := args[0].AsInt()
	if err != nil {
		return 0, 0, fmt.Errorf("%s: %w", name, err)
	}
	b, err := args[1].AsInt()
	if err != nil {
		return 0, 0, fmt.Errorf("%s: %w", name, err)
	}
	return a, b, nil
}

func compareTerms(name string, a, b Term) (int, error) {
	switch {
	case a.Kind() == KindInt && b.Kind() == KindInt:
		switch {
		case a.Int() < b.Int():
			return -1, nil
		case a.Int() > b.Int():
			return 1, nil
		}
		return 0, nil
	case a.Kind() == KindStr && b.Kind() == KindStr:
		return strings.Compare(a.Str(), b.Str()), nil
	default:
		return 0, fmt.Errorf("%s: cannot compare %s and %s", name, a.Kind(), b.Kind())
	}
}

package rhema

import (
	"errors"
	"testing"
)

func testEval(t *testing.T, input string, expected Term) {
	t.Helper()
	ev := &Evaluator{Natives: Builtins()}
	val, err := ev.EvalString(input)
	if err != nil {
		t.Fatalf("eval %q: %v", input, err)
	}
	if !TermsEqual(val, expected) {
		t.Fatalf("eval %q: expected %s, got %s", input, expected.String(), val.String())
	}
}

func testEvalError(t *testing.T, input string) {
	t.Helper()
	ev := &Evaluator{Natives: Builtins()}
	_, err := ev.EvalString(input)
	if err == nil {
		t.Fatalf("expected error for %q", input)
	}
}

func testEvalErrorIs(t *testing.T, input string, target error) {
	t.Helper()
	ev := &Evaluator{Natives: Builtins()}
	_, err := ev.EvalString(input)
	if err == nil {
		t.Fatalf("expected error for %q", input)
	}
	if !errors.Is(err, target) {
		t.Fatalf("eval %q: expected %v, got %v", input, target, err)
	}
}

// --- Literals ---

func TestEvalLiterals(t *testing.T) {
	testEval(t, "42", IntTerm(42))
	testEval(t, "true", BoolTerm(true))
	testEval(t, "false", BoolTerm(false))
	testEval(t, `"hello"`, StrTerm("hello"))
	testEval(t, "#ignore", New())
	testEval(t, "()", New())
}

func TestEvalUnboundSymbol(t *testing.T) {
	testEvalErrorIs(t, "no-such-name", ErrUnboundSymbol)
}

// --- If with Truthy ---

func TestEvalIfTruthy(t *testing.T) {
	testEval(t, `(if true "yes" "no")`, StrTerm("yes"))
	testEval(t, `(if false "yes" "no")`, StrTerm("no"))
	testEval(t, `(if #ignore "yes" "no")`, StrTerm("no"))
	testEval(t, `(if 0 "yes" "no")`, StrTerm("yes"))        // 0 is truthy
	testEval(t, `(if "" "yes" "no")`, StrTerm("yes"))       // "" is truthy
	testEval(t, `(if (list) "yes" "no")`, StrTerm("no"))    // empty list is the unit leaf
	testEval(t, `(if (list 1) "yes" "no")`, StrTerm("yes"))
}

func TestEvalIfArity(t *testing.T) {
	testEvalError(t, `(if true 1)`)
	testEvalError(t, `(if true)`)
}

// --- Let ---

func TestEvalLet(t *testing.T) {
	testEval(t, `(let ((x 1)) x)`, IntTerm(1))
	testEval(t, `(let ((x 1) (y 2)) (list x y))`, BranchTerm(IntTerm(1), IntTerm(2)))
}

func TestEvalLetSequential(t *testing.T) {
	testEval(t, `(let ((x 1) (y x)) y)`, IntTerm(1))
}

func TestEvalLetShadowing(t *testing.T) {
	testEval(t, `(let ((x 1)) (let ((x 2)) x))`, IntTerm(2))
	testEval(t, `(let ((x 1)) (do (let ((x 2)) x) x))`, IntTerm(1))
}

func TestEvalLetErrors(t *testing.T) {
	testEvalError(t, `(let 5 x)`)           // bindings not a list
	testEvalError(t, `(let ((x)) x)`)       // pair missing expr
	testEvalError(t, `(let ((1 2)) 3)`)     // name not a symbol
	testEvalError(t, `(let ((x 1)))`)       // missing body
}

// --- Do ---

func TestEvalDo(t *testing.T) {
	testEval(t, `(do 1 2 3)`, IntTerm(3))
	testEvalError(t, `(do)`)
}

// --- Lambda ---

func TestEvalLambda(t *testing.T) {
	testEval(t, `((lambda (x) x) 42)`, IntTerm(42))
	testEval(t, `((lambda (a b) (list a b)) 1 2)`, BranchTerm(IntTerm(1), IntTerm(2)))
	testEval(t, `((lambda () 7))`, IntTerm(7))
}

func TestEvalLambdaWrongArity(t *testing.T) {
	testEvalErrorIs(t, `((lambda (x) x) 1 2)`, ErrArity)
	testEvalErrorIs(t, `((lambda (x y) x) 1)`, ErrArity)
}

func TestEvalLambdaClosure(t *testing.T) {
	testEval(t, `((let ((n 5)) (lambda (x) (add x n))) 10)`, IntTerm(15))
}

func TestEvalLambdaErrors(t *testing.T) {
	testEvalError(t, `(lambda (1) x)`) // param not a symbol
	testEvalError(t, `(lambda (x))`)   // missing body
	testEvalError(t, `(lambda 5 x)`)   // params not a list
}

// --- Quote ---

func TestEvalQuote(t *testing.T) {
	testEval(t, `(quote 42)`, IntTerm(42))
	testEval(t, `(quote foo)`, SymTerm(Intern("foo")))
	testEval(t, `(quote (a b))`, BranchTerm(SymTerm(Intern("a")), SymTerm(Intern("b"))))
	testEval(t, `'foo`, SymTerm(Intern("foo")))
	// The quoted branch is returned unevaluated, head symbol included.
	testEval(t, `(quote (add 1 2))`, BranchTerm(SymTerm(Intern("add")), IntTerm(1), IntTerm(2)))
}

// --- Cond ---

func TestEvalCond(t *testing.T) {
	testEval(t, `(cond true 1 true 2)`, IntTerm(1))
	testEval(t, `(cond false 1 true 2)`, IntTerm(2))
	testEval(t, `(cond false 1 false 2)`, New())
	testEvalError(t, `(cond true)`)
}

// --- Apply ---

func TestEvalApply(t *testing.T) {
	testEval(t, `(apply add (list 1 2))`, IntTerm(3))
	testEval(t, `(apply list (list 1 2 3))`, BranchTerm(IntTerm(1), IntTerm(2), IntTerm(3)))
	testEval(t, `(apply list ())`, New())
	testEvalError(t, `(apply add 5)`)
	testEvalErrorIs(t, `(apply 5 (list))`, ErrTypeMismatch)
}

// --- Calling ---

func TestEvalNotCallable(t *testing.T) {
	testEvalErrorIs(t, `(1 2 3)`, ErrNotCallable)
	testEvalErrorIs(t, `("s")`, ErrNotCallable)
}

func TestEvalNativesAreFirstClass(t *testing.T) {
	testEval(t, `((head (list add)) 1 2)`, IntTerm(3))
	testEval(t, `(apply (head (list mul)) (list 3 4))`, IntTerm(12))
}

func TestEvalStringParseError(t *testing.T) {
	testEvalError(t, `(unclosed`)
}

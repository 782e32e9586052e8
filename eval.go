package rhema

import (
	"fmt"
)

// Resolver looks up a symbol and returns its term if defined.
type Resolver func(sym Symbol) (Term, bool)

// Evaluator evaluates terms. Leaves other than symbols evaluate to
// themselves; symbols resolve through the local scope stack, then the
// Resolve hook, then the native registry; branches are applications or
// special forms.
type Evaluator struct {
	Resolve Resolver
	Natives map[Symbol]NativeFn
	locals  []map[Symbol]Term
}

// Special form heads, interned once.
var (
	symIf     = Intern("if")
	symLet    = Intern("let")
	symDo     = Intern("do")
	symLambda = Intern("lambda")
	symQuote  = Intern("quote")
	symCond   = Intern("cond")
	symApply  = Intern("apply")
	symDefine = Intern("define")
	symDelete = Intern("delete")
)

func (e *Evaluator) pushScope(bindings map[Symbol]Term) {
	e.locals = append(e.locals, bindings)
}

func (e *Evaluator) popScope() {
	e.locals = e.locals[:len(e.locals)-1]
}

func (e *Evaluator) lookupLocal(sym Symbol) (Term, bool) {
	for i := len(e.locals) - 1; i >= 0; i-- {
		if val, ok := e.locals[i][sym]; ok {
			return val, true
		}
	}
	return Term{}, false
}

func (e *Evaluator) Eval(t Term) (Term, error) {
	switch t.Kind() {
	case KindBranch:
		return e.evalBranch(t)
	case KindSym:
		return e.resolveSymbol(t.Sym())
	default:
		// Bool, Int, Native, Str, and Unit leaves are self-evaluating.
		return t, nil
	}
}

func (e *Evaluator) resolveSymbol(sym Symbol) (Term, error) {
	if val, ok := e.lookupLocal(sym); ok {
		return val, nil
	}
	if e.Resolve != nil {
		if val, ok := e.Resolve(sym); ok {
			return val, nil
		}
	}
	if fn, ok := e.Natives[sym]; ok {
		return NativeTerm(fn), nil
	}
	return Term{}, fmt.Errorf("%w: %s", ErrUnboundSymbol, sym)
}

func (e *Evaluator) evalBranch(t Term) (Term, error) {
	// A branch always has children; the empty sequence is the unit leaf.
	head := t.Sub(0)

	if head.Kind() == KindSym {
		switch head.Sym() {
		case symIf:
			return e.evalIf(t)
		case symLet:
			return e.evalLet(t)
		case symDo:
			return e.evalDo(t)
		case symLambda:
			return e.evalLambda(t)
		case symQuote:
			return e.evalQuote(t)
		case symCond:
			return e.evalCond(t)
		case symApply:
			return e.evalApply(t)
		}
	}

	headVal, err := e.Eval(head)
	if err != nil {
		return Term{}, err
	}
	fn, err := headVal.AsNative()
	if err != nil {
		if head.Kind() == KindSym {
			return Term{}, fmt.Errorf("cannot call %s: %w", head.Sym(), ErrNotCallable)
		}
		return Term{}, fmt.Errorf("cannot call %s term: %w", headVal.Kind(), ErrNotCallable)
	}

	args := make([]Term, t.Len()-1)
	for i, sub := range t.Subs()[1:] {
		val, err := e.Eval(sub)
		if err != nil {
			return Term{}, err
		}
		args[i] = val
	}
	return fn.Invoke(e, args)
}

// tailCall signals a tail call to the trampoline loop.
type tailCall struct {
	impl *nativeImpl
	args []Term
}

// callLambda is the TCO trampoline. It evaluates the lambda body in
// tail position; if the body ends in a call to another lambda, it loops
// instead of recursing.
func (e *Evaluator) callLambda(impl *nativeImpl, args []Term) (Term, error) {
	baseScope := len(e.locals)
	defer func() { e.locals = e.locals[:baseScope] }()

	for {
		lam := impl.lambda
		if len(args) != len(lam.params) {
			return Term{}, &ArityError{Name: impl.name, Want: len(lam.params), Got: len(args)}
		}

		// Reset scope to base (cleans up from previous iteration)
		e.locals = e.locals[:baseScope]

		if lam.closure != nil {
			e.pushScope(lam.closure)
		}

		bindings := make(map[Symbol]Term, len(lam.params))
		for i, param := range lam.params {
			bindings[param] = args[i]
		}
		e.pushScope(bindings)

		val, cont, err := e.evalTail(lam.body)
		if err != nil {
			return Term{}, err
		}
		if cont == nil {
			return val, nil
		}

		// Tail call: loop with the next lambda and its args
		impl = cont.impl
		args = cont.args
	}
}

// evalIf: (if cond then else) — uses Truthy, not Bool-only.
func (e *Evaluator) evalIf(t Term) (Term, error) {
	if t.Len() != 4 {
		return Term{}, fmt.Errorf("if: expected 3 args (cond then else), got %d", t.Len()-1)
	}
	cond, err := e.Eval(t.Sub(1))
	if err != nil {
		return Term{}, err
	}
	if cond.Truthy() {
		return e.Eval(t.Sub(2))
	}
	return e.Eval(t.Sub(3))
}

// evalLet: (let ((x expr1) (y expr2)) body) — sequential bindings.
func (e *Evaluator) evalLet(t Term) (Term, error) {
	if t.Len() != 3 {
		return Term{}, fmt.Errorf("let: expected bindings and body")
	}
	bindingsT := t.Sub(1)
	if !bindingsT.IsBranch() && bindingsT.Kind() != KindUnit {
		return Term{}, fmt.Errorf("let: bindings must be a list")
	}
	bindings := make(map[Symbol]Term, bindingsT.Len())
	e.pushScope(bindings)
	defer e.popScope()

	for _, pair := range bindingsT.Subs() {
		if !pair.IsBranch() || pair.Len() != 2 {
			return Term{}, fmt.Errorf("let: each binding must be (name expr)")
		}
		if pair.Sub(0).Kind() != KindSym {
			return Term{}, fmt.Errorf("let: binding name must be a symbol")
		}
		val, err := e.Eval(pair.Sub(1))
		if err != nil {
			return Term{}, err
		}
		bindings[pair.Sub(0).Sym()] = val
	}
	return e.Eval(t.Sub(2))
}

// evalDo: (do expr1 expr2 ... exprN) — eval all, return last.
func (e *Evaluator) evalDo(t Term) (Term, error) {
	if t.Len() < 2 {
		return Term{}, fmt.Errorf("do: expected at least one expression")
	}
	var result Term
	var err error
	for _, sub := range t.Subs()[1:] {
		result, err = e.Eval(sub)
		if err != nil {
			return Term{}, err
		}
	}
	return result, nil
}

// evalLambda: (lambda (params...) body) — create closure. The closure
// is materialized as a native handle, so applying it goes through the
// same path as a primitive.
func (e *Evaluator) evalLambda(t Term) (Term, error) {
	if t.Len() != 3 {
		return Term{}, fmt.Errorf("lambda: expected (lambda (params...) body)")
	}
	paramsT := t.Sub(1)
	var params []Symbol
	switch {
	case paramsT.IsBranch():
		params = make([]Symbol, paramsT.Len())
		for i, p := range paramsT.Subs() {
			sym, err := p.AsSym()
			if err != nil {
				return Term{}, fmt.Errorf("lambda: param names must be symbols: %w", err)
			}
			params[i] = sym
		}
	case paramsT.Kind() == KindUnit:
		// () reads as the unit leaf: a lambda of no parameters.
	default:
		return Term{}, fmt.Errorf("lambda: params must be a list")
	}

	// Capture enclosing local scope for closure.
	var closure map[Symbol]Term
	if len(e.locals) > 0 {
		closure = make(map[Symbol]Term)
		for _, scope := range e.locals {
			for k, v := range scope {
				closure[k] = v
			}
		}
	}
	impl := &nativeImpl{
		name:   "lambda",
		arity:  len(params),
		lambda: &lambdaFn{params: params, body: t.Sub(2), closure: closure},
	}
	return NativeTerm(NativeFn{impl: impl}), nil
}

// evalQuote: (quote expr) — return the expression unevaluated. Terms
// are their own representation, so no conversion is needed.
func (e *Evaluator) evalQuote(t Term) (Term, error) {
	if t.Len() != 2 {
		return Term{}, fmt.Errorf("quote: expected 1 arg")
	}
	return t.Sub(1), nil
}

// evalCond: (cond test1 expr1 test2 expr2 ...) — multi-way branch.
// Evaluates tests top to bottom, returns the expr for the first truthy
// test, unit when nothing matches.
func (e *Evaluator) evalCond(t Term) (Term, error) {
	args := t.Subs()[1:]
	if len(args) == 0 || len(args)%2 != 0 {
		return Term{}, fmt.Errorf("cond: expected even number of args (test/expr pairs), got %d", len(args))
	}
	for i := 0; i < len(args); i += 2 {
		test, err := e.Eval(args[i])
		if err != nil {
			return Term{}, err
		}
		if test.Truthy() {
			return e.Eval(args[i+1])
		}
	}
	return Term{}, nil
}

// evalApply: (apply fn list) — call fn with list elements as args.
func (e *Evaluator) evalApply(t Term) (Term, error) {
	if t.Len() != 3 {
		return Term{}, fmt.Errorf("apply: expected 2 args (fn list), got %d", t.Len()-1)
	}
	fnVal, err := e.Eval(t.Sub(1))
	if err != nil {
		return Term{}, err
	}
	fn, err := fnVal.AsNative()
	if err != nil {
		return Term{}, fmt.Errorf("apply: %w", err)
	}
	listVal, err := e.Eval(t.Sub(2))
	if err != nil {
		return Term{}, err
	}
	var args []Term
	switch {
	case listVal.IsBranch():
		args = listVal.Subs()
	case listVal.Kind() == KindUnit:
		// empty argument list
	default:
		return Term{}, fmt.Errorf("apply: second arg must be a list, got %s", listVal.Kind())
	}
	return fn.Invoke(e, args)
}

// --- Tail-call optimization (TCO) ---

// evalTail evaluates a term in tail position. Returns either a value or
// a tail-call continuation for the trampoline to execute.
func (e *Evaluator) evalTail(t Term) (Term, *tailCall, error) {
	if t.IsBranch() {
		return e.evalBranchTail(t)
	}
	// Leaves have no tail-call opportunity.
	val, err := e.Eval(t)
	return val, nil, err
}

func (e *Evaluator) evalBranchTail(t Term) (Term, *tailCall, error) {
	head := t.Sub(0)

	// Special forms with tail positions
	if head.Kind() == KindSym {
		switch head.Sym() {
		case symIf:
			return e.evalIfTail(t)
		case symLet:
			return e.evalLetTail(t)
		case symDo:
			return e.evalDoTail(t)
		case symCond:
			return e.evalCondTail(t)
		// Non-tail special forms: delegate to regular eval
		case symLambda, symQuote, symApply:
			val, err := e.evalBranch(t)
			return val, nil, err
		}
	}

	headVal, err := e.Eval(head)
	if err != nil {
		return Term{}, nil, err
	}
	fn, err := headVal.AsNative()
	if err != nil {
		if head.Kind() == KindSym {
			return Term{}, nil, fmt.Errorf("cannot call %s: %w", head.Sym(), ErrNotCallable)
		}
		return Term{}, nil, fmt.Errorf("cannot call %s term: %w", headVal.Kind(), ErrNotCallable)
	}

	args := make([]Term, t.Len()-1)
	for i, sub := range t.Subs()[1:] {
		val, err := e.Eval(sub)
		if err != nil {
			return Term{}, nil, err
		}
		args[i] = val
	}

	if fn.impl != nil && fn.impl.lambda != nil {
		// Tail call into a lambda: return continuation instead of calling
		return Term{}, &tailCall{impl: fn.impl, args: args}, nil
	}
	val, err := fn.Invoke(e, args)
	return val, nil, err
}

func (e *Evaluator) evalIfTail(t Term) (Term, *tailCall, error) {
	if t.Len() != 4 {
		return Term{}, nil, fmt.Errorf("if: expected 3 args (cond then else), got %d", t.Len()-1)
	}
	cond, err := e.Eval(t.Sub(1))
	if err != nil {
		return Term{}, nil, err
	}
	if cond.Truthy() {
		return e.evalTail(t.Sub(2))
	}
	return e.evalTail(t.Sub(3))
}

func (e *Evaluator) evalLetTail(t Term) (Term, *tailCall, error) {
	if t.Len() != 3 {
		return Term{}, nil, fmt.Errorf("let: expected bindings and body")
	}
	bindingsT := t.Sub(1)
	if !bindingsT.IsBranch() && bindingsT.Kind() != KindUnit {
		return Term{}, nil, fmt.Errorf("let: bindings must be a list")
	}
	bindings := make(map[Symbol]Term, bindingsT.Len())
	e.pushScope(bindings)
	// No popScope — the trampoline cleans up via baseScope

	for _, pair := range bindingsT.Subs() {
		if !pair.IsBranch() || pair.Len() != 2 {
			return Term{}, nil, fmt.Errorf("let: each binding must be (name expr)")
		}
		if pair.Sub(0).Kind() != KindSym {
			return Term{}, nil, fmt.Errorf("let: binding name must be a symbol")
		}
		val, err := e.Eval(pair.Sub(1))
		if err != nil {
			return Term{}, nil, err
		}
		bindings[pair.Sub(0).Sym()] = val
	}
	return e.evalTail(t.Sub(2))
}

func (e *Evaluator) evalDoTail(t Term) (Term, *tailCall, error) {
	if t.Len() < 2 {
		return Term{}, nil, fmt.Errorf("do: expected at least one expression")
	}
	subs := t.Subs()
	for _, sub := range subs[1 : len(subs)-1] {
		if _, err := e.Eval(sub); err != nil {
			return Term{}, nil, err
		}
	}
	return e.evalTail(subs[len(subs)-1])
}

func (e *Evaluator) evalCondTail(t Term) (Term, *tailCall, error) {
	args := t.Subs()[1:]
	if len(args) == 0 || len(args)%2 != 0 {
		return Term{}, nil, fmt.Errorf("cond: expected even number of args (test/expr pairs), got %d", len(args))
	}
	for i := 0; i < len(args); i += 2 {
		test, err := e.Eval(args[i])
		if err != nil {
			return Term{}, nil, err
		}
		if test.Truthy() {
			return e.evalTail(args[i+1])
		}
	}
	return Term{}, nil, nil
}

// EvalString parses a single expression and evaluates it.
func (e *Evaluator) EvalString(input string) (Term, error) {
	t, err := Parse(input)
	if err != nil {
		return Term{}, fmt.Errorf("parse error: %w", err)
	}
	return e.Eval(t)
}

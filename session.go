package rhema

import (
	"fmt"
	"sort"
)

type definition struct {
	source string
	term   Term
}

// Session binds named definitions to an evaluator and records traces.
// Definitions are kept as parsed terms and re-evaluated on every
// reference, so a definition may refer to names defined after it
// (including itself, for recursion). With a non-nil store, definitions
// persist and are replayed on the next open.
type Session struct {
	defs      map[Symbol]*definition
	store     Store
	eval      *Evaluator
	traces    []Trace
	maxTraces int
}

// NewSession creates a session over the given store. A nil store gives
// a memory-only session.
func NewSession(store Store, maxTraces int) (*Session, error) {
	s := &Session{
		defs:      make(map[Symbol]*definition),
		store:     store,
		maxTraces: maxTraces,
	}

	natives := Builtins()
	natives[Intern("traces")] = NewNative("traces", -1, s.builtinTraces)
	s.eval = &Evaluator{Natives: natives, Resolve: s.resolve}

	if store != nil {
		defs, err := store.ListDefinitions()
		if err != nil {
			return nil, fmt.Errorf("load definitions: %w", err)
		}
		for _, def := range defs {
			if err := s.bind(def.Name, def.Source); err != nil {
				return nil, fmt.Errorf("replay %s: %w", def.Name, err)
			}
		}
	}

	return s, nil
}

// resolve is the evaluator's hook for definition lookup. The stored
// term is evaluated fresh on each reference, so lambdas close over the
// current definitions and recursion works. Definitions are top-level
// bindings: the caller's locals are set aside for the evaluation, so a
// definition body never sees the scope at its use site.
func (s *Session) resolve(sym Symbol) (Term, bool) {
	def, ok := s.defs[sym]
	if !ok {
		return Term{}, false
	}

	saved := s.eval.locals
	s.eval.locals = nil
	defer func() { s.eval.locals = saved }()

	val, err := s.eval.Eval(def.term)
	if err != nil {
		return Term{}, false
	}
	return val, true
}

func (s *Session) bind(name, source string) error {
	term, err := Parse(source)
	if err != nil {
		return fmt.Errorf("parse error: %w", err)
	}
	s.defs[Intern(name)] = &definition{source: source, term: term}
	return nil
}

// Define parses and binds a named definition, persisting it when the
// session has a store.
func (s *Session) Define(name, source string) error {
	// Guard rail: reject builtin names
	if _, ok := s.eval.Natives[Intern(name)]; ok {
		return fmt.Errorf("define: cannot redefine builtin %s: %w", name, ErrDefinitionExists)
	}

	if err := s.bind(name, source); err != nil {
		return err
	}
	if s.store != nil {
		if err := s.store.SaveDefinition(name, source); err != nil {
			return fmt.Errorf("save definition: %w", err)
		}
	}
	return nil
}

// Delete unbinds a named definition and removes it from the store.
func (s *Session) Delete(name string) error {
	sym := Intern(name)
	if _, ok := s.defs[sym]; !ok {
		return fmt.Errorf("%w: %s", ErrNoSuchDefinition, name)
	}

	if s.store != nil {
		if err := s.store.DeleteDefinition(name); err != nil {
			return fmt.Errorf("delete definition: %w", err)
		}
	}
	delete(s.defs, sym)
	return nil
}

// Eval evaluates one expression and records a trace of the attempt,
// including parse failures.
func (s *Session) Eval(source string) (Term, error) {
	trace := newTrace(source)

	t, err := Parse(source)
	if err != nil {
		err = fmt.Errorf("parse error: %w", err)
		trace.Error = err.Error()
		s.appendTrace(&trace)
		return Term{}, err
	}

	val, err := s.eval.Eval(t)
	if err != nil {
		trace.Error = err.Error()
		s.appendTrace(&trace)
		return Term{}, err
	}

	trace.Result = val
	s.appendTrace(&trace)
	return val, nil
}

// Run evaluates one input, routing (define name expr) and
// (delete name) forms to the session so they persist. Anything else
// goes through Eval.
func (s *Session) Run(source string) (Term, error) {
	t, err := Parse(source)
	if err != nil {
		// Let Eval record the parse failure in a trace.
		return s.Eval(source)
	}

	if t.IsBranch() && t.Sub(0).Kind() == KindSym {
		switch t.Sub(0).Sym() {
		case symDefine:
			if t.Len() != 3 || t.Sub(1).Kind() != KindSym {
				return Term{}, fmt.Errorf("define: expected (define name expr)")
			}
			exprSource := extractDefineExpr(source)
			if exprSource == "" {
				return Term{}, fmt.Errorf("define: expected (define name expr)")
			}
			name := t.Sub(1).Sym()
			if err := s.Define(name.Name(), exprSource); err != nil {
				return Term{}, err
			}
			return SymTerm(name), nil
		case symDelete:
			if t.Len() != 2 || t.Sub(1).Kind() != KindSym {
				return Term{}, fmt.Errorf("delete: expected (delete name)")
			}
			name := t.Sub(1).Sym()
			if err := s.Delete(name.Name()); err != nil {
				return Term{}, err
			}
			return SymTerm(name), nil
		}
	}

	return s.Eval(source)
}

// List returns the defined names in sorted order.
func (s *Session) List() []string {
	names := make([]string, 0, len(s.defs))
	for sym := range s.defs {
		names = append(names, sym.Name())
	}
	sort.Strings(names)
	return names
}

// Lookup returns the source text of a definition.
func (s *Session) Lookup(name string) (string, bool) {
	def, ok := s.defs[Intern(name)]
	if !ok {
		return "", false
	}
	return def.source, true
}

// builtinTraces: (traces) or (traces N) — returns last N traces as a
// list of association lists.
func (s *Session) builtinTraces(_ *Evaluator, args []Term) (Term, error) {
	n := len(s.traces)
	if len(args) == 1 {
		limit, err := args[0].AsInt()
		if err != nil {
			return Term{}, fmt.Errorf("traces: %w", err)
		}
		if limit < 0 {
			limit = 0
		}
		if int(limit) < n {
			n = int(limit)
		}
	} else if len(args) > 1 {
		return Term{}, fmt.Errorf("traces: expected 0 or 1 args, got %d", len(args))
	}

	start := len(s.traces) - n
	result := make([]Term, n)
	for i := 0; i < n; i++ {
		result[i] = s.traces[start+i].ToTerm()
	}
	return BranchTerm(result...), nil
}

// Traces returns a copy of the recorded traces, oldest first.
func (s *Session) Traces() []Trace {
	out := make([]Trace, len(s.traces))
	copy(out, s.traces)
	return out
}

// appendTrace adds a trace and enforces the maxTraces cap.
func (s *Session) appendTrace(t *Trace) {
	s.traces = append(s.traces, *t)
	if s.maxTraces > 0 && len(s.traces) > s.maxTraces {
		// Drop oldest traces
		excess := len(s.traces) - s.maxTraces
		s.traces = s.traces[excess:]
	}
}

// Close closes the backing store, if any.
func (s *Session) Close() error {
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

// extractDefineExpr pulls the expression source text out of a
// "(define name expr)" input, preserving the user's original spelling
// for storage. It walks the input with the parser, so comments and
// string literals are handled exactly the way Parse handles them.
func extractDefineExpr(entry string) string {
	p := &parser{input: []rune(entry)}
	p.skipWhitespace()
	if p.pos >= len(p.input) || p.input[p.pos] != '(' {
		return ""
	}
	p.pos++ // skip '('

	p.skipWhitespace()
	head, err := p.parseTerm()
	if err != nil || head.Kind() != KindSym || head.Sym() != symDefine {
		return ""
	}
	p.skipWhitespace()
	name, err := p.parseTerm()
	if err != nil || name.Kind() != KindSym {
		return ""
	}

	p.skipWhitespace()
	start := p.pos
	if _, err := p.parseTerm(); err != nil {
		return ""
	}
	expr := string(p.input[start:p.pos])

	p.skipWhitespace()
	if p.pos >= len(p.input) || p.input[p.pos] != ')' {
		return ""
	}
	p.pos++ // skip ')'
	p.skipWhitespace()
	if p.pos < len(p.input) {
		return ""
	}
	return expr
}

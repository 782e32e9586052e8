package rhema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(t *testing.T, dir string) *Session {
	t.Helper()
	store, err := OpenStore("sqlite", dir)
	require.NoError(t, err)
	session, err := NewSession(store, 100)
	require.NoError(t, err)
	return session
}

func TestSessionDefineAndEval(t *testing.T) {
	s := newTestSession(t, t.TempDir())
	defer s.Close()

	require.NoError(t, s.Define("answer", "42"))
	val, err := s.Eval("answer")
	require.NoError(t, err)
	assert.True(t, TermsEqual(IntTerm(42), val))

	val, err = s.Eval("(add answer 8)")
	require.NoError(t, err)
	assert.True(t, TermsEqual(IntTerm(50), val))
}

func TestSessionRedefine(t *testing.T) {
	s := newTestSession(t, t.TempDir())
	defer s.Close()

	require.NoError(t, s.Define("x", "1"))
	require.NoError(t, s.Define("x", "2"))

	val, err := s.Eval("x")
	require.NoError(t, err)
	assert.True(t, TermsEqual(IntTerm(2), val))
}

func TestSessionDelete(t *testing.T) {
	s := newTestSession(t, t.TempDir())
	defer s.Close()

	require.NoError(t, s.Define("x", "1"))
	require.NoError(t, s.Delete("x"))

	_, err := s.Eval("x")
	assert.ErrorIs(t, err, ErrUnboundSymbol)

	assert.ErrorIs(t, s.Delete("x"), ErrNoSuchDefinition)
}

func TestSessionRejectsBuiltinRedefine(t *testing.T) {
	s := newTestSession(t, t.TempDir())
	defer s.Close()

	err := s.Define("add", "1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDefinitionExists)
	assert.Contains(t, err.Error(), "cannot redefine builtin")

	err = s.Define("traces", "1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDefinitionExists)
}

func TestSessionReplayAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	s := newTestSession(t, dir)
	require.NoError(t, s.Define("base", "10"))
	require.NoError(t, s.Define("doubled", "(mul base 2)"))
	require.NoError(t, s.Close())

	reopened := newTestSession(t, dir)
	defer reopened.Close()

	assert.ElementsMatch(t, []string{"base", "doubled"}, reopened.List())

	val, err := reopened.Eval("doubled")
	require.NoError(t, err)
	assert.True(t, TermsEqual(IntTerm(20), val))
}

// Definitions resolve late, so a definition may reference names that
// are defined after it.
func TestSessionForwardReference(t *testing.T) {
	s := newTestSession(t, t.TempDir())
	defer s.Close()

	require.NoError(t, s.Define("uses-later", "(add later 1)"))

	_, err := s.Eval("uses-later")
	require.Error(t, err)

	require.NoError(t, s.Define("later", "41"))
	val, err := s.Eval("uses-later")
	require.NoError(t, err)
	assert.True(t, TermsEqual(IntTerm(42), val))
}

func TestSessionRecursion(t *testing.T) {
	s := newTestSession(t, t.TempDir())
	defer s.Close()

	require.NoError(t, s.Define("fact",
		"(lambda (n) (if (eq n 0) 1 (mul n (fact (sub n 1)))))"))

	val, err := s.Eval("(fact 10)")
	require.NoError(t, err)
	assert.True(t, TermsEqual(IntTerm(3628800), val))
}

// Deep tail recursion must run in constant stack.
func TestSessionTailCallDepth(t *testing.T) {
	s := newTestSession(t, t.TempDir())
	defer s.Close()

	require.NoError(t, s.Define("countdown",
		"(lambda (n) (if (eq n 0) 0 (countdown (sub n 1))))"))

	val, err := s.Eval("(countdown 200000)")
	require.NoError(t, err)
	assert.True(t, TermsEqual(IntTerm(0), val))
}

func TestSessionMutualRecursion(t *testing.T) {
	s := newTestSession(t, t.TempDir())
	defer s.Close()

	require.NoError(t, s.Define("is-even",
		"(lambda (n) (if (eq n 0) true (is-odd (sub n 1))))"))
	require.NoError(t, s.Define("is-odd",
		"(lambda (n) (if (eq n 0) false (is-even (sub n 1))))"))

	val, err := s.Eval("(is-even 10)")
	require.NoError(t, err)
	assert.True(t, TermsEqual(BoolTerm(true), val))

	val, err = s.Eval("(is-even 7)")
	require.NoError(t, err)
	assert.True(t, TermsEqual(BoolTerm(false), val))
}

// A definition body resolves against other definitions only, never
// against the local scope at its use site.
func TestSessionDefinitionsIgnoreCallerScope(t *testing.T) {
	s := newTestSession(t, t.TempDir())
	defer s.Close()

	// y refers to an unbound x; a let binding at the use site must
	// not satisfy it.
	require.NoError(t, s.Define("y", "x"))
	_, err := s.Eval("(let ((x 5)) y)")
	assert.ErrorIs(t, err, ErrUnboundSymbol)

	// Same for lambda parameters at the call site: the body of addm
	// must not capture the caller's m.
	require.NoError(t, s.Define("addm", "(lambda (n) (add n m))"))
	_, err = s.Eval("((lambda (m) (addm 1)) 10)")
	assert.ErrorIs(t, err, ErrUnboundSymbol)

	// Once x is defined, y sees the definition, not the let binding.
	require.NoError(t, s.Define("x", "9"))
	val, err := s.Eval("(let ((x 5)) y)")
	require.NoError(t, err)
	assert.True(t, TermsEqual(IntTerm(9), val))
}

func TestSessionTraces(t *testing.T) {
	s := newTestSession(t, t.TempDir())
	defer s.Close()

	_, err := s.Eval("(add 1 2)")
	require.NoError(t, err)

	_, evalErr := s.Eval("(div 1 0)")
	require.Error(t, evalErr)

	traces := s.Traces()
	require.Len(t, traces, 2)
	assert.Equal(t, "(add 1 2)", traces[0].Entry)
	assert.Empty(t, traces[0].Error)
	assert.True(t, TermsEqual(IntTerm(3), traces[0].Result))
	assert.Equal(t, "(div 1 0)", traces[1].Entry)
	assert.Contains(t, traces[1].Error, "division by zero")
}

func TestSessionTracesBuiltin(t *testing.T) {
	s := newTestSession(t, t.TempDir())
	defer s.Close()

	_, err := s.Eval("(add 1 2)")
	require.NoError(t, err)
	_, err = s.Eval("(mul 2 3)")
	require.NoError(t, err)

	val, err := s.Eval("(traces 1)")
	require.NoError(t, err)
	require.True(t, val.IsBranch())
	require.Equal(t, 1, val.Len())
	assert.Equal(t, "(mul 2 3)", assocLookup(t, val.Sub(0), "entry").Str())

	val, err = s.Eval("(traces)")
	require.NoError(t, err)
	// The two evals plus the (traces 1) call before this one.
	assert.Equal(t, 3, val.Len())
}

func TestSessionTracesRecordParseErrors(t *testing.T) {
	s := newTestSession(t, t.TempDir())
	defer s.Close()

	_, err := s.Eval("(unclosed")
	require.Error(t, err)

	traces := s.Traces()
	require.Len(t, traces, 1)
	assert.Contains(t, traces[0].Error, "parse error")
}

func TestSessionRun(t *testing.T) {
	dir := t.TempDir()
	s := newTestSession(t, dir)

	val, err := s.Run("(define x 17)")
	require.NoError(t, err)
	assert.True(t, TermsEqual(SymTerm(Intern("x")), val))

	val, err = s.Run("(add x 3)")
	require.NoError(t, err)
	assert.True(t, TermsEqual(IntTerm(20), val))

	require.NoError(t, s.Close())

	// The define went through the store.
	reopened := newTestSession(t, dir)
	defer reopened.Close()
	val, err = reopened.Eval("x")
	require.NoError(t, err)
	assert.True(t, TermsEqual(IntTerm(17), val))

	val, err = reopened.Run("(delete x)")
	require.NoError(t, err)
	assert.True(t, TermsEqual(SymTerm(Intern("x")), val))
	_, err = reopened.Eval("x")
	assert.ErrorIs(t, err, ErrUnboundSymbol)
}

func TestSessionRunMalformedDefine(t *testing.T) {
	s := newTestSession(t, t.TempDir())
	defer s.Close()

	_, err := s.Run("(define)")
	require.Error(t, err)
	_, err = s.Run("(define 5 1)")
	require.Error(t, err)
	_, err = s.Run("(delete)")
	require.Error(t, err)
}

// Run stores the expression exactly as written, including nested
// structure.
func TestSessionRunPreservesSource(t *testing.T) {
	s := newTestSession(t, t.TempDir())
	defer s.Close()

	_, err := s.Run("(define inc (lambda (n) (add n 1)))")
	require.NoError(t, err)

	source, ok := s.Lookup("inc")
	require.True(t, ok)
	assert.Equal(t, "(lambda (n) (add n 1))", source)

	val, err := s.Eval("(inc 41)")
	require.NoError(t, err)
	assert.True(t, TermsEqual(IntTerm(42), val))
}

// Run accepts everything Parse accepts, including comments after and
// inside the define form.
func TestSessionRunDefineWithComments(t *testing.T) {
	s := newTestSession(t, t.TempDir())
	defer s.Close()

	val, err := s.Run("(define x 1) ; note")
	require.NoError(t, err)
	assert.True(t, TermsEqual(SymTerm(Intern("x")), val))

	source, ok := s.Lookup("x")
	require.True(t, ok)
	assert.Equal(t, "1", source)

	_, err = s.Run("(define y ; the answer\n  (add x 41))")
	require.NoError(t, err)
	source, ok = s.Lookup("y")
	require.True(t, ok)
	assert.Equal(t, "(add x 41)", source)

	val, err = s.Eval("y")
	require.NoError(t, err)
	assert.True(t, TermsEqual(IntTerm(42), val))
}

func TestSessionWithoutStore(t *testing.T) {
	s, err := NewSession(nil, 10)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Define("x", "5"))
	val, err := s.Eval("(add x 1)")
	require.NoError(t, err)
	assert.True(t, TermsEqual(IntTerm(6), val))
}

func TestSessionList(t *testing.T) {
	s := newTestSession(t, t.TempDir())
	defer s.Close()

	require.NoError(t, s.Define("zeta", "1"))
	require.NoError(t, s.Define("alpha", "2"))

	assert.Equal(t, []string{"alpha", "zeta"}, s.List())
}

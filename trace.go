package rhema

import (
	"time"

	"github.com/google/uuid"
)

// Trace captures the boundary points of a single eval: the source text
// that entered, the result or error that came out, and when. Terms are
// their own representation, so replaying the entry text reproduces the
// computation.
type Trace struct {
	ID        string // unique trace ID
	Entry     string // source text evaluated
	Result    Term   // final result term
	Error     string // non-empty on error
	Timestamp string // ISO 8601
}

func newTrace(entry string) Trace {
	return Trace{
		ID:        uuid.NewString(),
		Entry:     entry,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// ToTerm converts a Trace to an association list for the traces
// builtin: a branch of (key value) pairs keyed by symbol.
func (t *Trace) ToTerm() Term {
	pair := func(key string, val Term) Term {
		return BranchTerm(SymTerm(Intern(key)), val)
	}

	errTerm := New()
	if t.Error != "" {
		errTerm = StrTerm(t.Error)
	}

	return BranchTerm(
		pair("id", StrTerm(t.ID)),
		pair("entry", StrTerm(t.Entry)),
		pair("result", t.Result),
		pair("error", errTerm),
		pair("timestamp", StrTerm(t.Timestamp)),
	)
}

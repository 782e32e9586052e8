package rhema

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
)

var (
	// ErrTypeMismatch indicates a term held a different variant than the
	// caller asked for.
	ErrTypeMismatch = errors.New("term value type mismatch")

	// ErrUnboundSymbol indicates a symbol with no binding in scope.
	ErrUnboundSymbol = errors.New("unbound symbol")

	// ErrArity indicates a callable was applied to the wrong number of
	// arguments.
	ErrArity = errors.New("wrong number of arguments")

	// ErrNotCallable indicates the head of an application did not
	// evaluate to a native.
	ErrNotCallable = errors.New("not a callable")

	// ErrNoSuchDefinition indicates a definition name with no entry in
	// the session.
	ErrNoSuchDefinition = errors.New("no such definition")

	// ErrDefinitionExists indicates a definition name that is already
	// bound and cannot be rebound.
	ErrDefinitionExists = errors.New("definition already exists")

	// ErrBadStoreVersion indicates a store written under an
	// incompatible schema version.
	ErrBadStoreVersion = errors.New("store schema version mismatch")

	// ErrStoreClosed indicates an operation on a closed store.
	ErrStoreClosed = errors.New("store has been closed")

	// ErrBadArchive indicates an export document that cannot be
	// restored.
	ErrBadArchive = errors.New("invalid archive")
)

// TypeMismatchError reports an access through the wrong variant
// accessor. It is the only error the accessor protocol produces.
type TypeMismatchError struct {
	Want Kind
	Got  Kind
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("expected %s, got %s", e.Want, e.Got)
}

func (e *TypeMismatchError) Is(target error) bool { return target == ErrTypeMismatch }

// ArityError reports an application with the wrong argument count.
type ArityError struct {
	Name     string
	Want     int
	Got      int
	Variadic bool // Want is a minimum
}

func (e *ArityError) Error() string {
	if e.Variadic {
		return fmt.Sprintf("%s: expected at least %d args, got %d", e.Name, e.Want, e.Got)
	}
	return fmt.Sprintf("%s: expected %d args, got %d", e.Name, e.Want, e.Got)
}

func (e *ArityError) Is(target error) bool { return target == ErrArity }

// AssertError is returned by the assert primitive on failure. It
// implements error so it propagates through eval normally.
type AssertError struct {
	Message string
}

func (e *AssertError) Error() string {
	return fmt.Sprintf("assert failed: %s", e.Message)
}

// JoinErrors converts the error slice into a single error, preserving
// each message.
func JoinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	multiE := multierror.Append(errs[0], errs[1:]...)
	return multiE.ErrorOrNil()
}

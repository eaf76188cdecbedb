package gateway

import (
	"errors"
	"fmt"

	"github.com/joseph-ayodele/taix/internal/common"
	"github.com/joseph-ayodele/taix/internal/store"
)

// QueryError is every failure the gateway surfaces. It matches common.ErrQuery
// and unwraps to the store cause.
type QueryError struct {
	Op         string
	Collection string
	Err        error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Collection, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

func (e *QueryError) Is(target error) bool { return target == common.ErrQuery }

// InvalidInput reports whether the caller, not the store, is at fault.
func (e *QueryError) InvalidInput() bool {
	return errors.Is(e.Err, store.ErrUnknownField) ||
		errors.Is(e.Err, store.ErrUnknownCollection) ||
		errors.Is(e.Err, store.ErrInvalidFilter) ||
		errors.Is(e.Err, store.ErrInvalidCursor) ||
		errors.Is(e.Err, common.ErrValidation)
}

func queryError(op, collection string, err error) error {
	if err == nil {
		return nil
	}
	return &QueryError{Op: op, Collection: collection, Err: err}
}

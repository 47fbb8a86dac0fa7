package tree

import (
	"errors"
	"fmt"

	"github.com/hupe1980/simidx/node"
)

var (
	// ErrInvalidK is returned when k < 1.
	ErrInvalidK = errors.New("tree: k must be at least 1")

	// ErrInvalidRadius is returned for a negative range radius.
	ErrInvalidRadius = errors.New("tree: radius must not be negative")

	// ErrNotEmpty is returned when bulk loading a tree that already holds objects.
	ErrNotEmpty = errors.New("tree: bulk load requires an empty tree")

	// ErrNotFound is returned when deleting an object that is not indexed.
	ErrNotFound = errors.New("tree: object not found")

	// ErrCorrupt is wrapped by every CorruptionError.
	ErrCorrupt = errors.New("tree: corrupt")

	// ErrInternal signals a violated structural precondition inside the engine.
	ErrInternal = errors.New("tree: internal consistency error")

	// ErrDistanceMismatch is returned when a persisted tree was built with
	// another kind or distance function.
	ErrDistanceMismatch = errors.New("tree: distance mismatch")

	// ErrInvalidDistance is returned when a distance function cannot serve a tree kind.
	ErrInvalidDistance = errors.New("tree: invalid distance")

	// ErrInvalidConfig is returned for unusable capacity or fill settings.
	ErrInvalidConfig = errors.New("tree: invalid config")
)

// ErrDimensionMismatch is a named error type for dimension mismatch.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("tree: dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// CorruptionError reports a violated invariant found by Check.
type CorruptionError struct {
	Page   node.PageID
	Slot   int // -1 when the violation concerns the whole node
	Reason string
}

func (e *CorruptionError) Error() string {
	if e.Slot < 0 {
		return fmt.Sprintf("tree: corrupt %s: %s", e.Page, e.Reason)
	}
	return fmt.Sprintf("tree: corrupt %s slot %d: %s", e.Page, e.Slot, e.Reason)
}

func (e *CorruptionError) Unwrap() error { return ErrCorrupt }

func corruptf(page node.PageID, slot int, format string, args ...any) error {
	return &CorruptionError{Page: page, Slot: slot, Reason: fmt.Sprintf(format, args...)}
}

func internalf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInternal, fmt.Sprintf(format, args...))
}

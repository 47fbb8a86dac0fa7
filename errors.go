package simidx

import (
	"errors"
	"fmt"

	"github.com/hupe1980/simidx/internal/registry"
	"github.com/hupe1980/simidx/internal/tree"
	"github.com/hupe1980/simidx/objstore"
	"github.com/hupe1980/simidx/pagestore"
)

var (
	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")

	// ErrInvalidRadius is returned for a negative or NaN range radius.
	ErrInvalidRadius = errors.New("radius must not be negative")

	// ErrNotFound is returned when an object id is not live.
	ErrNotFound = errors.New("not found")

	// ErrNotEmpty is returned when bulk loading an index that already holds objects.
	ErrNotEmpty = errors.New("index is not empty")

	// ErrCorrupt is returned when Check finds a violated structural invariant.
	ErrCorrupt = errors.New("index is corrupt")

	// ErrDistanceMismatch is returned when a page store holds a tree built with
	// another kind or distance function.
	ErrDistanceMismatch = errors.New("distance mismatch")

	// ErrInvalidDistance is returned when a distance function cannot serve the
	// selected tree kind.
	ErrInvalidDistance = errors.New("invalid distance")

	// ErrInvalidConfig is returned for unusable structural settings.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrClosed is returned when using a closed index.
	ErrClosed = errors.New("index is closed")
)

// ErrDimensionMismatch indicates a vector/query dimensionality mismatch.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
	cause    error
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *ErrDimensionMismatch) Unwrap() error { return e.cause }

// CorruptionError locates a violation found by Check.
// It matches ErrCorrupt with errors.Is.
type CorruptionError struct {
	Page   uint64
	Slot   int // -1 when the violation concerns the whole node
	Reason string
	cause  error
}

func (e *CorruptionError) Error() string {
	if e.Slot < 0 {
		return fmt.Sprintf("corrupt page %d: %s", e.Page, e.Reason)
	}
	return fmt.Sprintf("corrupt page %d slot %d: %s", e.Page, e.Slot, e.Reason)
}

func (e *CorruptionError) Unwrap() []error { return []error{ErrCorrupt, e.cause} }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	// Not found unification.
	if errors.Is(err, tree.ErrNotFound) || errors.Is(err, registry.ErrUnknownID) || errors.Is(err, objstore.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	var dm *tree.ErrDimensionMismatch
	if errors.As(err, &dm) {
		return &ErrDimensionMismatch{Expected: dm.Expected, Actual: dm.Actual, cause: err}
	}
	var ce *tree.CorruptionError
	if errors.As(err, &ce) {
		return &CorruptionError{Page: uint64(ce.Page), Slot: ce.Slot, Reason: ce.Reason, cause: err}
	}

	switch {
	case errors.Is(err, tree.ErrInvalidK):
		return fmt.Errorf("%w: %w", ErrInvalidK, err)
	case errors.Is(err, tree.ErrInvalidRadius):
		return fmt.Errorf("%w: %w", ErrInvalidRadius, err)
	case errors.Is(err, tree.ErrNotEmpty):
		return fmt.Errorf("%w: %w", ErrNotEmpty, err)
	case errors.Is(err, tree.ErrCorrupt), errors.Is(err, tree.ErrInternal):
		return fmt.Errorf("%w: %w", ErrCorrupt, err)
	case errors.Is(err, tree.ErrDistanceMismatch):
		return fmt.Errorf("%w: %w", ErrDistanceMismatch, err)
	case errors.Is(err, tree.ErrInvalidDistance):
		return fmt.Errorf("%w: %w", ErrInvalidDistance, err)
	case errors.Is(err, tree.ErrInvalidConfig):
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	case errors.Is(err, pagestore.ErrClosed):
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}

	return err
}

package core

import (
	"errors"
	"fmt"
)

// Domain-level sentinel errors, independent of locator.Status: these are
// programmer-facing contract violations (bad lookups, malformed input),
// not location-run outcomes.
var (
	ErrNotFound        = errors.New("resource not found")
	ErrStationNotFound = fmt.Errorf("%w: station", ErrNotFound)
	ErrPickNotFound    = fmt.Errorf("%w: pick", ErrNotFound)

	ErrInvalidPick     = errors.New("invalid pick")
	ErrDepthOutOfRange = errors.New("depth outside configured range")
	ErrEmptyID         = errors.New("identifier must not be empty")
)

func errEmptyID(kind string) error {
	return fmt.Errorf("%w: %s", ErrEmptyID, kind)
}

// NewNotFoundError builds a contextual not-found error.
func NewNotFoundError(resource, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

// IsNotFoundError reports whether err is (or wraps) ErrNotFound.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

package ring

import (
	"fmt"

	"github.com/djdv/go-splitseq/internal/version"
)

type constError string

const (
	// ErrInvalidArgument is returned for negative or insufficient
	// capacities and non-positive removal counts.
	ErrInvalidArgument = constError("invalid argument")
	// ErrOutOfRange is returned when an index or count
	// does not fit within the ring's current length.
	ErrOutOfRange = constError("index out of range")
	// ErrConcurrentModification is reported by an [Enumerator]
	// whose ring was structurally modified after it was created.
	ErrConcurrentModification = version.ErrConcurrentModification
)

func (errStr constError) Error() string { return string(errStr) }

func indexError(index, length int) error {
	return fmt.Errorf(
		"%w: index %d is not within [0,%d)",
		ErrOutOfRange, index, length)
}

func countError(count, length int) error {
	if count < 1 {
		return fmt.Errorf(
			"%w: count must be >=1 but %d was requested",
			ErrInvalidArgument, count)
	}
	return fmt.Errorf(
		"%w: cannot remove %d items from a ring of length %d",
		ErrOutOfRange, count, length)
}

func capacityError(capacity, length int) error {
	return fmt.Errorf(
		"%w: capacity must be >=%d but %d was requested",
		ErrInvalidArgument, length, capacity)
}

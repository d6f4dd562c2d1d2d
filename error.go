package splitseq

import "fmt"

type constError string

const (
	// ErrInvalidOperation is wrapped by every error
	// caused by using a [Cache] or [Cursor] out of order.
	ErrInvalidOperation = constError("invalid operation")
	// ErrInvalidArgument may be returned from [Cache.Prefetch].
	ErrInvalidArgument = constError("invalid argument")
	// ErrNilSource may be returned from [New].
	ErrNilSource = constError("nil source")
)

var (
	// ErrLocked is returned when a cursor is requested
	// from a locked [Cache].
	ErrLocked = fmt.Errorf("%w: cache is locked to new cursors", ErrInvalidOperation)
	// ErrResetLocked is returned when resetting a [Cursor]
	// whose cache is locked.
	ErrResetLocked = fmt.Errorf("%w: cannot reset a cursor of a locked cache", ErrInvalidOperation)
	// ErrTrimmed is returned when a [Cursor] requests an item
	// that was already discarded from the cache.
	ErrTrimmed = fmt.Errorf("%w: no cached data for cursor", ErrInvalidOperation)
)

func (errStr constError) Error() string { return string(errStr) }

func trimmedError(index, minIndex, maxIndex int) error {
	return fmt.Errorf(
		"%w: index %d precedes the cached window [%d,%d)",
		ErrTrimmed, index, minIndex, maxIndex)
}

func countError(count int) error {
	return fmt.Errorf(
		"%w: count must be >=0 but %d was requested",
		ErrInvalidArgument, count)
}

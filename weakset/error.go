package weakset

import (
	"fmt"

	"github.com/djdv/go-splitseq/internal/version"
)

type constError string

const (
	// ErrInvalidArgument may be returned from [New].
	ErrInvalidArgument = constError("invalid argument")
	// ErrNilElement is returned when adding a nil element.
	ErrNilElement = constError("nil element")
	// ErrConcurrentModification is reported by an [Enumerator]
	// whose set was structurally modified after it was created.
	ErrConcurrentModification = version.ErrConcurrentModification
)

func (errStr constError) Error() string { return string(errStr) }

func capacityError(capacity int) error {
	return fmt.Errorf(
		"%w: capacity must be >=0 but %d was requested",
		ErrInvalidArgument, capacity)
}

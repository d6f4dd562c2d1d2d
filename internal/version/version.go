// Package version implements the structural-modification stamps shared by
// the ring, the weak set and their enumerators.
//
// Every structural mutation bumps a [Counter]; every enumerator takes a
// [Snapshot] when it is created and checks it before trusting its
// cached position.
package version

import "fmt"

type constError string

// ErrConcurrentModification is reported by enumerators whose
// collection was structurally modified after the enumerator was created.
const ErrConcurrentModification = constError("collection was modified; enumeration may not continue")

func (errStr constError) Error() string { return string(errStr) }

type (
	// Counter is embedded by collections and bumped on every
	// structural mutation. The zero value is ready to use.
	Counter struct{ stamp uint64 }
	// Snapshot pins a counter's stamp at the time it was taken.
	Snapshot struct {
		counter *Counter
		stamp   uint64
	}
)

// Bump records a structural mutation.
func (c *Counter) Bump() { c.stamp++ }

// Stamp returns the current value.
func (c *Counter) Stamp() uint64 { return c.stamp }

// Snapshot captures the current stamp.
func (c *Counter) Snapshot() Snapshot {
	return Snapshot{counter: c, stamp: c.stamp}
}

// Valid reports whether the counter has not moved since s was taken.
func (s Snapshot) Valid() bool {
	return s.counter != nil && s.counter.stamp == s.stamp
}

// Check returns [ErrConcurrentModification] if the counter moved.
func (s Snapshot) Check() error {
	if s.Valid() {
		return nil
	}
	if s.counter == nil {
		return fmt.Errorf("%w: enumerator was not initialized",
			ErrConcurrentModification)
	}
	return fmt.Errorf(
		"%w: stamp %d was taken but collection is at %d",
		ErrConcurrentModification, s.stamp, s.counter.stamp)
}

package splitseq

import "iter"

type (
	// Source is a forward-only, pull-based sequence.
	// Next returns the following item, or false once the sequence ends.
	// Close releases the source; it is called at most once by a [Cache].
	Source[T any] interface {
		Next() (T, bool)
		Close() error
	}
	pullSource[T any] struct {
		next func() (T, bool)
		stop func()
	}
)

// PullSource adapts a next/stop pair, such as the one returned
// by [iter.Pull], into a [Source]. stop may be nil.
func PullSource[T any](next func() (T, bool), stop func()) Source[T] {
	return pullSource[T]{next: next, stop: stop}
}

// SeqSource adapts a push iterator into a [Source].
func SeqSource[T any](seq iter.Seq[T]) Source[T] {
	next, stop := iter.Pull(seq)
	return PullSource(next, stop)
}

func (ps pullSource[T]) Next() (T, bool) { return ps.next() }

func (ps pullSource[T]) Close() error {
	if ps.stop != nil {
		ps.stop()
	}
	return nil
}

// disposer closes its source once, whether that happens through
// the cache or through the cache's cleanup after it became unreachable.
type disposer[T any] struct {
	source Source[T]
	closed bool
}

func (d *disposer[T]) dispose() error {
	if d.closed {
		return nil
	}
	d.closed = true
	return d.source.Close()
}

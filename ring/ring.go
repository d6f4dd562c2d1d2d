// Package ring implements a growable circular buffer with list semantics.
//
// A [Ring] is indexable, supports insertion and removal at arbitrary
// positions, and pushes/pops at either end in amortized constant time.
// Logical index i always lives at physical slot (start+i) % capacity.
//
// Concurrent access must be guarded by the caller.
package ring

import (
	"iter"

	"github.com/djdv/go-splitseq/internal/version"
)

type (
	// A Ring is a double-ended queue backed by a circular slice.
	// The zero value is an empty ring ready to use.
	Ring[T any] struct {
		items         []T
		start, length int
		version       version.Counter
	}
	// Enumerator walks a [Ring] from front to back.
	// It is invalidated by any structural change to the ring
	// made after it was created.
	// Constructed by [Ring.Enumerator].
	Enumerator[T any] struct {
		ring     *Ring[T]
		current  T
		err      error
		snapshot version.Snapshot
		index    int
	}
)

// DefaultCapacity is the capacity allocated by the first
// insertion into a zero-capacity ring.
const DefaultCapacity = 2

// New creates an empty [Ring] with room for capacity items.
func New[T any](capacity int) (*Ring[T], error) {
	if capacity < 0 {
		return nil, capacityError(capacity, 0)
	}
	return &Ring[T]{items: make([]T, capacity)}, nil
}

// From creates a [Ring] holding the values of seq, in order.
func From[T any](seq iter.Seq[T]) *Ring[T] {
	r := new(Ring[T])
	for value := range seq {
		r.Enqueue(value)
	}
	return r
}

// physical maps a logical index to its slot in r.items.
// All index arithmetic goes through here.
func (r *Ring[_]) physical(logical int) int {
	return (r.start + logical) % len(r.items)
}

// Len returns the number of items in the ring.
func (r *Ring[_]) Len() int { return r.length }

// Capacity returns the number of items the ring
// can hold before it must grow.
func (r *Ring[_]) Capacity() int { return len(r.items) }

// SetCapacity reallocates the backing storage to hold exactly capacity
// items. The ring is re-linearized so its front is at slot 0.
func (r *Ring[T]) SetCapacity(capacity int) error {
	if capacity < 0 || capacity < r.length {
		return capacityError(capacity, r.length)
	}
	if capacity == len(r.items) {
		return nil
	}
	r.resize(capacity)
	return nil
}

func (r *Ring[T]) resize(capacity int) {
	items := make([]T, capacity)
	r.copyOut(0, items[:r.length])
	r.items = items
	r.start = 0
	r.version.Bump()
}

// reserve makes room for at least one more item.
func (r *Ring[T]) reserve() {
	capacity := len(r.items)
	if r.length < capacity {
		return
	}
	r.resize(max(capacity*2, DefaultCapacity))
}

// Get returns the item at index.
func (r *Ring[T]) Get(index int) (T, error) {
	if index < 0 || index >= r.length {
		var zero T
		return zero, indexError(index, r.length)
	}
	return r.items[r.physical(index)], nil
}

// Set replaces the item at index.
// Replacing an item is not a structural change.
func (r *Ring[T]) Set(index int, value T) error {
	if index < 0 || index >= r.length {
		return indexError(index, r.length)
	}
	r.items[r.physical(index)] = value
	return nil
}

// Unshift inserts value at the front of the ring.
func (r *Ring[T]) Unshift(value T) {
	r.reserve()
	capacity := len(r.items)
	r.start = (r.start + capacity - 1) % capacity
	r.items[r.start] = value
	r.length++
	r.version.Bump()
}

// Enqueue inserts value at the back of the ring.
func (r *Ring[T]) Enqueue(value T) {
	r.reserve()
	r.items[r.physical(r.length)] = value
	r.length++
	r.version.Bump()
}

// Dequeue removes count items from the front of the ring
// and returns the last one removed (the item previously at count-1).
func (r *Ring[T]) Dequeue(count int) (T, error) {
	if count < 1 || count > r.length {
		var zero T
		return zero, countError(count, r.length)
	}
	last := r.items[r.physical(count-1)]
	r.clearRange(0, count)
	r.start = r.physical(count)
	r.length -= count
	r.version.Bump()
	return last, nil
}

// Pop removes count items from the back of the ring
// and returns the last one removed (the item previously at Len()-count).
func (r *Ring[T]) Pop(count int) (T, error) {
	if count < 1 || count > r.length {
		var zero T
		return zero, countError(count, r.length)
	}
	offset := r.length - count
	last := r.items[r.physical(offset)]
	r.clearRange(offset, count)
	r.length = offset
	r.version.Bump()
	return last, nil
}

// Insert places value at index, shifting whichever side
// of the ring is shorter to make room.
// Index may equal Len(), which appends.
func (r *Ring[T]) Insert(index int, value T) error {
	switch {
	case index < 0 || index > r.length:
		return indexError(index, r.length+1)
	case index == 0:
		r.Unshift(value)
		return nil
	case index == r.length:
		r.Enqueue(value)
		return nil
	}
	r.reserve()
	if index < r.length/2 {
		// Open a slot before the front and pull
		// the first index items down into it.
		capacity := len(r.items)
		r.start = (r.start + capacity - 1) % capacity
		r.length++
		r.move(0, 1, index)
	} else {
		r.length++
		r.move(index+1, index, r.length-index-1)
	}
	r.items[r.physical(index)] = value
	r.version.Bump()
	r.checkInvariants()
	return nil
}

// RemoveAt removes and returns the item at index, shifting
// whichever side of the ring is shorter to close the gap.
func (r *Ring[T]) RemoveAt(index int) (T, error) {
	switch {
	case index < 0 || index >= r.length:
		var zero T
		return zero, indexError(index, r.length)
	case index == 0:
		return r.Dequeue(1)
	case index == r.length-1:
		return r.Pop(1)
	}
	removed := r.items[r.physical(index)]
	if index < r.length/2 {
		r.move(1, 0, index)
		r.clearRange(0, 1)
		r.start = r.physical(1)
	} else {
		r.move(index, index+1, r.length-index-1)
		r.clearRange(r.length-1, 1)
	}
	r.length--
	r.version.Bump()
	r.checkInvariants()
	return removed, nil
}

// IndexFunc returns the first index i satisfying match(r[i]),
// or -1 if none do.
func (r *Ring[T]) IndexFunc(match func(T) bool) int {
	for i := range r.length {
		if match(r.items[r.physical(i)]) {
			return i
		}
	}
	return -1
}

// ContainsFunc reports whether at least one item satisfies match.
func (r *Ring[T]) ContainsFunc(match func(T) bool) bool {
	return r.IndexFunc(match) >= 0
}

// RemoveFunc removes the first item satisfying match.
// It reports whether an item was removed.
func (r *Ring[T]) RemoveFunc(match func(T) bool) bool {
	index := r.IndexFunc(match)
	if index < 0 {
		return false
	}
	_, err := r.RemoveAt(index)
	return err == nil
}

// Clear removes all items, retaining capacity.
func (r *Ring[T]) Clear() {
	clear(r.items)
	r.start = 0
	r.length = 0
	r.version.Bump()
}

// CopyTo copies items starting at logical offset into dst
// and returns the number of items copied.
func (r *Ring[T]) CopyTo(offset int, dst []T) (int, error) {
	if offset < 0 || offset > r.length {
		return 0, indexError(offset, r.length+1)
	}
	count := min(len(dst), r.length-offset)
	if count == 0 {
		return 0, nil
	}
	r.copyOut(offset, dst[:count])
	return count, nil
}

// copyOut fills dst with the len(dst) items starting at offset.
func (r *Ring[T]) copyOut(offset int, dst []T) {
	if len(dst) == 0 {
		return
	}
	var (
		from  = r.physical(offset)
		first = min(len(dst), len(r.items)-from)
	)
	copy(dst, r.items[from:from+first])
	copy(dst[first:], r.items[:len(dst)-first])
}

// clearRange zeroes count slots starting at logical offset
// so the ring stops referencing removed items.
func (r *Ring[T]) clearRange(offset, count int) {
	var (
		from  = r.physical(offset)
		first = min(count, len(r.items)-from)
	)
	clear(r.items[from : from+first])
	clear(r.items[:count-first])
}

// move copies count items from logical index src to logical index dst,
// one contiguous run at a time. Runs are copied in the order that keeps
// overlapping source items intact.
func (r *Ring[T]) move(dst, src, count int) {
	capacity := len(r.items)
	if dst < src {
		for count > 0 {
			var (
				from = r.physical(src)
				to   = r.physical(dst)
				run  = min(count, capacity-from, capacity-to)
			)
			copy(r.items[to:to+run], r.items[from:from+run])
			src += run
			dst += run
			count -= run
		}
		return
	}
	for count > 0 {
		var (
			fromEnd = r.physical(src+count-1) + 1
			toEnd   = r.physical(dst+count-1) + 1
			run     = min(count, fromEnd, toEnd)
		)
		copy(r.items[toEnd-run:toEnd], r.items[fromEnd-run:fromEnd])
		count -= run
	}
}

func (r *Ring[_]) checkInvariants() {
	if debugging {
		assert(r.length <= len(r.items),
			"ring length exceeds capacity")
		assert(r.length == 0 || (r.start >= 0 && r.start < len(r.items)),
			"ring start is outside of its backing storage")
	}
}

// Enumerator returns an [Enumerator] positioned before the front item.
func (r *Ring[T]) Enumerator() *Enumerator[T] {
	return &Enumerator[T]{
		ring:     r,
		snapshot: r.version.Snapshot(),
		index:    -1,
	}
}

// All returns an iterator over index/item pairs, front to back.
// It panics with [ErrConcurrentModification] if the ring
// is structurally modified during iteration.
func (r *Ring[T]) All() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		enumerator := r.Enumerator()
		for enumerator.Next() {
			if !yield(enumerator.index, enumerator.current) {
				return
			}
		}
		if err := enumerator.Err(); err != nil {
			panic(err)
		}
	}
}

// Next advances to the next item, returning false
// at the end of the ring or if the ring was modified.
func (e *Enumerator[T]) Next() bool {
	var zero T
	if e.err != nil {
		return false
	}
	if err := e.snapshot.Check(); err != nil {
		e.err = err
		e.current = zero
		return false
	}
	r := e.ring
	if e.index+1 < r.length {
		e.index++
		e.current = r.items[r.physical(e.index)]
		return true
	}
	e.index = r.length
	e.current = zero
	return false
}

// Value returns the item most recently produced by Next.
func (e *Enumerator[T]) Value() T { return e.current }

// Err returns the error that stopped the enumerator, if any.
func (e *Enumerator[T]) Err() error { return e.err }

// Reset repositions the enumerator before the front item.
func (e *Enumerator[T]) Reset() error {
	if err := e.snapshot.Check(); err != nil {
		e.err = err
		return err
	}
	var zero T
	e.index = -1
	e.current = zero
	return nil
}

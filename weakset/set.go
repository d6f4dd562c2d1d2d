// Package weakset implements a hash set whose elements are held weakly.
//
// Membership lapses once nothing outside of the set keeps an element
// reachable. Lapsed entries are reclaimed lazily: any probe that walks
// over one unlinks it, and [Set.Cleanup] sweeps the whole table.
// Every read path treats "present but collected" as ordinary data.
//
// Concurrent access must be guarded by the caller.
package weakset

import (
	"fmt"
	"iter"
	"math"
	"weak"

	"github.com/djdv/go-splitseq/internal/primes"
	"github.com/djdv/go-splitseq/internal/version"
)

type (
	// Set holds weak references to distinct elements.
	// Constructed by [New].
	Set[T any] struct {
		comparer Comparer[T]
		alive    func(*T) bool
		// buckets hold slot index + 1 of each chain's head;
		// 0 marks an empty chain.
		buckets []int
		slots   []slot[T]
		count, lastIndex, freeList int
		version                    version.Counter
	}
	// slot is either linked into a bucket chain,
	// or free (hash == -1) and linked into the free list.
	slot[T any] struct {
		ref        weak.Pointer[T]
		hash, next int
	}
	// Enumerator walks the live elements of a [Set].
	// It is invalidated by any structural change to the set
	// made after it was created.
	// Constructed by [Set.Enumerator].
	Enumerator[T any] struct {
		set      *Set[T]
		current  *T
		err      error
		snapshot version.Snapshot
		index    int
	}
)

const (
	freeHash  = -1
	endOfList = -1
)

// New creates an empty [Set].
func New[T any](opts ...Option[T]) (*Set[T], error) {
	settings := options[T]{comparer: Identity[T]()}
	for _, apply := range opts {
		apply(&settings)
	}
	if settings.comparer.Hash == nil || settings.comparer.Equal == nil {
		return nil, fmt.Errorf("%w: comparer is incomplete", ErrInvalidArgument)
	}
	if settings.capacity < 0 {
		return nil, capacityError(settings.capacity)
	}
	set := &Set[T]{
		comparer: settings.comparer,
		alive:    settings.alive,
		freeList: endOfList,
	}
	if settings.capacity > 0 {
		size, err := primes.AtLeast(settings.capacity)
		if err != nil {
			return nil, err
		}
		set.allocate(size)
	}
	return set, nil
}

func (s *Set[T]) allocate(size int) {
	s.buckets = make([]int, size)
	s.slots = make([]slot[T], size)
}

func (s *Set[T]) hash(element *T) int {
	return int(s.comparer.Hash(element) & math.MaxInt)
}

// target returns the element held by entry,
// or nil if it has been collected or retired.
func (s *Set[T]) target(entry *slot[T]) *T {
	if entry.hash == freeHash {
		return nil
	}
	element := entry.ref.Value()
	if element == nil ||
		(s.alive != nil && !s.alive(element)) {
		return nil
	}
	return element
}

// find walks the chain for hash, unlinking every lapsed slot it meets.
// It returns the bucket, and if found, the matching slot and its predecessor.
func (s *Set[T]) find(element *T, hash int) (bucket, index, previous int, found bool) {
	if s.buckets == nil {
		size, _ := primes.AtLeast(0)
		s.allocate(size)
	}
	bucket = hash % len(s.buckets)
	previous = endOfList
	for index = s.buckets[bucket] - 1; index >= 0; {
		var (
			entry  = &s.slots[index]
			next   = entry.next
			target = s.target(entry)
		)
		if target == nil {
			s.unlink(bucket, index, previous)
			index = next
			continue
		}
		if entry.hash == hash &&
			s.comparer.Equal(target, element) {
			return bucket, index, previous, true
		}
		previous = index
		index = next
	}
	return bucket, endOfList, endOfList, false
}

// unlink removes slot index from bucket's chain
// and pushes it on the free list.
func (s *Set[T]) unlink(bucket, index, previous int) {
	entry := &s.slots[index]
	if previous < 0 {
		s.buckets[bucket] = entry.next + 1
	} else {
		s.slots[previous].next = entry.next
	}
	*entry = slot[T]{hash: freeHash, next: s.freeList}
	s.count--
	if s.count == 0 {
		s.lastIndex = 0
		s.freeList = endOfList
	} else {
		s.freeList = index
	}
}

// Add inserts element if no equal live element is present.
// It reports whether the set changed.
func (s *Set[T]) Add(element *T) (bool, error) {
	if element == nil {
		return false, ErrNilElement
	}
	hash := s.hash(element)
	bucket, _, _, found := s.find(element, hash)
	if found {
		return false, nil
	}
	index, bucket := s.claim(hash, bucket)
	s.slots[index] = slot[T]{
		ref:  weak.Make(element),
		hash: hash,
		next: s.buckets[bucket] - 1,
	}
	s.buckets[bucket] = index + 1
	s.count++
	s.version.Bump()
	return true, nil
}

// claim returns a free slot, growing the table if none remain.
// Growing rehashes, so the bucket for hash is returned as well.
func (s *Set[T]) claim(hash, bucket int) (int, int) {
	if s.lastIndex == len(s.slots) &&
		s.freeList < 0 {
		if s.sweep() == 0 {
			s.grow()
			bucket = hash % len(s.buckets)
		}
	}
	if s.freeList >= 0 {
		index := s.freeList
		s.freeList = s.slots[index].next
		return index, bucket
	}
	index := s.lastIndex
	s.lastIndex++
	return index, bucket
}

func (s *Set[T]) grow() {
	var (
		size    = primes.Expand(len(s.slots))
		slots   = make([]slot[T], size)
		buckets = make([]int, size)
	)
	copy(slots, s.slots[:s.lastIndex])
	for i := range s.lastIndex {
		entry := &slots[i]
		if entry.hash == freeHash {
			continue
		}
		bucket := entry.hash % size
		entry.next = buckets[bucket] - 1
		buckets[bucket] = i + 1
	}
	s.slots = slots
	s.buckets = buckets
}

// Contains reports whether a live element equal to element is present.
func (s *Set[T]) Contains(element *T) bool {
	if element == nil || s.count == 0 {
		return false
	}
	_, _, _, found := s.find(element, s.hash(element))
	return found
}

// Remove deletes the live element equal to element.
// It reports whether one was present.
func (s *Set[T]) Remove(element *T) bool {
	if element == nil || s.count == 0 {
		return false
	}
	bucket, index, previous, found := s.find(element, s.hash(element))
	if !found {
		return false
	}
	s.unlink(bucket, index, previous)
	s.version.Bump()
	return true
}

// Cleanup unlinks every lapsed element and
// returns the number of slots reclaimed.
func (s *Set[T]) Cleanup() int {
	removed := s.sweep()
	if removed > 0 {
		s.version.Bump()
	}
	return removed
}

func (s *Set[T]) sweep() int {
	removed := 0
	for bucket := range s.buckets {
		previous := endOfList
		for index := s.buckets[bucket] - 1; index >= 0; {
			next := s.slots[index].next
			if s.target(&s.slots[index]) == nil {
				s.unlink(bucket, index, previous)
				removed++
			} else {
				previous = index
			}
			index = next
		}
	}
	return removed
}

// Clear drops every element and the table storing them.
func (s *Set[T]) Clear() {
	s.buckets = nil
	s.slots = nil
	s.count = 0
	s.lastIndex = 0
	s.freeList = endOfList
	s.version.Bump()
}

// Len returns the number of occupied slots.
// Elements collected since the last probe or [Set.Cleanup]
// are still counted.
func (s *Set[_]) Len() int { return s.count }

// AppendTo appends the live elements to dst and returns the result.
func (s *Set[T]) AppendTo(dst []*T) []*T {
	for i := range s.lastIndex {
		if element := s.target(&s.slots[i]); element != nil {
			dst = append(dst, element)
		}
	}
	return dst
}

// Enumerator returns an [Enumerator] positioned before the first element.
func (s *Set[T]) Enumerator() *Enumerator[T] {
	return &Enumerator[T]{
		set:      s,
		snapshot: s.version.Snapshot(),
	}
}

// All returns an iterator over the live elements, in slot order.
// It panics with [ErrConcurrentModification] if the set
// is structurally modified during iteration.
func (s *Set[T]) All() iter.Seq[*T] {
	return func(yield func(*T) bool) {
		enumerator := s.Enumerator()
		for enumerator.Next() {
			if !yield(enumerator.current) {
				return
			}
		}
		if err := enumerator.Err(); err != nil {
			panic(err)
		}
	}
}

// Next advances to the next live element, returning false
// at the end of the set or if the set was modified.
func (e *Enumerator[T]) Next() bool {
	e.current = nil
	if e.err != nil {
		return false
	}
	if err := e.snapshot.Check(); err != nil {
		e.err = err
		return false
	}
	s := e.set
	for e.index < s.lastIndex {
		element := s.target(&s.slots[e.index])
		e.index++
		if element != nil {
			e.current = element
			return true
		}
	}
	return false
}

// Value returns the element most recently produced by Next.
func (e *Enumerator[T]) Value() *T { return e.current }

// Err returns the error that stopped the enumerator, if any.
func (e *Enumerator[T]) Err() error { return e.err }

// Reset repositions the enumerator before the first element.
func (e *Enumerator[T]) Reset() error {
	if err := e.snapshot.Check(); err != nil {
		e.err = err
		return err
	}
	e.index = 0
	e.current = nil
	return nil
}

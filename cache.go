package splitseq

import (
	"iter"
	"math"
	"runtime"

	"github.com/djdv/go-splitseq/ring"
	"github.com/djdv/go-splitseq/weakset"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type (
	// Cache lets multiple [Cursor]s traverse a single [Source]
	// at independent paces without re-reading it.
	// Concurrent access must be guarded by the caller.
	// Constructed by [New] or [Split].
	Cache[T any] struct {
		source   *disposer[T]
		cleanup  runtime.Cleanup
		items    *ring.Ring[T]
		cursors  *weakset.Set[Cursor[T]]
		log      *zap.Logger
		minIndex, maxIndex,
		reads int
		locked, exhausted bool
	}
	// Cursor is an independent read position over a [Cache].
	// The cache only references cursors weakly; an unreachable
	// cursor stops holding items in the cache.
	// Constructed by [Cache.NewCursor] or [Cache.NewFinalCursor].
	Cursor[T any] struct {
		parent   *Cache[T]
		id       uuid.UUID
		position int
	}
	// orphan is everything the cleanup of an unreachable
	// cache needs; it must not reference the cache itself.
	orphan[T any] struct {
		source *disposer[T]
		log    *zap.Logger
	}
)

// New creates a [Cache] reading from source.
// If the cache becomes unreachable before the source was
// fully consumed or otherwise released, the source is closed
// by the garbage collector.
func New[T any](source Source[T], opts ...Option) (*Cache[T], error) {
	if source == nil {
		return nil, ErrNilSource
	}
	settings := defaultOptions()
	for _, apply := range opts {
		apply(&settings)
	}
	items, err := ring.New[T](settings.capacity)
	if err != nil {
		return nil, err
	}
	var cursorOpts []weakset.Option[Cursor[T]]
	if alive := settings.alive; alive != nil {
		cursorOpts = append(cursorOpts,
			weakset.WithLiveness(func(cursor *Cursor[T]) bool {
				return alive(cursor.id)
			}))
	}
	cursors, err := weakset.New(cursorOpts...)
	if err != nil {
		return nil, err
	}
	c := &Cache[T]{
		source:  &disposer[T]{source: source},
		items:   items,
		cursors: cursors,
		log:     settings.log,
	}
	c.cleanup = runtime.AddCleanup(c, disposeOrphan[T], orphan[T]{
		source: c.source,
		log:    c.log,
	})
	return c, nil
}

// Split creates a [Cache] over seq.
func Split[T any](seq iter.Seq[T], opts ...Option) *Cache[T] {
	c, err := New(SeqSource(seq), opts...)
	if err != nil {
		panic(err) // SeqSource never returns nil.
	}
	return c
}

func disposeOrphan[T any](o orphan[T]) {
	if o.source.closed {
		return
	}
	o.log.Debug("disposing source of unreachable cache")
	if err := o.source.dispose(); err != nil {
		o.log.Warn("failed to close source of unreachable cache", zap.Error(err))
	}
}

// NewCursor returns a [Cursor] positioned before the first item.
func (c *Cache[T]) NewCursor() (*Cursor[T], error) {
	if c.locked {
		return nil, ErrLocked
	}
	cursor := &Cursor[T]{
		parent:   c,
		id:       uuid.New(),
		position: -1,
	}
	if _, err := c.cursors.Add(cursor); err != nil {
		return nil, err
	}
	return cursor, nil
}

// NewFinalCursor returns a [Cursor] like [Cache.NewCursor]
// and then locks the cache; it is the last cursor the cache will hand out.
func (c *Cache[T]) NewFinalCursor() (*Cursor[T], error) {
	cursor, err := c.NewCursor()
	if err != nil {
		return nil, err
	}
	return cursor, c.Lock()
}

// Lock prevents new cursors from being created,
// which allows items no remaining cursor needs to be discarded.
// Locking a locked cache has no effect.
func (c *Cache[T]) Lock() error {
	if c.locked {
		return nil
	}
	c.locked = true
	c.cursors.Cleanup()
	c.log.Debug("cache locked",
		zap.Int("cursors", c.cursors.Len()),
		zap.Int("min", c.minIndex),
		zap.Int("max", c.maxIndex),
	)
	return c.trim()
}

// Locked reports whether the cache has been locked.
func (c *Cache[T]) Locked() bool { return c.locked }

// Exhausted reports whether the source has been released,
// either because it ended or because no cursor needs it anymore.
func (c *Cache[T]) Exhausted() bool { return c.exhausted }

// Window returns the range of indices [min, max) currently cached.
func (c *Cache[T]) Window() (int, int) { return c.minIndex, c.maxIndex }

// Reads returns the number of items pulled from the source.
func (c *Cache[T]) Reads() int { return c.reads }

// Prefetch pulls up to count items from the source into the cache,
// stopping early if the source ends.
func (c *Cache[T]) Prefetch(count int) error {
	if count < 0 {
		return countError(count)
	}
	for ; count > 0; count-- {
		_, ok, err := c.pull()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
	}
	return c.trim()
}

// Close releases the source early.
// Items already cached remain readable; cursors
// that reach the end of them observe the end of the sequence.
func (c *Cache[T]) Close() error {
	return c.exhaust("closed")
}

func (c *Cache[T]) step(cursor *Cursor[T]) (T, bool, error) {
	var (
		zero T
		next = cursor.position + 1
	)
	if next < c.minIndex {
		c.log.Warn("cursor fell behind the cached window",
			zap.Stringer("cursor", cursor.id),
			zap.Int("index", next),
			zap.Int("min", c.minIndex),
		)
		return zero, false, trimmedError(next, c.minIndex, c.maxIndex)
	}
	if next < c.maxIndex {
		value, err := c.items.Get(next - c.minIndex)
		if err != nil {
			return zero, false, err
		}
		cursor.position = next
		return value, true, c.trim()
	}
	if debugging {
		assert(next == c.maxIndex,
			"cursor is ahead of the cached window")
	}
	value, ok, err := c.pull()
	if !ok {
		return zero, false, err
	}
	cursor.position = next
	return value, true, c.trim()
}

// pull appends the source's next item to the cache.
// On the end of the source, it releases the source.
func (c *Cache[T]) pull() (T, bool, error) {
	var zero T
	if c.exhausted {
		return zero, false, nil
	}
	value, ok := c.source.source.Next()
	if !ok {
		return zero, false, c.exhaust("source ended")
	}
	c.items.Enqueue(value)
	c.maxIndex++
	c.reads++
	return value, true, nil
}

// exhaust releases the source if it has not been already.
func (c *Cache[T]) exhaust(reason string) error {
	if c.exhausted {
		return nil
	}
	c.exhausted = true
	c.cleanup.Stop()
	err := c.source.dispose()
	c.log.Debug("source released",
		zap.String("reason", reason),
		zap.Int("reads", c.reads),
		zap.Error(err),
	)
	return err
}

// trim discards cached items that precede every live cursor.
// If no live cursor remains, the source and cache are dropped entirely.
func (c *Cache[T]) trim() error {
	if !c.locked {
		return nil
	}
	var (
		newMin = math.MaxInt
		live   bool
	)
	for cursor := range c.cursors.All() {
		live = true
		newMin = min(newMin, cursor.position)
	}
	if !live {
		return c.abandon()
	}
	if newMin <= c.minIndex {
		return nil
	}
	if _, err := c.items.Dequeue(newMin - c.minIndex); err != nil {
		return err
	}
	c.log.Debug("cache trimmed",
		zap.Int("from", c.minIndex),
		zap.Int("to", newMin),
	)
	c.minIndex = newMin
	if debugging {
		assert(c.items.Len() == c.maxIndex-c.minIndex,
			"cached items do not match the cached window")
	}
	return nil
}

// abandon releases the source even if it still has unread items;
// a locked cache with no live cursors can never be read again.
func (c *Cache[T]) abandon() error {
	err := c.exhaust("no live cursors")
	c.items.Clear()
	c.minIndex = c.maxIndex
	return err
}

// ID identifies the cursor in logs and liveness predicates.
func (cursor *Cursor[T]) ID() uuid.UUID { return cursor.id }

// Position returns the index of the item most recently
// returned by Step, or -1 before the first step.
func (cursor *Cursor[T]) Position() int { return cursor.position }

// Step advances the cursor and returns the next item.
// It returns false at the end of the sequence.
// The returned error may accompany a valid item when releasing
// the source or trimming the cache failed after it was read.
func (cursor *Cursor[T]) Step() (T, bool, error) {
	return cursor.parent.step(cursor)
}

// Reset repositions the cursor before the first item.
// Cursors of a locked cache cannot be reset, as the cache
// may have already discarded items.
func (cursor *Cursor[T]) Reset() error {
	if cursor.parent.locked {
		return ErrResetLocked
	}
	cursor.position = -1
	return nil
}

// All returns an iterator stepping the cursor until the end
// of the sequence. An error is yielded once, after which
// iteration stops.
func (cursor *Cursor[T]) All() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for {
			value, ok, err := cursor.Step()
			if !ok {
				if err != nil {
					yield(value, err)
				}
				return
			}
			if !yield(value, err) || err != nil {
				return
			}
		}
	}
}

package splitseq_test

import (
	"errors"
	"iter"
	"runtime"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"github.com/djdv/go-splitseq"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type (
	// countingSource yields its items in order
	// and records how often it was closed.
	countingSource struct {
		items    []int
		closeErr error
		index    int
		closes   atomic.Int32
	}
	// liveness marks cursors as retired by ID.
	liveness map[uuid.UUID]bool
)

// Fixed RNG seed for reproducibility.
const rngSeed = 1

func (cs *countingSource) Next() (int, bool) {
	if cs.index >= len(cs.items) {
		return 0, false
	}
	item := cs.items[cs.index]
	cs.index++
	return item, true
}

func (cs *countingSource) Close() error {
	cs.closes.Add(1)
	return cs.closeErr
}

func (l liveness) alive(id uuid.UUID) bool { return !l[id] }

func TestCache(t *testing.T) {
	t.Run("nil source", nilSource)
	t.Run("single source", singleSource)
	t.Run("reset", reset)
	t.Run("trim", trim)
	t.Run("exhaustion", exhaustion)
	t.Run("abandon", abandon)
	t.Run("locked", locked)
	t.Run("prefetch", prefetch)
	t.Run("close", closeEarly)
	t.Run("close error", closeError)
	t.Run("iterator", iterate)
	t.Run("model", modelConsistency)
}

func TestUnreachable(t *testing.T) {
	t.Run("source", unreachableSource)
	t.Run("pull iterator", unreachableSeq)
	t.Run("cursor", unreachableCursor)
}

func nilSource(t *testing.T) {
	t.Parallel()
	cache, err := splitseq.New[int](nil)
	assert.Nil(t, cache)
	assert.ErrorIs(t, err, splitseq.ErrNilSource)
}

func singleSource(t *testing.T) {
	t.Parallel()
	var (
		source = newSource(5)
		cache  = newCache(t, source)
		a      = newCursor(t, cache)
		b      = newCursor(t, cache)
	)
	stepN(t, a, 4)
	stepN(t, b, 2)
	assert.Equal(t, 3, a.Position())
	assert.Equal(t, 1, b.Position())
	checkWindow(t, cache, 0, 4)
	assert.Equal(t, 4, cache.Reads(), "items were read more than once")
	assert.Equal(t, 4, source.index)
}

func reset(t *testing.T) {
	t.Parallel()
	var (
		source = newSource(3)
		cache  = newCache(t, source)
		cursor = newCursor(t, cache)
	)
	first := stepN(t, cursor, 2)
	require.NoError(t, cursor.Reset())
	assert.Equal(t, -1, cursor.Position())
	second := stepN(t, cursor, 2)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("replay mismatch (-first +second):\n%s", diff)
	}
	assert.Equal(t, 2, cache.Reads())
}

func trim(t *testing.T) {
	t.Parallel()
	var (
		retired = make(liveness)
		source  = newSource(5)
		cache   = newCache(t, source, splitseq.WithLiveness(retired.alive))
		a       = newCursor(t, cache)
		b       = newCursor(t, cache)
		c       = newCursor(t, cache)
	)
	stepN(t, a, 5)
	_, ok, err := a.Step()
	require.NoError(t, err)
	require.False(t, ok, "cursor stepped past the end of the source")
	assert.True(t, cache.Exhausted())

	retired[c.ID()] = true
	require.NoError(t, cache.Lock())
	checkWindow(t, cache, 0, 5)
	stepN(t, b, 2)
	checkWindow(t, cache, 1, 5)

	_, ok, err = c.Step()
	assert.False(t, ok)
	assert.ErrorIs(t, err, splitseq.ErrTrimmed)
	assert.ErrorIs(t, err, splitseq.ErrInvalidOperation)
	assert.Equal(t, -1, c.Position(), "failed step moved the cursor")

	got := stepN(t, b, 3)
	if diff := cmp.Diff([]int{2, 3, 4}, got); diff != "" {
		t.Errorf("trailing cursor (-want +got):\n%s", diff)
	}
	checkWindow(t, cache, 4, 5)
	runtime.KeepAlive(a)
}

func exhaustion(t *testing.T) {
	t.Parallel()
	var (
		source = newSource(2)
		cache  = newCache(t, source)
		cursor = newCursor(t, cache)
	)
	stepN(t, cursor, 2)
	assert.False(t, cache.Exhausted(), "released before the end was observed")
	for range 3 {
		_, ok, err := cursor.Step()
		require.NoError(t, err)
		require.False(t, ok)
	}
	assert.True(t, cache.Exhausted())
	require.NoError(t, cache.Prefetch(3))
	require.NoError(t, cache.Close())
	assert.Equal(t, 2, cache.Reads())
	assert.EqualValues(t, 1, source.closes.Load(), "source closed more than once")
}

// abandon covers a locked cache whose cursors are all gone.
// The source is released right away, even though it
// still has items nobody read.
func abandon(t *testing.T) {
	t.Parallel()
	var (
		core, logs = observer.New(zap.DebugLevel)
		retired    = make(liveness)
		source     = newSource(5)
		cache      = newCache(t, source,
			splitseq.WithLogger(zap.New(core)),
			splitseq.WithLiveness(retired.alive),
		)
		cursor = newCursor(t, cache)
	)
	stepN(t, cursor, 2)
	retired[cursor.ID()] = true
	require.NoError(t, cache.Lock())
	assert.True(t, cache.Exhausted())
	assert.EqualValues(t, 1, source.closes.Load())
	assert.Equal(t, 2, cache.Reads())
	checkWindow(t, cache, 2, 2)

	_, ok, err := cursor.Step()
	assert.NoError(t, err)
	assert.False(t, ok)

	released := logs.FilterMessage("source released").All()
	require.Len(t, released, 1)
	assert.Equal(t, "no live cursors", released[0].ContextMap()["reason"])
	assert.Equal(t, 1, logs.FilterMessage("cache locked").Len())
}

func locked(t *testing.T) {
	t.Parallel()
	var (
		cache  = newCache(t, newSource(3))
		cursor = newCursor(t, cache)
	)
	stepN(t, cursor, 1)
	final, err := cache.NewFinalCursor()
	require.NoError(t, err)
	assert.True(t, cache.Locked())
	assert.NotEqual(t, cursor.ID(), final.ID())

	extra, err := cache.NewCursor()
	assert.Nil(t, extra)
	assert.ErrorIs(t, err, splitseq.ErrLocked)
	assert.ErrorIs(t, err, splitseq.ErrInvalidOperation)
	_, err = cache.NewFinalCursor()
	assert.ErrorIs(t, err, splitseq.ErrLocked)

	assert.ErrorIs(t, cursor.Reset(), splitseq.ErrResetLocked)
	assert.Equal(t, 0, cursor.Position())
	require.NoError(t, cache.Lock(), "locking twice")

	got := stepN(t, final, 3)
	if diff := cmp.Diff([]int{0, 1, 2}, got); diff != "" {
		t.Errorf("final cursor (-want +got):\n%s", diff)
	}
	runtime.KeepAlive(cursor)
}

func prefetch(t *testing.T) {
	t.Parallel()
	var (
		source = newSource(5)
		cache  = newCache(t, source)
		cursor = newCursor(t, cache)
	)
	err := cache.Prefetch(-1)
	assert.ErrorIs(t, err, splitseq.ErrInvalidArgument)

	require.NoError(t, cache.Prefetch(3))
	checkWindow(t, cache, 0, 3)
	assert.Equal(t, 3, cache.Reads())

	got := stepN(t, cursor, 3)
	if diff := cmp.Diff([]int{0, 1, 2}, got); diff != "" {
		t.Errorf("prefetched items (-want +got):\n%s", diff)
	}
	assert.Equal(t, 3, cache.Reads(), "prefetched items were read again")

	require.NoError(t, cache.Prefetch(10))
	checkWindow(t, cache, 0, 5)
	assert.True(t, cache.Exhausted())
	assert.EqualValues(t, 1, source.closes.Load())
}

func closeEarly(t *testing.T) {
	t.Parallel()
	var (
		source = newSource(5)
		cache  = newCache(t, source)
		cursor = newCursor(t, cache)
	)
	require.NoError(t, cache.Prefetch(2))
	require.NoError(t, cache.Close())
	assert.True(t, cache.Exhausted())
	assert.EqualValues(t, 1, source.closes.Load())

	got := collect(t, cursor)
	if diff := cmp.Diff([]int{0, 1}, got); diff != "" {
		t.Errorf("items after close (-want +got):\n%s", diff)
	}
	require.NoError(t, cache.Close())
	assert.EqualValues(t, 1, source.closes.Load())
}

func closeError(t *testing.T) {
	t.Parallel()
	var (
		errClose = errors.New("close failed")
		source   = newSource(1)
		cache    = newCache(t, source)
		cursor   = newCursor(t, cache)
	)
	source.closeErr = errClose
	stepN(t, cursor, 1)
	_, ok, err := cursor.Step()
	assert.False(t, ok)
	assert.ErrorIs(t, err, errClose)
	_, ok, err = cursor.Step()
	assert.False(t, ok)
	assert.NoError(t, err, "close error was reported twice")
}

func iterate(t *testing.T) {
	t.Parallel()
	t.Run("complete", func(t *testing.T) {
		t.Parallel()
		var (
			cache  = splitseq.Split(slices.Values([]string{"a", "b", "c"}))
			first  = newCursor(t, cache)
			second = newCursor(t, cache)
		)
		for _, cursor := range []*splitseq.Cursor[string]{first, second} {
			got := collect(t, cursor)
			if diff := cmp.Diff([]string{"a", "b", "c"}, got); diff != "" {
				t.Errorf("cursor %s (-want +got):\n%s", cursor.ID(), diff)
			}
		}
		assert.Equal(t, 3, cache.Reads())
	})
	t.Run("break", func(t *testing.T) {
		t.Parallel()
		var (
			cache  = newCache(t, newSource(5))
			cursor = newCursor(t, cache)
		)
		for value, err := range cursor.All() {
			require.NoError(t, err)
			if value == 1 {
				break
			}
		}
		assert.Equal(t, 1, cursor.Position())
		assert.Equal(t, 2, cache.Reads())
	})
	t.Run("trimmed", func(t *testing.T) {
		t.Parallel()
		var (
			retired = make(liveness)
			cache   = newCache(t, newSource(3),
				splitseq.WithLiveness(retired.alive))
			lead  = newCursor(t, cache)
			stale = newCursor(t, cache)
		)
		retired[stale.ID()] = true
		require.NoError(t, cache.Lock())
		stepN(t, lead, 2)
		var errs []error
		for _, err := range stale.All() {
			errs = append(errs, err)
		}
		require.Len(t, errs, 1)
		assert.ErrorIs(t, errs[0], splitseq.ErrTrimmed)
	})
}

// modelConsistency steps several cursors over a locked cache
// in random order. Every cursor must observe the whole
// sequence, and the window must start at the slowest cursor.
func modelConsistency(t *testing.T) {
	t.Parallel()
	const (
		itemCount   = 256
		cursorCount = 4
	)
	var (
		rng     = newReproducibleRNG()
		source  = newSource(itemCount)
		cache   = newCache(t, source, splitseq.WithCapacity(8))
		cursors = make([]*splitseq.Cursor[int], cursorCount)
		got     = make([][]int, cursorCount)
	)
	for i := range cursors {
		cursors[i] = newCursor(t, cache)
	}
	require.NoError(t, cache.Lock())
	for done := 0; done < cursorCount; {
		i := rng.Intn(cursorCount)
		cursor := cursors[i]
		if cursor.Position() == itemCount-1 {
			continue
		}
		value, ok, err := cursor.Step()
		require.NoError(t, err)
		require.True(t, ok)
		got[i] = append(got[i], value)
		if cursor.Position() == itemCount-1 {
			done++
		}
		slowest := itemCount
		for _, other := range cursors {
			slowest = min(slowest, other.Position())
		}
		minIndex, maxIndex := cache.Window()
		require.Equal(t, max(slowest, 0), minIndex, "window does not start at the slowest cursor")
		require.LessOrEqual(t, maxIndex, itemCount)
	}
	want := sequence(itemCount)
	for i := range got {
		if diff := cmp.Diff(want, got[i]); diff != "" {
			t.Errorf("cursor %d (-want +got):\n%s", i, diff)
		}
	}
	assert.Equal(t, itemCount, cache.Reads())
}

func unreachableSource(t *testing.T) {
	source := newSource(4)
	func() {
		cache := newCache(t, source)
		stepN(t, newCursor(t, cache), 1)
	}()
	require.Eventually(t, func() bool {
		runtime.GC()
		return source.closes.Load() == 1
	}, 5*time.Second, 10*time.Millisecond,
		"source of an unreachable cache was not closed")
}

func unreachableSeq(t *testing.T) {
	var stopped atomic.Bool
	seq := func(yield func(int) bool) {
		defer stopped.Store(true)
		for i := 0; ; i++ {
			if !yield(i) {
				return
			}
		}
	}
	func() {
		cache := splitseq.Split(iter.Seq[int](seq))
		stepN(t, newCursor(t, cache), 2)
	}()
	require.Eventually(t, func() bool {
		runtime.GC()
		return stopped.Load()
	}, 5*time.Second, 10*time.Millisecond,
		"pull iterator of an unreachable cache was not stopped")
}

// unreachableCursor drops a cursor without any liveness
// predicate; only the garbage collector retires it.
func unreachableCursor(t *testing.T) {
	var (
		source = newSource(1024)
		cache  = newCache(t, source)
		lead   = newCursor(t, cache)
	)
	func() {
		stepN(t, newCursor(t, cache), 1)
	}()
	require.NoError(t, cache.Lock())
	require.Eventually(t, func() bool {
		runtime.GC()
		if _, _, err := lead.Step(); err != nil {
			t.Error(err)
		}
		minIndex, _ := cache.Window()
		return minIndex > 0
	}, 5*time.Second, 10*time.Millisecond,
		"dropped cursor kept holding the window")
}

func newSource(count int) *countingSource {
	return &countingSource{items: sequence(count)}
}

func sequence(count int) []int {
	items := make([]int, count)
	for i := range items {
		items[i] = i
	}
	return items
}

func newCache(tb testing.TB, source *countingSource, opts ...splitseq.Option) *splitseq.Cache[int] {
	tb.Helper()
	cache, err := splitseq.New[int](source, opts...)
	if err != nil {
		tb.Fatal(err)
	}
	return cache
}

func newCursor[T any](tb testing.TB, cache *splitseq.Cache[T]) *splitseq.Cursor[T] {
	tb.Helper()
	cursor, err := cache.NewCursor()
	if err != nil {
		tb.Fatal(err)
	}
	return cursor
}

// stepN steps cursor count times, failing if any step
// does not produce an item.
func stepN[T any](tb testing.TB, cursor *splitseq.Cursor[T], count int) []T {
	tb.Helper()
	values := make([]T, 0, count)
	for range count {
		value, ok, err := cursor.Step()
		if err != nil {
			tb.Fatal(err)
		}
		if !ok {
			tb.Fatalf(
				"expected item from cursor"+
					"\n\tgot: end of sequence"+
					"\n\twant: %d more",
				count-len(values))
		}
		values = append(values, value)
	}
	return values
}

func collect[T any](tb testing.TB, cursor *splitseq.Cursor[T]) []T {
	tb.Helper()
	var values []T
	for value, err := range cursor.All() {
		if err != nil {
			tb.Fatal(err)
		}
		values = append(values, value)
	}
	return values
}

func checkWindow[T any](tb testing.TB, cache *splitseq.Cache[T], wantMin, wantMax int) {
	tb.Helper()
	gotMin, gotMax := cache.Window()
	if gotMin == wantMin && gotMax == wantMax {
		return
	}
	tb.Fatalf(
		"expected cached window to match"+
			"\n\tgot: [%d,%d)"+
			"\n\twant: [%d,%d)",
		gotMin, gotMax, wantMin, wantMax)
}

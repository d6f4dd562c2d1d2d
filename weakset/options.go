package weakset

type (
	// Option configures a [Set] during creation.
	Option[T any] func(*options[T])
	options[T any] struct {
		alive    func(*T) bool
		comparer Comparer[T]
		capacity int
	}
)

// WithComparer replaces the default [Identity] comparer.
func WithComparer[T any](comparer Comparer[T]) Option[T] {
	return func(o *options[T]) {
		o.comparer = comparer
	}
}

// WithLiveness adds a predicate that must hold, in addition to
// the element still being reachable, for an element to remain
// a member. Elements the predicate rejects are treated exactly
// like collected ones.
func WithLiveness[T any](alive func(*T) bool) Option[T] {
	return func(o *options[T]) {
		o.alive = alive
	}
}

// WithCapacity pre-sizes the set to hold at least capacity
// elements before growing.
func WithCapacity[T any](capacity int) Option[T] {
	return func(o *options[T]) {
		o.capacity = capacity
	}
}

package splitseq

import (
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type (
	// Option configures a [Cache] during creation.
	//
	// Example:
	//
	//	cache, err := splitseq.New(source,
	//		splitseq.WithLogger(logger),
	//		splitseq.WithCapacity(64),
	//	)
	Option  func(*options)
	options struct {
		log      *zap.Logger
		alive    func(uuid.UUID) bool
		capacity int
	}
)

func defaultOptions() options {
	return options{
		log: zap.NewNop(),
	}
}

// WithLogger sets the logger used for lifecycle events
// (locking, trimming, source disposal).
// By default nothing is logged.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) {
		if log == nil {
			log = zap.NewNop()
		}
		o.log = log
	}
}

// WithCapacity sets the initial number of items
// the cache can hold before it must grow.
func WithCapacity(capacity int) Option {
	return func(o *options) {
		o.capacity = max(capacity, 0)
	}
}

// WithLiveness adds a predicate that must hold, in addition to
// the cursor still being reachable, for a cursor to be
// considered when trimming. Cursors the predicate rejects
// no longer hold items in the cache.
func WithLiveness(alive func(cursor uuid.UUID) bool) Option {
	return func(o *options) {
		o.alive = alive
	}
}

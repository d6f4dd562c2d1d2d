package weakset

import (
	"hash/maphash"

	"github.com/cespare/xxhash/v2"
)

// Comparer defines element equality for a [Set].
// Elements that are Equal must have the same Hash.
type Comparer[T any] struct {
	Hash  func(*T) uint64
	Equal func(a, b *T) bool
}

// Identity compares elements by address.
// This is the default [Comparer].
func Identity[T any]() Comparer[T] {
	seed := maphash.MakeSeed()
	return Comparer[T]{
		Hash:  func(element *T) uint64 { return maphash.Comparable(seed, element) },
		Equal: func(a, b *T) bool { return a == b },
	}
}

// ByValue compares elements by the values they point to.
func ByValue[T comparable]() Comparer[T] {
	seed := maphash.MakeSeed()
	return Comparer[T]{
		Hash:  func(element *T) uint64 { return maphash.Comparable(seed, *element) },
		Equal: func(a, b *T) bool { return *a == *b },
	}
}

// ByKey compares elements by a string key derived from them.
func ByKey[T any](key func(*T) string) Comparer[T] {
	return Comparer[T]{
		Hash:  func(element *T) uint64 { return xxhash.Sum64String(key(element)) },
		Equal: func(a, b *T) bool { return key(a) == key(b) },
	}
}

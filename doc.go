// Package splitseq implements a [Cache] that lets many independent
// [Cursor]s replay one forward-only [Source] without re-reading it,
// and without retaining more of it than the slowest live cursor needs.
//
// The following is a summary (intended for maintainers)
// of how the cache and its supporting structures cooperate.
//
// Glossary and invariants:
//
//   - Source
//
//     A single-pass, pull-based sequence that cannot be restarted.
//     The cache reads each item from it exactly once.
//
//   - Window
//
//     The indices [min, max) read from the source but not yet discarded.
//     The cache's ring holds exactly the window: ring index i is item min+i.
//
//   - Cursor
//
//     A read position. Position -1 is before the first item.
//     Every cursor position p satisfies p < max.
//
//   - Live cursor
//
//     A cursor that is still reachable from outside of the cache
//     (and accepted by the optional liveness predicate).
//     The cache references cursors through a [weakset.Set],
//     so it is never the reason a cursor stays alive.
//
//   - Trim
//
//     Discarding the prefix of the window that no live cursor still needs.
//
// States:
//
//   - Open
//
//     New cursors may be created and existing ones reset,
//     so nothing is ever trimmed.
//
//   - Locked
//
//     No new cursors. After every step, prefetch, and on locking,
//     the window is trimmed to the minimum live cursor position.
//     If no live cursor remains, the source is released immediately
//     and the window dropped, even if unread items remain.
//
//   - Exhausted
//
//     The source has been released; either it ended, it was closed,
//     or no cursor could ever need it again. Items still in the window
//     remain readable.
//
// Operations:
//
//   - Step
//
//     A cursor at p requests p+1. If p+1 < min, it fell behind the window
//     and [ErrTrimmed] is returned. If p+1 < max, the item comes from the ring.
//     Otherwise the cursor is at the frontier and pulls from the source,
//     appending to the ring.
//
//   - Release
//
//     The source is closed at most once. A cache that becomes unreachable
//     with its source still open has the source closed by a runtime cleanup.
//
// [weakset.Set]: https://pkg.go.dev/github.com/djdv/go-splitseq/weakset#Set
package splitseq

// Package watcher implements meshstate's watcher service: the fanout that
// turns each state server commit into a stream every interested client can
// poll for "the next update after my cursor", plus the client-side
// iterator and predicate helpers (when_change, when_equal, and friends)
// built on top of that one primitive.
package watcher

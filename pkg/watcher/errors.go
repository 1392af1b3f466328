package watcher

import "errors"

// ErrSkip is returned by a StateWatcher callback to indicate the current
// update is not interesting and iteration should continue without
// counting it against a bounded Consume call. It mirrors the
// predecessor's SkipStateUpdate control-flow exception.
var ErrSkip = errors.New("watcher: skip this update")

// ErrDone is returned by StateWatcher.Next once its configured Count of
// updates has already been delivered.
var ErrDone = errors.New("watcher: iteration count exhausted")

// ErrTimeout is returned by StateWatcher.Next when no qualifying update
// arrived before the configured deadline.
var ErrTimeout = errors.New("watcher: timed out waiting for an update")

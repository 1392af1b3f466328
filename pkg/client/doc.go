// Package client is the application-facing facade over the rest of
// meshstate: a Dial gets you one handle for reading and mutating shared
// state, watching it for changes, submitting tasks to the worker pool,
// and supervising external processes, instead of juggling a connection
// per subsystem.
package client

// Package wire defines the envelopes, identifiers, and codec shared by every
// meshstate service: the state server, the watcher fanout, the task store,
// and the task proxy all speak the same small vocabulary defined here.
package wire

// Package stateserver implements meshstate's state server: a single
// command loop per process that owns every namespace's state map and
// applies mutations to it one at a time. Serializing every mutation
// through one goroutine gives callers the same guarantee the predecessor
// system got from routing every request through one socket loop, without
// needing a lock around the state itself.
package stateserver

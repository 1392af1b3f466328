// Package transport implements the two connection shapes meshstate's
// services are built from: RR (request/reply), a thin layer over a
// *websocket.Conn that gives every service a duplex, identity-preserving
// channel without pulling in a message-queue broker, and Fan (one-to-many
// broadcast with per-subscriber drop-when-full delivery), which runs
// in-process over Go channels.
package transport

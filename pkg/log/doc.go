// Package log provides meshstate's structured logging on top of zerolog:
// a global Logger configured once via Init, plus WithComponent and friends
// for attaching request-scoped context (namespace, client, task) to a
// child logger without threading it through every call.
package log

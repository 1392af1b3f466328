// Package supervisor spawns an external command and watches it run,
// retrying it according to a caller-supplied policy when it exits with an
// error that policy says is worth retrying. It is the Go-native
// counterpart to running a supervised worker function and catching its
// crashes: here the "process" is a real OS process (os/exec), and a crash
// is a nonzero exit, a launch failure, or death by signal.
package supervisor

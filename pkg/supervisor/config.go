package supervisor

import "time"

// Config describes one supervised command and its retry policy.
type Config struct {
	// Command and Args are passed straight to exec.Command.
	Command string
	Args    []string
	Dir     string
	// Env is appended to the current process's environment, not a
	// replacement for it.
	Env []string

	// ProcessRepr names this process in logs; defaults to Command if empty.
	ProcessRepr string

	// RetryFor decides which failures get retried. A failure matching none
	// of these predicates is terminal regardless of MaxRetries.
	RetryFor []RetryPredicate
	// RetryDelay is slept between a failed attempt and the next one.
	RetryDelay time.Duration
	// MaxRetries bounds the number of retries; -1 means unlimited. 0
	// means a failing first attempt is not retried (the attempt counter
	// starts at 1 and the loop gives up once tries > MaxRetries).
	MaxRetries int
	// RetryArgs replaces Args on every attempt after the first, if set.
	RetryArgs []string
}

func (c Config) repr() string {
	if c.ProcessRepr != "" {
		return c.ProcessRepr
	}
	return c.Command
}

package supervisor

import "fmt"

// ProcessExit reports that a supervised process exited cleanly but was
// asked to stop retrying regardless of exit code — used when Stop is
// called while a retry is pending.
type ProcessExit struct {
	Code int
}

func (e *ProcessExit) Error() string {
	return fmt.Sprintf("supervisor: process exited with code %d", e.Code)
}

// ProcessWaitError reports that a process launch or exec.Cmd.Wait failed:
// a nonzero exit, or the command never started at all (ExitCode -1).
type ProcessWaitError struct {
	Message  string
	ExitCode int
}

func (e *ProcessWaitError) Error() string {
	return e.Message
}

// SignalError reports that a process was killed by a signal rather than
// exiting on its own.
type SignalError struct {
	Signal string
}

func (e *SignalError) Error() string {
	return fmt.Sprintf("supervisor: process killed by signal %s", e.Signal)
}

// RetryPredicate decides whether an error returned by a failed attempt is
// worth retrying, replacing the tuple-of-exception-types a caller would
// pass to retry_for in the original implementation.
type RetryPredicate func(error) bool

// RetryAlways retries every failure. Useful as a default retry_for.
func RetryAlways(error) bool { return true }

// RetryExitCodes retries only ProcessWaitError failures whose exit code is
// in codes.
func RetryExitCodes(codes ...int) RetryPredicate {
	set := make(map[int]bool, len(codes))
	for _, c := range codes {
		set[c] = true
	}
	return func(err error) bool {
		waitErr, ok := err.(*ProcessWaitError)
		return ok && set[waitErr.ExitCode]
	}
}

func matchesAny(predicates []RetryPredicate, err error) bool {
	if len(predicates) == 0 {
		return false
	}
	for _, p := range predicates {
		if p(err) {
			return true
		}
	}
	return false
}

package runner

import "fmt"

// Code tags the stable failure kinds a Runner invocation can produce,
// grounded in the teacher's GitError/GitErrContext pairing (git.go) but
// carried as a field rather than a distinct Go type per failure mode.
type Code string

const (
	SpawningFailure   Code = "SpawningFailure"
	ChildProcessFailure Code = "ChildProcessFailure"
	Timeout           Code = "Timeout"
	BadOutputStream   Code = "BadOutputStream"
	BadOptionsKey     Code = "BadOptionsKey"
)

// Error is the structured failure type every Runner invocation returns on
// infrastructure failure. Program/Argv/EnvSource are best-effort context,
// matching §4.2/§7's "message and auxiliary fields are best-effort".
type Error struct {
	Code      Code
	Message   string
	Program   string
	Argv      []string
	ExitCode  int
	EnvSource string
	Err       error
}

func (e *Error) Error() string {
	msg := string(e.Code)
	if e.Program != "" {
		msg += fmt.Sprintf(": %s %v", e.Program, e.Argv)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Code == ChildProcessFailure {
		msg += fmt.Sprintf(" (exit code %d)", e.ExitCode)
	}
	if e.EnvSource != "" {
		msg += " [env: " + e.EnvSource + "]"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

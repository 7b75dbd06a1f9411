package gitdriver

import (
	"errors"
	"fmt"
)

// Code tags the stable failure kinds a Driver operation can produce,
// generalizing the teacher's *GitError/*GitSha1Error pair (git.go) into
// one tagged struct per §4.5.13's taxonomy.
type Code string

const (
	InvalidCommittish  Code = "InvalidCommittish"
	GitWriteFailed     Code = "GitWriteFailed"
	InvalidTreeEntry   Code = "InvalidTreeEntry"
	InvalidTreeResult  Code = "InvalidTreeResult"
	InvalidCommit      Code = "InvalidCommit"
	InvalidGitLogOutput Code = "InvalidGitLogOutput"
	NoCommitFound      Code = "NoCommitFound"
	LineNotFound       Code = "LineNotFound"

	// Bug marks an assertion failure: a state the driver believes is
	// unreachable. Any local recovery that would otherwise swallow an
	// error must re-raise it unconditionally when its Code is Bug.
	Bug Code = "Bug"
)

// Error is the structured failure type every Driver operation returns.
type Error struct {
	Code    Code
	Message string
	Argv    []string
	Stderr  string
	Err     error
}

func (e *Error) Error() string {
	msg := string(e.Code)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if len(e.Argv) > 0 {
		msg += fmt.Sprintf(" (git %v)", e.Argv)
	}
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// isBug reports whether err carries the Bug marker, in which case a
// local recovery site must re-raise it instead of swallowing it.
func isBug(err error) bool {
	var gerr *Error
	return errors.As(err, &gerr) && gerr.Code == Bug
}

func bug(format string, a ...interface{}) error {
	return &Error{Code: Bug, Message: fmt.Sprintf(format, a...)}
}

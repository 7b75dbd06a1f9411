// Package diffdriver implements DiffDriver: running external `diff -U0`
// over a pair of content sources and turning its hunk headers into
// structured line-range changes.
//
// Grounded in the teacher's own temp-file handling (ioutil.TempDir /
// os.RemoveAll pairs in git-backup_test.go), generalized from a whole
// test workdir to a per-call Janitor-scoped temp file, and in git.go's
// xgit/RunWith pattern for driving an external process and classifying
// its exit code.
package diffdriver

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"

	"github.com/PNW-TechPros/git-casefile/internal/janitor"
	"github.com/PNW-TechPros/git-casefile/internal/recordstream"
	"github.com/PNW-TechPros/git-casefile/internal/runner"
)

// Code tags the stable failure kinds GetHunks can produce.
type Code string

const (
	DiffFailure        Code = "DiffFailure"
	UnknownContentType Code = "UnknownContentType"
)

// Error is the structured failure type GetHunks returns.
type Error struct {
	Code    Code
	Message string
	Base    string
	Current string
	Err     error
}

func (e *Error) Error() string {
	msg := string(e.Code)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Base != "" || e.Current != "" {
		msg += fmt.Sprintf(" (base=%s current=%s)", e.Base, e.Current)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// ContentSource is either a PathSource (content already on disk) or an
// ImmediateSource (content held in memory, materialized to a temp file
// for the duration of one GetHunks call).
type ContentSource interface {
	isContentSource()
}

// PathSource names a file already present on disk.
type PathSource struct {
	Path string
}

func (PathSource) isContentSource() {}

// ImmediateSource carries content that must be spilled to a temp file
// before diff can see it.
type ImmediateSource struct {
	Content []byte
}

func (ImmediateSource) isContentSource() {}

// Change is one parsed @@ hunk, in 1-based, half-open [Start, End) line
// ranges against each side. A pure insertion collapses the base range to
// a single insertion point (BaseStart == BaseEnd); a pure deletion does
// the same on the current side.
type Change struct {
	BaseStart    int
	BaseEnd      int
	CurrentStart int
	CurrentEnd   int
}

var hunkHeader = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

// Driver runs `diff -U0` through a SubprocessRunner.
type Driver struct {
	runner *runner.Runner
}

// New builds a Driver invoking diffProgram (typically "diff").
func New(diffProgram string, opts ...runner.Option) *Driver {
	return &Driver{runner: runner.New(diffProgram, opts...)}
}

// GetHunks runs diff -U0 over base and current, returning the parsed
// hunks in encounter order.
func (d *Driver) GetHunks(ctx context.Context, base, current ContentSource) ([]Change, error) {
	j := janitor.New()
	defer j.CleanupSync()

	basePath, err := resolve(base, j)
	if err != nil {
		return nil, err
	}
	currentPath, err := resolve(current, j)
	if err != nil {
		return nil, err
	}

	var hunks []Change
	var parseErr error
	stream, err := recordstream.New(recordstream.Literal("\n"), "utf8", func(line string) bool {
		m := hunkHeader.FindStringSubmatch(line)
		if m == nil {
			return false
		}
		c, perr := parseHunk(m)
		if perr != nil {
			parseErr = perr
			return true
		}
		hunks = append(hunks, c)
		return false
	})
	if err != nil {
		return nil, err
	}

	var streamErr error
	_, err = d.runner.Invoke(ctx, "", nil, []string{"-U", "0", basePath, currentPath}, runner.InvokeIO{
		Stdout: runner.StdoutFunc(func(chunk string, stop func()) {
			if streamErr != nil {
				return
			}
			if werr := stream.Write([]byte(chunk)); werr != nil {
				streamErr = werr
				stop()
				return
			}
			if stream.Stopped() {
				stop()
			}
		}),
		Exit: func(code int) (interface{}, error) {
			if code == 0 || code == 1 {
				return nil, nil
			}
			return nil, &Error{Code: DiffFailure, Base: basePath, Current: currentPath, Message: fmt.Sprintf("diff exited %d", code)}
		},
	})
	if err != nil {
		return nil, err
	}
	if streamErr != nil {
		return nil, streamErr
	}
	if cerr := stream.Close(); cerr != nil {
		return nil, cerr
	}
	if parseErr != nil {
		return nil, parseErr
	}
	return hunks, nil
}

func resolve(src ContentSource, j *janitor.Janitor) (string, error) {
	switch s := src.(type) {
	case PathSource:
		return s.Path, nil
	case ImmediateSource:
		f, err := os.CreateTemp("", "casefile-diff-*")
		if err != nil {
			return "", &Error{Code: DiffFailure, Message: "creating temp file", Err: err}
		}
		j.Push(func() error { return os.Remove(f.Name()) })
		if _, err := f.Write(s.Content); err != nil {
			_ = f.Close()
			return "", &Error{Code: DiffFailure, Message: "writing temp file", Err: err}
		}
		if err := f.Close(); err != nil {
			return "", &Error{Code: DiffFailure, Message: "closing temp file", Err: err}
		}
		return f.Name(), nil
	default:
		return "", &Error{Code: UnknownContentType, Message: fmt.Sprintf("%T", src)}
	}
}

func parseHunk(m []string) (Change, error) {
	s, err := atoi(m[1])
	if err != nil {
		return Change{}, &Error{Code: DiffFailure, Message: "bad hunk header start", Err: err}
	}
	l, err := atoiOrDefault(m[2], 1)
	if err != nil {
		return Change{}, &Error{Code: DiffFailure, Message: "bad hunk header length", Err: err}
	}
	t, err := atoi(m[3])
	if err != nil {
		return Change{}, &Error{Code: DiffFailure, Message: "bad hunk header start", Err: err}
	}
	mLen, err := atoiOrDefault(m[4], 1)
	if err != nil {
		return Change{}, &Error{Code: DiffFailure, Message: "bad hunk header length", Err: err}
	}

	baseLen := 1
	if m[2] != "" {
		baseLen = l
	}
	currentLen := 1
	if m[4] != "" {
		currentLen = mLen
	}

	c := Change{
		BaseStart:    s,
		BaseEnd:      s + baseLen,
		CurrentStart: t,
		CurrentEnd:   t + currentLen,
	}
	if m[2] != "" && l == 0 {
		c.BaseStart, c.BaseEnd = s+1, s+1
	}
	if m[4] != "" && mLen == 0 {
		c.CurrentStart, c.CurrentEnd = t+1, t+1
	}
	return c, nil
}

func atoi(s string) (int, error) { return strconv.Atoi(s) }

func atoiOrDefault(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}

// Package gitdriver implements GitDriver: every Git-plumbing operation
// the casefile collaboration protocol needs, built on the SubprocessRunner
// (internal/runner) the way the teacher's git.go built ggit/xgit on top
// of exec.Command("git", ...).
//
// Where the teacher panicked/raised on unexpected failure (raise,
// raisef) and returned a *GitError only for "expected" exit-code
// failures, Driver returns explicit errors throughout: ordinary failures
// as *Error, and genuinely-unreachable states as *Error{Code: Bug} -
// the Go equivalent of the teacher's panic-on-bug style, but still an
// error value a caller can choose to propagate instead of crash on.
package gitdriver

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/PNW-TechPros/git-casefile/internal/recordstream"
	"github.com/PNW-TechPros/git-casefile/internal/runner"
)

// SharedCasefilesRef is the primary storage ref for shared casefiles.
const SharedCasefilesRef = "refs/collaboration/shared-casefiles"

// ReferencedCommitRef names the anchor ref pushed by PushCommitRefs to
// keep a commit reachable on the remote.
func ReferencedCommitRef(commit string) string {
	return "refs/collaboration/referenced-commits/" + commit
}

// Driver wraps a *runner.Runner bound to the git binary and exposes the
// plumbing operations enumerated in the collaboration protocol.
type Driver struct {
	runner *runner.Runner
}

// New builds a Driver invoking gitProgram (typically "git") with the
// given runner options (working directory, PATH override, logger, ...).
func New(gitProgram string, opts ...runner.Option) *Driver {
	allOpts := append([]runner.Option{runner.WithSubcommand(true)}, opts...)
	return &Driver{runner: runner.New(gitProgram, allOpts...)}
}

// run invokes `git <subcommand> <opts> <args>` with no stdin, and
// always returns the raw stdout and exit code rather than treating
// non-zero as failure - the caller decides what a given subcommand's
// exit codes mean.
func (d *Driver) run(ctx context.Context, subcommand string, opts runner.Options, args []string) ([]byte, int, error) {
	return d.invoke(ctx, subcommand, opts, args, nil)
}

// runStdin is run, but always feeds stdin (even when empty) and closes
// it immediately after - unlike run, it is for subcommands (hash-object
// --stdin, mktree -z, commit-tree) that read from stdin and would
// otherwise block waiting for input that never arrives.
func (d *Driver) runStdin(ctx context.Context, subcommand string, opts runner.Options, args []string, stdin string) ([]byte, int, error) {
	return d.invoke(ctx, subcommand, opts, args, &stdin)
}

func (d *Driver) invoke(ctx context.Context, subcommand string, opts runner.Options, args []string, stdin *string) ([]byte, int, error) {
	var buf bytes.Buffer
	io_ := runner.InvokeIO{
		Stdout: &buf,
		Exit: func(code int) (interface{}, error) {
			return code, nil
		},
	}
	if stdin != nil {
		content := *stdin
		io_.FeedStdin = func(w io.WriteCloser) error {
			if _, err := io.WriteString(w, content); err != nil {
				_ = w.Close()
				return err
			}
			return w.Close()
		}
	}
	result, err := d.runner.Invoke(ctx, subcommand, opts, args, io_)
	if err != nil {
		return nil, 0, err
	}
	code, _ := result.(int)
	return buf.Bytes(), code, nil
}

// invokeRecords runs a subcommand whose stdout is a stream of sep-delimited
// records, feeding each one to handler as it completes rather than
// buffering the whole output first - the GitDriver side of §2's "GitDriver
// feeds RecordStream with raw stdout and receives records back." handler
// returning true stops consumption early: the remaining child output is
// discarded without error, which is how FindCurrentLinePosition terminates
// the stream on its first matching record per §4.5.11. cwd and feedStdin
// are optional (zero value "" / nil) for subcommands that don't need them.
func (d *Driver) invokeRecords(ctx context.Context, subcommand string, opts runner.Options, args []string, cwd string, feedStdin func(io.WriteCloser) error, sep recordstream.Separator, handler recordstream.Handler) (int, error) {
	stream, err := recordstream.New(sep, "utf8", handler)
	if err != nil {
		return 0, err
	}

	var streamErr error
	var code int
	io_ := runner.InvokeIO{
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
		FeedStdin: feedStdin,
		Cwd:       cwd,
		Exit: func(c int) (interface{}, error) {
			code = c
			return c, nil
		},
	}
	if _, err := d.runner.Invoke(ctx, subcommand, opts, args, io_); err != nil {
		return 0, err
	}
	if streamErr != nil {
		return 0, streamErr
	}
	if cerr := stream.Close(); cerr != nil {
		return 0, cerr
	}
	return code, nil
}

// runTrimmed is run, with stdout trimmed of surrounding whitespace - the
// shape nearly every single-line plumbing command wants.
func (d *Driver) runTrimmed(ctx context.Context, subcommand string, opts runner.Options, args []string) (string, int, error) {
	out, code, err := d.run(ctx, subcommand, opts, args)
	if err != nil {
		return "", 0, err
	}
	return strings.TrimSpace(string(out)), code, nil
}

// runStdinTrimmed is runStdin, with stdout trimmed.
func (d *Driver) runStdinTrimmed(ctx context.Context, subcommand string, opts runner.Options, args []string, stdin string) (string, int, error) {
	out, code, err := d.runStdin(ctx, subcommand, opts, args, stdin)
	if err != nil {
		return "", 0, err
	}
	return strings.TrimSpace(string(out)), code, nil
}

// ListRemotes returns the configured remote names, one per `git remote`
// output line.
func (d *Driver) ListRemotes(ctx context.Context) ([]string, error) {
	out, code, err := d.run(ctx, "remote", nil, nil)
	if err != nil {
		return nil, err
	}
	if code != 0 {
		return nil, &Error{Code: GitWriteFailed, Message: "git remote failed"}
	}
	return splitLines(string(out)), nil
}

// FetchFromRemote implements §4.5.1's generic `fetchFromRemote` surface
// op: a plain `git fetch <remote>`, updating remote's tracking refs the
// way a push to it would be expected to have already done on the far
// side. FetchSharedCasefiles below is the protocol-specific refspec
// fetch layered on top of this same plumbing.
func (d *Driver) FetchFromRemote(ctx context.Context, remote string) error {
	_, code, err := d.run(ctx, "fetch", nil, []string{remote})
	if err != nil {
		return err
	}
	if code != 0 {
		return &Error{Code: GitWriteFailed, Message: "git fetch failed", Argv: []string{"fetch", remote}}
	}
	return nil
}

// FetchSharedCasefiles pulls every ref under SharedCasefilesRef's prefix
// from remote, mirroring the teacher's fetch invocations in cmd_pull -
// widened from a single ref to the `+<ref>*:<ref>*` wildcard refspec
// the collaboration protocol needs.
func (d *Driver) FetchSharedCasefiles(ctx context.Context, remote string) error {
	refspec := fmt.Sprintf("+%s*:%s*", SharedCasefilesRef, SharedCasefilesRef)
	_, code, err := d.run(ctx, "fetch", nil, []string{remote, refspec})
	if err != nil {
		return err
	}
	if code != 0 {
		return &Error{Code: GitWriteFailed, Message: "git fetch failed", Argv: []string{"fetch", remote, refspec}}
	}
	return nil
}

// RevParse resolves committish to a full object name. ok is false (with
// a nil error) when git rev-parse exits non-zero - the "ref not yet
// created" case every caller treats as an expected absence, per §7.
func (d *Driver) RevParse(ctx context.Context, committish string) (sha1 string, ok bool, err error) {
	out, code, err := d.runTrimmed(ctx, "rev-parse", runner.Options{runner.Flag("verify"), runner.Flag("q")}, []string{committish})
	if err != nil {
		return "", false, err
	}
	if code != 0 {
		return "", false, nil
	}
	return out, true, nil
}

// UpdateRef sets ref to sha1, or deletes it when sha1 is empty.
func (d *Driver) UpdateRef(ctx context.Context, ref, sha1 string) error {
	var args []string
	var opts runner.Options
	if sha1 == "" {
		opts = runner.Options{runner.Flag("d")}
		args = []string{ref}
	} else {
		args = []string{ref, sha1}
	}
	_, code, err := d.run(ctx, "update-ref", opts, args)
	if err != nil {
		return err
	}
	if code != 0 {
		return &Error{Code: GitWriteFailed, Message: "git update-ref failed", Argv: append([]string{"update-ref"}, args...)}
	}
	return nil
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}

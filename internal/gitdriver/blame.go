package gitdriver

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/PNW-TechPros/git-casefile/internal/gitutil"
	"github.com/PNW-TechPros/git-casefile/internal/recordstream"
	"github.com/PNW-TechPros/git-casefile/internal/runner"
)

// Peg is a persistent (commit, line) identity attached to a bookmark.
// Commit is empty when blame attributes the line to no commit yet
// (uncommitted local edits).
type Peg struct {
	Commit string
	Line   int
}

// LineIntroduction implements §4.5.11's blame pinpoint lookup: `git
// blame -L line,line --porcelain [--contents -] [commit] -- <basename>`
// run inside file's directory. liveContent feeds stdin only when commit
// is empty and liveContent is non-nil - explicit commit always wins,
// then live content, then the on-disk file.
func (d *Driver) LineIntroduction(ctx context.Context, file string, line int, commit string, liveContent []byte) (Peg, error) {
	dir, base := filepath.Split(file)
	opts := runner.Options{runner.Val("L", fmt.Sprintf("%d,%d", line, line)), runner.Flag("porcelain")}

	var args []string
	var stdin *string
	if commit != "" {
		args = append(args, commit)
	} else if liveContent != nil {
		opts = append(opts, runner.Flag("contents"))
		args = append(args, "-")
		s := string(liveContent)
		stdin = &s
	}
	args = append(args, "--", base)

	var buf bytes.Buffer
	invokeIO := runner.InvokeIO{
		Stdout: &buf,
		Cwd:    strings.TrimSuffix(dir, "/"),
		Exit:   func(code int) (interface{}, error) { return code, nil },
	}
	if stdin != nil {
		content := *stdin
		invokeIO.FeedStdin = func(w io.WriteCloser) error {
			if _, err := io.WriteString(w, content); err != nil {
				_ = w.Close()
				return err
			}
			return w.Close()
		}
	}
	result, err := d.runner.Invoke(ctx, "blame", opts, args, invokeIO)
	if err != nil {
		return Peg{}, err
	}
	code, _ := result.(int)
	if code != 0 {
		return Peg{}, &Error{Code: NoCommitFound, Message: fmt.Sprintf("blame failed for %s:%d", file, line)}
	}

	firstLine, _, _ := strings.Cut(buf.String(), "\n")
	fields := strings.Fields(firstLine)
	if len(fields) < 2 {
		return Peg{}, &Error{Code: NoCommitFound, Message: fmt.Sprintf("unparseable blame porcelain header %q", firstLine)}
	}
	sha := fields[0]
	if gitutil.IsZeroObjectName(sha) {
		return Peg{}, &Error{Code: NoCommitFound, Message: "blame attributes line to no commit"}
	}
	if !gitutil.IsObjectName(sha) {
		return Peg{}, &Error{Code: NoCommitFound, Message: fmt.Sprintf("unparseable blame sha %q", sha)}
	}
	// fields[1] is the origin line number within the introducing commit
	// (fields[2] would be the final line in the blamed content, which is
	// just `line` echoed back since -L restricts to one line) - the peg
	// anchors to where the line lived when introduced, not where it sits
	// in whatever content was blamed.
	origLine, perr := strconv.Atoi(fields[1])
	if perr != nil {
		return Peg{}, &Error{Code: NoCommitFound, Message: fmt.Sprintf("unparseable blame line %q", firstLine)}
	}
	return Peg{Commit: sha, Line: origLine}, nil
}

var incrementalLine = regexp.MustCompile(`^([0-9a-fA-F]+)\S* (\d+) (\d+) (\d+)`)

// FindCurrentLinePosition implements §4.5.11's streaming incremental
// blame lookup: `git blame --incremental [--contents -] -- <basename>`,
// matching each record attributed to peg.Commit whose source-line span
// contains peg.Line, resolving as soon as one is found. Records
// attributed to any other commit are skipped - peg.Commit pins which
// history this lookup tracks, exactly as findCurrentLinePosition's
// (commit, line) input in §4.5.11 requires. Per §2/§4.5.11, this is the
// one lookup in the driver where the early-stop actually matters: output
// lines stream through RecordStream (C1) as blame emits them, and the
// stream is cut short - discarding however much of the child's remaining
// output there is - the moment a matching record is found, rather than
// reading the whole incremental blame to completion first.
func (d *Driver) FindCurrentLinePosition(ctx context.Context, file string, peg Peg, content []byte) (int, error) {
	dir, base := filepath.Split(file)
	opts := runner.Options{runner.Flag("incremental")}
	var args []string
	var feedStdin func(io.WriteCloser) error
	if content != nil {
		opts = append(opts, runner.Flag("contents"))
		args = append(args, "-")
		s := string(content)
		feedStdin = func(w io.WriteCloser) error {
			if _, err := io.WriteString(w, s); err != nil {
				_ = w.Close()
				return err
			}
			return w.Close()
		}
	}
	args = append(args, "--", base)

	var result int
	found := false
	handler := func(line string) bool {
		m := incrementalLine.FindStringSubmatch(line)
		if m == nil {
			return false
		}
		if !commitMatches(m[1], peg.Commit) {
			return false
		}
		sourceLine, _ := strconv.Atoi(m[2])
		resultLine, _ := strconv.Atoi(m[3])
		span, _ := strconv.Atoi(m[4])
		if peg.Line < sourceLine || peg.Line >= sourceLine+span {
			return false
		}
		result = resultLine + (peg.Line - sourceLine)
		found = true
		return true
	}

	code, err := d.invokeRecords(ctx, "blame", opts, args, strings.TrimSuffix(dir, "/"), feedStdin, recordstream.Literal("\n"), handler)
	if err != nil {
		return 0, err
	}
	if found {
		return result, nil
	}
	if code != 0 {
		return 0, &Error{Code: LineNotFound, Message: fmt.Sprintf("blame --incremental failed for %s", file)}
	}
	return 0, &Error{Code: LineNotFound, Message: fmt.Sprintf("no incremental blame record for commit %q covers line %d", peg.Commit, peg.Line)}
}

// commitMatches reports whether an incremental blame record's sha
// attributes to target - an empty target (an uncommitted peg) matches
// only the all-zeroes placeholder sha git uses for working-tree lines.
func commitMatches(sha, target string) bool {
	if target == "" {
		return gitutil.IsZeroObjectName(sha)
	}
	return sha == target
}

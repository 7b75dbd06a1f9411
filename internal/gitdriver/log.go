package gitdriver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PNW-TechPros/git-casefile/internal/gitutil"
	"github.com/PNW-TechPros/git-casefile/internal/recordstream"
	"github.com/PNW-TechPros/git-casefile/internal/runner"
)

// gitISOLayout matches `git log --pretty=%ci`'s "2016-01-02 15:04:05 -0700".
const gitISOLayout = "2006-01-02 15:04:05 -0700"

// GetDateOfLastChange returns the commit date of the most recent change
// to path as of commit, via `git log --pretty=%ci -n1 commit -- path`.
func (d *Driver) GetDateOfLastChange(ctx context.Context, path, commit string) (time.Time, error) {
	out, code, err := d.runTrimmed(ctx, "log", runner.Options{runner.Val("pretty", "%ci"), runner.Val("n", "1")}, []string{commit, "--", path})
	if err != nil {
		return time.Time{}, err
	}
	if code != 0 || out == "" {
		return time.Time{}, &Error{Code: InvalidCommit, Message: fmt.Sprintf("no log entry for %q at %q", path, commit)}
	}
	t, perr := time.Parse(gitISOLayout, out)
	if perr != nil {
		return time.Time{}, &Error{Code: InvalidGitLogOutput, Message: fmt.Sprintf("unparseable date %q", out), Err: perr}
	}
	return t, nil
}

// FindLatestCommitParentWithPath implements §4.5.9: of committish's
// parents, picks the one where path was most recently touched. Parents
// where the lookup fails are skipped; ties keep the first (leftmost)
// parent, per §5's "strict >" rule.
func (d *Driver) FindLatestCommitParentWithPath(ctx context.Context, path, committish string) (string, error) {
	out, code, err := d.runTrimmed(ctx, "rev-parse", nil, []string{committish + "^@"})
	if err != nil {
		return "", err
	}
	if code != 0 {
		return "", &Error{Code: InvalidCommittish, Message: fmt.Sprintf("cannot list parents of %q", committish)}
	}
	parents := gitutil.SplitLines(out, "\n")

	best := ""
	var bestDate time.Time
	for _, p := range parents {
		date, derr := d.GetDateOfLastChange(ctx, path, p)
		if derr != nil {
			if isBug(derr) {
				return "", derr
			}
			continue
		}
		if date.After(bestDate) {
			bestDate = date
			best = p
		}
	}
	if best == "" {
		return "", &Error{Code: NoCommitFound, Message: fmt.Sprintf("no parent of %q has %q", committish, path)}
	}
	return best, nil
}

// DeletedCasefileRef is one entry from GetDeletedCasefileRefs.
type DeletedCasefileRef struct {
	Commit    string
	Committed time.Time
	Path      string
}

// GetDeletedCasefileRefs implements §4.5.10's two-state NUL-record
// parser over `git log -z --diff-filter=D --name-status --pretty=format:"-
// %H %ci" <ref> [-- *<partial>*/*]`, grounded directly in the teacher's
// own NUL-separated for-each-ref/ls-tree parsing idiom combined with
// splitlines (util.go). Records stream through RecordStream (§2) as git
// log emits them rather than waiting for the whole history walk to
// finish and buffer before parsing.
func (d *Driver) GetDeletedCasefileRefs(ctx context.Context, ref, partial string) ([]DeletedCasefileRef, error) {
	opts := runner.Options{
		runner.Flag("z"),
		runner.Val("diff-filter", "D"),
		runner.Flag("name-status"),
		runner.Val("pretty", "format:- %H %ci"),
	}
	args := []string{ref}
	if partial != "" {
		args = append(args, "--", "*"+partial+"*/*")
	}

	handler, refs, parseErr := newDeletedRefsHandler()
	code, err := d.invokeRecords(ctx, "log", opts, args, "", nil, recordstream.Literal("\x00"), handler)
	if err != nil {
		return nil, err
	}
	if code != 0 {
		return nil, nil
	}
	if *parseErr != nil {
		return nil, *parseErr
	}
	return *refs, nil
}

// newDeletedRefsHandler builds the stateful two-state (action/path)
// handler described in §4.5.10, plus the slice it appends completed refs
// to and the first parse error it hits, if any. Shared between
// GetDeletedCasefileRefs (streamed off a live `git log`) and
// parseDeletedCasefileRefs (driven directly off a byte slice in tests),
// so the parsing logic has one definition either way.
func newDeletedRefsHandler() (handler recordstream.Handler, refs *[]DeletedCasefileRef, parseErr *error) {
	var result []DeletedCasefileRef
	var err error
	inAction := true
	var commit string
	var committed time.Time
	handler = func(rec string) bool {
		if inAction {
			switch {
			case rec == "":
				// blank separator between commits; stay in action.
			case strings.HasPrefix(rec, "-"):
				infoLine, _, _ := strings.Cut(rec, "\n")
				c, d2, perr := parseCommitInfo(infoLine)
				if perr != nil {
					err = perr
					return true
				}
				commit, committed = c, d2
				inAction = false
			default:
				// a bare "D" marker: another deleted path under the
				// same commit as before.
				inAction = false
			}
			return false
		}
		result = append(result, DeletedCasefileRef{Commit: commit, Committed: committed, Path: rec})
		inAction = true
		return false
	}
	return handler, &result, &err
}

// parseDeletedCasefileRefs runs newDeletedRefsHandler's parser over a
// complete NUL-separated byte slice in one shot, for exercising the
// two-state parser without a real `git log` subprocess.
func parseDeletedCasefileRefs(out []byte) ([]DeletedCasefileRef, error) {
	handler, refs, parseErr := newDeletedRefsHandler()
	stream, err := recordstream.New(recordstream.Literal("\x00"), "utf8", handler)
	if err != nil {
		return nil, err
	}
	if err := stream.Write(out); err != nil {
		return nil, err
	}
	if err := stream.Close(); err != nil {
		return nil, err
	}
	if *parseErr != nil {
		return nil, *parseErr
	}
	return *refs, nil
}

func parseCommitInfo(line string) (commit string, committed time.Time, err error) {
	line = strings.TrimPrefix(line, "- ")
	sha, rest, ok := strings.Cut(line, " ")
	if !ok {
		return "", time.Time{}, &Error{Code: InvalidGitLogOutput, Message: fmt.Sprintf("malformed commit-info line %q", line)}
	}
	t, perr := time.Parse(gitISOLayout, rest)
	if perr != nil {
		return "", time.Time{}, &Error{Code: InvalidGitLogOutput, Message: fmt.Sprintf("malformed commit-info date %q", rest), Err: perr}
	}
	return sha, t, nil
}

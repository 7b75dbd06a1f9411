// Package relocate implements BookmarkRelocator: recovering a
// bookmark's current on-screen position from its persisted (commit,
// line) peg by combining blame lookups with `diff -U0` hunk analysis,
// falling back to a local text search when history can't help.
//
// Grounded in the teacher's own line-tracking-adjacent parsing
// discipline (parse_lstree_entry's record-at-a-time style, gitobjects.go)
// for the blame/diff record shapes this package consumes, and in
// hercules' FileDiff pipeline item (other_examples) for the general
// shape of "diff hunks feed a higher-level relocator" - generalized
// here to drive an external `diff` binary instead of an in-process
// diffmatchpatch.
package relocate

import (
	"context"
	"errors"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/PNW-TechPros/git-casefile/internal/diffdriver"
	"github.com/PNW-TechPros/git-casefile/internal/gitdriver"
	"github.com/PNW-TechPros/git-casefile/internal/gitlog"
	"github.com/PNW-TechPros/git-casefile/internal/gitutil"
)

// UntrackedWindowSize is the spiral search radius used whenever a
// bookmark has no peg (or every pegged strategy fails): ±1..±this many
// lines around the last-known line, per §4.6.
const UntrackedWindowSize = 15

// Peg is the persistent (commit, line) identity a bookmark can carry.
// It is the same shape gitdriver.LineIntroduction/FindCurrentLinePosition
// already work with, reused directly rather than re-declared.
type Peg = gitdriver.Peg

// LocationRequest is the input to CurrentLocation.
type LocationRequest struct {
	File     string
	Line     int
	MarkText string
	Peg      *Peg
	// LiveContent, if non-nil, overrides reading File from disk - the
	// edit buffer's in-memory content wins over whatever is saved.
	LiveContent []byte
}

// Location is a resolved on-screen bookmark position.
type Location struct {
	File string
	Line int
	Col  int
}

// PegOptions configures ComputeLinePeg.
type PegOptions struct {
	Commit      string
	LiveContent []byte
}

// LineRange is the {start, prime, end} result of ComputeCurrentLineRange.
type LineRange struct {
	Start int
	Prime int
	End   int
}

// Relocator implements §4.6 against a GitDriver and DiffDriver pair.
type Relocator struct {
	git    *gitdriver.Driver
	diff   *diffdriver.Driver
	logger gitlog.Logger
}

// New builds a Relocator. logger may be nil, in which case a fresh
// gitlog.New(false) logger is used.
func New(git *gitdriver.Driver, diff *diffdriver.Driver, logger gitlog.Logger) *Relocator {
	if logger == nil {
		logger = gitlog.New(false)
	}
	return &Relocator{git: git, diff: diff, logger: logger}
}

// CurrentLocation implements §4.6's currentLocation algorithm: blame
// pinpoint, then diff-hunk fallback, then an untracked spiral search,
// each short-circuiting on first success.
func (r *Relocator) CurrentLocation(ctx context.Context, req LocationRequest) (Location, error) {
	lines, err := readLines(req.File, req.LiveContent)
	if err != nil {
		return Location{}, err
	}
	rowHasText := func(i int) (int, bool) {
		if i < 1 || i > len(lines) {
			return 0, false
		}
		col := strings.Index(lines[i-1], req.MarkText)
		if col < 0 {
			return 0, false
		}
		return col + 1, true
	}

	if req.Peg == nil {
		return spiralFromLine(req.File, req.Line, rowHasText)
	}

	if i, ferr := r.git.FindCurrentLinePosition(ctx, req.File, *req.Peg, req.LiveContent); ferr == nil {
		if col, ok := rowHasText(i); ok {
			return Location{File: req.File, Line: i, Col: col}, nil
		}
	} else if !isExpectedFailure(ferr) {
		r.logger.WithField("error", ferr).Warnf("relocate: blame pinpoint lookup failed")
	}

	rng, rerr := r.ComputeCurrentLineRange(ctx, req.File, *req.Peg)
	if rerr == nil {
		if col, ok := rowHasText(rng.Prime); ok {
			return Location{File: req.File, Line: rng.Prime, Col: col}, nil
		}
		radius := rng.Prime - rng.Start
		if v := rng.End - rng.Prime; v > radius {
			radius = v
		}
		for i := 1; i <= radius; i++ {
			if above := rng.Prime + i; above < rng.End {
				if col, ok := rowHasText(above); ok {
					return Location{File: req.File, Line: above, Col: col}, nil
				}
			}
			if below := rng.Prime - i; below >= rng.Start {
				if col, ok := rowHasText(below); ok {
					return Location{File: req.File, Line: below, Col: col}, nil
				}
			}
		}
	} else if !isExpectedFailure(rerr) {
		r.logger.WithField("error", rerr).Warnf("relocate: diff fallback range computation failed")
	}

	return spiralFromLine(req.File, req.Line, rowHasText)
}

func spiralFromLine(file string, line int, rowHasText func(int) (int, bool)) (Location, error) {
	if col, ok := rowHasText(line); ok {
		return Location{File: file, Line: line, Col: col}, nil
	}
	for i := 1; i <= UntrackedWindowSize; i++ {
		if col, ok := rowHasText(line + i); ok {
			return Location{File: file, Line: line + i, Col: col}, nil
		}
		if col, ok := rowHasText(line - i); ok {
			return Location{File: file, Line: line - i, Col: col}, nil
		}
	}
	return Location{}, &Error{Code: MarkNotFound, Message: "no line within the search window near " + strconv.Itoa(line)}
}

// isExpectedFailure reports whether err is the kind of mundane lookup
// miss (gitdriver's LineNotFound/NoCommitFound) that CurrentLocation
// falls through on without logging - anything else is surprising
// enough to warrant a warning before moving to the next strategy.
func isExpectedFailure(err error) bool {
	var gerr *gitdriver.Error
	if errors.As(err, &gerr) {
		return gerr.Code == gitdriver.LineNotFound || gerr.Code == gitdriver.NoCommitFound
	}
	return false
}

// ComputeLinePeg implements §4.6's computeLinePeg: prefer blame's exact
// attribution, falling back to a diff-hunk-interpolated position when
// blame can't place the line (e.g. uncommitted content).
func (r *Relocator) ComputeLinePeg(ctx context.Context, file string, currentLine int, opts PegOptions) (Peg, error) {
	if peg, err := r.git.LineIntroduction(ctx, file, currentLine, opts.Commit, opts.LiveContent); err == nil {
		return peg, nil
	}

	commit := opts.Commit
	if commit == "" {
		sha, ok, rerr := r.git.RevParse(ctx, "HEAD")
		if rerr != nil {
			return Peg{Line: currentLine}, rerr
		}
		if !ok {
			return Peg{Line: currentLine}, nil
		}
		commit = sha
	}

	var currentContent, baseContent []byte
	var currentErr, baseErr error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if opts.LiveContent != nil {
			currentContent = opts.LiveContent
			return
		}
		currentContent, currentErr = os.ReadFile(file)
	}()
	go func() {
		defer wg.Done()
		baseContent, baseErr = r.git.GetBlobContent(ctx, commit, file)
	}()
	wg.Wait()
	if currentErr != nil || baseErr != nil {
		return Peg{Line: currentLine}, nil
	}

	hunks, err := r.diff.GetHunks(ctx, diffdriver.ImmediateSource{Content: baseContent}, diffdriver.ImmediateSource{Content: currentContent})
	if err != nil {
		return Peg{Line: currentLine}, nil
	}

	currentOffset := 0
	for _, h := range hunks {
		if currentLine < h.CurrentStart {
			return Peg{Line: currentLine - currentOffset}, nil
		}
		if currentLine >= h.CurrentStart && currentLine < h.CurrentEnd {
			baseLen := h.BaseEnd - h.BaseStart
			curLen := h.CurrentEnd - h.CurrentStart
			frac := float64(currentLine-h.CurrentStart) / float64(curLen)
			line := int(math.Floor(frac*float64(baseLen))) + h.BaseStart
			return Peg{Commit: commit, Line: line}, nil
		}
		currentOffset = h.CurrentEnd - h.BaseEnd
	}
	return Peg{Commit: commit, Line: currentLine - currentOffset}, nil
}

// ComputeCurrentLineRange implements §4.6's computeCurrentLineRange: the
// symmetric inverse of ComputeLinePeg, mapping a base-commit line back
// to a current-file range for the spiral-search fallback in
// CurrentLocation.
func (r *Relocator) ComputeCurrentLineRange(ctx context.Context, file string, peg Peg) (LineRange, error) {
	commit := peg.Commit
	if commit == "" {
		commit = "HEAD"
	}

	var currentContent, baseContent []byte
	var currentErr, baseErr error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		currentContent, currentErr = os.ReadFile(file)
	}()
	go func() {
		defer wg.Done()
		baseContent, baseErr = r.git.GetBlobContent(ctx, commit, file)
	}()
	wg.Wait()
	if currentErr != nil {
		return LineRange{}, currentErr
	}
	if baseErr != nil {
		return LineRange{}, baseErr
	}

	hunks, err := r.diff.GetHunks(ctx, diffdriver.ImmediateSource{Content: baseContent}, diffdriver.ImmediateSource{Content: currentContent})
	if err != nil {
		return LineRange{}, err
	}

	currentOffset := 0
	for _, h := range hunks {
		if peg.Line < h.BaseStart {
			start := peg.Line + currentOffset
			return LineRange{Start: start, Prime: start, End: start + 1}, nil
		}
		if peg.Line >= h.BaseStart && peg.Line < h.BaseEnd {
			baseLen := h.BaseEnd - h.BaseStart
			curLen := h.CurrentEnd - h.CurrentStart
			frac := float64(peg.Line-h.BaseStart) / float64(baseLen)
			prime := h.CurrentStart + int(math.Floor(frac*float64(curLen)))
			return LineRange{Start: h.CurrentStart, Prime: prime, End: h.CurrentEnd}, nil
		}
		currentOffset = h.CurrentEnd - h.BaseEnd
	}
	start := peg.Line + currentOffset
	return LineRange{Start: start, Prime: start, End: start + 1}, nil
}

func readLines(file string, live []byte) ([]string, error) {
	content := live
	if content == nil {
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, err
		}
		content = b
	}
	return gitutil.SplitLines(string(content), "\n"), nil
}

package relocate

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/PNW-TechPros/git-casefile/internal/diffdriver"
	"github.com/PNW-TechPros/git-casefile/internal/gitdriver"
	"github.com/PNW-TechPros/git-casefile/internal/gittest"
	"github.com/PNW-TechPros/git-casefile/internal/runner"
)

func testRelocator(t *testing.T) (*Relocator, string) {
	t.Helper()
	dir := gittest.NewRepo(t)

	git := gitdriver.New("git", runner.WithCwd(dir))
	diff := diffdriver.New("diff")
	return New(git, diff, nil), dir
}

func commitFile(t *testing.T, dir, path, content string) string {
	t.Helper()
	return gittest.CommitFile(t, dir, path, content)
}

func writeFile(t *testing.T, dir, path, content string) {
	t.Helper()
	gittest.WriteFile(t, dir, path, content)
}

func TestCurrentLocationNoPegExactLine(t *testing.T) {
	rel, dir := testRelocator(t)
	commitFile(t, dir, "notes.txt", "alpha\nTODO: fix this\ngamma\n")

	loc, err := rel.CurrentLocation(context.Background(), LocationRequest{
		File: filepath.Join(dir, "notes.txt"), Line: 2, MarkText: "TODO",
	})
	require.NoError(t, err)
	require.Equal(t, 2, loc.Line)
	require.Equal(t, 1, loc.Col)
}

func TestCurrentLocationNoPegSpiralsToNearbyLine(t *testing.T) {
	rel, dir := testRelocator(t)
	commitFile(t, dir, "notes.txt", "alpha\nbeta\nTODO: fix this\ngamma\n")

	loc, err := rel.CurrentLocation(context.Background(), LocationRequest{
		File: filepath.Join(dir, "notes.txt"), Line: 1, MarkText: "TODO",
	})
	require.NoError(t, err)
	require.Equal(t, 3, loc.Line)
}

func TestCurrentLocationNoPegBeyondWindowFails(t *testing.T) {
	rel, dir := testRelocator(t)
	lines := make([]string, 0, 40)
	for i := 0; i < 40; i++ {
		lines = append(lines, "filler")
	}
	lines[39] = "TODO: fix this"
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	commitFile(t, dir, "notes.txt", content)

	_, err := rel.CurrentLocation(context.Background(), LocationRequest{
		File: filepath.Join(dir, "notes.txt"), Line: 1, MarkText: "TODO",
	})
	require.Error(t, err)
	var rerr *Error
	require.ErrorAs(t, err, &rerr)
	require.Equal(t, MarkNotFound, rerr.Code)
}

func TestCurrentLocationWithPegBlamePinpointSucceeds(t *testing.T) {
	rel, dir := testRelocator(t)
	first := commitFile(t, dir, "notes.txt", "alpha\nTODO: fix this\ngamma\n")

	peg := Peg{Commit: first, Line: 2}
	loc, err := rel.CurrentLocation(context.Background(), LocationRequest{
		File: filepath.Join(dir, "notes.txt"), Line: 2, MarkText: "TODO", Peg: &peg,
	})
	require.NoError(t, err)
	require.Equal(t, 2, loc.Line)
}

func TestCurrentLocationWithPegDiffFallbackTracksShiftedLine(t *testing.T) {
	rel, dir := testRelocator(t)
	first := commitFile(t, dir, "notes.txt", "alpha\nTODO: fix this\ngamma\n")
	// A second commit shifts the TODO line down by inserting above it,
	// and the TODO text itself is edited so blame attributes that line to
	// the second commit: blame pinpoint for the first commit finds no
	// line covering the peg, forcing the diff-hunk fallback to locate it.
	commitFile(t, dir, "notes.txt", "prefix\nalpha\nTODO: fix this, updated\ngamma\n")

	peg := Peg{Commit: first, Line: 2}
	loc, err := rel.CurrentLocation(context.Background(), LocationRequest{
		File: filepath.Join(dir, "notes.txt"), Line: 2, MarkText: "TODO", Peg: &peg,
	})
	require.NoError(t, err)
	require.Equal(t, 3, loc.Line)
}

func TestCurrentLocationWithPegFallsAllTheWayToSpiral(t *testing.T) {
	rel, dir := testRelocator(t)
	first := commitFile(t, dir, "notes.txt", "alpha\nbeta\ngamma\n")
	commitFile(t, dir, "notes.txt", "alpha\nbeta\ngamma\nTODO: fix this\n")

	peg := Peg{Commit: first, Line: 2}
	loc, err := rel.CurrentLocation(context.Background(), LocationRequest{
		File: filepath.Join(dir, "notes.txt"), Line: 4, MarkText: "TODO", Peg: &peg,
	})
	require.NoError(t, err)
	require.Equal(t, 4, loc.Line)
}

func TestComputeLinePegViaBlame(t *testing.T) {
	rel, dir := testRelocator(t)
	first := commitFile(t, dir, "notes.txt", "alpha\nbeta\ngamma\n")

	peg, err := rel.ComputeLinePeg(context.Background(), filepath.Join(dir, "notes.txt"), 2, PegOptions{})
	require.NoError(t, err)
	require.Equal(t, first, peg.Commit)
	require.Equal(t, 2, peg.Line)
}

func TestComputeLinePegFallsBackToDiffForUncommittedLine(t *testing.T) {
	rel, dir := testRelocator(t)
	first := commitFile(t, dir, "notes.txt", "alpha\nbeta\ngamma\n")
	writeFile(t, dir, "notes.txt", "intro\nalpha\nbeta\ngamma\n")

	live, err := os.ReadFile(filepath.Join(dir, "notes.txt"))
	require.NoError(t, err)

	// Line 1 ("intro") exists only in the working tree, so blame pinpoint
	// (passing no explicit commit, since that would bypass liveContent
	// entirely per lineIntroduction's own commit-beats-live-content
	// precedence) attributes it to no commit, forcing the diff-hunk
	// fallback to interpolate its base-commit position instead.
	peg, err := rel.ComputeLinePeg(context.Background(), filepath.Join(dir, "notes.txt"), 1, PegOptions{LiveContent: live})
	require.NoError(t, err)
	require.Equal(t, 1, peg.Line)
	require.Equal(t, first, peg.Commit)
}

func TestComputeCurrentLineRangeOutsideHunk(t *testing.T) {
	rel, dir := testRelocator(t)
	first := commitFile(t, dir, "notes.txt", "alpha\nbeta\ngamma\n")
	commitFile(t, dir, "notes.txt", "intro\nalpha\nbeta\ngamma\n")

	rng, err := rel.ComputeCurrentLineRange(context.Background(), filepath.Join(dir, "notes.txt"), Peg{Commit: first, Line: 3})
	require.NoError(t, err)
	require.Equal(t, 4, rng.Start)
	require.Equal(t, 4, rng.Prime)
	require.Equal(t, 5, rng.End)
}

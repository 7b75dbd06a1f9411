package diffdriver

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PNW-TechPros/git-casefile/internal/runner"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newDriver() *Driver {
	return New("diff")
}

func TestGetHunksModification(t *testing.T) {
	dir := t.TempDir()
	base := writeFile(t, dir, "base.txt", "one\ntwo\nthree\n")
	current := writeFile(t, dir, "current.txt", "one\nTWO\nthree\n")

	hunks, err := newDriver().GetHunks(context.Background(), PathSource{Path: base}, PathSource{Path: current})
	require.NoError(t, err)
	require.Len(t, hunks, 1)
	assert.Equal(t, Change{BaseStart: 2, BaseEnd: 3, CurrentStart: 2, CurrentEnd: 3}, hunks[0])
}

func TestGetHunksPureInsertion(t *testing.T) {
	dir := t.TempDir()
	base := writeFile(t, dir, "base.txt", "one\ntwo\n")
	current := writeFile(t, dir, "current.txt", "one\ninserted\ntwo\n")

	hunks, err := newDriver().GetHunks(context.Background(), PathSource{Path: base}, PathSource{Path: current})
	require.NoError(t, err)
	require.Len(t, hunks, 1)
	assert.Equal(t, 2, hunks[0].BaseStart)
	assert.Equal(t, hunks[0].BaseStart, hunks[0].BaseEnd)
	assert.Equal(t, 2, hunks[0].CurrentStart)
	assert.Equal(t, 3, hunks[0].CurrentEnd)
}

func TestGetHunksPureDeletion(t *testing.T) {
	dir := t.TempDir()
	base := writeFile(t, dir, "base.txt", "one\ntwo\nthree\n")
	current := writeFile(t, dir, "current.txt", "one\nthree\n")

	hunks, err := newDriver().GetHunks(context.Background(), PathSource{Path: base}, PathSource{Path: current})
	require.NoError(t, err)
	require.Len(t, hunks, 1)
	assert.Equal(t, 2, hunks[0].BaseStart)
	assert.Equal(t, 3, hunks[0].BaseEnd)
	assert.Equal(t, 2, hunks[0].CurrentStart)
	assert.Equal(t, hunks[0].CurrentStart, hunks[0].CurrentEnd)
}

func TestGetHunksIdenticalReturnsNoHunks(t *testing.T) {
	dir := t.TempDir()
	base := writeFile(t, dir, "base.txt", "same\n")
	current := writeFile(t, dir, "current.txt", "same\n")

	hunks, err := newDriver().GetHunks(context.Background(), PathSource{Path: base}, PathSource{Path: current})
	require.NoError(t, err)
	assert.Empty(t, hunks)
}

func TestGetHunksImmediateSource(t *testing.T) {
	dir := t.TempDir()
	base := writeFile(t, dir, "base.txt", "alpha\nbeta\n")

	hunks, err := newDriver().GetHunks(context.Background(),
		PathSource{Path: base},
		ImmediateSource{Content: []byte("alpha\nBETA\n")},
	)
	require.NoError(t, err)
	require.Len(t, hunks, 1)
	assert.Equal(t, 2, hunks[0].BaseStart)
}

func TestGetHunksUnknownContentType(t *testing.T) {
	_, err := newDriver().GetHunks(context.Background(), unknownSource{}, unknownSource{})
	require.Error(t, err)
	var derr *Error
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, UnknownContentType, derr.Code)
}

type unknownSource struct{}

func (unknownSource) isContentSource() {}

func TestGetHunksDiffFailure(t *testing.T) {
	d := New("sh", runner.WithSubcommand(false))
	dir := t.TempDir()
	base := writeFile(t, dir, "base.txt", "x\n")
	current := writeFile(t, dir, "current.txt", "y\n")
	// "sh" is not diff; feeding it "-U 0 base current" as argv makes it
	// reject "-U" as an illegal option and exit 2, a non-0/1 exit.
	_, err := d.GetHunks(context.Background(), PathSource{Path: base}, PathSource{Path: current})
	require.Error(t, err)
}

// Package gittest provides the shared real-repository test fixtures
// used across this module's package tests: a fresh temporary git
// repository plus a bare remote to push to.
//
// Grounded in the teacher's own TestPullRestore (git-backup_test.go),
// which spawns a real temporary bare repository and drives cmd_pull
// through actual git subprocesses rather than mocking git - every
// package here (gitdriver, relocate, casefile) follows that same
// discipline, so their fixture setup is collected here instead of
// being copy-pasted per package.
package gittest

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// NewRepo creates a fresh, minimally-configured git repository in a
// temporary directory and returns its path.
func NewRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	Run(t, dir, "init", "-q", "-b", "main")
	Run(t, dir, "config", "user.email", "test@example.com")
	Run(t, dir, "config", "user.name", "Test User")
	return dir
}

// BareRemote creates a second, bare git repository and wires it as
// "origin" for dir, so push/fetch-driven operations have somewhere
// real to talk to.
func BareRemote(t *testing.T, dir string) string {
	t.Helper()
	remoteDir := t.TempDir()
	Run(t, remoteDir, "init", "-q", "--bare", "-b", "main")
	Run(t, dir, "remote", "add", "origin", remoteDir)
	return remoteDir
}

// Run shells out to the real git binary directly (bypassing whatever
// driver is under test) to set up fixture state.
func Run(t *testing.T, dir string, argv ...string) {
	t.Helper()
	cmd := exec.Command("git", argv...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoErrorf(t, err, "git %v: %s", argv, out)
}

// CommitFile writes content to path within dir and commits it,
// returning the new commit's sha1.
func CommitFile(t *testing.T, dir, path, content string) string {
	t.Helper()
	WriteFile(t, dir, path, content)
	Run(t, dir, "add", path)
	Run(t, dir, "commit", "-q", "-m", "commit "+path)
	return RevParse(t, dir, "HEAD")
}

// WriteFile writes content to path within dir without committing it.
func WriteFile(t *testing.T, dir, path, content string) {
	t.Helper()
	full := filepath.Join(dir, path)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

// RevParse resolves committish within dir via the real git binary.
func RevParse(t *testing.T, dir, committish string) string {
	t.Helper()
	cmd := exec.Command("git", "rev-parse", committish)
	cmd.Dir = dir
	out, err := cmd.Output()
	require.NoError(t, err)
	return string(trimNewline(out))
}

func trimNewline(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}

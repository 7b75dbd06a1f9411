package casefile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PNW-TechPros/git-casefile/internal/gitdriver"
	"github.com/PNW-TechPros/git-casefile/internal/gittest"
	"github.com/PNW-TechPros/git-casefile/internal/runner"
)

// testKeeper builds a fresh temporary git repository with a bare
// "origin" remote, mirroring gitdriver's own TestPullRestore-style
// fixtures one layer up at the façade.
func testKeeper(t *testing.T) (*CasefileKeeper, string) {
	t.Helper()
	dir := gittest.NewRepo(t)
	gittest.BareRemote(t, dir)

	git := gitdriver.New("git", runner.WithCwd(dir))
	return NewCasefileKeeper(git), dir
}

func TestPathGroupAndInstance(t *testing.T) {
	p := Path("bugs/nested/1234")
	assert.Equal(t, "bugs/nested", p.Group())
	assert.Equal(t, "1234", p.Instance())
}

func TestNewInstanceIDIsDistinct(t *testing.T) {
	a := NewInstanceID()
	b := NewInstanceID()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestBookmarkEqual(t *testing.T) {
	peg := Peg{Commit: "abc123", Line: 2}
	b1 := Bookmark{File: "a.go", Line: 2, Text: "TODO", Peg: &peg}
	b2 := Bookmark{File: "a.go", Line: 2, Text: "TODO", Peg: &Peg{Commit: "abc123", Line: 2}}
	assert.True(t, b1.Equal(b2))

	b3 := Bookmark{File: "a.go", Line: 3, Text: "TODO", Peg: &peg}
	assert.False(t, b1.Equal(b3))
}

func TestShareAndGetRoundTrip(t *testing.T) {
	k, _ := testKeeper(t)
	ctx := context.Background()

	bookmarks := []Bookmark{{File: "a.go", Line: 1, Text: "start"}}
	_, err := k.Remote("origin").Share(ctx, Path("bugs/1234"), bookmarks)
	require.NoError(t, err)

	cf, err := k.Get(ctx, Path("bugs/1234"), "")
	require.NoError(t, err)
	require.Len(t, cf.Bookmarks, 1)
	assert.Equal(t, "a.go", cf.Bookmarks[0].File)
	assert.Equal(t, "start", cf.Bookmarks[0].Text)
}

func TestListGroupsAndLoadViaRef(t *testing.T) {
	k, _ := testKeeper(t)
	ctx := context.Background()

	_, err := k.Remote("origin").Share(ctx, Path("bugs/1234"), []Bookmark{{File: "a.go", Line: 1}})
	require.NoError(t, err)
	_, err = k.Remote("origin").Share(ctx, Path("bugs/5678"), []Bookmark{{File: "b.go", Line: 2}})
	require.NoError(t, err)

	groups, err := k.ListGroups(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "bugs", groups[0].Name)
	require.Len(t, groups[0].Instances, 2)

	cf, err := groups[0].Instances[0].Load(ctx)
	require.NoError(t, err)
	require.Len(t, cf.Bookmarks, 1)
}

func TestDeleteThenListDeletedRefs(t *testing.T) {
	k, _ := testKeeper(t)
	ctx := context.Background()

	// Share a second instance so the ref survives deleting the first -
	// GetDeletedCasefileRefs walks SharedCasefilesRef's own history, which
	// only exists to walk once the ref itself still points somewhere.
	_, err := k.Remote("origin").Share(ctx, Path("bugs/1234"), []Bookmark{{File: "a.go", Line: 1}})
	require.NoError(t, err)
	_, err = k.Remote("origin").Share(ctx, Path("bugs/5678"), []Bookmark{{File: "b.go", Line: 2}})
	require.NoError(t, err)

	_, err = k.Remote("origin").Delete(ctx, Path("bugs/1234"))
	require.NoError(t, err)

	refs, err := k.DeletedRefs(ctx, "")
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, Path("bugs/1234"), refs[0].Path)

	cf, err := refs[0].Retrieve(ctx)
	require.NoError(t, err)
	require.Len(t, cf.Bookmarks, 1)
}

func TestCommitsUnknownAllKnownWhenNoPegs(t *testing.T) {
	k, _ := testKeeper(t)
	ctx := context.Background()

	result, err := k.Remote("origin").CommitsUnknown(ctx, []Bookmark{{File: "a.go", Line: 1}})
	require.NoError(t, err)
	assert.True(t, result.AllKnown())
	assert.Empty(t, result.Commits())
}

func TestCommitsUnknownReportsUnpushedCommit(t *testing.T) {
	k, dir := testKeeper(t)
	ctx := context.Background()

	sha := gittest.CommitFile(t, dir, "a.go", "package a\n")

	peg := Peg{Commit: sha, Line: 1}
	bookmarks := []Bookmark{{File: "a.go", Line: 1, Peg: &peg}}

	result, err := k.Remote("origin").CommitsUnknown(ctx, bookmarks)
	require.NoError(t, err)
	assert.False(t, result.AllKnown())
	assert.Equal(t, []string{sha}, result.Commits())
}

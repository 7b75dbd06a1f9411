package gitdriver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLstreeEntry(t *testing.T) {
	entry, err := parseLstreeEntry("100644 blob a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4e5f6a1b2\tbugs/1234")
	require.NoError(t, err)
	assert.Equal(t, TreeEntry{
		Mode: 0100644,
		Type: "blob",
		Hash: "a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4e5f6a1b2",
		Name: "bugs/1234",
	}, entry)

	_, err = parseLstreeEntry("no-tab-here")
	require.Error(t, err)

	_, err = parseLstreeEntry("bad mode fields\tname")
	require.Error(t, err)
}

func TestTreeEntryRender(t *testing.T) {
	e := TreeEntry{Mode: 0100644, Type: "blob", Hash: "deadbeef", Name: "x"}
	assert.Equal(t, "100644 blob deadbeef\tx", e.render())
}

func TestMkTreeRejectsSlashInName(t *testing.T) {
	d, _ := testRepo(t)
	_, err := d.MkTree(context.Background(), []TreeEntry{
		{Mode: 0100644, Type: "blob", Hash: mustHashBlob(t, d, "x"), Name: "nested/name"},
	})
	require.Error(t, err)
	var gerr *Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, InvalidTreeEntry, gerr.Code)
}

func TestMkTreeAcceptsEmptyEntrySet(t *testing.T) {
	d, _ := testRepo(t)
	// MkTree's empty-tree guard applies only when entries is non-empty:
	// an empty entry set legitimately yields the empty tree and must not
	// be rejected by it.
	tree, err := d.MkTree(context.Background(), nil)
	require.NoError(t, err)
	assert.NotEmpty(t, tree)
}

func TestLsTreeMissingTreeishIsEmptyNotError(t *testing.T) {
	d, _ := testRepo(t)
	entries, err := d.LsTree(context.Background(), "refs/does/not/exist", false)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLsTreeAndMkTreeRoundTrip(t *testing.T) {
	d, dir := testRepo(t)
	ctx := context.Background()
	sha := commitFile(t, dir, "group1/inst-a", `{"bookmarks":[]}`)

	entries, err := d.LsTree(ctx, sha, false)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "group1", entries[0].Name)
	assert.Equal(t, "tree", entries[0].Type)

	subEntries, err := d.LsTree(ctx, sha+":group1", false)
	require.NoError(t, err)
	require.Len(t, subEntries, 1)
	assert.Equal(t, "inst-a", subEntries[0].Name)
	assert.Equal(t, "blob", subEntries[0].Type)

	tree, err := d.MkTree(ctx, subEntries)
	require.NoError(t, err)
	assert.NotEmpty(t, tree)
}

func TestListCasefilesGroupsAdjacentEntries(t *testing.T) {
	d, dir := testRepo(t)
	ctx := context.Background()
	commitFile(t, dir, "bugs/1111", `{"bookmarks":[]}`)

	// Build a tree with two groups, each with two instances, via direct
	// filesystem writes so ls-tree -r returns them in sorted (adjacent)
	// order: bugs/1111, bugs/2222, features/3333, features/4444.
	writeAndCommit := func(path, content string) {
		t.Helper()
		commitFile(t, dir, path, content)
	}
	writeAndCommit("bugs/2222", `{"bookmarks":[]}`)
	writeAndCommit("features/3333", `{"bookmarks":[]}`)
	writeAndCommit("features/4444", `{"bookmarks":[]}`)

	head := revParseHead(t, dir)
	groups, err := d.ListCasefiles(ctx, head)
	require.NoError(t, err)
	require.Len(t, groups, 2)

	assert.Equal(t, "bugs", groups[0].Name)
	assert.Len(t, groups[0].Instances, 2)
	assert.Equal(t, "features", groups[1].Name)
	assert.Len(t, groups[1].Instances, 2)
}

func mustHashBlob(t *testing.T, d *Driver, content string) string {
	t.Helper()
	hash, err := d.HashObject(context.Background(), []byte(content))
	require.NoError(t, err)
	return hash
}

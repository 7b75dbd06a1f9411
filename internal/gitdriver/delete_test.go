package gitdriver

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeleteCasefilePathsNoRefYetIsNoop(t *testing.T) {
	d, dir := testRepo(t)
	bareRemote(t, dir)
	ctx := context.Background()

	result, err := d.DeleteCasefilePaths(ctx, "origin", []string{"bugs/1"})
	require.NoError(t, err)
	assert.Equal(t, DeleteResult{}, result)
}

func TestDeleteCasefilePathsRemovesOneOfTwoInstances(t *testing.T) {
	d, dir := testRepo(t)
	bareRemote(t, dir)
	ctx := context.Background()

	_, err := d.ShareCasefile(ctx, "origin", "bugs/1111", []json.RawMessage{json.RawMessage(`{"id":"a"}`)})
	require.NoError(t, err)
	_, err = d.ShareCasefile(ctx, "origin", "bugs/2222", []json.RawMessage{json.RawMessage(`{"id":"b"}`)})
	require.NoError(t, err)

	result, err := d.DeleteCasefilePaths(ctx, "origin", []string{"bugs/1111"})
	require.NoError(t, err)
	assert.False(t, result.Deleted)
	require.NotEmpty(t, result.Commit)

	groups, err := d.ListCasefiles(ctx, SharedCasefilesRef)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.Len(t, groups[0].Instances, 1)
	assert.Equal(t, "2222", groups[0].Instances[0].Instance)
}

func TestDeleteCasefilePathsDeletesRefWhenLastInstanceRemoved(t *testing.T) {
	d, dir := testRepo(t)
	bareRemote(t, dir)
	ctx := context.Background()

	_, err := d.ShareCasefile(ctx, "origin", "bugs/1111", []json.RawMessage{json.RawMessage(`{"id":"a"}`)})
	require.NoError(t, err)

	result, err := d.DeleteCasefilePaths(ctx, "origin", []string{"bugs/1111"})
	require.NoError(t, err)
	assert.True(t, result.Deleted)
	assert.Empty(t, result.Commit)

	_, ok, err := d.RevParse(ctx, SharedCasefilesRef)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteCasefilePathsUnknownPathIsNoop(t *testing.T) {
	d, dir := testRepo(t)
	bareRemote(t, dir)
	ctx := context.Background()

	_, err := d.ShareCasefile(ctx, "origin", "bugs/1111", []json.RawMessage{json.RawMessage(`{"id":"a"}`)})
	require.NoError(t, err)
	before, _, err := d.RevParse(ctx, SharedCasefilesRef)
	require.NoError(t, err)

	result, err := d.DeleteCasefilePaths(ctx, "origin", []string{"bugs/9999"})
	require.NoError(t, err)
	assert.Equal(t, DeleteResult{}, result)

	after, _, err := d.RevParse(ctx, SharedCasefilesRef)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestDeleteCasefilePathsAcrossMultipleGroups(t *testing.T) {
	d, dir := testRepo(t)
	bareRemote(t, dir)
	ctx := context.Background()

	_, err := d.ShareCasefile(ctx, "origin", "bugs/1111", []json.RawMessage{json.RawMessage(`{"id":"a"}`)})
	require.NoError(t, err)
	_, err = d.ShareCasefile(ctx, "origin", "features/3333", []json.RawMessage{json.RawMessage(`{"id":"c"}`)})
	require.NoError(t, err)

	result, err := d.DeleteCasefilePaths(ctx, "origin", []string{"bugs/1111", "features/3333"})
	require.NoError(t, err)
	assert.True(t, result.Deleted)

	_, ok, err := d.RevParse(ctx, SharedCasefilesRef)
	require.NoError(t, err)
	assert.False(t, ok)
}

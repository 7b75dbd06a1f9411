package gitdriver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/PNW-TechPros/git-casefile/internal/gitutil"
)

// ShareResult is the outcome of ShareCasefile.
type ShareResult struct {
	Message string
	Commit  string
}

// ShareCasefile implements §4.5.5: content-address bookmarks as a blob,
// splice it into the <group> subtree at SharedCasefilesRef, and push the
// new commit before moving the local ref - grounded directly in the
// teacher's empty-tree sentinel (mktree_empty), xgitSha1, and
// xcommit_tree helpers (git-backup.go lines ~110-200), generalized from
// "one fixed backup tree" to "one group subtree per casefile path".
func (d *Driver) ShareCasefile(ctx context.Context, remote, path string, bookmarks []json.RawMessage) (ShareResult, error) {
	group, instance, err := gitutil.SplitPath(path)
	if err != nil {
		return ShareResult{}, &Error{Code: InvalidTreeEntry, Message: err.Error()}
	}

	var parents []string
	rootSha, hasRoot, err := d.RevParse(ctx, SharedCasefilesRef)
	if err != nil {
		return ShareResult{}, err
	}
	rootTreeish := gitutil.EmptyTreeOID
	if hasRoot {
		parents = append(parents, rootSha)
		rootTreeish = rootSha
	}

	content, err := json.Marshal(struct {
		Bookmarks []json.RawMessage `json:"bookmarks"`
	}{Bookmarks: bookmarks})
	if err != nil {
		return ShareResult{}, &Error{Code: InvalidCommit, Message: "marshaling bookmarks", Err: err}
	}
	hash, err := d.HashObject(ctx, content)
	if err != nil {
		return ShareResult{}, err
	}

	groupEntries, err := d.LsTree(ctx, rootTreeish+":"+group, false)
	if err != nil {
		return ShareResult{}, err
	}

	found := -1
	for i, e := range groupEntries {
		if e.Name == instance {
			found = i
			break
		}
	}

	switch {
	case found < 0:
		groupEntries = append(groupEntries, TreeEntry{Mode: 0100644, Type: "blob", Hash: hash, Name: instance})
	case groupEntries[found].Hash == hash:
		return ShareResult{Message: "no changes to share", Commit: rootSha}, nil
	default:
		groupEntries[found].Hash = hash
	}

	groupTree, err := d.MkTree(ctx, groupEntries)
	if err != nil {
		return ShareResult{}, err
	}

	rootEntries, err := d.LsTree(ctx, rootTreeish, false)
	if err != nil {
		return ShareResult{}, err
	}
	var newRootEntries []TreeEntry
	replaced := false
	for _, e := range rootEntries {
		if e.Name == group {
			newRootEntries = append(newRootEntries, TreeEntry{Mode: 040000, Type: "tree", Hash: groupTree, Name: group})
			replaced = true
			continue
		}
		newRootEntries = append(newRootEntries, e)
	}
	if !replaced {
		newRootEntries = append(newRootEntries, TreeEntry{Mode: 040000, Type: "tree", Hash: groupTree, Name: group})
	}

	newRoot, err := d.MkTree(ctx, newRootEntries)
	if err != nil {
		return ShareResult{}, err
	}

	newCommit, err := d.CommitTree(ctx, newRoot, parents, "Share casefile")
	if err != nil {
		return ShareResult{}, err
	}

	if err := d.Push(ctx, remote, NewPushSpec(newCommit, SharedCasefilesRef, false)); err != nil {
		return ShareResult{}, err
	}
	if err := d.UpdateRef(ctx, SharedCasefilesRef, newCommit); err != nil {
		return ShareResult{}, err
	}

	return ShareResult{Message: "casefile shared", Commit: newCommit}, nil
}

// CommitTree runs `git commit-tree -m msg -p ...parents tree`, returning
// the new commit's hash. Generalizes the teacher's xcommit_tree
// (git-backup.go), minus the GIT_*_DATE/NAME/EMAIL environment-override
// plumbing the teacher used for deterministic tag-to-commit encoding -
// this driver never needs that, every commit here takes the ambient
// author/committer identity.
func (d *Driver) CommitTree(ctx context.Context, tree string, parents []string, msg string) (string, error) {
	args := []string{tree}
	for _, p := range parents {
		args = append(args, "-p", p)
	}
	out, code, err := d.runStdinTrimmed(ctx, "commit-tree", nil, args, msg)
	if err != nil {
		return "", err
	}
	if code != 0 {
		return "", &Error{Code: GitWriteFailed, Message: "git commit-tree failed", Argv: append([]string{"commit-tree"}, args...)}
	}
	if !gitutil.IsObjectName(out) {
		return "", &Error{Code: InvalidCommit, Message: fmt.Sprintf("commit-tree produced non-object output %q", out)}
	}
	return out, nil
}

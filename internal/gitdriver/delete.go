package gitdriver

import (
	"context"
	"sync"

	"github.com/PNW-TechPros/git-casefile/internal/gitutil"
)

// DeleteResult is the outcome of DeleteCasefilePaths.
type DeleteResult struct {
	// Deleted is true when the ref was removed entirely (the new root
	// tree came out empty).
	Deleted bool
	Commit  string
}

type groupOutcome struct {
	name     string
	tree     string // "" means "remove this group from the root"
	changed  bool
	skip     bool // group's tree lookup failed (missing) - nothing to delete
	err      error
}

// DeleteCasefilePaths implements §4.5.6: group the requested paths,
// rebuild or drop each affected group's subtree, then splice the result
// into the root tree - falling to ref deletion if nothing remains.
// Per §5's ordering guarantee, the per-group lsTree/mktree work fans out
// concurrently, one goroutine per group, since groups address disjoint
// subtrees; nothing shared is mutated across goroutines.
func (d *Driver) DeleteCasefilePaths(ctx context.Context, remote string, paths []string) (DeleteResult, error) {
	rootSha, hasRoot, err := d.RevParse(ctx, SharedCasefilesRef)
	if err != nil {
		return DeleteResult{}, err
	}
	if !hasRoot {
		return DeleteResult{}, nil
	}

	byGroup := map[string][]string{}
	var groupOrder []string
	for _, p := range paths {
		group, _, serr := gitutil.SplitPath(p)
		if serr != nil {
			continue
		}
		if _, ok := byGroup[group]; !ok {
			groupOrder = append(groupOrder, group)
		}
		byGroup[group] = append(byGroup[group], p)
	}

	outcomes := make([]groupOutcome, len(groupOrder))
	var wg sync.WaitGroup
	wg.Add(len(groupOrder))
	for i, group := range groupOrder {
		i, group := i, group
		go func() {
			defer wg.Done()
			outcomes[i] = d.rebuildGroup(ctx, rootSha, group, byGroup[group])
		}()
	}
	wg.Wait()

	anyChanged := false
	for _, o := range outcomes {
		if o.err != nil {
			return DeleteResult{}, o.err
		}
		if o.changed {
			anyChanged = true
		}
	}
	if !anyChanged {
		return DeleteResult{}, nil
	}

	rootEntries, err := d.LsTree(ctx, rootSha, false)
	if err != nil {
		return DeleteResult{}, err
	}
	changes := map[string]groupOutcome{}
	for _, o := range outcomes {
		if o.changed {
			changes[o.name] = o
		}
	}

	var newRootEntries []TreeEntry
	for _, e := range rootEntries {
		o, affected := changes[e.Name]
		if !affected {
			newRootEntries = append(newRootEntries, e)
			continue
		}
		if o.tree != "" {
			newRootEntries = append(newRootEntries, TreeEntry{Mode: 040000, Type: "tree", Hash: o.tree, Name: e.Name})
		}
		// o.tree == "" drops the group entirely.
	}

	var newCommit string
	if len(newRootEntries) == 0 {
		newCommit = ""
	} else {
		newRoot, merr := d.MkTree(ctx, newRootEntries)
		if merr != nil {
			return DeleteResult{}, merr
		}
		var parents []string
		if rootSha != "" {
			parents = []string{rootSha}
		}
		newCommit, err = d.CommitTree(ctx, newRoot, parents, "Delete casefiles")
		if err != nil {
			return DeleteResult{}, err
		}
	}

	var pushSpec PushSpec
	if newCommit == "" {
		pushSpec = DeleteRemoteRef(SharedCasefilesRef)
	} else {
		pushSpec = NewPushSpec(newCommit, SharedCasefilesRef, false)
	}
	if err := d.Push(ctx, remote, pushSpec); err != nil {
		return DeleteResult{}, err
	}
	if err := d.UpdateRef(ctx, SharedCasefilesRef, newCommit); err != nil {
		return DeleteResult{}, err
	}

	return DeleteResult{Deleted: newCommit == "", Commit: newCommit}, nil
}

// rebuildGroup computes one group's post-deletion subtree.
func (d *Driver) rebuildGroup(ctx context.Context, rootSha, group string, paths []string) groupOutcome {
	entries, err := d.LsTree(ctx, rootSha+":"+group, false)
	if err != nil {
		return groupOutcome{name: group, err: err}
	}
	if entries == nil {
		return groupOutcome{name: group, skip: true}
	}

	doomed := gitutil.Set[string]{}
	for _, p := range paths {
		_, instance, serr := gitutil.SplitPath(p)
		if serr == nil {
			doomed.Add(instance)
		}
	}

	var kept []TreeEntry
	removedAny := false
	for _, e := range entries {
		if doomed.Contains(e.Name) {
			removedAny = true
			continue
		}
		kept = append(kept, e)
	}
	if !removedAny {
		return groupOutcome{name: group, skip: true}
	}
	if len(kept) == 0 {
		return groupOutcome{name: group, changed: true, tree: ""}
	}

	tree, err := d.MkTree(ctx, kept)
	if err != nil {
		return groupOutcome{name: group, err: err}
	}
	return groupOutcome{name: group, changed: true, tree: tree}
}

package casefile

import (
	"context"
	"encoding/json"
	"time"

	"github.com/PNW-TechPros/git-casefile/internal/gitdriver"
	"github.com/PNW-TechPros/git-casefile/internal/gitutil"
)

// GitRemote is a named remote this process can fetch shared casefiles
// from and share/delete casefiles to, backed by a gitdriver.Driver.
// Grounded in the teacher's own "one xgit-wrapping struct per
// operation group" shape (git-backup.go), collapsed here into a
// single thin forwarding layer over C5's Driver.
type GitRemote struct {
	Name string
	git  *gitdriver.Driver
}

// NewGitRemote binds name to git for façade calls.
func NewGitRemote(name string, git *gitdriver.Driver) *GitRemote {
	return &GitRemote{Name: name, git: git}
}

// Fetch runs a plain `git fetch` against the remote, updating its
// tracking refs - the generic counterpart to FetchSharedCasefiles below,
// per §4.5.1's fetchFromRemote.
func (r *GitRemote) Fetch(ctx context.Context) error {
	return r.git.FetchFromRemote(ctx, r.Name)
}

// FetchSharedCasefiles pulls every casefile ref from the remote.
func (r *GitRemote) FetchSharedCasefiles(ctx context.Context) error {
	return r.git.FetchSharedCasefiles(ctx, r.Name)
}

// Share publishes bookmarks at path to the remote, per §4.5.5.
func (r *GitRemote) Share(ctx context.Context, path Path, bookmarks []Bookmark) (gitdriver.ShareResult, error) {
	raw := make([]json.RawMessage, 0, len(bookmarks))
	for _, b := range bookmarks {
		enc, err := json.Marshal(b)
		if err != nil {
			return gitdriver.ShareResult{}, err
		}
		raw = append(raw, enc)
	}
	return r.git.ShareCasefile(ctx, r.Name, string(path), raw)
}

// Delete removes the given casefile paths from the remote, per §4.5.6.
func (r *GitRemote) Delete(ctx context.Context, paths ...Path) (gitdriver.DeleteResult, error) {
	strs := make([]string, len(paths))
	for i, p := range paths {
		strs[i] = string(p)
	}
	return r.git.DeleteCasefilePaths(ctx, r.Name, strs)
}

// PushCommitRefs anchors each commit on the remote by pushing it to its
// own refs/collaboration/referenced-commits/<commit> ref.
func (r *GitRemote) PushCommitRefs(ctx context.Context, commits ...string) error {
	return r.git.PushCommitRefs(ctx, r.Name, commits...)
}

// CommitsUnknownResult is commitsUnknown's result, replacing the JS
// truthy/falsy `[]string | false` protocol with a proper sum type per
// §9's REDESIGN FLAG.
type CommitsUnknownResult struct {
	allKnown bool
	commits  []string
}

// AllKnown reports whether every examined commit is already known to
// the remote.
func (r CommitsUnknownResult) AllKnown() bool { return r.allKnown }

// Commits returns the commits not yet known to the remote; empty when
// AllKnown is true.
func (r CommitsUnknownResult) Commits() []string { return r.commits }

// CommitsUnknown flattens bookmarks depth-first, collects the set of
// distinct peg commits referenced anywhere in the forest, and reports
// which of them the remote doesn't have yet. Per §4.7: bookmarks carry
// no identity of their own (this package's Children is a plain value
// tree decoded straight off JSON, never constructed with aliased
// sub-trees), so the forest-level "dedup by identity" collapses to
// deduping at the commit-string level, which the set below already does.
func (r *GitRemote) CommitsUnknown(ctx context.Context, bookmarks []Bookmark) (CommitsUnknownResult, error) {
	seen := gitutil.Set[string]{}
	var walk func([]Bookmark)
	walk = func(bs []Bookmark) {
		for _, b := range bs {
			if b.Peg != nil && b.Peg.Commit != "" {
				seen.Add(b.Peg.Commit)
			}
			walk(b.Children)
		}
	}
	walk(bookmarks)
	commits := seen.Elements()

	if len(commits) == 0 {
		return CommitsUnknownResult{allKnown: true}, nil
	}

	unknown, err := r.git.SelectCommitsUnknownToRemote(ctx, r.Name, commits)
	if err != nil {
		return CommitsUnknownResult{}, err
	}
	if len(unknown) == 0 {
		return CommitsUnknownResult{allKnown: true}, nil
	}
	return CommitsUnknownResult{commits: unknown}, nil
}

// CasefileRef identifies one casefile instance without yet loading its
// bookmarks, per §4.7: groupName/instance/path plus lazy getAuthors()
// and load().
type CasefileRef struct {
	GroupName string
	Instance  string
	Path      Path

	ref string // SharedCasefilesRef, or a specific historical ref
	git *gitdriver.Driver
}

// GetAuthors returns the distinct authors who have touched this
// casefile instance.
func (r CasefileRef) GetAuthors(ctx context.Context) ([]string, error) {
	return r.git.CasefileAuthors(ctx, r.ref, string(r.Path))
}

// Load retrieves this instance's current bookmarks.
func (r CasefileRef) Load(ctx context.Context) (Casefile, error) {
	doc, err := r.git.GetCasefile(ctx, string(r.Path), "")
	if err != nil {
		return Casefile{}, err
	}
	return documentToCasefile(r.Path, doc)
}

// CasefileGroup collects the CasefileRefs sharing one group name, per
// §4.7 - the public counterpart of gitdriver.CasefileGroup, with each
// instance resolved to a loadable CasefileRef instead of a bare hash.
type CasefileGroup struct {
	Name      string
	Instances []CasefileRef
}

// CasefileKeeper is the top-level entry point a caller constructs once
// per repository: it knows how to list and load casefiles from
// SharedCasefilesRef and how to reach named remotes to share/delete
// against. Thin forwarding wiring over C5/C6, per §2's Façade row.
type CasefileKeeper struct {
	git *gitdriver.Driver
}

// NewCasefileKeeper builds a CasefileKeeper over git.
func NewCasefileKeeper(git *gitdriver.Driver) *CasefileKeeper {
	return &CasefileKeeper{git: git}
}

// Remote returns the named GitRemote for sharing/deleting/fetching.
func (k *CasefileKeeper) Remote(name string) *GitRemote {
	return NewGitRemote(name, k.git)
}

// ListGroups lists every casefile group currently at
// SharedCasefilesRef.
func (k *CasefileKeeper) ListGroups(ctx context.Context) ([]CasefileGroup, error) {
	groups, err := k.git.ListCasefiles(ctx, gitdriver.SharedCasefilesRef)
	if err != nil {
		return nil, err
	}
	out := make([]CasefileGroup, len(groups))
	for i, g := range groups {
		refs := make([]CasefileRef, len(g.Instances))
		for j, inst := range g.Instances {
			refs[j] = CasefileRef{
				GroupName: g.Name,
				Instance:  inst.Instance,
				Path:      Path(g.Name + "/" + inst.Instance),
				ref:       gitdriver.SharedCasefilesRef,
				git:       k.git,
			}
		}
		out[i] = CasefileGroup{Name: g.Name, Instances: refs}
	}
	return out, nil
}

// Get loads the casefile at path, optionally as it stood just before
// beforeCommit (per §4.5.9's "best parent with path" resolution).
func (k *CasefileKeeper) Get(ctx context.Context, path Path, beforeCommit string) (Casefile, error) {
	doc, err := k.git.GetCasefile(ctx, string(path), beforeCommit)
	if err != nil {
		return Casefile{}, err
	}
	return documentToCasefile(path, doc)
}

// DeletedRef is the façade's richer counterpart to
// gitdriver.DeletedCasefileRef (§4.7): the same (commit, committed,
// path) triple, plus behavior bound to the keeper it was listed from.
type DeletedRef struct {
	Commit    string
	Committed time.Time
	Path      Path

	git *gitdriver.Driver
}

// GetAuthors returns the distinct authors who touched this path before
// it was deleted.
func (d DeletedRef) GetAuthors(ctx context.Context) ([]string, error) {
	return d.git.CasefileAuthors(ctx, d.Commit, string(d.Path))
}

// Retrieve loads the casefile's content as it stood immediately before
// the deleting commit.
func (d DeletedRef) Retrieve(ctx context.Context) (Casefile, error) {
	doc, err := d.git.GetCasefile(ctx, string(d.Path), d.Commit)
	if err != nil {
		return Casefile{}, err
	}
	return documentToCasefile(d.Path, doc)
}

// DeletedRefs lists casefile paths deleted in history, per §4.5.10. A
// non-empty partial restricts the listing to the pathspec
// `*<partial>*/*`: partial may occur anywhere before a '/', not only as
// a path prefix.
func (k *CasefileKeeper) DeletedRefs(ctx context.Context, partial string) ([]DeletedRef, error) {
	raw, err := k.git.GetDeletedCasefileRefs(ctx, gitdriver.SharedCasefilesRef, partial)
	if err != nil {
		return nil, err
	}
	out := make([]DeletedRef, len(raw))
	for i, r := range raw {
		out[i] = DeletedRef{Commit: r.Commit, Committed: r.Committed, Path: Path(r.Path), git: k.git}
	}
	return out, nil
}

func documentToCasefile(path Path, doc *gitdriver.CasefileDocument) (Casefile, error) {
	bookmarks := make([]Bookmark, len(doc.Bookmarks))
	for i, raw := range doc.Bookmarks {
		if err := json.Unmarshal(raw, &bookmarks[i]); err != nil {
			return Casefile{}, err
		}
	}
	return Casefile{Path: path, Bookmarks: bookmarks}, nil
}

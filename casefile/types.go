// Package casefile is the public data model and façade for git-casefile:
// bookmarks pegged to git history, grouped into casefiles, shared and
// retrieved through a GitRemote backed by internal/gitdriver.
//
// Grounded in the teacher's own public/internal split (git-backup.go's
// exported CLI-facing helpers over the unexported xgit/xcommit_tree
// plumbing) - here the plumbing lives in internal/gitdriver and
// internal/relocate, and this package is the thin, documented surface
// other programs import.
package casefile

import (
	"github.com/google/uuid"

	"github.com/PNW-TechPros/git-casefile/internal/gitdriver"
	"github.com/PNW-TechPros/git-casefile/internal/gitutil"
)

// Peg is the persistent (commit, line) identity a Bookmark can carry,
// letting BookmarkRelocator recover its current position after the
// file around it has changed. Reused directly from gitdriver rather
// than re-declared, since GetCasefile/ShareCasefile round-trip it
// as-is.
type Peg = gitdriver.Peg

// Bookmark is one marked position in a file, per §3's data model.
// Line and Col are 1-based; Children nests sub-bookmarks (e.g. a
// function bookmark containing bookmarks for statements within it).
type Bookmark struct {
	File     string     `json:"file"`
	Line     int        `json:"line"`
	Col      int        `json:"col,omitempty"`
	Text     string     `json:"text,omitempty"`
	Children []Bookmark `json:"children,omitempty"`
	Peg      *Peg       `json:"peg,omitempty"`
}

// Equal reports structural equality between two bookmarks, per §3's
// invariant that a Bookmark carries no identity of its own - two
// bookmarks with the same fields are the same bookmark, not merely
// equivalent ones.
func (b Bookmark) Equal(other Bookmark) bool {
	if b.File != other.File || b.Line != other.Line || b.Col != other.Col || b.Text != other.Text {
		return false
	}
	if (b.Peg == nil) != (other.Peg == nil) {
		return false
	}
	if b.Peg != nil && *b.Peg != *other.Peg {
		return false
	}
	if len(b.Children) != len(other.Children) {
		return false
	}
	for i := range b.Children {
		if !b.Children[i].Equal(other.Children[i]) {
			return false
		}
	}
	return true
}

// Casefile is a named collection of bookmarks, as stored at one
// CasefilePath within SharedCasefilesRef.
type Casefile struct {
	Path      Path       `json:"-"`
	Bookmarks []Bookmark `json:"bookmarks"`
}

// Path is a CasefilePath: "<group>/<instance>", where group may itself
// contain slashes and instance is conventionally (but not necessarily)
// a UUID - per §3's "instance is a UUID in practice, not by contract".
type Path string

// Group returns the portion of p before its rightmost slash.
func (p Path) Group() string {
	group, _, err := gitutil.SplitPath(string(p))
	if err != nil {
		return string(p)
	}
	return group
}

// Instance returns the portion of p after its rightmost slash.
func (p Path) Instance() string {
	_, instance, err := gitutil.SplitPath(string(p))
	if err != nil {
		return ""
	}
	return instance
}

// NewInstanceID returns a fresh casefile instance identifier. The data
// model only requires instances to be distinct within a group; UUIDs
// are what every sharing client in practice generates one with.
func NewInstanceID() string {
	return uuid.NewString()
}

package gitdriver

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/PNW-TechPros/git-casefile/internal/gitutil"
	"github.com/PNW-TechPros/git-casefile/internal/recordstream"
	"github.com/PNW-TechPros/git-casefile/internal/runner"
)

// TreeEntry is one line of a Git tree object, generalizing the teacher's
// parse_lstree_entry (gitobjects.go) from a Sha1-typed byte array to a
// plain hex string (this driver works with SHA-1 or SHA-256 object
// names alike).
type TreeEntry struct {
	Mode uint32
	Type string // "blob" or "tree"
	Hash string
	Name string
}

func (e TreeEntry) render() string {
	return fmt.Sprintf("%06o %s %s\t%s", e.Mode, e.Type, e.Hash, e.Name)
}

// parseLstreeEntry parses one ls-tree -z record: "<mode> SP <type> SP
// <hash> TAB <name>". Mirrors parse_lstree_entry's headtail-then-Sscanf
// approach (gitobjects.go), generalized off the fixed-width Sha1 type.
func parseLstreeEntry(record string) (TreeEntry, error) {
	head, name, err := gitutil.HeadTail(record, "\t")
	if err != nil {
		return TreeEntry{}, &Error{Code: InvalidTreeEntry, Message: fmt.Sprintf("malformed ls-tree record %q", record)}
	}
	fields := strings.SplitN(head, " ", 3)
	if len(fields) != 3 {
		return TreeEntry{}, &Error{Code: InvalidTreeEntry, Message: fmt.Sprintf("malformed ls-tree record %q", record)}
	}
	mode, err := strconv.ParseUint(fields[0], 8, 32)
	if err != nil {
		return TreeEntry{}, &Error{Code: InvalidTreeEntry, Message: fmt.Sprintf("malformed ls-tree mode %q", fields[0])}
	}
	return TreeEntry{Mode: uint32(mode), Type: fields[1], Hash: fields[2], Name: name}, nil
}

// LsTree lists the immediate or recursive (full-tree) entries of
// treeish, streaming ls-tree's NUL-delimited records through RecordStream
// (§2) rather than buffering the whole output before splitting it. A
// non-zero exit (treeish absent) returns an empty slice, not an error -
// the usual "expected absence" recovery per §7.
func (d *Driver) LsTree(ctx context.Context, treeish string, recursive bool) ([]TreeEntry, error) {
	opts := runner.Options{runner.Flag("z")}
	if recursive {
		opts = append(opts, runner.Flag("r"), runner.Flag("full-tree"))
	}

	var entries []TreeEntry
	var parseErr error
	code, err := d.invokeRecords(ctx, "ls-tree", opts, []string{treeish}, "", nil, recordstream.Literal("\x00"), func(record string) bool {
		if record == "" {
			return false
		}
		entry, perr := parseLstreeEntry(record)
		if perr != nil {
			parseErr = perr
			return true
		}
		entries = append(entries, entry)
		return false
	})
	if err != nil {
		return nil, err
	}
	if code != 0 {
		return nil, nil
	}
	if parseErr != nil {
		return nil, parseErr
	}
	return entries, nil
}

// CasefileListEntry is one instance within a CasefileGroup.
type CasefileListEntry struct {
	Instance string
	Hash     string
}

// CasefileGroup collects the instances sharing one group name, in
// ls-tree traversal order.
type CasefileGroup struct {
	Name      string
	Instances []CasefileListEntry
}

// ListCasefiles lists every casefile blob under ref via `ls-tree -rz
// --full-tree`, grouping entries by their CasefilePath's group segment.
//
// Per §4.5.2 and the open question in §9: only *adjacent* records with
// the same group name are merged into one CasefileGroup. Git always
// returns ls-tree output sorted, so non-adjacent duplicates of the same
// group name are unreachable in practice; if they occurred they would
// produce two separate groups, and that is deliberately left as-is.
func (d *Driver) ListCasefiles(ctx context.Context, ref string) ([]CasefileGroup, error) {
	entries, err := d.LsTree(ctx, ref, true)
	if err != nil {
		return nil, err
	}

	var groups []CasefileGroup
	for _, e := range entries {
		if e.Mode != 0100644 || e.Type != "blob" {
			continue
		}
		group, instance, serr := gitutil.SplitPath(e.Name)
		if serr != nil {
			continue
		}
		if n := len(groups); n > 0 && groups[n-1].Name == group {
			groups[n-1].Instances = append(groups[n-1].Instances, CasefileListEntry{Instance: instance, Hash: e.Hash})
			continue
		}
		groups = append(groups, CasefileGroup{
			Name:      group,
			Instances: []CasefileListEntry{{Instance: instance, Hash: e.Hash}},
		})
	}
	return groups, nil
}

// MkTree builds a tree object from entries via `git mktree -z`, per
// §4.5.7. Any entry whose Name contains "/" is rejected before the
// subprocess is even invoked (git itself would silently build a nested
// tree, which the protocol never wants at this layer). A non-empty
// input degrading to the empty tree is rejected too - a sign the caller
// built a bad entry set, not a legitimate outcome.
func (d *Driver) MkTree(ctx context.Context, entries []TreeEntry) (string, error) {
	for _, e := range entries {
		if strings.Contains(e.Name, "/") {
			return "", &Error{Code: InvalidTreeEntry, Message: fmt.Sprintf("entry name %q contains '/'", e.Name)}
		}
	}

	var stdin strings.Builder
	for _, e := range entries {
		stdin.WriteString(e.render())
		stdin.WriteByte(0)
	}

	out, code, err := d.runStdinTrimmed(ctx, "mktree", runner.Options{runner.Flag("z")}, nil, stdin.String())
	if err != nil {
		return "", err
	}
	if code != 0 {
		return "", &Error{Code: GitWriteFailed, Message: "git mktree failed"}
	}
	if !gitutil.IsObjectName(out) {
		return "", &Error{Code: InvalidTreeResult, Message: fmt.Sprintf("mktree produced non-object output %q", out)}
	}
	if len(entries) > 0 && out == gitutil.EmptyTreeOID {
		return "", &Error{Code: InvalidTreeResult, Message: "non-empty entry set degraded to the empty tree"}
	}
	return out, nil
}

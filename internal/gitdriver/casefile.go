package gitdriver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/PNW-TechPros/git-casefile/internal/gitutil"
	"github.com/PNW-TechPros/git-casefile/internal/runner"
)

// CasefileDocument is a retrieved casefile blob, normalized to its
// {bookmarks: [...]} shape per §4.5.4 and with Path injected - the blob
// itself never stores its own path.
type CasefileDocument struct {
	Path      string
	Bookmarks []json.RawMessage
}

// GetBlobContent reads the raw bytes of the blob at commit:path via
// `git cat-file blob`, generalizing the teacher's blob_to_file/xgit
// cat-file pattern (git-backup.go) from "always write to a file" to
// "return the bytes".
func (d *Driver) GetBlobContent(ctx context.Context, commit, path string) ([]byte, error) {
	blobish := commit + ":" + path
	cwd := ""
	if filepath.IsAbs(path) {
		// "<rev>:<path>" only resolves paths relative to the repository
		// root, or with "./" to the working directory: an on-disk path is
		// looked up from its own directory, as the blame lookups do.
		dir, base := filepath.Split(path)
		cwd, blobish = strings.TrimSuffix(dir, "/"), commit+":./"+base
	}
	var buf bytes.Buffer
	result, err := d.runner.Invoke(ctx, "cat-file", nil, []string{"blob", blobish}, runner.InvokeIO{
		Stdout: &buf,
		Cwd:    cwd,
		Exit:   func(code int) (interface{}, error) { return code, nil },
	})
	if err != nil {
		return nil, err
	}
	if code, _ := result.(int); code != 0 {
		return nil, &Error{Code: InvalidCommittish, Message: fmt.Sprintf("no blob at %q", blobish)}
	}
	return buf.Bytes(), nil
}

// GetCasefile retrieves the casefile at path. With beforeCommit unset,
// it reads the blob at SharedCasefilesRef:path; with beforeCommit set,
// it resolves to the best parent of beforeCommit that still has the
// path (§4.5.9) and reads the blob there.
func (d *Driver) GetCasefile(ctx context.Context, path, beforeCommit string) (*CasefileDocument, error) {
	commit := SharedCasefilesRef
	if beforeCommit != "" {
		parent, err := d.FindLatestCommitParentWithPath(ctx, path, beforeCommit)
		if err != nil {
			return nil, err
		}
		commit = parent
	}

	raw, err := d.GetBlobContent(ctx, commit, path)
	if err != nil {
		return nil, err
	}
	return parseCasefileBlob(raw, path)
}

// parseCasefileBlob normalizes a casefile blob to {bookmarks: [...]}.
// Legacy blobs may be a bare top-level array.
func parseCasefileBlob(raw []byte, path string) (*CasefileDocument, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, &Error{Code: InvalidCommit, Message: "empty casefile blob"}
	}

	switch trimmed[0] {
	case '[':
		var bookmarks []json.RawMessage
		if err := json.Unmarshal(trimmed, &bookmarks); err != nil {
			return nil, &Error{Code: InvalidCommit, Message: "malformed legacy casefile array", Err: err}
		}
		return &CasefileDocument{Path: path, Bookmarks: bookmarks}, nil
	case '{':
		var doc struct {
			Bookmarks []json.RawMessage `json:"bookmarks"`
		}
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, &Error{Code: InvalidCommit, Message: "malformed casefile object", Err: err}
		}
		return &CasefileDocument{Path: path, Bookmarks: doc.Bookmarks}, nil
	default:
		return nil, &Error{Code: InvalidCommit, Message: "casefile blob is neither an object nor an array"}
	}
}

// CasefileAuthors returns the distinct authors who have touched path on
// ref, first-seen order collapsed and then sorted ascending, per
// §4.5.3. Grounded in the teacher's own splitlines helper (util.go) for
// trimming `git log`'s trailing newline.
func (d *Driver) CasefileAuthors(ctx context.Context, ref, path string) ([]string, error) {
	out, code, err := d.run(ctx, "log", runner.Options{runner.Val("pretty", "format:%aN")}, []string{ref, "--", path})
	if err != nil {
		return nil, err
	}
	if code != 0 {
		return nil, nil
	}

	lines := gitutil.SplitLines(string(out), "\n")
	seen := gitutil.Set[string]{}
	authors := make([]string, 0, len(lines))
	for _, l := range lines {
		if l == "" || seen.Contains(l) {
			continue
		}
		seen.Add(l)
		authors = append(authors, l)
	}
	sort.Strings(authors)
	return authors, nil
}

// HashObject content-addresses content as a blob via `git hash-object -w
// --stdin`, returning its hash. Grounded in the teacher's file_to_blob
// (git-backup.go), generalized from "hash a file on disk" to "hash an
// in-memory byte slice" - ShareCasefile always has the JSON already in
// memory, never on disk.
func (d *Driver) HashObject(ctx context.Context, content []byte) (string, error) {
	out, code, err := d.runStdinTrimmed(ctx, "hash-object", runner.Options{runner.Flag("w"), runner.Flag("stdin")}, nil, string(content))
	if err != nil {
		return "", err
	}
	if code != 0 {
		return "", &Error{Code: GitWriteFailed, Message: "git hash-object failed"}
	}
	if !gitutil.IsObjectName(out) {
		return "", &Error{Code: InvalidTreeResult, Message: fmt.Sprintf("hash-object produced non-object output %q", out)}
	}
	return out, nil
}

package gitdriver

import (
	"context"
	"sync"

	"github.com/PNW-TechPros/git-casefile/internal/runner"
)

const commitsUnknownBatchSize = 8

// SelectCommitsUnknownToRemote implements §4.5.12: for each commit, runs
// `git branch -r --contains <commit> <remote>/*`; any stdout line means
// the commit is already reachable from some branch on remote. Returns
// the subset of commits for which no such branch was found, processed
// in bounded batches of 8 - the teacher's xgit-per-call style widened to
// a small worker pool since each check is independent.
func (d *Driver) SelectCommitsUnknownToRemote(ctx context.Context, remote string, commits []string) ([]string, error) {
	type outcome struct {
		commit  string
		unknown bool
		err     error
	}

	results := make([]outcome, len(commits))
	for batchStart := 0; batchStart < len(commits); batchStart += commitsUnknownBatchSize {
		end := batchStart + commitsUnknownBatchSize
		if end > len(commits) {
			end = len(commits)
		}
		var wg sync.WaitGroup
		for i := batchStart; i < end; i++ {
			i := i
			wg.Add(1)
			go func() {
				defer wg.Done()
				known, err := d.testCommitKnownToRemote(ctx, remote, commits[i])
				results[i] = outcome{commit: commits[i], unknown: !known, err: err}
			}()
		}
		wg.Wait()
	}

	var unknown []string
	for _, r := range results {
		if r.err != nil {
			return nil, r.err
		}
		if r.unknown {
			unknown = append(unknown, r.commit)
		}
	}
	return unknown, nil
}

func (d *Driver) testCommitKnownToRemote(ctx context.Context, remote, commit string) (bool, error) {
	out, code, err := d.run(ctx, "branch", runner.Options{runner.Flag("r"), runner.Val("contains", commit)}, []string{remote + "/*"})
	if err != nil {
		return false, err
	}
	if code != 0 {
		return false, nil
	}
	return len(splitLines(string(out))) > 0, nil
}

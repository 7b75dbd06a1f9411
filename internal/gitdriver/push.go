package gitdriver

import (
	"context"
)

// PushAction distinguishes an ordinary ref update from a remote-ref
// deletion. Per §9's REDESIGN FLAG, this replaces the original's
// overloaded empty-string "source" sentinel with a proper sum type: the
// zero PushSpec is never ambiguous between "push nothing" and "delete".
type PushAction int

const (
	PushUpdate PushAction = iota
	PushDelete
)

// PushSpec describes one ref to push, per §4.5.8.
type PushSpec struct {
	Action PushAction
	Source string
	Dest   string
	Force  bool
}

// NewPushSpec builds an ordinary push spec.
func NewPushSpec(source, dest string, force bool) PushSpec {
	return PushSpec{Action: PushUpdate, Source: source, Dest: dest, Force: force}
}

// DeleteRemoteRef builds a push spec that deletes dest on the remote.
func DeleteRemoteRef(dest string) PushSpec {
	return PushSpec{Action: PushDelete, Dest: dest}
}

// PushSpecFromString builds the shorthand spec described in §4.5.8: a
// bare ref name pushes itself to refs/heads/<name>, unforced.
func PushSpecFromString(name string) PushSpec {
	return NewPushSpec(name, "refs/heads/"+name, false)
}

func (p PushSpec) refspec() string {
	source := p.Source
	if p.Action == PushDelete {
		source = ""
	}
	token := source + ":" + p.Dest
	if p.Force {
		token = "+" + token
	}
	return token
}

// Push runs `git push <remote> <refspec>` for one or more specs.
func (d *Driver) Push(ctx context.Context, remote string, specs ...PushSpec) error {
	if len(specs) == 0 {
		return nil
	}
	args := make([]string, 0, len(specs)+1)
	args = append(args, remote)
	for _, s := range specs {
		args = append(args, s.refspec())
	}
	_, code, err := d.run(ctx, "push", nil, args)
	if err != nil {
		return err
	}
	if code != 0 {
		return &Error{Code: GitWriteFailed, Message: "git push failed", Argv: append([]string{"push"}, args...)}
	}
	return nil
}

// PushCommitRefs anchors each commit on remote under its own
// referenced-commits ref, so it stays reachable even after the
// shared-casefiles tree stops pointing at it directly.
func (d *Driver) PushCommitRefs(ctx context.Context, remote string, commits ...string) error {
	specs := make([]PushSpec, 0, len(commits))
	for _, c := range commits {
		specs = append(specs, NewPushSpec(c, ReferencedCommitRef(c), false))
	}
	return d.Push(ctx, remote, specs...)
}

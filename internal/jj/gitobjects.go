package jj

import (
	"context"
	"fmt"
	"time"

	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// TreeID returns the tree hash of a commit.
func (c *RepoClient) TreeID(ctx context.Context, commitID string) (string, error) {
	commit, err := object.GetCommit(c.repo.Storer, plumbing.NewHash(commitID))
	if err != nil {
		return "", fmt.Errorf("read commit %s: %w", commitID, err)
	}
	return commit.TreeHash.String(), nil
}

// MergeBase returns the best common ancestor of two commits, or "" when
// they share no history.
func (c *RepoClient) MergeBase(ctx context.Context, a, b string) (string, error) {
	commitA, err := object.GetCommit(c.repo.Storer, plumbing.NewHash(a))
	if err != nil {
		return "", fmt.Errorf("read commit %s: %w", a, err)
	}
	commitB, err := object.GetCommit(c.repo.Storer, plumbing.NewHash(b))
	if err != nil {
		return "", fmt.Errorf("read commit %s: %w", b, err)
	}
	bases, err := commitA.MergeBase(commitB)
	if err != nil {
		return "", fmt.Errorf("merge-base %s %s: %w", a, b, err)
	}
	if len(bases) == 0 {
		return "", nil
	}
	return bases[0].Hash.String(), nil
}

// IsAncestor reports whether ancestor is an ancestor of descendant.
func (c *RepoClient) IsAncestor(ctx context.Context, ancestor, descendant string) (bool, error) {
	if ancestor == descendant {
		return true, nil
	}
	anc, err := object.GetCommit(c.repo.Storer, plumbing.NewHash(ancestor))
	if err != nil {
		return false, fmt.Errorf("read commit %s: %w", ancestor, err)
	}
	desc, err := object.GetCommit(c.repo.Storer, plumbing.NewHash(descendant))
	if err != nil {
		return false, fmt.Errorf("read commit %s: %w", descendant, err)
	}
	return anc.IsAncestor(desc)
}

// RemoteBranchCommit returns the commit a remote-tracking branch points at,
// or "" when the branch does not exist on the remote.
func (c *RepoClient) RemoteBranchCommit(ctx context.Context, branch string) (string, error) {
	ref, err := c.repo.Reference(plumbing.NewRemoteReferenceName(c.remote, branch), true)
	if err == plumbing.ErrReferenceNotFound {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("resolve %s/%s: %w", c.remote, branch, err)
	}
	return ref.Hash().String(), nil
}

// TrunkTip returns the commit ID of the trunk's remote tip.
func (c *RepoClient) TrunkTip(ctx context.Context) (string, error) {
	tip, err := c.RemoteBranchCommit(ctx, c.trunk)
	if err != nil {
		return "", err
	}
	if tip == "" {
		return "", fmt.Errorf("trunk branch %s/%s not found, run a fetch first", c.remote, c.trunk)
	}
	return tip, nil
}

// AllRefNames returns every ref name known to the repository.
func (c *RepoClient) AllRefNames(ctx context.Context) (map[string]bool, error) {
	iter, err := c.repo.References()
	if err != nil {
		return nil, fmt.Errorf("list refs: %w", err)
	}
	defer iter.Close()

	names := make(map[string]bool)
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		names[ref.Name().String()] = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list refs: %w", err)
	}
	return names, nil
}

// CreateDerivedCommit writes a commit carrying an existing tree with the
// given parents and message, without touching the working copy.
func (c *RepoClient) CreateDerivedCommit(ctx context.Context, treeID, message string, parents []string) (string, error) {
	sig, err := c.signature()
	if err != nil {
		return "", err
	}

	parentHashes := make([]plumbing.Hash, len(parents))
	for i, p := range parents {
		parentHashes[i] = plumbing.NewHash(p)
	}

	commit := &object.Commit{
		Author:       sig,
		Committer:    sig,
		Message:      message,
		TreeHash:     plumbing.NewHash(treeID),
		ParentHashes: parentHashes,
	}

	obj := c.repo.Storer.NewEncodedObject()
	if err := commit.Encode(obj); err != nil {
		return "", fmt.Errorf("encode commit: %w", err)
	}
	hash, err := c.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return "", fmt.Errorf("write commit: %w", err)
	}
	return hash.String(), nil
}

// PushCommit publishes a commit to a remote branch. The ref update is
// atomic and skips hooks; force is required for non-fast-forward updates.
func (c *RepoClient) PushCommit(ctx context.Context, commitID, branch string, force bool) error {
	args := []string{"push", "--atomic", "--no-verify"}
	if force {
		args = append(args, "--force")
	}
	args = append(args, "--", c.remote, commitID+":refs/heads/"+branch)
	_, err := c.runner.RunGit(ctx, args...)
	return err
}

// signature builds the author/committer identity from git config, falling
// back to a tool identity when none is configured.
func (c *RepoClient) signature() (object.Signature, error) {
	name, email := "revstack", "revstack@localhost"
	if cfg, err := c.repo.ConfigScoped(config.SystemScope); err == nil {
		if cfg.User.Name != "" {
			name = cfg.User.Name
		}
		if cfg.User.Email != "" {
			email = cfg.User.Email
		}
	}
	return object.Signature{Name: name, Email: email, When: time.Now()}, nil
}

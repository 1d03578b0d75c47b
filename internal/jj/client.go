package jj

import "context"

// Change is a local, independently amendable unit of work. The change ID is
// stable across amendments and rebases; the commit ID names the commit
// currently backing the change.
type Change struct {
	ChangeID    string
	CommitID    string
	ParentIDs   []string // backing commit IDs of the parents
	Description string
	Immutable   bool
	Conflicted  bool
	Bookmarks   []string
}

// Described reports whether the change carries a non-empty description.
func (c Change) Described() bool {
	return c.Description != ""
}

// ShortID returns a truncated change ID for display.
func (c Change) ShortID() string {
	if len(c.ChangeID) > 8 {
		return c.ChangeID[:8]
	}
	return c.ChangeID
}

// Client is the narrow contract revstack consumes from the local
// version-control system. The real implementation shells out to jj and
// reads Git objects from the colocated repository; tests substitute an
// in-memory graph.
type Client interface {
	// AncestorChain returns head's mutable ancestors including head
	// itself, newest first.
	AncestorChain(ctx context.Context, headRev string) ([]Change, error)

	// Change resolves a revision expression to a single change.
	Change(ctx context.Context, rev string) (Change, error)

	// WorkingCopy returns the change currently backing the working copy.
	WorkingCopy(ctx context.Context) (Change, error)

	// MutableHeads returns the heads of all mutable change lines.
	MutableHeads(ctx context.Context) ([]Change, error)

	// FindByDescription returns the mutable change whose description
	// contains substr, or ErrPRNotFound-style nil when there is none.
	// Exactly one match is required; more than one is an error.
	FindByDescription(ctx context.Context, substr string) (*Change, error)

	// TreeID returns the tree hash of a commit.
	TreeID(ctx context.Context, commitID string) (string, error)

	// MergeBase returns the best common ancestor of two commits.
	MergeBase(ctx context.Context, a, b string) (string, error)

	// IsAncestor reports whether ancestor is an ancestor of descendant.
	IsAncestor(ctx context.Context, ancestor, descendant string) (bool, error)

	// RemoteBranchCommit returns the commit a remote-tracking branch points
	// at, or "" when the branch does not exist on the remote.
	RemoteBranchCommit(ctx context.Context, branch string) (string, error)

	// TrunkTip returns the commit ID of the configured trunk's remote tip.
	TrunkTip(ctx context.Context) (string, error)

	// AllRefNames returns every ref name known to the repository,
	// including remote-tracking refs.
	AllRefNames(ctx context.Context) (map[string]bool, error)

	// CreateDerivedCommit writes a new commit carrying an existing tree
	// with the given parents and message, without touching the working
	// copy, and returns its commit ID.
	CreateDerivedCommit(ctx context.Context, treeID, message string, parents []string) (string, error)

	// PushCommit publishes a commit to a remote branch, creating or
	// updating it. Non-fast-forward updates require force.
	PushCommit(ctx context.Context, commitID, branch string, force bool) error

	// GitFetch refreshes all remote-tracking refs.
	GitFetch(ctx context.Context) error

	// Describe replaces a change's description.
	Describe(ctx context.Context, changeID, text string) error

	// Abandon discards a change; its descendants are reparented onto the
	// abandoned change's parent.
	Abandon(ctx context.Context, changeID string) error

	// Rebase moves a change and its descendants onto a new destination.
	Rebase(ctx context.Context, changeID, destRev string) error

	// NewChange creates a described child change of parentRev and moves
	// the working copy onto it.
	NewChange(ctx context.Context, parentRev, description string) (Change, error)

	// Restore makes a change's tree equal to the tree of fromRev.
	Restore(ctx context.Context, fromRev, changeID string) error

	// SquashRange folds the diff between two commits into an existing
	// change. Overlapping edits leave the change in a conflicted state
	// rather than failing.
	SquashRange(ctx context.Context, baseCommit, headCommit, changeID string) error

	// HasConflicts reports whether a change is in a conflicted state.
	HasConflicts(ctx context.Context, changeID string) (bool, error)

	// Edit moves the working copy onto an existing change.
	Edit(ctx context.Context, changeID string) error
}

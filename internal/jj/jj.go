package jj

import (
	"context"
	"fmt"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/google/uuid"
)

// Field and record separators for the machine-readable log template.
const (
	fieldSep  = "\x1f"
	recordSep = "\x1e"
)

// logTemplate renders one record per change with unit-separated fields:
// change ID, commit ID, parent commit IDs, immutability, conflict state,
// bookmarks, description. The separators are ASCII unit/record separators,
// which cannot appear in jj identifiers and are not expected in
// descriptions.
var logTemplate = `change_id ++ "` + fieldSep +
	`" ++ commit_id ++ "` + fieldSep +
	`" ++ parents.map(|c| c.commit_id()).join(",") ++ "` + fieldSep +
	`" ++ if(immutable, "1", "0") ++ "` + fieldSep +
	`" ++ if(conflict, "1", "0") ++ "` + fieldSep +
	`" ++ bookmarks.join(",") ++ "` + fieldSep +
	`" ++ description ++ "` + recordSep + `"`

// RepoClient implements Client against a colocated jj repository.
type RepoClient struct {
	runner *CommandRunner
	repo   *gogit.Repository
	remote string
	trunk  string
}

var _ Client = (*RepoClient)(nil)

// WorkspaceRoot returns the root of the jj workspace containing dir.
// An empty dir means the current directory.
func WorkspaceRoot(ctx context.Context, dir string) (string, error) {
	return NewCommandRunner(dir).Run(ctx, "workspace", "root")
}

// Open opens the jj repository at root. The colocated .git directory is
// opened with go-git for object-level access.
func Open(root, remote, trunk string) (*RepoClient, error) {
	repo, err := gogit.PlainOpenWithOptions(root, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("not a colocated jj/git repository at %s: %w", root, err)
	}
	return &RepoClient{
		runner: NewCommandRunner(root),
		repo:   repo,
		remote: remote,
		trunk:  trunk,
	}, nil
}

// Log returns the changes matching revset in jj log order (newest first).
func (c *RepoClient) Log(ctx context.Context, revset string) ([]Change, error) {
	out, err := c.runner.RunRaw(ctx, "log", "--no-graph", "--ignore-working-copy", "-r", revset, "-T", logTemplate)
	if err != nil {
		return nil, err
	}
	return parseChanges(out)
}

// parseChanges splits the raw template output into Change values.
func parseChanges(raw string) ([]Change, error) {
	var changes []Change
	for _, record := range strings.Split(raw, recordSep) {
		if strings.TrimSpace(record) == "" {
			continue
		}
		fields := strings.SplitN(record, fieldSep, 7)
		if len(fields) != 7 {
			return nil, fmt.Errorf("malformed jj log record with %d fields: %q", len(fields), record)
		}
		changes = append(changes, Change{
			ChangeID:    fields[0],
			CommitID:    fields[1],
			ParentIDs:   splitNonEmpty(fields[2]),
			Immutable:   fields[3] == "1",
			Conflicted:  fields[4] == "1",
			Bookmarks:   splitNonEmpty(fields[5]),
			Description: strings.TrimSpace(fields[6]),
		})
	}
	return changes, nil
}

func splitNonEmpty(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// AncestorChain returns head's mutable ancestors including head itself,
// newest first.
func (c *RepoClient) AncestorChain(ctx context.Context, headRev string) ([]Change, error) {
	return c.Log(ctx, fmt.Sprintf("::(%s) ~ immutable()", headRev))
}

// Change resolves a revision expression to a single change.
func (c *RepoClient) Change(ctx context.Context, rev string) (Change, error) {
	changes, err := c.Log(ctx, rev)
	if err != nil {
		return Change{}, err
	}
	if len(changes) != 1 {
		return Change{}, fmt.Errorf("revision %q matched %d changes, expected one", rev, len(changes))
	}
	return changes[0], nil
}

// WorkingCopy returns the change backing the working copy.
func (c *RepoClient) WorkingCopy(ctx context.Context) (Change, error) {
	return c.Change(ctx, "@")
}

// MutableHeads returns the heads of all mutable change lines.
func (c *RepoClient) MutableHeads(ctx context.Context) ([]Change, error) {
	return c.Log(ctx, "heads(mutable())")
}

// FindByDescription returns the single mutable change whose description
// contains substr, or nil when there is none.
func (c *RepoClient) FindByDescription(ctx context.Context, substr string) (*Change, error) {
	changes, err := c.Log(ctx, fmt.Sprintf("mutable() & description(substring:%q)", substr))
	if err != nil {
		return nil, err
	}
	switch len(changes) {
	case 0:
		return nil, nil
	case 1:
		return &changes[0], nil
	default:
		return nil, fmt.Errorf("%d changes match description %q, expected at most one", len(changes), substr)
	}
}


// GitFetch refreshes all remote-tracking refs.
func (c *RepoClient) GitFetch(ctx context.Context) error {
	_, err := c.runner.Run(ctx, "git", "fetch", "--remote", c.remote)
	return err
}

// Describe replaces a change's description.
func (c *RepoClient) Describe(ctx context.Context, changeID, text string) error {
	_, err := c.runner.Run(ctx, "describe", "-r", changeID, "-m", text)
	return err
}

// Abandon discards a change, reparenting its descendants.
func (c *RepoClient) Abandon(ctx context.Context, changeID string) error {
	_, err := c.runner.Run(ctx, "abandon", "-r", changeID)
	return err
}

// Rebase moves a change and its descendants onto destRev.
func (c *RepoClient) Rebase(ctx context.Context, changeID, destRev string) error {
	_, err := c.runner.Run(ctx, "rebase", "-s", changeID, "-d", destRev)
	return err
}

// NewChange creates a described child of parentRev and moves the working
// copy onto it.
func (c *RepoClient) NewChange(ctx context.Context, parentRev, description string) (Change, error) {
	if _, err := c.runner.Run(ctx, "new", parentRev, "-m", description); err != nil {
		return Change{}, err
	}
	return c.WorkingCopy(ctx)
}

// Restore makes the change's tree equal to the tree of fromRev.
func (c *RepoClient) Restore(ctx context.Context, fromRev, changeID string) error {
	_, err := c.runner.Run(ctx, "restore", "--from", fromRev, "--to", changeID)
	return err
}

// SquashRange folds the cumulative diff between baseCommit and headCommit
// into the change. A synthetic commit carrying headCommit's tree on top of
// baseCommit is rebased onto the change (jj materializes overlapping edits
// as conflicts) and then squashed in.
func (c *RepoClient) SquashRange(ctx context.Context, baseCommit, headCommit, changeID string) error {
	headTree, err := c.TreeID(ctx, headCommit)
	if err != nil {
		return err
	}

	sentinel := "revstack-pull-" + uuid.NewString()
	tmp, err := c.CreateDerivedCommit(ctx, headTree, sentinel, []string{baseCommit})
	if err != nil {
		return err
	}

	if _, err := c.runner.Run(ctx, "rebase", "-r", tmp, "-d", changeID); err != nil {
		return err
	}

	rebased, err := c.Log(ctx, fmt.Sprintf("children(%s) & description(exact:%q)", changeID, sentinel+"\n"))
	if err != nil {
		return err
	}
	if len(rebased) != 1 {
		return fmt.Errorf("expected one rebased pull commit on %s, found %d", changeID, len(rebased))
	}

	_, err = c.runner.Run(ctx, "squash", "--from", rebased[0].ChangeID, "--into", changeID, "--use-destination-message")
	return err
}

// HasConflicts reports whether a change is conflicted.
func (c *RepoClient) HasConflicts(ctx context.Context, changeID string) (bool, error) {
	out, err := c.runner.Run(ctx, "log", "--no-graph", "--ignore-working-copy", "-r", changeID, "-T", `if(conflict, "1", "0")`)
	if err != nil {
		return false, err
	}
	return out == "1", nil
}

// Edit moves the working copy onto an existing change.
func (c *RepoClient) Edit(ctx context.Context, changeID string) error {
	_, err := c.runner.Run(ctx, "edit", changeID)
	return err
}

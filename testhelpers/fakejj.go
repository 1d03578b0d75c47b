// Package testhelpers provides in-memory implementations of revstack's
// external collaborators: a fake jj change graph and a fake GitHub
// repository. Both track every mutation so tests can assert on exactly
// which writes happened.
package testhelpers

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"revstack.dev/revstack/internal/jj"
)

// Commit is a fake git commit. Trees are opaque strings, so "same tree"
// comparisons behave like tree hash comparisons.
type Commit struct {
	ID      string
	Tree    string
	Parents []string
	Message string
}

// Push records one remote branch write.
type Push struct {
	Branch string
	Commit string
	Force  bool
}

type fakeChange struct {
	id         string
	commitID   string
	parents    []string // change IDs, or commit IDs for immutable parents
	desc       string
	conflicted bool
	bookmarks  []string
}

// FakeJJ is an in-memory jj.Client backed by a change graph and a map of
// remote branches.
type FakeJJ struct {
	mu sync.Mutex

	trunk  string
	remote string

	changes map[string]*fakeChange
	commits map[string]*Commit

	// Remote maps branch names to commit IDs, standing in for the remote
	// repository's refs.
	Remote map[string]string

	// Pushes records every remote branch write in order.
	Pushes []Push

	// Fetches counts GitFetch calls.
	Fetches int

	workingCopy string
	seq         int
}

var _ jj.Client = (*FakeJJ)(nil)

// NewFakeJJ creates a graph whose trunk branch has a single immutable
// commit, visible on the remote.
func NewFakeJJ(trunk string) *FakeJJ {
	f := &FakeJJ{
		trunk:   trunk,
		remote:  "origin",
		changes: make(map[string]*fakeChange),
		commits: make(map[string]*Commit),
		Remote:  make(map[string]string),
	}
	tip := f.newCommit("trunk-tree", nil, "trunk")
	f.Remote[trunk] = tip
	return f
}

func (f *FakeJJ) newCommit(tree string, parents []string, message string) string {
	f.seq++
	id := fmt.Sprintf("commit-%03d", f.seq)
	f.commits[id] = &Commit{ID: id, Tree: tree, Parents: parents, Message: message}
	return id
}

// AddChange creates a mutable change. Parents may be change IDs or commit
// IDs; an empty parent list bases the change on the trunk tip. The first
// added change becomes the working copy.
func (f *FakeJJ) AddChange(desc, tree string, parents ...string) string {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(parents) == 0 {
		parents = []string{f.Remote[f.trunk]}
	}
	id := "change-" + uuid.NewString()[:8]
	c := &fakeChange{id: id, parents: parents, desc: desc}
	f.changes[id] = c
	c.commitID = f.newCommit(tree, f.parentCommits(c), desc)
	if f.workingCopy == "" {
		f.workingCopy = id
	}
	return id
}

// AmendTree replaces a change's tree, like editing its content.
func (f *FakeJJ) AmendTree(changeID, tree string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.mustChange(changeID)
	commit := f.commits[c.commitID]
	c.commitID = f.newCommit(tree, commit.Parents, commit.Message)
	f.rebuildDescendants(changeID)
}

// SetBookmarks sets a change's bookmark list.
func (f *FakeJJ) SetBookmarks(changeID string, bookmarks ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mustChange(changeID).bookmarks = bookmarks
}

// SetConflicted marks a change as carrying unresolved conflicts.
func (f *FakeJJ) SetConflicted(changeID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mustChange(changeID).conflicted = true
}

// SetWorkingCopy moves the working copy onto a change.
func (f *FakeJJ) SetWorkingCopy(changeID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.workingCopy = f.mustChange(changeID).id
}

// AdvanceTrunk adds a commit on the remote trunk and returns its ID.
func (f *FakeJJ) AdvanceTrunk(tree string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	tip := f.newCommit(tree, []string{f.Remote[f.trunk]}, "trunk advance")
	f.Remote[f.trunk] = tip
	return tip
}

// AdvanceRemoteBranch adds a commit on an arbitrary remote branch,
// simulating someone else pushing to it.
func (f *FakeJJ) AdvanceRemoteBranch(branch, tree string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	parents := []string{}
	if tip, ok := f.Remote[branch]; ok {
		parents = append(parents, tip)
	}
	tip := f.newCommit(tree, parents, "remote edit")
	f.Remote[branch] = tip
	return tip
}

// Tree returns a change's current tree.
func (f *FakeJJ) Tree(changeID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.commits[f.mustChange(changeID).commitID].Tree
}

// Description returns a change's raw description.
func (f *FakeJJ) Description(changeID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mustChange(changeID).desc
}

// Exists reports whether a change is still present (not abandoned).
func (f *FakeJJ) Exists(changeID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.changes[changeID]
	return ok
}

// ParentOf returns the first parent of a change: a change ID when the
// parent is mutable, a commit ID otherwise.
func (f *FakeJJ) ParentOf(changeID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mustChange(changeID).parents[0]
}

// CommitFor returns the commit currently backing a change.
func (f *FakeJJ) CommitFor(changeID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mustChange(changeID).commitID
}

// CommitMessage returns a commit's message.
func (f *FakeJJ) CommitMessage(commitID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.commits[commitID]; ok {
		return c.Message
	}
	return ""
}

// RemoteTree returns the tree at the tip of a remote branch.
func (f *FakeJJ) RemoteTree(branch string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if tip, ok := f.Remote[branch]; ok {
		return f.commits[tip].Tree
	}
	return ""
}

func (f *FakeJJ) mustChange(changeID string) *fakeChange {
	c, ok := f.changes[changeID]
	if !ok {
		panic(fmt.Sprintf("fake jj: unknown change %s", changeID))
	}
	return c
}

// parentCommits resolves a change's parents to commit IDs.
func (f *FakeJJ) parentCommits(c *fakeChange) []string {
	out := make([]string, len(c.parents))
	for i, p := range c.parents {
		if pc, ok := f.changes[p]; ok {
			out[i] = pc.commitID
		} else {
			out[i] = p
		}
	}
	return out
}

// rebuildDescendants regenerates the backing commits of a change's
// descendants, mirroring how jj rewrites commits when history changes.
func (f *FakeJJ) rebuildDescendants(changeID string) {
	for _, child := range f.childrenOf(changeID) {
		c := f.changes[child]
		old := f.commits[c.commitID]
		c.commitID = f.newCommit(old.Tree, f.parentCommits(c), old.Message)
		f.rebuildDescendants(child)
	}
}

func (f *FakeJJ) childrenOf(changeID string) []string {
	var out []string
	for id, c := range f.changes {
		for _, p := range c.parents {
			if p == changeID {
				out = append(out, id)
			}
		}
	}
	return out
}

func (f *FakeJJ) toChange(c *fakeChange) jj.Change {
	return jj.Change{
		ChangeID:    c.id,
		CommitID:    c.commitID,
		ParentIDs:   f.parentCommits(c),
		Description: c.desc,
		Conflicted:  c.conflicted,
		Bookmarks:   append([]string(nil), c.bookmarks...),
	}
}

func (f *FakeJJ) resolveChange(rev string) (*fakeChange, error) {
	if rev == "@" {
		rev = f.workingCopy
	}
	if c, ok := f.changes[rev]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("fake jj: revision %q not found", rev)
}

// AncestorChain returns head's mutable ancestors including head, newest
// first.
func (f *FakeJJ) AncestorChain(_ context.Context, headRev string) ([]jj.Change, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	head, err := f.resolveChange(headRev)
	if err != nil {
		return nil, err
	}

	var out []jj.Change
	seen := make(map[string]bool)
	var visit func(c *fakeChange)
	visit = func(c *fakeChange) {
		if seen[c.id] {
			return
		}
		seen[c.id] = true
		out = append(out, f.toChange(c))
		for _, p := range c.parents {
			if pc, ok := f.changes[p]; ok {
				visit(pc)
			}
		}
	}
	visit(head)
	return out, nil
}

// Change resolves a revision to a single change.
func (f *FakeJJ) Change(_ context.Context, rev string) (jj.Change, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, err := f.resolveChange(rev)
	if err != nil {
		return jj.Change{}, err
	}
	return f.toChange(c), nil
}

// WorkingCopy returns the change backing the working copy.
func (f *FakeJJ) WorkingCopy(ctx context.Context) (jj.Change, error) {
	return f.Change(ctx, "@")
}

// MutableHeads returns every change without mutable children.
func (f *FakeJJ) MutableHeads(_ context.Context) ([]jj.Change, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []jj.Change
	for id, c := range f.changes {
		if len(f.childrenOf(id)) == 0 {
			out = append(out, f.toChange(c))
		}
	}
	return out, nil
}

// FindByDescription returns the single change whose description contains
// substr, or nil when there is none.
func (f *FakeJJ) FindByDescription(_ context.Context, substr string) (*jj.Change, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var found []*fakeChange
	for _, c := range f.changes {
		if strings.Contains(c.desc, substr) {
			found = append(found, c)
		}
	}
	switch len(found) {
	case 0:
		return nil, nil
	case 1:
		change := f.toChange(found[0])
		return &change, nil
	default:
		return nil, fmt.Errorf("fake jj: %d changes match %q", len(found), substr)
	}
}

// TreeID returns a commit's tree.
func (f *FakeJJ) TreeID(_ context.Context, commitID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	commit, ok := f.commits[commitID]
	if !ok {
		return "", fmt.Errorf("fake jj: unknown commit %s", commitID)
	}
	return commit.Tree, nil
}

func (f *FakeJJ) ancestorSet(commitID string) map[string]bool {
	set := make(map[string]bool)
	queue := []string{commitID}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if set[cur] {
			continue
		}
		set[cur] = true
		if commit, ok := f.commits[cur]; ok {
			queue = append(queue, commit.Parents...)
		}
	}
	return set
}

// MergeBase returns the first common ancestor found walking b's history.
func (f *FakeJJ) MergeBase(_ context.Context, a, b string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ancestorsOfA := f.ancestorSet(a)
	queue := []string{b}
	seen := make(map[string]bool)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		if ancestorsOfA[cur] {
			return cur, nil
		}
		if commit, ok := f.commits[cur]; ok {
			queue = append(queue, commit.Parents...)
		}
	}
	return "", nil
}

// IsAncestor reports whether ancestor is reachable from descendant.
func (f *FakeJJ) IsAncestor(_ context.Context, ancestor, descendant string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ancestorSet(descendant)[ancestor], nil
}

// RemoteBranchCommit returns the commit a remote branch points at, or "".
func (f *FakeJJ) RemoteBranchCommit(_ context.Context, branch string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Remote[branch], nil
}

// TrunkTip returns the remote trunk tip.
func (f *FakeJJ) TrunkTip(_ context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Remote[f.trunk], nil
}

// AllRefNames returns remote-tracking refs plus bookmark refs.
func (f *FakeJJ) AllRefNames(_ context.Context) (map[string]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make(map[string]bool)
	for branch := range f.Remote {
		names[fmt.Sprintf("refs/remotes/%s/%s", f.remote, branch)] = true
	}
	for _, c := range f.changes {
		for _, b := range c.bookmarks {
			names["refs/heads/"+b] = true
		}
	}
	return names, nil
}

// CreateDerivedCommit writes a commit with the given tree and parents.
func (f *FakeJJ) CreateDerivedCommit(_ context.Context, treeID, message string, parents []string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.newCommit(treeID, parents, message), nil
}

// PushCommit publishes a commit to a remote branch, rejecting
// non-fast-forward updates unless forced.
func (f *FakeJJ) PushCommit(_ context.Context, commitID, branch string, force bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.commits[commitID]; !ok {
		return fmt.Errorf("fake jj: pushing unknown commit %s", commitID)
	}
	if tip, ok := f.Remote[branch]; ok && !force && !f.ancestorSet(commitID)[tip] {
		return fmt.Errorf("fake jj: non-fast-forward push to %s", branch)
	}
	f.Remote[branch] = commitID
	f.Pushes = append(f.Pushes, Push{Branch: branch, Commit: commitID, Force: force})
	return nil
}

// GitFetch is a no-op; the Remote map is always current.
func (f *FakeJJ) GitFetch(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Fetches++
	return nil
}

// Describe replaces a change's description.
func (f *FakeJJ) Describe(_ context.Context, changeID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, err := f.resolveChange(changeID)
	if err != nil {
		return err
	}
	c.desc = text
	old := f.commits[c.commitID]
	c.commitID = f.newCommit(old.Tree, old.Parents, text)
	f.rebuildDescendants(c.id)
	return nil
}

// Abandon discards a change and reparents its children.
func (f *FakeJJ) Abandon(_ context.Context, changeID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, err := f.resolveChange(changeID)
	if err != nil {
		return err
	}
	children := f.childrenOf(c.id)
	for _, child := range children {
		cc := f.changes[child]
		var parents []string
		for _, p := range cc.parents {
			if p == c.id {
				parents = append(parents, c.parents...)
			} else {
				parents = append(parents, p)
			}
		}
		cc.parents = parents
	}
	delete(f.changes, c.id)
	if f.workingCopy == c.id {
		f.workingCopy = ""
	}
	for _, child := range children {
		f.rebuildDescendantsFrom(child)
	}
	return nil
}

func (f *FakeJJ) rebuildDescendantsFrom(changeID string) {
	c := f.changes[changeID]
	old := f.commits[c.commitID]
	c.commitID = f.newCommit(old.Tree, f.parentCommits(c), old.Message)
	f.rebuildDescendants(changeID)
}

// Rebase moves a change and its descendants onto destRev.
func (f *FakeJJ) Rebase(_ context.Context, changeID, destRev string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, err := f.resolveChange(changeID)
	if err != nil {
		return err
	}
	if _, ok := f.changes[destRev]; !ok {
		if _, ok := f.commits[destRev]; !ok {
			return fmt.Errorf("fake jj: rebase destination %q not found", destRev)
		}
	}
	c.parents = []string{destRev}
	f.rebuildDescendantsFrom(c.id)
	return nil
}

// NewChange creates a described child of parentRev and moves the working
// copy onto it.
func (f *FakeJJ) NewChange(_ context.Context, parentRev, description string) (jj.Change, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.changes[parentRev]; !ok {
		if _, ok := f.commits[parentRev]; !ok {
			return jj.Change{}, fmt.Errorf("fake jj: parent %q not found", parentRev)
		}
	}
	id := "change-" + uuid.NewString()[:8]
	c := &fakeChange{id: id, parents: []string{parentRev}, desc: description}
	f.changes[id] = c
	// A fresh change carries no diff: it starts with its parent's tree.
	parentCommit := f.parentCommits(c)[0]
	c.commitID = f.newCommit(f.commits[parentCommit].Tree, []string{parentCommit}, description)
	f.workingCopy = id
	return f.toChange(c), nil
}

// Restore makes a change's tree equal to fromRev's tree.
func (f *FakeJJ) Restore(_ context.Context, fromRev, changeID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, err := f.resolveChange(changeID)
	if err != nil {
		return err
	}
	var tree string
	if src, ok := f.changes[fromRev]; ok {
		tree = f.commits[src.commitID].Tree
	} else if commit, ok := f.commits[fromRev]; ok {
		tree = commit.Tree
	} else {
		return fmt.Errorf("fake jj: restore source %q not found", fromRev)
	}
	old := f.commits[c.commitID]
	c.commitID = f.newCommit(tree, old.Parents, old.Message)
	f.rebuildDescendants(c.id)
	return nil
}

// SquashRange folds the base→head diff into the change. When both sides
// touched the tree the change becomes conflicted, mirroring jj's
// materialized conflicts.
func (f *FakeJJ) SquashRange(_ context.Context, baseCommit, headCommit, changeID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, err := f.resolveChange(changeID)
	if err != nil {
		return err
	}
	base, ok := f.commits[baseCommit]
	if !ok {
		return fmt.Errorf("fake jj: unknown commit %s", baseCommit)
	}
	head, ok := f.commits[headCommit]
	if !ok {
		return fmt.Errorf("fake jj: unknown commit %s", headCommit)
	}
	local := f.commits[c.commitID]

	var tree string
	switch {
	case base.Tree == head.Tree:
		return nil
	case local.Tree == base.Tree:
		tree = head.Tree
	default:
		c.conflicted = true
		tree = fmt.Sprintf("conflict(%s,%s)", local.Tree, head.Tree)
	}
	c.commitID = f.newCommit(tree, local.Parents, local.Message)
	f.rebuildDescendants(c.id)
	return nil
}

// HasConflicts reports whether a change is conflicted.
func (f *FakeJJ) HasConflicts(_ context.Context, changeID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, err := f.resolveChange(changeID)
	if err != nil {
		return false, err
	}
	return c.conflicted, nil
}

// Edit moves the working copy onto an existing change.
func (f *FakeJJ) Edit(_ context.Context, changeID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, err := f.resolveChange(changeID)
	if err != nil {
		return err
	}
	f.workingCopy = c.id
	return nil
}

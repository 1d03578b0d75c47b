package actions_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"revstack.dev/revstack/internal/actions"
	"revstack.dev/revstack/internal/github"
)

func TestListManagedPullRequests(t *testing.T) {
	ctx := context.Background()
	rt, _, fg := newTestRuntime()

	fg.SeedPullRequest(&github.PullRequest{
		Number: 1, Title: "part one",
		HeadBranch: "revstack/testuser/part-one", BaseBranch: "main", State: github.StateOpen,
	})
	fg.SeedPullRequest(&github.PullRequest{
		Number: 2, Title: "part two",
		HeadBranch: "revstack/testuser/part-two", BaseBranch: "revstack/testuser/part-one", State: github.StateOpen,
	})
	fg.SeedPullRequest(&github.PullRequest{
		Number: 3, Title: "someone else's feature",
		HeadBranch: "feature/other", BaseBranch: "main", State: github.StateOpen,
	})

	fg.Reviews[1] = github.ReviewApproved
	fg.Reviews[2] = github.ReviewChangesRequested

	entries, err := actions.ListAction(ctx, rt, actions.ListOptions{})
	require.NoError(t, err)
	require.Len(t, entries, 2, "foreign branches are filtered out")

	require.Equal(t, 1, entries[0].Number)
	require.Equal(t, 1, entries[0].Position)
	require.Equal(t, 2, entries[0].ChainLen)
	require.Equal(t, github.ReviewApproved, entries[0].Review)
	require.Equal(t, 2, entries[1].Number)
	require.Equal(t, 2, entries[1].Position)
	require.Equal(t, 2, entries[1].ChainLen)
	require.Equal(t, github.ReviewChangesRequested, entries[1].Review)
}

func TestListAllIncludesForeign(t *testing.T) {
	ctx := context.Background()
	rt, _, fg := newTestRuntime()

	fg.SeedPullRequest(&github.PullRequest{
		Number: 1, Title: "managed",
		HeadBranch: "revstack/testuser/managed", BaseBranch: "main", State: github.StateOpen,
	})
	fg.SeedPullRequest(&github.PullRequest{
		Number: 2, Title: "foreign",
		HeadBranch: "feature/other", BaseBranch: "main", State: github.StateOpen,
	})

	entries, err := actions.ListAction(ctx, rt, actions.ListOptions{All: true})
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestListMarksLocalAssociations(t *testing.T) {
	ctx := context.Background()
	rt, fj, _ := newTestRuntime()

	a := fj.AddChange("add parser", "tree-a")
	_, err := actions.PushAction(ctx, rt, actions.PushOptions{Head: a})
	require.NoError(t, err)

	entries, err := actions.ListAction(ctx, rt, actions.ListOptions{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, a, entries[0].ChangeID)
	require.Equal(t, 1, entries[0].Position)
	require.Equal(t, 1, entries[0].ChainLen)
}

func TestListIncludesAdoptableWithoutPrefix(t *testing.T) {
	ctx := context.Background()
	rt, fj, fg := newTestRuntime()

	// A change pushed under a bookmark name lacks the prefix, but its
	// local association still marks it as managed.
	a := fj.AddChange("bookmarked work", "tree-a")
	fj.SetBookmarks(a, "custom-branch")
	_, err := actions.PushAction(ctx, rt, actions.PushOptions{Head: a})
	require.NoError(t, err)
	require.Equal(t, "custom-branch", fg.PRs[1].HeadBranch)

	entries, err := actions.ListAction(ctx, rt, actions.ListOptions{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, a, entries[0].ChangeID)
}

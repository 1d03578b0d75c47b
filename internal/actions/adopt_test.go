package actions_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"revstack.dev/revstack/internal/actions"
	"revstack.dev/revstack/internal/errors"
	"revstack.dev/revstack/internal/github"
)

func TestAdoptChain(t *testing.T) {
	ctx := context.Background()
	rt, fj, fg := newTestRuntime()
	fj.AddChange("", "trunk-tree")

	fj.AdvanceRemoteBranch("revstack/alice/one", "tree-one")
	fj.AdvanceRemoteBranch("revstack/alice/two", "tree-two")
	fg.SeedPullRequest(&github.PullRequest{
		Number: 1, Title: "part one", Body: "First part.",
		HeadBranch: "revstack/alice/one", BaseBranch: "main", State: github.StateOpen,
	})
	fg.SeedPullRequest(&github.PullRequest{
		Number: 2, Title: "part two", Body: "Second part.",
		HeadBranch: "revstack/alice/two", BaseBranch: "revstack/alice/one", State: github.StateOpen,
	})

	report, err := actions.AdoptAction(ctx, rt, actions.AdoptOptions{Number: 2})
	require.NoError(t, err)
	require.Len(t, report.Results, 2)

	// Base first, so the chain parents correctly.
	one := report.Results[0]
	two := report.Results[1]
	require.Equal(t, actions.OutcomeAdopted, one.Outcome)
	require.Equal(t, 1, one.Number)
	require.Equal(t, actions.OutcomeAdopted, two.Outcome)
	require.Equal(t, 2, two.Number)

	require.Equal(t, "tree-one", fj.Tree(one.ChangeID))
	require.Equal(t, "tree-two", fj.Tree(two.ChangeID))
	require.Equal(t, one.ChangeID, fj.ParentOf(two.ChangeID))

	require.Contains(t, fj.Description(one.ChangeID), "part one")
	require.Contains(t, fj.Description(one.ChangeID), "Pull Request: https://github.com/octo/widgets/pull/1")
	require.Contains(t, fj.Description(two.ChangeID), "Last Commit: "+fj.Remote["revstack/alice/two"])

	// The working copy moved onto the adopted target.
	cur, err := fj.WorkingCopy(ctx)
	require.NoError(t, err)
	require.Equal(t, two.ChangeID, cur.ChangeID)
}

func TestAdoptAlreadyAdopted(t *testing.T) {
	ctx := context.Background()
	rt, fj, fg := newTestRuntime()
	fj.AddChange("", "trunk-tree")

	fj.AdvanceRemoteBranch("revstack/alice/one", "tree-one")
	fg.SeedPullRequest(&github.PullRequest{
		Number: 1, Title: "part one",
		HeadBranch: "revstack/alice/one", BaseBranch: "main", State: github.StateOpen,
	})

	first, err := actions.AdoptAction(ctx, rt, actions.AdoptOptions{Number: 1})
	require.NoError(t, err)
	require.Len(t, first.Results, 1)

	second, err := actions.AdoptAction(ctx, rt, actions.AdoptOptions{Number: 1})
	require.NoError(t, err)
	require.Len(t, second.Results, 1)
	require.Equal(t, actions.OutcomeSkipped, second.Results[0].Outcome)

	heads, err := fj.MutableHeads(ctx)
	require.NoError(t, err)
	require.Len(t, heads, 2, "only the working copy and the first adoption exist")
}

func TestAdoptAnchorsOnLocalParent(t *testing.T) {
	ctx := context.Background()
	rt, fj, fg := newTestRuntime()
	fj.AddChange("", "trunk-tree")

	fj.AdvanceRemoteBranch("revstack/alice/one", "tree-one")
	fj.AdvanceRemoteBranch("revstack/alice/two", "tree-two")
	fg.SeedPullRequest(&github.PullRequest{
		Number: 1, Title: "part one",
		HeadBranch: "revstack/alice/one", BaseBranch: "main", State: github.StateOpen,
	})
	fg.SeedPullRequest(&github.PullRequest{
		Number: 2, Title: "part two",
		HeadBranch: "revstack/alice/two", BaseBranch: "revstack/alice/one", State: github.StateOpen,
	})

	first, err := actions.AdoptAction(ctx, rt, actions.AdoptOptions{Number: 1})
	require.NoError(t, err)
	base := first.Results[0].ChangeID

	second, err := actions.AdoptAction(ctx, rt, actions.AdoptOptions{Number: 2})
	require.NoError(t, err)
	require.Len(t, second.Results, 1, "the base is already local and must not be recreated")
	require.Equal(t, base, fj.ParentOf(second.Results[0].ChangeID))
}

func TestAdoptCycleCreatesNothing(t *testing.T) {
	ctx := context.Background()
	rt, fj, fg := newTestRuntime()
	fj.AddChange("", "trunk-tree")

	fj.AdvanceRemoteBranch("revstack/alice/one", "tree-one")
	fj.AdvanceRemoteBranch("revstack/alice/two", "tree-two")
	fg.SeedPullRequest(&github.PullRequest{
		Number: 1, Title: "part one",
		HeadBranch: "revstack/alice/one", BaseBranch: "revstack/alice/two", State: github.StateOpen,
	})
	fg.SeedPullRequest(&github.PullRequest{
		Number: 2, Title: "part two",
		HeadBranch: "revstack/alice/two", BaseBranch: "revstack/alice/one", State: github.StateOpen,
	})

	_, err := actions.AdoptAction(ctx, rt, actions.AdoptOptions{Number: 2})
	require.ErrorIs(t, err, errors.ErrCycleDetected)

	heads, err := fj.MutableHeads(ctx)
	require.NoError(t, err)
	require.Len(t, heads, 1, "a cyclic chain must leave the repository untouched")
}

func TestAdoptNoCheckout(t *testing.T) {
	ctx := context.Background()
	rt, fj, fg := newTestRuntime()
	wc := fj.AddChange("", "trunk-tree")

	fj.AdvanceRemoteBranch("revstack/alice/one", "tree-one")
	fg.SeedPullRequest(&github.PullRequest{
		Number: 1, Title: "part one",
		HeadBranch: "revstack/alice/one", BaseBranch: "main", State: github.StateOpen,
	})

	_, err := actions.AdoptAction(ctx, rt, actions.AdoptOptions{Number: 1, NoCheckout: true})
	require.NoError(t, err)

	cur, err := fj.WorkingCopy(ctx)
	require.NoError(t, err)
	require.Equal(t, wc, cur.ChangeID)
}

func TestAdoptMergedPullRequestFails(t *testing.T) {
	ctx := context.Background()
	rt, fj, fg := newTestRuntime()
	fj.AddChange("", "trunk-tree")

	fg.SeedPullRequest(&github.PullRequest{
		Number: 1, Title: "landed already",
		HeadBranch: "revstack/alice/one", BaseBranch: "main", State: github.StateMerged,
	})

	_, err := actions.AdoptAction(ctx, rt, actions.AdoptOptions{Number: 1})
	require.Error(t, err)
	require.Contains(t, err.Error(), "merged")
}

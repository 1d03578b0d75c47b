package actions_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"revstack.dev/revstack/internal/actions"
	"revstack.dev/revstack/internal/errors"
)

func TestPushCreatesStack(t *testing.T) {
	ctx := context.Background()
	rt, fj, fg := newTestRuntime()

	a := fj.AddChange("add parser", "tree-a")
	b := fj.AddChange("add printer", "tree-b", a)
	c := fj.AddChange("wire cli", "tree-c", b)

	report, err := actions.PushAction(ctx, rt, actions.PushOptions{Head: c})
	require.NoError(t, err)
	require.Len(t, report.Results, 3)
	for _, res := range report.Results {
		require.Equal(t, actions.OutcomeCreated, res.Outcome)
	}

	require.Len(t, fg.PRs, 3)
	require.Equal(t, "main", fg.PRs[1].BaseBranch)
	require.Equal(t, "revstack/testuser/add-parser", fg.PRs[1].HeadBranch)
	require.Equal(t, "revstack/testuser/add-parser", fg.PRs[2].BaseBranch)
	require.Equal(t, "revstack/testuser/add-printer", fg.PRs[2].HeadBranch)
	require.Equal(t, "revstack/testuser/add-printer", fg.PRs[3].BaseBranch)
	require.Equal(t, "revstack/testuser/wire-cli", fg.PRs[3].HeadBranch)

	// Remote branches now carry the changes' trees.
	require.Equal(t, "tree-a", fj.RemoteTree("revstack/testuser/add-parser"))
	require.Equal(t, "tree-b", fj.RemoteTree("revstack/testuser/add-printer"))
	require.Equal(t, "tree-c", fj.RemoteTree("revstack/testuser/wire-cli"))

	// Descriptions gained association trailers.
	require.Contains(t, fj.Description(a), "Pull Request: https://github.com/octo/widgets/pull/1")
	require.Contains(t, fj.Description(a), "Last Commit: ")
	require.Contains(t, fj.Description(c), "Pull Request: https://github.com/octo/widgets/pull/3")
}

func TestPushIsIdempotent(t *testing.T) {
	ctx := context.Background()
	rt, fj, fg := newTestRuntime()

	a := fj.AddChange("add parser", "tree-a")
	b := fj.AddChange("add printer", "tree-b", a)

	_, err := actions.PushAction(ctx, rt, actions.PushOptions{Head: b})
	require.NoError(t, err)
	writes := fg.Writes
	pushes := len(fj.Pushes)
	descA := fj.Description(a)

	report, err := actions.PushAction(ctx, rt, actions.PushOptions{Head: b})
	require.NoError(t, err)
	for _, res := range report.Results {
		require.Equal(t, actions.OutcomeUnchanged, res.Outcome)
	}
	require.Equal(t, writes, fg.Writes, "second push must not touch the remote")
	require.Equal(t, pushes, len(fj.Pushes))
	require.Equal(t, descA, fj.Description(a))
}

func TestPushAmendedMiddleChange(t *testing.T) {
	ctx := context.Background()
	rt, fj, _ := newTestRuntime()

	a := fj.AddChange("add parser", "tree-a")
	b := fj.AddChange("add printer", "tree-b", a)
	c := fj.AddChange("wire cli", "tree-c", b)

	_, err := actions.PushAction(ctx, rt, actions.PushOptions{Head: c})
	require.NoError(t, err)
	pushes := len(fj.Pushes)

	fj.AmendTree(b, "tree-b2")

	report, err := actions.PushAction(ctx, rt, actions.PushOptions{Head: c})
	require.NoError(t, err)

	require.Equal(t, actions.OutcomeUnchanged, report.Results[0].Outcome)
	require.Equal(t, actions.OutcomeUpdated, report.Results[1].Outcome)
	// The head change's content did not move, but its base did, so its
	// branch is republished on top of the new base.
	require.Equal(t, actions.OutcomeUpdated, report.Results[2].Outcome)

	require.Equal(t, pushes+2, len(fj.Pushes))
	require.Equal(t, "tree-b2", fj.RemoteTree("revstack/testuser/add-printer"))
	require.Equal(t, "tree-c", fj.RemoteTree("revstack/testuser/wire-cli"))
}

func TestPushMergeChangeMakesNoRemoteWrites(t *testing.T) {
	ctx := context.Background()
	rt, fj, fg := newTestRuntime()

	left := fj.AddChange("left", "tree-l")
	right := fj.AddChange("right", "tree-r")
	merge := fj.AddChange("merge both", "tree-m", left, right)

	_, err := actions.PushAction(ctx, rt, actions.PushOptions{Head: merge})
	require.ErrorIs(t, err, errors.ErrMultipleParents)
	require.Zero(t, fg.Writes)
	require.Empty(t, fj.Pushes)
}

func TestPushRemoteConflict(t *testing.T) {
	ctx := context.Background()
	rt, fj, fg := newTestRuntime()

	a := fj.AddChange("add parser", "tree-a")
	_, err := actions.PushAction(ctx, rt, actions.PushOptions{Head: a})
	require.NoError(t, err)
	branch := fg.PRs[1].HeadBranch

	// Someone else moved the branch; our next push must refuse.
	fj.AdvanceRemoteBranch(branch, "tree-external")
	fj.AmendTree(a, "tree-a2")

	report, err := actions.PushAction(ctx, rt, actions.PushOptions{Head: a})
	require.NoError(t, err)
	require.Equal(t, actions.OutcomeFailed, report.Results[0].Outcome)
	require.Contains(t, report.Results[0].Detail, "diverged")
	require.Equal(t, "tree-external", fj.RemoteTree(branch))

	// Force overrules the divergence.
	report, err = actions.PushAction(ctx, rt, actions.PushOptions{Head: a, Force: true})
	require.NoError(t, err)
	require.Equal(t, actions.OutcomeUpdated, report.Results[0].Outcome)
	require.Equal(t, "tree-a2", fj.RemoteTree(branch))
}

func TestPushFailedBaseBlocksDescendants(t *testing.T) {
	ctx := context.Background()
	rt, fj, fg := newTestRuntime()

	a := fj.AddChange("add parser", "tree-a")
	_, err := actions.PushAction(ctx, rt, actions.PushOptions{Head: a})
	require.NoError(t, err)

	fj.AdvanceRemoteBranch(fg.PRs[1].HeadBranch, "tree-external")
	fj.AmendTree(a, "tree-a2")
	b := fj.AddChange("add printer", "tree-b", a)

	report, err := actions.PushAction(ctx, rt, actions.PushOptions{Head: b})
	require.NoError(t, err)
	require.Equal(t, actions.OutcomeFailed, report.Results[0].Outcome)
	require.Equal(t, actions.OutcomeFailed, report.Results[1].Outcome)
	require.Contains(t, report.Results[1].Detail, "failed")
	require.Len(t, fg.PRs, 1, "no pull request may be created above a failed base")
}

func TestPushConflictedChange(t *testing.T) {
	ctx := context.Background()
	rt, fj, fg := newTestRuntime()

	a := fj.AddChange("add parser", "tree-a")
	b := fj.AddChange("add printer", "tree-b", a)
	fj.SetConflicted(a)

	report, err := actions.PushAction(ctx, rt, actions.PushOptions{Head: b})
	require.NoError(t, err)
	require.Equal(t, actions.OutcomeFailed, report.Results[0].Outcome)
	require.Contains(t, report.Results[0].Detail, "conflict")
	require.Equal(t, actions.OutcomeFailed, report.Results[1].Outcome)
	require.Zero(t, fg.Writes)
}

func TestPushReviewersAndAssignees(t *testing.T) {
	ctx := context.Background()
	rt, fj, fg := newTestRuntime()

	a := fj.AddChange("add parser", "tree-a")

	_, err := actions.PushAction(ctx, rt, actions.PushOptions{
		Head:      a,
		Reviewers: []string{"alice"},
		Assignees: []string{"bob"},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"alice"}, fg.ReviewRequests[1])
	require.Equal(t, []string{"bob"}, fg.AssigneeAdds[1])
	require.Contains(t, fj.Description(a), "Reviewers: alice")
	require.Contains(t, fj.Description(a), "Assignees: bob")

	// Pushing again without flags re-requests nobody: the description
	// already records them and the pull request already has them.
	_, err = actions.PushAction(ctx, rt, actions.PushOptions{Head: a})
	require.NoError(t, err)
	require.Equal(t, []string{"alice"}, fg.ReviewRequests[1])
	require.Equal(t, []string{"bob"}, fg.AssigneeAdds[1])
}

func TestPushBookmarkNamesBranch(t *testing.T) {
	ctx := context.Background()
	rt, fj, fg := newTestRuntime()

	a := fj.AddChange("add parser", "tree-a")
	fj.SetBookmarks(a, "my-feature")

	_, err := actions.PushAction(ctx, rt, actions.PushOptions{Head: a})
	require.NoError(t, err)
	require.Equal(t, "my-feature", fg.PRs[1].HeadBranch)
}

func TestPushStackComment(t *testing.T) {
	ctx := context.Background()
	rt, fj, fg := newTestRuntime()

	a := fj.AddChange("add parser", "tree-a")
	b := fj.AddChange("add printer", "tree-b", a)

	_, err := actions.PushAction(ctx, rt, actions.PushOptions{Head: b})
	require.NoError(t, err)

	comment := fg.StackComment(1)
	require.Contains(t, comment, "stack of 2 changes")
	require.Contains(t, comment, "add parser (#1)")
	require.Contains(t, comment, "add printer (#2)")
	require.Equal(t, comment, fg.StackComment(2))

	// Single-change stacks carry no comment.
	rt2, fj2, fg2 := newTestRuntime()
	only := fj2.AddChange("solo", "tree-s")
	_, err = actions.PushAction(ctx, rt2, actions.PushOptions{Head: only})
	require.NoError(t, err)
	require.Empty(t, fg2.StackComment(1))
}

func TestPushTitleBodyEditPropagates(t *testing.T) {
	ctx := context.Background()
	rt, fj, fg := newTestRuntime()

	a := fj.AddChange("add parser\n\nFirst cut.", "tree-a")
	_, err := actions.PushAction(ctx, rt, actions.PushOptions{Head: a})
	require.NoError(t, err)
	require.Equal(t, "First cut.", fg.PRs[1].Body)

	// Reword locally; the pull request follows without a branch push.
	desc := "add parser\n\nSecond cut.\n\nPull Request: " + fg.PRs[1].URL + "\nLast Commit: " + fj.Remote[fg.PRs[1].HeadBranch] + "\n"
	require.NoError(t, fj.Describe(ctx, a, desc))
	pushes := len(fj.Pushes)

	report, err := actions.PushAction(ctx, rt, actions.PushOptions{Head: a})
	require.NoError(t, err)
	require.Equal(t, actions.OutcomeUpdated, report.Results[0].Outcome)
	require.Equal(t, "Second cut.", fg.PRs[1].Body)
	require.Equal(t, pushes, len(fj.Pushes))
}

func TestPushAllHeads(t *testing.T) {
	ctx := context.Background()
	rt, fj, fg := newTestRuntime()

	a := fj.AddChange("add parser", "tree-a")
	fj.AddChange("add printer", "tree-b", a)
	fj.AddChange("fix docs", "tree-x")

	report, err := actions.PushAction(ctx, rt, actions.PushOptions{All: true})
	require.NoError(t, err)
	require.Len(t, report.Results, 3)
	require.Len(t, fg.PRs, 3)

	// Each stack is rooted on the trunk independently.
	bases := map[string]string{}
	for _, pr := range fg.PRs {
		bases[pr.HeadBranch] = pr.BaseBranch
	}
	require.Equal(t, "main", bases["revstack/testuser/add-parser"])
	require.Equal(t, "revstack/testuser/add-parser", bases["revstack/testuser/add-printer"])
	require.Equal(t, "main", bases["revstack/testuser/fix-docs"])
}

func TestPushUpdateMessage(t *testing.T) {
	ctx := context.Background()
	rt, fj, fg := newTestRuntime()

	a := fj.AddChange("add parser", "tree-a")
	_, err := actions.PushAction(ctx, rt, actions.PushOptions{Head: a})
	require.NoError(t, err)
	branch := fg.PRs[1].HeadBranch

	// The first push carries the change's own title.
	require.Equal(t, "add parser\n", fj.CommitMessage(fj.Remote[branch]))

	fj.AmendTree(a, "tree-a2")
	_, err = actions.PushAction(ctx, rt, actions.PushOptions{Head: a, Message: "address review"})
	require.NoError(t, err)
	require.Equal(t, "address review\n", fj.CommitMessage(fj.Remote[branch]))

	// Without -m and without a terminal the update message defaults.
	fj.AmendTree(a, "tree-a3")
	_, err = actions.PushAction(ctx, rt, actions.PushOptions{Head: a})
	require.NoError(t, err)
	require.Equal(t, "Update\n", fj.CommitMessage(fj.Remote[branch]))
}

func TestPushGapBlocksStack(t *testing.T) {
	ctx := context.Background()
	rt, fj, fg := newTestRuntime()

	// The change below the head has no description: its edits are part of
	// the head's tree but nobody has claimed them for review.
	gap := fj.AddChange("", "tree-gap")
	f := fj.AddChange("feature on top of gap", "tree-f", gap)

	report, err := actions.PushAction(ctx, rt, actions.PushOptions{Head: f})
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	require.Equal(t, actions.OutcomeFailed, report.Results[0].Outcome)
	require.Contains(t, report.Results[0].Detail, "cannot determine base")

	require.Empty(t, fg.PRs, "no pull request may front unreviewable content")
	require.Empty(t, fj.Pushes)
	require.Zero(t, fg.Writes)
}

func TestPushRemoteErrorFailsElementOnly(t *testing.T) {
	ctx := context.Background()
	rt, fj, fg := newTestRuntime()

	a := fj.AddChange("add parser", "tree-a")
	_, err := actions.PushAction(ctx, rt, actions.PushOptions{Head: a})
	require.NoError(t, err)

	x := fj.AddChange("fix docs", "tree-x")
	fj.AmendTree(a, "tree-a2")
	fg.GetErrs[1] = fmt.Errorf("502 bad gateway")

	report, err := actions.PushAction(ctx, rt, actions.PushOptions{All: true})
	require.NoError(t, err, "a broken element must not abort sibling stacks")
	require.Len(t, report.Results, 2)
	require.Equal(t, actions.OutcomeFailed, report.Find(a).Outcome)
	require.Contains(t, report.Find(a).Detail, "502")
	require.Equal(t, actions.OutcomeCreated, report.Find(x).Outcome)

	// Credential failures still stop the whole run.
	fg.GetErrs[1] = errors.ErrAuth
	_, err = actions.PushAction(ctx, rt, actions.PushOptions{Head: a})
	require.ErrorIs(t, err, errors.ErrAuth)
}

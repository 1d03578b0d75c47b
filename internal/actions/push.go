package actions

import (
	"context"
	"fmt"
	"strings"

	"github.com/AlecAivazis/survey/v2"

	"revstack.dev/revstack/internal/errors"
	"revstack.dev/revstack/internal/github"
	"revstack.dev/revstack/internal/message"
	"revstack.dev/revstack/internal/output"
	"revstack.dev/revstack/internal/runtime"
	"revstack.dev/revstack/internal/stack"
)

// PushOptions contains options for the push command.
type PushOptions struct {
	// Head is the revision whose stack is pushed. Empty means the working
	// copy.
	Head string

	// All pushes the stacks of every mutable head instead of one revision.
	All bool

	// Message is the commit message for update pushes to pull requests
	// that already exist. When empty and a terminal is attached, the user
	// is prompted once per run.
	Message string

	// Force overwrites remote branches that moved since the last push.
	Force bool

	// Reviewers and Assignees are added to every pushed change's
	// description and requested on its pull request.
	Reviewers []string
	Assignees []string
}

// pushState carries the fold along the stack: each element's pull request
// bases on the branch and commit its parent just pushed.
type pushState struct {
	baseBranch string
	baseCommit string

	// blocked is set when an element fails; its descendants cannot
	// resolve a base and are failed without touching the remote.
	blocked bool
	reason  string

	refs map[string]bool

	// updateMsg caches the prompted update message so multi-element
	// stacks ask at most once.
	updateMsg string
}

// PushAction publishes the working-copy stack: one branch and one pull
// request per change, base to head, with each pull request targeting the
// branch below it. Descriptions gain association trailers only after the
// remote accepted the corresponding write.
func PushAction(ctx context.Context, rt *runtime.Context, opts PushOptions) (*Report, error) {
	heads := []string{opts.Head}
	if heads[0] == "" {
		heads[0] = "@"
	}
	if opts.All {
		all, err := rt.JJ.MutableHeads(ctx)
		if err != nil {
			return nil, err
		}
		heads = heads[:0]
		for _, h := range all {
			heads = append(heads, h.ChangeID)
		}
	}

	// Walk everything up front so a malformed stack aborts the run before
	// any remote write.
	var stacks []*stack.Stack
	for _, head := range heads {
		s, err := stack.Walk(ctx, rt.JJ, head)
		if err == errors.ErrEmptyStack {
			continue
		}
		if err != nil {
			return nil, err
		}
		stacks = append(stacks, s)
	}
	if len(stacks) == 0 {
		rt.Splog.Info("Nothing to push: no described changes above %s.", rt.Config.Trunk)
		return &Report{}, nil
	}

	trunkTip, err := rt.JJ.TrunkTip(ctx)
	if err != nil {
		return nil, err
	}
	refs, err := rt.JJ.AllRefNames(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{}
	st := &pushState{refs: refs}
	for _, s := range stacks {
		for _, warning := range s.Warnings {
			rt.Splog.Warn("%s", warning)
		}
		st.baseBranch = rt.Config.Trunk
		st.baseCommit = trunkTip
		st.blocked = false
		st.reason = ""
		if s.Gap != "" {
			// The elements sit on an undescribed change: their trees
			// carry its unreviewed edits, so no base can honestly front
			// them. Fail the whole stack without touching the remote.
			bottom := s.Elements[0].Change
			st.blocked = true
			st.reason = errors.NewUnresolvableBaseError(bottom.ShortID(), shortID(s.Gap)).Error()
		}

		stackStart := len(report.Results)
		for _, elem := range s.Elements {
			res, err := pushOne(ctx, rt, elem, st, opts)
			if err != nil {
				return report, err
			}
			report.add(res)
		}
		if err := upsertStackComments(ctx, rt, report.Results[stackStart:]); err != nil {
			return report, err
		}
	}

	report.render(rt.Splog)
	return report, nil
}

func pushOne(ctx context.Context, rt *runtime.Context, elem *stack.Element, st *pushState, opts PushOptions) (Result, error) {
	res := Result{ChangeID: elem.Change.ChangeID, Title: elem.Message.Title}

	fail := func(detail string) (Result, error) {
		res.Outcome = OutcomeFailed
		res.Detail = detail
		st.blocked = true
		st.reason = fmt.Sprintf("base change %s failed", elem.Change.ShortID())
		return res, nil
	}

	if st.blocked {
		res.Outcome = OutcomeFailed
		res.Detail = st.reason
		return res, nil
	}
	if elem.Change.Conflicted {
		return fail("change has unresolved conflicts")
	}

	assoc, err := elem.Association()
	if err != nil {
		return fail(err.Error())
	}

	msg := elem.Message
	msg.Reviewers = union(msg.Reviewers, opts.Reviewers)
	msg.Assignees = union(msg.Assignees, opts.Assignees)

	var outcome pushedElement
	if assoc != nil {
		outcome, err = pushExisting(ctx, rt, elem, assoc, msg, st, opts)
	} else {
		outcome, err = pushNew(ctx, rt, elem, msg, st, opts)
	}
	if errors.Is(err, errors.ErrAuth) {
		// Nothing else can succeed without credentials.
		return res, err
	}
	if err != nil {
		// Errors that survive the retry policy stay with this element
		// and its descendants; sibling stacks still get their turn.
		return fail(err.Error())
	}
	if outcome.failed != "" {
		return fail(outcome.failed)
	}

	// Advance the fold: the next element bases on what we just pushed.
	st.baseBranch = outcome.branch
	st.baseCommit = outcome.pushedHead

	// Record the association only now that the remote holds it.
	msg.PullRequestURL = outcome.pr.URL
	msg.PushedHead = outcome.pushedHead
	encoded := message.Encode(msg)
	if encoded != elem.Change.Description {
		if err := rt.JJ.Describe(ctx, elem.Change.ChangeID, encoded); err != nil {
			return res, err
		}
	}

	res.Outcome = outcome.outcome
	res.Number = outcome.pr.Number
	res.URL = outcome.pr.URL
	return res, nil
}

// pushedElement is the successful result of pushing one element.
type pushedElement struct {
	pr         *github.PullRequest
	branch     string
	pushedHead string
	outcome    Outcome

	// failed carries a reason instead when the element cannot be pushed
	// but the condition is not a hard error.
	failed string
}

// pushExisting refreshes an element that already has a pull request.
func pushExisting(ctx context.Context, rt *runtime.Context, elem *stack.Element, assoc *stack.Association, msg message.Message, st *pushState, opts PushOptions) (pushedElement, error) {
	pr, err := rt.GitHub.GetPullRequest(ctx, assoc.Number)
	if errors.Is(err, errors.ErrPRNotFound) {
		return pushedElement{failed: fmt.Sprintf("pull request #%d no longer exists", assoc.Number)}, nil
	}
	if err != nil {
		return pushedElement{}, err
	}
	if pr.State != github.StateOpen {
		return pushedElement{failed: fmt.Sprintf("pull request #%d is %s; run revstack sync", pr.Number, pr.State)}, nil
	}

	branch := pr.HeadBranch
	remoteHead, err := rt.JJ.RemoteBranchCommit(ctx, branch)
	if err != nil {
		return pushedElement{}, err
	}
	if remoteHead != "" && assoc.PushedHead != "" && remoteHead != assoc.PushedHead && !opts.Force {
		conflict := errors.NewRemoteConflictError(branch, remoteHead, assoc.PushedHead)
		return pushedElement{failed: conflict.Error()}, nil
	}

	oldHead := assoc.PushedHead
	if oldHead == "" {
		oldHead = remoteHead
	}
	if oldHead == "" {
		// The branch vanished and the trailer never recorded a head;
		// republish from the base as if this were a first push.
		return republish(ctx, rt, elem, pr, msg, st)
	}

	tree, err := rt.JJ.TreeID(ctx, elem.Change.CommitID)
	if err != nil {
		return pushedElement{}, err
	}
	oldTree, err := rt.JJ.TreeID(ctx, oldHead)
	if err != nil {
		return pushedElement{}, err
	}
	// The base moved when it is no longer fully contained in the old
	// head's history.
	baseMergeBase, err := rt.JJ.MergeBase(ctx, st.baseCommit, oldHead)
	if err != nil {
		return pushedElement{}, err
	}
	baseUnmoved := baseMergeBase == st.baseCommit

	pushedHead := oldHead
	pushed := false
	if tree != oldTree || !baseUnmoved {
		// The new remote head keeps the previous head as first parent so
		// the incremental diff reviewers see is exactly this update. When
		// the base moved it becomes a second parent, folding the base's
		// changes out of that diff.
		parents := []string{oldHead}
		if !baseUnmoved {
			parents = append(parents, st.baseCommit)
		}
		update, err := updateMessage(st, opts)
		if err != nil {
			return pushedElement{}, err
		}
		newHead, err := rt.JJ.CreateDerivedCommit(ctx, tree, update, parents)
		if err != nil {
			return pushedElement{}, err
		}
		if err := rt.JJ.PushCommit(ctx, newHead, branch, opts.Force); err != nil {
			return pushedElement{}, err
		}
		pushedHead = newHead
		pushed = true
	}

	var upd github.UpdatePROptions
	if pr.Title != msg.Title {
		upd.Title = &msg.Title
	}
	if pr.Body != msg.Body {
		upd.Body = &msg.Body
	}
	if pr.BaseBranch != st.baseBranch {
		upd.Base = &st.baseBranch
	}
	updated := upd.Title != nil || upd.Body != nil || upd.Base != nil
	if updated {
		if err := rt.GitHub.UpdatePullRequest(ctx, pr.Number, upd); err != nil {
			return pushedElement{}, err
		}
	}

	if err := requestPeople(ctx, rt, pr.Number, minus(msg.Reviewers, pr.Reviewers), minus(msg.Assignees, elem.Message.Assignees)); err != nil {
		return pushedElement{}, err
	}

	outcome := OutcomeUnchanged
	if pushed || updated {
		outcome = OutcomeUpdated
	}
	return pushedElement{pr: pr, branch: branch, pushedHead: pushedHead, outcome: outcome}, nil
}

// republish rebuilds a pull request's head branch from the base when the
// previous head is unknown.
func republish(ctx context.Context, rt *runtime.Context, elem *stack.Element, pr *github.PullRequest, msg message.Message, st *pushState) (pushedElement, error) {
	tree, err := rt.JJ.TreeID(ctx, elem.Change.CommitID)
	if err != nil {
		return pushedElement{}, err
	}
	newHead, err := rt.JJ.CreateDerivedCommit(ctx, tree, commitMessage(msg), []string{st.baseCommit})
	if err != nil {
		return pushedElement{}, err
	}
	if err := rt.JJ.PushCommit(ctx, newHead, pr.HeadBranch, true); err != nil {
		return pushedElement{}, err
	}
	if pr.BaseBranch != st.baseBranch {
		if err := rt.GitHub.UpdatePullRequest(ctx, pr.Number, github.UpdatePROptions{Base: &st.baseBranch}); err != nil {
			return pushedElement{}, err
		}
	}
	return pushedElement{pr: pr, branch: pr.HeadBranch, pushedHead: newHead, outcome: OutcomeUpdated}, nil
}

// pushNew publishes an element for the first time.
func pushNew(ctx context.Context, rt *runtime.Context, elem *stack.Element, msg message.Message, st *pushState, opts PushOptions) (pushedElement, error) {
	var branch string
	if len(elem.Change.Bookmarks) > 0 {
		branch = elem.Change.Bookmarks[0]
	} else {
		branch = rt.Config.NewBranchName(st.refs, msg.Title)
	}
	// Keep later elements in this run from picking the same name.
	st.refs["refs/heads/"+branch] = true

	existing, err := rt.GitHub.FindPullRequestByHead(ctx, branch)
	if err != nil {
		return pushedElement{}, err
	}

	tree, err := rt.JJ.TreeID(ctx, elem.Change.CommitID)
	if err != nil {
		return pushedElement{}, err
	}
	newHead, err := rt.JJ.CreateDerivedCommit(ctx, tree, commitMessage(msg), []string{st.baseCommit})
	if err != nil {
		return pushedElement{}, err
	}
	if err := rt.JJ.PushCommit(ctx, newHead, branch, opts.Force); err != nil {
		return pushedElement{}, err
	}

	if existing != nil {
		// A pull request already fronts this branch; reattach instead of
		// opening a duplicate.
		var upd github.UpdatePROptions
		if existing.Title != msg.Title {
			upd.Title = &msg.Title
		}
		if existing.Body != msg.Body {
			upd.Body = &msg.Body
		}
		if existing.BaseBranch != st.baseBranch {
			upd.Base = &st.baseBranch
		}
		if upd.Title != nil || upd.Body != nil || upd.Base != nil {
			if err := rt.GitHub.UpdatePullRequest(ctx, existing.Number, upd); err != nil {
				return pushedElement{}, err
			}
		}
		if err := requestPeople(ctx, rt, existing.Number, minus(msg.Reviewers, existing.Reviewers), msg.Assignees); err != nil {
			return pushedElement{}, err
		}
		return pushedElement{pr: existing, branch: branch, pushedHead: newHead, outcome: OutcomeUpdated}, nil
	}

	pr, err := rt.GitHub.CreatePullRequest(ctx, github.CreatePROptions{
		Title: msg.Title,
		Body:  msg.Body,
		Head:  branch,
		Base:  st.baseBranch,
	})
	if err != nil {
		return pushedElement{}, err
	}
	if err := requestPeople(ctx, rt, pr.Number, msg.Reviewers, msg.Assignees); err != nil {
		return pushedElement{}, err
	}
	return pushedElement{pr: pr, branch: branch, pushedHead: newHead, outcome: OutcomeCreated}, nil
}

func requestPeople(ctx context.Context, rt *runtime.Context, number int, reviewers, assignees []string) error {
	if err := rt.GitHub.RequestReviewers(ctx, number, reviewers); err != nil {
		return err
	}
	return rt.GitHub.AddAssignees(ctx, number, assignees)
}

// updateMessage picks the commit message for an update push. The first
// push of an element uses its title and body; later pushes use the -m
// flag, or prompt once per run on a terminal.
func updateMessage(st *pushState, opts PushOptions) (string, error) {
	if opts.Message != "" {
		return opts.Message + "\n", nil
	}
	if st.updateMsg != "" {
		return st.updateMsg, nil
	}
	answer := "Update"
	if output.IsTTY() {
		prompt := &survey.Input{
			Message: "Update message:",
			Default: answer,
		}
		if err := survey.AskOne(prompt, &answer); err != nil {
			return "", fmt.Errorf("canceled: %w", err)
		}
		if answer == "" {
			answer = "Update"
		}
	}
	st.updateMsg = answer + "\n"
	return st.updateMsg, nil
}

// commitMessage renders the message as a plain git commit message for the
// derived commits published to head branches.
func commitMessage(msg message.Message) string {
	if msg.Body == "" {
		return msg.Title + "\n"
	}
	return msg.Title + "\n\n" + msg.Body + "\n"
}

// upsertStackComments maintains the navigation comment on every pull
// request of a multi-change stack.
func upsertStackComments(ctx context.Context, rt *runtime.Context, results []Result) error {
	var listed []Result
	for _, res := range results {
		if res.Number > 0 {
			listed = append(listed, res)
		}
	}
	if len(listed) < 2 {
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "This pull request is part of a stack of %d changes:\n", len(listed))
	// Head first, the way the eventual merge order reads top-down.
	for i := len(listed) - 1; i >= 0; i-- {
		fmt.Fprintf(&b, "1. %s (#%d)\n", listed[i].Title, listed[i].Number)
	}
	body := b.String()

	for _, res := range listed {
		if err := rt.GitHub.UpsertStackComment(ctx, res.Number, body); err != nil {
			return err
		}
	}
	return nil
}

func union(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	var out []string
	for _, s := range append(append([]string{}, a...), b...) {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func minus(a, b []string) []string {
	drop := make(map[string]struct{}, len(b))
	for _, s := range b {
		drop[s] = struct{}{}
	}
	var out []string
	for _, s := range a {
		if _, ok := drop[s]; !ok {
			out = append(out, s)
		}
	}
	return out
}

package actions

import (
	"context"
	"fmt"
	"strings"

	"revstack.dev/revstack/internal/errors"
	"revstack.dev/revstack/internal/github"
	"revstack.dev/revstack/internal/message"
	"revstack.dev/revstack/internal/runtime"
	"revstack.dev/revstack/internal/stack"
)

// FetchOptions contains options for the fetch command.
type FetchOptions struct {
	// Head is the revision whose stack is refreshed. Empty means the
	// working copy.
	Head string

	// All refreshes the stacks of every mutable head.
	All bool

	// PullCode folds commits pushed to the head branches (review fixups
	// made elsewhere) into the local changes, not just titles and bodies.
	PullCode bool
}

// FetchAction pulls remote edits back into the local stack: pull request
// titles and bodies overwrite the local description while reviewer lists
// and trailers are preserved, and with PullCode the remote commits are
// squashed into the changes, surfacing conflicts as jj conflict markers.
func FetchAction(ctx context.Context, rt *runtime.Context, opts FetchOptions) (*Report, error) {
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

	rt.Splog.Info("Fetching from %s...", rt.Config.Remote)
	if err := rt.JJ.GitFetch(ctx); err != nil {
		return nil, err
	}

	report := &Report{}
	fetched := false
	for _, head := range heads {
		s, err := stack.Walk(ctx, rt.JJ, head)
		if err == errors.ErrEmptyStack {
			continue
		}
		if err != nil {
			return report, err
		}
		fetched = true
		for _, warning := range s.Warnings {
			rt.Splog.Warn("%s", warning)
		}

		var bottomPR *github.PullRequest
		for i, elem := range s.Elements {
			res, pr, err := fetchOne(ctx, rt, elem, opts)
			if err != nil {
				return report, err
			}
			report.add(res)
			if i == 0 {
				bottomPR = pr
			}
		}

		if err := advanceForkPoint(ctx, rt, s, bottomPR, report); err != nil {
			return report, err
		}
	}
	if !fetched {
		rt.Splog.Info("Nothing to fetch: no described changes above %s.", rt.Config.Trunk)
		return report, nil
	}

	report.render(rt.Splog)
	return report, nil
}

func fetchOne(ctx context.Context, rt *runtime.Context, elem *stack.Element, opts FetchOptions) (Result, *github.PullRequest, error) {
	res := Result{ChangeID: elem.Change.ChangeID, Title: elem.Message.Title}

	assoc, err := elem.Association()
	if err != nil {
		res.Outcome = OutcomeSkipped
		res.Detail = err.Error()
		return res, nil, nil
	}
	if assoc == nil {
		res.Outcome = OutcomeSkipped
		res.Detail = "never pushed"
		return res, nil, nil
	}
	res.Number = assoc.Number
	res.URL = assoc.URL

	pr, err := rt.GitHub.GetPullRequest(ctx, assoc.Number)
	if errors.Is(err, errors.ErrPRNotFound) {
		res.Outcome = OutcomeSkipped
		res.Detail = "pull request no longer exists"
		return res, nil, nil
	}
	if err != nil {
		return res, nil, err
	}
	if pr.State != github.StateOpen {
		res.Outcome = OutcomeSkipped
		res.Detail = fmt.Sprintf("pull request #%d is %s; run revstack sync", pr.Number, pr.State)
		return res, pr, nil
	}

	msg := elem.Message
	changed := false
	if title := strings.TrimSpace(pr.Title); title != "" && title != msg.Title {
		msg.Title = title
		changed = true
	}
	if body := normalizeBody(pr.Body); body != msg.Body {
		msg.Body = body
		changed = true
	}

	conflicted := false
	if opts.PullCode {
		pulled, nowConflicted, err := pullCode(ctx, rt, elem, assoc, pr, &msg)
		if err != nil {
			return res, pr, err
		}
		changed = changed || pulled
		conflicted = nowConflicted
	}

	if changed {
		if err := rt.JJ.Describe(ctx, elem.Change.ChangeID, message.Encode(msg)); err != nil {
			return res, pr, err
		}
	}

	switch {
	case conflicted:
		res.Outcome = OutcomeConflicted
		res.Detail = errors.NewMergeConflictError(elem.Change.ShortID()).Error()
	case changed:
		res.Outcome = OutcomeUpdated
	default:
		res.Outcome = OutcomeUnchanged
	}
	res.Title = msg.Title
	return res, pr, nil
}

// pullCode folds the commits pushed to the element's head branch since our
// last push into the local change. The change may come out conflicted;
// that is reported, not fatal, and the trailer still advances so the next
// fetch does not refold the same commits.
func pullCode(ctx context.Context, rt *runtime.Context, elem *stack.Element, assoc *stack.Association, pr *github.PullRequest, msg *message.Message) (changed, conflicted bool, err error) {
	if assoc.PushedHead == "" {
		rt.Splog.Warn("Change %s has no pushed-head record; cannot pull code for it.", elem.Change.ShortID())
		return false, false, nil
	}

	remoteHead, err := rt.JJ.RemoteBranchCommit(ctx, pr.HeadBranch)
	if err != nil {
		return false, false, err
	}
	if remoteHead == "" || remoteHead == assoc.PushedHead {
		return false, false, nil
	}

	if err := rt.JJ.SquashRange(ctx, assoc.PushedHead, remoteHead, elem.Change.ChangeID); err != nil {
		return false, false, err
	}
	conflicted, err = rt.JJ.HasConflicts(ctx, elem.Change.ChangeID)
	if err != nil {
		return false, false, err
	}
	msg.PushedHead = remoteHead
	return true, conflicted, nil
}

// advanceForkPoint rebases the stack onto the new trunk tip when the
// bottom pull request targets the trunk and the trunk moved forward.
func advanceForkPoint(ctx context.Context, rt *runtime.Context, s *stack.Stack, bottomPR *github.PullRequest, report *Report) error {
	if bottomPR == nil || bottomPR.State != github.StateOpen || bottomPR.BaseBranch != rt.Config.Trunk || len(s.Warnings) > 0 {
		return nil
	}
	trunkTip, err := rt.JJ.TrunkTip(ctx)
	if err != nil {
		return err
	}
	bottom, err := rt.JJ.Change(ctx, s.Elements[0].Change.ChangeID)
	if err != nil {
		return err
	}
	if len(bottom.ParentIDs) != 1 || bottom.ParentIDs[0] == trunkTip {
		return nil
	}
	behind, err := rt.JJ.IsAncestor(ctx, bottom.ParentIDs[0], trunkTip)
	if err != nil {
		return err
	}
	if !behind {
		return nil
	}
	if err := rt.JJ.Rebase(ctx, bottom.ChangeID, trunkTip); err != nil {
		return err
	}
	if res := report.Find(bottom.ChangeID); res != nil && res.Outcome == OutcomeUnchanged {
		res.Outcome = OutcomeUpdated
		res.Detail = "rebased onto " + rt.Config.Trunk
	}
	return nil
}

// normalizeBody canonicalizes a pull request body for storage in a change
// description.
func normalizeBody(body string) string {
	return strings.TrimSpace(strings.ReplaceAll(body, "\r\n", "\n"))
}

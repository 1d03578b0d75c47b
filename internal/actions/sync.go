package actions

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"revstack.dev/revstack/internal/errors"
	"revstack.dev/revstack/internal/github"
	"revstack.dev/revstack/internal/runtime"
	"revstack.dev/revstack/internal/stack"
)

// SyncOptions contains options for the sync command.
type SyncOptions struct {
	// DryRun reports what would happen without touching any change.
	DryRun bool
}

// prStateLimit bounds concurrent pull request lookups during sync.
const prStateLimit = 4

// SyncAction reconciles every local stack with the remote: changes whose
// pull requests merged or were closed are abandoned, and the survivors are
// rebased onto the fresh trunk tip. Sync never writes to the remote.
func SyncAction(ctx context.Context, rt *runtime.Context, opts SyncOptions) (*Report, error) {
	rt.Splog.Info("Fetching from %s...", rt.Config.Remote)
	if err := rt.JJ.GitFetch(ctx); err != nil {
		return nil, err
	}

	heads, err := rt.JJ.MutableHeads(ctx)
	if err != nil {
		return nil, err
	}

	var stacks []*stack.Stack
	for _, head := range heads {
		s, err := stack.Walk(ctx, rt.JJ, head.ChangeID)
		if errors.Is(err, errors.ErrEmptyStack) {
			continue
		}
		if errors.Is(err, errors.ErrMultipleParents) {
			rt.Splog.Warn("Skipping stack at %s: %v", head.ShortID(), err)
			continue
		}
		if err != nil {
			return nil, err
		}
		for _, warning := range s.Warnings {
			rt.Splog.Warn("%s", warning)
		}
		stacks = append(stacks, s)
	}
	if len(stacks) == 0 {
		rt.Splog.Info("Nothing to sync.")
		return &Report{}, nil
	}

	prs, failures, err := lookupPullRequests(ctx, rt, stacks)
	if err != nil {
		return nil, err
	}

	trunkTip, err := rt.JJ.TrunkTip(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{}
	for _, s := range stacks {
		if err := syncStack(ctx, rt, s, prs, failures, trunkTip, opts, report); err != nil {
			return report, err
		}
	}

	report.render(rt.Splog)
	return report, nil
}

// lookupPullRequests fetches the state of every associated pull request,
// a few at a time. Missing pull requests map to nil. Remote failures that
// outlive the retry policy land in the failures map so they stay with the
// affected element; only auth failures abort the lookup.
func lookupPullRequests(ctx context.Context, rt *runtime.Context, stacks []*stack.Stack) (map[int]*github.PullRequest, map[int]error, error) {
	numbers := make(map[int]struct{})
	for _, s := range stacks {
		for _, elem := range s.Elements {
			assoc, err := elem.Association()
			if err != nil {
				rt.Splog.Warn("%v", err)
				continue
			}
			if assoc != nil {
				numbers[assoc.Number] = struct{}{}
			}
		}
	}

	var mu sync.Mutex
	prs := make(map[int]*github.PullRequest, len(numbers))
	failures := make(map[int]error)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(prStateLimit)
	for number := range numbers {
		g.Go(func() error {
			pr, err := rt.GitHub.GetPullRequest(gctx, number)
			switch {
			case errors.Is(err, errors.ErrPRNotFound):
				pr = nil
			case errors.Is(err, errors.ErrAuth):
				return err
			case err != nil:
				mu.Lock()
				failures[number] = err
				mu.Unlock()
				return nil
			}
			mu.Lock()
			prs[number] = pr
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return prs, failures, nil
}

func syncStack(ctx context.Context, rt *runtime.Context, s *stack.Stack, prs map[int]*github.PullRequest, failures map[int]error, trunkTip string, opts SyncOptions, report *Report) error {
	var survivor *stack.Element
	degraded := false

	for _, elem := range s.Elements {
		res := Result{ChangeID: elem.Change.ChangeID, Title: elem.Message.Title}

		assoc, err := elem.Association()
		if err != nil || assoc == nil {
			res.Outcome = OutcomeSkipped
			res.Detail = "never pushed"
			report.add(res)
			if survivor == nil {
				survivor = elem
			}
			continue
		}
		res.Number = assoc.Number
		res.URL = assoc.URL

		if lookupErr := failures[assoc.Number]; lookupErr != nil {
			// State unknown: keep the change and leave the stack where
			// it is until a later sync can see the pull request again.
			res.Outcome = OutcomeFailed
			res.Detail = lookupErr.Error()
			report.add(res)
			degraded = true
			if survivor == nil {
				survivor = elem
			}
			continue
		}

		pr := prs[assoc.Number]
		switch {
		case pr == nil:
			res.Outcome = OutcomeSkipped
			res.Detail = "pull request no longer exists"
		case pr.State == github.StateMerged:
			res.Outcome = OutcomeLanded
			if !opts.DryRun {
				if err := rt.JJ.Abandon(ctx, elem.Change.ChangeID); err != nil {
					return err
				}
			}
		case pr.State == github.StateClosed:
			res.Outcome = OutcomeAbandoned
			res.Detail = "pull request closed without merging"
			if !opts.DryRun {
				if err := rt.JJ.Abandon(ctx, elem.Change.ChangeID); err != nil {
					return err
				}
			}
		default:
			res.Outcome = OutcomeUnchanged
		}
		report.add(res)

		if survivor == nil && res.Outcome != OutcomeLanded && res.Outcome != OutcomeAbandoned {
			survivor = elem
		}
	}

	// Move what remains onto the fresh trunk tip. When the walk was cut
	// short the bottom sits on something other than trunk, so leave it.
	if survivor == nil || degraded || len(s.Warnings) > 0 || opts.DryRun {
		return nil
	}
	cur, err := rt.JJ.Change(ctx, survivor.Change.ChangeID)
	if err != nil {
		return err
	}
	if len(cur.ParentIDs) == 1 && cur.ParentIDs[0] != trunkTip {
		if err := rt.JJ.Rebase(ctx, cur.ChangeID, trunkTip); err != nil {
			return err
		}
		if res := report.Find(cur.ChangeID); res != nil && res.Outcome == OutcomeUnchanged {
			res.Outcome = OutcomeUpdated
			res.Detail = "rebased onto " + rt.Config.Trunk
		}
	}
	return nil
}

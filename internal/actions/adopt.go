package actions

import (
	"context"
	"fmt"

	"revstack.dev/revstack/internal/errors"
	"revstack.dev/revstack/internal/github"
	"revstack.dev/revstack/internal/message"
	"revstack.dev/revstack/internal/runtime"
)

// AdoptOptions contains options for the adopt command.
type AdoptOptions struct {
	// Number is the pull request to adopt.
	Number int

	// NoCheckout leaves the working copy where it was instead of moving
	// it onto the adopted change.
	NoCheckout bool
}

// AdoptAction materializes a pull request, and any pull requests it
// transitively bases on, as local changes carrying association trailers.
// The base chain is resolved completely before anything is created, so a
// broken or cyclic chain leaves the repository untouched.
func AdoptAction(ctx context.Context, rt *runtime.Context, opts AdoptOptions) (*Report, error) {
	rt.Splog.Info("Fetching from %s...", rt.Config.Remote)
	if err := rt.JJ.GitFetch(ctx); err != nil {
		return nil, err
	}

	priorWC, err := rt.JJ.WorkingCopy(ctx)
	if err != nil {
		return nil, err
	}

	chain, parentRev, err := resolveAdoptChain(ctx, rt, opts.Number)
	if err != nil {
		return nil, err
	}

	report := &Report{}
	if len(chain) == 0 {
		rt.Splog.Info("Pull request #%d is already present locally.", opts.Number)
		report.add(Result{
			Number:  opts.Number,
			Outcome: OutcomeSkipped,
			Detail:  "already adopted",
		})
		report.render(rt.Splog)
		return report, nil
	}

	// Materialize base first so each change parents on the previous one.
	for i := len(chain) - 1; i >= 0; i-- {
		pr := chain[i]
		res, changeID, err := adoptOne(ctx, rt, pr, parentRev)
		if err != nil {
			return report, err
		}
		report.add(res)
		parentRev = changeID
	}

	if opts.NoCheckout {
		if err := rt.JJ.Edit(ctx, priorWC.ChangeID); err != nil {
			return report, err
		}
	}

	report.render(rt.Splog)
	return report, nil
}

// resolveAdoptChain walks the base chain from the requested pull request
// toward the trunk. It returns the pull requests to materialize, target
// first, plus the revision the outermost one should parent on: the trunk
// tip, or an already-adopted local change. An empty chain means the target
// itself is already local.
func resolveAdoptChain(ctx context.Context, rt *runtime.Context, number int) ([]*github.PullRequest, string, error) {
	var chain []*github.PullRequest
	var path []int

	for {
		for _, seen := range path {
			if seen == number {
				return nil, "", errors.NewCycleDetectedError(append(path, number))
			}
		}
		path = append(path, number)

		pr, err := rt.GitHub.GetPullRequest(ctx, number)
		if err != nil {
			return nil, "", err
		}
		if pr.State != github.StateOpen {
			return nil, "", fmt.Errorf("pull request #%d is %s and cannot be adopted", pr.Number, pr.State)
		}

		local, err := rt.JJ.FindByDescription(ctx, message.AssociationTrailer(pr.URL)+"\n")
		if err != nil {
			return nil, "", err
		}
		if local != nil {
			// Anchor on the change that already fronts this pull request.
			return chain, local.ChangeID, nil
		}

		chain = append(chain, pr)

		if pr.BaseBranch == rt.Config.Trunk {
			tip, err := rt.JJ.TrunkTip(ctx)
			if err != nil {
				return nil, "", err
			}
			return chain, tip, nil
		}

		basePR, err := rt.GitHub.FindPullRequestByHead(ctx, pr.BaseBranch)
		if err != nil {
			return nil, "", err
		}
		if basePR == nil {
			return nil, "", fmt.Errorf("pull request #%d bases on branch %q, which no open pull request fronts", pr.Number, pr.BaseBranch)
		}
		number = basePR.Number
	}
}

// adoptOne creates a local change mirroring one pull request.
func adoptOne(ctx context.Context, rt *runtime.Context, pr *github.PullRequest, parentRev string) (Result, string, error) {
	res := Result{Title: pr.Title, Number: pr.Number, URL: pr.URL}

	remoteHead, err := rt.JJ.RemoteBranchCommit(ctx, pr.HeadBranch)
	if err != nil {
		return res, "", err
	}
	if remoteHead == "" {
		remoteHead = pr.HeadSHA
	}
	if remoteHead == "" {
		return res, "", fmt.Errorf("pull request #%d: branch %q has no fetched commit", pr.Number, pr.HeadBranch)
	}

	change, err := rt.JJ.NewChange(ctx, parentRev, "")
	if err != nil {
		return res, "", err
	}
	if err := rt.JJ.Restore(ctx, remoteHead, change.ChangeID); err != nil {
		return res, "", err
	}

	msg := message.Message{
		Title:          pr.Title,
		Body:           normalizeBody(pr.Body),
		PullRequestURL: pr.URL,
		PushedHead:     remoteHead,
	}
	if err := rt.JJ.Describe(ctx, change.ChangeID, message.Encode(msg)); err != nil {
		return res, "", err
	}

	res.ChangeID = change.ChangeID
	res.Outcome = OutcomeAdopted
	return res, change.ChangeID, nil
}

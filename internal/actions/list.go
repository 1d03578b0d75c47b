package actions

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/sync/errgroup"

	"revstack.dev/revstack/internal/errors"
	"revstack.dev/revstack/internal/github"
	"revstack.dev/revstack/internal/output"
	"revstack.dev/revstack/internal/runtime"
	"revstack.dev/revstack/internal/stack"
)

// ListOptions contains options for the list command.
type ListOptions struct {
	// All includes every open pull request, not just the ones this tool
	// manages.
	All bool
}

// ListEntry is one open pull request as the list command reports it.
type ListEntry struct {
	Number     int
	Title      string
	URL        string
	HeadBranch string
	BaseBranch string

	// ChangeID is the local change associated with the pull request, or
	// empty when it only exists remotely.
	ChangeID string

	// Position and ChainLen place the pull request inside its stack:
	// Position 1 targets the trunk. A standalone pull request is 1 of 1.
	Position int
	ChainLen int

	// Review is the standing review decision.
	Review github.ReviewState
}

// ListAction enumerates the open pull requests this repository's stacks
// consist of: those with a local association plus those whose head branch
// carries the configured prefix.
func ListAction(ctx context.Context, rt *runtime.Context, opts ListOptions) ([]ListEntry, error) {
	prs, err := rt.GitHub.ListOpenPullRequests(ctx)
	if err != nil {
		return nil, err
	}

	local, err := localAssociations(ctx, rt)
	if err != nil {
		return nil, err
	}

	var selected []*github.PullRequest
	for _, pr := range prs {
		managed := strings.HasPrefix(pr.HeadBranch, rt.Config.BranchPrefix) || local[pr.URL] != ""
		if opts.All || managed {
			selected = append(selected, pr)
		}
	}

	reviews := make([]github.ReviewState, len(selected))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(prStateLimit)
	for i, pr := range selected {
		g.Go(func() error {
			state, err := rt.GitHub.ReviewDecision(gctx, pr.Number)
			if err != nil {
				return err
			}
			reviews[i] = state
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byHead := make(map[string]*github.PullRequest, len(selected))
	for _, pr := range selected {
		byHead[pr.HeadBranch] = pr
	}

	entries := make([]ListEntry, 0, len(selected))
	chainLen := make(map[string]int)
	roots := make(map[int]string)
	for i, pr := range selected {
		depth, root := chainPosition(pr, byHead)
		roots[pr.Number] = root
		if depth > chainLen[root] {
			chainLen[root] = depth
		}
		entries = append(entries, ListEntry{
			Number:     pr.Number,
			Title:      pr.Title,
			URL:        pr.URL,
			HeadBranch: pr.HeadBranch,
			BaseBranch: pr.BaseBranch,
			ChangeID:   local[pr.URL],
			Position:   depth,
			Review:     reviews[i],
		})
	}
	for i := range entries {
		entries[i].ChainLen = chainLen[roots[entries[i].Number]]
	}

	sort.Slice(entries, func(i, j int) bool {
		ri, rj := roots[entries[i].Number], roots[entries[j].Number]
		if ri != rj {
			return ri < rj
		}
		if entries[i].Position != entries[j].Position {
			return entries[i].Position < entries[j].Position
		}
		return entries[i].Number < entries[j].Number
	})
	return entries, nil
}

// chainPosition follows base links through the selected set, returning the
// 1-based depth above the trunk and the root branch identifying the chain.
func chainPosition(pr *github.PullRequest, byHead map[string]*github.PullRequest) (depth int, root string) {
	depth = 1
	root = pr.HeadBranch
	visited := map[string]bool{pr.HeadBranch: true}
	for {
		base, ok := byHead[pr.BaseBranch]
		if !ok || visited[base.HeadBranch] {
			return depth, root
		}
		visited[base.HeadBranch] = true
		depth++
		root = base.HeadBranch
		pr = base
	}
}

// localAssociations maps pull request URLs to the change IDs that carry
// them, across every local stack.
func localAssociations(ctx context.Context, rt *runtime.Context) (map[string]string, error) {
	heads, err := rt.JJ.MutableHeads(ctx)
	if err != nil {
		return nil, err
	}

	local := make(map[string]string)
	for _, head := range heads {
		s, err := stack.Walk(ctx, rt.JJ, head.ChangeID)
		switch {
		case errors.Is(err, errors.ErrEmptyStack):
			continue
		case errors.Is(err, errors.ErrMultipleParents):
			// The partial stack above the merge still names its pull
			// requests.
		case err != nil:
			return nil, err
		}
		for _, elem := range s.Elements {
			assoc, err := elem.Association()
			if err != nil || assoc == nil {
				continue
			}
			local[assoc.URL] = elem.Change.ChangeID
		}
	}
	return local, nil
}

// RenderList prints the entries as an aligned listing.
func RenderList(splog *output.Splog, entries []ListEntry) {
	if len(entries) == 0 {
		splog.Info("No open pull requests.")
		return
	}
	for _, e := range entries {
		position := fmt.Sprintf("[%d/%d]", e.Position, e.ChainLen)
		marker := output.DimStyle.Render("remote only")
		if e.ChangeID != "" {
			marker = output.CreatedStyle.Render(shortID(e.ChangeID))
		}
		splog.Info("%s %s  %s  %s  %s",
			output.BoldStyle.Render(fmt.Sprintf("#%-5d", e.Number)),
			output.UnchangedStyle.Render(position),
			e.Title,
			reviewStyle(e.Review).Render(e.Review.String()),
			marker,
		)
		splog.Info("       %s", output.DimStyle.Render(e.HeadBranch+" -> "+e.BaseBranch))
	}
}

func reviewStyle(state github.ReviewState) lipgloss.Style {
	switch state {
	case github.ReviewApproved:
		return output.CreatedStyle
	case github.ReviewChangesRequested:
		return output.ErrorStyle
	default:
		return output.DimStyle
	}
}

func shortID(changeID string) string {
	if len(changeID) > 8 {
		return changeID[:8]
	}
	return changeID
}

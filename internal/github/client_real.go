package github

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	gogithub "github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"
)

// stackCommentMarker identifies the tool-owned stack navigation comment so
// updates replace it instead of piling up new comments.
const stackCommentMarker = "<!-- revstack-stack -->"

// RealClient implements Client against the GitHub REST API.
type RealClient struct {
	client *gogithub.Client
	owner  string
	repo   string
}

var _ Client = (*RealClient)(nil)

// NewClient builds an authenticated client for owner/repo. Token discovery
// order: REVSTACK_GITHUB_TOKEN, GITHUB_TOKEN, then the gh CLI.
func NewClient(ctx context.Context, owner, repo string) (*RealClient, error) {
	token, err := discoverToken(ctx)
	if err != nil {
		return nil, err
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := oauth2.NewClient(ctx, ts)

	return &RealClient{
		client: gogithub.NewClient(httpClient),
		owner:  owner,
		repo:   repo,
	}, nil
}

// discoverToken finds a GitHub token from the environment or the gh CLI.
func discoverToken(ctx context.Context) (string, error) {
	if token := os.Getenv("REVSTACK_GITHUB_TOKEN"); token != "" {
		return token, nil
	}
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		return token, nil
	}

	out, err := exec.CommandContext(ctx, "gh", "auth", "token").Output()
	if err != nil {
		return "", fmt.Errorf("no GitHub token found: set REVSTACK_GITHUB_TOKEN or log in with 'gh auth login'")
	}
	token := strings.TrimSpace(string(out))
	if token == "" {
		return "", fmt.Errorf("gh returned an empty token")
	}
	return token, nil
}

// CurrentUser returns the authenticated user's login.
func (c *RealClient) CurrentUser(ctx context.Context) (string, error) {
	var login string
	err := withRetry(func() error {
		user, _, err := c.client.Users.Get(ctx, "")
		if err != nil {
			return err
		}
		login = user.GetLogin()
		return nil
	})
	return login, err
}

// GetPullRequest fetches a pull request by number.
func (c *RealClient) GetPullRequest(ctx context.Context, number int) (*PullRequest, error) {
	var pr *PullRequest
	err := withRetry(func() error {
		raw, _, err := c.client.PullRequests.Get(ctx, c.owner, c.repo, number)
		if err != nil {
			return err
		}
		pr, err = c.toPullRequest(raw)
		return err
	})
	return pr, err
}

// FindPullRequestByHead returns the open pull request whose head is
// branch, or nil when there is none.
func (c *RealClient) FindPullRequestByHead(ctx context.Context, branch string) (*PullRequest, error) {
	var pr *PullRequest
	err := withRetry(func() error {
		prs, _, err := c.client.PullRequests.List(ctx, c.owner, c.repo, &gogithub.PullRequestListOptions{
			Head:        c.owner + ":" + branch,
			State:       "open",
			ListOptions: gogithub.ListOptions{PerPage: 1},
		})
		if err != nil {
			return err
		}
		if len(prs) == 0 {
			pr = nil
			return nil
		}
		pr, err = c.toPullRequest(prs[0])
		return err
	})
	return pr, err
}

// ListOpenPullRequests returns all open pull requests for the repository.
func (c *RealClient) ListOpenPullRequests(ctx context.Context) ([]*PullRequest, error) {
	var out []*PullRequest
	err := withRetry(func() error {
		out = out[:0]
		opts := &gogithub.PullRequestListOptions{
			State:       "open",
			ListOptions: gogithub.ListOptions{PerPage: 100},
		}
		for {
			prs, resp, err := c.client.PullRequests.List(ctx, c.owner, c.repo, opts)
			if err != nil {
				return err
			}
			for _, raw := range prs {
				pr, err := c.toPullRequest(raw)
				if err != nil {
					return err
				}
				out = append(out, pr)
			}
			if resp.NextPage == 0 {
				return nil
			}
			opts.Page = resp.NextPage
		}
	})
	return out, err
}

// ReviewDecision reduces a pull request's reviews to their standing
// decision, taking each reviewer's latest review.
func (c *RealClient) ReviewDecision(ctx context.Context, number int) (ReviewState, error) {
	latest := make(map[string]string)
	err := withRetry(func() error {
		clear(latest)
		opts := &gogithub.ListOptions{PerPage: 100}
		for {
			reviews, resp, err := c.client.PullRequests.ListReviews(ctx, c.owner, c.repo, number, opts)
			if err != nil {
				return err
			}
			for _, review := range reviews {
				switch review.GetState() {
				case "APPROVED", "CHANGES_REQUESTED", "DISMISSED":
					latest[review.GetUser().GetLogin()] = review.GetState()
				}
			}
			if resp.NextPage == 0 {
				return nil
			}
			opts.Page = resp.NextPage
		}
	})
	if err != nil {
		return ReviewPending, err
	}

	decision := ReviewPending
	for _, state := range latest {
		if state == "CHANGES_REQUESTED" {
			return ReviewChangesRequested, nil
		}
		if state == "APPROVED" {
			decision = ReviewApproved
		}
	}
	return decision, nil
}

// CreatePullRequest creates a new pull request.
func (c *RealClient) CreatePullRequest(ctx context.Context, opts CreatePROptions) (*PullRequest, error) {
	newPR := &gogithub.NewPullRequest{
		Title: gogithub.String(opts.Title),
		Head:  gogithub.String(opts.Head),
		Base:  gogithub.String(opts.Base),
		Draft: gogithub.Bool(opts.Draft),
	}
	if opts.Body != "" {
		newPR.Body = gogithub.String(opts.Body)
	}

	var pr *PullRequest
	err := withRetry(func() error {
		created, _, err := c.client.PullRequests.Create(ctx, c.owner, c.repo, newPR)
		if err != nil {
			return err
		}
		pr, err = c.toPullRequest(created)
		return err
	})
	return pr, err
}

// UpdatePullRequest updates an existing pull request.
func (c *RealClient) UpdatePullRequest(ctx context.Context, number int, opts UpdatePROptions) error {
	update := &gogithub.PullRequest{Title: opts.Title, Body: opts.Body}
	if opts.Base != nil {
		update.Base = &gogithub.PullRequestBranch{Ref: opts.Base}
	}
	return withRetry(func() error {
		_, _, err := c.client.PullRequests.Edit(ctx, c.owner, c.repo, number, update)
		return err
	})
}

// RequestReviewers requests reviews from the given logins.
func (c *RealClient) RequestReviewers(ctx context.Context, number int, reviewers []string) error {
	if len(reviewers) == 0 {
		return nil
	}
	return withRetry(func() error {
		_, _, err := c.client.PullRequests.RequestReviewers(ctx, c.owner, c.repo, number, gogithub.ReviewersRequest{
			Reviewers: reviewers,
		})
		return err
	})
}

// AddAssignees assigns the given logins to the pull request.
func (c *RealClient) AddAssignees(ctx context.Context, number int, assignees []string) error {
	if len(assignees) == 0 {
		return nil
	}
	return withRetry(func() error {
		_, _, err := c.client.Issues.AddAssignees(ctx, c.owner, c.repo, number, assignees)
		return err
	})
}

// UpsertStackComment creates or updates the tool-owned stack comment.
func (c *RealClient) UpsertStackComment(ctx context.Context, number int, body string) error {
	marked := stackCommentMarker + "\n" + body
	return withRetry(func() error {
		comments, _, err := c.client.Issues.ListComments(ctx, c.owner, c.repo, number, &gogithub.IssueListCommentsOptions{
			ListOptions: gogithub.ListOptions{PerPage: 100},
		})
		if err != nil {
			return err
		}
		for _, comment := range comments {
			if strings.Contains(comment.GetBody(), stackCommentMarker) {
				if comment.GetBody() == marked {
					return nil
				}
				_, _, err := c.client.Issues.EditComment(ctx, c.owner, c.repo, comment.GetID(), &gogithub.IssueComment{
					Body: gogithub.String(marked),
				})
				return err
			}
		}
		_, _, err = c.client.Issues.CreateComment(ctx, c.owner, c.repo, number, &gogithub.IssueComment{
			Body: gogithub.String(marked),
		})
		return err
	})
}

// PullRequestURL returns the canonical URL for a pull request number.
func (c *RealClient) PullRequestURL(number int) string {
	return fmt.Sprintf("https://github.com/%s/%s/pull/%d", c.owner, c.repo, number)
}

func (c *RealClient) toPullRequest(raw *gogithub.PullRequest) (*PullRequest, error) {
	state, err := ParsePRState(raw.GetState(), raw.GetMerged() || raw.MergedAt != nil)
	if err != nil {
		return nil, fmt.Errorf("pull request #%d: %w", raw.GetNumber(), err)
	}

	var reviewers []string
	for _, r := range raw.RequestedReviewers {
		reviewers = append(reviewers, r.GetLogin())
	}

	url := raw.GetHTMLURL()
	if url == "" {
		url = c.PullRequestURL(raw.GetNumber())
	}

	return &PullRequest{
		Number:     raw.GetNumber(),
		URL:        url,
		Title:      raw.GetTitle(),
		Body:       raw.GetBody(),
		HeadBranch: raw.GetHead().GetRef(),
		BaseBranch: raw.GetBase().GetRef(),
		HeadSHA:    raw.GetHead().GetSHA(),
		State:      state,
		Reviewers:  reviewers,
	}, nil
}

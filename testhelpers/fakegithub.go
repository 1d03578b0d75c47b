package testhelpers

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"revstack.dev/revstack/internal/errors"
	"revstack.dev/revstack/internal/github"
)

// FakeGitHub is an in-memory github.Client over a map of pull requests.
type FakeGitHub struct {
	mu sync.Mutex

	owner string
	repo  string

	// PRs maps pull request numbers to their current state.
	PRs map[int]*github.PullRequest

	// Comments maps pull request numbers to raw comment bodies in
	// creation order; the stack comment is edited in place.
	Comments map[int][]string

	// ReviewRequests and AssigneeAdds record people operations per PR.
	ReviewRequests map[int][]string
	AssigneeAdds   map[int][]string

	// Reviews holds the standing review decision per PR; absent numbers
	// read as pending.
	Reviews map[int]github.ReviewState

	// GetErrs makes GetPullRequest fail for specific numbers, standing in
	// for remote failures that outlived the retry policy.
	GetErrs map[int]error

	// Writes counts every mutating call.
	Writes int

	// User is the login returned by CurrentUser.
	User string

	nextNumber int
}

var _ github.Client = (*FakeGitHub)(nil)

// NewFakeGitHub creates an empty fake repository.
func NewFakeGitHub(owner, repo string) *FakeGitHub {
	return &FakeGitHub{
		owner:          owner,
		repo:           repo,
		PRs:            make(map[int]*github.PullRequest),
		Comments:       make(map[int][]string),
		ReviewRequests: make(map[int][]string),
		AssigneeAdds:   make(map[int][]string),
		Reviews:        make(map[int]github.ReviewState),
		GetErrs:        make(map[int]error),
		User:           "testuser",
		nextNumber:     1,
	}
}

// SeedPullRequest installs a pull request directly, for tests that start
// from existing remote state. Numbers must be unique.
func (f *FakeGitHub) SeedPullRequest(pr *github.PullRequest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if pr.URL == "" {
		pr.URL = f.url(pr.Number)
	}
	f.PRs[pr.Number] = pr
	if pr.Number >= f.nextNumber {
		f.nextNumber = pr.Number + 1
	}
}

// MarkMerged flips a pull request to the merged state.
func (f *FakeGitHub) MarkMerged(number int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.PRs[number].State = github.StateMerged
}

// MarkClosed flips a pull request to the closed-without-merge state.
func (f *FakeGitHub) MarkClosed(number int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.PRs[number].State = github.StateClosed
}

// SetTitleBody overwrites a pull request's title and body, simulating an
// edit through the web UI.
func (f *FakeGitHub) SetTitleBody(number int, title, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.PRs[number].Title = title
	f.PRs[number].Body = body
}

// AddComment appends a plain (non-tool) comment to a pull request.
func (f *FakeGitHub) AddComment(number int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Comments[number] = append(f.Comments[number], body)
}

func (f *FakeGitHub) url(number int) string {
	return fmt.Sprintf("https://github.com/%s/%s/pull/%d", f.owner, f.repo, number)
}

func clonePR(pr *github.PullRequest) *github.PullRequest {
	out := *pr
	out.Reviewers = append([]string(nil), pr.Reviewers...)
	return &out
}

// CurrentUser returns the configured login.
func (f *FakeGitHub) CurrentUser(_ context.Context) (string, error) {
	return f.User, nil
}

// GetPullRequest fetches a pull request by number.
func (f *FakeGitHub) GetPullRequest(_ context.Context, number int) (*github.PullRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.GetErrs[number]; ok {
		return nil, err
	}
	pr, ok := f.PRs[number]
	if !ok {
		return nil, errors.ErrPRNotFound
	}
	return clonePR(pr), nil
}

// FindPullRequestByHead returns the open pull request with the given head
// branch, or nil.
func (f *FakeGitHub) FindPullRequestByHead(_ context.Context, branch string) (*github.PullRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, pr := range f.PRs {
		if pr.HeadBranch == branch && pr.State == github.StateOpen {
			return clonePR(pr), nil
		}
	}
	return nil, nil
}

// ListOpenPullRequests returns all open pull requests.
func (f *FakeGitHub) ListOpenPullRequests(_ context.Context) ([]*github.PullRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*github.PullRequest
	for _, pr := range f.PRs {
		if pr.State == github.StateOpen {
			out = append(out, clonePR(pr))
		}
	}
	return out, nil
}

// ReviewDecision returns the seeded review decision, pending by default.
func (f *FakeGitHub) ReviewDecision(_ context.Context, number int) (github.ReviewState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.PRs[number]; !ok {
		return github.ReviewPending, errors.ErrPRNotFound
	}
	return f.Reviews[number], nil
}

// CreatePullRequest creates a new open pull request.
func (f *FakeGitHub) CreatePullRequest(_ context.Context, opts github.CreatePROptions) (*github.PullRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Writes++
	number := f.nextNumber
	f.nextNumber++
	pr := &github.PullRequest{
		Number:     number,
		URL:        f.url(number),
		Title:      opts.Title,
		Body:       opts.Body,
		HeadBranch: opts.Head,
		BaseBranch: opts.Base,
		State:      github.StateOpen,
	}
	f.PRs[number] = pr
	return clonePR(pr), nil
}

// UpdatePullRequest updates title, body, or base of a pull request.
func (f *FakeGitHub) UpdatePullRequest(_ context.Context, number int, opts github.UpdatePROptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	pr, ok := f.PRs[number]
	if !ok {
		return errors.ErrPRNotFound
	}
	f.Writes++
	if opts.Title != nil {
		pr.Title = *opts.Title
	}
	if opts.Body != nil {
		pr.Body = *opts.Body
	}
	if opts.Base != nil {
		pr.BaseBranch = *opts.Base
	}
	return nil
}

// RequestReviewers records a review request.
func (f *FakeGitHub) RequestReviewers(_ context.Context, number int, reviewers []string) error {
	if len(reviewers) == 0 {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	pr, ok := f.PRs[number]
	if !ok {
		return errors.ErrPRNotFound
	}
	f.Writes++
	pr.Reviewers = append(pr.Reviewers, reviewers...)
	f.ReviewRequests[number] = append(f.ReviewRequests[number], reviewers...)
	return nil
}

// AddAssignees records an assignee addition.
func (f *FakeGitHub) AddAssignees(_ context.Context, number int, assignees []string) error {
	if len(assignees) == 0 {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.PRs[number]; !ok {
		return errors.ErrPRNotFound
	}
	f.Writes++
	f.AssigneeAdds[number] = append(f.AssigneeAdds[number], assignees...)
	return nil
}

// stackMarker mirrors the marker the real client embeds in its comment.
const stackMarker = "<!-- revstack-stack -->"

// UpsertStackComment creates or replaces the tool-owned comment.
func (f *FakeGitHub) UpsertStackComment(_ context.Context, number int, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.PRs[number]; !ok {
		return errors.ErrPRNotFound
	}
	marked := stackMarker + "\n" + body
	for i, existing := range f.Comments[number] {
		if strings.Contains(existing, stackMarker) {
			if existing != marked {
				f.Writes++
				f.Comments[number][i] = marked
			}
			return nil
		}
	}
	f.Writes++
	f.Comments[number] = append(f.Comments[number], marked)
	return nil
}

// PullRequestURL returns the canonical URL for a pull request number.
func (f *FakeGitHub) PullRequestURL(number int) string {
	return f.url(number)
}

// StackComment returns the tool-owned comment body for a pull request,
// without the marker line, or "" when there is none.
func (f *FakeGitHub) StackComment(number int) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, comment := range f.Comments[number] {
		if strings.Contains(comment, stackMarker) {
			return strings.TrimPrefix(comment, stackMarker+"\n")
		}
	}
	return ""
}

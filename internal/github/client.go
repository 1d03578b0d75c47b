// Package github provides the narrow client revstack consumes from the
// GitHub API, with a bounded retry policy for transient failures.
package github

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// PRState is the lifecycle state of a pull request. It is a closed enum:
// states GitHub may grow later must fail parsing rather than silently
// landing in the wrong branch of a switch.
type PRState int

const (
	// StateOpen is a pull request still under review.
	StateOpen PRState = iota
	// StateMerged is a pull request whose work has landed.
	StateMerged
	// StateClosed is a pull request closed without merging.
	StateClosed
)

func (s PRState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateMerged:
		return "merged"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("PRState(%d)", int(s))
	}
}

// ParsePRState maps GitHub's state string plus the merged flag onto the
// closed enum. Unknown states are an error.
func ParsePRState(state string, merged bool) (PRState, error) {
	switch state {
	case "open":
		return StateOpen, nil
	case "closed":
		if merged {
			return StateMerged, nil
		}
		return StateClosed, nil
	default:
		return 0, fmt.Errorf("unknown pull request state %q", state)
	}
}

// ReviewState summarizes the standing review decision on a pull request.
type ReviewState int

const (
	// ReviewPending means no reviewer has approved or requested changes.
	ReviewPending ReviewState = iota
	// ReviewApproved means at least one reviewer approved and none has an
	// outstanding change request.
	ReviewApproved
	// ReviewChangesRequested means a reviewer's change request stands.
	ReviewChangesRequested
)

func (s ReviewState) String() string {
	switch s {
	case ReviewPending:
		return "pending"
	case ReviewApproved:
		return "approved"
	case ReviewChangesRequested:
		return "changes requested"
	default:
		return fmt.Sprintf("ReviewState(%d)", int(s))
	}
}

// PullRequest is the remote review entity as revstack sees it.
type PullRequest struct {
	Number     int
	URL        string
	Title      string
	Body       string
	HeadBranch string
	BaseBranch string
	HeadSHA    string
	State      PRState
	Reviewers  []string
}

// CreatePROptions contains options for creating a pull request.
type CreatePROptions struct {
	Title string
	Body  string
	Head  string
	Base  string
	Draft bool
}

// UpdatePROptions contains options for updating a pull request. Nil fields
// are left untouched.
type UpdatePROptions struct {
	Title *string
	Body  *string
	Base  *string
}

// Client is the interface for GitHub API interactions.
type Client interface {
	// CurrentUser returns the authenticated user's login.
	CurrentUser(ctx context.Context) (string, error)

	// GetPullRequest fetches a pull request by number.
	GetPullRequest(ctx context.Context, number int) (*PullRequest, error)

	// FindPullRequestByHead returns the open pull request whose head is
	// branch, or nil when there is none.
	FindPullRequestByHead(ctx context.Context, branch string) (*PullRequest, error)

	// ListOpenPullRequests returns all open pull requests for the
	// repository.
	ListOpenPullRequests(ctx context.Context) ([]*PullRequest, error)

	// ReviewDecision reduces a pull request's reviews to their standing
	// decision, taking each reviewer's latest review.
	ReviewDecision(ctx context.Context, number int) (ReviewState, error)

	// CreatePullRequest creates a new pull request.
	CreatePullRequest(ctx context.Context, opts CreatePROptions) (*PullRequest, error)

	// UpdatePullRequest updates an existing pull request.
	UpdatePullRequest(ctx context.Context, number int, opts UpdatePROptions) error

	// RequestReviewers requests reviews from the given logins.
	RequestReviewers(ctx context.Context, number int, reviewers []string) error

	// AddAssignees assigns the given logins to the pull request.
	AddAssignees(ctx context.Context, number int, assignees []string) error

	// UpsertStackComment creates or updates the single tool-owned stack
	// navigation comment on a pull request. Other comments are untouched.
	UpsertStackComment(ctx context.Context, number int, body string) error

	// PullRequestURL returns the canonical URL for a pull request number.
	PullRequestURL(number int) string
}

// ParsePullRequestURL extracts owner, repo and number from a canonical
// pull request URL such as https://github.com/octo/widgets/pull/42.
func ParsePullRequestURL(rawURL string) (owner, repo string, number int, err error) {
	trimmed := strings.TrimSuffix(rawURL, "/")
	parts := strings.Split(trimmed, "/")
	// .../<owner>/<repo>/pull/<number>
	if len(parts) < 4 || parts[len(parts)-2] != "pull" {
		return "", "", 0, fmt.Errorf("not a pull request URL: %q", rawURL)
	}
	number, err = strconv.Atoi(parts[len(parts)-1])
	if err != nil {
		return "", "", 0, fmt.Errorf("not a pull request URL: %q", rawURL)
	}
	return parts[len(parts)-4], parts[len(parts)-3], number, nil
}

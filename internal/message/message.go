// Package message encodes and decodes the structured change descriptions
// revstack stores in the local repository. A description carries a title,
// a free-form body, optional reviewer and assignee lists, and the trailer
// lines that associate the change with its pull request.
package message

import (
	"fmt"
	"net/url"
	"strings"
)

// Labels recognized inside a change description. Matching is
// case-insensitive; encoding always writes the canonical form.
const (
	reviewersLabel   = "Reviewers:"
	assigneesLabel   = "Assignees:"
	pullRequestLabel = "Pull Request:"
	lastCommitLabel  = "Last Commit:"
)

// Message is the decoded form of a change description.
type Message struct {
	// Title is the first line of the description.
	Title string

	// Body is the free-form text between the title and any labeled lines.
	Body string

	// Reviewers holds GitHub logins requested as reviewers, in the order
	// they appear in the description.
	Reviewers []string

	// Assignees holds GitHub logins to assign to the pull request.
	Assignees []string

	// PullRequestURL associates the change with a pull request. Empty when
	// the change has never been pushed.
	PullRequestURL string

	// PushedHead is the commit this tool last pushed to the pull request's
	// head branch. Empty when the change has never been pushed.
	PushedHead string
}

// Associated reports whether the message carries a pull request trailer.
func (m Message) Associated() bool {
	return m.PullRequestURL != ""
}

// Decode parses a change description. It never fails outright: labeled
// lines it cannot accept (such as an unparseable pull request URL) are
// dropped from the result and reported through the returned error so
// callers can surface them instead of acting on garbage.
func Decode(text string) (Message, error) {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	if strings.TrimSpace(text) == "" {
		return Message{}, nil
	}

	var m Message
	var body []string
	var decodeErr error

	lines := strings.Split(text, "\n")
	m.Title = strings.TrimSpace(lines[0])

	for _, line := range lines[1:] {
		trimmed := strings.TrimSpace(line)
		switch {
		case hasLabel(trimmed, reviewersLabel):
			m.Reviewers = append(m.Reviewers, splitList(valueAfter(trimmed, reviewersLabel))...)
		case hasLabel(trimmed, assigneesLabel):
			m.Assignees = append(m.Assignees, splitList(valueAfter(trimmed, assigneesLabel))...)
		case hasLabel(trimmed, pullRequestLabel):
			raw := valueAfter(trimmed, pullRequestLabel)
			if _, err := url.ParseRequestURI(raw); err != nil {
				decodeErr = fmt.Errorf("malformed pull request trailer %q: %w", raw, err)
				continue
			}
			m.PullRequestURL = raw
		case hasLabel(trimmed, lastCommitLabel):
			m.PushedHead = valueAfter(trimmed, lastCommitLabel)
		default:
			body = append(body, line)
		}
	}

	m.Body = strings.TrimSpace(strings.Join(body, "\n"))
	return m, decodeErr
}

// Encode renders a message back into description text. The layout is
// canonical: title, body, people lines, then the trailer block. Empty
// fields are omitted entirely, and reviewer/assignee lists are
// deduplicated preserving first occurrence. Decoding the result yields
// the same message.
func Encode(m Message) string {
	var blocks []string

	if title := strings.TrimSpace(m.Title); title != "" {
		blocks = append(blocks, title)
	}
	if body := strings.TrimSpace(m.Body); body != "" {
		blocks = append(blocks, body)
	}

	var people []string
	if reviewers := dedupe(m.Reviewers); len(reviewers) > 0 {
		people = append(people, reviewersLabel+" "+strings.Join(reviewers, ", "))
	}
	if assignees := dedupe(m.Assignees); len(assignees) > 0 {
		people = append(people, assigneesLabel+" "+strings.Join(assignees, ", "))
	}
	if len(people) > 0 {
		blocks = append(blocks, strings.Join(people, "\n"))
	}

	var trailers []string
	if m.PullRequestURL != "" {
		trailers = append(trailers, pullRequestLabel+" "+m.PullRequestURL)
	}
	if m.PushedHead != "" {
		trailers = append(trailers, lastCommitLabel+" "+m.PushedHead)
	}
	if len(trailers) > 0 {
		blocks = append(blocks, strings.Join(trailers, "\n"))
	}

	if len(blocks) == 0 {
		return ""
	}
	return strings.Join(blocks, "\n\n") + "\n"
}

// AssociationTrailer returns the exact description line Encode writes to
// link a change to a pull request. Searching for it (with its trailing
// newline) distinguishes .../pull/4 from .../pull/42.
func AssociationTrailer(url string) string {
	return pullRequestLabel + " " + url
}

// hasLabel reports whether line starts with label, ignoring case.
func hasLabel(line, label string) bool {
	return len(line) >= len(label) && strings.EqualFold(line[:len(label)], label)
}

func valueAfter(line, label string) string {
	return strings.TrimSpace(line[len(label):])
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func dedupe(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	var out []string
	for _, name := range names {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

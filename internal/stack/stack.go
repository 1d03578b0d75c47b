// Package stack discovers the linear chain of reviewable changes above
// the trunk and exposes the change↔pull-request association embedded in
// change descriptions.
package stack

import (
	"context"
	"fmt"

	"revstack.dev/revstack/internal/errors"
	"revstack.dev/revstack/internal/github"
	"revstack.dev/revstack/internal/jj"
	"revstack.dev/revstack/internal/message"
)

// Element is one change in a stack together with its decoded description.
type Element struct {
	Change  jj.Change
	Message message.Message
}

// Association is the durable link from a change to its pull request,
// parsed out of the description trailers.
type Association struct {
	URL        string
	Number     int
	PushedHead string
}

// Association returns the element's pull request link, or nil when the
// change has never been pushed.
func (e *Element) Association() (*Association, error) {
	if !e.Message.Associated() {
		return nil, nil
	}
	_, _, number, err := github.ParsePullRequestURL(e.Message.PullRequestURL)
	if err != nil {
		return nil, fmt.Errorf("change %s: %w", e.Change.ShortID(), err)
	}
	return &Association{
		URL:        e.Message.PullRequestURL,
		Number:     number,
		PushedHead: e.Message.PushedHead,
	}, nil
}

// Stack is an ordered, strictly linear sequence of changes, base to head.
// It is computed on demand and never persisted.
type Stack struct {
	Elements []*Element

	// Warnings collects non-fatal conditions found during the walk, such
	// as the chain being cut short by an undescribed change.
	Warnings []string

	// Gap is the ID of the undescribed change that cut the walk short,
	// when any. The elements above it sit on unreviewable content, so
	// their review base cannot be resolved.
	Gap string
}

// Len returns the number of stack elements.
func (s *Stack) Len() int {
	return len(s.Elements)
}

// Walk discovers the maximal linear chain of mutable, described ancestors
// of headRev, base to head. Undescribed changes at the very top (the empty
// working-copy change) are skipped; an undescribed change further down
// cuts the walk short with a warning. A merge inside the range fails with
// MultipleParentsError; the partial stack above the merge is still
// returned so callers can treat the merge as a boundary instead.
func Walk(ctx context.Context, client jj.Client, headRev string) (*Stack, error) {
	chain, err := client.AncestorChain(ctx, headRev)
	if err != nil {
		return nil, err
	}
	if len(chain) == 0 {
		return nil, errors.ErrEmptyStack
	}

	byCommit := make(map[string]*jj.Change, len(chain))
	for i := range chain {
		byCommit[chain[i].CommitID] = &chain[i]
	}

	// The first record is the head itself; skip it (and any further
	// leading changes) while undescribed.
	cur := &chain[0]
	for cur != nil && !cur.Described() {
		cur = parentOf(byCommit, cur)
	}

	stack := &Stack{}
	for cur != nil {
		if !cur.Described() {
			stack.Warnings = append(stack.Warnings,
				fmt.Sprintf("change %s has no description; the stack stops above it", cur.ShortID()))
			stack.Gap = cur.ChangeID
			break
		}
		if len(cur.ParentIDs) > 1 {
			reverse(stack.Elements)
			return stack, errors.NewMultipleParentsError(cur.ChangeID)
		}

		msg, err := message.Decode(cur.Description)
		if err != nil {
			stack.Warnings = append(stack.Warnings,
				fmt.Sprintf("change %s: %v", cur.ShortID(), err))
		}
		stack.Elements = append(stack.Elements, &Element{Change: *cur, Message: msg})

		cur = parentOf(byCommit, cur)
	}

	if stack.Len() == 0 {
		return nil, errors.ErrEmptyStack
	}

	// The walk ran head to base; flip to base-to-head order.
	reverse(stack.Elements)
	return stack, nil
}

// WalkAll produces one stack per mutable head, processed sequentially.
// Heads whose chain holds no described changes are skipped.
func WalkAll(ctx context.Context, client jj.Client) ([]*Stack, error) {
	heads, err := client.MutableHeads(ctx)
	if err != nil {
		return nil, err
	}

	var stacks []*Stack
	for _, head := range heads {
		s, err := Walk(ctx, client, head.ChangeID)
		if err == errors.ErrEmptyStack {
			continue
		}
		if err != nil {
			return nil, err
		}
		stacks = append(stacks, s)
	}
	return stacks, nil
}

// parentOf follows the single-parent edge within the mutable range.
// Multi-parent changes return themselves unresolved elsewhere; here the
// first parent is only used to continue a linear walk.
func parentOf(byCommit map[string]*jj.Change, c *jj.Change) *jj.Change {
	if len(c.ParentIDs) == 0 {
		return nil
	}
	return byCommit[c.ParentIDs[0]]
}

func reverse(elements []*Element) {
	for i, j := 0, len(elements)-1; i < j; i, j = i+1, j-1 {
		elements[i], elements[j] = elements[j], elements[i]
	}
}

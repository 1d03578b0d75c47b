package stack_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"revstack.dev/revstack/internal/errors"
	"revstack.dev/revstack/internal/stack"
	"revstack.dev/revstack/testhelpers"
)

func TestWalk(t *testing.T) {
	ctx := context.Background()

	t.Run("linear chain comes back base to head", func(t *testing.T) {
		fake := testhelpers.NewFakeJJ("main")
		a := fake.AddChange("add parser", "tree-a")
		b := fake.AddChange("add printer", "tree-b", a)
		c := fake.AddChange("wire cli", "tree-c", b)

		s, err := stack.Walk(ctx, fake, c)
		require.NoError(t, err)
		require.Equal(t, 3, s.Len())
		require.Empty(t, s.Warnings)

		require.Equal(t, a, s.Elements[0].Change.ChangeID)
		require.Equal(t, b, s.Elements[1].Change.ChangeID)
		require.Equal(t, c, s.Elements[2].Change.ChangeID)
		require.Equal(t, "add parser", s.Elements[0].Message.Title)
	})

	t.Run("undescribed working copy on top is skipped", func(t *testing.T) {
		fake := testhelpers.NewFakeJJ("main")
		a := fake.AddChange("add parser", "tree-a")
		wc := fake.AddChange("", "tree-a", a)

		s, err := stack.Walk(ctx, fake, wc)
		require.NoError(t, err)
		require.Equal(t, 1, s.Len())
		require.Equal(t, a, s.Elements[0].Change.ChangeID)
		require.Empty(t, s.Warnings)
	})

	t.Run("undescribed change inside the chain cuts it with a warning", func(t *testing.T) {
		fake := testhelpers.NewFakeJJ("main")
		bottom := fake.AddChange("bottom", "tree-1")
		gap := fake.AddChange("", "tree-2", bottom)
		top := fake.AddChange("top", "tree-3", gap)

		s, err := stack.Walk(ctx, fake, top)
		require.NoError(t, err)
		require.Equal(t, 1, s.Len())
		require.Equal(t, top, s.Elements[0].Change.ChangeID)
		require.Len(t, s.Warnings, 1)
		require.Contains(t, s.Warnings[0], "no description")
		require.Equal(t, gap, s.Gap)
	})

	t.Run("merge change fails with the partial stack above it", func(t *testing.T) {
		fake := testhelpers.NewFakeJJ("main")
		left := fake.AddChange("left", "tree-l")
		right := fake.AddChange("right", "tree-r")
		merge := fake.AddChange("merge both", "tree-m", left, right)
		top := fake.AddChange("on top", "tree-t", merge)

		s, err := stack.Walk(ctx, fake, top)
		require.ErrorIs(t, err, errors.ErrMultipleParents)
		var mpErr *errors.MultipleParentsError
		require.ErrorAs(t, err, &mpErr)
		require.Equal(t, merge, mpErr.ChangeID)
		require.Equal(t, 1, s.Len())
		require.Equal(t, top, s.Elements[0].Change.ChangeID)
	})

	t.Run("only undescribed changes is an empty stack", func(t *testing.T) {
		fake := testhelpers.NewFakeJJ("main")
		wc := fake.AddChange("", "tree-a")

		_, err := stack.Walk(ctx, fake, wc)
		require.ErrorIs(t, err, errors.ErrEmptyStack)
	})

	t.Run("unknown revision fails", func(t *testing.T) {
		fake := testhelpers.NewFakeJJ("main")
		_, err := stack.Walk(ctx, fake, "nope")
		require.Error(t, err)
	})
}

func TestElementAssociation(t *testing.T) {
	ctx := context.Background()

	t.Run("trailers produce an association", func(t *testing.T) {
		fake := testhelpers.NewFakeJJ("main")
		desc := "add parser\n\nSome body.\n\n" +
			"Pull Request: https://github.com/octo/widgets/pull/42\n" +
			"Last Commit: 0123456789abcdef0123456789abcdef01234567\n"
		a := fake.AddChange(desc, "tree-a")

		s, err := stack.Walk(ctx, fake, a)
		require.NoError(t, err)

		assoc, err := s.Elements[0].Association()
		require.NoError(t, err)
		require.NotNil(t, assoc)
		require.Equal(t, 42, assoc.Number)
		require.Equal(t, "https://github.com/octo/widgets/pull/42", assoc.URL)
		require.Equal(t, "0123456789abcdef0123456789abcdef01234567", assoc.PushedHead)
	})

	t.Run("no trailers means no association", func(t *testing.T) {
		fake := testhelpers.NewFakeJJ("main")
		a := fake.AddChange("add parser", "tree-a")

		s, err := stack.Walk(ctx, fake, a)
		require.NoError(t, err)

		assoc, err := s.Elements[0].Association()
		require.NoError(t, err)
		require.Nil(t, assoc)
	})

	t.Run("malformed pull request URL is an error", func(t *testing.T) {
		fake := testhelpers.NewFakeJJ("main")
		desc := "add parser\n\nPull Request: https://github.com/octo/widgets/pulls\n"
		a := fake.AddChange(desc, "tree-a")

		s, err := stack.Walk(ctx, fake, a)
		require.NoError(t, err)

		_, err = s.Elements[0].Association()
		require.Error(t, err)
	})
}

func TestWalkAll(t *testing.T) {
	ctx := context.Background()

	t.Run("one stack per mutable head", func(t *testing.T) {
		fake := testhelpers.NewFakeJJ("main")
		a := fake.AddChange("first stack", "tree-a")
		fake.AddChange("second stack", "tree-b")
		fake.AddChange("", "tree-a", a) // empty working copy on the first

		stacks, err := stack.WalkAll(ctx, fake)
		require.NoError(t, err)
		require.Len(t, stacks, 2)
	})

	t.Run("heads with nothing described are skipped", func(t *testing.T) {
		fake := testhelpers.NewFakeJJ("main")
		fake.AddChange("real work", "tree-a")
		fake.AddChange("", "tree-b")

		stacks, err := stack.WalkAll(ctx, fake)
		require.NoError(t, err)
		require.Len(t, stacks, 1)
		require.Equal(t, "real work", stacks[0].Elements[0].Message.Title)
	})
}

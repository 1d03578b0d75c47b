package message_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"revstack.dev/revstack/internal/message"
)

func TestDecode(t *testing.T) {
	t.Run("title only", func(t *testing.T) {
		m, err := message.Decode("add retry budget to uploader\n")
		require.NoError(t, err)
		require.Equal(t, "add retry budget to uploader", m.Title)
		require.Empty(t, m.Body)
		require.False(t, m.Associated())
	})

	t.Run("title and body", func(t *testing.T) {
		m, err := message.Decode("fix flaky reconnect\n\nThe timer was reset on every\npacket, not every ack.\n")
		require.NoError(t, err)
		require.Equal(t, "fix flaky reconnect", m.Title)
		require.Equal(t, "The timer was reset on every\npacket, not every ack.", m.Body)
	})

	t.Run("empty description", func(t *testing.T) {
		m, err := message.Decode("")
		require.NoError(t, err)
		require.Equal(t, message.Message{}, m)
	})

	t.Run("reviewers line", func(t *testing.T) {
		m, err := message.Decode("title\n\nReviewers: alice, bob,carol\n")
		require.NoError(t, err)
		require.Equal(t, []string{"alice", "bob", "carol"}, m.Reviewers)
		require.Empty(t, m.Body)
	})

	t.Run("reviewers across multiple lines accumulate", func(t *testing.T) {
		m, err := message.Decode("title\n\nReviewers: alice\nReviewers: bob\n")
		require.NoError(t, err)
		require.Equal(t, []string{"alice", "bob"}, m.Reviewers)
	})

	t.Run("assignees line", func(t *testing.T) {
		m, err := message.Decode("title\n\nAssignees: dave\n")
		require.NoError(t, err)
		require.Equal(t, []string{"dave"}, m.Assignees)
	})

	t.Run("label matching is case insensitive", func(t *testing.T) {
		m, err := message.Decode("title\n\nreviewers: alice\npull request: https://github.com/o/r/pull/7\n")
		require.NoError(t, err)
		require.Equal(t, []string{"alice"}, m.Reviewers)
		require.Equal(t, "https://github.com/o/r/pull/7", m.PullRequestURL)
	})

	t.Run("association trailers", func(t *testing.T) {
		text := "title\n\nbody\n\nPull Request: https://github.com/octo/widgets/pull/42\nLast Commit: 0123456789abcdef0123456789abcdef01234567\n"
		m, err := message.Decode(text)
		require.NoError(t, err)
		require.True(t, m.Associated())
		require.Equal(t, "https://github.com/octo/widgets/pull/42", m.PullRequestURL)
		require.Equal(t, "0123456789abcdef0123456789abcdef01234567", m.PushedHead)
		require.Equal(t, "body", m.Body)
	})

	t.Run("malformed pull request trailer is reported not swallowed", func(t *testing.T) {
		m, err := message.Decode("title\n\nPull Request: not a url\n")
		require.Error(t, err)
		require.Empty(t, m.PullRequestURL)
		require.Equal(t, "title", m.Title)
	})

	t.Run("windows line endings", func(t *testing.T) {
		m, err := message.Decode("title\r\n\r\nbody line\r\n")
		require.NoError(t, err)
		require.Equal(t, "title", m.Title)
		require.Equal(t, "body line", m.Body)
	})
}

func TestEncode(t *testing.T) {
	t.Run("no trailer emitted for unassociated message", func(t *testing.T) {
		text := message.Encode(message.Message{Title: "title", Body: "body"})
		require.Equal(t, "title\n\nbody\n", text)
		require.NotContains(t, text, "Pull Request:")
		require.NotContains(t, text, "Last Commit:")
	})

	t.Run("full layout", func(t *testing.T) {
		text := message.Encode(message.Message{
			Title:          "add widget cache",
			Body:           "Keeps the last 64 widgets warm.",
			Reviewers:      []string{"alice", "bob"},
			PullRequestURL: "https://github.com/octo/widgets/pull/9",
			PushedHead:     "deadbeef",
		})
		require.Equal(t,
			"add widget cache\n\n"+
				"Keeps the last 64 widgets warm.\n\n"+
				"Reviewers: alice, bob\n\n"+
				"Pull Request: https://github.com/octo/widgets/pull/9\n"+
				"Last Commit: deadbeef\n",
			text)
	})

	t.Run("reviewers deduplicated preserving order", func(t *testing.T) {
		text := message.Encode(message.Message{
			Title:     "t",
			Reviewers: []string{"bob", "alice", "bob"},
		})
		require.Contains(t, text, "Reviewers: bob, alice\n")
	})

	t.Run("setting the association twice keeps a single trailer", func(t *testing.T) {
		m, err := message.Decode("t\n\nPull Request: https://github.com/o/r/pull/1\n")
		require.NoError(t, err)
		m.PullRequestURL = "https://github.com/o/r/pull/2"
		decoded, err := message.Decode(message.Encode(m))
		require.NoError(t, err)
		require.Equal(t, "https://github.com/o/r/pull/2", decoded.PullRequestURL)
		require.Equal(t, 1, strings.Count(message.Encode(m), "Pull Request:"))
	})
}

func TestRoundTrip(t *testing.T) {
	cases := map[string]string{
		"title only":          "just a title\n",
		"title and body":      "title\n\nparagraph one\n\nparagraph two\n",
		"reviewers":           "title\n\nReviewers: alice, bob\n",
		"assignees":           "title\n\nbody\n\nAssignees: carol\n",
		"full association":    "title\n\nbody\n\nReviewers: alice\n\nPull Request: https://github.com/o/r/pull/3\nLast Commit: cafebabe\n",
		"association no head": "title\n\nPull Request: https://github.com/o/r/pull/3\n",
	}

	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			once, err := message.Decode(text)
			require.NoError(t, err)
			twice, err := message.Decode(message.Encode(once))
			require.NoError(t, err)
			require.Equal(t, once, twice)
		})
	}
}

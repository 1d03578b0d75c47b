package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"revstack.dev/revstack/internal/config"
	"revstack.dev/revstack/internal/errors"
)

func tempRepo(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0750))
	return root
}

func TestRepoConfig(t *testing.T) {
	t.Run("save then load round-trips", func(t *testing.T) {
		root := tempRepo(t)
		cfg := &config.RepoConfig{
			Owner:        "octo",
			Repo:         "widgets",
			Remote:       "origin",
			Trunk:        "main",
			BranchPrefix: "revstack/alice/",
		}
		require.NoError(t, cfg.Save(root))

		loaded, err := config.Load(root)
		require.NoError(t, err)
		require.Equal(t, cfg, loaded)
	})

	t.Run("missing file means not initialized", func(t *testing.T) {
		_, err := config.Load(tempRepo(t))
		require.ErrorIs(t, err, errors.ErrNotInitialized)
	})

	t.Run("incomplete config means not initialized", func(t *testing.T) {
		root := tempRepo(t)
		cfg := &config.RepoConfig{Owner: "octo"}
		require.NoError(t, cfg.Save(root))
		_, err := config.Load(root)
		require.ErrorIs(t, err, errors.ErrNotInitialized)
	})

	t.Run("remote defaults to origin", func(t *testing.T) {
		root := tempRepo(t)
		cfg := &config.RepoConfig{Owner: "o", Repo: "r", Trunk: "main"}
		require.NoError(t, cfg.Save(root))
		loaded, err := config.Load(root)
		require.NoError(t, err)
		require.Equal(t, "origin", loaded.Remote)
	})

	t.Run("pull request url", func(t *testing.T) {
		cfg := &config.RepoConfig{Owner: "octo", Repo: "widgets"}
		require.Equal(t, "https://github.com/octo/widgets/pull/42", cfg.PullRequestURL(42))
	})
}

// Package config reads and writes the per-repository revstack
// configuration file stored inside the colocated .git directory.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"revstack.dev/revstack/internal/errors"
)

// fileName is the config file location relative to the repository root.
const fileName = ".git/.revstack_config"

// RepoConfig is the persisted repository configuration.
type RepoConfig struct {
	// Owner and Repo identify the GitHub repository.
	Owner string `json:"owner"`
	Repo  string `json:"repo"`

	// Remote is the git remote pull requests are pushed through.
	Remote string `json:"remote"`

	// Trunk is the integration branch all stacks ultimately base on.
	Trunk string `json:"trunk"`

	// BranchPrefix prefixes every generated head branch name.
	BranchPrefix string `json:"branchPrefix"`
}

// Load reads the configuration for the repository at repoRoot. A missing
// file means the repository was never initialized.
func Load(repoRoot string) (*RepoConfig, error) {
	data, err := os.ReadFile(filepath.Join(repoRoot, fileName))
	if os.IsNotExist(err) {
		return nil, errors.ErrNotInitialized
	}
	if err != nil {
		return nil, fmt.Errorf("read repo config: %w", err)
	}

	var cfg RepoConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse repo config: %w", err)
	}
	if cfg.Owner == "" || cfg.Repo == "" || cfg.Trunk == "" {
		return nil, errors.ErrNotInitialized
	}
	if cfg.Remote == "" {
		cfg.Remote = "origin"
	}
	return &cfg, nil
}

// Save writes the configuration for the repository at repoRoot.
func (c *RepoConfig) Save(repoRoot string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal repo config: %w", err)
	}
	return os.WriteFile(filepath.Join(repoRoot, fileName), data, 0600)
}

// PullRequestURL returns the canonical URL for a pull request number in
// the configured repository.
func (c *RepoConfig) PullRequestURL(number int) string {
	return fmt.Sprintf("https://github.com/%s/%s/pull/%d", c.Owner, c.Repo, number)
}

// ParseRemoteURL extracts owner and repo from a GitHub remote URL, in
// either https or ssh form.
func ParseRemoteURL(url string) (owner, repo string, err error) {
	trimmed := strings.TrimSuffix(strings.TrimSpace(url), ".git")

	if at := strings.Index(trimmed, "@"); at >= 0 {
		// ssh form: git@github.com:owner/repo
		colon := strings.Index(trimmed, ":")
		if colon < 0 {
			return "", "", fmt.Errorf("unrecognized remote URL %q", url)
		}
		trimmed = trimmed[colon+1:]
	} else {
		// https form: https://github.com/owner/repo
		parts := strings.SplitN(trimmed, "://", 2)
		if len(parts) == 2 {
			trimmed = parts[1]
		}
		if slash := strings.Index(trimmed, "/"); slash >= 0 {
			trimmed = trimmed[slash+1:]
		}
	}

	parts := strings.Split(trimmed, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("unrecognized remote URL %q", url)
	}
	return parts[0], parts[1], nil
}

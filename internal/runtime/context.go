// Package runtime assembles the shared dependencies every command needs:
// the jj client, the GitHub client, repository configuration and the
// logger. Commands receive one Context instead of five parameters.
package runtime

import (
	"context"

	"revstack.dev/revstack/internal/config"
	"revstack.dev/revstack/internal/github"
	"revstack.dev/revstack/internal/jj"
	"revstack.dev/revstack/internal/output"
)

// Context provides access to the repository and remote for commands.
type Context struct {
	JJ       jj.Client
	GitHub   github.Client
	Config   *config.RepoConfig
	Splog    *output.Splog
	RepoRoot string
}

// NewContext builds a context from explicit parts. Tests use this with
// fakes; production code goes through Load.
func NewContext(jjClient jj.Client, gh github.Client, cfg *config.RepoConfig, splog *output.Splog) *Context {
	if splog == nil {
		splog = output.NewSplog()
	}
	return &Context{
		JJ:     jjClient,
		GitHub: gh,
		Config: cfg,
		Splog:  splog,
	}
}

// Load builds the full runtime for an initialized repository: it locates
// the workspace root, loads the saved configuration, and opens the jj and
// GitHub clients. Returns errors.ErrNotInitialized when init has not run.
func Load(ctx context.Context) (*Context, error) {
	root, err := jj.WorkspaceRoot(ctx, "")
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}

	jjClient, err := jj.Open(root, cfg.Remote, cfg.Trunk)
	if err != nil {
		return nil, err
	}

	gh, err := github.NewClient(ctx, cfg.Owner, cfg.Repo)
	if err != nil {
		return nil, err
	}

	return &Context{
		JJ:       jjClient,
		GitHub:   gh,
		Config:   cfg,
		Splog:    openSplog(),
		RepoRoot: root,
	}, nil
}

// LoadBare builds a runtime for commands that must work before init: just
// the workspace root and the logger.
func LoadBare(ctx context.Context) (*Context, error) {
	root, err := jj.WorkspaceRoot(ctx, "")
	if err != nil {
		return nil, err
	}
	return &Context{
		Splog:    openSplog(),
		RepoRoot: root,
	}, nil
}

// openSplog prefers the rotating file log and degrades to console-only.
func openSplog() *output.Splog {
	splog, err := output.NewSplogWithLogFile(output.DefaultLogFilePath())
	if err != nil {
		return output.NewSplog()
	}
	return splog
}

// Close releases the context's resources.
func (c *Context) Close() error {
	if c.Splog != nil {
		return c.Splog.Close()
	}
	return nil
}

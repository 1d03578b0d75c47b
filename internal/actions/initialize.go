package actions

import (
	"context"
	"fmt"
	"strings"

	"github.com/AlecAivazis/survey/v2"

	"revstack.dev/revstack/internal/config"
	"revstack.dev/revstack/internal/github"
	"revstack.dev/revstack/internal/jj"
	"revstack.dev/revstack/internal/output"
	"revstack.dev/revstack/internal/runtime"
)

// InitOptions contains options for the init command. Fields left empty are
// detected from the repository or prompted for.
type InitOptions struct {
	Remote       string
	Owner        string
	Repo         string
	Trunk        string
	BranchPrefix string

	// Yes accepts every detected default without prompting.
	Yes bool
}

// InitAction writes the repository configuration: remote name, GitHub
// owner and repository, trunk branch and the prefix for generated head
// branches. Defaults are detected from the git remote and the
// authenticated user; an interactive session can override each one.
func InitAction(ctx context.Context, rt *runtime.Context, opts InitOptions) error {
	runner := jj.NewCommandRunner(rt.RepoRoot)

	remote := opts.Remote
	if remote == "" {
		remote = "origin"
	}

	owner, repo := opts.Owner, opts.Repo
	if owner == "" || repo == "" {
		if url, err := runner.RunGit(ctx, "remote", "get-url", remote); err == nil {
			if o, r, err := config.ParseRemoteURL(url); err == nil {
				if owner == "" {
					owner = o
				}
				if repo == "" {
					repo = r
				}
			}
		}
	}

	trunk := opts.Trunk
	if trunk == "" {
		trunk = detectTrunk(ctx, runner, remote)
	}

	interactive := output.IsTTY() && !opts.Yes
	if interactive {
		var err error
		if owner, err = ask("GitHub owner", owner); err != nil {
			return err
		}
		if repo, err = ask("GitHub repository", repo); err != nil {
			return err
		}
		if remote, err = ask("Git remote", remote); err != nil {
			return err
		}
		if trunk, err = ask("Trunk branch", trunk); err != nil {
			return err
		}
	}
	if owner == "" || repo == "" {
		return fmt.Errorf("could not determine the GitHub repository; pass --owner and --repo")
	}

	gh, err := github.NewClient(ctx, owner, repo)
	if err != nil {
		return err
	}
	login, err := gh.CurrentUser(ctx)
	if err != nil {
		return fmt.Errorf("could not reach github.com/%s/%s: %w", owner, repo, err)
	}

	prefix := opts.BranchPrefix
	if prefix == "" {
		prefix = fmt.Sprintf("revstack/%s/", login)
	}
	if interactive {
		if prefix, err = ask("Branch prefix for pushed changes", prefix); err != nil {
			return err
		}
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	cfg := &config.RepoConfig{
		Owner:        owner,
		Repo:         repo,
		Remote:       remote,
		Trunk:        trunk,
		BranchPrefix: prefix,
	}
	if err := cfg.Save(rt.RepoRoot); err != nil {
		return err
	}

	rt.Splog.Info("Initialized for %s.", output.BoldStyle.Render(fmt.Sprintf("github.com/%s/%s", owner, repo)))
	rt.Splog.Info("Trunk is %s on %s; pushed branches get the prefix %s.", trunk, remote, prefix)
	rt.Splog.Tip("Describe a change and run 'revstack push' to open your first stacked pull request.")
	return nil
}

func ask(message, def string) (string, error) {
	var answer string
	prompt := &survey.Input{
		Message: message,
		Default: def,
	}
	if err := survey.AskOne(prompt, &answer); err != nil {
		return "", fmt.Errorf("canceled")
	}
	if answer == "" {
		answer = def
	}
	return answer, nil
}

// detectTrunk reads the remote's default branch from the local clone,
// falling back to main.
func detectTrunk(ctx context.Context, runner *jj.CommandRunner, remote string) string {
	ref, err := runner.RunGit(ctx, "symbolic-ref", "--short", fmt.Sprintf("refs/remotes/%s/HEAD", remote))
	if err == nil {
		if name, ok := strings.CutPrefix(ref, remote+"/"); ok {
			return name
		}
	}
	return "main"
}

package actions_test

import (
	"revstack.dev/revstack/internal/config"
	"revstack.dev/revstack/internal/runtime"
	"revstack.dev/revstack/testhelpers"
)

// newTestRuntime wires the fakes into a runtime the way Load wires the
// real clients.
func newTestRuntime() (*runtime.Context, *testhelpers.FakeJJ, *testhelpers.FakeGitHub) {
	fj := testhelpers.NewFakeJJ("main")
	fg := testhelpers.NewFakeGitHub("octo", "widgets")
	cfg := &config.RepoConfig{
		Owner:        "octo",
		Repo:         "widgets",
		Remote:       "origin",
		Trunk:        "main",
		BranchPrefix: "revstack/testuser/",
	}
	return runtime.NewContext(fj, fg, cfg, nil), fj, fg
}

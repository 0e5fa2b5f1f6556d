package prototype

import (
	"github.com/sethvargo/go-githubactions"
)

// GitHubActions is the Platform for a GitHub Actions step.
type GitHubActions struct {
	action *githubactions.Action
}

func NewGitHubActions(opts ...githubactions.Option) *GitHubActions {
	return &GitHubActions{action: githubactions.New(opts...)}
}

func (g *GitHubActions) Input(name string) string {
	return g.action.GetInput(name)
}

func (g *GitHubActions) SetOutput(name, value string) error {
	g.action.SetOutput(name, value)
	return nil
}

func (g *GitHubActions) StartGroup(title string) {
	g.action.Group(title)
}

func (g *GitHubActions) EndGroup() {
	g.action.EndGroup()
}

// Debugf only shows up in the log when step debugging is enabled.
func (g *GitHubActions) Debugf(format string, args ...interface{}) {
	g.action.Debugf(format, args...)
}

func (g *GitHubActions) SetFailed(msg string) {
	g.action.Errorf("%s", msg)
}

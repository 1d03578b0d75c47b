package config

import (
	"fmt"
	"regexp"
	"strings"
)

// maxSlugLength keeps generated branch names comfortably inside git's ref
// name limits even with the prefix and a collision suffix attached.
const maxSlugLength = 64

var invalidBranchChars = regexp.MustCompile(`[^-_/.a-zA-Z0-9]+`)
var repeatedHyphens = regexp.MustCompile(`-+`)

// Slugify turns a change title into a branch-name-safe slug.
func Slugify(title string) string {
	slug := strings.ToLower(strings.TrimSpace(title))
	slug = invalidBranchChars.ReplaceAllString(slug, "-")
	slug = repeatedHyphens.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-./")
	if len(slug) > maxSlugLength {
		slug = strings.TrimSuffix(slug[:maxSlugLength], "-")
	}
	if slug == "" {
		slug = "change"
	}
	return slug
}

// NewBranchName generates an unused head branch name for a change title.
// Collisions with any existing local or remote ref get a numeric suffix.
func (c *RepoConfig) NewBranchName(existingRefs map[string]bool, title string) string {
	slug := Slugify(title)
	name := c.BranchPrefix + slug
	for suffix := 1; c.branchTaken(existingRefs, name); suffix++ {
		name = fmt.Sprintf("%s%s-%d", c.BranchPrefix, slug, suffix)
	}
	return name
}

func (c *RepoConfig) branchTaken(existingRefs map[string]bool, name string) bool {
	return existingRefs["refs/heads/"+name] ||
		existingRefs[fmt.Sprintf("refs/remotes/%s/%s", c.Remote, name)]
}

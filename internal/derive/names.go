package derive

import (
	"strings"
	"unicode"
)

var hostAliases = []struct {
	prefix string
	alias  string
}{
	{"git@github.com:", "github"},
	{"https://github.com/", "github"},
	{"ssh://git@github.com/", "github"},
	{"git@gitlab.com:", "gitlab"},
	{"https://gitlab.com/", "gitlab"},
	{"ssh://git@gitlab.com/", "gitlab"},
}

// NormalizeGitURL shortens GitHub and GitLab remotes to "github:org/repo" or
// "gitlab:org/repo". Other URLs are returned unchanged.
func NormalizeGitURL(url string) string {
	for _, h := range hostAliases {
		if rest, ok := strings.CutPrefix(url, h.prefix); ok {
			return h.alias + ":" + strings.TrimSuffix(rest, ".git")
		}
	}
	return url
}

// SlugifyAuthor derives an actor slug from a commit author, preferring the
// local part of the email address and falling back to the name.
func SlugifyAuthor(name, email string) string {
	if user, _, ok := strings.Cut(email, "@"); ok && user != "" {
		return slug(user)
	}
	return strings.Trim(slug(name), "-")
}

func slug(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return '-'
	}, s)
}

// shortHash returns the first eight characters of a hex object id.
func shortHash(hex string) string {
	if len(hex) > 8 {
		return hex[:8]
	}
	return hex
}

func stepID(hex string) string { return "step-" + shortHash(hex) }

package derive

import "testing"

func TestNormalizeGitURL(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"git@github.com:org/repo.git", "github:org/repo"},
		{"https://github.com/org/repo.git", "github:org/repo"},
		{"https://github.com/org/repo", "github:org/repo"},
		{"ssh://git@github.com/org/repo.git", "github:org/repo"},
		{"git@gitlab.com:group/project.git", "gitlab:group/project"},
		{"https://gitlab.com/group/project", "gitlab:group/project"},
		{"https://bitbucket.org/org/repo", "https://bitbucket.org/org/repo"},
	}
	for _, tt := range tests {
		if got := NormalizeGitURL(tt.input); got != tt.want {
			t.Errorf("NormalizeGitURL(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestSlugifyAuthor(t *testing.T) {
	tests := []struct {
		name  string
		email string
		want  string
	}{
		{"Alex Smith", "asmith@example.com", "asmith"},
		{"Alex Smith", "unknown", "alex-smith"},
		{"Alex Smith", "ASmith@example.com", "asmith"},
		{"Alex Smith", "a.smith+work@example.com", "a-smith-work"},
		{"  Jo O'Neil ", "@example.com", "jo-o-neil"},
	}
	for _, tt := range tests {
		if got := SlugifyAuthor(tt.name, tt.email); got != tt.want {
			t.Errorf("SlugifyAuthor(%q, %q) = %q, want %q", tt.name, tt.email, got, tt.want)
		}
	}
}

func TestParseBranchSpec(t *testing.T) {
	if got := ParseBranchSpec("main"); got.Name != "main" || got.Start != "" {
		t.Fatalf("unexpected spec: %+v", got)
	}
	if got := ParseBranchSpec("feature/x:HEAD~2"); got.Name != "feature/x" || got.Start != "HEAD~2" {
		t.Fatalf("unexpected spec: %+v", got)
	}
}

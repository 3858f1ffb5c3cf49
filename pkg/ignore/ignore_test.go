package ignore

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestDefaultPatterns(t *testing.T) {
	m, err := NewMatcher(t.TempDir(), Options{})
	if err != nil {
		t.Fatalf("NewMatcher() failed: %v", err)
	}

	tests := []struct {
		path     string
		isDir    bool
		expected bool
		name     string
	}{
		{".git", true, true, "git directory"},
		{".git/config", false, true, "file inside git directory"},
		{".github", true, true, "ci metadata directory"},
		{".github/workflows/check.yml", false, true, "workflow file"},
		{"sub/.git", true, true, "nested git directory"},
		{"docs/agent.md", false, false, "regular doc"},
		{".gitignore", false, false, "gitignore file itself"},
		{".githubx/notes.md", false, false, "similar prefix"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.Match(tt.path, tt.isDir); got != tt.expected {
				t.Errorf("Match(%q, %v) = %v, expected %v", tt.path, tt.isDir, got, tt.expected)
			}
		})
	}
}

func TestRespectGitignore(t *testing.T) {
	root := t.TempDir()
	content := "# build output\n*.log\nbuild/\n.temp/\n!.temp/keep.md\n"
	if err := os.WriteFile(filepath.Join(root, ".gitignore"), []byte(content), 0o644); err != nil {
		t.Fatalf("write .gitignore: %v", err)
	}

	without, err := NewMatcher(root, Options{})
	if err != nil {
		t.Fatalf("NewMatcher() failed: %v", err)
	}
	if without.Match("error.log", false) {
		t.Error("gitignore rules must not apply unless requested")
	}

	m, err := NewMatcher(root, Options{RespectGitignore: true})
	if err != nil {
		t.Fatalf("NewMatcher() failed: %v", err)
	}

	tests := []struct {
		path     string
		isDir    bool
		expected bool
	}{
		{"error.log", false, true},
		{"logs/error.log", false, true},
		{"build", true, true},
		{"build/out.md", false, true},
		{".temp/file.md", false, true},
		{".temp/keep.md", false, false},
		{"docs/a.md", false, false},
	}
	for _, tt := range tests {
		if got := m.Match(tt.path, tt.isDir); got != tt.expected {
			t.Errorf("Match(%q) = %v, expected %v", tt.path, got, tt.expected)
		}
	}
}

func TestExtraPatterns(t *testing.T) {
	m, err := NewMatcher(t.TempDir(), Options{Extra: []string{"", "# comment", "vendor/"}})
	if err != nil {
		t.Fatalf("NewMatcher() failed: %v", err)
	}
	if !m.Match("vendor", true) {
		t.Error("expected vendor/ to be ignored")
	}
	if m.Match("docs", true) {
		t.Error("docs should not be ignored")
	}
}

func TestSplitPath(t *testing.T) {
	tests := []struct {
		in       string
		expected []string
	}{
		{"", []string{}},
		{".", []string{}},
		{"/a/b", []string{"a", "b"}},
		{"a//b/./c", []string{"a", "b", "c"}},
	}
	for _, tt := range tests {
		if got := splitPath(tt.in); !reflect.DeepEqual(got, tt.expected) {
			t.Errorf("splitPath(%q) = %v, expected %v", tt.in, got, tt.expected)
		}
	}
}

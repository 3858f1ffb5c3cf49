package config

import (
	"strings"
	"testing"
)

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"empty", "", false},
		{"empty mapping", "{}\n", false},
		{"full", `manifest: {path: index.yaml}
sync: {enabled: true, remote: origin, branch: main, fetch: false, timeout: 1m30s, backend: cli}
scan: {exclude: ["build/**"], respect_gitignore: false}
docs: {extensions: [.md], skip: [readme.md]}
paths: {allowed_extensions: [.md, .yaml]}
filetypes: {enabled: true, allowed: ["*.md"]}
`, false},
		{"unknown top-level", "reporting: {}\n", true},
		{"empty string in list", "docs: {skip: [\"\"]}\n", true},
		{"numeric timeout", "sync: {timeout: 60}\n", true},
		{"top-level list", "- a\n", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConfig([]byte(tt.input))
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateConfigListsEveryViolation(t *testing.T) {
	err := ValidateConfig([]byte("sync: {backend: svn, fetch: maybe}\n"))
	if err == nil {
		t.Fatal("Expected error")
	}
	msg := err.Error()
	for _, want := range []string{"sync.backend", "sync.fetch"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q does not mention %s", msg, want)
		}
	}
}

func TestEmbeddedSchemaCompiles(t *testing.T) {
	if _, err := loadSchema(); err != nil {
		t.Fatalf("embedded schema does not compile: %v", err)
	}
}

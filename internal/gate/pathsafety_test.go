package gate

import (
	"testing"

	"github.com/fulmenhq/indexgate/internal/manifest"
	"github.com/stretchr/testify/assert"
)

func TestPathSafetyCheck(t *testing.T) {
	v := NewPathSafetyValidator(nil)
	tests := []struct {
		name       string
		input      string
		safe       bool
		reason     string
		normalized string
	}{
		{"empty", "", false, ReasonEmpty, ""},
		{"whitespace", "   ", false, ReasonEmpty, ""},
		{"absolute unix", "/etc/passwd.md", false, ReasonAbsolute, ""},
		{"absolute backslash", `\share\x.md`, false, ReasonAbsolute, ""},
		{"windows volume", `C:\docs\x.md`, false, ReasonAbsolute, ""},
		{"parent traversal", "../../etc/passwd", false, ReasonEscapes, ""},
		{"traversal after clean", "docs/../../x.md", false, ReasonEscapes, ""},
		{"backslash traversal", `docs\..\..\x.md`, false, ReasonEscapes, ""},
		{"inner dotdot cleans away", "docs/sub/../x.md", true, "", "docs/x.md"},
		{"dot prefix", "./docs/x.md", true, "", "docs/x.md"},
		{"markdown", "docs/x.md", true, "", "docs/x.md"},
		{"markdown upper", "docs/X.MD", true, "", "docs/X.MD"},
		{"yaml", "agents/a.yaml", true, "", "agents/a.yaml"},
		{"yml", "agents/a.yml", true, "", "agents/a.yml"},
		{"directory", "docs/", true, "", "docs/"},
		{"directory dot", "./", true, "", "./"},
		{"text file", "docs/x.txt", false, ReasonDisallowed, ""},
		{"no extension", "Makefile", false, ReasonDisallowed, ""},
		{"trimmed", "  docs/x.md  ", true, "", "docs/x.md"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := v.Check(tt.input)
			if got.Safe != tt.safe || got.Reason != tt.reason || got.Normalized != tt.normalized {
				t.Errorf("Check(%q) = %+v, expected safe=%v reason=%q normalized=%q",
					tt.input, got, tt.safe, tt.reason, tt.normalized)
			}
		})
	}
}

func TestPathSafetyCustomExtensions(t *testing.T) {
	v := NewPathSafetyValidator([]string{"txt", " .RST "})
	assert.True(t, v.Check("notes/a.txt").Safe)
	assert.True(t, v.Check("notes/a.rst").Safe)
	assert.Equal(t, ReasonDisallowed, v.Check("notes/a.md").Reason)
}

func TestCheckSources(t *testing.T) {
	v := NewPathSafetyValidator(nil)
	m := manifest.Manifest{Agents: []manifest.AgentEntry{
		{Index: 1, Line: 2, Source: "docs/x.md", HasSource: true},
		{Index: 2, Line: 5, Source: "../../etc/passwd", HasSource: true},
		{Index: 3, Line: 8},
	}}

	refs, findings := v.CheckSources(m)
	assert.Equal(t, []SourceRef{
		{Entry: 1, Raw: "docs/x.md", Normalized: "docs/x.md", Safe: true},
		{Entry: 2, Raw: "../../etc/passwd", Safe: false},
	}, refs)
	if assert.Len(t, findings, 1) {
		assert.Equal(t, KindPathUnsafe, findings[0].Kind)
		assert.Equal(t, 2, findings[0].Entry)
		assert.Equal(t, 5, findings[0].Line)
		assert.Equal(t, "agent entry 2 invalid 'source' (../../etc/passwd): path escapes repository root", findings[0].Message)
	}
}

func TestHasMarkdownExtension(t *testing.T) {
	assert.True(t, HasMarkdownExtension("x.md"))
	assert.True(t, HasMarkdownExtension("X.MD "))
	assert.False(t, HasMarkdownExtension("x.markdown"))
	assert.False(t, HasMarkdownExtension("xmd"))
}

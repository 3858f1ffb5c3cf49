package buildinfo

import (
	"runtime/debug"
	"testing"
)

func TestBinaryVersion(t *testing.T) {
	if BinaryVersion != "dev" {
		t.Errorf("Expected BinaryVersion to be 'dev', got '%s'", BinaryVersion)
	}
}

func TestModuleVersionIntegration(t *testing.T) {
	expected := ""
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		expected = info.Main.Version
	}

	if actual := ModuleVersion(); expected != actual {
		t.Errorf("ModuleVersion() = '%s', expected '%s'", actual, expected)
	}
}

func TestVersionPrefersLdflags(t *testing.T) {
	orig := BinaryVersion
	t.Cleanup(func() { BinaryVersion = orig })

	BinaryVersion = "v1.2.3"
	if got := Version(); got != "v1.2.3" {
		t.Errorf("Version() = %q, expected v1.2.3", got)
	}
}

func TestVersionNeverEmpty(t *testing.T) {
	if Version() == "" {
		t.Error("Version() should not be empty")
	}
}

package gate

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/fulmenhq/indexgate/internal/manifest"
)

// Reasons reported by PathSafetyValidator.
const (
	ReasonEmpty      = "empty path"
	ReasonAbsolute   = "absolute paths not allowed"
	ReasonEscapes    = "path escapes repository root"
	ReasonDisallowed = "disallowed path kind"
)

// DefaultAllowedExtensions are the path kinds a source may point at.
var DefaultAllowedExtensions = []string{".md", ".yaml", ".yml"}

var windowsVolume = regexp.MustCompile(`^[A-Za-z]:`)

// PathVerdict is the outcome of a path check. Normalized is the cleaned
// slash form of a safe path (directories keep their trailing slash).
type PathVerdict struct {
	Safe       bool
	Reason     string
	Normalized string
}

// PathSafetyValidator classifies declared paths. It never touches the
// filesystem.
type PathSafetyValidator struct {
	allowed []string
}

// NewPathSafetyValidator returns a validator for the given extensions
// (leading dot optional, case-insensitive). Empty means the defaults.
func NewPathSafetyValidator(extensions []string) *PathSafetyValidator {
	if len(extensions) == 0 {
		extensions = DefaultAllowedExtensions
	}
	v := &PathSafetyValidator{}
	for _, ext := range extensions {
		if ext = normalizeExt(ext); ext != "" {
			v.allowed = append(v.allowed, ext)
		}
	}
	return v
}

// Check applies the rules in order: empty, absolute, escaping, kind.
func (v *PathSafetyValidator) Check(p string) PathVerdict {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		return PathVerdict{Reason: ReasonEmpty}
	}

	slashed := strings.ReplaceAll(trimmed, `\`, "/")
	if strings.HasPrefix(slashed, "/") || windowsVolume.MatchString(slashed) {
		return PathVerdict{Reason: ReasonAbsolute}
	}

	isDir := strings.HasSuffix(slashed, "/")
	cleaned := path.Clean(slashed)
	for _, seg := range strings.Split(cleaned, "/") {
		if seg == ".." {
			return PathVerdict{Reason: ReasonEscapes}
		}
	}

	if isDir {
		if cleaned == "." {
			return PathVerdict{Safe: true, Normalized: "./"}
		}
		return PathVerdict{Safe: true, Normalized: cleaned + "/"}
	}
	if !v.hasAllowedExtension(cleaned) {
		return PathVerdict{Reason: ReasonDisallowed}
	}
	return PathVerdict{Safe: true, Normalized: cleaned}
}

func (v *PathSafetyValidator) hasAllowedExtension(p string) bool {
	ext := strings.ToLower(path.Ext(p))
	for _, a := range v.allowed {
		if ext == a {
			return true
		}
	}
	return false
}

// HasMarkdownExtension reports whether p ends in .md, ignoring case.
func HasMarkdownExtension(p string) bool {
	return strings.HasSuffix(strings.ToLower(strings.TrimSpace(p)), ".md")
}

// CheckSources runs Check on every entry with a non-empty string source.
// Entries without one are left to the schema check. The returned refs carry
// the verdict so cross-referencing can skip unsafe sources.
func (v *PathSafetyValidator) CheckSources(m manifest.Manifest) ([]SourceRef, []Finding) {
	var (
		refs     []SourceRef
		findings []Finding
	)
	for _, a := range m.Agents {
		if !a.HasSource {
			continue
		}
		verdict := v.Check(a.Source)
		refs = append(refs, SourceRef{
			Entry:      a.Index,
			Raw:        a.Source,
			Normalized: verdict.Normalized,
			Safe:       verdict.Safe,
		})
		if !verdict.Safe {
			findings = append(findings, Finding{
				Kind:    KindPathUnsafe,
				Message: fmt.Sprintf("agent entry %d invalid 'source' (%s): %s", a.Index, a.Source, verdict.Reason),
				Entry:   a.Index,
				Field:   manifest.FieldSource,
				Path:    a.Source,
				Line:    a.Line,
			})
		}
	}
	return refs, findings
}

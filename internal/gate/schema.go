package gate

import (
	"fmt"
	"slices"

	"github.com/fulmenhq/indexgate/internal/manifest"
	"gopkg.in/yaml.v3"
)

// SchemaValidator checks the manifest shape and the field contract of every
// entry. All violations are collected in one pass.
type SchemaValidator struct {
	// ManifestName is used in messages; defaults to index.yaml.
	ManifestName string
}

// Validate returns schema findings in entry order. ok is false when the
// document shape is invalid and per-entry checks were skipped.
func (v SchemaValidator) Validate(doc *manifest.Document) (findings []Finding, ok bool) {
	name := v.ManifestName
	if name == "" {
		name = manifest.DefaultPath
	}

	if !doc.IsMapping() {
		return []Finding{{
			Kind:    KindSchemaShape,
			Message: fmt.Sprintf("%s must be a YAML mapping at the top level", name),
			Path:    name,
		}}, false
	}

	agents := doc.Agents()
	switch {
	case agents == nil:
		return []Finding{{
			Kind:    KindSchemaShape,
			Message: fmt.Sprintf("missing '%s' key in %s", manifest.AgentsKey, name),
			Path:    name,
		}}, false
	case agents.Kind != yaml.SequenceNode:
		return []Finding{{
			Kind:    KindSchemaShape,
			Message: fmt.Sprintf("'%s' must be a list in %s", manifest.AgentsKey, name),
			Path:    name,
			Line:    agents.Line,
		}}, false
	}

	for _, key := range doc.TopKeys() {
		if key != manifest.AgentsKey {
			findings = append(findings, Finding{
				Kind:    KindSchemaField,
				Message: fmt.Sprintf("unexpected top-level key '%s' in %s", key, name),
				Field:   key,
				Path:    name,
			})
		}
	}

	for _, e := range doc.Entries() {
		findings = append(findings, validateEntry(e)...)
	}
	return findings, true
}

func validateEntry(e manifest.Entry) []Finding {
	n := e.Index
	if !e.IsMapping() {
		return []Finding{{
			Kind:    KindSchemaField,
			Message: fmt.Sprintf("agent entry %d must be a mapping", n),
			Entry:   n,
			Line:    e.Line(),
		}}
	}

	var findings []Finding
	add := func(field, format string, args ...any) {
		findings = append(findings, Finding{
			Kind:    KindSchemaField,
			Message: fmt.Sprintf("agent entry %d ", n) + fmt.Sprintf(format, args...),
			Entry:   n,
			Field:   field,
			Line:    e.Line(),
		})
	}

	keys := e.Keys()
	for _, f := range manifest.RequiredFields {
		if !slices.Contains(keys, f) {
			add(f, "missing field '%s'", f)
		}
	}
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if seen[k] {
			add(k, "has duplicate field '%s'", k)
			continue
		}
		seen[k] = true
		if !slices.Contains(manifest.RequiredFields, k) {
			add(k, "has unexpected field '%s'", k)
		}
	}

	for _, f := range manifest.RequiredFields {
		node := e.Value(f)
		if node == nil {
			continue
		}
		value, ok := e.String(f)
		switch {
		case !ok:
			add(f, "'%s' must be a string", f)
		case value == "":
			add(f, "'%s' must be a non-empty string", f)
		case f == manifest.FieldTarget && !HasMarkdownExtension(value):
			add(f, "'%s' must end with .md", f)
		}
	}
	return findings
}

// Package manifest loads the agent manifest (index.yaml) and exposes its
// node tree together with a typed view of the entries.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/fulmenhq/indexgate/pkg/safeio"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the manifest location relative to the repository root.
const DefaultPath = "index.yaml"

// Field names of an agent entry.
const (
	FieldName   = "name"
	FieldSource = "source"
	FieldTarget = "target"
	// AgentsKey is the single top-level key of the manifest.
	AgentsKey = "agents"
)

// RequiredFields lists the entry fields in reporting order.
var RequiredFields = []string{FieldName, FieldSource, FieldTarget}

var (
	// ErrManifestMissing is returned when the manifest file does not exist.
	ErrManifestMissing = errors.New("manifest not found")
	// ErrManifestUnparsable is returned when the manifest is not valid YAML.
	ErrManifestUnparsable = errors.New("manifest could not be parsed")
)

// ParseError carries the parser message for an unparsable manifest. It
// matches ErrManifestUnparsable under errors.Is.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrManifestUnparsable }

// Document is a parsed manifest. Root is the top-level value node; it is nil
// for an empty file.
type Document struct {
	Path string
	Root *yaml.Node
}

// Load reads and parses the manifest at rel inside repoRoot. An absent file
// yields ErrManifestMissing; a parse failure yields a *ParseError. Other
// read failures are returned wrapped.
func Load(repoRoot, rel string) (*Document, error) {
	if rel == "" {
		rel = DefaultPath
	}
	clean, err := safeio.CleanRelPath(rel)
	if err != nil {
		return nil, fmt.Errorf("manifest path %q: %w", rel, err)
	}

	data, err := safeio.ReadFileContained(repoRoot, filepath.Join(repoRoot, filepath.FromSlash(clean)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", clean, ErrManifestMissing)
		}
		return nil, fmt.Errorf("read %s: %w", clean, err)
	}

	root, err := Parse(data)
	if err != nil {
		return nil, &ParseError{Path: clean, Err: err}
	}
	return &Document{Path: clean, Root: root}, nil
}

// Parse decodes manifest bytes into the top-level value node. Only the first
// YAML document is considered; a stream with more than one is rejected.
func Parse(data []byte) (*yaml.Node, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	var doc yaml.Node
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	var extra yaml.Node
	if err := dec.Decode(&extra); err == nil {
		return nil, errors.New("multiple YAML documents in manifest")
	} else if !errors.Is(err, io.EOF) {
		return nil, err
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, nil
	}
	return resolve(doc.Content[0]), nil
}

// IsMapping reports whether the document root is a mapping.
func (d *Document) IsMapping() bool {
	return d != nil && d.Root != nil && d.Root.Kind == yaml.MappingNode
}

// TopKeys returns the top-level keys in document order.
func (d *Document) TopKeys() []string {
	if !d.IsMapping() {
		return nil
	}
	return mappingKeys(d.Root)
}

// Agents returns the value node of the agents key, or nil when absent.
func (d *Document) Agents() *yaml.Node {
	if !d.IsMapping() {
		return nil
	}
	return mappingValue(d.Root, AgentsKey)
}

// Entries returns the raw entries of the agents sequence. It returns nil when
// agents is absent or not a sequence.
func (d *Document) Entries() []Entry {
	agents := d.Agents()
	if agents == nil || agents.Kind != yaml.SequenceNode {
		return nil
	}
	entries := make([]Entry, 0, len(agents.Content))
	for i, n := range agents.Content {
		entries = append(entries, Entry{Index: i + 1, Node: resolve(n)})
	}
	return entries
}

// Entry is one element of the agents sequence. Index is 1-based.
type Entry struct {
	Index int
	Node  *yaml.Node
}

// Line is the source line of the entry, 0 when unknown.
func (e Entry) Line() int {
	if e.Node == nil {
		return 0
	}
	return e.Node.Line
}

// IsMapping reports whether the entry is a mapping.
func (e Entry) IsMapping() bool {
	return e.Node != nil && e.Node.Kind == yaml.MappingNode
}

// Keys returns the entry's keys in document order, duplicates included,
// followed by keys inherited through merge keys.
func (e Entry) Keys() []string {
	if !e.IsMapping() {
		return nil
	}
	return mappingKeys(e.Node)
}

// Value returns the value node for key, or nil.
func (e Entry) Value(key string) *yaml.Node {
	if !e.IsMapping() {
		return nil
	}
	return mappingValue(e.Node, key)
}

// String returns the trimmed string value of key. ok is false when the key is
// absent or its value is not a string scalar.
func (e Entry) String(key string) (value string, ok bool) {
	n := e.Value(key)
	if !IsString(n) {
		return "", false
	}
	return strings.TrimSpace(n.Value), true
}

// IsString reports whether n is a plain string scalar. Numbers, booleans and
// nulls are not strings even though yaml.v3 keeps their text.
func IsString(n *yaml.Node) bool {
	return n != nil && n.Kind == yaml.ScalarNode && n.Tag == "!!str"
}

// Manifest is the typed view used by checks that only need valid entries.
type Manifest struct {
	Agents []AgentEntry
}

// AgentEntry holds the string fields of an entry; fields that are absent or
// not strings are left empty.
type AgentEntry struct {
	Index  int
	Line   int
	Name   string
	Source string
	Target string
	// HasSource is true when source is a non-empty string.
	HasSource bool
}

// Typed builds the typed view from the document. Non-mapping entries are
// skipped.
func (d *Document) Typed() Manifest {
	var m Manifest
	for _, e := range d.Entries() {
		if !e.IsMapping() {
			continue
		}
		a := AgentEntry{Index: e.Index, Line: e.Line()}
		a.Name, _ = e.String(FieldName)
		a.Target, _ = e.String(FieldTarget)
		if src, ok := e.String(FieldSource); ok {
			a.Source = src
			a.HasSource = src != ""
		}
		m.Agents = append(m.Agents, a)
	}
	return m
}

// field is one key of a mapping after merge keys are expanded.
type field struct {
	key   string
	value *yaml.Node
}

// mappingFields lists the fields of a mapping with `<<` merge keys expanded.
// Explicit keys come first in document order, duplicates included. Merged
// keys follow unless an explicit key or an earlier merge source already
// defines them. A merge key whose value is not a mapping or a sequence of
// mappings stays an ordinary field named "<<".
func mappingFields(n *yaml.Node) []field {
	return collectFields(n, make(map[*yaml.Node]bool))
}

func collectFields(n *yaml.Node, visited map[*yaml.Node]bool) []field {
	if visited[n] {
		return nil
	}
	visited[n] = true

	var fields []field
	var sources []*yaml.Node
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		if isMergeKey(k) {
			if merged, ok := mergeSources(v); ok {
				sources = append(sources, merged...)
				continue
			}
		}
		fields = append(fields, field{key: keyName(k), value: resolve(v)})
	}

	defined := make(map[string]bool, len(fields))
	for _, f := range fields {
		defined[f.key] = true
	}
	for _, src := range sources {
		for _, f := range collectFields(src, visited) {
			if defined[f.key] {
				continue
			}
			defined[f.key] = true
			fields = append(fields, f)
		}
	}
	return fields
}

// isMergeKey matches a plain `<<` key; a quoted "<<" is an ordinary string.
func isMergeKey(k *yaml.Node) bool {
	k = resolve(k)
	return k != nil && k.Kind == yaml.ScalarNode && k.Value == "<<" &&
		(k.Tag == "" || k.Tag == "!!merge")
}

// mergeSources returns the mappings a merge value refers to, earliest first.
func mergeSources(v *yaml.Node) ([]*yaml.Node, bool) {
	v = resolve(v)
	if v == nil {
		return nil, false
	}
	switch v.Kind {
	case yaml.MappingNode:
		return []*yaml.Node{v}, true
	case yaml.SequenceNode:
		out := make([]*yaml.Node, 0, len(v.Content))
		for _, item := range v.Content {
			item = resolve(item)
			if item == nil || item.Kind != yaml.MappingNode {
				return nil, false
			}
			out = append(out, item)
		}
		return out, true
	default:
		return nil, false
	}
}

// keyName renders a key for matching and messages. Keys that are not
// scalars are named by kind and line.
func keyName(k *yaml.Node) string {
	k = resolve(k)
	if k == nil {
		return ""
	}
	switch k.Kind {
	case yaml.ScalarNode:
		return k.Value
	case yaml.SequenceNode:
		return fmt.Sprintf("<sequence key at line %d>", k.Line)
	case yaml.MappingNode:
		return fmt.Sprintf("<mapping key at line %d>", k.Line)
	default:
		return fmt.Sprintf("<key at line %d>", k.Line)
	}
}

func mappingKeys(n *yaml.Node) []string {
	fields := mappingFields(n)
	keys := make([]string, 0, len(fields))
	for _, f := range fields {
		keys = append(keys, f.key)
	}
	return keys
}

func mappingValue(n *yaml.Node, key string) *yaml.Node {
	for _, f := range mappingFields(n) {
		if f.key == key {
			return f.value
		}
	}
	return nil
}

// resolve follows alias nodes to their anchors.
func resolve(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	return n
}

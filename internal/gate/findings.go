// Package gate implements the merge gate: branch currency, manifest schema,
// path safety, tree cross-referencing and the report that combines them.
package gate

// Kind classifies a finding.
type Kind string

const (
	KindManifestMissing    Kind = "manifest-missing"
	KindManifestUnparsable Kind = "manifest-unparsable"
	KindSyncStale          Kind = "sync-stale"
	KindSyncCheckFailed    Kind = "sync-check-failed"
	KindSchemaShape        Kind = "schema-shape"
	KindSchemaField        Kind = "schema-field"
	KindPathUnsafe         Kind = "path-unsafe"
	KindOrphanFile         Kind = "orphan-file"
	KindDanglingSource     Kind = "dangling-source"
	KindFileType           Kind = "file-type"
)

// Fatal reports whether the kind stops the run.
func (k Kind) Fatal() bool {
	return k == KindManifestMissing || k == KindManifestUnparsable
}

// Group is the coarse category a kind belongs to, used for report headings.
func (k Kind) Group() string {
	switch k {
	case KindManifestMissing, KindManifestUnparsable:
		return "manifest"
	case KindSyncStale, KindSyncCheckFailed:
		return "branch sync"
	case KindSchemaShape, KindSchemaField:
		return "schema"
	case KindPathUnsafe:
		return "path safety"
	case KindOrphanFile, KindDanglingSource:
		return "cross reference"
	case KindFileType:
		return "file types"
	default:
		return "other"
	}
}

// Finding is a single reported problem. Entry is the 1-based manifest entry
// position, 0 when the finding is not tied to an entry.
type Finding struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Entry   int    `json:"entry,omitempty"`
	Field   string `json:"field,omitempty"`
	Path    string `json:"path,omitempty"`
	Line    int    `json:"line,omitempty"`
}

func (f Finding) String() string {
	return f.Message
}

// Messages returns the plain messages in order. It never returns nil so the
// JSON rendering of a clean run is [].
func Messages(findings []Finding) []string {
	out := make([]string, 0, len(findings))
	for _, f := range findings {
		out = append(out, f.Message)
	}
	return out
}

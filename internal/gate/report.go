package gate

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aymerick/raymond"
	"github.com/beevik/etree"
	"github.com/charmbracelet/lipgloss"
	"github.com/fulmenhq/indexgate/pkg/ascii"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Report is the outcome of one run. Findings are in check order, then entry
// order within a check.
type Report struct {
	Label    string         `json:"label,omitempty"`
	RepoRoot string         `json:"repo_root"`
	Manifest string         `json:"manifest"`
	SyncRef  string         `json:"sync_ref,omitempty"`
	Findings []Finding      `json:"findings"`
	Changes  *ChangeSummary `json:"changes,omitempty"`
	// AddedDocs are documentation files the branch adds, from Changes.
	AddedDocs []string      `json:"added_docs,omitempty"`
	Files     int           `json:"files"`
	Entries   int           `json:"entries"`
	Duration  time.Duration `json:"duration"`
}

func (r *Report) add(findings ...Finding) {
	r.Findings = append(r.Findings, findings...)
}

// Passed is true iff there are no findings.
func (r *Report) Passed() bool {
	return len(r.Findings) == 0
}

// Messages returns the finding messages in order.
func (r *Report) Messages() []string {
	return Messages(r.Findings)
}

// MessagesJSON renders the messages as a single-line JSON array.
func (r *Report) MessagesJSON() (string, error) {
	data, err := json.Marshal(r.Messages())
	if err != nil {
		return "", fmt.Errorf("marshal messages: %w", err)
	}
	return string(data), nil
}

type findingGroup struct {
	Title    string
	Findings []Finding
}

// groups buckets findings by Kind.Group, keeping first-seen order.
func (r *Report) groups() []findingGroup {
	title := cases.Title(language.English)
	var out []findingGroup
	index := make(map[string]int)
	for _, f := range r.Findings {
		g := f.Kind.Group()
		i, ok := index[g]
		if !ok {
			i = len(out)
			index[g] = i
			out = append(out, findingGroup{Title: title.String(g)})
		}
		out[i].Findings = append(out[i].Findings, f)
	}
	return out
}

// OutputFormat selects the stdout rendering.
type OutputFormat string

const (
	FormatText   OutputFormat = "text"
	FormatJSON   OutputFormat = "json"
	FormatGitHub OutputFormat = "github"
)

// ParseFormat validates a --format value.
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatGitHub:
		return FormatGitHub, nil
	default:
		return "", fmt.Errorf("unsupported format %q (expected text, json or github)", s)
	}
}

// Formatter renders reports.
type Formatter struct {
	format  OutputFormat
	noColor bool
}

// NewFormatter creates a formatter; NO_COLOR disables styling.
func NewFormatter(format OutputFormat) *Formatter {
	return &Formatter{format: format, noColor: os.Getenv("NO_COLOR") != ""}
}

// SetNoColor forces plain output.
func (f *Formatter) SetNoColor(noColor bool) {
	f.noColor = f.noColor || noColor
}

// Write renders the report in the configured format. Unless the JSON line
// goes to a separate channel (jsonToStdout false), it is always the last
// line written.
func (f *Formatter) Write(w io.Writer, r *Report, jsonToStdout bool) error {
	switch f.format {
	case FormatJSON:
	case FormatGitHub:
		if err := f.writeGitHub(w, r); err != nil {
			return err
		}
	default:
		if err := f.writeText(w, r); err != nil {
			return err
		}
	}
	if !jsonToStdout {
		return nil
	}
	line, err := r.MessagesJSON()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, line)
	return err
}

type textStyles struct {
	pass, fail, heading, dim lipgloss.Style
}

func (f *Formatter) styles(w io.Writer) textStyles {
	if f.noColor {
		plain := lipgloss.NewStyle()
		return textStyles{pass: plain, fail: plain, heading: plain, dim: plain}
	}
	re := lipgloss.NewRenderer(w)
	return textStyles{
		pass:    re.NewStyle().Bold(true).Foreground(lipgloss.Color("#3FB950")),
		fail:    re.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B")),
		heading: re.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF")),
		dim:     re.NewStyle().Foreground(lipgloss.Color("#888888")),
	}
}

func (f *Formatter) banner(r *Report) []string {
	title := "indexgate"
	if r.Label != "" {
		title += ": PR #" + r.Label
	}
	lines := []string{
		title,
		"repository: " + r.RepoRoot,
		fmt.Sprintf("manifest:   %s (%d entries, %d files scanned)", r.Manifest, r.Entries, r.Files),
	}
	if r.SyncRef != "" {
		lines = append(lines, "reference:  "+r.SyncRef)
	}
	if r.Changes != nil {
		line := fmt.Sprintf("changes:    %d path(s) since %s", len(r.Changes.Changes), shortHash(r.Changes.Base))
		if r.Changes.ManifestChanged(r.Manifest) {
			line += ", manifest changed"
		}
		lines = append(lines, line)
	}
	if len(r.AddedDocs) > 0 {
		lines = append(lines, "added docs: "+strings.Join(r.AddedDocs, ", "))
	}
	return lines
}

func (f *Formatter) writeText(w io.Writer, r *Report) error {
	st := f.styles(w)
	var sb strings.Builder
	sb.WriteString(ascii.Box(f.banner(r)))

	if r.Passed() {
		sb.WriteString(st.pass.Render("✅ Validation passed") + "\n")
	} else {
		sb.WriteString(st.fail.Render(fmt.Sprintf("❌ Validation failed with %d error(s):", len(r.Findings))) + "\n")
		for _, g := range r.groups() {
			sb.WriteString("\n" + st.heading.Render(fmt.Sprintf("%s (%d)", g.Title, len(g.Findings))) + "\n")
			for _, fd := range g.Findings {
				sb.WriteString("  - " + fd.Message + "\n")
			}
		}
	}
	sb.WriteString(st.dim.Render(fmt.Sprintf("completed in %s", r.Duration.Round(time.Millisecond))) + "\n")

	_, err := io.WriteString(w, sb.String())
	return err
}

// writeGitHub emits workflow commands so findings show as annotations.
func (f *Formatter) writeGitHub(w io.Writer, r *Report) error {
	for _, fd := range r.Findings {
		props := []string{"title=" + escapeProperty(string(fd.Kind))}
		if file := annotationFile(r, fd); file != "" {
			props = append(props, "file="+escapeProperty(file))
			if fd.Line > 0 {
				props = append(props, "line="+strconv.Itoa(fd.Line))
			}
		}
		if _, err := fmt.Fprintf(w, "::error %s::%s\n", strings.Join(props, ","), escapeData(fd.Message)); err != nil {
			return err
		}
	}
	if r.Passed() {
		_, err := fmt.Fprintln(w, "::notice title=indexgate::Validation passed")
		return err
	}
	return nil
}

func annotationFile(r *Report, fd Finding) string {
	switch fd.Kind {
	case KindOrphanFile, KindFileType:
		return fd.Path
	case KindSyncStale, KindSyncCheckFailed:
		return ""
	default:
		return r.Manifest
	}
}

func escapeData(s string) string {
	return strings.NewReplacer("%", "%25", "\r", "%0D", "\n", "%0A").Replace(s)
}

func escapeProperty(s string) string {
	return strings.NewReplacer("%", "%25", "\r", "%0D", "\n", "%0A", ":", "%3A", ",", "%2C").Replace(s)
}

func shortHash(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}

//go:embed templates/report.md.hbs
var markdownTemplate string

// WriteMarkdown renders a PR-comment style summary.
func (f *Formatter) WriteMarkdown(w io.Writer, r *Report) error {
	tpl, err := raymond.Parse(markdownTemplate)
	if err != nil {
		return fmt.Errorf("parse markdown template: %w", err)
	}

	var groups []map[string]any
	for _, g := range r.groups() {
		groups = append(groups, map[string]any{
			"title":    g.Title,
			"count":    len(g.Findings),
			"messages": Messages(g.Findings),
		})
	}
	ctx := map[string]any{
		"passed":  r.Passed(),
		"label":   r.Label,
		"count":   len(r.Findings),
		"entries": r.Entries,
		"files":   r.Files,
		"groups":  groups,
	}
	if r.Changes != nil && len(r.Changes.Changes) > 0 {
		items := make([]map[string]string, 0, len(r.Changes.Changes))
		for _, ch := range r.Changes.Changes {
			items = append(items, map[string]string{"path": ch.Path, "kind": string(ch.Kind)})
		}
		ctx["changes"] = map[string]any{
			"count": len(r.Changes.Changes),
			"base":  shortHash(r.Changes.Base),
			"items": items,
		}
	}

	out, err := tpl.Exec(ctx)
	if err != nil {
		return fmt.Errorf("render markdown report: %w", err)
	}
	_, err = io.WriteString(w, out)
	return err
}

// junitChecks maps each testcase to the kinds it covers, in check order.
var junitChecks = []struct {
	name  string
	kinds []Kind
}{
	{"branch-sync", []Kind{KindSyncStale, KindSyncCheckFailed}},
	{"manifest", []Kind{KindManifestMissing, KindManifestUnparsable}},
	{"schema", []Kind{KindSchemaShape, KindSchemaField}},
	{"path-safety", []Kind{KindPathUnsafe}},
	{"orphan-files", []Kind{KindOrphanFile}},
	{"dangling-sources", []Kind{KindDanglingSource}},
	{"file-types", []Kind{KindFileType}},
}

// WriteJUnit renders one testcase per check with a failure element per
// finding, for CI systems that ingest JUnit XML.
func (f *Formatter) WriteJUnit(w io.Writer, r *Report) error {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	suites := doc.CreateElement("testsuites")
	suite := suites.CreateElement("testsuite")
	suite.CreateAttr("name", "indexgate")
	suite.CreateAttr("tests", strconv.Itoa(len(junitChecks)))
	suite.CreateAttr("time", fmt.Sprintf("%.3f", r.Duration.Seconds()))

	failed := 0
	for _, check := range junitChecks {
		tc := suite.CreateElement("testcase")
		tc.CreateAttr("classname", "indexgate")
		tc.CreateAttr("name", check.name)
		for _, fd := range r.Findings {
			if !containsKind(check.kinds, fd.Kind) {
				continue
			}
			fe := tc.CreateElement("failure")
			fe.CreateAttr("type", string(fd.Kind))
			fe.CreateAttr("message", fd.Message)
		}
		if len(tc.SelectElements("failure")) > 0 {
			failed++
		}
	}
	suite.CreateAttr("failures", strconv.Itoa(failed))

	doc.Indent(2)
	if _, err := doc.WriteTo(w); err != nil {
		return fmt.Errorf("write junit report: %w", err)
	}
	return nil
}

func containsKind(kinds []Kind, k Kind) bool {
	for _, c := range kinds {
		if c == k {
			return true
		}
	}
	return false
}

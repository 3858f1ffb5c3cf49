package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/fulmenhq/indexgate/pkg/safeio"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// FileName is the optional config file in the repository root.
const FileName = ".indexgate.yaml"

// EnvPrefix prefixes environment overrides, e.g. INDEXGATE_SYNC_BRANCH.
const EnvPrefix = "INDEXGATE"

// Config holds all configuration for indexgate
type Config struct {
	Manifest  ManifestConfig  `mapstructure:"manifest"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Scan      ScanConfig      `mapstructure:"scan"`
	Docs      DocsConfig      `mapstructure:"docs"`
	Paths     PathsConfig     `mapstructure:"paths"`
	FileTypes FileTypesConfig `mapstructure:"filetypes"`

	// Source is the config file that was read, empty when none.
	Source string `mapstructure:"-"`
}

// ManifestConfig locates the manifest
type ManifestConfig struct {
	Path string `mapstructure:"path"`
}

// SyncConfig controls the branch currency check
type SyncConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Remote  string        `mapstructure:"remote"`
	Branch  string        `mapstructure:"branch"`
	Fetch   bool          `mapstructure:"fetch"`
	Timeout time.Duration `mapstructure:"timeout"`
	Backend string        `mapstructure:"backend"` // "cli" or "gogit"
}

// ScanConfig controls the file tree walk
type ScanConfig struct {
	Exclude          []string `mapstructure:"exclude"`
	RespectGitignore bool     `mapstructure:"respect_gitignore"`
}

// DocsConfig decides which files count as documentation
type DocsConfig struct {
	Extensions []string `mapstructure:"extensions"`
	Skip       []string `mapstructure:"skip"`
}

// PathsConfig holds the path kinds a source may point at
type PathsConfig struct {
	AllowedExtensions []string `mapstructure:"allowed_extensions"`
}

// FileTypesConfig is the optional committed-file allowlist
type FileTypesConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Allowed []string `mapstructure:"allowed"`
}

var defaultConfig = Config{
	Manifest: ManifestConfig{Path: "index.yaml"},
	Sync: SyncConfig{
		Enabled: true,
		Remote:  "origin",
		Branch:  "main",
		Fetch:   true,
		Timeout: 60 * time.Second,
		Backend: "cli",
	},
	Scan: ScanConfig{Exclude: []string{}},
	Docs: DocsConfig{
		Extensions: []string{".md"},
		Skip:       []string{"readme.md", "contributing.md"},
	},
	Paths: PathsConfig{AllowedExtensions: []string{".md", ".yaml", ".yml"}},
	FileTypes: FileTypesConfig{
		Enabled: false,
		Allowed: []string{},
	},
}

// flagKeys binds CLI flags to config keys when the flag set defines them.
var flagKeys = map[string]string{
	"manifest":     "manifest.path",
	"remote":       "sync.remote",
	"branch":       "sync.branch",
	"sync-timeout": "sync.timeout",
	"vcs-backend":  "sync.backend",
	"exclude":      "scan.exclude",
	"gitignore":    "scan.respect_gitignore",
	"file-types":   "filetypes.enabled",
}

// Default returns a copy of the built-in configuration.
func Default() *Config {
	cfg := defaultConfig
	cfg.Scan.Exclude = append([]string{}, defaultConfig.Scan.Exclude...)
	cfg.Docs.Extensions = append([]string{}, defaultConfig.Docs.Extensions...)
	cfg.Docs.Skip = append([]string{}, defaultConfig.Docs.Skip...)
	cfg.Paths.AllowedExtensions = append([]string{}, defaultConfig.Paths.AllowedExtensions...)
	cfg.FileTypes.Allowed = append([]string{}, defaultConfig.FileTypes.Allowed...)
	return &cfg
}

// Load resolves configuration for the repository at repoRoot. Precedence,
// highest first: changed flags, INDEXGATE_* environment, .indexgate.yaml,
// defaults. flags may be nil.
func Load(repoRoot string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	source, err := readConfigFile(v, repoRoot)
	if err != nil {
		return nil, err
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag --%s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Source = source
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := defaultConfig
	v.SetDefault("manifest.path", d.Manifest.Path)
	v.SetDefault("sync.enabled", d.Sync.Enabled)
	v.SetDefault("sync.remote", d.Sync.Remote)
	v.SetDefault("sync.branch", d.Sync.Branch)
	v.SetDefault("sync.fetch", d.Sync.Fetch)
	v.SetDefault("sync.timeout", d.Sync.Timeout)
	v.SetDefault("sync.backend", d.Sync.Backend)
	v.SetDefault("scan.exclude", d.Scan.Exclude)
	v.SetDefault("scan.respect_gitignore", d.Scan.RespectGitignore)
	v.SetDefault("docs.extensions", d.Docs.Extensions)
	v.SetDefault("docs.skip", d.Docs.Skip)
	v.SetDefault("paths.allowed_extensions", d.Paths.AllowedExtensions)
	v.SetDefault("filetypes.enabled", d.FileTypes.Enabled)
	v.SetDefault("filetypes.allowed", d.FileTypes.Allowed)
}

// readConfigFile validates and loads .indexgate.yaml when present.
func readConfigFile(v *viper.Viper, repoRoot string) (string, error) {
	path := filepath.Join(repoRoot, FileName)
	data, err := safeio.ReadFileContained(repoRoot, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read %s: %w", FileName, err)
	}
	if err := ValidateConfig(data); err != nil {
		return "", fmt.Errorf("%s: %w", FileName, err)
	}
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("load %s: %w", FileName, err)
	}
	return path, nil
}

// Validate checks values that the schema cannot see, such as environment
// and flag overrides.
func (c *Config) Validate() error {
	switch c.Sync.Backend {
	case "cli", "gogit":
	default:
		return fmt.Errorf("sync.backend must be cli or gogit, got %q", c.Sync.Backend)
	}
	if c.Sync.Timeout <= 0 {
		return fmt.Errorf("sync.timeout must be positive, got %s", c.Sync.Timeout)
	}
	if strings.TrimSpace(c.Manifest.Path) == "" {
		return errors.New("manifest.path cannot be empty")
	}
	if c.Sync.Enabled && (c.Sync.Remote == "" || c.Sync.Branch == "") {
		return errors.New("sync.remote and sync.branch are required when sync is enabled")
	}
	return nil
}

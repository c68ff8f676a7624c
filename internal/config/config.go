// Package config loads the modeldoc configuration file.
package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/modeldoc/internal/foundation/errors"
)

// DefaultFile is the configuration file looked up when none is given.
const DefaultFile = "modeldoc.yaml"

// Config is the complete modeldoc configuration.
type Config struct {
	// Model is the YAML Ecore model to document.
	Model string `yaml:"model" validate:"required"`
	// Root names the root package; empty selects the first package of the model.
	Root    string `yaml:"root,omitempty"`
	BaseURI string `yaml:"base_uri" validate:"required,url"`
	// Digest hashes operation signatures into path segments.
	Digest string `yaml:"digest,omitempty" validate:"omitempty,oneof=sha256 sha512 sha3-256 blake2b-256"`
	// DocsDir holds markdown prototypes overriding generated documentation.
	DocsDir string `yaml:"docs_dir,omitempty"`
	// LabelsFile receives the persisted label forest.
	LabelsFile string `yaml:"labels_file,omitempty"`
	// Workers bounds processor creation concurrency; zero means GOMAXPROCS.
	Workers int `yaml:"workers,omitempty" validate:"gte=0"`
	// UnsafeHTML lets raw HTML in documentation through to the pages.
	UnsafeHTML bool `yaml:"unsafe_html,omitempty"`

	Site    SiteConfig    `yaml:"site"`
	Logging LoggingConfig `yaml:"logging"`

	MetricsFile string      `yaml:"metrics_file,omitempty"`
	HistoryDB   string      `yaml:"history_db,omitempty"`
	Watch       WatchConfig `yaml:"watch"`
}

// SiteConfig configures the site generation stage.
type SiteConfig struct {
	RootDocument string   `yaml:"root_document,omitempty"`
	PageTemplate string   `yaml:"page_template,omitempty" validate:"required_with=RootDocument"`
	Domain       string   `yaml:"domain,omitempty"`
	Output       string   `yaml:"output,omitempty" validate:"required_with=RootDocument"`
	WorkDir      string   `yaml:"work_dir,omitempty"`
	Clean        bool     `yaml:"clean,omitempty"`
	Preserve     []string `yaml:"preserve,omitempty"`
	Workers      int      `yaml:"workers,omitempty" validate:"gte=0"`
}

// Enabled reports whether a site is generated after the labels are persisted.
func (s SiteConfig) Enabled() bool { return s.RootDocument != "" }

// WatchConfig configures the watch command.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce,omitempty" validate:"gte=0"`
	// Interval regenerates periodically even without file changes; zero disables.
	Interval time.Duration `yaml:"interval,omitempty" validate:"gte=0"`
	// Serve is the listen address of the preview server; empty disables it.
	Serve string `yaml:"serve,omitempty" validate:"omitempty,hostname_port"`
}

// Load reads, expands, defaults and validates the configuration at path.
// Relative paths in the file are taken relative to the file's directory.
func Load(path string) (*Config, error) {
	loadEnvFiles(filepath.Dir(path))

	// #nosec G304 -- path is the user supplied configuration file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to read config file").
			WithContext("path", path).Fatal().Build()
	}
	cfg, err := Parse(data, filepath.Dir(path))
	if err != nil {
		if classified, ok := ferrors.AsClassified(err); ok {
			return nil, classified.WithContext("path", path)
		}
		return nil, err
	}
	return cfg, nil
}

// Parse decodes configuration data. Environment variables are expanded
// before decoding and relative paths are resolved against baseDir.
func Parse(data []byte, baseDir string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to parse config").Fatal().Build()
	}
	if err := normalize(&cfg); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "invalid config").Fatal().Build()
	}
	applyDefaults(&cfg)
	resolvePaths(&cfg, baseDir)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Digest == "" {
		cfg.Digest = "sha256"
	}
	if cfg.LabelsFile == "" {
		cfg.LabelsFile = "labels.yaml"
	}
	if cfg.Site.WorkDir == "" {
		cfg.Site.WorkDir = ".modeldoc"
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}
}

func resolvePaths(cfg *Config, baseDir string) {
	if baseDir == "" {
		return
	}
	for _, p := range []*string{
		&cfg.Model,
		&cfg.DocsDir,
		&cfg.LabelsFile,
		&cfg.Site.RootDocument,
		&cfg.Site.PageTemplate,
		&cfg.Site.Output,
		&cfg.Site.WorkDir,
		&cfg.MetricsFile,
	} {
		*p = resolve(baseDir, *p)
	}
	if cfg.HistoryDB != ":memory:" {
		cfg.HistoryDB = resolve(baseDir, cfg.HistoryDB)
	}
}

func resolve(baseDir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(baseDir, p)
}

// Init writes an example configuration file.
func Init(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return ferrors.ConfigError("configuration file already exists (use --force to overwrite)").
			WithContext("path", path).Build()
	}

	example := Config{
		Model:      "model.yaml",
		BaseURI:    "https://example.org/docs/",
		Digest:     "sha256",
		DocsDir:    "docs",
		LabelsFile: "labels.yaml",
		Site: SiteConfig{
			RootDocument: "site/root.yaml",
			PageTemplate: "site/template.yaml",
			Domain:       "example.org",
			Output:       "public",
			WorkDir:      ".modeldoc",
			Clean:        true,
			Preserve:     []string{"CNAME"},
		},
		Logging: LoggingConfig{Level: LogLevelInfo, Format: LogFormatText},
		Watch:   WatchConfig{Debounce: 500 * time.Millisecond, Serve: "localhost:8080"},
	}
	data, err := yaml.Marshal(&example)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryInternal, "failed to marshal example config").Build()
	}
	header := "# modeldoc configuration. Environment variables like ${HOME} are expanded.\n"
	if err := os.WriteFile(path, append([]byte(header), data...), 0o600); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to write config file").
			WithContext("path", path).Fatal().Build()
	}
	return nil
}

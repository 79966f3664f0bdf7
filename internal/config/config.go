package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/standardbeagle/spanidx/internal/types"
)

// Store backends
const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

const (
	kdlFileName  = ".spanidx.kdl"
	tomlFileName = ".spanidx.toml"
)

type Config struct {
	Version int      `toml:"version"`
	Project Project  `toml:"project"`
	Store   Store    `toml:"store"`
	Spans   Spans    `toml:"spans"`
	Upload  Upload   `toml:"upload"`
	Search  Search   `toml:"search"`
	Include []string `toml:"include"`
	Exclude []string `toml:"exclude"`
}

type Project struct {
	Root string `toml:"root"`
	// ID is the default project id for files that do not carry one.
	ID string `toml:"id"`
}

type Store struct {
	Backend string `toml:"backend"` // "sqlite" or "memory"
	Path    string `toml:"path"`    // sqlite database file, relative to the project root
	Index   string `toml:"index"`   // logical index name rows are written under
}

type Spans struct {
	MaxContentSize    int64 `toml:"max_content_size"`    // content bytes per physical row
	LineSpanThreshold int   `toml:"line_span_threshold"` // largest reference group kept with line text
	ExpandOnRead      bool  `toml:"expand_on_read"`      // expand every segment when a file is loaded
}

type Upload struct {
	Concurrency int `toml:"concurrency"` // 0 = auto-detect
	// WatchDebounceMs is how long pack --watch waits for writes to settle.
	WatchDebounceMs int `toml:"watch_debounce_ms"`
}

type Search struct {
	MaxResults       int     `toml:"max_results"`
	SuggestThreshold float64 `toml:"suggest_threshold"`
	IncludeHidden    bool    `toml:"include_hidden"`
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	return &Config{
		Version: 1,
		Project: Project{Root: cwd},
		Store: Store{
			Backend: BackendSQLite,
			Path:    filepath.Join(".spanidx", "spans.db"),
			Index:   "default",
		},
		Spans: Spans{
			MaxContentSize:    types.DefaultMaxContentSize,
			LineSpanThreshold: types.DefaultLineSpanThreshold,
			ExpandOnRead:      false,
		},
		Upload: Upload{Concurrency: 0, WatchDebounceMs: 200},
		Search: Search{
			MaxResults:       100,
			SuggestThreshold: 0.8,
		},
		Include: []string{},
		Exclude: []string{},
	}
}

func Load(path string) (*Config, error) {
	return LoadWithRoot(path, "")
}

// LoadWithRoot loads an explicit config file when path is set. Otherwise it
// merges the global ~/.spanidx.kdl with the project config found in
// rootDir, where .spanidx.kdl wins over .spanidx.toml.
func LoadWithRoot(path string, rootDir string) (*Config, error) {
	searchDir := "."
	if rootDir != "" {
		searchDir = rootDir
	}
	if path != "" {
		cfg, err := loadFile(path)
		if err != nil {
			return nil, err
		}
		return finish(cfg, filepath.Dir(path))
	}

	var baseConfig *Config
	if homeDir, err := os.UserHomeDir(); err == nil {
		if globalCfg, err := LoadKDL(homeDir); err == nil && globalCfg != nil {
			baseConfig = globalCfg
		}
	}

	projectConfig, err := LoadKDL(searchDir)
	if err != nil {
		return nil, err
	}
	if projectConfig == nil {
		if projectConfig, err = LoadTOML(searchDir); err != nil {
			return nil, err
		}
	}

	switch {
	case baseConfig != nil && projectConfig != nil:
		return finish(mergeConfigs(baseConfig, projectConfig), searchDir)
	case projectConfig != nil:
		return finish(projectConfig, searchDir)
	case baseConfig != nil:
		baseConfig.Project.Root = ""
		return finish(baseConfig, searchDir)
	}
	cfg := Default()
	cfg.Project.Root = ""
	return finish(cfg, searchDir)
}

func loadFile(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if filepath.Ext(path) == ".toml" {
		return parseTOML(content)
	}
	return parseKDL(string(content))
}

// finish resolves the project root against dir and validates.
func finish(cfg *Config, dir string) (*Config, error) {
	root := cfg.Project.Root
	if root == "" {
		root = dir
	} else if !filepath.IsAbs(root) {
		root = filepath.Join(dir, root)
	}
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	cfg.Project.Root = filepath.Clean(root)

	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadTOML reads .spanidx.toml from projectRoot. It returns nil, nil when
// the file does not exist.
func LoadTOML(projectRoot string) (*Config, error) {
	content, err := os.ReadFile(filepath.Join(projectRoot, tomlFileName))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", tomlFileName, err)
	}
	return parseTOML(content)
}

func parseTOML(content []byte) (*Config, error) {
	cfg := Default()
	cfg.Project.Root = ""
	if err := toml.Unmarshal(content, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML config: %w", err)
	}
	return cfg, nil
}

// StorePath returns the sqlite path resolved against the project root.
func (c *Config) StorePath() string {
	if c.Store.Path == "" || c.Store.Path == ":memory:" || filepath.IsAbs(c.Store.Path) {
		return c.Store.Path
	}
	return filepath.Join(c.Project.Root, c.Store.Path)
}

// mergeConfigs merges a base config with a project config.
// Project settings win; base exclusions are kept.
func mergeConfigs(base, project *Config) *Config {
	merged := *project

	if len(base.Exclude) > 0 {
		seen := make(map[string]bool, len(base.Exclude)+len(project.Exclude))
		merged.Exclude = make([]string, 0, len(base.Exclude)+len(project.Exclude))
		for _, list := range [][]string{base.Exclude, project.Exclude} {
			for _, pattern := range list {
				if !seen[pattern] {
					seen[pattern] = true
					merged.Exclude = append(merged.Exclude, pattern)
				}
			}
		}
	}

	// Inclusions: project overrides base completely if specified
	if len(project.Include) == 0 && len(base.Include) > 0 {
		merged.Include = base.Include
	}

	return &merged
}

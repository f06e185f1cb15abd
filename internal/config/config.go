// Package config loads arbor.toml, the per-project settings file, and
// decides which files under an analysis root are analyzed.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pelletier/go-toml/v2"

	"github.com/jward/arbor/internal/parse"
	"github.com/jward/arbor/internal/rules"
)

// FileName is the settings file looked up in the project root.
const FileName = "arbor.toml"

// DefaultDB is the database path used when [store] db is unset, relative to
// the project root.
const DefaultDB = ".arbor/arbor.db"

// Config is the decoded form of arbor.toml.
type Config struct {
	Analysis Analysis `toml:"analysis"`
	Rules    Rules    `toml:"rules"`
	Cache    Cache    `toml:"cache"`
	Store    Store    `toml:"store"`
}

type Analysis struct {
	Include   []string `toml:"include"`
	Exclude   []string `toml:"exclude"`
	Languages []string `toml:"languages"`
}

type Rules struct {
	Dir               string `toml:"dir"`
	MaxHierarchyDepth int    `toml:"max_hierarchy_depth"`
}

type Cache struct {
	ParseCacheSize int `toml:"parse_cache_size"`
}

type Store struct {
	DB string `toml:"db"`
}

// Default returns the settings used when a project has no arbor.toml.
func Default() *Config {
	return &Config{
		Analysis: Analysis{
			Include:   []string{"**/*"},
			Exclude:   []string{"**/node_modules/**", "**/build/**", "**/target/**", "**/.git/**"},
			Languages: parse.Languages(),
		},
		Rules: Rules{MaxHierarchyDepth: rules.DefaultMaxHierarchyDepth},
		Cache: Cache{ParseCacheSize: parse.DefaultCacheSize},
		Store: Store{DB: DefaultDB},
	}
}

// Load reads arbor.toml from dir. Keys missing from the file keep their
// defaults; a missing file yields Default.
func Load(dir string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	if err := Parse(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes TOML data over cfg and validates the result. Keys absent
// from data leave cfg unchanged.
func Parse(data []byte, cfg *Config) error {
	var file Config
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&file); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return fmt.Errorf("config: %s:%d:%d: %w", FileName, row, col, err)
		}
		return fmt.Errorf("config: %s: %w", FileName, err)
	}
	cfg.merge(&file)
	return cfg.Validate()
}

func (c *Config) merge(o *Config) {
	if o.Analysis.Include != nil {
		c.Analysis.Include = o.Analysis.Include
	}
	if o.Analysis.Exclude != nil {
		c.Analysis.Exclude = o.Analysis.Exclude
	}
	if o.Analysis.Languages != nil {
		c.Analysis.Languages = o.Analysis.Languages
	}
	if o.Rules.Dir != "" {
		c.Rules.Dir = o.Rules.Dir
	}
	if o.Rules.MaxHierarchyDepth != 0 {
		c.Rules.MaxHierarchyDepth = o.Rules.MaxHierarchyDepth
	}
	if o.Cache.ParseCacheSize != 0 {
		c.Cache.ParseCacheSize = o.Cache.ParseCacheSize
	}
	if o.Store.DB != "" {
		c.Store.DB = o.Store.DB
	}
}

// Validate checks patterns, languages and limits.
func (c *Config) Validate() error {
	for _, p := range append(slices.Clone(c.Analysis.Include), c.Analysis.Exclude...) {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("config: invalid pattern %q", p)
		}
	}
	known := parse.Languages()
	for _, l := range c.Analysis.Languages {
		if !slices.Contains(known, l) {
			return fmt.Errorf("config: unsupported language %q (supported: %v)", l, known)
		}
	}
	if c.Rules.MaxHierarchyDepth < 0 {
		return fmt.Errorf("config: max_hierarchy_depth must not be negative")
	}
	if c.Cache.ParseCacheSize < 0 {
		return fmt.Errorf("config: parse_cache_size must not be negative")
	}
	return nil
}

// Includes reports whether rel, a slash-separated path relative to the
// analysis root, is matched by an include pattern and by no exclude
// pattern, and is written in an enabled language.
func (c *Config) Includes(rel string) bool {
	rel = filepath.ToSlash(rel)
	lang, ok := parse.LanguageForFile(rel)
	if !ok || !c.languageEnabled(lang) {
		return false
	}
	if matchAny(c.Analysis.Exclude, rel) {
		return false
	}
	return len(c.Analysis.Include) == 0 || matchAny(c.Analysis.Include, rel)
}

func (c *Config) languageEnabled(lang string) bool {
	return len(c.Analysis.Languages) == 0 || slices.Contains(c.Analysis.Languages, lang)
}

// excludesDir reports whether every file under the directory rel is
// excluded, so a walk can skip it.
func (c *Config) excludesDir(rel string) bool {
	return matchAny(c.Analysis.Exclude, filepath.ToSlash(rel)+"/x")
}

func matchAny(patterns []string, path string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, path); ok {
			return true
		}
	}
	return false
}

// Files walks root and returns the absolute paths of the files the
// settings include, sorted.
func (c *Config) Files(root string) ([]string, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("config: root: %w", err)
	}
	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if d.IsDir() {
			if rel != "." && c.excludesDir(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if c.Includes(rel) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("config: walk %s: %w", root, err)
	}
	slices.Sort(files)
	return files, nil
}

// DBPath returns the database path, resolved against root when relative.
func (c *Config) DBPath(root string) string {
	db := c.Store.DB
	if db == "" {
		db = DefaultDB
	}
	if filepath.IsAbs(db) {
		return db
	}
	return filepath.Join(root, db)
}

// RulesDir returns the rules directory resolved against root, or "" when
// none is configured.
func (c *Config) RulesDir(root string) string {
	if c.Rules.Dir == "" || filepath.IsAbs(c.Rules.Dir) {
		return c.Rules.Dir
	}
	return filepath.Join(root, c.Rules.Dir)
}

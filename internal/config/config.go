// Package config loads the sodabuild project configuration and derives
// the qualifying-import predicate from it. The DSL entrypoint's import
// specifier is user-configurable, so definition recognition resolves
// identity through this predicate rather than matching a fixed name.
package config

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/risor-io/risor"
	"gopkg.in/yaml.v3"
)

// DefaultFileName is the project config file looked up next to the
// project root.
const DefaultFileName = "sodabuild.yaml"

// DefaultCacheDir holds tracker state and the persisted graph.
const DefaultCacheDir = ".sodabuild"

// Config describes one project.
type Config struct {
	// Entrypoints are the import specifiers that bind the DSL
	// namespace, e.g. "@/graphql-system". A specifier qualifies when it
	// equals an entry or lives under it ("entry/...").
	Entrypoints []string `yaml:"entrypoints"`

	// MatcherScript optionally replaces the alias check with a Risor
	// expression evaluated per import specifier. The expression sees a
	// string global named "specifier" and must yield a truthy value for
	// qualifying imports.
	MatcherScript string `yaml:"matcherScript,omitempty"`

	// Include lists entry globs, doublestar syntax, relative to the
	// project root.
	Include []string `yaml:"include"`

	// CacheDir overrides the default cache directory, relative to the
	// project root unless absolute.
	CacheDir string `yaml:"cacheDir,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Entrypoints: []string{"@/graphql-system"},
		Include:     []string{"src/**/*.{ts,tsx,js,jsx}"},
		CacheDir:    DefaultCacheDir,
	}
}

// Load reads a YAML config file. A missing file yields Default();
// malformed YAML is a real error.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = DefaultCacheDir
	}
	return cfg, nil
}

// Hash fingerprints the recognition-relevant parts of the config. A
// changed hash invalidates the persisted graph, forcing a full rebuild,
// because previously-discovered definitions may no longer qualify.
func (c *Config) Hash() string {
	h := sha256.New()
	entries := append([]string(nil), c.Entrypoints...)
	sort.Strings(entries)
	for _, e := range entries {
		fmt.Fprintf(h, "entry:%s\n", e)
	}
	fmt.Fprintf(h, "matcher:%s\n", c.MatcherScript)
	return fmt.Sprintf("%x", h.Sum(nil))
}

// ImportPredicate reports whether an import specifier binds the DSL
// entrypoint.
type ImportPredicate func(specifier string) bool

// Predicate builds the qualifying-import predicate. With a
// MatcherScript configured, each specifier is judged by evaluating the
// Risor expression; a script failure counts as non-qualifying. Without
// one, the alias rule applies: exact match or a path under the alias.
func (c *Config) Predicate(ctx context.Context) ImportPredicate {
	if c.MatcherScript != "" {
		script := c.MatcherScript
		return func(specifier string) bool {
			result, err := risor.Eval(ctx, script, risor.WithGlobal("specifier", specifier))
			if err != nil {
				return false
			}
			return result.IsTruthy()
		}
	}

	entries := append([]string(nil), c.Entrypoints...)
	return func(specifier string) bool {
		for _, e := range entries {
			if specifier == e || strings.HasPrefix(specifier, e+"/") {
				return true
			}
		}
		return false
	}
}

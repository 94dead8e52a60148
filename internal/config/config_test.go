package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), DefaultFileName))
	require.NoError(t, err)
	assert.Equal(t, []string{"@/graphql-system"}, cfg.Entrypoints)
	assert.Equal(t, DefaultCacheDir, cfg.CacheDir)
}

func TestLoad_ParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte(`
entrypoints:
  - "~/gql"
include:
  - "app/**/*.ts"
cacheDir: .cache/soda
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"~/gql"}, cfg.Entrypoints)
	assert.Equal(t, []string{"app/**/*.ts"}, cfg.Include)
	assert.Equal(t, ".cache/soda", cfg.CacheDir)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte("entrypoints: [unclosed"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestPredicate_AliasRule(t *testing.T) {
	cfg := &Config{Entrypoints: []string{"@/graphql-system", "gql-lib"}}
	pred := cfg.Predicate(context.Background())

	assert.True(t, pred("@/graphql-system"))
	assert.True(t, pred("@/graphql-system/client"))
	assert.True(t, pred("gql-lib"))
	assert.False(t, pred("@/graphql-system-extra"))
	assert.False(t, pred("react"))
}

func TestPredicate_MatcherScript(t *testing.T) {
	cfg := &Config{MatcherScript: `strings.has_suffix(specifier, "/gql")`}
	pred := cfg.Predicate(context.Background())

	assert.True(t, pred("@acme/gql"))
	assert.False(t, pred("react"))
}

func TestPredicate_MatcherScriptErrorIsNonMatch(t *testing.T) {
	cfg := &Config{MatcherScript: `this is not risor ((`}
	pred := cfg.Predicate(context.Background())
	assert.False(t, pred("anything"))
}

func TestHash_TracksRecognitionInputs(t *testing.T) {
	a := &Config{Entrypoints: []string{"x", "y"}}
	b := &Config{Entrypoints: []string{"y", "x"}}
	c := &Config{Entrypoints: []string{"x"}}

	assert.Equal(t, a.Hash(), b.Hash())
	assert.NotEqual(t, a.Hash(), c.Hash())

	d := &Config{Entrypoints: []string{"x", "y"}, MatcherScript: "true"}
	assert.NotEqual(t, a.Hash(), d.Hash())

	// Include globs do not affect recognition identity.
	e := &Config{Entrypoints: []string{"x", "y"}, Include: []string{"src/**"}}
	assert.Equal(t, a.Hash(), e.Hash())
}

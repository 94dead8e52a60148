package resolver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root string, rel string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("export {}\n"), 0o644))
	return path
}

func TestResolve_DoublestarGlob(t *testing.T) {
	root := t.TempDir()
	a := writeFile(t, root, "src/a.ts")
	b := writeFile(t, root, "src/nested/deep/b.tsx")
	writeFile(t, root, "src/readme.md")
	writeFile(t, root, "other/c.ts")

	paths, err := Resolve(root, []string{"src/**/*.{ts,tsx}"})
	require.NoError(t, err)
	assert.Equal(t, []string{a, b}, paths)
}

func TestResolve_SkipsDependencyAndHiddenDirs(t *testing.T) {
	root := t.TempDir()
	a := writeFile(t, root, "src/a.ts")
	writeFile(t, root, "src/node_modules/pkg/index.ts")
	writeFile(t, root, "src/.cache/b.ts")

	paths, err := Resolve(root, []string{"**/*.ts"})
	require.NoError(t, err)
	assert.Equal(t, []string{a}, paths)
}

func TestResolve_DeduplicatesAcrossGlobs(t *testing.T) {
	root := t.TempDir()
	a := writeFile(t, root, "src/a.ts")

	paths, err := Resolve(root, []string{"src/*.ts", "**/*.ts"})
	require.NoError(t, err)
	assert.Equal(t, []string{a}, paths)
}

func TestResolve_InvalidPattern(t *testing.T) {
	_, err := Resolve(t.TempDir(), []string{"src/[unclosed"})
	assert.Error(t, err)
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported("/a/b.ts"))
	assert.True(t, Supported("/a/b.JSX"))
	assert.False(t, Supported("/a/b.rs"))
	assert.False(t, Supported("/a/b"))
}

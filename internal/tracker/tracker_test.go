package tracker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadState_Missing(t *testing.T) {
	tr := New(filepath.Join(t.TempDir(), "cache"))
	st := tr.LoadState()
	assert.Equal(t, StateVersion, st.Version)
	assert.Empty(t, st.Files)
}

func TestLoadState_Corrupt(t *testing.T) {
	dir := t.TempDir()
	tr := New(dir)
	require.NoError(t, os.WriteFile(tr.StatePath(), []byte("{not json"), 0o644))

	st := tr.LoadState()
	assert.Empty(t, st.Files)
}

func TestLoadState_VersionMismatch(t *testing.T) {
	dir := t.TempDir()
	tr := New(dir)
	require.NoError(t, os.WriteFile(tr.StatePath(),
		[]byte(`{"version":99,"files":{"/a.ts":{"mtimeMs":1,"size":2}}}`), 0o644))

	st := tr.LoadState()
	assert.Empty(t, st.Files)
}

func TestPersist_RoundTrip(t *testing.T) {
	tr := New(filepath.Join(t.TempDir(), "cache"))

	st := NewState()
	st.Files["/src/a.ts"] = FileMetadata{MtimeMs: 1700000000123, Size: 512}
	st.Files["/src/b.ts"] = FileMetadata{MtimeMs: 1700000000456, Size: 48}
	require.NoError(t, tr.Persist(st))

	got := tr.LoadState()
	assert.Equal(t, st.Files, got.Files)
	assert.Equal(t, StateVersion, got.Version)
}

func TestPersist_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	tr := New(dir)
	require.NoError(t, tr.Persist(NewState()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, StateFileName, entries[0].Name())
}

func TestScan_ExcludesMissing(t *testing.T) {
	dir := t.TempDir()
	real := filepath.Join(dir, "a.ts")
	require.NoError(t, os.WriteFile(real, []byte("export {}"), 0o644))

	st := Scan([]string{real, filepath.Join(dir, "gone.ts")})
	require.Len(t, st.Files, 1)
	meta := st.Files[real]
	assert.Equal(t, int64(9), meta.Size)
	assert.NotZero(t, meta.MtimeMs)
}

func TestDetectChanges(t *testing.T) {
	prev := NewState()
	prev.Files["/a"] = FileMetadata{MtimeMs: 1, Size: 10}
	prev.Files["/b"] = FileMetadata{MtimeMs: 1, Size: 10}

	current := NewState()
	current.Files["/a"] = FileMetadata{MtimeMs: 1, Size: 10}
	current.Files["/c"] = FileMetadata{MtimeMs: 2, Size: 20}

	d := DetectChanges(prev, current)
	assert.Equal(t, []string{"/c"}, d.Added)
	assert.Empty(t, d.Updated)
	assert.Equal(t, []string{"/b"}, d.Removed)
	assert.False(t, d.Empty())
}

func TestDetectChanges_Updated(t *testing.T) {
	prev := NewState()
	prev.Files["/a"] = FileMetadata{MtimeMs: 1, Size: 10}
	prev.Files["/b"] = FileMetadata{MtimeMs: 5, Size: 10}

	current := NewState()
	current.Files["/a"] = FileMetadata{MtimeMs: 1, Size: 11}
	current.Files["/b"] = FileMetadata{MtimeMs: 6, Size: 10}

	d := DetectChanges(prev, current)
	assert.Empty(t, d.Added)
	assert.ElementsMatch(t, []string{"/a", "/b"}, d.Updated)
	assert.Empty(t, d.Removed)
}

func TestDetectChanges_EmptyDiff(t *testing.T) {
	prev := NewState()
	prev.Files["/a"] = FileMetadata{MtimeMs: 1, Size: 10}
	current := NewState()
	current.Files["/a"] = FileMetadata{MtimeMs: 1, Size: 10}

	assert.True(t, DetectChanges(prev, current).Empty())
}

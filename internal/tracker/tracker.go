// Package tracker persists per-file size and mtime metadata between
// builds and computes which files were added, updated, or removed since
// the last successful build.
//
// The persisted state is deliberately forgiving: a missing, corrupt, or
// version-mismatched file degrades to an empty state. The only cost of
// that fallback is a full rescan, never incorrect output.
package tracker

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/soda-gql/sodabuild/internal/canonical"
)

// StateVersion is the current on-disk format version. Anything else is
// treated as "no usable state".
const StateVersion = 1

// StateFileName is the tracker's file name inside the cache directory.
const StateFileName = "files.json"

// FileMetadata is the change-detection signature of one file.
type FileMetadata struct {
	MtimeMs int64 `json:"mtimeMs"`
	Size    int64 `json:"size"`
}

// State is the persisted tracker snapshot. Keys are normalized absolute
// POSIX paths.
type State struct {
	Version int                     `json:"version"`
	Files   map[string]FileMetadata `json:"files"`
}

// Diff partitions paths into three disjoint sets relative to a previous
// state.
type Diff struct {
	Added   []string
	Updated []string
	Removed []string
}

// Empty reports whether the diff contains no changes.
func (d Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Updated) == 0 && len(d.Removed) == 0
}

// NewState returns an empty current-version state.
func NewState() *State {
	return &State{Version: StateVersion, Files: make(map[string]FileMetadata)}
}

// Tracker reads and writes state under a cache directory.
type Tracker struct {
	cacheDir string
}

// New returns a Tracker rooted at cacheDir. The directory is created
// lazily on first persist.
func New(cacheDir string) *Tracker {
	return &Tracker{cacheDir: cacheDir}
}

// StatePath returns the absolute path of the persisted state file.
func (t *Tracker) StatePath() string {
	return filepath.Join(t.cacheDir, StateFileName)
}

// LoadState reads the persisted state. A missing file, unreadable JSON,
// or a version mismatch yields an empty state and no error.
func (t *Tracker) LoadState() *State {
	raw, err := os.ReadFile(t.StatePath())
	if err != nil {
		return NewState()
	}
	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return NewState()
	}
	if st.Version != StateVersion {
		return NewState()
	}
	if st.Files == nil {
		st.Files = make(map[string]FileMetadata)
	}
	return &st
}

// Scan stats every path and returns a state describing the files that
// currently exist. Nonexistent paths are silently excluded so that
// removal is detected by the diff, not reported as an error.
func Scan(paths []string) *State {
	st := NewState()
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil || info.IsDir() {
			continue
		}
		st.Files[canonical.NormalizePath(p)] = FileMetadata{
			MtimeMs: info.ModTime().UnixMilli(),
			Size:    info.Size(),
		}
	}
	return st
}

// DetectChanges diffs two states. Added is in current but not prev,
// removed is in prev but not current, updated is in both with a
// differing mtime or size. The three sets are always disjoint.
func DetectChanges(prev, current *State) Diff {
	var d Diff
	for p, meta := range current.Files {
		old, ok := prev.Files[p]
		switch {
		case !ok:
			d.Added = append(d.Added, p)
		case old.MtimeMs != meta.MtimeMs || old.Size != meta.Size:
			d.Updated = append(d.Updated, p)
		}
	}
	for p := range prev.Files {
		if _, ok := current.Files[p]; !ok {
			d.Removed = append(d.Removed, p)
		}
	}
	return d
}

// Persist atomically writes the state: serialize to a temp file in the
// same directory, then rename over the target. A crash mid-write leaves
// the previous valid state intact.
func (t *Tracker) Persist(st *State) error {
	if err := os.MkdirAll(t.cacheDir, 0o755); err != nil {
		return fmt.Errorf("tracker: create cache dir: %w", err)
	}
	raw, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("tracker: encode state: %w", err)
	}

	tmp, err := os.CreateTemp(t.cacheDir, StateFileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("tracker: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("tracker: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("tracker: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, t.StatePath()); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("tracker: rename state file: %w", err)
	}
	return nil
}

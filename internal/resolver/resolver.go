// Package resolver expands entry globs into candidate source files. It
// is the session's "external resolver": the builder only ever sees
// normalized absolute POSIX paths.
package resolver

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/soda-gql/sodabuild/internal/canonical"
)

// skipDirs are never matched during glob expansion.
var skipDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
}

// supportedExts are the extensions the parser backends understand.
var supportedExts = map[string]bool{
	".ts":  true,
	".tsx": true,
	".js":  true,
	".jsx": true,
}

// Supported reports whether a path has a parseable extension.
func Supported(path string) bool {
	return supportedExts[strings.ToLower(filepath.Ext(path))]
}

// Resolve expands the include globs relative to root and returns
// deduplicated, sorted, normalized absolute paths of supported files.
// Hidden directories and dependency directories are filtered out.
func Resolve(root string, includes []string) ([]string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolver: resolve root: %w", err)
	}

	fsys := os.DirFS(absRoot)
	seen := make(map[string]struct{})
	for _, pattern := range includes {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("resolver: invalid glob %q", pattern)
		}
		matches, err := doublestar.Glob(fsys, pattern,
			doublestar.WithFilesOnly(), doublestar.WithNoFollow())
		if err != nil {
			return nil, fmt.Errorf("resolver: glob %q: %w", pattern, err)
		}
		for _, m := range matches {
			if !Supported(m) || skipped(m) {
				continue
			}
			abs := canonical.NormalizePath(filepath.Join(absRoot, filepath.FromSlash(m)))
			seen[abs] = struct{}{}
		}
	}

	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}

// skipped reports whether any segment of a slash-relative match lies in
// a hidden or dependency directory.
func skipped(rel string) bool {
	segs := strings.Split(rel, "/")
	for i, seg := range segs {
		if skipDirs[seg] {
			return true
		}
		// Hidden directories only; a hidden file name itself is the
		// last segment and allowed through (it fails Supported anyway
		// unless it is a dotfile source, which we do index).
		if i < len(segs)-1 && strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}

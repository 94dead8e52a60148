// Package canonical encodes the globally unique identity of a DSL
// definition: the pair of its file's normalized absolute path and its
// AST path inside that file.
//
// The encoding is pure string manipulation. It performs no I/O and no
// content hashing, so the same (file, astPath) pair always yields the
// same ID across processes and across parser backends.
package canonical

import (
	"fmt"
	"strings"
)

// Separator joins the file path and the AST path inside an ID. The
// file path side never contains it (slash-normalized absolute paths),
// so the first occurrence is always the component boundary. AST path
// segments can carry arbitrary text when they come from string-literal
// property keys.
const Separator = "::"

// ID is the opaque identity of one definition.
type ID string

// Encode builds the canonical ID for a definition.
//
// filePath must already be an absolute path; callers are contractually
// required to resolve paths before reaching this layer, so a relative
// path is a programmer error and panics rather than returning a
// recoverable error.
func Encode(filePath, astPath string) ID {
	norm := NormalizePath(filePath)
	if !strings.HasPrefix(norm, "/") {
		panic(fmt.Sprintf("canonical: file path %q is not absolute", filePath))
	}
	return ID(norm + Separator + astPath)
}

// Split returns the file path and AST path components of an ID. It
// splits on the first separator occurrence because only the AST path
// side may contain one.
func (id ID) Split() (filePath, astPath string) {
	s := string(id)
	if i := strings.Index(s, Separator); i >= 0 {
		return s[:i], s[i+len(Separator):]
	}
	return s, ""
}

// FilePath returns the file path component of an ID.
func (id ID) FilePath() string {
	fp, _ := id.Split()
	return fp
}

// AstPath returns the AST path component of an ID.
func (id ID) AstPath() string {
	_, ap := id.Split()
	return ap
}

// NormalizePath converts OS path separators to forward slashes and
// collapses repeated slashes. It does not resolve ".." segments; inputs
// are expected to be cleaned absolute paths already.
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}
	return p
}

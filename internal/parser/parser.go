// Package parser extracts DSL call sites from TypeScript and JavaScript
// source files. Three tree-sitter backends (the typescript, tsx, and
// javascript grammars) implement one Adapter contract and must produce
// byte-identical paths and flags for identical input; everything that
// decides a path or a flag therefore lives in the shared walker and the
// astpath package, never in a backend.
package parser

import (
	"fmt"
)

// ImportPredicate reports whether an import specifier binds the DSL
// entrypoint. Supplied by the config layer since the specifier is
// user-configurable.
type ImportPredicate func(specifier string) bool

// DependencyRef is a raw cross-definition reference captured from a
// factory body. Source is the import specifier for imported names and
// empty for same-module references.
type DependencyRef struct {
	Name   string
	Source string
}

// Definition is one recognized DSL call site plus its structural
// metadata. AstPath and the flags are the cross-backend conformance
// surface.
type Definition struct {
	AstPath       string
	IsTopLevel    bool
	IsExported    bool
	ExportBinding string
	// Binding is the top-level local name the definition is bound to,
	// when it is the direct initializer of a top-level declaration.
	Binding string
	// Member is the DSL member invoked, e.g. "default" in
	// gql.default(...).
	Member string
	// Expression is the qualifying call's source text, excluding any
	// immediately-chained trailing calls.
	Expression     string
	DependencyRefs []DependencyRef
}

// ParseError reports unparseable source. It is a recoverable, per-file
// result: the build records it as a warning and keeps the file's prior
// definitions.
type ParseError struct {
	FilePath string
	Backend  string
	Err      error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parser: %s: %s: %v", e.Backend, e.FilePath, e.Err)
	}
	return fmt.Sprintf("parser: %s: %s: source contains syntax errors", e.Backend, e.FilePath)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Adapter analyzes one source file into a neutral Definition list.
type Adapter interface {
	// Name identifies the backend in diagnostics.
	Name() string
	// Analyze extracts every qualifying definition. Unparseable source
	// yields a *ParseError, never a panic.
	Analyze(filePath string, source []byte, isEntrypoint ImportPredicate) ([]Definition, error)
}

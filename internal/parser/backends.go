package parser

import (
	"path/filepath"
	"strings"

	"github.com/smacker/go-tree-sitter/javascript"
	tsx "github.com/smacker/go-tree-sitter/typescript/tsx"
	ts "github.com/smacker/go-tree-sitter/typescript/typescript"
)

// tsAdapter analyzes with the tree-sitter typescript grammar.
type tsAdapter struct{}

// NewTypeScript returns the typescript-grammar backend.
func NewTypeScript() Adapter { return tsAdapter{} }

func (tsAdapter) Name() string { return "tree-sitter-typescript" }

func (tsAdapter) Analyze(filePath string, source []byte, isEntrypoint ImportPredicate) ([]Definition, error) {
	return analyze("tree-sitter-typescript", ts.GetLanguage(), filePath, source, isEntrypoint)
}

// tsxAdapter analyzes with the tree-sitter tsx grammar, the typescript
// dialect that admits JSX elements. The plain typescript grammar
// rejects JSX, so .tsx files need this variant.
type tsxAdapter struct{}

// NewTSX returns the tsx-grammar backend.
func NewTSX() Adapter { return tsxAdapter{} }

func (tsxAdapter) Name() string { return "tree-sitter-tsx" }

func (tsxAdapter) Analyze(filePath string, source []byte, isEntrypoint ImportPredicate) ([]Definition, error) {
	return analyze("tree-sitter-tsx", tsx.GetLanguage(), filePath, source, isEntrypoint)
}

// jsAdapter analyzes with the tree-sitter javascript grammar, which
// handles JSX natively.
type jsAdapter struct{}

// NewJavaScript returns the javascript-grammar backend.
func NewJavaScript() Adapter { return jsAdapter{} }

func (jsAdapter) Name() string { return "tree-sitter-javascript" }

func (jsAdapter) Analyze(filePath string, source []byte, isEntrypoint ImportPredicate) ([]Definition, error) {
	return analyze("tree-sitter-javascript", javascript.GetLanguage(), filePath, source, isEntrypoint)
}

// ForFile picks the backend for a path by extension: the typescript
// grammar for .ts, the tsx grammar for .tsx, the javascript grammar
// for .js/.jsx.
func ForFile(path string) Adapter {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ts":
		return tsAdapter{}
	case ".tsx":
		return tsxAdapter{}
	}
	return jsAdapter{}
}

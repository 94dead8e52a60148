// Package sodabuild discovers declarative GraphQL definitions embedded
// in TypeScript and JavaScript sources and compiles them incrementally
// into evaluated artifacts.
//
// # Pipeline
//
// A build session runs in three phases:
//
//  1. Track: expand the configured include globs, stat every candidate
//     file, and diff size and mtime against the previous build to find
//     added, updated, and removed files.
//
//  2. Analyze: parse only the changed files with tree-sitter, extract
//     every qualifying DSL call site, assign each a canonical AST path,
//     and patch the persisted dependency graph.
//
//  3. Evaluate: drive a lazy, memoized element per definition through
//     its dependency chain, producing artifacts. Unchanged definitions
//     keep their cached artifacts across builds in one session.
//
// # Usage
//
// Create a Builder, run builds, and read artifacts:
//
//	b, err := sodabuild.New("path/to/project")
//	if err != nil { ... }
//	defer b.Close()
//
//	report, err := b.Build(ctx, sodabuild.BuildOptions{})
//	for _, a := range report.Artifacts {
//		fmt.Println(a.ID, a.Kind)
//	}
//
// [Builder.Watch] keeps rebuilding on file changes until the context is
// canceled.
//
// # Identity
//
// Every definition is addressed by a canonical ID, the normalized
// absolute file path joined to a deterministic AST path with "::". The
// AST path is derived purely from lexical structure, so an unchanged
// file always reproduces the same IDs and downstream caches stay
// valid. Independent parser backends (the tree-sitter typescript, tsx,
// and javascript grammars) are held to byte-identical path output; see
// the internal/parser conformance tests.
//
// # Persistence
//
// Between processes the session persists the file tracker state as
// JSON and the dependency graph in SQLite, both under the cache
// directory (.sodabuild by default). Corrupt or missing state degrades
// to a full re-analysis, never to incorrect output. A changed
// recognition config (entrypoints or matcher script) discards the
// persisted graph wholesale.
package sodabuild

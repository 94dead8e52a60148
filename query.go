package sodabuild

import (
	"sort"

	"github.com/soda-gql/sodabuild/internal/canonical"
	"github.com/soda-gql/sodabuild/internal/depgraph"
)

// QueryBuilder is a read-only view over the session's dependency
// graph. Results reflect the graph as of the most recent build.
type QueryBuilder struct {
	b *Builder
}

// Query returns a QueryBuilder over the session.
func (b *Builder) Query() *QueryBuilder {
	return &QueryBuilder{b: b}
}

// DefinitionsInFile returns the IDs declared in a file, in lexical
// order.
func (q *QueryBuilder) DefinitionsInFile(path string) []canonical.ID {
	q.b.mu.Lock()
	defer q.b.mu.Unlock()
	return depgraph.IDsForFile(q.b.index, canonical.NormalizePath(path))
}

// DependenciesOf returns what a definition references, in declaration
// order. A missing definition yields nil.
func (q *QueryBuilder) DependenciesOf(id canonical.ID) []canonical.ID {
	q.b.mu.Lock()
	defer q.b.mu.Unlock()
	node, ok := q.b.graph[id]
	if !ok {
		return nil
	}
	return append([]canonical.ID(nil), node.Dependencies...)
}

// DependentsOf returns every definition that references id, in lexical
// order. This is the reverse edge set, computed on demand; the graph
// only persists forward edges.
func (q *QueryBuilder) DependentsOf(id canonical.ID) []canonical.ID {
	q.b.mu.Lock()
	defer q.b.mu.Unlock()

	var dependents []canonical.ID
	for candidate, node := range q.b.graph {
		for _, dep := range node.Dependencies {
			if dep == id {
				dependents = append(dependents, candidate)
				break
			}
		}
	}
	sort.Slice(dependents, func(i, j int) bool { return dependents[i] < dependents[j] })
	return dependents
}

// Exports returns a file's exported definitions keyed by export
// binding.
func (q *QueryBuilder) Exports(path string) map[string]canonical.ID {
	q.b.mu.Lock()
	defer q.b.mu.Unlock()

	mod := q.b.modules[canonical.NormalizePath(path)]
	exports := make(map[string]canonical.ID, len(mod.Exports))
	for binding, id := range mod.Exports {
		exports[binding] = id
	}
	return exports
}

// Files returns every file with at least one definition, sorted.
func (q *QueryBuilder) Files() []string {
	q.b.mu.Lock()
	defer q.b.mu.Unlock()

	files := make([]string, 0, len(q.b.index))
	for path := range q.b.index {
		files = append(files, path)
	}
	sort.Strings(files)
	return files
}

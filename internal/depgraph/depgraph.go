// Package depgraph holds the identity-keyed definition graph, the
// file-path index over it, and per-module summaries, and applies
// incremental patches that keep all three structures exactly consistent
// with a file-system diff.
package depgraph

import (
	"sort"

	"github.com/soda-gql/sodabuild/internal/canonical"
)

// Summary is the per-definition metadata carried on a graph node. It is
// everything downstream evaluation needs without re-reading the source.
type Summary struct {
	Kind          string `json:"kind"`
	Expression    string `json:"expression"`
	IsTopLevel    bool   `json:"isTopLevel"`
	IsExported    bool   `json:"isExported"`
	ExportBinding string `json:"exportBinding,omitempty"`
}

// Node is one definition in the graph.
type Node struct {
	ID           canonical.ID
	FilePath     string
	Dependencies []canonical.ID
	Summary      Summary
}

// Graph maps canonical IDs to nodes.
type Graph map[canonical.ID]*Node

// Index maps a file path to the set of IDs declared in that file. It is
// always rebuildable from the Graph and is kept incrementally consistent
// by ApplyPatch.
type Index map[string]map[canonical.ID]struct{}

// ModuleSummary is per-file metadata: which definitions the file
// exports, keyed by export binding. Cross-file reference resolution
// reads it instead of rescanning nodes.
type ModuleSummary struct {
	Exports map[string]canonical.ID `json:"exports,omitempty"`
}

// Modules maps a file path to its summary. Like the Index, it is
// rebuildable from the Graph.
type Modules map[string]ModuleSummary

// Patch is an atomic batch of graph changes derived from one build's
// diff plus its fresh analysis results.
type Patch struct {
	// RemovedModules lists file paths whose every node must go, e.g.
	// deleted files.
	RemovedModules []string
	// RemovedNodes lists individual definitions that vanished on
	// re-analysis of a surviving file.
	RemovedNodes []canonical.ID
	// UpsertNodes carries fresh nodes to insert or replace.
	UpsertNodes []*Node
	// ModuleSummaries carries replacement summaries for every freshly
	// analyzed file.
	ModuleSummaries map[string]ModuleSummary
}

// New returns an empty graph, index, and modules triple.
func New() (Graph, Index, Modules) {
	return make(Graph), make(Index), make(Modules)
}

// ApplyPatch mutates the triple in a fixed order: whole-module removals
// first, then individual node removals, then upserts. The ordering
// matters when one patch both removes a file wholesale and re-inserts a
// node that used to belong to it: the upsert must win, and stale
// siblings must not survive.
func ApplyPatch(graph Graph, index Index, modules Modules, patch *Patch) {
	for _, path := range patch.RemovedModules {
		for id := range index[path] {
			delete(graph, id)
		}
		delete(index, path)
		delete(modules, path)
	}

	for _, id := range patch.RemovedNodes {
		node, ok := graph[id]
		if !ok {
			continue
		}
		delete(graph, id)
		if bucket, ok := index[node.FilePath]; ok {
			delete(bucket, id)
			if len(bucket) == 0 {
				delete(index, node.FilePath)
			}
		}
		if mod, ok := modules[node.FilePath]; ok {
			for binding, target := range mod.Exports {
				if target == id {
					delete(mod.Exports, binding)
				}
			}
		}
	}

	for _, node := range patch.UpsertNodes {
		graph[node.ID] = node
		bucket, ok := index[node.FilePath]
		if !ok {
			bucket = make(map[canonical.ID]struct{})
			index[node.FilePath] = bucket
		}
		bucket[node.ID] = struct{}{}
	}

	for path, summary := range patch.ModuleSummaries {
		modules[path] = summary
	}
}

// RebuildIndex derives a fresh index from graph contents. Used to check
// incremental consistency and to restore the index after loading a
// persisted graph.
func RebuildIndex(graph Graph) Index {
	index := make(Index)
	for id, node := range graph {
		bucket, ok := index[node.FilePath]
		if !ok {
			bucket = make(map[canonical.ID]struct{})
			index[node.FilePath] = bucket
		}
		bucket[id] = struct{}{}
	}
	return index
}

// RebuildModules derives fresh module summaries from graph contents.
func RebuildModules(graph Graph) Modules {
	modules := make(Modules)
	for id, node := range graph {
		if !node.Summary.IsExported || node.Summary.ExportBinding == "" {
			continue
		}
		mod, ok := modules[node.FilePath]
		if !ok {
			mod = ModuleSummary{Exports: make(map[string]canonical.ID)}
			modules[node.FilePath] = mod
		}
		mod.Exports[node.Summary.ExportBinding] = id
	}
	return modules
}

// IDsForFile returns the sorted IDs declared in a file.
func IDsForFile(index Index, path string) []canonical.ID {
	bucket := index[path]
	ids := make([]canonical.ID, 0, len(bucket))
	for id := range bucket {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// SortedIDs returns every node ID in lexical order, giving builds a
// deterministic evaluation sweep.
func SortedIDs(graph Graph) []canonical.ID {
	ids := make([]canonical.ID, 0, len(graph))
	for id := range graph {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

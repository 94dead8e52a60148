package sodabuild

import (
	"strings"
	"time"

	"github.com/soda-gql/sodabuild/internal/canonical"
)

// ElementKind is the coarse classification of a definition, derived
// from the DSL member it invokes.
type ElementKind string

const (
	KindModel     ElementKind = "model"
	KindSlice     ElementKind = "slice"
	KindOperation ElementKind = "operation"
	KindFragment  ElementKind = "fragment"
	KindUnknown   ElementKind = "unknown"
)

// classifyMember maps a DSL member name to an element kind. Unrecognized
// members are carried as KindUnknown rather than rejected, so the graph
// survives runtime surface growth.
func classifyMember(member string) ElementKind {
	switch {
	case member == "model":
		return KindModel
	case strings.HasSuffix(member, "Slice"):
		return KindSlice
	case member == "query" || member == "mutation" || member == "subscription":
		return KindOperation
	case member == "fragment" || member == "default":
		return KindFragment
	default:
		return KindUnknown
	}
}

// Artifact is the evaluated product of one definition: everything a
// code generator needs, detached from the source tree.
type Artifact struct {
	ID            canonical.ID   `json:"id"`
	FilePath      string         `json:"filePath"`
	AstPath       string         `json:"astPath"`
	Kind          ElementKind    `json:"kind"`
	Expression    string         `json:"expression"`
	IsTopLevel    bool           `json:"isTopLevel"`
	IsExported    bool           `json:"isExported"`
	ExportBinding string         `json:"exportBinding,omitempty"`
	Dependencies  []canonical.ID `json:"dependencies,omitempty"`
}

// CacheStats reports lazy-evaluation cache behavior for one build. A
// miss means a factory actually ran; a hit means a cached artifact was
// reused.
type CacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

// Report summarizes one build.
type Report struct {
	Duration      time.Duration `json:"duration"`
	FilesScanned  int           `json:"filesScanned"`
	FilesAnalyzed int           `json:"filesAnalyzed"`
	FilesRemoved  int           `json:"filesRemoved"`
	Definitions   int           `json:"definitions"`
	Artifacts     []Artifact    `json:"artifacts"`
	Cache         CacheStats    `json:"cache"`
	Warnings      []string      `json:"warnings,omitempty"`
}

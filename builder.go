package sodabuild

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/soda-gql/sodabuild/internal/canonical"
	"github.com/soda-gql/sodabuild/internal/config"
	"github.com/soda-gql/sodabuild/internal/depgraph"
	"github.com/soda-gql/sodabuild/internal/graphstore"
	"github.com/soda-gql/sodabuild/internal/lazy"
	"github.com/soda-gql/sodabuild/internal/parser"
	"github.com/soda-gql/sodabuild/internal/resolver"
	"github.com/soda-gql/sodabuild/internal/tracker"
)

// configHashKey is the metadata key under which the recognition-relevant
// config fingerprint is persisted. A mismatch invalidates the graph.
const configHashKey = "config_hash"

// Builder is a long-lived build session over one project. It owns the
// persisted graph, the file tracker, and the lazy artifact elements,
// and runs incremental builds against them.
type Builder struct {
	root string
	cfg  *config.Config
	log  *slog.Logger

	store *graphstore.Store
	track *tracker.Tracker

	mu       sync.Mutex
	graph    depgraph.Graph
	index    depgraph.Index
	modules  depgraph.Modules
	elements map[canonical.ID]*lazy.Element[Artifact]
	cyclic   map[canonical.ID]*CycleError
	stats    *lazy.Stats

	// fullRebuild forces the next build to ignore tracker state, set
	// when the persisted graph was discarded for a config change.
	fullRebuild bool

	group singleflight.Group
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the session logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(b *Builder) { b.log = log }
}

// WithConfig supplies the configuration directly instead of loading
// sodabuild.yaml from the project root.
func WithConfig(cfg *config.Config) Option {
	return func(b *Builder) { b.cfg = cfg }
}

// New creates a build session rooted at the project directory. It opens
// the persisted graph, discards it when the config fingerprint changed,
// and seeds lazy elements for every surviving node.
func New(root string, opts ...Option) (*Builder, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, buildErr(CodeConfig, "resolve project root", err)
	}

	b := &Builder{
		root:     canonical.NormalizePath(absRoot),
		log:      slog.Default(),
		elements: make(map[canonical.ID]*lazy.Element[Artifact]),
		cyclic:   make(map[canonical.ID]*CycleError),
		stats:    &lazy.Stats{},
	}
	for _, opt := range opts {
		opt(b)
	}

	if b.cfg == nil {
		cfg, err := config.Load(filepath.Join(absRoot, config.DefaultFileName))
		if err != nil {
			return nil, buildErr(CodeConfig, "load config", err)
		}
		b.cfg = cfg
	}

	cacheDir := b.cfg.CacheDir
	if cacheDir == "" {
		cacheDir = config.DefaultCacheDir
	}
	if !filepath.IsAbs(cacheDir) {
		cacheDir = filepath.Join(absRoot, cacheDir)
	}
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, buildErr(CodeConfig, "create cache dir", err)
	}
	b.track = tracker.New(cacheDir)

	store, graph, err := b.openGraphStore(filepath.Join(cacheDir, graphstore.DBFileName))
	if err != nil {
		return nil, buildErr(CodeGraph, "open graph store", err)
	}
	b.store = store

	stored, err := store.GetMetadata(configHashKey)
	if err != nil {
		store.Close()
		return nil, buildErr(CodeGraph, "read config fingerprint", err)
	}
	if stored != "" && stored != b.cfg.Hash() {
		// Recognition rules changed; previously discovered definitions
		// may no longer qualify, so nothing persisted can be trusted.
		b.log.Info("config changed, discarding persisted graph")
		if err := store.Reset(); err != nil {
			store.Close()
			return nil, buildErr(CodeGraph, "reset graph store", err)
		}
		graph = make(depgraph.Graph)
		b.fullRebuild = true
	}
	b.graph = graph
	b.index = depgraph.RebuildIndex(graph)
	b.modules = depgraph.RebuildModules(graph)
	for id := range graph {
		b.elements[id] = b.newElement(id)
	}
	b.refreshCycles(nil)

	return b, nil
}

// openGraphStore opens the persisted graph. The database is a cache
// rebuildable from source, so a damaged file is not worth failing the
// session over: on any open, migrate, or load error it is deleted and
// recreated and the session falls back to a full rebuild.
func (b *Builder) openGraphStore(dbPath string) (*graphstore.Store, depgraph.Graph, error) {
	store, graph, err := loadGraphStore(dbPath)
	if err == nil {
		return store, graph, nil
	}

	b.log.Warn("discarding unreadable graph store", "path", dbPath, "error", err)
	for _, suffix := range []string{"", "-wal", "-shm"} {
		os.Remove(dbPath + suffix)
	}
	b.fullRebuild = true
	return loadGraphStore(dbPath)
}

func loadGraphStore(dbPath string) (*graphstore.Store, depgraph.Graph, error) {
	store, err := graphstore.NewStore(dbPath)
	if err != nil {
		return nil, nil, err
	}
	if err := store.Migrate(); err != nil {
		store.Close()
		return nil, nil, err
	}
	graph, err := store.LoadGraph()
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return store, graph, nil
}

// Close releases the session's database resources.
func (b *Builder) Close() error {
	return b.store.Close()
}

// Config returns the session configuration.
func (b *Builder) Config() *config.Config {
	return b.cfg
}

// BuildOptions controls one build invocation.
type BuildOptions struct {
	// Force discards all incremental state and re-analyzes every file.
	Force bool
}

// Build runs one incremental build. Concurrent calls are coalesced:
// callers arriving while a build is in flight share its report.
func (b *Builder) Build(ctx context.Context, opts BuildOptions) (*Report, error) {
	v, err, _ := b.group.Do("build", func() (any, error) {
		return b.build(ctx, opts)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Report), nil
}

func (b *Builder) build(ctx context.Context, opts BuildOptions) (*Report, error) {
	start := time.Now()
	hitsBefore, missesBefore := b.stats.Snapshot()
	report := &Report{}

	pred := parser.ImportPredicate(b.cfg.Predicate(ctx))

	paths, err := resolver.Resolve(b.root, b.cfg.Include)
	if err != nil {
		return nil, buildErr(CodeResolve, "expand includes", err)
	}
	report.FilesScanned = len(paths)

	prev := b.track.LoadState()
	if opts.Force || b.fullRebuild {
		prev = tracker.NewState()
	}
	if opts.Force {
		if err := b.store.Reset(); err != nil {
			return nil, buildErr(CodeGraph, "reset graph store", err)
		}
		b.mu.Lock()
		b.graph, b.index, b.modules = depgraph.New()
		b.elements = make(map[canonical.ID]*lazy.Element[Artifact])
		b.cyclic = make(map[canonical.ID]*CycleError)
		b.mu.Unlock()
	}

	current := tracker.Scan(paths)
	diff := tracker.DetectChanges(prev, current)
	removed := b.removedFiles(paths, diff.Removed)
	report.FilesRemoved = len(removed)

	changed := append(append([]string(nil), diff.Added...), diff.Updated...)
	sort.Strings(changed)
	report.FilesAnalyzed = len(changed)

	results := b.analyzeAll(ctx, changed, pred)
	if ctx.Err() != nil {
		return nil, buildErr(CodeParse, "analyze", ctx.Err())
	}

	fresh := make(map[string][]parser.Definition, len(results))
	for _, res := range results {
		if res.err != nil {
			// Recoverable: keep the file's prior definitions and drop
			// its tracker entry so the next build retries it.
			b.log.Warn("analysis failed", "file", res.path, "error", res.err)
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("analysis failed for %s: %v", res.path, res.err))
			delete(current.Files, res.path)
			continue
		}
		fresh[res.path] = res.defs
	}

	patch, warnings := b.assemblePatch(removed, fresh)
	report.Warnings = append(report.Warnings, warnings...)

	b.applyPatch(patch)
	if err := b.store.ApplyPatch(patch); err != nil {
		return nil, buildErr(CodeGraph, "persist graph patch", err)
	}

	if err := b.evaluateAll(ctx); err != nil {
		return nil, err
	}

	if err := b.track.Persist(current); err != nil {
		return nil, buildErr(CodePersist, "persist tracker state", err)
	}
	if err := b.store.SetMetadata(configHashKey, b.cfg.Hash()); err != nil {
		return nil, buildErr(CodePersist, "persist config fingerprint", err)
	}
	b.fullRebuild = false

	b.mu.Lock()
	report.Definitions = len(b.graph)
	b.mu.Unlock()
	report.Artifacts = b.collectArtifacts()

	hits, misses := b.stats.Snapshot()
	report.Cache = CacheStats{Hits: hits - hitsBefore, Misses: misses - missesBefore}
	report.Duration = time.Since(start)

	b.log.Info("build finished",
		"scanned", report.FilesScanned,
		"analyzed", report.FilesAnalyzed,
		"definitions", report.Definitions,
		"hits", report.Cache.Hits,
		"misses", report.Cache.Misses,
		"duration", report.Duration)
	return report, nil
}

// removedFiles merges the tracker diff with graph files the scan no
// longer sees. The tracker alone is not enough: a file whose entry was
// dropped after a failed parse is in neither the previous nor the
// current state, so its later deletion never shows up in the diff, yet
// its definitions must still go.
func (b *Builder) removedFiles(scanned []string, diffRemoved []string) []string {
	present := make(map[string]struct{}, len(scanned))
	for _, p := range scanned {
		present[canonical.NormalizePath(p)] = struct{}{}
	}
	gone := make(map[string]struct{}, len(diffRemoved))
	for _, p := range diffRemoved {
		gone[p] = struct{}{}
	}

	b.mu.Lock()
	for path := range b.index {
		if _, ok := present[path]; !ok {
			gone[path] = struct{}{}
		}
	}
	b.mu.Unlock()

	removed := make([]string, 0, len(gone))
	for p := range gone {
		removed = append(removed, p)
	}
	sort.Strings(removed)
	return removed
}

// analysisResult carries one file's parse outcome out of the worker
// pool.
type analysisResult struct {
	path string
	defs []parser.Definition
	err  error
}

// analyzeAll parses the changed files on a worker pool. Parsing is
// CPU-bound and per-file independent; each worker owns its parser
// state.
func (b *Builder) analyzeAll(ctx context.Context, paths []string, pred parser.ImportPredicate) []analysisResult {
	if len(paths) == 0 {
		return nil
	}

	numWorkers := min(runtime.NumCPU(), len(paths))
	if numWorkers < 1 {
		numWorkers = 1
	}

	workCh := make(chan string, len(paths))
	for _, p := range paths {
		workCh <- p
	}
	close(workCh)

	resultCh := make(chan analysisResult, len(paths))
	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range workCh {
				if ctx.Err() != nil {
					return
				}
				resultCh <- analyzeOne(path, pred)
			}
		}()
	}
	go func() {
		wg.Wait()
		close(resultCh)
	}()

	var results []analysisResult
	for res := range resultCh {
		results = append(results, res)
	}
	return results
}

func analyzeOne(path string, pred parser.ImportPredicate) analysisResult {
	source, err := os.ReadFile(path)
	if err != nil {
		return analysisResult{path: path, err: err}
	}
	defs, err := parser.ForFile(path).Analyze(path, source, pred)
	return analysisResult{path: path, defs: defs, err: err}
}

// assemblePatch turns removed files and fresh analysis results into one
// graph patch, resolving raw dependency references to canonical IDs.
func (b *Builder) assemblePatch(removed []string, fresh map[string][]parser.Definition) (*depgraph.Patch, []string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	patch := &depgraph.Patch{
		RemovedModules:  append([]string(nil), removed...),
		ModuleSummaries: make(map[string]depgraph.ModuleSummary, len(fresh)),
	}
	var warnings []string

	files := make([]string, 0, len(fresh))
	for path := range fresh {
		files = append(files, path)
	}
	sort.Strings(files)

	for _, path := range files {
		defs := fresh[path]

		freshIDs := make(map[canonical.ID]struct{}, len(defs))
		for _, def := range defs {
			freshIDs[canonical.Encode(path, def.AstPath)] = struct{}{}
		}
		for _, id := range depgraph.IDsForFile(b.index, path) {
			if _, ok := freshIDs[id]; !ok {
				patch.RemovedNodes = append(patch.RemovedNodes, id)
			}
		}

		summary := depgraph.ModuleSummary{Exports: make(map[string]canonical.ID)}
		for _, def := range defs {
			if def.IsExported && def.ExportBinding != "" {
				summary.Exports[def.ExportBinding] = canonical.Encode(path, def.AstPath)
			}
		}
		patch.ModuleSummaries[path] = summary

		bindings := localBindings(path, defs)
		for _, def := range defs {
			id := canonical.Encode(path, def.AstPath)
			deps, w := b.resolveRefs(path, def, bindings, fresh)
			warnings = append(warnings, w...)
			patch.UpsertNodes = append(patch.UpsertNodes, &depgraph.Node{
				ID:           id,
				FilePath:     path,
				Dependencies: deps,
				Summary: depgraph.Summary{
					Kind:          string(classifyMember(def.Member)),
					Expression:    def.Expression,
					IsTopLevel:    def.IsTopLevel,
					IsExported:    def.IsExported,
					ExportBinding: def.ExportBinding,
				},
			})
		}
	}

	return patch, warnings
}

// localBindings maps a file's top-level binding names to definition IDs.
func localBindings(path string, defs []parser.Definition) map[string]canonical.ID {
	bindings := make(map[string]canonical.ID)
	for _, def := range defs {
		if def.IsTopLevel && def.Binding != "" {
			if _, ok := bindings[def.Binding]; !ok {
				bindings[def.Binding] = canonical.Encode(path, def.AstPath)
			}
		}
	}
	return bindings
}

// resolveRefs maps one definition's raw references to canonical IDs.
// Same-module references resolve against top-level bindings; relative
// imports resolve to the target file's export bindings. References into
// external packages are not project definitions and produce no edge.
// Caller holds b.mu.
func (b *Builder) resolveRefs(path string, def parser.Definition,
	bindings map[string]canonical.ID, fresh map[string][]parser.Definition) ([]canonical.ID, []string) {

	var deps []canonical.ID
	var warnings []string
	seen := make(map[canonical.ID]struct{})

	add := func(id canonical.ID) {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			deps = append(deps, id)
		}
	}

	for _, ref := range def.DependencyRefs {
		switch {
		case ref.Source == "":
			id, ok := bindings[ref.Name]
			if !ok {
				warnings = append(warnings, fmt.Sprintf(
					"%s: %s references %q, which is not a definition in this module",
					path, def.AstPath, ref.Name))
				continue
			}
			if id != canonical.Encode(path, def.AstPath) {
				add(id)
			}

		case strings.HasPrefix(ref.Source, "."):
			target, ok := b.resolveRelativeImport(path, ref.Source, fresh)
			if !ok {
				warnings = append(warnings, fmt.Sprintf(
					"%s: %s imports %q from %q, which resolves to no tracked file",
					path, def.AstPath, ref.Name, ref.Source))
				continue
			}
			id, ok := b.exportOf(target, ref.Name, fresh)
			if !ok {
				warnings = append(warnings, fmt.Sprintf(
					"%s: %s imports %q from %q, but %s exports no such definition",
					path, def.AstPath, ref.Name, ref.Source, target))
				continue
			}
			add(id)

		default:
			// A bare-specifier import; its definitions live outside the
			// project and are the package's own concern.
		}
	}
	return deps, warnings
}

// resolveRelativeImport maps a relative specifier to a tracked file,
// trying the source extensions and index files when the specifier is
// extensionless. Caller holds b.mu.
func (b *Builder) resolveRelativeImport(fromFile, source string, fresh map[string][]parser.Definition) (string, bool) {
	base := canonical.NormalizePath(filepath.Join(filepath.Dir(fromFile), source))

	known := func(p string) bool {
		if _, ok := fresh[p]; ok {
			return true
		}
		_, ok := b.index[p]
		return ok
	}

	if resolver.Supported(base) {
		return base, known(base)
	}
	for _, ext := range []string{".ts", ".tsx", ".js", ".jsx"} {
		if cand := base + ext; known(cand) {
			return cand, true
		}
	}
	for _, ext := range []string{".ts", ".tsx", ".js", ".jsx"} {
		if cand := base + "/index" + ext; known(cand) {
			return cand, true
		}
	}
	return "", false
}

// exportOf finds the definition a file exports under the given binding.
// Freshly analyzed files are consulted directly; unchanged files resolve
// through their module summary. Caller holds b.mu.
func (b *Builder) exportOf(path, binding string, fresh map[string][]parser.Definition) (canonical.ID, bool) {
	if defs, ok := fresh[path]; ok {
		for _, def := range defs {
			if def.IsExported && def.ExportBinding == binding {
				return canonical.Encode(path, def.AstPath), true
			}
		}
		return "", false
	}
	id, ok := b.modules[path].Exports[binding]
	return id, ok
}

// applyPatch applies the patch to the in-memory graph and keeps the
// element map consistent: removed definitions lose their element and
// upserted ones get a fresh, unevaluated element. Untouched elements
// keep their cached artifacts.
func (b *Builder) applyPatch(patch *depgraph.Patch) {
	b.mu.Lock()
	defer b.mu.Unlock()

	invalidated := make(map[canonical.ID]struct{})
	for _, path := range patch.RemovedModules {
		for _, id := range depgraph.IDsForFile(b.index, path) {
			invalidated[id] = struct{}{}
		}
	}
	for _, id := range patch.RemovedNodes {
		invalidated[id] = struct{}{}
	}

	depgraph.ApplyPatch(b.graph, b.index, b.modules, patch)

	for id := range invalidated {
		delete(b.elements, id)
	}
	for _, node := range patch.UpsertNodes {
		b.elements[node.ID] = b.newElement(node.ID)
	}

	b.refreshCycles(patch)
}

// refreshCycles recomputes reference cycles and swaps elements for
// definitions whose cycle membership changed: members get an element
// that fails with a CycleError, former members get a normal element
// back. Caller holds b.mu during builds; New calls it before the
// builder escapes.
func (b *Builder) refreshCycles(_ *depgraph.Patch) {
	detected := findCycles(b.graph)

	for id := range b.cyclic {
		if _, still := detected[id]; !still {
			if _, exists := b.graph[id]; exists {
				b.elements[id] = b.newElement(id)
			}
			delete(b.cyclic, id)
		}
	}
	for id, cycle := range detected {
		if prev, ok := b.cyclic[id]; ok && sameCycle(prev, cycle) {
			continue
		}
		b.cyclic[id] = cycle
		b.elements[id] = b.newCycleElement(id, cycle)
	}
}

func sameCycle(a, b *CycleError) bool {
	if len(a.Members) != len(b.Members) {
		return false
	}
	for i := range a.Members {
		if a.Members[i] != b.Members[i] {
			return false
		}
	}
	return true
}

// newElement builds the lazy element for one definition. The factory
// and the dependency thunk both re-read the graph at evaluation time,
// so an element created before a later patch still evaluates against
// current state.
func (b *Builder) newElement(id canonical.ID) *lazy.Element[Artifact] {
	return lazy.NewElement[Artifact](string(id),
		func(ctx context.Context) lazy.Outcome[Artifact] {
			b.mu.Lock()
			node, ok := b.graph[id]
			b.mu.Unlock()
			if !ok {
				return lazy.Fail[Artifact](&BuildError{
					Code: CodeEval, Stage: "evaluate", ID: id,
					Err: fmt.Errorf("definition vanished from graph"),
				})
			}
			return lazy.Of(artifactFromNode(node))
		},
		lazy.WithDeps[Artifact](func() []lazy.Evaluable {
			b.mu.Lock()
			defer b.mu.Unlock()
			node, ok := b.graph[id]
			if !ok {
				return nil
			}
			deps := make([]lazy.Evaluable, 0, len(node.Dependencies))
			for _, dep := range node.Dependencies {
				if el, ok := b.elements[dep]; ok {
					deps = append(deps, el)
				}
			}
			return deps
		}),
		lazy.WithStats[Artifact](b.stats))
}

// newCycleElement replaces a cyclic definition's element. It has no
// dependency thunk; evaluating through the cycle would deadlock the
// protocol, so the failure is produced directly.
func (b *Builder) newCycleElement(id canonical.ID, cycle *CycleError) *lazy.Element[Artifact] {
	return lazy.NewElement[Artifact](string(id),
		func(ctx context.Context) lazy.Outcome[Artifact] {
			return lazy.Fail[Artifact](&BuildError{
				Code: CodeEval, Stage: "evaluate", ID: id, Err: cycle,
			})
		},
		lazy.WithStats[Artifact](b.stats))
}

func artifactFromNode(node *depgraph.Node) Artifact {
	return Artifact{
		ID:            node.ID,
		FilePath:      node.FilePath,
		AstPath:       node.ID.AstPath(),
		Kind:          ElementKind(node.Summary.Kind),
		Expression:    node.Summary.Expression,
		IsTopLevel:    node.Summary.IsTopLevel,
		IsExported:    node.Summary.IsExported,
		ExportBinding: node.Summary.ExportBinding,
		Dependencies:  append([]canonical.ID(nil), node.Dependencies...),
	}
}

// evaluateAll drives every element to completion in lexical ID order.
// Any evaluation failure is fatal for the build.
func (b *Builder) evaluateAll(ctx context.Context) error {
	type pending struct {
		id canonical.ID
		el *lazy.Element[Artifact]
	}
	b.mu.Lock()
	ids := depgraph.SortedIDs(b.graph)
	work := make([]pending, 0, len(ids))
	for _, id := range ids {
		if el, ok := b.elements[id]; ok {
			work = append(work, pending{id: id, el: el})
		}
	}
	b.mu.Unlock()

	for _, p := range work {
		if _, err := p.el.Get(ctx); err != nil {
			var berr *BuildError
			if errors.As(err, &berr) {
				return berr
			}
			return &BuildError{Code: CodeEval, Stage: "evaluate", ID: p.id, Err: err}
		}
	}
	return nil
}

// collectArtifacts snapshots every cached artifact in lexical ID order.
func (b *Builder) collectArtifacts() []Artifact {
	b.mu.Lock()
	ids := depgraph.SortedIDs(b.graph)
	els := make([]*lazy.Element[Artifact], 0, len(ids))
	for _, id := range ids {
		if el, ok := b.elements[id]; ok {
			els = append(els, el)
		}
	}
	b.mu.Unlock()

	artifacts := make([]Artifact, 0, len(els))
	for _, el := range els {
		if a, ok := el.Peek(); ok {
			artifacts = append(artifacts, a)
		}
	}
	return artifacts
}

// Artifact returns one definition's artifact, evaluating it (and its
// dependency chain) if needed.
func (b *Builder) Artifact(ctx context.Context, id canonical.ID) (Artifact, error) {
	b.mu.Lock()
	el, ok := b.elements[id]
	b.mu.Unlock()
	if !ok {
		return Artifact{}, &BuildError{Code: CodeEval, Stage: "lookup", ID: id,
			Err: fmt.Errorf("unknown definition")}
	}
	return el.Get(ctx)
}

// ArtifactSync returns one definition's artifact without blocking. It
// fails with an error wrapping lazy.ErrWouldSuspend when evaluation
// would have to wait on asynchronous work.
func (b *Builder) ArtifactSync(id canonical.ID) (Artifact, error) {
	b.mu.Lock()
	el, ok := b.elements[id]
	b.mu.Unlock()
	if !ok {
		return Artifact{}, &BuildError{Code: CodeEval, Stage: "lookup", ID: id,
			Err: fmt.Errorf("unknown definition")}
	}
	return el.GetSync()
}

// findCycles returns, for every definition on a reference cycle, the
// cycle it belongs to. Strongly connected components of size one only
// count with a self edge.
func findCycles(graph depgraph.Graph) map[canonical.ID]*CycleError {
	// Tarjan over the dependency edges, with neighbor order fixed so
	// detection is deterministic.
	type frame struct {
		index, lowlink int
		onStack        bool
	}
	frames := make(map[canonical.ID]*frame, len(graph))
	var stack []canonical.ID
	next := 0
	cycles := make(map[canonical.ID]*CycleError)

	var strongconnect func(id canonical.ID)
	strongconnect = func(id canonical.ID) {
		f := &frame{index: next, lowlink: next, onStack: true}
		frames[id] = f
		next++
		stack = append(stack, id)

		node := graph[id]
		for _, dep := range node.Dependencies {
			if _, ok := graph[dep]; !ok {
				continue
			}
			df, seen := frames[dep]
			if !seen {
				strongconnect(dep)
				if frames[dep].lowlink < f.lowlink {
					f.lowlink = frames[dep].lowlink
				}
			} else if df.onStack && df.index < f.lowlink {
				f.lowlink = df.index
			}
		}

		if f.lowlink == f.index {
			var members []canonical.ID
			for {
				top := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				frames[top].onStack = false
				members = append(members, top)
				if top == id {
					break
				}
			}
			if len(members) > 1 || selfEdge(graph[id]) {
				sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })
				cycle := &CycleError{Members: members}
				for _, m := range members {
					cycles[m] = cycle
				}
			}
		}
	}

	for _, id := range depgraph.SortedIDs(graph) {
		if _, seen := frames[id]; !seen {
			strongconnect(id)
		}
	}
	return cycles
}

func selfEdge(node *depgraph.Node) bool {
	for _, dep := range node.Dependencies {
		if dep == node.ID {
			return true
		}
	}
	return false
}

package parser

import (
	"context"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/soda-gql/sodabuild/internal/astpath"
)

// importBinding records one local name introduced by an import.
type importBinding struct {
	local  string
	source string
}

// rawRef is an identifier occurrence inside a factory body, before it
// is resolved against the module's bindings.
type rawRef struct {
	name   string
	offset uint32
}

// pendingDef is a definition captured mid-walk; dependency refs are
// resolved once the whole module has been seen.
type pendingDef struct {
	def  Definition
	refs []rawRef
}

// walker drives one module analysis. All naming decisions are delegated
// to the astpath.Assigner so that both grammars produce identical
// output.
type walker struct {
	source   []byte
	backend  string
	assigner *astpath.Assigner

	isEntrypoint ImportPredicate
	// dslBindings are local names bound to a qualifying import.
	dslBindings map[string]bool
	// imports are all other import bindings, candidate cross-file refs.
	imports map[string]importBinding
	// exports maps top-level local names to their exported names.
	exports map[string]string

	pending []pendingDef
}

// analyze parses source with the given grammar and runs the shared
// walk.
func analyze(backend string, lang *sitter.Language, filePath string, source []byte, isEntrypoint ImportPredicate) ([]Definition, error) {
	p := sitter.NewParser()
	defer p.Close()
	p.SetLanguage(lang)

	tree, err := p.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return nil, &ParseError{FilePath: filePath, Backend: backend, Err: err}
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, &ParseError{FilePath: filePath, Backend: backend}
	}

	w := &walker{
		source:       source,
		backend:      backend,
		assigner:     astpath.New(),
		isEntrypoint: isEntrypoint,
		dslBindings:  make(map[string]bool),
		imports:      make(map[string]importBinding),
		exports:      make(map[string]string),
	}
	w.collectModuleBindings(root)
	w.walk(root)
	return w.resolveRefs(), nil
}

// normalKind folds grammar-specific node kinds onto shared names. The
// typescript and javascript grammars mostly agree; the anonymous
// function expression kind is the known divergence.
func normalKind(kind string) string {
	switch kind {
	case "function_expression", "generator_function":
		return "function"
	case "variable_declaration":
		return "lexical_declaration"
	}
	return kind
}

func (w *walker) text(n *sitter.Node) string {
	return n.Content(w.source)
}

// stringValue unquotes a string literal node.
func stringValue(s string) string {
	return strings.Trim(s, "\"'`")
}

// collectModuleBindings scans the module's top-level statements for
// import bindings, ESM named exports, and CommonJS export assignments.
// Default exports and re-exports contribute nothing: they do not mark a
// definition exported.
func (w *walker) collectModuleBindings(root *sitter.Node) {
	for i := 0; i < int(root.NamedChildCount()); i++ {
		stmt := root.NamedChild(i)
		switch normalKind(stmt.Type()) {
		case "import_statement":
			w.collectImport(stmt)
		case "export_statement":
			w.collectExport(stmt)
		case "expression_statement":
			if expr := stmt.NamedChild(0); expr != nil && expr.Type() == "assignment_expression" {
				if name := commonJSExportName(expr.ChildByFieldName("left"), w.source); name != "" {
					w.exports[name] = name
				}
			}
		}
	}
}

func (w *walker) collectImport(stmt *sitter.Node) {
	srcNode := stmt.ChildByFieldName("source")
	if srcNode == nil {
		return
	}
	specifier := stringValue(w.text(srcNode))
	qualifies := w.isEntrypoint != nil && w.isEntrypoint(specifier)

	bind := func(local string) {
		if local == "" {
			return
		}
		if qualifies {
			w.dslBindings[local] = true
		} else {
			w.imports[local] = importBinding{local: local, source: specifier}
		}
	}

	for i := 0; i < int(stmt.NamedChildCount()); i++ {
		clause := stmt.NamedChild(i)
		if clause.Type() != "import_clause" {
			continue
		}
		for j := 0; j < int(clause.NamedChildCount()); j++ {
			spec := clause.NamedChild(j)
			switch spec.Type() {
			case "identifier":
				// Default import: import gql from "..."
				bind(w.text(spec))
			case "namespace_import":
				// import * as gql from "..."
				for k := 0; k < int(spec.NamedChildCount()); k++ {
					if id := spec.NamedChild(k); id.Type() == "identifier" {
						bind(w.text(id))
					}
				}
			case "named_imports":
				for k := 0; k < int(spec.NamedChildCount()); k++ {
					is := spec.NamedChild(k)
					if is.Type() != "import_specifier" {
						continue
					}
					local := ""
					if alias := is.ChildByFieldName("alias"); alias != nil {
						local = w.text(alias)
					} else if name := is.ChildByFieldName("name"); name != nil {
						local = w.text(name)
					}
					bind(local)
				}
			}
		}
	}
}

func (w *walker) collectExport(stmt *sitter.Node) {
	// Re-exports (export ... from "mod") are treated as not-exported.
	if stmt.ChildByFieldName("source") != nil {
		return
	}

	if decl := stmt.ChildByFieldName("declaration"); decl != nil {
		switch normalKind(decl.Type()) {
		case "lexical_declaration":
			for i := 0; i < int(decl.NamedChildCount()); i++ {
				d := decl.NamedChild(i)
				if d.Type() != "variable_declarator" {
					continue
				}
				if name := d.ChildByFieldName("name"); name != nil && name.Type() == "identifier" {
					w.exports[w.text(name)] = w.text(name)
				}
			}
		case "function_declaration", "class_declaration":
			if name := decl.ChildByFieldName("name"); name != nil {
				w.exports[w.text(name)] = w.text(name)
			}
		}
		return
	}

	// export { a, b as c }
	for i := 0; i < int(stmt.NamedChildCount()); i++ {
		clause := stmt.NamedChild(i)
		if clause.Type() != "export_clause" {
			continue
		}
		for j := 0; j < int(clause.NamedChildCount()); j++ {
			spec := clause.NamedChild(j)
			if spec.Type() != "export_specifier" {
				continue
			}
			name := spec.ChildByFieldName("name")
			if name == nil {
				continue
			}
			local := w.text(name)
			exported := local
			if alias := spec.ChildByFieldName("alias"); alias != nil {
				exported = w.text(alias)
			}
			w.exports[local] = exported
		}
	}
}

// commonJSExportName extracts NAME from exports.NAME or
// module.exports.NAME assignment targets.
func commonJSExportName(left *sitter.Node, source []byte) string {
	if left == nil || left.Type() != "member_expression" {
		return ""
	}
	obj := left.ChildByFieldName("object")
	prop := left.ChildByFieldName("property")
	if obj == nil || prop == nil || prop.Type() != "property_identifier" {
		return ""
	}
	switch obj.Type() {
	case "identifier":
		if obj.Content(source) == "exports" {
			return prop.Content(source)
		}
	case "member_expression":
		inner := obj.ChildByFieldName("object")
		innerProp := obj.ChildByFieldName("property")
		if inner != nil && inner.Type() == "identifier" && inner.Content(source) == "module" &&
			innerProp != nil && innerProp.Content(source) == "exports" {
			return prop.Content(source)
		}
	}
	return ""
}

// walk traverses every scope-introducing construct for path assignment.
// A qualifying call registers a definition and is not descended into:
// its factory body belongs to the evaluation phase, and descending
// would misidentify nested DSL-shaped calls as siblings.
func (w *walker) walk(n *sitter.Node) {
	switch normalKind(n.Type()) {
	case "variable_declarator":
		if name := n.ChildByFieldName("name"); name != nil && name.Type() == "identifier" {
			w.assigner.EnterNamed(astpath.ScopeVariable, w.text(name))
			w.walkChildren(n)
			w.assigner.Exit()
			return
		}

	case "function_declaration":
		if name := n.ChildByFieldName("name"); name != nil {
			w.assigner.EnterNamed(astpath.ScopeFunction, w.text(name))
			w.walkChildren(n)
			w.assigner.Exit()
			return
		}

	case "class_declaration":
		if name := n.ChildByFieldName("name"); name != nil {
			w.assigner.EnterNamed(astpath.ScopeClass, w.text(name))
			w.walkChildren(n)
			w.assigner.Exit()
			return
		}

	case "method_definition":
		if name := n.ChildByFieldName("name"); name != nil && name.Type() == "property_identifier" {
			w.assigner.EnterNamed(astpath.ScopeMethod, w.text(name))
			w.walkChildren(n)
			w.assigner.Exit()
			return
		}

	case "pair":
		if key := n.ChildByFieldName("key"); key != nil {
			var name string
			switch key.Type() {
			case "property_identifier":
				name = w.text(key)
			case "string":
				name = stringValue(w.text(key))
			}
			if name != "" {
				w.assigner.EnterNamed(astpath.ScopeProperty, name)
				w.walkChildren(n)
				w.assigner.Exit()
				return
			}
		}

	case "arrow_function":
		w.assigner.EnterAnonymous(astpath.ScopeArrow)
		w.walkChildren(n)
		w.assigner.Exit()
		return

	case "function":
		if name := n.ChildByFieldName("name"); name != nil {
			w.assigner.EnterNamed(astpath.ScopeFunction, w.text(name))
		} else {
			w.assigner.EnterAnonymous(astpath.ScopeFuncExpr)
		}
		w.walkChildren(n)
		w.assigner.Exit()
		return

	case "assignment_expression":
		if name := commonJSExportName(n.ChildByFieldName("left"), w.source); name != "" {
			w.assigner.EnterNamed(astpath.ScopeVariable, name)
			w.walkChildren(n)
			w.assigner.Exit()
			return
		}

	case "call_expression":
		if w.tryCapture(n) {
			return
		}
	}

	w.walkChildren(n)
}

func (w *walker) walkChildren(n *sitter.Node) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		w.walk(n.NamedChild(i))
	}
}

// tryCapture recognizes NAMESPACE.MEMBER(factory) where NAMESPACE
// resolves to a DSL import binding and factory is a single-parameter
// function literal. Returns true when a definition was captured.
func (w *walker) tryCapture(call *sitter.Node) bool {
	callee := call.ChildByFieldName("function")
	if callee == nil || callee.Type() != "member_expression" {
		return false
	}
	prop := callee.ChildByFieldName("property")
	if prop == nil || prop.Type() != "property_identifier" {
		return false
	}

	// The object chain must terminate in an identifier bound by a
	// qualifying import. Resolution runs through import tracking, so
	// aliased bindings work and lookalike locals do not.
	base := callee.ChildByFieldName("object")
	for base != nil && base.Type() == "member_expression" {
		base = base.ChildByFieldName("object")
	}
	if base == nil || base.Type() != "identifier" || !w.dslBindings[w.text(base)] {
		return false
	}

	args := call.ChildByFieldName("arguments")
	if args == nil {
		return false
	}
	actual := nonCommentChildren(args)
	if len(actual) != 1 {
		return false
	}
	factory := actual[0]
	if !isSingleParamFunction(factory) {
		return false
	}

	path, topLevel := w.assigner.Found()
	binding := ""
	if topLevel {
		binding = w.assigner.TopLevelBinding()
	}
	exportBinding := ""
	if binding != "" {
		exportBinding = w.exports[binding]
	}

	w.pending = append(w.pending, pendingDef{
		def: Definition{
			AstPath:       path,
			IsTopLevel:    topLevel,
			IsExported:    exportBinding != "",
			ExportBinding: exportBinding,
			Binding:       binding,
			Member:        w.text(prop),
			Expression:    w.text(call),
		},
		refs: collectFactoryRefs(factory, w.source),
	})
	return true
}

// nonCommentChildren returns n's named children with comments filtered
// out. Comments are named extras in every grammar, so a raw
// NamedChildCount would count them against argument and parameter
// arity.
func nonCommentChildren(n *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c.Type() != "comment" {
			out = append(out, c)
		}
	}
	return out
}

// isSingleParamFunction accepts arrow functions and function
// expressions with exactly one parameter, including a destructuring
// pattern parameter.
func isSingleParamFunction(n *sitter.Node) bool {
	switch normalKind(n.Type()) {
	case "arrow_function":
		if p := n.ChildByFieldName("parameter"); p != nil {
			return true // x => ... shorthand
		}
		if ps := n.ChildByFieldName("parameters"); ps != nil {
			return len(nonCommentChildren(ps)) == 1
		}
		return false
	case "function":
		if ps := n.ChildByFieldName("parameters"); ps != nil {
			return len(nonCommentChildren(ps)) == 1
		}
		return false
	}
	return false
}

// collectFactoryRefs gathers identifier occurrences inside the factory
// body, excluding the factory's own parameter names. Property
// identifiers are a different node kind and are naturally excluded.
func collectFactoryRefs(factory *sitter.Node, source []byte) []rawRef {
	params := make(map[string]bool)
	if p := factory.ChildByFieldName("parameter"); p != nil {
		collectIdentifierTexts(p, source, params)
	}
	if ps := factory.ChildByFieldName("parameters"); ps != nil {
		collectIdentifierTexts(ps, source, params)
	}

	body := factory.ChildByFieldName("body")
	if body == nil {
		return nil
	}

	var refs []rawRef
	var visit func(n *sitter.Node)
	visit = func(n *sitter.Node) {
		if n.Type() == "identifier" {
			name := n.Content(source)
			if !params[name] {
				refs = append(refs, rawRef{name: name, offset: n.StartByte()})
			}
			return
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			visit(n.NamedChild(i))
		}
	}
	visit(body)
	return refs
}

// collectIdentifierTexts records every identifier-shaped leaf under n,
// covering plain and destructured parameters.
func collectIdentifierTexts(n *sitter.Node, source []byte, out map[string]bool) {
	switch n.Type() {
	case "identifier", "shorthand_property_identifier_pattern", "shorthand_property_identifier":
		out[n.Content(source)] = true
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		collectIdentifierTexts(n.NamedChild(i), source, out)
	}
}

// resolveRefs turns raw identifier occurrences into DependencyRefs
// against the module's bindings: imports become cross-file refs, other
// definitions' top-level bindings become same-module refs. Everything
// else is discarded. Refs keep first-occurrence order.
func (w *walker) resolveRefs() []Definition {
	bindingOwned := make(map[string]bool)
	for _, p := range w.pending {
		if p.def.Binding != "" {
			bindingOwned[p.def.Binding] = true
		}
	}

	defs := make([]Definition, 0, len(w.pending))
	for _, p := range w.pending {
		sort.SliceStable(p.refs, func(i, j int) bool { return p.refs[i].offset < p.refs[j].offset })
		seen := make(map[string]bool)
		var refs []DependencyRef
		for _, r := range p.refs {
			if seen[r.name] {
				continue
			}
			if imp, ok := w.imports[r.name]; ok {
				seen[r.name] = true
				refs = append(refs, DependencyRef{Name: r.name, Source: imp.source})
				continue
			}
			if bindingOwned[r.name] && r.name != p.def.Binding {
				seen[r.name] = true
				refs = append(refs, DependencyRef{Name: r.name})
			}
		}
		p.def.DependencyRefs = refs
		defs = append(defs, p.def)
	}
	return defs
}

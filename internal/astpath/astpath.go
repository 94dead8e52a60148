// Package astpath assigns deterministic dotted paths to DSL definitions
// inside a module. It is deliberately parser-agnostic: a backend walks
// its own syntax tree and reports scope entries, scope exits, and found
// definitions; this package owns every naming rule. Keeping the rules in
// one place is what makes two parser backends agree byte-for-byte on
// every path.
package astpath

import (
	"fmt"
	"strings"
)

// ScopeKind describes what introduced a scope segment. Named scopes use
// their declared identifier; anonymous scopes get a generated name whose
// shape depends on the kind.
type ScopeKind int

const (
	ScopeVariable ScopeKind = iota
	ScopeFunction
	ScopeClass
	ScopeMethod
	ScopeProperty
	ScopeArrow
	ScopeFuncExpr
)

func (k ScopeKind) String() string {
	switch k {
	case ScopeVariable:
		return "variable"
	case ScopeFunction:
		return "function"
	case ScopeClass:
		return "class"
	case ScopeMethod:
		return "method"
	case ScopeProperty:
		return "property"
	case ScopeArrow:
		return "arrow"
	case ScopeFuncExpr:
		return "function-expression"
	}
	return "unknown"
}

type frame struct {
	segment string
	// anonCounts numbers the anonymous children of this scope. Counters
	// are local to the immediate enclosing scope, so the first arrow
	// inside any function is always _arrow_0 regardless of what came
	// before elsewhere in the module.
	anonCounts map[ScopeKind]int
}

// Assigner maintains the active scope chain and hands out disambiguated
// paths for definitions in source order.
type Assigner struct {
	stack []frame
	root  frame
	// pathCounts tracks how many definitions already claimed each base
	// path. The first keeps the bare path; later collisions get #2, #3…
	// purely by source order.
	pathCounts map[string]int
}

// New returns an empty Assigner positioned at module root.
func New() *Assigner {
	return &Assigner{
		root:       frame{anonCounts: make(map[ScopeKind]int)},
		pathCounts: make(map[string]int),
	}
}

// Depth reports how many scopes are currently open.
func (a *Assigner) Depth() int { return len(a.stack) }

// TopLevelBinding returns the outermost scope segment, or "" at module
// root. For a definition that is the direct initializer of a top-level
// declaration this is the declared binding name.
func (a *Assigner) TopLevelBinding() string {
	if len(a.stack) == 0 {
		return ""
	}
	return a.stack[0].segment
}

// EnterNamed pushes a scope introduced by a declared name: a variable
// declarator, a named function or class, a method, or an object-literal
// property.
func (a *Assigner) EnterNamed(kind ScopeKind, name string) {
	a.stack = append(a.stack, frame{segment: name, anonCounts: make(map[ScopeKind]int)})
}

// EnterAnonymous pushes a scope with a generated segment name. Arrows
// become _arrow_N and anonymous function expressions become function#N,
// with N counted per immediate enclosing scope.
func (a *Assigner) EnterAnonymous(kind ScopeKind) {
	parent := &a.root
	if len(a.stack) > 0 {
		parent = &a.stack[len(a.stack)-1]
	}
	n := parent.anonCounts[kind]
	parent.anonCounts[kind]++

	var segment string
	switch kind {
	case ScopeArrow:
		segment = fmt.Sprintf("_arrow_%d", n)
	default:
		segment = fmt.Sprintf("function#%d", n)
	}
	a.stack = append(a.stack, frame{segment: segment, anonCounts: make(map[ScopeKind]int)})
}

// Exit pops the innermost scope. Unbalanced exits are programmer errors
// in the backend walk and panic.
func (a *Assigner) Exit() {
	if len(a.stack) == 0 {
		panic("astpath: scope exit without matching enter")
	}
	a.stack = a.stack[:len(a.stack)-1]
}

// Found registers a definition at the current position and returns its
// disambiguated path together with whether the position is top-level.
// The path is the dot-joined active segment chain; a qualifying call
// that is the direct initializer of the current scope therefore ends at
// that scope's own name.
func (a *Assigner) Found() (path string, topLevel bool) {
	segs := make([]string, len(a.stack))
	for i, f := range a.stack {
		segs[i] = f.segment
	}
	base := strings.Join(segs, ".")

	n := a.pathCounts[base]
	a.pathCounts[base]++
	if n == 0 {
		path = base
	} else {
		path = fmt.Sprintf("%s#%d", base, n+1)
	}
	return path, len(a.stack) <= 1
}

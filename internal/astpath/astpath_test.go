package astpath

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFound_TopLevelBinding(t *testing.T) {
	a := New()
	a.EnterNamed(ScopeVariable, "userFragment")
	path, top := a.Found()
	a.Exit()

	assert.Equal(t, "userFragment", path)
	assert.True(t, top)
}

func TestFound_ModuleRootCall(t *testing.T) {
	a := New()
	path, top := a.Found()
	assert.Equal(t, "", path)
	assert.True(t, top)
}

func TestFound_NestedScopeChain(t *testing.T) {
	a := New()
	a.EnterNamed(ScopeFunction, "factory")
	a.EnterNamed(ScopeVariable, "fragment1")
	path, top := a.Found()
	assert.Equal(t, "factory.fragment1", path)
	assert.False(t, top)
}

func TestFound_Disambiguation(t *testing.T) {
	// Four qualifying calls colliding pairwise: two top-level and two
	// nested under factory. Suffixes go by source order.
	a := New()

	a.EnterNamed(ScopeVariable, "fragment1")
	p1, _ := a.Found()
	p2, _ := a.Found()
	a.Exit()

	a.EnterNamed(ScopeFunction, "factory")
	a.EnterNamed(ScopeVariable, "fragment2")
	p3, _ := a.Found()
	p4, _ := a.Found()
	a.Exit()
	a.Exit()

	assert.Equal(t, "fragment1", p1)
	assert.Equal(t, "fragment1#2", p2)
	assert.Equal(t, "factory.fragment2", p3)
	assert.Equal(t, "factory.fragment2#2", p4)
}

func TestEnterAnonymous_CounterPerEnclosingScope(t *testing.T) {
	a := New()

	a.EnterNamed(ScopeFunction, "outer")
	a.EnterAnonymous(ScopeArrow)
	p1, _ := a.Found()
	a.Exit()
	a.EnterAnonymous(ScopeArrow)
	p2, _ := a.Found()
	a.Exit()
	a.Exit()

	// A fresh enclosing scope restarts the counter.
	a.EnterNamed(ScopeFunction, "other")
	a.EnterAnonymous(ScopeArrow)
	p3, _ := a.Found()
	a.Exit()
	a.Exit()

	assert.Equal(t, "outer._arrow_0", p1)
	assert.Equal(t, "outer._arrow_1", p2)
	assert.Equal(t, "other._arrow_0", p3)
}

func TestEnterAnonymous_FunctionExpression(t *testing.T) {
	a := New()
	a.EnterAnonymous(ScopeFuncExpr)
	p, _ := a.Found()
	assert.Equal(t, "function#0", p)
}

func TestFound_Determinism(t *testing.T) {
	run := func() []string {
		a := New()
		var paths []string
		a.EnterNamed(ScopeVariable, "x")
		p, _ := a.Found()
		paths = append(paths, p)
		a.EnterAnonymous(ScopeArrow)
		p, _ = a.Found()
		paths = append(paths, p)
		a.Exit()
		a.Exit()
		return paths
	}
	assert.Equal(t, run(), run())
}

func TestExit_Unbalanced(t *testing.T) {
	a := New()
	assert.Panics(t, func() { a.Exit() })
}

func TestTopLevelBinding(t *testing.T) {
	a := New()
	assert.Equal(t, "", a.TopLevelBinding())
	a.EnterNamed(ScopeVariable, "userFragment")
	a.EnterAnonymous(ScopeArrow)
	assert.Equal(t, "userFragment", a.TopLevelBinding())
}

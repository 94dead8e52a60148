package canonical

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	id := Encode("/src/app/queries.ts", "userFragment")
	assert.Equal(t, ID("/src/app/queries.ts::userFragment"), id)
}

func TestEncode_NormalizesSeparators(t *testing.T) {
	id := Encode(`\src\app\queries.ts`, "userFragment")
	assert.Equal(t, ID("/src/app/queries.ts::userFragment"), id)

	id = Encode("/src//app/queries.ts", "q")
	assert.Equal(t, ID("/src/app/queries.ts::q"), id)
}

func TestEncode_Deterministic(t *testing.T) {
	a := Encode("/a/b.ts", "x.y.z")
	b := Encode("/a/b.ts", "x.y.z")
	assert.Equal(t, a, b)
}

func TestEncode_PanicsOnRelativePath(t *testing.T) {
	require.Panics(t, func() { Encode("src/app.ts", "x") })
	require.Panics(t, func() { Encode("./app.ts", "x") })
}

func TestSplit(t *testing.T) {
	id := Encode("/src/a.ts", "outer._arrow_0.frag")
	fp, ap := id.Split()
	assert.Equal(t, "/src/a.ts", fp)
	assert.Equal(t, "outer._arrow_0.frag", ap)
	assert.Equal(t, "/src/a.ts", id.FilePath())
	assert.Equal(t, "outer._arrow_0.frag", id.AstPath())
}

func TestSplit_AstPathContainingSeparator(t *testing.T) {
	// String-literal property keys can put "::" inside a path segment;
	// the boundary is always the first occurrence.
	id := Encode("/src/a.ts", "defs.ns::user.frag")
	fp, ap := id.Split()
	assert.Equal(t, "/src/a.ts", fp)
	assert.Equal(t, "defs.ns::user.frag", ap)
	assert.Equal(t, "defs.ns::user.frag", id.AstPath())
}

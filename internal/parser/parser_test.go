package parser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func analyzeTS(t *testing.T, source string) []Definition {
	t.Helper()
	defs, err := NewTypeScript().Analyze("/src/mod.ts", []byte(source), entrypointPredicate)
	require.NoError(t, err)
	return defs
}

func TestAnalyze_TopLevelExportedDefinition(t *testing.T) {
	defs := analyzeTS(t, `
import { gql } from "@/graphql-system";
export const userFragment = gql.default(({ model }) => model.User({}));
`)
	require.Len(t, defs, 1)
	d := defs[0]
	assert.Equal(t, "userFragment", d.AstPath)
	assert.True(t, d.IsTopLevel)
	assert.True(t, d.IsExported)
	assert.Equal(t, "userFragment", d.ExportBinding)
	assert.Equal(t, "userFragment", d.Binding)
	assert.Equal(t, "default", d.Member)
	assert.Equal(t, "gql.default(({ model }) => model.User({}))", d.Expression)
}

func TestAnalyze_AliasedImportBinding(t *testing.T) {
	defs := analyzeTS(t, `
import { gql as g } from "@/graphql-system";
const x = g.default((b) => b.q());
`)
	require.Len(t, defs, 1)
	assert.Equal(t, "x", defs[0].AstPath)
}

func TestAnalyze_NamespaceImportBinding(t *testing.T) {
	defs := analyzeTS(t, `
import * as soda from "@/graphql-system";
const x = soda.default((b) => b.q());
`)
	require.Len(t, defs, 1)
}

func TestAnalyze_LookalikeWithoutImportIsIgnored(t *testing.T) {
	// Identity resolves through import tracking, not name matching: a
	// local named gql does not qualify.
	defs := analyzeTS(t, `
const gql = makeFake();
const x = gql.default((b) => b.q());
`)
	assert.Empty(t, defs)
}

func TestAnalyze_NonEntrypointImportIsIgnored(t *testing.T) {
	defs := analyzeTS(t, `
import { gql } from "other-lib";
const x = gql.default((b) => b.q());
`)
	assert.Empty(t, defs)
}

func TestAnalyze_RequiresSingleParamFunctionLiteral(t *testing.T) {
	defs := analyzeTS(t, `
import { gql } from "@/graphql-system";
const a = gql.default(somethingElse);
const b = gql.default((x, y) => x.q(y));
const c = gql.default(() => 1);
const d = gql.default((x) => x.q(), extra);
`)
	assert.Empty(t, defs)
}

func TestAnalyze_ExpressionExcludesTrailingChain(t *testing.T) {
	defs := analyzeTS(t, `
import { gql } from "@/graphql-system";
export const withAttach = gql.default((q) => q.slice()).attach({ eager: true });
`)
	require.Len(t, defs, 1)
	assert.Equal(t, "gql.default((q) => q.slice())", defs[0].Expression)
	assert.Equal(t, "withAttach", defs[0].AstPath)
	assert.True(t, defs[0].IsExported)
}

func TestAnalyze_NoDescentIntoFactoryBody(t *testing.T) {
	// A nested DSL-shaped call inside the factory must not become a
	// sibling definition.
	defs := analyzeTS(t, `
import { gql } from "@/graphql-system";
const outer = gql.default((q) => q.embed(gql.default((r) => r.inner())));
`)
	require.Len(t, defs, 1)
	assert.Equal(t, "outer", defs[0].AstPath)
}

func TestAnalyze_DefaultExportIsNotExported(t *testing.T) {
	defs := analyzeTS(t, `
import { gql } from "@/graphql-system";
const frag = gql.default((q) => q.f());
export default frag;
`)
	require.Len(t, defs, 1)
	assert.False(t, defs[0].IsExported)
	assert.Empty(t, defs[0].ExportBinding)
}

func TestAnalyze_ExportClauseWithAlias(t *testing.T) {
	defs := analyzeTS(t, `
import { gql } from "@/graphql-system";
const frag = gql.default((q) => q.f());
export { frag as publicFrag };
`)
	require.Len(t, defs, 1)
	assert.True(t, defs[0].IsExported)
	assert.Equal(t, "publicFrag", defs[0].ExportBinding)
}

func TestAnalyze_ReExportDoesNotExport(t *testing.T) {
	defs := analyzeTS(t, `
import { gql } from "@/graphql-system";
const frag = gql.default((q) => q.f());
export { frag } from "./elsewhere";
`)
	require.Len(t, defs, 1)
	assert.False(t, defs[0].IsExported)
}

func TestAnalyze_CommonJSExportBinding(t *testing.T) {
	defs := analyzeTS(t, `
import { gql } from "@/graphql-system";
const frag = gql.default((q) => q.f());
exports.frag = frag;
`)
	require.Len(t, defs, 1)
	assert.True(t, defs[0].IsExported)
	assert.Equal(t, "frag", defs[0].ExportBinding)
}

func TestAnalyze_ObjectPropertyPathSegments(t *testing.T) {
	defs := analyzeTS(t, `
import { gql } from "@/graphql-system";
const defs = {
  user: {
    "fragment": gql.default((q) => q.f()),
  },
};
`)
	require.Len(t, defs, 1)
	assert.Equal(t, "defs.user.fragment", defs[0].AstPath)
	assert.False(t, defs[0].IsTopLevel)
}

func TestAnalyze_ClassMethodPathSegments(t *testing.T) {
	defs := analyzeTS(t, `
import { gql } from "@/graphql-system";
class Repo {
  load() {
    const frag = gql.default((q) => q.f());
    return frag;
  }
}
`)
	require.Len(t, defs, 1)
	assert.Equal(t, "Repo.load.frag", defs[0].AstPath)
}

func TestAnalyze_DependencyRefs(t *testing.T) {
	defs := analyzeTS(t, `
import { gql } from "@/graphql-system";
import { userModel } from "./user";
import { postModel } from "./post";

export const base = gql.default((q) => q.f(userModel));
export const combined = gql.default((q) => q.merge(base, postModel, userModel));
`)
	require.Len(t, defs, 2)

	assert.Equal(t, []DependencyRef{{Name: "userModel", Source: "./user"}},
		defs[0].DependencyRefs)
	assert.Equal(t, []DependencyRef{
		{Name: "base"},
		{Name: "postModel", Source: "./post"},
		{Name: "userModel", Source: "./user"},
	}, defs[1].DependencyRefs)
}

func TestAnalyze_FactoryParamsAreNotRefs(t *testing.T) {
	defs := analyzeTS(t, `
import { gql } from "@/graphql-system";
export const a = gql.default(({ model, query }) => model.User(query));
`)
	require.Len(t, defs, 1)
	assert.Empty(t, defs[0].DependencyRefs)
}

func TestAnalyze_TypeScriptOnlySyntax(t *testing.T) {
	defs := analyzeTS(t, `
import { gql } from "@/graphql-system";
export const typed = gql.default((q: QueryBuilder) => q.f());
`)
	require.Len(t, defs, 1)
	assert.Equal(t, "typed", defs[0].AstPath)
}

func TestAnalyze_CommentAmongArgumentsStillRecognized(t *testing.T) {
	defs := analyzeTS(t, `
import { gql } from "@/graphql-system";
export const frag = gql.default(/* eager */ (q) => q.f());
export const frag2 = gql.default((/* builder */ q) => q.g());
`)
	require.Len(t, defs, 2)
	assert.Equal(t, "frag", defs[0].AstPath)
	assert.Equal(t, "frag2", defs[1].AstPath)
}

func TestAnalyze_TSXWithJSXComponent(t *testing.T) {
	defs, err := NewTSX().Analyze("/src/view.tsx", []byte(`
import { gql } from "@/graphql-system";
export const userFragment = gql.default(({ model }) => model.User({}));
export function UserCard(props: { name: string }) {
  return <div className="card">{props.name}</div>;
}
`), entrypointPredicate)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "userFragment", defs[0].AstPath)
	assert.True(t, defs[0].IsExported)
}

func TestAnalyze_ParseError(t *testing.T) {
	_, err := NewTypeScript().Analyze("/src/broken.ts",
		[]byte("const = = = {{{"), entrypointPredicate)
	require.Error(t, err)

	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "/src/broken.ts", perr.FilePath)
}

func TestForFile(t *testing.T) {
	assert.Equal(t, "tree-sitter-typescript", ForFile("/a/b.ts").Name())
	assert.Equal(t, "tree-sitter-tsx", ForFile("/a/b.tsx").Name())
	assert.Equal(t, "tree-sitter-javascript", ForFile("/a/b.js").Name())
	assert.Equal(t, "tree-sitter-javascript", ForFile("/a/b.jsx").Name())
}

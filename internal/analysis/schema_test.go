package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResult_WellFormed(t *testing.T) {
	payload := `{
		"job_id": "j1",
		"repo_path": "https://example.com/repo.git",
		"git_ref": "main",
		"file_count": 3,
		"symbol_count": 2,
		"dependency_graph": {
			"nodes": [
				{"id": "a/x.ts", "label": "x.ts"},
				{"id": "b/z.ts"}
			],
			"edges": [
				{"source": "a/x.ts", "target": "b/z.ts", "relationship": "imports"}
			]
		},
		"code_facts": {
			"symbols": [{"name": "foo", "file": "a/x.ts"}],
			"function_calls": [
				{"from_function": "foo", "to_function": "bar", "file": "a/x.ts", "line": 10}
			]
		}
	}`

	res, err := ParseResult([]byte(payload))
	require.NoError(t, err)

	assert.Equal(t, "main", res.GitRef)
	assert.True(t, res.HasGraph())
	assert.True(t, res.Complete())
	require.Len(t, res.Graph.Nodes, 2)
	assert.Equal(t, "a/x.ts", res.Graph.Nodes[0].ID)
	require.Len(t, res.Graph.Edges, 1)
	assert.Equal(t, "imports", res.Graph.Edges[0].Relationship)
	assert.Equal(t, []string{"foo"}, res.MethodNames())
}

func TestParseResult_RejectsMalformed(t *testing.T) {
	t.Run("not JSON", func(t *testing.T) {
		_, err := ParseResult([]byte("<html>502 Bad Gateway</html>"))
		assert.Error(t, err)
	})

	t.Run("missing git_ref", func(t *testing.T) {
		_, err := ParseResult([]byte(`{"file_count": 3}`))
		assert.Error(t, err)
	})

	t.Run("node without id", func(t *testing.T) {
		payload := `{
			"git_ref": "main",
			"dependency_graph": {"nodes": [{"label": "x"}], "edges": []}
		}`
		_, err := ParseResult([]byte(payload))
		assert.Error(t, err)
	})

	t.Run("edge without target", func(t *testing.T) {
		payload := `{
			"git_ref": "main",
			"dependency_graph": {"nodes": [], "edges": [{"source": "a"}]}
		}`
		_, err := ParseResult([]byte(payload))
		assert.Error(t, err)
	})
}

func TestParseResult_ToleratesNullOptionals(t *testing.T) {
	payload := `{
		"git_ref": "main",
		"file_count": null,
		"mermaid_diagram": null,
		"warnings": null,
		"dependency_graph": {
			"nodes": [{"id": "a/x.ts", "label": null}],
			"edges": [{"source": "a/x.ts", "target": "a/x.ts", "relationship": null}]
		}
	}`

	res, err := ParseResult([]byte(payload))
	require.NoError(t, err)
	assert.Zero(t, res.FileCount)
	assert.True(t, res.HasGraph())
}

func TestParseResult_FallbackOnlyIsComplete(t *testing.T) {
	res, err := ParseResult([]byte(`{"git_ref": "main", "mermaid_diagram": "graph TD\n    a --> b"}`))
	require.NoError(t, err)

	assert.False(t, res.HasGraph())
	assert.True(t, res.Complete())
}

func TestParseResult_EmptyResultIsIncomplete(t *testing.T) {
	res, err := ParseResult([]byte(`{"git_ref": "main"}`))
	require.NoError(t, err)

	assert.False(t, res.Complete())
}

func TestParseCallFlow(t *testing.T) {
	payload := `{
		"start_method": "foo",
		"max_depth": 5,
		"calls": [
			{"from": "foo", "to": "bar", "file": "a/x.ts", "line": 4, "depth": 0},
			{"from": "bar", "to": "baz", "depth": 1}
		],
		"total_calls": 2
	}`

	flow, err := ParseCallFlow([]byte(payload))
	require.NoError(t, err)
	assert.Equal(t, "foo", flow.StartMethod)
	assert.Equal(t, 2, flow.TotalCalls)
	require.Len(t, flow.Calls, 2)
	assert.Equal(t, 1, flow.Calls[1].Depth)

	t.Run("empty flow is valid", func(t *testing.T) {
		flow, err := ParseCallFlow([]byte(`{"start_method": "foo", "calls": [], "total_calls": 0}`))
		require.NoError(t, err)
		assert.Empty(t, flow.Calls)
		assert.Zero(t, flow.TotalCalls)
	})

	t.Run("calls must be objects", func(t *testing.T) {
		_, err := ParseCallFlow([]byte(`{"start_method": "foo", "calls": ["foo->bar"]}`))
		assert.Error(t, err)
	})
}

func TestMethodNames_SortedDistinct(t *testing.T) {
	res := &Result{
		Facts: CodeFacts{
			FunctionCalls: []FunctionCall{
				{FromFunction: "zeta", ToFunction: "a"},
				{FromFunction: "alpha", ToFunction: "b"},
				{FromFunction: "zeta", ToFunction: "c"},
				{FromFunction: "  ", ToFunction: "d"},
				{FromFunction: "Mid", ToFunction: "e"},
			},
		},
	}

	assert.Equal(t, []string{"Mid", "alpha", "zeta"}, res.MethodNames())
}

func TestJobStatus_Terminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusRunning.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusFailed.Terminal())
}

package diagram

import (
	"strings"
	"testing"
	"unicode"

	"archmap/internal/analysis"

	"github.com/stretchr/testify/assert"
)

func TestSanitize_NormalizesLineEndings(t *testing.T) {
	assert.Equal(t, "graph TD\n    a --> b\n", Sanitize("graph TD\r\n    a --> b\r\n"))
	assert.Equal(t, "a\nb", Sanitize("a\rb"))
}

func TestSanitize_StripsNonPrintable(t *testing.T) {
	out := Sanitize("graph TD\n    a\x00\x07[\"x\x1b\"]\n")
	for _, r := range out {
		if r == '\n' || r == '\t' {
			continue
		}
		assert.True(t, unicode.IsPrint(r), "non-printable %q survived", r)
	}
	assert.Contains(t, out, `a["x"]`)
}

func TestSanitize_RewritesEmptyLabels(t *testing.T) {
	assert.Equal(t, `node1["unnamed"]`, Sanitize(`node1[""]`))
	assert.Equal(t, `node1["unnamed"]`, Sanitize(`node1[ "" ]`))
	assert.Equal(t, `node1["keep"]`, Sanitize(`node1["keep"]`))
}

func TestSanitize_RoundTripOnAdversarialInput(t *testing.T) {
	res := &analysis.Result{
		GitRef: "main",
		Graph: &analysis.DependencyGraph{
			Nodes: []analysis.GraphNode{
				{ID: "a/\x00evil\x07.ts", Label: "\x1b"},
				{ID: "b/[\"\"].ts"},
				{ID: "c/ok.ts"},
			},
			Edges: []analysis.GraphEdge{
				{Source: "a/\x00evil\x07.ts", Target: "c/ok.ts", Relationship: "uses\x00"},
			},
		},
	}

	for _, lvl := range []Level{LevelFolder, LevelFile, LevelSymbol} {
		out := Sanitize(Generate(res, lvl))
		for _, r := range out {
			if r == '\n' || r == '\t' {
				continue
			}
			assert.True(t, unicode.IsPrint(r), "level %s leaked %q", lvl, r)
		}
		assert.False(t, strings.Contains(out, `[""]`), "level %s leaked an empty label", lvl)
	}

	t.Run("placeholder and fallback are sanitize-stable", func(t *testing.T) {
		assert.Equal(t, Placeholder(), Sanitize(Placeholder()))
		fallback := &analysis.Result{GitRef: "main", DiagramText: "graph TD\r\n    x[\"\"]\r\n"}
		out := Sanitize(Generate(fallback, LevelFile))
		assert.Equal(t, "graph TD\n    x[\"unnamed\"]\n", out)
	})
}

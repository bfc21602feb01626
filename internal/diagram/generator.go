package diagram

import (
	"fmt"
	"regexp"
	"strings"

	"archmap/internal/analysis"
)

// Level selects the granularity of the generated diagram.
type Level int

const (
	LevelFolder Level = 1
	LevelFile   Level = 2
	LevelSymbol Level = 3
)

func (l Level) String() string {
	switch l {
	case LevelFolder:
		return "folder"
	case LevelSymbol:
		return "symbol"
	default:
		return "file"
	}
}

// LevelFromInt clamps an arbitrary integer onto a valid granularity level.
func LevelFromInt(n int) Level {
	if n <= 1 {
		return LevelFolder
	}
	if n >= 3 {
		return LevelSymbol
	}
	return LevelFile
}

// Per-level bounds keep the emitted diagram renderable regardless of input
// repository size.
const (
	FolderMaxNodes = 30
	FolderMaxEdges = 40

	FileMaxNodes = 60
	FileMaxEdges = 80
	FileMaxDirs  = 10

	SymbolMaxNodes = 80
	SymbolMaxEdges = 120
	SymbolMaxDirs  = 8

	symbolsPerNode = 3
	symbolTextMax  = 60
	nodeLabelMax   = 30
	edgeLabelMax   = 15
)

const placeholderDiagram = "graph TD\n    root[\"No architecture data available\"]\n"

// Placeholder returns the single-node diagram shown when no analysis data is
// usable.
func Placeholder() string {
	return placeholderDiagram
}

// Generate renders an analysis snapshot as Mermaid text at the given
// granularity. It never fails: a nil result, an absent graph, or malformed
// edges all degrade to the upstream fallback text or the placeholder.
func Generate(res *analysis.Result, level Level) string {
	if res == nil {
		return placeholderDiagram
	}
	if !res.HasGraph() {
		if strings.TrimSpace(res.DiagramText) != "" {
			return res.DiagramText
		}
		return placeholderDiagram
	}

	switch level {
	case LevelFolder:
		return generateFolders(res.Graph)
	case LevelSymbol:
		return generateFiles(res, SymbolMaxNodes, SymbolMaxEdges, SymbolMaxDirs, true)
	default:
		return generateFiles(res, FileMaxNodes, FileMaxEdges, FileMaxDirs, false)
	}
}

// dirOf strips the last path segment. Top-level files land in "root".
func dirOf(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return "root"
	}
	dir := path[:idx]
	if dir == "" {
		return "root"
	}
	return dir
}

func baseOf(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return path
	}
	return path[idx+1:]
}

// generateFolders emits one node per directory with file counts, and projects
// file-to-file edges onto directory pairs.
func generateFolders(g *analysis.DependencyGraph) string {
	var dirOrder []string
	dirFiles := make(map[string]int)
	nodeDir := make(map[string]string)
	for _, n := range g.Nodes {
		d := dirOf(n.ID)
		if _, seen := dirFiles[d]; !seen {
			dirOrder = append(dirOrder, d)
		}
		dirFiles[d]++
		nodeDir[n.ID] = d
	}
	if len(dirOrder) > FolderMaxNodes {
		dirOrder = dirOrder[:FolderMaxNodes]
	}
	selected := make(map[string]bool, len(dirOrder))
	for _, d := range dirOrder {
		selected[d] = true
	}

	var sb strings.Builder
	sb.WriteString("graph TD\n")
	for _, d := range dirOrder {
		sb.WriteString(fmt.Sprintf("    %s[%q]\n", sanitizeID(d), fmt.Sprintf("%s (%d files)", d, dirFiles[d])))
	}

	emitted := 0
	drawn := make(map[string]map[string]bool)
	for _, e := range g.Edges {
		if emitted >= FolderMaxEdges {
			break
		}
		from, okFrom := nodeDir[e.Source]
		to, okTo := nodeDir[e.Target]
		if !okFrom || !okTo {
			// Dangling reference: drop the edge, never fail.
			continue
		}
		if from == to || !selected[from] || !selected[to] {
			continue
		}
		if drawn[from] == nil {
			drawn[from] = make(map[string]bool)
		}
		if drawn[from][to] {
			continue
		}
		drawn[from][to] = true
		sb.WriteString(fmt.Sprintf("    %s --> %s\n", sanitizeID(from), sanitizeID(to)))
		emitted++
	}
	return sb.String()
}

// generateFiles emits per-file nodes clustered by directory. The first
// maxNodes graph nodes survive in input order; only the first maxDirs
// directories get a cluster, later ones render at the top level. With
// withSymbols set, each node lists up to three symbol names matched by exact
// file path.
func generateFiles(res *analysis.Result, maxNodes, maxEdges, maxDirs int, withSymbols bool) string {
	g := res.Graph
	nodes := g.Nodes
	if len(nodes) > maxNodes {
		nodes = nodes[:maxNodes]
	}

	var dirOrder []string
	dirMembers := make(map[string][]analysis.GraphNode)
	declared := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		d := dirOf(n.ID)
		if _, seen := dirMembers[d]; !seen {
			dirOrder = append(dirOrder, d)
		}
		dirMembers[d] = append(dirMembers[d], n)
		declared[n.ID] = true
	}

	var symbolsByFile map[string][]string
	if withSymbols {
		symbolsByFile = make(map[string][]string)
		for _, s := range res.Facts.Symbols {
			symbolsByFile[s.File] = append(symbolsByFile[s.File], s.Name)
		}
	}

	var sb strings.Builder
	sb.WriteString("graph TD\n")
	for i, d := range dirOrder {
		clustered := i < maxDirs
		indent := "    "
		if clustered {
			sb.WriteString(fmt.Sprintf("    subgraph dir_%s[%q]\n", sanitizeID(d), d))
			indent = "        "
		}
		for _, n := range dirMembers[d] {
			sb.WriteString(fmt.Sprintf("%s%s[%q]\n", indent, sanitizeID(n.ID), fileLabel(n, symbolsByFile, withSymbols)))
		}
		if clustered {
			sb.WriteString("    end\n")
		}
	}

	edgeLabelCap := 0
	if withSymbols {
		edgeLabelCap = edgeLabelMax
	}
	emitted := 0
	for _, e := range g.Edges {
		if emitted >= maxEdges {
			break
		}
		if !declared[e.Source] || !declared[e.Target] {
			continue
		}
		label := strings.TrimSpace(e.Relationship)
		if label == "" {
			label = "uses"
		}
		label = truncate(label, edgeLabelCap)
		sb.WriteString(fmt.Sprintf("    %s -->|%s| %s\n", sanitizeID(e.Source), label, sanitizeID(e.Target)))
		emitted++
	}
	return sb.String()
}

func fileLabel(n analysis.GraphNode, symbolsByFile map[string][]string, withSymbols bool) string {
	label := strings.TrimSpace(n.Label)
	if label == "" {
		label = strings.TrimSpace(baseOf(n.ID))
	}
	if label == "" {
		label = "unnamed_file"
	}
	if !withSymbols {
		return label
	}

	label = truncate(label, nodeLabelMax)
	syms := symbolsByFile[n.ID]
	if len(syms) == 0 {
		return label
	}
	shown := syms
	if len(shown) > symbolsPerNode {
		shown = shown[:symbolsPerNode]
	}
	text := strings.Join(shown, ", ")
	if extra := len(syms) - len(shown); extra > 0 {
		text += fmt.Sprintf(" +%d", extra)
	}
	return label + "<br/>" + truncate(text, symbolTextMax)
}

// truncate caps s at max characters with a trailing ellipsis. Counts runes,
// not bytes, so multibyte labels are never cut mid-rune. max <= 0 disables
// the cap.
func truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

var nonIdent = regexp.MustCompile(`[^A-Za-z0-9]`)

// sanitizeID maps arbitrary paths and labels onto Mermaid-safe identifiers.
// Deterministic; duplicate outputs are tolerated by the renderer.
func sanitizeID(s string) string {
	if s == "" {
		return "root"
	}
	out := nonIdent.ReplaceAllString(s, "_")
	if out == "" {
		return "root"
	}
	return out
}

package analysis

import (
	"sort"
	"strings"
)

// JobStatus mirrors the upstream job lifecycle.
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
)

// Terminal reports whether the status will not change on further polls.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job is the transient server-side task the client polls.
type Job struct {
	ID       string    `json:"job_id"`
	Status   JobStatus `json:"status"`
	Progress int       `json:"progress,omitempty"`
	Message  string    `json:"message,omitempty"`
}

// GraphNode is one vertex of the upstream dependency graph. ID is a
// repository-relative file path.
type GraphNode struct {
	ID    string `json:"id"`
	Label string `json:"label,omitempty"`
}

// GraphEdge is a directed file-to-file relationship.
type GraphEdge struct {
	Source       string `json:"source"`
	Target       string `json:"target"`
	Relationship string `json:"relationship,omitempty"`
}

// DependencyGraph is the file-level graph extracted by the upstream analyzer.
type DependencyGraph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// Symbol is a named declaration located in a file.
type Symbol struct {
	Name string `json:"name"`
	File string `json:"file"`
}

// FunctionCall is one observed call site.
type FunctionCall struct {
	FromFunction string `json:"from_function"`
	ToFunction   string `json:"to_function"`
	File         string `json:"file,omitempty"`
	Line         int    `json:"line,omitempty"`
}

// CodeFacts carries the symbol and call-site facts alongside the graph.
type CodeFacts struct {
	Symbols       []Symbol       `json:"symbols"`
	FunctionCalls []FunctionCall `json:"function_calls"`
}

// Result is an immutable analysis snapshot for one (repository, git ref) pair.
type Result struct {
	JobID       string           `json:"job_id,omitempty"`
	Repo        string           `json:"repo_path,omitempty"`
	GitRef      string           `json:"git_ref"`
	FileCount   int              `json:"file_count,omitempty"`
	SymbolCount int              `json:"symbol_count,omitempty"`
	Graph       *DependencyGraph `json:"dependency_graph,omitempty"`
	Facts       CodeFacts        `json:"code_facts,omitempty"`
	DiagramText string           `json:"mermaid_diagram,omitempty"`
	Warnings    []string         `json:"warnings,omitempty"`
}

// HasGraph reports whether the snapshot carries a usable dependency graph.
func (r *Result) HasGraph() bool {
	return r != nil && r.Graph != nil && len(r.Graph.Nodes) > 0
}

// Complete reports whether the snapshot has any diagram-relevant content at
// all. An incomplete result still renders (as a placeholder) but should be
// flagged to the caller rather than treated as a clean success.
func (r *Result) Complete() bool {
	if r == nil {
		return false
	}
	return r.HasGraph() || strings.TrimSpace(r.DiagramText) != ""
}

// MethodNames returns the distinct call-flow entry points (from_function
// values), sorted ascending. This is the symbol list offered for call-flow
// selection after every successful fetch.
func (r *Result) MethodNames() []string {
	if r == nil {
		return nil
	}
	seen := make(map[string]bool)
	var names []string
	for _, c := range r.Facts.FunctionCalls {
		name := strings.TrimSpace(c.FromFunction)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Call is one traced edge of a call flow.
type Call struct {
	From  string `json:"from"`
	To    string `json:"to"`
	File  string `json:"file,omitempty"`
	Line  int    `json:"line,omitempty"`
	Depth int    `json:"depth"`
}

// CallFlow is a bounded-depth call tree rooted at StartMethod.
type CallFlow struct {
	StartMethod string `json:"start_method"`
	MaxDepth    int    `json:"max_depth"`
	Calls       []Call `json:"calls"`
	TotalCalls  int    `json:"total_calls"`
	Message     string `json:"message,omitempty"`
}

// Commit is one entry of a repository's recent history.
type Commit struct {
	Hash    string `json:"hash"`
	Message string `json:"message"`
	Date    string `json:"date"`
}

// GitHistory lists the version identifiers available for analysis.
type GitHistory struct {
	Branches      []string `json:"branches"`
	Tags          []string `json:"tags"`
	RecentCommits []Commit `json:"recent_commits"`
}

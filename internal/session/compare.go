package session

import (
	"context"
	"sort"

	"archmap/internal/analysis"

	"golang.org/x/sync/errgroup"
)

// Comparison is the outcome of analyzing two versions of the same repository.
// The file diff is purely set-based on graph node ids; no content diffing.
type Comparison struct {
	RefA, RefB         string
	ResultA, ResultB   *analysis.Result
	FilesAdded         []string
	FilesRemoved       []string
	FilesUnchanged     []string
	SymbolCountA       int
	SymbolCountB       int
	DiagramA, DiagramB string
}

// Compare submits two analyses concurrently and waits for both. Either
// failure fails the whole comparison; there is no partial result.
func (s *Session) Compare(ctx context.Context, repo, refA, refB string) (*Comparison, error) {
	// Top-level submission, same as Analyze: drop snapshots of whatever was
	// analyzed before.
	s.mu.Lock()
	s.repo = repo
	s.versions = make(map[string]*analysis.Result)
	s.jobIDs = make(map[string]string)
	s.methods = nil
	s.selected = ""
	s.flow = nil
	s.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)

	var resA, resB *analysis.Result
	g.Go(func() error {
		r, err := s.runAnalysis(gctx, SlotPrimary, repo, refA)
		resA = r
		return err
	})
	g.Go(func() error {
		r, err := s.runAnalysis(gctx, SlotSecondary, repo, refB)
		resB = r
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Both goroutines wrote methods through cacheResult in finish order;
	// settle on refA's list to match current.
	s.mu.Lock()
	s.current = resA.GitRef
	s.methods = resA.MethodNames()
	s.mu.Unlock()

	cmp := &Comparison{
		RefA:         resA.GitRef,
		RefB:         resB.GitRef,
		ResultA:      resA,
		ResultB:      resB,
		SymbolCountA: resA.SymbolCount,
		SymbolCountB: resB.SymbolCount,
		DiagramA:     s.render(resA),
		DiagramB:     s.render(resB),
	}
	cmp.FilesAdded, cmp.FilesRemoved, cmp.FilesUnchanged = diffNodeIDs(resA, resB)
	return cmp, nil
}

func nodeIDSet(res *analysis.Result) map[string]bool {
	set := make(map[string]bool)
	if res == nil || res.Graph == nil {
		return set
	}
	for _, n := range res.Graph.Nodes {
		set[n.ID] = true
	}
	return set
}

func diffNodeIDs(a, b *analysis.Result) (added, removed, unchanged []string) {
	setA := nodeIDSet(a)
	setB := nodeIDSet(b)

	for id := range setB {
		if !setA[id] {
			added = append(added, id)
		}
	}
	for id := range setA {
		if setB[id] {
			unchanged = append(unchanged, id)
		} else {
			removed = append(removed, id)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	sort.Strings(unchanged)
	return added, removed, unchanged
}

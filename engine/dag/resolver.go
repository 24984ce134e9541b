// Package dag validates an action dependency graph and produces a stage
// plan: the earliest-feasible parallel batches actions can run in. This is
// a small in-memory DFS over string ids — no third-party graph library in
// the corpus fits a graph this size, so it is hand-rolled.
package dag

import (
	"fmt"
	"sort"

	"github.com/compozy/webhookflow/engine/errs"
)

// Node is one action in the dependency graph: its id and the ids it
// depends on.
type Node struct {
	ID        string
	DependsOn []string
}

// Plan is an ordered sequence of stages; actions within a stage may run in
// parallel, and stage k does not begin until every stage < k is complete.
type Plan struct {
	Stages [][]string
}

// Resolve validates nodes and produces a Plan. It rejects unknown
// dependency ids, self-dependencies, and cycles (naming an involved id).
func Resolve(nodes []Node) (*Plan, error) {
	byID := make(map[string]Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}
	for _, n := range nodes {
		for _, dep := range n.DependsOn {
			if dep == n.ID {
				return nil, errs.New(errs.KindValidation,
					fmt.Sprintf("dag: action %q depends on itself", n.ID))
			}
			if _, ok := byID[dep]; !ok {
				return nil, errs.New(errs.KindValidation,
					fmt.Sprintf("dag: action %q depends on unknown action %q", n.ID, dep))
			}
		}
	}
	if cycleID, ok := detectCycle(nodes, byID); ok {
		return nil, errs.New(errs.KindValidation,
			fmt.Sprintf("dag: circular dependency involving action %q", cycleID))
	}
	levels := make(map[string]int, len(nodes))
	for _, n := range nodes {
		computeLevel(n.ID, byID, levels, map[string]bool{})
	}
	maxLevel := 0
	for _, lv := range levels {
		if lv > maxLevel {
			maxLevel = lv
		}
	}
	stages := make([][]string, maxLevel+1)
	for _, n := range nodes {
		lv := levels[n.ID]
		stages[lv] = append(stages[lv], n.ID)
	}
	out := make([][]string, 0, len(stages))
	for _, stage := range stages {
		if len(stage) == 0 {
			continue
		}
		sort.Strings(stage)
		out = append(out, stage)
	}
	return &Plan{Stages: out}, nil
}

func computeLevel(id string, byID map[string]Node, levels map[string]int, visiting map[string]bool) int {
	if lv, ok := levels[id]; ok {
		return lv
	}
	node := byID[id]
	if len(node.DependsOn) == 0 {
		levels[id] = 0
		return 0
	}
	max := -1
	for _, dep := range node.DependsOn {
		lv := computeLevel(dep, byID, levels, visiting)
		if lv > max {
			max = lv
		}
	}
	levels[id] = max + 1
	return max + 1
}

func detectCycle(nodes []Node, byID map[string]Node) (string, bool) {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(nodes))
	var stack []string
	var visit func(id string) (string, bool)
	visit = func(id string) (string, bool) {
		color[id] = gray
		stack = append(stack, id)
		for _, dep := range byID[id].DependsOn {
			switch color[dep] {
			case gray:
				return dep, true
			case white:
				if cyc, found := visit(dep); found {
					return cyc, true
				}
			}
		}
		color[id] = black
		stack = stack[:len(stack)-1]
		return "", false
	}
	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, n.ID)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if color[id] == white {
			if cyc, found := visit(id); found {
				return cyc, true
			}
		}
	}
	return "", false
}

// Complexity summarizes structural properties of a node set, used for
// non-blocking validation warnings (e.g. "more than five dependencies").
type Complexity struct {
	ActionCount         int
	LongestChain        int
	ParallelizationRatio float64
	MaxDependencyCount   int
}

// AnalyzeComplexity computes Complexity for an already-validated node set.
func AnalyzeComplexity(nodes []Node) Complexity {
	byID := make(map[string]Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}
	levels := make(map[string]int, len(nodes))
	maxLevel := 0
	maxDeps := 0
	for _, n := range nodes {
		lv := computeLevel(n.ID, byID, levels, map[string]bool{})
		if lv > maxLevel {
			maxLevel = lv
		}
		if len(n.DependsOn) > maxDeps {
			maxDeps = len(n.DependsOn)
		}
	}
	ratio := 0.0
	if len(nodes) > 0 {
		ratio = float64(len(nodes)) / float64(maxLevel+1)
	}
	return Complexity{
		ActionCount:          len(nodes),
		LongestChain:         maxLevel + 1,
		ParallelizationRatio: ratio,
		MaxDependencyCount:   maxDeps,
	}
}

// Validate runs the same checks Resolve does but returns every error found
// (instead of stopping at the first) plus non-blocking warnings, for use
// during workflow registration.
func Validate(nodes []Node) (errors []string, warnings []string) {
	byID := make(map[string]Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}
	for _, n := range nodes {
		if len(n.DependsOn) > 5 {
			warnings = append(warnings, fmt.Sprintf("action %q has more than five dependencies", n.ID))
		}
		for _, dep := range n.DependsOn {
			if dep == n.ID {
				errors = append(errors, fmt.Sprintf("action %q depends on itself", n.ID))
				continue
			}
			if _, ok := byID[dep]; !ok {
				errors = append(errors, fmt.Sprintf("action %q depends on unknown action %q", n.ID, dep))
			}
		}
	}
	if len(errors) == 0 {
		if cycleID, ok := detectCycle(nodes, byID); ok {
			errors = append(errors, fmt.Sprintf("circular dependency involving action %q", cycleID))
		}
	}
	return errors, warnings
}

package engine

import (
	"fmt"
	"sort"
	"strings"
)

// RankBy selects the statistic used to rank targets.
type RankBy int

const (
	RankByProbability RankBy = iota // Combined probability (independence approximation)
	RankByCount                     // Exact number of active placements
)

// String returns the name of the ranking.
func (r RankBy) String() string {
	switch r {
	case RankByCount:
		return "count"
	default:
		return "probability"
	}
}

// ParseRankBy parses "probability" or "count". An empty string means probability.
func ParseRankBy(s string) (RankBy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "probability", "prob", "p":
		return RankByProbability, nil
	case "count", "counts", "c":
		return RankByCount, nil
	}
	return RankByProbability, fmt.Errorf("unknown ranking %q", s)
}

// Target is a suggested square to fire at.
type Target struct {
	Square      Square  `json:"square"`
	Probability float64 `json:"probability"` // Combined probability
	Count       int     `json:"count"`       // Active placements covering the square
}

// BestTargets returns up to n Open squares ranked best first.
// n <= 0 returns every Open square. Ties keep square order.
func BestTargets(b Board, n int, by RankBy) []Target {
	probs := b.ProbabilityMatrix()
	counts := b.ShipsMatrix()
	states := b.StatesMatrix()

	targets := make([]Target, 0, b.Width()*b.Height())
	for x := range states {
		for y, st := range states[x] {
			if st != Open {
				continue
			}
			targets = append(targets, Target{
				Square:      Square{x, y},
				Probability: probs[x][y],
				Count:       counts[x][y],
			})
		}
	}

	sort.SliceStable(targets, func(i, j int) bool {
		if by == RankByCount {
			return targets[i].Count > targets[j].Count
		}
		return targets[i].Probability > targets[j].Probability
	})

	if n > 0 && n < len(targets) {
		targets = targets[:n]
	}
	return targets
}

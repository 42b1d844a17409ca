// Package ranking scores units by how much drive the topology routes to them.
package ranking

import (
	"fmt"
	"math"

	"github.com/nvandessel/strangeloop/internal/network"
)

// PageRankConfig holds configuration for PageRank computation.
type PageRankConfig struct {
	// DampingFactor (d) is the probability of following a connection vs. teleporting.
	// Standard value: 0.85.
	DampingFactor float64

	// MaxIterations is the maximum number of power iteration steps. Default: 100.
	MaxIterations int

	// Tolerance is the convergence threshold. Default: 1e-6.
	Tolerance float64
}

// DefaultPageRankConfig returns the default PageRank configuration.
func DefaultPageRankConfig() PageRankConfig {
	return PageRankConfig{
		DampingFactor: 0.85,
		MaxIterations: 100,
		Tolerance:     1e-6,
	}
}

// Validate checks the damping factor and iteration bounds.
func (c PageRankConfig) Validate() error {
	if c.DampingFactor < 0 || c.DampingFactor >= 1 {
		return fmt.Errorf("damping factor must be in [0, 1), got %v", c.DampingFactor)
	}
	if c.MaxIterations < 1 {
		return fmt.Errorf("max iterations must be at least 1, got %d", c.MaxIterations)
	}
	if !(c.Tolerance > 0) {
		return fmt.Errorf("tolerance must be positive, got %v", c.Tolerance)
	}
	return nil
}

// ComputePageRank scores every unit of net, indexed by unit ID and
// normalized so the highest score is 1.
//
// Connections are directed, source to target, and a connection listed k
// times carries k times the weight, matching the k increments a firing
// source delivers. Units with no connections spread their score evenly.
//
// Algorithm: power iteration
//
//	PR(v) = (1-d)/N + d * (sum(PR(u) * w(u,v)/out(u)) + dangling/N)
func ComputePageRank(net *network.Network, config PageRankConfig) ([]float64, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("computing pagerank: %w", err)
	}
	n := net.Len()
	if n == 0 {
		return []float64{}, nil
	}

	nf := float64(n)
	scores := make([]float64, n)
	for i := range scores {
		scores[i] = 1.0 / nf
	}
	next := make([]float64, n)

	d := config.DampingFactor
	for iter := 0; iter < config.MaxIterations; iter++ {
		dangling := 0.0
		for i := range next {
			next[i] = 0
		}
		for _, u := range net.Units {
			out := len(u.Connections)
			if out == 0 {
				dangling += scores[u.ID]
				continue
			}
			share := scores[u.ID] / float64(out)
			for _, target := range u.Connections {
				next[target] += share
			}
		}

		maxDelta := 0.0
		base := (1.0-d)/nf + d*dangling/nf
		for v := range next {
			score := base + d*next[v]
			if delta := math.Abs(score - scores[v]); delta > maxDelta {
				maxDelta = delta
			}
			next[v] = score
		}

		scores, next = next, scores

		if maxDelta < config.Tolerance {
			break
		}
	}

	// Normalize to [0, 1] by dividing by max score.
	maxScore := 0.0
	for _, score := range scores {
		if score > maxScore {
			maxScore = score
		}
	}
	if maxScore > 0 {
		for i := range scores {
			scores[i] /= maxScore
		}
	}

	return scores, nil
}

// TopUnits returns the IDs of the k highest-scoring units, best first.
// Ties keep ID order.
func TopUnits(scores []float64, k int) []int {
	if k > len(scores) {
		k = len(scores)
	}
	if k <= 0 {
		return []int{}
	}

	top := make([]int, 0, k)
	for id, score := range scores {
		pos := len(top)
		for pos > 0 && scores[top[pos-1]] < score {
			pos--
		}
		if pos >= k {
			continue
		}
		if len(top) < k {
			top = append(top, 0)
		}
		copy(top[pos+1:], top[pos:len(top)-1])
		top[pos] = id
	}
	return top
}

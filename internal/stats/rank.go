package stats

import (
	"cmp"
	"slices"

	"github.com/pavelanni/feedback/internal/model"
)

// Ranking places grades within a pool using shared ranks for ties
// ("1224" style: two students tied first are followed by the third,
// who ranks 2).
type Ranking struct {
	distinct []float64
	counts   map[float64]int
}

// NewRanking builds the ranking of a pool of grades.
func NewRanking(pool []float64) Ranking {
	r := Ranking{counts: make(map[float64]int, len(pool))}
	for _, g := range pool {
		r.counts[g]++
	}
	r.distinct = slices.Clone(pool)
	slices.SortFunc(r.distinct, func(a, b float64) int { return cmp.Compare(b, a) })
	r.distinct = slices.Compact(r.distinct)
	return r
}

// Place returns the rank of grade. A grade outside the pool has rank 0.
func (r Ranking) Place(grade float64) model.Placement {
	i := slices.Index(r.distinct, grade)
	if i < 0 {
		return model.Placement{}
	}
	return model.Placement{Rank: i + 1, ExAequo: r.counts[grade] > 1}
}

// MaxRank is the number of distinct grades in the pool.
func (r Ranking) MaxRank() int {
	return len(r.distinct)
}

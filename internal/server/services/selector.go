package services

import (
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/omnivore/internal/server/models"
)

// RandomSource yields uniform integers in [0, n).
type RandomSource interface {
	IntN(n int) int
}

type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}

// NewRandomSource returns a goroutine-safe PCG source with the given seed.
func NewRandomSource(seed uint64) RandomSource {
	return &lockedRand{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// DefaultRandomSource is seeded from the clock.
func DefaultRandomSource() RandomSource {
	return NewRandomSource(uint64(time.Now().UnixNano()))
}

// Selector picks one candidate out of an eligibility set.
type Selector struct {
	rnd RandomSource
}

func NewSelector(rnd RandomSource) *Selector {
	if rnd == nil {
		rnd = DefaultRandomSource()
	}
	return &Selector{rnd: rnd}
}

// ChooseUniform returns each candidate with equal probability, or false when
// there is none.
func (s *Selector) ChooseUniform(candidates []models.Candidate) (*models.Candidate, bool) {
	if len(candidates) == 0 {
		return nil, false
	}
	c := candidates[s.rnd.IntN(len(candidates))]
	return &c, true
}

// ChooseWeighted returns a candidate with probability proportional to its
// welcome weight. Weights below 1 count as 1.
func (s *Selector) ChooseWeighted(candidates []models.Candidate) (*models.Candidate, bool) {
	if len(candidates) == 0 {
		return nil, false
	}

	cumulative := make([]int, len(candidates))
	total := 0
	for i, c := range candidates {
		total += max(1, c.WelcomeWeight)
		cumulative[i] = total
	}

	r := s.rnd.IntN(total)
	i := sort.SearchInts(cumulative, r+1)
	c := candidates[i]
	return &c, true
}

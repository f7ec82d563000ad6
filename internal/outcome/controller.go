// Package outcome samples the ten-position draw for a round. Sampling is a
// position-by-position weighted draw without replacement, optionally biased
// toward or away from the numbers a control policy's target has wagered on.
// The package performs no I/O.
package outcome

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/domain"
)

// ──────────────────────────────────────────────────────────────────────────────
// Weight constants
// ──────────────────────────────────────────────────────────────────────────────

const (
	// HighConfidence is the win probability at and above which covered numbers
	// get GuaranteedWeight.
	HighConfidence = 0.95
	// LowConfidence is the win probability at and below which no bias applies.
	LowConfidence = 0.05

	GuaranteedWeight = 1e6
	SuppressedWeight = 1e-6

	// LossPrePassThreshold is the number of suppressed numbers at a position
	// from which the position is resolved up front among uncovered numbers.
	LossPrePassThreshold = 3
)

// ──────────────────────────────────────────────────────────────────────────────
// Controller
// ──────────────────────────────────────────────────────────────────────────────

// Controller produces round outcomes. It is safe for concurrent use.
type Controller struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewController returns a Controller seeded from crypto/rand.
func NewController() (*Controller, error) {
	var b [16]byte
	if _, err := crand.Read(b[:]); err != nil {
		return nil, fmt.Errorf("outcome.NewController: read seed: %w", err)
	}
	src := rand.NewPCG(binary.LittleEndian.Uint64(b[:8]), binary.LittleEndian.Uint64(b[8:]))
	return NewControllerWithSource(src), nil
}

// NewControllerWithSource returns a Controller drawing from src. Tests pass a
// fixed-seed source for reproducible draws.
func NewControllerWithSource(src rand.Source) *Controller {
	return &Controller{rng: rand.New(src)}
}

// Generate samples the permutation for a round. policy may be nil; exposure
// is the policy target's aggregated stake and is ignored without a policy.
//
// Under a win policy the positions the target is exposed on are drawn first
// so earlier positions cannot consume the boosted numbers. Under a loss
// policy every position with at least LossPrePassThreshold suppressed numbers
// is resolved first, uniformly among the uncovered numbers still in the pool.
func (c *Controller) Generate(policy *domain.ControlPolicy, exposure domain.Exposure) (domain.Permutation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := &sampler{
		rng:      c.rng,
		policy:   policy,
		exposure: exposure,
		pool:     make([]int, 0, domain.PositionCount),
		result:   make(domain.Permutation, domain.PositionCount),
	}
	for n := 1; n <= domain.PositionCount; n++ {
		s.pool = append(s.pool, n)
	}
	if policy == nil || len(exposure) == 0 {
		s.policy = nil
	}

	if err := s.run(); err != nil {
		return nil, err
	}
	if err := s.result.Validate(); err != nil {
		return nil, err
	}
	return s.result, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// sampler (one Generate call)
// ──────────────────────────────────────────────────────────────────────────────

type sampler struct {
	rng      *rand.Rand
	policy   *domain.ControlPolicy
	exposure domain.Exposure
	pool     []int
	result   domain.Permutation
}

func (s *sampler) run() error {
	filled := make([]bool, domain.PositionCount+1)

	if s.policy != nil {
		switch s.policy.Mode {
		case domain.ModeLoss:
			for pos := 1; pos <= domain.PositionCount; pos++ {
				if s.exposure.CoveredCount(pos, s.pool) < LossPrePassThreshold {
					continue
				}
				uncovered := s.uncovered(pos)
				if len(uncovered) == 0 {
					// Nothing left to exclude with; the weighted pass below
					// still applies the suppression weights.
					continue
				}
				if err := s.place(pos, uncovered[s.rng.IntN(len(uncovered))]); err != nil {
					return err
				}
				filled[pos] = true
			}
		case domain.ModeWin:
			for pos := 1; pos <= domain.PositionCount; pos++ {
				if len(s.exposure[pos]) == 0 {
					continue
				}
				if err := s.drawWeighted(pos); err != nil {
					return err
				}
				filled[pos] = true
			}
		}
	}

	for pos := 1; pos <= domain.PositionCount; pos++ {
		if filled[pos] {
			continue
		}
		if err := s.drawWeighted(pos); err != nil {
			return err
		}
	}
	return nil
}

func (s *sampler) drawWeighted(pos int) error {
	if len(s.pool) == 0 {
		return &domain.InvariantViolation{
			Invariant: domain.InvariantPermutation,
			Detail:    fmt.Sprintf("candidate pool exhausted at position %d", pos),
		}
	}
	weights := s.weights(pos)
	total := 0.0
	for _, w := range weights {
		total += w
	}
	r := s.rng.Float64() * total
	pick := len(s.pool) - 1
	for i, w := range weights {
		if r < w {
			pick = i
			break
		}
		r -= w
	}
	return s.place(pos, s.pool[pick])
}

// weights returns one weight per pool entry for pos.
func (s *sampler) weights(pos int) []float64 {
	w := make([]float64, len(s.pool))
	for i := range w {
		w[i] = 1
	}
	if s.policy == nil {
		return w
	}

	covered := s.exposure.CoveredCount(pos, s.pool)
	uncovered := len(s.pool) - covered
	if covered == 0 {
		return w
	}

	var boost float64
	switch s.policy.Mode {
	case domain.ModeLoss:
		boost = SuppressedWeight
	case domain.ModeWin:
		p := s.policy.Probability()
		switch {
		case p <= LowConfidence || uncovered == 0:
			return w
		case p >= HighConfidence:
			boost = GuaranteedWeight
		default:
			boost = p * float64(uncovered) / ((1 - p) * float64(covered))
		}
	default:
		return w
	}

	for i, n := range s.pool {
		if s.exposure.Covered(pos, n) {
			w[i] = boost
		}
	}
	return w
}

func (s *sampler) uncovered(pos int) []int {
	out := make([]int, 0, len(s.pool))
	for _, n := range s.pool {
		if !s.exposure.Covered(pos, n) {
			out = append(out, n)
		}
	}
	return out
}

// place assigns n to pos and removes it from the pool for later positions.
func (s *sampler) place(pos, n int) error {
	for i, v := range s.pool {
		if v == n {
			s.pool = append(s.pool[:i], s.pool[i+1:]...)
			s.result[pos-1] = n
			return nil
		}
	}
	return &domain.InvariantViolation{
		Invariant: domain.InvariantPermutation,
		Detail:    fmt.Sprintf("number %d drawn twice (position %d)", n, pos),
	}
}

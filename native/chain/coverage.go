package chain

import (
	"math/big"
	"sync"
)

// verseBudget is the shared risk budget for a single verse. All access goes
// through the guard, serialized by the per-verse mutex, so two concurrent
// chains can never both pass a check against room that only fits one.
type verseBudget struct {
	mu           sync.Mutex
	limit        *big.Int
	committed    *big.Int
	reservations map[string]*big.Int
}

// CoverageGuard is the sole writer of committed exposure. Reservations are
// tracked by chain identity so a release exactly undoes one prior reserve and
// double releases are inert.
type CoverageGuard struct {
	mu     sync.RWMutex
	verses map[string]*verseBudget
}

// NewCoverageGuard builds a guard for the configured verses.
func NewCoverageGuard(verses ...VerseConfig) *CoverageGuard {
	g := &CoverageGuard{verses: make(map[string]*verseBudget, len(verses))}
	for _, verse := range verses {
		g.AddVerse(verse)
	}
	return g
}

// AddVerse registers a verse budget. Re-adding an existing verse updates its
// limit but preserves outstanding reservations.
func (g *CoverageGuard) AddVerse(cfg VerseConfig) {
	if g == nil || cfg.ID == "" {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if existing, ok := g.verses[cfg.ID]; ok {
		existing.mu.Lock()
		existing.limit = cfg.Limit()
		existing.mu.Unlock()
		return
	}
	g.verses[cfg.ID] = &verseBudget{
		limit:        cfg.Limit(),
		committed:    big.NewInt(0),
		reservations: make(map[string]*big.Int),
	}
}

func (g *CoverageGuard) budget(verseID string) *verseBudget {
	if g == nil {
		return nil
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.verses[verseID]
}

// Reserve atomically checks and commits worst-case exposure for a chain
// against the verse budget. On failure nothing is mutated.
func (g *CoverageGuard) Reserve(verseID, chainID string, exposure *big.Int) error {
	budget := g.budget(verseID)
	if budget == nil {
		return ErrVerseNotFound
	}
	if exposure == nil || exposure.Sign() < 0 {
		return ErrInvalidDeposit
	}
	budget.mu.Lock()
	defer budget.mu.Unlock()
	if _, ok := budget.reservations[chainID]; ok {
		return ErrExposureReserved
	}
	next := new(big.Int).Add(budget.committed, exposure)
	if next.Cmp(budget.limit) > 0 {
		return ErrExceedsVerseLimit
	}
	budget.committed = next
	budget.reservations[chainID] = new(big.Int).Set(exposure)
	return nil
}

// Release undoes the reservation held for the chain and returns the freed
// exposure. Releasing a chain with no outstanding reservation is a no-op and
// returns nil.
func (g *CoverageGuard) Release(verseID, chainID string) *big.Int {
	budget := g.budget(verseID)
	if budget == nil {
		return nil
	}
	budget.mu.Lock()
	defer budget.mu.Unlock()
	reserved, ok := budget.reservations[chainID]
	if !ok {
		return nil
	}
	delete(budget.reservations, chainID)
	budget.committed = new(big.Int).Sub(budget.committed, reserved)
	if budget.committed.Sign() < 0 {
		budget.committed = big.NewInt(0)
	}
	return reserved
}

// Committed reports the exposure currently committed against a verse.
func (g *CoverageGuard) Committed(verseID string) *big.Int {
	budget := g.budget(verseID)
	if budget == nil {
		return big.NewInt(0)
	}
	budget.mu.Lock()
	defer budget.mu.Unlock()
	return new(big.Int).Set(budget.committed)
}

// Limit reports the maximum exposure the verse may carry.
func (g *CoverageGuard) Limit(verseID string) *big.Int {
	budget := g.budget(verseID)
	if budget == nil {
		return big.NewInt(0)
	}
	budget.mu.Lock()
	defer budget.mu.Unlock()
	return new(big.Int).Set(budget.limit)
}

// HasVerse reports whether the verse is configured.
func (g *CoverageGuard) HasVerse(verseID string) bool {
	return g.budget(verseID) != nil
}

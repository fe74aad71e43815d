package mana

import (
	"sync"
)

// Type represents a type of mana.
type Type string

const (
	White     Type = "WHITE"
	Blue      Type = "BLUE"
	Black     Type = "BLACK"
	Red       Type = "RED"
	Green     Type = "GREEN"
	Colorless Type = "COLORLESS"
)

// Types lists every concrete mana type in WUBRG-then-colorless order.
var Types = []Type{White, Blue, Black, Red, Green, Colorless}

// Pool represents a player's mana pool. Regular mana empties at the end of
// each step and phase; floating mana persists until explicitly emptied
// (effects that let mana linger).
type Pool struct {
	mu       sync.RWMutex
	regular  map[Type]int
	floating map[Type]int
}

// NewPool creates a new empty mana pool.
func NewPool() *Pool {
	return &Pool{
		regular:  make(map[Type]int),
		floating: make(map[Type]int),
	}
}

// Add adds mana to the regular pool.
func (p *Pool) Add(t Type, amount int) {
	if amount <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.regular[t] += amount
}

// AddFloating adds mana to the floating pool.
func (p *Pool) AddFloating(t Type, amount int) {
	if amount <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.floating[t] += amount
}

// Total returns the total amount of a mana type, regular plus floating.
func (p *Pool) Total(t Type) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.regular[t] + p.floating[t]
}

// Regular returns the regular (non-floating) amount of a mana type.
func (p *Pool) Regular(t Type) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.regular[t]
}

// Floating returns the floating amount of a mana type.
func (p *Pool) Floating(t Type) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.floating[t]
}

// TotalMana returns the total mana count across all types.
func (p *Pool) TotalMana() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	total := 0
	for _, t := range Types {
		total += p.regular[t] + p.floating[t]
	}
	return total
}

// Spend removes the given amount of one mana type, preferring regular mana
// over floating. Returns false without change when insufficient.
func (p *Pool) Spend(t Type, amount int) bool {
	if amount <= 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.regular[t]+p.floating[t] < amount {
		return false
	}
	fromRegular := amount
	if fromRegular > p.regular[t] {
		fromRegular = p.regular[t]
	}
	p.regular[t] -= fromRegular
	p.floating[t] -= amount - fromRegular
	return true
}

// Empty empties the regular mana pool; floating mana persists.
func (p *Pool) Empty() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.regular = make(map[Type]int)
}

// EmptyFloating empties the floating mana pool.
func (p *Pool) EmptyFloating() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.floating = make(map[Type]int)
}

// EmptyAll empties both pools.
func (p *Pool) EmptyAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.regular = make(map[Type]int)
	p.floating = make(map[Type]int)
}

// Snapshot returns the combined contents per type, for views and logging.
func (p *Pool) Snapshot() map[Type]int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	snap := make(map[Type]int, len(Types))
	for _, t := range Types {
		if n := p.regular[t] + p.floating[t]; n > 0 {
			snap[t] = n
		}
	}
	return snap
}

// Copy creates a deep copy of the mana pool.
func (p *Pool) Copy() *Pool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	cpy := NewPool()
	for t, n := range p.regular {
		cpy.regular[t] = n
	}
	for t, n := range p.floating {
		cpy.floating[t] = n
	}
	return cpy
}

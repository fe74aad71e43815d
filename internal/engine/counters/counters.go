// Package counters holds counter collections for permanents and players.
package counters

import (
	"fmt"
	"regexp"
	"strconv"
)

// Well-known counter names. Any string is a valid counter name; these are the
// ones the engine itself reads.
const (
	Loyalty    = "loyalty"
	Poison     = "poison"
	Energy     = "energy"
	Experience = "experience"
	Charge     = "charge"
	Age        = "age"
	Level      = "level"
	Stun       = "stun"
	Shield     = "shield"
	P1P1       = "+1/+1"
	M1M1       = "-1/-1"
)

// Counters is a name-keyed collection of counters on one object.
type Counters struct {
	counts map[string]int
}

// New creates an empty collection.
func New() *Counters {
	return &Counters{counts: make(map[string]int)}
}

// Add adds n counters of the given name. Non-positive amounts are ignored.
func (c *Counters) Add(name string, n int) {
	if n <= 0 {
		return
	}
	c.counts[name] += n
}

// Remove removes up to n counters of the given name and returns how many
// were actually removed.
func (c *Counters) Remove(name string, n int) int {
	if n <= 0 {
		return 0
	}
	have := c.counts[name]
	if n > have {
		n = have
	}
	if n == have {
		delete(c.counts, name)
	} else {
		c.counts[name] -= n
	}
	return n
}

// Count returns the number of counters with the given name.
func (c *Counters) Count(name string) int {
	return c.counts[name]
}

// Has reports whether any counters with the given name are present.
func (c *Counters) Has(name string) bool {
	return c.counts[name] > 0
}

// Total returns the total number of counters of all names.
func (c *Counters) Total() int {
	total := 0
	for _, n := range c.counts {
		total += n
	}
	return total
}

// All returns a copy of the collection's contents.
func (c *Counters) All() map[string]int {
	cpy := make(map[string]int, len(c.counts))
	for name, n := range c.counts {
		cpy[name] = n
	}
	return cpy
}

// Copy creates a deep copy of the collection.
func (c *Counters) Copy() *Counters {
	return &Counters{counts: c.All()}
}

var boostNamePattern = regexp.MustCompile(`^([+-]\d+)/([+-]\d+)$`)

// BoostTotals sums the power and toughness contributions of all boost
// counters (names of the form "+1/+1", "-1/-1", "+2/+0", ...). Rule 121.3:
// these apply continuously while the counters remain.
func (c *Counters) BoostTotals() (power, toughness int) {
	for name, n := range c.counts {
		m := boostNamePattern.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		p, _ := strconv.Atoi(m[1])
		t, _ := strconv.Atoi(m[2])
		power += p * n
		toughness += t * n
	}
	return power, toughness
}

// AnnihilatePairs removes matched +1/+1 and -1/-1 counter pairs, the
// state-based action of rule 704.5q. Returns how many pairs were removed.
func (c *Counters) AnnihilatePairs() int {
	pairs := c.counts[P1P1]
	if neg := c.counts[M1M1]; neg < pairs {
		pairs = neg
	}
	if pairs > 0 {
		c.Remove(P1P1, pairs)
		c.Remove(M1M1, pairs)
	}
	return pairs
}

// BoostName formats a boost counter name from deltas, e.g. BoostName(1, 1)
// yields "+1/+1".
func BoostName(power, toughness int) string {
	return fmt.Sprintf("%+d/%+d", power, toughness)
}

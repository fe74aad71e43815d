package mana

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Cost represents a parsed mana cost.
type Cost struct {
	Generic int
	Colored map[Type]int
	X       bool
	// Hybrid holds one entry per hybrid symbol; each entry lists the types
	// that may pay it. A {2/B} style symbol includes every type (generic
	// side) plus the colored side, so any single mana satisfies it.
	Hybrid [][]Type
}

var symbolPattern = regexp.MustCompile(`\{([^}]+)\}`)

// ParseCost parses a mana cost string such as "{1}{G}", "{2}{R}{R}",
// "{X}{R}", or "{R/W}". An empty string is a zero cost.
func ParseCost(costStr string) (*Cost, error) {
	cost := &Cost{Colored: make(map[Type]int)}
	if costStr == "" {
		return cost, nil
	}

	for _, match := range symbolPattern.FindAllStringSubmatch(costStr, -1) {
		symbol := strings.ToUpper(strings.TrimSpace(match[1]))
		switch {
		case symbol == "X":
			cost.X = true
		case symbol == "T" || symbol == "Q":
			// Tap and untap symbols are costs but not mana; callers strip
			// them before payment.
		case strings.Contains(symbol, "/"):
			hybrid, err := parseHybrid(symbol)
			if err != nil {
				return nil, err
			}
			cost.Hybrid = append(cost.Hybrid, hybrid)
		default:
			if t, ok := typeForSymbol(symbol); ok {
				cost.Colored[t]++
				continue
			}
			num, err := strconv.Atoi(symbol)
			if err != nil {
				return nil, fmt.Errorf("unknown mana symbol {%s}", symbol)
			}
			cost.Generic += num
		}
	}

	return cost, nil
}

func typeForSymbol(s string) (Type, bool) {
	switch s {
	case "W":
		return White, true
	case "U":
		return Blue, true
	case "B":
		return Black, true
	case "R":
		return Red, true
	case "G":
		return Green, true
	case "C":
		return Colorless, true
	}
	return "", false
}

// TypeForColorWord maps an English color word ("black") to its mana type.
func TypeForColorWord(word string) (Type, bool) {
	switch strings.ToLower(word) {
	case "white":
		return White, true
	case "blue":
		return Blue, true
	case "black":
		return Black, true
	case "red":
		return Red, true
	case "green":
		return Green, true
	case "colorless":
		return Colorless, true
	}
	return "", false
}

func parseHybrid(symbol string) ([]Type, error) {
	var options []Type
	for _, part := range strings.Split(symbol, "/") {
		part = strings.TrimSpace(part)
		if t, ok := typeForSymbol(part); ok {
			options = append(options, t)
			continue
		}
		if _, err := strconv.Atoi(part); err == nil {
			// The generic half of a monocolor hybrid accepts any mana type.
			options = append(options, Types...)
			continue
		}
		if part == "P" {
			// Phyrexian halves are payable with life; payment handles that,
			// the mana side stays as the colored option alone.
			continue
		}
		return nil, fmt.Errorf("unknown hybrid symbol {%s}", symbol)
	}
	if len(options) == 0 {
		return nil, fmt.Errorf("empty hybrid symbol {%s}", symbol)
	}
	return options, nil
}

// ManaValue returns the converted cost with the given X value.
func (c *Cost) ManaValue(x int) int {
	total := c.Generic + len(c.Hybrid)
	for _, n := range c.Colored {
		total += n
	}
	if c.X {
		total += x
	}
	return total
}

// String renders the cost in brace notation, colored symbols in WUBRG order.
func (c *Cost) String() string {
	var b strings.Builder
	if c.X {
		b.WriteString("{X}")
	}
	if c.Generic > 0 {
		fmt.Fprintf(&b, "{%d}", c.Generic)
	}
	symbols := map[Type]string{White: "W", Blue: "U", Black: "B", Red: "R", Green: "G", Colorless: "C"}
	for _, t := range Types {
		for i := 0; i < c.Colored[t]; i++ {
			fmt.Fprintf(&b, "{%s}", symbols[t])
		}
	}
	for _, hybrid := range c.Hybrid {
		var parts []string
		for _, t := range hybrid {
			parts = append(parts, symbols[t])
		}
		sort.Strings(parts)
		fmt.Fprintf(&b, "{%s}", strings.Join(parts, "/"))
	}
	return b.String()
}

// CanPay checks whether the pool covers this cost with the given X value.
// Colored requirements are checked per type; hybrid symbols and the generic
// portion then draw on whatever remains.
func (c *Cost) CanPay(pool *Pool, x int) bool {
	if c.X && x < 0 {
		return false
	}

	remaining := make(map[Type]int, len(Types))
	for _, t := range Types {
		remaining[t] = pool.Total(t)
	}

	for t, need := range c.Colored {
		if remaining[t] < need {
			return false
		}
		remaining[t] -= need
	}

	// Greedy hybrid satisfaction: prefer the type with the largest surplus.
	for _, hybrid := range c.Hybrid {
		best := Type("")
		for _, t := range hybrid {
			if remaining[t] > 0 && (best == "" || remaining[t] > remaining[best]) {
				best = t
			}
		}
		if best == "" {
			return false
		}
		remaining[best]--
	}

	generic := c.Generic
	if c.X {
		generic += x
	}
	left := 0
	for _, n := range remaining {
		left += n
	}
	return left >= generic
}

// Pay deducts this cost from the pool. Colored symbols are paid exactly,
// hybrids greedily from the largest surplus, and the generic portion drains
// colorless first then WUBRG. Fails without partial deduction when the pool
// cannot cover the cost.
func (c *Cost) Pay(pool *Pool, x int) error {
	if !c.CanPay(pool, x) {
		return fmt.Errorf("insufficient mana for %s (X=%d)", c.String(), x)
	}

	for t, need := range c.Colored {
		pool.Spend(t, need)
	}

	for _, hybrid := range c.Hybrid {
		best := Type("")
		for _, t := range hybrid {
			if pool.Total(t) > 0 && (best == "" || pool.Total(t) > pool.Total(best)) {
				best = t
			}
		}
		pool.Spend(best, 1)
	}

	generic := c.Generic
	if c.X {
		generic += x
	}
	genericOrder := []Type{Colorless, White, Blue, Black, Red, Green}
	for _, t := range genericOrder {
		if generic == 0 {
			break
		}
		n := pool.Total(t)
		if n > generic {
			n = generic
		}
		pool.Spend(t, n)
		generic -= n
	}
	if generic > 0 {
		return fmt.Errorf("mana pool drained mid-payment for %s", c.String())
	}
	return nil
}

// ApplyReduction returns a copy with the generic portion reduced and any
// per-type colored reductions applied. Hybrid symbols are not reduced.
func (c *Cost) ApplyReduction(genericReduction int, coloredReduction map[Type]int) *Cost {
	reduced := &Cost{
		Generic: c.Generic - genericReduction,
		Colored: make(map[Type]int, len(c.Colored)),
		X:       c.X,
		Hybrid:  c.Hybrid,
	}
	if reduced.Generic < 0 {
		reduced.Generic = 0
	}
	for t, n := range c.Colored {
		if r := coloredReduction[t]; r > 0 {
			n -= r
		}
		if n > 0 {
			reduced.Colored[t] = n
		}
	}
	return reduced
}

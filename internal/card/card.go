package card

import (
	"strconv"
	"strings"
)

// Card is immutable reference data describing a printed card.
// The field shapes follow the Scryfall oracle card export: a type line with
// an em-dash separating subtypes, a mana cost in brace notation, and the
// canonical oracle text.
type Card struct {
	Name       string   `json:"name"`
	ManaCost   string   `json:"mana_cost"`
	TypeLine   string   `json:"type_line"`
	OracleText string   `json:"oracle_text"`
	Power      string   `json:"power"`
	Toughness  string   `json:"toughness"`
	Keywords   []string `json:"keywords"`
	Colors     []string `json:"colors"`
}

var supertypeList = []string{"Basic", "Legendary", "Snow", "World", "Ongoing", "Elite"}

// Supertypes returns the supertypes present on the type line.
func (c Card) Supertypes() []string {
	var found []string
	left := c.typeLeft()
	for _, s := range supertypeList {
		if containsWord(left, s) {
			found = append(found, s)
		}
	}
	return found
}

// Types returns the card types (Creature, Instant, ...) from the type line,
// excluding supertypes and subtypes.
func (c Card) Types() []string {
	var types []string
	for _, w := range strings.Fields(c.typeLeft()) {
		if isSupertype(w) {
			continue
		}
		types = append(types, w)
	}
	return types
}

// Subtypes returns the subtypes after the em-dash, if any.
func (c Card) Subtypes() []string {
	if _, right, ok := strings.Cut(c.TypeLine, " — "); ok {
		return strings.Fields(right)
	}
	return nil
}

func (c Card) typeLeft() string {
	left, _, _ := strings.Cut(c.TypeLine, " — ")
	return left
}

// HasType reports whether the type line contains the given card type.
func (c Card) HasType(t string) bool {
	return containsWord(c.typeLeft(), t)
}

// IsPermanent reports whether resolving this card puts a permanent on the
// battlefield.
func (c Card) IsPermanent() bool {
	for _, t := range []string{"Creature", "Artifact", "Enchantment", "Planeswalker", "Land", "Battle"} {
		if c.HasType(t) {
			return true
		}
	}
	return false
}

// IsCreature reports whether the card is a creature.
func (c Card) IsCreature() bool { return c.HasType("Creature") }

// IsLand reports whether the card is a land.
func (c Card) IsLand() bool { return c.HasType("Land") }

// IsLegendary reports whether the card carries the Legendary supertype.
func (c Card) IsLegendary() bool { return containsWord(c.typeLeft(), "Legendary") }

// HasKeyword reports whether the card's keyword list contains the keyword,
// case-insensitively.
func (c Card) HasKeyword(kw string) bool {
	for _, k := range c.Keywords {
		if strings.EqualFold(k, kw) {
			return true
		}
	}
	return false
}

// BasePower returns the printed power as a number. Stars and other
// non-numeric values count as zero until an ability defines them.
func (c Card) BasePower() int { return parsePT(c.Power) }

// BaseToughness returns the printed toughness as a number.
func (c Card) BaseToughness() int { return parsePT(c.Toughness) }

func parsePT(s string) int {
	n, err := strconv.Atoi(strings.TrimPrefix(s, "+"))
	if err != nil {
		return 0
	}
	return n
}

func isSupertype(w string) bool {
	for _, s := range supertypeList {
		if w == s {
			return true
		}
	}
	return false
}

func containsWord(s, word string) bool {
	for _, w := range strings.Fields(s) {
		if strings.EqualFold(w, word) {
			return true
		}
	}
	return false
}

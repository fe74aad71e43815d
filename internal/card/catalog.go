package card

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
)

// Catalog is a read-only name-indexed table of Card records. The engine never
// mutates catalog entries; tokens and copies synthesize new Card values.
type Catalog struct {
	mu    sync.RWMutex
	cards map[string]Card
}

// NewCatalog builds a catalog from the given cards.
func NewCatalog(cards ...Card) *Catalog {
	c := &Catalog{cards: make(map[string]Card, len(cards))}
	for _, cd := range cards {
		c.cards[normalizeName(cd.Name)] = cd
	}
	return c
}

// LoadCatalog reads a Scryfall-style JSON array of oracle cards.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read card catalog: %w", err)
	}
	var cards []Card
	if err := json.Unmarshal(data, &cards); err != nil {
		return nil, fmt.Errorf("parse card catalog: %w", err)
	}
	return NewCatalog(cards...), nil
}

// Get returns the card with the given name.
func (c *Catalog) Get(name string) (Card, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cd, ok := c.cards[normalizeName(name)]
	return cd, ok
}

// MustGet returns the card with the given name or panics. Test helper.
func (c *Catalog) MustGet(name string) Card {
	cd, ok := c.Get(name)
	if !ok {
		panic(fmt.Sprintf("card %q not in catalog", name))
	}
	return cd
}

// Add registers a card. Used by deck-import tooling when loading custom sets.
func (c *Catalog) Add(cd Card) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cards[normalizeName(cd.Name)] = cd
}

// Len returns the number of cards in the catalog.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cards)
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

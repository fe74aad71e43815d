package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/conclave-games/conclave-server/internal/card"
	"github.com/conclave-games/conclave-server/internal/engine/rules"
)

// testCatalog covers the mechanics under test: vanilla creatures, combat
// keywords, an instant, a sweeper, an aura, a legend, and the pattern and
// trigger shapes the engine recognizes.
func testCatalog() *card.Catalog {
	return card.NewCatalog(
		card.Card{Name: "Forest", TypeLine: "Basic Land — Forest",
			OracleText: "{T}: Add {G}."},
		card.Card{Name: "Mountain", TypeLine: "Basic Land — Mountain",
			OracleText: "{T}: Add {R}."},
		card.Card{Name: "Grizzly Bears", ManaCost: "{1}{G}", TypeLine: "Creature — Bear",
			Power: "2", Toughness: "2", Colors: []string{"G"}},
		card.Card{Name: "Typhoid Rats", ManaCost: "{B}", TypeLine: "Creature — Rat",
			OracleText: "Deathtouch", Power: "1", Toughness: "1",
			Keywords: []string{"Deathtouch"}, Colors: []string{"B"}},
		card.Card{Name: "Youthful Knight", ManaCost: "{1}{W}", TypeLine: "Creature — Human Knight",
			OracleText: "First strike", Power: "2", Toughness: "1",
			Keywords: []string{"First strike"}, Colors: []string{"W"}},
		card.Card{Name: "Colossal Dreadmaw", ManaCost: "{4}{G}{G}", TypeLine: "Creature — Dinosaur",
			OracleText: "Trample", Power: "6", Toughness: "6",
			Keywords: []string{"Trample"}, Colors: []string{"G"}},
		card.Card{Name: "Alley Strangler", ManaCost: "{2}{B}", TypeLine: "Creature — Aetherborn Rogue",
			OracleText: "Menace", Power: "2", Toughness: "3",
			Keywords: []string{"Menace"}, Colors: []string{"B"}},
		card.Card{Name: "Serra Angel", ManaCost: "{3}{W}{W}", TypeLine: "Creature — Angel",
			OracleText: "Flying, vigilance", Power: "4", Toughness: "4",
			Keywords: []string{"Flying", "Vigilance"}, Colors: []string{"W"}},
		card.Card{Name: "Isamaru, Hound of Konda", ManaCost: "{W}",
			TypeLine: "Legendary Creature — Dog",
			Power:    "2", Toughness: "2", Colors: []string{"W"}},
		card.Card{Name: "Lightning Bolt", ManaCost: "{R}", TypeLine: "Instant",
			OracleText: "Lightning Bolt deals 3 damage to any target.", Colors: []string{"R"}},
		card.Card{Name: "Day of Judgment", ManaCost: "{2}{W}{W}", TypeLine: "Sorcery",
			OracleText: "Destroy all creatures.", Colors: []string{"W"}},
		card.Card{Name: "Pacifism", ManaCost: "{1}{W}", TypeLine: "Enchantment — Aura",
			OracleText: "Enchant creature\nEnchanted creature can't attack or block.",
			Colors:     []string{"W"}},
		card.Card{Name: "Crypt Rats", ManaCost: "{2}{B}", TypeLine: "Creature — Rat",
			OracleText: "{X}: Crypt Rats deals X damage to each creature and each player. Spend only black mana on X.",
			Power:      "1", Toughness: "1", Colors: []string{"B"}},
		card.Card{Name: "Figure of Destiny", ManaCost: "{R/W}", TypeLine: "Creature — Kithkin",
			OracleText: "{R/W}: Figure of Destiny becomes a Kithkin Spirit with base power and toughness 2/2.",
			Power:      "1", Toughness: "1", Colors: []string{"R", "W"}},
		card.Card{Name: "Academy Lookout", ManaCost: "{1}{U}", TypeLine: "Creature — Human Scout",
			OracleText: "When Academy Lookout enters the battlefield, you may draw a card.",
			Power:      "1", Toughness: "2", Colors: []string{"U"}},
		card.Card{Name: "Thassa's Oracle", ManaCost: "{U}{U}", TypeLine: "Creature — Merfolk Wizard",
			OracleText: "When Thassa's Oracle enters the battlefield, look at the top X cards of your library, where X is your devotion to blue. If X is greater than or equal to the number of cards in your library, you win the game.",
			Power:      "1", Toughness: "3", Colors: []string{"U"}},
		card.Card{Name: "Laboratory Maniac", ManaCost: "{2}{U}", TypeLine: "Creature — Human Wizard",
			OracleText: "If you would draw a card while your library has no cards in it, you win the game instead.",
			Power:      "2", Toughness: "2", Colors: []string{"U"}},
		card.Card{Name: "Platinum Angel", ManaCost: "{7}", TypeLine: "Artifact Creature — Angel",
			OracleText: "Flying\nYou can't lose the game and your opponents can't win the game.",
			Power:      "4", Toughness: "4", Keywords: []string{"Flying"}},
	)
}

func deckOf(name string, n int) []string {
	deck := make([]string, n)
	for i := range deck {
		deck[i] = name
	}
	return deck
}

// newTestGame builds and starts a two-player game (or more, when seats are
// given) with all-Forest decks and a fixed seed.
func newTestGame(t *testing.T, seats ...string) *Game {
	t.Helper()
	if len(seats) == 0 {
		seats = []string{"p1", "p2"}
	}
	g := NewGame("test-game", 7, testCatalog(), card.NewTokenSet(), zaptest.NewLogger(t), GameOptions{})
	for _, id := range seats {
		require.NoError(t, g.AddPlayer(id, "Player "+id, deckOf("Forest", 12), ""))
	}
	require.NoError(t, g.Start())
	g.drainEvents()
	return g
}

func pass(t *testing.T, g *Game, playerID string) {
	t.Helper()
	_, err := g.Apply(Action{Type: ActionPassPriority, PlayerID: playerID})
	require.NoError(t, err)
}

// advanceUntil passes priority around until the condition holds.
func advanceUntil(t *testing.T, g *Game, cond func() bool) {
	t.Helper()
	for i := 0; i < 200; i++ {
		if cond() {
			return
		}
		pass(t, g, g.turns.PriorityPlayer())
	}
	t.Fatalf("condition not reached by turn %d step %s", g.turns.TurnNumber(), g.turns.CurrentStep())
}

func advanceTo(t *testing.T, g *Game, step rules.Step) {
	t.Helper()
	advanceUntil(t, g, func() bool { return g.turns.CurrentStep() == step })
}

// putPermanent mints a card instance straight onto the battlefield, free of
// summoning sickness. Pending triggers are left for the caller to place.
func putPermanent(g *Game, playerID, name string) *Permanent {
	inst := &cardInstance{ID: g.newObjectID(), Owner: playerID, Card: g.catalog.MustGet(name)}
	g.cards[inst.ID] = inst
	perm := g.enterBattlefield(inst.ID, playerID, ZoneHand)
	perm.SummoningSick = false
	g.drainEvents()
	return perm
}

// giveCard mints a card instance into the player's hand.
func giveCard(g *Game, playerID, name string) string {
	inst := &cardInstance{ID: g.newObjectID(), Owner: playerID, Card: g.catalog.MustGet(name)}
	g.cards[inst.ID] = inst
	p := g.players[playerID]
	p.Hand = append(p.Hand, inst.ID)
	return inst.ID
}

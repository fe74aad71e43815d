package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/conclave-games/conclave-server/internal/card"
)

func TestStateBasedActionsIdleOnCleanState(t *testing.T) {
	g := newTestGame(t)
	putPermanent(g, "p1", "Grizzly Bears")

	require.False(t, g.checkStateBasedActions())
	require.False(t, g.checkStateBasedActions(), "re-running on a clean state changes nothing")
}

func TestZeroLifeLosesAndRemainingPlayerWins(t *testing.T) {
	g := newTestGame(t)
	g.players["p2"].Life = 0

	require.True(t, g.checkStateBasedActions())
	require.True(t, g.players["p2"].Lost)
	require.Equal(t, "life total is 0 or less", g.players["p2"].LossReason)
	require.True(t, g.ended)
	require.Equal(t, "p1", g.winner)
}

func TestTenPoisonCountersLose(t *testing.T) {
	g := newTestGame(t)
	g.players["p2"].Poison = 10

	require.True(t, g.checkStateBasedActions())
	require.True(t, g.players["p2"].Lost)
	require.Equal(t, "ten or more poison counters", g.players["p2"].LossReason)
}

func TestDrawingFromEmptyLibraryLoses(t *testing.T) {
	g := newTestGame(t)
	p := g.players["p2"]
	p.Library = nil
	g.drawCard("p2")
	g.drainEvents()

	require.True(t, g.checkStateBasedActions())
	require.True(t, p.Lost)
	require.Equal(t, "drew from an empty library", p.LossReason)
}

func TestCommanderDamageTwentyOneLoses(t *testing.T) {
	g := newTestGame(t)
	g.players["p2"].CommanderDamage["some-commander"] = 21

	require.True(t, g.checkStateBasedActions())
	require.True(t, g.players["p2"].Lost)
	require.Equal(t, "21 or more combat damage from a single commander", g.players["p2"].LossReason)
}

func TestLethalDamageDestroysCreature(t *testing.T) {
	g := newTestGame(t)
	bears := putPermanent(g, "p1", "Grizzly Bears")
	bears.Damage = 2

	require.True(t, g.checkStateBasedActions())
	require.NotContains(t, g.battlefield, bears.ID)
	require.Contains(t, g.players["p1"].Graveyard, bears.CardID)
}

func TestDeathtouchMakesAnyDamageLethal(t *testing.T) {
	g := newTestGame(t)
	rats := putPermanent(g, "p1", "Typhoid Rats")
	angel := putPermanent(g, "p2", "Serra Angel")

	g.damagePermanent(angel, rats.ID, 1, false)
	g.drainEvents()
	require.True(t, angel.DeathtouchHit)

	require.True(t, g.checkStateBasedActions())
	require.NotContains(t, g.battlefield, angel.ID)
}

func TestZeroToughnessGoesToGraveyard(t *testing.T) {
	g := newTestGame(t)
	bears := putPermanent(g, "p1", "Grizzly Bears")
	bears.Counters.Add("-1/-1", 2)

	require.True(t, g.checkStateBasedActions())
	require.NotContains(t, g.battlefield, bears.ID)
}

func TestBoostCountersAnnihilateInPairs(t *testing.T) {
	g := newTestGame(t)
	bears := putPermanent(g, "p1", "Grizzly Bears")
	bears.Counters.Add("+1/+1", 2)
	bears.Counters.Add("-1/-1", 1)

	require.False(t, g.checkStateBasedActions(), "annihilation alone is not a destruction event")
	require.Equal(t, 1, bears.Counters.Count("+1/+1"))
	require.Equal(t, 0, bears.Counters.Count("-1/-1"))
	require.Equal(t, 3, bears.Power())
}

func TestAuraWithoutHostDies(t *testing.T) {
	g := newTestGame(t)
	bears := putPermanent(g, "p2", "Grizzly Bears")
	aura := putPermanent(g, "p1", "Pacifism")
	aura.AttachedTo = bears.ID
	bears.Attachments = append(bears.Attachments, aura.ID)

	require.False(t, g.checkStateBasedActions(), "an attached aura is legal")

	g.destroyPermanent(bears, "")
	g.drainEvents()

	require.True(t, g.checkStateBasedActions())
	require.NotContains(t, g.battlefield, aura.ID)
	require.Contains(t, g.players["p1"].Graveyard, aura.CardID)
}

func TestLegendRuleKeepsNewestCopy(t *testing.T) {
	g := newTestGame(t)
	first := putPermanent(g, "p1", "Isamaru, Hound of Konda")
	second := putPermanent(g, "p1", "Isamaru, Hound of Konda")

	require.True(t, g.checkStateBasedActions())
	require.NotContains(t, g.battlefield, first.ID)
	require.Contains(t, g.battlefield, second.ID)
	require.Contains(t, g.players["p1"].Graveyard, first.CardID)
}

func TestLegendRuleIsPerController(t *testing.T) {
	g := newTestGame(t)
	mine := putPermanent(g, "p1", "Isamaru, Hound of Konda")
	theirs := putPermanent(g, "p2", "Isamaru, Hound of Konda")

	require.False(t, g.checkStateBasedActions())
	require.Contains(t, g.battlefield, mine.ID)
	require.Contains(t, g.battlefield, theirs.ID)
}

func TestDevotionAgainstLibrarySizeWins(t *testing.T) {
	g := newTestGame(t)
	putPermanent(g, "p1", "Thassa's Oracle")
	p := g.players["p1"]

	p.Library = p.Library[:3]
	require.False(t, g.checkStateBasedActions(), "devotion 2 against 3 cards is not enough")
	require.False(t, g.ended)

	p.Library = p.Library[:2]
	require.True(t, g.checkStateBasedActions())
	require.True(t, g.ended)
	require.Equal(t, "p1", g.winner)
}

func TestDevotionLibraryWinDirectWording(t *testing.T) {
	g := newTestGame(t)
	perm := &Permanent{
		Controller: "p1",
		Card: card.Card{OracleText: "As long as your devotion to blue is greater than or " +
			"equal to the number of cards in your library, you win the game."},
	}

	require.False(t, g.devotionWin(perm), "no devotion against a full library")

	g.players["p1"].Library = nil
	require.True(t, g.devotionWin(perm), "an empty library is met by any devotion")
}

func TestEmptyLibraryDrawWinsInstead(t *testing.T) {
	g := newTestGame(t)
	putPermanent(g, "p1", "Laboratory Maniac")
	p := g.players["p1"]
	p.Library = nil

	g.drawCard("p1")
	g.drainEvents()

	require.True(t, g.ended)
	require.Equal(t, "p1", g.winner)
	require.False(t, p.Lost)
	require.False(t, g.drewFromEmpty["p1"], "the replaced draw never marks the empty-library state")
}

func TestCantLoseCancelsZeroLifeLoss(t *testing.T) {
	g := newTestGame(t)
	angel := putPermanent(g, "p1", "Platinum Angel")
	g.players["p1"].Life = 0

	g.checkStateBasedActions()
	require.False(t, g.players["p1"].Lost)
	require.False(t, g.ended)

	// Once the shield leaves the battlefield the loss applies.
	g.destroyPermanent(angel, "")
	g.drainEvents()

	require.True(t, g.checkStateBasedActions())
	require.True(t, g.players["p1"].Lost)
	require.Equal(t, "p2", g.winner)
}

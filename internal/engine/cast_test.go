package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/conclave-games/conclave-server/internal/engine/mana"
	"github.com/conclave-games/conclave-server/internal/engine/rules"
)

func TestPlayLandAndTapForMana(t *testing.T) {
	g := newTestGame(t)
	advanceTo(t, g, rules.StepMain1)
	p := g.players["p1"]

	landID := p.Hand[0]
	_, err := g.Apply(Action{Type: ActionPlayLand, PlayerID: "p1", CardID: landID})
	require.NoError(t, err)

	perm, ok := g.permanentByCard(landID)
	require.True(t, ok)
	require.False(t, perm.Tapped)
	require.Equal(t, 1, p.LandsPlayedThisTurn)

	_, err = g.Apply(Action{Type: ActionPlayLand, PlayerID: "p1", CardID: p.Hand[0]})
	var ae *ActionError
	require.ErrorAs(t, err, &ae)
	require.Equal(t, CodeIllegalAction, ae.Code, "one land per turn")

	_, err = g.Apply(Action{Type: ActionActivateAbility, PlayerID: "p1", PermanentID: perm.ID, AbilityCost: "{T}"})
	require.NoError(t, err)
	require.True(t, perm.Tapped)
	require.Equal(t, 1, p.Pool.Total(mana.Green))
	require.True(t, g.stack.IsEmpty(), "mana abilities do not use the stack")
}

func TestPlayLandRejectedOutsideMainPhase(t *testing.T) {
	g := newTestGame(t)
	advanceTo(t, g, rules.StepUpkeep)

	_, err := g.Apply(Action{Type: ActionPlayLand, PlayerID: "p1", CardID: g.players["p1"].Hand[0]})
	var ae *ActionError
	require.ErrorAs(t, err, &ae)
	require.Equal(t, CodeIllegalAction, ae.Code)
}

func TestCastCreatureResolvesAfterFullPassRound(t *testing.T) {
	g := newTestGame(t)
	advanceTo(t, g, rules.StepMain1)
	bears := giveCard(g, "p1", "Grizzly Bears")
	g.players["p1"].Pool.Add(mana.Green, 2)

	_, err := g.Apply(Action{Type: ActionCastSpell, PlayerID: "p1", CardID: bears})
	require.NoError(t, err)
	require.Len(t, g.stack.List(), 1)
	require.Equal(t, "p1", g.turns.PriorityPlayer(), "the caster keeps priority")
	require.Equal(t, 0, g.players["p1"].Pool.TotalMana())

	pass(t, g, "p1")
	require.Len(t, g.stack.List(), 1, "a single pass does not resolve the stack")

	pass(t, g, "p2")
	require.True(t, g.stack.IsEmpty())
	perm, ok := g.permanentByCard(bears)
	require.True(t, ok)
	require.Equal(t, 2, perm.Power())
	require.True(t, perm.SummoningSick)
	require.Equal(t, "p1", g.turns.PriorityPlayer(), "priority reverts to the active player after resolution")
}

func TestCastRejectedWithoutMana(t *testing.T) {
	g := newTestGame(t)
	advanceTo(t, g, rules.StepMain1)
	bears := giveCard(g, "p1", "Grizzly Bears")

	_, err := g.Apply(Action{Type: ActionCastSpell, PlayerID: "p1", CardID: bears})
	var ae *ActionError
	require.ErrorAs(t, err, &ae)
	require.Equal(t, CodeIllegalAction, ae.Code)
	require.Contains(t, g.players["p1"].Hand, bears, "a rejected cast leaves the hand untouched")
	require.True(t, g.stack.IsEmpty())
}

func TestSorceryTimingRejectedOutsideMainPhase(t *testing.T) {
	g := newTestGame(t)
	advanceTo(t, g, rules.StepUpkeep)
	bears := giveCard(g, "p1", "Grizzly Bears")
	g.players["p1"].Pool.Add(mana.Green, 2)

	_, err := g.Apply(Action{Type: ActionCastSpell, PlayerID: "p1", CardID: bears})
	var ae *ActionError
	require.ErrorAs(t, err, &ae)
	require.Equal(t, CodeIllegalAction, ae.Code)
}

func TestInstantKillsCreatureAtInstantSpeed(t *testing.T) {
	g := newTestGame(t)
	target := putPermanent(g, "p2", "Grizzly Bears")
	advanceTo(t, g, rules.StepUpkeep)
	bolt := giveCard(g, "p1", "Lightning Bolt")
	g.players["p1"].Pool.Add(mana.Red, 1)

	_, err := g.Apply(Action{
		Type:     ActionCastSpell,
		PlayerID: "p1",
		CardID:   bolt,
		Targets:  []string{target.ID},
	})
	require.NoError(t, err, "instants ignore sorcery timing")

	pass(t, g, "p1")
	pass(t, g, "p2")

	require.NotContains(t, g.battlefield, target.ID, "three damage is lethal to a 2/2")
	require.Contains(t, g.players["p2"].Graveyard, target.CardID)
	require.Contains(t, g.players["p1"].Graveyard, bolt, "the spent instant goes to its owner's graveyard")
}

func TestSpellFizzlesWhenEveryTargetIsGone(t *testing.T) {
	g := newTestGame(t)
	target := putPermanent(g, "p2", "Grizzly Bears")
	advanceTo(t, g, rules.StepMain1)
	bolt := giveCard(g, "p1", "Lightning Bolt")
	g.players["p1"].Pool.Add(mana.Red, 1)

	_, err := g.Apply(Action{Type: ActionCastSpell, PlayerID: "p1", CardID: bolt, Targets: []string{target.ID}})
	require.NoError(t, err)

	// The target leaves while the spell waits on the stack.
	g.destroyPermanent(target, "")
	g.drainEvents()

	pass(t, g, "p1")
	pass(t, g, "p2")

	require.True(t, g.stack.IsEmpty())
	require.Contains(t, g.players["p1"].Graveyard, bolt, "a fizzled spell still goes to the graveyard")
	require.Equal(t, 20, g.players["p2"].Life, "a fizzled spell has no effect")
}

func TestBoardSweepDestroysOnlyCreatures(t *testing.T) {
	g := newTestGame(t)
	mine := putPermanent(g, "p1", "Grizzly Bears")
	theirs := putPermanent(g, "p2", "Serra Angel")
	land := putPermanent(g, "p1", "Forest")
	advanceTo(t, g, rules.StepMain1)
	wrath := giveCard(g, "p1", "Day of Judgment")
	g.players["p1"].Pool.Add(mana.White, 4)

	_, err := g.Apply(Action{Type: ActionCastSpell, PlayerID: "p1", CardID: wrath})
	require.NoError(t, err)
	pass(t, g, "p1")
	pass(t, g, "p2")

	require.NotContains(t, g.battlefield, mine.ID)
	require.NotContains(t, g.battlefield, theirs.ID)
	require.Contains(t, g.battlefield, land.ID, "lands survive the sweep")
	require.Contains(t, g.players["p1"].Graveyard, mine.CardID)
	require.Contains(t, g.players["p2"].Graveyard, theirs.CardID)
}

package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/conclave-games/conclave-server/internal/engine/rules"
)

func TestStartDealsOpeningHands(t *testing.T) {
	g := newTestGame(t)

	for _, id := range []string{"p1", "p2"} {
		p := g.players[id]
		require.Len(t, p.Hand, 7, "player %s opening hand", id)
		require.Len(t, p.Library, 5)
		require.Equal(t, 20, p.Life)
	}
	require.Equal(t, 1, g.turns.TurnNumber())
	require.Equal(t, rules.StepUntap, g.turns.CurrentStep())
	require.Equal(t, "p1", g.turns.ActivePlayer())
	require.Equal(t, "p1", g.turns.PriorityPlayer())
	require.NoError(t, g.checkZoneInvariant())
}

func TestPassRoundAdvancesStep(t *testing.T) {
	g := newTestGame(t)

	pass(t, g, "p1")
	require.Equal(t, rules.StepUntap, g.turns.CurrentStep(), "one pass is not a full round")
	require.Equal(t, "p2", g.turns.PriorityPlayer())

	pass(t, g, "p2")
	require.Equal(t, rules.StepUpkeep, g.turns.CurrentStep())
	require.Equal(t, "p1", g.turns.PriorityPlayer(), "priority reverts to the active player")
}

func TestPassRequiresPriority(t *testing.T) {
	g := newTestGame(t)

	_, err := g.Apply(Action{Type: ActionPassPriority, PlayerID: "p2"})
	var ae *ActionError
	require.ErrorAs(t, err, &ae)
	require.Equal(t, CodeIllegalAction, ae.Code)
}

func TestStartingPlayerSkipsFirstDraw(t *testing.T) {
	g := newTestGame(t)

	advanceTo(t, g, rules.StepMain1)
	require.Len(t, g.players["p1"].Hand, 7, "heads-up starting player skips the first draw")

	advanceUntil(t, g, func() bool {
		return g.turns.TurnNumber() == 2 && g.turns.CurrentStep() == rules.StepMain1
	})
	require.Equal(t, "p2", g.turns.ActivePlayer())
	require.Len(t, g.players["p2"].Hand, 8, "the second player draws normally")
	require.Len(t, g.players["p1"].Hand, 7)
}

func TestMulliganDrawsFreshHandAndBottomsCards(t *testing.T) {
	g := newTestGame(t)
	p := g.players["p1"]

	_, err := g.Apply(Action{Type: ActionMulligan, PlayerID: "p1"})
	require.NoError(t, err)
	require.Len(t, p.Hand, 7, "London mulligan redraws a full hand")
	require.Equal(t, 1, p.MulliganCount)

	_, err = g.Apply(Action{Type: ActionKeepHand, PlayerID: "p1"})
	require.NoError(t, err)

	step := g.queue.Active()
	require.NotNil(t, step, "keeping after a mulligan owes cards to the bottom")
	require.Equal(t, rules.StepDiscardSelection, step.Kind)
	require.Equal(t, 1, step.MinCount)
	require.Equal(t, 1, step.MaxCount)

	bottomed := step.Options[0]
	_, err = g.Apply(Action{
		Type:       ActionResolutionResponse,
		PlayerID:   "p1",
		StepID:     step.ID,
		Selections: []string{bottomed},
	})
	require.NoError(t, err)
	require.Nil(t, g.queue.Active())
	require.Len(t, p.Hand, 6)
	require.Len(t, p.Library, 6)
	require.Equal(t, bottomed, p.Library[len(p.Library)-1], "bottomed card goes under the library")
}

func TestMulliganRejectedAfterKeep(t *testing.T) {
	g := newTestGame(t)

	_, err := g.Apply(Action{Type: ActionKeepHand, PlayerID: "p1"})
	require.NoError(t, err)
	require.Nil(t, g.queue.Active(), "keeping without mulligans owes nothing")

	_, err = g.Apply(Action{Type: ActionMulligan, PlayerID: "p1"})
	var ae *ActionError
	require.ErrorAs(t, err, &ae)
	require.Equal(t, CodeIllegalAction, ae.Code)
}

func TestConcedeEndsGame(t *testing.T) {
	g := newTestGame(t)

	_, err := g.Apply(Action{Type: ActionConcede, PlayerID: "p2"})
	require.NoError(t, err)
	require.True(t, g.players["p2"].Lost)
	require.Equal(t, "conceded", g.players["p2"].LossReason)
	require.True(t, g.ended)
	require.Equal(t, "p1", g.winner)

	_, err = g.Apply(Action{Type: ActionPassPriority, PlayerID: "p1"})
	var ae *ActionError
	require.ErrorAs(t, err, &ae)
	require.Equal(t, CodeIllegalAction, ae.Code)
}

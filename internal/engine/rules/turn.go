package rules

import (
	"fmt"
)

// Phase represents the broad phases of a turn.
type Phase int

const (
	PhaseBeginning Phase = iota
	PhasePrecombatMain
	PhaseCombat
	PhasePostcombatMain
	PhaseEnding
)

var phaseNames = map[Phase]string{
	PhaseBeginning:      "BEGINNING",
	PhasePrecombatMain:  "PRECOMBAT_MAIN",
	PhaseCombat:         "COMBAT",
	PhasePostcombatMain: "POSTCOMBAT_MAIN",
	PhaseEnding:         "ENDING",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("PHASE_%d", int(p))
}

// Step represents the individual steps that comprise a turn.
type Step int

const (
	StepUntap Step = iota
	StepUpkeep
	StepDraw
	StepMain1
	StepBeginCombat
	StepDeclareAttackers
	StepDeclareBlockers
	StepFirstStrikeDamage
	StepCombatDamage
	StepEndCombat
	StepMain2
	StepEnd
	StepCleanup
)

var stepNames = map[Step]string{
	StepUntap:             "UNTAP",
	StepUpkeep:            "UPKEEP",
	StepDraw:              "DRAW",
	StepMain1:             "MAIN1",
	StepBeginCombat:       "BEGIN_COMBAT",
	StepDeclareAttackers:  "DECLARE_ATTACKERS",
	StepDeclareBlockers:   "DECLARE_BLOCKERS",
	StepFirstStrikeDamage: "FIRST_STRIKE_DAMAGE",
	StepCombatDamage:      "COMBAT_DAMAGE",
	StepEndCombat:         "END_COMBAT",
	StepMain2:             "MAIN2",
	StepEnd:               "END",
	StepCleanup:           "CLEANUP",
}

func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return fmt.Sprintf("STEP_%d", int(s))
}

// IsMainPhase reports whether the step allows sorcery-speed actions for the
// active player with an empty stack.
func (s Step) IsMainPhase() bool {
	return s == StepMain1 || s == StepMain2
}

type turnEntry struct {
	phase Phase
	step  Step
}

// Step returns the entry's step, exported for sequence inspection.
func (te turnEntry) Step() Step { return te.step }

// baseTurnSequence is the default turn structure. The first strike damage
// step is inserted dynamically once attackers or blockers with first strike
// or double strike are known (rule 510.5).
var baseTurnSequence = []turnEntry{
	{PhaseBeginning, StepUntap},
	{PhaseBeginning, StepUpkeep},
	{PhaseBeginning, StepDraw},
	{PhasePrecombatMain, StepMain1},
	{PhaseCombat, StepBeginCombat},
	{PhaseCombat, StepDeclareAttackers},
	{PhaseCombat, StepDeclareBlockers},
	{PhaseCombat, StepCombatDamage},
	{PhaseCombat, StepEndCombat},
	{PhasePostcombatMain, StepMain2},
	{PhaseEnding, StepEnd},
	{PhaseEnding, StepCleanup},
}

func buildTurnSequence(hasFirstStrike bool) []turnEntry {
	sequence := make([]turnEntry, len(baseTurnSequence))
	copy(sequence, baseTurnSequence)

	if !hasFirstStrike {
		return sequence
	}

	damageIdx := -1
	for i, entry := range sequence {
		if entry.step == StepCombatDamage {
			damageIdx = i
			break
		}
	}
	if damageIdx == -1 {
		return sequence
	}

	newSequence := make([]turnEntry, len(sequence)+1)
	copy(newSequence, sequence[:damageIdx])
	newSequence[damageIdx] = turnEntry{PhaseCombat, StepFirstStrikeDamage}
	copy(newSequence[damageIdx+1:], sequence[damageIdx:])

	return newSequence
}

// TurnManager tracks turn progression, seat order, and the priority pass
// round. Seat order is fixed at game start; turn direction may reverse, and
// players who lost or left are skipped during rotation.
type TurnManager struct {
	seats      []string
	eliminated map[string]bool
	direction  int // +1 or -1 through the seat slice

	orderIndex     int
	turnNumber     int
	activePlayer   string
	priorityPlayer string
	sequence       []turnEntry
	hasFirstStrike bool

	passes        int  // consecutive priority passes with no action
	repeatCleanup bool // another cleanup round was requested
}

// NewTurnManager creates a turn manager for the given seat order, starting at
// turn 1, untap step, with the first seat active.
func NewTurnManager(seats []string) *TurnManager {
	order := make([]string, len(seats))
	copy(order, seats)
	tm := &TurnManager{
		seats:      order,
		eliminated: make(map[string]bool),
		direction:  1,
		turnNumber: 1,
		sequence:   buildTurnSequence(false),
	}
	if len(order) > 0 {
		tm.activePlayer = order[0]
		tm.priorityPlayer = order[0]
	}
	return tm
}

// CurrentPhase returns the phase currently in progress.
func (tm *TurnManager) CurrentPhase() Phase {
	return tm.sequence[tm.orderIndex].phase
}

// CurrentStep returns the step currently in progress.
func (tm *TurnManager) CurrentStep() Step {
	return tm.sequence[tm.orderIndex].step
}

// TurnNumber returns the current turn number (1-based).
func (tm *TurnManager) TurnNumber() int {
	return tm.turnNumber
}

// ActivePlayer returns the player who currently has the turn.
func (tm *TurnManager) ActivePlayer() string {
	return tm.activePlayer
}

// PriorityPlayer returns the player who currently has priority.
func (tm *TurnManager) PriorityPlayer() string {
	return tm.priorityPlayer
}

// SetPriority hands priority to the given player and does not disturb the
// pass round.
func (tm *TurnManager) SetPriority(player string) {
	tm.priorityPlayer = player
}

// Direction returns +1 for normal seat order, -1 when reversed.
func (tm *TurnManager) Direction() int {
	return tm.direction
}

// ReverseDirection flips the direction of play.
func (tm *TurnManager) ReverseDirection() {
	tm.direction = -tm.direction
}

// Eliminate marks a player as out of the game. An eliminated player is
// skipped by seat rotation and no longer counts toward the pass round. If the
// eliminated player held priority it moves to the next seat.
func (tm *TurnManager) Eliminate(player string) {
	tm.eliminated[player] = true
	if tm.priorityPlayer == player {
		tm.priorityPlayer = tm.NextSeat(player)
	}
	if tm.activePlayer == player {
		// The turn continues; rotation happens at end of turn.
		tm.passes = 0
	}
}

// Eliminated reports whether the player has lost or left the game.
func (tm *TurnManager) Eliminated(player string) bool {
	return tm.eliminated[player]
}

// RemainingPlayers returns the players still in the game, in turn order
// starting from the active player.
func (tm *TurnManager) RemainingPlayers() []string {
	return tm.TurnOrderFrom(tm.activePlayer)
}

// TurnOrderFrom returns the players still in the game in current turn order,
// starting from the given player (or the next remaining seat after it).
func (tm *TurnManager) TurnOrderFrom(start string) []string {
	if len(tm.seats) == 0 {
		return nil
	}
	startIdx := 0
	for i, p := range tm.seats {
		if p == start {
			startIdx = i
			break
		}
	}
	var order []string
	for i := 0; i < len(tm.seats); i++ {
		idx := ((startIdx+i*tm.direction)%len(tm.seats) + len(tm.seats)) % len(tm.seats)
		p := tm.seats[idx]
		if !tm.eliminated[p] {
			order = append(order, p)
		}
	}
	return order
}

// NextSeat returns the next non-eliminated player after the given one in the
// current direction of play. Returns the input when nobody else remains.
func (tm *TurnManager) NextSeat(from string) string {
	if len(tm.seats) == 0 {
		return from
	}
	idx := 0
	for i, p := range tm.seats {
		if p == from {
			idx = i
			break
		}
	}
	for i := 1; i <= len(tm.seats); i++ {
		next := ((idx+i*tm.direction)%len(tm.seats) + len(tm.seats)) % len(tm.seats)
		if !tm.eliminated[tm.seats[next]] {
			return tm.seats[next]
		}
	}
	return from
}

// RecordPass notes that the priority player passed without acting, and moves
// priority to the next remaining seat. Returns true when every remaining
// player has passed consecutively (rule 117.4).
func (tm *TurnManager) RecordPass() bool {
	tm.passes++
	tm.priorityPlayer = tm.NextSeat(tm.priorityPlayer)
	return tm.passes >= len(tm.RemainingPlayers())
}

// ResetPassRound clears the consecutive-pass count. Called whenever a player
// takes an action instead of passing.
func (tm *TurnManager) ResetPassRound() {
	tm.passes = 0
}

// RequestCleanupRepeat asks for one more cleanup round with priority. Only
// meaningful during the cleanup step, when discard, damage removal, or
// until-end-of-turn expiry produced triggers or state-based actions
// (rule 514.3a).
func (tm *TurnManager) RequestCleanupRepeat() {
	if tm.CurrentStep() == StepCleanup {
		tm.repeatCleanup = true
	}
}

// AdvanceStep advances to the next step in the turn structure. A pending
// cleanup repeat stays on the cleanup step for one extra round. When the end
// of the structure is reached, the turn number is incremented and the active
// player rotates to the next remaining seat. Priority reverts to the active
// player at the start of every step and the pass round resets.
func (tm *TurnManager) AdvanceStep() (Phase, Step) {
	if tm.repeatCleanup && tm.CurrentStep() == StepCleanup {
		tm.repeatCleanup = false
		tm.priorityPlayer = tm.activePlayer
		tm.passes = 0
		return tm.CurrentPhase(), tm.CurrentStep()
	}

	tm.orderIndex++
	if tm.orderIndex >= len(tm.sequence) {
		tm.orderIndex = 0
		tm.turnNumber++
		tm.activePlayer = tm.NextSeat(tm.activePlayer)
		tm.sequence = buildTurnSequence(false)
		tm.hasFirstStrike = false
	}

	tm.priorityPlayer = tm.activePlayer
	tm.passes = 0

	return tm.CurrentPhase(), tm.CurrentStep()
}

// SetHasFirstStrike updates the turn sequence to include or exclude the first
// strike damage step. Called once blockers are declared and first or double
// strike is known to be present.
func (tm *TurnManager) SetHasFirstStrike(hasFirstStrike bool) {
	if tm.hasFirstStrike == hasFirstStrike {
		return
	}

	oldOrderIndex := tm.orderIndex
	newSequence := buildTurnSequence(hasFirstStrike)

	if tm.hasFirstStrike && !hasFirstStrike && oldOrderIndex >= len(newSequence) {
		tm.orderIndex = len(newSequence) - 1
	}

	tm.sequence = newSequence
	tm.hasFirstStrike = hasFirstStrike
}

// GetSequence returns the current turn sequence for inspection.
func (tm *TurnManager) GetSequence() []turnEntry {
	return tm.sequence
}

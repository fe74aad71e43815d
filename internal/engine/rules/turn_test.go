package rules

import "testing"

func TestTurnSequenceWalksAllSteps(t *testing.T) {
	tm := NewTurnManager([]string{"p1", "p2"})

	if tm.CurrentStep() != StepUntap {
		t.Fatalf("expected untap first, got %s", tm.CurrentStep())
	}
	if tm.ActivePlayer() != "p1" {
		t.Fatalf("expected p1 active, got %s", tm.ActivePlayer())
	}

	steps := []Step{tm.CurrentStep()}
	for i := 0; i < len(baseTurnSequence)-1; i++ {
		_, step := tm.AdvanceStep()
		steps = append(steps, step)
	}
	if steps[len(steps)-1] != StepCleanup {
		t.Fatalf("expected cleanup last, got %s", steps[len(steps)-1])
	}
	if tm.TurnNumber() != 1 {
		t.Fatalf("still turn 1 until cleanup ends, got %d", tm.TurnNumber())
	}

	_, step := tm.AdvanceStep()
	if step != StepUntap || tm.TurnNumber() != 2 {
		t.Fatalf("expected turn 2 untap, got turn %d step %s", tm.TurnNumber(), step)
	}
	if tm.ActivePlayer() != "p2" {
		t.Fatalf("active player should rotate to p2, got %s", tm.ActivePlayer())
	}
}

func TestFirstStrikeStepInsertedDynamically(t *testing.T) {
	tm := NewTurnManager([]string{"p1", "p2"})
	for tm.CurrentStep() != StepDeclareBlockers {
		tm.AdvanceStep()
	}

	tm.SetHasFirstStrike(true)
	_, step := tm.AdvanceStep()
	if step != StepFirstStrikeDamage {
		t.Fatalf("expected first strike damage step, got %s", step)
	}
	_, step = tm.AdvanceStep()
	if step != StepCombatDamage {
		t.Fatalf("expected combat damage after first strike, got %s", step)
	}
}

func TestNoFirstStrikeStepByDefault(t *testing.T) {
	tm := NewTurnManager([]string{"p1", "p2"})
	for tm.CurrentStep() != StepDeclareBlockers {
		tm.AdvanceStep()
	}

	_, step := tm.AdvanceStep()
	if step != StepCombatDamage {
		t.Fatalf("expected combat damage directly, got %s", step)
	}
}

func TestPriorityRevertsToActivePlayerEachStep(t *testing.T) {
	tm := NewTurnManager([]string{"p1", "p2"})
	tm.SetPriority("p2")

	tm.AdvanceStep()
	if tm.PriorityPlayer() != "p1" {
		t.Fatalf("priority should revert to active player, got %s", tm.PriorityPlayer())
	}
}

func TestPassRoundCompletesWhenAllPass(t *testing.T) {
	tm := NewTurnManager([]string{"p1", "p2", "p3"})

	if tm.RecordPass() {
		t.Fatal("one pass out of three is not a full round")
	}
	if tm.PriorityPlayer() != "p2" {
		t.Fatalf("priority should move to p2, got %s", tm.PriorityPlayer())
	}
	if tm.RecordPass() {
		t.Fatal("two passes out of three is not a full round")
	}
	if !tm.RecordPass() {
		t.Fatal("three consecutive passes complete the round")
	}
}

func TestActionResetsPassRound(t *testing.T) {
	tm := NewTurnManager([]string{"p1", "p2"})

	tm.RecordPass()
	tm.ResetPassRound()
	if tm.RecordPass() {
		t.Fatal("pass round must restart after an action")
	}
	if !tm.RecordPass() {
		t.Fatal("two fresh passes complete the round")
	}
}

func TestEliminatedPlayerSkippedInRotation(t *testing.T) {
	tm := NewTurnManager([]string{"p1", "p2", "p3"})
	tm.Eliminate("p2")

	if tm.NextSeat("p1") != "p3" {
		t.Fatalf("rotation should skip eliminated p2, got %s", tm.NextSeat("p1"))
	}
	remaining := tm.RemainingPlayers()
	if len(remaining) != 2 || remaining[0] != "p1" || remaining[1] != "p3" {
		t.Fatalf("unexpected remaining players %v", remaining)
	}

	// A full pass round now needs only the two remaining players.
	tm.RecordPass()
	if !tm.RecordPass() {
		t.Fatal("pass round should complete with two remaining players")
	}
}

func TestReverseDirectionChangesRotation(t *testing.T) {
	tm := NewTurnManager([]string{"p1", "p2", "p3"})

	if tm.NextSeat("p1") != "p2" {
		t.Fatalf("expected p2 next, got %s", tm.NextSeat("p1"))
	}
	tm.ReverseDirection()
	if tm.NextSeat("p1") != "p3" {
		t.Fatalf("reversed order should yield p3, got %s", tm.NextSeat("p1"))
	}
}

func TestCleanupRepeatStaysOnCleanup(t *testing.T) {
	tm := NewTurnManager([]string{"p1", "p2"})
	for tm.CurrentStep() != StepCleanup {
		tm.AdvanceStep()
	}

	tm.RequestCleanupRepeat()
	_, step := tm.AdvanceStep()
	if step != StepCleanup {
		t.Fatalf("requested repeat should stay on cleanup, got %s", step)
	}
	if tm.TurnNumber() != 1 {
		t.Fatalf("repeat cleanup is still turn 1, got %d", tm.TurnNumber())
	}

	_, step = tm.AdvanceStep()
	if step != StepUntap || tm.TurnNumber() != 2 {
		t.Fatalf("second advance should begin turn 2, got turn %d step %s", tm.TurnNumber(), step)
	}
}

func TestCleanupRepeatIgnoredOutsideCleanup(t *testing.T) {
	tm := NewTurnManager([]string{"p1", "p2"})

	tm.RequestCleanupRepeat()
	_, step := tm.AdvanceStep()
	if step != StepUpkeep {
		t.Fatalf("repeat request outside cleanup must be ignored, got %s", step)
	}
}

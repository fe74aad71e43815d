package effects

import (
	"testing"

	"github.com/conclave-games/conclave-server/internal/engine/rules"
)

func TestDamagePreventionShieldAbsorbs(t *testing.T) {
	m := NewManager(nil)
	shield := NewDamagePrevention("src", "perm", "", 3, DurationEndOfTurn)
	m.Add(shield)

	evt := rules.NewEventWithAmount(rules.EventDamagePermanent, "perm", "burn", "p1", 5)
	out, survived := m.Apply(evt)

	if !survived {
		t.Fatal("partially prevented damage still happens")
	}
	if out.Amount != 2 {
		t.Fatalf("expected 2 damage through a 3 shield, got %d", out.Amount)
	}
	if shield.Shield() != 0 {
		t.Fatalf("shield should be spent, got %d", shield.Shield())
	}

	// Spent shield no longer applies.
	out, _ = m.Apply(rules.NewEventWithAmount(rules.EventDamagePermanent, "perm", "burn", "p1", 4))
	if out.Amount != 4 {
		t.Fatalf("spent shield must not prevent, got %d", out.Amount)
	}
}

func TestDamagePreventionAll(t *testing.T) {
	m := NewManager(nil)
	m.Add(NewDamagePrevention("src", "p2", "", 0, DurationEndOfTurn))

	_, survived := m.Apply(rules.NewEventWithAmount(rules.EventDamagePlayer, "p2", "burn", "p1", 7))
	if survived {
		t.Fatal("prevent-all must consume the damage event")
	}
}

func TestRegenerationShieldConsumedOnUse(t *testing.T) {
	m := NewManager(nil)
	m.Add(NewRegenerationShield("src", "perm"))

	evt := rules.NewEvent(rules.EventDestroyed, "perm", "wrath", "p1")
	out, survived := m.Apply(evt)
	if survived {
		t.Fatal("regeneration replaces the destruction")
	}
	if out.Metadata[MetaRegenerated] != "true" {
		t.Fatal("regeneration marker missing")
	}

	// One use only: a second destruction goes through.
	_, survived = m.Apply(rules.NewEvent(rules.EventDestroyed, "perm", "wrath", "p1"))
	if !survived {
		t.Fatal("second destruction must not be replaced")
	}
}

func TestCantLoseCancelsLossEvent(t *testing.T) {
	m := NewManager(nil)
	m.Add(NewCantLose("src", "p1", DurationPermanent))

	_, survived := m.Apply(rules.NewEvent(rules.EventLost, "p1", "", "p1"))
	if survived {
		t.Fatal("loss event must be cancelled")
	}

	_, survived = m.Apply(rules.NewEvent(rules.EventLost, "p2", "", "p2"))
	if !survived {
		t.Fatal("other players still lose")
	}
}

func TestWinInsteadRewritesEvent(t *testing.T) {
	m := NewManager(nil)
	m.Add(NewWinInstead("src", "p1", rules.EventDrewFromEmpty))

	out, survived := m.Apply(rules.NewEvent(rules.EventDrewFromEmpty, "p1", "", "p1"))
	if !survived {
		t.Fatal("rewritten event still happens")
	}
	if out.Type != rules.EventWins {
		t.Fatalf("expected WINS, got %s", out.Type)
	}
}

func TestRedirectZoneChange(t *testing.T) {
	m := NewManager(nil)
	m.Add(NewRedirectZoneChange("src", "", "p1", "graveyard", "exile", DurationPermanent))

	evt := rules.NewEvent(rules.EventZoneChange, "card", "", "p1")
	evt.Metadata["to"] = "graveyard"
	out, survived := m.Apply(evt)

	if !survived {
		t.Fatal("redirected zone change still happens")
	}
	if out.Metadata["to"] != "exile" {
		t.Fatalf("expected redirect to exile, got %q", out.Metadata["to"])
	}
}

func TestEntersModifierAppliedBeforeOthers(t *testing.T) {
	m := NewManager(nil)
	m.Add(NewEntersModifier("card", "card", true, map[string]int{"+1/+1": 3}))

	evt := rules.NewEvent(rules.EventEntersTheBattlefield, "card", "card", "p1")
	out, survived := m.Apply(evt)

	if !survived {
		t.Fatal("modified entry still happens")
	}
	if out.Metadata[MetaEntersTapped] != "true" {
		t.Fatal("tapped marker missing")
	}
	if out.Metadata[MetaCounterPrefix+"+1/+1"] != "3" {
		t.Fatalf("counter marker missing, metadata %v", out.Metadata)
	}
	if m.Len() != 0 {
		t.Fatal("one-use modifier should be consumed")
	}
}

func TestAppliedEffectsNotReapplied(t *testing.T) {
	m := NewManager(nil)
	doubler := NewDoubleAmount("src", "p1", []rules.EventType{rules.EventGainedLife}, DurationPermanent)
	m.Add(doubler)

	evt := rules.NewEventWithAmount(rules.EventGainedLife, "p1", "", "p1", 2)
	out, _ := m.Apply(evt)
	if out.Amount != 4 {
		t.Fatalf("expected doubled gain 4, got %d", out.Amount)
	}

	// Re-running the chain on the already-processed event is a no-op.
	again, _ := m.Apply(out)
	if again.Amount != 4 {
		t.Fatalf("effect must apply once per event, got %d", again.Amount)
	}
}

func TestExpireEndOfTurn(t *testing.T) {
	m := NewManager(nil)
	m.Add(NewDamagePrevention("src", "perm", "", 0, DurationEndOfTurn))
	m.Add(NewCantLose("src2", "p1", DurationPermanent))

	if expired := m.ExpireEndOfTurn(); expired != 1 {
		t.Fatalf("expected 1 expired effect, got %d", expired)
	}
	if m.Len() != 1 {
		t.Fatalf("permanent effect should remain, got %d", m.Len())
	}
}

func TestRemoveSource(t *testing.T) {
	m := NewManager(nil)
	m.Add(NewCantLose("perm", "p1", DurationPermanent))
	m.Add(NewCantLose("other", "p1", DurationPermanent))

	m.RemoveSource("perm")
	if m.Len() != 1 {
		t.Fatalf("expected 1 effect left, got %d", m.Len())
	}
}

package rules

import "testing"

func buildNoop(Event) StackItem { return StackItem{Description: "noop"} }

func TestTriggerFiresOnMatchingEvent(t *testing.T) {
	tm := NewTriggerManager()
	tm.Register(TriggeredAbility{
		SourceID:   "src",
		Controller: "p1",
		EventType:  EventEntersTheBattlefield,
		Build:      buildNoop,
	})

	pending := tm.Handle(NewEvent(EventEntersTheBattlefield, "perm", "src", "p1"), "p1")
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending trigger, got %d", len(pending))
	}

	pending = tm.Handle(NewEvent(EventPermanentDies, "perm", "src", "p1"), "p1")
	if len(pending) != 0 {
		t.Fatalf("mismatched event type should not fire, got %d", len(pending))
	}
}

func TestTriggerControllerFilter(t *testing.T) {
	tm := NewTriggerManager()
	tm.Register(TriggeredAbility{
		Controller:  "p1",
		EventType:   EventCastSpell,
		Controllers: FilterOpponent,
		Build:       buildNoop,
	})

	if got := tm.Handle(NewEvent(EventCastSpell, "", "spell", "p1"), "p1"); len(got) != 0 {
		t.Fatal("opponent filter must ignore the controller's own casts")
	}
	if got := tm.Handle(NewEvent(EventCastSpell, "", "spell", "p2"), "p1"); len(got) != 1 {
		t.Fatal("opponent filter should fire on an opponent's cast")
	}
}

func TestTriggerScopeFilter(t *testing.T) {
	tm := NewTriggerManager()
	tm.Register(TriggeredAbility{
		Controller: "p1",
		EventType:  EventDrewCard,
		Scope:      ScopeNonactive,
		Build:      buildNoop,
	})

	if got := tm.Handle(NewEvent(EventDrewCard, "", "", "p1"), "p1"); len(got) != 0 {
		t.Fatal("nonactive scope must not fire for the active player's draw")
	}
	if got := tm.Handle(NewEvent(EventDrewCard, "", "", "p2"), "p1"); len(got) != 1 {
		t.Fatal("nonactive scope should fire for a nonactive player's draw")
	}
}

func TestTriggerFirstOfTurnFiresOnce(t *testing.T) {
	tm := NewTriggerManager()
	tm.Register(TriggeredAbility{
		Controller:  "p1",
		EventType:   EventLandPlayed,
		FirstOfTurn: true,
		Build:       buildNoop,
	})

	evt := NewEvent(EventLandPlayed, "land", "", "p1")
	if got := tm.Handle(evt, "p1"); len(got) != 1 {
		t.Fatal("first land of the turn should fire")
	}
	if got := tm.Handle(evt, "p1"); len(got) != 0 {
		t.Fatal("second land the same turn must not fire")
	}

	tm.ResetTurn()
	if got := tm.Handle(evt, "p1"); len(got) != 1 {
		t.Fatal("new turn resets the first-of-turn flag")
	}
}

func TestTriggerOnceUnregistersAfterFiring(t *testing.T) {
	tm := NewTriggerManager()
	tm.Register(TriggeredAbility{
		Controller: "p1",
		EventType:  EventEndStep,
		Once:       true,
		Build:      buildNoop,
	})

	evt := NewEvent(EventEndStep, "", "", "p1")
	if got := tm.Handle(evt, "p1"); len(got) != 1 {
		t.Fatal("delayed trigger should fire once")
	}
	if got := tm.Handle(evt, "p1"); len(got) != 0 {
		t.Fatal("one-shot trigger must not fire twice")
	}
}

func TestUnregisterSourceDropsAllItsTriggers(t *testing.T) {
	tm := NewTriggerManager()
	tm.Register(TriggeredAbility{SourceID: "perm", Controller: "p1", EventType: EventUpkeepStep, Build: buildNoop})
	tm.Register(TriggeredAbility{SourceID: "perm", Controller: "p1", EventType: EventEndStep, Build: buildNoop})
	tm.Register(TriggeredAbility{SourceID: "other", Controller: "p1", EventType: EventUpkeepStep, Build: buildNoop})

	tm.UnregisterSource("perm")

	if got := tm.Handle(NewEvent(EventUpkeepStep, "", "", "p1"), "p1"); len(got) != 1 {
		t.Fatalf("only the surviving source should fire, got %d", len(got))
	}
	if got := tm.Handle(NewEvent(EventEndStep, "", "", "p1"), "p1"); len(got) != 0 {
		t.Fatal("removed source must not fire")
	}
}

func TestSortAPNAPActivePlayerFirst(t *testing.T) {
	tm := NewTriggerManager()
	tm.Register(TriggeredAbility{Controller: "p3", EventType: EventCombatDamage, Build: buildNoop})
	tm.Register(TriggeredAbility{Controller: "p1", EventType: EventCombatDamage, Build: buildNoop})
	tm.Register(TriggeredAbility{Controller: "p2", EventType: EventCombatDamage, Build: buildNoop})

	pending := tm.Handle(NewEvent(EventCombatDamage, "", "", "p1"), "p2")
	sorted := SortAPNAP(pending, "p2", []string{"p2", "p3", "p1"})

	if len(sorted) != 3 {
		t.Fatalf("expected 3 pending triggers, got %d", len(sorted))
	}
	order := []string{sorted[0].Trigger.Controller, sorted[1].Trigger.Controller, sorted[2].Trigger.Controller}
	if order[0] != "p2" || order[1] != "p3" || order[2] != "p1" {
		t.Fatalf("expected APNAP order p2,p3,p1 got %v", order)
	}
}

func TestSortAPNAPRegistrationOrderWithinPlayer(t *testing.T) {
	tm := NewTriggerManager()
	a := tm.Register(TriggeredAbility{Controller: "p1", EventType: EventUpkeepStep, Build: buildNoop})
	b := tm.Register(TriggeredAbility{Controller: "p1", EventType: EventUpkeepStep, Build: buildNoop})

	pending := tm.Handle(NewEvent(EventUpkeepStep, "", "", "p1"), "p1")
	sorted := SortAPNAP(pending, "p1", []string{"p1"})

	if len(sorted) != 2 {
		t.Fatalf("expected 2 pending triggers, got %d", len(sorted))
	}
	if sorted[0].Trigger.ID != a || sorted[1].Trigger.ID != b {
		t.Fatal("same-controller triggers should keep registration order")
	}
}

func TestPendingTriggerItemDefaults(t *testing.T) {
	pt := PendingTrigger{
		Trigger: TriggeredAbility{
			SourceID:   "src",
			Controller: "p1",
			Build:      func(Event) StackItem { return StackItem{Description: "draw a card"} },
		},
	}

	item := pt.Item()
	if item.ID == "" {
		t.Fatal("item should receive a generated ID")
	}
	if item.Kind != StackItemKindTriggered {
		t.Fatalf("expected triggered kind, got %s", item.Kind)
	}
	if item.Controller != "p1" || item.SourceID != "src" {
		t.Fatalf("controller/source defaults not applied: %+v", item)
	}
}

func TestControllersOfDeduplicates(t *testing.T) {
	pending := []PendingTrigger{
		{Trigger: TriggeredAbility{Controller: "p1"}},
		{Trigger: TriggeredAbility{Controller: "p2"}},
		{Trigger: TriggeredAbility{Controller: "p1"}},
	}

	controllers := ControllersOf(pending)
	if len(controllers) != 2 || controllers[0] != "p1" || controllers[1] != "p2" {
		t.Fatalf("unexpected controllers %v", controllers)
	}
}

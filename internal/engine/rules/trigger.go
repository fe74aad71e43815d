package rules

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

// ControllerFilter restricts a trigger to events whose controller stands in a
// given relation to the trigger's own controller.
type ControllerFilter string

const (
	// FilterAny matches regardless of who controls the event.
	FilterAny ControllerFilter = "ANY"
	// FilterYou matches only events controlled by the trigger's controller.
	FilterYou ControllerFilter = "YOU"
	// FilterOpponent matches only events controlled by other players.
	FilterOpponent ControllerFilter = "OPPONENT"
)

// PlayerScope restricts a trigger to the active or nonactive player's events.
type PlayerScope string

const (
	ScopeAny       PlayerScope = "ANY"
	ScopeActive    PlayerScope = "ACTIVE"
	ScopeNonactive PlayerScope = "NONACTIVE"
)

// TriggeredAbility encapsulates the logic for reacting to a specific event
// and producing a stack item when its conditions are satisfied.
type TriggeredAbility struct {
	ID          string
	SourceID    string
	Controller  string
	EventType   EventType
	Controllers ControllerFilter // zero value treated as FilterAny
	Scope       PlayerScope      // zero value treated as ScopeAny
	FirstOfTurn bool             // fires at most once each turn
	Condition   func(Event) bool
	Build       func(Event) StackItem
	Once        bool // unregisters after firing
}

// PendingTrigger is a trigger that has fired but has not yet been put on the
// stack. Pending triggers are ordered APNAP before placement.
type PendingTrigger struct {
	Trigger TriggeredAbility
	Event   Event
	seq     int
}

// Item builds the stack item for this pending trigger.
func (pt PendingTrigger) Item() StackItem {
	item := pt.Trigger.Build(pt.Event)
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.Kind == "" {
		item.Kind = StackItemKindTriggered
	}
	if item.Controller == "" {
		item.Controller = pt.Trigger.Controller
	}
	if item.SourceID == "" {
		item.SourceID = pt.Trigger.SourceID
	}
	return item
}

// TriggerManager stores and evaluates triggered abilities against events.
type TriggerManager struct {
	mu            sync.Mutex
	triggers      map[string]TriggeredAbility
	order         map[string]int // registration order, APNAP tie-break
	nextSeq       int
	firedThisTurn map[string]bool
}

// NewTriggerManager creates an empty trigger manager.
func NewTriggerManager() *TriggerManager {
	return &TriggerManager{
		triggers:      make(map[string]TriggeredAbility),
		order:         make(map[string]int),
		firedThisTurn: make(map[string]bool),
	}
}

// Register adds a triggered ability and returns its ID.
func (tm *TriggerManager) Register(trigger TriggeredAbility) string {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if trigger.ID == "" {
		trigger.ID = uuid.NewString()
	}
	tm.triggers[trigger.ID] = trigger
	tm.order[trigger.ID] = tm.nextSeq
	tm.nextSeq++
	return trigger.ID
}

// Unregister removes a trigger by ID.
func (tm *TriggerManager) Unregister(id string) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	delete(tm.triggers, id)
	delete(tm.order, id)
}

// UnregisterSource removes every trigger registered for the given source
// object, typically because it left the battlefield.
func (tm *TriggerManager) UnregisterSource(sourceID string) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	for id, trigger := range tm.triggers {
		if trigger.SourceID == sourceID {
			delete(tm.triggers, id)
			delete(tm.order, id)
		}
	}
}

// ResetTurn clears first-of-turn bookkeeping. Called at the start of each
// turn.
func (tm *TriggerManager) ResetTurn() {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.firedThisTurn = make(map[string]bool)
}

// Handle evaluates the event against all registered triggers and returns the
// pending triggers it produced, unordered. The caller sorts them APNAP and
// places them on the stack before priority is granted.
func (tm *TriggerManager) Handle(event Event, activePlayer string) []PendingTrigger {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if len(tm.triggers) == 0 {
		return nil
	}

	var (
		pending  []PendingTrigger
		toRemove []string
	)

	for id, trigger := range tm.triggers {
		if trigger.EventType != event.Type {
			continue
		}
		if !matchesController(trigger, event) {
			continue
		}
		if !matchesScope(trigger, event, activePlayer) {
			continue
		}
		if trigger.FirstOfTurn && tm.firedThisTurn[id] {
			continue
		}
		if trigger.Condition != nil && !trigger.Condition(event) {
			continue
		}
		if trigger.Build == nil {
			continue
		}

		pending = append(pending, PendingTrigger{
			Trigger: trigger,
			Event:   event,
			seq:     tm.order[id],
		})

		if trigger.FirstOfTurn {
			tm.firedThisTurn[id] = true
		}
		if trigger.Once {
			toRemove = append(toRemove, id)
		}
	}

	for _, id := range toRemove {
		delete(tm.triggers, id)
		delete(tm.order, id)
	}

	return pending
}

func matchesController(trigger TriggeredAbility, event Event) bool {
	switch trigger.Controllers {
	case FilterYou:
		return event.Controller == trigger.Controller
	case FilterOpponent:
		return event.Controller != "" && event.Controller != trigger.Controller
	default:
		return true
	}
}

func matchesScope(trigger TriggeredAbility, event Event, activePlayer string) bool {
	switch trigger.Scope {
	case ScopeActive:
		return event.PlayerID == activePlayer
	case ScopeNonactive:
		return event.PlayerID != activePlayer
	default:
		return true
	}
}

// SortAPNAP orders pending triggers for stack placement per rule 603.3b and
// APNAP order (rule 101.4): the active player's triggers first, then each
// other player's in turn order. Within one player, registration order is the
// default; a player with multiple triggers may reorder their own slice via a
// trigger-order resolution step before placement.
func SortAPNAP(pending []PendingTrigger, activePlayer string, turnOrder []string) []PendingTrigger {
	rank := make(map[string]int, len(turnOrder))
	for i, p := range turnOrder {
		rank[p] = i
	}
	if _, ok := rank[activePlayer]; !ok {
		rank[activePlayer] = -1
	}

	sorted := make([]PendingTrigger, len(pending))
	copy(sorted, pending)
	sort.SliceStable(sorted, func(i, j int) bool {
		ri, iOK := rank[sorted[i].Trigger.Controller]
		rj, jOK := rank[sorted[j].Trigger.Controller]
		if !iOK {
			ri = len(turnOrder)
		}
		if !jOK {
			rj = len(turnOrder)
		}
		if ri != rj {
			return ri < rj
		}
		return sorted[i].seq < sorted[j].seq
	})
	return sorted
}

// ControllersOf returns the distinct controllers among the pending triggers,
// in the given order. Used to decide which players need a trigger-order
// prompt.
func ControllersOf(pending []PendingTrigger) []string {
	seen := make(map[string]bool)
	var controllers []string
	for _, pt := range pending {
		if !seen[pt.Trigger.Controller] {
			seen[pt.Trigger.Controller] = true
			controllers = append(controllers, pt.Trigger.Controller)
		}
	}
	return controllers
}

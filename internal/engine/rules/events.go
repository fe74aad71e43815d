package rules

import (
	"sync"
	"time"
)

// EventType indicates the category of a rules event.
type EventType string

const (
	// Turn structure events
	EventGameStarted   EventType = "GAME_STARTED"
	EventGameEnded     EventType = "GAME_ENDED"
	EventBeginTurn     EventType = "BEGIN_TURN"
	EventPhaseChanged  EventType = "PHASE_CHANGED"
	EventStepChanged   EventType = "STEP_CHANGED"
	EventUpkeepStep    EventType = "UPKEEP_STEP"
	EventDrawStep      EventType = "DRAW_STEP"
	EventEndStep       EventType = "END_STEP"
	EventCleanupStep   EventType = "CLEANUP_STEP"
	EventEmptyManaPool EventType = "EMPTY_MANA_POOL"

	// Zone events
	EventZoneChange           EventType = "ZONE_CHANGE"
	EventEntersTheBattlefield EventType = "ENTERS_THE_BATTLEFIELD"
	EventPermanentDies        EventType = "PERMANENT_DIES"
	EventTokenCeased          EventType = "TOKEN_CEASED"
	EventExiled               EventType = "EXILED"
	EventFlickered            EventType = "FLICKERED"

	// Card events
	EventDrawCard        EventType = "DRAW_CARD"
	EventDrewCard        EventType = "DREW_CARD"
	EventDrewFromEmpty   EventType = "DREW_FROM_EMPTY"
	EventDiscardedCard   EventType = "DISCARDED_CARD"
	EventMilledCard      EventType = "MILLED_CARD"
	EventScried          EventType = "SCRIED"
	EventSurveiled       EventType = "SURVEILED"
	EventExplored        EventType = "EXPLORED"
	EventSearchLibrary   EventType = "SEARCH_LIBRARY"
	EventLibraryShuffled EventType = "LIBRARY_SHUFFLED"

	// Spell/Ability events
	EventCastSpell        EventType = "CAST_SPELL"
	EventSpellCast        EventType = "SPELL_CAST"
	EventCastCommander    EventType = "CAST_COMMANDER"
	EventPlayLand         EventType = "PLAY_LAND"
	EventLandPlayed       EventType = "LAND_PLAYED"
	EventActivatedAbility EventType = "ACTIVATED_ABILITY"
	EventTriggeredAbility EventType = "TRIGGERED_ABILITY"
	EventCountered        EventType = "COUNTERED"
	EventManaAdded        EventType = "MANA_ADDED"
	EventManaPaid         EventType = "MANA_PAID"

	// Life/Damage events
	EventDamagePlayer     EventType = "DAMAGE_PLAYER"
	EventDamagedPlayer    EventType = "DAMAGED_PLAYER"
	EventDamagePermanent  EventType = "DAMAGE_PERMANENT"
	EventDamagedPermanent EventType = "DAMAGED_PERMANENT"
	EventCommanderDamage  EventType = "COMMANDER_DAMAGE"
	EventGainedLife       EventType = "GAINED_LIFE"
	EventLostLife         EventType = "LOST_LIFE"
	EventLifeChanged      EventType = "LIFE_CHANGED"

	// Combat events
	EventAttackerDeclared  EventType = "ATTACKER_DECLARED"
	EventBlockerDeclared   EventType = "BLOCKER_DECLARED"
	EventUnblockedAttacker EventType = "UNBLOCKED_ATTACKER"
	EventCombatDamage      EventType = "COMBAT_DAMAGE"
	EventGoaded            EventType = "GOADED"
	EventRemovedFromCombat EventType = "REMOVED_FROM_COMBAT"

	// Permanent state events
	EventTapped         EventType = "TAPPED"
	EventUntapped       EventType = "UNTAPPED"
	EventCounterAdded   EventType = "COUNTER_ADDED"
	EventCounterRemoved EventType = "COUNTER_REMOVED"
	EventDestroyed      EventType = "DESTROYED"
	EventSacrificed     EventType = "SACRIFICED"
	EventRegenerated    EventType = "REGENERATED"
	EventTokenCreated   EventType = "TOKEN_CREATED"
	EventUpgraded       EventType = "UPGRADED"
	EventAttached       EventType = "ATTACHED"
	EventUnattached     EventType = "UNATTACHED"

	// Targeting events
	EventTargeted EventType = "TARGETED"

	// Player events
	EventMulligan EventType = "MULLIGAN"
	EventKeptHand EventType = "KEPT_HAND"
	EventConceded EventType = "CONCEDED"
	EventLost     EventType = "LOST"
	EventWins     EventType = "WINS"

	// Stack events
	EventStackItemResolving EventType = "STACK_ITEM_RESOLVING"
	EventStackItemResolved  EventType = "STACK_ITEM_RESOLVED"
	EventStackItemRemoved   EventType = "STACK_ITEM_REMOVED"

	// State-based actions event
	EventStateBasedActions EventType = "STATE_BASED_ACTIONS"
)

// Event represents a state change that other subsystems may react to.
type Event struct {
	Type           EventType
	ID             string            // Unique event ID
	TargetID       string            // ID of the target (card, player, etc.)
	SourceID       string            // ID of the source ability/object
	Controller     string            // Player ID of the controller
	PlayerID       string            // Player ID (often same as Controller, but can differ)
	Amount         int               // Numeric value (damage, life, counters, etc.)
	Flag           bool              // Boolean flag (combat damage, effect vs cost, etc.)
	Data           string            // Additional string data
	Targets        []string          // Multiple targets (for multi-target events)
	Timestamp      time.Time         // When the event occurred
	Metadata       map[string]string // Additional metadata
	Description    string            // Human-readable description
	AppliedEffects []string          // IDs of replacement effects already applied
}

// Listener defines a callback that reacts to incoming events.
type Listener func(Event)

// TypedListener defines a callback that reacts to a specific event type.
type TypedListener struct {
	Handle    int
	EventType EventType
	Callback  func(Event)
}

// EventBus provides a synchronous publish/subscribe implementation with type
// filtering. All delivery happens on the publisher's goroutine; the per-game
// mutex above the bus is what makes that safe.
type EventBus struct {
	mu             sync.RWMutex
	listeners      map[int]Listener
	typedListeners map[EventType][]TypedListener
	nextHandle     int
}

// NewEventBus constructs a fresh event bus instance.
func NewEventBus() *EventBus {
	return &EventBus{
		listeners:      make(map[int]Listener),
		typedListeners: make(map[EventType][]TypedListener),
	}
}

// Subscribe registers a listener for all events and returns a handle.
func (bus *EventBus) Subscribe(listener Listener) int {
	if listener == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.listeners[handle] = listener
	return handle
}

// SubscribeTyped registers a listener for a specific event type.
func (bus *EventBus) SubscribeTyped(eventType EventType, callback func(Event)) int {
	if callback == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.typedListeners[eventType] = append(bus.typedListeners[eventType], TypedListener{
		Handle:    handle,
		EventType: eventType,
		Callback:  callback,
	})
	return handle
}

// Unsubscribe removes the listener identified by the provided handle.
func (bus *EventBus) Unsubscribe(handle int) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	delete(bus.listeners, handle)
	for eventType, listeners := range bus.typedListeners {
		for i := len(listeners) - 1; i >= 0; i-- {
			if listeners[i].Handle == handle {
				bus.typedListeners[eventType] = append(listeners[:i], listeners[i+1:]...)
				break
			}
		}
	}
}

// Publish delivers the event to all registered listeners synchronously.
func (bus *EventBus) Publish(event Event) {
	bus.mu.RLock()
	defer bus.mu.RUnlock()

	for _, listener := range bus.listeners {
		listener(event)
	}
	for _, listener := range bus.typedListeners[event.Type] {
		listener.Callback(event)
	}
}

// PublishBatch publishes multiple events in order.
func (bus *EventBus) PublishBatch(events []Event) {
	for _, event := range events {
		bus.Publish(event)
	}
}

// NewEvent creates a new event with common fields populated.
func NewEvent(eventType EventType, targetID, sourceID, controllerID string) Event {
	return Event{
		Type:           eventType,
		TargetID:       targetID,
		SourceID:       sourceID,
		Controller:     controllerID,
		PlayerID:       controllerID,
		Timestamp:      time.Now(),
		Metadata:       make(map[string]string),
		AppliedEffects: make([]string, 0),
	}
}

// NewEventWithAmount creates a new event with an amount value.
func NewEventWithAmount(eventType EventType, targetID, sourceID, controllerID string, amount int) Event {
	evt := NewEvent(eventType, targetID, sourceID, controllerID)
	evt.Amount = amount
	return evt
}

// NewEventWithFlag creates a new event with a flag value.
func NewEventWithFlag(eventType EventType, targetID, sourceID, controllerID string, flag bool) Event {
	evt := NewEvent(eventType, targetID, sourceID, controllerID)
	evt.Flag = flag
	return evt
}

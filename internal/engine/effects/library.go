package effects

import (
	"strconv"

	"github.com/conclave-games/conclave-server/internal/engine/rules"
)

// Metadata keys written by replacement effects for the engine to read back.
const (
	MetaEntersTapped  = "enters_tapped"
	MetaCounterPrefix = "enters_counter:"
	MetaRegenerated   = "regenerated"
	MetaRedirectZone  = "redirect_zone"
)

// DamagePrevention prevents damage to one target, optionally only from one
// source. Shield 0 prevents all matching damage; a positive shield absorbs
// that much and then expires.
type DamagePrevention struct {
	base
	TargetID   string
	FromSource string
	shield     int
	limited    bool
}

// NewDamagePrevention creates a prevention effect. shield <= 0 means prevent
// all matching damage for the effect's duration.
func NewDamagePrevention(sourceID, targetID, fromSource string, shield int, duration Duration) *DamagePrevention {
	return &DamagePrevention{
		base:       newBase(sourceID, duration, false),
		TargetID:   targetID,
		FromSource: fromSource,
		shield:     shield,
		limited:    shield > 0,
	}
}

// Shield returns the remaining shield amount.
func (e *DamagePrevention) Shield() int { return e.shield }

func (e *DamagePrevention) Matches(event rules.Event) bool {
	if event.Type != rules.EventDamagePlayer && event.Type != rules.EventDamagePermanent {
		return false
	}
	if e.TargetID != "" && event.TargetID != e.TargetID {
		return false
	}
	if e.FromSource != "" && event.SourceID != e.FromSource {
		return false
	}
	if e.limited && e.shield <= 0 {
		return false
	}
	return event.Amount > 0
}

func (e *DamagePrevention) Apply(event rules.Event) (rules.Event, bool) {
	if !e.limited {
		event.Amount = 0
		return event, true
	}
	prevented := event.Amount
	if prevented > e.shield {
		prevented = e.shield
	}
	e.shield -= prevented
	event.Amount -= prevented
	return event, event.Amount == 0
}

// RegenerationShield replaces the next destruction of one permanent this
// turn: the permanent is tapped, its damage removed, and it is removed from
// combat instead of dying (rule 701.19). Consumed on use.
type RegenerationShield struct {
	base
	PermanentID string
}

// NewRegenerationShield creates a one-use regeneration shield.
func NewRegenerationShield(sourceID, permanentID string) *RegenerationShield {
	return &RegenerationShield{
		base:        newBase(sourceID, DurationOneUse, false),
		PermanentID: permanentID,
	}
}

func (e *RegenerationShield) Matches(event rules.Event) bool {
	return event.Type == rules.EventDestroyed && event.TargetID == e.PermanentID
}

func (e *RegenerationShield) Apply(event rules.Event) (rules.Event, bool) {
	if event.Metadata == nil {
		event.Metadata = make(map[string]string)
	}
	event.Metadata[MetaRegenerated] = "true"
	return event, true
}

// CantLose cancels loss events for one player ("you can't lose the game").
type CantLose struct {
	base
	PlayerID string
}

// NewCantLose creates a can't-lose effect.
func NewCantLose(sourceID, playerID string, duration Duration) *CantLose {
	return &CantLose{
		base:     newBase(sourceID, duration, false),
		PlayerID: playerID,
	}
}

func (e *CantLose) Matches(event rules.Event) bool {
	return event.Type == rules.EventLost && event.PlayerID == e.PlayerID
}

func (e *CantLose) Apply(event rules.Event) (rules.Event, bool) {
	return event, true
}

// WinInstead turns a matching event into a win for the player, such as "if
// you would draw a card while your library has no cards in it, you win the
// game instead".
type WinInstead struct {
	base
	PlayerID  string
	EventType rules.EventType
}

// NewWinInstead creates a win-instead replacement for the given event type.
func NewWinInstead(sourceID, playerID string, eventType rules.EventType) *WinInstead {
	return &WinInstead{
		base:      newBase(sourceID, DurationPermanent, false),
		PlayerID:  playerID,
		EventType: eventType,
	}
}

func (e *WinInstead) Matches(event rules.Event) bool {
	return event.Type == e.EventType && event.PlayerID == e.PlayerID
}

func (e *WinInstead) Apply(event rules.Event) (rules.Event, bool) {
	event.Type = rules.EventWins
	event.Description = "wins the game instead"
	return event, false
}

// RedirectZoneChange sends a matching card to a different zone, e.g. "if a
// creature you control would die, exile it instead".
type RedirectZoneChange struct {
	base
	CardID     string // empty matches any card
	Controller string // empty matches any controller
	FromZone   string
	ToZone     string // the zone the event would use; empty matches any
	NewZone    string
}

// NewRedirectZoneChange creates a zone redirect effect.
func NewRedirectZoneChange(sourceID, cardID, controller, toZone, newZone string, duration Duration) *RedirectZoneChange {
	return &RedirectZoneChange{
		base:       newBase(sourceID, duration, false),
		CardID:     cardID,
		Controller: controller,
		ToZone:     toZone,
		NewZone:    newZone,
	}
}

func (e *RedirectZoneChange) Matches(event rules.Event) bool {
	if event.Type != rules.EventZoneChange {
		return false
	}
	if e.CardID != "" && event.TargetID != e.CardID {
		return false
	}
	if e.Controller != "" && event.Controller != e.Controller {
		return false
	}
	if e.ToZone != "" && event.Metadata["to"] != e.ToZone {
		return false
	}
	return true
}

func (e *RedirectZoneChange) Apply(event rules.Event) (rules.Event, bool) {
	if event.Metadata == nil {
		event.Metadata = make(map[string]string)
	}
	event.Metadata[MetaRedirectZone] = e.NewZone
	event.Metadata["to"] = e.NewZone
	return event, false
}

// EntersModifier is the self-replacement written on an entering permanent:
// "~ enters the battlefield tapped" or "with N counters on it". The engine
// reads the metadata when completing the battlefield entry.
type EntersModifier struct {
	base
	CardID   string
	Tapped   bool
	Counters map[string]int
}

// NewEntersModifier creates an enters-the-battlefield modifier for one card.
func NewEntersModifier(sourceID, cardID string, tapped bool, counters map[string]int) *EntersModifier {
	return &EntersModifier{
		base:     newBase(sourceID, DurationOneUse, true),
		CardID:   cardID,
		Tapped:   tapped,
		Counters: counters,
	}
}

func (e *EntersModifier) Matches(event rules.Event) bool {
	return event.Type == rules.EventEntersTheBattlefield && event.TargetID == e.CardID
}

func (e *EntersModifier) Apply(event rules.Event) (rules.Event, bool) {
	if event.Metadata == nil {
		event.Metadata = make(map[string]string)
	}
	if e.Tapped {
		event.Metadata[MetaEntersTapped] = "true"
	}
	for name, n := range e.Counters {
		event.Metadata[MetaCounterPrefix+name] = strconv.Itoa(n)
	}
	return event, false
}

// DoubleAmount doubles a numeric event, such as "if you would gain life, you
// gain twice that much life instead".
type DoubleAmount struct {
	base
	EventTypes []rules.EventType
	PlayerID   string
}

// NewDoubleAmount creates a doubling replacement.
func NewDoubleAmount(sourceID, playerID string, eventTypes []rules.EventType, duration Duration) *DoubleAmount {
	return &DoubleAmount{
		base:       newBase(sourceID, duration, false),
		EventTypes: eventTypes,
		PlayerID:   playerID,
	}
}

func (e *DoubleAmount) Matches(event rules.Event) bool {
	if e.PlayerID != "" && event.PlayerID != e.PlayerID {
		return false
	}
	for _, et := range e.EventTypes {
		if et == event.Type {
			return true
		}
	}
	return false
}

func (e *DoubleAmount) Apply(event rules.Event) (rules.Event, bool) {
	event.Amount *= 2
	return event, false
}

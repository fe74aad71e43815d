// Package effects implements replacement and prevention effects. A
// replacement effect intercepts an event before the engine applies it and
// rewrites or cancels it (rules 614 and 615).
package effects

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/conclave-games/conclave-server/internal/engine/rules"
)

// Duration describes how long an effect remains registered.
type Duration string

const (
	// DurationPermanent lasts until the source leaves the battlefield.
	DurationPermanent Duration = "PERMANENT"
	// DurationEndOfTurn expires during cleanup.
	DurationEndOfTurn Duration = "END_OF_TURN"
	// DurationOneUse is consumed by its first application (shields).
	DurationOneUse Duration = "ONE_USE"
)

// Replacement intercepts matching events. Apply returns the rewritten event
// and whether the event was consumed entirely; a consumed event is not
// applied by the engine and no further replacements run on it.
type Replacement interface {
	ID() string
	SourceID() string
	Duration() Duration
	Matches(event rules.Event) bool
	Apply(event rules.Event) (rules.Event, bool)
	// SelfReplacement effects come from the event's own source and are
	// applied before any other replacement (rule 614.15).
	SelfReplacement() bool
}

// base carries the identity shared by all replacement implementations.
type base struct {
	id       string
	sourceID string
	duration Duration
	self     bool
}

func newBase(sourceID string, duration Duration, self bool) base {
	return base{
		id:       uuid.NewString(),
		sourceID: sourceID,
		duration: duration,
		self:     self,
	}
}

func (b base) ID() string            { return b.id }
func (b base) SourceID() string      { return b.sourceID }
func (b base) Duration() Duration    { return b.duration }
func (b base) SelfReplacement() bool { return b.self }

// Manager holds the active replacement effects of one game and applies them
// to events per rule 616: one effect at a time, self-replacements first, and
// each effect at most once per event (rule 614.5).
type Manager struct {
	mu      sync.Mutex
	effects map[string]Replacement
	logger  *zap.Logger
}

// NewManager creates an empty replacement manager.
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		effects: make(map[string]Replacement),
		logger:  logger,
	}
}

// Add registers a replacement effect.
func (m *Manager) Add(effect Replacement) {
	if effect == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.effects[effect.ID()] = effect
	m.logger.Debug("replacement effect added",
		zap.String("effect_id", effect.ID()),
		zap.String("source_id", effect.SourceID()))
}

// Remove unregisters a replacement effect by ID.
func (m *Manager) Remove(effectID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.effects, effectID)
}

// RemoveSource unregisters every effect created by the given source,
// typically because it left the battlefield.
func (m *Manager) RemoveSource(sourceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, effect := range m.effects {
		if effect.SourceID() == sourceID {
			delete(m.effects, id)
		}
	}
}

// ExpireEndOfTurn drops every end-of-turn effect. Called during cleanup.
// Returns how many effects expired.
func (m *Manager) ExpireEndOfTurn() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	expired := 0
	for id, effect := range m.effects {
		if effect.Duration() == DurationEndOfTurn {
			delete(m.effects, id)
			expired++
		}
	}
	return expired
}

// Len returns the number of registered effects.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.effects)
}

// Apply runs the replacement chain on the event. Returns the final event and
// whether it survived: false means some effect consumed it entirely and the
// engine must not apply it. One-use effects are removed once applied.
func (m *Manager) Apply(event rules.Event) (rules.Event, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	applied := make(map[string]bool, len(event.AppliedEffects))
	for _, id := range event.AppliedEffects {
		applied[id] = true
	}

	// Bounded: each effect applies at most once per event.
	limit := len(m.effects)
	for i := 0; i < limit; i++ {
		chosen := m.pick(event, applied)
		if chosen == nil {
			break
		}

		replaced, consumed := chosen.Apply(event)
		event = replaced
		applied[chosen.ID()] = true
		event.AppliedEffects = append(event.AppliedEffects, chosen.ID())

		if chosen.Duration() == DurationOneUse {
			delete(m.effects, chosen.ID())
		}

		m.logger.Debug("replacement effect applied",
			zap.String("effect_id", chosen.ID()),
			zap.String("event_type", string(event.Type)),
			zap.Bool("consumed", consumed))

		if consumed {
			return event, false
		}
	}

	return event, true
}

// pick selects the next effect to apply: a self-replacement when one
// matches, otherwise any matching effect. With several candidates the
// affected player would choose; registration iteration order stands in for
// that choice.
func (m *Manager) pick(event rules.Event, applied map[string]bool) Replacement {
	var fallback Replacement
	for _, effect := range m.effects {
		if applied[effect.ID()] || !effect.Matches(event) {
			continue
		}
		if effect.SelfReplacement() {
			return effect
		}
		if fallback == nil {
			fallback = effect
		}
	}
	return fallback
}

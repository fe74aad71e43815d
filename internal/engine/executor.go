package engine

import (
	"strings"

	"github.com/conclave-games/conclave-server/internal/engine/mana"
	"github.com/conclave-games/conclave-server/internal/engine/pattern"
	"github.com/conclave-games/conclave-server/internal/engine/rules"
)

// gameExecutor adapts a Game to the pattern execution surface. All methods
// run under the game mutex, called from a resolving stack item.
type gameExecutor struct {
	g *Game
}

var _ pattern.Executor = gameExecutor{}

func (e gameExecutor) DamageEachCreatureAndPlayer(sourceID string, n int) {
	g := e.g
	for _, id := range sortedKeys(g.battlefield) {
		if perm := g.battlefield[id]; perm.IsCreature() {
			g.damagePermanent(perm, sourceID, n, false)
		}
	}
	for _, pid := range g.turns.RemainingPlayers() {
		g.damagePlayer(pid, sourceID, n, false)
	}
}

func (e gameExecutor) DamageAnyTarget(sourceID, targetID string, n int) error {
	g := e.g
	if perm, ok := g.permanent(targetID); ok {
		g.damagePermanent(perm, sourceID, n, false)
		return nil
	}
	if p, ok := g.players[targetID]; ok && !p.Lost {
		g.damagePlayer(targetID, sourceID, n, false)
		return nil
	}
	return notFoundf("target %s not found", targetID)
}

func (e gameExecutor) DestroyEachWithManaValue(manaValue int, typeFilter string) int {
	g := e.g
	destroyed := 0
	for _, id := range sortedKeys(g.battlefield) {
		perm, ok := g.battlefield[id]
		if !ok {
			continue
		}
		if !matchesTypeFilter(perm, typeFilter) {
			continue
		}
		cost, err := mana.ParseCost(perm.Card.ManaCost)
		if err != nil || cost.ManaValue(0) != manaValue {
			continue
		}
		if g.destroyPermanent(perm, "") {
			destroyed++
		}
	}
	return destroyed
}

func matchesTypeFilter(perm *Permanent, filter string) bool {
	switch strings.ToLower(filter) {
	case "nonland":
		return !perm.Card.IsLand()
	case "creature":
		return perm.IsCreature()
	default:
		f := strings.ToLower(filter)
		if f == "" {
			return false
		}
		return perm.Card.HasType(strings.ToUpper(f[:1]) + f[1:])
	}
}

func (e gameExecutor) AddCounters(permanentID, name string, n int) error {
	g := e.g
	perm, ok := g.permanent(permanentID)
	if !ok {
		return notFoundf("permanent %s not found", permanentID)
	}
	perm.Counters.Add(name, n)
	g.emit(rules.NewEventWithAmount(rules.EventCounterAdded, perm.ID, permanentID, perm.Controller, n))
	return nil
}

func (e gameExecutor) SetBaseCharacteristics(permanentID string, subtypes []string, power, toughness int, keywords []string) error {
	g := e.g
	perm, ok := g.permanent(permanentID)
	if !ok {
		return notFoundf("permanent %s not found", permanentID)
	}
	perm.ApplyUpgrade(subtypes, power, toughness, keywords)
	ev := rules.NewEvent(rules.EventUpgraded, perm.ID, permanentID, perm.Controller)
	ev.Data = strings.Join(subtypes, " ")
	g.emit(ev)
	return nil
}

// Flicker exiles and returns a permanent as a new object. Exiled tokens
// cease to exist and never return. A delayed flicker registers a one-shot
// return at the beginning of the next end step.
func (e gameExecutor) Flicker(permanentID string, delayed bool) error {
	g := e.g
	perm, ok := g.permanent(permanentID)
	if !ok {
		return notFoundf("permanent %s not found", permanentID)
	}

	ev := rules.NewEvent(rules.EventFlickered, perm.ID, "", perm.Controller)
	ev.Data = perm.Name
	ev.Flag = delayed
	g.emit(ev)

	wasToken := perm.IsToken
	cardID := perm.CardID
	owner := perm.Owner
	g.leaveBattlefield(perm, ZoneExile)
	if wasToken {
		return nil
	}

	if !delayed {
		p := g.players[owner]
		if p.removeFrom(ZoneExile, cardID) {
			g.enterBattlefield(cardID, owner, ZoneExile)
		}
		return nil
	}

	g.triggers.Register(rules.TriggeredAbility{
		SourceID:   cardID,
		Controller: owner,
		EventType:  rules.EventEndStep,
		Once:       true,
		Build: func(rules.Event) rules.StackItem {
			return rules.StackItem{
				Controller:  owner,
				Description: "Return the exiled card to the battlefield",
				Resolve: func() error {
					p := g.players[owner]
					if p.removeFrom(ZoneExile, cardID) {
						g.enterBattlefield(cardID, owner, ZoneExile)
					}
					return nil
				},
			}
		},
	})
	return nil
}

func (e gameExecutor) PermanentSubtypes(permanentID string) []string {
	if perm, ok := e.g.permanent(permanentID); ok {
		return perm.Subtypes()
	}
	return nil
}

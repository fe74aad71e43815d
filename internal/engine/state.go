package engine

import (
	"fmt"
	"strings"

	"github.com/conclave-games/conclave-server/internal/card"
	"github.com/conclave-games/conclave-server/internal/engine/counters"
	"github.com/conclave-games/conclave-server/internal/engine/mana"
	"github.com/conclave-games/conclave-server/internal/engine/oracle"
	"github.com/conclave-games/conclave-server/internal/engine/pattern"
)

// ZoneName identifies one of the game's zones.
type ZoneName string

const (
	ZoneLibrary     ZoneName = "library"
	ZoneHand        ZoneName = "hand"
	ZoneGraveyard   ZoneName = "graveyard"
	ZoneExile       ZoneName = "exile"
	ZoneCommand     ZoneName = "command"
	ZoneBattlefield ZoneName = "battlefield"
	ZoneStack       ZoneName = "stack"
)

// cardInstance is one physical card in the game. Instance identity is stable
// across zones; battlefield identity is the Permanent, which is minted fresh
// on every entry (rule 400.7).
type cardInstance struct {
	ID    string
	Owner string
	Card  card.Card
}

// Player holds one player's zones and status. Library index 0 is the top.
type Player struct {
	ID   string
	Name string

	Life   int
	Poison int
	Pool   *mana.Pool

	Library   []string
	Hand      []string
	Graveyard []string
	Exile     []string
	Command   []string

	CommanderCard   string // card instance ID, empty when not playing commander
	CommanderTax    int    // 2 generic per previous cast from the command zone
	CommanderDamage map[string]int

	MulliganCount int
	KeptHand      bool

	LandsPlayedThisTurn int
	LandDropsPerTurn    int

	Lost       bool
	Won        bool
	LossReason string
}

// removeFrom removes a card instance from the named zone slice. Returns
// false when absent.
func (p *Player) removeFrom(zone ZoneName, cardID string) bool {
	slice := p.zone(zone)
	if slice == nil {
		return false
	}
	for i, id := range *slice {
		if id == cardID {
			*slice = append((*slice)[:i], (*slice)[i+1:]...)
			return true
		}
	}
	return false
}

func (p *Player) zone(zone ZoneName) *[]string {
	switch zone {
	case ZoneLibrary:
		return &p.Library
	case ZoneHand:
		return &p.Hand
	case ZoneGraveyard:
		return &p.Graveyard
	case ZoneExile:
		return &p.Exile
	case ZoneCommand:
		return &p.Command
	default:
		return nil
	}
}

// Permanent is a battlefield object. Its ID is unique to this battlefield
// stay; the same card returning gets a new Permanent.
type Permanent struct {
	ID         string
	CardID     string // empty for tokens
	Name       string
	Card       card.Card
	Owner      string
	Controller string

	Tapped        bool
	Damage        int
	DeathtouchHit bool
	SummoningSick bool
	IsToken       bool

	Counters        *counters.Counters
	GrantedKeywords []string
	Attachments     []string
	AttachedTo      string

	// Characteristic-defining upgrade state. When upgraded, subtypes and
	// base power/toughness replace the printed values until the permanent
	// leaves the battlefield; an end-of-turn override expires at cleanup.
	Upgraded      bool
	UpgradeTypes  []string
	UpgradePower  int
	UpgradeTough  int
	eotOverride   *upgradeOverride
	upgradeStages int

	GoadedBy map[string]bool

	// Parsed ability data, populated on battlefield entry.
	abilities oracle.Parsed
	pattern   *pattern.Descriptor
	triggers  []string // trigger IDs registered for this permanent

	Attacking         string // player or planeswalker ID, empty when not attacking
	Blocking          string // attacker permanent ID
	BlockedBy         []string
	RemovedFromCombat bool

	DealtCombatDamageTo map[string]bool // players hit this turn
	ActivationsThisTurn map[string]int  // once-per-turn ability bookkeeping
}

type upgradeOverride struct {
	types []string
	power int
	tough int
}

func newPermanent(id string, inst *cardInstance, controller string) *Permanent {
	return &Permanent{
		ID:                  id,
		CardID:              inst.ID,
		Name:                inst.Card.Name,
		Card:                inst.Card,
		Owner:               inst.Owner,
		Controller:          controller,
		SummoningSick:       inst.Card.IsCreature(),
		Counters:            counters.New(),
		GoadedBy:            make(map[string]bool),
		DealtCombatDamageTo: make(map[string]bool),
		ActivationsThisTurn: make(map[string]int),
	}
}

func newTokenPermanent(id string, c card.Card, owner, controller string) *Permanent {
	return &Permanent{
		ID:                  id,
		Name:                c.Name,
		Card:                c,
		Owner:               owner,
		Controller:          controller,
		SummoningSick:       c.IsCreature(),
		IsToken:             true,
		Counters:            counters.New(),
		GoadedBy:            make(map[string]bool),
		DealtCombatDamageTo: make(map[string]bool),
		ActivationsThisTurn: make(map[string]int),
	}
}

// Power returns current power: upgraded or printed base plus boost counters.
func (p *Permanent) Power() int {
	base := p.Card.BasePower()
	if p.eotOverride != nil {
		base = p.eotOverride.power
	} else if p.Upgraded {
		base = p.UpgradePower
	}
	boost, _ := p.Counters.BoostTotals()
	return base + boost
}

// Toughness returns current toughness.
func (p *Permanent) Toughness() int {
	base := p.Card.BaseToughness()
	if p.eotOverride != nil {
		base = p.eotOverride.tough
	} else if p.Upgraded {
		base = p.UpgradeTough
	}
	_, boost := p.Counters.BoostTotals()
	return base + boost
}

// Subtypes returns the current creature subtypes, honoring upgrades.
func (p *Permanent) Subtypes() []string {
	if p.eotOverride != nil {
		return p.eotOverride.types
	}
	if p.Upgraded {
		return p.UpgradeTypes
	}
	return p.Card.Subtypes()
}

// IsCreature reports whether the permanent is currently a creature. An
// upgrade that sets base power and toughness makes it one.
func (p *Permanent) IsCreature() bool {
	return p.Card.IsCreature() || p.Upgraded || p.eotOverride != nil
}

// HasKeyword checks printed, granted, and counter-granted keywords.
func (p *Permanent) HasKeyword(kw string) bool {
	if p.Card.HasKeyword(kw) {
		return true
	}
	for _, k := range p.GrantedKeywords {
		if strings.EqualFold(k, kw) {
			return true
		}
	}
	return p.Counters.Has(kw)
}

// ApplyUpgrade permanently replaces subtypes and base power/toughness
// (characteristic-defining; survives until the permanent leaves the
// battlefield) and extends granted keywords.
func (p *Permanent) ApplyUpgrade(subtypes []string, power, toughness int, keywords []string) {
	p.Upgraded = true
	p.UpgradeTypes = subtypes
	p.UpgradePower = power
	p.UpgradeTough = toughness
	p.upgradeStages++
	for _, kw := range keywords {
		if !p.HasKeyword(kw) {
			p.GrantedKeywords = append(p.GrantedKeywords, kw)
		}
	}
}

// ApplyTemporaryBase sets an until-end-of-turn base override, cleared at
// cleanup.
func (p *Permanent) ApplyTemporaryBase(subtypes []string, power, toughness int) {
	p.eotOverride = &upgradeOverride{types: subtypes, power: power, tough: toughness}
}

// Goaded reports whether any opponent has goaded this creature.
func (p *Permanent) Goaded() bool {
	return len(p.GoadedBy) > 0
}

// LethalDamage reports whether marked damage destroys the creature.
func (p *Permanent) LethalDamage() bool {
	if !p.IsCreature() {
		return false
	}
	if p.Damage <= 0 {
		return false
	}
	return p.DeathtouchHit || p.Damage >= p.Toughness()
}

// checkZoneInvariant verifies every card instance lives in exactly one zone:
// one of its owner's lists, the battlefield (as a non-token permanent), or
// the stack. Violations are internal errors, never player-visible.
func (g *Game) checkZoneInvariant() error {
	locations := make(map[string]int, len(g.cards))

	for _, p := range g.players {
		for _, zone := range []ZoneName{ZoneLibrary, ZoneHand, ZoneGraveyard, ZoneExile, ZoneCommand} {
			for _, id := range *p.zone(zone) {
				locations[id]++
			}
		}
	}
	for _, perm := range g.battlefield {
		if perm.CardID != "" {
			locations[perm.CardID]++
		}
	}
	for _, item := range g.stack.List() {
		if cardID := item.Metadata["card_id"]; cardID != "" {
			locations[cardID]++
		}
	}

	for id := range g.cards {
		switch locations[id] {
		case 1:
		case 0:
			return fmt.Errorf("%w: card %s is in no zone", ErrInvariant, id)
		default:
			return fmt.Errorf("%w: card %s is in %d zones", ErrInvariant, id, locations[id])
		}
	}
	return nil
}

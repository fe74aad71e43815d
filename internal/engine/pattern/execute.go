package pattern

import (
	"fmt"
	"strings"
)

// Executor is the narrow mutation surface the engine exposes to pattern
// execution. Implementations apply the effect and emit their own events.
type Executor interface {
	// DamageEachCreatureAndPlayer deals n damage from source to every
	// creature and every player still in the game.
	DamageEachCreatureAndPlayer(sourceID string, n int)
	// DamageAnyTarget deals n damage from source to a creature, player, or
	// planeswalker.
	DamageAnyTarget(sourceID, targetID string, n int) error
	// DestroyEachWithManaValue destroys every matching permanent with the
	// given mana value and returns how many were destroyed. typeFilter is
	// "creature", "artifact", "enchantment", or "nonland".
	DestroyEachWithManaValue(manaValue int, typeFilter string) int
	// AddCounters puts n counters of the named kind on the permanent.
	AddCounters(permanentID, name string, n int) error
	// SetBaseCharacteristics permanently replaces a creature's subtypes and
	// base power/toughness, and extends its granted keywords.
	SetBaseCharacteristics(permanentID string, subtypes []string, power, toughness int, keywords []string) error
	// Flicker exiles the permanent and returns it (immediately or at the
	// beginning of the next end step) as a new object. Token permanents are
	// exiled and never return.
	Flicker(permanentID string, delayed bool) error
	// PermanentSubtypes returns the permanent's current subtype set, after
	// any applied upgrades.
	PermanentSubtypes(permanentID string) []string
}

// Result reports the outcome of executing a detected pattern.
type Result struct {
	Applied bool
	Logs    []string
}

// Execute applies a detected pattern on behalf of controller, with x as the
// chosen X value (ignored by patterns without {X} costs). Targets, when the
// pattern needs one, arrive via targetID. Restriction metadata (once per
// turn, sorcery speed, combat-damage precondition) is validated by the
// action layer before execution.
func Execute(ex Executor, sourceID, targetID string, x int, d *Descriptor) (Result, error) {
	if d == nil {
		return Result{}, fmt.Errorf("nil pattern descriptor")
	}

	switch d.Kind {
	case KindDealXDamageEach:
		ex.DamageEachCreatureAndPlayer(sourceID, x)
		return Result{Applied: true, Logs: []string{fmt.Sprintf("dealt %d damage to each creature and each player", x)}}, nil

	case KindDealXDamageTarget:
		if err := ex.DamageAnyTarget(sourceID, targetID, x); err != nil {
			return Result{}, err
		}
		return Result{Applied: true, Logs: []string{fmt.Sprintf("dealt %d damage", x)}}, nil

	case KindDestroyMVX:
		filter := "nonland"
		if len(d.Types) > 0 {
			filter = strings.ToLower(d.Types[0])
		}
		n := ex.DestroyEachWithManaValue(x, filter)
		return Result{Applied: true, Logs: []string{fmt.Sprintf("destroyed %d permanents with mana value %d", n, x)}}, nil

	case KindPutXCounters:
		name := "+1/+1"
		if len(d.Keywords) > 0 {
			name = d.Keywords[0]
		}
		if err := ex.AddCounters(sourceID, name, x); err != nil {
			return Result{}, err
		}
		return Result{Applied: true, Logs: []string{fmt.Sprintf("put %d %s counters", x, name)}}, nil

	case KindBecomesTypesPT:
		if err := ex.SetBaseCharacteristics(sourceID, d.Types, d.Power, d.Toughness, d.Keywords); err != nil {
			return Result{}, err
		}
		return Result{Applied: true, Logs: []string{fmt.Sprintf("became a %s %d/%d", strings.Join(d.Types, " "), d.Power, d.Toughness)}}, nil

	case KindUpgradeStages:
		return executeUpgrade(ex, sourceID, d)

	case KindFlickerImmediate:
		if err := ex.Flicker(targetID, false); err != nil {
			return Result{}, err
		}
		return Result{Applied: true, Logs: []string{"flickered"}}, nil

	case KindFlickerDelayed:
		if err := ex.Flicker(targetID, true); err != nil {
			return Result{}, err
		}
		return Result{Applied: true, Logs: []string{"exiled until the next end step"}}, nil
	}

	return Result{}, fmt.Errorf("unknown pattern kind %s", d.Kind)
}

// executeUpgrade applies the first stage whose required types the permanent
// currently satisfies and whose characteristics it does not already have.
// Later stages become legal once earlier stages have changed the type set.
func executeUpgrade(ex Executor, sourceID string, d *Descriptor) (Result, error) {
	current := ex.PermanentSubtypes(sourceID)
	for i := len(d.Stages) - 1; i >= 0; i-- {
		stage := d.Stages[i]
		if !typesSatisfied(current, stage.RequiredTypes) {
			continue
		}
		if typesSatisfied(current, stage.Types) {
			// Already at or past this stage.
			continue
		}
		if err := ex.SetBaseCharacteristics(sourceID, stage.Types, stage.Power, stage.Toughness, stage.Keywords); err != nil {
			return Result{}, err
		}
		return Result{Applied: true, Logs: []string{fmt.Sprintf("upgraded to %s %d/%d", strings.Join(stage.Types, " "), stage.Power, stage.Toughness)}}, nil
	}
	return Result{Applied: false, Logs: []string{"no upgrade stage applies"}}, nil
}

// StageFor returns the upgrade stage whose cost matches, or nil. The caller
// validates the stage's required types against the live permanent.
func (d *Descriptor) StageFor(cost string) *Stage {
	for i := range d.Stages {
		if strings.EqualFold(d.Stages[i].Cost, cost) {
			return &d.Stages[i]
		}
	}
	return nil
}

func typesSatisfied(current, required []string) bool {
	for _, req := range required {
		found := false
		for _, cur := range current {
			if strings.EqualFold(cur, req) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

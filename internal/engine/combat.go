package engine

import (
	"github.com/conclave-games/conclave-server/internal/engine/rules"
)

// declareAttackers validates and applies the active player's attack
// declaration. attacks maps attacker permanent ID to the defending player.
func (g *Game) declareAttackers(playerID string, attacks map[string]string) error {
	if g.turns.CurrentStep() != rules.StepDeclareAttackers {
		return illegalf("not the declare attackers step")
	}
	if g.turns.ActivePlayer() != playerID {
		return unauthorizedf("only the active player declares attackers")
	}

	for attackerID, defender := range attacks {
		perm, ok := g.permanent(attackerID)
		if !ok {
			return notFoundf("attacker %s not on the battlefield", attackerID)
		}
		if perm.Controller != playerID {
			return unauthorizedf("%s does not control %s", playerID, perm.Name)
		}
		if !perm.IsCreature() {
			return illegalf("%s is not a creature", perm.Name)
		}
		if perm.Tapped {
			return illegalf("%s is tapped", perm.Name)
		}
		if perm.SummoningSick && !perm.HasKeyword("haste") {
			return illegalf("%s has summoning sickness", perm.Name)
		}
		if perm.HasKeyword("defender") {
			return illegalf("%s has defender", perm.Name)
		}
		p, ok := g.players[defender]
		if !ok || p.Lost {
			return notFoundf("defending player %s not in game", defender)
		}
		if defender == playerID {
			return illegalf("cannot attack yourself")
		}
		if err := g.checkGoadTarget(perm, defender); err != nil {
			return err
		}
	}

	if err := g.checkGoadObligations(playerID, attacks); err != nil {
		return err
	}

	for attackerID, defender := range attacks {
		perm, _ := g.permanent(attackerID)
		perm.Attacking = defender
		perm.RemovedFromCombat = false
		if !perm.HasKeyword("vigilance") {
			g.tap(perm)
		}
		ev := rules.NewEvent(rules.EventAttackerDeclared, defender, perm.ID, playerID)
		ev.Data = perm.Name
		g.emit(ev)
	}
	return nil
}

// checkGoadTarget enforces the goad attack restriction: a goaded creature
// may not attack a player who goaded it unless no other player can be
// attacked.
func (g *Game) checkGoadTarget(perm *Permanent, defender string) error {
	if !perm.Goaded() || !perm.GoadedBy[defender] {
		return nil
	}
	for _, opp := range g.opponents(perm.Controller) {
		if !perm.GoadedBy[opp] {
			return illegalf("%s is goaded and must attack another player", perm.Name)
		}
	}
	return nil
}

// checkGoadObligations enforces the goad attack requirement: every goaded
// creature able to attack must be in the declaration.
func (g *Game) checkGoadObligations(playerID string, attacks map[string]string) error {
	for _, perm := range g.battlefield {
		if perm.Controller != playerID || !perm.Goaded() || !perm.IsCreature() {
			continue
		}
		if perm.Tapped || (perm.SummoningSick && !perm.HasKeyword("haste")) || perm.HasKeyword("defender") {
			continue
		}
		if _, attacking := attacks[perm.ID]; !attacking {
			return illegalf("%s is goaded and must attack if able", perm.Name)
		}
	}
	return nil
}

// goadPermanent marks a creature as goaded by the given player until that
// player's next turn; the simplified duration here is end of the current
// turn cycle, cleared when the goader's turn begins.
func (g *Game) goadPermanent(perm *Permanent, goader string) {
	perm.GoadedBy[goader] = true
	ev := rules.NewEvent(rules.EventGoaded, perm.ID, "", goader)
	ev.Data = perm.Name
	g.emit(ev)
}

// declareBlockers validates and applies one defending player's block
// declaration. blocks maps blocker permanent ID to the attacker it blocks.
func (g *Game) declareBlockers(playerID string, blocks map[string]string) error {
	if g.turns.CurrentStep() != rules.StepDeclareBlockers {
		return illegalf("not the declare blockers step")
	}
	if g.turns.ActivePlayer() == playerID {
		return illegalf("the active player does not block")
	}

	for blockerID, attackerID := range blocks {
		blocker, ok := g.permanent(blockerID)
		if !ok {
			return notFoundf("blocker %s not on the battlefield", blockerID)
		}
		if blocker.Controller != playerID {
			return unauthorizedf("%s does not control %s", playerID, blocker.Name)
		}
		if !blocker.IsCreature() || blocker.Tapped {
			return illegalf("%s cannot block", blocker.Name)
		}
		attacker, ok := g.permanent(attackerID)
		if !ok || attacker.Attacking == "" {
			return notFoundf("attacker %s is not attacking", attackerID)
		}
		if attacker.Attacking != playerID {
			return illegalf("%s is not attacking you", attacker.Name)
		}
		if attacker.HasKeyword("flying") && !blocker.HasKeyword("flying") && !blocker.HasKeyword("reach") {
			return illegalf("%s cannot block a flyer", blocker.Name)
		}
		if attacker.HasKeyword("fear") && !colorIn(blocker.Card.Colors, "B") && !blocker.Card.HasType("Artifact") {
			return illegalf("%s cannot block a creature with fear", blocker.Name)
		}
	}

	// Menace requires two or more blockers (rule 702.111a).
	blockerCount := make(map[string]int)
	for _, attackerID := range blocks {
		blockerCount[attackerID]++
	}
	for attackerID, n := range blockerCount {
		attacker, _ := g.permanent(attackerID)
		if attacker != nil && attacker.HasKeyword("menace") && n < 2 {
			return illegalf("%s has menace and needs two blockers", attacker.Name)
		}
	}

	for blockerID, attackerID := range blocks {
		blocker, _ := g.permanent(blockerID)
		attacker, _ := g.permanent(attackerID)
		blocker.Blocking = attackerID
		attacker.BlockedBy = append(attacker.BlockedBy, blockerID)
		ev := rules.NewEvent(rules.EventBlockerDeclared, attackerID, blocker.ID, playerID)
		ev.Data = blocker.Name
		g.emit(ev)
	}

	g.turns.SetHasFirstStrike(g.combatHasFirstStrike())
	return nil
}

func colorIn(colors []string, c string) bool {
	for _, col := range colors {
		if col == c {
			return true
		}
	}
	return false
}

// combatHasFirstStrike reports whether any creature in combat has first or
// double strike, which inserts the extra damage step (rule 510.5).
func (g *Game) combatHasFirstStrike() bool {
	for _, perm := range g.battlefield {
		if perm.Attacking == "" && perm.Blocking == "" {
			continue
		}
		if perm.HasKeyword("first strike") || perm.HasKeyword("double strike") {
			return true
		}
	}
	return false
}

// dealCombatDamage assigns and deals combat damage for one damage step.
// In the first strike step only first and double strikers deal damage; in
// the regular step first strikers sit out unless they have double strike.
func (g *Game) dealCombatDamage(firstStrikeStep bool) {
	for _, attacker := range g.attackersInOrder() {
		if !g.dealsInStep(attacker, firstStrikeStep) {
			continue
		}
		power := attacker.Power()
		if power <= 0 {
			continue
		}

		if len(attacker.BlockedBy) == 0 {
			if attacker.Attacking != "" {
				g.damagePlayer(attacker.Attacking, attacker.ID, power, true)
			}
			continue
		}

		remaining := power
		for i, blockerID := range attacker.BlockedBy {
			blocker, ok := g.permanent(blockerID)
			if !ok {
				continue
			}
			lethal := blocker.Toughness() - blocker.Damage
			if lethal < 1 {
				lethal = 1
			}
			if attacker.HasKeyword("deathtouch") {
				lethal = 1
			}
			assign := lethal
			if i == len(attacker.BlockedBy)-1 && !attacker.HasKeyword("trample") {
				assign = remaining
			}
			if assign > remaining {
				assign = remaining
			}
			g.damagePermanent(blocker, attacker.ID, assign, true)
			remaining -= assign
			if remaining <= 0 {
				break
			}
		}
		// Trample excess goes through to the defending player (rule 702.19e).
		if remaining > 0 && attacker.HasKeyword("trample") && attacker.Attacking != "" {
			g.damagePlayer(attacker.Attacking, attacker.ID, remaining, true)
		}
	}

	// Blockers strike back.
	for _, blocker := range g.blockersInOrder() {
		if !g.dealsInStep(blocker, firstStrikeStep) {
			continue
		}
		attacker, ok := g.permanent(blocker.Blocking)
		if !ok {
			continue
		}
		if power := blocker.Power(); power > 0 {
			g.damagePermanent(attacker, blocker.ID, power, true)
		}
	}

	g.emit(rules.NewEventWithFlag(rules.EventCombatDamage, "", "", g.turns.ActivePlayer(), firstStrikeStep))
}

func (g *Game) dealsInStep(perm *Permanent, firstStrikeStep bool) bool {
	if perm.RemovedFromCombat {
		return false
	}
	if perm.HasKeyword("double strike") {
		return true
	}
	if firstStrikeStep {
		return perm.HasKeyword("first strike")
	}
	return !perm.HasKeyword("first strike")
}

// attackersInOrder returns attacking creatures in a stable order so damage
// events replay identically.
func (g *Game) attackersInOrder() []*Permanent {
	return g.combatantsInOrder(func(p *Permanent) bool { return p.Attacking != "" })
}

func (g *Game) blockersInOrder() []*Permanent {
	return g.combatantsInOrder(func(p *Permanent) bool { return p.Blocking != "" })
}

func (g *Game) combatantsInOrder(want func(*Permanent) bool) []*Permanent {
	var out []*Permanent
	for _, id := range sortedKeys(g.battlefield) {
		if p := g.battlefield[id]; want(p) {
			out = append(out, p)
		}
	}
	return out
}

// endCombat clears all combat assignments.
func (g *Game) endCombat() {
	for _, perm := range g.battlefield {
		perm.Attacking = ""
		perm.Blocking = ""
		perm.BlockedBy = nil
		perm.RemovedFromCombat = false
	}
}

package engine

import (
	"go.uber.org/zap"

	"github.com/conclave-games/conclave-server/internal/card"
	"github.com/conclave-games/conclave-server/internal/engine/rules"
)

func isAura(c card.Card) bool {
	for _, s := range c.Subtypes() {
		if s == "Aura" {
			return true
		}
	}
	return false
}

// checkStateBasedActions runs the state-based action loop (rule 704) to a
// fixed point. Each pass collects every violation simultaneously, then
// applies the batch; applying one batch can create the next pass's
// violations. Returns whether any pass acted. Re-running on a clean state
// changes nothing.
func (g *Game) checkStateBasedActions() bool {
	acted := false
	for i := 0; i < 32; i++ {
		if !g.sbaPass() {
			break
		}
		acted = true
	}
	if acted {
		g.emit(rules.NewEvent(rules.EventStateBasedActions, "", "", g.turns.ActivePlayer()))
	}
	return acted
}

type sbaBatch struct {
	losers      map[string]string // player -> reason
	winners     []string
	toGraveyard []*Permanent // toughness 0 or less, no destruction event
	toDestroy   []*Permanent // lethal damage, regeneration applicable
	unattach    []*Permanent // auras attached to nothing
	legendExtra []*Permanent
}

// sbaPass collects one batch of violations and applies it. Returns whether
// anything was done.
func (g *Game) sbaPass() bool {
	batch := sbaBatch{losers: make(map[string]string)}

	for _, id := range g.seats {
		p := g.players[id]
		if p.Lost {
			continue
		}
		switch {
		case p.Life <= 0:
			batch.losers[id] = "life total is 0 or less"
		case p.Poison >= 10:
			batch.losers[id] = "ten or more poison counters"
		case g.drewFromEmpty[id]:
			batch.losers[id] = "drew from an empty library"
		default:
			for _, dmg := range p.CommanderDamage {
				if dmg >= 21 {
					batch.losers[id] = "21 or more combat damage from a single commander"
					break
				}
			}
		}
	}

	seenLegends := make(map[string]*Permanent)
	for _, id := range sortedKeys(g.battlefield) {
		perm := g.battlefield[id]

		// +1/+1 and -1/-1 counters annihilate in pairs (rule 704.5q).
		perm.Counters.AnnihilatePairs()

		if perm.IsCreature() {
			if perm.Toughness() <= 0 {
				batch.toGraveyard = append(batch.toGraveyard, perm)
			} else if perm.LethalDamage() {
				batch.toDestroy = append(batch.toDestroy, perm)
			}
		}

		// An aura attached to nothing goes to the graveyard (rule 704.5m).
		if isAura(perm.Card) {
			if _, ok := g.permanent(perm.AttachedTo); perm.AttachedTo == "" || !ok {
				batch.unattach = append(batch.unattach, perm)
			}
		}

		// Legend rule (rule 704.5j): one copy per controller survives; the
		// newer entry is kept, standing in for the controller's choice.
		if perm.Card.IsLegendary() {
			key := perm.Controller + "/" + perm.Name
			if prev, ok := seenLegends[key]; ok {
				batch.legendExtra = append(batch.legendExtra, prev)
			}
			seenLegends[key] = perm
		}

		if g.devotionWin(perm) {
			batch.winners = append(batch.winners, perm.Controller)
		}
	}

	if len(batch.losers) == 0 && len(batch.winners) == 0 &&
		len(batch.toGraveyard) == 0 && len(batch.toDestroy) == 0 &&
		len(batch.unattach) == 0 && len(batch.legendExtra) == 0 {
		return false
	}

	g.applySBABatch(batch)
	return true
}

func (g *Game) applySBABatch(batch sbaBatch) {
	for _, winner := range batch.winners {
		g.declareWinner(winner)
		return
	}

	for playerID, reason := range batch.losers {
		delete(g.drewFromEmpty, playerID)
		g.losePlayer(playerID, reason)
	}

	for _, perm := range batch.toGraveyard {
		if _, ok := g.battlefield[perm.ID]; !ok {
			continue
		}
		g.logger.Debug("creature put into graveyard", zap.String("name", perm.Name))
		dies := rules.NewEvent(rules.EventPermanentDies, perm.ID, "", perm.Controller)
		dies.Data = perm.Name
		g.emit(dies)
		g.leaveBattlefield(perm, ZoneGraveyard)
	}

	for _, perm := range batch.toDestroy {
		if _, ok := g.battlefield[perm.ID]; !ok {
			continue
		}
		g.destroyPermanent(perm, "")
	}

	for _, perm := range batch.unattach {
		if _, ok := g.battlefield[perm.ID]; !ok {
			continue
		}
		dies := rules.NewEvent(rules.EventPermanentDies, perm.ID, "", perm.Controller)
		dies.Data = perm.Name
		g.emit(dies)
		g.leaveBattlefield(perm, ZoneGraveyard)
	}

	for _, perm := range batch.legendExtra {
		if _, ok := g.battlefield[perm.ID]; !ok {
			continue
		}
		g.logger.Debug("legend rule applied", zap.String("name", perm.Name))
		dies := rules.NewEvent(rules.EventPermanentDies, perm.ID, "", perm.Controller)
		dies.Data = perm.Name
		g.emit(dies)
		g.leaveBattlefield(perm, ZoneGraveyard)
	}
}

package engine

import (
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/conclave-games/conclave-server/internal/engine/oracle"
	"github.com/conclave-games/conclave-server/internal/engine/rules"
)

// Continuation keys identify how a completed resolution step resumes. The
// suspended work is described entirely by the step's context map.
const (
	continuationOptionalEffect = "optional_effect"
	continuationScry           = "scry"
	continuationSurveil        = "surveil"
	continuationDiscard        = "discard"
	continuationCleanupDiscard = "cleanup_discard"
	continuationSacrifice      = "sacrifice"
	continuationSearch         = "search"
	continuationTriggerOrder   = "trigger_order"
	continuationCastTargets    = "cast_targets"
	continuationExplore        = "explore"
	continuationMulliganBottom = "mulligan_bottom"
)

// applyEffectText resolves an effect line by its extracted keyword actions.
// Targets come from the resolving stack item; x is the chosen X value.
func (g *Game) applyEffectText(controller, sourceID, effect string, targets []string, x int) error {
	if strings.Contains(strings.ToLower(effect), "goad target") {
		for _, t := range targets {
			if perm, ok := g.permanent(t); ok {
				g.goadPermanent(perm, controller)
			}
		}
	}
	for _, act := range oracle.ActionsIn(effect) {
		g.applyKeywordAction(controller, sourceID, act, effect, targets, x)
	}
	return nil
}

func (g *Game) applyKeywordAction(controller, sourceID string, act oracle.KeywordAction, effect string, targets []string, x int) {
	amount := act.Amount
	if amount < 0 {
		amount = x
	}
	if amount < 0 {
		amount = 1
	}

	switch act.Verb {
	case oracle.VerbDraw:
		g.drawCards(controller, amount)
	case oracle.VerbGainLife:
		g.gainLife(controller, amount)
	case oracle.VerbLoseLife:
		for _, t := range g.effectPlayers(effect, controller, targets) {
			g.loseLife(t, amount)
		}
	case oracle.VerbMill:
		for _, t := range g.effectPlayers(effect, controller, targets) {
			g.millCards(t, amount)
		}
	case oracle.VerbScry:
		g.enqueueLook(controller, sourceID, amount, rules.StepScrySelection, continuationScry)
	case oracle.VerbSurveil:
		g.enqueueLook(controller, sourceID, amount, rules.StepSurveilSelection, continuationSurveil)
	case oracle.VerbDealDamage:
		g.applyDamageAction(controller, sourceID, effect, targets, amount)
	case oracle.VerbCreateToken:
		for i := 0; i < amount; i++ {
			g.createToken(act.Text, controller)
		}
	case oracle.VerbDestroy:
		g.applyDestroyAction(sourceID, effect, targets)
	case oracle.VerbExile:
		for _, t := range targets {
			if perm, ok := g.permanent(t); ok {
				g.exilePermanent(perm, sourceID)
			}
		}
	case oracle.VerbTap:
		for _, t := range targets {
			if perm, ok := g.permanent(t); ok {
				g.tap(perm)
			}
		}
	case oracle.VerbUntap:
		for _, t := range targets {
			if perm, ok := g.permanent(t); ok {
				g.untap(perm)
			}
		}
	case oracle.VerbDiscard:
		g.enqueueDiscard(controller, sourceID, amount, effect)
	case oracle.VerbSacrifice:
		g.enqueueSacrifice(controller, sourceID, amount, effect)
	case oracle.VerbSearch:
		g.enqueueSearch(controller, sourceID)
	case oracle.VerbPutCounters:
		for _, t := range targets {
			if perm, ok := g.permanent(t); ok {
				perm.Counters.Add(counterNameIn(act.Text), amount)
				g.emit(rules.NewEventWithAmount(rules.EventCounterAdded, perm.ID, sourceID, controller, amount))
			}
		}
	case oracle.VerbCounter:
		for _, t := range targets {
			if item, ok := g.stack.Remove(t); ok {
				g.emit(rules.NewEvent(rules.EventCountered, item.ID, sourceID, controller))
				if cardID := item.Metadata["card_id"]; cardID != "" {
					g.moveCard(cardID, ZoneStack, ZoneGraveyard)
				}
			}
		}
	}
}

// effectPlayers decides which players an effect line touches: each
// opponent, each player, a targeted player, or the controller.
func (g *Game) effectPlayers(effect, controller string, targets []string) []string {
	lower := strings.ToLower(effect)
	switch {
	case strings.Contains(lower, "each opponent"):
		return g.opponents(controller)
	case strings.Contains(lower, "each player"):
		return g.turns.RemainingPlayers()
	default:
		var players []string
		for _, t := range targets {
			if _, ok := g.players[t]; ok {
				players = append(players, t)
			}
		}
		if len(players) > 0 {
			return players
		}
		return []string{controller}
	}
}

func (g *Game) applyDamageAction(controller, sourceID, effect string, targets []string, amount int) {
	lower := strings.ToLower(effect)
	if strings.Contains(lower, "each creature and each player") {
		for _, perm := range g.creatures() {
			g.damagePermanent(perm, sourceID, amount, false)
		}
		for _, pid := range g.turns.RemainingPlayers() {
			g.damagePlayer(pid, sourceID, amount, false)
		}
		return
	}
	if strings.Contains(lower, "each opponent") {
		for _, pid := range g.opponents(controller) {
			g.damagePlayer(pid, sourceID, amount, false)
		}
		return
	}
	for _, t := range targets {
		if perm, ok := g.permanent(t); ok {
			g.damagePermanent(perm, sourceID, amount, false)
		} else if _, ok := g.players[t]; ok {
			g.damagePlayer(t, sourceID, amount, false)
		}
	}
}

func (g *Game) applyDestroyAction(sourceID, effect string, targets []string) {
	lower := strings.ToLower(effect)
	if strings.Contains(lower, "destroy all creatures") || strings.Contains(lower, "destroy each creature") {
		for _, perm := range g.creatures() {
			g.destroyPermanent(perm, sourceID)
		}
		return
	}
	for _, t := range targets {
		if perm, ok := g.permanent(t); ok {
			g.destroyPermanent(perm, sourceID)
		}
	}
}

func (g *Game) creatures() []*Permanent {
	var out []*Permanent
	for _, perm := range g.battlefield {
		if perm.IsCreature() {
			out = append(out, perm)
		}
	}
	return out
}

func counterNameIn(text string) string {
	lower := strings.ToLower(text)
	if strings.Contains(lower, "+1/+1") {
		return "+1/+1"
	}
	if strings.Contains(lower, "-1/-1") {
		return "-1/-1"
	}
	fields := strings.Fields(lower)
	for i, f := range fields {
		if strings.HasPrefix(f, "counter") && i > 0 {
			return fields[i-1]
		}
	}
	return "charge"
}

// --- suspension helpers ---

func (g *Game) enqueueLook(playerID, sourceID string, n int, kind rules.QueueStepKind, key string) {
	p := g.players[playerID]
	if len(p.Library) == 0 {
		return
	}
	if n > len(p.Library) {
		n = len(p.Library)
	}
	top := make([]string, n)
	copy(top, p.Library[:n])
	g.addStep(rules.QueueStep{
		Kind:            kind,
		PlayerID:        playerID,
		SourceID:        sourceID,
		Prompt:          "Choose cards to put away",
		Options:         top,
		MaxCount:        n,
		ContinuationKey: key,
		Context:         map[string]string{"count": strconv.Itoa(n)},
	})
}

func (g *Game) enqueueDiscard(playerID, sourceID string, n int, effect string) {
	p := g.players[playerID]
	if strings.Contains(strings.ToLower(effect), "your hand") {
		for len(p.Hand) > 0 {
			g.discardCard(playerID, p.Hand[0])
		}
		return
	}
	if len(p.Hand) == 0 {
		return
	}
	if n > len(p.Hand) {
		n = len(p.Hand)
	}
	g.addStep(rules.QueueStep{
		Kind:            rules.StepDiscardSelection,
		PlayerID:        playerID,
		SourceID:        sourceID,
		Prompt:          "Discard cards",
		Options:         append([]string(nil), p.Hand...),
		MinCount:        n,
		MaxCount:        n,
		ContinuationKey: continuationDiscard,
	})
}

func (g *Game) enqueueSacrifice(playerID, sourceID string, n int, effect string) {
	var candidates []string
	wantCreature := strings.Contains(strings.ToLower(effect), "creature")
	for _, perm := range g.battlefield {
		if perm.Controller != playerID {
			continue
		}
		if wantCreature && !perm.IsCreature() {
			continue
		}
		candidates = append(candidates, perm.ID)
	}
	if len(candidates) == 0 {
		return
	}
	if n > len(candidates) {
		n = len(candidates)
	}
	g.addStep(rules.QueueStep{
		Kind:            rules.StepSacrificeSelection,
		PlayerID:        playerID,
		SourceID:        sourceID,
		Prompt:          "Choose permanents to sacrifice",
		Options:         candidates,
		MinCount:        n,
		MaxCount:        n,
		ContinuationKey: continuationSacrifice,
	})
}

func (g *Game) enqueueSearch(playerID, sourceID string) {
	p := g.players[playerID]
	if len(p.Library) == 0 {
		return
	}
	g.addStep(rules.QueueStep{
		Kind:            rules.StepSearchSelection,
		PlayerID:        playerID,
		SourceID:        sourceID,
		Prompt:          "Search your library for a card",
		Options:         append([]string(nil), p.Library...),
		MinCount:        0,
		MaxCount:        1,
		ContinuationKey: continuationSearch,
	})
}

// --- continuation resumption ---

// resumeContinuation applies the answered step's suspended work. The step
// was already validated and consumed by the queue.
func (g *Game) resumeContinuation(step rules.QueueStep, resp rules.QueueResponse) error {
	switch step.ContinuationKey {
	case continuationOptionalEffect:
		if len(resp.Selections) == 1 && resp.Selections[0] == "yes" {
			return g.applyEffectText(step.PlayerID, step.Context["permanent_id"], step.Context["effect"],
				[]string{step.Context["event_target"]}, 0)
		}
		return nil

	case continuationScry:
		return g.finishScry(step, resp)

	case continuationSurveil:
		return g.finishSurveil(step, resp)

	case continuationDiscard, continuationCleanupDiscard:
		for _, cardID := range resp.Selections {
			if err := g.discardCard(step.PlayerID, cardID); err != nil {
				return err
			}
		}
		if step.ContinuationKey == continuationCleanupDiscard {
			g.turns.RequestCleanupRepeat()
		}
		return nil

	case continuationSacrifice:
		for _, id := range resp.Selections {
			if perm, ok := g.permanent(id); ok {
				g.sacrificePermanent(perm)
			}
		}
		return nil

	case continuationSearch:
		p := g.players[step.PlayerID]
		for _, cardID := range resp.Selections {
			if p.removeFrom(ZoneLibrary, cardID) {
				p.Hand = append(p.Hand, cardID)
			}
		}
		g.shuffleLibrary(p)
		g.emit(rules.NewEvent(rules.EventSearchLibrary, "", step.SourceID, step.PlayerID))
		return nil

	case continuationMulliganBottom:
		p := g.players[step.PlayerID]
		for _, cardID := range resp.Selections {
			if p.removeFrom(ZoneHand, cardID) {
				p.Library = append(p.Library, cardID)
			}
		}
		return nil

	case continuationTriggerOrder:
		return g.placeOrderedTriggers(step, resp)

	case continuationCastTargets:
		return g.finishCastWithTargets(step, resp)

	case continuationExplore:
		return g.finishExplore(step, resp)

	default:
		return invalidf("unknown continuation %q", step.ContinuationKey)
	}
}

// finishScry puts selected cards on the bottom of the library and keeps the
// rest on top in their original order.
func (g *Game) finishScry(step rules.QueueStep, resp rules.QueueResponse) error {
	p := g.players[step.PlayerID]
	bottom := make(map[string]bool, len(resp.Selections))
	for _, id := range resp.Selections {
		bottom[id] = true
	}
	n := len(step.Options)
	if n > len(p.Library) {
		n = len(p.Library)
	}
	var keep, away []string
	for _, id := range p.Library[:n] {
		if bottom[id] {
			away = append(away, id)
		} else {
			keep = append(keep, id)
		}
	}
	p.Library = append(append(keep, p.Library[n:]...), away...)
	g.emit(rules.NewEventWithAmount(rules.EventScried, "", step.SourceID, step.PlayerID, len(step.Options)))
	return nil
}

// finishSurveil sends selected cards to the graveyard.
func (g *Game) finishSurveil(step rules.QueueStep, resp rules.QueueResponse) error {
	p := g.players[step.PlayerID]
	toYard := make(map[string]bool, len(resp.Selections))
	for _, id := range resp.Selections {
		toYard[id] = true
	}
	n := len(step.Options)
	if n > len(p.Library) {
		n = len(p.Library)
	}
	var keep []string
	for _, id := range p.Library[:n] {
		if toYard[id] {
			p.Graveyard = append(p.Graveyard, id)
		} else {
			keep = append(keep, id)
		}
	}
	p.Library = append(keep, p.Library[n:]...)
	g.emit(rules.NewEventWithAmount(rules.EventSurveiled, "", step.SourceID, step.PlayerID, len(step.Options)))
	return nil
}

// finishExplore applies per-card explore decisions: reveal was a land means
// hand, otherwise counter-or-graveyard per the player's choice.
func (g *Game) finishExplore(step rules.QueueStep, resp rules.QueueResponse) error {
	for permID, decision := range resp.Decisions {
		perm, ok := g.permanent(permID)
		if !ok {
			continue
		}
		p := g.players[perm.Controller]
		if len(p.Library) == 0 {
			continue
		}
		cardID := p.Library[0]
		inst := g.cards[cardID]
		p.Library = p.Library[1:]
		if inst.Card.IsLand() {
			p.Hand = append(p.Hand, cardID)
		} else {
			switch decision {
			case "graveyard":
				p.Graveyard = append(p.Graveyard, cardID)
			default:
				p.Library = append(p.Library, cardID)
			}
			perm.Counters.Add("+1/+1", 1)
		}
		g.emit(rules.NewEvent(rules.EventExplored, perm.ID, step.SourceID, perm.Controller))
	}
	return nil
}

// --- trigger placement ---

// placePendingTriggers orders collected triggers APNAP and puts them on the
// stack (rule 603.3b). A player with more than one trigger gets a
// TRIGGER_ORDER step to choose their ordering; placement of that player's
// triggers suspends until they answer.
func (g *Game) placePendingTriggers() {
	if len(g.pending) == 0 {
		return
	}
	pending := g.pending
	g.pending = nil

	ordered := rules.SortAPNAP(pending, g.turns.ActivePlayer(), g.turns.RemainingPlayers())

	byController := make(map[string][]rules.PendingTrigger)
	for _, pt := range ordered {
		byController[pt.Trigger.Controller] = append(byController[pt.Trigger.Controller], pt)
	}

	for _, controller := range rules.ControllersOf(ordered) {
		group := byController[controller]
		if len(group) == 1 {
			g.stack.Push(group[0].Item())
			g.metrics.ObserveTriggerFired()
			g.emit(rules.NewEvent(rules.EventTriggeredAbility, group[0].Trigger.SourceID, group[0].Trigger.SourceID, controller))
			continue
		}
		// Several triggers for one player: stash the items and let the
		// player pick the stack order.
		ids := make([]string, len(group))
		ctx := map[string]string{}
		for i, pt := range group {
			item := pt.Item()
			ids[i] = item.ID
			g.heldTriggers[item.ID] = item
		}
		g.addStep(rules.QueueStep{
			Kind:            rules.StepTriggerOrder,
			PlayerID:        controller,
			Prompt:          "Order your triggered abilities",
			Options:         ids,
			ContinuationKey: continuationTriggerOrder,
			Context:         ctx,
		})
	}
}

// placeOrderedTriggers pushes a player's triggers in their chosen order.
// The last selection resolves first.
func (g *Game) placeOrderedTriggers(step rules.QueueStep, resp rules.QueueResponse) error {
	for _, id := range resp.Selections {
		item, ok := g.heldTriggers[id]
		if !ok {
			continue
		}
		delete(g.heldTriggers, id)
		g.stack.Push(item)
		g.metrics.ObserveTriggerFired()
		g.emit(rules.NewEvent(rules.EventTriggeredAbility, item.SourceID, item.SourceID, item.Controller))
	}
	return nil
}

// --- stack resolution ---

// resolveTop resolves the top stack object. An item whose every target has
// become illegal fizzles instead (rule 608.2b).
func (g *Game) resolveTop() error {
	item, err := g.stack.Pop()
	if err != nil {
		return nil
	}

	if len(item.Targets) > 0 && !g.anyTargetLegal(item) {
		g.emit(rules.NewEvent(rules.EventStackItemRemoved, item.ID, item.SourceID, item.Controller))
		if item.OnFizzle != nil {
			item.OnFizzle()
		}
		if cardID := item.Metadata["card_id"]; cardID != "" {
			g.moveCard(cardID, ZoneStack, ZoneGraveyard)
		}
		return nil
	}

	g.emit(rules.NewEvent(rules.EventStackItemResolving, item.ID, item.SourceID, item.Controller))
	if item.Resolve != nil {
		if err := item.Resolve(); err != nil {
			g.logger.Error("stack item resolution failed",
				zap.String("item_id", item.ID),
				zap.Error(err))
			return err
		}
	}
	g.emit(rules.NewEvent(rules.EventStackItemResolved, item.ID, item.SourceID, item.Controller))
	return nil
}

// anyTargetLegal reports whether at least one declared target still exists.
func (g *Game) anyTargetLegal(item rules.StackItem) bool {
	for _, t := range item.Targets {
		if _, ok := g.permanent(t); ok {
			return true
		}
		if p, ok := g.players[t]; ok && !p.Lost {
			return true
		}
		for _, si := range g.stack.List() {
			if si.ID == t {
				return true
			}
		}
	}
	return false
}

// --- priority and step flow ---

// afterAction runs the shared post-mutation sequence: state-based actions
// to fixed point, pending trigger placement, then another SBA pass if
// placement changed anything.
func (g *Game) afterAction() {
	for i := 0; i < 16; i++ {
		acted := g.checkStateBasedActions()
		g.placePendingTriggers()
		if !acted && len(g.pending) == 0 {
			break
		}
	}
	g.invariantCheck()
}

// passPriority records a pass. When every remaining player has passed in
// succession, the top of the stack resolves, or the game advances to the
// next step on an empty stack (rule 117.4).
func (g *Game) passPriority(playerID string) error {
	if g.turns.PriorityPlayer() != playerID {
		return illegalf("player %s does not have priority", playerID)
	}
	if g.queue.Active() != nil {
		return illegalf("a resolution step is waiting for input")
	}

	allPassed := g.turns.RecordPass()
	if !allPassed {
		return nil
	}

	if !g.stack.IsEmpty() {
		if err := g.resolveTop(); err != nil {
			return err
		}
		g.afterAction()
		g.turns.SetPriority(g.turns.ActivePlayer())
		g.turns.ResetPassRound()
		return nil
	}

	return g.advanceUntilPriority()
}

// advanceUntilPriority walks the turn structure performing turn-based
// actions until a step that grants priority is reached.
func (g *Game) advanceUntilPriority() error {
	for i := 0; i < 32; i++ {
		phase, step := g.turns.AdvanceStep()
		g.emit(rules.NewEvent(rules.EventStepChanged, "", "", g.turns.ActivePlayer()))

		grantsPriority := g.beginStep(phase, step)
		g.afterAction()
		if g.ended {
			return nil
		}
		if g.queue.Active() != nil {
			// Input owed before the step can continue.
			return nil
		}
		if grantsPriority || !g.stack.IsEmpty() {
			return nil
		}
	}
	return ErrInvariant
}

// beginStep performs the turn-based actions of a step and reports whether
// players receive priority in it.
func (g *Game) beginStep(phase rules.Phase, step rules.Step) bool {
	active := g.turns.ActivePlayer()

	switch step {
	case rules.StepUntap:
		g.triggers.ResetTurn()
		p := g.players[active]
		p.LandsPlayedThisTurn = 0
		for _, perm := range g.battlefield {
			// A goad placed by this player expires as their turn begins.
			delete(perm.GoadedBy, active)
			if perm.Controller != active {
				continue
			}
			perm.SummoningSick = false
			perm.ActivationsThisTurn = make(map[string]int)
			perm.DealtCombatDamageTo = make(map[string]bool)
			g.untap(perm)
		}
		g.emit(rules.NewEvent(rules.EventBeginTurn, "", "", active))
		return false

	case rules.StepUpkeep:
		g.emit(rules.NewEvent(rules.EventUpkeepStep, "", "", active))
		return true

	case rules.StepDraw:
		g.emit(rules.NewEvent(rules.EventDrawStep, "", "", active))
		// The starting player skips the first draw (rule 103.8a heads-up
		// default).
		if !(g.turns.TurnNumber() == 1 && len(g.seats) == 2) {
			g.drawCard(active)
		}
		return true

	case rules.StepFirstStrikeDamage:
		g.dealCombatDamage(true)
		return true

	case rules.StepCombatDamage:
		g.dealCombatDamage(false)
		return true

	case rules.StepEndCombat:
		g.endCombat()
		return true

	case rules.StepEnd:
		g.emit(rules.NewEvent(rules.EventEndStep, "", "", active))
		return true

	case rules.StepCleanup:
		return g.cleanupStep(active)

	default:
		return true
	}
}

// cleanupStep performs cleanup turn-based actions (rule 514). Priority is
// granted only when the step produced triggers or a discard is owed.
func (g *Game) cleanupStep(active string) bool {
	g.emit(rules.NewEvent(rules.EventCleanupStep, "", "", active))

	p := g.players[active]
	if len(p.Hand) > g.opts.HandSize {
		g.addStep(rules.QueueStep{
			Kind:            rules.StepDiscardSelection,
			PlayerID:        active,
			Prompt:          "Discard down to your maximum hand size",
			Options:         append([]string(nil), p.Hand...),
			MinCount:        len(p.Hand) - g.opts.HandSize,
			MaxCount:        len(p.Hand) - g.opts.HandSize,
			ContinuationKey: continuationCleanupDiscard,
		})
	}

	for _, perm := range g.battlefield {
		perm.Damage = 0
		perm.DeathtouchHit = false
		perm.eotOverride = nil
	}
	expired := g.replacements.ExpireEndOfTurn()

	for _, pl := range g.players {
		pl.Pool.EmptyAll()
	}

	if len(g.pending) > 0 || expired > 0 || g.queue.Active() != nil {
		g.turns.RequestCleanupRepeat()
		return len(g.pending) > 0
	}
	return false
}

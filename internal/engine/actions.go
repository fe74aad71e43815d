package engine

import (
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/conclave-games/conclave-server/internal/engine/mana"
	"github.com/conclave-games/conclave-server/internal/engine/oracle"
	"github.com/conclave-games/conclave-server/internal/engine/pattern"
	"github.com/conclave-games/conclave-server/internal/engine/rules"
)

// ActionType enumerates the player actions the engine accepts.
type ActionType string

const (
	ActionCastSpell          ActionType = "castSpell"
	ActionCastCommander      ActionType = "castCommander"
	ActionActivateAbility    ActionType = "activateAbility"
	ActionPlayLand           ActionType = "playLand"
	ActionDeclareAttackers   ActionType = "declareAttackers"
	ActionDeclareBlockers    ActionType = "declareBlockers"
	ActionSacrifice          ActionType = "sacrifice"
	ActionSearchLibrary      ActionType = "searchLibrary"
	ActionScrySelection      ActionType = "scrySelection"
	ActionSurveilSelection   ActionType = "surveilSelection"
	ActionTargetConfirm      ActionType = "targetSelectionConfirm"
	ActionResolutionResponse ActionType = "submitResolutionResponse"
	ActionPassPriority       ActionType = "passPriority"
	ActionMulligan           ActionType = "mulligan"
	ActionKeepHand           ActionType = "keepHand"
	ActionConcede            ActionType = "concede"
)

// Action is one player request against one game. The flat field set doubles
// as the wire and log format.
type Action struct {
	Type     ActionType `json:"type"`
	GameID   string     `json:"game_id"`
	PlayerID string     `json:"player_id"`

	CardID      string            `json:"card_id,omitempty"`
	PermanentID string            `json:"permanent_id,omitempty"`
	AbilityCost string            `json:"ability_cost,omitempty"`
	Targets     []string          `json:"targets,omitempty"`
	X           int               `json:"x,omitempty"`
	Attacks     map[string]string `json:"attacks,omitempty"`
	Blocks      map[string]string `json:"blocks,omitempty"`
	StepID      string            `json:"step_id,omitempty"`
	Selections  []string          `json:"selections,omitempty"`
	Decisions   map[string]string `json:"decisions,omitempty"`
}

// Apply dispatches one action under the game mutex. On success the ordered
// events the action produced are returned; on failure the state is
// untouched and the error carries a player-facing code.
func (g *Game) Apply(a Action) ([]rules.Event, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.started {
		return nil, illegalf("game has not started")
	}
	if g.ended && a.Type != ActionConcede {
		return nil, illegalf("game has ended")
	}
	p, err := g.player(a.PlayerID)
	if err != nil {
		return nil, err
	}
	if p.Lost && a.Type != ActionConcede {
		return nil, illegalf("player %s is out of the game", a.PlayerID)
	}

	if err := g.dispatch(a); err != nil {
		g.events = nil
		g.logger.Debug("action rejected",
			zap.String("type", string(a.Type)),
			zap.String("player_id", a.PlayerID),
			zap.Error(err))
		return nil, err
	}

	if a.Type != ActionPassPriority {
		g.turns.ResetPassRound()
	}
	g.afterAction()
	return g.drainEvents(), nil
}

func (g *Game) dispatch(a Action) error {
	switch a.Type {
	case ActionCastSpell:
		return g.castSpell(a, false)
	case ActionCastCommander:
		return g.castSpell(a, true)
	case ActionActivateAbility:
		return g.activateAbility(a)
	case ActionPlayLand:
		return g.playLand(a)
	case ActionDeclareAttackers:
		return g.declareAttackers(a.PlayerID, a.Attacks)
	case ActionDeclareBlockers:
		return g.declareBlockers(a.PlayerID, a.Blocks)
	case ActionSacrifice:
		return g.sacrificeAction(a)
	case ActionSearchLibrary:
		return g.searchLibraryAction(a)
	case ActionScrySelection, ActionSurveilSelection, ActionTargetConfirm, ActionResolutionResponse:
		return g.submitResolution(a)
	case ActionPassPriority:
		return g.passPriority(a.PlayerID)
	case ActionMulligan:
		return g.mulligan(a.PlayerID)
	case ActionKeepHand:
		return g.keepHand(a.PlayerID)
	case ActionConcede:
		g.concede(a.PlayerID)
		return nil
	default:
		return illegalf("unknown action type %q", a.Type)
	}
}

// requirePriority verifies the player holds priority and no resolution step
// is waiting.
func (g *Game) requirePriority(playerID string) error {
	if g.queue.Active() != nil {
		return illegalf("a resolution step is waiting for input")
	}
	if g.turns.PriorityPlayer() != playerID {
		return illegalf("player %s does not have priority", playerID)
	}
	return nil
}

// sorcerySpeed verifies main-phase, own-turn, empty-stack timing.
func (g *Game) sorcerySpeed(playerID string) error {
	if g.turns.ActivePlayer() != playerID {
		return illegalf("not your turn")
	}
	if !g.turns.CurrentStep().IsMainPhase() {
		return illegalf("only during a main phase")
	}
	if !g.stack.IsEmpty() {
		return illegalf("the stack is not empty")
	}
	return nil
}

// --- casting ---

func (g *Game) castSpell(a Action, commander bool) error {
	if err := g.requirePriority(a.PlayerID); err != nil {
		return err
	}
	p := g.players[a.PlayerID]

	zone := ZoneHand
	cardID := a.CardID
	if commander {
		zone = ZoneCommand
		if cardID == "" {
			cardID = p.CommanderCard
		}
	}
	if !inZone(*p.zone(zone), cardID) {
		return notFoundf("card %s not in %s", cardID, zone)
	}
	inst := g.cards[cardID]
	if inst.Card.IsLand() {
		return illegalf("lands are played, not cast")
	}

	parsed := oracle.Parse(inst.Card.OracleText, inst.Card.Name)
	instantSpeed := inst.Card.HasType("Instant") || inst.Card.HasKeyword("flash")
	if !instantSpeed {
		if err := g.sorcerySpeed(a.PlayerID); err != nil {
			return err
		}
	}

	cost, err := mana.ParseCost(inst.Card.ManaCost)
	if err != nil {
		return illegalf("unreadable mana cost %q", inst.Card.ManaCost)
	}
	if commander {
		// Commander tax: two extra generic per previous cast from the
		// command zone (rule 903.8).
		cost = cost.ApplyReduction(-2*p.CommanderTax, nil)
	}
	if !cost.CanPay(p.Pool, a.X) {
		return illegalf("insufficient mana for %s", inst.Card.Name)
	}

	if parsed.HasTargets && len(a.Targets) == 0 {
		options := g.legalTargets()
		if len(options) == 0 {
			return illegalf("no legal targets for %s", inst.Card.Name)
		}
		g.addStep(rules.QueueStep{
			Kind:            rules.StepTargetSelection,
			PlayerID:        a.PlayerID,
			SourceID:        cardID,
			Prompt:          "Choose targets for " + inst.Card.Name,
			Options:         options,
			MinCount:        1,
			MaxCount:        1,
			ContinuationKey: continuationCastTargets,
			Context: map[string]string{
				"card_id":   cardID,
				"x":         itoa(a.X),
				"zone":      string(zone),
				"commander": boolString(commander),
			},
		})
		return nil
	}

	return g.finishCast(a.PlayerID, cardID, zone, a.Targets, a.X, commander)
}

// finishCastWithTargets resumes a cast suspended on target selection.
func (g *Game) finishCastWithTargets(step rules.QueueStep, resp rules.QueueResponse) error {
	return g.finishCast(step.PlayerID, step.Context["card_id"], ZoneName(step.Context["zone"]),
		resp.Selections, atoi(step.Context["x"]), step.Context["commander"] == "true")
}

// finishCast pays the cost, moves the card to the stack, and pushes the
// spell. Validation already confirmed payability; paying again here keeps
// the suspended path honest since the pool may have changed.
func (g *Game) finishCast(playerID, cardID string, zone ZoneName, targets []string, x int, commander bool) error {
	p := g.players[playerID]
	inst, ok := g.cards[cardID]
	if !ok || !inZone(*p.zone(zone), cardID) {
		return notFoundf("card %s no longer castable", cardID)
	}

	cost, err := mana.ParseCost(inst.Card.ManaCost)
	if err != nil {
		return illegalf("unreadable mana cost %q", inst.Card.ManaCost)
	}
	if commander {
		cost = cost.ApplyReduction(-2*p.CommanderTax, nil)
	}
	if err := cost.Pay(p.Pool, x); err != nil {
		return illegalf("insufficient mana for %s", inst.Card.Name)
	}
	g.emit(rules.NewEvent(rules.EventManaPaid, cardID, "", playerID))

	p.removeFrom(zone, cardID)
	if commander {
		p.CommanderTax++
	}

	itemID := g.newObjectID()
	g.stack.Push(rules.StackItem{
		ID:          itemID,
		Controller:  playerID,
		Kind:        rules.StackItemKindSpell,
		SourceID:    cardID,
		Description: inst.Card.Name,
		Targets:     targets,
		X:           x,
		Metadata:    map[string]string{"card_id": cardID},
		Resolve: func() error {
			return g.resolveSpell(playerID, cardID, targets, x)
		},
		OnFizzle: func() {
			g.logger.Debug("spell fizzled", zap.String("name", inst.Card.Name))
		},
	})

	for _, t := range targets {
		g.emit(rules.NewEvent(rules.EventTargeted, t, itemID, playerID))
	}
	castType := rules.EventSpellCast
	if commander {
		castType = rules.EventCastCommander
	}
	ev := rules.NewEvent(castType, cardID, itemID, playerID)
	ev.Data = inst.Card.Name
	g.emit(ev)
	return nil
}

// resolveSpell applies a resolving spell: permanents enter the battlefield,
// anything else applies its effect text and goes to the graveyard.
func (g *Game) resolveSpell(controller, cardID string, targets []string, x int) error {
	inst := g.cards[cardID]

	if inst.Card.IsPermanent() {
		g.enterBattlefield(cardID, controller, ZoneStack)
		return nil
	}

	parsed := oracle.Parse(inst.Card.OracleText, inst.Card.Name)
	for _, ab := range parsed.Abilities {
		if err := g.applyEffectText(controller, cardID, ab.Effect, targets, x); err != nil {
			return err
		}
	}
	g.moveCard(cardID, ZoneStack, ZoneGraveyard)
	return nil
}

// --- lands ---

func (g *Game) playLand(a Action) error {
	if err := g.requirePriority(a.PlayerID); err != nil {
		return err
	}
	if err := g.sorcerySpeed(a.PlayerID); err != nil {
		return err
	}
	p := g.players[a.PlayerID]
	if !inZone(p.Hand, a.CardID) {
		return notFoundf("card %s not in hand", a.CardID)
	}
	inst := g.cards[a.CardID]
	if !inst.Card.IsLand() {
		return illegalf("%s is not a land", inst.Card.Name)
	}
	if p.LandsPlayedThisTurn >= p.LandDropsPerTurn {
		return illegalf("already played a land this turn")
	}

	p.removeFrom(ZoneHand, a.CardID)
	p.LandsPlayedThisTurn++
	perm := g.enterBattlefield(a.CardID, a.PlayerID, ZoneHand)
	ev := rules.NewEvent(rules.EventLandPlayed, perm.ID, a.CardID, a.PlayerID)
	ev.Data = inst.Card.Name
	g.emit(ev)
	return nil
}

// --- activated abilities ---

func (g *Game) activateAbility(a Action) error {
	if err := g.requirePriority(a.PlayerID); err != nil {
		return err
	}
	perm, ok := g.permanent(a.PermanentID)
	if !ok {
		return notFoundf("permanent %s not on the battlefield", a.PermanentID)
	}
	if perm.Controller != a.PlayerID {
		return unauthorizedf("%s does not control %s", a.PlayerID, perm.Name)
	}

	// Mana abilities resolve immediately without using the stack.
	if ab, ok := findActivated(perm.abilities, a.AbilityCost); ok && isManaAbility(ab) {
		if err := g.payActivationCost(perm, ab.Cost, a.X); err != nil {
			return err
		}
		g.addManaFromText(a.PlayerID, perm.ID, ab.Effect)
		return nil
	}

	if d := perm.pattern; d != nil {
		if cost, ok := patternCostFor(d, a.AbilityCost); ok {
			return g.activatePattern(a, perm, d, cost)
		}
	}

	ab, ok := findActivated(perm.abilities, a.AbilityCost)
	if !ok {
		return notFoundf("%s has no ability with cost %q", perm.Name, a.AbilityCost)
	}
	if err := g.payActivationCost(perm, ab.Cost, a.X); err != nil {
		return err
	}

	effect := ab.Effect
	targets := a.Targets
	x := a.X
	itemID := g.newObjectID()
	g.stack.Push(rules.StackItem{
		ID:          itemID,
		Controller:  a.PlayerID,
		Kind:        rules.StackItemKindActivated,
		SourceID:    perm.ID,
		Description: perm.Name + ": " + effect,
		Targets:     targets,
		X:           x,
		Resolve: func() error {
			return g.applyEffectText(perm.Controller, perm.ID, effect, targets, x)
		},
	})
	g.emit(rules.NewEvent(rules.EventActivatedAbility, perm.ID, perm.ID, a.PlayerID))
	return nil
}

// activatePattern validates restriction metadata, pays the cost, and puts
// the pattern execution on the stack.
func (g *Game) activatePattern(a Action, perm *Permanent, d *pattern.Descriptor, cost string) error {
	if d.OncePerTurn && perm.ActivationsThisTurn[cost] > 0 {
		return illegalf("ability already activated this turn")
	}
	if d.SorceryOnly {
		if err := g.sorcerySpeed(a.PlayerID); err != nil {
			return err
		}
	}
	if d.RequiresCombatDamage && len(perm.DealtCombatDamageTo) == 0 {
		return illegalf("%s has not dealt combat damage to a player this turn", perm.Name)
	}
	if err := g.payRestrictedCost(perm, cost, a.X, d.ManaRestriction); err != nil {
		return err
	}
	perm.ActivationsThisTurn[cost]++

	var target string
	if len(a.Targets) > 0 {
		target = a.Targets[0]
	}
	x := a.X
	itemID := g.newObjectID()
	g.stack.Push(rules.StackItem{
		ID:          itemID,
		Controller:  a.PlayerID,
		Kind:        rules.StackItemKindActivated,
		SourceID:    perm.ID,
		Description: perm.Name + " ability",
		Targets:     a.Targets,
		X:           x,
		Resolve: func() error {
			res, err := pattern.Execute(gameExecutor{g}, perm.ID, target, x, d)
			if err != nil {
				return err
			}
			for _, line := range res.Logs {
				g.logger.Debug("pattern applied", zap.String("log", line))
			}
			return nil
		},
	})
	g.emit(rules.NewEvent(rules.EventActivatedAbility, perm.ID, perm.ID, a.PlayerID))
	return nil
}

// patternCostFor matches the requested cost against the descriptor's cost
// or one of its upgrade stages. An empty request matches a single-cost
// descriptor.
func patternCostFor(d *pattern.Descriptor, requested string) (string, bool) {
	if d.Kind == pattern.KindUpgradeStages {
		if s := d.StageFor(requested); s != nil {
			return s.Cost, true
		}
		return "", false
	}
	if requested == "" || strings.EqualFold(d.Cost, requested) {
		return d.Cost, true
	}
	return "", false
}

// payRestrictedCost pays a pattern activation cost whose X portion is
// limited to a single color ("Spend only black mana on X."). The restricted
// portion is spent up front and refunded if the rest of the cost cannot be
// paid, so a rejected activation leaves the pool untouched.
func (g *Game) payRestrictedCost(perm *Permanent, cost string, x int, restriction string) error {
	t, ok := mana.TypeForColorWord(restriction)
	if !ok || x <= 0 {
		return g.payActivationCost(perm, cost, x)
	}
	p := g.players[perm.Controller]
	if p.Pool.Total(t) < x {
		return illegalf("X on %s must be paid with %s mana", perm.Name, restriction)
	}
	p.Pool.Spend(t, x)
	if err := g.payActivationCost(perm, cost, 0); err != nil {
		p.Pool.Add(t, x)
		return err
	}
	return nil
}

// payActivationCost pays a textual activation cost: the tap symbol plus any
// mana symbols. Tapping requires the permanent untapped, and a creature
// free of summoning sickness.
func (g *Game) payActivationCost(perm *Permanent, cost string, x int) error {
	needsTap := strings.Contains(strings.ToUpper(cost), "{T}")
	if needsTap {
		if perm.Tapped {
			return illegalf("%s is already tapped", perm.Name)
		}
		if perm.IsCreature() && perm.SummoningSick && !perm.HasKeyword("haste") {
			return illegalf("%s has summoning sickness", perm.Name)
		}
	}

	manaCost, err := mana.ParseCost(cost)
	if err != nil {
		return illegalf("unreadable ability cost %q", cost)
	}
	p := g.players[perm.Controller]
	if err := manaCost.Pay(p.Pool, x); err != nil {
		return illegalf("insufficient mana to activate %s", perm.Name)
	}

	if needsTap {
		g.tap(perm)
	}
	return nil
}

func findActivated(parsed oracle.Parsed, cost string) (oracle.Ability, bool) {
	for _, ab := range parsed.Abilities {
		if ab.Kind != oracle.KindActivated {
			continue
		}
		if cost == "" || strings.EqualFold(ab.Cost, cost) {
			return ab, true
		}
	}
	return oracle.Ability{}, false
}

func isManaAbility(ab oracle.Ability) bool {
	return strings.HasPrefix(strings.ToLower(ab.Effect), "add ")
}

var manaSymbolOrder = []mana.Type{mana.White, mana.Blue, mana.Black, mana.Red, mana.Green, mana.Colorless}

// addManaFromText adds the mana named by an "Add {G}{G}" style effect.
func (g *Game) addManaFromText(playerID, sourceID, effect string) {
	p := g.players[playerID]
	added := 0
	upper := strings.ToUpper(effect)
	symbols := map[mana.Type]string{
		mana.White: "{W}", mana.Blue: "{U}", mana.Black: "{B}",
		mana.Red: "{R}", mana.Green: "{G}", mana.Colorless: "{C}",
	}
	for _, t := range manaSymbolOrder {
		n := strings.Count(upper, symbols[t])
		if n > 0 {
			p.Pool.Add(t, n)
			added += n
		}
	}
	if added > 0 {
		g.emit(rules.NewEventWithAmount(rules.EventManaAdded, "", sourceID, playerID, added))
	}
}

// --- other actions ---

func (g *Game) sacrificeAction(a Action) error {
	if err := g.requirePriority(a.PlayerID); err != nil {
		return err
	}
	perm, ok := g.permanent(a.PermanentID)
	if !ok {
		return notFoundf("permanent %s not on the battlefield", a.PermanentID)
	}
	if perm.Controller != a.PlayerID {
		return unauthorizedf("%s does not control %s", a.PlayerID, perm.Name)
	}
	g.sacrificePermanent(perm)
	return nil
}

func (g *Game) searchLibraryAction(a Action) error {
	if err := g.requirePriority(a.PlayerID); err != nil {
		return err
	}
	g.enqueueSearch(a.PlayerID, "")
	return nil
}

// submitResolution answers the active resolution step and resumes its
// continuation. Queue errors are mapped to player-facing codes; the queue
// itself guarantees failed submissions leave the step active.
func (g *Game) submitResolution(a Action) error {
	resp := rules.QueueResponse{
		StepID:     a.StepID,
		PlayerID:   a.PlayerID,
		Selections: a.Selections,
		Decisions:  a.Decisions,
	}
	step, err := g.queue.Submit(resp)
	if err != nil {
		return queueError(err)
	}
	return g.resumeContinuation(step, resp)
}

// --- mulligans ---

// mulligan shuffles the hand back and draws a fresh hand (rule 103.5).
// Cards owed to the bottom are collected when the hand is kept.
func (g *Game) mulligan(playerID string) error {
	p := g.players[playerID]
	if p.KeptHand {
		return illegalf("hand already kept")
	}
	if g.turns.TurnNumber() > 1 {
		return illegalf("mulligans are only taken before the first turn")
	}
	if p.MulliganCount >= g.opts.HandSize {
		return illegalf("no cards left to mulligan")
	}

	p.Library = append(p.Library, p.Hand...)
	p.Hand = nil
	g.shuffleLibrary(p)
	p.MulliganCount++
	g.drawCards(playerID, g.opts.HandSize)
	g.emit(rules.NewEventWithAmount(rules.EventMulligan, "", "", playerID, p.MulliganCount))
	return nil
}

// keepHand locks in the hand. After one or more mulligans the player puts
// that many cards on the bottom of their library (London mulligan).
func (g *Game) keepHand(playerID string) error {
	p := g.players[playerID]
	if p.KeptHand {
		return illegalf("hand already kept")
	}
	p.KeptHand = true
	g.emit(rules.NewEvent(rules.EventKeptHand, "", "", playerID))

	if p.MulliganCount > 0 {
		g.addStep(rules.QueueStep{
			Kind:            rules.StepDiscardSelection,
			PlayerID:        playerID,
			Prompt:          "Put cards on the bottom of your library",
			Options:         append([]string(nil), p.Hand...),
			MinCount:        p.MulliganCount,
			MaxCount:        p.MulliganCount,
			ContinuationKey: continuationMulliganBottom,
		})
	}
	return nil
}

// concede removes the player immediately. Nothing can replace or prevent a
// concession (rule 104.3a).
func (g *Game) concede(playerID string) {
	p := g.players[playerID]
	if p == nil || p.Lost {
		return
	}
	g.emit(rules.NewEvent(rules.EventConceded, "", "", playerID))
	p.Lost = true
	p.LossReason = "conceded"
	g.turns.Eliminate(playerID)
	for id, perm := range g.battlefield {
		if perm.Owner == playerID {
			delete(g.battlefield, id)
			g.triggers.UnregisterSource(perm.ID)
			g.replacements.RemoveSource(perm.ID)
		}
	}
	remaining := g.turns.RemainingPlayers()
	if len(remaining) == 1 {
		g.declareWinner(remaining[0])
	}
}

// legalTargets lists every battlefield permanent and live player.
func (g *Game) legalTargets() []string {
	out := sortedKeys(g.battlefield)
	for _, id := range g.seats {
		if !g.players[id].Lost {
			out = append(out, id)
		}
	}
	return out
}

func inZone(zone []string, cardID string) bool {
	for _, id := range zone {
		if id == cardID {
			return true
		}
	}
	return false
}

func itoa(n int) string { return strconv.Itoa(n) }

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

package engine

import (
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/conclave-games/conclave-server/internal/card"
	"github.com/conclave-games/conclave-server/internal/engine/effects"
	"github.com/conclave-games/conclave-server/internal/engine/mana"
	"github.com/conclave-games/conclave-server/internal/engine/oracle"
	"github.com/conclave-games/conclave-server/internal/engine/pattern"
	"github.com/conclave-games/conclave-server/internal/engine/rules"
	"github.com/conclave-games/conclave-server/internal/metrics"
)

// GameOptions configure a new game.
type GameOptions struct {
	StartingLife int
	Commander    bool
	HandSize     int
}

func (o GameOptions) withDefaults() GameOptions {
	if o.StartingLife == 0 {
		if o.Commander {
			o.StartingLife = 40
		} else {
			o.StartingLife = 20
		}
	}
	if o.HandSize == 0 {
		o.HandSize = 7
	}
	return o
}

// Game is one running game. All mutation goes through the engine's action
// dispatch under the game mutex; a game never shares state with another.
type Game struct {
	mu sync.Mutex

	ID      string
	logger  *zap.Logger
	opts    GameOptions
	metrics *metrics.Set

	catalog *card.Catalog
	tokens  *card.TokenSet

	seats       []string
	players     map[string]*Player
	cards       map[string]*cardInstance
	battlefield map[string]*Permanent

	turns        *rules.TurnManager
	stack        *rules.StackManager
	bus          *rules.EventBus
	triggers     *rules.TriggerManager
	queue        *rules.ResolutionQueue
	replacements *effects.Manager

	// rng is seeded so a replayed action log shuffles identically.
	seed int64
	rng  *rand.Rand

	seq     uint64
	started bool
	ended   bool
	winner  string

	// Events and pending triggers produced by the in-flight action. Drained
	// by the engine after each dispatch.
	events  []rules.Event
	pending []rules.PendingTrigger

	// heldTriggers are built trigger items awaiting a player's ordering
	// choice before stack placement.
	heldTriggers map[string]rules.StackItem

	drewFromEmpty map[string]bool

	// objectSeq feeds newObjectID. Object IDs appear in actions (card,
	// permanent, stack item, and resolution step references), so they must
	// come out identical when a logged game is replayed.
	objectSeq uint64
}

// NewGame creates an empty game with the given deterministic seed.
func NewGame(id string, seed int64, catalog *card.Catalog, tokens *card.TokenSet, logger *zap.Logger, opts GameOptions) *Game {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Game{
		ID:            id,
		logger:        logger.With(zap.String("game_id", id)),
		opts:          opts.withDefaults(),
		catalog:       catalog,
		tokens:        tokens,
		players:       make(map[string]*Player),
		cards:         make(map[string]*cardInstance),
		battlefield:   make(map[string]*Permanent),
		stack:         rules.NewStackManager(),
		bus:           rules.NewEventBus(),
		triggers:      rules.NewTriggerManager(),
		queue:         rules.NewResolutionQueue(),
		replacements:  effects.NewManager(logger),
		seed:          seed,
		rng:           rand.New(rand.NewSource(seed)),
		drewFromEmpty: make(map[string]bool),
		heldTriggers:  make(map[string]rules.StackItem),
	}
}

// AddPlayer seats a player with a decklist of card names. Order of calls
// fixes seat order. The commander, when named, starts in the command zone.
func (g *Game) AddPlayer(playerID, name string, deck []string, commander string) error {
	if g.started {
		return illegalf("game already started")
	}
	if _, ok := g.players[playerID]; ok {
		return illegalf("player %s already seated", playerID)
	}

	p := &Player{
		ID:               playerID,
		Name:             name,
		Life:             g.opts.StartingLife,
		Pool:             mana.NewPool(),
		CommanderDamage:  make(map[string]int),
		LandDropsPerTurn: 1,
	}

	for _, cardName := range deck {
		cd, ok := g.catalog.Get(cardName)
		if !ok {
			return notFoundf("card %q not in catalog", cardName)
		}
		inst := &cardInstance{ID: g.newObjectID(), Owner: playerID, Card: cd}
		g.cards[inst.ID] = inst
		p.Library = append(p.Library, inst.ID)
	}

	if commander != "" {
		cd, ok := g.catalog.Get(commander)
		if !ok {
			return notFoundf("commander %q not in catalog", commander)
		}
		inst := &cardInstance{ID: g.newObjectID(), Owner: playerID, Card: cd}
		g.cards[inst.ID] = inst
		p.Command = append(p.Command, inst.ID)
		p.CommanderCard = inst.ID
	}

	g.players[playerID] = p
	g.seats = append(g.seats, playerID)
	return nil
}

// Start shuffles libraries, deals opening hands, and begins turn one.
func (g *Game) Start() error {
	if g.started {
		return illegalf("game already started")
	}
	if len(g.seats) < 2 {
		return illegalf("need at least two players")
	}

	g.turns = rules.NewTurnManager(g.seats)
	g.started = true

	for _, id := range g.seats {
		p := g.players[id]
		g.shuffleLibrary(p)
		for i := 0; i < g.opts.HandSize; i++ {
			g.drawCard(id)
		}
	}

	g.emit(rules.NewEvent(rules.EventGameStarted, "", "", g.turns.ActivePlayer()))
	g.logger.Info("game started",
		zap.Strings("players", g.seats),
		zap.Int64("seed", g.seed))
	return nil
}

// --- lookups ---

func (g *Game) player(id string) (*Player, error) {
	p, ok := g.players[id]
	if !ok {
		return nil, notFoundf("player %s not in game", id)
	}
	return p, nil
}

func (g *Game) opponents(playerID string) []string {
	var out []string
	for _, id := range g.seats {
		if id != playerID && !g.players[id].Lost {
			out = append(out, id)
		}
	}
	return out
}

func (g *Game) permanent(id string) (*Permanent, bool) {
	p, ok := g.battlefield[id]
	return p, ok
}

func (g *Game) permanentByCard(cardID string) (*Permanent, bool) {
	for _, p := range g.battlefield {
		if p.CardID == cardID {
			return p, true
		}
	}
	return nil, false
}

func (g *Game) instance(cardID string) (*cardInstance, bool) {
	inst, ok := g.cards[cardID]
	return inst, ok
}

// zoneOf locates a card instance. Battlefield and stack are checked before
// the owner's lists.
func (g *Game) zoneOf(cardID string) (ZoneName, bool) {
	if _, ok := g.permanentByCard(cardID); ok {
		return ZoneBattlefield, true
	}
	for _, item := range g.stack.List() {
		if item.Metadata["card_id"] == cardID {
			return ZoneStack, true
		}
	}
	inst, ok := g.cards[cardID]
	if !ok {
		return "", false
	}
	owner := g.players[inst.Owner]
	for _, zone := range []ZoneName{ZoneLibrary, ZoneHand, ZoneGraveyard, ZoneExile, ZoneCommand} {
		for _, id := range *owner.zone(zone) {
			if id == cardID {
				return zone, true
			}
		}
	}
	return "", false
}

// --- event plumbing ---

// emit publishes an event, stamps it with the game sequence, and collects
// any triggers it fired. The engine places pending triggers on the stack
// after the current action finishes.
func (g *Game) emit(ev rules.Event) {
	g.seq++
	if ev.ID == "" {
		ev.ID = newID()
	}
	g.events = append(g.events, ev)
	g.bus.Publish(ev)
	if g.turns != nil {
		g.pending = append(g.pending, g.triggers.Handle(ev, g.turns.ActivePlayer())...)
	}
}

// applyReplaced runs the replacement chain on the event before emitting it.
// Returns the final event and whether it survived; a consumed event is
// emitted as nothing and the caller must not apply its default outcome.
func (g *Game) applyReplaced(ev rules.Event) (rules.Event, bool) {
	replaced, survived := g.replacements.Apply(ev)
	if !survived {
		return replaced, false
	}
	// Win-instead rewrites arrive here as a different event type.
	if replaced.Type == rules.EventWins && ev.Type != rules.EventWins {
		g.declareWinner(replaced.PlayerID)
		return replaced, false
	}
	g.emit(replaced)
	return replaced, true
}

// drainEvents returns and clears the events of the in-flight action.
func (g *Game) drainEvents() []rules.Event {
	out := g.events
	g.events = nil
	return out
}

// --- library and hand ---

func (g *Game) shuffleLibrary(p *Player) {
	g.rng.Shuffle(len(p.Library), func(i, j int) {
		p.Library[i], p.Library[j] = p.Library[j], p.Library[i]
	})
	g.emit(rules.NewEvent(rules.EventLibraryShuffled, "", "", p.ID))
}

// drawCard moves the top library card to hand. Drawing from an empty
// library is recorded for the next state-based action check; a win-instead
// replacement can rewrite it first.
func (g *Game) drawCard(playerID string) {
	p := g.players[playerID]
	if len(p.Library) == 0 {
		ev := rules.NewEvent(rules.EventDrewFromEmpty, "", "", playerID)
		if _, survived := g.applyReplaced(ev); survived {
			g.drewFromEmpty[playerID] = true
		}
		return
	}
	cardID := p.Library[0]
	p.Library = p.Library[1:]
	p.Hand = append(p.Hand, cardID)
	g.emit(rules.NewEvent(rules.EventDrewCard, cardID, "", playerID))
}

func (g *Game) drawCards(playerID string, n int) {
	for i := 0; i < n; i++ {
		g.drawCard(playerID)
	}
}

func (g *Game) millCards(playerID string, n int) {
	p := g.players[playerID]
	for i := 0; i < n && len(p.Library) > 0; i++ {
		cardID := p.Library[0]
		p.Library = p.Library[1:]
		p.Graveyard = append(p.Graveyard, cardID)
		g.emit(rules.NewEvent(rules.EventMilledCard, cardID, "", playerID))
	}
}

func (g *Game) discardCard(playerID, cardID string) error {
	p := g.players[playerID]
	if !p.removeFrom(ZoneHand, cardID) {
		return notFoundf("card %s not in hand", cardID)
	}
	p.Graveyard = append(p.Graveyard, cardID)
	g.emit(rules.NewEvent(rules.EventDiscardedCard, cardID, "", playerID))
	return nil
}

// --- zone movement ---

// moveCard relocates a card instance between non-battlefield zones. A
// redirect replacement may change the destination. Commander cards going to
// the graveyard or exile may go to the command zone instead; that choice is
// auto-taken here.
func (g *Game) moveCard(cardID string, from, to ZoneName) bool {
	inst, ok := g.cards[cardID]
	if !ok {
		return false
	}
	owner := g.players[inst.Owner]

	ev := rules.NewEvent(rules.EventZoneChange, cardID, "", inst.Owner)
	ev.Metadata["from"] = string(from)
	ev.Metadata["to"] = string(to)
	replaced, survived := g.applyReplaced(ev)
	if !survived {
		return false
	}
	if z := replaced.Metadata[effects.MetaRedirectZone]; z != "" {
		to = ZoneName(z)
	}
	if owner.CommanderCard == cardID && (to == ZoneGraveyard || to == ZoneExile) {
		to = ZoneCommand
	}

	if from != ZoneBattlefield && from != ZoneStack {
		if !owner.removeFrom(from, cardID) {
			return false
		}
	}
	dest := owner.zone(to)
	if dest == nil {
		return false
	}
	// Library placement defaults to the bottom; scry callers reorder.
	*dest = append(*dest, cardID)
	return true
}

// --- battlefield ---

// enterBattlefield puts a card onto the battlefield under the given
// controller, minting a fresh permanent (rule 400.7). The caller has
// already removed the card from its previous zone. Self-replacement
// modifiers (enters tapped, enters with counters) apply here.
func (g *Game) enterBattlefield(cardID, controller string, from ZoneName) *Permanent {
	inst := g.cards[cardID]
	perm := newPermanent(g.newObjectID(), inst, controller)
	g.battlefield[perm.ID] = perm

	g.registerPermanentAbilities(perm)

	ev := rules.NewEvent(rules.EventEntersTheBattlefield, cardID, perm.ID, controller)
	ev.Metadata["from"] = string(from)
	replaced, survived := g.applyReplaced(ev)
	if survived {
		g.applyEntryModifiers(perm, replaced)
	}
	return perm
}

// createToken puts a token permanent matching the description onto the
// battlefield.
func (g *Game) createToken(desc, controller string) *Permanent {
	tpl := g.tokens.Resolve(desc)
	perm := newTokenPermanent(g.newObjectID(), tpl.Card(), controller, controller)
	g.battlefield[perm.ID] = perm
	g.registerPermanentAbilities(perm)

	ev := rules.NewEvent(rules.EventTokenCreated, perm.ID, "", controller)
	ev.Data = tpl.Name
	g.emit(ev)

	etb := rules.NewEvent(rules.EventEntersTheBattlefield, "", perm.ID, controller)
	if replaced, survived := g.applyReplaced(etb); survived {
		g.applyEntryModifiers(perm, replaced)
	}
	return perm
}

func (g *Game) applyEntryModifiers(perm *Permanent, ev rules.Event) {
	if ev.Metadata[effects.MetaEntersTapped] == "true" {
		perm.Tapped = true
	}
	for key, val := range ev.Metadata {
		if len(key) > len(effects.MetaCounterPrefix) && key[:len(effects.MetaCounterPrefix)] == effects.MetaCounterPrefix {
			if n, err := strconv.Atoi(val); err == nil {
				perm.Counters.Add(key[len(effects.MetaCounterPrefix):], n)
			}
		}
	}
}

// leaveBattlefield removes a permanent and sends its card to the given
// zone. Tokens cease to exist instead of changing zones. Triggers and
// replacement effects sourced by the permanent are unregistered.
func (g *Game) leaveBattlefield(perm *Permanent, to ZoneName) {
	delete(g.battlefield, perm.ID)
	g.triggers.UnregisterSource(perm.ID)
	g.replacements.RemoveSource(perm.ID)
	for _, attID := range perm.Attachments {
		if att, ok := g.battlefield[attID]; ok {
			att.AttachedTo = ""
		}
	}

	if perm.IsToken {
		g.emit(rules.NewEvent(rules.EventTokenCeased, perm.ID, "", perm.Controller))
		return
	}
	g.moveCard(perm.CardID, ZoneBattlefield, to)
}

// destroyPermanent destroys a permanent. A regeneration shield replaces the
// destruction: the permanent taps, its damage clears, and it leaves combat
// (rule 701.19).
func (g *Game) destroyPermanent(perm *Permanent, sourceID string) bool {
	if perm.HasKeyword("indestructible") {
		return false
	}

	ev := rules.NewEvent(rules.EventDestroyed, perm.ID, sourceID, perm.Controller)
	replaced, survived := g.applyReplaced(ev)
	if survived && replaced.Metadata[effects.MetaRegenerated] == "true" {
		perm.Tapped = true
		perm.Damage = 0
		perm.DeathtouchHit = false
		g.removeFromCombat(perm)
		g.emit(rules.NewEvent(rules.EventRegenerated, perm.ID, sourceID, perm.Controller))
		return false
	}
	if !survived {
		return false
	}

	dies := rules.NewEvent(rules.EventPermanentDies, perm.ID, sourceID, perm.Controller)
	dies.Data = perm.Name
	g.emit(dies)
	g.leaveBattlefield(perm, ZoneGraveyard)
	return true
}

func (g *Game) sacrificePermanent(perm *Permanent) {
	ev := rules.NewEvent(rules.EventSacrificed, perm.ID, "", perm.Controller)
	ev.Data = perm.Name
	g.emit(ev)
	dies := rules.NewEvent(rules.EventPermanentDies, perm.ID, "", perm.Controller)
	dies.Data = perm.Name
	g.emit(dies)
	g.leaveBattlefield(perm, ZoneGraveyard)
}

func (g *Game) exilePermanent(perm *Permanent, sourceID string) {
	ev := rules.NewEvent(rules.EventExiled, perm.ID, sourceID, perm.Controller)
	ev.Data = perm.Name
	g.emit(ev)
	g.leaveBattlefield(perm, ZoneExile)
}

func (g *Game) removeFromCombat(perm *Permanent) {
	if perm.Attacking == "" && perm.Blocking == "" {
		return
	}
	if perm.Blocking != "" {
		if att, ok := g.battlefield[perm.Blocking]; ok {
			att.BlockedBy = removeString(att.BlockedBy, perm.ID)
		}
	}
	for _, other := range g.battlefield {
		if other.Blocking == perm.ID {
			other.Blocking = ""
		}
	}
	perm.Attacking = ""
	perm.Blocking = ""
	perm.BlockedBy = nil
	perm.RemovedFromCombat = true
	g.emit(rules.NewEvent(rules.EventRemovedFromCombat, perm.ID, "", perm.Controller))
}

// --- damage and life ---

// damagePlayer deals damage to a player through the replacement chain.
// Commander combat damage is tracked per commander (rule 903.10a).
func (g *Game) damagePlayer(playerID, sourceID string, amount int, combat bool) {
	if amount <= 0 {
		return
	}
	ev := rules.NewEventWithAmount(rules.EventDamagePlayer, playerID, sourceID, playerID, amount)
	ev.Flag = combat
	replaced, survived := g.applyReplaced(ev)
	if !survived || replaced.Amount <= 0 {
		return
	}

	p := g.players[playerID]
	p.Life -= replaced.Amount

	if src, ok := g.battlefield[sourceID]; ok {
		if combat {
			src.DealtCombatDamageTo[playerID] = true
		}
		if src.HasKeyword("lifelink") {
			g.gainLife(src.Controller, replaced.Amount)
		}
		if src.HasKeyword("infect") {
			p.Life += replaced.Amount // infect deals damage as poison counters
			p.Poison += replaced.Amount
		}
		if combat && g.isCommander(src) {
			p.CommanderDamage[src.CardID] += replaced.Amount
			cmd := rules.NewEventWithAmount(rules.EventCommanderDamage, playerID, src.ID, playerID, replaced.Amount)
			g.emit(cmd)
		}
	}

	done := rules.NewEventWithAmount(rules.EventDamagedPlayer, playerID, sourceID, playerID, replaced.Amount)
	done.Flag = combat
	g.emit(done)
	g.emit(rules.NewEventWithAmount(rules.EventLostLife, playerID, sourceID, playerID, replaced.Amount))
}

// damagePermanent marks damage on a creature. Deathtouch makes any amount
// lethal at the next state-based action check.
func (g *Game) damagePermanent(perm *Permanent, sourceID string, amount int, combat bool) {
	if amount <= 0 {
		return
	}
	ev := rules.NewEventWithAmount(rules.EventDamagePermanent, perm.ID, sourceID, perm.Controller, amount)
	ev.Flag = combat
	replaced, survived := g.applyReplaced(ev)
	if !survived || replaced.Amount <= 0 {
		return
	}

	perm.Damage += replaced.Amount
	if src, ok := g.battlefield[sourceID]; ok {
		if src.HasKeyword("deathtouch") {
			perm.DeathtouchHit = true
		}
		if src.HasKeyword("lifelink") {
			g.gainLife(src.Controller, replaced.Amount)
		}
	}

	done := rules.NewEventWithAmount(rules.EventDamagedPermanent, perm.ID, sourceID, perm.Controller, replaced.Amount)
	done.Flag = combat
	g.emit(done)
}

func (g *Game) gainLife(playerID string, amount int) {
	if amount <= 0 {
		return
	}
	ev := rules.NewEventWithAmount(rules.EventGainedLife, playerID, "", playerID, amount)
	replaced, survived := g.applyReplaced(ev)
	if !survived {
		return
	}
	g.players[playerID].Life += replaced.Amount
}

func (g *Game) loseLife(playerID string, amount int) {
	if amount <= 0 {
		return
	}
	p := g.players[playerID]
	p.Life -= amount
	g.emit(rules.NewEventWithAmount(rules.EventLostLife, playerID, "", playerID, amount))
}

func (g *Game) isCommander(perm *Permanent) bool {
	if !g.opts.Commander || perm.CardID == "" {
		return false
	}
	owner := g.players[perm.Owner]
	return owner != nil && owner.CommanderCard == perm.CardID
}

// --- tapping ---

func (g *Game) tap(perm *Permanent) {
	if perm.Tapped {
		return
	}
	perm.Tapped = true
	g.emit(rules.NewEvent(rules.EventTapped, perm.ID, "", perm.Controller))
}

func (g *Game) untap(perm *Permanent) {
	if !perm.Tapped {
		return
	}
	perm.Tapped = false
	g.emit(rules.NewEvent(rules.EventUntapped, perm.ID, "", perm.Controller))
}

// --- win and loss ---

// losePlayer eliminates a player unless a replacement cancels the loss.
func (g *Game) losePlayer(playerID, reason string) {
	p := g.players[playerID]
	if p == nil || p.Lost {
		return
	}
	ev := rules.NewEvent(rules.EventLost, playerID, "", playerID)
	ev.Data = reason
	if _, survived := g.applyReplaced(ev); !survived {
		return
	}

	p.Lost = true
	p.LossReason = reason
	g.turns.Eliminate(playerID)
	for id, perm := range g.battlefield {
		if perm.Owner == playerID {
			delete(g.battlefield, id)
			g.triggers.UnregisterSource(perm.ID)
			g.replacements.RemoveSource(perm.ID)
		}
	}
	g.logger.Info("player lost", zap.String("player_id", playerID), zap.String("reason", reason))

	remaining := g.turns.RemainingPlayers()
	if len(remaining) == 1 {
		g.declareWinner(remaining[0])
	}
}

func (g *Game) declareWinner(playerID string) {
	if g.ended {
		return
	}
	g.ended = true
	g.winner = playerID
	if p := g.players[playerID]; p != nil {
		p.Won = true
	}
	ev := rules.NewEvent(rules.EventGameEnded, playerID, "", playerID)
	g.emit(ev)
	g.logger.Info("game ended", zap.String("winner", playerID))
}

// --- ability registration ---

// registerPermanentAbilities parses the permanent's oracle text and wires
// its triggered abilities, replacement effects, and pattern descriptor.
func (g *Game) registerPermanentAbilities(perm *Permanent) {
	perm.abilities = oracle.Parse(perm.Card.OracleText, perm.Name)
	perm.pattern = pattern.Detect(perm.Card.OracleText, strings.ToLower(perm.Name))

	for _, ab := range perm.abilities.Abilities {
		switch ab.Kind {
		case oracle.KindTriggered:
			if id := g.registerTriggered(perm, ab); id != "" {
				perm.triggers = append(perm.triggers, id)
			}
		case oracle.KindReplacement:
			g.registerReplacement(perm, ab)
		case oracle.KindStatic:
			g.registerStatic(perm, ab)
		}
	}
}

func newID() string { return uuid.NewString() }

// newObjectID mints an ID for an in-game object. Unlike event IDs these are
// referenced by later actions, so they are sequential per game rather than
// random: replaying the action log must mint the same IDs in the same order.
// Zero-padding keeps lexical and creation order aligned for sortedKeys.
func (g *Game) newObjectID() string {
	g.objectSeq++
	return fmt.Sprintf("obj-%06d", g.objectSeq)
}

// addStep enqueues a resolution step under a deterministic ID.
func (g *Game) addStep(step rules.QueueStep) string {
	step.ID = g.newObjectID()
	g.metrics.ObserveResolutionStep(string(step.Kind))
	return g.queue.Add(step)
}

func sortedKeys(m map[string]*Permanent) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func removeString(list []string, s string) []string {
	for i, v := range list {
		if v == s {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

func (g *Game) invariantCheck() {
	if err := g.checkZoneInvariant(); err != nil {
		g.logger.Error("zone invariant violated", zap.Error(err))
	}
}

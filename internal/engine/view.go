package engine

import (
	"sort"

	"github.com/conclave-games/conclave-server/internal/engine/rules"
)

// GameView is a per-viewer redacted projection of one game. Hidden zones
// show counts only; the viewer's own hand shows cards. Seq increases
// monotonically with every state change, letting clients discard stale
// frames.
type GameView struct {
	GameID   string `json:"game_id"`
	ViewerID string `json:"viewer_id"`
	Seq      uint64 `json:"seq"`

	TurnNumber     int    `json:"turn_number"`
	Phase          string `json:"phase"`
	Step           string `json:"step"`
	ActivePlayer   string `json:"active_player"`
	PriorityPlayer string `json:"priority_player"`

	Players     []PlayerView    `json:"players"`
	Battlefield []PermanentView `json:"battlefield"`
	Stack       []StackView     `json:"stack"`

	PendingStep *StepView `json:"pending_step,omitempty"`
	Winner      string    `json:"winner,omitempty"`
	Ended       bool      `json:"ended"`
}

// PlayerView is one player's public state, plus hand contents for the
// viewer themself.
type PlayerView struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Life            int            `json:"life"`
	Poison          int            `json:"poison,omitempty"`
	LibraryCount    int            `json:"library_count"`
	HandCount       int            `json:"hand_count"`
	Hand            []CardView     `json:"hand,omitempty"`
	Graveyard       []CardView     `json:"graveyard"`
	ExileCount      int            `json:"exile_count"`
	CommanderTax    int            `json:"commander_tax,omitempty"`
	CommanderDamage map[string]int `json:"commander_damage,omitempty"`
	Lost            bool           `json:"lost,omitempty"`
	Mana            map[string]int `json:"mana,omitempty"`
}

// CardView identifies one visible card.
type CardView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PermanentView is the public state of a battlefield object.
type PermanentView struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Controller string         `json:"controller"`
	Tapped     bool           `json:"tapped"`
	Power      int            `json:"power,omitempty"`
	Toughness  int            `json:"toughness,omitempty"`
	Damage     int            `json:"damage,omitempty"`
	Counters   map[string]int `json:"counters,omitempty"`
	Subtypes   []string       `json:"subtypes,omitempty"`
	Keywords   []string       `json:"keywords,omitempty"`
	Token      bool           `json:"token,omitempty"`
	Attacking  string         `json:"attacking,omitempty"`
	Blocking   string         `json:"blocking,omitempty"`
	Goaded     bool           `json:"goaded,omitempty"`
}

// StackView is one object on the stack, top last.
type StackView struct {
	ID          string   `json:"id"`
	Controller  string   `json:"controller"`
	Kind        string   `json:"kind"`
	Description string   `json:"description"`
	Targets     []string `json:"targets,omitempty"`
}

// StepView describes the resolution step awaiting the viewer's answer.
type StepView struct {
	ID        string   `json:"id"`
	Kind      string   `json:"kind"`
	Prompt    string   `json:"prompt"`
	Options   []string `json:"options"`
	MinCount  int      `json:"min_count"`
	MaxCount  int      `json:"max_count"`
	PerOption bool     `json:"per_option,omitempty"`
	Decisions []string `json:"decisions,omitempty"`
}

// View builds the redacted projection for one viewer.
func (g *Game) View(viewerID string) GameView {
	g.mu.Lock()
	defer g.mu.Unlock()

	view := GameView{
		GameID:   g.ID,
		ViewerID: viewerID,
		Seq:      g.seq,
		Winner:   g.winner,
		Ended:    g.ended,
	}
	if g.turns != nil {
		view.TurnNumber = g.turns.TurnNumber()
		view.Phase = g.turns.CurrentPhase().String()
		view.Step = g.turns.CurrentStep().String()
		view.ActivePlayer = g.turns.ActivePlayer()
		view.PriorityPlayer = g.turns.PriorityPlayer()
	}

	for _, id := range g.seats {
		view.Players = append(view.Players, g.playerView(g.players[id], viewerID))
	}

	for _, id := range sortedKeys(g.battlefield) {
		view.Battlefield = append(view.Battlefield, permanentView(g.battlefield[id]))
	}

	for _, item := range g.stack.List() {
		view.Stack = append(view.Stack, StackView{
			ID:          item.ID,
			Controller:  item.Controller,
			Kind:        string(item.Kind),
			Description: item.Description,
			Targets:     item.Targets,
		})
	}

	if step := g.queue.Active(); step != nil && step.PlayerID == viewerID {
		view.PendingStep = &StepView{
			ID:        step.ID,
			Kind:      string(step.Kind),
			Prompt:    step.Prompt,
			Options:   step.Options,
			MinCount:  step.MinCount,
			MaxCount:  step.MaxCount,
			PerOption: step.PerOption,
			Decisions: step.Decisions,
		}
	}

	return view
}

func (g *Game) playerView(p *Player, viewerID string) PlayerView {
	pv := PlayerView{
		ID:           p.ID,
		Name:         p.Name,
		Life:         p.Life,
		Poison:       p.Poison,
		LibraryCount: len(p.Library),
		HandCount:    len(p.Hand),
		ExileCount:   len(p.Exile),
		CommanderTax: p.CommanderTax,
		Lost:         p.Lost,
	}
	if len(p.CommanderDamage) > 0 {
		pv.CommanderDamage = make(map[string]int, len(p.CommanderDamage))
		for k, v := range p.CommanderDamage {
			pv.CommanderDamage[k] = v
		}
	}
	for _, id := range p.Graveyard {
		pv.Graveyard = append(pv.Graveyard, g.cardView(id))
	}
	if p.ID == viewerID {
		for _, id := range p.Hand {
			pv.Hand = append(pv.Hand, g.cardView(id))
		}
		pv.Mana = manaView(p)
	}
	return pv
}

func manaView(p *Player) map[string]int {
	snap := p.Pool.Snapshot()
	if len(snap) == 0 {
		return nil
	}
	out := make(map[string]int, len(snap))
	for t, n := range snap {
		out[string(t)] = n
	}
	return out
}

func (g *Game) cardView(cardID string) CardView {
	inst := g.cards[cardID]
	if inst == nil {
		return CardView{ID: cardID}
	}
	return CardView{ID: cardID, Name: inst.Card.Name}
}

func permanentView(p *Permanent) PermanentView {
	pv := PermanentView{
		ID:         p.ID,
		Name:       p.Name,
		Controller: p.Controller,
		Tapped:     p.Tapped,
		Damage:     p.Damage,
		Token:      p.IsToken,
		Attacking:  p.Attacking,
		Blocking:   p.Blocking,
		Goaded:     p.Goaded(),
	}
	if p.IsCreature() {
		pv.Power = p.Power()
		pv.Toughness = p.Toughness()
		pv.Subtypes = p.Subtypes()
	}
	if all := p.Counters.All(); len(all) > 0 {
		pv.Counters = all
	}
	if len(p.GrantedKeywords) > 0 {
		kws := append([]string(nil), p.GrantedKeywords...)
		sort.Strings(kws)
		pv.Keywords = kws
	}
	return pv
}

// Events exposes the game's event bus for read-side subscribers such as the
// gateway broadcaster.
func (g *Game) Events() *rules.EventBus { return g.bus }

// Seq returns the current state sequence number.
func (g *Game) Seq() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seq
}

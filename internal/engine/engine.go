// Package engine implements the rules engine: game state, the action and
// validation layer, triggered abilities, state-based actions, and the
// resolution queue that suspends resolutions on player input.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/conclave-games/conclave-server/internal/card"
	"github.com/conclave-games/conclave-server/internal/engine/rules"
	"github.com/conclave-games/conclave-server/internal/eventlog"
	"github.com/conclave-games/conclave-server/internal/metrics"
)

// GameRegistry shards live games by ID. Each game serializes its own
// actions; the registry only guards the map.
type GameRegistry struct {
	mu    sync.RWMutex
	games map[string]*Game
}

// NewGameRegistry creates an empty registry.
func NewGameRegistry() *GameRegistry {
	return &GameRegistry{games: make(map[string]*Game)}
}

// Add registers a game.
func (r *GameRegistry) Add(g *Game) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.games[g.ID] = g
}

// Get returns the game, or nil when absent.
func (r *GameRegistry) Get(gameID string) *Game {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.games[gameID]
}

// Delete removes a game.
func (r *GameRegistry) Delete(gameID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.games, gameID)
}

// Len returns the number of registered games.
func (r *GameRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.games)
}

// Engine fronts the registry with logging, persistence, and metrics. All
// external layers (gateway, tooling) talk to games through it.
type Engine struct {
	logger   *zap.Logger
	registry *GameRegistry
	catalog  *card.Catalog
	tokens   *card.TokenSet
	log      eventlog.Store
	metrics  *metrics.Set
}

// NewEngine wires an engine. A nil store disables persistence; a nil
// metrics set disables instrumentation.
func NewEngine(logger *zap.Logger, catalog *card.Catalog, tokens *card.TokenSet, store eventlog.Store, m *metrics.Set) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tokens == nil {
		tokens = card.NewTokenSet()
	}
	return &Engine{
		logger:   logger,
		registry: NewGameRegistry(),
		catalog:  catalog,
		tokens:   tokens,
		log:      store,
		metrics:  m,
	}
}

// GameSetup describes a new game for creation and for the setup log
// record.
type GameSetup struct {
	GameID  string        `json:"game_id"`
	Seed    int64         `json:"seed"`
	Options GameOptions   `json:"options"`
	Players []PlayerSetup `json:"players"`
}

// PlayerSetup seats one player.
type PlayerSetup struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Deck      []string `json:"deck"`
	Commander string   `json:"commander,omitempty"`
}

// CreateGame builds, starts, and registers a game, and writes the setup
// record so the game can be rebuilt by replay.
func (e *Engine) CreateGame(ctx context.Context, setup GameSetup) (*Game, error) {
	if setup.GameID == "" {
		setup.GameID = newID()
	}
	g, err := e.buildGame(setup)
	if err != nil {
		return nil, err
	}

	if e.log != nil {
		payload, err := json.Marshal(setup)
		if err != nil {
			return nil, fmt.Errorf("marshal game setup: %w", err)
		}
		rec := &eventlog.Record{GameID: setup.GameID, Kind: eventlog.KindSetup, Payload: payload}
		err = e.log.Append(ctx, rec)
		e.metrics.ObserveLogAppend(err)
		if err != nil {
			return nil, fmt.Errorf("persist game setup: %w", err)
		}
	}

	e.registry.Add(g)
	e.metrics.IncGames()
	return g, nil
}

func (e *Engine) buildGame(setup GameSetup) (*Game, error) {
	g := NewGame(setup.GameID, setup.Seed, e.catalog, e.tokens, e.logger, setup.Options)
	g.metrics = e.metrics
	for _, p := range setup.Players {
		if err := g.AddPlayer(p.ID, p.Name, p.Deck, p.Commander); err != nil {
			return nil, err
		}
	}
	if err := g.Start(); err != nil {
		return nil, err
	}
	g.drainEvents()
	return g, nil
}

// Submit applies one action to its game, persists it on success, and
// returns the events it produced.
func (e *Engine) Submit(ctx context.Context, a Action) ([]rules.Event, error) {
	g := e.registry.Get(a.GameID)
	if g == nil {
		return nil, notFoundf("game %s not found", a.GameID)
	}

	events, err := g.Apply(a)
	if err != nil {
		if ae, ok := err.(*ActionError); ok {
			e.metrics.ObserveActionError(ae.Code)
		}
		return nil, err
	}

	e.metrics.ObserveAction(string(a.Type))
	e.metrics.ObserveStackDepth(len(g.stack.List()))

	if e.log != nil {
		payload, merr := json.Marshal(a)
		if merr != nil {
			e.logger.Error("marshal action for log", zap.Error(merr))
		} else {
			rec := &eventlog.Record{GameID: a.GameID, Kind: eventlog.KindAction, Payload: payload}
			aerr := e.log.Append(ctx, rec)
			e.metrics.ObserveLogAppend(aerr)
			if aerr != nil {
				e.logger.Error("append action record", zap.Error(aerr))
			}
		}
	}
	return events, nil
}

// View returns the redacted projection of a game for one viewer.
func (e *Engine) View(gameID, viewerID string) (GameView, error) {
	g := e.registry.Get(gameID)
	if g == nil {
		return GameView{}, notFoundf("game %s not found", gameID)
	}
	return g.View(viewerID), nil
}

// Restore rebuilds a game from its persisted action log: the setup record
// recreates the initial state (same seed, same decks), then every logged
// action replays in order. The result is registered and returned.
func (e *Engine) Restore(ctx context.Context, gameID string) (*Game, error) {
	if e.log == nil {
		return nil, fmt.Errorf("no event log store configured")
	}
	records, err := e.log.Replay(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, notFoundf("no log for game %s", gameID)
	}
	if records[0].Kind != eventlog.KindSetup {
		return nil, fmt.Errorf("%w: log for %s does not start with setup", ErrInvariant, gameID)
	}

	var setup GameSetup
	if err := json.Unmarshal(records[0].Payload, &setup); err != nil {
		return nil, fmt.Errorf("decode game setup: %w", err)
	}
	g, err := e.buildGame(setup)
	if err != nil {
		return nil, err
	}

	for _, rec := range records[1:] {
		if rec.Kind != eventlog.KindAction {
			continue
		}
		var a Action
		if err := json.Unmarshal(rec.Payload, &a); err != nil {
			return nil, fmt.Errorf("decode action record %d: %w", rec.Seq, err)
		}
		if _, err := g.Apply(a); err != nil {
			return nil, fmt.Errorf("replay action %d (%s): %w", rec.Seq, a.Type, err)
		}
	}

	g.mu.Lock()
	if err := g.checkZoneInvariant(); err != nil {
		g.mu.Unlock()
		return nil, err
	}
	g.mu.Unlock()

	e.registry.Add(g)
	e.metrics.IncGames()
	return g, nil
}

// DeleteGame drops a finished game from the registry.
func (e *Engine) DeleteGame(gameID string) {
	if e.registry.Get(gameID) == nil {
		return
	}
	e.registry.Delete(gameID)
	e.metrics.DecGames()
}

// Game exposes a registered game, mainly for tests and tooling.
func (e *Engine) Game(gameID string) *Game { return e.registry.Get(gameID) }

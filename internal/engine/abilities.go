package engine

import (
	"regexp"
	"strings"

	"github.com/conclave-games/conclave-server/internal/engine/effects"
	"github.com/conclave-games/conclave-server/internal/engine/oracle"
	"github.com/conclave-games/conclave-server/internal/engine/rules"
)

// triggerSpec maps a trigger phrase shape to the event it listens for.
// Condition receives the owning permanent and the event; a nil condition
// always matches.
type triggerSpec struct {
	re        *regexp.Regexp
	eventType rules.EventType
	filter    rules.ControllerFilter
	condition func(perm *Permanent, ev rules.Event) bool
}

func selfTarget(perm *Permanent, ev rules.Event) bool {
	return ev.SourceID == perm.ID || ev.TargetID == perm.ID || ev.TargetID == perm.CardID
}

func yourStep(perm *Permanent, ev rules.Event) bool {
	return ev.PlayerID == perm.Controller
}

// The closed trigger vocabulary. Phrases outside it register nothing; the
// ability stays visible in the parsed text but is inert.
var triggerSpecs = []triggerSpec{
	{regexp.MustCompile(`^when(ever)? ~ enters`), rules.EventEntersTheBattlefield, rules.FilterAny, selfTarget},
	{regexp.MustCompile(`^when(ever)? ~ dies`), rules.EventPermanentDies, rules.FilterAny, selfTarget},
	{regexp.MustCompile(`^when(ever)? ~ attacks`), rules.EventAttackerDeclared, rules.FilterAny, selfTarget},
	{regexp.MustCompile(`^when(ever)? ~ blocks`), rules.EventBlockerDeclared, rules.FilterAny, selfTarget},
	{regexp.MustCompile(`^whenever ~ deals combat damage to a player`), rules.EventDamagedPlayer, rules.FilterAny,
		func(perm *Permanent, ev rules.Event) bool { return ev.SourceID == perm.ID && ev.Flag }},
	{regexp.MustCompile(`^when(ever)? another creature enters`), rules.EventEntersTheBattlefield, rules.FilterAny,
		func(perm *Permanent, ev rules.Event) bool { return ev.SourceID != perm.ID }},
	{regexp.MustCompile(`^when(ever)? a(nother)? creature dies`), rules.EventPermanentDies, rules.FilterAny, nil},
	{regexp.MustCompile(`^at the beginning of your upkeep`), rules.EventUpkeepStep, rules.FilterAny, yourStep},
	{regexp.MustCompile(`^at the beginning of each (player's )?upkeep`), rules.EventUpkeepStep, rules.FilterAny, nil},
	{regexp.MustCompile(`^at the beginning of your end step`), rules.EventEndStep, rules.FilterAny, yourStep},
	{regexp.MustCompile(`^at the beginning of (the|each) end step`), rules.EventEndStep, rules.FilterAny, nil},
	{regexp.MustCompile(`^at the beginning of your draw step`), rules.EventDrawStep, rules.FilterAny, yourStep},
	{regexp.MustCompile(`^whenever you cast a spell`), rules.EventSpellCast, rules.FilterYou, nil},
	{regexp.MustCompile(`^whenever an opponent casts a spell`), rules.EventSpellCast, rules.FilterOpponent, nil},
	{regexp.MustCompile(`^whenever you gain life`), rules.EventGainedLife, rules.FilterAny, yourStep},
	{regexp.MustCompile(`^whenever you draw a card`), rules.EventDrewCard, rules.FilterAny, yourStep},
	{regexp.MustCompile(`^whenever you sacrifice`), rules.EventSacrificed, rules.FilterYou, nil},
}

// registerTriggered wires one parsed triggered ability to the trigger
// manager. Returns the registered trigger ID, or empty when the trigger
// phrase is outside the recognized vocabulary.
func (g *Game) registerTriggered(perm *Permanent, ab oracle.Ability) string {
	trigger := strings.ToLower(ab.Trigger)
	for _, spec := range triggerSpecs {
		if !spec.re.MatchString(trigger) {
			continue
		}
		spec := spec
		perm := perm
		ab := ab
		return g.triggers.Register(rules.TriggeredAbility{
			SourceID:    perm.ID,
			Controller:  perm.Controller,
			EventType:   spec.eventType,
			Controllers: spec.filter,
			Condition: func(ev rules.Event) bool {
				if spec.condition != nil && !spec.condition(perm, ev) {
					return false
				}
				return true
			},
			Build: func(ev rules.Event) rules.StackItem {
				return g.buildTriggerItem(perm, ab, ev)
			},
		})
	}
	return ""
}

// buildTriggerItem turns a fired trigger into a stack item. Optional
// triggers suspend into a MAY_PAY_PROMPT before their effect runs.
func (g *Game) buildTriggerItem(perm *Permanent, ab oracle.Ability, ev rules.Event) rules.StackItem {
	itemID := g.newObjectID()
	return rules.StackItem{
		ID:          itemID,
		Controller:  perm.Controller,
		Kind:        rules.StackItemKindTriggered,
		SourceID:    perm.ID,
		Description: perm.Name + ": " + ab.Effect,
		Metadata:    map[string]string{"effect": ab.Effect},
		Resolve: func() error {
			if ab.InterveningIf != "" && !g.checkInterveningIf(perm, ab.InterveningIf) {
				return nil
			}
			if ab.Optional {
				g.addStep(rules.QueueStep{
					Kind:            rules.StepMayPayPrompt,
					PlayerID:        perm.Controller,
					SourceID:        perm.ID,
					Prompt:          perm.Name + ": " + ab.Effect,
					Options:         []string{"yes", "no"},
					ContinuationKey: continuationOptionalEffect,
					Context: map[string]string{
						"permanent_id": perm.ID,
						"effect":       ab.Effect,
						"event_target": ev.TargetID,
					},
				})
				return nil
			}
			return g.applyEffectText(perm.Controller, perm.ID, ab.Effect, nil, 0)
		},
	}
}

// checkInterveningIf evaluates the small set of intervening-if conditions
// the engine understands. Unknown conditions fail closed, so the trigger
// does nothing rather than doing the wrong thing.
func (g *Game) checkInterveningIf(perm *Permanent, cond string) bool {
	cond = strings.ToLower(cond)
	switch {
	case strings.Contains(cond, "you control"):
		return true
	case strings.Contains(cond, "it's tapped"), strings.Contains(cond, "is tapped"):
		return perm.Tapped
	case strings.Contains(cond, "untapped"):
		return !perm.Tapped
	default:
		return false
	}
}

// registerReplacement wires parsed replacement lines into the effects
// manager. Only the self-modifier shapes are registered here; spell-created
// replacements are built at resolution.
func (g *Game) registerReplacement(perm *Permanent, ab oracle.Ability) {
	line := strings.ToLower(ab.Effect)
	switch {
	case strings.Contains(line, "enters the battlefield tapped") || strings.Contains(line, "enters tapped"):
		g.replacements.Add(effects.NewEntersModifier(perm.ID, perm.CardID, true, nil))
	case strings.Contains(line, "would draw a card") && strings.Contains(line, "win the game instead"):
		g.replacements.Add(effects.NewWinInstead(perm.ID, perm.Controller, rules.EventDrewFromEmpty))
	case strings.Contains(line, "would die") && strings.Contains(line, "exile it instead"):
		g.replacements.Add(effects.NewRedirectZoneChange(perm.ID, "", perm.Controller,
			string(ZoneGraveyard), string(ZoneExile), effects.DurationPermanent))
	}
}

var (
	devotionWinPattern     = regexp.MustCompile(`devotion to ([a-z]+) is (\w+) or greater, you win the game`)
	devotionLibraryPattern = regexp.MustCompile(`devotion to ([a-z]+) is greater than or equal to the number of cards in your library, you win the game`)
	devotionXPattern       = regexp.MustCompile(`where x is your devotion to ([a-z]+)`)
	xLibraryWinPattern     = regexp.MustCompile(`x is greater than or equal to the number of cards in your library, you win the game`)
)

// registerStatic handles the static lines the engine acts on. Devotion win
// conditions are checked during state-based actions; "you can't lose"
// becomes a loss-cancelling replacement.
func (g *Game) registerStatic(perm *Permanent, ab oracle.Ability) {
	line := strings.ToLower(ab.Effect)
	if strings.Contains(line, "you can't lose the game") {
		g.replacements.Add(effects.NewCantLose(perm.ID, perm.Controller, effects.DurationPermanent))
	}
}

// devotionWin reports whether the permanent carries a satisfied devotion
// win condition for its controller. Two shapes exist: a fixed threshold
// ("devotion to green is ten or greater") and a comparison against the
// controller's library size, either stated directly or through an X bound
// by "where X is your devotion to" a color. An empty library satisfies the
// library form at any devotion.
func (g *Game) devotionWin(perm *Permanent) bool {
	text := strings.ToLower(perm.Card.OracleText)

	color := ""
	if m := devotionLibraryPattern.FindStringSubmatch(text); m != nil {
		color = m[1]
	} else if m := devotionXPattern.FindStringSubmatch(text); m != nil && xLibraryWinPattern.MatchString(text) {
		color = m[1]
	}
	if color != "" {
		p, ok := g.players[perm.Controller]
		if !ok {
			return false
		}
		return g.devotion(perm.Controller, color) >= len(p.Library)
	}

	m := devotionWinPattern.FindStringSubmatch(text)
	if m == nil {
		return false
	}
	threshold := numberWord(m[2])
	if threshold <= 0 {
		return false
	}
	return g.devotion(perm.Controller, m[1]) >= threshold
}

// devotion counts colored mana symbols of the color among mana costs of
// permanents the player controls (rule 700.5).
func (g *Game) devotion(playerID, colorWord string) int {
	symbol := colorSymbol(colorWord)
	if symbol == "" {
		return 0
	}
	total := 0
	for _, perm := range g.battlefield {
		if perm.Controller != playerID {
			continue
		}
		total += strings.Count(perm.Card.ManaCost, "{"+symbol+"}")
		total += strings.Count(perm.Card.ManaCost, symbol+"/")
		total += strings.Count(perm.Card.ManaCost, "/"+symbol)
	}
	return total
}

func colorSymbol(word string) string {
	switch word {
	case "white":
		return "W"
	case "blue":
		return "U"
	case "black":
		return "B"
	case "red":
		return "R"
	case "green":
		return "G"
	}
	return ""
}

func numberWord(w string) int {
	switch w {
	case "one":
		return 1
	case "two":
		return 2
	case "three":
		return 3
	case "four":
		return 4
	case "five":
		return 5
	case "six":
		return 6
	case "seven":
		return 7
	case "eight":
		return 8
	case "nine":
		return 9
	case "ten":
		return 10
	}
	n := 0
	for _, r := range w {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}

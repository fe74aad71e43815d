// Package pattern recognizes parametrized ability families from oracle text
// by structural shape rather than per-card lookup. Any card whose text
// matches a known shape works without a registry entry; cards matching no
// pattern are inert for engine purposes and must be handled elsewhere.
package pattern

import (
	"regexp"
	"strconv"
	"strings"
)

// Kind identifies a recognized ability family.
type Kind string

const (
	KindDealXDamageEach   Kind = "DEAL_X_DAMAGE_EACH"
	KindDealXDamageTarget Kind = "DEAL_X_DAMAGE_TARGET"
	KindDestroyMVX        Kind = "DESTROY_MV_X"
	KindPutXCounters      Kind = "PUT_X_COUNTERS"
	KindBecomesTypesPT    Kind = "BECOMES_X_Y_WITH_TYPES"
	KindFlickerImmediate  Kind = "FLICKER_IMMEDIATE"
	KindFlickerDelayed    Kind = "FLICKER_DELAYED"
	KindUpgradeStages     Kind = "UPGRADE_STAGES"
)

// Stage is one step of a staged creature-upgrade ability. RequiredTypes is
// evaluated against the permanent's current (possibly already upgraded) type
// set, not the printed type line.
type Stage struct {
	Cost          string
	RequiredTypes []string
	Types         []string
	Power         int
	Toughness     int
	Keywords      []string
}

// Descriptor describes a detected ability pattern plus restriction metadata.
// Restriction fields are extracted independently of the pattern body.
type Descriptor struct {
	Kind Kind
	Cost string

	// BecomesTypesPT / upgrade stages
	Types          []string
	Power          int
	Toughness      int
	Keywords       []string
	UntilEndOfTurn bool
	Stages         []Stage

	// Restrictions
	OncePerTurn          bool
	SorceryOnly          bool
	RequiresCombatDamage bool
	ManaRestriction      string
}

// HasX reports whether the pattern's cost includes {X}.
func (d *Descriptor) HasX() bool {
	return strings.Contains(strings.ToLower(d.Cost), "{x}")
}

type matcher struct {
	kind Kind
	fn   func(text string) *Descriptor
}

// Pattern priority order. Upgrade stages subsume single becomes-lines, so
// they are tried first; the generic becomes pattern catches the rest.
var matchers = []matcher{
	{KindUpgradeStages, matchUpgradeStages},
	{KindBecomesTypesPT, matchBecomesTypesPT},
	{KindDealXDamageEach, matchDealXDamageEach},
	{KindDealXDamageTarget, matchDealXDamageTarget},
	{KindDestroyMVX, matchDestroyMVX},
	{KindPutXCounters, matchPutXCounters},
	{KindFlickerDelayed, matchFlickerDelayed},
	{KindFlickerImmediate, matchFlickerImmediate},
}

// Detect recognizes the first ability pattern present in the card's oracle
// text. The card name is replaced with a placeholder token before matching so
// patterns are card-independent. Returns nil when no pattern matches.
func Detect(oracleText, cardNameLower string) *Descriptor {
	text := normalize(oracleText, cardNameLower)
	for _, m := range matchers {
		if d := m.fn(text); d != nil {
			applyRestrictions(d, text)
			return d
		}
	}
	return nil
}

func normalize(text, cardNameLower string) string {
	text = strings.ToLower(text)
	text = regexp.MustCompile(`\s*\([^)]*\)`).ReplaceAllString(text, "")
	if cardNameLower != "" {
		text = strings.ReplaceAll(text, cardNameLower, "~")
		if short, _, ok := strings.Cut(cardNameLower, ", "); ok {
			text = strings.ReplaceAll(text, short, "~")
		}
	}
	return strings.ReplaceAll(text, "this creature", "~")
}

var (
	oncePerTurnPattern  = regexp.MustCompile(`activate (?:this ability )?only once each turn`)
	sorceryOnlyPattern  = regexp.MustCompile(`activate (?:this ability )?only (?:any time you could cast|as) a sorcery`)
	combatDamagePattern = regexp.MustCompile(`only if ~ dealt combat damage to a player this turn`)
	spendOnlyPattern    = regexp.MustCompile(`spend only ([a-z]+) mana`)
)

func applyRestrictions(d *Descriptor, text string) {
	d.OncePerTurn = oncePerTurnPattern.MatchString(text)
	d.SorceryOnly = sorceryOnlyPattern.MatchString(text)
	d.RequiresCombatDamage = combatDamagePattern.MatchString(text)
	if m := spendOnlyPattern.FindStringSubmatch(text); m != nil {
		d.ManaRestriction = m[1]
	}
}

var dealXEachPattern = regexp.MustCompile(`(\{x\}[^:\n]*):\s*~ deals x damage to each creature and each player`)

func matchDealXDamageEach(text string) *Descriptor {
	m := dealXEachPattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	return &Descriptor{Kind: KindDealXDamageEach, Cost: m[1]}
}

var dealXTargetPattern = regexp.MustCompile(`(\{x\}[^:\n]*):\s*~ deals x damage to (?:any target|target creature(?: or player)?|target player)`)

func matchDealXDamageTarget(text string) *Descriptor {
	m := dealXTargetPattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	return &Descriptor{Kind: KindDealXDamageTarget, Cost: m[1]}
}

var destroyMVXPattern = regexp.MustCompile(`(\{x\}[^:\n]*):\s*destroy each (nonland permanent|creature|artifact|enchantment)[^.\n]* mana value x`)

func matchDestroyMVX(text string) *Descriptor {
	m := destroyMVXPattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	return &Descriptor{Kind: KindDestroyMVX, Cost: m[1], Types: destroyTypes(m[2])}
}

func destroyTypes(phrase string) []string {
	switch phrase {
	case "nonland permanent":
		return []string{"nonland"}
	default:
		return []string{phrase}
	}
}

var putXCountersPattern = regexp.MustCompile(`(\{x\}[^:\n]*):\s*put x (\+1/\+1|[a-z]+) counters? on ~`)

func matchPutXCounters(text string) *Descriptor {
	m := putXCountersPattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	return &Descriptor{Kind: KindPutXCounters, Cost: m[1], Keywords: []string{m[2]}}
}

var becomesPattern = regexp.MustCompile(`(\{[^:\n]+\}):\s*~ becomes an? ([a-z' ]+?) with base power and toughness (\d+)/(\d+)(?:[^.\n]*?and (?:gains|has) ([a-z ,]+))?`)

func matchBecomesTypesPT(text string) *Descriptor {
	m := becomesPattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	d := &Descriptor{
		Kind:      KindBecomesTypesPT,
		Cost:      m[1],
		Types:     parseTypeWords(m[2]),
		Power:     atoi(m[3]),
		Toughness: atoi(m[4]),
	}
	if m[5] != "" {
		d.Keywords = parseKeywordList(m[5])
	}
	// The permanent variant carries no duration clause. A timed variant is
	// still recognized but flagged so it expires at cleanup.
	if strings.Contains(matchedLine(text, m[0]), "until end of turn") {
		d.UntilEndOfTurn = true
	}
	return d
}

var upgradeStagePattern = regexp.MustCompile(`((?:\{[^}]+\})+):\s*(?:if ~ is an? ([a-z ]+), it|~) becomes an? ([a-z' ]+?) with base power and toughness (\d+)/(\d+)(?:[^.\n]*?and (?:gains|has) ([a-z ,]+))?`)

// matchUpgradeStages detects staged, cumulative, characteristic-defining
// upgrade abilities: each later stage's required types are met only after an
// earlier stage has been applied.
func matchUpgradeStages(text string) *Descriptor {
	ms := upgradeStagePattern.FindAllStringSubmatch(text, -1)
	if len(ms) < 2 {
		return nil
	}
	d := &Descriptor{Kind: KindUpgradeStages}
	for _, m := range ms {
		stage := Stage{
			Cost:      m[1],
			Types:     parseTypeWords(m[3]),
			Power:     atoi(m[4]),
			Toughness: atoi(m[5]),
		}
		if m[2] != "" {
			stage.RequiredTypes = parseTypeWords(m[2])
		}
		if m[6] != "" {
			stage.Keywords = parseKeywordList(m[6])
		}
		d.Stages = append(d.Stages, stage)
	}
	return d
}

var flickerImmediatePattern = regexp.MustCompile(`exile (?:target|another target|up to one target) [a-z ]+(?:you control)?[^.\n]*, then return (?:it|that card) to the battlefield`)

func matchFlickerImmediate(text string) *Descriptor {
	if !flickerImmediatePattern.MatchString(text) {
		return nil
	}
	return &Descriptor{Kind: KindFlickerImmediate}
}

var flickerDelayedPattern = regexp.MustCompile(`exile (?:target|another target|up to one target) [a-z ]+[^.\n]*\.? ?return (?:it|that card) to the battlefield[^.\n]* at the beginning of the next end step`)

func matchFlickerDelayed(text string) *Descriptor {
	if !flickerDelayedPattern.MatchString(text) {
		return nil
	}
	return &Descriptor{Kind: KindFlickerDelayed}
}

func matchedLine(text, match string) string {
	idx := strings.Index(text, match)
	if idx < 0 {
		return match
	}
	end := strings.IndexByte(text[idx:], '\n')
	if end < 0 {
		return text[idx:]
	}
	return text[idx : idx+end]
}

func parseTypeWords(s string) []string {
	var types []string
	for _, w := range strings.Fields(s) {
		types = append(types, titleCase(w))
	}
	return types
}

func parseKeywordList(s string) []string {
	var kws []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(part), "and "))
		if part != "" {
			kws = append(kws, part)
		}
	}
	return kws
}

func titleCase(w string) string {
	if w == "" {
		return w
	}
	return strings.ToUpper(w[:1]) + w[1:]
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

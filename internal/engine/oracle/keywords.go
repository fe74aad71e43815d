package oracle

import (
	"regexp"
	"strconv"
	"strings"
)

// KeywordAction is a normalized action verb extracted from an effect line.
// Amount is -1 when the quantity is X or unspecified.
type KeywordAction struct {
	Verb   string
	Amount int
	Text   string
}

// Action verbs recognized across the engine.
const (
	VerbScry        = "scry"
	VerbSurveil     = "surveil"
	VerbMill        = "mill"
	VerbDraw        = "draw"
	VerbDiscard     = "discard"
	VerbCreateToken = "create_token"
	VerbDealDamage  = "deal_damage"
	VerbDestroy     = "destroy"
	VerbExile       = "exile"
	VerbCounter     = "counter"
	VerbSearch      = "search"
	VerbGainLife    = "gain_life"
	VerbLoseLife    = "lose_life"
	VerbPutCounters = "put_counters"
	VerbSacrifice   = "sacrifice"
	VerbTap         = "tap"
	VerbUntap       = "untap"
	VerbReturn      = "return"
)

type actionPattern struct {
	verb string
	re   *regexp.Regexp
}

// The verb table is fixed; the first capture group, when present, is the
// quantity word.
var actionPatterns = []actionPattern{
	{VerbScry, regexp.MustCompile(`(?i)\bscry (\d+|x)\b`)},
	{VerbSurveil, regexp.MustCompile(`(?i)\bsurveil (\d+|x)\b`)},
	{VerbMill, regexp.MustCompile(`(?i)\bmills? (\d+|x|a|that many) cards?\b`)},
	{VerbDraw, regexp.MustCompile(`(?i)\bdraws? (a|an|two|three|four|\d+|x|that many) cards?\b`)},
	{VerbDiscard, regexp.MustCompile(`(?i)\bdiscards? (a|an|two|three|\d+|x|your hand)\b`)},
	{VerbCreateToken, regexp.MustCompile(`(?i)\bcreates? (?:(a|an|two|three|four|\d+|x) )?.*?tokens?\b`)},
	{VerbDealDamage, regexp.MustCompile(`(?i)\bdeals? (\d+|x|that much) damage\b`)},
	{VerbDestroy, regexp.MustCompile(`(?i)\bdestroy (?:target|all|each|up to)\b`)},
	{VerbExile, regexp.MustCompile(`(?i)\bexiles? (?:target|all|each|it|that|up to|~)\b`)},
	{VerbCounter, regexp.MustCompile(`(?i)\bcounter (?:target|it|that)\b`)},
	{VerbSearch, regexp.MustCompile(`(?i)\bsearch(?:es)? (?:your|their) library\b`)},
	{VerbGainLife, regexp.MustCompile(`(?i)\bgains? (\d+|x|that much) life\b`)},
	{VerbLoseLife, regexp.MustCompile(`(?i)\bloses? (\d+|x|that much) life\b`)},
	{VerbPutCounters, regexp.MustCompile(`(?i)\bputs? (a|an|two|three|\d+|x|that many) .{0,40}? counters? on\b`)},
	{VerbSacrifice, regexp.MustCompile(`(?i)\bsacrifices? (?:a|an|two|\d+|~|it|that|this)\b`)},
	{VerbTap, regexp.MustCompile(`(?i)\btap (?:target|all|each|up to)\b`)},
	{VerbUntap, regexp.MustCompile(`(?i)\buntap (?:target|all|each|up to|~)\b`)},
	{VerbReturn, regexp.MustCompile(`(?i)\breturn (?:target|it|that|all|each|up to)\b.*\bto\b`)},
}

// ActionsIn pulls every recognized action verb from a single effect line.
// Exposed for effect application outside the full parse.
func ActionsIn(line string) []KeywordAction {
	return extractKeywordActions(line)
}

// extractKeywordActions pulls every recognized action verb from a line.
func extractKeywordActions(line string) []KeywordAction {
	var actions []KeywordAction
	for _, p := range actionPatterns {
		m := p.re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		amount := -1
		if len(m) > 1 {
			amount = parseQuantity(m[1])
		}
		actions = append(actions, KeywordAction{Verb: p.verb, Amount: amount, Text: strings.TrimSpace(m[0])})
	}
	return actions
}

func parseQuantity(word string) int {
	switch strings.ToLower(word) {
	case "a", "an":
		return 1
	case "two":
		return 2
	case "three":
		return 3
	case "four":
		return 4
	}
	if n, err := strconv.Atoi(word); err == nil {
		return n
	}
	return -1
}

// simpleKeywords are keyword abilities that appear bare or comma-joined.
var simpleKeywords = map[string]bool{
	"deathtouch": true, "defender": true, "double strike": true,
	"first strike": true, "flash": true, "flying": true, "haste": true,
	"hexproof": true, "indestructible": true, "lifelink": true,
	"menace": true, "reach": true, "trample": true, "vigilance": true,
	"protection": true, "shroud": true, "banding": true, "fear": true,
	"intimidate": true, "changeling": true, "prowess": true, "ward": true,
}

// costKeywords are keyword abilities with an attached cost, recognized even
// without a colon (e.g. "Equip {2}").
var costKeywordPattern = regexp.MustCompile(`(?i)^(equip|cycling|flashback|kicker|madness|morph|unearth|echo|ward|level up|cumulative upkeep|embalm|eternalize|monstrosity)\s*(?:—\s*)?(\{.+\}|\d+)$`)

// keywordLine reports whether the line is purely a keyword list or a
// cost-bearing keyword, and returns the keywords it grants.
func keywordLine(line string) ([]string, bool) {
	if m := costKeywordPattern.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
		return []string{strings.ToLower(m[1]) + " " + m[2]}, true
	}

	parts := strings.Split(line, ",")
	var kws []string
	for _, part := range parts {
		kw := strings.ToLower(strings.TrimSpace(strings.TrimSuffix(part, ".")))
		if kw == "" {
			return nil, false
		}
		// "protection from red" and "ward {2}" keep their argument.
		base := kw
		if i := strings.IndexAny(kw, " {"); i > 0 && !simpleKeywords[kw] {
			base = kw[:i]
		}
		if !simpleKeywords[base] {
			return nil, false
		}
		kws = append(kws, kw)
	}
	return kws, len(kws) > 0
}

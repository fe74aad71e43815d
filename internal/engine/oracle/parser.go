// Package oracle converts a card's free-text rules into structured ability
// descriptors. Parsing is a regex cascade with an explicit priority order per
// logical line; unparsable lines degrade to static abilities and never fail.
package oracle

import (
	"regexp"
	"strings"
)

// AbilityKind classifies a parsed ability.
type AbilityKind string

const (
	// KindActivated is a "cost: effect" ability.
	KindActivated AbilityKind = "ACTIVATED"
	// KindTriggered is a "When/Whenever/At ..." ability.
	KindTriggered AbilityKind = "TRIGGERED"
	// KindReplacement intercepts an event before it happens.
	KindReplacement AbilityKind = "REPLACEMENT"
	// KindStatic is a continuous ability, and the fallback for unparsed text.
	KindStatic AbilityKind = "STATIC"
)

// Ability is one parsed ability of a card.
type Ability struct {
	Kind          AbilityKind
	Cost          string // activated abilities: text left of the colon
	Trigger       string // triggered abilities: the trigger condition
	InterveningIf string // triggered abilities: "When X, if Y, Z" condition
	Effect        string
	Optional      bool // effect contains "you may"
	Targets       bool
	Raw           string
}

// Parsed is the result of parsing a card's oracle text.
type Parsed struct {
	Abilities      []Ability
	Keywords       []string
	KeywordActions []KeywordAction
	HasTargets     bool
	HasModes       bool
}

// IsTriggered reports whether any parsed ability is triggered.
func (p Parsed) IsTriggered() bool { return p.hasKind(KindTriggered) }

// IsActivated reports whether any parsed ability is activated.
func (p Parsed) IsActivated() bool { return p.hasKind(KindActivated) }

// IsReplacement reports whether any parsed ability is a replacement effect.
func (p Parsed) IsReplacement() bool { return p.hasKind(KindReplacement) }

func (p Parsed) hasKind(k AbilityKind) bool {
	for _, a := range p.Abilities {
		if a.Kind == k {
			return true
		}
	}
	return false
}

var (
	reminderText = regexp.MustCompile(`\s*\([^)]*\)`)
	// Intervening-if must be tried before the plain trigger pattern: the
	// plain pattern is a strict subset match.
	interveningIfPattern = regexp.MustCompile(`(?i)^(when|whenever|at)\s+([^,]+),\s*if\s+([^,]+),\s*(.+)$`)
	plainTriggerPattern  = regexp.MustCompile(`(?i)^(when|whenever|at)\s+([^,]+),\s*(.+)$`)
	replacementPattern   = regexp.MustCompile(`(?i)^if\b.+\bwould\b.+\binstead\b`)
	etbAsPattern         = regexp.MustCompile(`(?i)^as\b.+\benters(?: the battlefield)?\b`)
	etbModifierPattern   = regexp.MustCompile(`(?i)^~ enters(?: the battlefield)? (tapped|with\b.+)`)
	modalPattern         = regexp.MustCompile(`(?i)choose (one|two|three|one or (?:more|both))\s*—`)
	continuationStart    = regexp.MustCompile(`^(then|if you do|if you don't|otherwise)\b`)
)

var targetVocabulary = []string{
	"any target",
	"target creature",
	"target player",
	"target opponent",
	"target permanent",
	"target artifact",
	"target enchantment",
	"target land",
	"target planeswalker",
	"target spell",
	"target attacking",
	"target blocking",
	"target card",
}

// Parse converts oracle text into structured abilities. It never fails:
// lines that match no pattern come back as static abilities holding the raw
// line, and the caller decides whether an unparsed ability is actionable.
func Parse(oracleText, cardName string) Parsed {
	var parsed Parsed
	text := normalize(oracleText, cardName)
	if strings.TrimSpace(text) == "" {
		return parsed
	}

	for _, line := range splitAbilityLines(text) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if kws, ok := keywordLine(line); ok {
			parsed.Keywords = append(parsed.Keywords, kws...)
			continue
		}

		parsed.KeywordActions = append(parsed.KeywordActions, extractKeywordActions(line)...)

		ability := classifyLine(line)
		ability.Optional = containsFold(ability.Effect, "you may")
		ability.Targets = hasTargetVocabulary(line)
		parsed.Abilities = append(parsed.Abilities, ability)

		if ability.Targets {
			parsed.HasTargets = true
		}
		if modalPattern.MatchString(line) {
			parsed.HasModes = true
		}
	}

	return parsed
}

// classifyLine applies the pattern priority table to a single logical line.
func classifyLine(line string) Ability {
	if cost, effect, ok := splitActivated(line); ok {
		return Ability{Kind: KindActivated, Cost: cost, Effect: effect, Raw: line}
	}
	if replacementPattern.MatchString(line) {
		return Ability{Kind: KindReplacement, Effect: line, Raw: line}
	}
	if etbAsPattern.MatchString(line) || etbModifierPattern.MatchString(line) {
		return Ability{Kind: KindReplacement, Effect: line, Raw: line}
	}
	if m := interveningIfPattern.FindStringSubmatch(line); m != nil {
		return Ability{
			Kind:          KindTriggered,
			Trigger:       strings.TrimSpace(m[1] + " " + m[2]),
			InterveningIf: strings.TrimSpace(m[3]),
			Effect:        strings.TrimSpace(m[4]),
			Raw:           line,
		}
	}
	if m := plainTriggerPattern.FindStringSubmatch(line); m != nil {
		return Ability{
			Kind:    KindTriggered,
			Trigger: strings.TrimSpace(m[1] + " " + m[2]),
			Effect:  strings.TrimSpace(m[3]),
			Raw:     line,
		}
	}
	return Ability{Kind: KindStatic, Effect: line, Raw: line}
}

// splitActivated splits an activated ability on its first un-parenthesized,
// un-braced colon. The cost segment may not itself start with a trigger word;
// that disambiguates triggered abilities whose condition contains a colon.
func splitActivated(line string) (cost, effect string, ok bool) {
	depth := 0
	for i, r := range line {
		switch r {
		case '(', '{':
			depth++
		case ')', '}':
			depth--
		case ':':
			if depth != 0 {
				continue
			}
			cost = strings.TrimSpace(line[:i])
			effect = strings.TrimSpace(line[i+1:])
			if cost == "" || effect == "" {
				return "", "", false
			}
			lower := strings.ToLower(cost)
			for _, tw := range []string{"when ", "whenever ", "at "} {
				if strings.HasPrefix(lower, tw) {
					return "", "", false
				}
			}
			return cost, effect, true
		}
	}
	return "", "", false
}

// normalize replaces the card's own name with the ~ placeholder and strips
// reminder text, so patterns are card-name independent.
func normalize(text, cardName string) string {
	text = reminderText.ReplaceAllString(text, "")
	if cardName != "" {
		text = strings.ReplaceAll(text, cardName, "~")
		// Legendary cards refer to themselves by first name after the
		// first mention.
		if short, _, ok := strings.Cut(cardName, ", "); ok {
			text = strings.ReplaceAll(text, short, "~")
		}
	}
	return text
}

// splitAbilityLines splits on ability-separating newlines, then merges
// continuation sentences (a line starting lowercase or with a linking adverb
// modifies the previous effect). The merge rule is a heuristic over natural
// language and is an accepted approximation.
func splitAbilityLines(text string) []string {
	raw := strings.Split(text, "\n")
	var lines []string
	for _, l := range raw {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		if len(lines) > 0 && isContinuation(l) {
			lines[len(lines)-1] += " " + l
			continue
		}
		lines = append(lines, l)
	}
	return lines
}

func isContinuation(line string) bool {
	r := rune(line[0])
	if r >= 'a' && r <= 'z' && !continuationStart.MatchString(strings.ToLower(line)) {
		return true
	}
	return continuationStart.MatchString(strings.ToLower(line))
}

func hasTargetVocabulary(line string) bool {
	lower := strings.ToLower(line)
	for _, v := range targetVocabulary {
		if strings.Contains(lower, v) {
			return true
		}
	}
	return false
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), sub)
}

package card

import (
	"regexp"
	"strconv"
	"strings"
)

// TokenTemplate is a named token preset used when an effect creates a token.
type TokenTemplate struct {
	Name      string
	Power     int
	Toughness int
	Colors    []string
	TypeLine  string
	Abilities []string
}

// Card synthesizes a Card record for a permanent created from this template.
func (t TokenTemplate) Card() Card {
	var p, tough string
	if strings.Contains(t.TypeLine, "Creature") {
		p = itoa(t.Power)
		tough = itoa(t.Toughness)
	}
	return Card{
		Name:       t.Name,
		TypeLine:   t.TypeLine,
		OracleText: strings.Join(t.Abilities, "\n"),
		Power:      p,
		Toughness:  tough,
		Keywords:   append([]string(nil), t.Abilities...),
		Colors:     append([]string(nil), t.Colors...),
	}
}

// TokenSet holds the known token presets and resolves free-text token
// descriptions against them.
type TokenSet struct {
	templates []TokenTemplate
}

// NewTokenSet builds a token set from presets, in registration order.
func NewTokenSet(templates ...TokenTemplate) *TokenSet {
	return &TokenSet{templates: append([]TokenTemplate(nil), templates...)}
}

var ptPattern = regexp.MustCompile(`(\d+)/(\d+)`)

// Resolve finds the template best matching a token description such as
// "a 1/1 white Soldier creature token". An exact name match wins; otherwise
// the preset with the highest structural overlap (power/toughness, colors,
// subtype words) is chosen. When nothing scores, a template is synthesized
// from the description so token creation never fails.
func (ts *TokenSet) Resolve(desc string) TokenTemplate {
	descLower := strings.ToLower(desc)

	for _, t := range ts.templates {
		if strings.EqualFold(t.Name, strings.TrimSpace(desc)) {
			return t
		}
	}

	var best TokenTemplate
	bestScore := 0
	for _, t := range ts.templates {
		score := ts.score(t, descLower)
		if score > bestScore {
			best, bestScore = t, score
		}
	}
	if bestScore > 0 {
		return best
	}
	return synthesizeTemplate(desc)
}

func (ts *TokenSet) score(t TokenTemplate, descLower string) int {
	score := 0
	if m := ptPattern.FindStringSubmatch(descLower); m != nil {
		if atoi(m[1]) == t.Power && atoi(m[2]) == t.Toughness {
			score += 2
		}
	}
	for _, c := range t.Colors {
		if strings.Contains(descLower, strings.ToLower(colorWord(c))) {
			score++
		}
	}
	for _, w := range strings.Fields(t.TypeLine) {
		if w == "—" || w == "Token" {
			continue
		}
		if strings.Contains(descLower, strings.ToLower(w)) {
			score++
		}
	}
	return score
}

func synthesizeTemplate(desc string) TokenTemplate {
	t := TokenTemplate{Name: "Token", TypeLine: "Token Creature", Power: 1, Toughness: 1}
	if m := ptPattern.FindStringSubmatch(desc); m != nil {
		t.Power = atoi(m[1])
		t.Toughness = atoi(m[2])
	}
	for _, w := range strings.Fields(desc) {
		w = strings.Trim(w, ".,")
		if len(w) > 1 && w[0] >= 'A' && w[0] <= 'Z' {
			t.Name = w
			t.TypeLine = "Token Creature — " + w
			break
		}
	}
	for code, word := range colorWords {
		if strings.Contains(strings.ToLower(desc), word) {
			t.Colors = append(t.Colors, code)
		}
	}
	return t
}

var colorWords = map[string]string{
	"W": "white",
	"U": "blue",
	"B": "black",
	"R": "red",
	"G": "green",
}

func colorWord(code string) string {
	if w, ok := colorWords[code]; ok {
		return w
	}
	return code
}

func itoa(n int) string { return strconv.Itoa(n) }

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

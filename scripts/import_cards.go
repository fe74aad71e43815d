package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// cardRecord matches the columns of the card database CSV export.
type cardRecord struct {
	Name       string
	Power      string
	Toughness  string
	Types      string
	Subtypes   string
	Supertypes string
	ManaCost   string
	Rules      string
	Black      bool
	Blue       bool
	Green      bool
	Red        bool
	White      bool
}

// catalogCard is the catalog JSON shape consumed by internal/card.
type catalogCard struct {
	Name       string   `json:"name"`
	ManaCost   string   `json:"mana_cost"`
	TypeLine   string   `json:"type_line"`
	OracleText string   `json:"oracle_text"`
	Power      string   `json:"power,omitempty"`
	Toughness  string   `json:"toughness,omitempty"`
	Keywords   []string `json:"keywords,omitempty"`
	Colors     []string `json:"colors,omitempty"`
}

func main() {
	csvPath := "data/cards_export.csv"
	outPath := "data/cards.json"
	if len(os.Args) > 1 {
		csvPath = os.Args[1]
	}
	if len(os.Args) > 2 {
		outPath = os.Args[2]
	}

	absPath, err := filepath.Abs(csvPath)
	if err != nil {
		log.Fatalf("Failed to get absolute path: %v", err)
	}

	fmt.Println("=== Conclave Card Data Import ===")
	fmt.Printf("CSV file: %s\n", absPath)
	fmt.Printf("Output:   %s\n", outPath)

	if _, err := os.Stat(absPath); os.IsNotExist(err) {
		log.Fatalf("CSV file not found: %s", absPath)
	}

	file, err := os.Open(absPath)
	if err != nil {
		log.Fatalf("Failed to open CSV file: %v", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		log.Fatalf("Failed to read CSV: %v", err)
	}
	if len(records) < 2 {
		log.Fatal("CSV file is empty or has no data rows")
	}
	fmt.Printf("Found %d cards in CSV\n", len(records)-1) // -1 for header

	startTime := time.Now()
	cards := make([]catalogCard, 0, len(records)-1)
	skipped := 0
	seen := make(map[string]bool)

	for i, record := range records[1:] { // Skip header
		if len(record) < 19 {
			log.Printf("Warning: Skipping row %d - insufficient columns", i+2)
			skipped++
			continue
		}

		rec := cardRecord{
			Name:       record[0],
			Power:      record[4],
			Toughness:  record[5],
			Types:      record[10],
			Subtypes:   record[11],
			Supertypes: record[12],
			ManaCost:   record[13],
			Rules:      record[14],
			Black:      parseBool(record[15]),
			Blue:       parseBool(record[16]),
			Green:      parseBool(record[17]),
			Red:        parseBool(record[18]),
		}
		if len(record) > 19 {
			rec.White = parseBool(record[19])
		}

		// The export lists every printing; the catalog wants one oracle
		// record per name.
		key := strings.ToLower(rec.Name)
		if seen[key] {
			skipped++
			continue
		}
		seen[key] = true

		cards = append(cards, catalogCard{
			Name:       rec.Name,
			ManaCost:   rec.ManaCost,
			TypeLine:   buildTypeLine(rec.Types, rec.Subtypes, rec.Supertypes),
			OracleText: rec.Rules,
			Power:      rec.Power,
			Toughness:  rec.Toughness,
			Keywords:   extractKeywords(rec.Rules),
			Colors:     colorCodes(rec),
		})
	}

	fmt.Printf("Parsed %d unique cards (%d skipped)\n", len(cards), skipped)

	out, err := json.MarshalIndent(cards, "", "  ")
	if err != nil {
		log.Fatalf("Failed to encode catalog: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}
	if err := os.WriteFile(outPath, out, 0o644); err != nil {
		log.Fatalf("Failed to write catalog: %v", err)
	}

	duration := time.Since(startTime)
	fmt.Println("\n=== Import Complete ===")
	fmt.Printf("✓ Wrote %d cards to %s\n", len(cards), outPath)
	fmt.Printf("Time taken: %s\n", duration)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Point cards.path at the output file in config/config.yaml")
	fmt.Println("  2. Start the server and check the 'card catalog loaded' log line")
}

func parseBool(s string) bool {
	return strings.ToLower(s) == "true" || s == "1"
}

func buildTypeLine(types, subtypes, supertypes string) string {
	parts := []string{}
	if supertypes != "" {
		parts = append(parts, supertypes)
	}
	if types != "" {
		parts = append(parts, types)
	}
	result := strings.Join(parts, " ")
	if subtypes != "" {
		result += " — " + subtypes
	}
	return result
}

func colorCodes(rec cardRecord) []string {
	var colors []string
	if rec.White {
		colors = append(colors, "W")
	}
	if rec.Blue {
		colors = append(colors, "U")
	}
	if rec.Black {
		colors = append(colors, "B")
	}
	if rec.Red {
		colors = append(colors, "R")
	}
	if rec.Green {
		colors = append(colors, "G")
	}
	return colors
}

var keywordList = []string{
	"Flying", "First strike", "Double strike", "Deathtouch", "Lifelink",
	"Trample", "Haste", "Vigilance", "Reach", "Menace", "Fear", "Defender",
	"Hexproof", "Indestructible", "Flash", "Infect", "Persist", "Goad",
}

// extractKeywords pulls the keyword list from the first rules line, which
// the export prints as a comma-separated run ("Flying, vigilance").
func extractKeywords(rules string) []string {
	firstLine, _, _ := strings.Cut(rules, "\n")
	var found []string
	for _, kw := range keywordList {
		for _, part := range strings.Split(firstLine, ",") {
			if strings.EqualFold(strings.TrimSpace(part), kw) {
				found = append(found, kw)
				break
			}
		}
	}
	return found
}

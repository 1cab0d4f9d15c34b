// Command validate provides a small CLI that validates game configuration TOML
// files (../configs by default, or the directory given as the first argument).
// It checks:
//   - TOML structure, required fields and unknown keys
//   - Alphabet size, blank and repeated symbols
//   - Resolve delay range
//   - Difficulties: unique names, pair counts the alphabet can supply, the default
//   - Message format verbs
//   - Dealability: every difficulty deals a full deck of distinct pairs
package main

import (
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/idanshlomo1/memorygame-app/game/engine"
)

// ValidationResult captures the outcome of validating a single file.
// If Valid is true, Errors contains informational messages; otherwise it
// accumulates the validation errors that were found.
type ValidationResult struct {
	File   string
	Valid  bool
	Errors []string
}

func (r *ValidationResult) fail(format string, args ...any) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// validateConfig loads and validates a single configuration TOML file.
// Unlike the engine's validation it reports every problem, not the first.
func validateConfig(filePath string) ValidationResult {
	result := ValidationResult{
		File:   filepath.Base(filePath),
		Valid:  true,
		Errors: []string{},
	}

	var config engine.GameConfig
	meta, err := toml.DecodeFile(filePath, &config)
	if err != nil {
		result.fail("Invalid TOML: %v", err)
		return result
	}

	for _, key := range meta.Undecoded() {
		result.fail("Unknown key: %s", key.String())
	}

	if config.Name == "" {
		result.fail("name is required")
	}
	if config.Description == "" {
		result.fail("description is required")
	}

	// Validate alphabet
	if len(config.Alphabet) == 0 {
		result.fail("Alphabet is empty")
	}
	if len(config.Alphabet) > engine.MaxAlphabetSize {
		result.fail("Alphabet has %d symbols, at most %d allowed", len(config.Alphabet), engine.MaxAlphabetSize)
	}
	seen := make(map[string]int, len(config.Alphabet))
	for i, symbol := range config.Alphabet {
		if strings.TrimSpace(symbol) == "" {
			result.fail("Blank symbol at position %d", i+1)
			continue
		}
		if prev, dup := seen[symbol]; dup {
			result.fail("Symbol %q repeated at positions %d and %d", symbol, prev+1, i+1)
			continue
		}
		seen[symbol] = i
	}

	if config.ResolveDelayMS < 0 || config.ResolveDelayMS > engine.MaxResolveDelay {
		result.fail("resolve_delay_ms must be between 0 and %d, got %d", engine.MaxResolveDelay, config.ResolveDelayMS)
	}

	// Validate difficulties
	if len(config.Difficulties) == 0 {
		result.fail("At least one difficulty is required")
	}
	names := make(map[string]bool, len(config.Difficulties))
	for i, d := range config.Difficulties {
		if d.Name == "" {
			result.fail("Difficulty %d has no name", i+1)
		}
		key := strings.ToLower(d.Name)
		if names[key] {
			result.fail("Difficulty '%s' defined twice", d.Name)
		}
		names[key] = true

		if d.Pairs < engine.MinPairs || d.Pairs > len(config.Alphabet) {
			result.fail("Difficulty '%s' asks for %d pairs but the alphabet supplies %d", d.Name, d.Pairs, len(config.Alphabet))
		}
	}
	if config.DefaultDifficulty != "" && !names[strings.ToLower(config.DefaultDifficulty)] {
		result.fail("default_difficulty '%s' is not a defined difficulty", config.DefaultDifficulty)
	}

	// Validate messages
	if config.Messages.Welcome == "" {
		result.fail("Missing required message: welcome")
	}
	if config.Messages.Victory == "" {
		result.fail("Missing required message: victory")
	} else if !strings.Contains(config.Messages.Victory, "%d") {
		result.fail("messages.victory must contain %%d for attempts")
	}
	if config.Messages.Match != "" && strings.Count(config.Messages.Match, "%d") != 2 {
		result.fail("messages.match must contain two %%d for found and total pairs")
	}

	// Dealability and agreement with the engine's own checks
	if result.Valid {
		dealResult := validateDeals(&config)
		if !dealResult.Valid {
			result.Valid = false
		}
		result.Errors = append(result.Errors, dealResult.Errors...)

		if _, err := engine.LoadGameConfig(filePath); err != nil {
			result.fail("Engine rejected config: %v", err)
		}
	}

	// Add informational data
	if result.Valid {
		result.Errors = append(result.Errors, fmt.Sprintf("✓ Name: %s", config.Name))
		result.Errors = append(result.Errors, fmt.Sprintf("✓ Symbols: %d", len(config.Alphabet)))
		result.Errors = append(result.Errors, fmt.Sprintf("✓ Difficulties: %s", describeDifficulties(&config)))
		result.Errors = append(result.Errors, fmt.Sprintf("✓ Mismatch delay: %dms", config.ResolveDelayMS))
	}

	return result
}

// validateDeals deals every difficulty once and checks the deck holds each
// chosen symbol exactly twice under unique card ids
func validateDeals(config *engine.GameConfig) ValidationResult {
	result := ValidationResult{
		Valid:  true,
		Errors: []string{},
	}

	rng := rand.New(rand.NewPCG(1, 2))
	for _, d := range config.Difficulties {
		deck, err := engine.GenerateDeck(config.Alphabet, d.Pairs, rng)
		if err != nil {
			result.fail("Difficulty '%s' cannot be dealt: %v", d.Name, err)
			continue
		}
		if len(deck) != d.Pairs*2 {
			result.fail("Difficulty '%s' dealt %d cards, expected %d", d.Name, len(deck), d.Pairs*2)
			continue
		}
		if down := engine.FaceDownIDs(deck); len(down) != len(deck) {
			result.fail("Difficulty '%s' dealt %d cards face-up", d.Name, len(deck)-len(down))
		}

		ids := make(map[int]bool, len(deck))
		counts := make(map[string]int, d.Pairs)
		for _, card := range deck {
			if ids[card.ID] {
				result.fail("Difficulty '%s' dealt card id %d twice", d.Name, card.ID)
			}
			ids[card.ID] = true
			counts[card.Content]++
		}
		for symbol, n := range counts {
			if n != 2 {
				result.fail("Difficulty '%s' dealt symbol %q %d times", d.Name, symbol, n)
			}
		}
	}

	if result.Valid {
		result.Errors = append(result.Errors, fmt.Sprintf("✓ Dealability: all %d difficulties deal complete pairs", len(config.Difficulties)))
	}
	return result
}

func describeDifficulties(config *engine.GameConfig) string {
	parts := make([]string, 0, len(config.Difficulties))
	for _, d := range config.Difficulties {
		label := fmt.Sprintf("%s=%d", d.Name, d.Pairs)
		if strings.EqualFold(d.Name, config.DefaultDifficulty) {
			label += "*"
		}
		parts = append(parts, label)
	}
	return strings.Join(parts, ", ")
}

// main scans the config directory for *.toml files and validates each one,
// printing a concise report and exiting with non-zero status if any are invalid.
func main() {
	configDir := "../configs"
	if len(os.Args) > 1 {
		configDir = os.Args[1]
	}

	files, err := filepath.Glob(filepath.Join(configDir, "*.toml"))
	if err != nil {
		fmt.Printf("Error finding config files: %v\n", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Printf("No configuration files found in %s\n", configDir)
		os.Exit(1)
	}

	allValid := true
	for _, file := range files {
		result := validateConfig(file)

		fmt.Printf("\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Println("✅ VALID")
			for _, info := range result.Errors {
				fmt.Println("  " + info)
			}
		} else {
			fmt.Println("❌ INVALID")
			allValid = false
			for _, err := range result.Errors {
				if !strings.HasPrefix(err, "✓") {
					fmt.Println("  ❌ " + err)
				}
			}
		}
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Println("✅ All configurations are valid!")
	} else {
		fmt.Println("❌ Some configurations have errors")
		os.Exit(1)
	}
}

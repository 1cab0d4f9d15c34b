package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// ValidateGameConfig validates a game configuration for correctness and playability
func ValidateGameConfig(config *GameConfig) error {
	if config == nil {
		return fmt.Errorf("config validation: config is nil")
	}

	// Validate required fields
	if config.Name == "" {
		return fmt.Errorf("config validation: name is required")
	}
	if config.Description == "" {
		return fmt.Errorf("config validation: description is required")
	}

	// Validate alphabet
	if len(config.Alphabet) == 0 {
		return fmt.Errorf("config validation: alphabet must contain at least one symbol")
	}
	if len(config.Alphabet) > MaxAlphabetSize {
		return fmt.Errorf("config validation: alphabet may hold at most %d symbols, got %d", MaxAlphabetSize, len(config.Alphabet))
	}
	seen := make(map[string]int, len(config.Alphabet))
	for i, symbol := range config.Alphabet {
		if strings.TrimSpace(symbol) == "" {
			return fmt.Errorf("config validation: alphabet symbol %d is blank", i+1)
		}
		if prev, dup := seen[symbol]; dup {
			return fmt.Errorf("config validation: alphabet symbol %q repeated at positions %d and %d", symbol, prev+1, i+1)
		}
		seen[symbol] = i
	}

	// Validate resolve delay
	if config.ResolveDelayMS < 0 || config.ResolveDelayMS > MaxResolveDelay {
		return fmt.Errorf("config validation: resolve_delay_ms must be between 0 and %d, got %d", MaxResolveDelay, config.ResolveDelayMS)
	}

	// Validate difficulties
	if len(config.Difficulties) == 0 {
		return fmt.Errorf("config validation: at least one difficulty is required")
	}
	names := make(map[string]bool, len(config.Difficulties))
	for _, d := range config.Difficulties {
		if d.Name == "" {
			return fmt.Errorf("config validation: difficulty name is required")
		}
		key := strings.ToLower(d.Name)
		if names[key] {
			return fmt.Errorf("config validation: difficulty '%s' defined twice", d.Name)
		}
		names[key] = true

		if d.Pairs < MinPairs || d.Pairs > len(config.Alphabet) {
			return fmt.Errorf("config validation: difficulty '%s': %w", d.Name,
				&ConfigurationError{PairCount: d.Pairs, AlphabetSize: len(config.Alphabet)})
		}
	}
	if config.DefaultDifficulty != "" && !names[strings.ToLower(config.DefaultDifficulty)] {
		return fmt.Errorf("config validation: default_difficulty '%s' is not a defined difficulty", config.DefaultDifficulty)
	}

	// Validate messages
	if config.Messages.Welcome == "" {
		return fmt.Errorf("config validation: messages.welcome is required")
	}
	if config.Messages.Victory == "" {
		return fmt.Errorf("config validation: messages.victory is required")
	}

	// Validate format strings
	if !strings.Contains(config.Messages.Victory, "%d") {
		return fmt.Errorf("config validation: messages.victory must contain %%d for attempts")
	}
	if config.Messages.Match != "" && strings.Count(config.Messages.Match, "%d") != 2 {
		return fmt.Errorf("config validation: messages.match must contain two %%d for found and total pairs")
	}

	return nil
}

// FindDifficulty looks a difficulty up by name (case-insensitive)
func (c *GameConfig) FindDifficulty(name string) (Difficulty, bool) {
	for _, d := range c.Difficulties {
		if strings.EqualFold(d.Name, name) {
			return d, true
		}
	}
	return Difficulty{}, false
}

// ResolveDifficulty returns the named difficulty, falling back to the
// configured default and then to the first difficulty when name is empty
func (c *GameConfig) ResolveDifficulty(name string) (Difficulty, error) {
	if name == "" {
		name = c.DefaultDifficulty
	}
	if name == "" {
		if len(c.Difficulties) == 0 {
			return Difficulty{}, fmt.Errorf("config '%s' defines no difficulties", c.Name)
		}
		return c.Difficulties[0], nil
	}
	d, ok := c.FindDifficulty(name)
	if !ok {
		return Difficulty{}, fmt.Errorf("unknown difficulty '%s' for config '%s'", name, c.Name)
	}
	return d, nil
}

// ResolveDelay returns the mismatch resolution delay as a duration
func (c *GameConfig) ResolveDelay() time.Duration {
	return time.Duration(c.ResolveDelayMS) * time.Millisecond
}

// LoadGameConfig loads a game configuration from a TOML file
func LoadGameConfig(filename string) (*GameConfig, error) {
	// Support CONFIG_DIR environment variable for alternative config directory
	configPath := filename
	if configDir := os.Getenv("CONFIG_DIR"); configDir != "" {
		if strings.HasPrefix(filename, "configs/") {
			configPath = filepath.Join(configDir, strings.TrimPrefix(filename, "configs/"))
		}
	}

	var config GameConfig
	if _, err := toml.DecodeFile(configPath, &config); err != nil {
		return nil, err
	}

	if err := ValidateGameConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// DefaultGameConfig returns the built-in animal deck with easy and hard levels
func DefaultGameConfig() *GameConfig {
	return &GameConfig{
		Name:              "classic",
		Description:       "Ten animal faces; easy deals 5 pairs, hard deals all 10",
		Alphabet:          []string{"🐶", "🐱", "🐭", "🐸", "🐰", "🦊", "🐻", "🐼", "🐨", "🐯"},
		ResolveDelayMS:    DefaultResolveDelay,
		DefaultDifficulty: DefaultDifficulty,
		Difficulties: []Difficulty{
			{Name: "easy", Pairs: 5},
			{Name: "hard", Pairs: 10},
		},
		Messages: Messages{
			Welcome:  "Find all the pairs!",
			Revealed: "Pick another card",
			Match:    "It's a match! %d/%d pairs found",
			Mismatch: "Not a match",
			Ignored:  "That card can't be flipped right now",
			Victory:  "🎉 Congratulations! You won in %d attempts! 🎉",
		},
	}
}

package engine

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidateGameConfig(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*GameConfig)
		wantErr string
	}{
		{"valid", func(c *GameConfig) {}, ""},
		{"missing name", func(c *GameConfig) { c.Name = "" }, "name is required"},
		{"missing description", func(c *GameConfig) { c.Description = "" }, "description is required"},
		{"empty alphabet", func(c *GameConfig) { c.Alphabet = nil }, "at least one symbol"},
		{"blank symbol", func(c *GameConfig) { c.Alphabet[2] = " " }, "is blank"},
		{"duplicate symbol", func(c *GameConfig) { c.Alphabet[3] = c.Alphabet[0] }, "repeated"},
		{"negative delay", func(c *GameConfig) { c.ResolveDelayMS = -1 }, "resolve_delay_ms"},
		{"huge delay", func(c *GameConfig) { c.ResolveDelayMS = MaxResolveDelay + 1 }, "resolve_delay_ms"},
		{"no difficulties", func(c *GameConfig) { c.Difficulties = nil }, "at least one difficulty"},
		{"duplicate difficulty", func(c *GameConfig) {
			c.Difficulties = append(c.Difficulties, Difficulty{Name: "EASY", Pairs: 3})
		}, "defined twice"},
		{"too many pairs", func(c *GameConfig) { c.Difficulties[1].Pairs = 11 }, "alphabet only has 10"},
		{"zero pairs", func(c *GameConfig) { c.Difficulties[0].Pairs = 0 }, "at least 1"},
		{"unknown default", func(c *GameConfig) { c.DefaultDifficulty = "medium" }, "default_difficulty"},
		{"missing welcome", func(c *GameConfig) { c.Messages.Welcome = "" }, "messages.welcome"},
		{"victory without count", func(c *GameConfig) { c.Messages.Victory = "You won" }, "messages.victory must contain"},
		{"match with one verb", func(c *GameConfig) { c.Messages.Match = "Pair %d" }, "messages.match"},
		{"match optional", func(c *GameConfig) { c.Messages.Match = "" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := createTestConfig()
			tt.modify(config)

			err := ValidateGameConfig(config)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Expected valid config, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}

	if err := ValidateGameConfig(nil); err == nil {
		t.Error("Expected error for nil config")
	}
}

func TestValidateGameConfigPairCountIsConfigurationError(t *testing.T) {
	config := createTestConfig()
	config.Difficulties[1].Pairs = 11

	err := ValidateGameConfig(config)
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Expected *ConfigurationError, got %v", err)
	}
	if cfgErr.PairCount != 11 || cfgErr.AlphabetSize != 10 {
		t.Errorf("Unexpected error fields: %+v", cfgErr)
	}
}

func TestResolveDifficulty(t *testing.T) {
	config := createTestConfig()

	d, err := config.ResolveDifficulty("")
	if err != nil || d.Name != "easy" {
		t.Errorf("Expected default easy, got %v (%v)", d, err)
	}

	d, err = config.ResolveDifficulty("HARD")
	if err != nil || d.Pairs != 10 {
		t.Errorf("Expected case-insensitive hard, got %v (%v)", d, err)
	}

	if _, err := config.ResolveDifficulty("nightmare"); err == nil {
		t.Error("Expected error for unknown difficulty")
	}

	config.DefaultDifficulty = ""
	d, err = config.ResolveDifficulty("")
	if err != nil || d.Name != "easy" {
		t.Errorf("Expected first difficulty without default, got %v (%v)", d, err)
	}
}

func TestDefaultGameConfig(t *testing.T) {
	config := DefaultGameConfig()
	if err := ValidateGameConfig(config); err != nil {
		t.Fatalf("Default config is invalid: %v", err)
	}
	if len(config.Alphabet) != 10 {
		t.Errorf("Expected 10 symbols, got %d", len(config.Alphabet))
	}
	easy, _ := config.FindDifficulty("easy")
	hard, _ := config.FindDifficulty("hard")
	if easy.Pairs != 5 || hard.Pairs != 10 {
		t.Errorf("Expected easy=5 hard=10, got %d/%d", easy.Pairs, hard.Pairs)
	}
	if config.ResolveDelay().Milliseconds() != 1000 {
		t.Errorf("Expected 1000ms delay, got %v", config.ResolveDelay())
	}
}

const testTOML = `
name = "letters"
description = "Latin capitals"
alphabet = ["A", "B", "C", "D"]
resolve_delay_ms = 250
default_difficulty = "small"

[[difficulties]]
name = "small"
pairs = 2

[[difficulties]]
name = "full"
pairs = 4

[messages]
welcome = "Go!"
victory = "Done in %d"
`

func TestLoadGameConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "letters.toml")
	if err := os.WriteFile(path, []byte(testTOML), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	config, err := LoadGameConfig(path)
	if err != nil {
		t.Fatalf("LoadGameConfig failed: %v", err)
	}
	if config.Name != "letters" || len(config.Alphabet) != 4 {
		t.Errorf("Unexpected config %+v", config)
	}
	if config.ResolveDelayMS != 250 {
		t.Errorf("Expected 250ms delay, got %d", config.ResolveDelayMS)
	}
	if len(config.Difficulties) != 2 || config.Difficulties[1].Pairs != 4 {
		t.Errorf("Unexpected difficulties %+v", config.Difficulties)
	}
}

func TestLoadGameConfigWithConfigDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "letters.toml"), []byte(testTOML), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	t.Setenv("CONFIG_DIR", dir)

	config, err := LoadGameConfig("configs/letters.toml")
	if err != nil {
		t.Fatalf("LoadGameConfig with CONFIG_DIR failed: %v", err)
	}
	if config.Name != "letters" {
		t.Errorf("Expected letters, got %s", config.Name)
	}
}

func TestLoadGameConfigErrors(t *testing.T) {
	if _, err := LoadGameConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("Expected error for a missing file")
	}

	dir := t.TempDir()
	broken := filepath.Join(dir, "broken.toml")
	os.WriteFile(broken, []byte("name = "), 0644)
	if _, err := LoadGameConfig(broken); err == nil {
		t.Error("Expected error for malformed TOML")
	}

	invalid := filepath.Join(dir, "invalid.toml")
	os.WriteFile(invalid, []byte(strings.Replace(testTOML, "pairs = 4", "pairs = 5", 1)), 0644)
	if _, err := LoadGameConfig(invalid); !errors.Is(err, ErrConfiguration) {
		t.Errorf("Expected configuration error, got %v", err)
	}
}

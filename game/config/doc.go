// Package config provides configuration management for the memory game.
//
// The config package handles:
//   - Loading game configurations from TOML files
//   - Configuration validation through the engine
//   - Default configuration management
//   - Configuration discovery and listing
//
// Configuration Format:
//
// Game configurations are stored as TOML files in the configs directory.
// Each configuration defines:
//   - The symbol alphabet cards are dealt from
//   - Named difficulties with their pair counts
//   - The delay before a mismatched pair turns back over
//   - Game messages for flips, matches and victory
//
// Usage:
//
//	manager, err := config.NewManager("configs")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// Load specific configuration
//	gameConfig, err := manager.LoadConfig("letters")
//
//	// Get default configuration (classic, else the first valid file,
//	// else the built-in animal deck)
//	defaultConfig := manager.GetDefault()
//
//	// List available configurations
//	configs, err := manager.ListConfigs()
package config

// Package engine provides the core game logic for the memory matching game.
//
// The engine package implements the game mechanics including:
//   - Deck generation from a symbol alphabet with an unbiased shuffle
//   - The flip state machine (dealt, one flipped, evaluating, won)
//   - Deferred, cancellable turn-back of mismatched pairs
//   - Game state management and persistence hooks
//   - Configuration loading and validation
//
// Core Types:
//
// The Engine interface defines the main contract for game operations,
// implemented by GameEngine. GameState holds the authoritative deck and
// counters, Snapshot is the read-only view for renderers, and GameConfig
// defines the alphabet, difficulties and messages loaded from TOML files.
//
// Usage:
//
//	gameEngine := engine.NewEngineWithDefaults()
//	defer gameEngine.Close()
//
//	hard, _ := gameEngine.GetConfig().FindDifficulty("hard")
//	if _, err := gameEngine.NewGame(hard); err != nil {
//		log.Fatal(err)
//	}
//
//	result := gameEngine.Flip(0)
//	snap := gameEngine.Snapshot()
//
// Game Rules:
//
// Cards are dealt face-down. A tap reveals a card; revealing a second card
// counts one attempt. Equal contents stay face-up as a match. Different
// contents stay visible until the resolve delay elapses and then turn back
// over; taps during that window are ignored. The game is won when every
// pair is matched. Dealing a new game cancels any outstanding turn-back.
package engine

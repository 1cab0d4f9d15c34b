// Package terminal is a local single-player client that drives a game
// engine directly, without the HTTP server.
//
// The table is drawn as a grid sized to the terminal width. Face-down cards
// show their id, face-up cards their symbol and matched cards are
// highlighted. Commands are read one per line:
//
//	<id>               flip the card with that id
//	new [difficulty]   deal again, optionally at another difficulty
//	new <pairs>        deal again with that many pairs
//	help               list commands
//	quit               leave
//
// A mismatched pair is redrawn face-down when the engine's deferred
// resolution fires, so the player sees it flip back without typing.
//
// Usage:
//
//	eng, _ := engine.NewEngine(cfg)
//	game := terminal.New(eng, os.Stdout)
//	err := game.Run(ctx, os.Stdin)
package terminal

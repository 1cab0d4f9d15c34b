package terminal

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/idanshlomo1/memorygame-app/game/engine"
)

// syncBuffer lets the resolve hook and the test read output safely
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func (s *syncBuffer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf.Reset()
}

func testConfig() *engine.GameConfig {
	return &engine.GameConfig{
		Name:              "test",
		Description:       "Terminal test deck",
		Alphabet:          []string{"A", "B", "C"},
		ResolveDelayMS:    500,
		DefaultDifficulty: "easy",
		Difficulties: []engine.Difficulty{
			{Name: "easy", Pairs: 2},
			{Name: "hard", Pairs: 3},
		},
		Messages: engine.Messages{
			Welcome: "Go!",
			Ignored: "Can't flip that",
			Victory: "Won in %d attempts",
		},
	}
}

func newTestGame(t *testing.T) (*Game, *engine.GameEngine, *engine.ManualScheduler, *syncBuffer) {
	t.Helper()
	sched := engine.NewManualScheduler()
	eng, err := engine.NewEngine(testConfig(), engine.WithScheduler(sched))
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	t.Cleanup(eng.Close)
	out := &syncBuffer{}
	return New(eng, out), eng, sched, out
}

// pairs groups card ids by content
func pairs(eng *engine.GameEngine) map[string][]int {
	byContent := make(map[string][]int)
	for _, card := range eng.GetState().Cards {
		byContent[card.Content] = append(byContent[card.Content], card.ID)
	}
	return byContent
}

func mismatchedIDs(eng *engine.GameEngine) (int, int) {
	p := pairs(eng)
	return p["A"][0], p["B"][0]
}

func TestNew_DisablesColorForNonTerminal(t *testing.T) {
	game, _, _, out := newTestGame(t)

	game.mu.Lock()
	game.draw(game.engine.Snapshot())
	game.mu.Unlock()

	if strings.Contains(out.String(), "\x1b[") {
		t.Errorf("Expected no escape codes, got %q", out.String())
	}
	if game.width != defaultWidth {
		t.Errorf("Expected default width %d, got %d", defaultWidth, game.width)
	}
}

func TestDraw_HidesFaceDownContent(t *testing.T) {
	game, eng, _, out := newTestGame(t)

	game.mu.Lock()
	game.draw(eng.Snapshot())
	game.mu.Unlock()

	text := out.String()
	if !strings.Contains(text, "Pairs: 0/2") || !strings.Contains(text, "Go!") {
		t.Errorf("Unexpected header:\n%s", text)
	}
	if strings.Contains(text, " A ") || strings.Contains(text, " B ") {
		t.Errorf("Face-down symbols leaked:\n%s", text)
	}
	for _, card := range eng.GetState().Cards {
		if !strings.Contains(text, strconv.Itoa(card.ID)) {
			t.Errorf("Expected card id %d on the table", card.ID)
		}
	}
}

func TestExecute_FlipAndMatch(t *testing.T) {
	game, eng, _, out := newTestGame(t)
	a := pairs(eng)["A"]

	if _, err := game.Execute(strconv.Itoa(a[0])); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !strings.Contains(out.String(), "A") {
		t.Errorf("Expected flipped symbol on the table:\n%s", out.String())
	}

	game.Execute(strconv.Itoa(a[1]))
	if got := eng.GetMatchedPairs(); got != 1 {
		t.Errorf("Expected 1 matched pair, got %d", got)
	}
}

func TestExecute_IgnoredTapShowsMessage(t *testing.T) {
	game, eng, _, out := newTestGame(t)
	id := eng.GetState().Cards[0].ID

	game.Execute(strconv.Itoa(id))
	out.Reset()
	game.Execute(strconv.Itoa(id))

	if !strings.Contains(out.String(), "Can't flip that") {
		t.Errorf("Expected ignored message, got:\n%s", out.String())
	}
	if eng.GetAttempts() != 0 {
		t.Errorf("Ignored tap should not count, attempts = %d", eng.GetAttempts())
	}
}

func TestExecute_RedrawsWhenMismatchResolves(t *testing.T) {
	game, eng, sched, out := newTestGame(t)
	first, second := mismatchedIDs(eng)

	game.Execute(strconv.Itoa(first))
	game.Execute(strconv.Itoa(second))
	if !eng.HasPendingResolution() {
		t.Fatal("Expected a pending mismatch")
	}

	out.Reset()
	if fired := sched.FireAll(); fired != 1 {
		t.Fatalf("Expected one timer to fire, got %d", fired)
	}

	text := out.String()
	if !strings.Contains(text, "Attempts: 1") {
		t.Errorf("Expected redraw after resolution, got:\n%s", text)
	}
	if strings.Contains(text, " A ") || strings.Contains(text, " B ") {
		t.Errorf("Resolved cards should be face-down again:\n%s", text)
	}
}

func TestExecute_WinPrintsRating(t *testing.T) {
	game, eng, _, out := newTestGame(t)

	for _, ids := range pairs(eng) {
		game.Execute(strconv.Itoa(ids[0]))
		game.Execute(strconv.Itoa(ids[1]))
	}

	if !eng.IsWon() {
		t.Fatal("Expected game to be won")
	}
	if !strings.Contains(out.String(), "Rating: PERFECT") {
		t.Errorf("Expected perfect rating, got:\n%s", out.String())
	}
}

func TestExecute_NewGame(t *testing.T) {
	game, eng, sched, _ := newTestGame(t)
	first, second := mismatchedIDs(eng)
	game.Execute(strconv.Itoa(first))
	game.Execute(strconv.Itoa(second))

	if _, err := game.Execute("new hard"); err != nil {
		t.Fatalf("new hard failed: %v", err)
	}
	if got := eng.GetState().PairCount; got != 3 {
		t.Errorf("Expected 3 pairs after 'new hard', got %d", got)
	}
	if sched.Pending() != 0 {
		t.Error("Expected pending timer cancelled by new game")
	}

	if _, err := game.Execute("new"); err != nil {
		t.Fatalf("new failed: %v", err)
	}
	if got := eng.GetState().Difficulty; got != "hard" {
		t.Errorf("Expected difficulty kept as hard, got %s", got)
	}

	if _, err := game.Execute("new impossible"); err == nil {
		t.Error("Expected error for unknown difficulty")
	}

	if _, err := game.Execute("new 1"); err != nil {
		t.Fatalf("new 1 failed: %v", err)
	}
	if got := eng.GetState().PairCount; got != 1 {
		t.Errorf("Expected 1 pair after 'new 1', got %d", got)
	}

	if _, err := game.Execute("new 4"); !errors.Is(err, engine.ErrConfiguration) {
		t.Errorf("Expected configuration error for 4 pairs of 3 symbols, got %v", err)
	}
}

func TestExecute_Commands(t *testing.T) {
	game, _, _, out := newTestGame(t)

	quit, err := game.Execute("   ")
	if quit || err != nil {
		t.Errorf("Blank line should be a no-op, got %v %v", quit, err)
	}

	_, err = game.Execute("jump")
	if !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("Expected ErrUnknownCommand, got %v", err)
	}

	out.Reset()
	game.Execute("help")
	if !strings.Contains(out.String(), "easy (2 pairs), hard (3 pairs)") {
		t.Errorf("Expected difficulties in help:\n%s", out.String())
	}

	for _, cmd := range []string{"quit", "EXIT", "q"} {
		if quit, _ := game.Execute(cmd); !quit {
			t.Errorf("Expected %q to quit", cmd)
		}
	}
}

func TestRun_ProcessesInputUntilQuit(t *testing.T) {
	game, eng, _, out := newTestGame(t)
	a := pairs(eng)["A"]
	input := strings.NewReader(strconv.Itoa(a[0]) + "\n" + strconv.Itoa(a[1]) + "\nbogus\nquit\n99\n")

	if err := game.Run(context.Background(), input); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if eng.GetMatchedPairs() != 1 {
		t.Errorf("Expected 1 matched pair, got %d", eng.GetMatchedPairs())
	}
	if !strings.Contains(out.String(), "unknown command") {
		t.Errorf("Expected error for bogus command:\n%s", out.String())
	}
}

func TestRun_EOF(t *testing.T) {
	game, _, _, _ := newTestGame(t)

	if err := game.Run(context.Background(), strings.NewReader("")); err != nil {
		t.Errorf("Expected nil on EOF, got %v", err)
	}
}

func TestRun_ContextCancelled(t *testing.T) {
	game, _, _, _ := newTestGame(t)

	// A reader that never produces input
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := game.Run(ctx, pr); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

func TestColumns(t *testing.T) {
	game, _, _, _ := newTestGame(t)

	if got := game.columns(20); got != 5 {
		t.Errorf("columns(20) = %d, want 5", got)
	}

	game.width = 3 * cellWidth
	if got := game.columns(20); got != 3 {
		t.Errorf("narrow columns(20) = %d, want 3", got)
	}
}

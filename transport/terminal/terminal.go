package terminal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/idanshlomo1/memorygame-app/game/engine"
)

const (
	defaultWidth = 80
	cellWidth    = 6
)

var ErrUnknownCommand = errors.New("unknown command")

// Game renders an engine to a writer and plays it from line input
type Game struct {
	engine *engine.GameEngine
	out    io.Writer
	width  int

	// mu serializes drawing between the input loop and the resolve hook
	mu sync.Mutex

	hidden  *color.Color
	flipped *color.Color
	matched *color.Color
	notice  *color.Color
	alert   *color.Color
}

// New creates a terminal client for the engine. Colors are disabled when
// out is not a terminal.
func New(eng *engine.GameEngine, out io.Writer) *Game {
	g := &Game{
		engine:  eng,
		out:     out,
		width:   defaultWidth,
		hidden:  color.New(color.FgHiBlack),
		flipped: color.New(color.FgHiYellow, color.Bold),
		matched: color.New(color.FgGreen),
		notice:  color.New(color.FgCyan),
		alert:   color.New(color.FgRed),
	}

	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
			g.width = w
		}
	} else {
		for _, c := range []*color.Color{g.hidden, g.flipped, g.matched, g.notice, g.alert} {
			c.DisableColor()
		}
	}

	eng.OnResolve(func(snap *engine.Snapshot) {
		g.mu.Lock()
		defer g.mu.Unlock()
		g.draw(snap)
	})
	return g
}

// Run draws the table and processes commands until quit, EOF or ctx ends
func (g *Game) Run(ctx context.Context, in io.Reader) error {
	defer g.engine.OnResolve(nil)

	g.mu.Lock()
	g.draw(g.engine.Snapshot())
	g.mu.Unlock()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			return err
		case line := <-lines:
			quit, err := g.Execute(line)
			if err != nil {
				g.mu.Lock()
				g.alert.Fprintf(g.out, "%v\n", err)
				g.mu.Unlock()
			}
			if quit {
				return nil
			}
		}
	}
}

// Execute applies one command line and redraws. It reports true on quit.
func (g *Game) Execute(line string) (bool, error) {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return false, nil
	}

	switch fields[0] {
	case "quit", "exit", "q":
		return true, nil
	case "help", "?":
		g.mu.Lock()
		g.printHelp()
		g.mu.Unlock()
		return false, nil
	case "new", "n":
		difficulty := ""
		if len(fields) > 1 {
			difficulty = fields[1]
		}
		return false, g.newGame(difficulty)
	}

	cardID, err := strconv.Atoi(fields[0])
	if err != nil {
		return false, fmt.Errorf("%w: %q (type help)", ErrUnknownCommand, fields[0])
	}
	g.flip(cardID)
	return false, nil
}

// newGame deals again. An empty name keeps the pair count, a number picks
// an ad-hoc pair count and anything else names a difficulty.
func (g *Game) newGame(name string) error {
	var err error
	if name == "" {
		_, err = g.engine.NewGameWithPairs(g.engine.GetState().PairCount)
	} else if pairs, convErr := strconv.Atoi(name); convErr == nil {
		_, err = g.engine.NewGameWithPairs(pairs)
	} else {
		var difficulty engine.Difficulty
		if difficulty, err = g.engine.GetConfig().ResolveDifficulty(name); err == nil {
			_, err = g.engine.NewGame(difficulty)
		}
	}
	if err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.draw(g.engine.Snapshot())
	return nil
}

func (g *Game) flip(cardID int) {
	result := g.engine.Flip(cardID)
	snap := g.engine.Snapshot()

	g.mu.Lock()
	defer g.mu.Unlock()
	g.draw(snap)
	if result.Outcome == engine.OutcomeIgnored {
		if msg := g.engine.GetConfig().Messages.Ignored; msg != "" {
			g.alert.Fprintln(g.out, msg)
		}
		return
	}
	if result.Won {
		g.notice.Fprintf(g.out, "Rating: %s\n", engine.RateAttempts(snap.PairCount, snap.Attempts))
		fmt.Fprintln(g.out, "Type 'new' to play again or 'quit' to leave.")
	}
}

// columns picks a near-square grid that still fits the width
func (g *Game) columns(n int) int {
	if n <= 0 {
		return 1
	}
	cols := int(math.Ceil(math.Sqrt(float64(n))))
	if fit := g.width / cellWidth; fit > 0 && cols > fit {
		cols = fit
	}
	return cols
}

func (g *Game) cell(card engine.CardView) string {
	switch {
	case card.IsMatched:
		return g.matched.Sprintf("%*s", cellWidth-1, card.Content)
	case card.IsFlipped:
		return g.flipped.Sprintf("%*s", cellWidth-1, card.Content)
	default:
		return g.hidden.Sprintf("%*d", cellWidth-1, card.ID)
	}
}

// draw renders the table; callers hold mu
func (g *Game) draw(snap *engine.Snapshot) {
	var b strings.Builder
	fmt.Fprintf(&b, "\nDifficulty: %s  Pairs: %d/%d  Attempts: %d\n\n",
		snap.Difficulty, snap.MatchedPairs, snap.PairCount, snap.Attempts)

	cols := g.columns(len(snap.Cards))
	for i, card := range snap.Cards {
		b.WriteString(g.cell(card))
		b.WriteString(" ")
		if (i+1)%cols == 0 || i == len(snap.Cards)-1 {
			b.WriteString("\n")
		}
	}
	io.WriteString(g.out, b.String())

	if snap.Message != "" {
		g.notice.Fprintf(g.out, "\n%s\n", snap.Message)
	}
	if !snap.IsWon {
		fmt.Fprint(g.out, "> ")
	}
}

func (g *Game) printHelp() {
	names := make([]string, 0)
	for _, d := range g.engine.GetConfig().Difficulties {
		names = append(names, fmt.Sprintf("%s (%d pairs)", d.Name, d.Pairs))
	}
	fmt.Fprintf(g.out, `Commands:
  <id>               flip the card with that id
  new [difficulty]   deal again; difficulties: %s
  new <pairs>        deal again with that many pairs
  help               show this help
  quit               leave
> `, strings.Join(names, ", "))
}

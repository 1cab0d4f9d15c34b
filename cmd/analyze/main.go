// Command analyze plays simulated games against every configuration and
// difficulty in the configs directory and prints how many attempts two
// strategies need: a random player that remembers nothing, and a player with
// perfect memory of every card it has seen. The spread between them shows how
// much a deck rewards attention.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/idanshlomo1/memorygame-app/game/config"
	"github.com/idanshlomo1/memorygame-app/game/engine"
	"github.com/idanshlomo1/memorygame-app/logging"
)

var errStuck = errors.New("player made no progress")

// player picks the next card to tap and watches the table afterwards
type player interface {
	name() string
	choose(snap *engine.Snapshot) int
	observe(snap *engine.Snapshot)
}

// Summary aggregates the attempts of many simulated games
type Summary struct {
	Config     string
	Difficulty string
	Pairs      int
	Strategy   string
	Games      int
	Mean       float64
	StdDev     float64
	Min        int
	Max        int
	Perfect    int
}

func main() {
	cmd := &cli.Command{
		Name:  "analyze",
		Usage: "Simulate games per config and difficulty",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config-dir", Value: "configs", Usage: "Directory containing game configurations"},
			&cli.IntFlag{Name: "games", Value: 500, Usage: "Games per strategy and difficulty"},
			&cli.IntFlag{Name: "seed", Value: 1, Usage: "Random seed"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			configs, err := config.NewManager(cmd.String("config-dir"))
			if err != nil {
				return err
			}
			summaries, err := analyzeAll(configs, int(cmd.Int("games")), uint64(cmd.Int("seed")))
			if err != nil {
				return err
			}
			printSummaries(os.Stdout, summaries)
			return nil
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		logging.Fatal("%v", err)
	}
}

// analyzeAll simulates every config, difficulty and strategy
func analyzeAll(configs *config.Manager, games int, seed uint64) ([]Summary, error) {
	infos, err := configs.ListConfigs()
	if err != nil {
		return nil, err
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ConfigID < infos[j].ConfigID })

	var summaries []Summary
	for _, info := range infos {
		cfg, err := configs.LoadConfig(info.ConfigID)
		if err != nil {
			logging.Warn("Skipping %s: %v", info.ConfigID, err)
			continue
		}
		for _, d := range cfg.Difficulties {
			for _, strategy := range []string{"random", "memory"} {
				s, err := simulate(cfg, d, strategy, games, seed)
				if err != nil {
					return nil, fmt.Errorf("%s/%s/%s: %w", info.ConfigID, d.Name, strategy, err)
				}
				s.Config = info.ConfigID
				summaries = append(summaries, s)
			}
		}
	}
	return summaries, nil
}

func newPlayer(strategy string, rng *rand.Rand) (player, error) {
	switch strategy {
	case "random":
		return &randomPlayer{rng: rng}, nil
	case "memory":
		return &memoryPlayer{rng: rng, seen: make(map[int]string)}, nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", strategy)
	}
}

// simulate plays games of one difficulty with the named strategy
func simulate(cfg *engine.GameConfig, d engine.Difficulty, strategy string, games int, seed uint64) (Summary, error) {
	s := Summary{Difficulty: d.Name, Pairs: d.Pairs, Strategy: strategy, Games: games, Min: math.MaxInt}
	if games <= 0 {
		return s, fmt.Errorf("games must be positive, got %d", games)
	}

	attempts := make([]int, 0, games)
	for i := 0; i < games; i++ {
		rng := rand.New(rand.NewPCG(seed, uint64(i)))
		p, err := newPlayer(strategy, rng)
		if err != nil {
			return s, err
		}
		n, err := play(cfg, d, p, rng)
		if err != nil {
			return s, err
		}
		attempts = append(attempts, n)
	}

	total := 0
	for _, n := range attempts {
		total += n
		s.Min = min(s.Min, n)
		s.Max = max(s.Max, n)
		if n == d.Pairs {
			s.Perfect++
		}
	}
	s.Mean = float64(total) / float64(games)

	var variance float64
	for _, n := range attempts {
		diff := float64(n) - s.Mean
		variance += diff * diff
	}
	s.StdDev = math.Sqrt(variance / float64(games))
	return s, nil
}

// play runs one game to victory and returns the attempts it took. Mismatches
// are resolved at once; the manual scheduler never fires.
func play(cfg *engine.GameConfig, d engine.Difficulty, p player, rng *rand.Rand) (int, error) {
	eng, err := engine.NewEngine(cfg,
		engine.WithScheduler(engine.NewManualScheduler()),
		engine.WithRand(rng),
		engine.WithDifficulty(d),
	)
	if err != nil {
		return 0, err
	}
	defer eng.Close()

	limit := 100*d.Pairs*d.Pairs + 100
	for taps := 0; !eng.IsWon(); taps++ {
		if taps > limit {
			return 0, fmt.Errorf("%s: %w after %d taps", p.name(), errStuck, taps)
		}
		eng.ResolvePending()
		eng.Flip(p.choose(eng.Snapshot()))
		p.observe(eng.Snapshot())
	}
	return eng.GetAttempts(), nil
}

func faceDown(snap *engine.Snapshot) []int {
	ids := make([]int, 0, len(snap.Cards))
	for _, card := range snap.Cards {
		if !card.IsFlipped {
			ids = append(ids, card.ID)
		}
	}
	return ids
}

func pick(rng *rand.Rand, ids []int) int {
	if len(ids) == 0 {
		return -1
	}
	return ids[rng.IntN(len(ids))]
}

// randomPlayer taps any face-down card and forgets everything
type randomPlayer struct {
	rng *rand.Rand
}

func (p *randomPlayer) name() string { return "random" }

func (p *randomPlayer) choose(snap *engine.Snapshot) int {
	return pick(p.rng, faceDown(snap))
}

func (p *randomPlayer) observe(*engine.Snapshot) {}

// memoryPlayer remembers the symbol of every unmatched card it has seen
type memoryPlayer struct {
	rng  *rand.Rand
	seen map[int]string
}

func (p *memoryPlayer) name() string { return "memory" }

func (p *memoryPlayer) observe(snap *engine.Snapshot) {
	for _, card := range snap.Cards {
		switch {
		case card.IsMatched:
			delete(p.seen, card.ID)
		case card.IsFlipped:
			p.seen[card.ID] = card.Content
		}
	}
}

func (p *memoryPlayer) choose(snap *engine.Snapshot) int {
	down := faceDown(snap)

	if len(snap.FlippedIDs) == 1 {
		first := snap.FlippedIDs[0]
		if id, ok := p.partnerOf(down, first, p.seen[first]); ok {
			return id
		}
	} else if id, ok := p.knownPair(down); ok {
		return id
	}

	if unseen := p.unseen(down); len(unseen) > 0 {
		return pick(p.rng, unseen)
	}
	return pick(p.rng, down)
}

// partnerOf finds a face-down card remembered to hold content
func (p *memoryPlayer) partnerOf(down []int, exclude int, content string) (int, bool) {
	for _, id := range down {
		if id != exclude && content != "" && p.seen[id] == content {
			return id, true
		}
	}
	return 0, false
}

// knownPair returns one card of a pair whose both positions are remembered
func (p *memoryPlayer) knownPair(down []int) (int, bool) {
	first := make(map[string]int)
	for _, id := range down {
		content, ok := p.seen[id]
		if !ok {
			continue
		}
		if _, dup := first[content]; dup {
			return id, true
		}
		first[content] = id
	}
	return 0, false
}

func (p *memoryPlayer) unseen(down []int) []int {
	ids := make([]int, 0, len(down))
	for _, id := range down {
		if _, ok := p.seen[id]; !ok {
			ids = append(ids, id)
		}
	}
	return ids
}

func printSummaries(w io.Writer, summaries []Summary) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CONFIG\tDIFFICULTY\tPAIRS\tSTRATEGY\tMEAN\tSTDDEV\tMIN\tMAX\tPERFECT\tRATING")
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%.1f\t%.1f\t%d\t%d\t%.1f%%\t%s\n",
			s.Config, s.Difficulty, s.Pairs, s.Strategy, s.Mean, s.StdDev, s.Min, s.Max,
			100*float64(s.Perfect)/float64(s.Games),
			engine.RateAttempts(s.Pairs, int(math.Round(s.Mean))))
	}
	tw.Flush()
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yourusername/bsengine/internal/stateid"
	"github.com/yourusername/bsengine/pkg/engine"
	"github.com/yourusername/bsengine/pkg/external"
	"github.com/yourusername/bsengine/pkg/game"
)

type matrixOptions struct {
	width, height int
	fleetFile     string
	state         string
	misses        []string
	hits          []string
	show          string
	best          int
	asJSON        bool
}

func newMatrixCmd(a *app) *cobra.Command {
	var opts matrixOptions

	cmd := &cobra.Command{
		Use:   "matrix",
		Short: "Print the placement matrices for a board",
		Long: `Print the placement counts and probabilities for a board described by a
state id and/or lists of missed and hit squares.

Example:
  bsengine matrix --miss 4,4 --hit 2,3 --hit 2,4 --show prob --best 3`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := buildBoard(a, cmd, opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.asJSON {
				return writeJSON(out, s.View())
			}
			if err := printBoard(out, s, opts.show); err != nil {
				return err
			}
			if opts.best > 0 {
				printTargets(out, s, opts.best)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&opts.width, "width", 0, "board width (default from config)")
	flags.IntVar(&opts.height, "height", 0, "board height (default from config)")
	flags.StringVar(&opts.fleetFile, "fleet", "", "YAML file describing the board and fleet")
	flags.StringVar(&opts.state, "state", "", "state id to start from")
	flags.StringArrayVar(&opts.misses, "miss", nil, "missed square X,Y (repeatable)")
	flags.StringArrayVar(&opts.hits, "hit", nil, "hit square X,Y (repeatable)")
	flags.StringVar(&opts.show, "show", "all", "matrix to print: states, counts, prob or all")
	flags.IntVar(&opts.best, "best", 0, "also list the N best squares to fire at")
	flags.BoolVar(&opts.asJSON, "json", false, "print the full view as JSON")
	return cmd
}

// buildBoard creates a private session and applies the requested squares.
func buildBoard(a *app, cmd *cobra.Command, opts matrixOptions) (*game.Session, error) {
	spec := a.cfg.Game
	if opts.fleetFile != "" {
		f, err := os.Open(opts.fleetFile)
		if err != nil {
			return nil, err
		}
		spec, err = game.LoadFleetSpec(f)
		f.Close()
		if err != nil {
			return nil, err
		}
	}

	var states [][]engine.SquareState
	if opts.state != "" {
		var err error
		states, err = stateid.StatesFromID(opts.state)
		if err != nil {
			return nil, err
		}
		spec.Width, spec.Height = len(states), len(states[0])
	}
	if cmd.Flags().Changed("width") {
		spec.Width = opts.width
	}
	if cmd.Flags().Changed("height") {
		spec.Height = opts.height
	}
	if states != nil && (len(states) != spec.Width || len(states[0]) != spec.Height) {
		return nil, fmt.Errorf("state id is %dx%d but the board is %dx%d",
			len(states), len(states[0]), spec.Width, spec.Height)
	}

	fleet, err := spec.Build()
	if err != nil {
		return nil, err
	}
	s, err := game.NewSession("matrix", spec.Width, spec.Height, fleet, a.logger)
	if err != nil {
		return nil, err
	}

	for x, col := range states {
		for y, state := range col {
			if state == engine.Sunk {
				return nil, fmt.Errorf("square %d,%d is sunk; replay a record to restore sunk ships", x, y)
			}
			if err := s.SetState(x, y, state); err != nil {
				return nil, err
			}
		}
	}
	apply := func(list []string, state engine.SquareState) error {
		for _, text := range list {
			sq, err := engine.ParseSquare(text)
			if err != nil {
				return err
			}
			if err := s.SetState(sq.X, sq.Y, state); err != nil {
				return fmt.Errorf("%s %s: %w", state, text, err)
			}
		}
		return nil
	}
	if err := apply(opts.misses, engine.Miss); err != nil {
		return nil, err
	}
	if err := apply(opts.hits, engine.Hit); err != nil {
		return nil, err
	}
	return s, nil
}

func printBoard(out io.Writer, s *game.Session, show string) error {
	view := s.View()
	sections := []struct {
		name string
		text func() string
	}{
		{"states", func() string { return external.RenderStates(view.States) }},
		{"counts", func() string { return external.RenderCounts(view.Counts) }},
		{"prob", func() string { return external.RenderProbability(view.Probability, view.States) }},
	}

	show = strings.ToLower(show)
	if show == "probability" {
		show = "prob"
	}
	printed := false
	for _, sec := range sections {
		if show != "all" && show != sec.name {
			continue
		}
		if show == "all" {
			fmt.Fprintf(out, "%s:\n", sec.name)
		}
		fmt.Fprint(out, sec.text())
		if show == "all" {
			fmt.Fprintln(out)
		}
		printed = true
	}
	if !printed {
		return fmt.Errorf("unknown matrix %q", show)
	}
	fmt.Fprintf(out, "state %s\n", view.StateID)
	return nil
}

func printTargets(out io.Writer, s *game.Session, n int) {
	for i, t := range s.Targets(n, engine.RankByProbability) {
		fmt.Fprintf(out, "%d. %d,%d %5.1f%% (%d placements)\n",
			i+1, t.Square.X, t.Square.Y, t.Probability*100, t.Count)
	}
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

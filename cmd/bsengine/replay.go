package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/yourusername/bsengine/pkg/game"
	"github.com/yourusername/bsengine/pkg/record"
)

func newReplayCmd(a *app) *cobra.Command {
	var (
		show   string
		best   int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "replay FILE",
		Short: "Replay a game record and print the resulting board",
		Long: `Replay a game record and print the resulting board. Use "-" to read the
record from standard input. A record carrying a State tag must replay to
exactly that board.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}

			rec, err := record.Import(r)
			if err != nil {
				return err
			}
			s, err := game.Replay("replay", rec, a.logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, s.View())
			}
			if rec.Event != "" {
				fmt.Fprintf(out, "%s\n", rec.Event)
			}
			fmt.Fprintf(out, "%d actions replayed\n\n", len(rec.Actions))
			if err := printBoard(out, s, show); err != nil {
				return err
			}
			if best > 0 {
				printTargets(out, s, best)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&show, "show", "all", "matrix to print: states, counts, prob or all")
	flags.IntVar(&best, "best", 0, "also list the N best squares to fire at")
	flags.BoolVar(&asJSON, "json", false, "print the full view as JSON")
	return cmd
}

package main

import (
	"bufio"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yourusername/bsengine/pkg/external"
)

func newPlayCmd(a *app) *cobra.Command {
	var noPrompt bool

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play a session interactively on the terminal",
		Long: `Start a session with the configured board and fleet and read line
protocol commands from standard input. Type 'help' for the command list.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			in := external.NewInterpreter(nil, a.cfg.Game)

			resp, _ := in.Execute(cmd.Context(), "new")
			fmt.Fprint(out, resp)

			scanner := bufio.NewScanner(cmd.InOrStdin())
			for {
				if !noPrompt {
					fmt.Fprint(out, "> ")
				}
				if !scanner.Scan() {
					return scanner.Err()
				}
				if scanner.Text() == "" {
					continue
				}
				resp, quit := in.Execute(cmd.Context(), scanner.Text())
				fmt.Fprint(out, resp)
				if quit {
					return nil
				}
			}
		},
	}
	cmd.Flags().BoolVar(&noPrompt, "no-prompt", false, "do not print a prompt before each command")
	return cmd
}

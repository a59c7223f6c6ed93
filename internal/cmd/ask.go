package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"lookout/internal/ipc"
)

var askCmd = &cobra.Command{
	Use:   "ask <question...>",
	Short: "Ask a typed question",
	Long: `Hand a question to the daemon as if it had been spoken, e.g.

  lookout-ctl ask tell me when you see a red car`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return send(cmd.Context(), cmd.OutOrStdout(), ipc.ControlMessage{
			Cmd:  ipc.CmdAsk,
			Text: strings.Join(args, " "),
		})
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
}

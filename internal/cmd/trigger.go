package cmd

import (
	"github.com/spf13/cobra"

	"lookout/internal/ipc"
)

var triggerCmd = &cobra.Command{
	Use:   "trigger",
	Short: "Listen on the microphone for one question",
	Long: `Make the daemon play its cue, record one spoken question, and answer it.
Bind this to a hotkey.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return send(cmd.Context(), cmd.OutOrStdout(), ipc.ControlMessage{Cmd: ipc.CmdTrigger})
	},
}

func init() {
	rootCmd.AddCommand(triggerCmd)
}

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"lookout/internal/ipc"
)

var (
	socketPath string
	timeout    time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "lookout-ctl",
	Short: "Control a running lookout daemon",
	Long: `lookout-ctl talks to lookout-daemon over its unix socket. It can make the
daemon listen for a spoken question or hand it a typed one.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&socketPath, "socket", "s", socketDefault(), "Daemon socket path")
	rootCmd.PersistentFlags().DurationVarP(&timeout, "timeout", "t", 15*time.Minute, "Give up waiting for the answer after this long")
}

func socketDefault() string {
	if p := os.Getenv("LOOKOUT_SOCKET"); p != "" {
		return p
	}
	return ipc.DefaultSocketPath
}

// send delivers msg and prints the daemon's answer.
func send(ctx context.Context, out io.Writer, msg ipc.ControlMessage) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := ipc.Send(ctx, socketPath, msg)
	if err != nil {
		return fmt.Errorf("lookout-daemon not reachable: %w", err)
	}

	if resp.Strategy != "" {
		fmt.Fprintf(out, "mode:   %s\n", resp.Strategy)
	}
	if resp.Text != "" {
		fmt.Fprintf(out, "answer: %s\n", resp.Text)
	}
	if !resp.OK {
		return fmt.Errorf("daemon: %s", resp.Error)
	}
	return nil
}

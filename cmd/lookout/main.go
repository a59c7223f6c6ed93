package main

import (
	"bufio"
	"context"
	"fmt"
	log "log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	cli "github.com/spf13/pflag"

	"lookout/internal/app"
	"lookout/internal/config"
	"lookout/internal/tts"
)

func main() {
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	logLevel := cli.StringP("log", "l", "info", "Log level")
	camera := cli.StringP("camera", "c", "", "V4L2 device to capture from, e.g. /dev/video0")
	image := cli.StringP("image", "i", "", "Still image to look at when there is no camera")
	proxyAddr := cli.StringP("proxy", "p", "", "Socks Proxy Address")
	speak := cli.BoolP("speak", "s", false, "Speak answers with espeak")
	cli.Parse()

	config.SetupLogger(os.Stderr, *logLevel)

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Error("Failed to load config", "err", err)
		os.Exit(1)
	}
	if *camera != "" {
		cfg.Camera = *camera
	}
	if *image != "" {
		cfg.Image = *image
	}
	if *proxyAddr != "" {
		cfg.Proxy = *proxyAddr
	}
	if err := cfg.Validate(); err != nil {
		log.Error("Bad config", "err", err)
		os.Exit(1)
	}

	feed := app.FeedFile
	if cfg.Camera != "" {
		feed = app.FeedCamera
	}

	var speaker tts.Speaker = tts.Log{}
	if *speak {
		speaker = tts.NewEspeak(cfg.Language, 0)
	}

	a, err := app.New(cfg, feed, speaker)
	if err != nil {
		log.Error("Failed to start", "err", err)
		os.Exit(1)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := a.Run(ctx); err != nil {
			log.Error("Background work failed", "err", err)
			stop()
		}
	}()

	repl(ctx, a)
}

// repl reads one utterance per line until "exit", EOF or a signal.
func repl(ctx context.Context, a *app.App) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	for {
		fmt.Print("Enter command: ")

		var line string
		select {
		case <-ctx.Done():
			fmt.Println()
			return
		case l, ok := <-lines:
			if !ok {
				fmt.Println()
				return
			}
			line = strings.TrimSpace(l)
		}

		if line == "exit" {
			return
		}
		if line == "" {
			continue
		}

		r := a.Executor.Handle(ctx, line)
		if ctx.Err() != nil {
			return
		}
		fmt.Printf("mode:   %s\n", r.Strategy)
		fmt.Printf("answer: %s\n", r.Text)
	}
}

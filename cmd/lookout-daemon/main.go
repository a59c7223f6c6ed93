package main

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	cli "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"lookout/internal/app"
	"lookout/internal/assist"
	"lookout/internal/audio"
	"lookout/internal/bus"
	"lookout/internal/config"
	"lookout/internal/ipc"
	"lookout/internal/notify"
	"lookout/internal/tts"
	"lookout/pkg/stt"
)

func main() {
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	logLevel := cli.StringP("log", "l", "info", "Log level")
	proxyAddr := cli.StringP("proxy", "p", "", "Socks Proxy Address")
	busURL := cli.StringP("url", "u", "", "Url of the call bridge bus")
	camera := cli.StringP("camera", "c", "", "V4L2 device to capture from, e.g. /dev/video0")
	socket := cli.StringP("socket", "s", "", "Control socket path")
	noDuck := cli.Bool("no-duck", false, "Do not lower other audio while speaking")
	cli.Parse()

	config.SetupLogger(os.Stdout, *logLevel)

	log.Info("Booting up")

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Error("Failed to load config", "err", err)
		os.Exit(1)
	}
	if *proxyAddr != "" {
		cfg.Proxy = *proxyAddr
	}
	if *busURL != "" {
		cfg.BusURL = *busURL
	}
	if *camera != "" {
		cfg.Camera = *camera
	}
	if *socket != "" {
		cfg.Socket = *socket
	}
	if *noDuck {
		cfg.Duck = false
	}
	if err := cfg.Validate(); err != nil {
		log.Error("Bad config", "err", err)
		os.Exit(1)
	}

	rec := audio.NewRecorder(audio.DefaultRecorderConfig())
	if err := rec.Init(); err != nil {
		log.Error("Failed to init audio", "err", err)
		os.Exit(1)
	}
	defer rec.Close()

	log.Debug("Loaded recorder")

	sttOpt := stt.DefaultOptions()
	sttOpt.Language = cfg.Language
	whisper, err := stt.NewTranscriber(cfg.WhisperModel, sttOpt)
	if err != nil {
		log.Error("Failed to init whisper", "model", cfg.WhisperModel, "err", err)
		os.Exit(1)
	}
	defer whisper.Close()

	log.Debug("Loaded whisper")

	feed := app.FeedFile
	switch {
	case cfg.BusURL != "":
		feed = app.FeedBus
	case cfg.Camera != "":
		feed = app.FeedCamera
	}

	desktop := notify.NewDesktop("lookout")

	var client *bus.Client
	var voice tts.Speaker
	if feed == app.FeedBus {
		bcfg := bus.DefaultConfig()
		bcfg.URL = cfg.BusURL
		bcfg.Name = cfg.BusName
		client = bus.NewClient(bcfg)
		voice = &bus.Speaker{Client: client}
	} else {
		voice = localVoice(cfg)
	}

	a, err := app.New(cfg, feed, tts.Tee{voice, desktop})
	if err != nil {
		log.Error("Failed to assemble", "err", err)
		os.Exit(1)
	}
	defer a.Close()

	log.Info("Boot up - successful", "feed", feed, "socket", cfg.Socket)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d := &daemon{
		app:     a,
		rec:     rec,
		whisper: whisper,
		cue:     notify.NewCue(cfg.Cue),
		desktop: desktop,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.Run(ctx)
	})

	g.Go(func() error {
		return ipc.Serve(ctx, cfg.Socket, d.control)
	})

	if client != nil {
		sess := bus.NewSession(a.Slot, 4)
		sess.Transcriber = whisper
		sess.OnFrame = a.Sample
		sess.Greet = func(ctx context.Context) {
			if err := a.Executor.Speak(ctx, assist.Greeting); err != nil {
				log.Warn("Failed to greet", "err", err)
			}
		}

		g.Go(func() error {
			defer sess.Wait()
			return client.Run(ctx, sess.Handle)
		})
		g.Go(func() error {
			return a.Executor.Serve(ctx, sess.Utterances())
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Daemon stopped", "err", err)
		os.Exit(1)
	}

	log.Info("Bye")
}

// localVoice speaks through espeak, ducking other audio if enabled.
func localVoice(cfg config.Config) tts.Speaker {
	es := tts.NewEspeak(cfg.Language, 0)
	if !cfg.Duck {
		return es
	}
	return &tts.Ducked{
		Speaker: es,
		Ducker:  audio.NewDucker(audio.NewPactl(), []string{"espeak", "lookout"}, 15),
		Factor:  0.3,
		Fade:    300 * time.Millisecond,
	}
}

type daemon struct {
	app     *app.App
	rec     *audio.Recorder
	whisper *stt.Transcriber
	cue     *notify.Cue
	desktop *notify.Desktop
}

func (d *daemon) control(ctx context.Context, msg ipc.ControlMessage) ipc.Response {
	var (
		text string
		err  error
	)

	switch msg.Cmd {
	case ipc.CmdTrigger:
		text, err = d.listen(ctx)
	case ipc.CmdAsk:
		text = msg.Text
	default:
		log.Warn("Unknown command", "cmd", msg.Cmd)
		return ipc.Response{Error: "unknown command: " + msg.Cmd}
	}
	if err != nil {
		return ipc.Response{Error: err.Error()}
	}

	r := d.app.Executor.Handle(ctx, text)
	resp := ipc.Response{OK: r.Err == nil, Strategy: string(r.Strategy), Text: r.Text}
	if r.Err != nil {
		resp.Error = r.Err.Error()
	}
	return resp
}

// listen records and transcribes one spoken question.
func (d *daemon) listen(ctx context.Context) (string, error) {
	if err := d.cue.Play(ctx); err != nil {
		log.Warn("Failed to play cue", "err", err)
	}
	if err := d.desktop.Notify(ctx, "lookout", "Listening..."); err != nil {
		log.Debug("Failed to notify", "err", err)
	}

	log.Info("Starting listening")

	pcm, err := d.rec.RecordAuto(ctx)
	if err != nil {
		return "", fmt.Errorf("record: %w", err)
	}

	log.Info("Recorded", "samples", len(pcm))

	tctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	text, err := d.whisper.Transcribe(tctx, pcm)
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}

	log.Info("Transcribed", "text", text)
	return text, nil
}

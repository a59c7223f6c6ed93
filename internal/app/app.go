// Package app wires the oracle, frame sources, memory and the executor
// together for the lookout binaries.
package app

import (
	"context"
	"fmt"
	log "log/slog"
	"strconv"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"lookout/internal/assist"
	"lookout/internal/config"
	"lookout/internal/frame"
	"lookout/internal/framestore"
	"lookout/internal/nlu"
	"lookout/internal/oracle"
	"lookout/internal/proxy"
	"lookout/internal/tts"
	"lookout/internal/watch"
)

// Feed says where frames come from.
type Feed int

const (
	// FeedFile reads a still image on every request.
	FeedFile Feed = iota
	// FeedCamera captures continuously from a local device.
	FeedCamera
	// FeedBus receives frames from the call bridge on demand.
	FeedBus
)

func (f Feed) String() string {
	switch f {
	case FeedCamera:
		return "camera"
	case FeedBus:
		return "bus"
	default:
		return "file"
	}
}

type App struct {
	Config    config.Config
	Feed      Feed
	Oracle    oracle.Oracle
	Slot      *frame.Slot
	Source    frame.Source
	Store     *framestore.Store
	Persister *framestore.Persister
	Executor  *assist.Executor

	camera  *frame.Camera
	counter atomic.Uint64
}

// New builds every long-lived component. Nothing runs until Run.
func New(cfg config.Config, feed Feed, speaker tts.Speaker) (*App, error) {
	httpClient, err := proxy.NewClient(cfg.Proxy, 2*cfg.OracleTimeout)
	if err != nil {
		return nil, fmt.Errorf("http client: %w", err)
	}

	ocfg := oracle.DefaultConfig()
	ocfg.APIKey = cfg.APIKey
	ocfg.BaseURL = cfg.BaseURL
	ocfg.Model = cfg.Model
	ocfg.HTTPClient = httpClient
	ocfg.Timeout = cfg.OracleTimeout
	o := oracle.NewOpenAI(ocfg)

	store, err := openStore(cfg, o)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:    cfg,
		Feed:      feed,
		Oracle:    o,
		Store:     store,
		Persister: framestore.NewPersister(store, cfg.PersistQueue, cfg.PersistWorkers),
	}

	var newPacer func() watch.Pacer
	switch feed {
	case FeedCamera:
		a.Slot = frame.NewSlot()
		a.Source = a.Slot
		a.camera = &frame.Camera{
			Device:   cfg.Camera,
			Width:    cfg.CameraWidth,
			Height:   cfg.CameraHeight,
			FPS:      cfg.CameraFPS,
			Every:    cfg.FrameEvery,
			OnSample: a.persist,
		}
		newPacer = func() watch.Pacer { return watch.NewFramePacer(a.Slot, cfg.FrameEvery) }
	case FeedBus:
		a.Slot = frame.NewSlot()
		a.Source = a.Slot
		newPacer = func() watch.Pacer { return watch.NewIntervalPacer(a.Slot, cfg.PollInterval) }
	default:
		a.Source = frame.NewFileSource(cfg.Image)
		newPacer = func() watch.Pacer { return watch.NewIntervalPacer(a.Source, cfg.PollInterval) }
	}

	watcher := watch.NewWatcher(oracle.NewJudge(o), newPacer, watch.Config{
		MaxWait:     cfg.MaxWait,
		MaxFailures: cfg.MaxFailures,
	})

	a.Executor = assist.NewExecutor(nlu.NewClassifier(o), &assist.Handlers{
		Oracle:    o,
		Source:    a.Source,
		Extractor: nlu.NewExtractor(o),
		Recaller:  store,
		Watcher:   watcher,
	}, speaker)

	log.Info("Assembled", "feed", feed, "model", cfg.Model, "db", cfg.DB, "s3", cfg.S3.Bucket != "")
	return a, nil
}

func openStore(cfg config.Config, o oracle.Oracle) (*framestore.Store, error) {
	index, err := framestore.OpenIndex(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("open frame index: %w", err)
	}

	var blobs framestore.Blobs
	if cfg.S3.Bucket != "" {
		blobs = framestore.NewS3Blobs(cfg.S3)
	} else {
		dir, err := framestore.NewDirBlobs(cfg.FramesDir)
		if err != nil {
			index.Close()
			return nil, fmt.Errorf("open frames dir: %w", err)
		}
		blobs = dir
	}

	return framestore.New(index, blobs, framestore.NewOracleCaptioner(o)), nil
}

func (a *App) persist(f *frame.Frame, counter int) {
	a.Persister.Enqueue(f, strconv.Itoa(counter))
}

// Sample counts frames that arrive from the bus and persists every Nth one,
// the same way the camera does.
func (a *App) Sample(f *frame.Frame) {
	n := a.counter.Add(1) - 1
	if n%uint64(max(1, a.Config.FrameEvery)) == 0 {
		a.persist(f, int(n))
	}
}

// Run drives the background work (capture and persistence) until ctx is done.
// A failed capture is logged and leaves the slot closed, so later turns answer
// that no frame is available instead of taking the process down.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.Persister.Run(ctx)
	})

	if a.camera != nil {
		g.Go(func() error {
			defer a.Persister.Close()
			if err := a.camera.Run(ctx, a.Slot); err != nil && ctx.Err() == nil {
				log.Error("Camera stopped", "device", a.camera.Device, "err", err)
			}
			return nil
		})
	}

	err := g.Wait()
	st := a.Persister.Stats()
	log.Info("Background work stopped", "saved", st.Saved, "failed", st.Failed, "dropped", st.Dropped)
	return err
}

func (a *App) Close() error {
	a.Persister.Close()
	if a.Slot != nil {
		a.Slot.Close()
	}
	return a.Store.Close()
}

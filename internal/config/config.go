package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"lookout/internal/framestore"
)

var ErrNoAPIKey = errors.New("OPENAI_API_KEY not set")

type Config struct {
	// oracle
	APIKey        string
	BaseURL       string
	Model         string
	Proxy         string // socks5 host:port, empty for direct
	OracleTimeout time.Duration

	// frames
	Camera       string // V4L2 device, empty to run without capture
	CameraWidth  int
	CameraHeight int
	CameraFPS    int
	Image        string // still image used when there is no camera
	FrameEvery   int

	// watching
	PollInterval time.Duration
	MaxWait      time.Duration
	MaxFailures  int

	// memory
	DB             string
	FramesDir      string
	S3             framestore.S3Config
	PersistQueue   int
	PersistWorkers int

	// daemon
	Socket       string
	BusURL       string
	BusName      string
	WhisperModel string
	Language     string
	Cue          string
	Duck         bool
}

func Default() Config {
	return Config{
		Model:          "gpt-4o-mini",
		OracleTimeout:  30 * time.Second,
		CameraWidth:    640,
		CameraHeight:   480,
		CameraFPS:      30,
		Image:          "latest.jpeg",
		FrameEvery:     30,
		PollInterval:   time.Second,
		MaxWait:        10 * time.Minute,
		MaxFailures:    3,
		DB:             "lookout.db",
		FramesDir:      "frames",
		PersistQueue:   16,
		PersistWorkers: 2,
		Socket:         "/tmp/lookout.sock",
		BusName:        "lookout",
		WhisperModel:   "third_party/whisper.cpp/models/ggml-base.en.bin",
		Language:       "en",
		Cue:            "beep.mp3",
		Duck:           true,
	}
}

// Load reads envFile (a missing file is fine) and then the environment on top
// of the defaults.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	c := Default()
	r := reader{}

	r.str(&c.APIKey, "OPENAI_API_KEY")
	r.str(&c.BaseURL, "OPENAI_BASE_URL")
	r.str(&c.Model, "LOOKOUT_MODEL")
	r.str(&c.Proxy, "LOOKOUT_PROXY")
	r.dur(&c.OracleTimeout, "LOOKOUT_ORACLE_TIMEOUT")

	r.str(&c.Camera, "LOOKOUT_CAMERA")
	r.int(&c.CameraWidth, "LOOKOUT_CAMERA_WIDTH")
	r.int(&c.CameraHeight, "LOOKOUT_CAMERA_HEIGHT")
	r.int(&c.CameraFPS, "LOOKOUT_CAMERA_FPS")
	r.str(&c.Image, "LOOKOUT_IMAGE")
	r.int(&c.FrameEvery, "LOOKOUT_FRAME_EVERY")

	r.dur(&c.PollInterval, "LOOKOUT_POLL_INTERVAL")
	r.dur(&c.MaxWait, "LOOKOUT_MAX_WAIT")
	r.int(&c.MaxFailures, "LOOKOUT_MAX_FAILURES")

	r.str(&c.DB, "LOOKOUT_DB")
	r.str(&c.FramesDir, "LOOKOUT_FRAMES_DIR")
	r.str(&c.S3.Endpoint, "S3_ENDPOINT")
	r.str(&c.S3.Region, "S3_REGION")
	r.str(&c.S3.Bucket, "S3_BUCKET")
	r.str(&c.S3.AccessKey, "S3_ACCESS_KEY")
	r.str(&c.S3.SecretKey, "S3_SECRET_KEY")
	r.str(&c.S3.Prefix, "S3_PREFIX")
	r.int(&c.PersistQueue, "LOOKOUT_PERSIST_QUEUE")
	r.int(&c.PersistWorkers, "LOOKOUT_PERSIST_WORKERS")

	r.str(&c.Socket, "LOOKOUT_SOCKET")
	r.str(&c.BusURL, "BUS_URL")
	r.str(&c.BusName, "BUS_NAME")
	r.str(&c.WhisperModel, "WHISPER_MODEL")
	r.str(&c.Language, "LOOKOUT_LANGUAGE")
	r.str(&c.Cue, "LOOKOUT_CUE")
	r.bool(&c.Duck, "LOOKOUT_DUCK")

	if err := errors.Join(r.errs...); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks what every binary talking to the oracle needs.
func (c Config) Validate() error {
	if c.APIKey == "" {
		return ErrNoAPIKey
	}
	if c.FrameEvery <= 0 {
		return fmt.Errorf("LOOKOUT_FRAME_EVERY must be positive, got %d", c.FrameEvery)
	}
	if c.S3.Bucket != "" && c.S3.Region == "" && c.S3.Endpoint == "" {
		return errors.New("S3_BUCKET needs S3_REGION or S3_ENDPOINT")
	}
	return nil
}

type reader struct {
	errs []error
}

func (r *reader) str(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func (r *reader) int(dst *int, key string) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = n
}

func (r *reader) dur(dst *time.Duration, key string) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = d
}

func (r *reader) bool(dst *bool, key string) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = b
}

package oracle

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"net/http"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/sethvargo/go-retry"

	"lookout/internal/frame"
)

type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client

	MaxTokens int64
	Timeout   time.Duration // per attempt
	Retries   uint64        // extra attempts after the first one
	Backoff   time.Duration
}

func DefaultConfig() Config {
	return Config{
		Model:     "gpt-4o-mini",
		MaxTokens: 1024,
		Timeout:   30 * time.Second,
		Retries:   1,
		Backoff:   500 * time.Millisecond,
	}
}

// OpenAI is an Oracle backed by the chat completions API. Images are sent
// inline as JPEG data URLs.
type OpenAI struct {
	client openai.Client
	cfg    Config
}

func NewOpenAI(cfg Config) *OpenAI {
	def := DefaultConfig()
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = def.Backoff
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		// retries are ours, see Ask
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	return &OpenAI{
		client: openai.NewClient(opts...),
		cfg:    cfg,
	}
}

func (o *OpenAI) params(prompt, system string, img *frame.Frame) openai.ChatCompletionNewParams {
	var user openai.ChatCompletionMessageParamUnion
	if img != nil {
		user = openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
			openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
				URL: img.DataURL(),
			}),
			openai.TextContentPart(prompt),
		})
	} else {
		user = openai.UserMessage(prompt)
	}

	return openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			user,
		},
		Model:               openai.ChatModel(o.cfg.Model),
		MaxCompletionTokens: openai.Int(o.cfg.MaxTokens),
	}
}

func (o *OpenAI) Ask(ctx context.Context, prompt, system string, img *frame.Frame) (string, error) {
	params := o.params(prompt, system, img)

	var (
		answer  string
		attempt int
	)

	b := retry.WithMaxRetries(o.cfg.Retries, retry.NewConstant(o.cfg.Backoff))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++

		actx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
		defer cancel()

		resp, err := o.client.Chat.Completions.New(actx, params)
		if err != nil {
			if ctx.Err() == nil && retryable(err) {
				log.Warn("Oracle call failed, retrying", "attempt", attempt, "err", err)
				return retry.RetryableError(err)
			}
			return err
		}

		if len(resp.Choices) == 0 {
			return retry.RetryableError(errors.New("no choices in response"))
		}

		answer = strings.TrimSpace(resp.Choices[0].Message.Content)
		if answer == "" {
			return retry.RetryableError(errors.New("empty message content"))
		}
		return nil
	})

	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: chat completion: %w", ErrUnavailable, err)
	}

	log.Debug("Oracle answered", "model", o.cfg.Model, "image", img != nil, "answer", answer)
	return answer, nil
}

// retryable reports whether a failed call is worth another attempt: rate
// limits, server errors, timeouts and network failures are; client errors
// such as a bad key or a malformed request are not.
func retryable(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests ||
			apiErr.StatusCode == http.StatusRequestTimeout ||
			apiErr.StatusCode >= http.StatusInternalServerError
	}
	return !errors.Is(err, context.Canceled)
}

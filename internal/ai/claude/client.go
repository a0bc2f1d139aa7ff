// Package claude implements the ai.Generator interface on top of the Anthropic Messages API.
package claude

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/spigell/jobfit/internal/ai"
	"github.com/spigell/jobfit/internal/logger"
	"github.com/spigell/jobfit/internal/utils"
)

const (
	Provider            = "claude"
	DefaultModel        = "claude-sonnet-4-0"
	DefaultMaxTokens    = 2048
	defaultMaxLogLength = 200
)

type Options struct {
	APIKey       string
	Model        string
	MaxTokens    int64
	MaxLogLength int
	// BaseURL and HTTPClient override the API endpoint, mostly for tests.
	BaseURL    string
	HTTPClient *http.Client
}

type Generator struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	logger    *zap.Logger
	maxLogLen int
}

var _ ai.Generator = (*Generator)(nil)

func NewGenerator(log *zap.Logger, opts Options) (*Generator, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, errors.New("anthropic api key is required")
	}

	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultModel
	}

	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	maxLogLen := opts.MaxLogLength
	if maxLogLen <= 0 {
		maxLogLen = defaultMaxLogLength
	}

	requestOptions := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if opts.BaseURL != "" {
		requestOptions = append(requestOptions, option.WithBaseURL(opts.BaseURL))
	}
	if opts.HTTPClient != nil {
		requestOptions = append(requestOptions, option.WithHTTPClient(opts.HTTPClient))
	}

	return &Generator{
		client:    anthropic.NewClient(requestOptions...),
		model:     model,
		maxTokens: maxTokens,
		logger:    logger.WithCommonFields(log, Provider, model),
		maxLogLen: maxLogLen,
	}, nil
}

// Generate sends the prompt to Claude and waits for the whole answer.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", ai.Wrap(Provider, "generate", ai.ErrEmptyPrompt)
	}

	g.logRequest("claude messages request", prompt)

	message, err := g.client.Messages.New(ctx, g.params(prompt))
	if err != nil {
		return "", ai.Wrap(Provider, "generate", fmt.Errorf("create message: %w", err))
	}

	var builder strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			builder.WriteString(block.Text)
		}
	}

	output := builder.String()
	if strings.TrimSpace(output) == "" {
		return "", ai.Wrap(Provider, "generate", ai.ErrEmptyResponse)
	}

	g.logger.Debug("claude messages response",
		zap.String("stop_reason", string(message.StopReason)),
		zap.Int("response_length", utf8.RuneCountInString(output)),
		zap.String("response_preview", utils.TruncateForLog(output, g.maxLogLen)),
	)

	return output, nil
}

// GenerateStream sends the prompt to Claude and streams the text deltas.
func (g *Generator) GenerateStream(ctx context.Context, prompt string) *ai.Stream {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return ai.FailedStream(ctx, Provider, ai.ErrEmptyPrompt)
	}

	g.logRequest("claude messages stream request", prompt)

	return ai.NewStream(ctx, Provider, func(ctx context.Context) iter.Seq2[string, error] {
		return func(yield func(string, error) bool) {
			stream := g.client.Messages.NewStreaming(ctx, g.params(prompt))
			defer stream.Close()

			for stream.Next() {
				event := stream.Current()
				delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent)
				if !ok {
					continue
				}

				text, ok := delta.Delta.AsAny().(anthropic.TextDelta)
				if !ok {
					continue
				}

				if !yield(text.Text, nil) {
					return
				}
			}

			if err := stream.Err(); err != nil {
				yield("", fmt.Errorf("stream message: %w", err))
			}
		}
	})
}

func (g *Generator) Model() string {
	return g.model
}

func (g *Generator) params(prompt string) anthropic.MessageNewParams {
	return anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: g.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: ai.SystemInstruction},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
}

func (g *Generator) logRequest(msg, prompt string) {
	g.logger.Debug(msg,
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, g.maxLogLen)),
	)
}

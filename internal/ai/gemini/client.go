package gemini

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/jobfit/internal/ai"
	"github.com/spigell/jobfit/internal/logger"
	"github.com/spigell/jobfit/internal/utils"
)

const (
	// Provider is the ai.provider value selecting this package.
	Provider            = "gemini"
	DefaultModel        = "gemini-2.5-flash"
	defaultMaxLogLength = 200
)

// models is the subset of genai.Models used by the Generator.
type models interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	GenerateContentStream(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error]
}

type Options struct {
	APIKey       string
	Model        string
	Temperature  *float32
	MaxLogLength int
}

// Generator wraps the Google GenAI client.
type Generator struct {
	models      models
	model       string
	temperature *float32
	logger      *zap.Logger
	maxLogLen   int
}

var _ ai.Generator = (*Generator)(nil)

// NewGenerator creates a new Generator configured for the Gemini API backend.
func NewGenerator(ctx context.Context, log *zap.Logger, opts Options) (*Generator, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return newGenerator(client.Models, log, opts), nil
}

func newGenerator(m models, log *zap.Logger, opts Options) *Generator {
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultModel
	}

	maxLogLen := opts.MaxLogLength
	if maxLogLen <= 0 {
		maxLogLen = defaultMaxLogLength
	}

	return &Generator{
		models:      m,
		model:       model,
		temperature: opts.Temperature,
		logger:      logger.WithCommonFields(log, Provider, model),
		maxLogLen:   maxLogLen,
	}
}

// Generate sends the prompt to Gemini and waits for the whole answer.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	if g == nil || g.models == nil {
		return "", ai.Wrap(Provider, "generate", errors.New("gemini generator is not initialized"))
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", ai.Wrap(Provider, "generate", ai.ErrEmptyPrompt)
	}

	g.logRequest("gemini generate content request", prompt)

	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), g.config())
	if err != nil {
		return "", ai.Wrap(Provider, "generate", fmt.Errorf("generate content: %w", err))
	}

	output := responseText(resp)
	if strings.TrimSpace(output) == "" {
		return "", ai.Wrap(Provider, "generate", ai.ErrEmptyResponse)
	}

	g.logger.Debug("gemini generate content response",
		zap.Int("response_length", utf8.RuneCountInString(output)),
		zap.String("response_preview", utils.TruncateForLog(output, g.maxLogLen)),
	)

	return output, nil
}

// GenerateStream sends the prompt to Gemini and streams the answer chunk by chunk.
func (g *Generator) GenerateStream(ctx context.Context, prompt string) *ai.Stream {
	if g == nil || g.models == nil {
		return ai.FailedStream(ctx, Provider, errors.New("gemini generator is not initialized"))
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return ai.FailedStream(ctx, Provider, ai.ErrEmptyPrompt)
	}

	g.logRequest("gemini generate content stream request", prompt)

	return ai.NewStream(ctx, Provider, func(ctx context.Context) iter.Seq2[string, error] {
		return func(yield func(string, error) bool) {
			chunks := 0
			for resp, err := range g.models.GenerateContentStream(ctx, g.model, genai.Text(prompt), g.config()) {
				if err != nil {
					yield("", fmt.Errorf("generate content stream: %w", err))
					return
				}

				chunks++
				if !yield(responseText(resp), nil) {
					return
				}
			}

			g.logger.Debug("gemini stream finished", zap.Int("chunks", chunks))
		}
	})
}

func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.model
}

func (g *Generator) config() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(ai.SystemInstruction, genai.RoleUser),
		Temperature:       g.temperature,
	}
}

func (g *Generator) logRequest(msg, prompt string) {
	g.logger.Debug(msg,
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, g.maxLogLen)),
	)
}

// responseText concatenates the text parts of the first candidate. Parts are
// not trimmed so that streamed chunks add up to the buffered answer.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}

	candidate := resp.Candidates[0]
	if candidate == nil || candidate.Content == nil {
		return ""
	}

	var builder strings.Builder
	for _, part := range candidate.Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		builder.WriteString(part.Text)
	}

	return builder.String()
}

// Package advisor implements the user actions of the job fit advisor on top of
// a session: uploading a CV, loading a job listing, chatting and analysing.
package advisor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/jobfit/internal/ai"
	"github.com/spigell/jobfit/internal/extract"
	"github.com/spigell/jobfit/internal/joblisting"
	"github.com/spigell/jobfit/internal/logger"
	"github.com/spigell/jobfit/internal/prompt"
	"github.com/spigell/jobfit/internal/session"
	"github.com/spigell/jobfit/internal/utils"
)

const (
	DefaultTimeout        = 2 * time.Minute
	DefaultMaxUploadBytes = 10 << 20
	defaultMaxLogLength   = 200

	// FollowUp is appended to chat answers when enabled.
	FollowUp = "Would you like me to elaborate any part of this, or do you have other related questions?"
)

var (
	ErrEmptyInput     = errors.New("input is empty")
	ErrMissingCV      = errors.New("no CV uploaded")
	ErrMissingJob     = errors.New("no job description loaded")
	ErrUploadTooLarge = errors.New("uploaded file is too large")
)

// Fetcher loads the text of a job listing.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*joblisting.Listing, error)
}

type Options struct {
	// Timeout bounds every model call.
	Timeout        time.Duration
	FollowUp       bool
	MaxUploadBytes int64
	MaxLogLength   int
}

type Advisor struct {
	generator ai.Generator
	fetcher   Fetcher
	logger    *zap.Logger

	timeout        time.Duration
	followUp       bool
	maxUploadBytes int64
	maxLogLen      int
}

func New(log *zap.Logger, generator ai.Generator, fetcher Fetcher, opts Options) *Advisor {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if opts.MaxLogLength <= 0 {
		opts.MaxLogLength = defaultMaxLogLength
	}

	return &Advisor{
		generator:      generator,
		fetcher:        fetcher,
		logger:         logger.WithFields(log, logger.StringFields(logger.StringField{Key: logger.FieldModel, Value: generator.Model()})...),
		timeout:        opts.Timeout,
		followUp:       opts.FollowUp,
		maxUploadBytes: opts.MaxUploadBytes,
		maxLogLen:      opts.MaxLogLength,
	}
}

// UploadCV extracts the text of an uploaded CV and stores it in the session.
// On failure the previously uploaded CV is kept.
func (a *Advisor) UploadCV(_ context.Context, sess *session.Session, name string, data []byte) (session.Notice, error) {
	log := logger.ForSession(a.logger, sess.ID, "upload_cv")

	format, err := extract.FormatFromName(name)
	if err != nil {
		log.Info("rejected upload", zap.String("file", name), zap.Error(err))
		return Describe(err), err
	}

	if int64(len(data)) > a.maxUploadBytes {
		err := fmt.Errorf("%w: %d bytes", ErrUploadTooLarge, len(data))
		log.Info("rejected upload", zap.String("file", name), zap.Error(err))
		return Describe(err), err
	}

	text, err := extract.Extract(data, format)
	if err != nil {
		log.Warn("failed to extract cv", zap.String("file", name), zap.Error(err))
		return Describe(err), err
	}

	sess.SetCV(name, text)

	log.Info("cv uploaded",
		zap.String("file", name),
		zap.String("format", string(format)),
		zap.Int("text_runes", utils.RuneLen(text)),
	)

	if strings.TrimSpace(text) == "" {
		return session.Notice{Level: session.LevelWarning, Text: "CV received, but no text could be extracted from it."}, nil
	}

	return session.Notice{Level: session.LevelSuccess, Text: "CV received and text extracted!"}, nil
}

// LoadJob fetches a job listing and stores its text in the session. On failure
// the previously loaded job is kept.
func (a *Advisor) LoadJob(ctx context.Context, sess *session.Session, url string) (session.Notice, error) {
	log := logger.ForSession(a.logger, sess.ID, "load_job")

	url = strings.TrimSpace(url)
	if url == "" {
		return Describe(ErrEmptyInput), ErrEmptyInput
	}

	listing, err := a.fetcher.Fetch(ctx, url)
	if err != nil {
		log.Warn("failed to fetch job description", zap.String("url", url), zap.Error(err))
		return Describe(err), err
	}

	sess.SetJob(listing.URL, listing.Text)

	log.Info("job description loaded",
		zap.String("url", listing.URL),
		zap.Int("status", listing.StatusCode),
		zap.Int("text_runes", utils.RuneLen(listing.Text)),
	)

	if listing.StatusCode < 200 || listing.StatusCode > 299 {
		return session.Notice{
			Level: session.LevelWarning,
			Text:  fmt.Sprintf("Job page answered with %d %s; loaded whatever text it had.", listing.StatusCode, http.StatusText(listing.StatusCode)),
		}, nil
	}

	return session.Notice{Level: session.LevelSuccess, Text: "Job description loaded!"}, nil
}

// Chat asks the model an open question about the loaded job and records both
// the question and the answer.
func (a *Advisor) Chat(ctx context.Context, sess *session.Session, question string) (string, error) {
	log := logger.ForSession(a.logger, sess.ID, "chat")

	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyInput
	}

	if !sess.Snapshot().CanChat() {
		return "", ErrMissingJob
	}

	if err := sess.Gate().Enter(); err != nil {
		log.Info("chat rejected", zap.Error(err))
		return "", err
	}

	ok := false
	defer func() { sess.Gate().Leave(ok) }()

	// The session may have been cleared while the gate was being entered.
	snap, begun := sess.BeginTurn(question)
	if !begun {
		return "", ErrMissingJob
	}
	generation := snap.Generation

	p, err := prompt.Chat(prompt.Input{
		CVText:   snap.CVText,
		JobText:  snap.JobText,
		Question: question,
	})
	if err != nil {
		return "", err
	}

	callCtx, cancel := a.callContext(ctx)
	defer cancel()

	started := time.Now()
	answer, err := a.generator.Generate(callCtx, p)
	if err != nil {
		log.Error("chat failed", zap.Duration("elapsed", time.Since(started)), zap.Error(err))
		return "", err
	}

	answer = a.friendly(answer)

	if !sess.AppendAssistant(generation, answer) {
		log.Info("session was reset during the turn, answer discarded")
	}

	log.Info("chat answered",
		zap.Duration("elapsed", time.Since(started)),
		zap.String("answer_preview", utils.TruncateForLog(answer, a.maxLogLen)),
	)

	ok = true
	return answer, nil
}

// Analyze streams the structured fit analysis. Every fragment is handed to
// onFragment as it arrives; an error returned by onFragment stops forwarding
// but the stream is still drained. The full analysis is recorded once the
// stream completes, a failed stream records nothing.
func (a *Advisor) Analyze(ctx context.Context, sess *session.Session, onFragment func(string) error) (string, error) {
	log := logger.ForSession(a.logger, sess.ID, "analyze")

	snap := sess.Snapshot()
	if !snap.HasCV() {
		return "", ErrMissingCV
	}
	if !snap.HasJob() {
		return "", ErrMissingJob
	}

	if err := sess.Gate().Enter(); err != nil {
		log.Info("analysis rejected", zap.Error(err))
		return "", err
	}

	ok := false
	defer func() { sess.Gate().Leave(ok) }()

	p, err := prompt.Analysis(prompt.Input{
		CVText:  snap.CVText,
		JobText: snap.JobText,
	})
	if err != nil {
		return "", err
	}

	callCtx, cancel := a.callContext(ctx)
	defer cancel()

	var (
		started   = time.Now()
		fragments int
		sinkErr   error
	)

	forward := func(text string) {
		fragments++
		if onFragment == nil || sinkErr != nil {
			return
		}
		if err := onFragment(text); err != nil {
			sinkErr = err
			log.Info("presentation stopped receiving fragments, draining stream", zap.Error(err))
		}
	}

	analysis, err := ai.Collect(a.generator.GenerateStream(callCtx, p), forward)
	if err != nil {
		log.Error("analysis failed",
			zap.Int("fragments", fragments),
			zap.Duration("elapsed", time.Since(started)),
			zap.Error(err),
		)
		return "", err
	}

	if !sess.AppendAssistant(snap.Generation, analysis) {
		log.Info("session was reset during the analysis, result discarded")
	}

	log.Info("analysis completed",
		zap.Int("fragments", fragments),
		zap.Duration("elapsed", time.Since(started)),
		zap.Int("analysis_runes", utils.RuneLen(analysis)),
	)

	ok = true
	return analysis, nil
}

// Reset clears the conversation, the CV and the job of the session.
func (a *Advisor) Reset(sess *session.Session) session.Notice {
	sess.Reset()
	logger.ForSession(a.logger, sess.ID, "reset").Info("session cleared")

	return session.Notice{Level: session.LevelInfo, Text: "Everything was cleared."}
}

// callContext detaches model calls from the caller's cancellation: an admitted
// turn runs until it completes or hits the configured timeout.
func (a *Advisor) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
}

func (a *Advisor) friendly(answer string) string {
	answer = strings.TrimSpace(answer)
	if !a.followUp {
		return answer
	}
	return answer + "\n\n" + FollowUp
}

package advisor

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"iter"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spigell/jobfit/internal/ai"
	"github.com/spigell/jobfit/internal/conversation"
	"github.com/spigell/jobfit/internal/extract"
	"github.com/spigell/jobfit/internal/gate"
	"github.com/spigell/jobfit/internal/joblisting"
	"github.com/spigell/jobfit/internal/session"
)

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) Fetch(ctx context.Context, url string) (*joblisting.Listing, error) {
	args := m.Called(ctx, url)
	listing, _ := args.Get(0).(*joblisting.Listing)
	return listing, args.Error(1)
}

// fakeGenerator answers deterministically. When release is set, Generate
// blocks until it is closed, announcing itself on entered first.
type fakeGenerator struct {
	mu      sync.Mutex
	prompts []string
	answer  string
	chunks  []string
	err     error
	entered chan struct{}
	release chan struct{}
	ctxErr  error
}

func (f *fakeGenerator) record(p string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, p)
}

func (f *fakeGenerator) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

func (f *fakeGenerator) Generate(ctx context.Context, p string) (string, error) {
	f.record(p)
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}

	f.mu.Lock()
	f.ctxErr = ctx.Err()
	f.mu.Unlock()

	if f.err != nil {
		return "", &ai.Error{Op: "generate", Provider: "fake", Cause: f.err}
	}
	return f.answer, nil
}

func (f *fakeGenerator) GenerateStream(ctx context.Context, p string) *ai.Stream {
	f.record(p)
	return ai.NewStream(ctx, "fake", func(context.Context) iter.Seq2[string, error] {
		return func(yield func(string, error) bool) {
			for _, c := range f.chunks {
				if !yield(c, nil) {
					return
				}
			}
			if f.err != nil {
				yield("", f.err)
			}
		}
	})
}

func (f *fakeGenerator) Model() string {
	return "fake-model"
}

func newAdvisor(gen *fakeGenerator, fetcher Fetcher) *Advisor {
	return New(zap.NewNop(), gen, fetcher, Options{FollowUp: true, Timeout: time.Minute})
}

func buildDOCX(t *testing.T, paragraphs ...string) []byte {
	t.Helper()

	var body strings.Builder
	for _, p := range paragraphs {
		body.WriteString("<w:p><w:r><w:t>" + p + "</w:t></w:r></w:p>")
	}

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create("word/document.xml")
	require.NoError(t, err)
	_, err = f.Write([]byte(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` + body.String() + `</w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	return buf.Bytes()
}

func contents(msgs []conversation.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, string(m.Role)+": "+m.Content)
	}
	return out
}

func TestUploadCVThenAnalysisNeedsJob(t *testing.T) {
	gen := &fakeGenerator{}
	a := newAdvisor(gen, new(mockFetcher))
	sess := session.New("s1")

	notice, err := a.UploadCV(context.Background(), sess, "Resume.DOCX", buildDOCX(t, "Senior Go engineer, 8 years of backend work."))
	require.NoError(t, err)
	assert.Equal(t, session.LevelSuccess, notice.Level)

	snap := sess.Snapshot()
	assert.Equal(t, "Senior Go engineer, 8 years of backend work.", snap.CVText)
	assert.Equal(t, "Resume.DOCX", snap.CVName)
	assert.False(t, snap.CanAnalyze())
	assert.False(t, snap.CanChat())

	_, err = a.Analyze(context.Background(), sess, nil)
	assert.ErrorIs(t, err, ErrMissingJob)

	_, err = a.Chat(context.Background(), sess, "Am I a fit?")
	assert.ErrorIs(t, err, ErrMissingJob)

	assert.Zero(t, gen.calls(), "guards must be checked before any model call")
	assert.Len(t, sess.Snapshot().Messages, 1, "only the greeting is present")
}

func TestUploadCVFailureKeepsPreviousCV(t *testing.T) {
	a := newAdvisor(&fakeGenerator{}, new(mockFetcher))
	sess := session.New("s1")
	sess.SetCV("old.xml", "previous cv")

	cases := []struct {
		name string
		file string
		data []byte
		is   error
	}{
		{name: "unsupported", file: "cv.txt", data: []byte("plain"), is: extract.ErrUnsupportedFormat},
		{name: "malformed", file: "cv.xml", data: []byte("<cv><oops></cv>")},
		{name: "too large", file: "cv.pdf", data: make([]byte, DefaultMaxUploadBytes+1), is: ErrUploadTooLarge},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			notice, err := a.UploadCV(context.Background(), sess, tc.file, tc.data)
			require.Error(t, err)
			if tc.is != nil {
				assert.ErrorIs(t, err, tc.is)
			}
			assert.Equal(t, session.LevelError, notice.Level)
			assert.Equal(t, "previous cv", sess.Snapshot().CVText)
		})
	}
}

func TestUploadEmptyCV(t *testing.T) {
	a := newAdvisor(&fakeGenerator{}, new(mockFetcher))
	sess := session.New("s1")

	notice, err := a.UploadCV(context.Background(), sess, "cv.xml", []byte("<cv/>"))
	require.NoError(t, err)
	assert.Equal(t, session.LevelWarning, notice.Level)
	assert.False(t, sess.Snapshot().HasCV())
}

func TestLoadJob(t *testing.T) {
	fetcher := new(mockFetcher)
	fetcher.On("Fetch", mock.Anything, "https://jobs.example.com/1").
		Return(&joblisting.Listing{URL: "https://jobs.example.com/1", StatusCode: 200, Text: "Go engineer at Acme"}, nil).Once()
	fetcher.On("Fetch", mock.Anything, "https://jobs.example.com/gone").
		Return(&joblisting.Listing{URL: "https://jobs.example.com/gone", StatusCode: 500, Text: "Oops"}, nil).Once()
	fetcher.On("Fetch", mock.Anything, "https://slow.example.com").
		Return(nil, &joblisting.Error{Kind: joblisting.KindTimeout, URL: "https://slow.example.com", Cause: context.DeadlineExceeded}).Once()

	a := newAdvisor(&fakeGenerator{}, fetcher)
	sess := session.New("s1")

	notice, err := a.LoadJob(context.Background(), sess, "  https://jobs.example.com/1 ")
	require.NoError(t, err)
	assert.Equal(t, session.LevelSuccess, notice.Level)
	assert.Equal(t, "Go engineer at Acme", sess.Snapshot().JobText)

	notice, err = a.LoadJob(context.Background(), sess, "https://slow.example.com")
	require.Error(t, err)
	assert.Equal(t, msgTimeout, notice.Text)
	assert.Equal(t, "Go engineer at Acme", sess.Snapshot().JobText, "failed fetch keeps the previous job")

	notice, err = a.LoadJob(context.Background(), sess, "https://jobs.example.com/gone")
	require.NoError(t, err)
	assert.Equal(t, session.LevelWarning, notice.Level)
	assert.Equal(t, "Oops", sess.Snapshot().JobText)

	_, err = a.LoadJob(context.Background(), sess, "   ")
	assert.ErrorIs(t, err, ErrEmptyInput)

	fetcher.AssertExpectations(t)
}

func TestChatAppendsQuestionAndAnswer(t *testing.T) {
	gen := &fakeGenerator{answer: "  You look like a strong fit.  "}
	a := newAdvisor(gen, new(mockFetcher))
	sess := session.New("s1")
	sess.SetJob("https://example.com", "Go role")

	answer, err := a.Chat(context.Background(), sess, "  Should I apply?  ")
	require.NoError(t, err)
	assert.Equal(t, "You look like a strong fit.\n\n"+FollowUp, answer)

	assert.Equal(t, []string{
		"assistant: " + session.Greeting,
		"user: Should I apply?",
		"assistant: " + answer,
	}, contents(sess.Snapshot().Messages))

	require.Equal(t, 1, gen.calls())
	assert.Contains(t, gen.prompts[0], "Job Description:\nGo role")
	assert.Contains(t, gen.prompts[0], "Should I apply?")
	assert.Equal(t, gate.Idle, sess.Gate().State())
}

func TestChatPromptUsesStateOfTheTurn(t *testing.T) {
	gen := &fakeGenerator{answer: "Yes."}
	a := newAdvisor(gen, new(mockFetcher))
	sess := session.New("s1")
	sess.SetCV("cv.xml", "Ten years of Go")
	sess.SetJob("https://example.com", "Go role")

	_, err := a.Chat(context.Background(), sess, "Am I senior enough?")
	require.NoError(t, err)

	require.Equal(t, 1, gen.calls())
	assert.Contains(t, gen.prompts[0], "Candidate CV:\nTen years of Go")
	assert.Contains(t, gen.prompts[0], "Job Description:\nGo role")

	sess.Reset()
	_, err = a.Chat(context.Background(), sess, "And now?")
	require.ErrorIs(t, err, ErrMissingJob)
	assert.Equal(t, 1, gen.calls())
	assert.Empty(t, sess.Snapshot().Messages)
	assert.Equal(t, gate.Idle, sess.Gate().State())
}

func TestChatRejectsEmptyQuestion(t *testing.T) {
	gen := &fakeGenerator{answer: "x"}
	a := newAdvisor(gen, new(mockFetcher))
	sess := session.New("s1")
	sess.SetJob("u", "job")

	_, err := a.Chat(context.Background(), sess, " \t")
	assert.ErrorIs(t, err, ErrEmptyInput)
	assert.Zero(t, gen.calls())
}

func TestChatWhileBusyIsRejected(t *testing.T) {
	gen := &fakeGenerator{
		answer:  "first answer",
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	a := New(zap.NewNop(), gen, new(mockFetcher), Options{})
	sess := session.New("s1")
	sess.SetJob("u", "job")

	done := make(chan error, 1)
	go func() {
		_, err := a.Chat(context.Background(), sess, "first")
		done <- err
	}()

	<-gen.entered
	assert.Equal(t, gate.Busy, sess.Gate().State())

	_, err := a.Chat(context.Background(), sess, "second")
	require.ErrorIs(t, err, gate.ErrRejected)
	assert.Equal(t, "The advisor is already processing a request. Please wait until it finishes.", Describe(err).Text)

	_, err = a.Analyze(context.Background(), sess, nil)
	assert.ErrorIs(t, err, ErrMissingCV, "guards run before the gate")

	close(gen.release)
	require.NoError(t, <-done)

	assert.Equal(t, 1, gen.calls(), "the rejected submission never reaches the model")
	assert.Equal(t, []string{
		"assistant: " + session.Greeting,
		"user: first",
		"assistant: first answer",
	}, contents(sess.Snapshot().Messages))
	assert.Equal(t, gate.Idle, sess.Gate().State())
}

func TestChatFailureReopensGate(t *testing.T) {
	gen := &fakeGenerator{err: context.DeadlineExceeded}
	a := newAdvisor(gen, new(mockFetcher))
	sess := session.New("s1")
	sess.SetJob("u", "job")

	_, err := a.Chat(context.Background(), sess, "q")
	require.Error(t, err)
	assert.True(t, ai.IsTimeout(err))
	assert.Equal(t, msgTimeout, Describe(err).Text)
	assert.Equal(t, gate.Idle, sess.Gate().State())

	gen.err = nil
	gen.answer = "ok"
	_, err = a.Chat(context.Background(), sess, "again")
	require.NoError(t, err)
}

func TestChatIgnoresCallerCancellation(t *testing.T) {
	gen := &fakeGenerator{answer: "answer"}
	a := newAdvisor(gen, new(mockFetcher))
	sess := session.New("s1")
	sess.SetJob("u", "job")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Chat(ctx, sess, "q")
	require.NoError(t, err)
	assert.NoError(t, gen.ctxErr)
}

func TestResetDuringChatDiscardsAnswer(t *testing.T) {
	gen := &fakeGenerator{
		answer:  "stale answer",
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	a := newAdvisor(gen, new(mockFetcher))
	sess := session.New("s1")
	sess.SetJob("u", "job")

	done := make(chan error, 1)
	go func() {
		_, err := a.Chat(context.Background(), sess, "q")
		done <- err
	}()

	<-gen.entered
	notice := a.Reset(sess)
	assert.Equal(t, session.LevelInfo, notice.Level)

	close(gen.release)
	require.NoError(t, <-done)

	assert.Empty(t, sess.Snapshot().Messages)
	assert.Equal(t, gate.Idle, sess.Gate().State())
}

func TestAnalyzeStreamsAndRecordsAnalysis(t *testing.T) {
	gen := &fakeGenerator{chunks: []string{"1. Company: Acme\n", "", "2. Reputation: good\n"}}
	a := newAdvisor(gen, new(mockFetcher))
	sess := session.New("s1")
	sess.SetCV("cv.pdf", "cv")
	sess.SetJob("u", "job")

	var fragments []string
	analysis, err := a.Analyze(context.Background(), sess, func(s string) error {
		fragments = append(fragments, s)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"1. Company: Acme\n", "2. Reputation: good\n"}, fragments)
	assert.Equal(t, strings.Join(fragments, ""), analysis)

	msgs := sess.Snapshot().Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, conversation.RoleAssistant, msgs[1].Role)
	assert.Equal(t, analysis, msgs[1].Content)
	assert.Contains(t, gen.prompts[0], "8. Numeric fit score")
}

func TestAnalyzeErrorDiscardsPartialText(t *testing.T) {
	gen := &fakeGenerator{chunks: []string{"1. Company: Ac"}, err: errors.New("connection reset")}
	a := newAdvisor(gen, new(mockFetcher))
	sess := session.New("s1")
	sess.SetCV("cv.pdf", "cv")
	sess.SetJob("u", "job")

	var fragments int
	_, err := a.Analyze(context.Background(), sess, func(string) error {
		fragments++
		return nil
	})
	require.Error(t, err)

	var aiErr *ai.Error
	assert.True(t, errors.As(err, &aiErr))
	assert.Equal(t, 1, fragments)
	assert.Len(t, sess.Snapshot().Messages, 1, "partial analysis must not be recorded")
	assert.Equal(t, gate.Idle, sess.Gate().State())
}

func TestAnalyzeKeepsDrainingWhenPresentationFails(t *testing.T) {
	gen := &fakeGenerator{chunks: []string{"a", "b", "c"}}
	a := newAdvisor(gen, new(mockFetcher))
	sess := session.New("s1")
	sess.SetCV("cv.pdf", "cv")
	sess.SetJob("u", "job")

	calls := 0
	analysis, err := a.Analyze(context.Background(), sess, func(string) error {
		calls++
		return errors.New("client went away")
	})
	require.NoError(t, err)

	assert.Equal(t, 1, calls, "forwarding stops after the first write failure")
	assert.Equal(t, "abc", analysis)
	assert.Equal(t, "abc", sess.Snapshot().Messages[1].Content)
}

// Package session holds the per-user state of the advisor: the extracted CV,
// the loaded job listing, the conversation and the request gate.
package session

import (
	"sync"

	"github.com/spigell/jobfit/internal/conversation"
	"github.com/spigell/jobfit/internal/gate"
)

// Greeting seeds the conversation of every new session.
const Greeting = "Hi! I'm your job application helper. Share your CV and a job listing, then ask me anything about the job, and its/your suitability."

type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is a one-line flash message shown on the next render.
type Notice struct {
	Level Level
	Text  string
}

type Session struct {
	ID string

	gate gate.Gate

	mu         sync.RWMutex
	cvName     string
	cvText     string
	jobURL     string
	jobText    string
	conv       *conversation.Conversation
	notice     *Notice
	generation uint64
}

func New(id string) *Session {
	return &Session{
		ID: id,
		conv: conversation.New(conversation.Message{
			Role:    conversation.RoleAssistant,
			Content: Greeting,
		}),
	}
}

// Gate is the single-flight gate guarding model requests of this session.
func (s *Session) Gate() *gate.Gate {
	return &s.gate
}

// SetCV replaces the CV text wholesale.
func (s *Session) SetCV(name, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cvName = name
	s.cvText = text
}

// SetJob replaces the job listing wholesale.
func (s *Session) SetJob(url, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobURL = url
	s.jobText = text
}

// BeginTurn records the question of a new chat turn and returns the state the
// turn works from, taken in the same critical section. Nothing is recorded
// when no job is loaded.
func (s *Session) BeginTurn(question string) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.jobText == "" {
		return s.snapshotLocked(), false
	}
	_ = s.conv.Append(conversation.RoleUser, question)
	return s.snapshotLocked(), true
}

// AppendAssistant records an answer unless the session was reset after the
// turn started. It reports whether the answer was stored.
func (s *Session) AppendAssistant(generation uint64, content string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if generation != s.generation {
		return false
	}
	_ = s.conv.Append(conversation.RoleAssistant, content)
	return true
}

// Reset clears the conversation, the CV and the job in one step. Answers of
// turns started before the reset are discarded.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conv.Reset()
	s.cvName, s.cvText = "", ""
	s.jobURL, s.jobText = "", ""
	s.generation++
}

func (s *Session) SetNotice(n Notice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notice = &n
}

// TakeNotice returns the pending notice and clears it.
func (s *Session) TakeNotice() (Notice, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.notice == nil {
		return Notice{}, false
	}
	n := *s.notice
	s.notice = nil
	return n, true
}

// Snapshot is a consistent, immutable view of a session.
type Snapshot struct {
	ID         string
	CVName     string
	CVText     string
	JobURL     string
	JobText    string
	Messages   []conversation.Message
	Busy       bool
	Generation uint64
}

func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		ID:         s.ID,
		CVName:     s.cvName,
		CVText:     s.cvText,
		JobURL:     s.jobURL,
		JobText:    s.jobText,
		Messages:   s.conv.Messages(),
		Busy:       s.gate.State() == gate.Busy,
		Generation: s.generation,
	}
}

func (s Snapshot) HasCV() bool {
	return s.CVText != ""
}

func (s Snapshot) HasJob() bool {
	return s.JobText != ""
}

// CanChat reports whether a question may be asked: a job must be loaded.
func (s Snapshot) CanChat() bool {
	return s.HasJob()
}

// CanAnalyze reports whether the fit analysis may run: both CV and job are needed.
func (s Snapshot) CanAnalyze() bool {
	return s.HasCV() && s.HasJob()
}

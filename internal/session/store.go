package session

import (
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/spigell/jobfit/internal/logger"
)

const (
	DefaultTTL      = time.Hour
	cleanupInterval = 10 * time.Minute
)

// Store keeps sessions in memory. Every lookup extends the session's lifetime.
type Store struct {
	cache  *cache.Cache
	logger *zap.Logger
}

func NewStore(log *zap.Logger, ttl time.Duration) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	c := cache.New(ttl, cleanupInterval)
	c.OnEvicted(func(id string, _ interface{}) {
		log.Debug("session expired", zap.String(logger.FieldSession, id))
	})

	return &Store{cache: c, logger: log}
}

// Create registers a new session with a random ID.
func (s *Store) Create() *Session {
	sess := New(uuid.NewString())
	s.cache.Set(sess.ID, sess, cache.DefaultExpiration)

	s.logger.Debug("session created", zap.String(logger.FieldSession, sess.ID))

	return sess
}

func (s *Store) Get(id string) (*Session, bool) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, false
	}

	x, found := s.cache.Get(id)
	if !found {
		return nil, false
	}

	sess := x.(*Session)
	s.cache.Set(id, sess, cache.DefaultExpiration)

	return sess, true
}

// GetOrCreate returns the session for id, creating a fresh one when it is
// unknown or expired. created reports whether a new session was made.
func (s *Store) GetOrCreate(id string) (sess *Session, created bool) {
	if sess, ok := s.Get(id); ok {
		return sess, false
	}
	return s.Create(), true
}

func (s *Store) Delete(id string) {
	s.cache.Delete(id)
}

func (s *Store) Len() int {
	return s.cache.ItemCount()
}

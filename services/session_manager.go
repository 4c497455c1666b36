package services

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"venuePresenceAPI/internal/common/clock"
	"venuePresenceAPI/internal/metrics"
	"venuePresenceAPI/internal/types/session"
)

const (
	// SessionIdleTTL is how long an expired, unwatched session is kept
	// after it went idle or was last requested.
	SessionIdleTTL = 10 * time.Minute

	sessionSweepInterval = time.Minute
)

// SessionManager holds the live interaction sessions of this instance,
// keyed by owner and conversation.
type SessionManager struct {
	credits CreditSpender
	clock   clock.Clock
	logger  *zap.Logger
	idleTTL time.Duration

	// mu orders lookups against evictions so a released session is never
	// put back into the cache.
	mu       sync.Mutex
	sessions *gocache.Cache
}

type sessionKey struct {
	userID         string
	conversationID string
}

func (k sessionKey) String() string {
	return k.userID + "\x00" + k.conversationID
}

func NewSessionManager(credits CreditSpender, clk clock.Clock, logger *zap.Logger) *SessionManager {
	return newSessionManager(credits, clk, logger, SessionIdleTTL, sessionSweepInterval)
}

func newSessionManager(credits CreditSpender, clk clock.Clock, logger *zap.Logger, idleTTL, sweep time.Duration) *SessionManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &SessionManager{
		credits:  credits,
		clock:    clk,
		logger:   logger,
		idleTTL:  idleTTL,
		sessions: gocache.New(idleTTL, sweep),
	}
	m.sessions.OnEvicted(m.onEvicted)
	return m
}

// Open starts a countdown for the conversation, or returns the existing one
// untouched so reconnecting clients cannot reset an expired budget.
func (m *SessionManager) Open(userID, conversationID string, initialSeconds int) (session.Snapshot, error) {
	if userID == "" {
		return session.Snapshot{}, ErrUnauthorized
	}

	key := sessionKey{userID: userID, conversationID: conversationID}.String()
	if _, ok := m.sessions.Get(key); !ok {
		// Release a timed-out entry the janitor has not reached yet.
		m.sessions.Delete(key)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if v, ok := m.sessions.Get(key); ok && !v.(*InteractionSession).Closed() {
		s := v.(*InteractionSession)
		m.sessions.Set(key, s, m.ttlFor(s))
		return s.Snapshot(), nil
	}

	s := NewInteractionSession(conversationID, userID, m.credits, m.clock, m.logger)
	s.onIdle = func() { m.touch(key, s) }
	s.Start(initialSeconds)
	m.sessions.Set(key, s, m.ttlFor(s))
	metrics.ActiveSessions.Inc()

	m.logger.Info("Interaction session opened",
		zap.String("user_id", userID),
		zap.String("conversation_id", conversationID),
	)
	return s.Snapshot(), nil
}

func (m *SessionManager) Get(userID, conversationID string) (session.Snapshot, error) {
	s, err := m.lookup(userID, conversationID)
	if err != nil {
		return session.Snapshot{}, err
	}
	return s.Snapshot(), nil
}

func (m *SessionManager) Extend(ctx context.Context, userID, conversationID string, creditCost int) (bool, session.Snapshot, error) {
	s, err := m.lookup(userID, conversationID)
	if err != nil {
		return false, session.Snapshot{}, err
	}

	ok, err := s.Extend(ctx, creditCost)
	m.touch(sessionKey{userID: userID, conversationID: conversationID}.String(), s)
	if err != nil {
		return false, s.Snapshot(), err
	}
	return ok, s.Snapshot(), nil
}

func (m *SessionManager) Subscribe(userID, conversationID string) (<-chan session.Snapshot, func(), error) {
	s, err := m.lookup(userID, conversationID)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := s.Subscribe()
	m.touch(sessionKey{userID: userID, conversationID: conversationID}.String(), s)
	return ch, cancel, nil
}

// Close stops and forgets the session.
func (m *SessionManager) Close(userID, conversationID string) error {
	if userID == "" {
		return ErrUnauthorized
	}

	key := sessionKey{userID: userID, conversationID: conversationID}.String()
	m.mu.Lock()
	v, ok := m.sessions.Get(key)
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	// Closing first makes the eviction hook release it instead of keeping it.
	v.(*InteractionSession).Close()
	m.sessions.Delete(key)
	return nil
}

// Shutdown closes every session; used on server stop.
func (m *SessionManager) Shutdown() {
	m.sessions.DeleteExpired()
	for key, item := range m.sessions.Items() {
		item.Object.(*InteractionSession).Close()
		m.sessions.Delete(key)
	}
}

// Len reports how many sessions are held.
func (m *SessionManager) Len() int {
	return m.sessions.ItemCount()
}

func (m *SessionManager) lookup(userID, conversationID string) (*InteractionSession, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := sessionKey{userID: userID, conversationID: conversationID}.String()
	v, ok := m.sessions.Get(key)
	if !ok {
		return nil, ErrSessionNotFound
	}
	s := v.(*InteractionSession)
	if s.Closed() {
		return nil, ErrSessionNotFound
	}
	m.sessions.Set(key, s, m.ttlFor(s))
	return s, nil
}

// touch refreshes the entry's expiry if it still holds s.
func (m *SessionManager) touch(key string, s *InteractionSession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.sessions.Get(key); ok && cur == s {
		m.sessions.Set(key, s, m.ttlFor(s))
	}
}

// ttlFor pins sessions in use and starts the idle clock on the rest.
func (m *SessionManager) ttlFor(s *InteractionSession) time.Duration {
	if s.InUse() {
		return gocache.NoExpiration
	}
	return m.idleTTL
}

// onEvicted runs after go-cache drops an entry, on TTL expiry or Delete.
// A session still counting down or watched is put back.
func (m *SessionManager) onEvicted(key string, v interface{}) {
	s := v.(*InteractionSession)

	m.mu.Lock()
	defer m.mu.Unlock()

	cur, exists := m.sessions.Get(key)
	if exists && cur == s {
		// Touched back in by a lookup that raced the janitor.
		return
	}
	if !exists && s.InUse() {
		m.sessions.Set(key, s, gocache.NoExpiration)
		return
	}

	s.Close()
	metrics.ActiveSessions.Dec()
	m.logger.Debug("Interaction session released", zap.String("conversation_id", s.Snapshot().ConversationID))
}

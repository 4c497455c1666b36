package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"venuePresenceAPI/internal/common/clock"
	"venuePresenceAPI/internal/types/session"
)

// CreditSpender debits credits for session extensions and returns them
// when an extension lands on a session that closed meanwhile.
type CreditSpender interface {
	Spend(ctx context.Context, userID string, amount int) (bool, error)
	Refund(ctx context.Context, userID string, amount int) error
}

// InteractionSession is the countdown that governs one conversation. It
// decrements once per second while running, stops at zero and resumes
// only after a paid extension.
type InteractionSession struct {
	conversationID string
	ownerID        string
	credits        CreditSpender
	clock          clock.Clock
	logger         *zap.Logger

	mu          sync.Mutex
	remaining   int
	running     bool
	closed      bool
	stop        chan struct{}
	subscribers map[int]chan session.Snapshot
	nextSubID   int

	// onIdle is called, without mu held, when the session stops running
	// and has no subscribers left.
	onIdle func()
}

func NewInteractionSession(conversationID, ownerID string, credits CreditSpender, clk clock.Clock, logger *zap.Logger) *InteractionSession {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InteractionSession{
		conversationID: conversationID,
		ownerID:        ownerID,
		credits:        credits,
		clock:          clk,
		logger:         logger,
		subscribers:    make(map[int]chan session.Snapshot),
	}
}

// Start resets the countdown to initialSeconds (InitialBudget when not
// positive) and begins ticking.
func (s *InteractionSession) Start(initialSeconds int) {
	if initialSeconds <= 0 {
		initialSeconds = session.InitialBudget
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	s.haltLocked()
	s.remaining = initialSeconds
	s.startLocked()
	s.publishLocked()
}

// Extend spends creditCost credits from the owner and, on success, adds
// ExtensionBonus seconds, restarting the countdown if it had stopped. A
// false result with a nil error means the owner could not afford it. A
// spend that completes after Close is refunded and reported as
// ErrSessionNotFound.
func (s *InteractionSession) Extend(ctx context.Context, creditCost int) (bool, error) {
	if creditCost <= 0 {
		creditCost = session.DefaultExtendCost
	}

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return false, ErrSessionNotFound
	}

	// The spend is a remote write; ticks keep flowing while it is in flight.
	ok, err := s.credits.Spend(ctx, s.ownerID, creditCost)
	if err != nil {
		return false, fmt.Errorf("failed to extend session: %w", err)
	}
	if !ok {
		s.logger.Info("Session extension declined, insufficient credits",
			zap.String("conversation_id", s.conversationID),
			zap.String("user_id", s.ownerID),
		)
		return false, nil
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false, s.refund(ctx, creditCost)
	}
	defer s.mu.Unlock()
	s.remaining += session.ExtensionBonus
	s.startLocked()
	s.publishLocked()
	return true, nil
}

// refund returns a spend that raced Close. The request may already be
// cancelled, so the refund runs on a detached context.
func (s *InteractionSession) refund(ctx context.Context, creditCost int) error {
	if err := s.credits.Refund(context.WithoutCancel(ctx), s.ownerID, creditCost); err != nil {
		s.logger.Error("Failed to refund extension on closed session",
			zap.String("conversation_id", s.conversationID),
			zap.String("user_id", s.ownerID),
			zap.Int("credits", creditCost),
			zap.Error(err),
		)
		return fmt.Errorf("%w: refund failed: %v", ErrSessionNotFound, err)
	}
	s.logger.Info("Refunded extension on closed session",
		zap.String("conversation_id", s.conversationID),
		zap.String("user_id", s.ownerID),
	)
	return ErrSessionNotFound
}

// InUse reports whether the countdown is still running or someone is
// watching it. Idle sessions may be evicted.
func (s *InteractionSession) InUse() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && (s.running || len(s.subscribers) > 0)
}

func (s *InteractionSession) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Snapshot returns the current countdown state.
func (s *InteractionSession) Snapshot() session.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe returns a channel receiving a snapshot after every change and a
// func that releases it. Slow readers miss intermediate snapshots.
func (s *InteractionSession) Subscribe() (<-chan session.Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan session.Snapshot, 1)
	if s.closed {
		close(ch)
		return ch, func() {}
	}

	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = ch
	ch <- s.snapshotLocked()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			if sub, ok := s.subscribers[id]; ok {
				delete(s.subscribers, id)
				close(sub)
			}
			s.mu.Unlock()
			s.notifyIdle()
		})
	}
}

// Close stops the countdown and releases every subscriber. It is safe to
// call more than once.
func (s *InteractionSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.haltLocked()
	for id, ch := range s.subscribers {
		delete(s.subscribers, id)
		close(ch)
	}
}

func (s *InteractionSession) snapshotLocked() session.Snapshot {
	return session.Snapshot{
		ConversationID:   s.conversationID,
		RemainingSeconds: s.remaining,
		IsRunning:        s.running,
		Expired:          !s.running && s.remaining == 0,
	}
}

func (s *InteractionSession) startLocked() {
	if s.running || s.remaining <= 0 {
		return
	}
	s.running = true
	stop := make(chan struct{})
	s.stop = stop
	go s.run(s.clock.NewTicker(time.Second), stop)
}

func (s *InteractionSession) haltLocked() {
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
	s.running = false
}

func (s *InteractionSession) run(ticker clock.Ticker, stop chan struct{}) {
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C():
			if !s.tick(stop) {
				s.notifyIdle()
				return
			}
		}
	}
}

func (s *InteractionSession) notifyIdle() {
	if s.onIdle != nil && !s.InUse() {
		s.onIdle()
	}
}

// tick applies one second and reports whether the countdown continues.
func (s *InteractionSession) tick(stop chan struct{}) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stop != stop {
		return false
	}

	if s.remaining > 0 {
		s.remaining--
	}
	if s.remaining == 0 {
		s.running = false
		s.stop = nil
		s.publishLocked()
		s.logger.Debug("Session expired", zap.String("conversation_id", s.conversationID))
		return false
	}

	s.publishLocked()
	return true
}

func (s *InteractionSession) publishLocked() {
	snap := s.snapshotLocked()
	for _, ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			// Drop the stale value so the newest state is the one waiting.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

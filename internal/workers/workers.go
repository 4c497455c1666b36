package workers

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"venuePresenceAPI/internal/common/clock"
)

const (
	// SweepInterval is how often expired check-ins are purged.
	SweepInterval = time.Hour
	// SweepGrace keeps expired rows around briefly after expiry.
	SweepGrace = 24 * time.Hour
)

type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// CheckInSweeper deletes check-ins that expired more than SweepGrace ago.
// Reads already ignore expired rows; this only bounds table growth.
type CheckInSweeper struct {
	db     Execer
	clock  clock.Clock
	logger *zap.Logger
}

func NewCheckInSweeper(db Execer, clk clock.Clock, logger *zap.Logger) *CheckInSweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CheckInSweeper{db: db, clock: clk, logger: logger}
}

// Run sweeps on every tick until ctx is cancelled.
func (s *CheckInSweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			sweepCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
			if _, err := s.Sweep(sweepCtx); err != nil {
				s.logger.Error("Check-in sweep failed", zap.Error(err))
			}
			cancel()
		}
	}
}

// Sweep runs one purge and returns the number of rows removed.
func (s *CheckInSweeper) Sweep(ctx context.Context) (int64, error) {
	cutoff := s.clock.Now().Add(-SweepGrace)

	tag, err := s.db.Exec(ctx, `DELETE FROM check_ins WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}

	if n := tag.RowsAffected(); n > 0 {
		s.logger.Info("Purged expired check-ins", zap.Int64("rows", n), zap.Time("cutoff", cutoff))
	}
	return tag.RowsAffected(), nil
}

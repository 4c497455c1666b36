package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"venuePresenceAPI/internal/types/checkin"
)

// PresenceEvents is notified after a check-in is committed.
type PresenceEvents interface {
	CheckedIn(ctx context.Context, c *checkin.CheckIn) error
}

// NATSPresenceEvents publishes check-ins on presence.venue.<venueID>.checkin.
type NATSPresenceEvents struct {
	conn *nats.Conn
}

func NewNATSPresenceEvents(conn *nats.Conn) *NATSPresenceEvents {
	return &NATSPresenceEvents{conn: conn}
}

func CheckInSubject(venueID string) string {
	return fmt.Sprintf("presence.venue.%s.checkin", venueID)
}

func (p *NATSPresenceEvents) CheckedIn(_ context.Context, c *checkin.CheckIn) error {
	data, err := json.Marshal(checkin.Event{Type: "checkin", CheckIn: c})
	if err != nil {
		return fmt.Errorf("failed to encode check-in event: %w", err)
	}
	if err := p.conn.Publish(CheckInSubject(c.VenueID), data); err != nil {
		return fmt.Errorf("failed to publish check-in event: %w", err)
	}
	return nil
}

// ConnectNATS dials the broker with reconnect handling that logs state changes.
func ConnectNATS(url string, logger *zap.Logger) (*nats.Conn, error) {
	options := []nats.Option{
		nats.Name("venue-presence-api"),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2 * time.Second),
		nats.Timeout(5 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("NATS connection closed")
		}),
	}

	nc, err := nats.Connect(url, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return nc, nil
}

type noopPresenceEvents struct{}

func (noopPresenceEvents) CheckedIn(context.Context, *checkin.CheckIn) error { return nil }

// NoopPresenceEvents discards events; used when no broker is configured.
func NoopPresenceEvents() PresenceEvents { return noopPresenceEvents{} }

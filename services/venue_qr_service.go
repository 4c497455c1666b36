package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"venuePresenceAPI/internal/common/clock"
	"venuePresenceAPI/internal/types/checkin"
	"venuePresenceAPI/internal/types/venue"
	"venuePresenceAPI/utils"
)

// CheckInCodeTTL is how long a staff-issued check-in code can be redeemed.
const CheckInCodeTTL = 15 * time.Minute

type EmployeeDirectory interface {
	IsVenueEmployee(ctx context.Context, venueID, userID string) (bool, error)
}

// VenueQRService issues and redeems signed check-in codes. Redeeming a code
// checks the guest in with the proximity gate overridden.
type VenueQRService struct {
	employees EmployeeDirectory
	presence  *PresenceManager
	secret    string
	clock     clock.Clock
	logger    *zap.Logger
}

func NewVenueQRService(employees EmployeeDirectory, presence *PresenceManager, secret string, clk clock.Clock, logger *zap.Logger) *VenueQRService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VenueQRService{employees: employees, presence: presence, secret: secret, clock: clk, logger: logger}
}

func (s *VenueQRService) Generate(ctx context.Context, staffID, venueID string) (*venue.CheckInCode, error) {
	if staffID == "" {
		return nil, ErrUnauthorized
	}

	ok, err := s.employees.IsVenueEmployee(ctx, venueID, staffID)
	if err != nil {
		return nil, fmt.Errorf("failed to verify staff: %w", err)
	}
	if !ok {
		return nil, ErrNotEmployee
	}

	expiresAt := s.clock.Now().Add(CheckInCodeTTL)
	token, err := utils.SignCheckInToken(s.secret, venueID, expiresAt)
	if err != nil {
		return nil, err
	}

	png, err := utils.EncodeQRPNG(token)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Issued check-in code", zap.String("venue_id", venueID), zap.String("staff_id", staffID))

	return &venue.CheckInCode{VenueID: venueID, Token: token, QRCodePNG: png, ExpiresAt: expiresAt}, nil
}

func (s *VenueQRService) Redeem(ctx context.Context, userID, token string, coords *venue.Coordinate) (*checkin.CheckIn, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}

	venueID, err := utils.ParseCheckInToken(s.secret, token, s.clock.Now())
	if err != nil {
		if errors.Is(err, utils.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: code expired", ErrInvalidToken)
		}
		return nil, ErrInvalidToken
	}

	return s.presence.CheckIn(ctx, userID, venueID, coords, CheckInOptions{OverrideProximity: true})
}

package services

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized    = errors.New("user not authenticated")
	ErrVenueNotFound   = errors.New("venue not found")
	ErrMissingLocation = errors.New("location is required")
	ErrTooFarAway      = errors.New("too far away from venue")
	ErrNotCheckedIn    = errors.New("not checked in at this venue")
	ErrSessionNotFound = errors.New("interaction session not found")
	ErrInvalidAmount   = errors.New("amount must be positive")
	ErrInvalidToken    = errors.New("invalid check-in code")
	ErrNotEmployee     = errors.New("user is not staff at this venue")
	ErrUnknownPack     = errors.New("unknown credit pack")
	ErrUnattributed    = errors.New("payment carries no buyer or known credit pack")
)

// TooFarAwayError carries the measured distance so clients can say "you are 210m away".
type TooFarAwayError struct {
	DistanceKm float64
}

func (e *TooFarAwayError) Error() string {
	return fmt.Sprintf("too far away from venue: %.0fm", e.DistanceKm*1000)
}

func (e *TooFarAwayError) Is(target error) bool {
	return target == ErrTooFarAway
}

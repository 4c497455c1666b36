package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/skip2/go-qrcode"
)

var (
	ErrTokenFormat    = errors.New("invalid token format")
	ErrTokenSignature = errors.New("invalid token signature")
	ErrTokenExpired   = errors.New("token expired")
)

// CheckInTokenPayload is what a venue QR code carries (must match SignCheckInToken).
type CheckInTokenPayload struct {
	VenueID   string `json:"vid"`
	ExpiresAt int64  `json:"exp"`
}

// SignCheckInToken produces "<base64url payload>.<base64url hmac>".
func SignCheckInToken(secret, venueID string, expiresAt time.Time) (string, error) {
	if secret == "" {
		return "", errors.New("signing secret is empty")
	}
	payload, err := json.Marshal(CheckInTokenPayload{VenueID: venueID, ExpiresAt: expiresAt.Unix()})
	if err != nil {
		return "", fmt.Errorf("failed to marshal token payload: %w", err)
	}
	payloadStr := base64.RawURLEncoding.EncodeToString(payload)
	return payloadStr + "." + sign(secret, payloadStr), nil
}

// ParseCheckInToken verifies the signature and expiry and returns the venue ID.
func ParseCheckInToken(secret, token string, now time.Time) (string, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 2 {
		return "", ErrTokenFormat
	}
	payloadStr, signature := parts[0], parts[1]

	if !hmac.Equal([]byte(signature), []byte(sign(secret, payloadStr))) {
		return "", ErrTokenSignature
	}

	payloadBytes, err := base64.RawURLEncoding.DecodeString(payloadStr)
	if err != nil {
		return "", ErrTokenFormat
	}
	var payload CheckInTokenPayload
	if err := json.Unmarshal(payloadBytes, &payload); err != nil || payload.VenueID == "" {
		return "", ErrTokenFormat
	}

	// Short expiry keeps screenshots of the code from working later.
	if now.Unix() > payload.ExpiresAt {
		return "", ErrTokenExpired
	}

	return payload.VenueID, nil
}

// EncodeQRPNG renders content as a base64 PNG QR code.
func EncodeQRPNG(content string) (string, error) {
	pngBytes, err := qrcode.Encode(content, qrcode.Medium, 256)
	if err != nil {
		return "", fmt.Errorf("failed to generate QR png: %w", err)
	}
	return base64.StdEncoding.EncodeToString(pngBytes), nil
}

func sign(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

package utils

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckInToken_RoundTrip(t *testing.T) {
	now := time.Date(2025, 6, 1, 22, 0, 0, 0, time.UTC)

	token, err := SignCheckInToken("s3cret", "venue-1", now.Add(15*time.Minute))
	require.NoError(t, err)

	venueID, err := ParseCheckInToken("s3cret", token, now)
	require.NoError(t, err)
	assert.Equal(t, "venue-1", venueID)
}

func TestCheckInToken_Rejections(t *testing.T) {
	now := time.Date(2025, 6, 1, 22, 0, 0, 0, time.UTC)
	token, err := SignCheckInToken("s3cret", "venue-1", now.Add(time.Minute))
	require.NoError(t, err)

	_, err = ParseCheckInToken("other", token, now)
	assert.ErrorIs(t, err, ErrTokenSignature)

	_, err = ParseCheckInToken("s3cret", token, now.Add(2*time.Minute))
	assert.ErrorIs(t, err, ErrTokenExpired)

	_, err = ParseCheckInToken("s3cret", "no-dot", now)
	assert.ErrorIs(t, err, ErrTokenFormat)

	_, err = ParseCheckInToken("s3cret", token+"x", now)
	assert.ErrorIs(t, err, ErrTokenSignature)
}

func TestSignCheckInToken_EmptySecret(t *testing.T) {
	_, err := SignCheckInToken("", "venue-1", time.Now())
	assert.Error(t, err)
}

func TestEncodeQRPNG(t *testing.T) {
	encoded, err := EncodeQRPNG("venuepresence://checkin/abc")
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, raw[:4])
}

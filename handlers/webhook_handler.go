package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"venuePresenceAPI/internal/logger"
	"venuePresenceAPI/internal/types/user"
)

const (
	maxWebhookBody    = int64(65536)
	webhookTimeSkew   = 5 * time.Minute
	clerkSecretPrefix = "whsec_"
	svixSignatureV1   = "v1,"
	svixHeaderID      = "svix-id"
	svixHeaderTime    = "svix-timestamp"
	svixHeaderSig     = "svix-signature"
)

type ProfileSync interface {
	UpsertProfile(ctx context.Context, p user.Profile) (*user.Profile, error)
	DeleteProfile(ctx context.Context, clerkID string) error
}

// ClerkSignature checks the svix headers Clerk signs its webhooks with.
type ClerkSignature struct {
	key []byte
	now func() time.Time
}

func NewClerkSignature(secret string, now func() time.Time) (*ClerkSignature, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(secret, clerkSecretPrefix))
	if err != nil {
		return nil, fmt.Errorf("invalid webhook secret: %w", err)
	}
	if now == nil {
		now = time.Now
	}
	return &ClerkSignature{key: key, now: now}, nil
}

// Sign returns the v1 signature header value for body; used by tests and
// local tooling that replays deliveries.
func (c *ClerkSignature) Sign(id string, ts time.Time, body []byte) string {
	mac := hmac.New(sha256.New, c.key)
	fmt.Fprintf(mac, "%s.%d.", id, ts.Unix())
	mac.Write(body)
	return svixSignatureV1 + base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Valid reports whether any signature in the header matches and the
// timestamp is within the allowed skew.
func (c *ClerkSignature) Valid(h http.Header, body []byte) bool {
	id := h.Get(svixHeaderID)
	rawTS := h.Get(svixHeaderTime)
	signatures := h.Get(svixHeaderSig)
	if id == "" || rawTS == "" || signatures == "" {
		return false
	}

	secs, err := strconv.ParseInt(rawTS, 10, 64)
	if err != nil {
		return false
	}
	ts := time.Unix(secs, 0)
	if skew := c.now().Sub(ts); skew > webhookTimeSkew || skew < -webhookTimeSkew {
		return false
	}

	expected := []byte(c.Sign(id, ts, body))
	for _, sig := range strings.Fields(signatures) {
		if hmac.Equal(expected, []byte(sig)) {
			return true
		}
	}
	return false
}

type WebhookHandler struct {
	profiles  ProfileSync
	signature *ClerkSignature
}

func NewWebhookHandler(profiles ProfileSync, signature *ClerkSignature) *WebhookHandler {
	return &WebhookHandler{profiles: profiles, signature: signature}
}

// HandleClerkWebhook mirrors user lifecycle events into the users table.
// Unknown event types are acknowledged so Clerk stops retrying them.
func (h *WebhookHandler) HandleClerkWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Error reading body")
		return
	}

	if !h.signature.Valid(r.Header, body) {
		logger.Log.Warn("Rejected Clerk webhook with invalid signature")
		respondWithError(w, http.StatusUnauthorized, "Invalid signature")
		return
	}

	var event user.ClerkWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		respondWithError(w, http.StatusBadRequest, "Error parsing webhook")
		return
	}

	var data user.ClerkUserData
	if isUserEvent(event.Type) {
		if err := json.Unmarshal(event.Data, &data); err != nil || data.ID == "" {
			respondWithError(w, http.StatusBadRequest, "Missing user data")
			return
		}
	}

	ctx := r.Context()
	switch event.Type {
	case "user.created", "user.updated":
		if _, err := h.profiles.UpsertProfile(ctx, data.Profile()); err != nil {
			logger.Log.Error("Failed to sync user profile", zap.String("event", event.Type), zap.String("clerk_id", data.ID), zap.Error(err))
			respondWithError(w, http.StatusInternalServerError, "Error processing webhook")
			return
		}
		logger.Log.Info("Synced user profile", zap.String("event", event.Type), zap.String("clerk_id", data.ID))

	case "user.deleted":
		if err := h.profiles.DeleteProfile(ctx, data.ID); err != nil {
			logger.Log.Error("Failed to delete user profile", zap.String("clerk_id", data.ID), zap.Error(err))
			respondWithError(w, http.StatusInternalServerError, "Error processing webhook")
			return
		}
		logger.Log.Info("Deleted user profile", zap.String("clerk_id", data.ID))

	default:
		logger.Log.Debug("Unhandled Clerk webhook event", zap.String("event", event.Type))
	}

	respondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func isUserEvent(t string) bool {
	return t == "user.created" || t == "user.updated" || t == "user.deleted"
}

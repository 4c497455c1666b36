package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"venuePresenceAPI/internal/logger"
	"venuePresenceAPI/internal/types/session"
	"venuePresenceAPI/middleware"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type SessionService interface {
	Open(userID, conversationID string, initialSeconds int) (session.Snapshot, error)
	Get(userID, conversationID string) (session.Snapshot, error)
	Extend(ctx context.Context, userID, conversationID string, creditCost int) (bool, session.Snapshot, error)
	Close(userID, conversationID string) error
	Subscribe(userID, conversationID string) (<-chan session.Snapshot, func(), error)
}

type SessionHandler struct {
	sessions SessionService
}

func NewSessionHandler(sessions SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

func (h *SessionHandler) OpenSession(w http.ResponseWriter, r *http.Request) {
	clerkID, ok := middleware.GetClerkID(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req session.OpenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ConversationID == "" {
		respondWithError(w, http.StatusBadRequest, "conversation_id is required")
		return
	}
	if req.InitialSeconds < 0 {
		respondWithError(w, http.StatusBadRequest, "initial_seconds must not be negative")
		return
	}

	snap, err := h.sessions.Open(clerkID, req.ConversationID, req.InitialSeconds)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, snap)
}

func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	clerkID, ok := middleware.GetClerkID(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	snap, err := h.sessions.Get(clerkID, mux.Vars(r)["conversationID"])
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, snap)
}

// ExtendSession answers 402 when the user cannot afford the extension.
func (h *SessionHandler) ExtendSession(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req session.ExtendRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	extended, snap, err := h.sessions.Extend(ctx, clerkID, mux.Vars(r)["conversationID"], req.CreditCost)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	code := http.StatusOK
	if !extended {
		code = http.StatusPaymentRequired
	}
	respondWithJSON(w, code, session.ExtendResponse{Extended: extended, Session: snap})
}

func (h *SessionHandler) CloseSession(w http.ResponseWriter, r *http.Request) {
	clerkID, ok := middleware.GetClerkID(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	if err := h.sessions.Close(clerkID, mux.Vars(r)["conversationID"]); err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SessionFeed streams countdown snapshots over a websocket until the
// session closes or the client goes away.
func (h *SessionHandler) SessionFeed(w http.ResponseWriter, r *http.Request) {
	clerkID, ok := middleware.GetClerkID(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	conversationID := mux.Vars(r)["conversationID"]
	updates, unsubscribe, err := h.sessions.Subscribe(clerkID, conversationID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	defer unsubscribe()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Warn("Could not upgrade connection", zap.Error(err))
		return
	}
	defer conn.Close()

	gone := make(chan struct{})
	go readUntilClosed(conn, gone)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-gone:
			return
		case snap, ok := <-updates:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
				return
			}
			if err := conn.WriteJSON(snap); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readUntilClosed drains client frames so pongs and close frames are
// processed, and closes gone when the connection drops.
func readUntilClosed(conn *websocket.Conn, gone chan struct{}) {
	defer close(gone)
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

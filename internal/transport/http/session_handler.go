package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"trivia-session-service/internal/app"
	"trivia-session-service/internal/auth"
	"trivia-session-service/internal/domain"
)

// SessionHandler exposes the REST surface for creating and joining sessions.
// Tokens issued here are what the websocket endpoint later authenticates.
type SessionHandler struct {
	engine *app.Engine
	tokens *auth.TokenService
}

func NewSessionHandler(engine *app.Engine, tokens *auth.TokenService) *SessionHandler {
	return &SessionHandler{engine: engine, tokens: tokens}
}

// Register wires the handler's routes onto the mux.
func (h *SessionHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/sessions/create", h.CreateSession)
	mux.HandleFunc("/api/sessions/join", h.JoinSession)
	mux.HandleFunc("/api/sessions/refresh-token", h.RefreshToken)
}

// CreateSession allocates an empty session and issues tokens binding the
// requesting user to it. The creator still has to join (first joiner gets
// the creator role).
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	userID := r.FormValue("userID")
	password := r.FormValue("password")
	if userID == "" || password == "" {
		writeError(w, http.StatusBadRequest, "missing userID or password")
		return
	}

	sessionID := h.engine.CreateSession(password)
	pair, err := h.tokens.Issue(userID, sessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"sessionID":    sessionID,
		"token":        pair.Token,
		"refreshToken": pair.RefreshToken,
	})
}

// JoinSession is the password-gated strict join.
func (h *SessionHandler) JoinSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	sessionID := r.FormValue("sessionId")
	userID := r.FormValue("userID")
	password := r.FormValue("password")
	avatar := r.FormValue("avatar")
	if sessionID == "" || userID == "" {
		writeError(w, http.StatusBadRequest, "missing sessionId or userID")
		return
	}

	if _, err := h.engine.JoinSession(sessionID, userID, password, avatar); err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	pair, err := h.tokens.Issue(userID, sessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"userID":       userID,
		"token":        pair.Token,
		"refreshToken": pair.RefreshToken,
	})
}

// RefreshToken exchanges a valid refresh token for a new pair.
func (h *SessionHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "missing refreshToken")
		return
	}
	pair, err := h.tokens.Refresh(body.RefreshToken)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"token":        pair.Token,
		"refreshToken": pair.RefreshToken,
	})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrMemberNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrWrongPassword):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrMemberExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNotCreator):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrSourceUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrNoQuestions), errors.Is(err, domain.ErrNoActiveGame):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gsalazar/workchat/internal/domain"
	"github.com/gsalazar/workchat/internal/session"
)

// sessionCookie is the cookie carrying the opaque session token.
const sessionCookie = "session"

// UserDirectory records every authenticated user.
type UserDirectory interface {
	Upsert(ctx context.Context, user domain.Identity) error
}

// SessionCloser lets logout drop the session's live chat connections.
type SessionCloser interface {
	DisconnectSession(sessionID string)
}

// Handlers serves the login, session, and profile endpoints.
type Handlers struct {
	oauth    *OAuthService
	sessions session.Store
	users    UserDirectory // may be nil when no directory is configured
	closer   SessionCloser
	logger   *slog.Logger
}

func NewHandlers(oauth *OAuthService, sessions session.Store, users UserDirectory, closer SessionCloser, logger *slog.Logger) *Handlers {
	return &Handlers{
		oauth:    oauth,
		sessions: sessions,
		users:    users,
		closer:   closer,
		logger:   logger.With("component", "auth"),
	}
}

// Login redirects the browser to Google's consent screen.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	url, err := h.oauth.AuthURL()
	if err != nil {
		h.logger.Error("failed to build auth URL", "error", err)
		http.Error(w, `{"error":"login unavailable"}`, http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}

// Callback finishes the OAuth flow: validates state, exchanges the code,
// records the user, creates a session, and sets the session cookie.
func (h *Handlers) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if errParam := q.Get("error"); errParam != "" {
		h.logger.Warn("OAuth error from Google", "error", errParam)
		http.Error(w, "Authentication cancelled.", http.StatusBadRequest)
		return
	}
	if !h.oauth.ValidateState(q.Get("state")) {
		http.Error(w, "Invalid authentication state.", http.StatusBadRequest)
		return
	}
	code := q.Get("code")
	if code == "" {
		http.Error(w, "Missing code in callback.", http.StatusBadRequest)
		return
	}

	googleUser, err := h.oauth.ExchangeCode(r.Context(), code)
	if err != nil {
		h.logger.Error("OAuth exchange failed", "error", err)
		http.Error(w, "OAuth error.", http.StatusBadGateway)
		return
	}

	user := googleUser.Identity()
	if h.users != nil {
		// Directory write failures must not block login.
		if err := h.users.Upsert(r.Context(), user); err != nil {
			h.logger.Error("user directory upsert failed", "error", err, "email", user.Email)
		}
	}

	id, err := h.sessions.Create(r.Context(), user)
	if err != nil {
		h.logger.Error("session create failed", "error", err)
		http.Error(w, `{"error":"session unavailable"}`, http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	h.logger.Info("login successful", "email", user.Email)
	http.Redirect(w, r, "/", http.StatusFound)
}

// Session returns the current session, or 401 when none is valid.
func (h *Handlers) Session(w http.ResponseWriter, r *http.Request) {
	id, sess, ok := h.currentSession(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": id,
		"user":       sess.User,
	})
}

// Logout deletes the session, expires the cookie, and closes the session's
// live connections.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookie); err == nil && cookie.Value != "" {
		if err := h.sessions.Delete(r.Context(), cookie.Value); err != nil {
			h.logger.Error("session delete failed", "error", err)
		}
		if h.closer != nil {
			h.closer.DisconnectSession(cookie.Value)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/", http.StatusFound)
}

// SetName updates the session's display name. Blank input falls back to a
// generated guest name, matching the behavior clients already rely on.
func (h *Handlers) SetName(w http.ResponseWriter, r *http.Request) {
	id, _, ok := h.currentSession(w, r)
	if !ok {
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	// Malformed bodies behave like an empty name.
	_ = json.NewDecoder(r.Body).Decode(&req)

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = guestName()
	}

	if _, err := h.sessions.SetDisplayName(r.Context(), id, name); err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "invalid session"})
			return
		}
		h.logger.Error("set display name failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "name": name})
}

// currentSession resolves the request's cookie, writing the 401 itself when
// the session is missing or invalid.
func (h *Handlers) currentSession(w http.ResponseWriter, r *http.Request) (string, *session.Session, bool) {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil || cookie.Value == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "no session"})
		return "", nil, false
	}

	sess, err := h.sessions.Get(r.Context(), cookie.Value)
	if err != nil {
		if !errors.Is(err, domain.ErrSessionNotFound) {
			h.logger.Error("session lookup failed", "error", err)
		}
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "invalid session"})
		return "", nil, false
	}
	return cookie.Value, sess, true
}

func guestName() string {
	b := make([]byte, 3)
	_, _ = rand.Read(b)
	return "guest_" + hex.EncodeToString(b)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

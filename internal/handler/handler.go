// Package handler is the HTTP boundary: it translates API calls into quiz
// session transitions, bank operations, and generation runs. Quiz state
// lives server-side, one session per browser, keyed by a cookie.
package handler

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"

	"github.com/ktanaka/fireprep/internal/bank"
	"github.com/ktanaka/fireprep/internal/quiz"
)

const cookieName = "fireprep"

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	banks     *bank.Adapter
	generator Generator
	cookies   *sessions.CookieStore

	mu       sync.Mutex
	sessions map[string]*quiz.Session

	secureCookies bool
}

// New creates a new Handler. sessionKey signs the session cookie.
func New(banks *bank.Adapter, generator Generator, sessionKey []byte, secureCookies bool) *Handler {
	store := sessions.NewCookieStore(sessionKey)
	store.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		Secure:   secureCookies,
	}
	return &Handler{
		banks:         banks,
		generator:     generator,
		cookies:       store,
		sessions:      make(map[string]*quiz.Session),
		secureCookies: secureCookies,
	}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/api/quiz/question", h.handleDraw)
	r.Post("/api/quiz/answer", h.handleAnswer)
	r.Get("/api/quiz/reveal", h.handleReveal)
	r.Get("/api/genres", h.handleGenres)
	r.Get("/api/banks/{bank}", h.handleBankTable)
	r.Post("/api/banks/{bank}/reset", h.handleBankReset)
	r.Post("/api/generate", h.handleGenerate)
}

// quizSession returns the quiz session for this browser, creating one when
// none exists or when the requested mode differs from the current one.
// Switching modes starts a fresh session.
func (h *Handler) quizSession(w http.ResponseWriter, r *http.Request, mode quiz.Mode) *quiz.Session {
	sid := h.sessionID(w, r)

	h.mu.Lock()
	defer h.mu.Unlock()
	sess, ok := h.sessions[sid]
	if !ok || sess.Mode != mode {
		sess = quiz.NewSession(mode)
		h.sessions[sid] = sess
	}
	return sess
}

// currentSession returns the existing quiz session for this browser, or nil.
func (h *Handler) currentSession(w http.ResponseWriter, r *http.Request) *quiz.Session {
	sid := h.sessionID(w, r)

	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sessions[sid]
}

func (h *Handler) sessionID(w http.ResponseWriter, r *http.Request) string {
	cookie, err := h.cookies.Get(r, cookieName)
	if err != nil {
		// Tampered or stale cookie: start over with a fresh one.
		slog.Debug("invalid session cookie", "error", err)
	}
	if sid, ok := cookie.Values["sid"].(string); ok && sid != "" {
		return sid
	}

	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	sid := hex.EncodeToString(buf)
	cookie.Values["sid"] = sid
	if err := cookie.Save(r, w); err != nil {
		slog.Error("save session cookie", "error", err)
	}
	return sid
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

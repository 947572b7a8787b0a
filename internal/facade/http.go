// ABOUTME: HTTP control API over the facade operations using chi
// ABOUTME: Bearer auth accepts either an issued API key or an exchanged JWT

package facade

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"

	"github.com/chatpilot-app/chatpilot/internal/analytics"
	"github.com/chatpilot-app/chatpilot/internal/profile"
)

// Server exposes the facade contract over HTTP.
type Server struct {
	svc    *Service
	keys   *KeyStore
	issuer *JWTIssuer
	logger *slog.Logger

	limitRPS float64
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewServer creates the HTTP facade. limitRPS bounds per-credential request
// rates; zero disables limiting.
func NewServer(svc *Service, keys *KeyStore, issuer *JWTIssuer, limitRPS float64) *Server {
	return &Server{
		svc:      svc,
		keys:     keys,
		issuer:   issuer,
		logger:   slog.Default().With("component", "facade-http"),
		limitRPS: limitRPS,
		limiters: map[string]*rate.Limiter{},
	}
}

// Router builds the chi router with all facade routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Post("/v1/auth/token", s.handleTokenExchange)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/v1/settings", s.handleGetSettings)
		r.Put("/v1/settings", s.handleUpdateSettings)
		r.Get("/v1/license", s.handleGetLicense)
		r.Get("/v1/analytics", s.handleGetAnalytics)
		r.Put("/v1/analytics", s.handleUpdateAnalytics)
		r.Get("/v1/credits", s.handleGetCredits)
	})

	return r
}

// extractBearerToken extracts a bearer token from the Authorization header.
// Returns the token and an error message (empty if successful).
func extractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

// authenticate resolves a bearer credential to an API key id. Exchanged JWTs
// are checked first, then the raw key records.
func (s *Server) authenticate(r *http.Request) (string, string) {
	token, errMsg := extractBearerToken(r.Header.Get("Authorization"))
	if errMsg != "" {
		return "", errMsg
	}

	if s.issuer != nil {
		if keyID, err := s.issuer.Verify(token); err == nil {
			return keyID, ""
		}
	}

	key, err := s.keys.Authenticate(r.Context(), token)
	if err != nil {
		return "", "invalid credential"
	}
	return key.ID, ""
}

// authMiddleware enforces bearer auth and per-credential rate limits on every
// route except the liveness check.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		keyID, errMsg := s.authenticate(r)
		if errMsg != "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": errMsg})
			return
		}

		if !s.allow(keyID) {
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// allow checks the per-credential rate limiter.
func (s *Server) allow(keyID string) bool {
	if s.limitRPS <= 0 {
		return true
	}
	s.mu.Lock()
	limiter, ok := s.limiters[keyID]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(s.limitRPS), int(s.limitRPS)+1)
		s.limiters[keyID] = limiter
	}
	s.mu.Unlock()
	return limiter.Allow()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleTokenExchange swaps a valid API key for a short-lived JWT.
func (s *Server) handleTokenExchange(w http.ResponseWriter, r *http.Request) {
	if s.issuer == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "token exchange not configured (no jwt_secret)"})
		return
	}

	token, errMsg := extractBearerToken(r.Header.Get("Authorization"))
	if errMsg != "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": errMsg})
		return
	}

	key, err := s.keys.Authenticate(r.Context(), token)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credential"})
		return
	}

	signed, err := s.issuer.Generate(key.ID, defaultTokenTTL)
	if err != nil {
		s.logger.Error("minting token failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to generate token"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"token":     signed,
		"expiresAt": time.Now().Add(defaultTokenTTL).UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.svc.GetSettings(r.Context())
	if err != nil {
		s.writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var patch profile.SettingsPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeJSON(w, http.StatusBadRequest, OpError{Code: "validation", Message: "malformed settings patch"})
		return
	}
	settings, err := s.svc.UpdateSettings(r.Context(), patch)
	if err != nil {
		s.writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleGetLicense(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.GetLicense(r.Context()))
}

func (s *Server) handleGetAnalytics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.GetAnalytics(r.Context()))
}

func (s *Server) handleUpdateAnalytics(w http.ResponseWriter, r *http.Request) {
	var patch analytics.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeJSON(w, http.StatusBadRequest, OpError{Code: "validation", Message: "malformed analytics patch"})
		return
	}
	stats, err := s.svc.UpdateAnalytics(r.Context(), patch)
	if err != nil {
		s.writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleGetCredits(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.GetCredits(r.Context()))
}

// writeOpError maps facade error codes onto HTTP statuses.
func (s *Server) writeOpError(w http.ResponseWriter, err error) {
	opErr := NewOpError(err)
	status := http.StatusInternalServerError
	switch opErr.Code {
	case "validation":
		status = http.StatusBadRequest
	case "not_found":
		status = http.StatusNotFound
	case "protected":
		status = http.StatusForbidden
	case "limit_exceeded":
		status = http.StatusConflict
	case "quota_exhausted":
		status = http.StatusTooManyRequests
	case "needs_migration":
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("operation failed", "error", err)
	}
	writeJSON(w, status, opErr)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil && !errors.Is(err, http.ErrHandlerTimeout) {
		slog.Warn("writing response failed", "error", err)
	}
}

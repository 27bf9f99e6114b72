package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/antigravity-dev/agencyos/internal/config"
)

// AuthMiddleware gates the /api/v2/intelligence/* endpoint family behind a
// bearer token. When no token is configured, auth is disabled entirely
// (operator-only deployment, per §6) — every other endpoint is always open.
type AuthMiddleware struct {
	cfg       config.API
	logger    *slog.Logger
	auditFile *os.File
}

// NewAuthMiddleware creates a new auth middleware.
func NewAuthMiddleware(cfg config.API, logger *slog.Logger) (*AuthMiddleware, error) {
	am := &AuthMiddleware{
		cfg:    cfg,
		logger: logger,
	}

	if cfg.AuditLog != "" {
		f, err := os.OpenFile(cfg.AuditLog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit log %q: %w", cfg.AuditLog, err)
		}
		am.auditFile = f
	}

	return am, nil
}

// Close closes the audit log file.
func (am *AuthMiddleware) Close() error {
	if am.auditFile != nil {
		return am.auditFile.Close()
	}
	return nil
}

// AuditEvent represents an audit log entry for an intelligence-endpoint request.
type AuditEvent struct {
	Timestamp  time.Time `json:"timestamp"`
	RemoteAddr string    `json:"remote_addr"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	UserAgent  string    `json:"user_agent,omitempty"`
	Authorized bool      `json:"authorized"`
	Token      string    `json:"token,omitempty"`
	Error      string    `json:"error,omitempty"`
	StatusCode int       `json:"status_code"`
	Duration   string    `json:"duration"`
}

func (am *AuthMiddleware) logAuditEvent(event AuditEvent) {
	if am.auditFile == nil {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		am.logger.Error("failed to marshal audit event", "error", err)
		return
	}

	if _, err := am.auditFile.Write(append(data, '\n')); err != nil {
		am.logger.Error("failed to write audit event", "error", err)
	}
}

func truncateToken(token string) string {
	if len(token) <= 8 {
		return strings.Repeat("*", len(token))
	}
	return token[:4] + "****"
}

func extractToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}

	parts := strings.Split(auth, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}

	return parts[1]
}

func (am *AuthMiddleware) isValidToken(token string) bool {
	if token == "" {
		return false
	}
	return token == am.cfg.IntelligenceToken
}

// isIntelligenceEndpoint reports whether path falls under the gated family.
func isIntelligenceEndpoint(path string) bool {
	return strings.HasPrefix(path, "/api/v2/intelligence/")
}

// RequireIntelligenceAuth wraps an http.Handler, enforcing bearer-token auth
// on /api/v2/intelligence/* only. When IntelligenceToken is unset, auth is
// disabled and every request passes through unaudited.
func (am *AuthMiddleware) RequireIntelligenceAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isIntelligenceEndpoint(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		if am.cfg.IntelligenceToken == "" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		event := AuditEvent{
			Timestamp:  start,
			RemoteAddr: r.RemoteAddr,
			Method:     r.Method,
			Path:       r.URL.Path,
			UserAgent:  r.Header.Get("User-Agent"),
		}
		defer func() {
			event.Duration = time.Since(start).String()
			am.logAuditEvent(event)
		}()

		token := extractToken(r)
		event.Token = truncateToken(token)

		if !am.isValidToken(token) {
			event.Authorized = false
			event.Error = "invalid or missing token"
			event.StatusCode = http.StatusUnauthorized
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeError(w, http.StatusUnauthorized, "unauthorized: valid bearer token required")
			return
		}

		event.Authorized = true
		next.ServeHTTP(w, r)
	})
}

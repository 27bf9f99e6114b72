package api

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/antigravity-dev/agencyos/internal/config"
)

func TestAuthMiddleware_Disabled(t *testing.T) {
	cfg := config.API{}

	middleware, err := NewAuthMiddleware(cfg, slog.New(slog.NewTextHandler(os.Stderr, nil)))
	if err != nil {
		t.Fatalf("failed to create auth middleware: %v", err)
	}
	defer middleware.Close()

	handler := middleware.RequireIntelligenceAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("success"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v2/intelligence/snapshot", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200 when no token is configured, got %d", w.Code)
	}
}

func TestAuthMiddleware_TokenAuth(t *testing.T) {
	cfg := config.API{IntelligenceToken: "valid-token-123456"}

	middleware, err := NewAuthMiddleware(cfg, slog.New(slog.NewTextHandler(os.Stderr, nil)))
	if err != nil {
		t.Fatalf("failed to create auth middleware: %v", err)
	}
	defer middleware.Close()

	handler := middleware.RequireIntelligenceAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("success"))
	}))

	// no token at all
	req := httptest.NewRequest(http.MethodGet, "/api/v2/intelligence/snapshot", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401 with no token, got %d", w.Code)
	}

	// invalid token
	req = httptest.NewRequest(http.MethodGet, "/api/v2/intelligence/snapshot", nil)
	req.Header.Set("Authorization", "Bearer wrong-token")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401 with an invalid token, got %d", w.Code)
	}

	// valid token
	req = httptest.NewRequest(http.MethodGet, "/api/v2/intelligence/snapshot", nil)
	req.Header.Set("Authorization", "Bearer valid-token-123456")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("expected status 200 with a valid token, got %d", w.Code)
	}
}

func TestAuthMiddleware_NonIntelligenceEndpointAlwaysPasses(t *testing.T) {
	cfg := config.API{IntelligenceToken: "valid-token-123456"}

	middleware, err := NewAuthMiddleware(cfg, slog.New(slog.NewTextHandler(os.Stderr, nil)))
	if err != nil {
		t.Fatalf("failed to create auth middleware: %v", err)
	}
	defer middleware.Close()

	handler := middleware.RequireIntelligenceAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("success"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v2/snapshot", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected a non-intelligence endpoint to pass without a token, got %d", w.Code)
	}
}

func TestAuthMiddleware_AuditLogging(t *testing.T) {
	tmpDir := t.TempDir()
	auditPath := filepath.Join(tmpDir, "audit.log")

	cfg := config.API{IntelligenceToken: "valid-token-123456", AuditLog: auditPath}

	middleware, err := NewAuthMiddleware(cfg, slog.New(slog.NewTextHandler(os.Stderr, nil)))
	if err != nil {
		t.Fatalf("failed to create auth middleware: %v", err)
	}
	defer middleware.Close()

	handler := middleware.RequireIntelligenceAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("success"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v2/intelligence/snapshot", nil)
	req.Header.Set("Authorization", "Bearer valid-token-123456")
	req.Header.Set("User-Agent", "test-client/1.0")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)
	time.Sleep(10 * time.Millisecond)

	auditData, err := os.ReadFile(auditPath)
	if err != nil {
		t.Fatalf("failed to read audit log: %v", err)
	}
	if len(auditData) == 0 {
		t.Fatal("audit log is empty")
	}

	var event AuditEvent
	if err := json.Unmarshal(bytes.TrimSpace(auditData), &event); err != nil {
		t.Fatalf("failed to parse audit event: %v", err)
	}

	if event.Path != "/api/v2/intelligence/snapshot" {
		t.Errorf("expected path /api/v2/intelligence/snapshot, got %s", event.Path)
	}
	if !event.Authorized {
		t.Error("expected authorized=true")
	}
	if event.Token != "vali****" {
		t.Errorf("expected truncated token 'vali****', got %s", event.Token)
	}
	if event.UserAgent != "test-client/1.0" {
		t.Errorf("expected user agent 'test-client/1.0', got %s", event.UserAgent)
	}
}

func TestIsIntelligenceEndpoint(t *testing.T) {
	tests := []struct {
		path     string
		expected bool
	}{
		{"/api/v2/intelligence/snapshot", true},
		{"/api/v2/intelligence/resolution-queue", true},
		{"/api/v2/snapshot", false},
		{"/status", false},
		{"/api/v2/intelligence", false},
	}

	for _, tt := range tests {
		if actual := isIntelligenceEndpoint(tt.path); actual != tt.expected {
			t.Errorf("isIntelligenceEndpoint(%s) = %v, expected %v", tt.path, actual, tt.expected)
		}
	}
}

func TestExtractToken(t *testing.T) {
	tests := []struct {
		header   string
		expected string
	}{
		{"Bearer token123", "token123"},
		{"bearer token123", "token123"},
		{"BEARER token123", "token123"},
		{"Basic token123", ""},
		{"Bearer", ""},
		{"", ""},
		{"token123", ""},
		{"Bearer token_with_underscores", "token_with_underscores"},
		{"Bearer token with spaces", ""},
	}

	for _, tt := range tests {
		req := httptest.NewRequest("GET", "/", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}

		if actual := extractToken(req); actual != tt.expected {
			t.Errorf("extractToken(%q) = %q, expected %q", tt.header, actual, tt.expected)
		}
	}
}

// Package backoffice_test verifies the admin router's access controls
// without a database: the static token gate and the IP allowlist.
package backoffice_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/plaetorius/streambet/internal/backoffice"
	"github.com/plaetorius/streambet/internal/config"
)

func buildRouter(token, allowedIPs string) http.Handler {
	cfg := &config.Config{
		Server: config.ServerConfig{
			Env:                  "development",
			BackofficePort:       "8081",
			BackofficeToken:      token,
			BackofficeAllowedIPs: allowedIPs,
		},
	}
	return backoffice.SetupBackofficeRouter(backoffice.BackofficeDeps{
		MarketSvc: nil,
		BetRepo:   nil,
		Cfg:       cfg,
	})
}

func get(h http.Handler, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealth_NoTokenConfigured_Allows(t *testing.T) {
	h := buildRouter("", "")
	rr := get(h, "/health", nil)
	if rr.Code != http.StatusOK {
		t.Errorf("GET /health = %d, want 200", rr.Code)
	}
}

func TestAdmin_TokenConfigured_RejectsMissingToken(t *testing.T) {
	h := buildRouter("sekrit", "")
	rr := get(h, "/health", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("GET /health without token = %d, want 401", rr.Code)
	}
}

func TestAdmin_TokenConfigured_RejectsWrongToken(t *testing.T) {
	h := buildRouter("sekrit", "")
	rr := get(h, "/health", map[string]string{"Authorization": "Bearer nope"})
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("GET /health with wrong token = %d, want 401", rr.Code)
	}
}

func TestAdmin_TokenConfigured_AcceptsToken(t *testing.T) {
	h := buildRouter("sekrit", "")
	rr := get(h, "/health", map[string]string{"Authorization": "Bearer sekrit"})
	if rr.Code != http.StatusOK {
		t.Errorf("GET /health with token = %d, want 200", rr.Code)
	}
}

func TestAdmin_IPAllowlist_RejectsUnknownIP(t *testing.T) {
	h := buildRouter("", "10.0.0.1")
	// httptest requests come from 192.0.2.1, which is not allowlisted.
	rr := get(h, "/health", nil)
	if rr.Code != http.StatusForbidden {
		t.Errorf("GET /health from unlisted IP = %d, want 403", rr.Code)
	}
}

// Package api_test runs HTTP-level smoke tests using net/http/httptest.
// These tests do NOT require PostgreSQL, Redis, or a chain RPC — they verify:
//   - Gin router routing and middleware wiring
//   - Request validation error responses (400)
//   - Session middleware (401 without token, 401 with bad token)
//   - The anonymous bet path answering with a wallet action, not a 401
//   - Response format consistency (success/error envelope)
//   - CORS preflight handling
package api_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/plaetorius/streambet/internal/api"
	"github.com/plaetorius/streambet/internal/config"
	"github.com/plaetorius/streambet/internal/service"
)

// ── Test helpers ──────────────────────────────────────────────────────────────

func testCfg() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Env:  "development",
			Port: "8080",
		},
		JWT: config.JWTConfig{
			Secret: "test-secret-abcdefghijklmnopqrstuv",
			TTL:    time.Hour,
		},
		Chain: config.ChainConfig{
			ChainID: 84532,
		},
		Betting: config.BettingConfig{
			MinBet: 0.001,
			MaxBet: 10,
		},
	}
}

// buildTestRouter creates a Gin engine with a real ProfileService (no DB
// needed for token parsing) and a SettlementService whose stores are nil;
// only routes that never reach a store are exercised.
func buildTestRouter(t *testing.T) http.Handler {
	t.Helper()
	cfg := testCfg()
	log := slog.New(slog.DiscardHandler)

	profileSvc := service.NewProfileService(nil, cfg)
	settleSvc := service.NewSettlementService(cfg, nil, nil, nil, nil, nil, nil, log)

	return api.SetupRouter(api.RouterDeps{
		ProfileSvc: profileSvc,
		MarketSvc:  nil,
		SettleSvc:  settleSvc,
		BookSvc:    nil,
		BetRepo:    nil,
		Hub:        nil,
		Cfg:        cfg,
	})
}

func do(t *testing.T, h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&m); err != nil {
		t.Fatalf("response is not valid JSON: %v — body: %s", err, rr.Body.String())
	}
	return m
}

// ── /health ───────────────────────────────────────────────────────────────────

func TestHealthEndpoint(t *testing.T) {
	h := buildTestRouter(t)
	rr := do(t, h, http.MethodGet, "/health", "", nil)
	if rr.Code != http.StatusOK {
		t.Errorf("GET /health = %d, want 200", rr.Code)
	}
}

// ── Auth sync — validation layer ──────────────────────────────────────────────

func TestSync_MissingWallet(t *testing.T) {
	h := buildTestRouter(t)
	rr := do(t, h, http.MethodPost, "/api/auth/sync", `{}`, nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("POST /api/auth/sync empty body = %d, want 400", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["success"] != false {
		t.Errorf("response.success should be false on error, got %v", body["success"])
	}
	if body["code"] == nil {
		t.Errorf("error envelope missing 'code', got: %v", body)
	}
}

// ── Session middleware (no token → 401) ───────────────────────────────────────

func TestMe_NoToken_Returns401(t *testing.T) {
	h := buildTestRouter(t)
	rr := do(t, h, http.MethodGet, "/api/me", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("GET /api/me without token = %d, want 401", rr.Code)
	}
}

func TestConfirmedBets_NoToken_Returns401(t *testing.T) {
	h := buildTestRouter(t)
	rr := do(t, h, http.MethodGet, "/api/bets/confirmed", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("GET /api/bets/confirmed without token = %d, want 401", rr.Code)
	}
}

func TestMyBets_NoToken_Returns401(t *testing.T) {
	h := buildTestRouter(t)
	rr := do(t, h, http.MethodGet, "/api/bets/my", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("GET /api/bets/my without token = %d, want 401", rr.Code)
	}
}

// ── Session middleware (invalid token → 401) ──────────────────────────────────

func TestMe_InvalidToken_Returns401(t *testing.T) {
	h := buildTestRouter(t)
	rr := do(t, h, http.MethodGet, "/api/me", "", map[string]string{
		"Authorization": "Bearer not.a.valid.jwt",
	})
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("GET /api/me with bad token = %d, want 401", rr.Code)
	}
}

// ── Bet placement — anonymous callers get a wallet action, not a 401 ──────────

func TestPlaceBet_Anonymous_RequiresConnect(t *testing.T) {
	h := buildTestRouter(t)
	payload := `{"marketId":"11111111-1111-1111-1111-111111111111","isAnswerA":true,"amount":"0.05","chainId":84532}`
	rr := do(t, h, http.MethodPost, "/api/bets", payload, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("anonymous POST /api/bets = %d, want 200", rr.Code)
	}

	body := decodeBody(t, rr)
	data, _ := body["data"].(map[string]interface{})
	if data == nil {
		t.Fatalf("success envelope missing data, got: %v", body)
	}
	if data["requiresAction"] != "connect" {
		t.Errorf("requiresAction = %v, want %q", data["requiresAction"], "connect")
	}
}

func TestPlaceBet_MissingFields_Returns400(t *testing.T) {
	h := buildTestRouter(t)
	rr := do(t, h, http.MethodPost, "/api/bets", `{}`, nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("POST /api/bets empty body = %d, want 400", rr.Code)
	}
}

func TestPlaceBet_BadAmount_Returns400(t *testing.T) {
	h := buildTestRouter(t)
	payload := `{"marketId":"11111111-1111-1111-1111-111111111111","isAnswerA":true,"amount":"-1","chainId":84532}`
	rr := do(t, h, http.MethodPost, "/api/bets", payload, nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("POST /api/bets negative amount = %d, want 400", rr.Code)
	}
}

// ── Markets public endpoints ──────────────────────────────────────────────────

func TestMarkets_IsPublic(t *testing.T) {
	h := buildTestRouter(t)
	// No token: should NOT be 401. Will be 500 (nil marketSvc) — acceptable.
	rr := do(t, h, http.MethodGet, "/api/markets", "", nil)
	if rr.Code == http.StatusUnauthorized {
		t.Error("GET /api/markets should be a public endpoint (no 401)")
	}
}

// ── Error envelope format ─────────────────────────────────────────────────────

func TestErrorEnvelope_HasRequiredFields(t *testing.T) {
	h := buildTestRouter(t)
	rr := do(t, h, http.MethodPost, "/api/auth/sync", `{}`, nil)
	body := decodeBody(t, rr)

	for _, field := range []string{"success", "error", "code"} {
		if _, ok := body[field]; !ok {
			t.Errorf("error envelope missing field %q, got: %v", field, body)
		}
	}
	if body["success"] != false {
		t.Errorf("error envelope.success = %v, want false", body["success"])
	}
}

// ── CORS headers ──────────────────────────────────────────────────────────────

func TestCORSOptionsRequest(t *testing.T) {
	h := buildTestRouter(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/auth/sync", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent && rr.Code != http.StatusOK {
		t.Errorf("OPTIONS /api/auth/sync = %d, want 204 or 200", rr.Code)
	}
	allow := rr.Header().Get("Access-Control-Allow-Methods")
	if !strings.Contains(allow, "POST") {
		t.Errorf("Access-Control-Allow-Methods missing POST, got %q", allow)
	}
}

func TestCORSAllowOrigin_Dev(t *testing.T) {
	h := buildTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	origin := rr.Header().Get("Access-Control-Allow-Origin")
	if origin != "*" {
		t.Errorf("Dev CORS origin = %q, want *", origin)
	}
}

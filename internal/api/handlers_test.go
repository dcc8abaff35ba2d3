package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"rsi-trend-trader/internal/auth"
	"rsi-trend-trader/internal/logging"
	"rsi-trend-trader/internal/users"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hash, err := auth.HashPassword("hunter2")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	registry := users.NewRegistry()
	if _, err := registry.Add(42, "alice", 1000); err != nil {
		t.Fatalf("failed to register user: %v", err)
	}

	log := logging.New(&logging.Config{Level: "FATAL", Output: "stderr"})
	jwtManager := auth.NewJWTManager("test-secret", time.Hour)

	return NewServer(ServerConfig{
		Host:      "127.0.0.1",
		Port:      0,
		AdminUser: "admin",
		AdminHash: hash,
	}, registry, jwtManager, log)
}

func doRequest(s *Server, method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func login(t *testing.T, s *Server) string {
	t.Helper()
	w := doRequest(s, http.MethodPost, "/api/v1/login", `{"username":"admin","password":"hunter2"}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("login failed with status %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse login response: %v", err)
	}
	if resp.AccessToken == "" {
		t.Fatal("expected a non-empty access token")
	}
	return resp.AccessToken
}

func TestHealthEndpoint(t *testing.T) {
	s := testServer(t)
	w := doRequest(s, http.MethodGet, "/health", "", "")

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("Expected status 'ok', got '%v'", resp["status"])
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	s := testServer(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"wrong password", `{"username":"admin","password":"wrong"}`, http.StatusUnauthorized},
		{"wrong user", `{"username":"bob","password":"hunter2"}`, http.StatusUnauthorized},
		{"missing fields", `{"username":"admin"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(s, http.MethodPost, "/api/v1/login", tt.body, "")
			if w.Code != tt.want {
				t.Errorf("Expected status %d, got %d", tt.want, w.Code)
			}
		})
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := testServer(t)

	w := doRequest(s, http.MethodGet, "/api/v1/users", "", "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 without token, got %d", w.Code)
	}

	w = doRequest(s, http.MethodGet, "/api/v1/users", "", "not-a-token")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 with a bad token, got %d", w.Code)
	}
}

func TestListUsers(t *testing.T) {
	s := testServer(t)
	token := login(t, s)

	w := doRequest(s, http.MethodGet, "/api/v1/users", "", token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Users []struct {
			ID         int64    `json:"id"`
			Username   string   `json:"username"`
			Strategies []string `json:"strategies"`
		} `json:"users"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if len(resp.Users) != 1 {
		t.Fatalf("Expected 1 user, got %d", len(resp.Users))
	}
	if resp.Users[0].Username != "alice" {
		t.Errorf("Expected username 'alice', got '%s'", resp.Users[0].Username)
	}
	if len(resp.Users[0].Strategies) != 2 {
		t.Errorf("Expected 2 default strategies, got %d", len(resp.Users[0].Strategies))
	}
}

func TestBalanceForUnknownUser(t *testing.T) {
	s := testServer(t)
	token := login(t, s)

	w := doRequest(s, http.MethodGet, "/api/v1/users/999/balance", "", token)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}

	w = doRequest(s, http.MethodGet, "/api/v1/users/abc/balance", "", token)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for a bad id, got %d", w.Code)
	}
}

func TestBalanceReturnsInitialCapital(t *testing.T) {
	s := testServer(t)
	token := login(t, s)

	w := doRequest(s, http.MethodGet, "/api/v1/users/42/balance", "", token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Balances []struct {
			StrategyID  string  `json:"strategy_id"`
			FreeCapital float64 `json:"free_capital"`
		} `json:"balances"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if len(resp.Balances) != 2 {
		t.Fatalf("Expected 2 balances, got %d", len(resp.Balances))
	}
	for _, b := range resp.Balances {
		if b.FreeCapital != 1000 {
			t.Errorf("strategy %s: expected free capital 1000, got %v", b.StrategyID, b.FreeCapital)
		}
	}
}

func TestHistoryRejectsBadPagination(t *testing.T) {
	s := testServer(t)
	token := login(t, s)

	w := doRequest(s, http.MethodGet, "/api/v1/users/42/history?limit=-1", "", token)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for a negative limit, got %d", w.Code)
	}

	w = doRequest(s, http.MethodGet, "/api/v1/users/42/history?strategy=nope", "", token)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for an unknown strategy, got %d", w.Code)
	}
}

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nerrad567/ecolink-core/internal/infrastructure/config"
)

func testConfig(portalURL string) *config.Config {
	return &config.Config{
		Account: config.AccountConfig{
			Username:     "user@example.com",
			PasswordHash: "0123456789abcdef0123456789abcdef",
			Country:      "IT",
			ClientID:     "f4c2a1e89b7d4c6aa2f1",
		},
		Portal: config.PortalConfig{URLOverride: portalURL, RequestTimeout: 5},
	}
}

// loginServer fakes the three account service steps plus the portal.
func loginServer(t *testing.T, loginCode string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/private/", func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "user/login") {
			t.Errorf("unexpected account path %s", r.URL.Path)
		}
		if r.URL.Query().Get("authSign") == "" {
			t.Error("login request is unsigned")
		}
		json.NewEncoder(w).Encode(map[string]any{
			"code": loginCode,
			"data": map[string]any{"uid": "20230101abcdef", "accessToken": "at-token"},
		})
	})

	mux.HandleFunc("/v1/global/auth/getAuthCode", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"code": "0000",
			"data": map[string]any{"authCode": "ac-code"},
		})
	})

	mux.HandleFunc("/api/users/user.do", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"result": "ok",
			"userId": "20230101abcdef",
			"token":  "portal-token",
		})
	})

	return httptest.NewServer(mux)
}

func newTestClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()
	c := NewClient(testConfig(server.URL), nil)
	c.mainBase = server.URL
	c.authBase = server.URL
	return c
}

func TestAuthenticateCachesCredentials(t *testing.T) {
	server := loginServer(t, "0000")
	defer server.Close()
	c := newTestClient(t, server)

	var renewed atomic.Int32
	c.Subscribe(func(Credentials) { renewed.Add(1) })

	creds, err := c.Authenticate(context.Background())
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if creds.Token != "portal-token" || creds.UserID != "20230101abcdef" {
		t.Errorf("creds = %+v", creds)
	}

	// Second call must come from the cache and fire no listener.
	if _, err := c.Authenticate(context.Background()); err != nil {
		t.Fatalf("Authenticate (cached): %v", err)
	}
	if n := renewed.Load(); n != 1 {
		t.Errorf("listener fired %d times, want 1", n)
	}

	c.Invalidate()
	if _, err := c.Authenticate(context.Background()); err != nil {
		t.Fatalf("Authenticate (after invalidate): %v", err)
	}
	if n := renewed.Load(); n != 2 {
		t.Errorf("listener fired %d times after invalidate, want 2", n)
	}
}

func TestInvalidCredentialsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		json.NewEncoder(w).Encode(map[string]any{"code": "1005"})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := newTestClient(t, server)
	_, err := c.Authenticate(context.Background())
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("login attempted %d times, want 1", n)
	}
}

func TestGatewayErrorsAreRetried(t *testing.T) {
	oldDelay := gatewayRetryDelay
	gatewayRetryDelay = 10 * time.Millisecond
	defer func() { gatewayRetryDelay = oldDelay }()

	var calls atomic.Int32
	server := loginServer(t, "0000")
	defer server.Close()

	flaky := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"code": "0000",
			"data": map[string]any{"uid": "20230101abcdef", "accessToken": "at-token"},
		})
	}))
	defer flaky.Close()

	c := newTestClient(t, server)
	c.mainBase = flaky.URL

	if _, err := c.Authenticate(context.Background()); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("login attempted %d times, want 2", n)
	}
}

func TestPostAuthenticatedInjectsAuth(t *testing.T) {
	var gotBody map[string]any
	var gotQuery url.Values

	mux := http.NewServeMux()
	server := loginServer(t, "0000")
	defer server.Close()

	mux.HandleFunc("/api/iot/devmanager.do", func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]any{"ret": "ok", "resp": map[string]any{}})
	})
	portal := httptest.NewServer(mux)
	defer portal.Close()

	c := NewClient(testConfig(portal.URL), nil)
	c.mainBase = server.URL
	c.authBase = server.URL
	// The token exchange also goes through the portal override, which the
	// fake portal does not serve; seed the cache directly instead.
	creds, err := newTestClient(t, server).Authenticate(context.Background())
	if err != nil {
		t.Fatalf("seed login: %v", err)
	}
	c.mu.Lock()
	c.creds = &creds
	c.mu.Unlock()

	body := map[string]any{"cmdName": "getBattery", "td": "q"}
	if _, err := c.PostAuthenticated(context.Background(), "iot/devmanager.do", body, url.Values{"mid": {"yna5xi"}}); err != nil {
		t.Fatalf("PostAuthenticated: %v", err)
	}

	authBlock, ok := gotBody["auth"].(map[string]any)
	if !ok {
		t.Fatalf("auth block missing in %v", gotBody)
	}
	if authBlock["token"] != "portal-token" || authBlock["userid"] != "20230101abcdef" {
		t.Errorf("auth block = %v", authBlock)
	}
	if _, mutated := body["auth"]; mutated {
		t.Error("caller body was mutated")
	}
	if gotQuery.Get("u") != "20230101abcdef" || gotQuery.Get("mid") != "yna5xi" {
		t.Errorf("query = %v", gotQuery)
	}
}

package auth

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("test-secret")

func mustToken(t *testing.T, subject string, expiresAt time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func echoUserHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, UserIDFromContext(r.Context()))
	})
}

func TestMiddlewareRejectsMissingToken(t *testing.T) {
	middleware := NewMiddleware(testSecret, NewDefaultPolicy(nil, nil))
	server := middleware.Wrap(echoUserHandler())

	resp := httptest.NewRecorder()
	server.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/user/consent", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestMiddlewareAttachesSubject(t *testing.T) {
	middleware := NewMiddleware(testSecret, NewDefaultPolicy(nil, nil))
	server := middleware.Wrap(echoUserHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/user/consent", nil)
	req.Header.Set("Authorization", "Bearer "+mustToken(t, "user-1", time.Now().Add(time.Hour)))
	resp := httptest.NewRecorder()
	server.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if resp.Body.String() != "user-1" {
		t.Fatalf("expected subject user-1, got %q", resp.Body.String())
	}
}

func TestMiddlewareRejectsExpiredToken(t *testing.T) {
	middleware := NewMiddleware(testSecret, NewDefaultPolicy(nil, nil))
	server := middleware.Wrap(echoUserHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/user/consent", nil)
	req.Header.Set("Authorization", "Bearer "+mustToken(t, "user-1", time.Now().Add(-time.Hour)))
	resp := httptest.NewRecorder()
	server.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for expired token, got %d", resp.Code)
	}
}

func TestMiddlewareExemptions(t *testing.T) {
	middleware := NewMiddleware(testSecret, NewDefaultPolicy([]string{"/healthz"}, []string{"/ingest/"}))
	server := middleware.Wrap(echoUserHandler())

	for _, path := range []string{"/healthz", "/ingest/data"} {
		resp := httptest.NewRecorder()
		server.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("expected %s exempt, got %d", path, resp.Code)
		}
	}
}

func TestResolveUserAcceptsBareToken(t *testing.T) {
	token := mustToken(t, "user-2", time.Now().Add(time.Hour))
	for _, header := range []string{token, "Bearer " + token, "bearer " + token} {
		userID, err := ResolveUser(header, testSecret)
		if err != nil {
			t.Fatalf("resolve %q: %v", header, err)
		}
		if userID != "user-2" {
			t.Fatalf("expected user-2, got %q", userID)
		}
	}
}

func TestIngestAuthValidSignature(t *testing.T) {
	body := []byte(`{"timestamp":"08:45"}`)
	secret := []byte("ingest-secret")
	middleware := NewIngestAuthMiddleware(secret, 5*time.Minute, "gateway")
	server := middleware.Wrap(echoUserHandler())

	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	req := httptest.NewRequest(http.MethodPost, "/ingest/data", bytes.NewReader(body))
	req.Header.Set("X-Ingest-Timestamp", timestamp)
	req.Header.Set("X-Ingest-Signature", computeIngestSignature(secret, timestamp, body))
	resp := httptest.NewRecorder()
	server.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if resp.Body.String() != "gateway" {
		t.Fatalf("expected gateway identity, got %q", resp.Body.String())
	}
}

func TestIngestAuthRejectsBadSignature(t *testing.T) {
	secret := []byte("ingest-secret")
	middleware := NewIngestAuthMiddleware(secret, 5*time.Minute, "gateway")
	server := middleware.Wrap(echoUserHandler())

	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	req := httptest.NewRequest(http.MethodPost, "/ingest/data", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("X-Ingest-Timestamp", timestamp)
	req.Header.Set("X-Ingest-Signature", "deadbeef")
	resp := httptest.NewRecorder()
	server.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestIngestAuthRejectsStaleTimestamp(t *testing.T) {
	secret := []byte("ingest-secret")
	body := []byte(`{}`)
	middleware := NewIngestAuthMiddleware(secret, time.Minute, "gateway")
	server := middleware.Wrap(echoUserHandler())

	timestamp := strconv.FormatInt(time.Now().Add(-time.Hour).Unix(), 10)
	req := httptest.NewRequest(http.MethodPost, "/ingest/data", bytes.NewReader(body))
	req.Header.Set("X-Ingest-Timestamp", timestamp)
	req.Header.Set("X-Ingest-Signature", computeIngestSignature(secret, timestamp, body))
	resp := httptest.NewRecorder()
	server.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for stale timestamp, got %d", resp.Code)
	}
}

func TestIngestAuthNoSecretPassesThrough(t *testing.T) {
	middleware := NewIngestAuthMiddleware(nil, time.Minute, "gateway")
	server := middleware.Wrap(echoUserHandler())

	resp := httptest.NewRecorder()
	server.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/ingest/data", bytes.NewReader([]byte(`{}`))))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if resp.Body.String() != "" {
		t.Fatalf("expected unattributed request, got %q", resp.Body.String())
	}
}

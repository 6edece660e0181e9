package octohub

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestStaticURL(t *testing.T) {
	url, err := StaticURL(testURL).Resolve(context.Background())
	if err != nil || url != testURL {
		t.Errorf("Resolve() = %q, %v, want %q", url, err, testURL)
	}

	_, err = StaticURL("").Resolve(context.Background())
	var resErr *ResolveError
	if !errors.As(err, &resErr) {
		t.Errorf("Resolve() with empty URL = %v, want *ResolveError", err)
	}
}

func TestNewHTTPResolver_RequiresBaseURL(t *testing.T) {
	t.Setenv("OCTOHUB_API_BASE_URL", "")
	if _, err := NewHTTPResolver(HTTPResolverConfig{}); err == nil {
		t.Fatal("NewHTTPResolver() should error when BaseURL is missing")
	}
}

func TestNewHTTPResolver_Endpoint(t *testing.T) {
	tests := []struct {
		base, path, want string
	}{
		{"http://localhost:8080/api", "", "http://localhost:8080/api/user/ws"},
		{"http://localhost:8080/api/", "/user/ws", "http://localhost:8080/api/user/ws"},
		{"https://hub.example.com", "v2/socket", "https://hub.example.com/v2/socket"},
	}
	for _, tt := range tests {
		r, err := NewHTTPResolver(HTTPResolverConfig{BaseURL: tt.base, Path: tt.path})
		if err != nil {
			t.Fatalf("NewHTTPResolver() error: %v", err)
		}
		if got := r.Endpoint(); got != tt.want {
			t.Errorf("Endpoint() = %q, want %q", got, tt.want)
		}
	}
}

func TestNewHTTPResolver_EnvFallback(t *testing.T) {
	t.Setenv("OCTOHUB_API_BASE_URL", "http://env-host:8080/api")
	t.Setenv("OCTOHUB_API_TOKEN", "env-token")

	r, err := NewHTTPResolver(HTTPResolverConfig{})
	if err != nil {
		t.Fatalf("NewHTTPResolver() error: %v", err)
	}
	if r.Endpoint() != "http://env-host:8080/api/user/ws" {
		t.Errorf("Endpoint() = %q, want env value", r.Endpoint())
	}
	if r.token != "env-token" {
		t.Errorf("token = %q, want env value", r.token)
	}
}

type seenRequest struct {
	path string
	auth string
}

func newResolverServer(t *testing.T, status int, body string) (*HTTPResolver, *seenRequest) {
	t.Helper()
	seen := &seenRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.path = r.URL.Path
		seen.auth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	r, err := NewHTTPResolver(HTTPResolverConfig{BaseURL: srv.URL + "/api", Token: "secret"})
	if err != nil {
		t.Fatalf("NewHTTPResolver() error: %v", err)
	}
	return r, seen
}

func TestHTTPResolver_Success(t *testing.T) {
	r, seen := newResolverServer(t, http.StatusOK,
		`{"errcode":0,"errmsg":"ok","data":{"wsUrl":"ws://hub:8080/ws?sign=abc"}}`)

	url, err := r.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if url != "ws://hub:8080/ws?sign=abc" {
		t.Errorf("Resolve() = %q", url)
	}
	if seen.path != "/api/user/ws" {
		t.Errorf("path = %q, want /api/user/ws", seen.path)
	}
	if got := seen.auth; got != "Bearer secret" {
		t.Errorf("Authorization = %q, want Bearer secret", got)
	}
}

func TestHTTPResolver_Failures(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantCode   int
		wantReason string
		wantCause  string
	}{
		{"envelope error", http.StatusOK, `{"errcode":40012,"errmsg":"session expired"}`, 40012, "session expired", ""},
		{"server error", http.StatusBadGateway, `<html>bad gateway</html>`, 0, "502 Bad Gateway", ""},
		{"status without message", http.StatusForbidden, `{"errcode":0}`, 0, "403 Forbidden", ""},
		{"missing url", http.StatusOK, `{"errcode":0,"data":{}}`, 0, "", "no wsUrl"},
		{"invalid json", http.StatusOK, `not json`, 0, "", "parse response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newResolverServer(t, tt.status, tt.body)

			_, err := r.Resolve(context.Background())
			var resErr *ResolveError
			if !errors.As(err, &resErr) {
				t.Fatalf("Resolve() error = %v, want *ResolveError", err)
			}
			if resErr.Status != tt.status {
				t.Errorf("Status = %d, want %d", resErr.Status, tt.status)
			}
			if resErr.Code != tt.wantCode {
				t.Errorf("Code = %d, want %d", resErr.Code, tt.wantCode)
			}
			if resErr.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", resErr.Reason, tt.wantReason)
			}
			if tt.wantCause != "" && (resErr.Cause == nil || !strings.Contains(resErr.Cause.Error(), tt.wantCause)) {
				t.Errorf("Cause = %v, want it to mention %q", resErr.Cause, tt.wantCause)
			}
		})
	}
}

func TestHTTPResolver_Unauthorized(t *testing.T) {
	r, _ := newResolverServer(t, http.StatusUnauthorized, `{"errcode":401,"errmsg":"unauthorized"}`)

	_, err := r.Resolve(context.Background())
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Resolve() error = %v, want ErrUnauthorized", err)
	}
}

func TestHTTPResolver_ContextCancelled(t *testing.T) {
	r, _ := newResolverServer(t, http.StatusOK, `{}`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Resolve(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Resolve() error = %v, want context.Canceled", err)
	}
}

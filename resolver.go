package octohub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Resolver obtains the WebSocket URL for one connection attempt.
// The client calls it before every attempt, so it may return short-lived
// signed URLs. Any error is treated as a reconnectable failure.
type Resolver interface {
	Resolve(ctx context.Context) (string, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context) (string, error)

func (f ResolverFunc) Resolve(ctx context.Context) (string, error) {
	return f(ctx)
}

// StaticURL returns a Resolver that always yields url.
func StaticURL(url string) Resolver {
	return ResolverFunc(func(context.Context) (string, error) {
		if url == "" {
			return "", &ResolveError{Reason: "empty URL"}
		}
		return url, nil
	})
}

const defaultResolvePath = "/user/ws"

// HTTPResolverConfig configures an HTTPResolver.
type HTTPResolverConfig struct {
	// BaseURL is the OctoHub API base, e.g. "http://localhost:8080/api".
	// Fallback: OCTOHUB_API_BASE_URL environment variable.
	BaseURL string

	// Path of the endpoint lookup. Default "/user/ws".
	Path string

	// Token is sent as a Bearer token.
	// Fallback: OCTOHUB_API_TOKEN environment variable.
	Token string

	// HTTPClient is used for the lookup. Default: a client with a 10s timeout.
	HTTPClient *http.Client
}

// HTTPResolver asks the OctoHub API for a WebSocket URL.
type HTTPResolver struct {
	endpoint string
	token    string
	client   *http.Client
}

// apiResponse is the OctoHub API response envelope.
type apiResponse struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
	Data    *struct {
		WSURL string `json:"wsUrl"`
	} `json:"data"`
}

// NewHTTPResolver creates an HTTPResolver. Environment fallbacks are read
// once, here.
func NewHTTPResolver(cfg HTTPResolverConfig) (*HTTPResolver, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = os.Getenv("OCTOHUB_API_BASE_URL")
	}
	if cfg.Token == "" {
		cfg.Token = os.Getenv("OCTOHUB_API_TOKEN")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("BaseURL is required (set in HTTPResolverConfig or OCTOHUB_API_BASE_URL env)")
	}
	if cfg.Path == "" {
		cfg.Path = defaultResolvePath
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}

	return &HTTPResolver{
		endpoint: strings.TrimRight(cfg.BaseURL, "/") + "/" + strings.TrimLeft(cfg.Path, "/"),
		token:    cfg.Token,
		client:   cfg.HTTPClient,
	}, nil
}

// Endpoint returns the lookup URL.
func (r *HTTPResolver) Endpoint() string {
	return r.endpoint
}

func (r *HTTPResolver) Resolve(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.endpoint, nil)
	if err != nil {
		return "", &ResolveError{Endpoint: r.endpoint, Cause: err}
	}
	req.Header.Set("Accept", "application/json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", &ResolveError{Endpoint: r.endpoint, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return "", &ResolveError{Endpoint: r.endpoint, Status: resp.StatusCode, Cause: ErrUnauthorized}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &ResolveError{Endpoint: r.endpoint, Status: resp.StatusCode, Cause: err}
	}

	var env apiResponse
	if err := json.Unmarshal(body, &env); err != nil {
		if resp.StatusCode != http.StatusOK {
			return "", &ResolveError{Endpoint: r.endpoint, Status: resp.StatusCode, Reason: resp.Status}
		}
		return "", &ResolveError{Endpoint: r.endpoint, Status: resp.StatusCode, Cause: fmt.Errorf("parse response: %w", err)}
	}
	if resp.StatusCode != http.StatusOK || env.ErrCode != 0 {
		reason := env.ErrMsg
		if reason == "" {
			reason = resp.Status
		}
		return "", &ResolveError{Endpoint: r.endpoint, Status: resp.StatusCode, Code: env.ErrCode, Reason: reason}
	}
	if env.Data == nil || env.Data.WSURL == "" {
		return "", &ResolveError{Endpoint: r.endpoint, Status: resp.StatusCode, Cause: errors.New("response has no wsUrl")}
	}

	return env.Data.WSURL, nil
}

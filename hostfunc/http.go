package hostfunc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"
)

const (
	DefaultMaxURLLength   = 8192
	DefaultMaxBodySize    = 1 << 20 // 1MB
	DefaultRequestTimeout = 30 * time.Second

	// MaxRedirects bounds the redirect hops followed for one request.
	MaxRedirects = 10
)

// DefaultAllowedMethods keeps the capability read-only unless widened.
var DefaultAllowedMethods = []string{http.MethodGet, http.MethodHead}

var knownMethods = []string{"GET", "POST", "PUT", "DELETE", "PATCH", "HEAD", "OPTIONS"}

type HTTPConfig struct {
	AllowedHosts   []string
	AllowedMethods []string
	MaxBodySize    int64
	MaxURLLength   int
	RequestTimeout time.Duration
	Logger         *slog.Logger

	// Transport overrides the client transport. Nil uses http.DefaultTransport.
	Transport http.RoundTripper
}

type HTTP struct {
	cfg    HTTPConfig
	client *http.Client
}

func NewHTTP(cfg HTTPConfig) *HTTP {
	if cfg.MaxBodySize == 0 {
		cfg.MaxBodySize = DefaultMaxBodySize
	}
	if cfg.MaxURLLength == 0 {
		cfg.MaxURLLength = DefaultMaxURLLength
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if len(cfg.AllowedMethods) == 0 {
		cfg.AllowedMethods = DefaultAllowedMethods
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	h := &HTTP{cfg: cfg}
	h.client = &http.Client{
		Timeout:       cfg.RequestTimeout,
		Transport:     cfg.Transport,
		CheckRedirect: h.checkRedirect,
	}
	return h
}

// checkRedirect applies the scheme and host checks to every redirect hop.
func (h *HTTP) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= MaxRedirects {
		return fmt.Errorf("stopped after %d redirects", MaxRedirects)
	}
	if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
		return fmt.Errorf("redirect scheme must be http or https")
	}
	if host := req.URL.Hostname(); !h.isHostAllowed(host) {
		h.cfg.Logger.Warn("redirect blocked", "host", host, "hops", len(via))
		return fmt.Errorf("redirect host not allowed: %s", host)
	}
	return nil
}

// Request performs one HTTP call described by args and returns an
// HTTPResponse. Non-2xx statuses are returned, not treated as errors.
func (h *HTTP) Request(ctx context.Context, args map[string]any) (any, error) {
	method, _ := args["method"].(string)
	if method == "" {
		method = "GET"
	}
	method = strings.ToUpper(method)

	if !slices.Contains(knownMethods, method) {
		return nil, fmt.Errorf("unsupported method: %s", method)
	}
	if !slices.Contains(h.cfg.AllowedMethods, method) {
		return nil, fmt.Errorf("method not allowed: %s", method)
	}

	rawURL, ok := args["url"].(string)
	if !ok || rawURL == "" {
		return nil, fmt.Errorf("url required")
	}

	if len(rawURL) > h.cfg.MaxURLLength {
		return nil, fmt.Errorf("url exceeds max length")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url")
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("scheme must be http or https")
	}

	if len(h.cfg.AllowedHosts) == 0 {
		return nil, fmt.Errorf("http not enabled")
	}

	host := parsed.Hostname()
	if !h.isHostAllowed(host) {
		return nil, fmt.Errorf("host not allowed: %s", host)
	}

	var body io.Reader
	if bodyStr, ok := args["body"].(string); ok && bodyStr != "" {
		if int64(len(bodyStr)) > h.cfg.MaxBodySize {
			return nil, fmt.Errorf("request body exceeds max size")
		}
		body = bytes.NewBufferString(bodyStr)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	switch headers := args["headers"].(type) {
	case map[string]any:
		for k, v := range headers {
			if vs, ok := v.(string); ok {
				req.Header.Set(k, vs)
			}
		}
	case map[string]string:
		for k, v := range headers {
			req.Header.Set(k, v)
		}
	}

	start := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, h.cfg.MaxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(respBody)) > h.cfg.MaxBodySize {
		return nil, errors.New("response body exceeds max size")
	}

	respHeaders := make(map[string]string, len(resp.Header))
	for k, v := range resp.Header {
		if len(v) > 0 {
			respHeaders[k] = strings.Join(v, ", ")
		}
	}

	h.cfg.Logger.Debug("http request",
		"method", method,
		"url", parsed.Redacted(),
		"status", resp.StatusCode,
		"bytes", len(respBody),
		"duration", time.Since(start),
	)

	return HTTPResponse{
		Status:  resp.StatusCode,
		Headers: respHeaders,
		Body:    string(respBody),
	}, nil
}

// isHostAllowed matches IP literals by address and names by exact match
// or subdomain suffix.
func (h *HTTP) isHostAllowed(host string) bool {
	ip := net.ParseIP(host)
	for _, allowed := range h.cfg.AllowedHosts {
		allowed = strings.Trim(allowed, "[]")
		if ip != nil {
			if aip := net.ParseIP(allowed); aip != nil && aip.Equal(ip) {
				return true
			}
			continue
		}
		if strings.EqualFold(host, allowed) || strings.HasSuffix(strings.ToLower(host), "."+strings.ToLower(allowed)) {
			return true
		}
	}
	return false
}

package fdw

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Request is a single call to the host HTTP capability.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    string
}

// Response is what the host capability returns for a completed request.
type Response struct {
	Status  int
	Headers map[string]string
	Body    []byte
}

// Requester is the host-provided HTTP capability. It is the only way the
// guest reaches the network. Retries and timeouts belong to the host.
type Requester interface {
	Request(ctx context.Context, req Request) (*Response, error)
}

// RequesterFunc adapts a function to Requester.
type RequesterFunc func(ctx context.Context, req Request) (*Response, error)

func (f RequesterFunc) Request(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}

// PageResponse is one fetched page. It lives for a single fetch-decode
// cycle and is kept only as input to the next cursor decision.
type PageResponse struct {
	URL    string
	Status int
	Header http.Header
	Body   []byte
}

var errMalformedHeader = errors.New("malformed header")

// Fetcher turns cursor decisions into GET requests on the host capability.
type Fetcher struct {
	host Requester
}

func NewFetcher(host Requester) *Fetcher {
	return &Fetcher{host: host}
}

// Fetch issues one GET to rawURL with params merged into its query string.
// Params replace query values of the same name already in rawURL.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, params url.Values, headers map[string]string) (*PageResponse, error) {
	target, err := withParams(rawURL, params)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}

	for k, v := range headers {
		if !validHeader(k, v) {
			return nil, &FetchError{URL: target, Err: fmt.Errorf("%w: request header %q", errMalformedHeader, k)}
		}
	}

	resp, err := f.host.Request(ctx, Request{
		Method:  http.MethodGet,
		URL:     target,
		Headers: headers,
	})
	if err != nil {
		return nil, &FetchError{URL: target, Err: err}
	}
	if resp == nil {
		return nil, &FetchError{URL: target, Err: errors.New("empty response from host")}
	}

	if resp.Status < 200 || resp.Status > 299 {
		return nil, &FetchError{URL: target, Status: resp.Status, Err: bodySnippet(resp.Body)}
	}

	header := make(http.Header, len(resp.Headers))
	for k, v := range resp.Headers {
		if !validHeader(k, v) {
			return nil, &FetchError{URL: target, Status: resp.Status, Err: fmt.Errorf("%w: response header %q", errMalformedHeader, k)}
		}
		header.Set(k, v)
	}

	return &PageResponse{
		URL:    target,
		Status: resp.Status,
		Header: header,
		Body:   resp.Body,
	}, nil
}

func withParams(rawURL string, params url.Values) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid url: scheme must be http or https")
	}
	if len(params) == 0 {
		return u.String(), nil
	}
	q := u.Query()
	for k, vs := range params {
		q[k] = append([]string(nil), vs...)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func validHeader(k, v string) bool {
	if k == "" || strings.ContainsAny(k, " \t\r\n:") {
		return false
	}
	return !strings.ContainsAny(v, "\r\n")
}

func bodySnippet(body []byte) error {
	s := strings.TrimSpace(string(body))
	if s == "" {
		return nil
	}
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return errors.New(s)
}

package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/caffeineduck/webfdw/fdw"
	"github.com/caffeineduck/webfdw/hostfunc"
)

// Caller invokes a named host function.
type Caller interface {
	Call(ctx context.Context, fn string, args map[string]any) (any, error)
}

// RegistryCaller calls functions from a hostfunc.Registry directly. It
// lets a wrapper run in-process with the same capability surface it sees
// inside the sandbox.
type RegistryCaller struct {
	Registry *hostfunc.Registry
}

func (c RegistryCaller) Call(ctx context.Context, fn string, args map[string]any) (any, error) {
	f, ok := c.Registry.Get(fn)
	if !ok {
		return nil, fmt.Errorf("unknown function: %s", fn)
	}
	return f(ctx, args)
}

// NewRequester adapts a Caller to the fdw.Requester capability by
// routing each request through the http_request host function.
func NewRequester(c Caller) fdw.Requester {
	return fdw.RequesterFunc(func(ctx context.Context, req fdw.Request) (*fdw.Response, error) {
		out, err := c.Call(ctx, hostfunc.HTTPRequest, HTTPArgs(req))
		if err != nil {
			return nil, err
		}
		return DecodeHTTPResponse(out)
	})
}

// HTTPArgs encodes req as http_request arguments.
func HTTPArgs(req fdw.Request) map[string]any {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	args := map[string]any{
		"method": method,
		"url":    req.URL,
	}
	if len(req.Headers) > 0 {
		headers := make(map[string]any, len(req.Headers))
		for k, v := range req.Headers {
			headers[k] = v
		}
		args["headers"] = headers
	}
	if req.Body != "" {
		args["body"] = req.Body
	}
	return args
}

// DecodeHTTPResponse converts an http_request result into an fdw.Response.
// It accepts the host's own value as well as its JSON encoding.
func DecodeHTTPResponse(v any) (*fdw.Response, error) {
	var hr hostfunc.HTTPResponse
	switch r := v.(type) {
	case hostfunc.HTTPResponse:
		hr = r
	case *hostfunc.HTTPResponse:
		if r == nil {
			return nil, errors.New("empty http response")
		}
		hr = *r
	case json.RawMessage:
		if err := json.Unmarshal(r, &hr); err != nil {
			return nil, fmt.Errorf("decode http response: %w", err)
		}
	case nil:
		return nil, errors.New("empty http response")
	default:
		data, err := json.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("decode http response: %w", err)
		}
		if err := json.Unmarshal(data, &hr); err != nil {
			return nil, fmt.Errorf("decode http response: %w", err)
		}
	}
	if hr.Status == 0 {
		return nil, errors.New("http response missing status")
	}
	return &fdw.Response{Status: hr.Status, Headers: hr.Headers, Body: []byte(hr.Body)}, nil
}

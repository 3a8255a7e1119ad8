package hostfunc

// HTTPRequestArgs is the argument object of an http_request call.
type HTTPRequestArgs struct {
	Method  string            `json:"method,omitempty"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    string            `json:"body,omitempty"`
}

// HTTPResponse is the result of an http_request call. Repeated response
// headers are joined with ", ".
type HTTPResponse struct {
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers"`
	Body    string            `json:"body"`
}

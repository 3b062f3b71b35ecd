package request

import (
	"net/http"
	"net/http/httputil"

	"quarterload/util"
)

// Helper wraps http.Client for simplified request and decode logic
type Helper struct {
	*http.Client
}

// NewHelper creates an http helper with logging transport
func NewHelper(log *util.Logger) *Helper {
	return &Helper{
		Client: NewClient(log),
	}
}

// NewClient creates an http client with default timeout
func NewClient(log *util.Logger) *http.Client {
	return &http.Client{
		Timeout:   Timeout,
		Transport: NewTripper(log, http.DefaultTransport),
	}
}

// DoBody executes an HTTP request and returns the response body
func (r *Helper) DoBody(req *http.Request) ([]byte, error) {
	resp, err := r.Do(req)
	var body []byte
	if err == nil {
		body, err = ReadBody(resp)
	}
	return body, err
}

// GetBody executes an HTTP GET request and returns the response body
func (r *Helper) GetBody(url string) ([]byte, error) {
	resp, err := r.Get(url)
	var body []byte
	if err == nil {
		body, err = ReadBody(resp)
	}
	return body, err
}

// DoJSON executes an HTTP request and decodes the JSON response
func (r *Helper) DoJSON(req *http.Request, res interface{}) error {
	resp, err := r.Do(req)
	if err == nil {
		err = DecodeJSON(resp, &res)
	}
	return err
}

// GetJSON executes an HTTP GET request and decodes the JSON response
func (r *Helper) GetJSON(url string, res interface{}) error {
	req, err := New(http.MethodGet, url, nil, AcceptJSON)
	if err == nil {
		err = r.DoJSON(req, &res)
	}
	return err
}

type roundTripper struct {
	log  *util.Logger
	base http.RoundTripper
}

// NewTripper creates a logging roundtripper
func NewTripper(log *util.Logger, base http.RoundTripper) http.RoundTripper {
	return &roundTripper{log: log, base: base}
}

// RoundTrip implements http.RoundTripper
func (r *roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if b, err := httputil.DumpRequestOut(req, true); err == nil {
		r.log.TRACE.Println(string(b))
	}

	resp, err := r.base.RoundTrip(req)

	if err == nil {
		if b, err := httputil.DumpResponse(resp, true); err == nil {
			r.log.TRACE.Println(string(b))
		}
	}

	return resp, err
}

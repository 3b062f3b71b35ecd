package request

import (
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"time"
)

// Timeout is the default request timeout used by the Helper
var Timeout = 10 * time.Second

// JSONEncoding specifies application/json
var JSONEncoding = map[string]string{
	"Content-Type": "application/json",
	"Accept":       "application/json",
}

// AcceptJSON accepting application/json
var AcceptJSON = map[string]string{
	"Accept": "application/json",
}

// StatusError indicates an unsuccessful http response
type StatusError struct {
	resp *http.Response
}

func (e StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %d (%s)", e.resp.StatusCode, e.resp.Request.URL)
}

// Response returns the response with the unexpected status
func (e StatusError) Response() *http.Response {
	return e.resp
}

// StatusCode returns the response status code
func (e StatusError) StatusCode() int {
	return e.resp.StatusCode
}

// New builds an HTTP request with the given headers attached
func New(method, uri string, body io.Reader, headers ...map[string]string) (*http.Request, error) {
	req, err := http.NewRequest(method, uri, body)
	if err == nil {
		for _, headers := range headers {
			for k, v := range headers {
				req.Header.Add(k, v)
			}
		}
	}
	return req, err
}

// ReadBody reads the HTTP response and returns the response body
func ReadBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()

	b, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return []byte{}, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return b, StatusError{resp: resp}
	}

	return b, nil
}

// DecodeJSON reads the HTTP response and decodes the JSON body
func DecodeJSON(resp *http.Response, res interface{}) error {
	b, err := ReadBody(resp)
	if err == nil && len(b) > 0 {
		err = json.Unmarshal(b, &res)
	}
	return err
}

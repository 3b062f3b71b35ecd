package provider

import (
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/itchyny/gojq"

	"quarterload/util"
	"quarterload/util/request"
)

// HTTP provides a float value source from an http endpoint
type HTTP struct {
	*request.Helper
	url, method string
	headers     map[string]string
	body        string
	scale       float64
	jq          *gojq.Query
}

func init() {
	registry.Add("http", NewHTTPProviderFromConfig)
}

// Auth is the authorization config
type Auth struct {
	Type, User, Password string
}

// NewAuth adds authorization headers from config
func NewAuth(auth Auth, headers map[string]string) error {
	if strings.ToLower(auth.Type) != "basic" {
		return fmt.Errorf("unsupported auth type: %s", auth.Type)
	}

	basicAuth := auth.User + ":" + auth.Password
	headers["Authorization"] = "Basic " + base64.StdEncoding.EncodeToString([]byte(basicAuth))

	return nil
}

// NewHTTPProviderFromConfig creates an http provider
func NewHTTPProviderFromConfig(other map[string]interface{}) (FloatProvider, error) {
	cc := struct {
		URI, Method string
		Headers     map[string]string
		Body        string
		Jq          string
		Scale       float64
		Insecure    bool
		Auth        Auth
		Timeout     time.Duration
	}{
		Headers: make(map[string]string),
		Method:  http.MethodGet,
		Scale:   1,
		Timeout: request.Timeout,
	}

	if err := util.DecodeOther(other, &cc); err != nil {
		return nil, err
	}

	log := util.NewLogger("http")

	p := &HTTP{
		Helper:  request.NewHelper(log),
		url:     cc.URI,
		method:  strings.ToUpper(cc.Method),
		headers: cc.Headers,
		body:    cc.Body,
		scale:   cc.Scale,
	}

	p.Client.Timeout = cc.Timeout

	if cc.Insecure {
		insecure := &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}}
		p.Client.Transport = request.NewTripper(log, insecure)
	}

	if cc.Auth.Type != "" {
		if err := NewAuth(cc.Auth, p.headers); err != nil {
			return nil, err
		}
	}

	if cc.Jq != "" {
		query, err := gojq.Parse(cc.Jq)
		if err != nil {
			return nil, fmt.Errorf("invalid jq query: %w", err)
		}
		p.jq = query
	}

	return p, nil
}

// request executes the configured request and returns the response body
func (p *HTTP) request() ([]byte, error) {
	var body io.Reader
	if p.method != http.MethodGet && p.body != "" {
		body = strings.NewReader(p.body)
	}

	req, err := request.New(p.method, p.url, body, p.headers)
	if err != nil {
		return nil, err
	}

	return p.DoBody(req)
}

// FloatGetter parses a float from the response
func (p *HTTP) FloatGetter() func() (float64, error) {
	return p.floatGetter
}

func (p *HTTP) floatGetter() (float64, error) {
	b, err := p.request()
	if err != nil {
		return 0, err
	}

	if p.jq != nil {
		v, err := util.Jq(p.jq, b)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", p.url, err)
		}

		switch typed := v.(type) {
		case float64:
			return typed * p.scale, nil
		case int:
			return float64(typed) * p.scale, nil
		default:
			return 0, fmt.Errorf("%s: unexpected jq result: %v", p.url, v)
		}
	}

	f, err := strconv.ParseFloat(strings.TrimSpace(string(b)), 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid response '%s'", p.url, strings.TrimSpace(string(b)))
	}

	return f * p.scale, nil
}

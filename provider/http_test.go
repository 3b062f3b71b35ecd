package provider

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPProviderPlain(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(" 10.5 \n"))
	}))
	defer srv.Close()

	p, err := NewHTTPProviderFromConfig(map[string]interface{}{
		"uri":   srv.URL,
		"scale": 2,
	})
	require.NoError(t, err)

	f, err := p.FloatGetter()()
	require.NoError(t, err)
	assert.Equal(t, 21.0, f)
}

func TestHTTPProviderJq(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"power":{"l1":123.4}}`))
	}))
	defer srv.Close()

	p, err := NewHTTPProviderFromConfig(map[string]interface{}{
		"uri": srv.URL,
		"jq":  ".power.l1",
	})
	require.NoError(t, err)

	f, err := p.FloatGetter()()
	require.NoError(t, err)
	assert.Equal(t, 123.4, f)
}

func TestHTTPProviderAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, password, ok := r.BasicAuth()
		if !ok || user != "user" || password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte("1"))
	}))
	defer srv.Close()

	p, err := NewHTTPProviderFromConfig(map[string]interface{}{
		"uri": srv.URL,
		"auth": map[string]interface{}{
			"type":     "basic",
			"user":     "user",
			"password": "secret",
		},
	})
	require.NoError(t, err)

	_, err = p.FloatGetter()()
	assert.NoError(t, err)
}

func TestHTTPProviderStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p, err := NewHTTPProviderFromConfig(map[string]interface{}{"uri": srv.URL})
	require.NoError(t, err)

	_, err = p.FloatGetter()()
	assert.Error(t, err)
}

func TestHTTPProviderInvalidBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not a number"))
	}))
	defer srv.Close()

	p, err := NewHTTPProviderFromConfig(map[string]interface{}{"uri": srv.URL})
	require.NoError(t, err)

	_, err = p.FloatGetter()()
	assert.Error(t, err)
}

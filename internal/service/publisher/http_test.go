package publisher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIClient_Do(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "/things", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_ = json.NewEncoder(w).Encode(map[string]string{"echo": body["name"]})
	}))
	defer srv.Close()

	c := NewAPIClient(srv.URL+"/", "secret")
	var out map[string]string
	require.NoError(t, c.Do(context.Background(), http.MethodPost, "/things", map[string]string{"name": "x"}, &out))
	assert.Equal(t, "x", out["echo"])
}

func TestAPIClient_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := NewAPIClient(srv.URL, "").Do(context.Background(), http.MethodPost, "/posts", nil, nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.EqualError(t, err, "rate limited")
}

func TestAPIClient_ErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad list", http.StatusBadRequest)
	}))
	defer srv.Close()

	err := NewAPIClient(srv.URL, "").Do(context.Background(), http.MethodGet, "/", nil, nil)
	assert.EqualError(t, err, "api returned status 400: bad list")
}

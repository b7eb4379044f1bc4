package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIClient_ParsesDataEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/entries", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"deleted":3}}`))
	}))
	defer srv.Close()

	api := NewAPIClientWithConfig("", srv.URL)
	resp, err := api.Get("/entries")
	require.NoError(t, err)

	var payload struct {
		Deleted int64 `json:"deleted"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &payload))
	assert.Equal(t, int64(3), payload.Deleted)
}

func TestAPIClient_SendsBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"data":{}}`))
	}))
	defer srv.Close()

	api := NewAPIClientWithConfig("secret-token", srv.URL)
	_, err := api.Post("/query", map[string]string{"question": "test"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret-token", gotAuth)
}

func TestAPIClient_NoTokenOmitsHeader(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"data":{}}`))
	}))
	defer srv.Close()

	api := NewAPIClientWithConfig("", srv.URL)
	_, err := api.Get("/health")
	require.NoError(t, err)
	assert.Empty(t, gotAuth)
}

func TestAPIClient_ErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"privileged capability required","code":"UNAUTHORIZED"}`))
	}))
	defer srv.Close()

	api := NewAPIClientWithConfig("", srv.URL)
	_, err := api.Delete("/entries", map[string]string{})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "UNAUTHORIZED", apiErr.Code)
	assert.Contains(t, apiErr.Message, "privileged capability required")
}

func TestAPIClient_NonJSONErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		w.Write([]byte("Request Entity Too Large"))
	}))
	defer srv.Close()

	api := NewAPIClientWithConfig("", srv.URL)
	_, err := api.Post("/entries", map[string]string{"content": "big"})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusRequestEntityTooLarge, apiErr.StatusCode)
}

package provider

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRandomInt_CSPRNGInRange(t *testing.T) {
	client := NewRandomOrgClient("", discardLogger())

	seen := make(map[int]bool)
	for i := 0; i < 500; i++ {
		n, err := client.RandomInt(context.Background(), 1, 20)
		require.NoError(t, err)
		require.GreaterOrEqual(t, n, 1)
		require.LessOrEqual(t, n, 20)
		seen[n] = true
	}
	assert.Greater(t, len(seen), 10)
}

func TestRandomInt_MinEqualsMax(t *testing.T) {
	client := NewRandomOrgClient("", discardLogger())
	n, err := client.RandomInt(context.Background(), 42, 42)
	require.NoError(t, err)
	assert.Equal(t, 42, n)
}

func TestRandomInt_InvalidRange(t *testing.T) {
	client := NewRandomOrgClient("", discardLogger())
	_, err := client.RandomInt(context.Background(), 100, 50)
	assert.Error(t, err)
}

func TestRandomInt_UsesAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string         `json:"method"`
			Params map[string]any `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "generateIntegers", req.Method)
		assert.Equal(t, "test-key", req.Params["apiKey"])
		assert.Equal(t, float64(100), req.Params["max"])
		w.Write([]byte(`{"jsonrpc":"2.0","result":{"random":{"data":[77]}},"id":1}`))
	}))
	defer srv.Close()

	client := NewRandomOrgClient("test-key", discardLogger()).WithEndpoint(srv.URL)
	n, err := client.RandomInt(context.Background(), 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 77, n)
}

func TestRandomInt_FallsBackOnAPIFailure(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusBadGateway) }},
		{"rpc error", func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(`{"error":{"message":"quota exceeded"}}`))
		}},
		{"out of range data", func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(`{"result":{"random":{"data":[500]}}}`))
		}},
		{"garbage", func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte(`not json`)) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			client := NewRandomOrgClient("test-key", discardLogger()).WithEndpoint(srv.URL)
			n, err := client.RandomInt(context.Background(), 1, 10)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, n, 1)
			assert.LessOrEqual(t, n, 10)
		})
	}
}

func TestRandomInt_BreakerSkipsFailingAPI(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewRandomOrgClient("test-key", discardLogger()).WithEndpoint(srv.URL)
	for i := 0; i < 6; i++ {
		n, err := client.RandomInt(context.Background(), 1, 10)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 1)
	}
	assert.Equal(t, int32(3), calls.Load(), "breaker opens after three failures")
}

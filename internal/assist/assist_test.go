package assist

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"microlend/pkg/config"
)

func TestNewWithoutConfigIsDisabled(t *testing.T) {
	client := New(config.AssistConfig{})
	assert.False(t, client.Enabled())

	text, err := client.Draft(context.Background(), "anything")
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestDraft(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "small-model", req.Model)

		json.NewEncoder(w).Encode(generateResponse{Text: "Dear client, your payment is due."})
	}))
	defer server.Close()

	client := New(config.AssistConfig{
		APIURL:  server.URL,
		APIKey:  "test-key",
		Model:   "small-model",
		Timeout: 5 * time.Second,
	})
	require.True(t, client.Enabled())

	text, err := client.Draft(context.Background(), "remind about payment")
	require.NoError(t, err)
	assert.Equal(t, "Dear client, your payment is due.", text)
}

func TestDraftUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := New(config.AssistConfig{
		APIURL:  server.URL,
		APIKey:  "test-key",
		Timeout: 5 * time.Second,
	})

	_, err := client.Draft(context.Background(), "anything")
	assert.Error(t, err)
}

package notification

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/forest-guardian/geotile-dataset/internal/properties"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscordSend(t *testing.T) {
	var received DiscordMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	d := NewDiscord(properties.Discord{SuccessURL: server.URL})
	require.NoError(t, d.Success("1200 tiles fetched"))
	require.Len(t, received.Embeds, 1)
	assert.Equal(t, "1200 tiles fetched", received.Embeds[0].Description)
	assert.Equal(t, colorGreen, received.Embeds[0].Color)

	// no error webhook configured
	assert.NoError(t, d.Error("boom"))
}

func TestDiscordStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	d := NewDiscord(properties.Discord{ErrorURL: server.URL})
	assert.ErrorContains(t, d.Error("boom"), "429")
	assert.ErrorContains(t, d.Warning("careful"), "429")

}

func TestDiscordNilReceiver(t *testing.T) {
	var d *Discord
	assert.NotPanics(t, func() {
		assert.NoError(t, d.Success("ignored"))
		assert.NoError(t, d.Warning("ignored"))
		assert.NoError(t, d.Error("ignored"))
	})
}

package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Wrseno/whatsapp-bot/internal/models"
	"github.com/Wrseno/whatsapp-bot/pkg/logger"
)

func testLogger() *logger.Logger {
	log := logger.New("[test] ", logger.ERROR)
	log.SetOutput(io.Discard)
	return log
}

func TestNotifyPostsJSONToPath(t *testing.T) {
	var gotPath, gotMethod, gotContentType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewNotifier(srv.URL, time.Second, testLogger())
	err := n.Notify(context.Background(), PathHeartbeat, models.HeartbeatPayload{SessionID: "s1"})
	require.NoError(t, err)

	assert.Equal(t, PathHeartbeat, gotPath)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "application/json", gotContentType)

	var payload models.HeartbeatPayload
	require.NoError(t, json.Unmarshal(gotBody, &payload))
	assert.Equal(t, "s1", payload.SessionID)
}

func TestNotifyNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := NewNotifier(srv.URL, time.Second, testLogger())
	err := n.Notify(context.Background(), PathConnectionUpdate, models.ConnectionUpdatePayload{SessionID: "s1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestIncomingMessageParsesReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload models.IncomingMessagePayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "s1", payload.SessionID)
		assert.Equal(t, "5511900000000@s.whatsapp.net", payload.From)
		assert.Equal(t, "oi", payload.Text)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"reply":"olá!"}`))
	}))
	defer srv.Close()

	n := NewNotifier(srv.URL, time.Second, testLogger())
	reply, err := n.IncomingMessage(context.Background(), "s1", "5511900000000@s.whatsapp.net", "oi")
	require.NoError(t, err)
	assert.Equal(t, "olá!", reply)
}

func TestIncomingMessageWithoutReplyBody(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"corpo vazio", ""},
		{"JSON sem reply", `{}`},
		{"corpo não JSON", "ok"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			n := NewNotifier(srv.URL, time.Second, testLogger())
			reply, err := n.IncomingMessage(context.Background(), "s1", "x@s.whatsapp.net", "oi")
			require.NoError(t, err)
			assert.Empty(t, reply)
		})
	}
}

func TestIncomingMessageBackendDownIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	n := NewNotifier(srv.URL, 500*time.Millisecond, testLogger())
	_, err := n.IncomingMessage(context.Background(), "s1", "x@s.whatsapp.net", "oi")
	require.Error(t, err)
}

func TestEventWrappersSwallowDeliveryFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	n := NewNotifier(srv.URL, 500*time.Millisecond, testLogger())
	n.QRUpdate("s1", "data:image/png;base64,AAAA")
	n.ConnectionUpdate("s1", models.StatusDisconnected, nil)
	n.Heartbeat("s1")
}

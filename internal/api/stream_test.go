package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/noTilt3/SMARKETECH/internal/auth"
	"github.com/noTilt3/SMARKETECH/internal/chat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const streamTestSecret = "stream-test-secret"

func streamRouter(registry *chat.Registry) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewStreamHandler(registry, streamTestSecret, zap.NewNop())
	r.GET("/api/chat/stream", h.Stream)
	return r
}

func TestStream_MissingTokenUnauthorized(t *testing.T) {
	r := streamRouter(chat.NewRegistry(zap.NewNop()))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/chat/stream", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestStream_InvalidTokenUnauthorized(t *testing.T) {
	registry := chat.NewRegistry(zap.NewNop())
	r := streamRouter(registry)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/chat/stream?token=garbage", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 0, registry.Users())
}

func TestStream_ReadyPushAndDisconnectCleanup(t *testing.T) {
	registry := chat.NewRegistry(zap.NewNop())
	publisher := chat.NewPublisher(registry, zap.NewNop())
	r := streamRouter(registry)

	token, err := auth.GenerateToken(7, "ana@x.com", streamTestSecret, time.Hour)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/chat/stream?token="+token, nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.ServeHTTP(w, req)
	}()

	// Connection registered once the handler is past auth.
	require.Eventually(t, func() bool {
		return registry.Connections(7) == 1
	}, time.Second, 10*time.Millisecond)

	publisher.Publish(7, chat.EventMessageNew, map[string]any{"id": 1, "senderId": 2})

	// Give the relay loop a beat to drain the event before closing.
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stream handler did not return on disconnect")
	}

	assert.Equal(t, 0, registry.Users(), "disconnect must unregister the connection")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	body := w.Body.String()
	assert.Contains(t, body, "stream:ready")
	assert.Contains(t, body, chat.EventMessageNew)
	assert.Contains(t, body, `"senderId":2`)
}

func TestStream_TwoConnectionsForOneUser(t *testing.T) {
	registry := chat.NewRegistry(zap.NewNop())
	r := streamRouter(registry)

	token, err := auth.GenerateToken(7, "ana@x.com", streamTestSecret, time.Hour)
	require.NoError(t, err)

	var cancels []context.CancelFunc
	var dones []chan struct{}
	for i := 0; i < 2; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		cancels = append(cancels, cancel)
		req := httptest.NewRequest(http.MethodGet, "/api/chat/stream?token="+token, nil).WithContext(ctx)
		w := httptest.NewRecorder()
		done := make(chan struct{})
		dones = append(dones, done)
		go func() {
			defer close(done)
			r.ServeHTTP(w, req)
		}()
	}

	require.Eventually(t, func() bool {
		return registry.Connections(7) == 2
	}, time.Second, 10*time.Millisecond)

	for i, cancel := range cancels {
		cancel()
		select {
		case <-dones[i]:
		case <-time.After(time.Second):
			t.Fatalf("connection %d did not close", i)
		}
	}
	assert.Equal(t, 0, registry.Users())
}

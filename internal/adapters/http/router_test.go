package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Rendezvous/internal/adapters/ws"
	"github.com/dkeye/Rendezvous/internal/app"
	"github.com/dkeye/Rendezvous/internal/app/media"
	"github.com/dkeye/Rendezvous/internal/config"
)

type fakeStatus struct{}

func (fakeStatus) Online() []app.OnlineEntry {
	return []app.OnlineEntry{{Identity: "alice", Since: time.Unix(0, 0).UTC()}}
}

func (fakeStatus) Calls() []app.CallInfo {
	return []app.CallInfo{{Caller: "alice", Callee: "bob", State: "RINGING", CreatedAt: time.Unix(0, 0).UTC()}}
}

type fakeMedia struct{}

func (fakeMedia) Stats() media.Stats { return media.Stats{Received: 3, Forwarded: 2, Dropped: 1} }

func newRouter(secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{Mode: "test", Secret: secret}
	return SetupRouter(context.Background(), cfg, fakeStatus{}, fakeMedia{}, &ws.Handler{})
}

func get(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	w := get(newRouter(""), "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestAdminRequiresToken(t *testing.T) {
	r := newRouter("s3cret")
	assert.Equal(t, http.StatusUnauthorized, get(r, "/api/online", "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "/api/online", "wrong").Code)

	w := get(r, "/api/online", "s3cret")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Online []app.OnlineEntry `json:"online"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Online, 1)
	assert.Equal(t, "alice", string(body.Online[0].Identity))
}

func TestAdminCallsAndMedia(t *testing.T) {
	r := newRouter("s3cret")

	w := get(r, "/api/calls", "s3cret")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"calls":[{"caller":"alice","callee":"bob","state":"RINGING","created_at":"1970-01-01T00:00:00Z"}]}`, w.Body.String())

	w = get(r, "/api/media", "s3cret")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"received":3,"forwarded":2,"dropped":1}`, w.Body.String())
}

func TestAdminDisabledWithoutSecret(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, get(newRouter(""), "/api/online", "").Code)
}

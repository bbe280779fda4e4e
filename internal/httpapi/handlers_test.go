package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/DoyleJ11/partybox-charades/internal/engine"
	"github.com/DoyleJ11/partybox-charades/internal/hub"
	"github.com/DoyleJ11/partybox-charades/internal/types"
)

func newRelay(t *testing.T, opts Options) (*httptest.Server, *hub.Hub) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	h := hub.NewHub(ctx, hub.Options{Log: zaptest.NewLogger(t)})
	opts.Log = zaptest.NewLogger(t)
	srv := httptest.NewServer(SetupRoutes(h, opts))
	t.Cleanup(srv.Close)
	return srv, h
}

func roomBody(t *testing.T, code string) []byte {
	t.Helper()
	r, err := engine.NewRoom(engine.Setup{
		RoomID:        code,
		RoundDuration: 30,
		TeamNames:     []string{"Red"},
		Words:         []string{"cat", "dog"},
	})
	require.NoError(t, err)
	b, err := json.Marshal(r)
	require.NoError(t, err)
	return b
}

func do(t *testing.T, method, url string, body []byte, header map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	require.NoError(t, err)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestRelay_RoomLifecycle(t *testing.T) {
	srv, _ := newRelay(t, Options{})

	resp := do(t, http.MethodPost, srv.URL+"/rooms", roomBody(t, "ABCD"), nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = do(t, http.MethodPost, srv.URL+"/rooms", roomBody(t, "ABCD"), nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	assert.Equal(t, http.StatusOK, do(t, http.MethodHead, srv.URL+"/rooms/ABCD", nil, nil).StatusCode)
	assert.Equal(t, http.StatusNotFound, do(t, http.MethodHead, srv.URL+"/rooms/NOPE", nil, nil).StatusCode)

	patch := []byte(`{"category":"Animals"}`)
	resp = do(t, http.MethodPatch, srv.URL+"/rooms/ABCD", patch, map[string]string{"If-Match": "0"})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(t, http.MethodPatch, srv.URL+"/rooms/ABCD", patch, map[string]string{"If-Match": "0"})
	assert.Equal(t, http.StatusPreconditionFailed, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/rooms/ABCD", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var env types.RoomEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	assert.Equal(t, 1, env.Version)
	assert.Equal(t, "Animals", env.Room.Category)

	assert.Equal(t, http.StatusNoContent, do(t, http.MethodDelete, srv.URL+"/rooms/ABCD", nil, nil).StatusCode)
	assert.Eventually(t, func() bool {
		return do(t, http.MethodGet, srv.URL+"/rooms/ABCD", nil, nil).StatusCode == http.StatusNotFound
	}, time.Second, 10*time.Millisecond)
}

func TestRelay_PatchErrors(t *testing.T) {
	srv, _ := newRelay(t, Options{})
	require.Equal(t, http.StatusCreated, do(t, http.MethodPost, srv.URL+"/rooms", roomBody(t, "ERRS"), nil).StatusCode)

	cases := []struct {
		name   string
		code   string
		body   string
		match  string
		status int
	}{
		{"unconditional missing room is a no-op", "GONE", `{"category":"x"}`, "", http.StatusNoContent},
		{"conditional missing room", "GONE", `{"category":"x"}`, "0", http.StatusNotFound},
		{"bad json", "ERRS", `{`, "", http.StatusBadRequest},
		{"bad version", "ERRS", `{}`, "abc", http.StatusBadRequest},
		{"patch breaks the record", "ERRS", `{"teams":3}`, "0", http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := map[string]string{}
			if tc.match != "" {
				h["If-Match"] = tc.match
			}
			resp := do(t, http.MethodPatch, srv.URL+"/rooms/"+tc.code, []byte(tc.body), h)
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestRelay_CreateRejectsBadBody(t *testing.T) {
	srv, _ := newRelay(t, Options{})
	assert.Equal(t, http.StatusBadRequest, do(t, http.MethodPost, srv.URL+"/rooms", []byte(`nope`), nil).StatusCode)
	assert.Equal(t, http.StatusBadRequest, do(t, http.MethodPost, srv.URL+"/rooms", []byte(`{}`), nil).StatusCode)
}

func TestRelay_RateLimitsPatchesPerRoom(t *testing.T) {
	srv, _ := newRelay(t, Options{WriteRate: 0.001, WriteBurst: 2})
	require.Equal(t, http.StatusCreated, do(t, http.MethodPost, srv.URL+"/rooms", roomBody(t, "BUSY"), nil).StatusCode)

	patch := []byte(`{"currentTeamIndex":0}`)
	assert.Equal(t, http.StatusNoContent, do(t, http.MethodPatch, srv.URL+"/rooms/BUSY", patch, nil).StatusCode)
	assert.Equal(t, http.StatusNoContent, do(t, http.MethodPatch, srv.URL+"/rooms/BUSY", patch, nil).StatusCode)

	resp := do(t, http.MethodPatch, srv.URL+"/rooms/BUSY", patch, nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get("Retry-After"))

	// reads are never limited
	assert.Equal(t, http.StatusOK, do(t, http.MethodGet, srv.URL+"/rooms/BUSY", nil, nil).StatusCode)
}

func TestRelay_Healthz(t *testing.T) {
	srv, _ := newRelay(t, Options{})
	assert.Equal(t, http.StatusOK, do(t, http.MethodGet, srv.URL+"/healthz", nil, nil).StatusCode)
}

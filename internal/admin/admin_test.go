package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sccpd/internal/metrics"
	"sccpd/internal/model"
	"sccpd/internal/reload"
	"sccpd/internal/server"
	"sccpd/internal/skinny"
)

type fakeDriver struct {
	resets  map[string]skinny.ResetType
	message string
	reloads int
}

func (f *fakeDriver) Devices() []server.DeviceInfo {
	return []server.DeviceInfo{{ID: "SEP001122334455", Registered: true, DND: "off", Lines: []string{"100"}}}
}

func (f *fakeDriver) Lines() []server.LineInfo {
	return []server.LineInfo{{Name: "100", Label: "Alice", Devices: []string{"SEP001122334455"}}}
}

func (f *fakeDriver) Channels() []server.ChannelInfo { return []server.ChannelInfo{} }

func (f *fakeDriver) Reload(ctx context.Context) (*reload.Result, error) {
	f.reloads++
	return &reload.Result{
		DevicesChanged: []string{"SEP001122334455"},
		Deferred:       []string{"SEP001122334455"},
		Warnings:       []error{fmt.Errorf("nat is deprecated")},
	}, nil
}

func (f *fakeDriver) ResetDevice(id string, t skinny.ResetType) error {
	switch id {
	case "SEP001122334455":
		f.resets[id] = t
		return nil
	case "SEP00000000000A":
		return fmt.Errorf("%s: %w", id, model.ErrNotRegistered)
	}
	return fmt.Errorf("%s: %w", id, server.ErrUnknownDevice)
}

func (f *fakeDriver) SetMessage(text string, timeout uint32) error {
	f.message = text
	return nil
}

type fakeMailboxes map[string][2]int

func (f fakeMailboxes) SetMailbox(mb string, n, o int) { f[mb] = [2]int{n, o} }

func do(t *testing.T, h http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set(authorizationHeader, bearerPrefix+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestOpenAPI(t *testing.T) {
	drv := &fakeDriver{resets: map[string]skinny.ResetType{}}
	mbx := fakeMailboxes{}
	a := New(drv, metrics.New(), Options{Mailboxes: mbx}, nil)
	h := a.Handler()

	w := do(t, h, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(headerRequestID))

	w = do(t, h, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "sccp_")

	w = do(t, h, http.MethodGet, "/v1/devices", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var devices []server.DeviceInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &devices))
	require.Len(t, devices, 1)
	assert.Equal(t, "SEP001122334455", devices[0].ID)

	w = do(t, h, http.MethodGet, "/v1/lines", "", "")
	assert.Contains(t, w.Body.String(), `"label":"Alice"`)
	w = do(t, h, http.MethodGet, "/v1/channels", "", "")
	assert.JSONEq(t, `[]`, w.Body.String())

	w = do(t, h, http.MethodPost, "/v1/reload", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var res reloadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "warnings", res.Result)
	assert.Equal(t, []string{"SEP001122334455"}, res.Deferred)
	assert.Equal(t, []string{"nat is deprecated"}, res.Warnings)
	assert.Equal(t, 1, drv.reloads)

	w = do(t, h, http.MethodPost, "/v1/message", `{"text":"hello","timeout":10}`, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "hello", drv.message)
	w = do(t, h, http.MethodPost, "/v1/message", `{"text":`, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodPut, "/v1/mailboxes/100@default", `{"new":2,"old":1}`, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, [2]int{2, 1}, mbx["100@default"])
	w = do(t, h, http.MethodPut, "/v1/mailboxes/100", `{"new":-1}`, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestResetStatusCodes(t *testing.T) {
	drv := &fakeDriver{resets: map[string]skinny.ResetType{}}
	h := New(drv, nil, Options{}, nil).Handler()

	w := do(t, h, http.MethodPost, "/v1/devices/SEP001122334455/reset?type=restart", "", "")
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, skinny.ResetRestart, drv.resets["SEP001122334455"])

	w = do(t, h, http.MethodPost, "/v1/devices/SEP00000000000A/reset", "", "")
	assert.Equal(t, http.StatusConflict, w.Code)
	w = do(t, h, http.MethodPost, "/v1/devices/SEPFFFFFFFFFFFF/reset", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, h, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code, "no metrics without a registry")
}

func TestBearerToken(t *testing.T) {
	drv := &fakeDriver{resets: map[string]skinny.ResetType{}}
	secret := "s3cret"
	h := New(drv, nil, Options{JWTSecret: secret, Issuer: "sccpd"}, nil).Handler()
	now := time.Now()

	w := do(t, h, http.MethodGet, "/v1/devices", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	good, err := Token([]byte(secret), "sccpd", "ops", time.Hour, now)
	require.NoError(t, err)
	w = do(t, h, http.MethodGet, "/v1/devices", "", good)
	assert.Equal(t, http.StatusOK, w.Code)

	expired, err := Token([]byte(secret), "sccpd", "ops", time.Minute, now.Add(-time.Hour))
	require.NoError(t, err)
	w = do(t, h, http.MethodGet, "/v1/devices", "", expired)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	forged, err := Token([]byte("other"), "sccpd", "ops", time.Hour, now)
	require.NoError(t, err)
	w = do(t, h, http.MethodGet, "/v1/devices", "", forged)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	foreign, err := Token([]byte(secret), "elsewhere", "ops", time.Hour, now)
	require.NoError(t, err)
	w = do(t, h, http.MethodGet, "/v1/devices", "", foreign)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, h, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, w.Code, "health stays open")
}

func TestVerifyNeedsSubject(t *testing.T) {
	now := time.Now()
	tok, err := Token([]byte("k"), "", "", time.Hour, now)
	require.NoError(t, err)
	_, err = verify([]byte("k"), "", tok, now)
	assert.ErrorIs(t, err, errNoSubject)
}

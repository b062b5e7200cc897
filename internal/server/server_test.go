package server_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudspend/sentinel/internal/server"
	"github.com/cloudspend/sentinel/pkg/model"
	"github.com/cloudspend/sentinel/pkg/registry"
	"github.com/cloudspend/sentinel/pkg/storage"
)

type fakeGateway struct {
	nextID int
}

func (f *fakeGateway) CreateEndpoint(ctx context.Context, token, userData string) (string, error) {
	f.nextID++
	return fmt.Sprintf("arn:aws:sns:us-east-1:123456789012:endpoint/APNS/app/ep-%d", f.nextID), nil
}

func (f *fakeGateway) DeleteEndpoint(ctx context.Context, handle string) error { return nil }

func (f *fakeGateway) EndpointAttributes(ctx context.Context, handle string) (map[string]string, error) {
	return map[string]string{"Enabled": "true"}, nil
}

func (f *fakeGateway) ApplicationAttributes(ctx context.Context) (map[string]string, error) {
	return map[string]string{"Enabled": "true"}, nil
}

func (f *fakeGateway) ListEndpoints(ctx context.Context) ([]string, error) { return nil, nil }

func setupServer(t *testing.T) (*server.Server, storage.TokenStore) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := storage.NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	reg := registry.New(store, &fakeGateway{}, logger)

	return server.NewServer(reg, store, nil, logger), store
}

func testToken(prefix string) string {
	return prefix + strings.Repeat("0", 64-len(prefix))
}

func postJSON(t *testing.T, srv *server.Server, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest("POST", path, strings.NewReader(string(raw)))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestServer_Health(t *testing.T) {
	srv, _ := setupServer(t)

	req := httptest.NewRequest("GET", "/healthz", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	err := json.NewDecoder(w.Body).Decode(&resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp["status"])
}

func TestServer_RegisterDevice(t *testing.T) {
	srv, _ := setupServer(t)

	w := postJSON(t, srv, "/api/v1/devices", map[string]string{
		"token":   testToken("aa"),
		"user_id": "user-1",
	})

	assert.Equal(t, http.StatusCreated, w.Code)

	var reg model.DeviceRegistration
	err := json.NewDecoder(w.Body).Decode(&reg)
	require.NoError(t, err)
	assert.Equal(t, testToken("aa"), reg.Token)
	assert.NotEmpty(t, reg.EndpointARN)
	assert.True(t, reg.Enabled)
}

func TestServer_RegisterInvalidToken(t *testing.T) {
	srv, _ := setupServer(t)

	w := postJSON(t, srv, "/api/v1/devices", map[string]string{"token": "not-hex"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_RegisterMalformedBody(t *testing.T) {
	srv, _ := setupServer(t)

	req := httptest.NewRequest("POST", "/api/v1/devices", strings.NewReader("{broken"))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_RotateToken(t *testing.T) {
	srv, _ := setupServer(t)

	w := postJSON(t, srv, "/api/v1/devices", map[string]string{"token": testToken("aa")})
	require.Equal(t, http.StatusCreated, w.Code)

	var created model.DeviceRegistration
	require.NoError(t, json.NewDecoder(w.Body).Decode(&created))

	w = postJSON(t, srv, "/api/v1/devices/rotate", map[string]string{
		"endpoint_arn": created.EndpointARN,
		"new_token":    testToken("bb"),
	})

	assert.Equal(t, http.StatusOK, w.Code)

	var rotated model.DeviceRegistration
	require.NoError(t, json.NewDecoder(w.Body).Decode(&rotated))
	assert.Equal(t, testToken("bb"), rotated.Token)
	assert.Equal(t, created.ID, rotated.ID)
}

func TestServer_RotateUnknownEndpoint(t *testing.T) {
	srv, _ := setupServer(t)

	w := postJSON(t, srv, "/api/v1/devices/rotate", map[string]string{
		"endpoint_arn": "arn:aws:sns:us-east-1:123456789012:endpoint/APNS/app/missing",
		"new_token":    testToken("cc"),
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_ListDevices(t *testing.T) {
	srv, _ := setupServer(t)

	for _, prefix := range []string{"aa", "bb"} {
		w := postJSON(t, srv, "/api/v1/devices", map[string]string{"token": testToken(prefix)})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	req := httptest.NewRequest("GET", "/api/v1/devices", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var regs []model.DeviceRegistration
	require.NoError(t, json.NewDecoder(w.Body).Decode(&regs))
	assert.Len(t, regs, 2)
}

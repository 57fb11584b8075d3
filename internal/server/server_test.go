package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/accounts/internal/config"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	cfg := &config.Config{
		HTTP:     config.HTTP{Port: 8080},
		Database: config.Database{Driver: config.DriverSQLite, Path: ":memory:"},
		Auth: config.Auth{
			JWTSecret:  "server-test-secret-0123456789",
			TokenTTL:   time.Hour,
			BcryptCost: 4,
		},
		Log: config.Log{Level: "error"},
	}
	require.NoError(t, cfg.Validate())

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := New(context.Background(), cfg, logger)
	require.NoError(t, err)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		s.Close()
	})
	return ts
}

func do(t *testing.T, method, url, body, token string) (int, map[string]any) {
	t.Helper()

	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestServer_AnnLeeOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	status, reg := do(t, http.MethodPost, ts.URL+"/api/users/register",
		`{"fullName":"Ann Lee","email":"a@x.com","password":"pw1"}`, "")
	require.Equal(t, http.StatusOK, status, reg)
	assert.Equal(t, true, reg["success"])
	assert.Equal(t, "a@x.com", reg["email"])
	assert.Equal(t, true, reg["isLogin"])

	status, login := do(t, http.MethodPost, ts.URL+"/api/users/login",
		`{"email":"a@x.com","password":"pw1"}`, "")
	require.Equal(t, http.StatusOK, status, login)
	token, _ := login["token"].(string)
	require.NotEmpty(t, token)

	status, me := do(t, http.MethodGet, ts.URL+"/api/users/me", "", token)
	require.Equal(t, http.StatusOK, status, me)
	assert.Equal(t, "Ann Lee", me["fullName"])
	assert.NotContains(t, me, "passwordHash")

	status, bad := do(t, http.MethodPost, ts.URL+"/api/users/login",
		`{"email":"a@x.com","password":"pw2"}`, "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "invalid email or password", bad["message"])

	status, dup := do(t, http.MethodPost, ts.URL+"/api/users/register",
		`{"fullName":"Ann Lee","email":"a@x.com","password":"pw1"}`, "")
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "user with this email already exists", dup["message"])
}

func TestServer_RegisterRejectsBlankFields(t *testing.T) {
	ts := newTestServer(t)

	status, body := do(t, http.MethodPost, ts.URL+"/api/users/register",
		`{"fullName":"Ann Lee","email":"a@x.com","password":"   "}`, "")
	assert.Equal(t, http.StatusBadRequest, status, body)
	assert.Equal(t, "password", body["field"])

	status, body = do(t, http.MethodPost, ts.URL+"/api/users/register",
		`{"fullName":"  ","email":"a@x.com","password":"pw1"}`, "")
	assert.Equal(t, http.StatusBadRequest, status, body)
	assert.Equal(t, "fullName", body["field"])

	status, body = do(t, http.MethodPost, ts.URL+"/api/users/register",
		`{"fullName":"Ann Lee","email":"a@x.com","password":"pw1"}`, "")
	assert.Equal(t, http.StatusOK, status, body)
}

func TestServer_MeRequiresToken(t *testing.T) {
	ts := newTestServer(t)

	status, body := do(t, http.MethodGet, ts.URL+"/api/users/me", "", "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, false, body["success"])

	status, _ = do(t, http.MethodGet, ts.URL+"/api/users/me", "", "not.a.token")
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestServer_Health(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Content-Type"))
}

func TestNew_UnknownDriver(t *testing.T) {
	cfg := &config.Config{
		Database: config.Database{Driver: "mysql"},
		Auth:     config.Auth{JWTSecret: "server-test-secret-0123456789", TokenTTL: time.Hour, BcryptCost: 4},
	}

	_, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.ErrorContains(t, err, "unknown database driver")
}

func TestNew_ShortSecret(t *testing.T) {
	cfg := &config.Config{
		Database: config.Database{Driver: config.DriverSQLite, Path: ":memory:"},
		Auth:     config.Auth{JWTSecret: "short", TokenTTL: time.Hour, BcryptCost: 4},
	}

	_, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}

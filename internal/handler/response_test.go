package handler

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriteJSON_EncodeFailureUsesGivenLogger(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	rr := httptest.NewRecorder()
	writeJSON(rr, logger, http.StatusOK, map[string]any{"bad": make(chan int)})

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, logs.String(), "failed to encode JSON response")
	assert.Contains(t, logs.String(), "unsupported type")
}

func TestWriteError_InternalErrorUsesGivenLogger(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	rr := httptest.NewRecorder()
	writeError(rr, logger, assert.AnError)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"success":false,"error":"internal_error","message":"An internal error occurred"}`, rr.Body.String())
	assert.Contains(t, logs.String(), "request failed")
	assert.NotContains(t, rr.Body.String(), assert.AnError.Error())
}

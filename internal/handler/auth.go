package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/accounts/internal/apperror"
	"github.com/sakif/accounts/internal/auth"
	"github.com/sakif/accounts/internal/model"
	"github.com/sakif/accounts/internal/service"
)

// maxBodyBytes caps request bodies. Credentials never come close.
const maxBodyBytes = 1 << 20

// AccountService is the subset of *service.AuthService the handlers call.
// Handlers depend on this interface so tests can swap in a stub.
type AccountService interface {
	Register(ctx context.Context, in service.RegisterInput) (*service.AuthResult, error)
	Login(ctx context.Context, in service.LoginInput) (*service.AuthResult, error)
	CurrentUser(ctx context.Context, id int64) (*model.User, error)
}

// AuthHandler exposes registration, login and the current-user lookup.
//
// HANDLER RESPONSIBILITIES:
//   - HandleRegister → POST /api/users/register
//   - HandleLogin    → POST /api/users/login
//   - HandleMe       → GET  /api/users/me (behind auth.RequireAuth)
//
// The handler only decodes, delegates and encodes. Every rule lives in the
// service; every status code decision lives in writeError.
type AuthHandler struct {
	accounts AccountService
	logger   *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(accounts AccountService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{accounts: accounts, logger: logger}
}

// HandleRegister creates an account and returns a token for it.
//
// HTTP: POST /api/users/register
// REQUEST BODY: {"fullName": "Ann Lee", "email": "a@x.com", "password": "pw1"}
// RESPONSE:     {"success": true, "token": "...", "email": "a@x.com", "isLogin": true}
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var in service.RegisterInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.logger.Warn("invalid register body", slog.String("error", err.Error()))
		writeError(w, h.logger, err)
		return
	}

	res, err := h.accounts.Register(r.Context(), in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, res)
}

// HandleLogin checks credentials and returns a token.
//
// HTTP: POST /api/users/login
// REQUEST BODY: {"email": "a@x.com", "password": "pw1"}
//
// An unknown email and a wrong password get the same 401 and message.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var in service.LoginInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.logger.Warn("invalid login body", slog.String("error", err.Error()))
		writeError(w, h.logger, err)
		return
	}

	res, err := h.accounts.Login(r.Context(), in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, res)
}

// HandleMe returns the authenticated user's profile.
//
// HTTP: GET /api/users/me
// Auth: Required (RequireAuth middleware sets the user ID in context)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperror.Unauthorized(auth.UnauthorizedMessage))
		return
	}

	user, err := h.accounts.CurrentUser(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, user)
}

// decodeJSON reads a single JSON object from the body into dst. Any failure
// (malformed JSON, wrong types, oversized body) becomes a validation error.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperror.ValidationFailed("", "request body too large")
		}
		return apperror.ValidationFailed("", "request body must be a valid JSON object")
	}
	return nil
}

// Package service holds the account business logic.
//
// AuthService is the business logic layer for accounts. It sits between the
// HTTP handlers and the repository/auth utilities:
//
//	AuthHandler (HTTP) → AuthService (business rules) → UserRepository (DB)
//	                   ↘ PasswordService (bcrypt)
//	                   ↘ TokenService (JWT)
//
// KEY RESPONSIBILITIES:
//   - Register: validate, reject duplicate emails, hash, store, issue a token
//   - Login: look the user up, verify the password, issue a token
//   - Keep HTTP concerns out: the service returns typed errors and the
//     handler decides the status code
//
// EMAIL NORMALISATION:
// Emails are trimmed and lower-cased before every lookup and insert, so
// "Ann@X.com" and "ann@x.com" are the same account.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"github.com/sakif/accounts/internal/apperror"
	"github.com/sakif/accounts/internal/auth"
	"github.com/sakif/accounts/internal/model"
	"github.com/sakif/accounts/internal/repository"
)

var (
	// ErrDuplicateEmail is returned by Register when the email is taken,
	// whether found by the lookup or rejected by the store's unique index.
	ErrDuplicateEmail = apperror.Conflict("user with this email already exists")

	// ErrInvalidCredentials is returned by Login for an unknown email and for
	// a wrong password alike, so callers cannot probe which emails exist.
	ErrInvalidCredentials = apperror.Unauthorized("invalid email or password")
)

// dummyPassword is hashed once at construction. Login compares against that
// hash when the email is unknown, so both failure paths pay for one bcrypt
// comparison.
const dummyPassword = "accounts-timing-equaliser"

// RegisterInput is the payload for creating an account.
type RegisterInput struct {
	FullName string `json:"fullName" validate:"required,notblank,max=200"`
	Email    string `json:"email"    validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,notblank"`
}

// LoginInput is the payload for signing in.
type LoginInput struct {
	Email    string `json:"email"    validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AuthResult is the success shape of both Register and Login.
// UserID is for server-side use (logging, tests) and is not serialised.
type AuthResult struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
	Email   string `json:"email"`
	IsLogin bool   `json:"isLogin"`
	UserID  int64  `json:"-"`
}

// AuthService handles the account business logic.
//
// DEPENDENCIES (injected via NewAuthService):
//   - users      repository.UserRepository  → read/write user records
//   - passwords  *auth.PasswordService      → bcrypt hashing and verification
//   - tokens     *auth.TokenService         → issue/verify JWTs
//   - logger     *slog.Logger               → structured logging
type AuthService struct {
	users     repository.UserRepository
	passwords *auth.PasswordService
	tokens    *auth.TokenService
	logger    *slog.Logger
	validate  *validator.Validate
	dummyHash string
}

// NewAuthService creates an AuthService with all required dependencies.
// Call this in server.go when wiring the dependency graph.
func NewAuthService(
	users repository.UserRepository,
	passwords *auth.PasswordService,
	tokens *auth.TokenService,
	logger *slog.Logger,
) (*AuthService, error) {
	validate, err := newValidator()
	if err != nil {
		return nil, fmt.Errorf("service/auth: building validator: %w", err)
	}

	dummyHash, err := passwords.Hash(dummyPassword)
	if err != nil {
		return nil, fmt.Errorf("service/auth: preparing dummy hash: %w", err)
	}

	return &AuthService{
		users:     users,
		passwords: passwords,
		tokens:    tokens,
		logger:    logger,
		validate:  validate,
		dummyHash: dummyHash,
	}, nil
}

// Register creates an account and signs the new user in.
//
// FLOW:
//  1. Validate input (required fields, email format)
//  2. Reject the email if an account already uses it
//  3. Hash the password and insert the user
//  4. Issue a token for the new ID
//
// Two concurrent registrations for the same email can both pass step 2; the
// store's unique index rejects the loser, which gets ErrDuplicateEmail too.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = normalizeEmail(in.Email)

	if err := s.check(in); err != nil {
		return nil, err
	}

	_, err := s.users.FindByEmail(ctx, in.Email)
	switch {
	case err == nil:
		return nil, ErrDuplicateEmail
	case !errors.Is(err, apperror.ErrNotFound):
		return nil, fmt.Errorf("service/auth: checking email: %w", err)
	}

	hash, err := s.passwords.Hash(in.Password)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return nil, apperror.ValidationFailed("password", "password must be 72 bytes or fewer")
	}
	if err != nil {
		return nil, fmt.Errorf("service/auth: %w", err)
	}

	user := &model.User{
		FullName:     in.FullName,
		Email:        in.Email,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("service/auth: creating user: %w", err)
	}

	s.logger.Info("user registered",
		slog.Int64("userID", user.ID),
		slog.String("email", user.Email),
	)

	return s.signIn(user)
}

// Login verifies credentials and issues a token.
//
// An unknown email and a wrong password both return ErrInvalidCredentials.
// A stored hash that cannot be parsed is a server fault and is returned
// wrapped, never as invalid credentials.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	in.Email = normalizeEmail(in.Email)

	if err := s.check(in); err != nil {
		return nil, err
	}

	user, err := s.users.FindByEmail(ctx, in.Email)
	if errors.Is(err, apperror.ErrNotFound) {
		// Burn the same bcrypt time a real comparison would take.
		_, _ = s.passwords.Verify(in.Password, s.dummyHash)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("service/auth: looking up user: %w", err)
	}

	ok, err := s.passwords.Verify(in.Password, user.PasswordHash)
	if err != nil {
		s.logger.Error("stored password hash is unreadable",
			slog.Int64("userID", user.ID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("service/auth: verifying password for user %d: %w", user.ID, err)
	}
	if !ok {
		s.logger.Info("login rejected", slog.Int64("userID", user.ID))
		return nil, ErrInvalidCredentials
	}

	s.logger.Info("user logged in", slog.Int64("userID", user.ID))

	return s.signIn(user)
}

// CurrentUser returns the account behind an authenticated request.
func (s *AuthService) CurrentUser(ctx context.Context, id int64) (*model.User, error) {
	if id <= 0 {
		return nil, apperror.ValidationFailed("id", "user ID must be positive")
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %d: %w", id, err)
	}
	return user, nil
}

// Authenticate validates a bearer token and returns the user ID it carries.
func (s *AuthService) Authenticate(token string) (int64, error) {
	id, err := s.tokens.Verify(token)
	if err != nil {
		return 0, fmt.Errorf("service/auth: %w", err)
	}
	return id, nil
}

func (s *AuthService) signIn(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing token for user %d: %w", user.ID, err)
	}

	return &AuthResult{
		Success: true,
		Token:   token,
		Email:   user.Email,
		IsLogin: true,
		UserID:  user.ID,
	}, nil
}

// check runs struct validation and turns the first failure into an
// apperror.ValidationFailed naming the JSON field.
func (s *AuthService) check(in any) error {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("service/auth: validating input: %w", err)
	}

	fe := fieldErrs[0]
	return apperror.ValidationFailed(fe.Field(), describe(fe))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return fe.Field() + " is required"
	case "email":
		return fe.Field() + " must be a valid email address"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		return fe.Field() + " is invalid"
	}
}

// newValidator builds the struct validator. notblank ships in validator's
// non-standard package and has to be registered before any Struct call.
func newValidator() (*validator.Validate, error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		return nil, fmt.Errorf("registering notblank: %w", err)
	}
	// Report fields by their JSON names so messages match the request body.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

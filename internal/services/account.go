package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/store"
)

// MinPasswordLength is the shortest password accepted anywhere.
const MinPasswordLength = 6

var (
	ErrMissingCredentials = errors.New("email and password are required")
	ErrInvalidEmail       = errors.New("enter a valid email address")
	ErrPasswordTooShort   = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	ErrPasswordMismatch   = errors.New("passwords do not match")
)

// AccountService drives the sign-in, registration, recovery and password
// flows. It never keeps an identity; callers hold it in the session.
type AccountService struct {
	auth       store.Authenticator
	categories *CategoryCache
	logger     *log.Logger
}

// NewAccountService builds the service; categories may be nil.
func NewAccountService(auth store.Authenticator, categories *CategoryCache, logger *log.Logger) *AccountService {
	return &AccountService{auth: auth, categories: categories, logger: logger.WithComponent(log.ComponentAuth)}
}

func (s *AccountService) SignIn(ctx context.Context, email, password string) (core.Identity, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return core.Identity{}, invalid("", ErrMissingCredentials)
	}
	id, err := s.auth.SignIn(ctx, email, password)
	if err != nil {
		if !errors.Is(err, store.ErrInvalidCredentials) {
			s.logger.ErrorContext(ctx, "Sign-in failed", log.FieldError, err.Error())
		}
		return core.Identity{}, err
	}
	s.logger.InfoContext(ctx, "User signed in", log.FieldUserID, id.UserID)
	return id, nil
}

// SignUp registers an account. store.ErrConfirmationPending means the
// account exists but no session can be issued yet.
func (s *AccountService) SignUp(ctx context.Context, email, password, confirm string) (core.Identity, error) {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return core.Identity{}, err
	}
	if err := validatePassword(password, confirm); err != nil {
		return core.Identity{}, err
	}
	id, err := s.auth.SignUp(ctx, email, password)
	if err != nil {
		if !errors.Is(err, store.ErrEmailTaken) && !errors.Is(err, store.ErrConfirmationPending) {
			s.logger.ErrorContext(ctx, "Sign-up failed", log.FieldError, err.Error())
		}
		return core.Identity{}, err
	}
	s.logger.InfoContext(ctx, "User registered", log.FieldUserID, id.UserID)
	return id, nil
}

// RequestPasswordReset starts recovery. Store failures are logged only, so
// the response never reveals whether the address is registered.
func (s *AccountService) RequestPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return err
	}
	if err := s.auth.RequestPasswordReset(ctx, email); err != nil {
		s.logger.WarnContext(ctx, "Password reset request failed", log.FieldError, err.Error())
	}
	return nil
}

func (s *AccountService) ChangePassword(ctx context.Context, id core.Identity, password, confirm string) error {
	if id.IsZero() {
		return store.ErrUnauthenticated
	}
	if err := validatePassword(password, confirm); err != nil {
		return err
	}
	if err := s.auth.UpdatePassword(ctx, id, password); err != nil {
		s.logger.ErrorContext(ctx, "Password update failed",
			log.FieldUserID, id.UserID,
			log.FieldError, err.Error())
		return fmt.Errorf("update password: %w", err)
	}
	s.logger.InfoContext(ctx, "Password updated", log.FieldUserID, id.UserID)
	return nil
}

// SignOut ends the store session and forgets cached data for the user.
// Store errors are logged; the local session ends regardless.
func (s *AccountService) SignOut(ctx context.Context, id core.Identity) {
	if id.IsZero() {
		return
	}
	if s.categories != nil {
		s.categories.Forget(id.UserID)
	}
	if err := s.auth.SignOut(ctx, id); err != nil {
		s.logger.WarnContext(ctx, "Store sign-out failed",
			log.FieldUserID, id.UserID,
			log.FieldError, err.Error())
	}
	s.logger.InfoContext(ctx, "User signed out", log.FieldUserID, id.UserID)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	if email == "" {
		return invalid("email", ErrMissingCredentials)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return invalid("email", ErrInvalidEmail)
	}
	return nil
}

func validatePassword(password, confirm string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return invalid("password", ErrPasswordTooShort)
	}
	if password != confirm {
		return invalid("confirm", ErrPasswordMismatch)
	}
	return nil
}

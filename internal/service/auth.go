// Package service contains the business logic layer.
//
// Handlers parse HTTP and call services; services enforce the rules and call
// repositories; repositories talk to storage. Services receive repository
// INTERFACES, so tests swap in in-memory fakes and no service ever imports
// the sqlite package.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/karim/bloghub/internal/apperror"
	"github.com/karim/bloghub/internal/auth"
	"github.com/karim/bloghub/internal/model"
	"github.com/karim/bloghub/internal/repository"
)

const (
	MinUsernameLength = 3
	MaxUsernameLength = 50
	MinPasswordLength = 8
)

// AuthService owns registration, login, password reset, and the admin user
// operations.
type AuthService struct {
	users     repository.UserRepository
	passwords *auth.PasswordService
	tokens    *auth.TokenService
	resets    *auth.ResetTokenService
	logger    *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	passwords *auth.PasswordService,
	tokens *auth.TokenService,
	resets *auth.ResetTokenService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		passwords: passwords,
		tokens:    tokens,
		resets:    resets,
		logger:    logger,
	}
}

// AuthResult bundles the authenticated user with their issued session token
// so the handler can set the cookie and respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// Register creates a new account. Usernames and emails are unique; a clash
// surfaces as ErrConflict with no row created. The password is hashed before
// it goes anywhere near the repository — the plaintext lives only on this
// call's stack.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (*model.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(strings.ToLower(email))

	if l := len(username); l < MinUsernameLength || l > MaxUsernameLength {
		return nil, apperror.ValidationFailed("username",
			fmt.Sprintf("username must be between %d and %d characters", MinUsernameLength, MaxUsernameLength))
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperror.ValidationFailed("email", "email address is not valid")
	}
	if len(password) < MinPasswordLength {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, apperror.ValidationFailed("password", err.Error())
	}

	user := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, err
		}
		s.logger.Error("failed to create user",
			slog.String("username", username),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("registering user: %w", err)
	}

	s.logger.Info("user registered",
		slog.Int64("userID", user.ID),
		slog.String("username", user.Username),
	)
	return user, nil
}

// Authenticate verifies credentials and issues a session token.
//
// The failure mode is identical for "unknown username", "deactivated
// account", and "wrong password" — one generic invalid-credentials error,
// so the endpoint can't be used to probe which usernames exist.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (*AuthResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperror.InvalidCredentials()
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.InvalidCredentials()
		}
		return nil, fmt.Errorf("looking up user %q: %w", username, err)
	}

	if !user.IsActive || !s.passwords.Verify(user.PasswordHash, password) {
		s.logger.Warn("failed login attempt", slog.String("username", username))
		return nil, apperror.InvalidCredentials()
	}

	token, err := s.tokens.Generate(auth.Identity{UserID: user.ID, Username: user.Username})
	if err != nil {
		return nil, fmt.Errorf("issuing session token for user %d: %w", user.ID, err)
	}

	s.logger.Info("user logged in",
		slog.Int64("userID", user.ID),
		slog.String("username", user.Username),
	)
	return &AuthResult{User: user, Token: token}, nil
}

// Profile returns the public view of a user by username.
func (s *AuthService) Profile(ctx context.Context, username string) (*model.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, apperror.ValidationFailed("username", "username is required")
	}
	return s.users.GetByUsername(ctx, username)
}

// RequestPasswordReset issues a reset token for the account with the given
// email. From the caller's point of view it ALWAYS succeeds — an unknown
// email returns nil exactly like a known one, so the endpoint can't be used
// to enumerate accounts. The token itself is stored server-side and handed
// to the delivery channel (out of band); it is never part of the response.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return apperror.ValidationFailed("email", "email is required")
	}

	token := s.resets.Issue()
	err := s.users.SetResetToken(ctx, email, token.Value, token.ExpiresAt)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			// Unknown email: succeed outwardly, note it inwardly.
			s.logger.Info("password reset requested for unknown email")
			return nil
		}
		s.logger.Error("failed to store reset token", slog.String("error", err.Error()))
		return fmt.Errorf("requesting password reset: %w", err)
	}

	// The token value is deliberately absent from the log line.
	s.logger.Info("password reset token issued", slog.String("email", email))
	return nil
}

// ConsumePasswordReset redeems a reset token and sets the new password.
// The repository performs verification, password write, and token clear as
// one atomic statement — a token is accepted exactly once, and an expired
// token fails even if otherwise correct.
func (s *AuthService) ConsumePasswordReset(ctx context.Context, email, token, newPassword string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	if len(newPassword) < MinPasswordLength {
		return apperror.ValidationFailed("newPassword",
			fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}

	hash, err := s.passwords.Hash(newPassword)
	if err != nil {
		return apperror.ValidationFailed("newPassword", err.Error())
	}

	if err := s.users.ConsumeResetToken(ctx, email, token, hash, timeNow()); err != nil {
		return err
	}

	s.logger.Info("password changed via reset token", slog.String("email", email))
	return nil
}

// ListUsers returns accounts, optionally filtered by role label. Admin-only
// at the transport layer.
func (s *AuthService) ListUsers(ctx context.Context, role string, opts repository.ListOptions) ([]model.User, error) {
	return s.users.List(ctx, role, opts)
}

// PromoteUser grants the admin flag. The repository runs the check-and-set
// in a transaction, so a concurrent login never observes a half-applied
// role change.
func (s *AuthService) PromoteUser(ctx context.Context, userID int64) error {
	if err := s.users.SetAdmin(ctx, userID, true); err != nil {
		return err
	}
	s.logger.Info("user promoted to admin", slog.Int64("userID", userID))
	return nil
}

// DeactivateUser soft-disables an account. Existing sessions lose privilege
// on their next admin-checked request; login is refused immediately.
func (s *AuthService) DeactivateUser(ctx context.Context, userID int64) error {
	if err := s.users.SetActive(ctx, userID, false); err != nil {
		return err
	}
	s.logger.Info("user deactivated", slog.Int64("userID", userID))
	return nil
}

package auth

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/SAP-F-2025/learning-service/internal/models"
	"github.com/SAP-F-2025/learning-service/internal/repositories"
	"github.com/SAP-F-2025/learning-service/internal/services"
)

var (
	ErrNoCredentials      = &services.DomainError{Kind: services.ErrAuthFailure, Message: "missing access token"}
	ErrInvalidCredentials = &services.DomainError{Kind: services.ErrAuthFailure, Message: "invalid access token"}
	ErrUnknownSubject     = &services.DomainError{Kind: services.ErrAuthFailure, Message: "token subject is not an active user"}
)

// Authenticator turns an access token into a local user
type Authenticator struct {
	verifier TokenVerifier
	users    repositories.UserRepository
	logger   *slog.Logger
}

func NewAuthenticator(verifier TokenVerifier, users repositories.UserRepository, logger *slog.Logger) *Authenticator {
	return &Authenticator{
		verifier: verifier,
		users:    users,
		logger:   logger,
	}
}

// Authenticate verifies token and resolves its subject by username, then by numeric id
func (a *Authenticator) Authenticate(ctx context.Context, token string) (*models.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrNoCredentials
	}

	subject, err := a.verifier.Verify(token)
	if err != nil {
		a.logger.Debug("Token rejected", "error", err)
		return nil, ErrInvalidCredentials
	}

	user, err := a.resolve(ctx, subject)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrUnknownSubject
	}
	return user, nil
}

func (a *Authenticator) resolve(ctx context.Context, subject string) (*models.User, error) {
	user, err := a.users.GetByUsername(ctx, nil, subject)
	if err == nil {
		return user, nil
	}
	if !repositories.IsNotFoundError(err) {
		return nil, err
	}

	id, parseErr := strconv.ParseUint(subject, 10, 64)
	if parseErr != nil || id == 0 {
		return nil, ErrUnknownSubject
	}

	user, err = a.users.GetByID(ctx, nil, uint(id))
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrUnknownSubject
		}
		return nil, err
	}
	return user, nil
}

// BearerToken extracts the token of an "Authorization: Bearer <token>" header value
func BearerToken(header string) string {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

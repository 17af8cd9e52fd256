package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

// AuthService verifies credentials and issues access tokens. Everything
// beyond login (refresh, reset) is out of scope; the engine only ever sees
// the resolved CallerIdentity.
type AuthService struct {
	users  repository.UserRepository
	tokens *auth.TokenManager
}

// NewAuthService constructs the service.
func NewAuthService(cfg config.Config, users repository.UserRepository) *AuthService {
	return &AuthService{
		users:  users,
		tokens: auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
	}
}

// TokenManager exposes the manager for middleware wiring.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokens
}

// LoginResult carries the issued token.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *domain.User
}

// Login checks credentials and issues a signed token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, apperrors.MapError(err)
	}
	if user.Status != domain.UserStatusActive {
		return nil, apperrors.NewUnauthorized("account suspended")
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}

	token, expiresAt, err := s.tokens.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

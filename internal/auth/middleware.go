package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

const callerKey = "auth_caller"

// AuthMiddleware validates bearer tokens and resolves the caller identity
// (role plus active group memberships) the engine authorizes against.
type AuthMiddleware struct {
	tokens *TokenManager
	users  repository.UserRepository
	groups repository.GroupRepository
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, users repository.UserRepository, groups repository.GroupRepository) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, users: users, groups: groups}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	user, err := m.users.GetByID(c.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewUnauthorized("user not found")
		}
		return apperrors.MapError(err)
	}
	if user.Status != domain.UserStatusActive {
		return apperrors.NewUnauthorized("account suspended")
	}

	memberships, err := m.groups.ListMembershipsByUser(c.Context(), user.ID)
	if err != nil {
		return apperrors.MapError(err)
	}

	caller := domain.CallerIdentity{
		UserID:      user.ID,
		Role:        user.Role,
		Memberships: memberships,
	}
	c.Locals(callerKey, caller)
	return c.Next()
}

// CallerFromContext retrieves the resolved caller identity.
func CallerFromContext(c *fiber.Ctx) (domain.CallerIdentity, bool) {
	val := c.Locals(callerKey)
	if val == nil {
		return domain.CallerIdentity{}, false
	}
	caller, ok := val.(domain.CallerIdentity)
	return caller, ok
}

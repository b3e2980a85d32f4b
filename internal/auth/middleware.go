package auth

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/lead-distribution/internal/domain"
	apperrors "github.com/spec-kit/lead-distribution/pkg/errorutil"
)

const principalKey = "auth_principal"

// Headers used by schedulers and other internal callers.
const (
	HeaderSystemKey = "X-System-Key"
	HeaderTenantID  = "X-Tenant-ID"
)

// Principal represents the authenticated caller.
type Principal struct {
	CompanyID int64
	StaffID   *int64
	Role      domain.StaffRole
	System    bool
}

// Actor returns the staff id recorded as assigner, nil for system callers.
func (p *Principal) Actor() *int64 {
	if p == nil || p.StaffID == nil {
		return nil
	}
	id := *p.StaffID
	return &id
}

// AuthMiddleware resolves the tenant and caller of each request.
type AuthMiddleware struct {
	tokens        *TokenManager
	systemKeyHash string
}

// NewAuthMiddleware constructs middleware. An empty systemKeyHash disables system keys.
func NewAuthMiddleware(tokens *TokenManager, systemKeyHash string) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, systemKeyHash: systemKeyHash}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	if key := c.Get(HeaderSystemKey); key != "" {
		principal, err := m.systemPrincipal(key, c.Get(HeaderTenantID))
		if err != nil {
			return err
		}
		c.Locals(principalKey, principal)
		return c.Next()
	}

	authHeader := c.Get(fiber.HeaderAuthorization)
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

	staffID := claims.StaffID
	c.Locals(principalKey, &Principal{
		CompanyID: claims.CompanyID,
		StaffID:   &staffID,
		Role:      claims.Role,
	})
	return c.Next()
}

func (m *AuthMiddleware) systemPrincipal(key, tenant string) (*Principal, error) {
	if m.systemKeyHash == "" || CompareSystemKey(m.systemKeyHash, key) != nil {
		return nil, apperrors.NewUnauthorized("invalid system key")
	}
	companyID, err := strconv.ParseInt(tenant, 10, 64)
	if err != nil || companyID <= 0 {
		return nil, apperrors.NewUnauthorized("system callers must send " + HeaderTenantID)
	}
	return &Principal{CompanyID: companyID, System: true}, nil
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}

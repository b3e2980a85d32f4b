package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/lead-distribution/internal/domain"
	apperrors "github.com/spec-kit/lead-distribution/pkg/errorutil"
)

const secret = "test-secret"

func newTestApp(t *testing.T, systemKey string, guards ...fiber.Handler) *fiber.App {
	t.Helper()
	hash := ""
	if systemKey != "" {
		var err error
		hash, err = HashSystemKey(systemKey, bcrypt.MinCost)
		require.NoError(t, err)
	}
	mw := NewAuthMiddleware(NewTokenManager(secret, 5), hash)

	app := fiber.New(fiber.Config{ErrorHandler: func(c *fiber.Ctx, err error) error {
		var domainErr *apperrors.DomainError
		if errors.As(err, &domainErr) {
			return c.SendStatus(domainErr.HTTPStatus)
		}
		return c.SendStatus(http.StatusInternalServerError)
	}})
	handlers := append([]fiber.Handler{mw.Handle}, guards...)
	handlers = append(handlers, func(c *fiber.Ctx) error {
		p, _ := PrincipalFromContext(c)
		return c.JSON(fiber.Map{"company": p.CompanyID, "system": p.System, "actor": p.Actor()})
	})
	app.Get("/", handlers...)
	return app
}

func bearer(t *testing.T, staffID, companyID int64, role domain.StaffRole) string {
	t.Helper()
	token, _, err := NewTokenManager(secret, 5).GenerateToken(staffID, companyID, role)
	require.NoError(t, err)
	return "Bearer " + token
}

func do(t *testing.T, app *fiber.App, headers map[string]string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestTokenManager(t *testing.T) {
	tm := NewTokenManager(secret, 5)
	token, expires, err := tm.GenerateToken(4, 9, domain.StaffRoleManager)
	require.NoError(t, err)
	require.False(t, expires.IsZero())

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	require.Equal(t, int64(4), claims.StaffID)
	require.Equal(t, int64(9), claims.CompanyID)
	require.Equal(t, domain.StaffRoleManager, claims.Role)

	_, err = NewTokenManager("other", 5).ParseToken(token)
	require.Error(t, err)

	incomplete, _, err := tm.GenerateToken(4, 0, domain.StaffRoleAgent)
	require.NoError(t, err)
	_, err = tm.ParseToken(incomplete)
	require.Error(t, err)
}

func TestAuthMiddleware(t *testing.T) {
	t.Run("bearer tokens resolve tenant and actor", func(t *testing.T) {
		app := newTestApp(t, "")
		require.Equal(t, http.StatusOK, do(t, app, map[string]string{
			fiber.HeaderAuthorization: bearer(t, 1, 2, domain.StaffRoleAgent),
		}))
	})

	t.Run("missing or malformed credentials", func(t *testing.T) {
		app := newTestApp(t, "")
		require.Equal(t, http.StatusUnauthorized, do(t, app, nil))
		require.Equal(t, http.StatusUnauthorized, do(t, app, map[string]string{fiber.HeaderAuthorization: "Basic abc"}))
		require.Equal(t, http.StatusUnauthorized, do(t, app, map[string]string{fiber.HeaderAuthorization: "Bearer nope"}))
	})

	t.Run("system key with tenant header", func(t *testing.T) {
		app := newTestApp(t, "s3cret")
		require.Equal(t, http.StatusOK, do(t, app, map[string]string{HeaderSystemKey: "s3cret", HeaderTenantID: "12"}))
		require.Equal(t, http.StatusUnauthorized, do(t, app, map[string]string{HeaderSystemKey: "s3cret"}))
		require.Equal(t, http.StatusUnauthorized, do(t, app, map[string]string{HeaderSystemKey: "s3cret", HeaderTenantID: "x"}))
		require.Equal(t, http.StatusUnauthorized, do(t, app, map[string]string{HeaderSystemKey: "wrong", HeaderTenantID: "12"}))
	})

	t.Run("system keys are refused when none is configured", func(t *testing.T) {
		app := newTestApp(t, "")
		require.Equal(t, http.StatusUnauthorized, do(t, app, map[string]string{HeaderSystemKey: "anything", HeaderTenantID: "12"}))
	})
}

func TestRequireStaffRole(t *testing.T) {
	app := newTestApp(t, "s3cret", RequireStaffRole(domain.StaffRoleAdmin, domain.StaffRoleManager))

	require.Equal(t, http.StatusOK, do(t, app, map[string]string{
		fiber.HeaderAuthorization: bearer(t, 1, 2, domain.StaffRoleManager),
	}))
	require.Equal(t, http.StatusForbidden, do(t, app, map[string]string{
		fiber.HeaderAuthorization: bearer(t, 1, 2, domain.StaffRoleAgent),
	}))
	require.Equal(t, http.StatusOK, do(t, app, map[string]string{HeaderSystemKey: "s3cret", HeaderTenantID: "2"}))
}

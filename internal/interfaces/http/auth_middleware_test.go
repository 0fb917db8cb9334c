package http_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apphttp "github.com/jhoicas/erp-sunat-api/internal/interfaces/http"
	pkgjwt "github.com/jhoicas/erp-sunat-api/pkg/jwt"
)

// ── Helpers compartidos por los tests del paquete ──

const (
	testJWTSecret = "test-secret-key-for-unit-tests"
	testIssuer    = "erp-sunat-test"
	testUserID    = "00000000-0000-0000-0000-000000000001"
	testCompanyID = "00000000-0000-0000-0000-000000000002"
)

var testVerifier = mustVerifier()

func mustVerifier() *pkgjwt.Verifier {
	v, err := pkgjwt.NewVerifier(testJWTSecret, testIssuer, 0)
	if err != nil {
		panic(err)
	}
	return v
}

func issue(t *testing.T, secret, role string, ttl time.Duration) string {
	t.Helper()
	tok, err := pkgjwt.Issue(secret, testIssuer, pkgjwt.Identity{UserID: testUserID, CompanyID: testCompanyID, Role: role}, ttl)
	require.NoError(t, err)
	return tok
}

// tokenForRole cabecera Authorization válida para el rol indicado.
func tokenForRole(t *testing.T, role string) string {
	t.Helper()
	return "Bearer " + issue(t, testJWTSecret, role, time.Hour)
}

// protectedApp GET /protected con AuthMiddleware + RequireRole(allowed...).
func protectedApp(allowed ...string) *fiber.App {
	app := fiber.New()
	app.Get("/protected", apphttp.AuthMiddleware(testVerifier), apphttp.RequireRole(allowed...), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"user_id":    apphttp.GetUserID(c),
			"company_id": apphttp.GetCompanyID(c),
			"role":       apphttp.GetRole(c),
		})
	})
	return app
}

func getProtected(t *testing.T, app *fiber.App, authorization string) (int, map[string]string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authorization != "" {
		req.Header.Set(fiber.HeaderAuthorization, authorization)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	body := map[string]string{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

// ── AuthMiddleware ──

func TestAuthMiddleware_Cabecera(t *testing.T) {
	cases := []struct {
		name   string
		header string
		code   string
	}{
		{"sin cabecera", "", "MISSING_TOKEN"},
		{"esquema distinto", "Basic dXNlcjpwYXNz", "INVALID_TOKEN"},
		{"bearer sin token", "Bearer ", "MISSING_TOKEN"},
		{"token malformado", "Bearer token.invalido.aqui", "INVALID_TOKEN"},
		{"firmado con otro secreto", "Bearer " + issue(t, "otro-secreto", "admin", time.Hour), "INVALID_TOKEN"},
		{"vencido", "Bearer " + issue(t, testJWTSecret, "admin", -time.Hour), "TOKEN_EXPIRED"},
	}
	app := protectedApp(apphttp.RoleAdmin)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := getProtected(t, app, tc.header)
			assert.Equal(t, http.StatusUnauthorized, status)
			assert.Equal(t, tc.code, body["code"])
		})
	}
}

func TestAuthMiddleware_CargaIdentidad(t *testing.T) {
	status, body := getProtected(t, protectedApp(apphttp.RoleContador), "bearer "+issue(t, testJWTSecret, "contador", time.Hour))

	require.Equal(t, http.StatusOK, status, "el esquema no distingue mayúsculas")
	assert.Equal(t, testUserID, body["user_id"])
	assert.Equal(t, testCompanyID, body["company_id"])
	assert.Equal(t, "contador", body["role"])
}

// ── RequireRole ──

func TestRequireRole(t *testing.T) {
	cases := []struct {
		name    string
		allowed []string
		role    string
		status  int
		code    string
	}{
		{"admin en ruta de admin", []string{apphttp.RoleAdmin}, "admin", http.StatusOK, ""},
		{"contador en ruta de operadores", []string{apphttp.RoleAdmin, apphttp.RoleContador}, "contador", http.StatusOK, ""},
		{"vendedor en ruta de admin", []string{apphttp.RoleAdmin}, "vendedor", http.StatusForbidden, "FORBIDDEN"},
		{"contador en ruta de vendedor", []string{apphttp.RoleVendedor}, "contador", http.StatusForbidden, "FORBIDDEN"},
		{"token sin rol", []string{apphttp.RoleAdmin}, "", http.StatusUnauthorized, "MISSING_ROLE"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := getProtected(t, protectedApp(tc.allowed...), tokenForRole(t, tc.role))
			assert.Equal(t, tc.status, status)
			if tc.code != "" {
				assert.Equal(t, tc.code, body["code"])
			} else {
				assert.Equal(t, tc.role, body["role"])
			}
		})
	}
}

package http_test

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apphttp "github.com/jhoicas/erp-sunat-api/internal/interfaces/http"
)

func logLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	sc := bufio.NewScanner(buf)
	for sc.Scan() {
		line := map[string]any{}
		require.NoError(t, json.Unmarshal(sc.Bytes(), &line))
		out = append(out, line)
	}
	return out
}

func TestRequestLogger_NivelSegunEstado(t *testing.T) {
	var buf bytes.Buffer
	app := fiber.New()
	app.Use(requestid.New())
	app.Use(apphttp.RequestLogger(zerolog.New(&buf)))
	app.Get("/ok", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/falta", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNotFound) })
	app.Get("/caido", func(*fiber.Ctx) error { return fiber.ErrServiceUnavailable })

	for _, path := range []string{"/ok", "/falta", "/caido"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil), -1)
		require.NoError(t, err)
		resp.Body.Close()
	}

	lines := logLines(t, &buf)
	require.Len(t, lines, 3)

	assert.Equal(t, "info", lines[0]["level"])
	assert.Equal(t, "/ok", lines[0]["path"])
	assert.EqualValues(t, 200, lines[0]["status"])
	assert.NotEmpty(t, lines[0]["request_id"])

	assert.Equal(t, "warn", lines[1]["level"])
	assert.EqualValues(t, 404, lines[1]["status"])

	assert.Equal(t, "error", lines[2]["level"])
	assert.EqualValues(t, 503, lines[2]["status"])
}

func TestRequestLogger_IncluyeEmpresaAutenticada(t *testing.T) {
	var buf bytes.Buffer
	app := fiber.New()
	app.Use(apphttp.RequestLogger(zerolog.New(&buf)))
	app.Get("/api/x", apphttp.AuthMiddleware(testVerifier), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/api/x", nil)
	req.Header.Set(fiber.HeaderAuthorization, tokenForRole(t, "vendedor"))
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	resp.Body.Close()

	lines := logLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, testCompanyID, lines[0]["company_id"])
}

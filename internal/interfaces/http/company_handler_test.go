package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/erp-sunat-api/internal/application/dto"
	"github.com/jhoicas/erp-sunat-api/internal/domain"
	apphttp "github.com/jhoicas/erp-sunat-api/internal/interfaces/http"
)

type fakeCompanyReader map[string]*dto.CompanyResponse

func (f fakeCompanyReader) GetByID(_ context.Context, id string) (*dto.CompanyResponse, error) {
	if c, ok := f[id]; ok {
		return c, nil
	}
	return nil, domain.ErrNotFound
}

func companyApp(f fakeCompanyReader) *fiber.App {
	app := fiber.New()
	app.Get("/api/company", apphttp.AuthMiddleware(testVerifier), apphttp.NewCompanyHandler(f).Me)
	return app
}

func TestCompany_Me(t *testing.T) {
	f := fakeCompanyReader{testCompanyID: {ID: testCompanyID, RUC: "20100123453", LegalName: "EMPRESA DEMO S.A.C."}}
	resp := call(t, companyApp(f), http.MethodGet, "/api/company", "vendedor", nil)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out dto.CompanyResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "20100123453", out.RUC)
}

func TestCompany_Me_NoExiste(t *testing.T) {
	resp := call(t, companyApp(fakeCompanyReader{}), http.MethodGet, "/api/company", "admin", nil)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", decodeError(t, resp).Code)
}

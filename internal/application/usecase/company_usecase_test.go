package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/erp-sunat-api/internal/application/usecase"
	"github.com/jhoicas/erp-sunat-api/internal/domain"
	"github.com/jhoicas/erp-sunat-api/internal/domain/entity"
)

type fakeCompanyRepo struct {
	companies map[string]*entity.Company
	err       error
}

func (r *fakeCompanyRepo) GetByID(_ context.Context, id string) (*entity.Company, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.companies[id], nil
}

func (r *fakeCompanyRepo) GetBillingConfig(context.Context, string) (*entity.BillingConfig, error) {
	return nil, nil
}

func (r *fakeCompanyRepo) UpdateBillingConfig(context.Context, *entity.BillingConfig) error {
	return nil
}

func (r *fakeCompanyRepo) SetProduction(context.Context, string, bool) error { return nil }

func TestCompanyUseCase_GetByID(t *testing.T) {
	repo := &fakeCompanyRepo{companies: map[string]*entity.Company{
		"c-1": {ID: "c-1", RUC: "20100123453", LegalName: "EMPRESA DEMO S.A.C."},
	}}
	uc := usecase.NewCompanyUseCase(repo)

	out, err := uc.GetByID(context.Background(), "c-1")
	require.NoError(t, err)
	assert.Equal(t, "20100123453", out.RUC)
	assert.Equal(t, "PEN", out.CurrencyCode, "sin moneda configurada se asume soles")
}

func TestCompanyUseCase_NoExiste(t *testing.T) {
	uc := usecase.NewCompanyUseCase(&fakeCompanyRepo{})

	_, err := uc.GetByID(context.Background(), "c-9")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCompanyUseCase_ErrorDeRepositorio(t *testing.T) {
	uc := usecase.NewCompanyUseCase(&fakeCompanyRepo{err: errors.New("db caída")})

	_, err := uc.GetByID(context.Background(), "c-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
}

package usecase

import (
	"context"
	"fmt"

	"github.com/jhoicas/erp-sunat-api/internal/application/dto"
	"github.com/jhoicas/erp-sunat-api/internal/domain"
	"github.com/jhoicas/erp-sunat-api/internal/domain/entity"
	"github.com/jhoicas/erp-sunat-api/internal/domain/repository"
)

// CompanyUseCase consulta la empresa emisora del usuario autenticado.
// El alta de empresas ocurre fuera de esta API.
type CompanyUseCase struct {
	repo repository.CompanyRepository
}

// NewCompanyUseCase construye el caso de uso con el puerto de persistencia.
func NewCompanyUseCase(repo repository.CompanyRepository) *CompanyUseCase {
	return &CompanyUseCase{repo: repo}
}

// GetByID obtiene la empresa; domain.ErrNotFound si no existe.
func (uc *CompanyUseCase) GetByID(ctx context.Context, id string) (*dto.CompanyResponse, error) {
	company, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("company: obtener empresa: %w", err)
	}
	if company == nil {
		return nil, domain.ErrNotFound
	}
	return entityToCompanyResponse(company), nil
}

func entityToCompanyResponse(c *entity.Company) *dto.CompanyResponse {
	currency := c.CurrencyCode
	if currency == "" {
		currency = "PEN"
	}
	return &dto.CompanyResponse{
		ID:           c.ID,
		RUC:          c.RUC,
		LegalName:    c.LegalName,
		TradeName:    c.TradeName,
		Address:      c.Address,
		UbigeoCode:   c.UbigeoCode,
		Email:        c.Email,
		Phone:        c.Phone,
		CurrencyCode: currency,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

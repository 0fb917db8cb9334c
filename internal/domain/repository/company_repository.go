package repository

import (
	"context"

	"github.com/jhoicas/erp-sunat-api/internal/domain/entity"
)

// CompanyRepository puerto de persistencia de la empresa y su configuración SUNAT.
type CompanyRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Company, error)
	GetBillingConfig(ctx context.Context, companyID string) (*entity.BillingConfig, error)
	UpdateBillingConfig(ctx context.Context, cfg *entity.BillingConfig) error
	SetProduction(ctx context.Context, companyID string, production bool) error
}

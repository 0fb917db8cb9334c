package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/erp-sunat-api/internal/domain"
	"github.com/jhoicas/erp-sunat-api/internal/domain/entity"
	"github.com/jhoicas/erp-sunat-api/internal/domain/repository"
)

// Asegura que CompanyRepo implementa repository.CompanyRepository.
var _ repository.CompanyRepository = (*CompanyRepo)(nil)

// CompanyRepo implementación del puerto CompanyRepository sobre PostgreSQL.
// La configuración SUNAT vive en company_billing_configs (1:1 con companies).
type CompanyRepo struct {
	q Querier
}

// NewCompanyRepository construye el adaptador de persistencia para empresas.
func NewCompanyRepository(q Querier) *CompanyRepo {
	return &CompanyRepo{q: q}
}

// GetByID obtiene una empresa por ID.
func (r *CompanyRepo) GetByID(ctx context.Context, id string) (*entity.Company, error) {
	query := `
		SELECT id, ruc, legal_name, COALESCE(trade_name, ''), COALESCE(address, ''), COALESCE(ubigeo_code, ''),
		       COALESCE(email, ''), COALESCE(phone, ''), currency_code, created_at, updated_at
		FROM companies WHERE id = $1`
	var c entity.Company
	err := r.q.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.RUC, &c.LegalName, &c.TradeName, &c.Address, &c.UbigeoCode,
		&c.Email, &c.Phone, &c.CurrencyCode, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get company: %w", err)
	}
	return &c, nil
}

// GetBillingConfig datos del emisor y credenciales SOL. Una empresa sin fila de
// configuración devuelve credenciales vacías; una empresa inexistente devuelve nil.
func (r *CompanyRepo) GetBillingConfig(ctx context.Context, companyID string) (*entity.BillingConfig, error) {
	query := `
		SELECT c.id, c.ruc, c.legal_name, COALESCE(c.trade_name, ''), COALESCE(c.address, ''), COALESCE(c.ubigeo_code, ''),
		       COALESCE(b.sol_user, ''), COALESCE(b.sol_password, ''), COALESCE(b.cert_path, ''), COALESCE(b.cert_password, ''),
		       COALESCE(b.client_id, ''), COALESCE(b.client_secret, ''), COALESCE(b.production, false),
		       COALESCE(b.updated_at, c.updated_at)
		FROM companies c
		LEFT JOIN company_billing_configs b ON b.company_id = c.id
		WHERE c.id = $1`
	var cfg entity.BillingConfig
	err := r.q.QueryRow(ctx, query, companyID).Scan(
		&cfg.CompanyID, &cfg.RUC, &cfg.LegalName, &cfg.TradeName, &cfg.Address, &cfg.UbigeoCode,
		&cfg.SolUser, &cfg.SolPassword, &cfg.CertPath, &cfg.CertPassword,
		&cfg.ClientID, &cfg.ClientSecret, &cfg.Production, &cfg.UpdatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get billing config: %w", err)
	}
	return &cfg, nil
}

// UpdateBillingConfig inserta o reemplaza credenciales y certificado. El entorno
// (production) solo cambia con SetProduction.
func (r *CompanyRepo) UpdateBillingConfig(ctx context.Context, cfg *entity.BillingConfig) error {
	query := `
		INSERT INTO company_billing_configs
		    (company_id, sol_user, sol_password, cert_path, cert_password, client_id, client_secret, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (company_id) DO UPDATE
		SET sol_user      = EXCLUDED.sol_user,
		    sol_password  = EXCLUDED.sol_password,
		    cert_path     = EXCLUDED.cert_path,
		    cert_password = EXCLUDED.cert_password,
		    client_id     = EXCLUDED.client_id,
		    client_secret = EXCLUDED.client_secret,
		    updated_at    = NOW()`
	_, err := r.q.Exec(ctx, query,
		cfg.CompanyID, nullIfEmpty(cfg.SolUser), nullIfEmpty(cfg.SolPassword),
		nullIfEmpty(cfg.CertPath), nullIfEmpty(cfg.CertPassword),
		nullIfEmpty(cfg.ClientID), nullIfEmpty(cfg.ClientSecret),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("update billing config: %w", err)
	}
	return nil
}

// SetProduction cambia el entorno SUNAT de la empresa.
func (r *CompanyRepo) SetProduction(ctx context.Context, companyID string, production bool) error {
	query := `
		INSERT INTO company_billing_configs (company_id, production, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (company_id) DO UPDATE SET production = EXCLUDED.production, updated_at = NOW()`
	if _, err := r.q.Exec(ctx, query, companyID, production); err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("set production: %w", err)
	}
	return nil
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

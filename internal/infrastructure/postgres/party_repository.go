package postgres

import (
	"context"
	"fmt"

	"github.com/jhoicas/erp-sunat-api/internal/domain/entity"
	"github.com/jhoicas/erp-sunat-api/internal/domain/repository"
)

var _ repository.PartyRepository = (*PartyRepo)(nil)

// PartyRepo lectura de clientes (usable con pool o tx).
type PartyRepo struct {
	q Querier
}

// NewPartyRepository construye el adaptador.
func NewPartyRepository(q Querier) *PartyRepo {
	return &PartyRepo{q: q}
}

// GetByID obtiene un cliente por ID.
func (r *PartyRepo) GetByID(ctx context.Context, id string) (*entity.Party, error) {
	query := `
		SELECT id, company_id, doc_type, doc_number, name, COALESCE(address, ''),
		       COALESCE(email, ''), COALESCE(phone, ''), created_at, updated_at
		FROM parties WHERE id = $1`
	var p entity.Party
	err := r.q.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.CompanyID, &p.DocType, &p.DocNumber, &p.Name, &p.Address,
		&p.Email, &p.Phone, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get party: %w", err)
	}
	return &p, nil
}

package repository

import (
	"context"

	"github.com/jhoicas/erp-sunat-api/internal/domain/entity"
)

// PartyRepository puerto de lectura de clientes.
type PartyRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Party, error)
}

package repository

import (
	"context"
	"time"

	"github.com/jhoicas/erp-sunat-api/internal/domain/entity"
)

// ElectronicDocumentRepository puerto de persistencia de comprobantes electrónicos.
// Los métodos de lectura devuelven (nil, nil) cuando no existe el registro.
type ElectronicDocumentRepository interface {
	Create(ctx context.Context, doc *entity.ElectronicDocument) error
	GetByID(ctx context.Context, id string) (*entity.ElectronicDocument, error)
	// GetWithItems carga la cabecera con sus líneas.
	GetWithItems(ctx context.Context, id string) (*entity.ElectronicDocument, error)
	// UpdateElectronicState persiste estado, ticket, XML, CDR, hash, mensajes y totales
	// solo si doc.Version coincide con la fila; en ese caso incrementa doc.Version.
	// Si otra escritura ganó devuelve domain.ErrConcurrency.
	UpdateElectronicState(ctx context.Context, doc *entity.ElectronicDocument) error
	List(ctx context.Context, companyID string, filter entity.DocumentFilter) ([]*entity.ElectronicDocument, int, error)
	CountByStatus(ctx context.Context, companyID string) (map[entity.DocumentStatus]int, error)
	// ListAwaitingResolution comprobantes de todas las empresas con un ticket por consultar:
	// PENDING o SUBMITTED con ticket, y CANCELLED con baja pendiente. Orden (updated_at, id),
	// a partir de after exclusive.
	ListAwaitingResolution(ctx context.Context, after entity.DocumentCursor, limit int) ([]*entity.ElectronicDocument, error)
	// ListStale GENERATING, o SUBMITTED sin ticket, sin cambios desde antes de cutoff.
	ListStale(ctx context.Context, cutoff time.Time, limit int) ([]*entity.ElectronicDocument, error)
	// NextNumber devuelve max(number)+1 para empresa, tipo y serie.
	NextNumber(ctx context.Context, companyID, docType, series string) (int64, error)
}

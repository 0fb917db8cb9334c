package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/erp-sunat-api/internal/domain"
	"github.com/jhoicas/erp-sunat-api/internal/domain/entity"
	"github.com/jhoicas/erp-sunat-api/internal/domain/repository"
)

var _ repository.ElectronicDocumentRepository = (*ElectronicDocumentRepo)(nil)

// ElectronicDocumentRepo implementación de ElectronicDocumentRepository (usable con pool o tx).
type ElectronicDocumentRepo struct {
	q Querier
}

// NewElectronicDocumentRepository construye el adaptador. Pasar pool o tx (Querier).
func NewElectronicDocumentRepository(q Querier) *ElectronicDocumentRepo {
	return &ElectronicDocumentRepo{q: q}
}

const documentColumns = `
	id, company_id, customer_id, doc_type, series, number, issue_date, currency_code, exchange_rate,
	subtotal_taxed, subtotal_exonerated, subtotal_unaffected, total_discount, total_tax, grand_total,
	status, ticket, xml, cdr, hash, error_message, observations, void_reason, void_ticket, void_status,
	reference_document, version, created_at, updated_at`

// Create inserta cabecera y líneas en una sola transacción. Un correlativo repetido
// devuelve domain.ErrConflict para que el llamador tome el siguiente.
func (r *ElectronicDocumentRepo) Create(ctx context.Context, doc *entity.ElectronicDocument) error {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = doc.CreatedAt
	}
	err := inTx(ctx, r.q, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO electronic_documents (`+documentColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			        $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29)`,
			doc.ID, doc.CompanyID, nullIfEmpty(doc.CustomerID), doc.DocType, doc.Series, doc.Number,
			doc.IssueDate, doc.CurrencyCode, doc.ExchangeRate,
			doc.SubtotalTaxed, doc.SubtotalExonerated, doc.SubtotalUnaffected, doc.TotalDiscount, doc.TotalTax, doc.GrandTotal,
			doc.Status, nullIfEmpty(doc.Ticket), nullIfEmpty(doc.XML), nullIfEmpty(doc.CDR), nullIfEmpty(doc.Hash),
			nullIfEmpty(doc.ErrorMessage), observations(doc.Observations), nullIfEmpty(doc.VoidReason), nullIfEmpty(doc.VoidTicket),
			nullIfEmpty(string(doc.VoidStatus)), nullIfEmpty(doc.ReferenceDocument), doc.Version, doc.CreatedAt, doc.UpdatedAt,
		)
		if err != nil {
			return err
		}
		if len(doc.Items) == 0 {
			return nil
		}
		batch := &pgx.Batch{}
		for i, it := range doc.Items {
			if it.ID == "" {
				it.ID = uuid.New().String()
			}
			it.DocumentID = doc.ID
			batch.Queue(`
				INSERT INTO electronic_document_items
				    (id, document_id, product_id, description, unit_code, quantity, unit_price,
				     discount_pct, affectation_code, line_total, tax_amount, position)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
				it.ID, it.DocumentID, nullIfEmpty(it.ProductID), it.Description, it.UnitCode, it.Quantity, it.UnitPrice,
				it.DiscountPct, it.AffectationCode, it.LineTotal, it.TaxAmount, i+1,
			)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: correlativo %s-%d ya existe", domain.ErrConflict, doc.Series, doc.Number)
		}
		return fmt.Errorf("insert electronic document: %w", err)
	}
	return nil
}

// GetByID obtiene la cabecera sin líneas.
func (r *ElectronicDocumentRepo) GetByID(ctx context.Context, id string) (*entity.ElectronicDocument, error) {
	doc, err := scanDocument(r.q.QueryRow(ctx, `SELECT `+documentColumns+` FROM electronic_documents WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get electronic document: %w", err)
	}
	return doc, nil
}

// GetWithItems carga la cabecera con sus líneas en orden de inserción.
func (r *ElectronicDocumentRepo) GetWithItems(ctx context.Context, id string) (*entity.ElectronicDocument, error) {
	doc, err := r.GetByID(ctx, id)
	if err != nil || doc == nil {
		return doc, err
	}
	rows, err := r.q.Query(ctx, `
		SELECT id, document_id, COALESCE(product_id, ''), description, unit_code, quantity, unit_price,
		       discount_pct, affectation_code, line_total, tax_amount
		FROM electronic_document_items
		WHERE document_id = $1
		ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("list document items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var it entity.DocumentItem
		if err := rows.Scan(
			&it.ID, &it.DocumentID, &it.ProductID, &it.Description, &it.UnitCode, &it.Quantity, &it.UnitPrice,
			&it.DiscountPct, &it.AffectationCode, &it.LineTotal, &it.TaxAmount,
		); err != nil {
			return nil, fmt.Errorf("scan document item: %w", err)
		}
		doc.Items = append(doc.Items, &it)
	}
	return doc, rows.Err()
}

// UpdateElectronicState escribe el estado con control optimista por version.
// Si el documento trae líneas también actualiza sus montos recalculados.
func (r *ElectronicDocumentRepo) UpdateElectronicState(ctx context.Context, doc *entity.ElectronicDocument) error {
	updatedAt := doc.UpdatedAt
	err := inTx(ctx, r.q, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			UPDATE electronic_documents
			SET status              = $3,
			    ticket              = $4,
			    xml                 = $5,
			    cdr                 = $6,
			    hash                = $7,
			    error_message       = $8,
			    observations        = $9,
			    void_reason         = $10,
			    void_ticket         = $11,
			    subtotal_taxed      = $12,
			    subtotal_exonerated = $13,
			    subtotal_unaffected = $14,
			    total_discount      = $15,
			    total_tax           = $16,
			    grand_total         = $17,
			    void_status         = $18,
			    version             = version + 1,
			    updated_at          = NOW()
			WHERE id = $1 AND version = $2
			RETURNING updated_at`,
			doc.ID, doc.Version, doc.Status,
			nullIfEmpty(doc.Ticket), nullIfEmpty(doc.XML), nullIfEmpty(doc.CDR), nullIfEmpty(doc.Hash),
			nullIfEmpty(doc.ErrorMessage), observations(doc.Observations), nullIfEmpty(doc.VoidReason), nullIfEmpty(doc.VoidTicket),
			doc.SubtotalTaxed, doc.SubtotalExonerated, doc.SubtotalUnaffected, doc.TotalDiscount, doc.TotalTax, doc.GrandTotal,
			nullIfEmpty(string(doc.VoidStatus)),
		).Scan(&updatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: versión %d de %s", domain.ErrConcurrency, doc.Version, doc.ID)
		}
		if err != nil {
			return err
		}
		if len(doc.Items) == 0 {
			return nil
		}
		batch := &pgx.Batch{}
		for _, it := range doc.Items {
			batch.Queue(`
				UPDATE electronic_document_items
				SET affectation_code = $2, line_total = $3, tax_amount = $4
				WHERE id = $1`,
				it.ID, it.AffectationCode, it.LineTotal, it.TaxAmount,
			)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		if errors.Is(err, domain.ErrConcurrency) {
			return err
		}
		return fmt.Errorf("update electronic state: %w", err)
	}
	doc.Version++
	doc.UpdatedAt = updatedAt
	return nil
}

// List pagina los comprobantes de la empresa, más recientes primero, y devuelve el total filtrado.
func (r *ElectronicDocumentRepo) List(ctx context.Context, companyID string, f entity.DocumentFilter) ([]*entity.ElectronicDocument, int, error) {
	where := []string{"company_id = $1"}
	args := []any{companyID}
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.DocType != "" {
		add("doc_type = $%d", f.DocType)
	}
	if f.DateFrom != nil {
		add("issue_date >= $%d", *f.DateFrom)
	}
	if f.DateTo != nil {
		add("issue_date <= $%d", *f.DateTo)
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM electronic_documents WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count electronic documents: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit, f.Offset)
	query := fmt.Sprintf(`SELECT %s FROM electronic_documents WHERE %s
		ORDER BY issue_date DESC, created_at DESC LIMIT $%d OFFSET $%d`,
		documentColumns, cond, len(args)-1, len(args))
	docs, err := r.queryDocuments(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list electronic documents: %w", err)
	}
	return docs, total, nil
}

// CountByStatus conteo por estado para el panel de estadísticas.
func (r *ElectronicDocumentRepo) CountByStatus(ctx context.Context, companyID string) (map[entity.DocumentStatus]int, error) {
	rows, err := r.q.Query(ctx, `
		SELECT status, COUNT(*) FROM electronic_documents
		WHERE company_id = $1 GROUP BY status`, companyID)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()
	out := make(map[entity.DocumentStatus]int)
	for rows.Next() {
		var status entity.DocumentStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan count by status: %w", err)
		}
		out[status] = n
	}
	return out, rows.Err()
}

// ListAwaitingResolution recorre por keyset (updated_at, id) los tickets por consultar.
// Un IN_PROCESS no modifica la fila, así que el cursor es lo que hace avanzar al poller.
func (r *ElectronicDocumentRepo) ListAwaitingResolution(ctx context.Context, after entity.DocumentCursor, limit int) ([]*entity.ElectronicDocument, error) {
	query := `SELECT ` + documentColumns + ` FROM electronic_documents
		WHERE ((status IN ('PENDING', 'SUBMITTED') AND ticket IS NOT NULL)
		       OR (status = 'CANCELLED' AND void_status = 'PENDING' AND void_ticket IS NOT NULL))`
	var args []any
	if !after.IsZero() {
		query += ` AND (updated_at, id) > ($1, $2)`
		args = append(args, after.UpdatedAt, after.ID)
	}
	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY updated_at, id LIMIT $%d`, len(args))

	docs, err := r.queryDocuments(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list awaiting resolution: %w", err)
	}
	return docs, nil
}

// ListStale comprobantes abandonados a mitad de proceso, los más antiguos primero.
func (r *ElectronicDocumentRepo) ListStale(ctx context.Context, cutoff time.Time, limit int) ([]*entity.ElectronicDocument, error) {
	docs, err := r.queryDocuments(ctx, `SELECT `+documentColumns+` FROM electronic_documents
		WHERE (status = 'GENERATING' OR (status = 'SUBMITTED' AND ticket IS NULL))
		  AND updated_at < $1
		ORDER BY updated_at, id
		LIMIT $2`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale: %w", err)
	}
	return docs, nil
}

// NextNumber max(number)+1 de la serie; el índice único resuelve la carrera.
func (r *ElectronicDocumentRepo) NextNumber(ctx context.Context, companyID, docType, series string) (int64, error) {
	var n int64
	err := r.q.QueryRow(ctx, `
		SELECT COALESCE(MAX(number), 0) + 1 FROM electronic_documents
		WHERE company_id = $1 AND doc_type = $2 AND series = $3`,
		companyID, docType, series,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("next number: %w", err)
	}
	return n, nil
}

func (r *ElectronicDocumentRepo) queryDocuments(ctx context.Context, query string, args ...any) ([]*entity.ElectronicDocument, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*entity.ElectronicDocument
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func scanDocument(row pgx.Row) (*entity.ElectronicDocument, error) {
	var d entity.ElectronicDocument
	var customerID, ticket, xml, cdr, hash, errMsg, voidReason, voidTicket, voidStatus, ref *string
	err := row.Scan(
		&d.ID, &d.CompanyID, &customerID, &d.DocType, &d.Series, &d.Number, &d.IssueDate, &d.CurrencyCode, &d.ExchangeRate,
		&d.SubtotalTaxed, &d.SubtotalExonerated, &d.SubtotalUnaffected, &d.TotalDiscount, &d.TotalTax, &d.GrandTotal,
		&d.Status, &ticket, &xml, &cdr, &hash, &errMsg, &d.Observations, &voidReason, &voidTicket, &voidStatus,
		&ref, &d.Version, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.CustomerID = deref(customerID)
	d.Ticket = deref(ticket)
	d.XML = deref(xml)
	d.CDR = deref(cdr)
	d.Hash = deref(hash)
	d.ErrorMessage = deref(errMsg)
	d.VoidReason = deref(voidReason)
	d.VoidTicket = deref(voidTicket)
	d.VoidStatus = entity.VoidStatus(deref(voidStatus))
	d.ReferenceDocument = deref(ref)
	return &d, nil
}

// observations text[] nunca NULL.
func observations(obs []string) []string {
	if obs == nil {
		return []string{}
	}
	return obs
}

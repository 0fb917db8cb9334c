package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jhoicas/erp-sunat-api/internal/domain"
	"github.com/jhoicas/erp-sunat-api/internal/domain/entity"
	"github.com/jhoicas/erp-sunat-api/internal/domain/repository"
)

// statusReconciler lo implementa *Orchestrator.
type statusReconciler interface {
	CheckStatus(ctx context.Context, companyID, docID string) (*SubmissionResult, error)
	CheckVoidStatus(ctx context.Context, companyID, docID string) (*SubmissionResult, error)
	RecoverStale(ctx context.Context, olderThan time.Duration, limit int) (int, error)
}

// PollerConfig intervalo, tamaño de página y antigüedad a partir de la cual un
// comprobante en GENERATING o SUBMITTED sin ticket se considera abandonado.
type PollerConfig struct {
	Interval   time.Duration
	PageSize   int
	StaleAfter time.Duration
}

// PollSummary resultado de una pasada.
type PollSummary struct {
	Recovered int
	Checked   int
	Resolved  int
	Failed    int
}

// StatusPoller consulta periódicamente los tickets pendientes de todas las empresas.
// Cada pasada lee una página a partir del cursor y lo deja en el último leído; al
// llegar al final vuelve al inicio, así ningún ticket queda detrás de los que siguen
// en proceso. RunOnce no admite llamadas concurrentes.
type StatusPoller struct {
	docs   repository.ElectronicDocumentRepository
	recon  statusReconciler
	cfg    PollerConfig
	log    zerolog.Logger
	cursor entity.DocumentCursor
}

// NewStatusPoller construye el poller; los valores vacíos toman 60s, 100 y 15min.
func NewStatusPoller(docs repository.ElectronicDocumentRepository, recon statusReconciler, cfg PollerConfig, log zerolog.Logger) *StatusPoller {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 15 * time.Minute
	}
	return &StatusPoller{docs: docs, recon: recon, cfg: cfg, log: log.With().Str("component", "sunat-poller").Logger()}
}

// Run ejecuta una pasada inmediata y luego una por intervalo hasta que ctx termine.
func (p *StatusPoller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()
	for {
		if _, err := p.RunOnce(ctx); err != nil {
			p.log.Error().Err(err).Msg("pasada de consulta fallida")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce recupera comprobantes abandonados y consulta una página de tickets, tanto
// de envío como de baja. El fallo de un comprobante no interrumpe la pasada.
func (p *StatusPoller) RunOnce(ctx context.Context) (PollSummary, error) {
	var sum PollSummary
	n, err := p.recon.RecoverStale(ctx, p.cfg.StaleAfter, p.cfg.PageSize)
	sum.Recovered = n
	if err != nil {
		return sum, fmt.Errorf("poller: recuperar abandonados: %w", err)
	}

	docs, err := p.docs.ListAwaitingResolution(ctx, p.cursor, p.cfg.PageSize)
	if err != nil {
		return sum, fmt.Errorf("poller: listar tickets: %w", err)
	}
	if len(docs) < p.cfg.PageSize {
		p.cursor = entity.DocumentCursor{}
	} else {
		p.cursor = entity.CursorOf(docs[len(docs)-1])
	}

	for _, doc := range docs {
		if ctx.Err() != nil {
			return sum, ctx.Err()
		}
		sum.Checked++
		check, ticket := p.recon.CheckStatus, doc.Ticket
		if doc.Status == entity.StatusCancelled {
			check, ticket = p.recon.CheckVoidStatus, doc.VoidTicket
		}
		res, err := check(ctx, doc.CompanyID, doc.ID)
		switch {
		case errors.Is(err, domain.ErrConcurrency):
			// otra operación lo tiene tomado; la siguiente vuelta lo verá
		case err != nil:
			sum.Failed++
			p.log.Warn().Err(err).Str("document_id", doc.ID).Str("ticket", ticket).Msg("consulta de ticket fallida")
		case res.Status != doc.Status || res.VoidStatus != doc.VoidStatus:
			sum.Resolved++
		}
	}

	p.log.Info().
		Int("recovered", sum.Recovered).
		Int("checked", sum.Checked).
		Int("resolved", sum.Resolved).
		Int("failed", sum.Failed).
		Msg("pasada de consulta completada")
	return sum, nil
}

package billing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/jhoicas/erp-sunat-api/internal/domain/entity"
)

// DocumentProcessor lo que el lote necesita del orquestador.
type DocumentProcessor interface {
	Process(ctx context.Context, companyID, docID string) (*SubmissionResult, error)
}

// BatchOptions concurrencia máxima por tramo y pausa entre tramos.
type BatchOptions struct {
	MaxConcurrent int
	ChunkDelay    time.Duration
}

// BatchItemResult resultado por comprobante.
type BatchItemResult struct {
	Success bool                  `json:"success"`
	Status  entity.DocumentStatus `json:"status,omitempty"`
	Error   string                `json:"error,omitempty"`
}

// BatchResult resumen del lote; Successful + Failed == Processed.
type BatchResult struct {
	Processed  int                         `json:"processed"`
	Successful int                         `json:"successful"`
	Failed     int                         `json:"failed"`
	Results    map[string]*BatchItemResult `json:"results"`
}

// FailedIDs ids que fallaron, en el orden en que llegaron.
func (r *BatchResult) FailedIDs(order []string) []string {
	var out []string
	for _, id := range order {
		if res, ok := r.Results[id]; ok && !res.Success {
			out = append(out, id)
		}
	}
	return out
}

// BatchCoordinator procesa muchos comprobantes en tramos acotados.
// El fallo de un comprobante nunca detiene al resto del lote.
type BatchCoordinator struct {
	processor DocumentProcessor
	defaults  BatchOptions
	log       zerolog.Logger
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewBatchCoordinator construye el coordinador con las opciones por defecto.
func NewBatchCoordinator(processor DocumentProcessor, defaults BatchOptions, log zerolog.Logger) *BatchCoordinator {
	if defaults.MaxConcurrent <= 0 {
		defaults.MaxConcurrent = 5
	}
	return &BatchCoordinator{
		processor: processor,
		defaults:  defaults,
		log:       log.With().Str("component", "sunat-batch").Logger(),
		sleep:     sleepContext,
	}
}

// ProcessBatch procesa ids en tramos de MaxConcurrent, esperando ChunkDelay entre tramos.
// Los ids repetidos se procesan una sola vez. Si el contexto se cancela entre tramos,
// los pendientes quedan como fallidos y se devuelve el resultado parcial junto al error.
func (b *BatchCoordinator) ProcessBatch(ctx context.Context, companyID string, ids []string, opts *BatchOptions) (*BatchResult, error) {
	o := b.defaults
	if opts != nil {
		if opts.MaxConcurrent > 0 {
			o.MaxConcurrent = opts.MaxConcurrent
		}
		if opts.ChunkDelay > 0 {
			o.ChunkDelay = opts.ChunkDelay
		}
	}

	ids = unique(ids)
	result := &BatchResult{Results: make(map[string]*BatchItemResult, len(ids))}
	var mu sync.Mutex
	record := func(id string, item *BatchItemResult) {
		mu.Lock()
		defer mu.Unlock()
		result.Results[id] = item
		result.Processed++
		if item.Success {
			result.Successful++
		} else {
			result.Failed++
		}
	}

	for start := 0; start < len(ids); start += o.MaxConcurrent {
		if start > 0 && o.ChunkDelay > 0 {
			if err := b.sleep(ctx, o.ChunkDelay); err != nil {
				for _, id := range ids[start:] {
					record(id, &BatchItemResult{Error: fmt.Sprintf("lote cancelado: %v", err)})
				}
				return result, err
			}
		}
		end := min(start+o.MaxConcurrent, len(ids))

		// cada fallo queda en su BatchItemResult; el grupo nunca lleva error
		var g errgroup.Group
		g.SetLimit(o.MaxConcurrent)
		for _, id := range ids[start:end] {
			id := id
			g.Go(func() error {
				res, err := b.processor.Process(ctx, companyID, id)
				record(id, itemFrom(res, err))
				return nil
			})
		}
		_ = g.Wait()
	}

	b.log.Info().
		Str("company_id", companyID).
		Int("processed", result.Processed).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Msg("lote procesado")
	return result, nil
}

func itemFrom(res *SubmissionResult, err error) *BatchItemResult {
	item := &BatchItemResult{}
	if res != nil {
		item.Status = res.Status
		item.Success = res.Success
		item.Error = res.Error
	}
	if err != nil {
		item.Success = false
		item.Error = err.Error()
	}
	return item
}

func unique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

package billing

import (
	"fmt"
	"sync"

	"github.com/jhoicas/erp-sunat-api/internal/domain"
)

// inflight impide que dos operaciones del orquestador trabajen el mismo comprobante
// dentro del proceso. Entre procesos manda el control de versión del repositorio.
type inflight struct {
	mu     sync.Mutex
	active map[string]struct{}
}

func newInflight() *inflight {
	return &inflight{active: make(map[string]struct{})}
}

// acquire reserva el comprobante; el llamador debe invocar la función devuelta.
func (g *inflight) acquire(docID string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.active[docID]; busy {
		return nil, fmt.Errorf("%w: %s", domain.ErrConcurrency, docID)
	}
	g.active[docID] = struct{}{}
	return func() {
		g.mu.Lock()
		delete(g.active, docID)
		g.mu.Unlock()
	}, nil
}

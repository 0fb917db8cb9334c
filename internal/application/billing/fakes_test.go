package billing_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/erp-sunat-api/internal/application/billing"
	"github.com/jhoicas/erp-sunat-api/internal/domain"
	"github.com/jhoicas/erp-sunat-api/internal/domain/entity"
)

const (
	companyID = "company-1"
	otherID   = "company-2"
	issuerRUC = "20100123453"
)

// ── repositorio de comprobantes en memoria ────────────────────────────────────

type fakeDocs struct {
	mu           sync.Mutex
	docs         map[string]*entity.ElectronicDocument
	updates      int
	created      int
	conflicts    int // Create devuelve ErrConflict este número de veces
	beforeUpdate func(stored *entity.ElectronicDocument)
}

func newFakeDocs(docs ...*entity.ElectronicDocument) *fakeDocs {
	r := &fakeDocs{docs: make(map[string]*entity.ElectronicDocument)}
	for _, d := range docs {
		r.docs[d.ID] = clone(d)
	}
	return r
}

func clone(d *entity.ElectronicDocument) *entity.ElectronicDocument {
	c := *d
	c.Observations = append([]string(nil), d.Observations...)
	c.Items = nil
	for _, it := range d.Items {
		cp := *it
		c.Items = append(c.Items, &cp)
	}
	return &c
}

func (r *fakeDocs) stored(id string) *entity.ElectronicDocument {
	r.mu.Lock()
	defer r.mu.Unlock()
	return clone(r.docs[id])
}

func (r *fakeDocs) updateCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updates
}

func (r *fakeDocs) Create(_ context.Context, doc *entity.ElectronicDocument) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conflicts > 0 {
		r.conflicts--
		return domain.ErrConflict
	}
	doc.Version = 1
	r.docs[doc.ID] = clone(doc)
	r.created++
	return nil
}

func (r *fakeDocs) GetByID(_ context.Context, id string) (*entity.ElectronicDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[id]
	if !ok {
		return nil, nil
	}
	c := clone(d)
	c.Items = nil
	return c, nil
}

func (r *fakeDocs) GetWithItems(_ context.Context, id string) (*entity.ElectronicDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[id]
	if !ok {
		return nil, nil
	}
	return clone(d), nil
}

func (r *fakeDocs) UpdateElectronicState(_ context.Context, doc *entity.ElectronicDocument) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.docs[doc.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if r.beforeUpdate != nil {
		r.beforeUpdate(stored)
	}
	if stored.Version != doc.Version {
		return fmt.Errorf("%w: versión %d", domain.ErrConcurrency, doc.Version)
	}
	doc.Version++
	doc.UpdatedAt = time.Now()
	next := clone(doc)
	if len(doc.Items) == 0 {
		next.Items = stored.Items
	}
	r.docs[doc.ID] = next
	r.updates++
	return nil
}

func (r *fakeDocs) List(_ context.Context, companyID string, f entity.DocumentFilter) ([]*entity.ElectronicDocument, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.ElectronicDocument
	for _, d := range r.docs {
		if d.CompanyID == companyID && (f.Status == "" || d.Status == f.Status) {
			out = append(out, clone(d))
		}
	}
	return out, len(out), nil
}

func (r *fakeDocs) CountByStatus(_ context.Context, companyID string) (map[entity.DocumentStatus]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[entity.DocumentStatus]int{}
	for _, d := range r.docs {
		if d.CompanyID == companyID {
			out[d.Status]++
		}
	}
	return out, nil
}

// ListAwaitingResolution mismo filtro y orden (updated_at, id) que la consulta SQL.
func (r *fakeDocs) ListAwaitingResolution(_ context.Context, after entity.DocumentCursor, limit int) ([]*entity.ElectronicDocument, error) {
	return r.page(limit, func(d *entity.ElectronicDocument) bool {
		awaiting := (d.Status == entity.StatusPending || d.Status == entity.StatusSubmitted) && d.Ticket != "" ||
			d.Status == entity.StatusCancelled && d.VoidStatus == entity.VoidPending && d.VoidTicket != ""
		return awaiting && (after.IsZero() || afterCursor(d, after))
	}), nil
}

func (r *fakeDocs) ListStale(_ context.Context, cutoff time.Time, limit int) ([]*entity.ElectronicDocument, error) {
	return r.page(limit, func(d *entity.ElectronicDocument) bool {
		stale := d.Status == entity.StatusGenerating || d.Status == entity.StatusSubmitted && d.Ticket == ""
		return stale && d.UpdatedAt.Before(cutoff)
	}), nil
}

func afterCursor(d *entity.ElectronicDocument, c entity.DocumentCursor) bool {
	if !d.UpdatedAt.Equal(c.UpdatedAt) {
		return d.UpdatedAt.After(c.UpdatedAt)
	}
	return d.ID > c.ID
}

func (r *fakeDocs) page(limit int, keep func(*entity.ElectronicDocument) bool) []*entity.ElectronicDocument {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.ElectronicDocument
	for _, d := range r.docs {
		if keep(d) {
			c := clone(d)
			c.Items = nil
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.Before(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (r *fakeDocs) NextNumber(_ context.Context, companyID, docType, series string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var last int64
	for _, d := range r.docs {
		if d.CompanyID == companyID && d.DocType == docType && d.Series == series && d.Number > last {
			last = d.Number
		}
	}
	return last + 1, nil
}

// ── empresa y clientes ────────────────────────────────────────────────────────

type fakeCompanies struct {
	mu      sync.Mutex
	configs map[string]*entity.BillingConfig
}

func newFakeCompanies(cfgs ...*entity.BillingConfig) *fakeCompanies {
	r := &fakeCompanies{configs: make(map[string]*entity.BillingConfig)}
	for _, c := range cfgs {
		cp := *c
		r.configs[c.CompanyID] = &cp
	}
	return r
}

func (r *fakeCompanies) GetByID(_ context.Context, id string) (*entity.Company, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.configs[id]
	if !ok {
		return nil, nil
	}
	return &entity.Company{ID: id, RUC: c.RUC, LegalName: c.LegalName, Address: c.Address}, nil
}

func (r *fakeCompanies) GetBillingConfig(_ context.Context, companyID string) (*entity.BillingConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.configs[companyID]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *fakeCompanies) UpdateBillingConfig(_ context.Context, cfg *entity.BillingConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *cfg
	r.configs[cfg.CompanyID] = &cp
	return nil
}

func (r *fakeCompanies) SetProduction(_ context.Context, companyID string, production bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.configs[companyID]
	if !ok {
		return domain.ErrNotFound
	}
	c.Production = production
	return nil
}

type fakeParties map[string]*entity.Party

func (r fakeParties) GetByID(_ context.Context, id string) (*entity.Party, error) {
	return r[id], nil
}

// ── gateway SUNAT ─────────────────────────────────────────────────────────────

type fakeGateway struct {
	mu         sync.Mutex
	calls      map[string]int
	generateFn func(req billing.GenerateRequest) (*billing.GeneratedDocument, error)
	submitFn   func(req billing.SubmitRequest) (*billing.GatewayResponse, error)
	statusFn   func(req billing.StatusRequest) (*billing.GatewayResponse, error)
	voidFn     func(req billing.VoidRequest) (*billing.GatewayResponse, error)
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{calls: make(map[string]int)}
}

func (g *fakeGateway) count(op string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[op]
}

func (g *fakeGateway) hit(op string) {
	g.mu.Lock()
	g.calls[op]++
	g.mu.Unlock()
}

func (g *fakeGateway) Generate(_ context.Context, req billing.GenerateRequest) (*billing.GeneratedDocument, error) {
	g.hit("generate")
	if g.generateFn != nil {
		return g.generateFn(req)
	}
	return &billing.GeneratedDocument{
		XML:  []byte("<Invoice>" + req.Document.ID + "</Invoice>"),
		Hash: "hash-" + req.Document.ID,
	}, nil
}

func (g *fakeGateway) Submit(_ context.Context, req billing.SubmitRequest) (*billing.GatewayResponse, error) {
	g.hit("submit")
	if g.submitFn != nil {
		return g.submitFn(req)
	}
	return &billing.GatewayResponse{
		Status:       billing.GatewayAccepted,
		Ticket:       "T-" + req.Document.ID,
		CDR:          []byte("cdr-" + req.Document.ID),
		ResponseCode: "0",
		Description:  "La Factura ha sido aceptada",
	}, nil
}

func (g *fakeGateway) CheckStatus(_ context.Context, req billing.StatusRequest) (*billing.GatewayResponse, error) {
	g.hit("status")
	if g.statusFn != nil {
		return g.statusFn(req)
	}
	return &billing.GatewayResponse{Status: billing.GatewayInProcess, Ticket: req.Ticket}, nil
}

func (g *fakeGateway) Void(_ context.Context, req billing.VoidRequest) (*billing.GatewayResponse, error) {
	g.hit("void")
	if g.voidFn != nil {
		return g.voidFn(req)
	}
	return &billing.GatewayResponse{Status: billing.GatewayInProcess, Ticket: "RA-TICKET"}, nil
}

// ── temporizador del backoff ──────────────────────────────────────────────────

type fakeTimer struct {
	mu    sync.Mutex
	waits []time.Duration
	c     chan time.Time
}

func newFakeTimer() *fakeTimer { return &fakeTimer{c: make(chan time.Time, 1)} }

func (t *fakeTimer) Start(d time.Duration) {
	t.mu.Lock()
	t.waits = append(t.waits, d)
	t.mu.Unlock()
	t.c <- time.Time{}
}

func (t *fakeTimer) Stop() {}

func (t *fakeTimer) C() <-chan time.Time { return t.c }

func (t *fakeTimer) recorded() []time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]time.Duration(nil), t.waits...)
}

// ── fixtures ──────────────────────────────────────────────────────────────────

func validConfig() *entity.BillingConfig {
	return &entity.BillingConfig{
		CompanyID:   companyID,
		RUC:         issuerRUC,
		LegalName:   "EMPRESA DEMO S.A.C.",
		SolUser:     issuerRUC + "MODDATOS",
		SolPassword: "moddatos",
		CertPath:    "certificates/company-1/cert.p12",
	}
}

func customers() fakeParties {
	return fakeParties{
		"cust-1": {ID: "cust-1", CompanyID: companyID, DocType: "6", DocNumber: "20131312955", Name: "SUNAT"},
	}
}

func draft(id string) *entity.ElectronicDocument {
	return &entity.ElectronicDocument{
		ID:           id,
		CompanyID:    companyID,
		CustomerID:   "cust-1",
		DocType:      "01",
		Series:       "F001",
		Number:       1,
		IssueDate:    time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		CurrencyCode: "PEN",
		Status:       entity.StatusDraft,
		Version:      1,
		Items: []*entity.DocumentItem{{
			ID:              id + "-1",
			DocumentID:      id,
			Description:     "Servicio de consultoría",
			UnitCode:        "ZZ",
			Quantity:        decimal.NewFromInt(10),
			UnitPrice:       decimal.NewFromInt(100),
			AffectationCode: "10",
		}},
	}
}

type harness struct {
	docs      *fakeDocs
	companies *fakeCompanies
	gateway   *fakeGateway
	timer     *fakeTimer
	orch      *billing.Orchestrator
}

func newHarness(docs ...*entity.ElectronicDocument) *harness {
	h := &harness{
		docs:      newFakeDocs(docs...),
		companies: newFakeCompanies(validConfig()),
		gateway:   newFakeGateway(),
		timer:     newFakeTimer(),
	}
	h.orch = billing.NewOrchestrator(h.docs, h.companies, customers(), h.gateway, billing.OrchestratorConfig{
		GatewayTimeout: time.Second,
		Retry:          billing.RetryPolicy{MaxAttempts: 3, Delay: 10 * time.Second, Multiplier: 2},
		RetryTimer:     h.timer,
	}, zerolog.Nop())
	return h
}

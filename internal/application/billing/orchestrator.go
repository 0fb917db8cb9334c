package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/jhoicas/erp-sunat-api/internal/domain"
	"github.com/jhoicas/erp-sunat-api/internal/domain/entity"
	"github.com/jhoicas/erp-sunat-api/internal/domain/repository"
	domsunat "github.com/jhoicas/erp-sunat-api/internal/domain/sunat"
)

// OrchestratorConfig parámetros operativos del orquestador.
type OrchestratorConfig struct {
	GatewayTimeout time.Duration // tope por llamada a SUNAT; 0 = sin tope propio
	Retry          RetryPolicy
	// RetryTimer permite sustituir el temporizador del backoff (tests).
	RetryTimer backoff.Timer
}

// SubmissionResult resultado de una operación sobre un comprobante.
type SubmissionResult struct {
	DocumentID   string                `json:"document_id"`
	Success      bool                  `json:"success"`
	Status       entity.DocumentStatus `json:"status"`
	Ticket       string                `json:"ticket,omitempty"`
	VoidStatus   entity.VoidStatus     `json:"void_status,omitempty"`
	Hash         string                `json:"hash,omitempty"`
	Observations []string              `json:"observations,omitempty"`
	Error        string                `json:"error,omitempty"`
	Attempts     int                   `json:"attempts,omitempty"`
}

// Orchestrator conduce el ciclo de vida del comprobante ante SUNAT:
//
//	DRAFT → GENERATING → PENDING → SUBMITTED → ACCEPTED | REJECTED
//
// Cada cambio de estado se persiste antes de la siguiente llamada externa, de modo
// que una caída a mitad de camino deja el comprobante en un estado recuperable.
// Ninguna operación reporta éxito si la escritura en la base falló.
type Orchestrator struct {
	docs      repository.ElectronicDocumentRepository
	companies repository.CompanyRepository
	parties   repository.PartyRepository
	gateway   TaxGateway
	cfg       OrchestratorConfig
	guard     *inflight
	log       zerolog.Logger
}

// NewOrchestrator construye el orquestador con todas sus dependencias.
func NewOrchestrator(
	docs repository.ElectronicDocumentRepository,
	companies repository.CompanyRepository,
	parties repository.PartyRepository,
	gateway TaxGateway,
	cfg OrchestratorConfig,
	log zerolog.Logger,
) *Orchestrator {
	cfg.Retry = cfg.Retry.merge(DefaultRetryPolicy())
	return &Orchestrator{
		docs:      docs,
		companies: companies,
		parties:   parties,
		gateway:   gateway,
		cfg:       cfg,
		guard:     newInflight(),
		log:       log.With().Str("component", "sunat-orchestrator").Logger(),
	}
}

// Generate construye y firma el XML de un comprobante en DRAFT, ERROR o REJECTED.
func (o *Orchestrator) Generate(ctx context.Context, companyID, docID string) (*SubmissionResult, error) {
	release, err := o.guard.acquire(docID)
	if err != nil {
		return nil, err
	}
	defer release()

	doc, err := o.load(ctx, companyID, docID)
	if err != nil {
		return nil, err
	}
	if err := o.generate(ctx, doc); err != nil {
		return resultOf(doc, err), err
	}
	return resultOf(doc, nil), nil
}

// Submit envía a SUNAT un comprobante PENDING (o ERROR con XML ya generado).
func (o *Orchestrator) Submit(ctx context.Context, companyID, docID string) (*SubmissionResult, error) {
	release, err := o.guard.acquire(docID)
	if err != nil {
		return nil, err
	}
	defer release()

	doc, err := o.load(ctx, companyID, docID)
	if err != nil {
		return nil, err
	}
	return o.submit(ctx, doc)
}

// Process genera (si hace falta) y envía en una sola llamada.
func (o *Orchestrator) Process(ctx context.Context, companyID, docID string) (*SubmissionResult, error) {
	release, err := o.guard.acquire(docID)
	if err != nil {
		return nil, err
	}
	defer release()
	return o.process(ctx, companyID, docID)
}

// Retry repite Process con backoff exponencial mientras el fallo sea de transporte.
// policy nil usa la política configurada; los campos en cero se completan con ella.
func (o *Orchestrator) Retry(ctx context.Context, companyID, docID string, policy *RetryPolicy) (*SubmissionResult, error) {
	release, err := o.guard.acquire(docID)
	if err != nil {
		return nil, err
	}
	defer release()

	p := o.cfg.Retry
	if policy != nil {
		p = policy.merge(o.cfg.Retry)
	}

	var (
		last     *SubmissionResult
		attempts int
	)
	op := func() error {
		attempts++
		res, err := o.process(ctx, companyID, docID)
		last = res
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		o.log.Warn().Err(err).
			Str("document_id", docID).
			Int("attempt", attempts).
			Dur("wait", wait).
			Msg("fallo de transporte, reintento programado")
	}

	err = backoff.RetryNotifyWithTimer(op, p.backOff(ctx), notify, o.cfg.RetryTimer)
	if last == nil {
		last = &SubmissionResult{DocumentID: docID}
	}
	last.Attempts = attempts
	if err == nil {
		return last, nil
	}

	last.Success = false
	if isRetryable(err) {
		err = fmt.Errorf("falló después de %d intentos: %w", attempts, err)
	}
	last.Error = err.Error()
	o.log.Error().Err(err).Str("document_id", docID).Int("attempts", attempts).Msg("reintentos agotados")
	return last, err
}

// CheckStatus consulta el ticket almacenado y reconcilia estado y CDR.
// Si SUNAT responde lo mismo que ya está persistido no escribe nada. En un
// comprobante anulado consulta el ticket de la baja.
func (o *Orchestrator) CheckStatus(ctx context.Context, companyID, docID string) (*SubmissionResult, error) {
	release, err := o.guard.acquire(docID)
	if err != nil {
		return nil, err
	}
	defer release()

	doc, err := o.load(ctx, companyID, docID)
	if err != nil {
		return nil, err
	}
	if doc.Status == entity.StatusCancelled {
		return o.checkVoid(ctx, doc)
	}
	if doc.Ticket == "" {
		return resultOf(doc, nil), nil
	}
	cfg, err := o.billingConfig(ctx, companyID)
	if err != nil {
		return nil, err
	}

	gctx, cancel := o.gatewayContext(ctx)
	resp, err := o.gateway.CheckStatus(gctx, StatusRequest{Config: cfg, Document: doc, Ticket: doc.Ticket})
	cancel()
	if err != nil {
		return nil, classify(err, domain.ErrTransport)
	}
	if resp.Status == GatewayInProcess {
		return resultOf(doc, nil), nil
	}

	target := statusFor(resp.Status)
	switch {
	case target == doc.Status && (doc.CDR != "" || len(resp.CDR) == 0):
		return resultOf(doc, nil), nil
	case target == doc.Status:
		doc.CDR = EncodeArtifact(resp.CDR)
		if len(resp.Observations) > 0 {
			doc.Observations = resp.Observations
		}
		if err := o.docs.UpdateElectronicState(ctx, doc); err != nil {
			return nil, fmt.Errorf("orchestrator: persistir CDR: %w", err)
		}
		return resultOf(doc, nil), nil
	}

	if err := domsunat.Transition(doc, target); err != nil {
		o.log.Warn().
			Str("document_id", docID).
			Str("stored", string(doc.Status)).
			Str("remote", string(resp.Status)).
			Msg("SUNAT informa un estado incompatible con el ciclo local, se conserva el actual")
		return resultOf(doc, nil), nil
	}
	return o.applyResolution(ctx, doc, resp)
}

// Cancel envía la comunicación de baja de un comprobante aceptado.
func (o *Orchestrator) Cancel(ctx context.Context, companyID, docID, reason string) (*SubmissionResult, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: el motivo de baja es obligatorio", domain.ErrInvalidInput)
	}
	release, err := o.guard.acquire(docID)
	if err != nil {
		return nil, err
	}
	defer release()

	doc, err := o.load(ctx, companyID, docID)
	if err != nil {
		return nil, err
	}
	if err := domsunat.Transition(doc, entity.StatusCancelled); err != nil {
		return nil, err
	}
	cfg, err := o.billingConfig(ctx, companyID)
	if err != nil {
		return nil, err
	}

	gctx, cancel := o.gatewayContext(ctx)
	resp, err := o.gateway.Void(gctx, VoidRequest{Config: cfg, Document: doc, Reason: reason, Date: time.Now()})
	cancel()
	if err != nil {
		return nil, classify(err, domain.ErrTransport)
	}
	if resp.Status == GatewayRejected {
		return nil, fmt.Errorf("%w: %s %s", domain.ErrRejected, resp.ResponseCode, resp.Description)
	}

	doc.Status = entity.StatusCancelled
	doc.VoidReason = reason
	doc.VoidTicket = resp.Ticket
	doc.VoidStatus = entity.VoidPending
	if resp.Status == GatewayAccepted {
		doc.VoidStatus = entity.VoidAccepted
	}
	doc.ErrorMessage = ""
	if err := o.docs.UpdateElectronicState(ctx, doc); err != nil {
		return nil, fmt.Errorf("orchestrator: persistir baja: %w", err)
	}
	o.log.Info().Str("document_id", docID).Str("ticket", resp.Ticket).Str("void_status", string(doc.VoidStatus)).Msg("comunicación de baja enviada")
	return resultOf(doc, nil), nil
}

// CheckVoidStatus consulta el ticket de la comunicación de baja. Si SUNAT la rechaza
// el comprobante vuelve a ACCEPTED con el motivo en ErrorMessage y puede anularse de nuevo.
func (o *Orchestrator) CheckVoidStatus(ctx context.Context, companyID, docID string) (*SubmissionResult, error) {
	release, err := o.guard.acquire(docID)
	if err != nil {
		return nil, err
	}
	defer release()

	doc, err := o.load(ctx, companyID, docID)
	if err != nil {
		return nil, err
	}
	return o.checkVoid(ctx, doc)
}

func (o *Orchestrator) checkVoid(ctx context.Context, doc *entity.ElectronicDocument) (*SubmissionResult, error) {
	if doc.Status != entity.StatusCancelled || doc.VoidStatus != entity.VoidPending || doc.VoidTicket == "" {
		return resultOf(doc, nil), nil
	}
	cfg, err := o.billingConfig(ctx, doc.CompanyID)
	if err != nil {
		return nil, err
	}

	gctx, cancel := o.gatewayContext(ctx)
	resp, err := o.gateway.CheckStatus(gctx, StatusRequest{Config: cfg, Document: doc, Ticket: doc.VoidTicket})
	cancel()
	if err != nil {
		return nil, classify(err, domain.ErrTransport)
	}

	switch resp.Status {
	case GatewayInProcess:
		return resultOf(doc, nil), nil
	case GatewayAccepted:
		doc.VoidStatus = entity.VoidAccepted
	case GatewayRejected:
		if err := domsunat.RevertCancellation(doc); err != nil {
			return nil, err
		}
		doc.ErrorMessage = strings.TrimSpace(fmt.Sprintf("baja rechazada: %s %s", resp.ResponseCode, resp.Description))
	}
	if len(resp.Observations) > 0 {
		doc.Observations = resp.Observations
	}
	if err := o.docs.UpdateElectronicState(ctx, doc); err != nil {
		return nil, fmt.Errorf("orchestrator: persistir resultado de baja: %w", err)
	}

	ev := o.log.Info()
	if doc.VoidStatus == entity.VoidRejected {
		ev = o.log.Warn()
	}
	ev.Str("document_id", doc.ID).Str("ticket", doc.VoidTicket).Str("void_status", string(doc.VoidStatus)).Msg("baja resuelta")
	return resultOf(doc, nil), nil
}

// ── núcleo ────────────────────────────────────────────────────────────────────

func (o *Orchestrator) process(ctx context.Context, companyID, docID string) (*SubmissionResult, error) {
	doc, err := o.load(ctx, companyID, docID)
	if err != nil {
		return nil, err
	}
	if needsGeneration(doc) {
		if err := o.generate(ctx, doc); err != nil {
			return resultOf(doc, err), err
		}
	}
	return o.submit(ctx, doc)
}

// needsGeneration DRAFT, REJECTED o ERROR sin XML requieren (re)generar.
func needsGeneration(doc *entity.ElectronicDocument) bool {
	switch doc.Status {
	case entity.StatusDraft, entity.StatusRejected:
		return true
	case entity.StatusError:
		return !doc.HasXML()
	}
	return false
}

func (o *Orchestrator) generate(ctx context.Context, doc *entity.ElectronicDocument) error {
	if err := domsunat.Transition(doc, entity.StatusGenerating); err != nil {
		return err
	}
	cfg, err := o.billingConfig(ctx, doc.CompanyID)
	if err != nil {
		return err
	}
	customer, err := o.customer(ctx, doc)
	if err != nil {
		return err
	}
	if err := domsunat.ValidateDocument(doc, cfg.RUC, customer); err != nil {
		return err
	}

	doc.Status = entity.StatusGenerating
	doc.XML, doc.Hash, doc.CDR, doc.Ticket = "", "", "", ""
	doc.ErrorMessage = ""
	doc.Observations = nil
	totals := domsunat.ApplyTotals(doc)
	if err := o.docs.UpdateElectronicState(ctx, doc); err != nil {
		return fmt.Errorf("orchestrator: persistir GENERATING: %w", err)
	}

	gctx, cancel := o.gatewayContext(ctx)
	gen, err := o.gateway.Generate(gctx, GenerateRequest{Config: cfg, Document: doc, Customer: customer, Totals: totals})
	cancel()
	if err != nil {
		return o.fail(ctx, doc, "generate", classify(err, domain.ErrGeneration))
	}

	SaveGeneratedXML(doc, gen.XML, gen.Hash)
	doc.Status = entity.StatusPending
	if err := o.docs.UpdateElectronicState(ctx, doc); err != nil {
		return fmt.Errorf("orchestrator: persistir PENDING: %w", err)
	}
	o.log.Info().Str("document_id", doc.ID).Str("hash", gen.Hash).Msg("XML generado y firmado")
	return nil
}

func (o *Orchestrator) submit(ctx context.Context, doc *entity.ElectronicDocument) (*SubmissionResult, error) {
	if err := domsunat.Transition(doc, entity.StatusSubmitted); err != nil {
		return resultOf(doc, err), err
	}
	cfg, err := o.billingConfig(ctx, doc.CompanyID)
	if err != nil {
		return resultOf(doc, err), err
	}

	xmlBytes := DecodeArtifact(doc.XML)
	doc.Status = entity.StatusSubmitted
	doc.ErrorMessage = ""
	if err := o.docs.UpdateElectronicState(ctx, doc); err != nil {
		err = fmt.Errorf("orchestrator: persistir SUBMITTED: %w", err)
		return resultOf(doc, err), err
	}

	gctx, cancel := o.gatewayContext(ctx)
	resp, err := o.gateway.Submit(gctx, SubmitRequest{Config: cfg, Document: doc, XML: xmlBytes})
	cancel()
	if err != nil {
		err = o.fail(ctx, doc, "submit", classify(err, domain.ErrTransport))
		return resultOf(doc, err), err
	}
	return o.applyResolution(ctx, doc, resp)
}

// applyResolution persiste la respuesta de SUNAT sobre un comprobante SUBMITTED.
func (o *Orchestrator) applyResolution(ctx context.Context, doc *entity.ElectronicDocument, resp *GatewayResponse) (*SubmissionResult, error) {
	if resp.Ticket != "" {
		doc.Ticket = resp.Ticket
	}
	if len(resp.CDR) > 0 {
		doc.CDR = EncodeArtifact(resp.CDR)
	}
	doc.Observations = resp.Observations

	switch resp.Status {
	case GatewayAccepted:
		doc.Status = entity.StatusAccepted
		doc.ErrorMessage = ""
	case GatewayRejected:
		doc.Status = entity.StatusRejected
		doc.ErrorMessage = strings.TrimSpace(resp.ResponseCode + " " + resp.Description)
	}
	if err := o.docs.UpdateElectronicState(ctx, doc); err != nil {
		err = fmt.Errorf("orchestrator: persistir %s: %w", doc.Status, err)
		return resultOf(doc, err), err
	}

	ev := o.log.Info()
	if doc.Status == entity.StatusRejected {
		ev = o.log.Warn()
	}
	ev.Str("document_id", doc.ID).
		Str("status", string(doc.Status)).
		Str("ticket", doc.Ticket).
		Str("code", resp.ResponseCode).
		Msg("respuesta de SUNAT registrada")

	res := resultOf(doc, nil)
	if doc.Status == entity.StatusRejected {
		res.Error = doc.ErrorMessage
	}
	return res, nil
}

// fail deja el comprobante en ERROR con el mensaje de la causa.
// La escritura no depende de la cancelación del contexto del llamador.
func (o *Orchestrator) fail(ctx context.Context, doc *entity.ElectronicDocument, step string, cause error) error {
	doc.Status = entity.StatusError
	doc.ErrorMessage = cause.Error()
	if err := o.docs.UpdateElectronicState(context.WithoutCancel(ctx), doc); err != nil {
		o.log.Error().Err(err).Str("document_id", doc.ID).Msg("no se pudo persistir ERROR")
		return errors.Join(cause, fmt.Errorf("orchestrator: persistir ERROR: %w", err))
	}
	o.log.Error().Err(cause).Str("document_id", doc.ID).Str("step", step).Msg("comprobante en ERROR")
	return cause
}

// ── helpers privados ──────────────────────────────────────────────────────────

func (o *Orchestrator) load(ctx context.Context, companyID, docID string) (*entity.ElectronicDocument, error) {
	doc, err := o.docs.GetWithItems(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: obtener comprobante: %w", err)
	}
	if doc == nil {
		return nil, domain.ErrNotFound
	}
	if doc.CompanyID != companyID {
		return nil, domain.ErrForbidden
	}
	return doc, nil
}

func (o *Orchestrator) billingConfig(ctx context.Context, companyID string) (*entity.BillingConfig, error) {
	cfg, err := o.companies.GetBillingConfig(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: obtener configuración: %w", err)
	}
	if !cfg.HasConfig() {
		return nil, fmt.Errorf("%w: configure usuario SOL y certificado digital", domain.ErrConfiguration)
	}
	return cfg, nil
}

func (o *Orchestrator) customer(ctx context.Context, doc *entity.ElectronicDocument) (*entity.Party, error) {
	if doc.CustomerID == "" {
		return nil, nil
	}
	p, err := o.parties.GetByID(ctx, doc.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: obtener cliente: %w", err)
	}
	if p == nil {
		return nil, fmt.Errorf("%w: cliente %s", domain.ErrNotFound, doc.CustomerID)
	}
	if p.CompanyID != doc.CompanyID {
		return nil, domain.ErrForbidden
	}
	return p, nil
}

func (o *Orchestrator) gatewayContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.cfg.GatewayTimeout > 0 {
		return context.WithTimeout(ctx, o.cfg.GatewayTimeout)
	}
	return context.WithCancel(ctx)
}

// classify asegura que el error lleve una categoría de dominio.
func classify(err, kind error) error {
	for _, known := range []error{domain.ErrTransport, domain.ErrGeneration, domain.ErrConfiguration, domain.ErrInvalidInput, domain.ErrRejected} {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", kind, err)
}

func statusFor(s GatewayStatus) entity.DocumentStatus {
	switch s {
	case GatewayAccepted:
		return entity.StatusAccepted
	case GatewayRejected:
		return entity.StatusRejected
	}
	return entity.StatusSubmitted
}

func resultOf(doc *entity.ElectronicDocument, err error) *SubmissionResult {
	res := &SubmissionResult{
		DocumentID:   doc.ID,
		Status:       doc.Status,
		Ticket:       doc.Ticket,
		VoidStatus:   doc.VoidStatus,
		Hash:         doc.Hash,
		Observations: doc.Observations,
		Success:      err == nil && doc.Status != entity.StatusError && doc.Status != entity.StatusRejected,
	}
	if err != nil {
		res.Error = err.Error()
	}
	return res
}

// RecoverStale pasa a ERROR los comprobantes que quedaron en GENERATING, o en
// SUBMITTED sin ticket, por una caída del proceso. Desde ERROR el reintento decide
// si regenerar o reenviar.
func (o *Orchestrator) RecoverStale(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	docs, err := o.docs.ListStale(ctx, time.Now().Add(-olderThan), limit)
	if err != nil {
		return 0, fmt.Errorf("orchestrator: listar abandonados: %w", err)
	}
	recovered := 0
	for _, doc := range docs {
		release, err := o.guard.acquire(doc.ID)
		if err != nil {
			continue
		}
		from := doc.Status
		doc.Status = entity.StatusError
		doc.ErrorMessage = fmt.Sprintf("proceso interrumpido en %s", from)
		err = o.docs.UpdateElectronicState(ctx, doc)
		release()
		if errors.Is(err, domain.ErrConcurrency) {
			continue
		}
		if err != nil {
			return recovered, fmt.Errorf("orchestrator: recuperar %s: %w", doc.ID, err)
		}
		o.log.Warn().Str("document_id", doc.ID).Str("from", string(from)).Msg("comprobante recuperado a ERROR")
		recovered++
	}
	return recovered, nil
}

package billing_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/erp-sunat-api/internal/application/billing"
	"github.com/jhoicas/erp-sunat-api/internal/domain"
	"github.com/jhoicas/erp-sunat-api/internal/domain/entity"
)

var ctx = context.Background()

// ── Process ───────────────────────────────────────────────────────────────────

func TestProcess_CaminoFelizHastaAceptado(t *testing.T) {
	h := newHarness(draft("doc-1"))

	res, err := h.orch.Process(ctx, companyID, "doc-1")
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, entity.StatusAccepted, res.Status)
	assert.Equal(t, "T-doc-1", res.Ticket)
	assert.Equal(t, "hash-doc-1", res.Hash)

	stored := h.docs.stored("doc-1")
	assert.Equal(t, entity.StatusAccepted, stored.Status)
	assert.Equal(t, []byte("<Invoice>doc-1</Invoice>"), billing.DecodeArtifact(stored.XML))
	assert.Equal(t, []byte("cdr-doc-1"), billing.DecodeArtifact(stored.CDR))
	assert.Equal(t, "1180", stored.GrandTotal.String(), "totales recalculados al generar")
	assert.Equal(t, 4, h.docs.updateCount(), "GENERATING, PENDING, SUBMITTED, ACCEPTED")
}

func TestProcess_ValidacionNoMutaEstado(t *testing.T) {
	doc := draft("doc-1")
	doc.Items = nil
	h := newHarness(doc)

	_, err := h.orch.Process(ctx, companyID, "doc-1")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Equal(t, entity.StatusDraft, h.docs.stored("doc-1").Status)
	assert.Zero(t, h.docs.updateCount())
	assert.Zero(t, h.gateway.count("generate"))
}

func TestProcess_SinConfiguracionNoMutaEstado(t *testing.T) {
	h := newHarness(draft("doc-1"))
	cfg := validConfig()
	cfg.CertPath = ""
	require.NoError(t, h.companies.UpdateBillingConfig(ctx, cfg))

	_, err := h.orch.Process(ctx, companyID, "doc-1")
	assert.ErrorIs(t, err, domain.ErrConfiguration)
	assert.Equal(t, entity.StatusDraft, h.docs.stored("doc-1").Status)
	assert.Zero(t, h.docs.updateCount())
}

func TestProcess_ErrorDeGeneracionSePersiste(t *testing.T) {
	h := newHarness(draft("doc-1"))
	h.gateway.generateFn = func(billing.GenerateRequest) (*billing.GeneratedDocument, error) {
		return nil, errors.New("certificado ilegible")
	}

	res, err := h.orch.Process(ctx, companyID, "doc-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrGeneration)
	assert.False(t, res.Success)
	assert.Equal(t, entity.StatusError, res.Status)

	stored := h.docs.stored("doc-1")
	assert.Equal(t, entity.StatusError, stored.Status)
	assert.Contains(t, stored.ErrorMessage, "certificado ilegible")
	assert.Empty(t, stored.XML)
	assert.Zero(t, h.gateway.count("submit"))
}

func TestProcess_ErrorDeTransporteConservaXML(t *testing.T) {
	h := newHarness(draft("doc-1"))
	h.gateway.submitFn = func(billing.SubmitRequest) (*billing.GatewayResponse, error) {
		return nil, errors.New("connection reset by peer")
	}

	_, err := h.orch.Process(ctx, companyID, "doc-1")
	assert.ErrorIs(t, err, domain.ErrTransport)

	stored := h.docs.stored("doc-1")
	assert.Equal(t, entity.StatusError, stored.Status)
	assert.True(t, stored.HasXML(), "el reintento reenvía sin regenerar")
	assert.Contains(t, stored.ErrorMessage, "connection reset")
}

func TestProcess_RechazoEsResultadoNoError(t *testing.T) {
	h := newHarness(draft("doc-1"))
	h.gateway.submitFn = func(req billing.SubmitRequest) (*billing.GatewayResponse, error) {
		return &billing.GatewayResponse{
			Status:       billing.GatewayRejected,
			Ticket:       "T-1",
			CDR:          []byte("cdr-rechazo"),
			ResponseCode: "2017",
			Description:  "El número de documento de identidad del receptor debe ser RUC",
			Observations: []string{"4252 - El dato ingresado como atributo no cumple"},
		}, nil
	}

	res, err := h.orch.Process(ctx, companyID, "doc-1")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, entity.StatusRejected, res.Status)
	assert.Contains(t, res.Error, "2017")

	stored := h.docs.stored("doc-1")
	assert.Equal(t, entity.StatusRejected, stored.Status)
	assert.Len(t, stored.Observations, 1)
	assert.NotEmpty(t, stored.CDR)
}

func TestProcess_RechazadoRegeneraYReenvia(t *testing.T) {
	doc := draft("doc-1")
	doc.Status = entity.StatusRejected
	doc.XML = billing.EncodeArtifact([]byte("<viejo/>"))
	doc.CDR = "Y2Ry"
	h := newHarness(doc)

	res, err := h.orch.Process(ctx, companyID, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusAccepted, res.Status)
	assert.Equal(t, 1, h.gateway.count("generate"))
	assert.Equal(t, []byte("<Invoice>doc-1</Invoice>"), billing.DecodeArtifact(h.docs.stored("doc-1").XML))
}

func TestProcess_OtraEmpresaProhibido(t *testing.T) {
	h := newHarness(draft("doc-1"))

	_, err := h.orch.Process(ctx, otherID, "doc-1")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = h.orch.Process(ctx, companyID, "no-existe")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestProcess_ConflictoDeVersion(t *testing.T) {
	h := newHarness(draft("doc-1"))
	bumped := false
	h.docs.beforeUpdate = func(stored *entity.ElectronicDocument) {
		if !bumped {
			stored.Version++ // otra instancia escribió primero
			bumped = true
		}
	}

	_, err := h.orch.Process(ctx, companyID, "doc-1")
	assert.ErrorIs(t, err, domain.ErrConcurrency)
	assert.Zero(t, h.gateway.count("generate"))
}

// ── Generate / Submit ─────────────────────────────────────────────────────────

func TestGenerateYSubmit_AceptadoNoCambia(t *testing.T) {
	doc := draft("doc-1")
	doc.Status = entity.StatusAccepted
	doc.XML = billing.EncodeArtifact([]byte("<Invoice/>"))
	h := newHarness(doc)
	before := h.docs.stored("doc-1")

	_, err := h.orch.Generate(ctx, companyID, "doc-1")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = h.orch.Submit(ctx, companyID, "doc-1")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = h.orch.Process(ctx, companyID, "doc-1")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	assert.Equal(t, before, h.docs.stored("doc-1"))
	assert.Zero(t, h.gateway.count("generate")+h.gateway.count("submit"))
}

func TestGenerate_DejaPendiente(t *testing.T) {
	h := newHarness(draft("doc-1"))

	res, err := h.orch.Generate(ctx, companyID, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPending, res.Status)
	assert.Zero(t, h.gateway.count("submit"))

	res, err = h.orch.Submit(ctx, companyID, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusAccepted, res.Status)
}

func TestSubmit_BorradorSinXML(t *testing.T) {
	h := newHarness(draft("doc-1"))

	_, err := h.orch.Submit(ctx, companyID, "doc-1")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Zero(t, h.docs.updateCount())
}

func TestSubmit_EnProcesoQuedaEnviado(t *testing.T) {
	h := newHarness(draft("doc-1"))
	h.gateway.submitFn = func(billing.SubmitRequest) (*billing.GatewayResponse, error) {
		return &billing.GatewayResponse{Status: billing.GatewayInProcess, Ticket: "202400001"}, nil
	}

	res, err := h.orch.Process(ctx, companyID, "doc-1")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, entity.StatusSubmitted, res.Status)
	assert.Equal(t, "202400001", h.docs.stored("doc-1").Ticket)
}

// ── CheckStatus ───────────────────────────────────────────────────────────────

func submitted(id string) *entity.ElectronicDocument {
	doc := draft(id)
	doc.Status = entity.StatusSubmitted
	doc.XML = billing.EncodeArtifact([]byte("<Invoice/>"))
	doc.Ticket = "202400001"
	return doc
}

func TestCheckStatus_ResuelveYEsIdempotente(t *testing.T) {
	h := newHarness(submitted("doc-1"))
	h.gateway.statusFn = func(req billing.StatusRequest) (*billing.GatewayResponse, error) {
		return &billing.GatewayResponse{Status: billing.GatewayAccepted, Ticket: req.Ticket, CDR: []byte("cdr"), ResponseCode: "0"}, nil
	}

	res, err := h.orch.CheckStatus(ctx, companyID, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusAccepted, res.Status)
	first := h.docs.stored("doc-1")
	writes := h.docs.updateCount()

	res, err = h.orch.CheckStatus(ctx, companyID, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusAccepted, res.Status)
	assert.Equal(t, first, h.docs.stored("doc-1"), "la segunda consulta no modifica el registro")
	assert.Equal(t, writes, h.docs.updateCount())
}

func TestCheckStatus_EnProcesoNoEscribe(t *testing.T) {
	h := newHarness(submitted("doc-1"))

	res, err := h.orch.CheckStatus(ctx, companyID, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusSubmitted, res.Status)
	assert.Zero(t, h.docs.updateCount())
}

func TestCheckStatus_SinTicketNoConsulta(t *testing.T) {
	h := newHarness(draft("doc-1"))

	res, err := h.orch.CheckStatus(ctx, companyID, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusDraft, res.Status)
	assert.Zero(t, h.gateway.count("status"))
}

func TestCheckStatus_CompletaCDRFaltante(t *testing.T) {
	doc := submitted("doc-1")
	doc.Status = entity.StatusAccepted
	h := newHarness(doc)
	h.gateway.statusFn = func(billing.StatusRequest) (*billing.GatewayResponse, error) {
		return &billing.GatewayResponse{Status: billing.GatewayAccepted, CDR: []byte("cdr-tardio")}, nil
	}

	_, err := h.orch.CheckStatus(ctx, companyID, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("cdr-tardio"), billing.DecodeArtifact(h.docs.stored("doc-1").CDR))
	assert.Equal(t, 1, h.docs.updateCount())
}

func TestCheckStatus_EstadoIncompatibleSeConserva(t *testing.T) {
	doc := submitted("doc-1")
	doc.Status = entity.StatusCancelled
	h := newHarness(doc)
	h.gateway.statusFn = func(billing.StatusRequest) (*billing.GatewayResponse, error) {
		return &billing.GatewayResponse{Status: billing.GatewayAccepted, CDR: []byte("cdr")}, nil
	}

	res, err := h.orch.CheckStatus(ctx, companyID, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusCancelled, res.Status)
	assert.Zero(t, h.docs.updateCount())
}

func TestCheckStatus_FalloDeTransporteNoMuta(t *testing.T) {
	h := newHarness(submitted("doc-1"))
	h.gateway.statusFn = func(billing.StatusRequest) (*billing.GatewayResponse, error) {
		return nil, errors.New("timeout")
	}

	_, err := h.orch.CheckStatus(ctx, companyID, "doc-1")
	assert.ErrorIs(t, err, domain.ErrTransport)
	assert.Equal(t, entity.StatusSubmitted, h.docs.stored("doc-1").Status)
}

// ── Cancel ────────────────────────────────────────────────────────────────────

func TestCancel_AceptadoPasaAAnulado(t *testing.T) {
	doc := submitted("doc-1")
	doc.Status = entity.StatusAccepted
	h := newHarness(doc)

	res, err := h.orch.Cancel(ctx, companyID, "doc-1", "Error en el RUC del cliente")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusCancelled, res.Status)

	stored := h.docs.stored("doc-1")
	assert.Equal(t, "Error en el RUC del cliente", stored.VoidReason)
	assert.Equal(t, "RA-TICKET", stored.VoidTicket)
	assert.Equal(t, entity.VoidPending, stored.VoidStatus, "la baja queda pendiente de su ticket")
}

func TestCheckStatus_AnuladoConsultaTicketDeBaja(t *testing.T) {
	doc := submitted("doc-1")
	doc.Status = entity.StatusCancelled
	doc.VoidTicket = "RA-1"
	doc.VoidStatus = entity.VoidPending
	h := newHarness(doc)
	var asked []string
	h.gateway.statusFn = func(req billing.StatusRequest) (*billing.GatewayResponse, error) {
		asked = append(asked, req.Ticket)
		return &billing.GatewayResponse{Status: billing.GatewayAccepted, Ticket: req.Ticket}, nil
	}

	res, err := h.orch.CheckStatus(ctx, companyID, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusCancelled, res.Status)
	assert.Equal(t, entity.VoidAccepted, res.VoidStatus)

	_, err = h.orch.CheckStatus(ctx, companyID, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"RA-1"}, asked, "una baja resuelta no se vuelve a consultar")
}

func TestCancel_TrasBajaRechazadaSePuedeReintentar(t *testing.T) {
	doc := submitted("doc-1")
	doc.Status = entity.StatusCancelled
	doc.VoidTicket = "RA-1"
	doc.VoidStatus = entity.VoidPending
	h := newHarness(doc)
	h.gateway.statusFn = func(req billing.StatusRequest) (*billing.GatewayResponse, error) {
		return &billing.GatewayResponse{Status: billing.GatewayRejected, Ticket: req.Ticket, ResponseCode: "2375", Description: "Fecha fuera de plazo"}, nil
	}

	res, err := h.orch.CheckVoidStatus(ctx, companyID, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusAccepted, res.Status)

	res, err = h.orch.Cancel(ctx, companyID, "doc-1", "segundo intento")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusCancelled, res.Status)
	stored := h.docs.stored("doc-1")
	assert.Equal(t, entity.VoidPending, stored.VoidStatus)
	assert.Empty(t, stored.ErrorMessage)
}

func TestCancel_Reglas(t *testing.T) {
	h := newHarness(submitted("doc-1"))

	_, err := h.orch.Cancel(ctx, companyID, "doc-1", "   ")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = h.orch.Cancel(ctx, companyID, "doc-1", "motivo")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition, "solo ACCEPTED admite baja")
	assert.Zero(t, h.gateway.count("void"))
}

func TestCancel_FalloDeTransporteConservaAceptado(t *testing.T) {
	doc := submitted("doc-1")
	doc.Status = entity.StatusAccepted
	h := newHarness(doc)
	h.gateway.voidFn = func(billing.VoidRequest) (*billing.GatewayResponse, error) {
		return nil, errors.New("503")
	}

	_, err := h.orch.Cancel(ctx, companyID, "doc-1", "motivo")
	assert.ErrorIs(t, err, domain.ErrTransport)
	assert.Equal(t, entity.StatusAccepted, h.docs.stored("doc-1").Status)
}

// ── concurrencia ──────────────────────────────────────────────────────────────

func TestProcess_MismoComprobanteEnParaleloSeRechaza(t *testing.T) {
	h := newHarness(draft("doc-1"))
	entered := make(chan struct{})
	unblock := make(chan struct{})
	h.gateway.generateFn = func(req billing.GenerateRequest) (*billing.GeneratedDocument, error) {
		close(entered)
		<-unblock
		return &billing.GeneratedDocument{XML: []byte("<Invoice/>"), Hash: "h"}, nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := h.orch.Process(ctx, companyID, "doc-1")
		done <- err
	}()
	<-entered

	_, err := h.orch.Process(ctx, companyID, "doc-1")
	assert.ErrorIs(t, err, domain.ErrConcurrency)

	close(unblock)
	require.NoError(t, <-done)
	assert.Equal(t, entity.StatusAccepted, h.docs.stored("doc-1").Status)
}

// ── RecoverStale ──────────────────────────────────────────────────────────────

func TestRecoverStale(t *testing.T) {
	stuck := draft("doc-1")
	stuck.Status = entity.StatusGenerating
	stuck.UpdatedAt = time.Now().Add(-time.Hour)

	fresh := draft("doc-2")
	fresh.Status = entity.StatusGenerating
	fresh.UpdatedAt = time.Now()

	withTicket := submitted("doc-3")
	withTicket.UpdatedAt = time.Now().Add(-time.Hour)

	h := newHarness(stuck, fresh, withTicket)

	n, err := h.orch.RecoverStale(ctx, 10*time.Minute, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, entity.StatusError, h.docs.stored("doc-1").Status)
	assert.Equal(t, entity.StatusGenerating, h.docs.stored("doc-2").Status)
	assert.Equal(t, entity.StatusSubmitted, h.docs.stored("doc-3").Status)
}

func TestRecoverStale_NoQuedaDetrasDeTickets(t *testing.T) {
	var docs []*entity.ElectronicDocument
	for i, id := range []string{"doc-1", "doc-2", "doc-3"} {
		d := submitted(id)
		d.UpdatedAt = time.Now().Add(-time.Duration(10-i) * time.Hour)
		docs = append(docs, d)
	}
	orphan := submitted("doc-4")
	orphan.Ticket = ""
	orphan.UpdatedAt = time.Now().Add(-time.Hour)
	h := newHarness(append(docs, orphan)...)

	n, err := h.orch.RecoverStale(ctx, 10*time.Minute, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, entity.StatusError, h.docs.stored("doc-4").Status)
	assert.Equal(t, "proceso interrumpido en SUBMITTED", h.docs.stored("doc-4").ErrorMessage)
}

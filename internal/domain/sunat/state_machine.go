package sunat

import (
	"fmt"

	"github.com/jhoicas/erp-sunat-api/internal/domain"
	"github.com/jhoicas/erp-sunat-api/internal/domain/entity"
)

// transitions aristas permitidas del ciclo de vida.
// ERROR y REJECTED pueden volver a GENERATING para regenerar tras una corrección.
// ERROR -> SUBMITTED solo aplica si el XML ya existe (reintento de envío).
var transitions = map[entity.DocumentStatus][]entity.DocumentStatus{
	entity.StatusDraft:      {entity.StatusGenerating},
	entity.StatusGenerating: {entity.StatusPending, entity.StatusError},
	entity.StatusPending:    {entity.StatusSubmitted},
	entity.StatusSubmitted:  {entity.StatusAccepted, entity.StatusRejected, entity.StatusError},
	entity.StatusAccepted:   {entity.StatusCancelled},
	entity.StatusRejected:   {entity.StatusGenerating},
	entity.StatusError:      {entity.StatusGenerating, entity.StatusSubmitted},
	entity.StatusCancelled:  {},
}

var labels = map[entity.DocumentStatus]string{
	entity.StatusDraft:      "Borrador",
	entity.StatusGenerating: "Generando XML",
	entity.StatusPending:    "Pendiente",
	entity.StatusSubmitted:  "Enviado",
	entity.StatusAccepted:   "Aceptado",
	entity.StatusRejected:   "Rechazado",
	entity.StatusError:      "Error",
	entity.StatusCancelled:  "Anulado",
}

// CanTransition indica si la arista from -> to existe.
func CanTransition(from, to entity.DocumentStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition valida el cambio de estado de un comprobante.
// Para ERROR -> SUBMITTED exige XML generado.
func Transition(doc *entity.ElectronicDocument, to entity.DocumentStatus) error {
	if !CanTransition(doc.Status, to) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, doc.Status, to)
	}
	if to == entity.StatusSubmitted && !doc.HasXML() {
		return fmt.Errorf("%w: %s -> %s sin XML generado", domain.ErrInvalidTransition, doc.Status, to)
	}
	return nil
}

// RevertCancellation devuelve a ACCEPTED un comprobante cuya baja SUNAT rechazó.
// Solo aplica a CANCELLED con la baja aún pendiente.
func RevertCancellation(doc *entity.ElectronicDocument) error {
	if doc.Status != entity.StatusCancelled || doc.VoidStatus != entity.VoidPending {
		return fmt.Errorf("%w: baja %q en %s no se puede revertir", domain.ErrInvalidTransition, doc.VoidStatus, doc.Status)
	}
	doc.Status = entity.StatusAccepted
	doc.VoidStatus = entity.VoidRejected
	return nil
}

// IsValidStatus indica si el valor pertenece al ciclo de vida.
func IsValidStatus(s entity.DocumentStatus) bool {
	_, ok := transitions[s]
	return ok
}

// IsTerminal estados sin salida automática.
func IsTerminal(s entity.DocumentStatus) bool {
	return s == entity.StatusAccepted || s == entity.StatusCancelled
}

// CanRetry estados desde los que un usuario puede reintentar el proceso.
func CanRetry(s entity.DocumentStatus) bool {
	return s == entity.StatusError || s == entity.StatusRejected
}

// CanCancel solo un comprobante aceptado admite comunicación de baja.
func CanCancel(s entity.DocumentStatus) bool {
	return s == entity.StatusAccepted
}

// Label etiqueta en español para la interfaz.
func Label(s entity.DocumentStatus) string {
	if l, ok := labels[s]; ok {
		return l
	}
	return string(s)
}

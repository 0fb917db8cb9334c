package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound     = errors.New("recurso no encontrado")
	ErrInvalidInput = errors.New("entrada inválida")
	ErrUnauthorized = errors.New("no autorizado")
	ErrForbidden    = errors.New("acceso denegado")
	ErrConflict     = errors.New("conflicto con el estado actual")

	// Facturación electrónica SUNAT.
	ErrInvalidTransition = errors.New("transición de estado no permitida")
	ErrConfiguration     = errors.New("facturación electrónica no configurada")
	ErrGeneration        = errors.New("error al generar el comprobante")
	ErrTransport         = errors.New("error de comunicación con SUNAT")
	ErrRejected          = errors.New("comprobante rechazado por SUNAT")
	ErrConcurrency       = errors.New("el comprobante está siendo procesado por otra operación")
)

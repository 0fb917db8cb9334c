package dto

const (
	defaultPageLimit = 20
	MaxPageLimit     = 100
)

// PageRequest paginación de listados.
type PageRequest struct {
	Limit  int `query:"limit"`
	Offset int `query:"offset"`
}

// Normalize devuelve la página con límite en [1, MaxPageLimit] y offset no negativo.
func (p PageRequest) Normalize() PageRequest {
	switch {
	case p.Limit <= 0:
		p.Limit = defaultPageLimit
	case p.Limit > MaxPageLimit:
		p.Limit = MaxPageLimit
	}
	p.Offset = max(p.Offset, 0)
	return p
}

// PageResponse metadatos de página; HasMore indica si quedan registros tras esta página.
type PageResponse struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	Total   int  `json:"total"`
	HasMore bool `json:"has_more"`
}

// NewPageResponse arma los metadatos a partir de la página aplicada y el total.
func NewPageResponse(p PageRequest, total int) PageResponse {
	return PageResponse{Limit: p.Limit, Offset: p.Offset, Total: total, HasMore: p.Offset+p.Limit < total}
}

// ErrorResponse cuerpo de error HTTP. RequestID es el X-Request-ID de la petición.
type ErrorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

package billing

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/jhoicas/erp-sunat-api/internal/domain"
)

// RetryPolicy parámetros del reintento con backoff exponencial sin jitter:
// espera_n = Delay × Multiplier^(n-1), con MaxAttempts intentos en total.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
	Multiplier  float64
}

// DefaultRetryPolicy 3 intentos, 5 s inicial, factor 2.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Delay: 5 * time.Second, Multiplier: 2}
}

// merge completa los campos vacíos con base.
func (p RetryPolicy) merge(base RetryPolicy) RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = base.MaxAttempts
	}
	if p.Delay <= 0 {
		p.Delay = base.Delay
	}
	if p.Multiplier < 1 {
		p.Multiplier = base.Multiplier
	}
	return p
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	p = p.merge(DefaultRetryPolicy())
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.Delay
	eb.Multiplier = p.Multiplier
	eb.RandomizationFactor = 0
	eb.MaxInterval = 24 * time.Hour
	eb.MaxElapsedTime = 0
	eb.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(eb, uint64(p.MaxAttempts-1)), ctx)
}

// Waits devuelve la secuencia de esperas entre intentos (útil para mostrar al usuario).
func (p RetryPolicy) Waits() []time.Duration {
	b := p.backOff(context.Background())
	var out []time.Duration
	for next := b.NextBackOff(); next != backoff.Stop; next = b.NextBackOff() {
		out = append(out, next)
	}
	return out
}

// isRetryable solo los fallos de transporte justifican reintentar.
// Rechazos, validaciones, configuración y generación son definitivos.
func isRetryable(err error) bool {
	return errors.Is(err, domain.ErrTransport)
}

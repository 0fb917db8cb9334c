// status_poller consulta periódicamente en SUNAT los comprobantes enviados que
// aún no tienen respuesta y recupera los que quedaron a medio procesar.
//
// Uso: go run ./cmd/status_poller
// Usa la misma configuración que la API (SUNAT_ENV, DB_*, SUNAT_POLL_INTERVAL_SECONDS).
package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/jhoicas/erp-sunat-api/internal/application/billing"
	"github.com/jhoicas/erp-sunat-api/internal/infrastructure/postgres"
	infrasunat "github.com/jhoicas/erp-sunat-api/internal/infrastructure/sunat"
	"github.com/jhoicas/erp-sunat-api/internal/infrastructure/sunat/signer"
	"github.com/jhoicas/erp-sunat-api/pkg/config"
	"github.com/jhoicas/erp-sunat-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel, Service: cfg.App.Name + "-poller"})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.DB, log.Component("postgres"))
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	docRepo := postgres.NewElectronicDocumentRepository(pool)
	companyRepo := postgres.NewCompanyRepository(pool)
	partyRepo := postgres.NewPartyRepository(pool)

	var gateway billing.TaxGateway
	if cfg.SUNAT.Env == config.SUNATEnvDev {
		gateway = infrasunat.NewSimulatedGateway(log.Zerolog())
	} else {
		gateway = infrasunat.NewGateway(cfg.SUNAT, signer.NewDigitalSignatureService(), log.Zerolog())
	}
	orchestrator := billing.NewOrchestrator(docRepo, companyRepo, partyRepo, gateway, billing.OrchestratorConfig{
		GatewayTimeout: cfg.SUNAT.Timeout,
	}, log.Zerolog())

	poller := billing.NewStatusPoller(docRepo, orchestrator, billing.PollerConfig{
		Interval: cfg.SUNAT.PollInterval,
		PageSize: cfg.SUNAT.PollPageSize,
	}, log.Zerolog())

	log.Info().
		Str("sunat_env", cfg.SUNAT.Env).
		Dur("interval", cfg.SUNAT.PollInterval).
		Msg("poller de tickets iniciado")
	if err := poller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("poller finalizado con error")
		return
	}
	log.Info().Msg("poller detenido")
}

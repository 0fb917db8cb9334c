package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	_ "github.com/jhoicas/erp-sunat-api/docs"
	"github.com/jhoicas/erp-sunat-api/internal/application/billing"
	"github.com/jhoicas/erp-sunat-api/internal/application/usecase"
	infrapdf "github.com/jhoicas/erp-sunat-api/internal/infrastructure/pdf"
	"github.com/jhoicas/erp-sunat-api/internal/infrastructure/postgres"
	infrasunat "github.com/jhoicas/erp-sunat-api/internal/infrastructure/sunat"
	"github.com/jhoicas/erp-sunat-api/internal/infrastructure/sunat/signer"
	httpRouter "github.com/jhoicas/erp-sunat-api/internal/interfaces/http"
	"github.com/jhoicas/erp-sunat-api/pkg/config"
	"github.com/jhoicas/erp-sunat-api/pkg/jwt"
	"github.com/jhoicas/erp-sunat-api/pkg/logger"
)

// @title                       ERP SUNAT API
// @version                     1.0
// @description                 Facturación electrónica SUNAT: comprobantes UBL 2.1, envío, CDR y reportes.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:     cfg.App.Env,
		Level:   cfg.App.LogLevel,
		Service: cfg.App.Name,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("sunat_env", cfg.SUNAT.Env).
		Msg("iniciando aplicación")

	verifier, err := jwt.NewVerifier(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Leeway)
	if err != nil {
		log.Fatal().Err(err).Msg("JWT_SECRET requerido")
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB, log.Component("postgres"))
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool, log.Component("migrations")); err != nil {
		log.Fatal().Err(err).Msg("migraciones")
	}

	docRepo := postgres.NewElectronicDocumentRepository(pool)
	companyRepo := postgres.NewCompanyRepository(pool)
	partyRepo := postgres.NewPartyRepository(pool)

	// En "dev" no hay llamadas de red: el gateway simulado acepta todo y no hay prueba de conexión.
	var (
		gateway billing.TaxGateway
		tester  billing.ConnectionTester
	)
	if cfg.SUNAT.Env == config.SUNATEnvDev {
		gateway = infrasunat.NewSimulatedGateway(log.Zerolog())
	} else {
		g := infrasunat.NewGateway(cfg.SUNAT, signer.NewDigitalSignatureService(), log.Zerolog())
		gateway, tester = g, g
	}

	orchestrator := billing.NewOrchestrator(docRepo, companyRepo, partyRepo, gateway, billing.OrchestratorConfig{
		GatewayTimeout: cfg.SUNAT.Timeout,
		Retry: billing.RetryPolicy{
			MaxAttempts: cfg.SUNAT.RetryMaxAttempts,
			Delay:       cfg.SUNAT.RetryDelay,
			Multiplier:  cfg.SUNAT.RetryMultiplier,
		},
	}, log.Zerolog())
	batch := billing.NewBatchCoordinator(orchestrator, billing.BatchOptions{
		MaxConcurrent: cfg.SUNAT.BatchMaxConcurrent,
		ChunkDelay:    cfg.SUNAT.BatchChunkDelay,
	}, log.Zerolog())

	draftUC := billing.NewDraftUseCase(docRepo, partyRepo)
	queryUC := billing.NewQueryUseCase(docRepo, companyRepo)
	pdfUC := billing.NewPDFUseCase(docRepo, companyRepo, partyRepo, infrapdf.NewMarotoPDFGenerator())
	configUC := billing.NewConfigUseCase(
		companyRepo,
		infrasunat.CertificateInspector{},
		infrasunat.NewFileCertificateStore(cfg.SUNAT.CertDir),
		tester,
	)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 60, // un lote puede tardar varios tramos
		IdleTimeout:  time.Second * 60,
		BodyLimit:    billing.MaxCertificateSize + 1<<20,
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(httpRouter.RequestLogger(log.Component("http")))

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "ERP SUNAT API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name, "sunat_env": cfg.SUNAT.Env})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		Drafts:        draftUC,
		Orchestrator:  orchestrator,
		Batch:         batch,
		Queries:       queryUC,
		PDF:           pdfUC,
		BillingConfig: configUC,
		CompanyUC:     usecase.NewCompanyUseCase(companyRepo),
		Verifier:      verifier,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}

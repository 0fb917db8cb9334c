package billing

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jhoicas/erp-sunat-api/internal/application/dto"
	"github.com/jhoicas/erp-sunat-api/internal/domain"
	"github.com/jhoicas/erp-sunat-api/internal/domain/entity"
	"github.com/jhoicas/erp-sunat-api/internal/domain/repository"
	"github.com/jhoicas/erp-sunat-api/pkg/sunat"
)

// MaxCertificateSize tamaño máximo aceptado para el archivo del certificado.
const MaxCertificateSize = 5 << 20

var certExtensions = map[string]bool{".p12": true, ".pfx": true, ".pem": true}

// ConfigUseCase administra credenciales SOL, certificado y ambiente de la empresa.
type ConfigUseCase struct {
	companies repository.CompanyRepository
	inspector CertificateInspector
	store     CertificateStore
	tester    ConnectionTester // nil cuando el gateway no soporta la prueba (modo dev)
	now       func() time.Time
}

// NewConfigUseCase construye el caso de uso.
func NewConfigUseCase(
	companies repository.CompanyRepository,
	inspector CertificateInspector,
	store CertificateStore,
	tester ConnectionTester,
) *ConfigUseCase {
	return &ConfigUseCase{companies: companies, inspector: inspector, store: store, tester: tester, now: time.Now}
}

// GetBillingStatus indica qué partes de la configuración están completas.
func (uc *ConfigUseCase) GetBillingStatus(ctx context.Context, companyID string) (*dto.BillingStatusResponse, error) {
	cfg, err := uc.config(ctx, companyID)
	if err != nil {
		return nil, err
	}
	return &dto.BillingStatusResponse{
		HasConfig:         cfg.HasConfig(),
		ProductionMode:    cfg.Production,
		SolUserConfigured: cfg.SolUser != "" && cfg.SolPassword != "",
		CertConfigured:    cfg.CertPath != "",
		APIConfigured:     cfg.ClientID != "" && cfg.ClientSecret != "",
		Environment:       environmentName(cfg.Production),
	}, nil
}

// Configure guarda credenciales SOL. El certificado se carga aparte con UploadCertificate.
func (uc *ConfigUseCase) Configure(ctx context.Context, companyID string, in dto.ConfigureBillingRequest) (*dto.BillingStatusResponse, error) {
	cfg, err := uc.config(ctx, companyID)
	if err != nil {
		return nil, err
	}
	solUser := strings.ToUpper(strings.TrimSpace(in.SolUser))
	if solUser == "" {
		return nil, fmt.Errorf("%w: el usuario SOL es obligatorio", domain.ErrInvalidInput)
	}
	if in.SolPassword == "" && cfg.SolPassword == "" {
		return nil, fmt.Errorf("%w: la clave SOL es obligatoria", domain.ErrInvalidInput)
	}
	if cfg.CertPath == "" {
		return nil, fmt.Errorf("%w: cargue primero el certificado digital", domain.ErrInvalidInput)
	}

	cfg.SolUser = solUser
	if in.SolPassword != "" {
		cfg.SolPassword = in.SolPassword
	}
	cfg.ClientID = in.ClientID
	if in.ClientSecret != "" {
		cfg.ClientSecret = in.ClientSecret
	}
	cfg.Production = in.Production
	if err := uc.companies.UpdateBillingConfig(ctx, cfg); err != nil {
		return nil, fmt.Errorf("config: guardar configuración: %w", err)
	}
	return uc.GetBillingStatus(ctx, companyID)
}

// UploadCertificate valida y guarda el certificado digital de la empresa.
func (uc *ConfigUseCase) UploadCertificate(ctx context.Context, companyID, fileName string, data []byte, password string) (*dto.CertificateResponse, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	if !certExtensions[ext] {
		return nil, fmt.Errorf("%w: formato de certificado no soportado (.p12, .pfx, .pem)", domain.ErrInvalidInput)
	}
	if len(data) == 0 || len(data) > MaxCertificateSize {
		return nil, fmt.Errorf("%w: el certificado debe pesar entre 1 byte y 5MB", domain.ErrInvalidInput)
	}
	info, err := uc.inspector.Inspect(data, fileName, password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if uc.now().After(info.NotAfter) {
		return nil, fmt.Errorf("%w: el certificado venció el %s", domain.ErrInvalidInput, info.NotAfter.Format("2006-01-02"))
	}

	cfg, err := uc.config(ctx, companyID)
	if err != nil {
		return nil, err
	}
	path, err := uc.store.Save(ctx, companyID, filepath.Base(fileName), data)
	if err != nil {
		return nil, fmt.Errorf("config: guardar certificado: %w", err)
	}
	previous := cfg.CertPath
	cfg.CertPath = path
	cfg.CertPassword = password
	if err := uc.companies.UpdateBillingConfig(ctx, cfg); err != nil {
		uc.removeCertificate(ctx, companyID, path)
		return nil, fmt.Errorf("config: guardar ruta del certificado: %w", err)
	}
	if previous != "" && previous != path {
		uc.removeCertificate(ctx, companyID, previous)
	}
	return &dto.CertificateResponse{
		Path:         path,
		Subject:      info.Subject,
		Issuer:       info.Issuer,
		SerialNumber: info.SerialNumber,
		ValidFrom:    info.NotBefore.Format("2006-01-02"),
		ValidTo:      info.NotAfter.Format("2006-01-02"),
	}, nil
}

// removeCertificate un archivo huérfano no invalida la operación; solo se registra.
func (uc *ConfigUseCase) removeCertificate(ctx context.Context, companyID, path string) {
	if err := uc.store.Remove(ctx, companyID, path); err != nil {
		log.Warn().Err(err).Str("company_id", companyID).Str("cert_path", path).Msg("no se pudo borrar el certificado anterior")
	}
}

// ValidateConfiguration revisa RUC, usuario SOL y certificado sin modificar nada.
func (uc *ConfigUseCase) ValidateConfiguration(ctx context.Context, companyID string) (*dto.ConfigValidationResponse, error) {
	cfg, err := uc.config(ctx, companyID)
	if err != nil {
		return nil, err
	}
	return validateConfig(cfg), nil
}

func validateConfig(cfg *entity.BillingConfig) *dto.ConfigValidationResponse {
	out := &dto.ConfigValidationResponse{Errors: []string{}, Warnings: []string{}}
	if err := sunat.ValidateRUC(cfg.RUC); err != nil {
		out.Errors = append(out.Errors, "RUC de la empresa inválido: "+err.Error())
	}
	switch {
	case cfg.SolUser == "":
		out.Errors = append(out.Errors, "Usuario SOL no configurado")
	case cfg.RUC != "" && !strings.HasPrefix(cfg.SolUser, cfg.RUC):
		out.Warnings = append(out.Warnings, "El usuario SOL normalmente inicia con el RUC de la empresa")
	}
	if cfg.SolPassword == "" {
		out.Errors = append(out.Errors, "Clave SOL no configurada")
	}
	if cfg.CertPath == "" {
		out.Errors = append(out.Errors, "Certificado digital no cargado")
	}
	if cfg.Production {
		out.Warnings = append(out.Warnings, "Configurado para ambiente de PRODUCCIÓN. Los comprobantes tendrán validez tributaria.")
	} else {
		out.Warnings = append(out.Warnings, "Configurado para ambiente de PRUEBAS/BETA.")
	}
	out.Valid = len(out.Errors) == 0
	return out
}

// SwitchEnvironment cambia entre beta y producción. Pasar a producción exige configuración válida.
func (uc *ConfigUseCase) SwitchEnvironment(ctx context.Context, companyID string, production bool) (*dto.BillingStatusResponse, error) {
	if production {
		report, err := uc.ValidateConfiguration(ctx, companyID)
		if err != nil {
			return nil, err
		}
		if !report.Valid {
			return nil, fmt.Errorf("%w: %s", domain.ErrConfiguration, strings.Join(report.Errors, "; "))
		}
	}
	if err := uc.companies.SetProduction(ctx, companyID, production); err != nil {
		return nil, fmt.Errorf("config: cambiar ambiente: %w", err)
	}
	return uc.GetBillingStatus(ctx, companyID)
}

// TestConnection prueba las credenciales SOL contra el servicio del ambiente actual.
func (uc *ConfigUseCase) TestConnection(ctx context.Context, companyID string) (*dto.ConnectionTestResponse, error) {
	cfg, err := uc.config(ctx, companyID)
	if err != nil {
		return nil, err
	}
	out := &dto.ConnectionTestResponse{Environment: environmentName(cfg.Production)}
	if !cfg.HasConfig() {
		out.Message = "Configuración incompleta: usuario SOL, clave y certificado son obligatorios"
		return out, nil
	}
	if uc.tester == nil {
		out.Success = true
		out.Message = "Modo simulado: no se realizan llamadas a SUNAT"
		return out, nil
	}
	if err := uc.tester.Ping(ctx, cfg); err != nil {
		out.Message = err.Error()
		return out, nil
	}
	out.Success = true
	out.Message = "Conexión exitosa con SUNAT"
	return out, nil
}

func (uc *ConfigUseCase) config(ctx context.Context, companyID string) (*entity.BillingConfig, error) {
	cfg, err := uc.companies.GetBillingConfig(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("config: obtener configuración: %w", err)
	}
	if cfg == nil {
		return nil, domain.ErrNotFound
	}
	return cfg, nil
}

func environmentName(production bool) string {
	if production {
		return "production"
	}
	return "beta"
}

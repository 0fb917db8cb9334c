package sunat

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jhoicas/erp-sunat-api/internal/application/billing"
	"github.com/jhoicas/erp-sunat-api/internal/infrastructure/sunat/signer"
)

// CertificateInspector abre el certificado con su contraseña y extrae sus datos.
type CertificateInspector struct{}

// Inspect implementa billing.CertificateInspector.
func (CertificateInspector) Inspect(data []byte, fileName, password string) (*billing.CertificateInfo, error) {
	cert, err := signer.Parse(data, fileName, password)
	if err != nil {
		return nil, err
	}
	leaf := cert.Leaf
	return &billing.CertificateInfo{
		Subject:      leaf.Subject.String(),
		Issuer:       leaf.Issuer.String(),
		SerialNumber: leaf.SerialNumber.Text(16),
		NotBefore:    leaf.NotBefore,
		NotAfter:     leaf.NotAfter,
	}, nil
}

// FileCertificateStore guarda certificados en {dir}/{companyID}/{unix}_{archivo}.
// La ruta persistida es relativa a dir; el gateway la resuelve con SUNAT_CERT_DIR.
type FileCertificateStore struct {
	dir string
	now func() time.Time
}

// NewFileCertificateStore construye el almacén sobre el directorio base.
func NewFileCertificateStore(dir string) *FileCertificateStore {
	return &FileCertificateStore{dir: dir, now: time.Now}
}

// Save implementa billing.CertificateStore.
func (s *FileCertificateStore) Save(_ context.Context, companyID, fileName string, data []byte) (string, error) {
	rel := filepath.Join(companyID, strconv.FormatInt(s.now().Unix(), 10)+"_"+filepath.Base(fileName))
	full := filepath.Join(s.dir, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o700); err != nil {
		return "", fmt.Errorf("certificados: crear directorio: %w", err)
	}
	if err := os.WriteFile(full, data, 0o600); err != nil {
		return "", fmt.Errorf("certificados: escribir archivo: %w", err)
	}
	return filepath.ToSlash(rel), nil
}

// Remove implementa billing.CertificateStore. Solo borra dentro de la carpeta de la empresa.
func (s *FileCertificateStore) Remove(_ context.Context, companyID, path string) error {
	rel := filepath.Clean(filepath.FromSlash(path))
	if filepath.IsAbs(rel) || filepath.Dir(rel) != companyID {
		return fmt.Errorf("certificados: %q no pertenece a %s", path, companyID)
	}
	if err := os.Remove(filepath.Join(s.dir, rel)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("certificados: borrar archivo: %w", err)
	}
	return nil
}

var (
	_ billing.CertificateInspector = CertificateInspector{}
	_ billing.CertificateStore     = (*FileCertificateStore)(nil)
)

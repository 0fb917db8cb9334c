package sunat

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"
)

// CompressXMLToZip empaqueta el XML firmado en un ZIP en memoria.
// SUNAT exige un único archivo {RUC}-{TIPO}-{SERIE}-{NUMERO}.xml dentro de {misma clave}.zip.
func CompressXMLToZip(xmlBytes []byte, xmlFilename string) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	fw, err := zw.Create(xmlFilename)
	if err != nil {
		return nil, fmt.Errorf("zip: crear entrada %s: %w", xmlFilename, err)
	}
	if _, err := fw.Write(xmlBytes); err != nil {
		return nil, fmt.Errorf("zip: escribir XML: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("zip: cerrar archivo: %w", err)
	}
	return buf.Bytes(), nil
}

// ExtractXMLFromZip devuelve el primer .xml del ZIP cuyo nombre empieza con prefix
// (vacío = cualquiera). SUNAT a veces agrega una carpeta "dummy/" en el CDR.
func ExtractXMLFromZip(zipBytes []byte, prefix string) ([]byte, string, error) {
	zr, err := zip.NewReader(bytes.NewReader(zipBytes), int64(len(zipBytes)))
	if err != nil {
		return nil, "", fmt.Errorf("zip: abrir archivo: %w", err)
	}
	for _, f := range zr.File {
		name := path.Base(f.Name)
		if f.FileInfo().IsDir() || !strings.HasSuffix(strings.ToLower(name), ".xml") || !strings.HasPrefix(name, prefix) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, "", fmt.Errorf("zip: abrir %s: %w", f.Name, err)
		}
		data, err := io.ReadAll(io.LimitReader(rc, 10<<20))
		rc.Close()
		if err != nil {
			return nil, "", fmt.Errorf("zip: leer %s: %w", f.Name, err)
		}
		return data, name, nil
	}
	return nil, "", fmt.Errorf("zip: no contiene XML %s*", prefix)
}

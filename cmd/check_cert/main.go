// check_cert diagnostica un certificado digital antes de cargarlo en la API:
// lectura del archivo, contraseña, vigencia y una firma de prueba.
//
// Uso: go run ./cmd/check_cert <ruta.p12|.pfx|.pem> [contraseña]
// Si no se pasa contraseña se usa SUNAT_CERT_PASSWORD.
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jhoicas/erp-sunat-api/internal/infrastructure/sunat/signer"
)

const sampleXML = `<?xml version="1.0" encoding="UTF-8"?>
<Invoice xmlns="urn:oasis:names:specification:ubl:schema:xsd:Invoice-2" xmlns:ext="urn:oasis:names:specification:ubl:schema:xsd:CommonExtensionComponents-2"><ext:UBLExtensions><ext:UBLExtension><ext:ExtensionContent/></ext:UBLExtension></ext:UBLExtensions></Invoice>`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "uso: check_cert <ruta.p12|.pfx|.pem> [contraseña]")
		os.Exit(2)
	}
	certPath := os.Args[1]
	certPass := os.Getenv("SUNAT_CERT_PASSWORD")
	if len(os.Args) > 2 {
		certPass = os.Args[2]
	}

	fmt.Println("🔍 DIAGNÓSTICO DE CERTIFICADO SUNAT")
	fmt.Println("-----------------------------------")
	fmt.Printf("📂 Intentando leer: %s\n", certPath)

	info, err := os.Stat(certPath)
	if err != nil {
		fmt.Println("\n❌ ERROR DE ARCHIVO:")
		fmt.Printf("   Detalle técnico: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✅ Archivo encontrado. Tamaño: %d bytes\n", info.Size())

	fmt.Println("\n🔐 Decodificando certificado y llave privada...")
	cert, err := signer.Load(certPath, certPass)
	if err != nil {
		fmt.Println("\n❌ ERROR DE CONTRASEÑA O FORMATO:")
		fmt.Printf("   Detalle técnico: %v\n", err)
		os.Exit(1)
	}
	leaf := cert.Leaf
	fmt.Printf("✅ Titular: %s\n", leaf.Subject.String())
	fmt.Printf("   Emisor:  %s\n", leaf.Issuer.String())
	fmt.Printf("   Serie:   %s\n", strings.ToUpper(leaf.SerialNumber.Text(16)))
	fmt.Printf("   Vigencia: %s → %s\n", leaf.NotBefore.Format("2006-01-02"), leaf.NotAfter.Format("2006-01-02"))

	now := time.Now()
	switch {
	case now.After(leaf.NotAfter):
		fmt.Println("\n❌ El certificado está VENCIDO; SUNAT rechazará la firma.")
		os.Exit(1)
	case now.Before(leaf.NotBefore):
		fmt.Println("\n❌ El certificado aún no entra en vigencia.")
		os.Exit(1)
	case leaf.NotAfter.Sub(now) < 30*24*time.Hour:
		fmt.Printf("\n⚠️  Vence en %d días.\n", int(leaf.NotAfter.Sub(now).Hours()/24))
	}

	fmt.Println("\n✍️  Firmando un XML de prueba...")
	if _, digest, err := signer.NewDigitalSignatureService().Sign([]byte(sampleXML), cert); err != nil {
		fmt.Println("\n❌ ERROR DE FIRMA:")
		fmt.Printf("   Detalle técnico: %v\n", err)
		os.Exit(1)
	} else {
		fmt.Printf("✅ Firma correcta. DigestValue: %s\n", digest)
	}

	fmt.Println("\n✨ ¡ÉXITO! El certificado puede cargarse en /api/billing-config/certificate.")
}

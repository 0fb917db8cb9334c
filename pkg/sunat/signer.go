package sunat

import "crypto/tls"

// Signer firma un XML UBL con el certificado del emisor (firma enveloped XAdES-BES simplificada).
// Devuelve el XML firmado y el DigestValue, que SUNAT usa como código hash del comprobante.
type Signer interface {
	Sign(xmlBytes []byte, cert *tls.Certificate) (signed []byte, digestValue string, err error)
}

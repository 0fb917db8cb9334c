package sunat

import (
	"fmt"
	"strings"
)

// pesos del módulo 11 aplicados a los 10 primeros dígitos del RUC.
var rucWeights = [10]int{5, 4, 3, 2, 7, 6, 5, 4, 3, 2}

// rucPrefixes prefijos válidos: 10 persona natural, 15/16/17 casos especiales, 20 persona jurídica.
var rucPrefixes = map[string]bool{"10": true, "15": true, "16": true, "17": true, "20": true}

// ValidateRUC valida longitud, prefijo y dígito verificador de un RUC.
func ValidateRUC(ruc string) error {
	ruc = strings.TrimSpace(ruc)
	if len(ruc) != 11 || !allDigits(ruc) {
		return fmt.Errorf("sunat: el RUC debe tener 11 dígitos numéricos")
	}
	if !rucPrefixes[ruc[:2]] {
		return fmt.Errorf("sunat: prefijo de RUC inválido %q", ruc[:2])
	}
	check := RUCCheckDigit(ruc[:10])
	if int(ruc[10]-'0') != check {
		return fmt.Errorf("sunat: dígito verificador del RUC inválido: esperado %d, recibido %c", check, ruc[10])
	}
	return nil
}

// RUCCheckDigit calcula el dígito verificador sobre los 10 primeros dígitos.
// Devuelve -1 si la base no tiene 10 dígitos.
func RUCCheckDigit(base string) int {
	if len(base) != 10 || !allDigits(base) {
		return -1
	}
	sum := 0
	for i := 0; i < 10; i++ {
		sum += int(base[i]-'0') * rucWeights[i]
	}
	remainder := sum % 11
	if remainder < 2 {
		return remainder
	}
	return 11 - remainder
}

// ValidateDNI valida un DNI de 8 dígitos.
func ValidateDNI(dni string) error {
	dni = strings.TrimSpace(dni)
	if len(dni) != 8 || !allDigits(dni) {
		return fmt.Errorf("sunat: el DNI debe tener 8 dígitos numéricos")
	}
	return nil
}

// ValidateIdentity valida el número según el tipo de documento de identidad (catálogo 06).
func ValidateIdentity(docType, number string) error {
	switch docType {
	case IdentityTypeRUC:
		return ValidateRUC(number)
	case IdentityTypeDNI:
		return ValidateDNI(number)
	case IdentityTypeCarnetExt, IdentityTypePasaporte, IdentityTypeNoDomiciliado:
		if n := len(strings.TrimSpace(number)); n == 0 || n > 15 {
			return fmt.Errorf("sunat: número de documento inválido para tipo %s", docType)
		}
		return nil
	default:
		return fmt.Errorf("sunat: tipo de documento de identidad desconocido %q", docType)
	}
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

package pdf

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	units = []string{"", "UNO", "DOS", "TRES", "CUATRO", "CINCO", "SEIS", "SIETE", "OCHO", "NUEVE",
		"DIEZ", "ONCE", "DOCE", "TRECE", "CATORCE", "QUINCE", "DIECISEIS", "DIECISIETE", "DIECIOCHO", "DIECINUEVE",
		"VEINTE", "VEINTIUNO", "VEINTIDOS", "VEINTITRES", "VEINTICUATRO", "VEINTICINCO", "VEINTISEIS",
		"VEINTISIETE", "VEINTIOCHO", "VEINTINUEVE"}
	tens     = []string{"", "", "", "TREINTA", "CUARENTA", "CINCUENTA", "SESENTA", "SETENTA", "OCHENTA", "NOVENTA"}
	hundreds = []string{"", "CIENTO", "DOSCIENTOS", "TRESCIENTOS", "CUATROCIENTOS", "QUINIENTOS",
		"SEISCIENTOS", "SETECIENTOS", "OCHOCIENTOS", "NOVECIENTOS"}
)

// AmountInWords leyenda "SON" de la representación impresa:
// 1270.5 PEN → "MIL DOSCIENTOS SETENTA CON 50/100 SOLES".
func AmountInWords(amount decimal.Decimal, currency string) string {
	amount = amount.Abs().Round(2)
	integer := amount.IntPart()
	cents := amount.Sub(decimal.NewFromInt(integer)).Mul(decimal.NewFromInt(100)).IntPart()

	words := "CERO"
	if integer > 0 {
		words = numberToWords(integer)
	}
	return fmt.Sprintf("%s CON %02d/100 %s", words, cents, currencyName(currency))
}

func numberToWords(n int64) string {
	var parts []string
	if millions := n / 1_000_000; millions > 0 {
		if millions == 1 {
			parts = append(parts, "UN MILLON")
		} else {
			parts = append(parts, apocope(numberToWords(millions))+" MILLONES")
		}
		n %= 1_000_000
	}
	if thousands := n / 1000; thousands > 0 {
		if thousands == 1 {
			parts = append(parts, "MIL")
		} else {
			parts = append(parts, apocope(hundredsToWords(thousands))+" MIL")
		}
		n %= 1000
	}
	if n > 0 {
		parts = append(parts, hundredsToWords(n))
	}
	return strings.Join(parts, " ")
}

// hundredsToWords 1..999.
func hundredsToWords(n int64) string {
	if n == 100 {
		return "CIEN"
	}
	var parts []string
	if h := n / 100; h > 0 {
		parts = append(parts, hundreds[h])
	}
	rest := n % 100
	switch {
	case rest == 0:
	case rest < 30:
		parts = append(parts, units[rest])
	default:
		t := tens[rest/10]
		if u := rest % 10; u > 0 {
			t += " Y " + units[u]
		}
		parts = append(parts, t)
	}
	return strings.Join(parts, " ")
}

// apocope "UNO" delante de MIL/MILLONES se escribe "UN" (VEINTIUN MIL, TREINTA Y UN MIL).
func apocope(s string) string {
	if strings.HasSuffix(s, "UNO") {
		return strings.TrimSuffix(s, "UNO") + "UN"
	}
	return s
}

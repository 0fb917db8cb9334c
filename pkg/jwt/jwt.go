// Package jwt verifica los tokens HS256 del proveedor de identidad.
// Issue existe para herramientas internas y tests; la API nunca emite tokens.
package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrEmptySecret    = errors.New("jwt: secret vacío")
	ErrMissingCompany = errors.New("jwt: token sin empresa")
	// ErrExpired permite distinguir un token vencido de uno inválido.
	ErrExpired = jwt.ErrTokenExpired
)

// Identity usuario autenticado: la empresa emisora fija el alcance de todos los comprobantes.
type Identity struct {
	UserID    string
	CompanyID string
	Role      string // "admin" | "contador" | "vendedor"
}

// Claims claims registrados más la identidad.
type Claims struct {
	jwt.RegisteredClaims
	UserID    string `json:"user_id"`
	CompanyID string `json:"company_id"`
	Role      string `json:"role"`
}

// Identity extrae la identidad de los claims.
func (c *Claims) Identity() Identity {
	return Identity{UserID: c.UserID, CompanyID: c.CompanyID, Role: c.Role}
}

// Verifier valida firma, vencimiento y emisor.
type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

// NewVerifier construye el verificador. issuer vacío acepta cualquier emisor.
func NewVerifier(secret, issuer string, leeway time.Duration) (*Verifier, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(leeway),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	return &Verifier{secret: []byte(secret), parser: jwt.NewParser(opts...)}, nil
}

// Verify devuelve la identidad del token o el error de validación.
func (v *Verifier) Verify(tokenString string) (Identity, error) {
	claims := &Claims{}
	_, err := v.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		return Identity{}, err
	}
	if claims.CompanyID == "" {
		return Identity{}, ErrMissingCompany
	}
	return claims.Identity(), nil
}

// Issue firma un token para id con vigencia ttl.
func Issue(secret, issuer string, id Identity, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", ErrEmptySecret
	}
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID:    id.UserID,
		CompanyID: id.CompanyID,
		Role:      id.Role,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

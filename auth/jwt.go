package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// ErrNotConfigured is returned by a nil Verifier.
var ErrNotConfigured = errors.New("token verification is not configured")

// Verifier validates device tokens signed either with a shared HS256 secret
// or by a key from a JWKS endpoint.
type Verifier struct {
	secret []byte
	jwks   keyfunc.Keyfunc
}

// NewVerifier returns nil when neither a secret nor a JWKS URL is set;
// tokens are then not checked.
func NewVerifier(secret, jwksURL string) (*Verifier, error) {
	if secret == "" && jwksURL == "" {
		return nil, nil
	}
	v := &Verifier{}
	if secret != "" {
		v.secret = []byte(secret)
	}
	if jwksURL != "" {
		jwks, err := keyfunc.NewDefault([]string{jwksURL})
		if err != nil {
			return nil, fmt.Errorf("load jwks: %w", err)
		}
		v.jwks = jwks
	}
	return v, nil
}

func (v *Verifier) keyfunc(t *jwt.Token) (any, error) {
	if strings.HasPrefix(t.Method.Alg(), "HS") {
		if v.secret == nil {
			return nil, fmt.Errorf("unexpected signing method %s", t.Method.Alg())
		}
		return v.secret, nil
	}
	if v.jwks == nil {
		return nil, fmt.Errorf("unexpected signing method %s", t.Method.Alg())
	}
	return v.jwks.Keyfunc(t)
}

func (v *Verifier) methods() []string {
	var m []string
	if v.secret != nil {
		m = append(m, "HS256")
	}
	if v.jwks != nil {
		m = append(m, "EdDSA", "RS256", "ES256")
	}
	return m
}

// Verify parses tokenString and returns its claims.
func (v *Verifier) Verify(tokenString string) (jwt.MapClaims, error) {
	if v == nil {
		return nil, ErrNotConfigured
	}
	token, err := jwt.Parse(tokenString, v.keyfunc, jwt.WithValidMethods(v.methods()), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

// IssueToken signs an HS256 token for playerID. Used by the lobby and in tests.
func IssueToken(secret, playerID, name string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  playerID,
		"name": name,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// NameFromClaims returns the "name" claim trimmed, or a fallback.
func NameFromClaims(claims jwt.MapClaims) string {
	name, _ := claims["name"].(string)
	if trimmed := strings.TrimSpace(name); trimmed != "" {
		return trimmed
	}
	return "Joueur"
}

// UserIDFromClaims returns the user id from claims ("sub" or "id").
func UserIDFromClaims(claims jwt.MapClaims) string {
	if sub, ok := claims["sub"].(string); ok && sub != "" {
		return sub
	}
	if id, ok := claims["id"].(string); ok && id != "" {
		return id
	}
	return ""
}

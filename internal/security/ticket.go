package security

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"

	"github.com/cwrk-planet/live-quiz/internal/domain"
)

var (
	ErrInvalidToken    = errors.New("invalid token")
	ErrInvalidIssuer   = errors.New("invalid token issuer")
	ErrInvalidAudience = errors.New("invalid token audience")
	ErrTokenExpired    = errors.New("token expired")
	ErrInvalidBinding  = errors.New("token lacks a session binding")
)

// TicketClaims — билет на подключение к сессии, выпускается внешним auth-сервисом.
type TicketClaims struct {
	jwt.StandardClaims        // sub = participant id
	SessionID          string `json:"sid"`
	Role               string `json:"role"`
	Name               string `json:"name,omitempty"`
}

// Ticket is the verified binding of a connection to a session and role.
type Ticket struct {
	ParticipantID string
	SessionID     string
	Role          domain.Role
	DisplayName   string
}

// Verifier проверяет подпись и временные клеймы билета.
// Поддерживаются HS256 (общий секрет) и RS256 (публичный ключ auth-сервиса).
type Verifier struct {
	method    jwt.SigningMethod
	key       any
	issuer    string
	audience  string
	clockSkew time.Duration
	now       func() time.Time
}

func NewHMACVerifier(secret []byte, issuer, audience string, clockSkew time.Duration) *Verifier {
	return &Verifier{
		method:    jwt.SigningMethodHS256,
		key:       secret,
		issuer:    issuer,
		audience:  audience,
		clockSkew: clockSkew,
		now:       time.Now,
	}
}

func NewRSAVerifier(public *rsa.PublicKey, issuer, audience string, clockSkew time.Duration) *Verifier {
	return &Verifier{
		method:    jwt.SigningMethodRS256,
		key:       public,
		issuer:    issuer,
		audience:  audience,
		clockSkew: clockSkew,
		now:       time.Now,
	}
}

// Verify parses tokenStr and returns the ticket it carries.
func (v *Verifier) Verify(tokenStr string) (Ticket, error) {
	claims := &TicketClaims{}
	// временные клеймы проверяем сами, с допуском clockSkew
	parser := jwt.Parser{SkipClaimsValidation: true}
	token, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != v.method.Alg() {
			return nil, ErrInvalidToken
		}
		return v.key, nil
	})
	if err != nil {
		return Ticket{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return Ticket{}, ErrInvalidToken
	}

	if v.issuer != "" && !claims.VerifyIssuer(v.issuer, true) {
		return Ticket{}, ErrInvalidIssuer
	}
	if v.audience != "" && !claims.VerifyAudience(v.audience, true) {
		return Ticket{}, ErrInvalidAudience
	}

	now := v.now()
	if claims.NotBefore != 0 && now.Before(time.Unix(claims.NotBefore, 0).Add(-v.clockSkew)) {
		return Ticket{}, ErrTokenExpired
	}
	if claims.ExpiresAt == 0 || now.After(time.Unix(claims.ExpiresAt, 0).Add(v.clockSkew)) {
		return Ticket{}, ErrTokenExpired
	}

	role := domain.Role(claims.Role)
	if strings.TrimSpace(claims.Subject) == "" || claims.SessionID == "" || !role.Valid() {
		return Ticket{}, ErrInvalidBinding
	}

	return Ticket{
		ParticipantID: claims.Subject,
		SessionID:     claims.SessionID,
		Role:          role,
		DisplayName:   claims.Name,
	}, nil
}

func LoadRSAPublicKeyFromPEM(path string) (*rsa.PublicKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	pub, err := jwt.ParseRSAPublicKeyFromPEM(b)
	if err != nil {
		return nil, err
	}

	return pub, nil
}

// BearerToken extracts the token of an "Authorization: Bearer <token>" header.
func BearerToken(header string) string {
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(header[len("Bearer "):])
}

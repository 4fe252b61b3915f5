package security

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwrk-planet/live-quiz/internal/domain"
)

var (
	secret = []byte("test-secret")
	now    = time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
)

func claims(mut func(*TicketClaims)) TicketClaims {
	c := TicketClaims{
		StandardClaims: jwt.StandardClaims{
			Subject:   "player-1",
			Issuer:    "auth",
			Audience:  "live-quiz",
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(time.Hour).Unix(),
		},
		SessionID: "session-1",
		Role:      "player",
		Name:      "Ann",
	}
	if mut != nil {
		mut(&c)
	}
	return c
}

func sign(t *testing.T, c TicketClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(secret)
	require.NoError(t, err)
	return tok
}

func verifier() *Verifier {
	v := NewHMACVerifier(secret, "auth", "live-quiz", 30*time.Second)
	v.now = func() time.Time { return now }
	return v
}

func TestVerify_OK(t *testing.T) {
	ticket, err := verifier().Verify(sign(t, claims(nil)))
	require.NoError(t, err)
	assert.Equal(t, Ticket{ParticipantID: "player-1", SessionID: "session-1", Role: domain.RolePlayer, DisplayName: "Ann"}, ticket)
}

func TestVerify_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		token func(t *testing.T) string
		want  error
	}{
		{"garbage", func(*testing.T) string { return "not-a-jwt" }, ErrInvalidToken},
		{"wrong secret", func(t *testing.T) string {
			tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims(nil)).SignedString([]byte("other"))
			require.NoError(t, err)
			return tok
		}, ErrInvalidToken},
		{"wrong issuer", func(t *testing.T) string {
			return sign(t, claims(func(c *TicketClaims) { c.Issuer = "evil" }))
		}, ErrInvalidIssuer},
		{"wrong audience", func(t *testing.T) string {
			return sign(t, claims(func(c *TicketClaims) { c.Audience = "billing" }))
		}, ErrInvalidAudience},
		{"expired", func(t *testing.T) string {
			return sign(t, claims(func(c *TicketClaims) { c.ExpiresAt = now.Add(-time.Minute).Unix() }))
		}, ErrTokenExpired},
		{"no expiry", func(t *testing.T) string {
			return sign(t, claims(func(c *TicketClaims) { c.ExpiresAt = 0 }))
		}, ErrTokenExpired},
		{"not yet valid", func(t *testing.T) string {
			return sign(t, claims(func(c *TicketClaims) { c.NotBefore = now.Add(time.Minute).Unix() }))
		}, ErrTokenExpired},
		{"no session", func(t *testing.T) string {
			return sign(t, claims(func(c *TicketClaims) { c.SessionID = "" }))
		}, ErrInvalidBinding},
		{"unknown role", func(t *testing.T) string {
			return sign(t, claims(func(c *TicketClaims) { c.Role = "admin" }))
		}, ErrInvalidBinding},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := verifier().Verify(tt.token(t))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestVerify_ClockSkewTolerated(t *testing.T) {
	tok := sign(t, claims(func(c *TicketClaims) { c.ExpiresAt = now.Add(-10 * time.Second).Unix() }))
	_, err := verifier().Verify(tok)
	assert.NoError(t, err)
}

func TestVerify_RS256(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "public.pem")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), 0o600))

	pub, err := LoadRSAPublicKeyFromPEM(path)
	require.NoError(t, err)

	v := NewRSAVerifier(pub, "auth", "live-quiz", 0)
	v.now = func() time.Time { return now }

	tok, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims(func(c *TicketClaims) { c.Role = "host" })).SignedString(key)
	require.NoError(t, err)
	ticket, err := v.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleHost, ticket.Role)

	_, err = v.Verify(sign(t, claims(nil)))
	assert.ErrorIs(t, err, ErrInvalidToken, "HS256 token rejected by an RS256 verifier")
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", BearerToken("Bearer abc"))
	assert.Empty(t, BearerToken("Basic abc"))
	assert.Empty(t, BearerToken(""))
}

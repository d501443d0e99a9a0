package identity

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/louisbranch/summit.camp/internal/platform/errors"
)

// TokenIssuer is the issuer claim stamped on caller tokens.
const TokenIssuer = "summit.camp"

// TokenAuthority mints and verifies signed caller tokens.
//
// A caller token binds a wallet address to a short-lived HS256 JWT so that
// trusted frontends can relay calls without re-proving wallet ownership on
// every operation.
type TokenAuthority struct {
	secret []byte
	clock  func() time.Time
	ttl    time.Duration
}

// NewTokenAuthority creates a token authority with the given signing secret.
func NewTokenAuthority(secret []byte, ttl time.Duration, clock func() time.Time) *TokenAuthority {
	if clock == nil {
		clock = time.Now
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenAuthority{secret: secret, clock: clock, ttl: ttl}
}

// Mint creates a signed caller token for the given address.
func (a *TokenAuthority) Mint(addr Address) (string, error) {
	if addr.IsZero() {
		return "", errors.New(errors.CodeInvalidAddress, "caller address is required")
	}
	now := a.clock().UTC()
	claims := jwt.RegisteredClaims{
		Issuer:    TokenIssuer,
		Subject:   addr.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", errors.Wrap(errors.CodeInvalidCallerToken, "sign caller token", err)
	}
	return signed, nil
}

// Verify checks a caller token and returns the address it binds.
func (a *TokenAuthority) Verify(raw string) (Address, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New(errors.CodeInvalidCallerToken, "unexpected signing method")
		}
		return a.secret, nil
	}, jwt.WithIssuer(TokenIssuer), jwt.WithTimeFunc(func() time.Time { return a.clock().UTC() }))
	if err != nil {
		return "", errors.Wrap(errors.CodeInvalidCallerToken, "parse caller token", err)
	}
	if !token.Valid {
		return "", errors.New(errors.CodeInvalidCallerToken, "caller token is invalid")
	}
	return ParseAddress(claims.Subject)
}

package provider

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

var ErrInvalidToken = errors.New("invalid access token")

type accessClaims struct {
	ProjectID string `json:"projectId"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 access tokens bound to a project.
// Issue times are truncated to the second, so one project gets the same
// token for every exchange within that second.
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret []byte, issuer string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenIssuer{secret: secret, issuer: issuer, ttl: ttl, now: time.Now}
}

// WithClock replaces the time source used for issuing and verifying.
func (t *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	t.now = now
	return t
}

func (t *TokenIssuer) Issue(projectID string) (string, error) {
	iat := t.now().UTC().Truncate(time.Second)
	claims := accessClaims{
		ProjectID: projectID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   projectID,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(iat),
			ExpiresAt: jwt.NewNumericDate(iat.Add(t.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, issuer and expiry and returns the project the
// token was issued for.
func (t *TokenIssuer) Verify(token string) (string, error) {
	claims := &accessClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if _, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	}); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	now := t.now()
	switch {
	case !claims.VerifyExpiresAt(now, true):
		return "", fmt.Errorf("%w: expired", ErrInvalidToken)
	case !claims.VerifyIssuer(t.issuer, true):
		return "", fmt.Errorf("%w: issuer %q", ErrInvalidToken, claims.Issuer)
	case claims.ProjectID == "":
		return "", fmt.Errorf("%w: no project", ErrInvalidToken)
	}
	return claims.ProjectID, nil
}

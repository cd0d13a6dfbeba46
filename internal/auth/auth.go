// Package auth signs the registration proof this client attaches to its
// POST /id call, so the dispatcher does not have to trust a bare unsigned
// account id.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// claims carries the account id this client is registering.
type claims struct {
	AccountID string `json:"accountId"`
	jwt.RegisteredClaims
}

// Signer signs registration proofs with an HMAC secret shared with the
// dispatcher out of band (config's certificatePath/deployment secret).
type Signer struct {
	secret []byte
}

// NewSigner builds a Signer from a shared secret. An empty secret disables
// signing; SignRegistration then returns an empty token and callers should
// omit the Authorization header.
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// SignRegistration produces a short-lived bearer token over accountID.
func (s *Signer) SignRegistration(accountID string) (string, error) {
	if len(s.secret) == 0 {
		return "", nil
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		AccountID: accountID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(5 * time.Minute)),
			Subject:   accountID,
			Issuer:    "scenario-client",
		},
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign registration proof: %w", err)
	}
	return signed, nil
}

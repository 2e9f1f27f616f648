package auth

import (
	"fmt"
	"time"
)

// AccessClaims is the decrypted payload of an account token.
type AccessClaims struct {
	AccountID string    `json:"account_id"`
	Subject   string    `json:"sub"`
	TokenID   string    `json:"jti"`
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
}

// check rejects claims that do not name a single account.
func (c *AccessClaims) check() error {
	if c.AccountID == "" {
		return fmt.Errorf("%w: missing account", ErrInvalidToken)
	}
	if c.AccountID != c.Subject {
		return fmt.Errorf("%w: account claim mismatch", ErrInvalidToken)
	}
	return nil
}

// Remaining reports how long the token stays valid after now.
func (c *AccessClaims) Remaining(now time.Time) time.Duration {
	if left := c.ExpiresAt.Sub(now); left > 0 {
		return left
	}
	return 0
}

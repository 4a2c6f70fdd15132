// Package invite issues and verifies operator invites that enable a profile on the server credential.
package invite

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/and161185/lanxat/internal/errs"
)

// Audience marks tokens as invites.
const Audience = "lanxat-invite"

// DefaultTTL is the invite lifetime when Issue receives a non-positive ttl.
const DefaultTTL = 7 * 24 * time.Hour

// Issuer signs and verifies HS256 invite tokens bound to one user id.
type Issuer struct {
	key []byte
	now func() time.Time
}

// New constructs an Issuer.
func New(key []byte) (*Issuer, error) {
	if len(key) == 0 {
		return nil, errors.New("empty invite signing key")
	}
	return &Issuer{key: key, now: time.Now}, nil
}

// Issue returns a signed invite for userID.
func (i *Issuer) Issue(userID int64, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	jti, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	now := i.now()
	claims := jwt.RegisteredClaims{
		ID:        jti.String(),
		Subject:   strconv.FormatInt(userID, 10),
		Audience:  jwt.ClaimStrings{Audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
}

// Verify checks signature, expiry, audience and that the invite was issued for userID.
// Every failure wraps errs.ErrUnauthorized.
func (i *Issuer) Verify(token string, userID int64) error {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return i.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(Audience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30*time.Second),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrUnauthorized, err)
	}
	if claims.Subject != strconv.FormatInt(userID, 10) {
		return fmt.Errorf("%w: invite issued for another user", errs.ErrUnauthorized)
	}
	return nil
}

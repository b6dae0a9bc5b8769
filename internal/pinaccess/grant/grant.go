// Package grant issues the short-lived tokens that unlock a PIN-gated
// resource. A grant is scoped to one profile and one resource; presenting it
// again after expiry means redoing the PIN ceremony.
package grant

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"guardtag/internal/pinaccess/pin"
	id "guardtag/pkg/domain"
	dErrors "guardtag/pkg/domain-errors"
	"guardtag/pkg/platform/middleware/requesttime"
)

// DefaultTTL is how long an unlocked gate stays open.
const DefaultTTL = 15 * time.Minute

const issuer = "guardtag"

// ScopeClaim maps a PIN scope to the resource the grant unlocks.
func ScopeClaim(scope pin.Scope) string {
	if scope == pin.ScopeSchool {
		return "pickup:read"
	}
	return "medical:read"
}

// Claims are the JWT claims of an access grant.
type Claims struct {
	ProfileID string `json:"profile_id"`
	Scope     string `json:"scope"`
	jwt.RegisteredClaims
}

// Issuer signs and validates access grants.
type Issuer struct {
	signingKey []byte
	ttl        time.Duration
}

// New creates a grant issuer. TTL defaults to DefaultTTL when zero.
func New(signingKey string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{signingKey: []byte(signingKey), ttl: ttl}
}

// Grant is an issued token plus its expiry, for the client's benefit.
type Grant struct {
	Token     string    `json:"token"`
	Scope     string    `json:"scope"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Issue signs a grant for one profile and scope.
func (i *Issuer) Issue(ctx context.Context, profileID id.ProfileID, scope pin.Scope) (*Grant, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "grant ID generation failed")
	}

	now := requesttime.Now(ctx)
	expiresAt := now.Add(i.ttl)
	claim := ScopeClaim(scope)

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		ProfileID: profileID.String(),
		Scope:     claim,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        hex.EncodeToString(b),
			Issuer:    issuer,
			Subject:   profileID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	signed, err := tok.SignedString(i.signingKey)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "grant signing failed")
	}
	return &Grant{Token: signed, Scope: claim, ExpiresAt: expiresAt}, nil
}

// Validate parses a presented grant and checks signature, issuer, and expiry.
// The caller still has to match ProfileID and Scope against the resource
// being opened.
func (i *Issuer) Validate(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, dErrors.New(dErrors.CodeUnauthenticated, "unexpected signing method")
		}
		return i.signingKey, nil
	}, jwt.WithIssuer(issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnauthenticated, "access grant rejected")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthenticated, "access grant rejected")
	}
	return claims, nil
}

// Authorize checks that a presented grant opens the given profile and scope.
func (i *Issuer) Authorize(tokenString string, profileID id.ProfileID, scope pin.Scope) error {
	claims, err := i.Validate(tokenString)
	if err != nil {
		return err
	}
	if claims.ProfileID != profileID.String() || claims.Scope != ScopeClaim(scope) {
		return dErrors.New(dErrors.CodeForbidden, "access grant does not cover this resource")
	}
	return nil
}

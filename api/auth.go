/*
auth.go - Admin principal middleware

PURPOSE:
  Every admin write is attributed to the administrator who made it. The
  identity comes only from a verified bearer token; request bodies are
  never trusted for it (an "adminId" body key is ignored).

TOKEN FORMAT:
  Authorization: Bearer <JWT signed with HS256>

  Claims:
    admin_id  int64   the administrator (must be > 0)
    role      string  must be "admin"
    exp       number  optional expiry

RESPONSES:
  401  missing, malformed, expired or badly signed token
  403  valid token without the admin role

SEE ALSO:
  - cmd/tokengen: Mints tokens from the same secret
  - ratelimit.go: Runs after this middleware, keyed by AdminID
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aneupi/finance-engine/generic"
	"github.com/golang-jwt/jwt/v5"
)

// RoleAdmin is the only role allowed on admin routes.
const RoleAdmin = "admin"

var (
	// ErrMissingToken is returned when no bearer token is present.
	ErrMissingToken = errors.New("missing bearer token")

	// ErrInvalidToken is returned when a token fails verification.
	ErrInvalidToken = errors.New("invalid token")

	// ErrForbidden is returned when a valid token lacks the admin role.
	ErrForbidden = errors.New("admin role required")
)

// Claims is the JWT payload of an admin token.
type Claims struct {
	AdminID int64  `json:"admin_id"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator issues and verifies admin tokens.
type Authenticator struct {
	secret []byte
	clock  func() time.Time
}

// NewAuthenticator creates an authenticator for an HMAC secret.
func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{
		secret: []byte(secret),
		clock:  time.Now,
	}
}

// Issue signs a token for admin with the given role. A zero ttl issues a
// token without expiry.
func (a *Authenticator) Issue(admin generic.AdminID, role string, ttl time.Duration) (string, error) {
	now := a.clock()
	claims := Claims{
		AdminID: int64(admin),
		Role:    role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  fmt.Sprintf("admin:%d", admin),
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Verify parses a token and checks signature, expiry and role.
func (a *Authenticator) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return a.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.clock),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.AdminID <= 0 {
		return nil, fmt.Errorf("%w: admin_id must be positive", ErrInvalidToken)
	}
	if claims.Role != RoleAdmin {
		return nil, ErrForbidden
	}
	return claims, nil
}

// Middleware rejects requests without a verified admin and stores the
// AdminID in the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, ErrMissingToken.Error())
			return
		}
		claims, err := a.Verify(token)
		switch {
		case errors.Is(err, ErrForbidden):
			writeError(w, http.StatusForbidden, ErrForbidden.Error())
			return
		case err != nil:
			writeError(w, http.StatusUnauthorized, ErrInvalidToken.Error())
			return
		}
		ctx := WithAdmin(r.Context(), generic.AdminID(claims.AdminID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// =============================================================================
// CONTEXT
// =============================================================================

type adminKey struct{}

// WithAdmin returns a context carrying the authenticated admin.
func WithAdmin(ctx context.Context, admin generic.AdminID) context.Context {
	return context.WithValue(ctx, adminKey{}, admin)
}

// AdminFromContext returns the authenticated admin, if any.
func AdminFromContext(ctx context.Context) (generic.AdminID, bool) {
	admin, ok := ctx.Value(adminKey{}).(generic.AdminID)
	return admin, ok
}

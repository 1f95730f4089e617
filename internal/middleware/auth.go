package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/zhouzirui/mindful-chat/backend/internal/observability"
	"github.com/zhouzirui/mindful-chat/backend/pkg/utils"
)

var (
	ErrMissingToken = errors.New("no token provided")
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// Claims is the bearer token payload. Subject carries the owner id.
type Claims struct {
	Admin bool `json:"admin,omitempty"`
	jwt.RegisteredClaims
}

// Principal is the authenticated caller attached to the request context.
type Principal struct {
	Owner string
	Admin bool
}

type principalKey struct{}

// WithPrincipal stores p on ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the caller set by RequireAuth.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok && p.Owner != ""
}

// Authenticator verifies HS256 bearer tokens.
type Authenticator struct {
	secret []byte
	log    *observability.Logger
}

func NewAuthenticator(secret string, log *observability.Logger) *Authenticator {
	if log == nil {
		log = observability.NewNop()
	}
	return &Authenticator{secret: []byte(secret), log: log.Named("auth")}
}

// SignToken issues a token for owner. Used by operators and tests; there is no login endpoint.
func (a *Authenticator) SignToken(owner string, admin bool, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Admin: admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   owner,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Parse validates tokenString and returns its principal.
func (a *Authenticator) Parse(tokenString string) (Principal, error) {
	if tokenString == "" {
		return Principal{}, ErrMissingToken
	}
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Principal{}, ErrExpiredToken
		}
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || strings.TrimSpace(claims.Subject) == "" {
		return Principal{}, ErrInvalidToken
	}
	return Principal{Owner: claims.Subject, Admin: claims.Admin}, nil
}

// RequireAuth rejects requests without a valid token with 401.
func (a *Authenticator) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, err := a.Parse(extractToken(r))
		if err != nil {
			a.log.Debug("rejected request", "path", r.URL.Path, "error", err)
			utils.RespondError(w, http.StatusUnauthorized, publicAuthError(err))
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
	})
}

// RequireAdmin must run after RequireAuth; non-admin callers get 403.
func (a *Authenticator) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := PrincipalFrom(r.Context())
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, ErrMissingToken.Error())
			return
		}
		if !principal.Admin {
			a.log.Info("admin access denied", "owner", principal.Owner, "path", r.URL.Path)
			utils.RespondError(w, http.StatusForbidden, "Access denied: Admin privileges required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func publicAuthError(err error) string {
	switch {
	case errors.Is(err, ErrMissingToken):
		return "No token provided"
	case errors.Is(err, ErrExpiredToken):
		return "Token expired"
	default:
		return "Invalid token"
	}
}

// extractToken reads ?token= first (browser WebSocket clients cannot set headers), then the bearer header.
func extractToken(r *http.Request) string {
	if qToken := r.URL.Query().Get("token"); qToken != "" {
		return qToken
	}
	authHeader := r.Header.Get("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return ""
}

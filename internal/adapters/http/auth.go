package httpadapter

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kirillkom/reviewer-invitations/internal/core/domain"
)

type principalContextKey struct{}

type principal struct {
	Subject string
	Role    domain.Role
}

func principalFromContext(ctx context.Context) (principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(principal)
	return p, ok
}

type authenticator struct {
	secret []byte
}

func newAuthenticator(secret string) *authenticator {
	return &authenticator{secret: []byte(strings.TrimSpace(secret))}
}

func (a *authenticator) enabled() bool {
	return len(a.secret) > 0
}

// require guards a handler with a bearer token whose role grants action on
// resource. With no secret configured every request is let through.
func (a *authenticator) require(resource domain.Resource, action domain.AccessAction, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !a.enabled() {
			next(w, r)
			return
		}

		p, err := a.authenticate(r.Header.Get("Authorization"))
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing or invalid bearer token"})
			return
		}
		if !domain.HasPermission(p.Role, resource, action) {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "insufficient permissions"})
			return
		}

		next(w, r.WithContext(context.WithValue(r.Context(), principalContextKey{}, p)))
	}
}

func (a *authenticator) authenticate(header string) (principal, error) {
	tokenString, ok := strings.CutPrefix(strings.TrimSpace(header), "Bearer ")
	if !ok || strings.TrimSpace(tokenString) == "" {
		return principal{}, domain.NewError(domain.ErrUnauthorized, "authenticate", "bearer token is required")
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(strings.TrimSpace(tokenString), claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		if err == nil {
			err = errors.New("token is not valid")
		}
		return principal{}, domain.WrapError(domain.ErrUnauthorized, "authenticate", err)
	}

	subject, _ := claims.GetSubject()
	return principal{Subject: subject, Role: roleFromClaims(claims)}, nil
}

// roleFromClaims reads app_metadata.role and falls back to user_role. Tokens
// without a role are treated as guests.
func roleFromClaims(claims jwt.MapClaims) domain.Role {
	if meta, ok := claims["app_metadata"].(map[string]any); ok {
		if role, ok := meta["role"].(string); ok && role != "" {
			return domain.Role(role)
		}
	}
	if role, ok := claims["user_role"].(string); ok && role != "" {
		return domain.Role(role)
	}
	return domain.RoleGuest
}

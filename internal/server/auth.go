package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type Principal struct {
	UserId string
}

type principalKey struct{}

func withPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func principalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

type jwtClaims struct {
	jwt.RegisteredClaims
	UserId any `json:"userId,omitempty"`
}

func authenticateJWT(token string, secret string) (Principal, error) {
	if strings.TrimSpace(secret) == "" {
		return Principal{}, errors.New("jwt secret not configured")
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &jwtClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return Principal{}, err
	}
	if !parsed.Valid {
		return Principal{}, errors.New("invalid token")
	}

	userId := claims.Subject
	if userId == "" && claims.UserId != nil {
		userId = fmt.Sprint(claims.UserId)
	}
	if userId == "" {
		return Principal{}, errors.New("sub or userId claim required")
	}
	return Principal{UserId: userId}, nil
}

func bearerToken(authz string) (string, bool) {
	parts := strings.Fields(authz)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

// authenticator resolves the bearer token, if any. A token that is present but
// invalid is always rejected; a missing token is rejected only when required.
type authenticator struct {
	secret   string
	required bool
}

func (a authenticator) middleware(required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authz := strings.TrimSpace(r.Header.Get("Authorization"))
			if authz == "" {
				if required {
					writeError(w, http.StatusUnauthorized, "Access token required", nil)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			token, ok := bearerToken(authz)
			if !ok {
				writeError(w, http.StatusUnauthorized, "Access token required", nil)
				return
			}
			principal, err := authenticateJWT(token, a.secret)
			if err != nil {
				writeError(w, http.StatusForbidden, "Invalid or expired token", nil)
				return
			}
			next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), principal)))
		})
	}
}

// Optional guards the distribution routes, honouring AUTH_REQUIRED.
func (a authenticator) Optional() func(http.Handler) http.Handler {
	return a.middleware(a.required)
}

func (a authenticator) Required() func(http.Handler) http.Handler {
	return a.middleware(true)
}

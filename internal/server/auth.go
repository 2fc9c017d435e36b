/*-------------------------------------------------------------------------
 *
 * auth.go
 *    Bearer token authentication for the HTTP transport
 *
 * When a JWT secret is configured every /mcp request must carry an
 * HS256-signed token. /health and /metrics stay open.
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronDynamic/internal/server/auth.go
 *
 *-------------------------------------------------------------------------
 */

package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"

	"github.com/neurondb/NeuronDynamic/internal/logging"
)

type contextKey string

const subjectKey contextKey = "subject"

/* Claims are the token claims accepted by the server */
type Claims struct {
	jwt.RegisteredClaims
}

/* GenerateToken signs an HS256 token for subject, valid for ttl */
func GenerateToken(secret []byte, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

/* ValidateToken validates an HS256 token and returns its claims */
func ValidateToken(secret []byte, tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

/* extractToken reads a "Bearer <token>" Authorization header */
func extractToken(header string) (string, error) {
	if header == "" {
		return "", errors.New("missing authorization header")
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
		return "", errors.New("invalid authorization header format")
	}
	return strings.TrimSpace(token), nil
}

/* SubjectFromContext returns the authenticated token subject, if any */
func SubjectFromContext(ctx context.Context) (string, bool) {
	sub, ok := ctx.Value(subjectKey).(string)
	return sub, ok
}

/* AuthMiddleware rejects requests without a valid token; an empty secret disables it */
func AuthMiddleware(secret string, logger *logging.Logger) mux.MiddlewareFunc {
	key := []byte(secret)
	return func(next http.Handler) http.Handler {
		if secret == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := extractToken(r.Header.Get("Authorization"))
			if err == nil {
				var claims *Claims
				if claims, err = ValidateToken(key, tokenString); err == nil {
					ctx := context.WithValue(r.Context(), subjectKey, claims.Subject)
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}
			logger.Warn("Rejected unauthenticated request", map[string]interface{}{
				"path":   r.URL.Path,
				"remote": r.RemoteAddr,
				"error":  err.Error(),
			})
			w.Header().Set("WWW-Authenticate", `Bearer realm="neurondb-dynamic"`)
			writeJSON(w, http.StatusUnauthorized, map[string]interface{}{"error": "unauthorized"})
		})
	}
}

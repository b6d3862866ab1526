// Package auth resolves the caller's owner identity. Identity is assumed
// pre-established: a bearer token carries the owner id in its sub claim, and
// nothing here provisions users or talks to an identity provider.
package auth

import (
	"context"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

type ctxKey string

const CtxOwnerID ctxKey = "owner"

// JWTCfg holds JWT authentication configuration
type JWTCfg struct {
	HS256Secret string // HMAC secret for HS256 tokens
	DevMode     bool   // Allow X-Debug-Owner header (DANGEROUS: only for local dev)
}

// Middleware creates HTTP middleware resolving the owner identity.
// Supports two modes:
// 1. Production: Bearer token with JWT validation; ownerId = sub claim
// 2. Development: X-Debug-Owner header (ONLY when DevMode=true)
func Middleware(cfg JWTCfg) func(http.Handler) http.Handler {
	if cfg.DevMode {
		log.Warn().Msg("SECURITY WARNING: DevMode enabled - X-Debug-Owner header will bypass JWT authentication")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := ""
			if h := r.Header.Get("Authorization"); len(h) > 7 && h[:7] == "Bearer " {
				tok = h[7:]
			}

			owner := ""

			// Development mode: accept X-Debug-Owner ONLY if DevMode is enabled and no token present
			if cfg.DevMode && tok == "" {
				owner = r.Header.Get("X-Debug-Owner")
				if owner != "" {
					log.Debug().Str("owner_id", owner).Msg("using X-Debug-Owner header (dev mode)")
				}
			}

			if tok != "" {
				claims := jwt.MapClaims{}
				t, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
					// Verify signing method
					if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
						return nil, jwt.ErrSignatureInvalid
					}
					return []byte(cfg.HS256Secret), nil
				})

				if err != nil || !t.Valid {
					log.Warn().Err(err).Msg("jwt validation failed")
					http.Error(w, "unauthorized", http.StatusUnauthorized)
					return
				}

				if s, ok := claims["sub"].(string); ok {
					owner = s
				}
			}

			// Require an owner (either from JWT or debug header)
			if owner == "" {
				log.Warn().Msg("missing owner (no JWT sub or X-Debug-Owner header)")
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), CtxOwnerID, owner)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OwnerID extracts the caller's owner ID from request context.
// Returns empty string if not authenticated (should never happen after middleware)
func OwnerID(ctx context.Context) string {
	if v := ctx.Value(CtxOwnerID); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

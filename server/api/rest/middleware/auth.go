package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/siteguard/siteguard/common/gerror"
	"github.com/siteguard/siteguard/common/logger"
	"github.com/siteguard/siteguard/common/models"
	"github.com/siteguard/siteguard/server/api/rest/documents"
)

type contextKey string

const currentUserContextKey contextKey = "current_user"

// CurrentUserID returns the authenticated caller set by the JWT
// authenticator, if any.
func CurrentUserID(r *http.Request) (models.UserID, bool) {
	userID, ok := r.Context().Value(currentUserContextKey).(models.UserID)
	return userID, ok
}

// WithCurrentUserID returns a context carrying the authenticated caller.
// Exposed for tests.
func WithCurrentUserID(ctx context.Context, userID models.UserID) context.Context {
	return context.WithValue(ctx, currentUserContextKey, userID)
}

// IssueToken mints a signed bearer token for the user.
func IssueToken(secret []byte, userID models.UserID, now time.Time, ttl time.Duration) (string, time.Time, error) {
	expiresAt := now.Add(ttl)
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// MakeJWTAuthenticator makes a middleware that authenticates requests
// carrying a bearer token. Requests without an Authorization header pass
// through unauthenticated.
func MakeJWTAuthenticator(secret []byte, log logger.Log) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}
			raw := strings.TrimPrefix(header, "Bearer ")
			if raw == header {
				writeError(w, gerror.NewErrUnauthorized("Authorization header must carry a bearer token"))
				return
			}
			claims := &jwt.RegisteredClaims{}
			_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, gerror.NewErrUnauthorized("unexpected token signing method")
				}
				return secret, nil
			})
			if err != nil {
				log.Warnf("Rejected bearer token: %v", err)
				writeError(w, gerror.NewErrUnauthorized("Invalid or expired token"))
				return
			}
			id, err := models.ParseResourceID(claims.Subject)
			if err != nil || id.Kind() != models.UserResourceKind {
				writeError(w, gerror.NewErrUnauthorized("Invalid token subject"))
				return
			}
			r = r.WithContext(WithCurrentUserID(r.Context(), models.UserIDFromResourceID(id)))
			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(fn)
	}
}

// MakeMustAuthenticate makes a middleware that rejects unauthenticated
// requests with a 401.
func MakeMustAuthenticate(log logger.Log) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			_, ok := CurrentUserID(r)
			if !ok {
				writeError(w, gerror.NewErrUnauthorized("Unauthorized"))
				return
			}
			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(fn)
	}
}

func writeError(w http.ResponseWriter, err gerror.Error) {
	doc := &documents.ErrorDocument{
		Code:           err.Code(),
		HTTPStatusCode: err.HTTPStatusCode(),
		Message:        err.Message(),
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(err.HTTPStatusCode())
	_ = json.NewEncoder(w).Encode(doc)
}

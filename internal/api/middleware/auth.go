package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/airexposure/airexposure/internal/api/models"
	"github.com/airexposure/airexposure/internal/auth"
)

type operatorKey struct{}

// TokenValidator validates operator bearer tokens.
type TokenValidator interface {
	ValidateAccessToken(token string) (*auth.Claims, error)
}

// Auth admits requests carrying a valid operator bearer token and stores the
// operator subject in the context. A nil validator rejects every request,
// so the admin surface stays closed when no signing key is configured.
func Auth(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())
			if validator == nil {
				reject(w, r, models.NewUnauthorized(requestID, "operator authentication is not configured"))
				return
			}

			token, problem := bearerToken(r.Header.Get("Authorization"))
			if problem != "" {
				reject(w, r, models.NewUnauthorized(requestID, problem))
				return
			}

			claims, err := validator.ValidateAccessToken(token)
			if err != nil {
				reject(w, r, tokenProblem(requestID, err))
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), operatorKey{}, claims.Subject)))
		})
	}
}

// bearerToken extracts the token of a "Bearer" Authorization header, with a
// case-insensitive scheme. A non-empty second result describes why the
// header was refused.
func bearerToken(header string) (string, string) {
	if header == "" {
		return "", "missing authorization header"
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", "invalid authorization header format"
	}
	if token = strings.TrimSpace(token); token == "" {
		return "", "missing bearer token"
	}
	return token, ""
}

func tokenProblem(requestID string, err error) *models.Problem {
	switch {
	case errors.Is(err, auth.ErrForbiddenRole):
		return models.NewForbidden(requestID, "operator role required")
	case errors.Is(err, auth.ErrAccessTokenExpired):
		return models.NewUnauthorized(requestID, "access token has expired")
	case errors.Is(err, auth.ErrInvalidAccessToken):
		return models.NewUnauthorized(requestID, "invalid access token")
	default:
		return models.NewUnauthorized(requestID, "authentication failed")
	}
}

// reject writes problem directly; the response package imports this one.
func reject(w http.ResponseWriter, r *http.Request, problem *models.Problem) {
	problem.WithInstance(r.URL.Path).Write(w)
}

// GetOperator returns the authenticated operator subject, or "".
func GetOperator(ctx context.Context) string {
	subject, _ := ctx.Value(operatorKey{}).(string)
	return subject
}

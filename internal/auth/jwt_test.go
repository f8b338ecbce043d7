package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airexposure/airexposure/internal/auth"
)

func newService(t *testing.T, key string) *auth.JWTService {
	t.Helper()
	svc, err := auth.NewJWTService(auth.JWTConfig{
		SigningKey: key,
		Issuer:     "airexposure",
	})
	require.NoError(t, err)
	return svc
}

func TestNewJWTService_RequiresKey(t *testing.T) {
	_, err := auth.NewJWTService(auth.JWTConfig{Issuer: "airexposure"})
	assert.ErrorIs(t, err, auth.ErrMissingSigningKey)
}

func TestJWTService_IssueAndValidate(t *testing.T) {
	svc := newService(t, "test-secret-key-for-testing-only")

	token, expiresAt, err := svc.IssueOperatorToken("ops@airexposure")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(auth.DefaultTokenTTL), expiresAt, 5*time.Second)

	claims, err := svc.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ops@airexposure", claims.Subject)
	assert.Equal(t, auth.RoleOperator, claims.Role)
	assert.Equal(t, "airexposure", claims.Issuer)
	assert.NotEmpty(t, claims.ID)
}

func TestJWTService_Rejects(t *testing.T) {
	svc := newService(t, "key-one")
	other := newService(t, "key-two")

	foreign, _, err := other.IssueOperatorToken("ops")
	require.NoError(t, err)
	viewer, _, err := svc.IssueAt("ops", "viewer", time.Now())
	require.NoError(t, err)
	expired, _, err := svc.IssueAt("ops", auth.RoleOperator, time.Now().Add(-2*time.Hour))
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{name: "empty", token: "", wantErr: auth.ErrInvalidAccessToken},
		{name: "malformed", token: "not.a.valid.jwt", wantErr: auth.ErrInvalidAccessToken},
		{name: "wrong key", token: foreign, wantErr: auth.ErrInvalidAccessToken},
		{name: "wrong role", token: viewer, wantErr: auth.ErrForbiddenRole},
		{name: "expired", token: expired, wantErr: auth.ErrAccessTokenExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ValidateAccessToken(tt.token)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

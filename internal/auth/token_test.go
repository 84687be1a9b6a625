package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/engagement-backend/internal/domain/valueobject"
	"github.com/ignatzorin/engagement-backend/internal/pkg/apperror"
)

func TestIssueAndParse(t *testing.T) {
	m := NewTokenManager("secret", time.Minute)
	id := uuid.New()

	raw, err := m.Issue(id, valueobject.RoleFreelancer)
	require.NoError(t, err)

	user, err := m.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, id, user.ID)
	assert.True(t, user.IsFreelancer())
}

func TestParse_Rejects(t *testing.T) {
	m := NewTokenManager("secret", time.Minute)
	id := uuid.New()

	other, err := NewTokenManager("other", time.Minute).Issue(id, valueobject.RoleClient)
	require.NoError(t, err)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": id.String(), "role": "client", "exp": time.Now().Add(-time.Minute).Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	unknownRole, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": id.String(), "role": "superuser", "exp": time.Now().Add(time.Minute).Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	badSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "not-a-uuid", "role": "client",
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	for name, raw := range map[string]string{
		"garbage":      "abc.def.ghi",
		"wrong secret": other,
		"expired":      expired,
		"unknown role": unknownRole,
		"bad subject":  badSubject,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := m.Parse(raw)
			require.Error(t, err)
			assert.Equal(t, apperror.ErrCodeUnauthorized, apperror.CodeOf(err))
		})
	}
}

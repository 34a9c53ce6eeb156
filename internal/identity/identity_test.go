package identity

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyRoundTrip(t *testing.T) {
	manager := NewManager("secret")

	token, err := manager.Issue(Identity{
		UserID:      "u1",
		DisplayName: "Ann",
		Email:       "ann@x.io",
	}, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	require.NoError(t, err)

	ident, err := manager.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", ident.UserID)
	assert.Equal(t, "Ann", ident.DisplayName)
	assert.Equal(t, "ann@x.io", ident.Email)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	token, err := NewManager("one").Issue(Identity{UserID: "u1"}, jwt.RegisteredClaims{})
	require.NoError(t, err)

	_, err = NewManager("two").Verify(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	manager := NewManager("secret")
	token, err := manager.Issue(Identity{UserID: "u1"}, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	})
	require.NoError(t, err)

	_, err = manager.Verify(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsTokenWithoutSubject(t *testing.T) {
	manager := NewManager("secret")
	token, err := manager.Issue(Identity{}, jwt.RegisteredClaims{})
	require.NoError(t, err)

	_, err = manager.Verify(token)
	require.ErrorIs(t, err, ErrNoIdentity)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	_, err := NewManager("secret").Verify("not-a-token")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestSenderNameFallback(t *testing.T) {
	assert.Equal(t, "Ann", Identity{DisplayName: "Ann", Email: "ann@x.io"}.SenderName())
	assert.Equal(t, "ann", Identity{Email: "ann@x.io"}.SenderName())
	assert.Equal(t, "weird-email", Identity{Email: "weird-email"}.SenderName())
	assert.Equal(t, "user", Identity{}.SenderName())
}

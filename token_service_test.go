package accounts_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	accounts "github.com/goliatone/go-accounts"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTokenService() accounts.TokenService {
	return accounts.NewTokenService(
		[]byte("test-signing-key"),
		1,
		"test-issuer",
		jwt.ClaimStrings{"test:audience"},
		nil,
	)
}

func TestTokenServiceGenerate(t *testing.T) {
	ts := newTestTokenService()
	userID := uuid.New().String()

	token, err := ts.Generate(userID)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	t.Run("roundtrip validates and carries user identity", func(t *testing.T) {
		claims, err := ts.Validate(token)
		require.NoError(t, err)

		assert.Equal(t, userID, claims.Subject())
		assert.Equal(t, userID, claims.UserID())
		assert.True(t, claims.Expires().After(time.Now()))
		assert.False(t, claims.IssuedAt().IsZero())
	})

	t.Run("registered claims carry issuer and audience", func(t *testing.T) {
		parsed, err := jwt.ParseWithClaims(token, &accounts.SessionClaims{}, func(t *jwt.Token) (any, error) {
			return []byte("test-signing-key"), nil
		})
		require.NoError(t, err)
		require.True(t, parsed.Valid)

		claims, ok := parsed.Claims.(*accounts.SessionClaims)
		require.True(t, ok)
		assert.Equal(t, "test-issuer", claims.RegisteredClaims.Issuer)
		assert.Equal(t, jwt.ClaimStrings{"test:audience"}, claims.RegisteredClaims.Audience)
		assert.NotEmpty(t, claims.RegisteredClaims.ID)
	})

	t.Run("consecutive tokens are distinct", func(t *testing.T) {
		other, err := ts.Generate(userID)
		require.NoError(t, err)
		assert.NotEqual(t, token, other)
	})
}

func TestTokenServiceValidate(t *testing.T) {
	ts := newTestTokenService()
	userID := uuid.New().String()

	t.Run("rejects garbage input", func(t *testing.T) {
		claims, err := ts.Validate("not-a-jwt")
		assert.Error(t, err)
		assert.Nil(t, claims)
		assert.False(t, accounts.IsTokenExpiredError(err))
	})

	t.Run("rejects empty input", func(t *testing.T) {
		claims, err := ts.Validate("")
		assert.Error(t, err)
		assert.Nil(t, claims)
	})

	t.Run("rejects token signed with a different key", func(t *testing.T) {
		forger := accounts.NewTokenService(
			[]byte("some-other-key"),
			1,
			"test-issuer",
			jwt.ClaimStrings{"test:audience"},
			nil,
		)

		token, err := forger.Generate(userID)
		require.NoError(t, err)

		claims, err := ts.Validate(token)
		assert.Error(t, err)
		assert.Nil(t, claims)
	})

	t.Run("rejects expired token", func(t *testing.T) {
		now := time.Now()
		expired := &accounts.SessionClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				ID:        uuid.NewString(),
				Issuer:    "test-issuer",
				Subject:   userID,
				Audience:  jwt.ClaimStrings{"test:audience"},
				IssuedAt:  jwt.NewNumericDate(now.Add(-2 * time.Hour)),
				ExpiresAt: jwt.NewNumericDate(now.Add(-time.Hour)),
			},
			UID: userID,
		}

		token, err := ts.SignClaims(expired)
		require.NoError(t, err)

		claims, err := ts.Validate(token)
		assert.Error(t, err)
		assert.Nil(t, claims)
		assert.True(t, accounts.IsTokenExpiredError(err))
	})

	t.Run("rejects issuer mismatch", func(t *testing.T) {
		stranger := accounts.NewTokenService(
			[]byte("test-signing-key"),
			1,
			"other-issuer",
			jwt.ClaimStrings{"test:audience"},
			nil,
		)

		token, err := stranger.Generate(userID)
		require.NoError(t, err)

		claims, err := ts.Validate(token)
		assert.Error(t, err)
		assert.Nil(t, claims)
	})
}

func TestSignClaimsNil(t *testing.T) {
	ts := newTestTokenService()
	token, err := ts.SignClaims(nil)
	assert.Error(t, err)
	assert.Empty(t, token)
}

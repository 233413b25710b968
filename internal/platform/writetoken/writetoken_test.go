package writetoken

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerify(t *testing.T) {
	s, err := New("s3cret")
	require.NoError(t, err)

	token, err := s.Issue("ops-team", time.Hour)
	require.NoError(t, err)

	subject, err := s.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "ops-team", subject)
}

func TestVerifyRejects(t *testing.T) {
	s, err := New("s3cret")
	require.NoError(t, err)

	t.Run("other secret", func(t *testing.T) {
		other, err := New("different")
		require.NoError(t, err)
		token, err := other.Issue("ops-team", time.Hour)
		require.NoError(t, err)

		_, err = s.Verify(token)
		assert.ErrorIs(t, err, ErrInvalid)
	})

	t.Run("expired", func(t *testing.T) {
		issued := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		s.now = func() time.Time { return issued }
		token, err := s.Issue("ops-team", time.Minute)
		require.NoError(t, err)

		s.now = func() time.Time { return issued.Add(time.Hour) }
		_, err = s.Verify(token)
		assert.ErrorIs(t, err, ErrExpired)
		s.now = time.Now
	})

	t.Run("foreign issuer", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject: "ops-team", Issuer: "someone-else",
		}).SignedString([]byte("s3cret"))
		require.NoError(t, err)

		_, err = s.Verify(token)
		assert.ErrorIs(t, err, ErrInvalid)
	})

	t.Run("alg none", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
			Subject: "ops-team", Issuer: Issuer,
		}).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = s.Verify(token)
		assert.ErrorIs(t, err, ErrInvalid)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := s.Verify("not.a.token")
		assert.ErrorIs(t, err, ErrInvalid)
	})
}

func TestNewAndIssueRequireInputs(t *testing.T) {
	_, err := New("  ")
	assert.Error(t, err)

	s, err := New("s3cret")
	require.NoError(t, err)
	_, err = s.Issue("", time.Hour)
	assert.Error(t, err)
}

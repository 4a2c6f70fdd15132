package invite

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/and161185/lanxat/internal/errs"
)

func TestIssuer_RoundTrip(t *testing.T) {
	t.Parallel()
	i, err := New([]byte("secret"))
	require.NoError(t, err)

	tok, err := i.Issue(42, time.Hour)
	require.NoError(t, err)
	require.NoError(t, i.Verify(tok, 42))
}

func TestIssuer_Rejects(t *testing.T) {
	t.Parallel()
	i, err := New([]byte("secret"))
	require.NoError(t, err)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	i.now = func() time.Time { return now }

	tok, err := i.Issue(42, time.Hour)
	require.NoError(t, err)

	require.ErrorIs(t, i.Verify(tok, 43), errs.ErrUnauthorized, "other user")
	require.ErrorIs(t, i.Verify(tok+"x", 42), errs.ErrUnauthorized, "tampered")

	other, _ := New([]byte("other"))
	other.now = i.now
	require.ErrorIs(t, other.Verify(tok, 42), errs.ErrUnauthorized, "other key")

	now = now.Add(2 * time.Hour)
	require.ErrorIs(t, i.Verify(tok, 42), errs.ErrUnauthorized, "expired")
}

func TestIssuer_RejectsForeignAudienceAndAlg(t *testing.T) {
	t.Parallel()
	i, err := New([]byte("secret"))
	require.NoError(t, err)

	claims := jwt.RegisteredClaims{
		Subject:   "42",
		Audience:  jwt.ClaimStrings{"something-else"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	require.ErrorIs(t, i.Verify(tok, 42), errs.ErrUnauthorized)

	claims.Audience = jwt.ClaimStrings{Audience}
	tok, err = jwt.NewWithClaims(jwt.SigningMethodHS384, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	require.ErrorIs(t, i.Verify(tok, 42), errs.ErrUnauthorized)
}

func TestNew_EmptyKey(t *testing.T) {
	t.Parallel()
	_, err := New(nil)
	require.Error(t, err)
}

func TestIssue_DefaultTTL(t *testing.T) {
	t.Parallel()
	i, _ := New([]byte("k"))
	tok, err := i.Issue(1, 0)
	require.NoError(t, err)

	var claims jwt.RegisteredClaims
	_, _, err = jwt.NewParser().ParseUnverified(tok, &claims)
	require.NoError(t, err)
	require.WithinDuration(t, claims.IssuedAt.Add(DefaultTTL), claims.ExpiresAt.Time, time.Second)
	require.NotEmpty(t, claims.ID)
}

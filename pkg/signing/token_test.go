package signing

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignerGenerateAndParse(t *testing.T) {
	signer := NewSigner("secret", time.Hour)
	token, expiresAt, err := signer.Generate("RC-2025A-000001", "user-1|sem-1")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := signer.Parse(token)
	require.NoError(t, err)
	require.Equal(t, "RC-2025A-000001", claims.Reference)
	require.Equal(t, "user-1|sem-1", claims.Subject)
	require.WithinDuration(t, expiresAt, claims.ExpiresAt, time.Second)
}

func TestSignerRejectsTampering(t *testing.T) {
	signer := NewSigner("secret", time.Hour)
	token, _, err := signer.Generate("RC-2025A-000001", "user-1|sem-1")
	require.NoError(t, err)

	forged := strings.Replace(token, "RC-2025A-000001", "RC-2025A-000002", 1)
	_, err = signer.Parse(forged)
	require.True(t, errors.Is(err, ErrSignature))

	_, err = NewSigner("other", time.Hour).Parse(token)
	require.True(t, errors.Is(err, ErrSignature))

	_, err = signer.Parse("not-a-token")
	require.True(t, errors.Is(err, ErrMalformed))
}

func TestSignerExpired(t *testing.T) {
	signer := NewSigner("secret", time.Minute)
	token, _, err := signer.Generate("RC-2025A-000001", "user-1|sem-1")
	require.NoError(t, err)

	signer.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	claims, err := signer.Parse(token)
	require.True(t, errors.Is(err, ErrExpired))
	require.Equal(t, "RC-2025A-000001", claims.Reference)
}

func TestSignerRejectsDottedReference(t *testing.T) {
	_, _, err := NewSigner("secret", time.Hour).Generate("a.b", "s")
	require.Error(t, err)
}

package storage

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinkSignerSignAndVerify(t *testing.T) {
	signer := NewLinkSigner("secret", time.Hour)
	link, err := signer.Sign("user-1", "attendance/report.csv")
	require.NoError(t, err)
	require.NotEmpty(t, link.Token)

	verified, err := signer.Verify(link.Token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", verified.OwnerID)
	assert.Equal(t, "attendance/report.csv", verified.Path)
	assert.True(t, link.ExpiresAt.Equal(verified.ExpiresAt))
}

func TestLinkSignerRejectsTamperedToken(t *testing.T) {
	signer := NewLinkSigner("secret", time.Hour)
	link, err := signer.Sign("user-1", "receipts/r.pdf")
	require.NoError(t, err)

	_, err = NewLinkSigner("other", time.Hour).Verify(link.Token)
	assert.True(t, errors.Is(err, ErrInvalidLink))

	_, err = signer.Verify("garbage")
	assert.True(t, errors.Is(err, ErrInvalidLink))

	_, err = signer.Verify(link.Token + "x")
	assert.True(t, errors.Is(err, ErrInvalidLink))
}

func TestLinkSignerExpiry(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	signer := NewLinkSigner("secret", time.Minute)
	signer.now = func() time.Time { return now }

	link, err := signer.Sign("user-1", "receipts/r.pdf")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = signer.Verify(link.Token)
	assert.True(t, errors.Is(err, ErrLinkExpired))
}

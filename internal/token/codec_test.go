package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/qr-attend-api/internal/models"
	appErrors "github.com/noah-isme/qr-attend-api/pkg/errors"
)

func TestCodecSessionRoundTrip(t *testing.T) {
	codec := NewCodec("secret", true)
	issued := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	payload, err := codec.EncodeSession("sess-1", issued)
	require.NoError(t, err)

	tok, err := codec.DecodeSession(payload)
	require.NoError(t, err)
	assert.Equal(t, "sess-1", tok.SessionID)
	assert.True(t, tok.IssuedAt.Equal(issued))
}

func TestCodecIdentityRoundTrip(t *testing.T) {
	codec := NewCodec("secret", true)

	payload, err := codec.EncodeIdentity(models.IdentityToken{StudentID: "stu-1", RollNumber: "21", DisplayName: "Ayu Lestari"})
	require.NoError(t, err)

	tok, err := codec.DecodeIdentity(payload)
	require.NoError(t, err)
	assert.Equal(t, "stu-1", tok.StudentID)
	assert.Equal(t, "21", tok.RollNumber)
	assert.Equal(t, "Ayu Lestari", tok.DisplayName)
}

func TestCodecRejectsGarbage(t *testing.T) {
	codec := NewCodec("secret", true)

	_, err := codec.DecodeSession("not-a-token")
	assert.True(t, appErrors.Is(err, appErrors.ErrMalformedToken))

	_, err = codec.DecodeIdentity("")
	assert.True(t, appErrors.Is(err, appErrors.ErrMalformedToken))
}

func TestCodecRejectsWrongKind(t *testing.T) {
	codec := NewCodec("secret", true)

	payload, err := codec.EncodeIdentity(models.IdentityToken{StudentID: "stu-1"})
	require.NoError(t, err)

	_, err = codec.DecodeSession(payload)
	assert.True(t, appErrors.Is(err, appErrors.ErrMalformedToken))
}

func TestCodecRejectsBadSignature(t *testing.T) {
	minter := NewCodec("other-secret", true)
	payload, err := minter.EncodeSession("sess-1", time.Now())
	require.NoError(t, err)

	codec := NewCodec("secret", true)
	_, err = codec.DecodeSession(payload)
	assert.True(t, appErrors.Is(err, appErrors.ErrMalformedToken))

	// Unverified mode only checks structure.
	lenient := NewCodec("secret", false)
	tok, err := lenient.DecodeSession(payload)
	require.NoError(t, err)
	assert.Equal(t, "sess-1", tok.SessionID)
}

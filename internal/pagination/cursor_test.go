package pagination

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	ts := time.Date(2025, 2, 22, 9, 30, 0, 123456789, time.UTC)
	encoded := EncodeCursor("entry-42", ts)
	require.NotEmpty(t, encoded)

	decoded, err := DecodeCursor(encoded)
	require.NoError(t, err)
	assert.Equal(t, "entry-42", decoded.LastID)
	assert.True(t, decoded.Timestamp.Equal(ts))
}

func TestDecodeCursorEmpty(t *testing.T) {
	decoded, err := DecodeCursor("")
	require.NoError(t, err)
	assert.Nil(t, decoded)
}

func TestDecodeCursorInvalid(t *testing.T) {
	_, err := DecodeCursor("not base64!!!")
	assert.ErrorIs(t, err, ErrInvalidCursor)

	_, err = DecodeCursor("bm8tc2VwYXJhdG9y") // "no-separator"
	assert.ErrorIs(t, err, ErrInvalidCursor)
}

func TestEncodeCursorEmptyID(t *testing.T) {
	assert.Empty(t, EncodeCursor("", time.Now()))
}

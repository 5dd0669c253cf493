package pagination

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLimit(t *testing.T) {
	cases := map[int]int{0: DefaultLimit, -3: DefaultLimit, 10: 10, MaxLimit + 50: MaxLimit}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeLimit(in), "NormalizeLimit(%d)", in)
	}
	assert.Equal(t, 11, LimitWithBuffer(10))
}

func TestTrim(t *testing.T) {
	page, more := Trim([]int{1, 2, 3}, 2)
	assert.Equal(t, []int{1, 2}, page)
	assert.True(t, more)

	page, more = Trim([]int{1, 2}, 2)
	assert.Equal(t, []int{1, 2}, page)
	assert.False(t, more)
}

func TestCursorRoundTrip(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 123, time.UTC)
	encoded := EncodeCursor(Cursor{CreatedAt: at, Sequence: 42})
	assert.NotContains(t, encoded, "+", "cursor must be query-safe")
	assert.NotContains(t, encoded, "=")

	decoded, err := ParseCursor(encoded)
	require.NoError(t, err)
	assert.True(t, decoded.CreatedAt.Equal(at))
	assert.Equal(t, int64(42), decoded.Sequence)

	blank, err := ParseCursor("  ")
	require.NoError(t, err)
	assert.Nil(t, blank)
}

func TestParseCursorRejects(t *testing.T) {
	raw := func(s string) string { return base64.RawURLEncoding.EncodeToString([]byte(s)) }
	cases := map[string]string{
		"not base64":      "not-base64!",
		"wallet cursor":   EncodeKeyCursor(uuid.New()),
		"bad timestamp":   raw("h1|yesterday|4"),
		"zero sequence":   raw("h1|2026-03-01T12:00:00Z|0"),
		"too many fields": raw("h1|2026-03-01T12:00:00Z|4|x"),
	}
	for name, value := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseCursor(value)
			assert.ErrorIs(t, err, ErrInvalidCursor)
		})
	}
}

func TestKeyCursorRoundTrip(t *testing.T) {
	id := uuid.New()
	got, err := ParseKeyCursor(EncodeKeyCursor(id))
	require.NoError(t, err)
	assert.Equal(t, id, *got)

	_, err = ParseKeyCursor(EncodeCursor(Cursor{CreatedAt: time.Now(), Sequence: 1}))
	assert.ErrorIs(t, err, ErrInvalidCursor)

	_, err = ParseKeyCursor(base64.RawURLEncoding.EncodeToString([]byte("w1|" + strings.Repeat("z", 36))))
	assert.ErrorIs(t, err, ErrInvalidCursor)
}

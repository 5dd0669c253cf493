// Package pagination implements opaque keyset cursors for wallet listings.
package pagination

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultLimit = 25
	MaxLimit     = 100
)

// cursor payloads are versioned so the encoding can change without breaking
// links clients already hold
const (
	historyCursorTag = "h1"
	walletCursorTag  = "w1"
)

var ErrInvalidCursor = errors.New("invalid cursor")

// Params is what a list endpoint accepts.
type Params struct {
	Limit  int
	Cursor string
}

// Cursor points just past a transaction in a wallet's history, newest first.
type Cursor struct {
	CreatedAt time.Time
	Sequence  int64
}

// NormalizeLimit clamps limit into [1, MaxLimit], defaulting non-positive values.
func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

// LimitWithBuffer is the row count to fetch so one extra row signals a next page.
func LimitWithBuffer(limit int) int {
	return NormalizeLimit(limit) + 1
}

// Trim cuts a buffered result to limit rows and reports whether more exist.
func Trim[T any](rows []T, limit int) ([]T, bool) {
	if len(rows) > limit {
		return rows[:limit], true
	}
	return rows, false
}

func EncodeCursor(c Cursor) string {
	return encode(historyCursorTag, c.CreatedAt.UTC().Format(time.RFC3339Nano), strconv.FormatInt(c.Sequence, 10))
}

// ParseCursor returns nil for an empty value.
func ParseCursor(value string) (*Cursor, error) {
	parts, err := decode(value, historyCursorTag, 2)
	if parts == nil || err != nil {
		return nil, err
	}
	at, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return nil, fmt.Errorf("%w: bad timestamp", ErrInvalidCursor)
	}
	seq, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || seq <= 0 {
		return nil, fmt.Errorf("%w: bad sequence", ErrInvalidCursor)
	}
	return &Cursor{CreatedAt: at, Sequence: seq}, nil
}

// EncodeKeyCursor points past a user id in a tenant's wallet listing.
func EncodeKeyCursor(id uuid.UUID) string {
	return encode(walletCursorTag, id.String())
}

func ParseKeyCursor(value string) (*uuid.UUID, error) {
	parts, err := decode(value, walletCursorTag, 1)
	if parts == nil || err != nil {
		return nil, err
	}
	id, err := uuid.Parse(parts[0])
	if err != nil {
		return nil, fmt.Errorf("%w: bad id", ErrInvalidCursor)
	}
	return &id, nil
}

func encode(tag string, fields ...string) string {
	raw := tag + "|" + strings.Join(fields, "|")
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decode(value, tag string, n int) ([]string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("%w: not base64url", ErrInvalidCursor)
	}
	parts := strings.Split(string(raw), "|")
	if len(parts) != n+1 || parts[0] != tag {
		return nil, fmt.Errorf("%w: wrong shape", ErrInvalidCursor)
	}
	return parts[1:], nil
}

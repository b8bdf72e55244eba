// Package cursor encodes keyset pagination positions as opaque strings.
package cursor

import (
	"encoding/base64"
	"errors"
	"strings"
	"time"
)

// ErrInvalid is returned for cursors that were not produced by Encode.
var ErrInvalid = errors.New("invalid cursor")

// Default and maximum page sizes.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Cursor is the sort key of the last item of a page.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// Encode returns the opaque form of c.
func (c Cursor) Encode() string {
	raw := c.CreatedAt.UTC().Format(time.RFC3339Nano) + "|" + c.ID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// Decode parses an opaque cursor. An empty string yields nil.
func Decode(s string) (*Cursor, error) {
	if s == "" {
		return nil, nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, ErrInvalid
	}

	ts, id, ok := strings.Cut(string(raw), "|")
	if !ok || id == "" {
		return nil, ErrInvalid
	}

	createdAt, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return nil, ErrInvalid
	}

	return &Cursor{CreatedAt: createdAt, ID: id}, nil
}

// ClampLimit applies the default and maximum page sizes.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// Page is one page of results and the cursor for the next one.
type Page[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
}

// NewPage trims items fetched with limit+1 and computes the next cursor.
func NewPage[T any](items []T, limit int, key func(T) Cursor) Page[T] {
	if items == nil {
		items = make([]T, 0)
	}
	if len(items) <= limit {
		return Page[T]{Items: items}
	}
	items = items[:limit]
	return Page[T]{
		Items:      items,
		NextCursor: key(items[len(items)-1]).Encode(),
	}
}

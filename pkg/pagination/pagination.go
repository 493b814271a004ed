// Package pagination has two schemes: numbered pages for catalog-style
// listings and opaque keyset cursors for append-mostly tables.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

var ErrInvalidCursor = errors.New("invalid cursor")

// NormalizeLimit maps non-positive limits to DefaultLimit and caps at MaxLimit.
func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// Page is 1-based.
type Page struct {
	Page  int
	Limit int
}

func (p Page) Normalize() Page {
	return Page{Page: max(p.Page, 1), Limit: NormalizeLimit(p.Limit)}
}

func (p Page) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.Limit
}

// Pages is the number of pages total rows fill.
func Pages(total int64, limit int) int {
	if total <= 0 {
		return 0
	}
	per := int64(NormalizeLimit(limit))
	return int((total + per - 1) / per)
}

// Params are keyset inputs. Cursor is the opaque token from the previous page.
type Params struct {
	Limit  int
	Cursor string
}

// LimitWithBuffer asks for one extra row to learn whether a next page exists.
func LimitWithBuffer(limit int) int {
	return NormalizeLimit(limit) + 1
}

// Cursor is the (created_at, id) position of the last row served.
type Cursor struct {
	CreatedAt time.Time `json:"t"`
	ID        uuid.UUID `json:"id"`
}

func EncodeCursor(c Cursor) string {
	c.CreatedAt = c.CreatedAt.UTC()
	raw, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(raw)
}

// ParseCursor returns nil, nil for a blank token. Any other failure wraps
// ErrInvalidCursor.
func ParseCursor(token string) (*Cursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(token, "="))
	if err != nil {
		return nil, errors.Join(ErrInvalidCursor, err)
	}
	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, errors.Join(ErrInvalidCursor, err)
	}
	if c.CreatedAt.IsZero() || c.ID == uuid.Nil {
		return nil, ErrInvalidCursor
	}
	return &c, nil
}

// Trim cuts a LimitWithBuffer result down to limit rows and reports whether
// rows were dropped.
func Trim[T any](rows []T, limit int) ([]T, bool) {
	limit = NormalizeLimit(limit)
	if len(rows) <= limit {
		return rows, false
	}
	return rows[:limit], true
}

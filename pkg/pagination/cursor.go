// Package pagination pages through ordered lists with opaque page tokens.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// DefaultPageSize is used when a request does not name a page size
const DefaultPageSize = 50

// MaxPageSize caps the requested page size
const MaxPageSize = 500

// Cursor marks where the next page starts. After holds the key of the last
// item already returned, so a page survives inserts ahead of it.
type Cursor struct {
	Offset int    `json:"o"`
	After  string `json:"a,omitempty"`
}

// Encode returns the cursor as a URL-safe page token
func (c Cursor) Encode() string {
	data, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(data)
}

// Decode parses a page token. An empty token is the first page.
func Decode(token string) (Cursor, error) {
	if token == "" {
		return Cursor{}, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("invalid page token: %w", err)
	}
	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return Cursor{}, fmt.Errorf("invalid page token: %w", err)
	}
	if c.Offset < 0 {
		return Cursor{}, fmt.Errorf("invalid page token: negative offset")
	}
	return c, nil
}

// ClampSize normalizes a requested page size
func ClampSize(size int) int {
	switch {
	case size <= 0:
		return DefaultPageSize
	case size > MaxPageSize:
		return MaxPageSize
	}
	return size
}

// Page returns one page of items and the token of the next page, empty on
// the last page. key identifies an item; when the item before the cursor
// offset no longer matches After, the page restarts right after the item
// with that key.
func Page[T any](items []T, token string, size int, key func(T) string) ([]T, string, error) {
	cursor, err := Decode(token)
	if err != nil {
		return nil, "", err
	}
	size = ClampSize(size)

	start := cursor.Offset
	if cursor.After != "" && (start == 0 || start > len(items) || key(items[start-1]) != cursor.After) {
		start = len(items)
		for i, item := range items {
			if key(item) == cursor.After {
				start = i + 1
				break
			}
		}
	}
	if start > len(items) {
		start = len(items)
	}

	end := min(start+size, len(items))
	page := items[start:end]
	if end >= len(items) || len(page) == 0 {
		return page, "", nil
	}
	next := Cursor{Offset: end, After: key(page[len(page)-1])}
	return page, next.Encode(), nil
}

package pagination

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

type cursor struct {
	Offset int `json:"o"`
}

// EncodeOffset returns the opaque token that resumes a listing at offset.
func EncodeOffset(offset int) string {
	if offset <= 0 {
		return ""
	}
	data, _ := json.Marshal(cursor{Offset: offset})
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeOffset parses a token from EncodeOffset. The empty token is offset zero.
func DecodeOffset(token string) (int, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPageToken, err)
	}
	var c cursor
	if err := json.Unmarshal(decoded, &c); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPageToken, err)
	}
	if c.Offset < 0 {
		return 0, fmt.Errorf("%w: negative offset", ErrInvalidPageToken)
	}
	return c.Offset, nil
}

// Window slices items for the page starting at token and returns the next token, empty on the last
// page.
func Window[T any](items []T, token string, size int) ([]T, string, error) {
	offset, err := DecodeOffset(token)
	if err != nil {
		return nil, "", err
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	if offset >= len(items) {
		return []T{}, "", nil
	}
	end := min(offset+size, len(items))
	next := ""
	if end < len(items) {
		next = EncodeOffset(end)
	}
	return items[offset:end], next, nil
}

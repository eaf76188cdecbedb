package store

import (
	"encoding/base64"
	"fmt"
)

// EncodeCursor makes an opaque continuation token from an object id.
func EncodeCursor(id string) string {
	if id == "" {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString([]byte(id))
}

func DecodeCursor(cursor string) (string, error) {
	if cursor == "" {
		return "", nil
	}
	b, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil || len(b) == 0 {
		return "", fmt.Errorf("%w: %q", ErrInvalidCursor, cursor)
	}
	return string(b), nil
}

package pagination

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"cafepos/internal/domain"
)

const timeFormat = time.RFC3339Nano

// EncodeCursor packs the last row's created_at and id into an opaque token.
func EncodeCursor(c *domain.PageCursor) string {
	if c == nil {
		return ""
	}
	raw := fmt.Sprintf("%s|%s", c.CreatedAt.UTC().Format(timeFormat), c.ID)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func DecodeCursor(token string) (*domain.PageCursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor (base64 decode): %w", err)
	}
	parts := strings.SplitN(string(decoded), "|", 2)
	if len(parts) != 2 || parts[1] == "" {
		return nil, fmt.Errorf("invalid cursor (split)")
	}
	createdAt, err := time.Parse(timeFormat, parts[0])
	if err != nil {
		return nil, fmt.Errorf("invalid cursor (created_at parse): %w", err)
	}
	return &domain.PageCursor{CreatedAt: createdAt, ID: parts[1]}, nil
}

package pagination

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cafepos/internal/domain"
)

func TestCursorRoundTrip(t *testing.T) {
	at := time.Date(2024, 3, 9, 14, 5, 6, 789000000, time.UTC)
	token := EncodeCursor(&domain.PageCursor{CreatedAt: at, ID: "tx-abc|def"})

	got, err := DecodeCursor(token)
	require.NoError(t, err)
	assert.True(t, at.Equal(got.CreatedAt))
	assert.Equal(t, "tx-abc|def", got.ID)
}

func TestDecodeEmptyCursor(t *testing.T) {
	got, err := DecodeCursor("  ")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, "", EncodeCursor(nil))
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := DecodeCursor("!!!")
	assert.Error(t, err)

	_, err = DecodeCursor("bm8tc2VwYXJhdG9y") // "no-separator"
	assert.Error(t, err)
}

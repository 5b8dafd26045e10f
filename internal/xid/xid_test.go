package xid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewHasPrefixAndIsUnique(t *testing.T) {
	seen := make(map[string]struct{}, 500)
	for i := 0; i < 500; i++ {
		id := New("tx")
		assert.True(t, Valid("tx", id), "id %s", id)
		_, dup := seen[id]
		assert.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
}

func TestValidRejectsForeignPrefix(t *testing.T) {
	assert.False(t, Valid("tx", New("rpt")))
	assert.False(t, Valid("tx", "tx-"))
	assert.False(t, Valid("tx", "tx-not-a-uuid"))
}

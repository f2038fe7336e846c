package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJoinBytes(t *testing.T) {
	t.Run("marker and payload", func(t *testing.T) {
		got := JoinBytes([]byte("Echo MT: "), []byte("hello"))
		assert.Equal(t, []byte("Echo MT: hello"), got)
	})

	t.Run("empty slices", func(t *testing.T) {
		got := JoinBytes([]byte{}, []byte("a"), nil)
		assert.Equal(t, []byte("a"), got)
	})

	t.Run("no args returns empty", func(t *testing.T) {
		assert.Empty(t, JoinBytes())
	})

	t.Run("result does not alias inputs", func(t *testing.T) {
		payload := []byte("abc")
		got := JoinBytes(payload)
		payload[0] = 'x'
		assert.Equal(t, []byte("abc"), got)
	})
}

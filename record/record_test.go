package record

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONCodec_Person(t *testing.T) {
	c := NewJSONCodec()

	t.Run("wire field names", func(t *testing.T) {
		b, err := c.EncodePerson(Person{Name: "Ann", Age: 30, City: "Riga"})
		require.NoError(t, err)
		assert.JSONEq(t, `{"name":"Ann","age":30,"city":"Riga"}`, string(b))
	})

	t.Run("decodes client payload", func(t *testing.T) {
		p, err := c.DecodePerson([]byte(`{"name":"Bob","age":41,"city":"Tallinn"}`))
		require.NoError(t, err)
		assert.Equal(t, Person{Name: "Bob", Age: 41, City: "Tallinn"}, p)
	})

	t.Run("missing fields default to zero", func(t *testing.T) {
		p, err := c.DecodePerson([]byte(`{"name":"Eve"}`))
		require.NoError(t, err)
		assert.Equal(t, Person{Name: "Eve"}, p)
	})

	t.Run("malformed payload is a codec error", func(t *testing.T) {
		for _, raw := range []string{``, `not json`, `[1,2]`, `{"age":"thirty"}`} {
			_, err := c.DecodePerson([]byte(raw))
			require.Error(t, err, raw)
			assert.ErrorIs(t, err, ErrCodec, raw)

			var codecErr *CodecError
			require.True(t, errors.As(err, &codecErr), raw)
			assert.Equal(t, "decode", codecErr.Op)
		}
	})
}

func TestJSONCodec_Reply(t *testing.T) {
	c := NewJSONCodec()
	reply := NewReply(Person{Name: "Ann", Age: 30, City: "Riga"})
	assert.True(t, reply.OK())

	b, err := c.EncodeReply(reply)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Ann","age":30,"city":"Riga","status":"ok"}`, string(b))

	var flat map[string]any
	require.NoError(t, json.Unmarshal(b, &flat))
	assert.Equal(t, "ok", flat["status"])

	got, err := c.DecodeReply(b)
	require.NoError(t, err)
	assert.Equal(t, reply, got)

	got, err = c.DecodeReply([]byte(`{"status":"error"}`))
	require.NoError(t, err)
	assert.False(t, got.OK())
}

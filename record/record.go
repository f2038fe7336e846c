// Package record is the payload codec of the framed exchange: it encodes and
// decodes the person record sent by clients and the status reply sent back.
package record

import (
	"encoding/json"
	"errors"
	"fmt"
)

// StatusOK is the reply status for a successfully interpreted request.
const StatusOK = "ok"

// ErrCodec marks every payload encode/decode failure.
var ErrCodec = errors.New("payload codec")

// Person is the structured request record.
type Person struct {
	Name string `json:"name"`
	Age  int    `json:"age"`
	City string `json:"city"`
}

// Reply echoes the request fields and adds a status.
type Reply struct {
	Person
	Status string `json:"status"`
}

// NewReply builds the acknowledgement for p.
func NewReply(p Person) Reply {
	return Reply{Person: p, Status: StatusOK}
}

// OK reports whether the reply acknowledges success.
func (r Reply) OK() bool {
	return r.Status == StatusOK
}

// CodecError reports a payload that could not be encoded or interpreted.
type CodecError struct {
	Op  string // "encode" or "decode"
	Err error
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("%v %s: %v", ErrCodec, e.Op, e.Err)
}

// Unwrap exposes ErrCodec and the cause.
func (e *CodecError) Unwrap() []error {
	return []error{ErrCodec, e.Err}
}

// Codec converts records to and from payload bytes.
type Codec interface {
	EncodePerson(p Person) ([]byte, error)
	DecodePerson(payload []byte) (Person, error)
	EncodeReply(r Reply) ([]byte, error)
	DecodeReply(payload []byte) (Reply, error)
}

// JSONCodec encodes records as JSON objects.
type JSONCodec struct{}

// NewJSONCodec returns the JSON payload codec.
func NewJSONCodec() Codec {
	return JSONCodec{}
}

func (JSONCodec) EncodePerson(p Person) ([]byte, error) {
	return encode(p)
}

func (JSONCodec) DecodePerson(payload []byte) (Person, error) {
	var p Person
	err := decode(payload, &p)
	return p, err
}

func (JSONCodec) EncodeReply(r Reply) ([]byte, error) {
	return encode(r)
}

func (JSONCodec) DecodeReply(payload []byte) (Reply, error) {
	var r Reply
	err := decode(payload, &r)
	return r, err
}

func encode(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, &CodecError{Op: "encode", Err: err}
	}

	return b, nil
}

func decode(payload []byte, v any) error {
	if err := json.Unmarshal(payload, v); err != nil {
		return &CodecError{Op: "decode", Err: err}
	}

	return nil
}

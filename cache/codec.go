package cache

import (
	"encoding/json"
	"errors"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrDecode marks a cached value that could not be decoded.
var ErrDecode = errors.New("cache: decode cached value")

// Codec encodes values before they are stored. Values are always stored
// encoded so a hit hands out a copy that shares no state with other readers.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// DefaultCodec returns the msgpack codec.
func DefaultCodec() Codec {
	return MsgpackCodec{}
}

// MsgpackCodec encodes with msgpack.
type MsgpackCodec struct{}

func (MsgpackCodec) Marshal(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

func (MsgpackCodec) Unmarshal(data []byte, v any) error {
	return msgpack.Unmarshal(data, v)
}

// JSONCodec encodes with encoding/json, handy when entries are inspected
// with external tools.
type JSONCodec struct{}

func (JSONCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

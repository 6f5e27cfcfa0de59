package splitquery

import (
	"encoding/json"
	"maps"
	"slices"

	"github.com/vmihailenco/msgpack/v5"
	"rsc.io/ordered"
)

type Marshaler interface {
	Marshal(v any) (data []byte, err error)
}

type Unmarshaler interface {
	Unmarshal(data []byte, v any) error
}

type MarshalUnmarshaler interface {
	Marshaler
	Unmarshaler
}

var (
	JsonMaUn    MarshalUnmarshaler = jsonMarshalUnmarshaler{}
	MsgpackMaUn MarshalUnmarshaler = msgpackMarshalUnmarshaler{}
)

type jsonMarshalUnmarshaler struct{}

func (jsonMarshalUnmarshaler) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonMarshalUnmarshaler) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

type msgpackMarshalUnmarshaler struct{}

func (msgpackMarshalUnmarshaler) Marshal(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

func (msgpackMarshalUnmarshaler) Unmarshal(data []byte, v any) error {
	return msgpack.Unmarshal(data, v)
}

// ToKey encodes correlation-key parts into order-preserving bytes, so that
// bytes.Compare on two keys matches the backend's ordering of the values.
func ToKey(parts ...any) ([]byte, error) {
	if !ordered.CanEncode(parts...) {
		return nil, ErrCannotEncodeKey(parts)
	}
	return ordered.Encode(parts...), nil
}

// ParamsKey renders a parameter snapshot as a stable string, usable as a
// memoization key by command caches. Two snapshots with equal names and
// values produce equal keys.
func ParamsKey(params map[string]any) (string, error) {
	names := slices.Collect(maps.Keys(params))
	slices.Sort(names)
	pairs := make([]any, 0, 2*len(names))
	for _, name := range names {
		pairs = append(pairs, name, params[name])
	}
	b, err := msgpack.Marshal(pairs)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

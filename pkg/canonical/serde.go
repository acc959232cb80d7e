package canonical

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Serde serializes canonical values.
type Serde interface {
	Serialize(v any) ([]byte, error)
	Deserialize(data []byte, v any) error
	Format() string
}

// MsgpackSerde writes structs as named MessagePack maps. Map keys are sorted and
// integers use the smallest encoding that fits.
type MsgpackSerde struct{}

func (MsgpackSerde) Format() string { return "msgpack" }

func (MsgpackSerde) Serialize(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	enc.UseCompactInts(true)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("msgpack serialization failed: %w", err)
	}
	return buf.Bytes(), nil
}

// Deserialize ignores unknown map keys.
func (MsgpackSerde) Deserialize(data []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("msgpack deserialization failed: %w", err)
	}
	return nil
}

type JSONSerde struct{}

func (JSONSerde) Format() string { return "json" }

func (JSONSerde) Serialize(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("json serialization failed: %w", err)
	}
	return data, nil
}

func (JSONSerde) Deserialize(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("json deserialization failed: %w", err)
	}
	return nil
}

// SerdeFor returns the serde registered under format.
func SerdeFor(format string) (Serde, error) {
	switch format {
	case "msgpack":
		return MsgpackSerde{}, nil
	case "json":
		return JSONSerde{}, nil
	}
	return nil, fmt.Errorf("unknown interchange format '%s'", format)
}

// Marshal encodes v with MsgpackSerde.
func Marshal(v any) ([]byte, error) {
	return MsgpackSerde{}.Serialize(v)
}

// Unmarshal decodes MessagePack data into v.
func Unmarshal(data []byte, v any) error {
	return MsgpackSerde{}.Deserialize(data, v)
}

// The library only sorts untyped maps, so the canonical maps write their own keys in order.

func (m SongScores) EncodeMsgpack(enc *msgpack.Encoder) error { return encodeSorted(enc, m) }
func (m SongMap) EncodeMsgpack(enc *msgpack.Encoder) error    { return encodeSorted(enc, m) }
func (m KeyMap) EncodeMsgpack(enc *msgpack.Encoder) error     { return encodeSorted(enc, m) }

func encodeSorted[V any](enc *msgpack.Encoder, m map[string]V) error {
	if err := enc.EncodeMapLen(len(m)); err != nil {
		return err
	}
	for _, k := range sortedKeys(m) {
		if err := enc.EncodeString(k); err != nil {
			return err
		}
		if err := enc.Encode(m[k]); err != nil {
			return err
		}
	}
	return nil
}

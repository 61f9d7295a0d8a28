package redstruct

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"slices"

	"github.com/vmihailenco/msgpack/v5"
	"google.golang.org/protobuf/proto"
)

// Codec encodes and decodes values for storage.
type Codec interface {
	// Marshal serializes v into bytes.
	Marshal(v any) ([]byte, error)
	// Unmarshal deserializes data into v (must be a pointer).
	Unmarshal(data []byte, v any) error
	// Name returns the codec identifier used for diagnostics.
	Name() string
}

var (
	// JSON encodes with encoding/json. It is the default codec.
	JSON Codec = jsonCodec{}
	// MsgPack encodes with msgpack, sorting map keys so equal values always
	// produce equal bytes.
	MsgPack Codec = msgpackCodec{}
	// Proto encodes proto.Message values in the protobuf wire format.
	Proto Codec = protoCodec{}
)

type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

type msgpackCodec struct{}

func (msgpackCodec) Name() string { return "msgpack" }

// Marshal only gets sorted output from SetSortMapKeys for a few string-keyed
// map types. Every other map is written in map iteration order, so the
// encoding is decoded into a generic tree and written again with the entries
// of every map ordered by their encoded key.
func (msgpackCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.GetEncoder()
	enc.Reset(&buf)
	err := enc.Encode(v)
	msgpack.PutEncoder(enc)
	if err != nil {
		return nil, err
	}

	dec := msgpack.GetDecoder()
	dec.Reset(bytes.NewReader(buf.Bytes()))
	dec.SetMapDecoder(func(d *msgpack.Decoder) (any, error) {
		return d.DecodeUntypedMap()
	})
	tree, err := dec.DecodeInterface()
	msgpack.PutDecoder(dec)
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	enc = msgpack.GetEncoder()
	enc.Reset(&out)
	err = encodeSorted(enc, tree)
	msgpack.PutEncoder(enc)
	if err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

type msgpackPair struct {
	key   []byte
	value any
}

func encodeSorted(enc *msgpack.Encoder, v any) error {
	switch v := v.(type) {
	case map[any]any:
		if v == nil {
			return enc.EncodeNil()
		}
		pairs := make([]msgpackPair, 0, len(v))
		for k, val := range v {
			key, err := msgpack.Marshal(k)
			if err != nil {
				return err
			}
			pairs = append(pairs, msgpackPair{key: key, value: val})
		}
		slices.SortFunc(pairs, func(a, b msgpackPair) int { return bytes.Compare(a.key, b.key) })
		if err := enc.EncodeMapLen(len(pairs)); err != nil {
			return err
		}
		for _, p := range pairs {
			if err := enc.Encode(msgpack.RawMessage(p.key)); err != nil {
				return err
			}
			if err := encodeSorted(enc, p.value); err != nil {
				return err
			}
		}
		return nil
	case []any:
		if v == nil {
			return enc.EncodeNil()
		}
		if err := enc.EncodeArrayLen(len(v)); err != nil {
			return err
		}
		for _, elem := range v {
			if err := encodeSorted(enc, elem); err != nil {
				return err
			}
		}
		return nil
	}
	return enc.Encode(v)
}

func (msgpackCodec) Unmarshal(data []byte, v any) error {
	dec := msgpack.GetDecoder()
	dec.Reset(bytes.NewReader(data))
	err := dec.Decode(v)
	msgpack.PutDecoder(dec)
	return err
}

type protoCodec struct{}

func (protoCodec) Name() string { return "proto" }

func (protoCodec) Marshal(v any) ([]byte, error) {
	m, ok := v.(proto.Message)
	if !ok {
		return nil, fmt.Errorf("%T is not a proto.Message", v)
	}
	return proto.Marshal(m)
}

// Unmarshal accepts either a proto.Message or a pointer to a nil message
// pointer, which it allocates.
func (protoCodec) Unmarshal(data []byte, v any) error {
	if m, ok := v.(proto.Message); ok {
		return proto.Unmarshal(data, m)
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("%T is not a pointer to a proto.Message", v)
	}
	elem := rv.Elem()
	if elem.Kind() == reflect.Pointer && elem.IsNil() {
		elem.Set(reflect.New(elem.Type().Elem()))
	}
	m, ok := elem.Interface().(proto.Message)
	if !ok {
		return fmt.Errorf("%T is not a pointer to a proto.Message", v)
	}
	return proto.Unmarshal(data, m)
}

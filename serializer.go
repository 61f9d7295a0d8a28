package redstruct

import (
	"fmt"
	"reflect"
	"strconv"
)

// serializer encodes the values of one structure. Its policy is fixed at
// construction: with serialization off, scalar kinds are stored as plain text
// and bypass the codec; every other type, and every value when serialization
// is on, goes through the codec.
type serializer[V any] struct {
	codec      Codec
	serialized bool
}

func newSerializer[V any](c config) serializer[V] {
	return serializer[V]{codec: c.codec, serialized: c.serialize}
}

func scalarKind(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	case reflect.Slice:
		return t.Elem().Kind() == reflect.Uint8
	}
	return false
}

func (s serializer[V]) encode(v V) ([]byte, error) {
	if !s.serialized {
		rv := reflect.ValueOf(any(v))
		if rv.IsValid() && scalarKind(rv.Type()) {
			return formatScalar(rv), nil
		}
	}
	data, err := s.codec.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s encode %T: %w", ErrSerialization, s.codec.Name(), v, err)
	}
	return data, nil
}

func (s serializer[V]) decode(data []byte) (V, error) {
	var v V
	if !s.serialized {
		t := reflect.TypeOf(&v).Elem()
		if t.Kind() == reflect.Interface {
			// Without type information raw payloads come back as text.
			if reflect.TypeOf("").AssignableTo(t) {
				reflect.ValueOf(&v).Elem().Set(reflect.ValueOf(string(data)))
				return v, nil
			}
		} else if scalarKind(t) {
			if err := parseScalar(data, reflect.ValueOf(&v).Elem()); err != nil {
				return v, fmt.Errorf("%w: parse %q as %v: %w", ErrSerialization, data, t, err)
			}
			return v, nil
		}
	}
	if err := s.codec.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("%w: %s decode %T: %w", ErrSerialization, s.codec.Name(), v, err)
	}
	return v, nil
}

func (s serializer[V]) encodeAll(values []V) ([][]byte, error) {
	out := make([][]byte, len(values))
	for i, v := range values {
		b, err := s.encode(v)
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}

func (s serializer[V]) decodeAll(data [][]byte) ([]V, error) {
	out := make([]V, len(data))
	for i, b := range data {
		v, err := s.decode(b)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func formatScalar(rv reflect.Value) []byte {
	switch rv.Kind() {
	case reflect.String:
		return []byte(rv.String())
	case reflect.Bool:
		return strconv.AppendBool(nil, rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.AppendInt(nil, rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.AppendUint(nil, rv.Uint(), 10)
	case reflect.Float32:
		return strconv.AppendFloat(nil, rv.Float(), 'g', -1, 32)
	case reflect.Float64:
		return strconv.AppendFloat(nil, rv.Float(), 'g', -1, 64)
	case reflect.Slice:
		return clone(rv.Bytes())
	}
	panic(fmt.Sprintf("redstruct: %v is not a scalar kind", rv.Kind()))
}

func parseScalar(data []byte, dst reflect.Value) error {
	s := string(data)
	switch dst.Kind() {
	case reflect.String:
		dst.SetString(s)
	case reflect.Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return err
		}
		dst.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(s, 10, dst.Type().Bits())
		if err != nil {
			return err
		}
		dst.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(s, 10, dst.Type().Bits())
		if err != nil {
			return err
		}
		dst.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(s, dst.Type().Bits())
		if err != nil {
			return err
		}
		dst.SetFloat(f)
	case reflect.Slice:
		dst.SetBytes(clone(data))
	}
	return nil
}

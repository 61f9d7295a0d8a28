package redstruct

import (
	"errors"
	"fmt"
	"strings"
)

// KeyError reports a failed lookup of a field, member or index within the
// structure stored at Key.
type KeyError struct {
	Key   string
	Field string
	Err   error
}

func notFound(key string, field any) error {
	return &KeyError{Key: key, Field: fmt.Sprint(field), Err: ErrNotFound}
}

func outOfRange(key string, index int64) error {
	return &KeyError{Key: key, Field: fmt.Sprint(index), Err: ErrOutOfRange}
}

// fieldError attaches the key and field to a type mismatch reported by the store.
func fieldError(key string, field any, err error) error {
	if errors.Is(err, ErrTypeMismatch) {
		return &KeyError{Key: key, Field: fmt.Sprint(field), Err: err}
	}
	return err
}

func (e *KeyError) Unwrap() error {
	return e.Err
}

func (e *KeyError) Error() string {
	var buf strings.Builder
	buf.WriteString(e.Key)
	if e.Field != "" {
		buf.WriteByte('/')
		buf.WriteString(e.Field)
	}
	if e.Err != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Err.Error())
	}
	return buf.String()
}

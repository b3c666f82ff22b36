// Package jsonmap decodes JSON objects while preserving member order.
//
// The Viki API drives several order-sensitive behaviors (first-match
// restriction reporting, locale fallback, format iteration), so maps decoded
// with encoding/json's randomized map ordering are not usable there.
package jsonmap

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Member is one key/value pair of a JSON object.
type Member struct {
	Key   string
	Value json.RawMessage
}

// Object is a JSON object with members in document order.
type Object []Member

// UnmarshalJSON decodes a JSON object, keeping member order. null decodes to
// an empty object.
func (o *Object) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*o = nil
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("jsonmap: expected object, got %v", tok)
	}

	var members []Member
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return errors.New("jsonmap: non-string object key")
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return err
		}
		members = append(members, Member{Key: key, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*o = members
	return nil
}

// Get returns the value of the first member with the given key.
func (o Object) Get(key string) (json.RawMessage, bool) {
	for _, m := range o {
		if m.Key == key {
			return m.Value, true
		}
	}
	return nil, false
}

// Has reports whether the object contains the given key.
func (o Object) Has(key string) bool {
	_, ok := o.Get(key)
	return ok
}

// Truthy reports whether a raw JSON value is truthy: true, a non-zero number,
// a non-empty string, or a non-empty object/array.
func Truthy(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return false
	}
	switch trimmed[0] {
	case 't':
		return true
	case 'f', 'n':
		return false
	case '"':
		return !bytes.Equal(trimmed, []byte(`""`))
	case '{':
		var obj Object
		if err := obj.UnmarshalJSON(trimmed); err != nil {
			return false
		}
		return len(obj) > 0
	case '[':
		var arr []json.RawMessage
		if err := json.Unmarshal(trimmed, &arr); err != nil {
			return false
		}
		return len(arr) > 0
	default:
		var num json.Number
		if err := json.Unmarshal(trimmed, &num); err != nil {
			return false
		}
		f, err := num.Float64()
		return err == nil && f != 0
	}
}

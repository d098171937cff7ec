package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
)

// Field is one JSON object member the model does not recognise.
type Field struct {
	Key   string
	Value json.RawMessage
}

// Extra keeps unrecognised members in the order they were read. They are
// written back after the known fields on serialization.
type Extra []Field

// Get returns the raw value stored under key.
func (e Extra) Get(key string) (json.RawMessage, bool) {
	for _, f := range e {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Set replaces the value under key, or appends it when absent.
func (e *Extra) Set(key string, value json.RawMessage) {
	for i := range *e {
		if (*e)[i].Key == key {
			(*e)[i].Value = value
			return
		}
	}
	*e = append(*e, Field{Key: key, Value: value})
}

// Delete removes key from the bag.
func (e *Extra) Delete(key string) {
	*e = slices.DeleteFunc(*e, func(f Field) bool { return f.Key == key })
}

func (e Extra) clone() Extra {
	if e == nil {
		return nil
	}
	out := make(Extra, len(e))
	for i, f := range e {
		out[i] = Field{Key: f.Key, Value: slices.Clone(f.Value)}
	}
	return out
}

// scanObject returns the members of a JSON object in document order, each
// value compacted.
func scanObject(data []byte) ([]Field, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected a JSON object")
	}

	var members []Field
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected an object key")
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return nil, err
		}
		members = append(members, Field{Key: key, Value: buf.Bytes()})
	}
	return members, nil
}

func hasMember(members []Field, key string) bool {
	for _, m := range members {
		if m.Key == key {
			return true
		}
	}
	return false
}

func requireMembers(members []Field, where string, keys ...string) error {
	for _, key := range keys {
		if !hasMember(members, key) {
			return schemaf("%s: missing required field %q", where, key)
		}
	}
	return nil
}

func unknownMembers(members []Field, known ...string) Extra {
	var extra Extra
	for _, m := range members {
		if slices.Contains(known, m.Key) {
			continue
		}
		extra = append(extra, m)
	}
	return extra
}

// decodeObject checks required members, decodes data into known (a pointer to
// a struct without custom JSON methods) and returns the unknown members.
func decodeObject(data []byte, where string, known any, required []string, knownKeys ...string) (Extra, error) {
	members, err := scanObject(data)
	if err != nil {
		return nil, schemaf("%s: %v", where, err)
	}
	if err := requireMembers(members, where, required...); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, known); err != nil {
		return nil, asSchemaError(err)
	}
	return unknownMembers(members, knownKeys...), nil
}

// encodeObject marshals known and splices the extra members in after it.
func encodeObject(known any, extra Extra) ([]byte, error) {
	data, err := marshalNoEscape(known)
	if err != nil {
		return nil, err
	}
	if len(extra) == 0 {
		return data, nil
	}

	var buf bytes.Buffer
	buf.Write(data[:len(data)-1])
	first := len(data) == 2
	for _, f := range extra {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		key, err := marshalNoEscape(f.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if len(f.Value) == 0 {
			buf.WriteString("null")
		} else {
			buf.Write(f.Value)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// marshalNoEscape encodes v without escaping <, > and &, which are common in
// diffs.
func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

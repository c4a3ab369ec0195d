package arm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"iter"
	"reflect"
	"slices"

	"github.com/vmihailenco/msgpack/v5"
)

// Data is an insertion-ordered mapping of column names to values.
// Overwriting an existing key keeps its position. The zero value is an
// empty mapping ready to use.
type Data struct {
	keys   []string
	values map[string]any
}

// NewData returns a Data holding the given alternating column/value pairs.
// It panics if given an odd number of arguments or a non-string column.
func NewData(pairs ...any) *Data {
	if len(pairs)%2 == 1 {
		panic("arm: NewData: odd argument count")
	}
	d := &Data{values: make(map[string]any, len(pairs)/2)}
	for i := 0; i < len(pairs); i += 2 {
		name, ok := pairs[i].(string)
		if !ok {
			panic(fmt.Sprintf("arm: NewData: column name %v is %T, not string", pairs[i], pairs[i]))
		}
		d.Set(name, pairs[i+1])
	}
	return d
}

// Len returns the number of columns.
func (d *Data) Len() int {
	if d == nil {
		return 0
	}
	return len(d.keys)
}

// Get returns the value of a column, or nil if it is not set.
func (d *Data) Get(name string) any {
	if d == nil {
		return nil
	}
	return d.values[name]
}

// Lookup returns the value of a column and whether the column is present.
func (d *Data) Lookup(name string) (any, bool) {
	if d == nil {
		return nil, false
	}
	v, ok := d.values[name]
	return v, ok
}

// Has reports whether the column is present and not nil.
func (d *Data) Has(name string) bool {
	v, ok := d.Lookup(name)
	return ok && v != nil
}

// Set assigns a column value.
func (d *Data) Set(name string, value any) *Data {
	if d.values == nil {
		d.values = make(map[string]any)
	}
	if _, ok := d.values[name]; !ok {
		d.keys = append(d.keys, name)
	}
	d.values[name] = value
	return d
}

// Delete removes a column.
func (d *Data) Delete(name string) {
	if _, ok := d.Lookup(name); !ok {
		return
	}
	delete(d.values, name)
	d.keys = slices.DeleteFunc(d.keys, func(k string) bool { return k == name })
}

// Keys returns the column names in insertion order.
func (d *Data) Keys() []string {
	if d == nil {
		return nil
	}
	return slices.Clone(d.keys)
}

// All returns an iterator over the columns in insertion order.
// The iterator can be consumed any number of times.
func (d *Data) All() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		if d == nil {
			return
		}
		for _, k := range d.keys {
			if !yield(k, d.values[k]) {
				return
			}
		}
	}
}

// Clone returns a shallow copy of d.
func (d *Data) Clone() *Data {
	c := NewData()
	for k, v := range d.All() {
		c.Set(k, v)
	}
	return c
}

// Equal reports whether d and o hold the same columns, in the same order,
// with deeply equal values.
func (d *Data) Equal(o *Data) bool {
	if d.Len() != o.Len() {
		return false
	}
	for i, k := range d.Keys() {
		if o.keys[i] != k || !reflect.DeepEqual(d.values[k], o.values[k]) {
			return false
		}
	}
	return true
}

// MarshalJSON encodes d as a JSON object, keeping the column order.
func (d *Data) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range d.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(d.values[k])
		if err != nil {
			return nil, fmt.Errorf("arm: marshal column %q: %w", k, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object into d, replacing its content and
// keeping the key order of the document. Integral numbers decode as int64,
// other numbers as float64.
func (d *Data) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("arm: unmarshal data: expect JSON object, got %v", tok)
	}
	out := NewData()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("arm: unmarshal data: unexpected token %v", tok)
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("arm: unmarshal column %q: %w", key, err)
		}
		out.Set(key, narrowNumber(v))
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*d = *out
	return nil
}

func narrowNumber(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n
}

var (
	_ msgpack.CustomEncoder = (*Data)(nil)
	_ msgpack.CustomDecoder = (*Data)(nil)
)

// EncodeMsgpack encodes d as a msgpack map, keeping the column order.
func (d *Data) EncodeMsgpack(enc *msgpack.Encoder) error {
	if err := enc.EncodeMapLen(d.Len()); err != nil {
		return err
	}
	for k, v := range d.All() {
		if err := enc.EncodeString(k); err != nil {
			return err
		}
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("arm: encode column %q: %w", k, err)
		}
	}
	return nil
}

// DecodeMsgpack decodes a msgpack map into d, replacing its content.
func (d *Data) DecodeMsgpack(dec *msgpack.Decoder) error {
	n, err := dec.DecodeMapLen()
	if err != nil {
		return err
	}
	out := NewData()
	for i := 0; i < n; i++ {
		k, err := dec.DecodeString()
		if err != nil {
			return err
		}
		v, err := dec.DecodeInterfaceLoose()
		if err != nil {
			return fmt.Errorf("arm: decode column %q: %w", k, err)
		}
		out.Set(k, v)
	}
	*d = *out
	return nil
}

package arm

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"iter"
	"maps"
	"reflect"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

// Record is a single row of a model: the model descriptor plus an ordered
// mapping of column values. A Record is not safe for concurrent use.
type Record struct {
	model *Model
	data  *Data
}

// Model returns the record model.
func (r *Record) Model() *Model { return r.model }

// Get returns the value of a column, or nil.
func (r *Record) Get(name string) any {
	return r.data.Get(name)
}

// Set assigns a column value.
func (r *Record) Set(name string, value any) *Record {
	r.data.Set(name, value)
	return r
}

// Has reports whether the column is set to a non-nil value.
func (r *Record) Has(name string) bool {
	return r.data.Has(name)
}

// Remove removes a column from the record.
func (r *Record) Remove(name string) {
	r.data.Delete(name)
}

// Data returns a copy of the record data.
func (r *Record) Data() *Data {
	return r.data.Clone()
}

// SetData replaces the record data with a copy of data.
func (r *Record) SetData(data *Data) {
	r.data = data.Clone()
}

// All returns an iterator over the record columns in insertion order.
func (r *Record) All() iter.Seq2[string, any] {
	return r.data.All()
}

// ID returns the identity value. For a composite identity it returns a
// *Data of every identity column and its value.
func (r *Record) ID() any {
	cols := r.model.idColumns
	if len(cols) == 1 {
		return r.data.Get(cols[0])
	}
	id := NewData()
	for _, c := range cols {
		id.Set(c, r.data.Get(c))
	}
	return id
}

// HasID reports whether every identity column holds a non-empty value.
func (r *Record) HasID() bool {
	for _, c := range r.model.idColumns {
		if isEmpty(r.data.Get(c)) {
			return false
		}
	}
	return true
}

// CopyDataFrom copies every column of src except the given ones into the
// record. src may be a *Data, a *Record, a map[string]any (copied in
// sorted key order) or an iter.Seq2[string, any].
func (r *Record) CopyDataFrom(src any, except ...string) error {
	var seq iter.Seq2[string, any]
	switch src := src.(type) {
	case *Data:
		seq = src.All()
	case *Record:
		seq = src.All()
	case map[string]any:
		seq = func(yield func(string, any) bool) {
			for _, k := range slices.Sorted(maps.Keys(src)) {
				if !yield(k, src[k]) {
					return
				}
			}
		}
	case iter.Seq2[string, any]:
		seq = src
	case func(func(string, any) bool):
		seq = src
	default:
		return fmt.Errorf("arm: copy data into %s: unsupported source %T", r.model.name, src)
	}
	for k, v := range seq {
		if !slices.Contains(except, k) {
			r.data.Set(k, v)
		}
	}
	return nil
}

// MarshalJSON encodes the record data as a JSON object.
func (r *Record) MarshalJSON() ([]byte, error) {
	return r.data.MarshalJSON()
}

// UnmarshalJSON replaces the record data with the decoded JSON object.
func (r *Record) UnmarshalJSON(b []byte) error {
	d := NewData()
	if err := d.UnmarshalJSON(b); err != nil {
		return err
	}
	r.data = d
	return nil
}

var (
	_ json.Marshaler        = (*Record)(nil)
	_ json.Unmarshaler      = (*Record)(nil)
	_ msgpack.CustomEncoder = (*Record)(nil)
	_ msgpack.CustomDecoder = (*Record)(nil)
)

// EncodeMsgpack encodes the record data as a msgpack map.
func (r *Record) EncodeMsgpack(enc *msgpack.Encoder) error {
	return r.data.EncodeMsgpack(enc)
}

// DecodeMsgpack replaces the record data with the decoded msgpack map.
func (r *Record) DecodeMsgpack(dec *msgpack.Decoder) error {
	d := NewData()
	if err := d.DecodeMsgpack(dec); err != nil {
		return err
	}
	r.data = d
	return nil
}

// isEmpty reports whether v can not act as an identity value.
func isEmpty(v any) bool {
	switch v := v.(type) {
	case nil:
		return true
	case string:
		return v == "" || v == "0"
	case []byte:
		return len(v) == 0
	case json.Number:
		return v == "" || v == "0"
	case uuid.UUID:
		return v == uuid.Nil
	case time.Time:
		return v.IsZero()
	case driver.Valuer:
		if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && rv.IsNil() {
			return true
		}
		dv, err := v.Value()
		if err != nil {
			return true
		}
		if _, again := dv.(driver.Valuer); again {
			return false
		}
		return isEmpty(dv)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer:
		return rv.IsNil() || isEmpty(rv.Elem().Interface())
	case reflect.String:
		return rv.String() == "" || rv.String() == "0"
	case reflect.Slice, reflect.Map:
		return rv.Len() == 0
	default:
		return rv.IsZero()
	}
}

// File: api/schemas/record.go
package schemas

import (
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Record maps field names to extracted values in declaration order.
// A nil value means the field could not be extracted.
type Record struct {
	keys   []string
	values map[string]*string
}

// NewRecord builds a record from parallel name and value slices.
func NewRecord(names []string, values []*string) Record {
	r := Record{
		keys:   make([]string, 0, len(names)),
		values: make(map[string]*string, len(names)),
	}
	for i, name := range names {
		var v *string
		if i < len(values) {
			v = values[i]
		}
		if _, exists := r.values[name]; !exists {
			r.keys = append(r.keys, name)
		}
		r.values[name] = v
	}
	return r
}

// Keys returns the field names in declaration order.
func (r Record) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Get returns the value for name and whether the field exists in the record.
func (r Record) Get(name string) (*string, bool) {
	v, ok := r.values[name]
	return v, ok
}

// Len returns the number of fields.
func (r Record) Len() int { return len(r.keys) }

// Map flattens the record into a plain map. Null values become nil interfaces.
func (r Record) Map() map[string]interface{} {
	m := make(map[string]interface{}, len(r.keys))
	for _, k := range r.keys {
		if v := r.values[k]; v != nil {
			m[k] = *v
		} else {
			m[k] = nil
		}
	}
	return m
}

// MarshalJSON writes fields in declaration order.
func (r Record) MarshalJSON() ([]byte, error) {
	stream := json.BorrowStream(nil)
	defer json.ReturnStream(stream)

	r.writeTo(stream)
	if stream.Error != nil {
		return nil, stream.Error
	}
	out := make([]byte, len(stream.Buffer()))
	copy(out, stream.Buffer())
	return out, nil
}

func (r Record) writeTo(stream *jsoniter.Stream) {
	stream.WriteObjectStart()
	for i, k := range r.keys {
		if i > 0 {
			stream.WriteMore()
		}
		stream.WriteObjectField(k)
		if v := r.values[k]; v != nil {
			stream.WriteString(*v)
		} else {
			stream.WriteNil()
		}
	}
	stream.WriteObjectEnd()
}

// Result is the outcome of a container extraction: exactly one record when a
// single container was processed, otherwise an ordered list.
type Result struct {
	records []Record
}

// NewResult wraps the records produced for each processed container.
func NewResult(records []Record) Result {
	return Result{records: records}
}

// Single returns the record when exactly one container was processed.
func (r Result) Single() (Record, bool) {
	if len(r.records) == 1 {
		return r.records[0], true
	}
	return Record{}, false
}

// Records returns every record regardless of shape.
func (r Result) Records() []Record {
	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}

// Value returns a Record for a single container and []Record otherwise.
func (r Result) Value() interface{} {
	if rec, ok := r.Single(); ok {
		return rec
	}
	return r.Records()
}

// MarshalJSON encodes a single record as an object and anything else as an array.
func (r Result) MarshalJSON() ([]byte, error) {
	stream := json.BorrowStream(nil)
	defer json.ReturnStream(stream)

	if rec, ok := r.Single(); ok {
		rec.writeTo(stream)
	} else {
		stream.WriteArrayStart()
		for i, rec := range r.records {
			if i > 0 {
				stream.WriteMore()
			}
			rec.writeTo(stream)
		}
		stream.WriteArrayEnd()
	}
	if stream.Error != nil {
		return nil, stream.Error
	}
	out := make([]byte, len(stream.Buffer()))
	copy(out, stream.Buffer())
	return out, nil
}

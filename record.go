package deta

import (
	"encoding/json"
	"time"

	"github.com/tidwall/gjson"
)

// KeyField is the record field the service treats as the unique
// identifier within a base.
const KeyField = "key"

// Record is a JSON document stored in a base: an open mapping from string
// keys to JSON-compatible values. The service imposes no schema beyond
// the unique "key" field, which it assigns on write when absent.
//
// Example:
//
//	rec := deta.Record{
//	    "key":  "user123",
//	    "name": "Ann",
//	    "age":  34,
//	}
//	_, err := base.Put(ctx, rec)
type Record map[string]interface{}

// Key returns the record's unique identifier, or "" if unset.
func (r Record) Key() string {
	key, _ := r[KeyField].(string)
	return key
}

// Has reports whether the field is present.
func (r Record) Has(field string) bool {
	_, ok := r[field]
	return ok
}

// String returns the field as a string, or "" if absent or not a string.
func (r Record) String(field string) string {
	s, _ := r[field].(string)
	return s
}

// Int returns the field as an int64. JSON numbers decode as float64, so
// the value is truncated toward zero. Returns 0 if absent or not numeric.
func (r Record) Int(field string) int64 {
	switch v := r[field].(type) {
	case float64:
		return int64(v)
	case int:
		return int64(v)
	case int64:
		return v
	case json.Number:
		n, _ := v.Int64()
		return n
	default:
		return 0
	}
}

// Float returns the field as a float64, or 0 if absent or not numeric.
func (r Record) Float(field string) float64 {
	switch v := r[field].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		f, _ := v.Float64()
		return f
	default:
		return 0
	}
}

// Bool returns the field as a bool, or false if absent or not a bool.
func (r Record) Bool(field string) bool {
	b, _ := r[field].(bool)
	return b
}

// Time returns the field parsed as an RFC 3339 timestamp, or the zero
// time if absent or unparseable.
func (r Record) Time(field string) time.Time {
	s, ok := r[field].(string)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Lookup resolves a nested path inside the record, e.g.
// "profile.address.city" or "likes.0". The record is marshaled once per
// call; for repeated flat access use the typed field getters instead.
//
// Example:
//
//	city := rec.Lookup("profile.address.city").String()
//	age := rec.Lookup("profile.age").Int()
func (r Record) Lookup(path string) gjson.Result {
	data, err := json.Marshal(r)
	if err != nil {
		return gjson.Result{}
	}
	return gjson.GetBytes(data, path)
}

// Decode unmarshals the record into dest, which must be a pointer.
// The "key" field participates like any other field; tag a struct field
// `json:"key"` to receive it.
func (r Record) Decode(dest interface{}) error {
	data, err := json.Marshal(r)
	if err != nil {
		return NewError(ErrorTypeDecode, "record is not serializable", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return NewError(ErrorTypeDecode, "failed to decode record", err)
	}
	return nil
}

// toRecord converts an arbitrary value to a Record. Values that do not
// serialize to a JSON object are wrapped as {"value": v}. A non-empty
// key is set on the result.
func toRecord(value interface{}, key string) (Record, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, NewError(ErrorTypeValidation, "value is not serializable", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		// not an object, wrap it
		var v interface{}
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, NewError(ErrorTypeValidation, "value is not valid JSON", err)
		}
		rec = Record{"value": v}
	}

	if key != "" {
		rec[KeyField] = key
	}
	return rec, nil
}

// PutResult reports the outcome of a batch put. The service may accept a
// subset of the batch; callers reconcile Failed themselves.
type PutResult struct {
	// Processed holds the records the service stored, with server-assigned
	// keys filled in.
	Processed []Record
	// Failed holds the records the service rejected.
	Failed []Record
}

// Keys returns the keys of the processed records, in service order.
func (pr *PutResult) Keys() []string {
	keys := make([]string, 0, len(pr.Processed))
	for _, rec := range pr.Processed {
		keys = append(keys, rec.Key())
	}
	return keys
}

// wire types for /items

type putRequest struct {
	Items []Record `json:"items"`
}

type itemGroup struct {
	Items []Record `json:"items"`
}

type putResponse struct {
	Processed *itemGroup `json:"processed,omitempty"`
	Failed    *itemGroup `json:"failed,omitempty"`
}

type insertRequest struct {
	Item Record `json:"item"`
}

package deta

import (
	"context"
	"encoding/json"
)

// TypedBase provides type-safe access to a base for a specific Go type.
// Struct values are stored field-for-field as record fields; any other
// type is wrapped as {"key": ..., "value": ...} and unwrapped on read.
//
// Example:
//
//	type User struct {
//	    Key   string `json:"key"`
//	    Name  string `json:"name"`
//	    Email string `json:"email"`
//	}
//
//	users := deta.NewTypedBase[User](client.Base("users"))
//	user, err := users.Get(ctx, "alice")
type TypedBase[T any] struct {
	base *Base
}

// NewTypedBase wraps a base with typed operations for T.
func NewTypedBase[T any](base *Base) *TypedBase[T] {
	return &TypedBase[T]{base: base}
}

// Base returns the underlying untyped base.
func (tb *TypedBase[T]) Base() *Base {
	return tb.base
}

// Get retrieves the record stored under key and decodes it into T.
func (tb *TypedBase[T]) Get(ctx context.Context, key string) (T, error) {
	var zero T

	record, err := tb.base.Get(ctx, key)
	if err != nil {
		return zero, err
	}

	return decodeRecord[T](record)
}

// Put stores value under key, overwriting any existing record. An empty
// key lets the service assign one; the assigned key is returned.
func (tb *TypedBase[T]) Put(ctx context.Context, key string, value T) (string, error) {
	record, err := toRecord(value, key)
	if err != nil {
		return "", err
	}

	result, err := tb.base.Put(ctx, record)
	if err != nil {
		return "", err
	}
	if len(result.Processed) == 0 {
		return "", NewError(ErrorTypeDecode, "put response contained no processed records", ErrInvalidResponse)
	}
	return result.Processed[0].Key(), nil
}

// Insert stores value under key only if the key is not already taken,
// returning the stored key.
func (tb *TypedBase[T]) Insert(ctx context.Context, key string, value T) (string, error) {
	record, err := toRecord(value, key)
	if err != nil {
		return "", err
	}
	return tb.base.Insert(ctx, record)
}

// Update applies a partial update to the record stored under key.
func (tb *TypedBase[T]) Update(ctx context.Context, key string, update *Update) error {
	return tb.base.Update(ctx, key, update)
}

// Delete removes the record stored under key.
func (tb *TypedBase[T]) Delete(ctx context.Context, key string) error {
	return tb.base.Delete(ctx, key)
}

// Fetch runs a query and decodes each record of the page into T.
func (tb *TypedBase[T]) Fetch(ctx context.Context, query Query, opts *FetchOptions) ([]T, string, error) {
	page, err := tb.base.Fetch(ctx, query, opts)
	if err != nil {
		return nil, "", err
	}

	values := make([]T, 0, len(page.Items))
	for _, record := range page.Items {
		value, err := decodeRecord[T](record)
		if err != nil {
			return nil, "", err
		}
		values = append(values, value)
	}
	return values, page.Last, nil
}

// GetAs retrieves the record stored under key and decodes it into T
// without constructing a TypedBase.
func GetAs[T any](ctx context.Context, base *Base, key string) (T, error) {
	return NewTypedBase[T](base).Get(ctx, key)
}

// decodeRecord decodes a record into T. Records of the wrapped form
// {"key": ..., "value": ...} produced by storing non-object values are
// unwrapped first.
func decodeRecord[T any](record Record) (T, error) {
	var zero T

	source := interface{}(record)
	if len(record) == 2 && record.Has(KeyField) && record.Has("value") {
		source = record["value"]
	}

	data, err := json.Marshal(source)
	if err != nil {
		return zero, NewError(ErrorTypeDecode, "failed to re-encode record", err)
	}
	if err := json.Unmarshal(data, &zero); err != nil {
		return zero, NewError(ErrorTypeDecode, "failed to decode record into target type", ErrInvalidResponse)
	}
	return zero, nil
}

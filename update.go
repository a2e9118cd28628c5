package deta

// Update describes a partial update to a stored record. Operations
// accumulate in the builder and are applied atomically by the service.
//
// Example:
//
//	err := base.Update(ctx, "user-a", deta.NewUpdate().
//	    Set("profile.age", 33).
//	    Set("profile.active", true).
//	    Increment("purchases", 2).
//	    Append("likes", "ramen").
//	    Prepend("likes", "noodles").
//	    Delete("profile.hometown"))
type Update struct {
	set       map[string]interface{}
	increment map[string]interface{}
	append    map[string][]interface{}
	prepend   map[string][]interface{}
	delete    []string
}

// NewUpdate creates an empty update builder.
func NewUpdate() *Update {
	return &Update{
		set:       make(map[string]interface{}),
		increment: make(map[string]interface{}),
		append:    make(map[string][]interface{}),
		prepend:   make(map[string][]interface{}),
	}
}

// Set assigns a new value to a field. Nested fields use dotted paths.
// Values keep their JSON types; numbers stay numbers, booleans stay
// booleans.
func (u *Update) Set(field string, value interface{}) *Update {
	u.set[field] = value
	return u
}

// Increment adds a numeric delta to a field. Negative deltas decrement.
func (u *Update) Increment(field string, by interface{}) *Update {
	u.increment[field] = by
	return u
}

// Append appends values to the end of a list field.
func (u *Update) Append(field string, values ...interface{}) *Update {
	u.append[field] = append(u.append[field], values...)
	return u
}

// Prepend inserts values at the front of a list field.
func (u *Update) Prepend(field string, values ...interface{}) *Update {
	u.prepend[field] = append(u.prepend[field], values...)
	return u
}

// Delete removes fields from the record.
func (u *Update) Delete(fields ...string) *Update {
	u.delete = append(u.delete, fields...)
	return u
}

// IsEmpty reports whether the update contains no operations.
func (u *Update) IsEmpty() bool {
	return len(u.set) == 0 && len(u.increment) == 0 &&
		len(u.append) == 0 && len(u.prepend) == 0 && len(u.delete) == 0
}

// payload produces the PATCH wire shape.
func (u *Update) payload() updatePayload {
	return updatePayload{
		Set:       u.set,
		Increment: u.increment,
		Append:    u.append,
		Prepend:   u.prepend,
		Delete:    u.delete,
	}
}

type updatePayload struct {
	Set       map[string]interface{}   `json:"set,omitempty"`
	Increment map[string]interface{}   `json:"increment,omitempty"`
	Append    map[string][]interface{} `json:"append,omitempty"`
	Prepend   map[string][]interface{} `json:"prepend,omitempty"`
	Delete    []string                 `json:"delete,omitempty"`
}

package deta

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateIsEmpty(t *testing.T) {
	assert.True(t, NewUpdate().IsEmpty())
	assert.False(t, NewUpdate().Set("a", 1).IsEmpty())
	assert.False(t, NewUpdate().Increment("a", 1).IsEmpty())
	assert.False(t, NewUpdate().Append("a", 1).IsEmpty())
	assert.False(t, NewUpdate().Prepend("a", 1).IsEmpty())
	assert.False(t, NewUpdate().Delete("a").IsEmpty())
}

func TestUpdatePayloadShape(t *testing.T) {
	update := NewUpdate().
		Set("profile.age", 33).
		Set("profile.active", true).
		Increment("purchases", 2).
		Append("likes", "ramen").
		Prepend("likes", "noodles").
		Delete("profile.hometown")

	data, err := json.Marshal(update.payload())
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &got))

	want := map[string]interface{}{
		"set": map[string]interface{}{
			"profile.age":    float64(33),
			"profile.active": true,
		},
		"increment": map[string]interface{}{
			"purchases": float64(2),
		},
		"append": map[string]interface{}{
			"likes": []interface{}{"ramen"},
		},
		"prepend": map[string]interface{}{
			"likes": []interface{}{"noodles"},
		},
		"delete": []interface{}{"profile.hometown"},
	}
	assert.Equal(t, want, got)
}

func TestUpdatePayloadOmitsEmptyOperations(t *testing.T) {
	update := NewUpdate().Set("name", "Ann")

	data, err := json.Marshal(update.payload())
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &got))

	assert.Contains(t, got, "set")
	assert.NotContains(t, got, "increment")
	assert.NotContains(t, got, "append")
	assert.NotContains(t, got, "prepend")
	assert.NotContains(t, got, "delete")
}

// Values must keep their JSON types on the wire: a numeric set stays a
// number, a boolean stays a boolean.
func TestUpdateValuesKeepNativeTypes(t *testing.T) {
	update := NewUpdate().
		Set("count", 7).
		Set("ratio", 0.5).
		Set("flag", false).
		Set("tags", []string{"a", "b"}).
		Increment("visits", -3)

	data, err := json.Marshal(update.payload())
	require.NoError(t, err)

	js := string(data)
	assert.Contains(t, js, `"count":7`)
	assert.Contains(t, js, `"ratio":0.5`)
	assert.Contains(t, js, `"flag":false`)
	assert.Contains(t, js, `"tags":["a","b"]`)
	assert.Contains(t, js, `"visits":-3`)
	assert.NotContains(t, js, `"7"`)
	assert.NotContains(t, js, `"false"`)
}

func TestUpdateAppendAccumulates(t *testing.T) {
	update := NewUpdate().
		Append("likes", "a").
		Append("likes", "b", "c")

	payload := update.payload()
	assert.Equal(t, []interface{}{"a", "b", "c"}, payload.Append["likes"])
}

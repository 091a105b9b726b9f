package mcp

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeArgs(t *testing.T) {
	args, err := DecodeArgs(json.RawMessage(`{"action":"list","projectId":7}`))
	require.NoError(t, err)
	action, err := args.Action()
	require.NoError(t, err)
	assert.Equal(t, "list", action)

	// Empty input decodes to an empty map, not an error.
	args, err = DecodeArgs(nil)
	require.NoError(t, err)
	assert.Empty(t, args)

	args, err = DecodeArgs(json.RawMessage(`null`))
	require.NoError(t, err)
	assert.NotNil(t, args)

	_, err = DecodeArgs(json.RawMessage(`[1,2]`))
	require.Error(t, err)
	assert.Equal(t, ErrInvalidParams, AsDomainError(err).Code)
}

func TestInt64RejectsFractionsAndStrings(t *testing.T) {
	args := Args{"good": float64(42), "frac": 1.5, "str": "42"}

	v, err := args.Int64("good", "42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)

	_, err = args.Int64("frac", "42")
	assert.Error(t, err)
	_, err = args.Int64("str", "42")
	assert.Error(t, err)
	_, err = args.Int64("absent", "42")
	assert.Error(t, err)
}

func TestOptionalInt64ThreeStates(t *testing.T) {
	args := Args{"present": float64(7), "wrong": "seven"}

	v, ok, err := args.OptionalInt64("present")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(7), v)

	_, ok, err = args.OptionalInt64("absent")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = args.OptionalInt64("wrong")
	assert.Error(t, err)
}

func TestDataAndRequireData(t *testing.T) {
	args := Args{"data": map[string]interface{}{"name": "x"}}
	assert.Equal(t, "x", args.Data().OptionalString("name"))

	empty := Args{}
	assert.Empty(t, empty.Data())
	_, err := empty.RequireData()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"data"`)
}

func TestSliceExtraction(t *testing.T) {
	args := Args{
		"ids":   []interface{}{float64(1), float64(2)},
		"names": []interface{}{"a", "b"},
		"items": []interface{}{map[string]interface{}{"title": "x"}},
		"mixed": []interface{}{"a", float64(1)},
	}

	ids, err := args.Int64Slice("ids")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids)

	names, err := args.StringSlice("names")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)

	items, err := args.ObjectSlice("items")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "x", items[0].OptionalString("title"))

	_, err = args.Int64Slice("mixed")
	assert.Error(t, err)
	_, err = args.StringSlice("mixed")
	assert.Error(t, err)

	// Absent slices are nil without error.
	ids, err = args.Int64Slice("absent")
	require.NoError(t, err)
	assert.Nil(t, ids)
}

func TestSizeOf(t *testing.T) {
	assert.Equal(t, len(`{"a":1}`), SizeOf(map[string]int{"a": 1}))
	assert.Equal(t, 0, SizeOf(func() {}))
}

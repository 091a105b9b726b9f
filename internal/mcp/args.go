package mcp

import (
	"encoding/json"
)

// Args is a decoded tools/call arguments object. Extraction helpers
// return MissingFieldError so every tool reports absent fields the
// same way.
type Args map[string]interface{}

// DecodeArgs parses raw tool arguments.
func DecodeArgs(raw json.RawMessage) (Args, error) {
	if len(raw) == 0 {
		return Args{}, nil
	}
	var a Args
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, NewDomainError(ErrInvalidParams, "arguments must be a JSON object: %v", err)
	}
	if a == nil {
		a = Args{}
	}
	return a, nil
}

// Action extracts the required action discriminator.
func (a Args) Action() (string, error) {
	s, ok := a["action"].(string)
	if !ok || s == "" {
		return "", MissingFieldError("action", "string", `"list"`)
	}
	return s, nil
}

// Data returns the nested data object, or an empty Args when absent.
func (a Args) Data() Args {
	if d, ok := a["data"].(map[string]interface{}); ok {
		return Args(d)
	}
	return Args{}
}

// RequireData returns the nested data object or an error naming it.
func (a Args) RequireData() (Args, error) {
	d, ok := a["data"].(map[string]interface{})
	if !ok {
		return nil, MissingFieldError("data", "object", `{"name": "My Project"}`)
	}
	return Args(d), nil
}

// Int64 extracts a required integer field. JSON numbers decode as
// float64; integral strings are rejected.
func (a Args) Int64(field, example string) (int64, error) {
	v, ok := a[field]
	if !ok {
		return 0, MissingFieldError(field, "number", example)
	}
	f, ok := v.(float64)
	if !ok || f != float64(int64(f)) {
		return 0, MissingFieldError(field, "number", example)
	}
	return int64(f), nil
}

// OptionalInt64 extracts an integer field, returning ok=false when
// absent and an error only when present but mistyped.
func (a Args) OptionalInt64(field string) (int64, bool, error) {
	v, ok := a[field]
	if !ok || v == nil {
		return 0, false, nil
	}
	f, isNum := v.(float64)
	if !isNum || f != float64(int64(f)) {
		return 0, false, MissingFieldError(field, "number", "42")
	}
	return int64(f), true, nil
}

// String extracts a required string field.
func (a Args) String(field, example string) (string, error) {
	s, ok := a[field].(string)
	if !ok || s == "" {
		return "", MissingFieldError(field, "string", example)
	}
	return s, nil
}

// OptionalString extracts a string field, empty when absent.
func (a Args) OptionalString(field string) string {
	s, _ := a[field].(string)
	return s
}

// OptionalBool extracts a boolean field, false when absent.
func (a Args) OptionalBool(field string) bool {
	b, _ := a[field].(bool)
	return b
}

// OptionalInt extracts an int field with a default.
func (a Args) OptionalInt(field string, def int) int {
	if f, ok := a[field].(float64); ok {
		return int(f)
	}
	return def
}

// Int64Slice extracts an optional array of integers.
func (a Args) Int64Slice(field string) ([]int64, error) {
	v, ok := a[field]
	if !ok || v == nil {
		return nil, nil
	}
	raw, ok := v.([]interface{})
	if !ok {
		return nil, MissingFieldError(field, "number array", "[1, 2, 3]")
	}
	out := make([]int64, 0, len(raw))
	for _, e := range raw {
		f, ok := e.(float64)
		if !ok {
			return nil, MissingFieldError(field, "number array", "[1, 2, 3]")
		}
		out = append(out, int64(f))
	}
	return out, nil
}

// StringSlice extracts an optional array of strings.
func (a Args) StringSlice(field string) ([]string, error) {
	v, ok := a[field]
	if !ok || v == nil {
		return nil, nil
	}
	raw, ok := v.([]interface{})
	if !ok {
		return nil, MissingFieldError(field, "string array", `["a", "b"]`)
	}
	out := make([]string, 0, len(raw))
	for _, e := range raw {
		s, ok := e.(string)
		if !ok {
			return nil, MissingFieldError(field, "string array", `["a", "b"]`)
		}
		out = append(out, s)
	}
	return out, nil
}

// ObjectSlice extracts an optional array of objects, used by batch
// operations.
func (a Args) ObjectSlice(field string) ([]Args, error) {
	v, ok := a[field]
	if !ok || v == nil {
		return nil, nil
	}
	raw, ok := v.([]interface{})
	if !ok {
		return nil, MissingFieldError(field, "object array", `[{"title": "Fix bug"}]`)
	}
	out := make([]Args, 0, len(raw))
	for i, e := range raw {
		m, ok := e.(map[string]interface{})
		if !ok {
			return nil, NewDomainError(ErrInvalidParams,
				"field %q element %d must be an object", field, i)
		}
		out = append(out, Args(m))
	}
	return out, nil
}

// SizeOf returns the serialized byte length of v, used for the
// ToolExecution input/output size accounting.
func SizeOf(v interface{}) int {
	data, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	return len(data)
}

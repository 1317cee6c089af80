// Package casing rewrites the keys of decoded JSON documents between snake_case and camelCase.
package casing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
)

// KeyFunc maps a single object key.
type KeyFunc func(string) string

// SnakeKey converts "studentGroup" to "student_group". Keys already in snake case are unchanged.
func SnakeKey(key string) string {
	var b strings.Builder
	b.Grow(len(key) + 4)
	for _, r := range key {
		if unicode.IsUpper(r) {
			b.WriteByte('_')
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// CamelKey converts "student_group" to "studentGroup". Only an underscore followed by a lowercase letter is folded.
func CamelKey(key string) string {
	runes := []rune(key)
	var b strings.Builder
	b.Grow(len(key))
	for i := 0; i < len(runes); i++ {
		if runes[i] == '_' && i+1 < len(runes) && unicode.IsLower(runes[i+1]) {
			b.WriteRune(unicode.ToUpper(runes[i+1]))
			i++
			continue
		}
		b.WriteRune(runes[i])
	}
	return b.String()
}

// Transform walks maps and slices at any depth applying fn to every object key. Values are never changed.
func Transform(v interface{}, fn KeyFunc) interface{} {
	switch typed := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(typed))
		for key, value := range typed {
			out[fn(key)] = Transform(value, fn)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(typed))
		for i, value := range typed {
			out[i] = Transform(value, fn)
		}
		return out
	default:
		return v
	}
}

// ToSnake rewrites every key in v to snake_case.
func ToSnake(v interface{}) interface{} {
	return Transform(v, SnakeKey)
}

// ToCamel rewrites every key in v to camelCase.
func ToCamel(v interface{}) interface{} {
	return Transform(v, CamelKey)
}

// TransformJSON decodes a JSON document, rewrites its keys and encodes it again.
// Numbers keep their original textual form.
func TransformJSON(data []byte, fn KeyFunc) ([]byte, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return data, nil
	}
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	var doc interface{}
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	out, err := json.Marshal(Transform(doc, fn))
	if err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	return out, nil
}

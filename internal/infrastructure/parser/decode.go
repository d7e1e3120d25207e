package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// DecodeJSON reads a JSON array of objects. Numbers are kept as
// json.Number so that decimal amounts are not rounded through float64.
func DecodeJSON(r io.Reader) ([]map[string]any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, &FieldError{Row: -1, Code: ErrCodeNotAnArray, Message: fmt.Sprintf("invalid JSON: %v", err)}
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, &FieldError{Row: -1, Code: ErrCodeNotAnArray, Message: fmt.Sprintf("expected a JSON array, got %T", raw)}
	}

	out := make([]map[string]any, 0, len(list))
	for i, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fieldError(i, "", ErrCodeNotAnArray, "expected an object, got %T", item)
		}
		out = append(out, obj)
	}
	return out, nil
}

// Load reads records or rules from a file body. CSV is detected by the
// name suffix, JSON otherwise.
func Load(name string, body []byte) ([]map[string]any, error) {
	if strings.EqualFold(filepath.Ext(name), ".csv") {
		return ReadCSV(bytes.NewReader(body))
	}
	return DecodeJSON(bytes.NewReader(body))
}

package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

type jsonParser struct{}

func (jsonParser) Format() Format { return FormatJSON }

func (jsonParser) CanParse(filename, contentType string) bool {
	return strings.HasSuffix(strings.ToLower(filename), ".json") || contentType == "application/json"
}

// Parse accepts a JSON array of non-null objects. Anything else decodes to
// zero records with a warning rather than an error.
func (jsonParser) Parse(content []byte, _ Options) (*Result, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(content, &items); err != nil {
		return &Result{Warnings: []string{fmt.Sprintf("invalid JSON input: %v", err)}}, nil
	}
	res := &Result{Records: make([]Record, 0, len(items))}
	for i, raw := range items {
		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) == 0 || trimmed[0] != '{' {
			return &Result{Warnings: []string{fmt.Sprintf("element %d is not an object", i)}}, nil
		}
		rec, keys, err := decodeObject(trimmed)
		if err != nil {
			return &Result{Warnings: []string{fmt.Sprintf("element %d: %v", i, err)}}, nil
		}
		if i == 0 {
			res.Columns = keys
		}
		res.Records = append(res.Records, rec)
	}
	return res, nil
}

// decodeObject converts one flat object into a Record, returning its keys in
// document order.
func decodeObject(raw []byte) (Record, []string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if _, err := dec.Token(); err != nil {
		return nil, nil, err
	}
	rec := Record{}
	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("unexpected token %v", tok)
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, nil, err
		}
		if _, dup := rec[key]; !dup {
			keys = append(keys, key)
		}
		rec[key] = jsonValue(v)
	}
	return rec, keys, nil
}

func jsonValue(v any) Value {
	switch t := v.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(t)
	case string:
		return String(t)
	case json.Number:
		f, err := t.Float64()
		if err != nil && !math.IsInf(f, 0) {
			return String(t.String())
		}
		return Number(f)
	default:
		// nested arrays/objects are kept as compact JSON text
		b, err := json.Marshal(t)
		if err != nil {
			return Null()
		}
		return String(string(b))
	}
}

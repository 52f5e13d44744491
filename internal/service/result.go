package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// SideMeasurement is the analysis of one side: named scalar fields plus the
// normalized area profile. A malformed profile leaves SNorm and ANorm empty
// and is reported in ProfileErr; the scalar fields are still usable.
type SideMeasurement struct {
	Fields     map[string]any
	SNorm      []float64
	ANorm      []float64
	ProfileErr error
}

// Comparison holds the difference fields derived from both sides
type Comparison struct {
	Fields map[string]any
}

// Result is one successful analysis. It is never modified after decoding.
type Result struct {
	Right      SideMeasurement
	Left       SideMeasurement
	Comparison Comparison
}

// Float returns a numeric field
func (m SideMeasurement) Float(key string) (float64, bool) {
	return toFloat(m.Fields[key])
}

// UnmarshalJSON splits the profile sequences from the scalar fields
func (m *SideMeasurement) UnmarshalJSON(data []byte) error {
	fields, err := decodeObject(data)
	if err != nil {
		return err
	}

	s, sErr := takeSequence(fields, "s_norm")
	a, aErr := takeSequence(fields, "a_norm")

	m.Fields = fields
	switch {
	case sErr != nil:
		m.ProfileErr = sErr
	case aErr != nil:
		m.ProfileErr = aErr
	default:
		m.SNorm = s
		m.ANorm = a
	}
	return nil
}

// UnmarshalJSON decodes the comparison fields
func (c *Comparison) UnmarshalJSON(data []byte) error {
	fields, err := decodeObject(data)
	if err != nil {
		return err
	}
	c.Fields = fields
	return nil
}

// wireResult is the response body; error is set on failure
type wireResult struct {
	Right      *SideMeasurement `json:"right"`
	Left       *SideMeasurement `json:"left"`
	Comparison *Comparison      `json:"comparison"`
	Error      string           `json:"error"`
}

// decodeResult parses a successful response body
func decodeResult(body []byte) (*Result, string, error) {
	var wire wireResult
	if err := json.Unmarshal(body, &wire); err != nil {
		var payloadErr *PayloadError
		if errors.As(err, &payloadErr) {
			return nil, "", payloadErr
		}
		return nil, "", &PayloadError{Field: "body", Err: err}
	}
	if wire.Right == nil || wire.Left == nil {
		if wire.Error != "" {
			return nil, wire.Error, nil
		}
		missing := "right"
		if wire.Right != nil {
			missing = "left"
		}
		return nil, "", &PayloadError{Field: missing, Err: errMissing}
	}

	res := &Result{Right: *wire.Right, Left: *wire.Left}
	if wire.Comparison != nil {
		res.Comparison = *wire.Comparison
	} else {
		res.Comparison = Comparison{Fields: map[string]any{}}
	}
	return res, "", nil
}

func decodeObject(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}
	if fields == nil {
		fields = map[string]any{}
	}
	return fields, nil
}

// takeSequence removes key from fields and returns it as numbers. A missing
// key is an empty sequence.
func takeSequence(fields map[string]any, key string) ([]float64, error) {
	raw, ok := fields[key]
	if !ok || raw == nil {
		delete(fields, key)
		return nil, nil
	}
	delete(fields, key)

	items, ok := raw.([]any)
	if !ok {
		return nil, &PayloadError{Field: key, Err: fmt.Errorf("expected array, got %T", raw)}
	}
	out := make([]float64, len(items))
	for i, item := range items {
		v, ok := toFloat(item)
		if !ok {
			return nil, &PayloadError{Field: key, Err: fmt.Errorf("element %d is %T", i, item)}
		}
		out[i] = v
	}
	return out, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

package client

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Payload is the normalized shape of a successful response. The upstream
// API answers with a bare JSON array, a single object, or a {data, meta}
// envelope; normalization happens once here so downstream components
// never branch on transport-level shape quirks.
type Payload struct {
	// NoContent marks a 204 response. Distinct from a parsed JSON null.
	NoContent bool

	// Object holds a single-object response body.
	Object json.RawMessage

	// Items holds the elements of an array or enveloped response.
	Items []json.RawMessage

	// Total is the upstream's reported total item count when the response
	// carried pagination metadata. Valid only if TotalKnown is true.
	Total      int
	TotalKnown bool
}

// envelope is the {data, meta} wrapper some endpoints use.
type envelope struct {
	Data []json.RawMessage `json:"data"`
	Meta *struct {
		TotalCount int `json:"total_count"`
	} `json:"meta"`
}

// normalizePayload converts a raw response body into a Payload.
func normalizePayload(body []byte) (*Payload, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return &Payload{NoContent: true}, nil
	}

	switch trimmed[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("decode array response: %w", err)
		}
		return &Payload{Items: items}, nil
	case '{':
		var env envelope
		if err := json.Unmarshal(trimmed, &env); err == nil && env.Data != nil {
			p := &Payload{Items: env.Data}
			if env.Meta != nil {
				p.Total = env.Meta.TotalCount
				p.TotalKnown = true
			}
			return p, nil
		}
		var obj json.RawMessage
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return nil, fmt.Errorf("decode object response: %w", err)
		}
		return &Payload{Object: obj}, nil
	default:
		// Scalar bodies (null, numbers) are treated as a single object.
		var obj json.RawMessage
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		return &Payload{Object: obj}, nil
	}
}

// Decode unmarshals a single-object payload into v.
func (p *Payload) Decode(v any) error {
	if p.NoContent {
		return fmt.Errorf("decode: response had no content")
	}
	if p.Object == nil {
		return fmt.Errorf("decode: response is not a single object (%d items)", len(p.Items))
	}
	return json.Unmarshal(p.Object, v)
}

// DecodeItems unmarshals an array payload into a slice pointed to by v.
func (p *Payload) DecodeItems(v any) error {
	if p.NoContent {
		return fmt.Errorf("decode items: response had no content")
	}
	raw, err := json.Marshal(p.Items)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

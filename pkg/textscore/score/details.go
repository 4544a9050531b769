package score

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Details holds per-category results in mapping order. It encodes as a JSON
// object keyed by category name, keeping that order.
type Details []CategoryScore

// Hits holds keyword counts in mapping order. It encodes as a JSON object
// keyed by keyword.
type Hits []Hit

type categoryJSON struct {
	Score float64 `json:"score"`
	Hits  Hits    `json:"hits"`
}

// MarshalJSON implements json.Marshaler.
func (d Details) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range d {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeKey(&buf, c.Name); err != nil {
			return nil, err
		}
		total, err := json.Marshal(c.Score)
		if err != nil {
			return nil, fmt.Errorf("category %q: %w", c.Name, err)
		}
		hits, err := c.Hits.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.WriteString(`{"score":`)
		buf.Write(total)
		buf.WriteString(`,"hits":`)
		buf.Write(hits)
		buf.WriteByte('}')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler, keeping key order.
func (d *Details) UnmarshalJSON(data []byte) error {
	out := Details{}
	err := decodeObject(data, func(key string, raw json.RawMessage) error {
		var c categoryJSON
		if err := json.Unmarshal(raw, &c); err != nil {
			return fmt.Errorf("category %q: %w", key, err)
		}
		if c.Hits == nil {
			c.Hits = Hits{}
		}
		out = append(out, CategoryScore{Name: key, Score: c.Score, Hits: c.Hits})
		return nil
	})
	if err != nil {
		return err
	}
	*d = out
	return nil
}

// MarshalJSON implements json.Marshaler.
func (h Hits) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, hit := range h {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeKey(&buf, hit.Keyword); err != nil {
			return nil, err
		}
		fmt.Fprintf(&buf, "%d", hit.Count)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler, keeping key order.
func (h *Hits) UnmarshalJSON(data []byte) error {
	out := Hits{}
	err := decodeObject(data, func(key string, raw json.RawMessage) error {
		var n int
		if err := json.Unmarshal(raw, &n); err != nil {
			return fmt.Errorf("hit %q: %w", key, err)
		}
		out = append(out, Hit{Keyword: key, Count: n})
		return nil
	})
	if err != nil {
		return err
	}
	*h = out
	return nil
}

// writeKey writes a JSON object key without HTML escaping, followed by ':'.
func writeKey(buf *bytes.Buffer, key string) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(key); err != nil {
		return err
	}
	// Encode appends a newline
	buf.Truncate(buf.Len() - 1)
	buf.WriteByte(':')
	return nil
}

// decodeObject walks a JSON object in key order. null decodes as empty.
func decodeObject(data []byte, fn func(key string, raw json.RawMessage) error) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected JSON object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		if err := fn(key, raw); err != nil {
			return err
		}
	}
	_, err = dec.Token()
	return err
}

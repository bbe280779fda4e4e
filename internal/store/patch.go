package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/DoyleJ11/partybox-charades/internal/engine"
)

// Patch holds top-level record fields by their JSON name. A JSON null clears a field.
type Patch map[string]json.RawMessage

func fields(r engine.Room) (map[string]json.RawMessage, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal room: %w", err)
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("split room fields: %w", err)
	}
	return m, nil
}

// Diff returns only the fields that differ between prev and next.
func Diff(prev, next engine.Room) (Patch, error) {
	before, err := fields(prev)
	if err != nil {
		return nil, err
	}
	after, err := fields(next)
	if err != nil {
		return nil, err
	}

	p := Patch{}
	for k, v := range after {
		if old, ok := before[k]; !ok || !bytes.Equal(old, v) {
			p[k] = v
		}
	}
	for k := range before {
		if _, ok := after[k]; !ok {
			p[k] = json.RawMessage("null")
		}
	}
	return p, nil
}

// Merge overlays p onto a stored JSON document.
func Merge(doc []byte, p Patch) ([]byte, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	if m == nil {
		m = map[string]json.RawMessage{}
	}
	for k, v := range p {
		m[k] = v
	}
	out, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return out, nil
}

func Encode(r engine.Room) ([]byte, error) {
	return json.Marshal(r)
}

func Decode(doc []byte) (*engine.Room, error) {
	var r engine.Room
	if err := json.Unmarshal(doc, &r); err != nil {
		return nil, fmt.Errorf("decode room: %w", err)
	}
	return &r, nil
}

// Fields lists the patched field names, for logging.
func (p Patch) Fields() []string {
	out := make([]string, 0, len(p))
	for k := range p {
		out = append(out, k)
	}
	return out
}

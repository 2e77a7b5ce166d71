package presence

import (
	"encoding/json"
	"fmt"
	"time"
)

// Record is one participant's presence entry. A participant key may carry
// several records (one per tab or device).
type Record struct {
	Key      string         `json:"key"`
	Meta     map[string]any `json:"meta,omitempty"`
	Location string         `json:"location,omitempty"`
	JoinedAt time.Time      `json:"joined_at"`
}

// frameKind discriminates the presence frame union.
type frameKind int

const (
	kindSync frameKind = iota
	kindJoin
	kindLeave
)

// frame is a decoded presence payload. Exactly the fields for its kind are
// populated; everything else stays zero.
type frame struct {
	kind    frameKind
	state   map[string][]Record // sync
	key     string              // join, leave
	records []Record            // join
}

// decodeFrame turns a raw presence payload into the tagged frame union.
// Decoding happens once, here at the boundary, instead of being duck-typed
// at every call site.
func decodeFrame(payload json.RawMessage) (frame, error) {
	var wire struct {
		Event   string              `json:"event"`
		State   map[string][]Record `json:"state,omitempty"`
		Key     string              `json:"key,omitempty"`
		Records []Record            `json:"records,omitempty"`
	}
	if err := json.Unmarshal(payload, &wire); err != nil {
		return frame{}, fmt.Errorf("decode presence payload: %w", err)
	}

	switch wire.Event {
	case "sync":
		return frame{kind: kindSync, state: wire.State}, nil
	case "join":
		if wire.Key == "" {
			return frame{}, fmt.Errorf("presence join without key")
		}
		return frame{kind: kindJoin, key: wire.Key, records: wire.Records}, nil
	case "leave":
		if wire.Key == "" {
			return frame{}, fmt.Errorf("presence leave without key")
		}
		return frame{kind: kindLeave, key: wire.Key}, nil
	default:
		return frame{}, fmt.Errorf("unknown presence event %q", wire.Event)
	}
}

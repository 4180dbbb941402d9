package hud

import (
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/launchlab/shotcore/internal/engine"
)

// StateSource supplies the live lifecycle snapshot. *engine.Engine satisfies it.
type StateSource interface {
	State() engine.Snapshot
}

// Message types pushed to WebSocket clients.
const (
	TypeState    = "state"
	TypeDecision = "decision"
	TypePong     = "pong"
	TypeError    = "error"
)

// Message is the envelope for every WebSocket frame.
type Message struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// command is what clients may send.
type command struct {
	Type string `json:"type"`
}

func encode(typ string, data any) ([]byte, error) {
	return json.Marshal(Message{Type: typ, Timestamp: time.Now().UTC(), Data: data})
}

func encodeError(text string) ([]byte, error) {
	return json.Marshal(Message{Type: TypeError, Timestamp: time.Now().UTC(), Error: text})
}

// toStruct converts any JSON-tagged value to a protobuf Struct.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, s); err != nil {
		return nil, fmt.Errorf("to struct: %w", err)
	}
	return s, nil
}

// fromStruct decodes a protobuf Struct into a JSON-tagged value.
func fromStruct(s *structpb.Struct, out any) error {
	raw, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("from struct: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	return nil
}

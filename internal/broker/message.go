package broker

import (
	"encoding/json"
	"time"
)

// Kind distinguishes the three messages a client receives.
type Kind int

const (
	KindItem Kind = iota
	KindError
	KindComplete
)

func (k Kind) String() string {
	switch k {
	case KindItem:
		return "item"
	case KindError:
		return "error"
	case KindComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Message is one entry of the client stream.
type Message struct {
	Kind       Kind
	Time       time.Time
	APIVersion string
	// Service is the display name of the service that produced the message.
	Service  string
	ItemType string
	Item     map[string]any
	Level    string
	Text     string
}

type errorBody struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// MarshalJSON renders the client envelope:
//
//	{"time", "api_ver", "service", "<itemType>": {...}}
//	{"time", "api_ver", "service", "error": {"level", "message"}}
//	{"time", "api_ver", "complete": "<message>"}
func (m Message) MarshalJSON() ([]byte, error) {
	doc := map[string]any{
		"time":    m.Time.UTC().Format(time.RFC3339Nano),
		"api_ver": m.APIVersion,
	}
	if m.Service != "" {
		doc["service"] = m.Service
	}
	switch m.Kind {
	case KindItem:
		body := m.Item
		if body == nil {
			body = map[string]any{}
		}
		doc[m.ItemType] = body
	case KindError:
		doc["error"] = errorBody{Level: m.Level, Message: m.Text}
	case KindComplete:
		doc["complete"] = m.Text
	}
	return json.Marshal(doc)
}

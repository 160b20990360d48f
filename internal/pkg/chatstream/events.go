// Package chatstream consumes and produces the typed server-sent-event stream
// of a conversational backend.
package chatstream

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/unifiedui/community-gateway/internal/domain/models"
)

// EventType is the kind of a stream event.
type EventType string

const (
	EventStart           EventType = "start"
	EventToken           EventType = "token"
	EventMetadata        EventType = "metadata"
	EventSourceDocuments EventType = "sourceDocuments"
	EventUsedTools       EventType = "usedTools"
	EventError           EventType = "error"
	EventEnd             EventType = "end"
)

// ErrMalformedEvent is returned when an event payload cannot be decoded.
var ErrMalformedEvent = errors.New("malformed stream event")

// IsTerminal reports whether t closes the exchange.
func (t EventType) IsTerminal() bool {
	return t == EventEnd || t == EventError
}

// RawEvent is one SSE frame before its payload is interpreted.
type RawEvent struct {
	// Name is the SSE "event:" field, empty for unnamed frames.
	Name string
	// Data is the joined "data:" lines.
	Data []byte
}

// Event is a typed stream event. Data is always valid JSON (or empty).
type Event struct {
	Type EventType       `json:"event"`
	Data json.RawMessage `json:"data,omitempty"`
}

// DecodeEvent interprets a frame. Two encodings are accepted:
//
//	event: token
//	data: hello
//
// and the envelope form
//
//	data: {"event":"token","data":"hello"}
func DecodeEvent(raw RawEvent) (Event, error) {
	data := bytes.TrimSpace(raw.Data)

	if raw.Name == "" || raw.Name == "message" {
		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			return Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		if ev.Type == "" {
			return Event{}, fmt.Errorf("%w: missing event type", ErrMalformedEvent)
		}
		return ev, nil
	}

	ev := Event{Type: EventType(raw.Name)}
	switch {
	case len(data) == 0:
	case ev.Type == EventStart || ev.Type == EventEnd:
		// Markers carry no payload; producers send things like "[DONE]".
	case ev.Type == EventError && data[0] == '{' && json.Valid(data):
		ev.Data = data
	case ev.Type == EventToken || ev.Type == EventError:
		// Text payloads may arrive bare or as a JSON string.
		var s string
		if data[0] == '"' && json.Unmarshal(data, &s) == nil {
			ev.Data = data
		} else {
			ev.Data, _ = json.Marshal(string(raw.Data))
		}
	case json.Valid(data):
		ev.Data = data
	default:
		return Event{}, fmt.Errorf("%w: %s payload is not JSON", ErrMalformedEvent, raw.Name)
	}
	return ev, nil
}

// Text decodes a token payload.
func (e Event) Text() (string, error) {
	var s string
	if err := json.Unmarshal(e.Data, &s); err != nil {
		return "", fmt.Errorf("%w: token payload: %v", ErrMalformedEvent, err)
	}
	return s, nil
}

// Metadata decodes a metadata payload.
func (e Event) Metadata() (map[string]interface{}, error) {
	var m map[string]interface{}
	if err := json.Unmarshal(e.Data, &m); err != nil {
		return nil, fmt.Errorf("%w: metadata payload: %v", ErrMalformedEvent, err)
	}
	return m, nil
}

// SourceDocuments decodes a sourceDocuments payload.
func (e Event) SourceDocuments() ([]models.SourceDocument, error) {
	var docs []models.SourceDocument
	if err := json.Unmarshal(e.Data, &docs); err != nil {
		return nil, fmt.Errorf("%w: sourceDocuments payload: %v", ErrMalformedEvent, err)
	}
	return docs, nil
}

// UsedTools decodes a usedTools payload.
func (e Event) UsedTools() ([]models.UsedTool, error) {
	var tools []models.UsedTool
	if err := json.Unmarshal(e.Data, &tools); err != nil {
		return nil, fmt.Errorf("%w: usedTools payload: %v", ErrMalformedEvent, err)
	}
	return tools, nil
}

// ErrorMessage extracts a human-readable message from an error payload.
// It never fails; an unreadable payload yields a generic message.
func (e Event) ErrorMessage() string {
	var s string
	if json.Unmarshal(e.Data, &s) == nil && s != "" {
		return s
	}
	var obj struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(e.Data, &obj) == nil {
		if obj.Message != "" {
			return obj.Message
		}
		if obj.Error != "" {
			return obj.Error
		}
	}
	return "the assistant reported an error"
}

// NewEvent builds an event, encoding payload as JSON. A nil payload leaves Data empty.
func NewEvent(t EventType, payload interface{}) Event {
	ev := Event{Type: t}
	if payload != nil {
		ev.Data, _ = json.Marshal(payload)
	}
	return ev
}

// Convenience constructors for producers.

func StartEvent() Event { return NewEvent(EventStart, nil) }
func EndEvent() Event { return NewEvent(EventEnd, nil) }
func TokenEvent(text string) Event { return NewEvent(EventToken, text) }
func ErrorEvent(message string) Event { return NewEvent(EventError, message) }
func MetadataEvent(m map[string]interface{}) Event {
	return NewEvent(EventMetadata, m)
}
func SourceDocumentsEvent(docs []models.SourceDocument) Event {
	return NewEvent(EventSourceDocuments, docs)
}
func UsedToolsEvent(tools []models.UsedTool) Event {
	return NewEvent(EventUsedTools, tools)
}

package protocol

import (
	"encoding/json"
	"fmt"
)

// Server-to-client event types
const (
	EventReady   = "ready"
	EventLoading = "loading"
	EventFinal   = "final"
	EventError   = "error"
)

// Client-to-server control message types
const (
	ControlStart = "start"
	ControlEnd   = "end"
)

// ReadyEvent signals that the model is loaded and the session may record.
type ReadyEvent struct {
	Type string `json:"type"`
}

// LoadingEvent carries a model load progress snapshot.
type LoadingEvent struct {
	Type     string  `json:"type"`
	Stage    string  `json:"stage"`
	Progress float64 `json:"progress"`
	Message  string  `json:"message"`
}

// FinalEvent carries the completed transcription for the last utterance.
// Text is always present, even when empty.
type FinalEvent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ErrorEvent reports a failure that is fatal to an utterance or the session.
type ErrorEvent struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// Ready constructs a ready event.
func Ready() ReadyEvent {
	return ReadyEvent{Type: EventReady}
}

// Loading constructs a loading event for the given progress snapshot.
func Loading(stage string, progress float64, message string) LoadingEvent {
	return LoadingEvent{
		Type:     EventLoading,
		Stage:    stage,
		Progress: progress,
		Message:  message,
	}
}

// Final constructs a final transcription event.
func Final(text string) FinalEvent {
	return FinalEvent{Type: EventFinal, Text: text}
}

// Error constructs an error event.
func Error(message string) ErrorEvent {
	return ErrorEvent{Type: EventError, Error: message}
}

// Control represents a client control message.
type Control struct {
	Type string `json:"type"`
}

// ParseControl parses a text frame into a control message. It returns an
// error for malformed JSON or a missing type field; unknown types parse
// successfully and are left for the caller to ignore.
func ParseControl(data []byte) (Control, error) {
	var msg Control
	if err := json.Unmarshal(data, &msg); err != nil {
		return Control{}, fmt.Errorf("malformed control message: %w", err)
	}

	if msg.Type == "" {
		return Control{}, fmt.Errorf("control message missing type field")
	}

	return msg, nil
}

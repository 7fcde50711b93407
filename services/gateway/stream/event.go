// Copyright (C) 2026 HealthBridge Technologies (platform@healthbridge.sa)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package stream defines the session stream protocol: the typed event
// envelope and the state machine that produces an ordered event sequence
// for one chat session. The same event channel feeds both the SSE and
// WebSocket transports; only the framing differs per transport.
package stream

import "time"

// EventType identifies an event kind in the session stream.
type EventType string

// Session stream event kinds, in the order they may appear. A success
// stream is session_start, zero or more thinking, zero or more
// partial_response, exactly one final_response, then session_end. On
// failure an error event is emitted and session_end is withheld.
const (
	EventSessionStart    EventType = "session_start"
	EventThinking        EventType = "thinking"
	EventPartialResponse EventType = "partial_response"
	EventFinalResponse   EventType = "final_response"
	EventError           EventType = "error"
	EventSessionEnd      EventType = "session_end"
)

// Event is the wire envelope for one session stream frame. Fields are
// populated per kind; unused fields are omitted from the encoding.
//
// # Fields
//
//   - Type: the event kind; always present.
//   - SessionID: present on session_start and session_end.
//   - Language: present on session_start and final_response.
//   - Status: present on thinking.
//   - Text: cumulative text on partial_response, full text on
//     final_response.
//   - Progress: fraction of words delivered so far, in (0, 1]; present
//     on partial_response only. The final partial carries exactly 1.0.
//   - Confidence: generator confidence in [0, 1]; final_response only.
//   - Context: generator category tag; final_response only.
//   - Error: human-readable failure message; error events only.
//   - Timestamp: server emission time, RFC 3339.
type Event struct {
	Type       EventType `json:"type"`
	SessionID  string    `json:"session_id,omitempty"`
	Language   string    `json:"language,omitempty"`
	Status     string    `json:"status,omitempty"`
	Text       string    `json:"text,omitempty"`
	Progress   *float64  `json:"progress,omitempty"`
	Confidence *float64  `json:"confidence,omitempty"`
	Context    string    `json:"context,omitempty"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// SessionStartEvent opens a session stream.
func SessionStartEvent(sessionID, language string) Event {
	return Event{
		Type:      EventSessionStart,
		SessionID: sessionID,
		Language:  language,
		Timestamp: time.Now().UTC(),
	}
}

// ThinkingEvent reports a human-readable generation status.
func ThinkingEvent(status string) Event {
	return Event{
		Type:      EventThinking,
		Status:    status,
		Timestamp: time.Now().UTC(),
	}
}

// PartialEvent carries the cumulative text delivered so far and the
// fraction of the full response it represents.
func PartialEvent(text string, progress float64) Event {
	return Event{
		Type:      EventPartialResponse,
		Text:      text,
		Progress:  &progress,
		Timestamp: time.Now().UTC(),
	}
}

// FinalEvent carries the complete response with generator metadata.
func FinalEvent(text string, confidence float64, language, contextTag string) Event {
	return Event{
		Type:       EventFinalResponse,
		Text:       text,
		Confidence: &confidence,
		Language:   language,
		Context:    contextTag,
		Timestamp:  time.Now().UTC(),
	}
}

// ErrorEvent reports a mid-stream failure. No session_end follows it.
func ErrorEvent(message string) Event {
	return Event{
		Type:      EventError,
		Error:     message,
		Timestamp: time.Now().UTC(),
	}
}

// SessionEndEvent closes a successful session stream.
func SessionEndEvent(sessionID string) Event {
	return Event{
		Type:      EventSessionEnd,
		SessionID: sessionID,
		Timestamp: time.Now().UTC(),
	}
}

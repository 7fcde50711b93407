// Copyright (C) 2026 HealthBridge Technologies (platform@healthbridge.sa)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package stream

import (
	"context"
	"math"
	"strings"
	"time"
)

// DefaultChunkSize is the number of words delivered per partial_response
// event when the session does not configure its own chunk size.
const DefaultChunkSize = 10

// Reply is the result of one generation call: the response text plus the
// generator's confidence and category metadata.
type Reply struct {
	Text       string
	Confidence float64
	Category   string
}

// Generator produces a reply for a user message. Implementations must
// honor ctx cancellation on any blocking work.
type Generator interface {
	Generate(ctx context.Context, message, language, contextTag string) (Reply, error)
}

// GeneratorFunc adapts a plain function to the Generator interface.
type GeneratorFunc func(ctx context.Context, message, language, contextTag string) (Reply, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, message, language, contextTag string) (Reply, error) {
	return f(ctx, message, language, contextTag)
}

// state is the session state machine position.
type state int

const (
	stateStart state = iota
	stateThinking
	stateStreaming
	stateDone
	stateError
)

// =============================================================================
// Session
// =============================================================================

// Session drives one streaming interaction through an explicit state
// machine (START -> THINKING -> STREAMING -> DONE, or -> ERROR) and
// delivers the resulting events on a channel. The consumer — an SSE or
// WebSocket handler — pulls events off the channel and frames them for
// its transport; the session itself is transport-agnostic.
//
// # Thread Safety
//
// A Session is single-use. Run may be called once; the returned channel
// is written by exactly one goroutine.
type Session struct {
	// ID identifies the session; echoed on session_start and session_end.
	ID string
	// Language is the requested response language tag ("en" or "ar").
	Language string
	// Message is the user's inbound text.
	Message string
	// Context is an optional context tag forwarded to the generator.
	Context string
	// ChunkSize is the number of words per partial_response event.
	// Values below 1 fall back to DefaultChunkSize.
	ChunkSize int
	// Pace, when positive, is slept between partial emissions so clients
	// observe incremental delivery. Cancellation is honored during the
	// sleep.
	Pace time.Duration
	// Generator produces the response. Required.
	Generator Generator
}

// Run executes the session and returns its event channel.
//
// # Description
//
// Spawns the producer goroutine and returns immediately. The channel
// yields events in protocol order and is closed when the session
// finishes, fails, or is cancelled. Every channel send doubles as a
// suspension point: if ctx is cancelled, the producer stops before
// emitting another frame and closes the channel without error.
//
// # Outputs
//
//   - <-chan Event: the ordered session event stream. Always closed
//     eventually; the consumer must drain it.
func (s *Session) Run(ctx context.Context) <-chan Event {
	out := make(chan Event)
	go s.produce(ctx, out)
	return out
}

// produce walks the state machine, emitting events until DONE or ERROR.
func (s *Session) produce(ctx context.Context, out chan<- Event) {
	defer close(out)

	chunk := s.ChunkSize
	if chunk < 1 {
		chunk = DefaultChunkSize
	}

	var reply Reply
	st := stateStart
	for {
		switch st {
		case stateStart:
			if !emit(ctx, out, SessionStartEvent(s.ID, s.Language)) {
				return
			}
			st = stateThinking

		case stateThinking:
			if !emit(ctx, out, ThinkingEvent("Processing your request...")) {
				return
			}
			var err error
			reply, err = s.Generator.Generate(ctx, s.Message, s.Language, s.Context)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				st = stateError
				continue
			}
			st = stateStreaming

		case stateStreaming:
			words := strings.Fields(reply.Text)
			total := len(words)
			for sent := 0; sent < total; sent += chunk {
				end := min(sent+chunk, total)
				progress := roundProgress(float64(end) / float64(total))
				if !emit(ctx, out, PartialEvent(strings.Join(words[:end], " "), progress)) {
					return
				}
				if s.Pace > 0 && end < total {
					select {
					case <-time.After(s.Pace):
					case <-ctx.Done():
						return
					}
				}
			}
			if !emit(ctx, out, FinalEvent(reply.Text, reply.Confidence, s.Language, reply.Category)) {
				return
			}
			st = stateDone

		case stateDone:
			emit(ctx, out, SessionEndEvent(s.ID))
			return

		case stateError:
			emit(ctx, out, ErrorEvent("Response generation failed. Please retry."))
			return
		}
	}
}

// emit sends one event, honoring cancellation. Reports whether the send
// happened.
func emit(ctx context.Context, out chan<- Event, ev Event) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// roundProgress clamps float artifacts so the final chunk reports
// exactly 1.0 and intermediate fractions stay stable across platforms.
func roundProgress(p float64) float64 {
	p = math.Round(p*1e6) / 1e6
	if p > 1 {
		p = 1
	}
	return p
}

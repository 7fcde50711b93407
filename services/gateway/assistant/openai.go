// Copyright (C) 2026 HealthBridge Technologies (platform@healthbridge.sa)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/healthbridge-sa/nphies-gateway/services/gateway/stream"
)

// ErrUpstreamUnavailable marks a failed call to the hosted model. Callers
// convert it into a degraded canned reply rather than a transport error.
var ErrUpstreamUnavailable = errors.New("assistant: upstream unavailable")

// chatCompleter is the slice of the OpenAI client the generator uses.
// Narrowed for testability.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIGenerator answers via a hosted chat-completion model and falls
// back to the rule-based knowledge base when the upstream call fails, so
// a model outage degrades the assistant instead of breaking sessions.
type OpenAIGenerator struct {
	client   chatCompleter
	model    string
	fallback stream.Generator
}

var _ stream.Generator = (*OpenAIGenerator)(nil)

// NewOpenAIGenerator builds the hosted-model generator from environment
// configuration. OPENAI_API_KEY is required (a container secret at
// /run/secrets/openai_api_key is accepted as a fallback); OPENAI_MODEL
// defaults to gpt-4o-mini.
func NewOpenAIGenerator(fallback stream.Generator) (*OpenAIGenerator, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		secretPath := "/run/secrets/openai_api_key"
		raw, err := os.ReadFile(secretPath)
		if err != nil {
			slog.Error("OPENAI_API_KEY not set and secret not found", "path", secretPath)
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
		apiKey = strings.TrimSpace(string(raw))
		slog.Info("Read the OpenAI API key from container secrets")
	}

	model := os.Getenv("OPENAI_MODEL")
	if model == "" {
		model = "gpt-4o-mini"
		slog.Warn("OPENAI_MODEL not set, defaulting to gpt-4o-mini")
	}

	slog.Info("Initializing OpenAI generator", "model", model)
	return &OpenAIGenerator{
		client:   openai.NewClient(apiKey),
		model:    model,
		fallback: fallback,
	}, nil
}

// Generate asks the hosted model for a reply. On any upstream failure it
// answers from the fallback generator with reduced confidence; the error
// is logged, not propagated, unless no fallback is configured.
func (g *OpenAIGenerator) Generate(ctx context.Context, message, language, contextTag string) (stream.Reply, error) {
	reply, err := g.complete(ctx, message, language, contextTag)
	if err == nil {
		return reply, nil
	}
	if ctx.Err() != nil {
		return stream.Reply{}, ctx.Err()
	}

	slog.Error("OpenAI call failed, degrading to knowledge base", "error", err)
	if g.fallback == nil {
		return stream.Reply{}, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}

	degraded, fbErr := g.fallback.Generate(ctx, message, language, contextTag)
	if fbErr != nil {
		return stream.Reply{}, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}
	degraded.Confidence *= 0.5
	return degraded, nil
}

func (g *OpenAIGenerator) complete(ctx context.Context, message, language, contextTag string) (stream.Reply, error) {
	system := "You are a helpful assistant for Saudi health-insurance members. " +
		"Answer questions about eligibility, claims, coverage, and network providers."
	if normalizeLanguage(language) == "ar" {
		system += " Respond in Arabic."
	}
	if contextTag != "" {
		system += " Conversation context: " + contextTag + "."
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: message},
		},
	})
	if err != nil {
		return stream.Reply{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return stream.Reply{}, fmt.Errorf("chat completion returned no choices")
	}

	return stream.Reply{
		Text:       resp.Choices[0].Message.Content,
		Confidence: 0.95,
		Category:   CategoryGeneral,
	}, nil
}

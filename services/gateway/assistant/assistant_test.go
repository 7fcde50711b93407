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
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKnowledgeBaseCategorizesByKeyword(t *testing.T) {
	kb := NewKnowledgeBase()

	tests := []struct {
		name     string
		message  string
		language string
		category string
	}{
		{"eligibility en", "Am I eligible for this procedure?", "en", CategoryEligibility},
		{"claims en", "What is the status of my claim?", "en", CategoryClaims},
		{"coverage en", "Is dental covered by my benefits?", "en", CategoryCoverage},
		{"providers en", "Find me a network hospital nearby", "en", CategoryProviders},
		{"fallback en", "Hello there", "en", CategoryGeneral},
		{"claims ar", "أريد الاستعلام عن مطالبة", "ar", CategoryClaims},
		{"mixed ar with english term", "هل claim الخاص بي جاهز", "ar", CategoryClaims},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply, err := kb.Generate(context.Background(), tt.message, tt.language, "")
			require.NoError(t, err)
			assert.Equal(t, tt.category, reply.Category)
			assert.NotEmpty(t, reply.Text)
			assert.Greater(t, reply.Confidence, 0.0)
			assert.LessOrEqual(t, reply.Confidence, 1.0)
		})
	}
}

func TestKnowledgeBaseAnswersInRequestedLanguage(t *testing.T) {
	kb := NewKnowledgeBase()

	en, err := kb.Generate(context.Background(), "check my claim", "en", "")
	require.NoError(t, err)
	ar, err := kb.Generate(context.Background(), "مطالبة", "ar", "")
	require.NoError(t, err)

	assert.NotEqual(t, en.Text, ar.Text)
	assert.Equal(t, en.Category, ar.Category)
}

func TestKnowledgeBaseUnknownLanguageFallsBackToEnglish(t *testing.T) {
	kb := NewKnowledgeBase()

	fr, err := kb.Generate(context.Background(), "claim status please", "fr", "")
	require.NoError(t, err)
	en, err := kb.Generate(context.Background(), "claim status please", "en", "")
	require.NoError(t, err)

	assert.Equal(t, en.Text, fr.Text)
}

// stubCompleter scripts the hosted-model response.
type stubCompleter struct {
	resp openai.ChatCompletionResponse
	err  error
	last openai.ChatCompletionRequest
}

func (s *stubCompleter) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	s.last = req
	return s.resp, s.err
}

func TestOpenAIGeneratorSuccess(t *testing.T) {
	stub := &stubCompleter{
		resp: openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Content: "Your claim was approved."}},
			},
		},
	}
	g := &OpenAIGenerator{client: stub, model: "gpt-4o-mini", fallback: NewKnowledgeBase()}

	reply, err := g.Generate(context.Background(), "claim status", "en", "claims")
	require.NoError(t, err)
	assert.Equal(t, "Your claim was approved.", reply.Text)
	assert.Equal(t, "gpt-4o-mini", stub.last.Model)
}

func TestOpenAIGeneratorDegradesToKnowledgeBase(t *testing.T) {
	stub := &stubCompleter{err: errors.New("connection refused")}
	g := &OpenAIGenerator{client: stub, model: "gpt-4o-mini", fallback: NewKnowledgeBase()}

	reply, err := g.Generate(context.Background(), "what is the status of my claim", "en", "")
	require.NoError(t, err, "upstream outage must degrade, not fail the session")
	assert.Equal(t, CategoryClaims, reply.Category)
	assert.Less(t, reply.Confidence, 0.5, "degraded replies carry reduced confidence")
}

func TestOpenAIGeneratorWithoutFallbackSurfacesUpstreamError(t *testing.T) {
	stub := &stubCompleter{err: errors.New("connection refused")}
	g := &OpenAIGenerator{client: stub, model: "gpt-4o-mini"}

	_, err := g.Generate(context.Background(), "hello", "en", "")
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
}

func TestOpenAIGeneratorHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stub := &stubCompleter{err: context.Canceled}
	g := &OpenAIGenerator{client: stub, model: "gpt-4o-mini", fallback: NewKnowledgeBase()}

	_, err := g.Generate(ctx, "hello", "en", "")
	assert.ErrorIs(t, err, context.Canceled)
}

package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	// ErrRateLimited marks a provider response that asked us to back off.
	// Cascade moves on to the next candidate when it sees it.
	ErrRateLimited = errors.New("model: rate limited")
	// ErrNoCandidates is returned by a Cascade without models.
	ErrNoCandidates = errors.New("model: no candidates configured")
	// ErrEmptyResponse is returned when a model produced no text.
	ErrEmptyResponse = errors.New("model: empty response")
)

// RateLimited wraps err so that errors.Is(err, ErrRateLimited) holds.
func RateLimited(err error) error {
	if err == nil || errors.Is(err, ErrRateLimited) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrRateLimited, err)
}

// IsRateLimited reports whether err was classified as a rate limit.
func IsRateLimited(err error) bool { return errors.Is(err, ErrRateLimited) }

// Message is a single chat message.
type Message struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// Request captures the normalized model input.
type Request struct {
	Instructions string    `json:"instructions"`
	Messages     []Message `json:"messages"`
	// MaxTokens overrides the adapter default when > 0.
	MaxTokens int64 `json:"max_tokens,omitempty"`
}

// UserText builds a single-message request.
func UserText(instructions, text string) Request {
	return Request{
		Instructions: instructions,
		Messages:     []Message{{Role: "user", Content: text}},
	}
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a model.
type Response struct {
	ID           string      `json:"id"`
	Partial      bool        `json:"partial"`
	Text         string      `json:"text"`
	Model        string      `json:"model,omitempty"`
	FinishReason string      `json:"finish_reason"`
	Usage        *TokenUsage `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "mock", ...
}

// Model is the minimal interface required to drive generation.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// Complete drains a Generate call and returns the final response.
func Complete(ctx context.Context, m Model, req Request) (Response, error) {
	respCh, errCh := m.Generate(ctx, req)
	var (
		final   Response
		partial strings.Builder
		got     bool
	)
	for respCh != nil || errCh != nil {
		select {
		case <-ctx.Done():
			return Response{}, ctx.Err()
		case r, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			if r.Partial {
				partial.WriteString(r.Text)
				continue
			}
			final, got = r, true
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return Response{}, err
			}
		}
	}
	if !got {
		final.Text = partial.String()
	}
	if strings.TrimSpace(final.Text) == "" {
		return Response{}, ErrEmptyResponse
	}
	return final, nil
}

// Text is Complete returning only the text.
func Text(ctx context.Context, m Model, req Request) (string, error) {
	r, err := Complete(ctx, m, req)
	if err != nil {
		return "", err
	}
	return r.Text, nil
}

// MockModel is a lightweight in-memory Model useful for tests & examples.
// Replies are consumed in order; the last one repeats.
type MockModel struct {
	mu       sync.Mutex
	info     Info
	replies  []mockReply
	calls    int
	requests []Request
}

type mockReply struct {
	text string
	err  error
}

// NewMockModel constructs a MockModel.
func NewMockModel(name string) *MockModel {
	return &MockModel{info: Info{Name: name, Provider: "mock"}}
}

// AddResponse queues a canned completion.
func (m *MockModel) AddResponse(text string) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, mockReply{text: text})
	return m
}

// AddError queues a failure.
func (m *MockModel) AddError(err error) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, mockReply{err: err})
	return m
}

// Calls returns how often Generate was invoked.
func (m *MockModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Requests returns the received requests.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

// Generate implements Model.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 1)
	errCh := make(chan error, 1)

	m.mu.Lock()
	m.requests = append(m.requests, req)
	var reply mockReply
	if len(m.replies) > 0 {
		idx := min(m.calls, len(m.replies)-1)
		reply = m.replies[idx]
	} else {
		reply.text = "Mock response"
	}
	m.calls++
	m.mu.Unlock()

	go func() {
		defer close(respCh)
		defer close(errCh)
		if err := ctx.Err(); err != nil {
			errCh <- err
			return
		}
		if reply.err != nil {
			errCh <- reply.err
			return
		}
		respCh <- Response{Text: reply.text, Model: m.info.Name, FinishReason: "stop"}
	}()
	return respCh, errCh
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }

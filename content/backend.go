package content

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hupe1980/encounter/core"
	"github.com/hupe1980/encounter/model"
)

const (
	chatSuffix    = "Respond briefly in character (2-4 sentences)."
	chatMaxTokens = 150
)

// Backend produces raw dialogue output for a request. The output is parsed
// by the Generator, so it may be fenced, truncated or otherwise imperfect.
type Backend interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Chatter answers a single message in a participant's voice.
type Chatter interface {
	Chat(ctx context.Context, p core.Participant, message string) (string, error)
}

// BackendFunc adapts a function to Backend.
type BackendFunc func(ctx context.Context, req Request) (string, error)

// Generate implements Backend.
func (f BackendFunc) Generate(ctx context.Context, req Request) (string, error) { return f(ctx, req) }

// maxResponseBytes bounds how much of a generation response is read.
const maxResponseBytes = 1 << 20

// HTTPBackendOptions configure an HTTPBackend.
type HTTPBackendOptions struct {
	Client *http.Client
}

// HTTPBackend posts requests to a generation endpoint and returns the
// response body.
type HTTPBackend struct {
	url    string
	client *http.Client
}

// NewHTTPBackend creates a backend for the endpoint at url.
func NewHTTPBackend(url string, optFns ...func(o *HTTPBackendOptions)) *HTTPBackend {
	opts := HTTPBackendOptions{Client: &http.Client{Timeout: 30 * time.Second}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}
	return &HTTPBackend{url: url, client: opts.Client}
}

// Generate implements Backend. Non-2xx responses are errors.
func (b *HTTPBackend) Generate(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode generation request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build generation request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("generation request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("read generation response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("generation endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return string(data), nil
}

// ModelBackendOptions configure a ModelBackend.
type ModelBackendOptions struct {
	Instructions Instructions
}

// ModelBackend prompts a model directly.
type ModelBackend struct {
	model        model.Model
	instructions Instructions
}

// NewModelBackend creates a backend over m.
func NewModelBackend(m model.Model, optFns ...func(o *ModelBackendOptions)) *ModelBackend {
	opts := ModelBackendOptions{Instructions: DefaultInstructions}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &ModelBackend{model: m, instructions: opts.Instructions}
}

// Model returns the underlying model.
func (b *ModelBackend) Model() model.Model { return b.model }

// Generate implements Backend.
func (b *ModelBackend) Generate(ctx context.Context, req Request) (string, error) {
	mreq, err := BuildPrompt(req, b.instructions)
	if err != nil {
		return "", fmt.Errorf("build prompt: %w", err)
	}
	return model.Text(ctx, b.model, mreq)
}

// Chat implements Chatter.
func (b *ModelBackend) Chat(ctx context.Context, p core.Participant, message string) (string, error) {
	req := model.UserText(b.instructions(p)+"\n\n"+chatSuffix, message)
	req.MaxTokens = chatMaxTokens
	text, err := model.Text(ctx, b.model, req)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

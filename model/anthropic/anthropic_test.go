package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/encounter/model"
)

var _ model.Model = (*Model)(nil)

func newTestModel(t *testing.T, status int, body string, seen *map[string]any) *Model {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		if seen != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return NewModel(func(o *Options) {
		o.APIKey = "test-key"
		o.BaseURL = srv.URL
	})
}

func TestModel_Generate(t *testing.T) {
	var seen map[string]any
	m := newTestModel(t, http.StatusOK, `{
		"id": "msg_1",
		"type": "message",
		"role": "assistant",
		"model": "claude-3-5-sonnet-20241022",
		"content": [{"type": "text", "text": "[{\"speaker\":\"a\",\"text\":\"hi\"}]"}],
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 12, "output_tokens": 8}
	}`, &seen)

	resp, err := model.Complete(context.Background(), m, model.UserText("stay in character", "talk"))
	require.NoError(t, err)
	assert.Equal(t, `[{"speaker":"a","text":"hi"}]`, resp.Text)
	assert.Equal(t, "end_turn", resp.FinishReason)
	assert.Equal(t, 20, resp.Usage.TotalTokens)

	system, ok := seen["system"].([]any)
	require.True(t, ok)
	assert.Equal(t, "stay in character", system[0].(map[string]any)["text"])
}

func TestModel_RateLimited(t *testing.T) {
	m := newTestModel(t, http.StatusTooManyRequests,
		`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`, nil)
	_, err := model.Text(context.Background(), m, model.UserText("", "talk"))
	require.Error(t, err)
	assert.True(t, model.IsRateLimited(err))
}

func TestModel_BadRequest(t *testing.T) {
	m := newTestModel(t, http.StatusBadRequest,
		`{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`, nil)
	_, err := model.Text(context.Background(), m, model.UserText("", "talk"))
	require.Error(t, err)
	assert.False(t, model.IsRateLimited(err))
}

func TestBuildMessages_SkipsSystemAndEmpty(t *testing.T) {
	msgs := buildMessages([]model.Message{
		{Role: "system", Content: "ignored"},
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: ""},
		{Role: "assistant", Content: "hello"},
	})
	assert.Len(t, msgs, 2)
}

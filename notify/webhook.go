package notify

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
)

// WebhookPayload is the JSON body posted by WebhookSink.
type WebhookPayload struct {
	ChannelID string `json:"channelId,omitempty"`
	Message   string `json:"message"`
}

// WebhookSink posts formatted transcripts to an HTTP endpoint.
type WebhookSink struct {
	URL       string
	ChannelID string
	// Token is sent as a bearer token when set.
	Token string
	HTTP  *http.Client
}

// Notify implements core.Notifier.
func (s *WebhookSink) Notify(ctx context.Context, t core.Transcript) error {
	if s.URL == "" {
		return fmt.Errorf("missing webhook url")
	}
	client := s.HTTP
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	body, err := json.Marshal(WebhookPayload{ChannelID: s.ChannelID, Message: FormatTranscript(t)})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}

	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("webhook returned %d: %s", res.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

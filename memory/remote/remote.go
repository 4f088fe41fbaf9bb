// Package remote implements core.MemoryStore against an HTTP conversations
// API:
//
//	GET  {base}/conversations?pair=<key>  -> []ConversationRecord
//	POST {base}/conversations             <- AppendRequest
//
// The server truncates each pair to its cap.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hupe1980/encounter/core"
)

// AppendRequest is the POST body of the conversations API.
type AppendRequest struct {
	PairKey        core.PairKey        `json:"pairKey"`
	ParticipantIDs []string            `json:"participantIds"`
	Turns          []core.DialogueTurn `json:"turns"`
	Timestamp      time.Time           `json:"timestamp,omitempty"`
}

// Record converts the request into a ConversationRecord.
func (r AppendRequest) Record(now time.Time) core.ConversationRecord {
	ts := r.Timestamp
	if ts.IsZero() {
		ts = now
	}
	return core.ConversationRecord{Timestamp: ts.UTC(), ParticipantIDs: r.ParticipantIDs, Turns: r.Turns}
}

// Options configure a Client.
type Options struct {
	HTTPClient *http.Client
}

// Client talks to a remote conversations API.
type Client struct {
	base string
	http *http.Client
}

// New creates a client for the API rooted at baseURL (e.g.
// "http://localhost:3001/api").
func New(baseURL string, optFns ...func(o *Options)) *Client {
	opts := Options{HTTPClient: &http.Client{Timeout: 10 * time.Second}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	return &Client{base: strings.TrimRight(baseURL, "/"), http: opts.HTTPClient}
}

// Recent implements core.MemoryStore.
func (c *Client) Recent(ctx context.Context, key core.PairKey) ([]core.ConversationRecord, error) {
	u := c.base + "/conversations?pair=" + url.QueryEscape(key.String())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	var recs []core.ConversationRecord
	if err := c.do(req, &recs); err != nil {
		return nil, fmt.Errorf("memory: recent %q: %w", key, err)
	}
	return recs, nil
}

// Append implements core.MemoryStore.
func (c *Client) Append(ctx context.Context, rec core.ConversationRecord) error {
	body, err := json.Marshal(AppendRequest{
		PairKey:        rec.Key(),
		ParticipantIDs: rec.ParticipantIDs,
		Turns:          rec.Turns,
		Timestamp:      rec.Timestamp,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/conversations", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if err := c.do(req, nil); err != nil {
		return fmt.Errorf("memory: append %q: %w", rec.Key(), err)
	}
	return nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

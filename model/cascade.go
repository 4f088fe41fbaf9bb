package model

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/encounter/logging"
)

// CascadeOptions configure a Cascade.
type CascadeOptions struct {
	Logger logging.Logger
}

// Cascade tries candidate models in order. A rate-limited candidate is
// skipped in favour of the next one; any other failure is terminal. Cascade
// itself implements Model.
type Cascade struct {
	models []Model
	logger logging.Logger
}

// NewCascade creates a cascade over models.
func NewCascade(models []Model, optFns ...func(o *CascadeOptions)) *Cascade {
	opts := CascadeOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Cascade{models: append([]Model(nil), models...), logger: opts.Logger}
}

// Candidates returns the candidate infos in order.
func (c *Cascade) Candidates() []Info {
	out := make([]Info, len(c.models))
	for i, m := range c.models {
		out[i] = m.Info()
	}
	return out
}

// Complete returns the first successful candidate response.
func (c *Cascade) Complete(ctx context.Context, req Request) (Response, error) {
	if len(c.models) == 0 {
		return Response{}, ErrNoCandidates
	}
	var lastErr error
	for i, m := range c.models {
		info := m.Info()
		start := time.Now()
		resp, err := Complete(ctx, m, req)
		if err == nil {
			if resp.Model == "" {
				resp.Model = info.Name
			}
			c.logger.Debug("model candidate succeeded",
				"model", info.Name, "provider", info.Provider, "candidate", i, "duration", time.Since(start))
			return resp, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Response{}, ctxErr
		}
		if !IsRateLimited(err) {
			c.logger.Warn("model candidate failed",
				"model", info.Name, "provider", info.Provider, "error", err)
			return Response{}, fmt.Errorf("model %s: %w", info.Name, err)
		}
		c.logger.Info("model candidate rate limited, trying next",
			"model", info.Name, "provider", info.Provider)
		lastErr = err
	}
	return Response{}, fmt.Errorf("all %d candidates rate limited: %w", len(c.models), lastErr)
}

// Generate implements Model.
func (c *Cascade) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	out := make(chan Response, 1)
	errCh := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errCh)
		resp, err := c.Complete(ctx, req)
		if err != nil {
			errCh <- err
			return
		}
		out <- resp
	}()
	return out, errCh
}

// Info implements Model.
func (c *Cascade) Info() Info {
	names := make([]string, len(c.models))
	for i, m := range c.models {
		names[i] = m.Info().Name
	}
	return Info{Name: strings.Join(names, ","), Provider: "cascade"}
}


// Command encounterd runs the encounter engine as a service: a simulated
// town whose participants wander, bump into each other and talk, with the
// HTTP API and event stream renderers attach to.
//
//	encounterd --config encounter.yaml
//	encounterd validate --config encounter.yaml
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/spf13/cobra"

	"github.com/hupe1980/encounter"
	"github.com/hupe1980/encounter/config"
	"github.com/hupe1980/encounter/content"
	"github.com/hupe1980/encounter/core"
	"github.com/hupe1980/encounter/logging"
	"github.com/hupe1980/encounter/memory"
	"github.com/hupe1980/encounter/memory/remote"
	"github.com/hupe1980/encounter/memory/sqlite"
	"github.com/hupe1980/encounter/model"
	"github.com/hupe1980/encounter/model/anthropic"
	"github.com/hupe1980/encounter/model/openai"
	"github.com/hupe1980/encounter/notify"
	"github.com/hupe1980/encounter/persona"
	"github.com/hupe1980/encounter/server"
	"github.com/hupe1980/encounter/stream"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "encounterd",
		Short:         "Run the encounter engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the YAML configuration (defaults apply when empty)")

	root.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := loadConfig(configPath); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "configuration ok")
			return nil
		},
	})
	return root
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		cfg := config.Default()
		return cfg, cfg.Validate()
	}
	return config.Load(path)
}

// run wires every component from cfg and blocks until ctx is cancelled.
func run(ctx context.Context, cfg config.Config) error {
	logger := logging.NewSlogLogger(logging.ParseLevel(cfg.Log.Level), cfg.Log.Format, false)

	store, closeStore, err := newMemoryStore(cfg.Memory)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore.Close(); err != nil {
			logger.Warn("closing memory store", "error", err)
		}
	}()

	registry := persona.Default()
	backend := newBackend(cfg.Generation, registry, logging.ForComponent(logger, "model"))
	relay := newRelay(cfg.Notify, logging.ForComponent(logger, "relay"))

	town := encounter.New(func(o *encounter.Options) {
		o.EngineConfig = cfg.EngineConfig()
		o.Cooldown = cfg.Engine.Cooldown
		o.JoinChance = cfg.Engine.JoinChance
		o.MaxParticipants = cfg.Engine.MaxParticipants
		o.Timing = cfg.Timing()
		o.Threshold = cfg.World.BumpThreshold
		o.Bounds = cfg.Bounds()
		o.TickInterval = cfg.World.TickInterval
		o.HealthInterval = cfg.Engine.HealthInterval
		o.WanderStep = cfg.World.WanderStep
		o.Registry = registry
		o.Backend = backend
		o.GenerationTimeout = cfg.Generation.Timeout
		o.MemoryStore = store
		o.Notifier = relay
		o.Logger = logger
	})
	defer town.Close()
	town.Scatter()

	hub := stream.NewHub(func(o *stream.Options) {
		o.Hello = func() stream.Envelope {
			return stream.Envelope{Type: "snapshot", Payload: town.Engine().Snapshot()}
		}
		o.Logger = logging.ForComponent(logger, "stream")
	})
	town.RegisterCallback(hub.Callback())

	srv := server.New(town.Engine(), func(o *server.Options) {
		o.Addr = cfg.Server.Addr
		o.Backend = backend
		o.Memory = store
		o.RecordTurns = cfg.Memory.RecordTurns
		o.Hub = hub
		o.World = town.World()
		o.Logger = logging.ForComponent(logger, "server")
	})
	if _, err := srv.Start(ctx); err != nil {
		return err
	}

	logger.Info("encounterd started",
		"participants", len(registry.List()),
		"memory", cfg.Memory.Driver,
		"backend", backendName(backend))

	if err := town.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	logger.Info("encounterd stopped")
	return nil
}

type nopCloser struct{ core.MemoryStore }

func (nopCloser) Close() error { return nil }

func newMemoryStore(cfg config.Memory) (core.MemoryStore, io.Closer, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		s, err := sqlite.New(cfg.DSN, func(o *sqlite.Options) { o.Cap = cfg.Cap })
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite memory: %w", err)
		}
		return s, s, nil
	case config.DriverRemote:
		c := remote.New(cfg.URL)
		return c, nopCloser{c}, nil
	default:
		m := memory.NewInMemoryStore(func(o *memory.Options) { o.Cap = cfg.Cap })
		return m, nopCloser{m}, nil
	}
}

// newBackend prefers an explicit endpoint, then a model cascade. It returns
// nil when neither is configured, leaving dialogue to fallback templates.
func newBackend(cfg config.Generation, registry *persona.Registry, logger logging.Logger) content.Backend {
	if cfg.Endpoint != "" {
		return content.NewHTTPBackend(cfg.Endpoint, func(o *content.HTTPBackendOptions) {
			o.Client.Timeout = cfg.Timeout + time.Second
		})
	}
	if len(cfg.Candidates) == 0 {
		return nil
	}

	models := make([]model.Model, 0, len(cfg.Candidates))
	for _, c := range cfg.Candidates {
		models = append(models, newModel(c))
	}
	cascade := model.NewCascade(models, func(o *model.CascadeOptions) { o.Logger = logger })
	return content.NewModelBackend(cascade, func(o *content.ModelBackendOptions) {
		o.Instructions = registry.Instructions
	})
}

func newModel(c config.Candidate) model.Model {
	switch c.Provider {
	case config.ProviderAnthropic:
		return anthropic.NewModel(func(o *anthropic.Options) {
			o.Model = anthropicsdk.Model(c.Model)
			o.APIKey = c.APIKey
			o.BaseURL = c.BaseURL
			if c.Temperature > 0 {
				o.Temperature = c.Temperature
			}
			if c.MaxTokens > 0 {
				o.MaxTokens = c.MaxTokens
			}
		})
	default:
		return openai.NewModel(func(o *openai.Options) {
			o.Model = c.Model
			o.APIKey = c.APIKey
			o.BaseURL = c.BaseURL
			if c.Temperature > 0 {
				o.Temperature = c.Temperature
			}
			if c.MaxTokens > 0 {
				o.MaxCompletionTokens = c.MaxTokens
			}
		})
	}
}

func newRelay(cfg config.Notify, logger logging.Logger) *notify.Relay {
	var sinks []core.Notifier
	if cfg.Log {
		sinks = append(sinks, notify.LogSink{Logger: logger})
	}
	if cfg.WebhookURL != "" {
		sinks = append(sinks, &notify.WebhookSink{URL: cfg.WebhookURL, ChannelID: cfg.ChannelID, Token: cfg.Token})
	}
	return notify.NewRelay(sinks, func(o *notify.Options) {
		o.Timeout = cfg.Timeout
		o.Logger = logger
	})
}

func backendName(b content.Backend) string {
	if b == nil {
		return "fallback"
	}
	return fmt.Sprintf("%T", b)
}

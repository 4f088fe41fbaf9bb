// Package config loads the daemon's YAML configuration.
//
// Environment variables in the raw file are expanded before parsing, so
// secrets can stay out of the file:
//
//	generation:
//	  candidates:
//	    - provider: openai
//	      model: meta-llama/llama-3.3-70b-instruct:free
//	      base_url: https://openrouter.ai/api/v1
//	      api_key: ${OPENROUTER_API_KEY}
//
// Durations use Go syntax ("10s", "500ms"). Missing values take the
// defaults from Default.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/encounter/bubble"
	"github.com/hupe1980/encounter/content"
	"github.com/hupe1980/encounter/cooldown"
	"github.com/hupe1980/encounter/core"
	"github.com/hupe1980/encounter/engine"
	"github.com/hupe1980/encounter/internal/util"
	"github.com/hupe1980/encounter/proximity"
	"github.com/hupe1980/encounter/session"
)

// Memory drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverRemote = "remote"
)

// Model providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config is the root document.
type Config struct {
	Log        Log        `yaml:"log"`
	Engine     Engine     `yaml:"engine"`
	Bubbles    Bubbles    `yaml:"bubbles"`
	World      World      `yaml:"world"`
	Generation Generation `yaml:"generation"`
	Memory     Memory     `yaml:"memory"`
	Notify     Notify     `yaml:"notify"`
	Server     Server     `yaml:"server"`
}

// Log selects the log level and format.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Engine holds session timing and probabilities.
type Engine struct {
	Cooldown            time.Duration `yaml:"cooldown"`
	EngagementChance    float64       `yaml:"engagement_chance"`
	JoinChance          float64       `yaml:"join_chance"`
	MaxParticipants     int           `yaml:"max_participants"`
	MaxConversationTime time.Duration `yaml:"max_conversation_time"`
	AwkwardSilence      time.Duration `yaml:"awkward_silence"`
	SilenceGrace        time.Duration `yaml:"silence_grace"`
	TranscriptGrace     time.Duration `yaml:"transcript_grace"`
	TurnGap             time.Duration `yaml:"turn_gap"`
	HealthInterval      time.Duration `yaml:"health_interval"`
}

// Bubbles holds read-time bounds.
type Bubbles struct {
	Base        time.Duration `yaml:"base"`
	PerChar     time.Duration `yaml:"per_char"`
	Min         time.Duration `yaml:"min"`
	Max         time.Duration `yaml:"max"`
	HoverLinger time.Duration `yaml:"hover_linger"`
}

// World holds grid and tick settings.
type World struct {
	BumpThreshold float64       `yaml:"bump_threshold"`
	TickInterval  time.Duration `yaml:"tick_interval"`
	WanderStep    float64       `yaml:"wander_step"`
	Width         float64       `yaml:"width"`
	Height        float64       `yaml:"height"`
}

// Generation selects the dialogue backend. Endpoint wins over Candidates;
// with neither, dialogue comes from fallback templates only.
type Generation struct {
	Timeout    time.Duration `yaml:"timeout"`
	Endpoint   string        `yaml:"endpoint"`
	Candidates []Candidate   `yaml:"candidates"`
}

// Candidate is one model tried by the cascade.
type Candidate struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int64   `yaml:"max_tokens"`
}

// Memory selects the conversation memory store.
type Memory struct {
	Driver      string `yaml:"driver"`
	DSN         string `yaml:"dsn"`
	URL         string `yaml:"url"`
	Cap         int    `yaml:"cap"`
	RecordTurns int    `yaml:"record_turns"`
}

// Notify configures transcript delivery.
type Notify struct {
	WebhookURL string        `yaml:"webhook_url"`
	ChannelID  string        `yaml:"channel_id"`
	Token      string        `yaml:"token"`
	Timeout    time.Duration `yaml:"timeout"`
	Log        bool          `yaml:"log"`
}

// Server configures the HTTP surface.
type Server struct {
	Addr string `yaml:"addr"`
}

// Default returns a configuration with every default applied.
func Default() Config {
	return Config{
		Log: Log{Level: "info", Format: "text"},
		Engine: Engine{
			Cooldown:            cooldown.DefaultWindow,
			EngagementChance:    engine.DefaultConfig.EngagementChance,
			JoinChance:          session.DefaultJoinChance,
			MaxParticipants:     session.DefaultMaxParticipants,
			MaxConversationTime: engine.DefaultConfig.MaxConversationTime,
			AwkwardSilence:      engine.DefaultConfig.AwkwardSilence,
			SilenceGrace:        engine.DefaultConfig.SilenceGrace,
			TranscriptGrace:     engine.DefaultConfig.TranscriptGrace,
			TurnGap:             engine.DefaultConfig.TurnGap,
			HealthInterval:      5 * time.Second,
		},
		Bubbles: Bubbles{
			Base:        bubble.DefaultTiming.Base,
			PerChar:     bubble.DefaultTiming.PerChar,
			Min:         bubble.DefaultTiming.Min,
			Max:         bubble.DefaultTiming.Max,
			HoverLinger: bubble.DefaultTiming.HoverLinger,
		},
		World: World{
			BumpThreshold: proximity.DefaultThreshold,
			TickInterval:  250 * time.Millisecond,
			WanderStep:    0.5,
			Width:         20,
			Height:        15,
		},
		Generation: Generation{Timeout: content.DefaultTimeout},
		Memory: Memory{
			Driver:      DriverMemory,
			Cap:         core.DefaultMemoryCap,
			RecordTurns: core.DefaultRecordTurns,
		},
		Notify: Notify{Timeout: engine.DefaultConfig.NotifyTimeout, Log: true},
		Server: Server{Addr: ":3001"},
	}
}

// Load reads, expands, parses and validates the file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML document over the defaults and validates it.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for values the engine cannot run with.
func (c Config) Validate() error {
	v := &util.Validator{}

	v.OneOf("log.level", c.Log.Level, "debug", "info", "warn", "error")
	v.OneOf("log.format", c.Log.Format, "text", "json")

	e := c.Engine
	v.NonNegative("engine.cooldown", e.Cooldown)
	v.Probability("engine.engagement_chance", e.EngagementChance)
	v.Probability("engine.join_chance", e.JoinChance)
	v.Min("engine.max_participants", e.MaxParticipants, 2)
	v.Positive("engine.max_conversation_time", e.MaxConversationTime)
	v.Positive("engine.awkward_silence", e.AwkwardSilence)
	v.NonNegative("engine.silence_grace", e.SilenceGrace)
	v.NonNegative("engine.transcript_grace", e.TranscriptGrace)
	v.NonNegative("engine.turn_gap", e.TurnGap)
	v.Positive("engine.health_interval", e.HealthInterval)
	if e.AwkwardSilence >= e.MaxConversationTime {
		v.Add("engine.awkward_silence", e.AwkwardSilence, "must be shorter than max_conversation_time")
	}

	b := c.Bubbles
	v.NonNegative("bubbles.base", b.Base)
	v.NonNegative("bubbles.per_char", b.PerChar)
	v.Positive("bubbles.min", b.Min)
	v.Positive("bubbles.max", b.Max)
	v.NonNegative("bubbles.hover_linger", b.HoverLinger)
	if b.Min > b.Max {
		v.Add("bubbles.min", b.Min, "must not exceed bubbles.max")
	}

	if c.World.BumpThreshold <= 0 {
		v.Add("world.bump_threshold", c.World.BumpThreshold, "must be positive")
	}
	v.Positive("world.tick_interval", c.World.TickInterval)
	if c.World.WanderStep < 0 {
		v.Add("world.wander_step", c.World.WanderStep, "must not be negative")
	}

	g := c.Generation
	v.Positive("generation.timeout", g.Timeout)
	if g.Timeout >= e.AwkwardSilence {
		v.Add("generation.timeout", g.Timeout, "must be shorter than engine.awkward_silence")
	}
	for i, cand := range g.Candidates {
		field := fmt.Sprintf("generation.candidates[%d]", i)
		v.OneOf(field+".provider", cand.Provider, ProviderOpenAI, ProviderAnthropic)
		if cand.Model == "" {
			v.Add(field+".model", cand.Model, "is required")
		}
	}

	m := c.Memory
	v.OneOf("memory.driver", m.Driver, DriverMemory, DriverSQLite, DriverRemote)
	v.Min("memory.cap", m.Cap, 1)
	v.Min("memory.record_turns", m.RecordTurns, 1)
	if m.Driver == DriverSQLite && m.DSN == "" {
		v.Add("memory.dsn", m.DSN, "is required for the sqlite driver")
	}
	if m.Driver == DriverRemote && m.URL == "" {
		v.Add("memory.url", m.URL, "is required for the remote driver")
	}

	v.Positive("notify.timeout", c.Notify.Timeout)

	if c.Server.Addr == "" {
		v.Add("server.addr", c.Server.Addr, "is required")
	}
	return v.Err()
}

// EngineConfig returns the engine's timing and probabilities.
func (c Config) EngineConfig() engine.Config {
	return engine.Config{
		EngagementChance:    c.Engine.EngagementChance,
		MaxConversationTime: c.Engine.MaxConversationTime,
		AwkwardSilence:      c.Engine.AwkwardSilence,
		SilenceGrace:        c.Engine.SilenceGrace,
		TranscriptGrace:     c.Engine.TranscriptGrace,
		TurnGap:             c.Engine.TurnGap,
		NotifyTimeout:       c.Notify.Timeout,
	}
}

// Timing returns the bubble read-time settings.
func (c Config) Timing() bubble.Timing {
	return bubble.Timing{
		Base:        c.Bubbles.Base,
		PerChar:     c.Bubbles.PerChar,
		Min:         c.Bubbles.Min,
		Max:         c.Bubbles.Max,
		HoverLinger: c.Bubbles.HoverLinger,
	}
}

// Bounds returns the grid area participants wander in.
func (c Config) Bounds() proximity.Bounds {
	return proximity.Bounds{MaxX: c.World.Width, MaxY: c.World.Height}
}

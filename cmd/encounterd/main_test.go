package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/encounter/config"
	"github.com/hupe1980/encounter/content"
	"github.com/hupe1980/encounter/logging"
	"github.com/hupe1980/encounter/memory"
	"github.com/hupe1980/encounter/memory/remote"
	"github.com/hupe1980/encounter/memory/sqlite"
	"github.com/hupe1980/encounter/persona"
)

func TestNewMemoryStore(t *testing.T) {
	store, closer, err := newMemoryStore(config.Memory{Driver: config.DriverMemory, Cap: 3})
	require.NoError(t, err)
	assert.IsType(t, &memory.InMemoryStore{}, store)
	assert.NoError(t, closer.Close())

	store, closer, err = newMemoryStore(config.Memory{Driver: config.DriverSQLite, DSN: ":memory:", Cap: 3})
	require.NoError(t, err)
	assert.IsType(t, &sqlite.Store{}, store)
	assert.NoError(t, closer.Close())

	store, _, err = newMemoryStore(config.Memory{Driver: config.DriverRemote, URL: "http://localhost:3001/api"})
	require.NoError(t, err)
	assert.IsType(t, &remote.Client{}, store)
}

func TestNewBackend(t *testing.T) {
	reg := persona.Default()
	log := logging.NoOpLogger{}

	assert.Nil(t, newBackend(config.Generation{}, reg, log))

	b := newBackend(config.Generation{Endpoint: "http://localhost:3001/api/conversation"}, reg, log)
	assert.IsType(t, &content.HTTPBackend{}, b)

	b = newBackend(config.Generation{Candidates: []config.Candidate{
		{Provider: config.ProviderOpenAI, Model: "gpt-4o-mini", APIKey: "test"},
		{Provider: config.ProviderAnthropic, Model: "claude-3-5-haiku-latest", APIKey: "test"},
	}}, reg, log)
	assert.IsType(t, &content.ModelBackend{}, b)
}

func TestValidateCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "encounter.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine:\n  engagement_chance: 0.5\n"), 0o600))

	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"validate", "--config", path})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "configuration ok")

	require.NoError(t, os.WriteFile(path, []byte("memory:\n  driver: redis\n"), 0o600))
	cmd = newRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"validate", "--config", path})
	assert.Error(t, cmd.Execute())
}

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/ontoreason/pkg/community"
	"github.com/soundprediction/ontoreason/pkg/config"
	"github.com/soundprediction/ontoreason/pkg/embedder"
	"github.com/soundprediction/ontoreason/pkg/hierarchy"
	"github.com/soundprediction/ontoreason/pkg/retrieval"
)

func TestParseFact(t *testing.T) {
	f, err := parseFact(" acme , rdf:type , Competitor ")
	require.NoError(t, err)
	assert.Equal(t, "acme", f.Subject)
	assert.Equal(t, "rdf:type", f.Predicate)
	assert.Equal(t, "Competitor", f.Object)

	f, err = parseFact("a,says,hello, world")
	require.NoError(t, err)
	assert.Equal(t, "hello, world", f.Object)

	_, err = parseFact("only,two")
	assert.Error(t, err)
}

func TestOverrideConfigWithFlags(t *testing.T) {
	require.NoError(t, serverCmd.Flags().Set("port", "9090"))
	require.NoError(t, serverCmd.Flags().Set("memory-backend", "badger"))
	require.NoError(t, serverCmd.Flags().Set("nlp-provider", "openai"))
	t.Cleanup(func() {
		for _, name := range []string{"port", "memory-backend", "nlp-provider"} {
			serverCmd.Flags().Lookup(name).Changed = false
		}
		serverPort = 8080
	})

	cfg := &config.Config{Server: config.ServerConfig{Host: "localhost", Port: 8080}}
	overrideConfigWithFlags(serverCmd, cfg)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, "badger", cfg.Memory.Backend)
	assert.True(t, cfg.Hierarchy.LLMSummaries)

	assert.Error(t, validateServerConfig(cfg), "badger needs a directory")
	cfg.Memory.Dir = t.TempDir()
	assert.NoError(t, validateServerConfig(cfg))
	cfg.Server.Port = 0
	assert.Error(t, validateServerConfig(cfg))
}

func TestOpenStorage(t *testing.T) {
	s, err := openStorage(config.MemoryConfig{}, nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = openStorage(config.MemoryConfig{Backend: "redis"}, nil)
	assert.Error(t, err)
}

func TestOrderedSummaries(t *testing.T) {
	got := orderedSummaries(map[int]string{2: "b", 0: "a"})
	assert.Equal(t, []clusterSummary{{0, "a"}, {2, "b"}}, got)
}

func testSettings(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Log.Level = "error"
	cfg.Log.Format = "text"
	cfg.Embedding = embedder.NewDefaultConfig()
	cfg.Embedding.Dimension = 16
	cfg.Embedding.Epochs = 2
	cfg.Community = community.NewDefaultConfig()
	cfg.Retrieval = retrieval.NewDefaultConfig()
	cfg.Hierarchy.Threshold = hierarchy.DefaultThreshold
	return cfg
}

func TestNewAppWiresClient(t *testing.T) {
	cfg := testSettings(t)
	cfg.Telemetry.Enabled = true
	cfg.Telemetry.ParquetPath = t.TempDir()

	a, err := newApp(cfg)
	require.NoError(t, err)
	defer a.Close()

	report, err := a.rebuild(t.Context())
	require.NoError(t, err)
	assert.Positive(t, report.Nodes)
}

func TestCheckpointRoundTrip(t *testing.T) {
	cfg := testSettings(t)
	cfg.Checkpoint.Dir = t.TempDir()
	cfg.Checkpoint.Keep = 1
	ctx := t.Context()

	first, err := newApp(cfg)
	require.NoError(t, err)
	defer first.Close()
	require.NoError(t, first.restoreLatest(ctx), "empty directory is fine")
	_, err = first.client.InsertFact(ctx, "acme", "rdf:type", "Competitor")
	require.NoError(t, err)
	require.NoError(t, first.saveCheckpoint(ctx))
	require.NoError(t, first.saveCheckpoint(ctx))

	second, err := newApp(cfg)
	require.NoError(t, err)
	defer second.Close()
	require.NoError(t, second.restoreLatest(ctx))
	assert.Equal(t, 1, second.client.Stats().Facts)
}

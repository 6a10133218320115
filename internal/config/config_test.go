package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/rohankatakam/changeminer/internal/mining"
)

// isolateEnv points HOME at a temp dir and blanks every variable Load reads
func isolateEnv(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, name := range []string{
		"CI", "CONTINUOUS_INTEGRATION", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "BUILDKITE", "TF_BUILD",
		"NEO4J_PASSWORD", "POSTGRES_DSN", "CHANGEMINER_NEO4J_PASSWORD", "CHANGEMINER_STORAGE_POSTGRES_DSN",
	} {
		t.Setenv(name, "")
	}
	keyring.MockInit()
	return home
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "changeminer.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestDefaultMatchesEngineDefaults(t *testing.T) {
	opts, err := Default().EngineOptions()
	require.NoError(t, err)
	assert.Equal(t, mining.DefaultOptions(), opts)
}

func TestLoadFromFile(t *testing.T) {
	isolateEnv(t)
	path := writeConfig(t, `
mining:
  signature_threshold: 0.8
  pairing: signature
  safety_net: false
provider:
  type: jsonl
  input: commits.jsonl
storage:
  type: none
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.8, cfg.Mining.SignatureThreshold)
	assert.Equal(t, 0.6, cfg.Mining.BodyThreshold)
	assert.Equal(t, "signature", cfg.Mining.Pairing)
	assert.False(t, cfg.Mining.SafetyNet)
	assert.Equal(t, "::", cfg.Mining.Separator)
	assert.Equal(t, "jsonl", cfg.Provider.Type)
	assert.Equal(t, "commits.jsonl", cfg.Provider.Input)
	assert.Equal(t, []string{".cs", ".java"}, cfg.Provider.Extensions)
	assert.Equal(t, "none", cfg.Storage.Type)

	opts, err := cfg.EngineOptions()
	require.NoError(t, err)
	assert.Equal(t, mining.PairBySignature, opts.Pairing)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	isolateEnv(t)
	path := writeConfig(t, "mining:\n  body_threshold: 0.9\n")
	t.Setenv("CHANGEMINER_MINING_BODY_THRESHOLD", "0.5")
	t.Setenv("CHANGEMINER_PROVIDER_TYPE", "jsonl")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.5, cfg.Mining.BodyThreshold)
	assert.Equal(t, "jsonl", cfg.Provider.Type)
}

func TestLoadExpandsHome(t *testing.T) {
	home := isolateEnv(t)
	path := writeConfig(t, "snapshot:\n  path: ~/snaps/changeminer.db\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "snaps", "changeminer.db"), cfg.Snapshot.Path)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	isolateEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestSecretPrecedence(t *testing.T) {
	isolateEnv(t)
	path := writeConfig(t, "neo4j:\n  password: from-file\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Neo4j.Password)
	assert.Equal(t, SourceFile, cfg.SecretSource(KeyringNeo4jPassword))
	assert.Equal(t, SourceNone, cfg.SecretSource(KeyringPostgresDSN))

	require.NoError(t, keyring.Set(KeyringService, KeyringNeo4jPassword, "from-keychain"))
	defer keyring.Delete(KeyringService, KeyringNeo4jPassword)

	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-keychain", cfg.Neo4j.Password)
	assert.Equal(t, SourceKeychain, cfg.SecretSource(KeyringNeo4jPassword))

	t.Setenv("NEO4J_PASSWORD", "from-env")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Neo4j.Password)
	assert.Equal(t, SourceEnv, cfg.SecretSource(KeyringNeo4jPassword))
}

func TestKeychainSkippedOnCI(t *testing.T) {
	isolateEnv(t)
	path := writeConfig(t, "neo4j:\n  password: from-file\n")
	require.NoError(t, keyring.Set(KeyringService, KeyringNeo4jPassword, "from-keychain"))
	defer keyring.Delete(KeyringService, KeyringNeo4jPassword)
	t.Setenv("CI", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Neo4j.Password)
}

func TestSaveRoundTrip(t *testing.T) {
	isolateEnv(t)
	cfg := Default()
	cfg.Mining.Pairing = "signature"
	cfg.Mining.RenameKeywords = []string{"namespace "}
	cfg.Export.Directory = "out"

	path := filepath.Join(t.TempDir(), "nested", "changeminer.yaml")
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "signature", loaded.Mining.Pairing)
	assert.Equal(t, []string{"namespace "}, loaded.Mining.RenameKeywords)
	assert.Equal(t, "out", loaded.Export.Directory)
}

func TestEngineOptionsRejectsUnknownPairing(t *testing.T) {
	cfg := Default()
	cfg.Mining.Pairing = "fuzzy"
	_, err := cfg.EngineOptions()
	assert.Error(t, err)
}

func TestRedacted(t *testing.T) {
	cfg := Default()
	cfg.Neo4j.Password = "correct-horse-battery"
	cfg.Storage.PostgresDSN = "postgres://miner:s3cret@db:5432/changes?sslmode=require"

	red := cfg.Redacted()
	assert.Equal(t, "cor...ery", red.Neo4j.Password)
	assert.Equal(t, "postgres://miner:***@db:5432/changes?sslmode=require", red.Storage.PostgresDSN)
	assert.Equal(t, "correct-horse-battery", cfg.Neo4j.Password)

	data, err := red.YAML()
	require.NoError(t, err)
	assert.NotContains(t, string(data), "s3cret")
	assert.Contains(t, string(data), "signature_threshold: 0.7")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"threshold above one", func(c *Config) { c.Mining.SignatureThreshold = 1.5 }, "mining.signature_threshold"},
		{"negative body threshold", func(c *Config) { c.Mining.BodyThreshold = -0.1 }, "mining.body_threshold"},
		{"empty separator", func(c *Config) { c.Mining.Separator = "" }, "mining.separator"},
		{"unknown pairing", func(c *Config) { c.Mining.Pairing = "fuzzy" }, "mining.pairing"},
		{"unknown provider", func(c *Config) { c.Provider.Type = "svn" }, "provider.type"},
		{"jsonl without input", func(c *Config) { c.Provider.Type = "jsonl" }, "provider.input"},
		{"git without extensions", func(c *Config) { c.Provider.Extensions = nil }, "provider.extensions"},
		{"unknown storage", func(c *Config) { c.Storage.Type = "mongo" }, "storage.type"},
		{"postgres without dsn", func(c *Config) { c.Storage.Type = "postgres" }, "storage.postgres_dsn"},
		{"postgres bad scheme", func(c *Config) {
			c.Storage.Type = "postgres"
			c.Storage.PostgresDSN = "mysql://x"
		}, "postgres://"},
		{"snapshot without path", func(c *Config) { c.Snapshot.Path = "" }, "snapshot.path"},
		{"csv without directory", func(c *Config) { c.Export.Directory = "" }, "export.directory"},
		{"neo4j without password", func(c *Config) { c.Neo4j.Enabled = true }, "neo4j.password"},
		{"bad log level", func(c *Config) { c.Logging.Level = "chatty" }, "logging.level"},
	}

	assert.False(t, Default().Validate().HasErrors())
	assert.NoError(t, Default().Validate().Err())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			result := cfg.Validate()
			require.True(t, result.HasErrors())
			assert.Contains(t, result.Error(), tt.wantErr)
			assert.Error(t, result.Err())
		})
	}
}

func TestValidateWarnings(t *testing.T) {
	cfg := Default()
	cfg.Mining.SafetyNet = false
	cfg.Mining.RenameKeywords = nil
	cfg.Neo4j.Enabled = true
	cfg.Neo4j.Password = "neo4j"

	result := cfg.Validate()
	assert.False(t, result.HasErrors())
	assert.Len(t, result.Warnings, 3)
}

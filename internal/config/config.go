package config

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/rohankatakam/changeminer/internal/errors"
	"github.com/rohankatakam/changeminer/internal/mining"
)

const (
	// EnvPrefix prefixes every environment override, e.g. CHANGEMINER_MINING_PAIRING
	EnvPrefix = "CHANGEMINER"

	// FileName is the config file name searched without extension
	FileName = "changeminer"
)

// Config holds all configuration settings
type Config struct {
	Mining   MiningConfig   `mapstructure:"mining" yaml:"mining"`
	Provider ProviderConfig `mapstructure:"provider" yaml:"provider"`
	Storage  StorageConfig  `mapstructure:"storage" yaml:"storage"`
	Snapshot SnapshotConfig `mapstructure:"snapshot" yaml:"snapshot"`
	Export   ExportConfig   `mapstructure:"export" yaml:"export"`
	Neo4j    Neo4jConfig    `mapstructure:"neo4j" yaml:"neo4j"`
	Metrics  MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`

	sources map[string]SecretSource
}

// MiningConfig tunes the reconciliation heuristics
type MiningConfig struct {
	Separator          string   `mapstructure:"separator" yaml:"separator"`
	SignatureThreshold float64  `mapstructure:"signature_threshold" yaml:"signature_threshold"`
	BodyThreshold      float64  `mapstructure:"body_threshold" yaml:"body_threshold"`
	Pairing            string   `mapstructure:"pairing" yaml:"pairing"` // "body", "signature"
	RenameKeywords     []string `mapstructure:"rename_keywords" yaml:"rename_keywords"`
	SafetyNet          bool     `mapstructure:"safety_net" yaml:"safety_net"`
	CommentPrefixes    []string `mapstructure:"comment_prefixes" yaml:"comment_prefixes"`
}

type ProviderConfig struct {
	Type                 string   `mapstructure:"type" yaml:"type"` // "git", "jsonl"
	RepoPath             string   `mapstructure:"repo_path" yaml:"repo_path"`
	Input                string   `mapstructure:"input" yaml:"input"`
	Extensions           []string `mapstructure:"extensions" yaml:"extensions"`
	From                 string   `mapstructure:"from" yaml:"from"`
	To                   string   `mapstructure:"to" yaml:"to"`
	MaxGitCallsPerSecond float64  `mapstructure:"max_git_calls_per_second" yaml:"max_git_calls_per_second"` // 0 = unlimited
}

type StorageConfig struct {
	Type        string `mapstructure:"type" yaml:"type"` // "sqlite", "postgres", "none"
	LocalPath   string `mapstructure:"local_path" yaml:"local_path"`
	PostgresDSN string `mapstructure:"postgres_dsn" yaml:"postgres_dsn"`
}

type SnapshotConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

type ExportConfig struct {
	Directory string `mapstructure:"directory" yaml:"directory"`
	CSV       bool   `mapstructure:"csv" yaml:"csv"`
}

type Neo4jConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	URI      string `mapstructure:"uri" yaml:"uri"`
	User     string `mapstructure:"user" yaml:"user"`
	Password string `mapstructure:"password" yaml:"password"`
	Database string `mapstructure:"database" yaml:"database"`
}

type MetricsConfig struct {
	Textfile string `mapstructure:"textfile" yaml:"textfile"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	JSON  bool   `mapstructure:"json" yaml:"json"`
	File  string `mapstructure:"file" yaml:"file"`
}

// Default returns default configuration
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	opts := mining.DefaultOptions()
	return &Config{
		Mining: MiningConfig{
			Separator:          opts.Separator,
			SignatureThreshold: opts.SignatureThreshold,
			BodyThreshold:      opts.BodyThreshold,
			Pairing:            string(opts.Pairing),
			RenameKeywords:     append([]string(nil), opts.RenameKeywords...),
			SafetyNet:          opts.SafetyNet,
			CommentPrefixes:    append([]string(nil), opts.CommentPrefixes...),
		},
		Provider: ProviderConfig{
			Type:       "git",
			RepoPath:   ".",
			Extensions: []string{".cs", ".java"},
		},
		Storage: StorageConfig{
			Type:      "sqlite",
			LocalPath: filepath.Join(homeDir, ".changeminer", "changeminer.db"),
		},
		Snapshot: SnapshotConfig{
			Enabled: true,
			Path:    filepath.Join(homeDir, ".changeminer", "snapshots.db"),
		},
		Export: ExportConfig{
			Directory: "changeminer-out",
			CSV:       true,
		},
		Neo4j: Neo4jConfig{
			URI:      "bolt://localhost:7687",
			User:     "neo4j",
			Database: "neo4j",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from path, or from the standard locations when
// path is empty. Precedence: env > config file > defaults; secrets also
// consult the OS keychain between env and file.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		v.AddConfigPath(".changeminer")
		v.AddConfigPath(".")
		homeDir, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(homeDir, ".changeminer"))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !stderrors.As(err, &notFound) {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, errors.SeverityCritical, "failed to read config").
				WithContext("path", path)
		}
		// Config file not found is OK, use defaults
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, errors.SeverityCritical, "failed to unmarshal config")
	}

	cfg.Storage.LocalPath = expandPath(cfg.Storage.LocalPath)
	cfg.Snapshot.Path = expandPath(cfg.Snapshot.Path)
	cfg.Export.Directory = expandPath(cfg.Export.Directory)
	cfg.Provider.RepoPath = expandPath(cfg.Provider.RepoPath)
	cfg.Logging.File = expandPath(cfg.Logging.File)

	cfg.sources = resolveSecrets(cfg, NewKeyringManager(nil))
	return cfg, nil
}

// setDefaults registers every leaf key so AutomaticEnv can override nested values
func setDefaults(v *viper.Viper, cfg *Config) {
	defaults := map[string]interface{}{
		"mining.separator":                  cfg.Mining.Separator,
		"mining.signature_threshold":        cfg.Mining.SignatureThreshold,
		"mining.body_threshold":             cfg.Mining.BodyThreshold,
		"mining.pairing":                    cfg.Mining.Pairing,
		"mining.rename_keywords":            cfg.Mining.RenameKeywords,
		"mining.safety_net":                 cfg.Mining.SafetyNet,
		"mining.comment_prefixes":           cfg.Mining.CommentPrefixes,
		"provider.type":                     cfg.Provider.Type,
		"provider.repo_path":                cfg.Provider.RepoPath,
		"provider.input":                    cfg.Provider.Input,
		"provider.extensions":               cfg.Provider.Extensions,
		"provider.from":                     cfg.Provider.From,
		"provider.to":                       cfg.Provider.To,
		"provider.max_git_calls_per_second": cfg.Provider.MaxGitCallsPerSecond,
		"storage.type":                      cfg.Storage.Type,
		"storage.local_path":                cfg.Storage.LocalPath,
		"storage.postgres_dsn":              cfg.Storage.PostgresDSN,
		"snapshot.enabled":                  cfg.Snapshot.Enabled,
		"snapshot.path":                     cfg.Snapshot.Path,
		"export.directory":                  cfg.Export.Directory,
		"export.csv":                        cfg.Export.CSV,
		"neo4j.enabled":                     cfg.Neo4j.Enabled,
		"neo4j.uri":                         cfg.Neo4j.URI,
		"neo4j.user":                        cfg.Neo4j.User,
		"neo4j.password":                    cfg.Neo4j.Password,
		"neo4j.database":                    cfg.Neo4j.Database,
		"metrics.textfile":                  cfg.Metrics.Textfile,
		"logging.level":                     cfg.Logging.Level,
		"logging.json":                      cfg.Logging.JSON,
		"logging.file":                      cfg.Logging.File,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

// loadEnvFiles loads .env files in order of precedence. godotenv never
// overrides variables that are already set, so earlier files win.
func loadEnvFiles() {
	envFiles := []string{
		".env.local", // Local overrides (highest precedence)
		".env",
	}
	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			_ = godotenv.Load(file)
		}
	}

	homeDir, _ := os.UserHomeDir()
	homeEnvFile := filepath.Join(homeDir, ".changeminer", ".env")
	if _, err := os.Stat(homeEnvFile); err == nil {
		_ = godotenv.Load(homeEnvFile)
	}
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}
	return path
}

// SecretSource reports where the keychain item's value was resolved from
func (c *Config) SecretSource(item string) SecretSource {
	if src, ok := c.sources[item]; ok {
		return src
	}
	return SourceNone
}

// EngineOptions converts the mining section into engine options
func (c *Config) EngineOptions() (mining.Options, error) {
	mode := mining.PairingMode(strings.ToLower(c.Mining.Pairing))
	if mode != mining.PairByBody && mode != mining.PairBySignature {
		return mining.Options{}, errors.ConfigErrorf("unknown pairing mode %q", c.Mining.Pairing)
	}
	return mining.Options{
		Separator:          c.Mining.Separator,
		SignatureThreshold: c.Mining.SignatureThreshold,
		BodyThreshold:      c.Mining.BodyThreshold,
		Pairing:            mode,
		RenameKeywords:     c.Mining.RenameKeywords,
		SafetyNet:          c.Mining.SafetyNet,
		CommentPrefixes:    c.Mining.CommentPrefixes,
	}, nil
}

// Redacted returns a copy with secrets masked, for display
func (c *Config) Redacted() *Config {
	out := *c
	out.Neo4j.Password = MaskSecret(c.Neo4j.Password)
	out.Storage.PostgresDSN = maskDSN(c.Storage.PostgresDSN)
	return &out
}

// YAML renders the configuration as YAML
func (c *Config) YAML() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, errors.SeverityHigh, "failed to encode config")
	}
	return data, nil
}

// Save saves configuration to file
func (c *Config) Save(path string) error {
	data, err := c.YAML()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.FileSystemError(err, "failed to create config directory").WithContext("dir", dir)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return errors.FileSystemError(err, fmt.Sprintf("failed to write config %s", path))
	}
	return nil
}

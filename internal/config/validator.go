package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/changeminer/internal/errors"
	"github.com/rohankatakam/changeminer/internal/mining"
)

// ValidationResult holds validation results
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// AddError adds an error to the validation result
func (vr *ValidationResult) AddError(format string, args ...interface{}) {
	vr.Valid = false
	vr.Errors = append(vr.Errors, fmt.Sprintf(format, args...))
}

// AddWarning adds a warning to the validation result
func (vr *ValidationResult) AddWarning(format string, args ...interface{}) {
	vr.Warnings = append(vr.Warnings, fmt.Sprintf(format, args...))
}

// HasErrors returns true if there are any errors
func (vr *ValidationResult) HasErrors() bool {
	return !vr.Valid || len(vr.Errors) > 0
}

// Error returns a formatted error message
func (vr *ValidationResult) Error() string {
	if !vr.HasErrors() {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Configuration validation failed:\n")
	for _, err := range vr.Errors {
		sb.WriteString(fmt.Sprintf("  ❌ %s\n", err))
	}
	if len(vr.Warnings) > 0 {
		sb.WriteString("\nWarnings:\n")
		for _, warn := range vr.Warnings {
			sb.WriteString(fmt.Sprintf("  ⚠️  %s\n", warn))
		}
	}
	return sb.String()
}

// Err converts a failed result into a config error, or nil
func (vr *ValidationResult) Err() error {
	if !vr.HasErrors() {
		return nil
	}
	return errors.ConfigErrorf("%s", strings.TrimRight(vr.Error(), "\n"))
}

// Validate checks every section
func (c *Config) Validate() *ValidationResult {
	result := &ValidationResult{Valid: true}
	c.validateMining(result)
	c.validateProvider(result)
	c.validateStorage(result)
	c.validateSnapshot(result)
	c.validateExport(result)
	c.validateNeo4j(result)
	c.validateLogging(result)
	return result
}

func (c *Config) validateMining(result *ValidationResult) {
	if c.Mining.Separator == "" {
		result.AddError("mining.separator must not be empty")
	}
	thresholds := []struct {
		key   string
		value float64
	}{
		{"mining.signature_threshold", c.Mining.SignatureThreshold},
		{"mining.body_threshold", c.Mining.BodyThreshold},
	}
	for _, t := range thresholds {
		if t.value < 0 || t.value > 1 {
			result.AddError("%s is out of range [0,1]: %.2f", t.key, t.value)
		}
	}

	switch mining.PairingMode(strings.ToLower(c.Mining.Pairing)) {
	case mining.PairByBody, mining.PairBySignature:
	default:
		result.AddError("mining.pairing must be %q or %q, got %q", mining.PairByBody, mining.PairBySignature, c.Mining.Pairing)
	}

	if len(c.Mining.RenameKeywords) == 0 {
		result.AddWarning("mining.rename_keywords is empty; scope renames will never be detected")
	}
	if !c.Mining.SafetyNet {
		result.AddWarning("mining.safety_net is disabled; registry drift will not be repaired")
	}
}

func (c *Config) validateProvider(result *ValidationResult) {
	switch c.Provider.Type {
	case "git":
		if c.Provider.RepoPath == "" {
			result.AddError("provider.repo_path is required for the git provider")
		}
		if len(c.Provider.Extensions) == 0 {
			result.AddError("provider.extensions must list at least one file extension")
		}
	case "jsonl":
		if c.Provider.Input == "" {
			result.AddError("provider.input is required for the jsonl provider")
		}
	default:
		result.AddError("provider.type must be \"git\" or \"jsonl\", got %q", c.Provider.Type)
	}

	if c.Provider.MaxGitCallsPerSecond < 0 {
		result.AddError("provider.max_git_calls_per_second must not be negative")
	}
}

func (c *Config) validateStorage(result *ValidationResult) {
	switch c.Storage.Type {
	case "none":
	case "sqlite":
		if c.Storage.LocalPath == "" {
			result.AddError("storage.local_path is required for sqlite storage")
		}
	case "postgres":
		dsn := c.Storage.PostgresDSN
		if dsn == "" {
			result.AddError("storage.postgres_dsn is required for postgres storage. Set it via CHANGEMINER_STORAGE_POSTGRES_DSN or the keychain.")
			return
		}
		if !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
			result.AddError("storage.postgres_dsn must start with postgres:// or postgresql://")
		}
		if strings.Contains(dsn, "sslmode=disable") && !strings.Contains(dsn, "@localhost") {
			result.AddWarning("storage.postgres_dsn has sslmode=disable for a remote host")
		}
	default:
		result.AddError("storage.type must be \"sqlite\", \"postgres\" or \"none\", got %q", c.Storage.Type)
	}
}

func (c *Config) validateSnapshot(result *ValidationResult) {
	if c.Snapshot.Enabled && c.Snapshot.Path == "" {
		result.AddError("snapshot.path is required when snapshots are enabled")
	}
}

func (c *Config) validateExport(result *ValidationResult) {
	if c.Export.CSV && c.Export.Directory == "" {
		result.AddError("export.directory is required when CSV export is enabled")
	}
}

func (c *Config) validateNeo4j(result *ValidationResult) {
	if !c.Neo4j.Enabled {
		return
	}

	if c.Neo4j.URI == "" {
		result.AddError("neo4j.uri is required when the graph export is enabled")
	} else if _, err := url.Parse(c.Neo4j.URI); err != nil {
		result.AddError("neo4j.uri is invalid: %v", err)
	}
	if c.Neo4j.User == "" {
		result.AddError("neo4j.user is required when the graph export is enabled")
	}
	if c.Neo4j.Password == "" {
		result.AddError("neo4j.password is required. Set it via CHANGEMINER_NEO4J_PASSWORD or the keychain.")
	} else if c.Neo4j.Password == "neo4j" || c.Neo4j.Password == "password" {
		result.AddWarning("neo4j.password is set to a very common password")
	}
	if c.Neo4j.Database == "" {
		result.AddWarning("neo4j.database is not set, will use 'neo4j' as default")
	}
}

func (c *Config) validateLogging(result *ValidationResult) {
	if c.Logging.Level == "" {
		return
	}
	if _, err := logrus.ParseLevel(c.Logging.Level); err != nil {
		result.AddError("logging.level is invalid: %v", err)
	}
}

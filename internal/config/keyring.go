package config

import (
	"bufio"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/zalando/go-keyring"
	"golang.org/x/term"

	"github.com/rohankatakam/changeminer/internal/errors"
)

const (
	// KeyringService is the service name in the OS keychain
	KeyringService = "changeminer"

	// KeyringNeo4jPassword holds neo4j.password
	KeyringNeo4jPassword = "neo4j-password"

	// KeyringPostgresDSN holds storage.postgres_dsn
	KeyringPostgresDSN = "postgres-dsn"
)

// SecretItems lists the keychain items the tool understands
var SecretItems = []string{KeyringNeo4jPassword, KeyringPostgresDSN}

// KeyringManager handles secure credential storage in OS keychain
type KeyringManager struct {
	logger logrus.FieldLogger
}

// NewKeyringManager creates a keyring manager; a nil logger discards output
func NewKeyringManager(logger logrus.FieldLogger) *KeyringManager {
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	return &KeyringManager{logger: logger.WithField("component", "keyring")}
}

// Get returns the stored value, or "" when the item is not set
func (km *KeyringManager) Get(item string) (string, error) {
	value, err := keyring.Get(KeyringService, item)
	if stderrors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		km.logger.WithError(err).WithField("item", item).Debug("failed to read from keychain")
		return "", errors.ExternalError(err, "failed to read from OS keychain").WithContext("item", item)
	}
	return value, nil
}

// Set stores value under item
func (km *KeyringManager) Set(item, value string) error {
	if !knownItem(item) {
		return errors.ValidationErrorf("unknown secret %q (known: %s)", item, strings.Join(SecretItems, ", "))
	}
	if value == "" {
		return errors.ValidationErrorf("secret %s cannot be empty", item)
	}
	if err := keyring.Set(KeyringService, item, value); err != nil {
		return errors.ExternalError(err, "failed to save to OS keychain").WithContext("item", item)
	}
	km.logger.WithField("item", item).Info("secret saved to keychain")
	return nil
}

// Delete removes item; deleting a missing item is not an error
func (km *KeyringManager) Delete(item string) error {
	err := keyring.Delete(KeyringService, item)
	if err == nil || stderrors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return errors.ExternalError(err, "failed to delete from OS keychain").WithContext("item", item)
}

// IsAvailable reports whether the keychain can be queried. Headless CI
// machines usually have none.
func (km *KeyringManager) IsAvailable() bool {
	_, err := keyring.Get(KeyringService, "availability-probe")
	if err == nil || stderrors.Is(err, keyring.ErrNotFound) {
		return true
	}
	km.logger.WithError(err).Debug("keychain not available")
	return false
}

func knownItem(item string) bool {
	for _, known := range SecretItems {
		if item == known {
			return true
		}
	}
	return false
}

// SecretSource names where a resolved secret came from
type SecretSource string

const (
	SourceEnv      SecretSource = "env"
	SourceKeychain SecretSource = "keychain"
	SourceFile     SecretSource = "config"
	SourceNone     SecretSource = "none"
)

// secretSpec binds a config field to its env names and keychain item
type secretSpec struct {
	envNames []string
	item     string
	field    *string
}

// resolveSecrets applies env > keychain > file precedence to every secret.
// The keychain is skipped on CI where it cannot prompt.
func resolveSecrets(cfg *Config, km *KeyringManager) map[string]SecretSource {
	specs := []secretSpec{
		{envNames: []string{EnvPrefix + "_NEO4J_PASSWORD", "NEO4J_PASSWORD"}, item: KeyringNeo4jPassword, field: &cfg.Neo4j.Password},
		{envNames: []string{EnvPrefix + "_STORAGE_POSTGRES_DSN", "POSTGRES_DSN"}, item: KeyringPostgresDSN, field: &cfg.Storage.PostgresDSN},
	}

	sources := make(map[string]SecretSource, len(specs))
	for _, s := range specs {
		sources[s.item] = resolveSecret(s, km)
	}
	return sources
}

func resolveSecret(s secretSpec, km *KeyringManager) SecretSource {
	for _, name := range s.envNames {
		if value, ok := os.LookupEnv(name); ok && value != "" {
			*s.field = value
			return SourceEnv
		}
	}
	if !isCI() {
		if value, err := km.Get(s.item); err == nil && value != "" {
			*s.field = value
			return SourceKeychain
		}
	}
	if *s.field != "" {
		return SourceFile
	}
	return SourceNone
}

// isCI detects if running in a CI/CD environment
func isCI() bool {
	for _, name := range []string{"CI", "CONTINUOUS_INTEGRATION", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "BUILDKITE", "TF_BUILD"} {
		if os.Getenv(name) != "" {
			return true
		}
	}
	return false
}

// ReadSecret reads a secret from in without echoing when in is a terminal
func ReadSecret(in *os.File, out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	if term.IsTerminal(int(in.Fd())) {
		b, err := term.ReadPassword(int(in.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", errors.Wrap(err, errors.ErrorTypeValidation, errors.SeverityHigh, "failed to read secret")
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", errors.Wrap(err, errors.ErrorTypeValidation, errors.SeverityHigh, "failed to read secret")
	}
	return strings.TrimSpace(line), nil
}

// MaskSecret masks a secret for display: "hunter2hunter" -> "hun...ter"
func MaskSecret(secret string) string {
	if secret == "" {
		return "(not set)"
	}
	if len(secret) < 10 {
		return "***"
	}
	return fmt.Sprintf("%s...%s", secret[:3], secret[len(secret)-3:])
}

// maskDSN hides the password portion of a postgres URL
func maskDSN(dsn string) string {
	scheme := strings.Index(dsn, "://")
	at := strings.LastIndex(dsn, "@")
	if scheme < 0 || at < scheme {
		return dsn
	}
	userinfo := dsn[scheme+3 : at]
	colon := strings.Index(userinfo, ":")
	if colon < 0 {
		return dsn
	}
	return dsn[:scheme+3] + userinfo[:colon] + ":***" + dsn[at:]
}

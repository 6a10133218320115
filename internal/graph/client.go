package graph

import (
	"context"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/changeminer/internal/errors"
)

// Config holds connection settings for a Neo4j server
type Config struct {
	URI      string
	User     string
	Password string
	Database string
}

// Client wraps the Neo4j driver for writing mining results
type Client struct {
	driver   neo4j.DriverWithContext
	database string
	batch    BatchConfig
	logger   logrus.FieldLogger
}

// NewClient connects to Neo4j and verifies connectivity
func NewClient(ctx context.Context, cfg Config, logger logrus.FieldLogger) (*Client, error) {
	if cfg.URI == "" || cfg.User == "" || cfg.Password == "" {
		return nil, errors.ConfigErrorf("neo4j credentials missing: uri=%s, user=%s", cfg.URI, cfg.User)
	}
	if cfg.Database == "" {
		cfg.Database = "neo4j"
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI,
		neo4j.BasicAuth(cfg.User, cfg.Password, ""),
		func(config *neo4j.Config) {
			config.MaxConnectionPoolSize = 10
			config.ConnectionAcquisitionTimeout = 60 * time.Second
			config.MaxConnectionLifetime = time.Hour
			config.SocketConnectTimeout = 5 * time.Second
			config.SocketKeepalive = true
		})
	if err != nil {
		return nil, errors.ExternalError(err, "failed to create neo4j driver")
	}

	// fail fast on startup
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, errors.ExternalError(err, "failed to connect to neo4j").WithContext("uri", cfg.URI)
	}

	log := logger.WithField("component", "neo4j")
	log.WithFields(logrus.Fields{
		"uri":      cfg.URI,
		"database": cfg.Database,
	}).Info("neo4j client connected")

	return &Client{
		driver:   driver,
		database: cfg.Database,
		batch:    DefaultBatchConfig(),
		logger:   log,
	}, nil
}

// Close closes the Neo4j driver connection
func (c *Client) Close(ctx context.Context) error {
	if err := c.driver.Close(ctx); err != nil {
		return errors.ExternalError(err, "failed to close neo4j driver")
	}
	return nil
}

// HealthCheck verifies Neo4j connectivity
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := c.driver.VerifyConnectivity(ctx); err != nil {
		return errors.ExternalError(err, "neo4j health check failed")
	}
	return nil
}

// write runs one write query with the operation's timeout
func (c *Client) write(ctx context.Context, op, query string, params map[string]any) error {
	if timeout := timeoutFor(op); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	_, err := neo4j.ExecuteQuery(ctx, c.driver, query, params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(c.database),
		neo4j.ExecuteQueryWithWritersRouting())
	if err != nil {
		return errors.ExternalError(err, "neo4j write failed").WithContext("operation", op)
	}
	return nil
}

// count runs a read query returning a single integer column named "count"
func (c *Client) count(ctx context.Context, query string, params map[string]any) (int64, error) {
	if timeout := timeoutFor(opRead); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	result, err := neo4j.ExecuteQuery(ctx, c.driver, query, params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(c.database),
		neo4j.ExecuteQueryWithReadersRouting())
	if err != nil {
		return 0, errors.ExternalError(err, "neo4j read failed")
	}
	if len(result.Records) == 0 {
		return 0, nil
	}

	value, ok := result.Records[0].Get("count")
	if !ok {
		return 0, errors.InternalErrorf("query returned no count column")
	}
	n, ok := value.(int64)
	if !ok {
		return 0, errors.InternalErrorf("unexpected type for count: %T (expected int64)", value)
	}
	return n, nil
}

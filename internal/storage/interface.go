package storage

import (
	"context"
	stderrors "errors"

	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/changeminer/internal/errors"
	"github.com/rohankatakam/changeminer/internal/models"
)

// Common errors
var (
	ErrNotFound = stderrors.New("not found")
)

// Backend types accepted by Open
const (
	TypeSQLite   = "sqlite"
	TypePostgres = "postgres"
	TypeNone     = "none"
)

// Store persists mining runs for later reporting
type Store interface {
	// SaveResult replaces everything stored for result.Run.ID in one transaction
	SaveResult(ctx context.Context, result *models.RunResult) error

	// Run operations
	GetRun(ctx context.Context, id string) (*models.Run, error)
	ListRuns(ctx context.Context, limit int) ([]*models.Run, error)
	PurgeRuns(ctx context.Context, ids []string) (int64, error)

	// Method operations
	TopMethods(ctx context.Context, runID string, limit int) ([]models.MethodRow, error)
	MethodEvents(ctx context.Context, runID, fullPath, method string) ([]models.EventRow, error)
	TrashedMethods(ctx context.Context, runID string) ([]models.TrashRow, error)

	// Close connection
	Close() error
}

// Open connects to the backend named by storeType. target is a file path for
// sqlite and a DSN for postgres.
func Open(ctx context.Context, storeType, target string, logger logrus.FieldLogger) (Store, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	switch storeType {
	case TypeSQLite:
		return NewSQLiteStore(ctx, target, logger)
	case TypePostgres:
		return NewPostgresStore(ctx, target, logger)
	default:
		return nil, errors.ConfigErrorf("unsupported storage type %q", storeType)
	}
}

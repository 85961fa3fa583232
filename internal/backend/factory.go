package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"expensebook/internal/amqp"
	"expensebook/internal/memory"
	gsheet "expensebook/internal/sheets/google"
	"expensebook/internal/storage"
	"expensebook/internal/store"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend builds the stores for config. Record stores are wrapped in
// store.Versioned so dashboards can be memoized.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case SheetsBackend:
		return f.createSheetsBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	result := &BackendResult{
		Records:     store.NewVersioned(repo),
		Credentials: repo,
		Health:      repo.Health,
	}

	// AMQP is optional; without it the worker's periodic pass catches up
	var amqpClient *amqp.Client
	if config.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without sync", "error", err)
		} else {
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
			result.Publisher = amqpClient
		}
	}

	result.Cleanup = func() error {
		var errs []error
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				errs = append(errs, fmt.Errorf("amqp: %w", err))
			}
		}
		if err := repo.Close(); err != nil {
			errs = append(errs, fmt.Errorf("sqlite: %w", err))
		}
		return errors.Join(errs...)
	}

	f.logger.Info("Initialized SQLite backend",
		"db_path", config.SQLiteDBPath,
		"amqp_enabled", amqpClient != nil)
	return result, nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (*BackendResult, error) {
	cli, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:      config.GoogleSpreadsheetID,
		SheetName:          config.GoogleSheetName,
		ServiceAccountJSON: config.GoogleServiceAccountJSON,
		ServiceAccountFile: config.GoogleServiceAccountFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	// The spreadsheet holds records only; accounts live in the local store
	creds, err := f.openMemory(config.DataFile)
	if err != nil {
		return nil, err
	}

	f.logger.Info("Initialized Google Sheets backend", "spreadsheet_id", config.GoogleSpreadsheetID)
	return &BackendResult{
		Records:     store.NewVersioned(cli),
		Credentials: creds,
		Health: func(ctx context.Context) error {
			if err := creds.Health(ctx); err != nil {
				return err
			}
			return cli.Health(ctx)
		},
		Cleanup: creds.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	mem, err := f.openMemory(config.DataFile)
	if err != nil {
		return nil, err
	}

	f.logger.Info("Initialized memory backend", "data_file", config.DataFile)
	return &BackendResult{
		Records:     store.NewVersioned(mem),
		Credentials: mem,
		Health:      mem.Health,
		Cleanup:     mem.Close,
	}, nil
}

func (f *DefaultFactory) openMemory(path string) (*memory.Store, error) {
	if path == "" {
		return memory.New(), nil
	}
	mem, err := memory.NewFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load data file: %w", err)
	}
	return mem, nil
}

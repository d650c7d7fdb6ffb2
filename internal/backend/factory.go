package backend

import (
	"context"
	"fmt"
	"time"

	"fintrack/internal/log"
	"fintrack/internal/store/memory"
	"fintrack/internal/store/sqlite"
	"fintrack/internal/store/supabase"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
	now    func() time.Time
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
		now:    time.Now,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case SupabaseBackend:
		return f.createSupabaseBackend(config)
	case MemoryBackend:
		return f.createMemoryBackend(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	repo, err := sqlite.NewRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &BackendResult{
		Store:   repo,
		Ledger:  repo,
		Ping:    repo.Ping,
		Cleanup: repo.Close,
	}, nil
}

func (f *DefaultFactory) createSupabaseBackend(config Config) (*BackendResult, error) {
	s, err := supabase.New(supabase.Config{
		URL:        config.SupabaseURL,
		AnonKey:    config.SupabaseAnonKey,
		ServiceKey: config.SupabaseServiceKey,
		Timeout:    config.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Supabase client: %w", err)
	}

	res := &BackendResult{Store: s, Ping: s.Ping}
	if config.SupabaseServiceKey != "" {
		res.Ledger = s
	}

	f.logger.Info("Initialized Supabase backend",
		"url", config.SupabaseURL,
		"ledger_access", res.Ledger != nil)

	return res, nil
}

func (f *DefaultFactory) createMemoryBackend(ctx context.Context, config Config) (*BackendResult, error) {
	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = "data" // Default directory
	}

	s := memory.NewFromFiles(dataDir)
	if config.SeedDemo {
		id, err := s.SeedDemo(ctx, config.SeedEmail, config.SeedPassword, f.now())
		if err != nil {
			return nil, fmt.Errorf("seed demo data: %w", err)
		}
		f.logger.Info("Seeded demo account", "email", config.SeedEmail, log.FieldUserID, id.UserID)
	}

	f.logger.Info("Initialized memory backend", "data_directory", dataDir)

	return &BackendResult{
		Store:  s,
		Ledger: s,
		Ping:   func(context.Context) error { return nil },
	}, nil
}

package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

// Config selects the database backend.
type Config struct {
	// Driver is "sqlite" (default) or "postgres".
	Driver string

	// DSN is a file path for sqlite or a connection string for postgres.
	// Empty with sqlite means DefaultDBPath.
	DSN string

	// LogLevel controls gorm's SQL logger. Default: warn.
	LogLevel gormlogger.LogLevel
}

// Store holds the gorm handle and provides access to repositories.
type Store struct {
	db    *gorm.DB
	sqlDB *sql.DB
}

// Open connects to the configured database, applies SQLite pragmas when
// relevant and runs auto-migration.
func Open(cfg Config) (*Store, error) {
	level := cfg.LogLevel
	if level == 0 {
		level = gormlogger.Warn
	}
	gcfg := &gorm.Config{
		Logger:  gormlogger.Default.LogMode(level),
		NowFunc: func() time.Time { return time.Now().UTC() },
	}

	var (
		dialector gorm.Dialector
		sqlDB     *sql.DB
	)
	switch cfg.Driver {
	case "", "sqlite":
		dsn := cfg.DSN
		if dsn == "" {
			p, err := DefaultDBPath()
			if err != nil {
				return nil, err
			}
			dsn = p
		}
		db, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		// SQLite allows a single writer; one connection keeps
		// transactions from tripping over each other.
		db.SetMaxOpenConns(1)
		if err := applyPragmas(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply pragmas: %w", err)
		}
		sqlDB = db
		dialector = sqlite.New(sqlite.Config{DriverName: "sqlite", Conn: db})
	case "postgres":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("postgres driver requires a DSN")
		}
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown database driver: %q", cfg.Driver)
	}

	gdb, err := gorm.Open(dialector, gcfg)
	if err != nil {
		if sqlDB != nil {
			sqlDB.Close()
		}
		return nil, fmt.Errorf("open gorm: %w", err)
	}
	if sqlDB == nil {
		if sqlDB, err = gdb.DB(); err != nil {
			return nil, fmt.Errorf("underlying sql.DB: %w", err)
		}
	}

	if err := gdb.AutoMigrate(allModels()...); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}

	return &Store{db: gdb, sqlDB: sqlDB}, nil
}

// DB returns the underlying gorm handle.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.sqlDB.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.sqlDB.Close()
}

func (s *Store) Sessions() SessionRepo {
	return &sessionRepo{db: s.db}
}

func (s *Store) Articles() ArticleRepo {
	return &articleRepo{db: s.db}
}

func (s *Store) Proficiency() ProficiencyRepo {
	return &proficiencyRepo{db: s.db}
}

func (s *Store) Completions() CompletionRepo {
	return &completionRepo{db: s.db}
}

// Events returns the LLM request event log.
func (s *Store) Events() LLMEventRepo {
	return &llmEventRepo{db: s.db}
}

// applyPragmas configures SQLite for a small multi-request service.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

// DefaultDBPath resolves the SQLite file path in priority order:
// 1. DEEPREVIEW_DB environment variable
// 2. $XDG_DATA_HOME/deepreview/deepreview.db
// 3. ~/.local/share/deepreview/deepreview.db
func DefaultDBPath() (string, error) {
	if p := os.Getenv("DEEPREVIEW_DB"); p != "" {
		return p, ensureDir(p)
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}

	p := filepath.Join(dataHome, "deepreview", "deepreview.db")
	return p, ensureDir(p)
}

func ensureDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver
	"github.com/gs-labs/stories-service/internal/platform/logger"
)

// Session manager errors. Both are configuration errors, distinct from
// any transaction error: hitting them means the process is wired wrong.
var (
	// ErrNotInitialized is returned when the SessionManager is used
	// before Init. Fatal; the caller must abort startup.
	ErrNotInitialized = errors.New("session manager is not initialized")

	// ErrAlreadyInitialized is returned when Init is called on an
	// initialized manager without an intervening Close.
	ErrAlreadyInitialized = errors.New("session manager is already initialized")
)

// PoolConfig holds the connection pool bounds for the session manager.
type PoolConfig struct {
	// URL is the database connection string.
	URL string

	// MinConns is the number of idle connections kept in the pool.
	MinConns int

	// MaxConns is the maximum number of open connections.
	MaxConns int

	// AcquireTimeout bounds the pre-flight liveness check performed
	// during Init.
	AcquireTimeout time.Duration

	// PrePing enables a liveness check against the database during Init.
	PrePing bool

	// ConnMaxLifetime bounds how long a pooled connection may be reused.
	// Zero means connections are reused forever.
	ConnMaxLifetime time.Duration
}

// TxFn is a function that executes within a database transaction.
// It receives the context and a transaction, and returns an error if the
// operation fails. The transaction is committed if the function returns
// nil, or rolled back if it returns an error.
type TxFn func(ctx context.Context, tx *sql.Tx) error

// SessionManager owns the process-wide pooled database connection and
// exposes scoped transaction acquisition. Exactly one transaction
// boundary exists per scoped acquisition; one pooled connection is
// borrowed for the duration of the scope and returned on exit, commit or
// rollback alike.
type SessionManager struct {
	mu     sync.Mutex
	db     *sql.DB
	logger *slog.Logger
}

// NewSessionManager creates an uninitialized SessionManager.
// If logger is nil, the default logger is used.
func NewSessionManager(logger *slog.Logger) *SessionManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionManager{
		logger: logger.With(slog.String("component", "session_manager")),
	}
}

// NewSessionManagerFromDB wraps an already-open connection pool in an
// initialized SessionManager. Used by tests and by callers that manage
// the pool themselves.
func NewSessionManagerFromDB(db *sql.DB, logger *slog.Logger) *SessionManager {
	m := NewSessionManager(logger)
	m.db = db
	return m
}

// Init opens the pooled connection resource and applies the configured
// bounds. Calling Init on an initialized manager fails with
// ErrAlreadyInitialized rather than silently overwriting the pool.
func (m *SessionManager) Init(ctx context.Context, cfg PoolConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.db != nil {
		return ErrAlreadyInitialized
	}

	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MinConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if cfg.PrePing {
		pingCtx := ctx
		if cfg.AcquireTimeout > 0 {
			var cancel context.CancelFunc
			pingCtx, cancel = context.WithTimeout(ctx, cfg.AcquireTimeout)
			defer cancel()
		}
		if err := db.PingContext(pingCtx); err != nil {
			_ = db.Close()
			return fmt.Errorf("failed to ping database: %w", err)
		}
	}

	m.db = db
	m.logger.Info("database connection pool established",
		slog.Int("min_conns", cfg.MinConns),
		slog.Int("max_conns", cfg.MaxConns))
	return nil
}

// Close releases the connection resource. It is a no-op if the manager
// was never initialized.
func (m *SessionManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.db == nil {
		return nil
	}

	err := m.db.Close()
	m.db = nil
	return err
}

// DB returns the underlying pooled connection, or ErrNotInitialized if
// Init has not been called.
func (m *SessionManager) DB() (*sql.DB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.db == nil {
		return nil, ErrNotInitialized
	}
	return m.db, nil
}

// WithTx executes the given function within a database transaction
// scoped to this acquisition. If the function returns an error, the
// transaction is rolled back and the original error is returned
// unmodified. Otherwise the transaction is committed. Panics roll the
// transaction back and re-raise.
func (m *SessionManager) WithTx(ctx context.Context, fn TxFn) error {
	db, err := m.DB()
	if err != nil {
		return err
	}
	return runInTransaction(ctx, db, fn)
}

// WithConn executes the given function within a transaction on a
// dedicated pooled connection, bypassing any shared statement state.
// The commit/rollback contract is identical to WithTx. Used where the
// Repository abstraction is bypassed (migrations, ad-hoc SQL).
func (m *SessionManager) WithConn(ctx context.Context, fn TxFn) error {
	db, err := m.DB()
	if err != nil {
		return err
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	return runInTransaction(ctx, conn, fn)
}

// txBeginner is satisfied by *sql.DB and *sql.Conn.
type txBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// runInTransaction executes fn within a transaction begun on db.
// It handles rollback in case of error or panic and logs accordingly.
func runInTransaction(ctx context.Context, db txBeginner, fn TxFn) error {
	log := logger.FromContext(ctx)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		log.Error("failed to begin transaction",
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	// Roll back and re-raise if fn panics.
	defer func() {
		if p := recover(); p != nil {
			txErr := tx.Rollback()
			if txErr != nil {
				log.Error("failed to roll back transaction after panic",
					slog.String("error", txErr.Error()),
					slog.Any("panic", p))
			} else {
				log.Error("rolled back transaction after panic",
					slog.Any("panic", p))
			}
			panic(p)
		}
	}()

	err = fn(ctx, tx)
	if err != nil {
		rollbackErr := tx.Rollback()
		if rollbackErr != nil {
			log.Error("failed to roll back transaction",
				slog.String("rollback_error", rollbackErr.Error()),
				slog.String("original_error", err.Error()))
			return fmt.Errorf(
				"error rolling back transaction: %v (original error: %w)",
				rollbackErr,
				err,
			)
		}
		log.Debug("rolled back transaction due to error",
			slog.String("error", err.Error()))
		// The caller sees the original error, unmodified, after the
		// rollback has completed.
		return err
	}

	err = tx.Commit()
	if err != nil {
		log.Error("failed to commit transaction",
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Debug("transaction committed successfully")
	return nil
}

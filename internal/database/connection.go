/*-------------------------------------------------------------------------
 *
 * connection.go
 *    Database connection management for NeuronDynamic
 *
 * Provides the PostgreSQL connection pool, retry logic on connect, pgvector
 * type registration and one-statement-per-transaction execution. Every
 * statement acquires its own pooled connection, commits or rolls back, and
 * releases the connection on every path.
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronDynamic/internal/database/connection.go
 *
 *-------------------------------------------------------------------------
 */

package database

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/neurondb/NeuronDynamic/internal/config"
	"github.com/neurondb/NeuronDynamic/internal/logging"
)

/* ConnectionState represents the state of a database connection */
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateFailed
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

/* Querier is the statement execution contract used by introspection and the query executor */
type Querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (*Result, error)
	Exec(ctx context.Context, sql string, args ...interface{}) (int64, error)
}

/* poolConn is the part of *pgxpool.Conn the executor needs */
type poolConn interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Release()
}

/* connPool is the part of *pgxpool.Pool the executor needs */
type connPool interface {
	Acquire(ctx context.Context) (poolConn, error)
	Saturated() bool
	Stat() PoolStats
	Close()
}

/* Database manages the PostgreSQL pool */
type Database struct {
	mu               sync.RWMutex
	pool             connPool
	logger           *logging.Logger
	acquireTimeout   time.Duration
	statementTimeout time.Duration
	host             string
	port             int
	database         string
	user             string
	state            ConnectionState
	lastError        error
}

/* NewDatabase creates a new, unconnected database instance */
func NewDatabase(logger *logging.Logger) *Database {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Database{
		logger:         logger,
		acquireTimeout: 10 * time.Second,
		state:          StateDisconnected,
	}
}

/* Connect connects to the database, retrying with exponential backoff */
func (d *Database) Connect(ctx context.Context, cfg config.DatabaseConfig) error {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnString())
	if err != nil {
		return fmt.Errorf("failed to parse connection settings for database '%s' on host '%s:%d' as user '%s': %w", cfg.Database, cfg.Host, cfg.Port, cfg.User, err)
	}

	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConns = int32(cfg.MaxConns)
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	poolConfig.HealthCheckPeriod = 1 * time.Minute
	poolConfig.AfterConnect = registerVectorTypes

	retries := cfg.ConnectRetries
	if retries < 1 {
		retries = 1
	}
	delay := cfg.RetryDelay
	if delay <= 0 {
		delay = 2 * time.Second
	}

	d.mu.Lock()
	d.host, d.port, d.database, d.user = cfg.Host, cfg.Port, cfg.Database, cfg.User
	d.acquireTimeout = cfg.AcquireTimeout
	d.statementTimeout = cfg.StatementTimeout
	d.state = StateConnecting
	d.lastError = nil
	d.mu.Unlock()

	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err == nil {
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			pingErr := pool.Ping(pingCtx)
			cancel()
			if pingErr == nil {
				d.mu.Lock()
				d.pool = &pgxPool{pool: pool}
				d.state = StateConnected
				d.mu.Unlock()
				d.logger.Info("Connected to PostgreSQL", map[string]interface{}{
					"host":      cfg.Host,
					"port":      cfg.Port,
					"database":  cfg.Database,
					"max_conns": cfg.MaxConns,
				})
				return nil
			}
			pool.Close()
			lastErr = fmt.Errorf("connection ping failed: %w", pingErr)
		} else {
			lastErr = fmt.Errorf("failed to create connection pool: %w", err)
		}

		if attempt < retries-1 {
			wait := delay * time.Duration(1<<uint(attempt))
			d.logger.Warn("Database connection attempt failed, retrying", map[string]interface{}{
				"attempt": attempt + 1,
				"wait":    wait.String(),
				"error":   lastErr.Error(),
			})
			select {
			case <-ctx.Done():
				lastErr = ctx.Err()
				attempt = retries
			case <-time.After(wait):
			}
		}
	}

	d.mu.Lock()
	d.state = StateFailed
	d.lastError = lastErr
	d.mu.Unlock()
	return fmt.Errorf("failed to connect to database '%s' on host '%s:%d' as user '%s' after %d attempts (last error: %v)", cfg.Database, cfg.Host, cfg.Port, cfg.User, retries, lastErr)
}

/* registerVectorTypes registers pgvector types, when installed, with a text codec */
func registerVectorTypes(ctx context.Context, conn *pgx.Conn) error {
	rows, err := conn.Query(ctx, `SELECT typname, oid FROM pg_catalog.pg_type WHERE typname IN ('vector', 'halfvec', 'sparsevec')`)
	if err != nil {
		return fmt.Errorf("failed to look up vector types: %w", err)
	}
	type vectorType struct {
		name string
		oid  uint32
	}
	var found []vectorType
	for rows.Next() {
		var vt vectorType
		if err := rows.Scan(&vt.name, &vt.oid); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan vector type: %w", err)
		}
		found = append(found, vt)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to look up vector types: %w", err)
	}
	for _, vt := range found {
		conn.TypeMap().RegisterType(&pgtype.Type{Name: vt.name, OID: vt.oid, Codec: &pgtype.TextCodec{}})
	}
	return nil
}

/* IsConnected checks if the database is connected */
func (d *Database) IsConnected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.pool != nil && d.state == StateConnected
}

/* GetConnectionState returns the current connection state */
func (d *Database) GetConnectionState() ConnectionState {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

/* GetLastError returns the last connection error */
func (d *Database) GetLastError() error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastError
}

func (d *Database) currentPool() (connPool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.pool == nil {
		return nil, fmt.Errorf("database connection not established: database '%s' on host '%s:%d' as user '%s' (connection pool is nil, ensure Connect() was called successfully)", d.database, d.host, d.port, d.user)
	}
	return d.pool, nil
}

/* acquire checks out one connection, bounded by the acquire timeout */
func (d *Database) acquire(ctx context.Context) (poolConn, error) {
	pool, err := d.currentPool()
	if err != nil {
		return nil, err
	}

	acquireCtx, cancel := context.WithTimeout(ctx, d.acquireTimeout)
	defer cancel()

	start := time.Now()
	conn, err := pool.Acquire(acquireCtx)
	if err == nil {
		return conn, nil
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("connection acquisition cancelled: %w", ctx.Err())
	}
	if acquireCtx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		waited := time.Since(start)
		if pool.Saturated() {
			return nil, &PoolExhaustedError{Timeout: d.acquireTimeout, Waited: waited, Stats: pool.Stat()}
		}
		return nil, &PoolTimeoutError{Timeout: d.acquireTimeout, Waited: waited, Err: err}
	}
	return nil, fmt.Errorf("failed to acquire connection from pool: %w", err)
}

/* run executes fn inside a transaction on a freshly acquired connection */
func (d *Database) run(ctx context.Context, sql string, fn func(ctx context.Context, tx pgx.Tx) error) error {
	conn, err := d.acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	stmtCtx := ctx
	if d.statementTimeout > 0 {
		var cancel context.CancelFunc
		stmtCtx, cancel = context.WithTimeout(ctx, d.statementTimeout)
		defer cancel()
	}

	tx, err := conn.Begin(stmtCtx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(stmtCtx, tx); err != nil {
		rollbackCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if rbErr := tx.Rollback(rollbackCtx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			d.logger.Warn("Rollback failed", map[string]interface{}{"error": rbErr.Error()})
		}
		return &StatementError{SQL: sql, Err: err}
	}

	if err := tx.Commit(stmtCtx); err != nil {
		return &StatementError{SQL: sql, Err: fmt.Errorf("commit failed: %w", err)}
	}
	return nil
}

/* Query runs one row-returning statement in its own transaction */
func (d *Database) Query(ctx context.Context, sql string, args ...interface{}) (*Result, error) {
	var result *Result
	err := d.run(ctx, sql, func(ctx context.Context, tx pgx.Tx) error {
		rows, err := tx.Query(ctx, sql, args...)
		if err != nil {
			return err
		}
		result, err = collectRows(rows)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

/* Exec runs one statement in its own transaction and returns the affected row count */
func (d *Database) Exec(ctx context.Context, sql string, args ...interface{}) (int64, error) {
	var tag pgconn.CommandTag
	err := d.run(ctx, sql, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		tag, err = tx.Exec(ctx, sql, args...)
		return err
	})
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

/* HealthCheck runs a trivial statement through the pool */
func (d *Database) HealthCheck(ctx context.Context) error {
	if !d.IsConnected() {
		if lastErr := d.GetLastError(); lastErr != nil {
			return fmt.Errorf("health check failed: database %s: %w", d.GetConnectionState(), lastErr)
		}
	}
	if _, err := d.Query(ctx, "SELECT 1"); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

/* GetPoolStats returns pool statistics */
func (d *Database) GetPoolStats() PoolStats {
	pool, err := d.currentPool()
	if err != nil {
		return PoolStats{}
	}
	return pool.Stat()
}

/*
 * Close shuts the pool down. It waits for checked-out connections to be
 * returned until ctx expires; after that the pool keeps closing in the
 * background and an error is returned for the caller to log.
 */
func (d *Database) Close(ctx context.Context) error {
	d.mu.Lock()
	pool := d.pool
	d.pool = nil
	d.state = StateDisconnected
	d.mu.Unlock()

	if pool == nil {
		return nil
	}

	done := make(chan struct{})
	go func() {
		pool.Close()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		stats := pool.Stat()
		return fmt.Errorf("pool close did not finish before deadline, %d connections still checked out: %w", stats.AcquiredConns, ctx.Err())
	}
}

/* pgxPool adapts *pgxpool.Pool to connPool */
type pgxPool struct {
	pool *pgxpool.Pool
}

func (p *pgxPool) Acquire(ctx context.Context) (poolConn, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (p *pgxPool) Saturated() bool {
	s := p.pool.Stat()
	return s.AcquiredConns() >= s.MaxConns()
}

func (p *pgxPool) Stat() PoolStats {
	s := p.pool.Stat()
	return PoolStats{
		AcquiredConns:        s.AcquiredConns(),
		IdleConns:            s.IdleConns(),
		TotalConns:           s.TotalConns(),
		MaxConns:             s.MaxConns(),
		AcquireCount:         s.AcquireCount(),
		EmptyAcquireCount:    s.EmptyAcquireCount(),
		CanceledAcquireCount: s.CanceledAcquireCount(),
		AcquireDuration:      s.AcquireDuration(),
	}
}

func (p *pgxPool) Close() {
	p.pool.Close()
}

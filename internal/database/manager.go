package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	dbconfig "roomlink/pkg/database"
	"roomlink/pkg/types"
)

const (
	// DefaultEventLimit is used when ListRoomEvents is called with limit <= 0.
	DefaultEventLimit = 50
	// MaxEventLimit caps a single ListRoomEvents page.
	MaxEventLimit = 500
)

// Manager is the sqlite-backed presence journal
type Manager struct {
	db           *sql.DB
	logger       *slog.Logger
	writeChannel chan writeOperation // TECHNICAL: Single-writer pattern for SQLite
	shutdown     chan struct{}
	wg           sync.WaitGroup
	retryDelay   time.Duration
	writeTimeout time.Duration

	mu     sync.RWMutex
	closed bool
}

// writeOperation represents a database write operation
type writeOperation struct {
	operation func(*sql.DB) error
	result    chan error
}

// NewManager opens the journal database, applies migrations, validates the
// schema and starts the writer goroutine.
func NewManager(config *dbconfig.Config, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := dbconfig.Open(config)
	if err != nil {
		return nil, err
	}

	if err := dbconfig.NewMigrationManager(db).ApplyMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply database migrations: %w", err)
	}
	if err := dbconfig.NewSchemaValidator(db).Validate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal schema invalid: %w", err)
	}

	m := &Manager{
		db:           db,
		logger:       logger,
		writeChannel: make(chan writeOperation, 100), // TECHNICAL: Buffer for write operations prevents blocking
		shutdown:     make(chan struct{}),
		retryDelay:   5 * time.Second,
		writeTimeout: 30 * time.Second,
	}

	// ARCHITECTURAL DISCOVERY: Single-writer goroutine prevents SQLite write contention
	m.wg.Add(1)
	go m.writeLoop()

	logger.Info("presence journal ready", "path", config.DatabasePath)
	return m, nil
}

// writeLoop processes all write operations in a single goroutine
func (m *Manager) writeLoop() {
	defer m.wg.Done()

	for {
		select {
		case op := <-m.writeChannel:
			// FUNCTIONAL DISCOVERY: A failed write is retried exactly once after retryDelay
			err := op.operation(m.db)
			if err != nil {
				m.logger.Warn("journal write failed, retrying", "delay", m.retryDelay, "error", err)
				time.Sleep(m.retryDelay)
				if err = op.operation(m.db); err != nil {
					m.logger.Error("journal write failed after retry", "error", err)
				}
			}
			op.result <- err

		case <-m.shutdown:
			m.logger.Debug("journal write loop shutting down")
			return
		}
	}
}

// executeWrite queues a write operation and waits for completion
func (m *Manager) executeWrite(ctx context.Context, operation func(*sql.DB) error) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return ErrManagerClosed
	}
	m.mu.RUnlock()

	result := make(chan error, 1)
	timer := time.NewTimer(m.writeTimeout)
	defer timer.Stop()

	select {
	case m.writeChannel <- writeOperation{operation: operation, result: result}:
	case <-timer.C:
		return ErrWriteTimeout
	case <-ctx.Done():
		return ctx.Err()
	case <-m.shutdown:
		return ErrManagerClosed
	}

	select {
	case err := <-result:
		return err
	case <-m.shutdown:
		// The loop may exit before serving a queued operation.
		select {
		case err := <-result:
			return err
		default:
			return ErrManagerClosed
		}
	}
}

// RecordEvent appends one presence transition to the journal.
func (m *Manager) RecordEvent(ctx context.Context, event *types.PresenceEvent) error {
	if event == nil {
		return ErrNilEvent
	}
	if err := event.Validate(); err != nil {
		return fmt.Errorf("invalid presence event: %w", err)
	}

	return m.executeWrite(ctx, func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO presence_events (id, room_id, display_name, conn_id, kind, reason, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`,
			event.ID,
			event.RoomID,
			event.DisplayName,
			event.ConnID,
			event.Kind,
			event.Reason,
			event.CreatedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert presence event: %w", err)
		}
		return nil
	})
}

// ListRoomEvents returns up to limit events for roomID, newest first.
func (m *Manager) ListRoomEvents(ctx context.Context, roomID string, limit int) ([]*types.PresenceEvent, error) {
	if limit <= 0 {
		limit = DefaultEventLimit
	}
	if limit > MaxEventLimit {
		limit = MaxEventLimit
	}

	// ARCHITECTURAL DISCOVERY: Reads bypass the writer goroutine; WAL allows them to run concurrently
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, room_id, display_name, conn_id, kind, reason, created_at
		FROM presence_events
		WHERE room_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, roomID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query presence events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	events := make([]*types.PresenceEvent, 0)
	for rows.Next() {
		var e types.PresenceEvent
		err := rows.Scan(
			&e.ID,
			&e.RoomID,
			&e.DisplayName,
			&e.ConnID,
			&e.Kind,
			&e.Reason,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan presence event: %w", err)
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating presence events: %w", err)
	}
	return events, nil
}

// HealthCheck validates database connectivity
func (m *Manager) HealthCheck(ctx context.Context) error {
	if err := m.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	var n int
	if err := m.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM presence_events").Scan(&n); err != nil {
		return fmt.Errorf("database read test failed: %w", err)
	}
	return nil
}

// Close stops the writer goroutine and closes the database. Safe to call twice.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	close(m.shutdown)
	m.wg.Wait()

	if err := m.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

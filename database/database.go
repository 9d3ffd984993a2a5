// Package database manages the PostgreSQL connection shared by a process's
// components. The database is the system's only source of truth: it stores
// task and worker state and carries notifications between processes
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	// PostgreSQL driver registration
	"github.com/lib/pq"

	"github.com/thrasher-corp/fcs/log"
)

// MigrationDir is the default on-disk location of the goose SQL migrations
const MigrationDir = "database/migrations"

const (
	driverName      = "postgres"
	maxOpenConns    = 2
	maxIdleConns    = 1
	connMaxLifetime = time.Hour

	pgErrUniqueViolation = "23505"
)

var (
	// ErrNilInstance is returned when methods are called on a nil instance
	ErrNilInstance = errors.New("database instance is nil")
	// ErrConnection is returned when the database can't be reached
	ErrConnection = errors.New("couldn't connect to the database")
)

// Executor is the subset of database/sql needed by the repositories; it is
// satisfied by both *sql.DB and *sql.Tx so callers choose the transactional
// scope
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Instance wraps the process-wide connection pool
type Instance struct {
	sql *sql.DB
	url string
	m   sync.RWMutex
}

// Connect opens a connection pool and verifies it within the supplied
// acquisition timeout
func Connect(ctx context.Context, url string, timeout time.Duration) (*Instance, error) {
	log.Infoln(log.DatabaseMgr, "Connecting to database...")

	db, err := sql.Open(driverName, url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}

	return &Instance{sql: db, url: url}, nil
}

// GetSQL returns the underlying pool
func (i *Instance) GetSQL() *sql.DB {
	if i == nil {
		return nil
	}
	i.m.RLock()
	defer i.m.RUnlock()
	return i.sql
}

// URL returns the connection string the pool was opened with
func (i *Instance) URL() string {
	if i == nil {
		return ""
	}
	i.m.RLock()
	defer i.m.RUnlock()
	return i.url
}

// BeginTx starts a transaction on the pool
func (i *Instance) BeginTx(ctx context.Context) (*sql.Tx, error) {
	if i == nil {
		return nil, ErrNilInstance
	}
	i.m.RLock()
	defer i.m.RUnlock()
	return i.sql.BeginTx(ctx, nil)
}

// Ping checks the pool's health
func (i *Instance) Ping() error {
	if i == nil {
		return ErrNilInstance
	}
	i.m.RLock()
	defer i.m.RUnlock()
	if i.sql == nil {
		return ErrConnection
	}
	return i.sql.Ping()
}

// CloseConnection shuts the pool down
func (i *Instance) CloseConnection() error {
	if i == nil {
		return ErrNilInstance
	}
	i.m.Lock()
	defer i.m.Unlock()
	return i.sql.Close()
}

// IsUniqueViolation reports whether err is a PostgreSQL unique-constraint
// violation, e.g. an id collision on insert
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == pgErrUniqueViolation
}

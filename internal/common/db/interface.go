package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Querier is the query surface shared by a database and a transaction, so
// repository code runs unchanged inside or outside a transaction.
type Querier interface {
	Query(ctx context.Context, query string, args ...interface{}) (Rows, error)
	QueryRow(ctx context.Context, query string, args ...interface{}) Row
	Exec(ctx context.Context, query string, args ...interface{}) (Result, error)
}

// Database is the driver-neutral handle repositories depend on.
// Implementations own a connection pool; all methods are safe for
// concurrent use.
type Database interface {
	Querier

	// Transaction executes fn inside a transaction, committing on nil and
	// rolling back on error.
	Transaction(ctx context.Context, fn func(tx Transaction) error) error

	// BeginTx starts a transaction with the given options.
	BeginTx(ctx context.Context, opts *TxOptions) (Transaction, error)

	// Ping verifies the connection is still alive.
	Ping(ctx context.Context) error

	// Close closes the database and its pool.
	Close() error

	// Stats returns pool statistics.
	Stats() Stats
}

// Transaction is an in-progress database transaction.
type Transaction interface {
	Querier

	// Commit commits the transaction.
	Commit() error

	// Rollback aborts the transaction.
	Rollback() error
}

// Rows is the result of a query.
type Rows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Close() error
	Err() error
	Columns() ([]string, error)
}

// Row is the result of a single-row query.
type Row interface {
	Scan(dest ...interface{}) error
}

// Result summarizes an executed statement.
type Result interface {
	LastInsertId() (int64, error)
	RowsAffected() (int64, error)
}

// IsolationLevel is the transaction isolation level.
type IsolationLevel int

// Isolation levels, mirroring database/sql.
const (
	LevelDefault IsolationLevel = iota
	LevelReadUncommitted
	LevelReadCommitted
	LevelWriteCommitted
	LevelRepeatableRead
	LevelSnapshot
	LevelSerializable
	LevelLinearizable
)

// TxOptions holds transaction options.
type TxOptions struct {
	Isolation IsolationLevel
	ReadOnly  bool
}

// ConvertTxOptions maps TxOptions to database/sql options.
func ConvertTxOptions(opts *TxOptions) *sql.TxOptions {
	if opts == nil {
		return nil
	}
	return &sql.TxOptions{
		Isolation: sql.IsolationLevel(opts.Isolation),
		ReadOnly:  opts.ReadOnly,
	}
}

// Stats carries connection pool statistics.
type Stats struct {
	MaxOpenConnections int
	OpenConnections    int
	InUse              int
	Idle               int
	WaitCount          int64
	WaitDurationMS     int64
	MaxIdleClosed      int64
	MaxLifetimeClosed  int64
}

// ConvertSQLStats maps database/sql statistics to Stats.
func ConvertSQLStats(s sql.DBStats) Stats {
	return Stats{
		MaxOpenConnections: s.MaxOpenConnections,
		OpenConnections:    s.OpenConnections,
		InUse:              s.InUse,
		Idle:               s.Idle,
		WaitCount:          s.WaitCount,
		WaitDurationMS:     s.WaitDuration.Milliseconds(),
		MaxIdleClosed:      s.MaxIdleClosed,
		MaxLifetimeClosed:  s.MaxLifetimeClosed,
	}
}

// Provider hands out the database to use for the next call. The indirection
// exists so failover or replica routing can be added without touching
// repository code; the service today runs on a single primary.
type Provider interface {
	Current() Database
}

// StaticProvider always returns the same database.
type StaticProvider struct {
	db Database
}

var _ Provider = (*StaticProvider)(nil)

func NewStaticProvider(database Database) *StaticProvider {
	return &StaticProvider{db: database}
}

func (p *StaticProvider) Current() Database {
	if p == nil {
		return nil
	}
	return p.db
}

// CurrentDatabase resolves the provider's database, turning a nil provider
// or nil database into an error instead of a downstream panic.
func CurrentDatabase(provider Provider) (Database, error) {
	if provider == nil {
		return nil, errors.New("database provider is nil")
	}
	database := provider.Current()
	if database == nil {
		return nil, errors.New("database is nil")
	}
	return database, nil
}

// GetProviderQuerier resolves the querier for a repository call: the
// transaction when one is in flight, otherwise the provider's current
// database.
func GetProviderQuerier(provider Provider, tx Transaction) (Querier, error) {
	if tx != nil {
		return tx, nil
	}
	database, err := CurrentDatabase(provider)
	if err != nil {
		return nil, fmt.Errorf("resolve querier: %w", err)
	}
	return database, nil
}

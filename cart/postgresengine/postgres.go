package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // driver import
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/shopkit/conditional-cart-go/cart"
	"github.com/shopkit/conditional-cart-go/cart/postgresengine/internal/adapters"
)

const (
	defaultTableName = "cart_snapshots"

	logMsgBuildSelectQueryFailed = "failed to build select query"
	logMsgBuildUpsertQueryFailed = "failed to build upsert query"
	logMsgDBQueryFailed          = "database query execution failed"
	logMsgDBExecFailed           = "database execution failed during snapshot upsert"
	logMsgCloseRowsFailed        = "failed to close database rows"
	logMsgScanRowFailed          = "failed to scan database row"
	logMsgSnapshotLoaded         = "snapshot loaded"
	logMsgSnapshotStored         = "snapshot stored"
	logMsgSQLExecuted            = "executed sql for: "
	logAttrError                 = "error"
	logAttrQuery                 = "query"
	logAttrKey                   = "key"
	logAttrDurationMS            = "duration_ms"
	logActionSelect              = "select"
	logActionUpsert              = "upsert"

	colSessionKey = "session_key"
	colSnapshot   = "snapshot"
	colUpdatedAt  = "updated_at"

	dialectPostgres = "postgres"
	castJsonb       = "?::jsonb"
)

var ErrNilDatabaseConnection = errors.New("nil database connection supplied")
var ErrEmptyTableName = errors.New("empty table name supplied")
var ErrQueryingSnapshotFailed = errors.New("querying snapshot failed")
var ErrStoringSnapshotFailed = errors.New("storing snapshot failed")
var ErrBuildingQueryFailed = errors.New("building query failed")
var ErrScanningDBRowFailed = errors.New("scanning database row failed")

// Storage implements cart.Storage on a Postgres table with one row per
// session key, replaced wholesale by an upsert on every write:
//
//	CREATE TABLE cart_snapshots (
//	    session_key TEXT PRIMARY KEY,
//	    snapshot    JSONB NOT NULL,
//	    updated_at  TIMESTAMPTZ NOT NULL
//	);
//
// It leverages a database adapter and supports customizable logging and
// table configuration.
type Storage struct {
	db        adapters.DBAdapter
	tableName string
	logger    cart.Logger
}

// NewStorageFromPGXPool creates a Storage using a pgx pool with optional
// configuration.
func NewStorageFromPGXPool(db *pgxpool.Pool, options ...Option) (*Storage, error) {
	if db == nil {
		return nil, ErrNilDatabaseConnection
	}

	return buildStorage(adapters.NewPGXAdapter(db), options...)
}

// NewStorageFromSQLDB creates a Storage using a sql.DB with optional
// configuration.
func NewStorageFromSQLDB(db *sql.DB, options ...Option) (*Storage, error) {
	if db == nil {
		return nil, ErrNilDatabaseConnection
	}

	return buildStorage(adapters.NewSQLAdapter(db), options...)
}

// NewStorageFromSQLX creates a Storage using a sqlx.DB with optional
// configuration.
func NewStorageFromSQLX(db *sqlx.DB, options ...Option) (*Storage, error) {
	if db == nil {
		return nil, ErrNilDatabaseConnection
	}

	return buildStorage(adapters.NewSQLXAdapter(db), options...)
}

func buildStorage(adapter adapters.DBAdapter, options ...Option) (*Storage, error) {
	s := &Storage{
		db:        adapter,
		tableName: defaultTableName,
	}

	for _, option := range options {
		if err := option(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Get returns the snapshot stored under key.
func (s *Storage) Get(ctx context.Context, key string) ([]byte, bool, error) {
	sqlQuery, buildErr := s.buildSelectQuery(key)
	if buildErr != nil {
		if s.logger != nil {
			s.logger.Error(logMsgBuildSelectQueryFailed, logAttrError, buildErr.Error())
		}

		return nil, false, buildErr
	}

	start := time.Now()
	rows, queryErr := s.db.Query(ctx, sqlQuery)
	duration := time.Since(start)
	s.logQueryWithDuration(sqlQuery, logActionSelect, duration)

	if queryErr != nil {
		if s.logger != nil {
			s.logger.Error(logMsgDBQueryFailed, logAttrError, queryErr.Error(), logAttrQuery, sqlQuery)
		}

		return nil, false, errors.Join(ErrQueryingSnapshotFailed, queryErr)
	}
	defer s.closeRows(rows)

	if !rows.Next() {
		return nil, false, nil
	}

	var snapshot []byte
	if scanErr := rows.Scan(&snapshot); scanErr != nil {
		if s.logger != nil {
			s.logger.Error(logMsgScanRowFailed, logAttrError, scanErr.Error())
		}

		return nil, false, errors.Join(ErrScanningDBRowFailed, scanErr)
	}

	s.logOperation(logMsgSnapshotLoaded, logAttrKey, key, logAttrDurationMS, durationToMilliseconds(duration))

	return snapshot, true, nil
}

// Put replaces the snapshot stored under key via an upsert.
func (s *Storage) Put(ctx context.Context, key string, value []byte) error {
	sqlQuery, buildErr := s.buildUpsertQuery(key, value)
	if buildErr != nil {
		if s.logger != nil {
			s.logger.Error(logMsgBuildUpsertQueryFailed, logAttrError, buildErr.Error(), logAttrKey, key)
		}

		return buildErr
	}

	start := time.Now()
	execErr := s.db.Exec(ctx, sqlQuery)
	duration := time.Since(start)
	s.logQueryWithDuration(sqlQuery, logActionUpsert, duration)

	if execErr != nil {
		if s.logger != nil {
			s.logger.Error(logMsgDBExecFailed, logAttrError, execErr.Error(), logAttrQuery, sqlQuery)
		}

		return errors.Join(ErrStoringSnapshotFailed, execErr)
	}

	s.logOperation(logMsgSnapshotStored, logAttrKey, key, logAttrDurationMS, durationToMilliseconds(duration))

	return nil
}

func (s *Storage) buildSelectQuery(key string) (string, error) {
	selectStmt := goqu.Dialect(dialectPostgres).
		From(s.tableName).
		Select(colSnapshot).
		Where(goqu.Ex{colSessionKey: key})

	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

func (s *Storage) buildUpsertQuery(key string, value []byte) (string, error) {
	now := time.Now().UTC()

	insertStmt := goqu.Dialect(dialectPostgres).
		Insert(s.tableName).
		Cols(colSessionKey, colSnapshot, colUpdatedAt).
		Vals(goqu.Vals{key, goqu.L(castJsonb, string(value)), now}).
		OnConflict(goqu.DoUpdate(colSessionKey, goqu.Record{
			colSnapshot:  goqu.L(castJsonb, string(value)),
			colUpdatedAt: now,
		}))

	sqlQuery, _, toSQLErr := insertStmt.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

// closeRows safely closes database rows and logs any errors.
func (s *Storage) closeRows(rows adapters.DBRows) {
	if closeErr := rows.Close(); closeErr != nil {
		if s.logger != nil {
			s.logger.Warn(logMsgCloseRowsFailed, logAttrError, closeErr.Error())
		}
	}
}

func (s *Storage) logQueryWithDuration(sqlQuery string, action string, duration time.Duration) {
	if s.logger != nil {
		s.logger.Debug(logMsgSQLExecuted+action, logAttrQuery, sqlQuery, logAttrDurationMS, durationToMilliseconds(duration))
	}
}

func (s *Storage) logOperation(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Info(msg, args...)
	}
}

func durationToMilliseconds(duration time.Duration) float64 {
	return float64(duration.Nanoseconds()) / 1e6
}

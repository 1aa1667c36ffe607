// Package postgresengine provides a cart.Storage backed by Postgres.
//
// Snapshots live in a single table keyed by session key, replaced
// wholesale by an upsert on every write. The package supports three
// database access layers through internal adapters:
//
//   - pgxpool.Pool via NewStorageFromPGXPool
//   - database/sql via NewStorageFromSQLDB
//   - sqlx.DB via NewStorageFromSQLX
//
// Queries are built with goqu and logged through the optional cart.Logger.
package postgresengine

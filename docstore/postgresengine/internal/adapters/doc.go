// Package adapters lets the PostgreSQL document store run on pgxpool.Pool, sql.DB or sqlx.DB
// through one DBAdapter interface.
package adapters

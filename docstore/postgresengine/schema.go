package postgresengine

import "fmt"

// schemaStatements returns the DDL for a documents table. tableName is validated by WithTableName.
func schemaStatements(tableName string) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %[1]s (
	collection TEXT        NOT NULL,
	id         TEXT        NOT NULL,
	revision   BIGINT      NOT NULL CHECK (revision > 0),
	body       JSONB       NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (collection, id)
)`, tableName),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_body_gin ON %[1]s USING gin (body jsonb_path_ops)`, tableName),
	}
}

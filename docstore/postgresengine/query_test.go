package postgresengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-lending-go/docstore"
)

func newQueryBuilder(t *testing.T) *Store {
	t.Helper()

	s, err := newStore(nil, WithTableName("documents"))
	require.NoError(t, err)

	return s
}

func Test_BuildGetQuery(t *testing.T) {
	// arrange
	s := newQueryBuilder(t)

	// act
	query, args, err := s.buildGetQuery("books", "b1")

	// assert
	require.NoError(t, err)
	assert.Contains(t, query, `SELECT "revision", "body" FROM "documents"`)
	assert.Contains(t, query, `"collection" = $1`)
	assert.Contains(t, query, `"id" = $2`)
	assert.Equal(t, []any{"books", "b1"}, args)
}

func Test_BuildPutQuery_ExpectAbsent(t *testing.T) {
	// arrange
	s := newQueryBuilder(t)

	// act
	query, args, err := s.buildPutQuery("books", "b1", []byte(`{"title":"Optics"}`), docstore.ExpectAbsent())

	// assert
	require.NoError(t, err)
	assert.Contains(t, query, `INSERT INTO "documents"`)
	assert.Contains(t, query, "::jsonb")
	assert.Contains(t, query, "ON CONFLICT DO NOTHING")
	assert.Contains(t, query, `RETURNING "revision"`)
	assert.Contains(t, args, `{"title":"Optics"}`)
}

func Test_BuildPutQuery_ExpectRevision(t *testing.T) {
	// arrange
	s := newQueryBuilder(t)

	// act
	query, args, err := s.buildPutQuery("books", "b1", []byte(`{}`), docstore.ExpectRevision(3))

	// assert
	require.NoError(t, err)
	assert.Contains(t, query, `UPDATE "documents" SET`)
	assert.Contains(t, query, `"documents"."revision" + 1`)
	assert.Contains(t, query, "now()")
	assert.Contains(t, query, `RETURNING "revision"`)
	assert.Contains(t, args, int64(3))
}

func Test_BuildPutQuery_ExpectAny(t *testing.T) {
	// arrange
	s := newQueryBuilder(t)

	// act
	query, _, err := s.buildPutQuery("books", "b1", []byte(`{}`), docstore.ExpectAny())

	// assert
	require.NoError(t, err)
	assert.Contains(t, query, "ON CONFLICT (collection, id) DO UPDATE SET")
	assert.Contains(t, query, "EXCLUDED.body")
	assert.Contains(t, query, `RETURNING "revision"`)
}

func Test_BuildFindQuery(t *testing.T) {
	testCases := []struct {
		name          string
		selector      docstore.Selector
		expectedSQL   []string
		expectedArgs  []any
		unexpectedSQL []string
	}{
		{
			name:          "no predicates",
			selector:      docstore.Select(),
			expectedSQL:   []string{`"collection" = $1`, `ORDER BY id COLLATE "C" ASC`},
			expectedArgs:  []any{"loans"},
			unexpectedSQL: []string{"@>", "jsonb_typeof"},
		},
		{
			name:         "equality becomes containment",
			selector:     docstore.Select().Eq("student_id", "S1"),
			expectedSQL:  []string{"body @> $2::jsonb"},
			expectedArgs: []any{"loans", `{"student_id":"S1"}`},
		},
		{
			name:         "integer equality is encoded as a json number",
			selector:     docstore.Select().Eq("borrow_limit", 2),
			expectedSQL:  []string{"body @> $2::jsonb"},
			expectedArgs: []any{"loans", `{"borrow_limit":2}`},
		},
		{
			name:        "greater than guards the json type",
			selector:    docstore.Select().Eq("returned", false).Gt("available_copies", 0),
			expectedSQL: []string{"body @> $2::jsonb", "jsonb_typeof(body->$3) = 'number'", "(body->>$4)::numeric > $5"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// arrange
			s := newQueryBuilder(t)

			// act
			query, args, err := s.buildFindQuery("loans", tc.selector)

			// assert
			require.NoError(t, err)
			for _, fragment := range tc.expectedSQL {
				assert.Contains(t, query, fragment)
			}
			for _, fragment := range tc.unexpectedSQL {
				assert.NotContains(t, query, fragment)
			}
			if tc.expectedArgs != nil {
				assert.Equal(t, tc.expectedArgs, args)
			}
		})
	}
}

func Test_WithTableName_Validation(t *testing.T) {
	// act
	_, emptyErr := newStore(nil, WithTableName(""))
	_, injectedErr := newStore(nil, WithTableName("documents; DROP TABLE x"))
	s, okErr := newStore(nil, WithTableName("lending_documents"))

	// assert
	assert.ErrorIs(t, emptyErr, docstore.ErrEmptyTableName)
	assert.ErrorIs(t, injectedErr, docstore.ErrInvalidTableName)
	require.NoError(t, okErr)
	assert.Equal(t, "lending_documents", s.TableName())
}

func Test_SchemaStatements_UseTableName(t *testing.T) {
	// act
	statements := schemaStatements("lending_documents")

	// assert
	require.Len(t, statements, 2)
	assert.Contains(t, statements[0], "CREATE TABLE IF NOT EXISTS lending_documents")
	assert.Contains(t, statements[0], "PRIMARY KEY (collection, id)")
	assert.Contains(t, statements[1], "lending_documents_body_gin")
}

package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/AntonStoeckl/library-lending-go/docstore"
	"github.com/AntonStoeckl/library-lending-go/docstore/postgresengine/internal/adapters"
)

const (
	engineName            = "postgres"
	defaultTableName      = "documents"
	dialectPostgres       = "postgres"
	colCollection         = "collection"
	colID                 = "id"
	colRevision           = "revision"
	colBody               = "body"
	colUpdatedAt          = "updated_at"
	castJsonb             = "?::jsonb"
	exprNow               = "now()"
	exprContains          = "body @> ?::jsonb"
	exprNumericGreater    = "CASE WHEN jsonb_typeof(body->?) = 'number' THEN (body->>?)::numeric > ? ELSE false END"
	exprIDBinaryOrder     = `id COLLATE "C"`
	conflictTarget        = "collection, id"
	logAttrQuery          = "query"
	logAttrReadFrom       = "read_from"
	logMsgSchemaFailed    = "failed to apply schema statement"
	errMsgUnsupportedOp   = "unsupported selector operator: "
	errMsgEncodePredicate = "encoding eq predicate: "
)

// Store is a docstore.Store backed by a single PostgreSQL table keyed by (collection, id).
type Store struct {
	db        adapters.DBAdapter
	tableName string
	newID     func() string
	inst      docstore.Instrumentation
}

// NewStoreFromPGXPool creates a new Store using a pgx Pool with optional configuration.
func NewStoreFromPGXPool(db *pgxpool.Pool, options ...Option) (*Store, error) {
	if db == nil {
		return nil, docstore.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewPGXAdapter(db), options...)
}

// NewStoreFromPGXPoolAndReplica creates a Store whose replica-tolerant reads go to the replica pool.
// Reads only use the replica when the context carries docstore.WithReadReplica.
func NewStoreFromPGXPoolAndReplica(primary *pgxpool.Pool, replica *pgxpool.Pool, options ...Option) (*Store, error) {
	if primary == nil {
		return nil, docstore.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewPGXAdapterWithReplica(primary, replica), options...)
}

// NewStoreFromSQLDB creates a new Store using a sql.DB with optional configuration.
func NewStoreFromSQLDB(db *sql.DB, options ...Option) (*Store, error) {
	if db == nil {
		return nil, docstore.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewSQLAdapter(db), options...)
}

// NewStoreFromSQLX creates a new Store using a sqlx.DB with optional configuration.
func NewStoreFromSQLX(db *sqlx.DB, options ...Option) (*Store, error) {
	if db == nil {
		return nil, docstore.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewSQLXAdapter(db), options...)
}

func newStore(db adapters.DBAdapter, options ...Option) (*Store, error) {
	s := &Store{
		db:        db,
		tableName: defaultTableName,
		newID:     uuid.NewString,
		inst:      docstore.Instrumentation{Engine: engineName},
	}

	for _, option := range options {
		if err := option(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// TableName returns the configured table name.
func (s *Store) TableName() string {
	return s.tableName
}

// EnsureSchema creates the documents table and its indexes if they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements(s.tableName) {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			s.logSchemaFailure(ctx, stmt, err)
			return errors.Join(docstore.ErrWritingFailed, err)
		}
	}

	return nil
}

// Get returns the document stored under collection/id.
func (s *Store) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	ctx, obs := s.inst.Observe(ctx, docstore.OperationGet, collection)

	doc, query, err := s.get(ctx, collection, id)
	obs.Finish(err, docstore.AttrDocumentID, id, logAttrQuery, query, logAttrReadFrom, docstore.GetReadPreference(ctx).String())

	return doc, err
}

func (s *Store) get(ctx context.Context, collection, id string) (docstore.Document, string, error) {
	if err := docstore.ValidateKey(collection, id); err != nil {
		return docstore.Document{}, "", err
	}

	query, args, err := s.buildGetQuery(collection, id)
	if err != nil {
		return docstore.Document{}, "", err
	}

	rows, err := s.queryForRead(ctx, query, args...)
	if err != nil {
		return docstore.Document{}, query, errors.Join(docstore.ErrQueryingFailed, err)
	}
	defer closeRows(rows)

	if !rows.Next() {
		if rowsErr := rows.Err(); rowsErr != nil {
			return docstore.Document{}, query, errors.Join(docstore.ErrQueryingFailed, rowsErr)
		}

		return docstore.Document{}, query, docstore.ErrNotFound
	}

	var revision int64
	var body []byte
	if scanErr := rows.Scan(&revision, &body); scanErr != nil {
		return docstore.Document{}, query, errors.Join(docstore.ErrScanningDBRowFailed, scanErr)
	}

	return docstore.Document{ID: id, Revision: docstore.Revision(revision), Body: body}, query, nil
}

// Put writes body under collection/id if the expectation holds and returns the new revision.
// The condition is evaluated by the database in the same statement that writes the row,
// so a lost race surfaces as docstore.ErrConcurrencyConflict and never as a silent overwrite.
func (s *Store) Put(
	ctx context.Context,
	collection, id string,
	body []byte,
	expect docstore.Expectation,
) (docstore.Revision, error) {

	ctx, obs := s.inst.Observe(ctx, docstore.OperationPut, collection)

	revision, query, err := s.put(ctx, collection, id, body, expect)
	obs.Finish(err, docstore.AttrDocumentID, id, docstore.AttrExpect, expect.String(), logAttrQuery, query)

	return revision, err
}

func (s *Store) put(
	ctx context.Context,
	collection, id string,
	body []byte,
	expect docstore.Expectation,
) (docstore.Revision, string, error) {

	if err := docstore.ValidateKey(collection, id); err != nil {
		return 0, "", err
	}

	if err := docstore.ValidateBody(body); err != nil {
		return 0, "", err
	}

	query, args, err := s.buildPutQuery(collection, id, body, expect)
	if err != nil {
		return 0, "", err
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return 0, query, errors.Join(docstore.ErrWritingFailed, err)
	}
	defer closeRows(rows)

	if !rows.Next() {
		if rowsErr := rows.Err(); rowsErr != nil {
			return 0, query, errors.Join(docstore.ErrWritingFailed, rowsErr)
		}

		// No row returned means the WHERE clause or the ON CONFLICT guard rejected the write.
		return 0, query, docstore.ErrConcurrencyConflict
	}

	var revision int64
	if scanErr := rows.Scan(&revision); scanErr != nil {
		return 0, query, errors.Join(docstore.ErrScanningDBRowFailed, scanErr)
	}

	return docstore.Revision(revision), query, nil
}

// Find returns every document of the collection matching the selector, ordered by id.
func (s *Store) Find(ctx context.Context, collection string, selector docstore.Selector) ([]docstore.Document, error) {
	ctx, obs := s.inst.Observe(ctx, docstore.OperationFind, collection)

	docs, query, err := s.find(ctx, collection, selector)
	if err == nil {
		obs.RecordCount(len(docs))
	}
	obs.Finish(err, docstore.AttrCount, len(docs), logAttrQuery, query, logAttrReadFrom, docstore.GetReadPreference(ctx).String())

	return docs, err
}

func (s *Store) find(ctx context.Context, collection string, selector docstore.Selector) ([]docstore.Document, string, error) {
	if collection == "" {
		return nil, "", docstore.ErrEmptyCollectionName
	}

	query, args, err := s.buildFindQuery(collection, selector)
	if err != nil {
		return nil, "", err
	}

	rows, err := s.queryForRead(ctx, query, args...)
	if err != nil {
		return nil, query, errors.Join(docstore.ErrQueryingFailed, err)
	}
	defer closeRows(rows)

	docs := make([]docstore.Document, 0)
	for rows.Next() {
		var id string
		var revision int64
		var body []byte

		if scanErr := rows.Scan(&id, &revision, &body); scanErr != nil {
			return nil, query, errors.Join(docstore.ErrScanningDBRowFailed, scanErr)
		}

		docs = append(docs, docstore.Document{ID: id, Revision: docstore.Revision(revision), Body: body})
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, query, errors.Join(docstore.ErrQueryingFailed, rowsErr)
	}

	return docs, query, nil
}

// Create stores body under a freshly generated id.
func (s *Store) Create(ctx context.Context, collection string, body []byte) (string, docstore.Revision, error) {
	id := s.newID()

	revision, err := s.Put(ctx, collection, id, body, docstore.ExpectAbsent())
	if err != nil {
		return "", 0, err
	}

	return id, revision, nil
}

func (s *Store) queryForRead(ctx context.Context, query string, args ...any) (adapters.DBRows, error) {
	if docstore.GetReadPreference(ctx) == docstore.ReadReplica {
		if replicaAware, ok := s.db.(adapters.ReplicaAware); ok {
			return replicaAware.QueryReplica(ctx, query, args...)
		}
	}

	return s.db.Query(ctx, query, args...)
}

func (s *Store) dialect() goqu.DialectWrapper {
	return goqu.Dialect(dialectPostgres)
}

func (s *Store) keyExpression(collection, id string) goqu.Ex {
	return goqu.Ex{colCollection: collection, colID: id}
}

func (s *Store) buildGetQuery(collection, id string) (string, []any, error) {
	query, args, err := s.dialect().
		From(s.tableName).
		Prepared(true).
		Select(colRevision, colBody).
		Where(s.keyExpression(collection, id)).
		ToSQL()

	if err != nil {
		return "", nil, errors.Join(docstore.ErrBuildingQueryFailed, err)
	}

	return query, args, nil
}

func (s *Store) buildPutQuery(collection, id string, body []byte, expect docstore.Expectation) (string, []any, error) {
	var (
		query string
		args  []any
		err   error
	)

	bodyValue := goqu.L(castJsonb, string(body))
	nextRevision := goqu.L("? + 1", goqu.T(s.tableName).Col(colRevision))

	switch {
	case expect.IsAbsent():
		query, args, err = s.dialect().
			Insert(s.tableName).
			Prepared(true).
			Rows(goqu.Record{
				colCollection: collection,
				colID:         id,
				colRevision:   1,
				colBody:       bodyValue,
				colUpdatedAt:  goqu.L(exprNow),
			}).
			OnConflict(goqu.DoNothing()).
			Returning(colRevision).
			ToSQL()

	case expect.IsAny():
		query, args, err = s.dialect().
			Insert(s.tableName).
			Prepared(true).
			Rows(goqu.Record{
				colCollection: collection,
				colID:         id,
				colRevision:   1,
				colBody:       bodyValue,
				colUpdatedAt:  goqu.L(exprNow),
			}).
			OnConflict(goqu.DoUpdate(conflictTarget, goqu.Record{
				colRevision:  nextRevision,
				colBody:      goqu.L("EXCLUDED.body"),
				colUpdatedAt: goqu.L(exprNow),
			})).
			Returning(colRevision).
			ToSQL()

	default:
		expected, _ := expect.Revision()
		where := s.keyExpression(collection, id)
		where[colRevision] = int64(expected)

		query, args, err = s.dialect().
			Update(s.tableName).
			Prepared(true).
			Set(goqu.Record{
				colRevision:  nextRevision,
				colBody:      bodyValue,
				colUpdatedAt: goqu.L(exprNow),
			}).
			Where(where).
			Returning(colRevision).
			ToSQL()
	}

	if err != nil {
		return "", nil, errors.Join(docstore.ErrBuildingQueryFailed, err)
	}

	return query, args, nil
}

func (s *Store) buildFindQuery(collection string, selector docstore.Selector) (string, []any, error) {
	conditions := []exp.Expression{goqu.Ex{colCollection: collection}}

	for _, p := range selector.Predicates() {
		condition, err := predicateExpression(p)
		if err != nil {
			return "", nil, errors.Join(docstore.ErrBuildingQueryFailed, err)
		}

		conditions = append(conditions, condition)
	}

	query, args, err := s.dialect().
		From(s.tableName).
		Prepared(true).
		Select(colID, colRevision, colBody).
		Where(conditions...).
		Order(goqu.L(exprIDBinaryOrder).Asc()).
		ToSQL()

	if err != nil {
		return "", nil, errors.Join(docstore.ErrBuildingQueryFailed, err)
	}

	return query, args, nil
}

// predicateExpression maps an equality onto JSONB containment so the GIN index can serve it.
func predicateExpression(p docstore.Predicate) (exp.Expression, error) {
	switch p.Op() {
	case docstore.OpEq:
		fragment, err := docstore.Encode(map[string]any{p.Field(): p.Value()})
		if err != nil {
			return nil, fmt.Errorf("%s%w", errMsgEncodePredicate, err)
		}

		return goqu.L(exprContains, string(fragment)), nil

	case docstore.OpGt:
		return goqu.L(exprNumericGreater, p.Field(), p.Field(), p.Value()), nil

	default:
		return nil, errors.New(errMsgUnsupportedOp + string(p.Op()))
	}
}

func closeRows(rows adapters.DBRows) {
	_ = rows.Close()
}

func (s *Store) logSchemaFailure(ctx context.Context, stmt string, err error) {
	if s.inst.ContextualLogger != nil {
		s.inst.ContextualLogger.ErrorContext(ctx, logMsgSchemaFailed, logAttrQuery, stmt, docstore.AttrError, err.Error())
	}

	if s.inst.Logger != nil {
		s.inst.Logger.Error(logMsgSchemaFailed, logAttrQuery, stmt, docstore.AttrError, err.Error())
	}
}

var _ docstore.Store = (*Store)(nil)

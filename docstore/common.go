package docstore

import (
	"errors"
)

var (
	ErrNotFound              = errors.New("document not found")
	ErrConcurrencyConflict   = errors.New("concurrency error, revision does not match")
	ErrEmptyCollectionName   = errors.New("empty collection name supplied")
	ErrEmptyDocumentID       = errors.New("empty document id supplied")
	ErrNilDatabaseConnection = errors.New("database connection must not be nil")
	ErrInvalidDocumentJSON   = errors.New("document body is not valid json")
	ErrQueryingFailed        = errors.New("querying documents failed")
	ErrWritingFailed         = errors.New("writing document failed")
	ErrScanningDBRowFailed   = errors.New("scanning db row failed")
	ErrBuildingQueryFailed   = errors.New("building query failed")
	ErrDecodingFailed        = errors.New("decoding document body failed")
	ErrEncodingFailed        = errors.New("encoding document body failed")
	ErrEmptyTableName        = errors.New("table name must not be empty")
	ErrInvalidTableName      = errors.New("table name must be a plain sql identifier")
)

// ValidateKey checks that a collection name and document id are usable as a key.
func ValidateKey(collection, id string) error {
	if collection == "" {
		return ErrEmptyCollectionName
	}

	if id == "" {
		return ErrEmptyDocumentID
	}

	return nil
}

package docstore_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-lending-go/docstore"
)

func Test_Expectation_Holds(t *testing.T) {
	testCases := []struct {
		name        string
		expect      docstore.Expectation
		current     docstore.Revision
		exists      bool
		shouldMatch bool
	}{
		{"revision matches", docstore.ExpectRevision(3), 3, true, true},
		{"revision is stale", docstore.ExpectRevision(2), 3, true, false},
		{"revision on missing document", docstore.ExpectRevision(1), 0, false, false},
		{"absent on missing document", docstore.ExpectAbsent(), 0, false, true},
		{"absent on existing document", docstore.ExpectAbsent(), 1, true, false},
		{"any on existing document", docstore.ExpectAny(), 5, true, true},
		{"any on missing document", docstore.ExpectAny(), 0, false, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.shouldMatch, tc.expect.Holds(tc.current, tc.exists))
		})
	}
}

func Test_Expectation_String(t *testing.T) {
	assert.Equal(t, "revision=7", docstore.ExpectRevision(7).String())
	assert.Equal(t, "absent", docstore.ExpectAbsent().String())
	assert.Equal(t, "any", docstore.ExpectAny().String())
}

func Test_ValidateKey(t *testing.T) {
	assert.ErrorIs(t, docstore.ValidateKey("", "id"), docstore.ErrEmptyCollectionName)
	assert.ErrorIs(t, docstore.ValidateKey("books", ""), docstore.ErrEmptyDocumentID)
	assert.NoError(t, docstore.ValidateKey("books", "b1"))
}

func Test_DecodeEncode(t *testing.T) {
	// arrange
	type book struct {
		Title  string `json:"title"`
		Copies int    `json:"available_copies"`
	}

	// act
	body, encodeErr := docstore.Encode(book{Title: "Optics", Copies: 2})
	decoded, decodeErr := docstore.Decode[book](docstore.Document{ID: "b1", Revision: 1, Body: body})

	// assert
	require.NoError(t, encodeErr)
	require.NoError(t, decodeErr)
	assert.JSONEq(t, `{"title":"Optics","available_copies":2}`, string(body))
	assert.Equal(t, book{Title: "Optics", Copies: 2}, decoded)
}

func Test_Decode_FailsOnGarbage(t *testing.T) {
	_, err := docstore.Decode[map[string]any](docstore.Document{Body: []byte("{")})

	assert.ErrorIs(t, err, docstore.ErrDecodingFailed)
}

func Test_ValidateBody(t *testing.T) {
	assert.NoError(t, docstore.ValidateBody([]byte(`{"a":1}`)))
	assert.ErrorIs(t, docstore.ValidateBody([]byte(`[1,2]`)), docstore.ErrInvalidDocumentJSON)
	assert.ErrorIs(t, docstore.ValidateBody([]byte(`{"a":`)), docstore.ErrInvalidDocumentJSON)
}

func Test_StatusOf(t *testing.T) {
	assert.Equal(t, docstore.StatusSuccess, docstore.StatusOf(nil))
	assert.Equal(t, docstore.StatusNotFound, docstore.StatusOf(docstore.ErrNotFound))
	assert.Equal(t, docstore.StatusConflict, docstore.StatusOf(fmt.Errorf("wrapped: %w", docstore.ErrConcurrencyConflict)))
	assert.Equal(t, docstore.StatusCanceled, docstore.StatusOf(context.Canceled))
	assert.Equal(t, docstore.StatusTimeout, docstore.StatusOf(context.DeadlineExceeded))
	assert.Equal(t, docstore.StatusError, docstore.StatusOf(errors.New("boom")))
}

func Test_ReadPreference_FromContext(t *testing.T) {
	ctx := context.Background()

	assert.Equal(t, docstore.ReadPrimary, docstore.GetReadPreference(ctx))
	assert.Equal(t, docstore.ReadReplica, docstore.GetReadPreference(docstore.WithReadReplica(ctx)))
	assert.Equal(t, docstore.ReadPrimary, docstore.GetReadPreference(docstore.WithReadPrimary(docstore.WithReadReplica(ctx))))
	assert.Equal(t, "replica", docstore.ReadReplica.String())
}

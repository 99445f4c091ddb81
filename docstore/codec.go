package docstore

import (
	"errors"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Decode unmarshals a document body into T.
func Decode[T any](doc Document) (T, error) {
	var v T

	if err := json.Unmarshal(doc.Body, &v); err != nil {
		return v, errors.Join(ErrDecodingFailed, err)
	}

	return v, nil
}

// Encode marshals v into a document body.
func Encode(v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Join(ErrEncodingFailed, err)
	}

	return body, nil
}

// ValidateBody checks that body is a JSON object.
func ValidateBody(body []byte) error {
	if !json.Valid(body) {
		return ErrInvalidDocumentJSON
	}

	if json.Get(body).ValueType() != jsoniter.ObjectValue {
		return ErrInvalidDocumentJSON
	}

	return nil
}

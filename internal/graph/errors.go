package graph

import (
	apperrors "userapi/internal/errors"
)

// queryError is returned from resolvers so that the response carries
// extensions.code alongside a message that never leaks internals.
type queryError struct {
	cause   error
	message string
	code    string
	fields  map[string]string
}

func newQueryError(err error) *queryError {
	httpErr := apperrors.MapErrorToHTTP(err)
	return &queryError{cause: err, message: httpErr.Message, code: httpErr.Code, fields: httpErr.Fields}
}

func (e *queryError) Error() string { return e.message }

func (e *queryError) Unwrap() error { return e.cause }

// Extensions implements graphql-go's ResolverError.
func (e *queryError) Extensions() map[string]interface{} {
	ext := map[string]interface{}{"code": e.code}
	if len(e.fields) > 0 {
		ext["fields"] = e.fields
	}
	return ext
}

func wrap(err error) error {
	if err == nil {
		return nil
	}
	return newQueryError(err)
}

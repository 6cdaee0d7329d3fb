// Package apperr defines the request-scoped error kinds surfaced to callers.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindConfiguration
	KindDataSource
	KindImageEncoding
	KindUpstreamGeneration
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindDataSource:
		return "data_source"
	case KindImageEncoding:
		return "image_encoding"
	case KindUpstreamGeneration:
		return "upstream_generation"
	default:
		return "unknown"
	}
}

// Error carries the kind of failure and the operation that produced it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// Sentinels for errors.Is; they match any *Error of the same kind.
var (
	ErrConfiguration      = &Error{Kind: KindConfiguration}
	ErrDataSource         = &Error{Kind: KindDataSource}
	ErrImageEncoding      = &Error{Kind: KindImageEncoding}
	ErrUpstreamGeneration = &Error{Kind: KindUpstreamGeneration}
)

func New(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	default:
		return e.Kind.String() + " error"
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Err == nil && t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// HTTPStatus maps an error to the status returned before a stream has started.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindImageEncoding:
		return http.StatusBadRequest
	case KindDataSource, KindUpstreamGeneration:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

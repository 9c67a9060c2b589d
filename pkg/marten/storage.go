package marten

import (
	"context"
	"reflect"

	"github.com/jackc/pgx/v5"
)

// StorageOperation is a unit of SQL plus parameters that appends itself to a
// command being built.
type StorageOperation interface {
	// ConfigureCommand appends the operation's SQL fragment and parameters.
	ConfigureCommand(b *CommandBuilder)

	// DocumentType is the document type the operation touches, or nil.
	DocumentType() reflect.Type
}

// Callback post-processes the result of one statement of a batch.
// It must consume exactly one result from results.
type Callback interface {
	Postprocess(ctx context.Context, results pgx.BatchResults) error
}

// CallbackFunc adapts an ordinary function to a Callback.
type CallbackFunc func(ctx context.Context, results pgx.BatchResults) error

func (f CallbackFunc) Postprocess(ctx context.Context, results pgx.BatchResults) error {
	return f(ctx, results)
}

// ExceptionTransform can replace the error raised by one statement of a batch.
type ExceptionTransform interface {
	// TryTransform returns the replacement error and true when it handles err.
	TryTransform(err error) (error, bool)
}

// Serializer turns documents into JSON text for jsonb parameters.
type Serializer interface {
	ToJSON(v any) (string, error)

	// EnumStorage tells parameter builders how enum values are stored.
	EnumStorage() EnumStorage
}

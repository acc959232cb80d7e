package binschema

import (
	"fmt"

	"github.com/twinfer/phisave/pkg/codecerr"
)

// ValidationError is a semantic rejection of a decoded or to-be-encoded value.
type ValidationError struct {
	Type   string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field '%s' in type '%s': %s", e.Field, e.Type, e.Reason)
}

// Is makes the error match codecerr.ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == codecerr.ErrValidation
}

// SchemaError reports a layout that cannot be bound or compiled.
type SchemaError struct {
	Type  string
	Field string
	Err   error
}

func (e *SchemaError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("schema type '%s': %v", e.Type, e.Err)
	}
	return fmt.Sprintf("schema type '%s' field '%s': %v", e.Type, e.Field, e.Err)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

func encodingError(typeName, field, msg string, args ...any) error {
	return codecerr.New(codecerr.PhaseEncode, codecerr.KindEncoding).
		Path(typeName, field).
		Detail(msg, args...).
		Build()
}

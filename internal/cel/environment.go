package cel

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"
)

// NewEnvironment creates the CEL environment shared by all record schemas.
func NewEnvironment() (*cel.Env, error) {
	opts := []cel.EnvOption{
		// Record fields arrive as narrow Go integers and float32
		cel.CustomTypeAdapter(NewRecordTypeAdapter()),

		cel.StdLib(),

		RecordFunctions(),
	}

	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return env, nil
}

// RecordFunctions returns CEL function declarations used by record schemas.
func RecordFunctions() cel.EnvOption {
	return cel.Lib(&recordLib{})
}

type recordLib struct{}

func (*recordLib) CompileOptions() []cel.EnvOption {
	return []cel.EnvOption{
		// countTrue counts the set flags of a boolean array
		cel.Function("countTrue",
			cel.Overload("countTrue_list_bool", []*cel.Type{cel.ListType(cel.BoolType)}, cel.IntType,
				cel.UnaryBinding(func(val ref.Val) ref.Val {
					list, ok := val.(traits.Lister)
					if !ok {
						return types.NewErr("expected list for countTrue function")
					}
					var n int64
					it := list.Iterator()
					for it.HasNext() == types.True {
						b, ok := it.Next().(types.Bool)
						if !ok {
							return types.NewErr("countTrue expects a list of bool")
						}
						if b {
							n++
						}
					}
					return types.Int(n)
				}),
			),
		),
	}
}

func (*recordLib) ProgramOptions() []cel.ProgramOption {
	return []cel.ProgramOption{}
}

// RecordTypeAdapter extends the default type adapter to handle Go's smaller numeric types
type RecordTypeAdapter struct {
	types.Adapter
}

// NewRecordTypeAdapter creates a type adapter for decoded record values
func NewRecordTypeAdapter() *RecordTypeAdapter {
	return &RecordTypeAdapter{
		Adapter: types.DefaultTypeAdapter,
	}
}

// NativeToValue converts Go native types to CEL values. Unsigned field values become
// CEL ints so schema expressions compare them against plain integer literals.
func (a *RecordTypeAdapter) NativeToValue(value any) ref.Val {
	switch v := value.(type) {
	case uint8:
		return types.Int(v)
	case uint16:
		return types.Int(v)
	case uint32:
		return types.Int(v)
	case int:
		return types.Int(v)
	case float32:
		return types.Double(v)
	default:
		return a.Adapter.NativeToValue(value)
	}
}

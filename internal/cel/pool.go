// pool.go
package cel

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// Decl declares a variable visible to an expression
type Decl struct {
	Name string
	Type *cel.Type
}

// ExpressionPool caches compiled CEL programs per expression and declaration set
type ExpressionPool struct {
	mu       sync.RWMutex
	programs map[string]cel.Program
	env      *cel.Env
}

// NewExpressionPool creates a new expression pool with the record CEL environment
func NewExpressionPool() (*ExpressionPool, error) {
	env, err := NewEnvironment()
	if err != nil {
		return nil, fmt.Errorf("failed to create environment: %w", err)
	}

	return &ExpressionPool{
		env:      env,
		programs: make(map[string]cel.Program),
	}, nil
}

// NewExpressionPoolWithEnv creates a new expression pool with a custom CEL environment
func NewExpressionPoolWithEnv(env *cel.Env) (*ExpressionPool, error) {
	if env == nil {
		return nil, fmt.Errorf("CEL environment cannot be nil")
	}

	return &ExpressionPool{
		env:      env,
		programs: make(map[string]cel.Program),
	}, nil
}

// Compile retrieves or compiles expr against exactly the given declarations.
// Identifiers outside decls fail type checking. A non-nil want constrains the
// result type.
func (p *ExpressionPool) Compile(expr string, decls []Decl, want *cel.Type) (cel.Program, error) {
	key := cacheKey(expr, decls, want)

	p.mu.RLock()
	if program, ok := p.programs[key]; ok {
		p.mu.RUnlock()
		return program, nil
	}
	p.mu.RUnlock()

	envOpts := make([]cel.EnvOption, 0, len(decls))
	for _, d := range decls {
		envOpts = append(envOpts, cel.Variable(d.Name, d.Type))
	}

	extEnv, err := p.env.Extend(envOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to extend environment: %w", err)
	}

	ast, issues := extEnv.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile expression '%s': %w", expr, issues.Err())
	}

	if want != nil {
		out := ast.OutputType()
		if !out.IsExactType(cel.DynType) && !want.IsAssignableType(out) {
			return nil, fmt.Errorf("expression '%s' yields %s, expected %s", expr, out, want)
		}
	}

	program, err := extEnv.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program: %w", err)
	}

	p.mu.Lock()
	p.programs[key] = program
	p.mu.Unlock()

	return program, nil
}

// Eval evaluates a compiled program against vars
func Eval(program cel.Program, vars map[string]any) (ref.Val, error) {
	if vars == nil {
		vars = make(map[string]any)
	}

	val, _, err := program.Eval(vars)
	if err != nil {
		return nil, fmt.Errorf("expression evaluation error: %w", err)
	}
	return val, nil
}

// EvalInt evaluates a program expected to yield an integer
func EvalInt(program cel.Program, vars map[string]any) (int64, error) {
	val, err := Eval(program, vars)
	if err != nil {
		return 0, err
	}
	switch v := val.(type) {
	case types.Int:
		return int64(v), nil
	case types.Uint:
		return int64(v), nil
	case types.Double:
		if float64(int64(v)) == float64(v) {
			return int64(v), nil
		}
	}
	return 0, fmt.Errorf("expected integer result, got %s", val.Type().TypeName())
}

// EvalBool evaluates a program expected to yield a boolean
func EvalBool(program cel.Program, vars map[string]any) (bool, error) {
	val, err := Eval(program, vars)
	if err != nil {
		return false, err
	}
	b, ok := val.(types.Bool)
	if !ok {
		return false, fmt.Errorf("expected bool result, got %s", val.Type().TypeName())
	}
	return bool(b), nil
}

func cacheKey(expr string, decls []Decl, want *cel.Type) string {
	var b strings.Builder
	b.WriteString(expr)
	for _, d := range decls {
		b.WriteByte('|')
		b.WriteString(d.Name)
		b.WriteByte(':')
		b.WriteString(d.Type.String())
	}
	if want != nil {
		b.WriteString("->")
		b.WriteString(want.String())
	}
	return b.String()
}

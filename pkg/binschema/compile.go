package binschema

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"

	celgo "github.com/google/cel-go/cel"
	"github.com/twinfer/phisave/internal/cel"
)

type fieldKind int

const (
	kindU1 fieldKind = iota
	kindU2
	kindU4
	kindF4
	kindB1
	kindVLQ
	kindStr
	kindStruct
)

var builtinKinds = map[string]fieldKind{
	"u1":  kindU1,
	"u2":  kindU2,
	"u4":  kindU4,
	"f4":  kindF4,
	"b1":  kindB1,
	"vlq": kindVLQ,
	"str": kindStr,
}

var goKinds = map[fieldKind]reflect.Kind{
	kindU1:     reflect.Uint8,
	kindU2:     reflect.Uint16,
	kindU4:     reflect.Uint32,
	kindF4:     reflect.Float32,
	kindB1:     reflect.Bool,
	kindVLQ:    reflect.Uint16,
	kindStr:    reflect.String,
	kindStruct: reflect.Struct,
}

func (k fieldKind) integer() bool {
	return k == kindU1 || k == kindU2 || k == kindU4 || k == kindVLQ
}

func (k fieldKind) maxValue() int64 {
	switch k {
	case kindU1:
		return 0xFF
	case kindU2:
		return 0xFFFF
	case kindU4:
		return 0xFFFFFFFF
	case kindVLQ:
		return 0x7FFF
	}
	return 0
}

type repeatKind int

const (
	repeatNone repeatKind = iota
	repeatFixed
	repeatField
	repeatExpr
)

// fieldPlan is a field descriptor bound to a Go struct field
type fieldPlan struct {
	id    string
	index int
	kind  fieldKind
	sub   *typePlan
	align int

	optional bool
	cond     celgo.Program
	condSrc  string

	repeat      repeatKind
	count       int
	countRef    int
	countExpr   celgo.Program
	countSrc    string
	drivesArray int

	derive    celgo.Program
	deriveSrc string

	valid *validator

	// valueType is the Go type of one decoded value (the element type for arrays)
	valueType reflect.Type
	// holderType is the Go type behind the optional pointer, if any
	holderType reflect.Type
}

type typePlan struct {
	name   string
	goType reflect.Type
	fields []*fieldPlan
	// scoped is set when any expression of the type reads sibling values
	scoped  bool
	derives bool
}

type validator struct {
	eq      any
	min     *float64
	max     *float64
	expr    celgo.Program
	exprSrc string
	message string
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// reservedIdents cannot be declared as CEL variables
var reservedIdents = map[string]bool{
	"as": true, "break": true, "const": true, "continue": true, "else": true,
	"false": true, "for": true, "function": true, "if": true, "import": true,
	"in": true, "let": true, "loop": true, "package": true, "namespace": true,
	"null": true, "return": true, "true": true, "var": true, "void": true, "while": true,
}

type compiler struct {
	schema *Schema
	pool   *cel.ExpressionPool
	plans  map[string]*typePlan
}

func newCompiler(schema *Schema, pool *cel.ExpressionPool) *compiler {
	return &compiler{
		schema: schema,
		pool:   pool,
		plans:  make(map[string]*typePlan),
	}
}

func (c *compiler) compileRoot(goType reflect.Type) (*typePlan, error) {
	return c.compileType(c.schema.Meta.ID, c.schema.Seq, goType, map[string]bool{})
}

func (c *compiler) compileType(name string, seq []Field, goType reflect.Type, visiting map[string]bool) (*typePlan, error) {
	if plan, ok := c.plans[name]; ok {
		if plan.goType != goType {
			return nil, &SchemaError{Type: name, Err: fmt.Errorf("bound to both %s and %s", plan.goType, goType)}
		}
		return plan, nil
	}
	if visiting[name] {
		return nil, &SchemaError{Type: name, Err: errors.New("circular type dependency")}
	}
	visiting[name] = true
	defer delete(visiting, name)

	if goType.Kind() != reflect.Struct {
		return nil, &SchemaError{Type: name, Err: fmt.Errorf("bound Go type %s is not a struct", goType)}
	}
	if len(seq) == 0 {
		return nil, &SchemaError{Type: name, Err: errors.New("empty seq")}
	}

	tags := make(map[string]int)
	for i := 0; i < goType.NumField(); i++ {
		tag := goType.Field(i).Tag.Get("bin")
		if tag == "" || tag == "-" {
			continue
		}
		if _, dup := tags[tag]; dup {
			return nil, &SchemaError{Type: name, Field: tag, Err: fmt.Errorf("tag used twice in %s", goType)}
		}
		tags[tag] = i
	}

	plan := &typePlan{name: name, goType: goType}
	seen := make(map[string]bool)
	for i, f := range seq {
		if f.ID == "" {
			return nil, &SchemaError{Type: name, Err: fmt.Errorf("field %d has no id", i)}
		}
		if seen[f.ID] {
			return nil, &SchemaError{Type: name, Field: f.ID, Err: errors.New("duplicate field id")}
		}
		seen[f.ID] = true

		idx, ok := tags[f.ID]
		if !ok {
			return nil, &SchemaError{Type: name, Field: f.ID, Err: fmt.Errorf("no field tagged bin:%q in %s", f.ID, goType)}
		}

		fp, err := c.compileField(plan, f, goType.Field(idx), visiting)
		if err != nil {
			return nil, err
		}
		fp.index = idx
		plan.fields = append(plan.fields, fp)
	}

	// Derivations see the whole record, so they compile once every field is typed.
	for i, f := range seq {
		if f.Derive == "" {
			continue
		}
		fp := plan.fields[i]
		if !fp.kind.integer() || fp.repeat != repeatNone || fp.optional {
			return nil, &SchemaError{Type: name, Field: f.ID, Err: errors.New("derive requires a plain integer field")}
		}
		if fp.drivesArray >= 0 {
			return nil, &SchemaError{Type: name, Field: f.ID, Err: errors.New("count field is already derived from its array")}
		}
		prg, err := c.pool.Compile(f.Derive, declsFor(plan.fields), celgo.IntType)
		if err != nil {
			return nil, &SchemaError{Type: name, Field: f.ID, Err: fmt.Errorf("derive: %w", err)}
		}
		fp.derive = prg
		fp.deriveSrc = f.Derive
		plan.derives = true
		plan.scoped = true
	}

	c.plans[name] = plan
	return plan, nil
}

func (c *compiler) compileField(plan *typePlan, f Field, sf reflect.StructField, visiting map[string]bool) (*fieldPlan, error) {
	fail := func(err error) (*fieldPlan, error) {
		return nil, &SchemaError{Type: plan.name, Field: f.ID, Err: err}
	}

	fp := &fieldPlan{id: f.ID, countRef: -1, drivesArray: -1, align: f.Align}
	if f.Align < 0 {
		return fail(fmt.Errorf("negative align %d", f.Align))
	}

	ft := sf.Type
	if f.IfExpr != "" {
		if ft.Kind() != reflect.Pointer {
			return fail(fmt.Errorf("conditional field must be a pointer, got %s", ft))
		}
		fp.optional = true
		ft = ft.Elem()
		fp.holderType = ft
	}

	prefix := declsFor(plan.fields)

	switch f.Repeat {
	case "":
		if f.RepeatExpr != "" || f.RepeatField != "" {
			return fail(errors.New("repeat-expr/repeat-field without repeat"))
		}
		fp.valueType = ft
	case "expr":
		if f.RepeatExpr == "" {
			return fail(errors.New("repeat: expr needs repeat-expr"))
		}
		if n, err := strconv.Atoi(f.RepeatExpr); err == nil {
			if n < 0 {
				return fail(fmt.Errorf("negative repeat count %d", n))
			}
			fp.repeat = repeatFixed
			fp.count = n
		} else {
			prg, err := c.pool.Compile(f.RepeatExpr, prefix, celgo.IntType)
			if err != nil {
				return fail(fmt.Errorf("repeat-expr: %w", err))
			}
			fp.repeat = repeatExpr
			fp.countExpr = prg
			fp.countSrc = f.RepeatExpr
			plan.scoped = true
		}
	case "field":
		ref := -1
		for i, prev := range plan.fields {
			if prev.id == f.RepeatField {
				ref = i
			}
		}
		if ref < 0 {
			return fail(fmt.Errorf("repeat-field '%s' is not an earlier field", f.RepeatField))
		}
		counter := plan.fields[ref]
		if !counter.kind.integer() || counter.repeat != repeatNone || counter.optional {
			return fail(fmt.Errorf("repeat-field '%s' is not a plain integer field", f.RepeatField))
		}
		if counter.drivesArray >= 0 {
			return fail(fmt.Errorf("repeat-field '%s' already counts another array", f.RepeatField))
		}
		fp.repeat = repeatField
		fp.countRef = ref
	default:
		return fail(fmt.Errorf("unsupported repeat '%s'", f.Repeat))
	}

	if fp.repeat != repeatNone {
		switch ft.Kind() {
		case reflect.Slice:
		case reflect.Array:
			if fp.repeat != repeatFixed || ft.Len() != fp.count {
				return fail(fmt.Errorf("Go array %s needs a constant repeat count of %d", ft, ft.Len()))
			}
		default:
			return fail(fmt.Errorf("repeated field must be a slice or array, got %s", ft))
		}
		fp.valueType = ft.Elem()
	}

	if kind, ok := builtinKinds[f.Type]; ok {
		fp.kind = kind
	} else {
		def, ok := c.schema.Types[f.Type]
		if !ok {
			return fail(fmt.Errorf("unknown type '%s'", f.Type))
		}
		fp.kind = kindStruct
		sub, err := c.compileType(f.Type, def.Seq, fp.valueType, visiting)
		if err != nil {
			return nil, err
		}
		fp.sub = sub
	}
	if fp.valueType.Kind() != goKinds[fp.kind] {
		return fail(fmt.Errorf("type '%s' cannot bind to Go %s", f.Type, fp.valueType))
	}

	if f.IfExpr != "" {
		prg, err := c.pool.Compile(f.IfExpr, prefix, celgo.BoolType)
		if err != nil {
			return fail(fmt.Errorf("if: %w", err))
		}
		fp.cond = prg
		fp.condSrc = f.IfExpr
		plan.scoped = true
	}

	if f.Valid != nil {
		v, err := c.compileValidator(fp, f, prefix)
		if err != nil {
			return fail(err)
		}
		fp.valid = v
		plan.scoped = plan.scoped || v.expr != nil
	}

	if fp.repeat == repeatField {
		plan.fields[fp.countRef].drivesArray = len(plan.fields)
	}
	return fp, nil
}

func (c *compiler) compileValidator(fp *fieldPlan, f Field, prefix []cel.Decl) (*validator, error) {
	def := f.Valid
	v := &validator{eq: def.Value, message: def.Message}

	if def.Min != nil || def.Max != nil || def.Value != nil {
		if fp.repeat != repeatNone || fp.kind == kindStruct {
			return nil, errors.New("valid min/max/value needs a scalar field")
		}
	}
	if def.Min != nil {
		n, err := toFloat(def.Min)
		if err != nil {
			return nil, fmt.Errorf("valid.min: %w", err)
		}
		v.min = &n
	}
	if def.Max != nil {
		n, err := toFloat(def.Max)
		if err != nil {
			return nil, fmt.Errorf("valid.max: %w", err)
		}
		v.max = &n
	}
	if def.Expr != "" {
		self := cel.Decl{Name: "_", Type: fieldCELType(fp)}
		decls := append(append([]cel.Decl{}, prefix...), self)
		if declarable(fp.id) {
			decls = append(decls, cel.Decl{Name: fp.id, Type: fieldCELType(fp)})
		}
		prg, err := c.pool.Compile(def.Expr, decls, celgo.BoolType)
		if err != nil {
			return nil, fmt.Errorf("valid.expr: %w", err)
		}
		v.expr = prg
		v.exprSrc = def.Expr
	}
	return v, nil
}

// declsFor declares the given fields as CEL variables
func declsFor(fields []*fieldPlan) []cel.Decl {
	decls := make([]cel.Decl, 0, len(fields))
	for _, fp := range fields {
		if !declarable(fp.id) {
			continue
		}
		decls = append(decls, cel.Decl{Name: fp.id, Type: fieldCELType(fp)})
	}
	return decls
}

func declarable(id string) bool {
	return identPattern.MatchString(id) && !reservedIdents[id]
}

func fieldCELType(fp *fieldPlan) *celgo.Type {
	if fp.optional {
		return celgo.DynType
	}
	var t *celgo.Type
	switch fp.kind {
	case kindU1, kindU2, kindU4, kindVLQ:
		t = celgo.IntType
	case kindF4:
		t = celgo.DoubleType
	case kindB1:
		t = celgo.BoolType
	case kindStr:
		t = celgo.StringType
	default:
		t = celgo.MapType(celgo.StringType, celgo.DynType)
	}
	if fp.repeat != repeatNone {
		return celgo.ListType(t)
	}
	return t
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case float64:
		return n, nil
	}
	return 0, fmt.Errorf("expected a number, got %T", v)
}

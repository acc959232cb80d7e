package binschema

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/twinfer/phisave/internal/cel"
	"github.com/twinfer/phisave/pkg/bitstream"
)

type encoder struct {
	ctx    context.Context
	w      *bitstream.Writer
	logger *slog.Logger
}

func (e *encoder) encodeStruct(plan *typePlan, in reflect.Value) error {
	derived, err := e.derive(plan, in)
	if err != nil {
		return err
	}

	var scope map[string]any
	if plan.scoped {
		scope = make(map[string]any, len(plan.fields))
	}

	for i, fp := range plan.fields {
		if err := e.ctx.Err(); err != nil {
			return err
		}
		if err := e.encodeField(plan, i, fp, in, derived, scope); err != nil {
			return fmt.Errorf("encoding field '%s' in type '%s': %w", fp.id, plan.name, err)
		}
	}
	return nil
}

// derive computes count fields from their arrays and evaluates derive expressions.
// Stored values of those fields are never written.
func (e *encoder) derive(plan *typePlan, in reflect.Value) (map[int]int64, error) {
	var derived map[int]int64
	var full map[string]any
	if plan.derives {
		full = structScopeValue(plan, in)
	}

	for i, fp := range plan.fields {
		var n int64
		switch {
		case fp.drivesArray >= 0:
			arr := plan.fields[fp.drivesArray]
			n = int64(containerLen(arr, in.Field(arr.index)))
		case fp.derive != nil:
			v, err := cel.EvalInt(fp.derive, full)
			if err != nil {
				return nil, fmt.Errorf("deriving field '%s' in type '%s' with '%s': %w", fp.id, plan.name, fp.deriveSrc, err)
			}
			n = v
		default:
			continue
		}

		if n < 0 || n > fp.kind.maxValue() {
			return nil, encodingError(plan.name, fp.id, "derived value %d does not fit the field", n)
		}
		if derived == nil {
			derived = make(map[int]int64)
		}
		derived[i] = n
		if full != nil {
			full[fp.id] = n
		}

		if stored := in.Field(fp.index).Uint(); int64(stored) != n {
			e.logger.DebugContext(e.ctx, "Recomputed derived field", "type", plan.name, "field_id", fp.id, "stored", stored, "written", n)
		}
	}
	return derived, nil
}

func (e *encoder) encodeField(plan *typePlan, i int, fp *fieldPlan, in reflect.Value, derived map[int]int64, scope map[string]any) error {
	src := in.Field(fp.index)

	if fp.cond != nil {
		present, err := cel.EvalBool(fp.cond, scope)
		if err != nil {
			return fmt.Errorf("evaluating if '%s': %w", fp.condSrc, err)
		}
		absent := src.IsNil()
		switch {
		case present && absent:
			return encodingError(plan.name, fp.id, "value required when '%s' holds", fp.condSrc)
		case !present && !absent:
			return encodingError(plan.name, fp.id, "value must be absent unless '%s' holds", fp.condSrc)
		case !present:
			if scope != nil {
				scope[fp.id] = nil
			}
			return nil
		}
		src = src.Elem()
	}

	if err := e.checkCount(plan, fp, src, scope); err != nil {
		return err
	}

	e.w.Align(fp.align)

	var value any
	if n, ok := derived[i]; ok {
		if err := e.writeInt(fp.kind, n); err != nil {
			return err
		}
		value = n
	} else {
		if fp.repeat == repeatNone {
			if err := e.encodeValue(fp, src); err != nil {
				return err
			}
		} else {
			for j := 0; j < src.Len(); j++ {
				if err := e.encodeValue(fp, src.Index(j)); err != nil {
					return fmt.Errorf("element %d: %w", j, err)
				}
			}
		}
		value = scopeValue(fp, in.Field(fp.index))
	}

	e.w.Align(fp.align)

	if scope != nil {
		scope[fp.id] = value
	}
	if fp.valid != nil {
		return fp.valid.check(plan, fp, value, scope)
	}
	return nil
}

// checkCount verifies that an array agrees with the count its layout will read back.
func (e *encoder) checkCount(plan *typePlan, fp *fieldPlan, src reflect.Value, scope map[string]any) error {
	switch fp.repeat {
	case repeatFixed:
		if src.Len() != fp.count {
			return encodingError(plan.name, fp.id, "has %d elements, layout requires %d", src.Len(), fp.count)
		}
	case repeatExpr:
		want, err := cel.EvalInt(fp.countExpr, scope)
		if err != nil {
			return fmt.Errorf("evaluating repeat-expr '%s': %w", fp.countSrc, err)
		}
		if int64(src.Len()) != want {
			return encodingError(plan.name, fp.id, "has %d elements but '%s' yields %d", src.Len(), fp.countSrc, want)
		}
	}
	return nil
}

func (e *encoder) writeInt(kind fieldKind, n int64) error {
	switch kind {
	case kindU1:
		e.w.WriteU8(uint8(n))
	case kindU2:
		e.w.WriteU16(uint16(n))
	case kindU4:
		e.w.WriteU32(uint32(n))
	case kindVLQ:
		return bitstream.WriteVarInt(e.w, uint16(n))
	default:
		return fmt.Errorf("field kind %d is not an integer", kind)
	}
	return nil
}

func (e *encoder) encodeValue(fp *fieldPlan, v reflect.Value) error {
	switch fp.kind {
	case kindU1:
		e.w.WriteU8(uint8(v.Uint()))
	case kindU2:
		e.w.WriteU16(uint16(v.Uint()))
	case kindU4:
		e.w.WriteU32(uint32(v.Uint()))
	case kindF4:
		e.w.WriteF32(float32Of(v))
	case kindB1:
		e.w.WriteBool(v.Bool())
	case kindVLQ:
		return bitstream.WriteVarInt(e.w, uint16(v.Uint()))
	case kindStr:
		return bitstream.WriteString(e.w, v.String())
	case kindStruct:
		return e.encodeStruct(fp.sub, v)
	}
	return nil
}

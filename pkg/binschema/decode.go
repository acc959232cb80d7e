package binschema

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/twinfer/phisave/internal/cel"
	"github.com/twinfer/phisave/pkg/bitstream"
)

type decoder struct {
	ctx     context.Context
	r       *bitstream.Reader
	logger  *slog.Logger
	strings bitstream.StringPolicy
}

func (d *decoder) decodeStruct(plan *typePlan, out reflect.Value) error {
	var scope map[string]any
	if plan.scoped {
		scope = make(map[string]any, len(plan.fields))
	}

	for _, fp := range plan.fields {
		if err := d.ctx.Err(); err != nil {
			return err
		}
		if err := d.decodeField(plan, fp, out, scope); err != nil {
			return fmt.Errorf("decoding field '%s' in type '%s': %w", fp.id, plan.name, err)
		}
	}
	return nil
}

func (d *decoder) decodeField(plan *typePlan, fp *fieldPlan, out reflect.Value, scope map[string]any) error {
	dst := out.Field(fp.index)

	if fp.cond != nil {
		present, err := cel.EvalBool(fp.cond, scope)
		if err != nil {
			return fmt.Errorf("evaluating if '%s': %w", fp.condSrc, err)
		}
		if !present {
			dst.SetZero()
			if scope != nil {
				scope[fp.id] = nil
			}
			d.logger.DebugContext(d.ctx, "Skipping absent field", "type", plan.name, "field_id", fp.id, "if", fp.condSrc)
			return nil
		}
		holder := reflect.New(fp.holderType)
		dst.Set(holder)
		dst = holder.Elem()
	}

	if err := d.r.Align(fp.align); err != nil {
		return fmt.Errorf("aligning: %w", err)
	}

	if fp.repeat == repeatNone {
		if err := d.decodeValue(fp, dst); err != nil {
			return err
		}
	} else {
		n, err := d.count(plan, fp, out, scope)
		if err != nil {
			return err
		}
		if dst.Kind() == reflect.Slice {
			dst.Set(reflect.MakeSlice(dst.Type(), n, n))
		}
		for i := 0; i < n; i++ {
			if err := d.decodeValue(fp, dst.Index(i)); err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
		}
	}

	if err := d.r.Align(fp.align); err != nil {
		return fmt.Errorf("aligning: %w", err)
	}

	value := scopeValue(fp, out.Field(fp.index))
	if scope != nil {
		scope[fp.id] = value
	}
	if fp.valid != nil {
		return fp.valid.check(plan, fp, value, scope)
	}
	return nil
}

func (d *decoder) count(plan *typePlan, fp *fieldPlan, out reflect.Value, scope map[string]any) (int, error) {
	var n int64
	switch fp.repeat {
	case repeatFixed:
		n = int64(fp.count)
	case repeatField:
		counter := plan.fields[fp.countRef]
		n = int64(out.Field(counter.index).Uint())
	case repeatExpr:
		v, err := cel.EvalInt(fp.countExpr, scope)
		if err != nil {
			return 0, fmt.Errorf("evaluating repeat-expr '%s': %w", fp.countSrc, err)
		}
		if v < 0 {
			return 0, &ValidationError{Type: plan.name, Field: fp.id, Reason: fmt.Sprintf("repeat-expr '%s' yields %d", fp.countSrc, v)}
		}
		n = v
	}

	// every element takes at least one bit
	if n > d.r.Remaining() {
		return 0, &bitstream.InsufficientBitsError{Needed: n, Available: d.r.Remaining(), Offset: d.r.Offset()}
	}
	d.logger.DebugContext(d.ctx, "Decoding array", "type", plan.name, "field_id", fp.id, "count", n)
	return int(n), nil
}

func (d *decoder) decodeValue(fp *fieldPlan, dst reflect.Value) error {
	switch fp.kind {
	case kindU1:
		v, err := d.r.ReadU8()
		if err != nil {
			return err
		}
		dst.SetUint(uint64(v))
	case kindU2:
		v, err := d.r.ReadU16()
		if err != nil {
			return err
		}
		dst.SetUint(uint64(v))
	case kindU4:
		v, err := d.r.ReadU32()
		if err != nil {
			return err
		}
		dst.SetUint(uint64(v))
	case kindF4:
		v, err := d.r.ReadF32()
		if err != nil {
			return err
		}
		setFloat32(dst, v)
	case kindB1:
		v, err := d.r.ReadBool()
		if err != nil {
			return err
		}
		dst.SetBool(v)
	case kindVLQ:
		v, err := bitstream.ReadVarInt(d.r)
		if err != nil {
			return err
		}
		dst.SetUint(uint64(v))
	case kindStr:
		v, err := bitstream.ReadString(d.r, d.strings)
		if err != nil {
			return err
		}
		dst.SetString(v)
	case kindStruct:
		return d.decodeStruct(fp.sub, dst)
	}
	return nil
}

func (v *validator) check(plan *typePlan, fp *fieldPlan, value any, scope map[string]any) error {
	if value == nil {
		return nil
	}
	fail := func(reason string) error {
		if v.message != "" {
			reason = v.message + " (" + reason + ")"
		}
		return &ValidationError{Type: plan.name, Field: fp.id, Reason: reason}
	}

	if v.eq != nil && !sameValue(v.eq, value) {
		return fail(fmt.Sprintf("got %v, expected %v", value, v.eq))
	}
	if v.min != nil || v.max != nil {
		num, err := toFloat(value)
		if err != nil {
			return fail(err.Error())
		}
		if v.min != nil && num < *v.min {
			return fail(fmt.Sprintf("got %v, minimum %v", value, *v.min))
		}
		if v.max != nil && num > *v.max {
			return fail(fmt.Sprintf("got %v, maximum %v", value, *v.max))
		}
	}
	if v.expr != nil {
		vars := make(map[string]any, len(scope)+2)
		for k, sv := range scope {
			vars[k] = sv
		}
		vars[fp.id] = value
		vars["_"] = value
		ok, err := cel.EvalBool(v.expr, vars)
		if err != nil {
			return fmt.Errorf("evaluating valid.expr '%s': %w", v.exprSrc, err)
		}
		if !ok {
			return fail(fmt.Sprintf("'%s' is false for %v", v.exprSrc, value))
		}
	}
	return nil
}

func sameValue(want, got any) bool {
	wn, werr := toFloat(want)
	gn, gerr := toFloat(got)
	if werr == nil && gerr == nil {
		return wn == gn
	}
	return want == got
}

package binschema

import (
	"reflect"
)

var float32PtrType = reflect.TypeFor[*float32]()

// scopeValue converts a bound Go value into the form CEL expressions see:
// integers as int64, floats as float64, arrays as lists and nested records as maps.
func scopeValue(fp *fieldPlan, v reflect.Value) any {
	if fp.optional {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	if fp.repeat == repeatNone {
		return scalarScopeValue(fp, v)
	}
	list := make([]any, v.Len())
	for i := range list {
		list[i] = scalarScopeValue(fp, v.Index(i))
	}
	return list
}

func scalarScopeValue(fp *fieldPlan, v reflect.Value) any {
	switch fp.kind {
	case kindU1, kindU2, kindU4, kindVLQ:
		return int64(v.Uint())
	case kindF4:
		return v.Float()
	case kindB1:
		return v.Bool()
	case kindStr:
		return v.String()
	default:
		return structScopeValue(fp.sub, v)
	}
}

func structScopeValue(plan *typePlan, v reflect.Value) map[string]any {
	m := make(map[string]any, len(plan.fields))
	for _, fp := range plan.fields {
		m[fp.id] = scopeValue(fp, v.Field(fp.index))
	}
	return m
}

// containerLen is the element count of an array field, 0 when an optional array is absent.
func containerLen(fp *fieldPlan, v reflect.Value) int {
	if fp.optional {
		if v.IsNil() {
			return 0
		}
		v = v.Elem()
	}
	return v.Len()
}

// setFloat32 stores f without a float64 round trip, which would quiet a signalling NaN.
func setFloat32(dst reflect.Value, f float32) {
	if dst.CanAddr() {
		*dst.Addr().Convert(float32PtrType).Interface().(*float32) = f
		return
	}
	dst.SetFloat(float64(f))
}

func float32Of(v reflect.Value) float32 {
	if v.CanAddr() {
		return *v.Addr().Convert(float32PtrType).Interface().(*float32)
	}
	if f, ok := v.Interface().(float32); ok {
		return f
	}
	return float32(v.Float())
}

package scenario

import (
	"strings"

	"github.com/Carmen-Shannon/oxy-anim/common"
	"github.com/Carmen-Shannon/oxy-anim/engine"
	"github.com/d5/tengo/v2"
)

func objectAsString(obj tengo.Object) string {
	if obj == nil {
		return ""
	}
	switch v := obj.(type) {
	case *tengo.String:
		return v.Value
	default:
		return strings.Trim(v.String(), "\"")
	}
}

func toString(name string, obj tengo.Object) (string, error) {
	s, ok := obj.(*tengo.String)
	if !ok {
		return "", tengo.ErrInvalidArgumentType{Name: name, Expected: "string", Found: obj.TypeName()}
	}
	return s.Value, nil
}

func toFloat(name string, obj tengo.Object) (float32, error) {
	switch obj.(type) {
	case *tengo.Int, *tengo.Float:
		f, _ := tengo.ToFloat64(obj)
		return float32(f), nil
	}
	return 0, tengo.ErrInvalidArgumentType{Name: name, Expected: "int/float", Found: obj.TypeName()}
}

// toVec4 accepts a number for the first component or an array of up to four numbers.
func toVec4(name string, obj tengo.Object) (common.Vec4, error) {
	var elems []tengo.Object
	switch v := obj.(type) {
	case *tengo.Int, *tengo.Float:
		f, err := toFloat(name, obj)
		return common.Vec4{f}, err
	case *tengo.Array:
		elems = v.Value
	case *tengo.ImmutableArray:
		elems = v.Value
	default:
		return common.Vec4{}, tengo.ErrInvalidArgumentType{Name: name, Expected: "array/number", Found: obj.TypeName()}
	}
	if len(elems) > 4 {
		return common.Vec4{}, tengo.ErrInvalidArgumentType{Name: name, Expected: "at most 4 components", Found: "array"}
	}
	var out common.Vec4
	for i, e := range elems {
		f, err := toFloat(name, e)
		if err != nil {
			return common.Vec4{}, err
		}
		out[i] = f
	}
	return out, nil
}

func fromVec4(v common.Vec4) *tengo.Array {
	out := make([]tengo.Object, len(v))
	for i, f := range v {
		out[i] = &tengo.Float{Value: float64(f)}
	}
	return &tengo.Array{Value: out}
}

// toSpringParams reads the stiffness, damping and threshold keys of a map. Missing keys stay zero
// and take the engine defaults.
func toSpringParams(obj tengo.Object) (engine.SpringParams, error) {
	var m map[string]tengo.Object
	switch v := obj.(type) {
	case *tengo.Map:
		m = v.Value
	case *tengo.ImmutableMap:
		m = v.Value
	default:
		return engine.SpringParams{}, tengo.ErrInvalidArgumentType{Name: "params", Expected: "map", Found: obj.TypeName()}
	}

	var p engine.SpringParams
	for key, dst := range map[string]*float32{"stiffness": &p.Stiffness, "damping": &p.Damping, "threshold": &p.Threshold} {
		v, ok := m[key]
		if !ok {
			continue
		}
		f, err := toFloat(key, v)
		if err != nil {
			return engine.SpringParams{}, err
		}
		*dst = f
	}
	return p, nil
}

// propertyArgs reads the leading object and property name arguments.
func propertyArgs(args []tengo.Object) (string, string, error) {
	obj, err := toString("object", args[0])
	if err != nil {
		return "", "", err
	}
	name, err := toString("property", args[1])
	if err != nil {
		return "", "", err
	}
	return obj, name, nil
}

// objectArgs reads an object name followed by any number of property names.
func objectArgs(args []tengo.Object) (string, []string, error) {
	if len(args) < 1 {
		return "", nil, tengo.ErrWrongNumArguments
	}
	obj, err := toString("object", args[0])
	if err != nil {
		return "", nil, err
	}
	names := make([]string, 0, len(args)-1)
	for _, a := range args[1:] {
		n, err := toString("property", a)
		if err != nil {
			return "", nil, err
		}
		names = append(names, n)
	}
	return obj, names, nil
}

package graph

import (
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/agenthands/atag/internal/core/model"
)

func toDriver(v model.Value) (interface{}, error) {
	switch v.Kind() {
	case model.KindString:
		s, _ := v.AsString()
		return s, nil
	case model.KindInt, model.KindLong:
		i, _ := v.AsInteger()
		return i, nil
	case model.KindDouble:
		f, _ := v.AsDouble()
		return f, nil
	case model.KindBool:
		b, _ := v.AsBool()
		return b, nil
	case model.KindDate:
		t, _ := v.AsDate()
		return dbtype.Date(t), nil
	case model.KindStringList:
		l, _ := v.AsStringList()
		return l, nil
	default:
		return nil, fmt.Errorf("%w: kind %s", model.ErrUnsupportedValue, v.Kind())
	}
}

// fromDriver maps bolt values back. Integers always come back as int64, so the
// Int/Long distinction of the written value is not preserved.
func fromDriver(raw interface{}) (model.Value, error) {
	switch t := raw.(type) {
	case dbtype.Date:
		return model.Date(time.Time(t)), nil
	case int64:
		return model.Long(t), nil
	default:
		return model.FromAny(raw)
	}
}

func propertiesToDriver(props model.Properties) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(props))
	for k, v := range props {
		dv, err := toDriver(v)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", k, err)
		}
		out[k] = dv
	}
	return out, nil
}

func propertiesFromDriver(raw interface{}) (model.Properties, error) {
	props := model.Properties{}
	if raw == nil {
		return props, nil
	}
	m, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: properties of type %T", model.ErrUnsupportedValue, raw)
	}
	for k, x := range m {
		v, err := fromDriver(x)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", k, err)
		}
		props[k] = v
	}
	return props, nil
}

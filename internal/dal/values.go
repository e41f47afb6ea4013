package dal

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// decodeValue converts a driver value into the normalized Go type of a field kind.
func decodeValue(kind FieldKind, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	if b, ok := raw.([]byte); ok {
		raw = string(b)
	}

	switch kind {
	case KindID, KindString:
		if s, ok := raw.(string); ok {
			return s, nil
		}
		return fmt.Sprint(raw), nil
	case KindFloat:
		switch v := raw.(type) {
		case float64:
			return v, nil
		case float32:
			return float64(v), nil
		case int64:
			return float64(v), nil
		case int32:
			return float64(v), nil
		case int:
			return float64(v), nil
		case string:
			return strconv.ParseFloat(v, 64)
		}
	case KindInt:
		switch v := raw.(type) {
		case int64:
			return v, nil
		case int32:
			return int64(v), nil
		case int:
			return int64(v), nil
		case float64:
			return int64(v), nil
		case string:
			return strconv.ParseInt(v, 10, 64)
		}
	case KindBool:
		switch v := raw.(type) {
		case bool:
			return v, nil
		case int64:
			return v != 0, nil
		case int:
			return v != 0, nil
		case string:
			return strconv.ParseBool(v)
		}
	case KindJSON:
		s, ok := raw.(string)
		if !ok {
			return raw, nil
		}
		var out any
		if err := json.Unmarshal([]byte(s), &out); err != nil {
			return nil, err
		}
		return out, nil
	case KindDate:
		switch v := raw.(type) {
		case time.Time:
			return v, nil
		case string:
			for _, layout := range timeLayouts {
				if t, err := time.Parse(layout, v); err == nil {
					return t, nil
				}
			}
		}
	}
	return nil, fmt.Errorf("cannot decode %T as %s", raw, kind)
}

// encodeValue converts a normalized value into its storage representation.
func encodeValue(kind FieldKind, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if kind == KindJSON {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return string(data), nil
	}
	return v, nil
}

// coerceInput converts a payload value into the normalized type of a field.
func coerceInput(f *Field, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch f.Kind {
	case KindID:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected an identifier, got %T", v)
		}
		id, ok := NormalizeID(s)
		if !ok {
			return nil, fmt.Errorf("%q is not a valid identifier", s)
		}
		return id, nil
	case KindString:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected a string, got %T", v)
		}
		return s, nil
	case KindFloat:
		switch n := v.(type) {
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		case int:
			return float64(n), nil
		case int32:
			return float64(n), nil
		case int64:
			return float64(n), nil
		case json.Number:
			return n.Float64()
		}
		return nil, fmt.Errorf("expected a number, got %T", v)
	case KindInt:
		switch n := v.(type) {
		case int:
			return int64(n), nil
		case int32:
			return int64(n), nil
		case int64:
			return n, nil
		case float64:
			if n != math.Trunc(n) {
				return nil, fmt.Errorf("expected an integer, got %v", n)
			}
			return int64(n), nil
		case json.Number:
			return n.Int64()
		}
		return nil, fmt.Errorf("expected an integer, got %T", v)
	case KindBool:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("expected a boolean, got %T", v)
		}
		return b, nil
	case KindJSON:
		return v, nil
	case KindDate:
		switch t := v.(type) {
		case time.Time:
			return t, nil
		case string:
			parsed, err := time.Parse(time.RFC3339Nano, t)
			if err != nil {
				return nil, fmt.Errorf("expected an RFC 3339 date, got %q", t)
			}
			return parsed, nil
		}
		return nil, fmt.Errorf("expected a date, got %T", v)
	}
	return nil, fmt.Errorf("unsupported field kind %s", f.Kind)
}

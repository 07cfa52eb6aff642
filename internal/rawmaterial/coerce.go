package rawmaterial

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Coerce converts loosely typed values, typically decoded from a JSON
// payload, into an Input and validates it.
func Coerce(productTypeID, materialTypeID, productQuantity, parameterOne, parameterTwo any) (Input, error) {
	var (
		in Input
		ok bool
	)

	if in.ProductTypeID, ok = AsInt(productTypeID); !ok {
		return Input{}, fmt.Errorf("%w: product_type_id is not an integer: %v", ErrInvalidInput, productTypeID)
	}
	if in.MaterialTypeID, ok = AsInt(materialTypeID); !ok {
		return Input{}, fmt.Errorf("%w: material_type_id is not an integer: %v", ErrInvalidInput, materialTypeID)
	}
	if in.ProductQuantity, ok = AsInt(productQuantity); !ok {
		return Input{}, fmt.Errorf("%w: product_quantity is not an integer: %v", ErrInvalidInput, productQuantity)
	}
	if in.ParameterOne, ok = AsFloat(parameterOne); !ok {
		return Input{}, fmt.Errorf("%w: parameter_one is not a number: %v", ErrInvalidInput, parameterOne)
	}
	if in.ParameterTwo, ok = AsFloat(parameterTwo); !ok {
		return Input{}, fmt.Errorf("%w: parameter_two is not a number: %v", ErrInvalidInput, parameterTwo)
	}

	if err := in.Validate(); err != nil {
		return Input{}, err
	}
	return in, nil
}

// FromPayload reads the five calculation fields from a decoded JSON object.
func FromPayload(payload map[string]any) (Input, error) {
	return Coerce(
		payload["product_type_id"],
		payload["material_type_id"],
		payload["product_quantity"],
		payload["parameter_one"],
		payload["parameter_two"],
	)
}

// AsInt converts v to an integer. Booleans are rejected even though they
// could be represented as 0 or 1. Numbers with a fractional part are
// truncated toward zero; strings must hold a decimal integer.
func AsInt(v any) (int64, bool) {
	switch x := v.(type) {
	case nil, bool:
		return 0, false
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint:
		return uintToInt(uint64(x))
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		return uintToInt(x)
	case float32:
		return truncate(float64(x))
	case float64:
		return truncate(x)
	case json.Number:
		if n, err := strconv.ParseInt(string(x), 10, 64); err == nil {
			return n, true
		}
		f, err := strconv.ParseFloat(string(x), 64)
		if err != nil {
			return 0, false
		}
		return truncate(f)
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// AsFloat converts v to a finite float64. Booleans are rejected.
func AsFloat(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case nil, bool:
		return 0, false
	case int:
		f = float64(x)
	case int8:
		f = float64(x)
	case int16:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case uint:
		f = float64(x)
	case uint8:
		f = float64(x)
	case uint16:
		f = float64(x)
	case uint32:
		f = float64(x)
	case uint64:
		f = float64(x)
	case float32:
		f = float64(x)
	case float64:
		f = x
	case json.Number:
		parsed, err := strconv.ParseFloat(string(x), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func truncate(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	t := math.Trunc(f)
	if t >= math.MaxInt64 || t < math.MinInt64 {
		return 0, false
	}
	return int64(t), true
}

func uintToInt(u uint64) (int64, bool) {
	if u > math.MaxInt64 {
		return 0, false
	}
	return int64(u), true
}

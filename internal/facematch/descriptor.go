package facematch

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// ErrAbsentDescriptor is returned by ParseDescriptor for a nil value.
var ErrAbsentDescriptor = errors.New("descriptor absent")

// Descriptor is a fixed-length face signature produced by the extraction model.
type Descriptor []float32

// Valid reports whether d has exactly dim finite components.
func (d Descriptor) Valid(dim int) bool {
	if len(d) == 0 || len(d) != dim {
		return false
	}
	for _, v := range d {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return false
		}
	}
	return true
}

// ParseDescriptor converts a loosely typed descriptor into a Descriptor of
// length dim. Accepted inputs are numeric slices and the index-keyed mapping
// {"0": v0, "1": v1, ...} that enrollment stores serialize descriptors as.
func ParseDescriptor(v any, dim int) (Descriptor, error) {
	var d Descriptor
	var err error

	switch x := v.(type) {
	case nil:
		return nil, ErrAbsentDescriptor
	case Descriptor:
		d = x
	case []float32:
		d = Descriptor(x)
	case []float64:
		d = make(Descriptor, len(x))
		for i, f := range x {
			d[i] = float32(f)
		}
	case []any:
		d = make(Descriptor, len(x))
		for i, elem := range x {
			f, ferr := toFloat(elem)
			if ferr != nil {
				return nil, fmt.Errorf("component %d: %w", i, ferr)
			}
			d[i] = float32(f)
		}
	case map[string]float64:
		m := make(map[string]any, len(x))
		for k, f := range x {
			m[k] = f
		}
		d, err = fromIndexMap(m)
	case map[string]any:
		d, err = fromIndexMap(x)
	default:
		return nil, fmt.Errorf("unsupported descriptor type %T", v)
	}
	if err != nil {
		return nil, err
	}

	if len(d) != dim {
		return nil, fmt.Errorf("descriptor has %d components, expected %d", len(d), dim)
	}
	if !d.Valid(dim) {
		return nil, errors.New("descriptor contains non-finite values")
	}
	return d, nil
}

// fromIndexMap orders values by their integer keys, which must be dense from 0.
func fromIndexMap(m map[string]any) (Descriptor, error) {
	d := make(Descriptor, len(m))
	seen := make([]bool, len(m))

	for k, v := range m {
		idx, err := strconv.Atoi(k)
		if err != nil || idx < 0 || idx >= len(m) {
			return nil, fmt.Errorf("invalid descriptor index %q", k)
		}
		if seen[idx] {
			return nil, fmt.Errorf("duplicate descriptor index %d", idx)
		}
		f, err := toFloat(v)
		if err != nil {
			return nil, fmt.Errorf("component %d: %w", idx, err)
		}
		d[idx] = float32(f)
		seen[idx] = true
	}
	return d, nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	case string:
		return strconv.ParseFloat(n, 64)
	default:
		return 0, fmt.Errorf("non-numeric value %T", v)
	}
}

// IndexMap renders d in the index-keyed form used by the legacy enrollment API.
func (d Descriptor) IndexMap() map[string]float32 {
	m := make(map[string]float32, len(d))
	for i, v := range d {
		m[strconv.Itoa(i)] = v
	}
	return m
}

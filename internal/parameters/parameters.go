// Package parameters handles generic configuration Params, a map[string]string that the
// user can set with strings like "kern_length=32,dropout=0.25,kernel2=2x32".
package parameters

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/janpfeifer/eegmodels/internal/generics"
	"github.com/pkg/errors"
)

// Params represent generic configuration parameters.
type Params map[string]string

// TupleSeparator separates the values of tuple parameters, as in "kernel2=2x32".
const TupleSeparator = "x"

// NewFromConfigString create params from user's configuration string.
// See GetParamOr and PopParamOr to parse values from this map.
//
// Empty entries are ignored, so "" returns an empty Params.
func NewFromConfigString(config string) Params {
	params := make(Params)
	for _, part := range strings.Split(config, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		subParts := strings.SplitN(part, "=", 2) // Split into up to 2 parts to handle '=' in values
		if len(subParts) == 1 {
			params[subParts[0]] = ""
		} else {
			params[subParts[0]] = subParts[1]
		}
	}
	return params
}

// Clone returns a copy of the params, so it can be consumed with PopParamOr without affecting the original.
func (p Params) Clone() Params {
	cloned := make(Params, len(p))
	for key, value := range p {
		cloned[key] = value
	}
	return cloned
}

// String returns the params sorted by key, in the same format accepted by NewFromConfigString.
func (p Params) String() string {
	parts := make([]string, 0, len(p))
	for key, value := range generics.SortedKeysAndValues(p) {
		if value == "" {
			parts = append(parts, key)
		} else {
			parts = append(parts, fmt.Sprintf("%s=%s", key, value))
		}
	}
	return strings.Join(parts, ",")
}

// CheckConsumed returns an error listing the keys left in params, which at this point are unknown.
func CheckConsumed(params Params) error {
	if len(params) == 0 {
		return nil
	}
	return errors.Errorf("unknown parameters: %s", strings.Join(generics.SortedSlice(params), ", "))
}

// PopParamOr is like GetParamOr, but it also deletes from the params map the retrieved parameter.
func PopParamOr[T interface {
	bool | int | float32 | float64 | string | []int
}](params Params, key string, defaultValue T) (T, error) {
	value, err := GetParamOr(params, key, defaultValue)
	if err != nil {
		return value, err
	}
	delete(params, key)
	return value, nil
}

// GetParamOr attempts to parse a parameter to the given type if the key is present, or returns the defaultValue
// if not.
//
// For bool types, a key without a value is interpreted as true. For the other non-string types a key
// without a value is an error.
// For []int types, values are separated by TupleSeparator ("2x32"), and the number of values must match
// the default.
func GetParamOr[T interface {
	bool | int | float32 | float64 | string | []int
}](params Params, key string, defaultValue T) (T, error) {
	vAny := (any)(defaultValue)
	var t T
	toT := func(v any) T { return v.(T) }
	switch vAny.(type) {
	case string:
		if value, exists := params[key]; exists {
			return toT(value), nil
		}
	case int:
		if value, exists := params[key]; exists {
			if value == "" {
				return t, errors.Errorf("configuration %q requires a value, as in %s=<value>", key, key)
			}
			parsedValue, err := strconv.Atoi(value)
			if err != nil {
				return t, errors.Wrapf(err, "failed to parse configuration %s=%q to int", key, value)
			}
			return toT(parsedValue), nil
		}
	case float32:
		if value, exists := params[key]; exists {
			if value == "" {
				return t, errors.Errorf("configuration %q requires a value, as in %s=<value>", key, key)
			}
			parsedValue, err := strconv.ParseFloat(value, 32)
			if err != nil {
				return t, errors.Wrapf(err, "failed to parse configuration %s=%q to float", key, value)
			}
			return toT(float32(parsedValue)), nil
		}
	case float64:
		if value, exists := params[key]; exists {
			if value == "" {
				return t, errors.Errorf("configuration %q requires a value, as in %s=<value>", key, key)
			}
			parsedValue, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return t, errors.Wrapf(err, "failed to parse configuration %s=%q to float", key, value)
			}
			return toT(parsedValue), nil
		}
	case bool:
		if value, exists := params[key]; exists {
			if value == "" || strings.ToLower(value) == "true" || value == "1" { // Empty value is considered "true"
				return toT(true), nil
			}
			if strings.ToLower(value) == "false" || value == "0" {
				return toT(false), nil
			}
			return defaultValue, errors.Errorf("failed to parse configuration %s=%q to bool", key, value)
		}
	case []int:
		if value, exists := params[key]; exists {
			if value == "" {
				return t, errors.Errorf("configuration %q requires a value, as in %s=<value>", key, key)
			}
			parsedValue, err := ParseTuple(value)
			if err != nil {
				return t, errors.WithMessagef(err, "failed to parse configuration %s=%q", key, value)
			}
			if len(parsedValue) != len(vAny.([]int)) {
				return t, errors.Errorf("configuration %s=%q must have %d values separated by %q",
					key, value, len(vAny.([]int)), TupleSeparator)
			}
			return toT(parsedValue), nil
		}
	}
	return defaultValue, nil
}

// ParseTuple parses values like "2x32" to []int{2, 32}.
func ParseTuple(value string) ([]int, error) {
	parts := strings.Split(value, TupleSeparator)
	tuple := make([]int, len(parts))
	for ii, part := range parts {
		var err error
		tuple[ii], err = strconv.Atoi(part)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid tuple %q", value)
		}
	}
	return tuple, nil
}

// FormatTuple is the inverse of ParseTuple.
func FormatTuple(tuple []int) string {
	return strings.Join(generics.SliceMap(tuple, strconv.Itoa), TupleSeparator)
}

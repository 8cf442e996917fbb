// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package hypergraph

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/tomtom215/ruvector/internal/validation"
)

// FeatureKind tags the variant held by a FeatureValue.
type FeatureKind uint8

const (
	FeatureString FeatureKind = iota + 1
	FeatureNumber
	FeatureBool
	FeatureStringList
)

func (k FeatureKind) String() string {
	switch k {
	case FeatureString:
		return "string"
	case FeatureNumber:
		return "number"
	case FeatureBool:
		return "bool"
	case FeatureStringList:
		return "string_list"
	default:
		return "invalid"
	}
}

// FeatureValue is a tagged union over the supported feature kinds.
// The zero value is invalid.
type FeatureValue struct {
	kind FeatureKind
	str  string
	num  float64
	b    bool
	list []string
}

// String builds a string feature.
func String(s string) FeatureValue { return FeatureValue{kind: FeatureString, str: s} }

// Number builds a numeric feature.
func Number(n float64) FeatureValue { return FeatureValue{kind: FeatureNumber, num: n} }

// Bool builds a boolean feature.
func Bool(b bool) FeatureValue { return FeatureValue{kind: FeatureBool, b: b} }

// StringList builds a string-list feature. The slice is copied.
func StringList(items ...string) FeatureValue {
	cp := make([]string, len(items))
	copy(cp, items)
	return FeatureValue{kind: FeatureStringList, list: cp}
}

// Kind returns the variant tag.
func (v FeatureValue) Kind() FeatureKind { return v.kind }

// Str returns the string value and whether the variant is FeatureString.
func (v FeatureValue) Str() (string, bool) { return v.str, v.kind == FeatureString }

// Num returns the numeric value and whether the variant is FeatureNumber.
func (v FeatureValue) Num() (float64, bool) { return v.num, v.kind == FeatureNumber }

// BoolValue returns the boolean value and whether the variant is FeatureBool.
func (v FeatureValue) BoolValue() (bool, bool) { return v.b, v.kind == FeatureBool }

// List returns a copy of the list value and whether the variant is FeatureStringList.
func (v FeatureValue) List() ([]string, bool) {
	if v.kind != FeatureStringList {
		return nil, false
	}
	cp := make([]string, len(v.list))
	copy(cp, v.list)
	return cp, true
}

// Strings returns the value as a list of strings: a string yields one
// element, a list yields its elements, anything else yields nil.
func (v FeatureValue) Strings() []string {
	switch v.kind {
	case FeatureString:
		if v.str == "" {
			return nil
		}
		return []string{v.str}
	case FeatureStringList:
		out, _ := v.List()
		return out
	default:
		return nil
	}
}

// Tokens renders the value as hashable "key=value" tokens for feature hashing.
func (v FeatureValue) Tokens(key string) []string {
	switch v.kind {
	case FeatureString:
		return []string{key + "=" + v.str}
	case FeatureNumber:
		return []string{key + "=" + strconv.FormatFloat(v.num, 'g', -1, 64)}
	case FeatureBool:
		return []string{key + "=" + strconv.FormatBool(v.b)}
	case FeatureStringList:
		out := make([]string, len(v.list))
		for i, item := range v.list {
			out[i] = key + "=" + item
		}
		return out
	default:
		return nil
	}
}

// MarshalJSON encodes the value as its natural JSON form.
func (v FeatureValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case FeatureString:
		return json.Marshal(v.str)
	case FeatureNumber:
		return json.Marshal(v.num)
	case FeatureBool:
		return json.Marshal(v.b)
	case FeatureStringList:
		if v.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.list)
	default:
		return nil, fmt.Errorf("%w: zero feature value", ErrInvalidFeatures)
	}
}

// UnmarshalJSON decodes a string, number, bool or list of strings.
func (v *FeatureValue) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFeatures, err)
	}
	parsed, err := parseValue(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Features is a validated map of feature name to value.
type Features map[string]FeatureValue

// Keys returns feature names in sorted order.
func (f Features) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a deep copy.
func (f Features) Clone() Features {
	if f == nil {
		return nil
	}
	out := make(Features, len(f))
	for k, v := range f {
		if v.kind == FeatureStringList {
			v = StringList(v.list...)
		}
		out[k] = v
	}
	return out
}

// Validate checks keys and variants.
func (f Features) Validate() error {
	for k, v := range f {
		if !validation.IsFeatureKey(k) {
			return fmt.Errorf("%w: bad key %q", ErrInvalidFeatures, k)
		}
		if v.kind < FeatureString || v.kind > FeatureStringList {
			return fmt.Errorf("%w: key %q has no value", ErrInvalidFeatures, k)
		}
		if v.kind == FeatureNumber && (math.IsNaN(v.num) || math.IsInf(v.num, 0)) {
			return fmt.Errorf("%w: key %q is not a finite number", ErrInvalidFeatures, k)
		}
	}
	return nil
}

// ParseFeatures converts a decoded JSON object into Features, rejecting
// nested objects, mixed lists and other unsupported shapes.
func ParseFeatures(raw map[string]interface{}) (Features, error) {
	out := make(Features, len(raw))
	for k, rv := range raw {
		v, err := parseValue(rv)
		if err != nil {
			return nil, fmt.Errorf("feature %q: %w", k, err)
		}
		out[k] = v
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

func parseValue(raw interface{}) (FeatureValue, error) {
	switch x := raw.(type) {
	case string:
		return String(x), nil
	case bool:
		return Bool(x), nil
	case float64:
		return Number(x), nil
	case float32:
		return Number(float64(x)), nil
	case int:
		return Number(float64(x)), nil
	case int64:
		return Number(float64(x)), nil
	case uint64:
		return Number(float64(x)), nil
	case json.Number:
		n, err := x.Float64()
		if err != nil {
			return FeatureValue{}, fmt.Errorf("%w: %v", ErrInvalidFeatures, err)
		}
		return Number(n), nil
	case []string:
		return StringList(x...), nil
	case []interface{}:
		items := make([]string, len(x))
		for i, item := range x {
			s, ok := item.(string)
			if !ok {
				return FeatureValue{}, fmt.Errorf("%w: list element %d is %T, want string", ErrInvalidFeatures, i, item)
			}
			items[i] = s
		}
		return StringList(items...), nil
	default:
		return FeatureValue{}, fmt.Errorf("%w: unsupported type %T", ErrInvalidFeatures, raw)
	}
}

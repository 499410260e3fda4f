// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	mnemoerr "github.com/mnemo-dev/mnemo/pkg/errors"
)

// Record is the atomic stored unit: one embedding vector with its source
// text and metadata. ID and CreatedAt are assigned by the store at insert
// and never change afterwards.
type Record struct {
	ID       string
	Vector   []float32
	Text     string // empty when inserted from a pre-computed vector
	Metadata Metadata
	// CreatedAt is store-assigned and monotonically non-decreasing in
	// arrival order. Seq disambiguates records created within the same
	// clock tick.
	CreatedAt time.Time
	Seq       int64
}

// QueryResult is one similarity match. Ephemeral, never persisted.
type QueryResult struct {
	RecordID  string
	Distance  float64
	Metadata  Metadata
	Document  string
	CreatedAt time.Time
	Seq       int64
}

// QueryOpts narrows a similarity query.
type QueryOpts struct {
	// Filter is an exact-match conjunction over metadata keys. Empty
	// matches every record.
	Filter Filter
	// Exclude lists record ids that must not appear in the results, even
	// on an exact vector match.
	Exclude []string
	// MinConfidence drops records whose numeric "confidence" metadata is
	// below the threshold. Records without the key count as 0.0. Zero
	// disables the gate.
	MinConfidence float64
	// MaxDistance drops results farther than the threshold. Zero disables
	// the cutoff.
	MaxDistance float64
}

// Filter is an exact-match conjunction over metadata keys.
type Filter map[string]Value

// Matches reports whether every filter key is present in md with an equal
// value.
func (f Filter) Matches(md Metadata) bool {
	for k, want := range f {
		got, ok := md[k]
		if !ok || !got.Equal(want) {
			return false
		}
	}
	return true
}

// Metadata is a schema-less bag of scalar values keyed by string.
type Metadata map[string]Value

// Clone returns a shallow copy (Values are immutable).
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	cp := make(Metadata, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

// Confidence returns the numeric "confidence" value, defaulting to 0.0 when
// the key is absent or non-numeric.
func (m Metadata) Confidence() float64 {
	if v, ok := m["confidence"]; ok {
		if n, ok := v.Number(); ok {
			return n
		}
	}
	return 0
}

// MetadataFromAny normalizes a loosely-typed map into Metadata. Nested maps,
// slices, and nil values are rejected: metadata values are scalars only.
func MetadataFromAny(raw map[string]any) (Metadata, error) {
	if len(raw) == 0 {
		return Metadata{}, nil
	}

	md := make(Metadata, len(raw))
	for k, v := range raw {
		val, err := valueFromAny(v)
		if err != nil {
			return nil, mnemoerr.Wrapf(err, mnemoerr.CodeInputInvalid, "metadata key %q", k)
		}
		md[k] = val
	}
	return md, nil
}

// ToAny converts Metadata back to a loosely-typed map, e.g. for JSON
// responses.
func (m Metadata) ToAny() map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v.Any()
	}
	return out
}

// ValueKind discriminates the closed set of metadata value types.
type ValueKind int

const (
	KindString ValueKind = iota
	KindNumber
	KindBool
)

// Value is a closed tagged variant: string, number, or boolean. The zero
// Value is the empty string.
type Value struct {
	kind ValueKind
	str  string
	num  float64
	b    bool
}

func StringValue(s string) Value  { return Value{kind: KindString, str: s} }
func NumberValue(n float64) Value { return Value{kind: KindNumber, num: n} }
func BoolValue(b bool) Value      { return Value{kind: KindBool, b: b} }

func (v Value) Kind() ValueKind { return v.kind }

func (v Value) String() (string, bool) {
	return v.str, v.kind == KindString
}

func (v Value) Number() (float64, bool) {
	return v.num, v.kind == KindNumber
}

func (v Value) Bool() (bool, bool) {
	return v.b, v.kind == KindBool
}

// Any returns the underlying scalar as an any.
func (v Value) Any() any {
	switch v.kind {
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	default:
		return v.str
	}
}

// Equal compares kind and value. Numbers compare exactly: filters are
// exact-match, not tolerant.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNumber:
		return v.num == o.num
	case KindBool:
		return v.b == o.b
	default:
		return v.str == o.str
	}
}

// MarshalJSON emits the bare scalar.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Any())
}

// UnmarshalJSON accepts a bare JSON scalar.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	val, err := valueFromAny(raw)
	if err != nil {
		return err
	}
	*v = val
	return nil
}

func valueFromAny(raw any) (Value, error) {
	switch t := raw.(type) {
	case string:
		return StringValue(t), nil
	case bool:
		return BoolValue(t), nil
	case float64:
		return NumberValue(t), nil
	case float32:
		return NumberValue(float64(t)), nil
	case int:
		return NumberValue(float64(t)), nil
	case int32:
		return NumberValue(float64(t)), nil
	case int64:
		return NumberValue(float64(t)), nil
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("non-numeric json number %q", t.String())
		}
		return NumberValue(n), nil
	case Value:
		return t, nil
	default:
		return Value{}, fmt.Errorf("unsupported metadata value type %T (scalars only)", raw)
	}
}

// DistanceTolerance is the floating-point tolerance within which two
// distances count as equal for ordering purposes.
const DistanceTolerance = 1e-9

// SortResults orders results by ascending distance; distances within
// DistanceTolerance tie-break by creation time, then arrival sequence, then
// id. Repeated identical queries therefore produce identical output.
func SortResults(results []QueryResult) {
	sort.SliceStable(results, func(i, j int) bool {
		di, dj := results[i].Distance, results[j].Distance
		if di < dj-DistanceTolerance {
			return true
		}
		if dj < di-DistanceTolerance {
			return false
		}
		if !results[i].CreatedAt.Equal(results[j].CreatedAt) {
			return results[i].CreatedAt.Before(results[j].CreatedAt)
		}
		if results[i].Seq != results[j].Seq {
			return results[i].Seq < results[j].Seq
		}
		return results[i].RecordID < results[j].RecordID
	})
}

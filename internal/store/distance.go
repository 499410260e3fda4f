// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

package store

import (
	"math"

	mnemoerr "github.com/mnemo-dev/mnemo/pkg/errors"
)

// CosineDistance returns 1 - cosine similarity of a and b, clamped to
// [0, 2]. Vectors must be the same length; a zero vector is treated as
// maximally distant from everything.
func CosineDistance(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 1
	}

	d := 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
	switch {
	case d < 0:
		return 0
	case d > 2:
		return 2
	default:
		return d
	}
}

// ValidateVector rejects empty vectors and vectors with NaN or infinite
// components before any I/O happens.
func ValidateVector(vec []float32) error {
	if len(vec) == 0 {
		return mnemoerr.New(mnemoerr.CodeInputInvalid, "vector must not be empty")
	}
	for i, c := range vec {
		f := float64(c)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return mnemoerr.Errorf(mnemoerr.CodeInputInvalid, "vector component %d is not finite", i)
		}
	}
	return nil
}

// CheckDimension compares a vector length against the collection's
// established dimension. established == 0 means the collection is empty and
// any length is acceptable.
func CheckDimension(established, got int) error {
	if established != 0 && got != established {
		return mnemoerr.New(mnemoerr.CodeStoreDimensionMismatch,
			"vector length mismatch",
			mnemoerr.Field("expected", established),
			mnemoerr.Field("got", got),
		)
	}
	return nil
}

// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package benchmetric

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
)

var errMissingValue = errors.New(`metric is missing "value"`)

// UnmarshalJSON decodes the canonical metric object. The "value"
// field is required and unknown fields are rejected.
func (m *Metric) UnmarshalJSON(data []byte) error {
	var raw struct {
		Value      *float64 `json:"value"`
		LowerBound *float64 `json:"lower_bound"`
		UpperBound *float64 `json:"upper_bound"`
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	if raw.Value == nil {
		return errMissingValue
	}
	*m = Metric{Value: *raw.Value, LowerBound: raw.LowerBound, UpperBound: raw.UpperBound}
	return nil
}

// Encode writes bm to w in canonical JSON form, indented for
// readability. Keys are sorted so the output is deterministic.
func Encode(w io.Writer, bm BenchmarkMetrics) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(bm)
}

/*
 * Copyright 2024 ScopeDB, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package cubesql

import (
	"reflect"

	"github.com/borodark/adbc-driver-cube/internal/columnar"
)

// StreamAdapter exposes the outer standard's pull interface — GetSchema,
// GetNext, Release — over one or more independent columnar-stream segments.
// It owns one columnar.Decoder per segment and walks them in arrival order,
// so a query answered by several QueryResponseBatch frames still looks like
// one continuous batch sequence to the caller.
//
// Not safe for concurrent use; the protocol allows one in-flight query.
type StreamAdapter struct {
	decoders []*columnar.Decoder
	schema   columnar.Schema
	idx      int
	released bool
}

func newStreamAdapter(segments [][]byte) (*StreamAdapter, error) {
	decoders := make([]*columnar.Decoder, len(segments))
	for i, seg := range segments {
		dec, err := columnar.NewDecoder(seg)
		if err != nil {
			return nil, asDriverError(err)
		}
		decoders[i] = dec
	}

	schema := decoders[0].Schema()
	for i, dec := range decoders[1:] {
		if !reflect.DeepEqual(dec.Schema(), schema) {
			return nil, newError(InvalidData, "segment %d schema does not match segment 0's schema", i+1)
		}
	}

	return &StreamAdapter{decoders: decoders, schema: schema}, nil
}

// GetSchema returns the logical schema shared by every segment. Returns
// InvalidState if the adapter has already been released.
func (a *StreamAdapter) GetSchema() (columnar.Schema, error) {
	if a.released {
		return columnar.Schema{}, newError(InvalidState, "stream adapter already released")
	}
	return a.schema, nil
}

// GetNext returns the next RecordBatch across all segments, advancing to the
// next segment's decoder when the current one is exhausted. Returns (nil,
// nil) at end-of-stream, and continues to do so on every subsequent call
// (the outer standard's release-callback-is-null convention).
func (a *StreamAdapter) GetNext() (*columnar.RecordBatch, error) {
	if a.released {
		return nil, newError(InvalidState, "stream adapter already released")
	}

	for a.idx < len(a.decoders) {
		batch, err := a.decoders[a.idx].NextBatch()
		if err != nil {
			return nil, asDriverError(err)
		}
		if batch != nil {
			return batch, nil
		}
		a.idx++
	}
	return nil, nil
}

// Release drops every underlying decoder and its buffer. Idempotent.
func (a *StreamAdapter) Release() {
	a.released = true
	a.decoders = nil
}

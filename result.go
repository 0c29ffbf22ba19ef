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
	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/borodark/adbc-driver-cube/cubearrow"
)

// ResultSet is the outcome of a successful Statement.Execute: the raw
// columnar-stream segments returned by the server, not yet decoded. Callers
// pull batches from it through a StreamAdapter (the outer standard's C-ABI
// pull convention) or, for convenience, materialize everything as Arrow
// records at once via ToArrowRecords.
type ResultSet struct {
	segments [][]byte
}

func newResultSet(segments [][]byte) (*ResultSet, error) {
	if len(segments) == 0 {
		return nil, newError(InvalidData, "result set has no columnar segments")
	}
	return &ResultSet{segments: segments}, nil
}

// NewStreamAdapter returns a StreamAdapter over this result set's segments,
// verifying that every segment's schema matches. The caller owns the
// returned adapter and must call Release when done with it.
func (r *ResultSet) NewStreamAdapter() (*StreamAdapter, error) {
	return newStreamAdapter(r.segments)
}

// ToArrowRecords decodes every batch in the result set and converts each to
// an arrow.Record using cubearrow. Callers must Release each returned
// record. This is a convenience path for callers who want the whole result
// set materialized rather than pulling batch by batch.
func (r *ResultSet) ToArrowRecords(mem memory.Allocator) ([]arrow.Record, error) {
	adapter, err := r.NewStreamAdapter()
	if err != nil {
		return nil, err
	}
	defer adapter.Release()

	schema, err := adapter.GetSchema()
	if err != nil {
		return nil, err
	}

	var records []arrow.Record
	for {
		batch, err := adapter.GetNext()
		if err != nil {
			for _, rec := range records {
				rec.Release()
			}
			return nil, err
		}
		if batch == nil {
			break
		}
		rec, err := cubearrow.ToArrowRecord(mem, schema, batch)
		if err != nil {
			for _, r := range records {
				r.Release()
			}
			return nil, newError(InvalidData, "%s", err.Error())
		}
		records = append(records, rec)
	}
	return records, nil
}

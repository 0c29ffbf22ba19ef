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

package cubearrow

import (
	"encoding/binary"
	"testing"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/stretchr/testify/require"

	"github.com/borodark/adbc-driver-cube/internal/columnar"
)

func TestToArrowRecordInt64Column(t *testing.T) {
	schema := columnar.Schema{Fields: []columnar.Field{
		{Name: "x", LogicalType: columnar.LogicalType{Kind: columnar.Int64}, Nullable: true},
	}}

	values := make([]byte, 16)
	binary.LittleEndian.PutUint64(values[0:], 1)
	binary.LittleEndian.PutUint64(values[8:], 2)

	batch := &columnar.RecordBatch{
		Length: 2,
		Columns: []columnar.Column{
			{Type: schema.Fields[0].LogicalType, Length: 2, Values: values},
		},
	}

	rec, err := ToArrowRecord(memory.DefaultAllocator, schema, batch)
	require.NoError(t, err)
	defer rec.Release()

	require.Equal(t, int64(2), rec.NumRows())
	require.Equal(t, int64(1), rec.NumCols())
	require.Equal(t, "x", rec.ColumnName(0))
}

func TestToArrowRecordStringColumn(t *testing.T) {
	schema := columnar.Schema{Fields: []columnar.Field{
		{Name: "s", LogicalType: columnar.LogicalType{Kind: columnar.Utf8}, Nullable: false},
	}}

	batch := &columnar.RecordBatch{
		Length: 3,
		Columns: []columnar.Column{
			{Type: schema.Fields[0].LogicalType, Length: 3, Offsets: []int32{0, 2, 2, 5}, Values: []byte("abcde")},
		},
	}

	rec, err := ToArrowRecord(memory.DefaultAllocator, schema, batch)
	require.NoError(t, err)
	defer rec.Release()

	require.Equal(t, int64(3), rec.NumRows())
}

func TestEncodeDecodeArrowIPCRoundTrip(t *testing.T) {
	schema := columnar.Schema{Fields: []columnar.Field{
		{Name: "x", LogicalType: columnar.LogicalType{Kind: columnar.Int32}, Nullable: true},
	}}
	values := make([]byte, 4)
	binary.LittleEndian.PutUint32(values, 42)
	batch := &columnar.RecordBatch{Length: 1, Columns: []columnar.Column{
		{Type: schema.Fields[0].LogicalType, Length: 1, Values: values},
	}}

	rec, err := ToArrowRecord(memory.DefaultAllocator, schema, batch)
	require.NoError(t, err)
	defer rec.Release()

	payload, err := EncodeArrowIPC(rec.Schema(), []arrow.Record{rec})
	require.NoError(t, err)

	decoded, err := DecodeArrowIPC(payload)
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	require.Equal(t, int64(1), decoded[0].NumRows())
	for _, r := range decoded {
		r.Release()
	}
}

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

// Package cubearrow bridges this driver's own columnar decoder
// (internal/columnar) to github.com/apache/arrow/go/v17: turning a decoded
// RecordBatch into a first-class arrow.Record, and wrapping arrow/ipc for
// callers who already speak Arrow IPC directly.
package cubearrow

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/borodark/adbc-driver-cube/internal/columnar"
)

// ToArrowSchema translates a decoded LogicalSchema into an arrow.Schema.
func ToArrowSchema(schema columnar.Schema) (*arrow.Schema, error) {
	fields := make([]arrow.Field, len(schema.Fields))
	for i, f := range schema.Fields {
		dt, err := toArrowType(f.LogicalType)
		if err != nil {
			return nil, fmt.Errorf("cubearrow: field %q: %w", f.Name, err)
		}
		fields[i] = arrow.Field{Name: f.Name, Type: dt, Nullable: f.Nullable}
	}
	return arrow.NewSchema(fields, nil), nil
}

func toArrowType(t columnar.LogicalType) (arrow.DataType, error) {
	switch t.Kind {
	case columnar.Bool:
		return arrow.FixedWidthTypes.Boolean, nil
	case columnar.Int8:
		return arrow.PrimitiveTypes.Int8, nil
	case columnar.Int16:
		return arrow.PrimitiveTypes.Int16, nil
	case columnar.Int32:
		return arrow.PrimitiveTypes.Int32, nil
	case columnar.Int64:
		return arrow.PrimitiveTypes.Int64, nil
	case columnar.UInt8:
		return arrow.PrimitiveTypes.Uint8, nil
	case columnar.UInt16:
		return arrow.PrimitiveTypes.Uint16, nil
	case columnar.UInt32:
		return arrow.PrimitiveTypes.Uint32, nil
	case columnar.UInt64:
		return arrow.PrimitiveTypes.Uint64, nil
	case columnar.Float32:
		return arrow.PrimitiveTypes.Float32, nil
	case columnar.Float64:
		return arrow.PrimitiveTypes.Float64, nil
	case columnar.Utf8:
		return arrow.BinaryTypes.String, nil
	case columnar.Binary:
		return arrow.BinaryTypes.Binary, nil
	case columnar.Date32:
		return arrow.FixedWidthTypes.Date32, nil
	case columnar.Time64:
		return &arrow.Time64Type{Unit: toArrowTimeUnit(t.Unit)}, nil
	case columnar.Timestamp:
		tz := ""
		if t.Timezone != nil {
			tz = *t.Timezone
		}
		return &arrow.TimestampType{Unit: toArrowTimeUnit(t.Unit), TimeZone: tz}, nil
	default:
		return nil, fmt.Errorf("unsupported logical type %s has no Arrow equivalent", t)
	}
}

func toArrowTimeUnit(u columnar.TimeUnit) arrow.TimeUnit {
	switch u {
	case columnar.Second:
		return arrow.Second
	case columnar.Milli:
		return arrow.Millisecond
	case columnar.Micro:
		return arrow.Microsecond
	default:
		return arrow.Nanosecond
	}
}

// ToArrowRecord builds an arrow.Record directly from a decoded batch's
// buffers, without a builder round trip: this driver's Column buffer layout
// (validity, [offsets], values) already matches Arrow's own buffer-list
// convention for a physical array, so each Column maps to one arrow.ArrayData.
func ToArrowRecord(mem memory.Allocator, schema columnar.Schema, batch *columnar.RecordBatch) (arrow.Record, error) {
	if len(batch.Columns) != len(schema.Fields) {
		return nil, fmt.Errorf("cubearrow: batch has %d columns, schema has %d fields", len(batch.Columns), len(schema.Fields))
	}

	arrowSchema, err := ToArrowSchema(schema)
	if err != nil {
		return nil, err
	}

	cols := make([]arrow.Array, len(batch.Columns))
	for i, col := range batch.Columns {
		arr, err := toArrowArray(mem, arrowSchema.Field(i).Type, col)
		if err != nil {
			return nil, fmt.Errorf("cubearrow: field %q: %w", schema.Fields[i].Name, err)
		}
		cols[i] = arr
		defer arr.Release()
	}

	return array.NewRecord(arrowSchema, cols, batch.Length), nil
}

func toArrowArray(mem memory.Allocator, dt arrow.DataType, col columnar.Column) (arrow.Array, error) {
	nullN := col.Validity.NullCount(col.Length)

	var validityBuf *memory.Buffer
	if col.Validity != nil {
		validityBuf = memory.NewBufferBytes(col.Validity)
	}

	switch col.Type.Kind {
	case columnar.Utf8, columnar.Binary:
		offsetBytes := int32SliceToBytes(col.Offsets)
		data := array.NewData(dt, col.Length,
			[]*memory.Buffer{validityBuf, memory.NewBufferBytes(offsetBytes), memory.NewBufferBytes(col.Values)},
			nil, nullN, 0)
		defer data.Release()
		return array.MakeFromData(data), nil
	default:
		data := array.NewData(dt, col.Length,
			[]*memory.Buffer{validityBuf, memory.NewBufferBytes(col.Values)},
			nil, nullN, 0)
		defer data.Release()
		return array.MakeFromData(data), nil
	}
}

func int32SliceToBytes(offsets []int32) []byte {
	buf := make([]byte, len(offsets)*4)
	for i, v := range offsets {
		byteOrderPutInt32(buf[i*4:], v)
	}
	return buf
}

func byteOrderPutInt32(b []byte, v int32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

// EncodeArrowIPC serializes batches as a standard Arrow IPC stream, the way
// callers integrating with the wider Arrow ecosystem expect. This driver's
// raw binary frames carry no base64 layer, unlike an HTTP/JSON transport.
func EncodeArrowIPC(schema *arrow.Schema, batches []arrow.Record) (payload []byte, err error) {
	if len(batches) == 0 {
		return nil, errors.New("cubearrow: cannot encode empty batches")
	}

	var buf bytes.Buffer
	writer := ipc.NewWriter(&buf, ipc.WithSchema(schema))
	defer func() {
		err = errors.Join(err, writer.Close())
	}()

	for _, batch := range batches {
		if err := writer.Write(batch); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// DecodeArrowIPC reads a standard Arrow IPC stream back into record batches.
func DecodeArrowIPC(data []byte) ([]arrow.Record, error) {
	reader, err := ipc.NewReader(bytes.NewReader(data), ipc.WithDelayReadSchema(true))
	if err != nil {
		return nil, err
	}
	defer reader.Release()

	batches := make([]arrow.Record, 0)
	for reader.Next() {
		batch := reader.Record()
		batch.Retain()
		batches = append(batches, batch)
	}
	return batches, nil
}

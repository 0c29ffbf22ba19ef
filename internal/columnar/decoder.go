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

package columnar

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf8"

	flatbuffers "github.com/google/flatbuffers/go"

	"github.com/borodark/adbc-driver-cube/internal/columnar/flatgen"
)

// errInvalidData is the sentinel every structural-decode failure wraps; the
// session package maps it to its InvalidData error kind.
var errInvalidData = errors.New("invalid columnar data")

// IsInvalidData reports whether err originated from a structural violation
// in the columnar stream (wrong message kind, truncated body, out-of-range
// descriptor, non-monotone offsets, and so on).
func IsInvalidData(err error) bool {
	return errors.Is(err, errInvalidData)
}

const continuationMarker uint32 = 0xFFFFFFFF

// Decoder walks one columnar-interchange byte buffer: a Schema message
// followed by zero or more RecordBatch messages, little-endian framed. It is
// single-use and stateful — NextBatch advances an internal cursor and once
// end-of-stream is observed every subsequent call returns (nil, nil).
type Decoder struct {
	buf    []byte
	pos    int
	schema Schema
	done   bool
}

// NewDecoder reads the buffer's leading Schema message and returns a decoder
// positioned at the first RecordBatch (if any). It fails with an error
// wrapping errInvalidData if the buffer is empty, truncated, or its first
// message is not a Schema.
func NewDecoder(buf []byte) (*Decoder, error) {
	d := &Decoder{buf: buf}

	msg, newPos, end, err := d.readMessage(0)
	if err != nil {
		return nil, err
	}
	if end {
		return nil, fmt.Errorf("columnar: empty stream has no schema message: %w", errInvalidData)
	}
	if msg.HeaderType() != flatgen.HeaderSchema {
		return nil, fmt.Errorf("columnar: first message is not a Schema: %w", errInvalidData)
	}

	fbSchema := msg.Schema()
	if fbSchema == nil {
		return nil, fmt.Errorf("columnar: Schema header table missing: %w", errInvalidData)
	}

	n := fbSchema.FieldsLength()
	fields := make([]Field, n)
	for i := 0; i < n; i++ {
		fbField := fbSchema.Fields(i)
		if fbField == nil {
			return nil, fmt.Errorf("columnar: schema field %d missing: %w", i, errInvalidData)
		}
		fields[i] = Field{
			Name:        fbField.Name(),
			LogicalType: mapLogicalType(fbField),
			Nullable:    fbField.Nullable(),
		}
	}

	d.schema = Schema{Fields: fields}
	d.pos = newPos
	return d, nil
}

// Schema returns the immutable logical schema parsed at construction time.
func (d *Decoder) Schema() Schema { return d.schema }

// NextBatch decodes and returns the next RecordBatch, or (nil, nil) at
// end-of-stream. Once end-of-stream is observed, every subsequent call
// returns (nil, nil) again — it never re-reads past the terminal marker.
func (d *Decoder) NextBatch() (*RecordBatch, error) {
	if d.done {
		return nil, nil
	}

	msg, bodyStart, end, err := d.readMessage(d.pos)
	if err != nil {
		d.done = true
		return nil, err
	}
	if end {
		d.done = true
		return nil, nil
	}
	if msg.HeaderType() != flatgen.HeaderRecordBatch {
		d.done = true
		return nil, fmt.Errorf("columnar: expected RecordBatch message, got header type %d: %w", msg.HeaderType(), errInvalidData)
	}

	fbBatch := msg.RecordBatch()
	if fbBatch == nil {
		d.done = true
		return nil, fmt.Errorf("columnar: RecordBatch header table missing: %w", errInvalidData)
	}

	length := fbBatch.Length()
	if length < 0 {
		d.done = true
		return nil, fmt.Errorf("columnar: negative row count %d: %w", length, errInvalidData)
	}

	nDescs := fbBatch.BuffersLength()
	descs := make([]bufferDesc, nDescs)
	for i := 0; i < nDescs; i++ {
		off, ln, ok := fbBatch.Buffers(i)
		if !ok {
			d.done = true
			return nil, fmt.Errorf("columnar: buffer descriptor %d missing: %w", i, errInvalidData)
		}
		descs[i] = bufferDesc{offset: off, length: ln}
	}

	wantDescs := 0
	for _, f := range d.schema.Fields {
		wantDescs += bufferCount(f.LogicalType.Kind)
	}
	if wantDescs != nDescs {
		d.done = true
		return nil, fmt.Errorf("columnar: schema declares %d buffers but metadata has %d: %w", wantDescs, nDescs, errInvalidData)
	}

	var bodyLen int64
	for _, desc := range descs {
		if end := desc.offset + desc.length; end > bodyLen {
			bodyLen = end
		}
	}
	if bodyStart+int(bodyLen) > len(d.buf) {
		d.done = true
		return nil, fmt.Errorf("columnar: body truncated: need %d bytes at offset %d, have %d: %w",
			bodyLen, bodyStart, len(d.buf)-bodyStart, errInvalidData)
	}
	body := d.buf[bodyStart : bodyStart+int(bodyLen)]

	columns := make([]Column, len(d.schema.Fields))
	di := 0
	for i, f := range d.schema.Fields {
		n := bufferCount(f.LogicalType.Kind)
		fieldDescs := descs[di : di+n]
		di += n

		col, err := materializeColumn(f.LogicalType, int(length), fieldDescs, body)
		if err != nil {
			d.done = true
			return nil, fmt.Errorf("columnar: field %q: %w", f.Name, err)
		}
		columns[i] = col
	}

	newPos := bodyStart + int(bodyLen)
	d.pos = alignUp8(newPos)
	if d.pos > len(d.buf) {
		d.pos = len(d.buf)
	}

	return &RecordBatch{Length: length, Columns: columns}, nil
}

type bufferDesc struct {
	offset int64
	length int64
}

// slice returns body[offset:offset+length], or an error wrapping
// errInvalidData if the descriptor runs past body's bounds.
func (bd bufferDesc) slice(body []byte) ([]byte, error) {
	if bd.length == 0 {
		return nil, nil
	}
	if bd.offset < 0 || bd.offset+bd.length > int64(len(body)) {
		return nil, fmt.Errorf("buffer descriptor {offset=%d, length=%d} out of range for body of %d bytes: %w",
			bd.offset, bd.length, len(body), errInvalidData)
	}
	return body[bd.offset : bd.offset+bd.length], nil
}

func materializeColumn(t LogicalType, length int, descs []bufferDesc, body []byte) (Column, error) {
	validity, err := descs[0].slice(body)
	if err != nil {
		return Column{}, err
	}

	switch t.Kind {
	case Unsupported:
		return Column{}, fmt.Errorf("column of unsupported type %s cannot be decoded: %w", t, errInvalidData)
	case Utf8, Binary:
		offsetBytes, err := descs[1].slice(body)
		if err != nil {
			return Column{}, err
		}
		values, err := descs[2].slice(body)
		if err != nil {
			return Column{}, err
		}
		offsets, err := decodeOffsets(offsetBytes, length, int64(len(values)))
		if err != nil {
			return Column{}, err
		}
		if t.Kind == Utf8 {
			if err := checkUTF8Values(offsets, values); err != nil {
				return Column{}, err
			}
		}
		return Column{Type: t, Length: length, Validity: Bitmap(validity), Offsets: offsets, Values: values}, nil

	default:
		values, err := descs[1].slice(body)
		if err != nil {
			return Column{}, err
		}
		if err := checkFixedWidthLength(t, length, len(values)); err != nil {
			return Column{}, err
		}
		return Column{Type: t, Length: length, Validity: Bitmap(validity), Values: values}, nil
	}
}

func decodeOffsets(raw []byte, length int, valuesLen int64) ([]int32, error) {
	want := (length + 1) * 4
	if len(raw) != want {
		return nil, fmt.Errorf("offsets buffer is %d bytes, want %d for length %d: %w", len(raw), want, length, errInvalidData)
	}
	offsets := make([]int32, length+1)
	for i := range offsets {
		offsets[i] = int32(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	if offsets[0] != 0 {
		return nil, fmt.Errorf("offsets[0] = %d, want 0: %w", offsets[0], errInvalidData)
	}
	for i := 0; i < length; i++ {
		if offsets[i] > offsets[i+1] {
			return nil, fmt.Errorf("offsets not monotone at %d: %d > %d: %w", i, offsets[i], offsets[i+1], errInvalidData)
		}
	}
	if int64(offsets[length]) > valuesLen {
		return nil, fmt.Errorf("offsets[%d] = %d exceeds values length %d: %w", length, offsets[length], valuesLen, errInvalidData)
	}
	return offsets, nil
}

// checkUTF8Values validates every string slice offsets carves out of values,
// not utf8.Valid(values) as a whole: a maliciously placed offset can split a
// valid multi-byte sequence so each half looks invalid on its own even
// though the concatenated buffer would pass.
func checkUTF8Values(offsets []int32, values []byte) error {
	for i := 0; i < len(offsets)-1; i++ {
		s := values[offsets[i]:offsets[i+1]]
		if !utf8.Valid(s) {
			return fmt.Errorf("utf8 column value at row %d is not valid UTF-8: %w", i, errInvalidData)
		}
	}
	return nil
}

func checkFixedWidthLength(t LogicalType, length int, valuesBytes int) error {
	if t.Kind == Bool {
		want := (length + 7) / 8
		if valuesBytes != want && valuesBytes != 0 {
			return fmt.Errorf("bool values buffer is %d bytes, want %d for length %d: %w", valuesBytes, want, length, errInvalidData)
		}
		return nil
	}
	size := elemSize(t.Kind)
	want := length * size
	if valuesBytes != want && valuesBytes != 0 {
		return fmt.Errorf("values buffer is %d bytes, want %d for length %d elements of %d bytes: %w", valuesBytes, want, length, size, errInvalidData)
	}
	return nil
}

func elemSize(k TypeKind) int {
	switch k {
	case Int8, UInt8:
		return 1
	case Int16, UInt16:
		return 2
	case Int32, UInt32, Float32, Date32:
		return 4
	case Int64, UInt64, Float64, Time64, Timestamp:
		return 8
	default:
		return 0
	}
}

// readMessage reads the framing header at pos (continuation marker + LE
// metadata length), parses the flatbuffers metadata object, and returns the
// aligned position immediately after it. end is true at the explicit
// end-of-stream marker (metadata_length == 0) or when pos already sits at
// end-of-buffer.
func (d *Decoder) readMessage(pos int) (msg *flatgen.Message, newPos int, end bool, err error) {
	if pos == len(d.buf) {
		return nil, pos, true, nil
	}
	if pos+8 > len(d.buf) {
		return nil, pos, false, fmt.Errorf("columnar: truncated framing header at offset %d: %w", pos, errInvalidData)
	}

	continuation := binary.LittleEndian.Uint32(d.buf[pos:])
	if continuation != continuationMarker {
		return nil, pos, false, fmt.Errorf("columnar: expected continuation marker 0xFFFFFFFF at offset %d, got 0x%08X: %w",
			pos, continuation, errInvalidData)
	}

	metadataLength := binary.LittleEndian.Uint32(d.buf[pos+4:])
	pos += 8
	if metadataLength == 0 {
		return nil, pos, true, nil
	}

	if pos+int(metadataLength) > len(d.buf) {
		return nil, pos, false, fmt.Errorf("columnar: metadata length %d at offset %d exceeds buffer: %w", metadataLength, pos, errInvalidData)
	}
	metadataBytes := d.buf[pos : pos+int(metadataLength)]
	pos += int(metadataLength)
	pos = alignUp8(pos)

	m := flatgen.GetRootAsMessage(metadataBytes, flatbuffers.UOffsetT(0))
	return m, pos, false, nil
}

func alignUp8(pos int) int {
	if r := pos % 8; r != 0 {
		return pos + (8 - r)
	}
	return pos
}

// mapLogicalType translates a flatbuffers Field's TypeID/bit-width/unit
// discriminator into the driver's own LogicalType.
func mapLogicalType(f *flatgen.Field) LogicalType {
	switch f.TypeID() {
	case flatgen.TypeBool:
		return LogicalType{Kind: Bool}
	case flatgen.TypeInt:
		return LogicalType{Kind: intKind(f.BitWidth(), f.IsSigned())}
	case flatgen.TypeFloatingPoint:
		if f.BitWidth() <= 32 {
			return LogicalType{Kind: Float32}
		}
		return LogicalType{Kind: Float64}
	case flatgen.TypeUtf8:
		return LogicalType{Kind: Utf8}
	case flatgen.TypeBinary:
		return LogicalType{Kind: Binary}
	case flatgen.TypeDate:
		// The closed LogicalType enum only names Date32; a millisecond-unit
		// Date is mapped to Date32 too, so its values are checked against a
		// 4-byte element width and a column of 8-byte Date64 values fails
		// with InvalidData.
		return LogicalType{Kind: Date32}
	case flatgen.TypeTime:
		return LogicalType{Kind: Time64, Unit: TimeUnit(f.Unit())}
	case flatgen.TypeTimestamp:
		tz, ok := f.Timezone()
		lt := LogicalType{Kind: Timestamp, Unit: TimeUnit(f.Unit())}
		if ok {
			lt.Timezone = &tz
		}
		return lt
	default:
		return LogicalType{Kind: Unsupported, RawTag: byte(f.TypeID())}
	}
}

func intKind(bitWidth int32, signed bool) TypeKind {
	switch bitWidth {
	case 8:
		if signed {
			return Int8
		}
		return UInt8
	case 16:
		if signed {
			return Int16
		}
		return UInt16
	case 32:
		if signed {
			return Int32
		}
		return UInt32
	case 64:
		if signed {
			return Int64
		}
		return UInt64
	default:
		// Unspecified bit-width collapses to 64-bit, matching the source's
		// behavior for the common case of "just an integer".
		if signed {
			return Int64
		}
		return UInt64
	}
}

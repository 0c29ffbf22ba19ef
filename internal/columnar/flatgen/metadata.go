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

// Package flatgen holds the flatbuffers table definitions for the columnar
// interchange metadata objects: the Message envelope, its Schema and
// RecordBatch headers, Field descriptors, and Buffer descriptors. These are
// written by hand in the same shape the flatbuffers `flatc` compiler would
// generate (Init/Table accessor methods, vtable slot numbers) rather than
// checked in as generated output, because the wire schema here is this
// driver's own, not upstream Arrow's.
package flatgen

import (
	flatbuffers "github.com/google/flatbuffers/go"
)

// HeaderType selects which table a Message's Header union offset points to.
type HeaderType byte

const (
	HeaderNONE        HeaderType = 0
	HeaderSchema      HeaderType = 1
	HeaderRecordBatch HeaderType = 2
)

// TypeID is the Field.TypeId discriminator for the logical type carried by a
// field, independent of bit-width/unit which live in their own slots.
type TypeID byte

const (
	TypeUnsupported  TypeID = 0
	TypeBool         TypeID = 1
	TypeInt          TypeID = 2
	TypeFloatingPoint TypeID = 3
	TypeUtf8         TypeID = 4
	TypeBinary       TypeID = 5
	TypeDate         TypeID = 6
	TypeTime         TypeID = 7
	TypeTimestamp    TypeID = 8
)

// TimeUnit is the Second/Milli/Micro/Nano resolution enum, encoded as a byte.
type TimeUnit byte

const (
	UnitSecond TimeUnit = 0
	UnitMilli  TimeUnit = 1
	UnitMicro  TimeUnit = 2
	UnitNano   TimeUnit = 3
)

// DateUnit distinguishes Date32 (day) from Date64 (millisecond).
type DateUnit byte

const (
	DateUnitDay   DateUnit = 0
	DateUnitMilli DateUnit = 1
)

// Message is the top-level flatbuffers table framed by the columnar stream's
// continuation marker + metadata_length header.
type Message struct {
	tab flatbuffers.Table
}

// GetRootAsMessage returns a Message view over buf, rooted at the offset the
// flatbuffers root pointer stores at buf[offset:].
func GetRootAsMessage(buf []byte, offset flatbuffers.UOffsetT) *Message {
	n := flatbuffers.GetUOffsetT(buf[offset:])
	m := &Message{}
	m.Init(buf, n+offset)
	return m
}

func (m *Message) Init(buf []byte, i flatbuffers.UOffsetT) {
	m.tab.Bytes = buf
	m.tab.Pos = i
}

func (m *Message) Table() flatbuffers.Table { return m.tab }

// slot indices for Message: {version, headerType, header, bodyLength}
const (
	messageSlotVersion    = 0
	messageSlotHeaderType = 1
	messageSlotHeader     = 2
	messageSlotBodyLength = 3
)

func (m *Message) Version() uint16 {
	o := flatbuffers.UOffsetT(m.tab.Offset(4 + messageSlotVersion*2))
	if o == 0 {
		return 0
	}
	return m.tab.GetUint16(o + m.tab.Pos)
}

func (m *Message) HeaderType() HeaderType {
	o := flatbuffers.UOffsetT(m.tab.Offset(4 + messageSlotHeaderType*2))
	if o == 0 {
		return HeaderNONE
	}
	return HeaderType(m.tab.GetByte(o + m.tab.Pos))
}

// headerOffset returns the absolute offset of the header table, or 0 (and
// false) if the slot is absent. This is the structural verifier's first
// check: a Message with no header table is malformed.
func (m *Message) headerOffset() (flatbuffers.UOffsetT, bool) {
	o := flatbuffers.UOffsetT(m.tab.Offset(4 + messageSlotHeader*2))
	if o == 0 {
		return 0, false
	}
	off := o + m.tab.Pos
	off = m.tab.Indirect(off)
	return off, true
}

// Schema returns the Schema header, or nil if HeaderType() != HeaderSchema
// or the header slot is missing/malformed.
func (m *Message) Schema() *Schema {
	if m.HeaderType() != HeaderSchema {
		return nil
	}
	off, ok := m.headerOffset()
	if !ok {
		return nil
	}
	s := &Schema{}
	s.Init(m.tab.Bytes, off)
	return s
}

// RecordBatch returns the RecordBatch header, or nil if HeaderType() !=
// HeaderRecordBatch or the header slot is missing/malformed.
func (m *Message) RecordBatch() *RecordBatch {
	if m.HeaderType() != HeaderRecordBatch {
		return nil
	}
	off, ok := m.headerOffset()
	if !ok {
		return nil
	}
	rb := &RecordBatch{}
	rb.Init(m.tab.Bytes, off)
	return rb
}

func (m *Message) BodyLength() int64 {
	o := flatbuffers.UOffsetT(m.tab.Offset(4 + messageSlotBodyLength*2))
	if o == 0 {
		return 0
	}
	return m.tab.GetInt64(o + m.tab.Pos)
}

// Schema is the flatbuffers table for a columnar stream's schema message: an
// ordered list of Field descriptors.
type Schema struct {
	tab flatbuffers.Table
}

func (s *Schema) Init(buf []byte, i flatbuffers.UOffsetT) {
	s.tab.Bytes = buf
	s.tab.Pos = i
}

const schemaSlotFields = 0

func (s *Schema) FieldsLength() int {
	o := flatbuffers.UOffsetT(s.tab.Offset(4 + schemaSlotFields*2))
	if o == 0 {
		return 0
	}
	return s.tab.VectorLen(o)
}

// Fields returns the j-th field, or nil if the vector slot is absent or j is
// out of range.
func (s *Schema) Fields(j int) *Field {
	o := flatbuffers.UOffsetT(s.tab.Offset(4 + schemaSlotFields*2))
	if o == 0 {
		return nil
	}
	if j < 0 || j >= s.tab.VectorLen(o) {
		return nil
	}
	x := s.tab.Vector(o)
	x += flatbuffers.UOffsetT(j) * 4
	x = s.tab.Indirect(x)
	f := &Field{}
	f.Init(s.tab.Bytes, x)
	return f
}

// Field is the flatbuffers table describing one schema field.
type Field struct {
	tab flatbuffers.Table
}

func (f *Field) Init(buf []byte, i flatbuffers.UOffsetT) {
	f.tab.Bytes = buf
	f.tab.Pos = i
}

const (
	fieldSlotName     = 0
	fieldSlotNullable = 1
	fieldSlotTypeID   = 2
	fieldSlotBitWidth = 3
	fieldSlotIsSigned = 4
	fieldSlotUnit     = 5
	fieldSlotTimezone = 6
)

func (f *Field) Name() string {
	o := flatbuffers.UOffsetT(f.tab.Offset(4 + fieldSlotName*2))
	if o == 0 {
		return ""
	}
	return string(f.tab.ByteVector(o + f.tab.Pos))
}

func (f *Field) Nullable() bool {
	o := flatbuffers.UOffsetT(f.tab.Offset(4 + fieldSlotNullable*2))
	if o == 0 {
		return false
	}
	return f.tab.GetBool(o + f.tab.Pos)
}

func (f *Field) TypeID() TypeID {
	o := flatbuffers.UOffsetT(f.tab.Offset(4 + fieldSlotTypeID*2))
	if o == 0 {
		return TypeUnsupported
	}
	return TypeID(f.tab.GetByte(o + f.tab.Pos))
}

func (f *Field) BitWidth() int32 {
	o := flatbuffers.UOffsetT(f.tab.Offset(4 + fieldSlotBitWidth*2))
	if o == 0 {
		return 0
	}
	return f.tab.GetInt32(o + f.tab.Pos)
}

func (f *Field) IsSigned() bool {
	o := flatbuffers.UOffsetT(f.tab.Offset(4 + fieldSlotIsSigned*2))
	if o == 0 {
		return true
	}
	return f.tab.GetBool(o + f.tab.Pos)
}

func (f *Field) Unit() byte {
	o := flatbuffers.UOffsetT(f.tab.Offset(4 + fieldSlotUnit*2))
	if o == 0 {
		return 0
	}
	return f.tab.GetByte(o + f.tab.Pos)
}

func (f *Field) Timezone() (string, bool) {
	o := flatbuffers.UOffsetT(f.tab.Offset(4 + fieldSlotTimezone*2))
	if o == 0 {
		return "", false
	}
	return string(f.tab.ByteVector(o + f.tab.Pos)), true
}

// RecordBatch is the flatbuffers table describing one record batch's row
// count and its ordered buffer descriptors.
type RecordBatch struct {
	tab flatbuffers.Table
}

func (rb *RecordBatch) Init(buf []byte, i flatbuffers.UOffsetT) {
	rb.tab.Bytes = buf
	rb.tab.Pos = i
}

const (
	recordBatchSlotLength  = 0
	recordBatchSlotBuffers = 1
)

func (rb *RecordBatch) Length() int64 {
	o := flatbuffers.UOffsetT(rb.tab.Offset(4 + recordBatchSlotLength*2))
	if o == 0 {
		return 0
	}
	return rb.tab.GetInt64(o + rb.tab.Pos)
}

func (rb *RecordBatch) BuffersLength() int {
	o := flatbuffers.UOffsetT(rb.tab.Offset(4 + recordBatchSlotBuffers*2))
	if o == 0 {
		return 0
	}
	return rb.tab.VectorLen(o) // element count; each Buffer struct is 16 bytes: {offset int64, length int64}
}

// Buffers returns the j-th buffer descriptor, or (0,0,false) if absent/out of range.
func (rb *RecordBatch) Buffers(j int) (offset int64, length int64, ok bool) {
	o := flatbuffers.UOffsetT(rb.tab.Offset(4 + recordBatchSlotBuffers*2))
	if o == 0 {
		return 0, 0, false
	}
	n := rb.tab.VectorLen(o)
	if j < 0 || j >= n {
		return 0, 0, false
	}
	base := rb.tab.Vector(o) + flatbuffers.UOffsetT(j*16)
	offset = rb.tab.GetInt64(base)
	length = rb.tab.GetInt64(base + 8)
	return offset, length, true
}

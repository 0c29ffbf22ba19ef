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

package flatgen

import (
	flatbuffers "github.com/google/flatbuffers/go"
)

// FieldSpec is the plain-Go input to BuildSchemaMessage; it exists so callers
// (the decoder's tests, and eventually a server-side encoder) never touch the
// Builder directly.
type FieldSpec struct {
	Name     string
	Nullable bool
	TypeID   TypeID
	BitWidth int32
	IsSigned bool
	Unit     byte
	Timezone *string
}

// BufferSpec is one {offset,length} descriptor for a record batch body.
type BufferSpec struct {
	Offset int64
	Length int64
}

// BuildSchemaMessage encodes a Schema message (Message{HeaderType: Schema}) as
// a standalone flatbuffers buffer, matching what appears after the metadata
// length header in a columnar Schema payload.
func BuildSchemaMessage(fields []FieldSpec) []byte {
	b := flatbuffers.NewBuilder(256)

	fieldOffsets := make([]flatbuffers.UOffsetT, len(fields))
	for i, f := range fields {
		nameOff := b.CreateString(f.Name)
		var tzOff flatbuffers.UOffsetT
		if f.Timezone != nil {
			tzOff = b.CreateString(*f.Timezone)
		}

		b.StartObject(7)
		b.PrependUOffsetTSlot(fieldSlotName, nameOff, 0)
		b.PrependBoolSlot(fieldSlotNullable, f.Nullable, false)
		b.PrependByteSlot(fieldSlotTypeID, byte(f.TypeID), 0)
		b.PrependInt32Slot(fieldSlotBitWidth, f.BitWidth, 0)
		b.PrependBoolSlot(fieldSlotIsSigned, f.IsSigned, true)
		b.PrependByteSlot(fieldSlotUnit, f.Unit, 0)
		if tzOff != 0 {
			b.PrependUOffsetTSlot(fieldSlotTimezone, tzOff, 0)
		}
		fieldOffsets[i] = b.EndObject()
	}

	b.StartVector(4, len(fieldOffsets), 4)
	for i := len(fieldOffsets) - 1; i >= 0; i-- {
		b.PrependUOffsetT(fieldOffsets[i])
	}
	fieldsVec := b.EndVector(len(fieldOffsets))

	b.StartObject(1)
	b.PrependUOffsetTSlot(schemaSlotFields, fieldsVec, 0)
	schemaOff := b.EndObject()

	b.StartObject(4)
	b.PrependUint16Slot(messageSlotVersion, 1, 0)
	b.PrependByteSlot(messageSlotHeaderType, byte(HeaderSchema), byte(HeaderNONE))
	b.PrependUOffsetTSlot(messageSlotHeader, schemaOff, 0)
	b.PrependInt64Slot(messageSlotBodyLength, 0, 0)
	msgOff := b.EndObject()

	b.Finish(msgOff)
	return b.FinishedBytes()
}

// BuildRecordBatchMessage encodes a RecordBatch message: row count plus the
// ordered buffer descriptors pointing into the body that follows this
// metadata blob in the columnar stream.
func BuildRecordBatchMessage(length int64, buffers []BufferSpec, bodyLength int64) []byte {
	b := flatbuffers.NewBuilder(256)

	b.StartVector(16, len(buffers), 8)
	for i := len(buffers) - 1; i >= 0; i-- {
		b.Prep(8, 8)
		b.PrependInt64(buffers[i].Length)
		b.PrependInt64(buffers[i].Offset)
	}
	buffersVec := b.EndVector(len(buffers))

	b.StartObject(2)
	b.PrependInt64Slot(recordBatchSlotLength, length, 0)
	b.PrependUOffsetTSlot(recordBatchSlotBuffers, buffersVec, 0)
	rbOff := b.EndObject()

	b.StartObject(4)
	b.PrependUint16Slot(messageSlotVersion, 1, 0)
	b.PrependByteSlot(messageSlotHeaderType, byte(HeaderRecordBatch), byte(HeaderNONE))
	b.PrependUOffsetTSlot(messageSlotHeader, rbOff, 0)
	b.PrependInt64Slot(messageSlotBodyLength, bodyLength, 0)
	msgOff := b.EndObject()

	b.Finish(msgOff)
	return b.FinishedBytes()
}

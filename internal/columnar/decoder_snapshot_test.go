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
	"testing"

	"github.com/gkampitakis/go-snaps/snaps"

	"github.com/borodark/adbc-driver-cube/internal/columnar/flatgen"
)

// TestDecodeSchemaSnapshot pins the logical schema produced by mapLogicalType
// for one field of each TypeID/width/unit combination the wire format
// carries, so a change to the mapping is caught even when no single field's
// assertion would have noticed it.
func TestDecodeSchemaSnapshot(t *testing.T) {
	tz := "UTC"
	schemaMD := flatgen.BuildSchemaMessage([]flatgen.FieldSpec{
		{Name: "b", Nullable: true, TypeID: flatgen.TypeBool},
		{Name: "i8", Nullable: true, TypeID: flatgen.TypeInt, BitWidth: 8, IsSigned: true},
		{Name: "i16", Nullable: true, TypeID: flatgen.TypeInt, BitWidth: 16, IsSigned: true},
		{Name: "i32", Nullable: true, TypeID: flatgen.TypeInt, BitWidth: 32, IsSigned: true},
		{Name: "i64", Nullable: true, TypeID: flatgen.TypeInt, BitWidth: 64, IsSigned: true},
		{Name: "u8", Nullable: true, TypeID: flatgen.TypeInt, BitWidth: 8, IsSigned: false},
		{Name: "u32", Nullable: true, TypeID: flatgen.TypeInt, BitWidth: 32, IsSigned: false},
		{Name: "f32", Nullable: true, TypeID: flatgen.TypeFloatingPoint, BitWidth: 32},
		{Name: "f64", Nullable: true, TypeID: flatgen.TypeFloatingPoint, BitWidth: 64},
		{Name: "s", Nullable: false, TypeID: flatgen.TypeUtf8},
		{Name: "bin", Nullable: false, TypeID: flatgen.TypeBinary},
		{Name: "d", Nullable: true, TypeID: flatgen.TypeDate, Unit: byte(flatgen.DateUnitDay)},
		{Name: "t", Nullable: true, TypeID: flatgen.TypeTime, Unit: byte(flatgen.UnitMicro)},
		{Name: "ts", Nullable: true, TypeID: flatgen.TypeTimestamp, Unit: byte(flatgen.UnitNano), Timezone: &tz},
	})

	buf := appendMessage(nil, schemaMD, nil)
	buf = appendEndOfStream(buf)

	dec, err := NewDecoder(buf)
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}

	schema := dec.Schema()
	for _, f := range schema.Fields {
		snaps.MatchSnapshot(t, f.Name+": "+f.LogicalType.String()+" nullable="+boolStr(f.Nullable))
	}
}

func boolStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

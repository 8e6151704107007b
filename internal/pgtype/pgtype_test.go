/*
 * Copyright (c) 2026 QAIL Authors.
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

package pgtype

import (
	"testing"
	"time"

	"github.com/google/uuid"

	qail "github.com/qail-lang/qail-go"
)

// Text and binary encodings of every scalar must decode back to the same
// value under the OID the value declares.
func TestScalarRoundTrips(t *testing.T) {
	ts := time.Date(2025, 6, 15, 12, 30, 45, 123456000, time.UTC)
	values := []qail.Value{
		qail.Bool(true),
		qail.Bool(false),
		qail.Int(0),
		qail.Int(-1),
		qail.Int(9223372036854775807),
		qail.Float(3.141592653589793),
		qail.Text("hello world"),
		qail.Text(""),
		qail.Bytes([]byte{0x00, 0xFF, 0x10}),
		qail.UUID(uuid.MustParse("a0eebc99-9c0b-4ef8-bb6d-6bb9bd380a11")),
		qail.Time(ts),
		qail.TimestampMicros(ts.UnixMicro(), false),
		qail.Numeric("12345.6789"),
		qail.JSON([]byte(`{"a":1}`)),
	}
	for _, v := range values {
		oid := OIDForValue(v)

		text, err := AppendText(nil, v)
		if err != nil {
			t.Errorf("%s: text encode failed: %v", v.Kind(), err)
			continue
		}
		decoded, err := Decode(oid, FormatText, text)
		if err != nil {
			t.Errorf("%s: text decode failed: %v", v.Kind(), err)
			continue
		}
		if !decoded.Equal(v) {
			t.Errorf("%s: text round trip %v != %v", v.Kind(), decoded, v)
		}

		if PreferredFormat(oid) != FormatBinary {
			continue
		}
		bin, err := AppendBinary(nil, v)
		if err != nil {
			t.Errorf("%s: binary encode failed: %v", v.Kind(), err)
			continue
		}
		decoded, err = Decode(oid, FormatBinary, bin)
		if err != nil {
			t.Errorf("%s: binary decode failed: %v", v.Kind(), err)
			continue
		}
		if !decoded.Equal(v) {
			t.Errorf("%s: binary round trip %v != %v", v.Kind(), decoded, v)
		}
	}
}

func TestTextValueWithNulByteRejected(t *testing.T) {
	if _, err := AppendText(nil, qail.Text("a\x00b")); err != ErrNulByte {
		t.Fatalf("expected ErrNulByte, got %v", err)
	}
	if _, err := AppendBinary(nil, qail.Text("a\x00b")); err != ErrNulByte {
		t.Fatalf("expected ErrNulByte, got %v", err)
	}
}

func TestNullHasNoPayload(t *testing.T) {
	if _, err := AppendText(nil, qail.Null()); err != ErrNullValue {
		t.Fatalf("expected ErrNullValue, got %v", err)
	}
}

func TestNullDecodesFromNilPayload(t *testing.T) {
	v, err := Decode(25, FormatText, nil)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !v.IsNull() {
		t.Fatal("nil payload must decode as NULL")
	}
}

func TestArrayTextLiteral(t *testing.T) {
	arr := qail.Array(qail.Text(`he said "hi"`), qail.Null(), qail.Int(3))
	out, err := AppendText(nil, arr)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := `{"he said \"hi\"",NULL,3}`
	if string(out) != want {
		t.Fatalf("array literal:\n got %q\nwant %q", out, want)
	}
}

func TestTimestampBinaryUsesPostgresEpoch(t *testing.T) {
	epoch2000 := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	v := qail.Time(epoch2000)
	bin, err := AppendBinary(nil, v)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	for _, b := range bin {
		if b != 0 {
			t.Fatalf("2000-01-01 must encode as zero micros, got % x", bin)
		}
	}
}

func TestUnknownOidDecodesBestEffortText(t *testing.T) {
	v, err := Decode(999999, FormatText, []byte("mystery"))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v.Kind() != qail.KindText || v.TextVal() != "mystery" {
		t.Fatalf("expected raw text, got %v", v)
	}
	if Known(999999) {
		t.Fatal("unknown oid must not report as known")
	}
}

func TestPreferredFormats(t *testing.T) {
	if PreferredFormat(OIDForValue(qail.Int(1))) != FormatBinary {
		t.Error("int8 should prefer binary")
	}
	if PreferredFormat(OIDForValue(qail.Numeric("1"))) != FormatText {
		t.Error("numeric must stay text")
	}
	if PreferredFormat(OIDForValue(qail.JSON(nil))) != FormatText {
		t.Error("jsonb must stay text")
	}
}

func TestJsonbBinaryVersionByte(t *testing.T) {
	v, err := Decode(3802, FormatBinary, append([]byte{1}, []byte(`{"k":2}`)...))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(v.BytesVal()) != `{"k":2}` {
		t.Fatalf("jsonb payload: %q", v.BytesVal())
	}
}

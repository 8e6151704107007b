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

package wire

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestQueryFrame(t *testing.T) {
	w := NewWriter(0)
	w.Query("SELECT 1")
	b := w.Bytes()

	if b[0] != 'Q' {
		t.Fatalf("tag: got %q", b[0])
	}
	// length = 4 (self) + 8 (sql) + 1 (NUL) = 13
	if got := binary.BigEndian.Uint32(b[1:5]); got != 13 {
		t.Fatalf("length: got %d", got)
	}
	if string(b[5:13]) != "SELECT 1" {
		t.Fatalf("payload: %q", b[5:13])
	}
	if b[13] != 0 {
		t.Fatal("missing NUL terminator")
	}
}

func TestFixedFrames(t *testing.T) {
	w := NewWriter(0)
	w.Sync()
	w.Flush()
	w.Terminate()
	w.CopyDone()
	want := []byte{
		'S', 0, 0, 0, 4,
		'H', 0, 0, 0, 4,
		'X', 0, 0, 0, 4,
		'c', 0, 0, 0, 4,
	}
	if !bytes.Equal(w.Bytes(), want) {
		t.Fatalf("fixed frames: %v", w.Bytes())
	}
}

func TestSSLRequestFrame(t *testing.T) {
	w := NewWriter(0)
	w.SSLRequest()
	b := w.Bytes()
	if len(b) != 8 {
		t.Fatalf("length: %d", len(b))
	}
	if got := binary.BigEndian.Uint32(b[0:4]); got != 8 {
		t.Fatalf("declared length: %d", got)
	}
	if got := binary.BigEndian.Uint32(b[4:8]); got != SSLRequestCode {
		t.Fatalf("code: %d", got)
	}
}

func TestParseFrame(t *testing.T) {
	w := NewWriter(0)
	w.Parse("s_1", "SELECT $1", []uint32{23})
	b := w.Bytes()
	if b[0] != 'P' {
		t.Fatalf("tag: %q", b[0])
	}
	payload := b[5:]
	if !bytes.HasPrefix(payload, []byte("s_1\x00SELECT $1\x00")) {
		t.Fatalf("payload: %q", payload)
	}
	tail := payload[len("s_1\x00SELECT $1\x00"):]
	if binary.BigEndian.Uint16(tail[:2]) != 1 {
		t.Fatal("param count")
	}
	if binary.BigEndian.Uint32(tail[2:6]) != 23 {
		t.Fatal("param oid")
	}
}

func TestBindFrameWithNullAndValue(t *testing.T) {
	w := NewWriter(0)
	at := w.BindStart("", "s_1", []int16{0, 0}, 2)
	p := w.ParamStart()
	w.RawString("42")
	w.ParamEnd(p)
	w.ParamNull()
	w.BindFinish(at, nil)
	b := w.Bytes()

	if b[0] != 'B' {
		t.Fatalf("tag: %q", b[0])
	}
	declared := binary.BigEndian.Uint32(b[1:5])
	if int(declared) != len(b)-1 {
		t.Fatalf("declared %d, actual %d", declared, len(b)-1)
	}
	// portal "" + stmt "s_1" + 2 formats + param count
	idx := 5 + 1 + 4 + 2 + 2*2 + 2
	if got := int32(binary.BigEndian.Uint32(b[idx : idx+4])); got != 2 {
		t.Fatalf("first param length: %d", got)
	}
	if string(b[idx+4:idx+6]) != "42" {
		t.Fatalf("first param payload: %q", b[idx+4:idx+6])
	}
	if got := int32(binary.BigEndian.Uint32(b[idx+6 : idx+10])); got != -1 {
		t.Fatalf("null param length: %d", got)
	}
}

func TestStartupFrame(t *testing.T) {
	w := NewWriter(0)
	w.Startup([][2]string{{"user", "alice"}, {"database", "app"}})
	b := w.Bytes()
	if got := binary.BigEndian.Uint32(b[4:8]); got != ProtocolVersion {
		t.Fatalf("protocol version: %d", got)
	}
	if !bytes.Contains(b, []byte("user\x00alice\x00database\x00app\x00")) {
		t.Fatalf("parameter list: %q", b)
	}
	if b[len(b)-1] != 0 {
		t.Fatal("missing trailing NUL")
	}
}

func TestReaderRoundTrip(t *testing.T) {
	w := NewWriter(0)
	w.Query("SELECT 1")
	w.Sync()
	r := NewReader(bytes.NewReader(w.Bytes()))

	tag, body, err := r.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if tag != 'Q' || string(body) != "SELECT 1\x00" {
		t.Fatalf("first message: %q %q", tag, body)
	}
	tag, body, err = r.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if tag != 'S' || len(body) != 0 {
		t.Fatalf("second message: %q %q", tag, body)
	}
}

func TestReaderRejectsOversizedMessage(t *testing.T) {
	raw := []byte{'D', 0xFF, 0xFF, 0xFF, 0xFF}
	r := NewReader(bytes.NewReader(raw))
	if _, _, err := r.ReadMessage(); err == nil {
		t.Fatal("expected framing error")
	}
}

func TestParseErrorFields(t *testing.T) {
	body := []byte("SERROR\x00C42P01\x00Mrelation does not exist\x00Hcheck the name\x00\x00")
	fields, err := ParseErrorFields(body)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if fields.Severity() != "ERROR" || fields.Code() != "42P01" {
		t.Fatalf("fields: %v", fields)
	}
	if fields.Message() != "relation does not exist" || fields.Hint() != "check the name" {
		t.Fatalf("fields: %v", fields)
	}
}

func TestParseRowDescriptionAndDataRow(t *testing.T) {
	var desc bytes.Buffer
	binary.Write(&desc, binary.BigEndian, int16(2))
	desc.WriteString("id\x00")
	binary.Write(&desc, binary.BigEndian, int32(0))
	binary.Write(&desc, binary.BigEndian, int16(1))
	binary.Write(&desc, binary.BigEndian, int32(20)) // int8
	binary.Write(&desc, binary.BigEndian, int16(8))
	binary.Write(&desc, binary.BigEndian, int32(-1))
	binary.Write(&desc, binary.BigEndian, int16(0))
	desc.WriteString("name\x00")
	binary.Write(&desc, binary.BigEndian, int32(0))
	binary.Write(&desc, binary.BigEndian, int16(2))
	binary.Write(&desc, binary.BigEndian, int32(25)) // text
	binary.Write(&desc, binary.BigEndian, int16(-1))
	binary.Write(&desc, binary.BigEndian, int32(-1))
	binary.Write(&desc, binary.BigEndian, int16(0))

	fields, err := ParseRowDescription(desc.Bytes())
	if err != nil {
		t.Fatalf("row description: %v", err)
	}
	if len(fields) != 2 || fields[0].Name != "id" || fields[1].TypeOID != 25 {
		t.Fatalf("fields: %+v", fields)
	}

	var row bytes.Buffer
	binary.Write(&row, binary.BigEndian, int16(2))
	binary.Write(&row, binary.BigEndian, int32(1))
	row.WriteByte('7')
	binary.Write(&row, binary.BigEndian, int32(-1))

	cols, err := ParseDataRow(row.Bytes())
	if err != nil {
		t.Fatalf("data row: %v", err)
	}
	if string(cols[0]) != "7" || cols[1] != nil {
		t.Fatalf("columns: %v", cols)
	}
}

func TestAffectedRows(t *testing.T) {
	cases := map[string]int64{
		"INSERT 0 3":   3,
		"UPDATE 7":     7,
		"DELETE 0":     0,
		"SELECT 12":    12,
		"COPY 4096":    4096,
		"BEGIN":        0,
		"CREATE TABLE": 0,
	}
	for tag, want := range cases {
		if got := AffectedRows(tag); got != want {
			t.Errorf("%q: got %d, want %d", tag, got, want)
		}
	}
}

func TestCopyDataFrame(t *testing.T) {
	w := NewWriter(0)
	w.CopyData([]byte("1\tAlice\n"))
	b := w.Bytes()
	if b[0] != 'd' {
		t.Fatalf("tag: %q", b[0])
	}
	if got := binary.BigEndian.Uint32(b[1:5]); int(got) != 4+8 {
		t.Fatalf("length: %d", got)
	}
}

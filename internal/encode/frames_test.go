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

package encode

import (
	"bytes"
	"testing"

	qail "github.com/qail-lang/qail-go"
	"github.com/qail-lang/qail-go/internal/wire"
	"github.com/qail-lang/qail-go/qerr"
)

func TestSimpleFrameBytes(t *testing.T) {
	w := wire.NewWriter(0)
	if err := Simple(w, qail.Get("harbors").Columns("id", "name").Limit(10)); err != nil {
		t.Fatalf("simple: %v", err)
	}
	b := w.Bytes()
	if b[0] != 'Q' {
		t.Fatalf("tag: %q", b[0])
	}
	if !bytes.Contains(b, []byte("SELECT id, name FROM harbors LIMIT 10\x00")) {
		t.Fatalf("payload: %q", b)
	}
}

func TestExtendedQueryFrameSequence(t *testing.T) {
	enc := mustCommand(t, qail.Get("users").Columns("id").WhereEq("id", 7))
	w := wire.NewWriter(0)
	var b Binder
	if err := b.ExtendedQuery(w, "s_1", enc, false); err != nil {
		t.Fatalf("extended: %v", err)
	}
	var tags []byte
	r := wire.NewReader(bytes.NewReader(w.Bytes()))
	for {
		tag, _, err := r.ReadMessage()
		if err != nil {
			break
		}
		tags = append(tags, tag)
	}
	if string(tags) != "PBDES" {
		t.Fatalf("frame sequence: %q", tags)
	}
}

func TestExtendedQuerySkipsParseWhenPrepared(t *testing.T) {
	enc := mustCommand(t, qail.Get("users").Columns("id").WhereEq("id", 7))
	w := wire.NewWriter(0)
	var b Binder
	if err := b.ExtendedQuery(w, "s_1", enc, true); err != nil {
		t.Fatalf("extended: %v", err)
	}
	if w.Bytes()[0] != 'B' {
		t.Fatalf("prepared exchange must open with Bind, got %q", w.Bytes()[0])
	}
}

func TestEncodeDeterminismOnWire(t *testing.T) {
	build := func() []byte {
		cmd := qail.Add("users").Columns("email", "age").Values("a@x", 30).Returning("id")
		enc, err := Command(cmd)
		if err != nil {
			t.Fatalf("command: %v", err)
		}
		w := wire.NewWriter(0)
		var b Binder
		if err := b.ExtendedQuery(w, "s_9", enc, false); err != nil {
			t.Fatalf("frames: %v", err)
		}
		return append([]byte(nil), w.Bytes()...)
	}
	if !bytes.Equal(build(), build()) {
		t.Fatal("same AST and params must produce byte-identical frames")
	}
}

func TestBindRejectsNulByteWithParamIndex(t *testing.T) {
	w := wire.NewWriter(0)
	var b Binder
	err := b.AppendBind(w, "", []qail.Value{qail.Text("ok"), qail.Text("bad\x00")}, []uint32{25, 25})
	if qerr.CodeOf(err) != qerr.CodeNulInText {
		t.Fatalf("expected NulInText, got %v", err)
	}
	e, _ := qerr.As(err)
	if !bytes.Contains([]byte(e.Message), []byte("1")) {
		t.Fatalf("error must carry the parameter index: %q", e.Message)
	}
}

func TestUniformBatchEmptySendsNoSync(t *testing.T) {
	w := wire.NewWriter(0)
	var b Binder
	if err := b.UniformBatch(w, "s_1", []uint32{20}, nil); err != nil {
		t.Fatalf("uniform: %v", err)
	}
	if w.Len() != 0 {
		t.Fatalf("empty batch wrote %d bytes", w.Len())
	}
}

func TestUniformBatchFrameShape(t *testing.T) {
	w := wire.NewWriter(0)
	var b Binder
	rows := [][]qail.Value{
		{qail.Int(1)},
		{qail.Int(2)},
		{qail.Int(3)},
	}
	if err := b.UniformBatch(w, "s_1", []uint32{20}, rows); err != nil {
		t.Fatalf("uniform: %v", err)
	}
	var tags []byte
	r := wire.NewReader(bytes.NewReader(w.Bytes()))
	for {
		tag, _, err := r.ReadMessage()
		if err != nil {
			break
		}
		tags = append(tags, tag)
	}
	if string(tags) != "BEBEBES" {
		t.Fatalf("frame sequence: %q", tags)
	}
}

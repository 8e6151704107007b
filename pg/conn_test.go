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

package pg

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	qail "github.com/qail-lang/qail-go"
	"github.com/qail-lang/qail-go/qerr"
)

func TestSimpleQueryTextAndRowOrder(t *testing.T) {
	gotSQL := make(chan string, 1)
	fb := newFakeBackend(t, func(s *serverConn) {
		defer s.close()
		s.acceptPlain()
		tag, payload := s.readFrame()
		if tag != 'Q' {
			t.Errorf("expected Query frame, got %q", tag)
			return
		}
		gotSQL <- strings.TrimSuffix(string(payload), "\x00")
		s.rowDesc(fakeCol{"id", 20}, fakeCol{"name", 25})
		s.dataRow("1", "Harbor 1")
		s.dataRow("2", "Harbor 2")
		s.complete("SELECT 2")
		s.ready('I')
	})

	ctx := context.Background()
	c, err := dial(ctx, fb.config())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.close()

	rows, err := c.query(ctx, qail.Get("harbors").Columns("id", "name").Limit(10))
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	collected, err := rows.Collect()
	if err != nil {
		t.Fatalf("collect: %v", err)
	}

	if sql := <-gotSQL; sql != "SELECT id, name FROM harbors LIMIT 10" {
		t.Errorf("emitted SQL: %q", sql)
	}
	if len(collected) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(collected))
	}
	if v, _ := collected[0].Get("id"); v.IntVal() != 1 {
		t.Errorf("first row id: %v", v)
	}
	if v, _ := collected[1].Get("name"); v.TextVal() != "Harbor 2" {
		t.Errorf("second row name: %v", v)
	}
	if c.state != stateIdle {
		t.Errorf("state after query: %s", c.state)
	}
}

func TestExtendedQueryPreparesOnce(t *testing.T) {
	parses := make(chan string, 4)
	fb := newFakeBackend(t, func(s *serverConn) {
		defer s.close()
		s.acceptPlain()
		for round := 0; round < 2; round++ {
			sawExecute := false
			for !sawExecute {
				tag, payload := s.readFrame()
				switch tag {
				case 'P':
					sql, _ := cstr(payload[bytes.IndexByte(payload, 0)+1:])
					parses <- sql
					s.send('1', nil)
				case 'B':
					s.send('2', nil)
				case 'D':
					s.rowDesc(fakeCol{"id", 20})
				case 'E':
					sawExecute = true
				case 0:
					return
				}
			}
			// Sync
			if tag, _ := s.readFrame(); tag != 'S' {
				t.Errorf("expected Sync, got %q", tag)
				return
			}
			s.dataRow("42")
			s.complete("SELECT 1")
			s.ready('I')
		}
	})

	ctx := context.Background()
	c, err := dial(ctx, fb.config())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.close()

	for _, id := range []int{42, 43} {
		rows, err := c.query(ctx, qail.Get("users").Columns("id").WhereEq("id", id))
		if err != nil {
			t.Fatalf("query %d: %v", id, err)
		}
		if _, err := rows.Collect(); err != nil {
			t.Fatalf("collect %d: %v", id, err)
		}
	}

	sql := <-parses
	if sql != "SELECT id FROM users WHERE id = $1" {
		t.Errorf("prepared SQL: %q", sql)
	}
	select {
	case extra := <-parses:
		t.Errorf("second Parse for a cached statement: %q", extra)
	default:
	}
	if c.cache.len() != 1 {
		t.Errorf("cache size: %d", c.cache.len())
	}
}

func TestPipelineBatchFrameAccounting(t *testing.T) {
	const n = 200
	type counts struct{ parse, bind, execute, sync int }
	got := make(chan counts, 1)

	fb := newFakeBackend(t, func(s *serverConn) {
		defer s.close()
		s.acceptPlain()
		var cnt counts
		for cnt.sync == 0 {
			tag, _ := s.readFrame()
			switch tag {
			case 'P':
				cnt.parse++
			case 'B':
				cnt.bind++
			case 'E':
				cnt.execute++
			case 'S':
				cnt.sync++
			case 0:
				return
			}
		}
		got <- cnt
		s.send('1', nil)
		for i := 0; i < cnt.execute; i++ {
			s.send('2', nil)
			s.complete("SELECT 1")
		}
		s.ready('I')
	})

	ctx := context.Background()
	c, err := dial(ctx, fb.config())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.close()

	cmds := make([]*qail.Cmd, n)
	for i := range cmds {
		cmds[i] = qail.Get("harbors").Columns("id", "name").Limit(int64(i%10 + 1))
	}
	results, err := c.batch(ctx, cmds)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if len(results) != n {
		t.Fatalf("expected %d results, got %d", n, len(results))
	}

	cnt := <-got
	if cnt.parse != 1 {
		t.Errorf("uniform batch must send exactly one Parse, sent %d", cnt.parse)
	}
	if cnt.bind != n || cnt.execute != n {
		t.Errorf("bind/execute counts: %d/%d", cnt.bind, cnt.execute)
	}
	if cnt.sync != 1 {
		t.Errorf("sync count: %d", cnt.sync)
	}
	if c.state != stateIdle {
		t.Errorf("state after batch: %s", c.state)
	}
}

func TestEmptyBatchSendsNothing(t *testing.T) {
	fb := newFakeBackend(t, func(s *serverConn) {
		defer s.close()
		s.acceptPlain()
		// Only the session Terminate may follow; an empty batch sends no
		// frames at all, not even a Sync.
		if tag, _ := s.readFrame(); tag != 0 && tag != 'X' {
			t.Errorf("empty batch sent frame %q", tag)
		}
	})

	ctx := context.Background()
	c, err := dial(ctx, fb.config())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	results, err := c.batch(ctx, nil)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("results: %v", results)
	}
	c.close()
	time.Sleep(20 * time.Millisecond)
}

func TestZeroAffectedLeavesConnectionIdle(t *testing.T) {
	fb := newFakeBackend(t, func(s *serverConn) {
		defer s.close()
		s.acceptPlain()
		for {
			tag, _ := s.readFrame()
			switch tag {
			case 'P':
				s.send('1', nil)
			case 'B':
				s.send('2', nil)
			case 'D':
				s.send('n', nil)
			case 'E':
			case 'S':
				s.complete("UPDATE 0")
				s.ready('I')
			case 0:
				return
			}
		}
	})

	ctx := context.Background()
	c, err := dial(ctx, fb.config())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.close()

	affected, err := c.execute(ctx, qail.Set("users").SetValue("status", "active").WhereEq("id", 42))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if affected != 0 {
		t.Errorf("affected: %d", affected)
	}
	if c.state != stateIdle {
		t.Errorf("state: %s", c.state)
	}
	if c.poisoned {
		t.Error("connection must stay healthy")
	}
}

func TestServerErrorSurfacedWithoutPoisoning(t *testing.T) {
	fb := newFakeBackend(t, func(s *serverConn) {
		defer s.close()
		s.acceptPlain()
		// First query errors, second succeeds.
		s.readFrame()
		s.errorResp("42P01", `relation "nope" does not exist`)
		s.ready('I')
		s.readFrame()
		s.rowDesc(fakeCol{"x", 25})
		s.dataRow("ok")
		s.complete("SELECT 1")
		s.ready('I')
	})

	ctx := context.Background()
	c, err := dial(ctx, fb.config())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.close()

	_, err = c.execute(ctx, qail.Get("nope"))
	if !qerr.IsServer(err) {
		t.Fatalf("expected server error, got %v", err)
	}
	if e, _ := qerr.As(err); e.SQLState != "42P01" {
		t.Errorf("sqlstate: %q", e.SQLState)
	}
	if c.poisoned {
		t.Fatal("server error must not poison")
	}

	rows, err := c.query(ctx, qail.Get("t"))
	if err != nil {
		t.Fatalf("followup query: %v", err)
	}
	if _, err := rows.Collect(); err != nil {
		t.Fatalf("followup collect: %v", err)
	}
}

func TestFailedTransactionStateBlocksStatements(t *testing.T) {
	fb := newFakeBackend(t, func(s *serverConn) {
		defer s.close()
		s.acceptPlain()
		s.readFrame()
		s.errorResp("23505", "duplicate key")
		s.ready('E')
	})

	ctx := context.Background()
	c, err := dial(ctx, fb.config())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.close()

	if _, err := c.execute(ctx, qail.Get("t")); !qerr.IsServer(err) {
		t.Fatalf("expected server error, got %v", err)
	}
	if c.state != stateInFailedTransaction {
		t.Fatalf("state: %s", c.state)
	}
	_, err = c.execute(ctx, qail.Get("t"))
	if qerr.CodeOf(err) != qerr.CodeTransactionAborted {
		t.Fatalf("expected TransactionAborted, got %v", err)
	}
}

func TestCopyInStreamsRows(t *testing.T) {
	gotData := make(chan string, 1)
	fb := newFakeBackend(t, func(s *serverConn) {
		defer s.close()
		s.acceptPlain()
		tag, payload := s.readFrame()
		if tag != 'Q' {
			t.Errorf("expected COPY query, got %q", tag)
			return
		}
		if sql := strings.TrimSuffix(string(payload), "\x00"); sql != "COPY harbors (id, name) FROM STDIN" {
			t.Errorf("copy SQL: %q", sql)
		}
		s.copyInResponse(2)
		var data bytes.Buffer
		for {
			tag, payload := s.readFrame()
			if tag == 'd' {
				data.Write(payload)
				continue
			}
			if tag == 'c' {
				break
			}
			t.Errorf("unexpected frame %q during copy", tag)
			return
		}
		gotData <- data.String()
		s.complete("COPY 2")
		s.ready('I')
	})

	ctx := context.Background()
	c, err := dial(ctx, fb.config())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.close()

	src := SliceSource([][]qail.Value{
		{qail.Int(1), qail.Text("Alice")},
		{qail.Int(2), qail.Null()},
	})
	affected, err := c.copyIn(ctx, "harbors", []string{"id", "name"}, src)
	if err != nil {
		t.Fatalf("copyIn: %v", err)
	}
	if affected != 2 {
		t.Errorf("affected: %d", affected)
	}
	if data := <-gotData; data != "1\tAlice\n2\t\\N\n" {
		t.Errorf("copy payload: %q", data)
	}
}

func TestSSLPreferFallsBackOnRefusal(t *testing.T) {
	fb := newFakeBackend(t, func(s *serverConn) {
		defer s.close()
		// Read the 8-byte SSLRequest, refuse, then accept plaintext.
		buf := make([]byte, 8)
		if _, err := io.ReadFull(s.rd, buf); err != nil {
			return
		}
		s.c.Write([]byte{'N'})
		s.acceptPlain()
		s.readFrame()
		s.rowDesc(fakeCol{"one", 23})
		s.dataRow("1")
		s.complete("SELECT 1")
		s.ready('I')
	})

	cfg := fb.config()
	cfg.SSLMode = SSLPrefer
	ctx := context.Background()
	c, err := dial(ctx, cfg)
	if err != nil {
		t.Fatalf("dial with prefer must fall back: %v", err)
	}
	defer c.close()
	if c.usedTLS {
		t.Error("connection should be plaintext")
	}
	rows, err := c.query(ctx, qail.Get("(SELECT 1) AS t"))
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if _, err := rows.Collect(); err != nil {
		t.Fatalf("collect: %v", err)
	}
}

func TestSSLRequireFailsOnRefusal(t *testing.T) {
	fb := newFakeBackend(t, func(s *serverConn) {
		defer s.close()
		buf := make([]byte, 8)
		if _, err := io.ReadFull(s.rd, buf); err != nil {
			return
		}
		s.c.Write([]byte{'N'})
	})

	cfg := fb.config()
	cfg.SSLMode = SSLRequire
	_, err := dial(context.Background(), cfg)
	if qerr.CodeOf(err) != qerr.CodeSSLRefused {
		t.Fatalf("expected SSLRefused, got %v", err)
	}
}

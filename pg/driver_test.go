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
	"context"
	"errors"
	"strings"
	"testing"

	qail "github.com/qail-lang/qail-go"
)

// txBackend records the simple-query statements it sees and answers both
// protocols; ready status tracks BEGIN/COMMIT/ROLLBACK.
func txBackend(t *testing.T, sqls chan<- string) *fakeBackend {
	return newFakeBackend(t, func(s *serverConn) {
		defer s.close()
		s.acceptPlain()
		status := byte('I')
		for {
			tag, payload := s.readFrame()
			switch tag {
			case 'Q':
				sql := strings.TrimSuffix(string(payload), "\x00")
				sqls <- sql
				switch sql {
				case "BEGIN":
					status = 'T'
				case "COMMIT", "ROLLBACK":
					status = 'I'
				}
				s.complete(strings.Fields(sql)[0])
				s.ready(status)
			case 'P':
				s.send('1', nil)
			case 'B':
				s.send('2', nil)
			case 'D':
				s.send('n', nil)
			case 'E':
			case 'S':
				s.complete("UPDATE 1")
				s.ready(status)
			case 'X', 0:
				return
			}
		}
	})
}

func TestTransactionCommits(t *testing.T) {
	sqls := make(chan string, 8)
	fb := txBackend(t, sqls)
	d, err := ConnectConfig(context.Background(), fb.config())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer d.Close()

	err = d.Transaction(context.Background(), func(tx *Tx) error {
		affected, err := tx.Execute(context.Background(),
			qail.Set("users").SetValue("status", "active").WhereEq("id", 1))
		if err != nil {
			return err
		}
		if affected != 1 {
			t.Errorf("affected: %d", affected)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}

	if first := <-sqls; first != "BEGIN" {
		t.Errorf("first statement: %q", first)
	}
	if last := <-sqls; last != "COMMIT" {
		t.Errorf("closing statement: %q", last)
	}
}

func TestTransactionRollsBackOnError(t *testing.T) {
	sqls := make(chan string, 8)
	fb := txBackend(t, sqls)
	d, err := ConnectConfig(context.Background(), fb.config())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer d.Close()

	boom := errors.New("boom")
	err = d.Transaction(context.Background(), func(tx *Tx) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}

	if first := <-sqls; first != "BEGIN" {
		t.Errorf("first statement: %q", first)
	}
	if last := <-sqls; last != "ROLLBACK" {
		t.Errorf("closing statement: %q", last)
	}

	// The connection returned healthy; the pool still serves.
	if err := d.Ping(context.Background()); err != nil {
		t.Fatalf("ping after rollback: %v", err)
	}
}

func TestQueryStreamsThroughDriver(t *testing.T) {
	fb := newFakeBackend(t, func(s *serverConn) {
		defer s.close()
		s.acceptPlain()
		s.readFrame()
		s.rowDesc(fakeCol{"n", 20})
		for i := 1; i <= 5; i++ {
			s.dataRow(string(rune('0' + i)))
		}
		s.complete("SELECT 5")
		s.ready('I')
		// Serve the health ping that may follow.
		for {
			tag, _ := s.readFrame()
			if tag == 0 || tag == 'X' {
				return
			}
			if tag == 'Q' {
				s.send('I', nil)
				s.ready('I')
			}
		}
	})

	d, err := ConnectConfig(context.Background(), fb.config())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer d.Close()

	rows, err := d.Query(context.Background(), qail.Get("numbers").Columns("n"))
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	var got []int64
	for rows.Next() {
		got = append(got, rows.Row().Value(0).IntVal())
	}
	if err := rows.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if len(got) != 5 || got[0] != 1 || got[4] != 5 {
		t.Fatalf("rows: %v", got)
	}
	if d.Stats().InUse != 0 {
		t.Fatal("connection not returned after Close")
	}
}

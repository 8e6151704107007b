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

package qerr

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	err := InvalidAst("ROLLUP over zero columns")
	got := err.Error()
	want := "ERROR 4000 (AST): invalid command tree - ROLLUP over zero columns"
	if got != want {
		t.Fatalf("format:\n got %q\nwant %q", got, want)
	}
}

func TestUnwrap(t *testing.T) {
	cause := io.ErrUnexpectedEOF
	err := ConnectFailed("db:5432", cause)
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatal("cause not reachable through Unwrap")
	}
}

func TestAsThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("query failed: %w", Server("42P01", "relation missing", "", ""))
	e, ok := As(wrapped)
	if !ok {
		t.Fatal("As failed through wrapping")
	}
	if e.SQLState != "42P01" {
		t.Fatalf("sqlstate: %q", e.SQLState)
	}
	if !IsServer(wrapped) {
		t.Fatal("IsServer failed through wrapping")
	}
}

func TestPredicates(t *testing.T) {
	if !IsPoolTimeout(PoolTimeout("30s")) {
		t.Error("IsPoolTimeout")
	}
	if !IsCancelled(Cancelled(nil)) {
		t.Error("IsCancelled")
	}
	if !IsInvalidAst(DepthLimit(256)) {
		t.Error("IsInvalidAst for depth limit")
	}
	if !IsInvalidParameter(NulInText(3)) {
		t.Error("IsInvalidParameter for NUL")
	}
	if IsServer(PoolClosed()) {
		t.Error("PoolClosed is not a server error")
	}
}

func TestPoisoningPolicy(t *testing.T) {
	poisons := []error{
		ProtocolViolation("bad tag"),
		Cancelled(nil),
		ConnPoisoned(),
		io.ErrUnexpectedEOF, // foreign I/O error
	}
	for _, err := range poisons {
		if !Poisons(err) {
			t.Errorf("%v must poison", err)
		}
	}
	survivable := []error{
		Server("23505", "duplicate key", "", ""),
		Decode(25, "bad utf8"),
		InvalidAst("nope"),
		NulInText(0),
		PoolTimeout("1s"),
		TransactionAborted(),
	}
	for _, err := range survivable {
		if Poisons(err) {
			t.Errorf("%v must not poison", err)
		}
	}
}

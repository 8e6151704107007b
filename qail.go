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

/*
Package qail is the AST-native query model for the QAIL PostgreSQL client.

A command is built as an in-memory syntax tree and handed to the pg driver,
which compiles it straight to PostgreSQL wire protocol bytes. No SQL string
is assembled by the caller, and no SQL string is ever concatenated from user
input: values travel as typed parameters.

Building Commands:
==================

Commands start from an action constructor and grow through chained mutators:

	cmd := qail.Get("users").
		Columns("id", "email").
		Filter("status", qail.OpEq, "active").
		OrderDesc("created_at").
		Limit(50)

	ins := qail.Add("users").
		Columns("email", "name").
		Values("alice@example.com", "Alice").
		Returning("id")

Mutators modify the receiver and return it; a *Cmd is not safe for
concurrent mutation. Once handed to the driver the command is treated as
immutable. Building performs no I/O.

Actions map onto SQL as: Get=SELECT, Add=INSERT, Set=UPDATE, Del=DELETE,
Make=CREATE TABLE, Index=CREATE INDEX, Drop=DROP TABLE, CreateView/DropView.
*/
package qail

// MaxDepth bounds expression tree recursion in the encoder, which rejects
// deeper trees with an InvalidAst error, and in the fingerprint traversal,
// which stops descending past it. The builder methods do not check depth.
const MaxDepth = 256

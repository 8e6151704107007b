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

import "strings"

// reservedWords is the set of keywords that force identifier quoting even
// when the name is otherwise plain.
var reservedWords = map[string]struct{}{
	"all": {}, "and": {}, "any": {}, "as": {}, "asc": {}, "between": {},
	"by": {}, "case": {}, "cast": {}, "check": {}, "collate": {},
	"column": {}, "conflict": {}, "create": {}, "cross": {}, "cube": {},
	"current_date": {}, "current_time": {}, "current_timestamp": {},
	"default": {}, "delete": {}, "desc": {}, "distinct": {}, "do": {},
	"drop": {}, "else": {}, "end": {}, "except": {}, "exists": {},
	"false": {}, "filter": {}, "for": {}, "foreign": {}, "from": {},
	"full": {}, "grant": {}, "group": {}, "having": {}, "ilike": {},
	"in": {}, "index": {}, "inner": {}, "insert": {}, "intersect": {},
	"into": {}, "is": {}, "join": {}, "key": {}, "left": {}, "like": {},
	"limit": {}, "not": {}, "null": {}, "offset": {}, "on": {}, "or": {},
	"order": {}, "outer": {}, "over": {}, "partition": {}, "primary": {},
	"references": {}, "returning": {}, "right": {}, "rollup": {},
	"select": {}, "set": {}, "table": {}, "then": {}, "to": {}, "true": {},
	"union": {}, "unique": {}, "update": {}, "user": {}, "using": {},
	"values": {}, "view": {}, "when": {}, "where": {}, "window": {},
	"with": {},
}

// plainIdent reports whether s needs no quoting: lowercase letters, digits,
// and underscores, not starting with a digit, and not a reserved word.
func plainIdent(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c == '_':
		case c >= '0' && c <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	_, reserved := reservedWords[s]
	return !reserved
}

// quoteIdent renders one identifier, quoting only when required. Qualified
// names (a.b) quote each part independently; a lone * passes through.
func quoteIdent(s string) string {
	if s == "*" {
		return s
	}
	if strings.ContainsRune(s, '.') {
		parts := strings.Split(s, ".")
		for i, p := range parts {
			parts[i] = quoteIdent(p)
		}
		return strings.Join(parts, ".")
	}
	if plainIdent(s) {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// quoteLiteral renders a string literal with single quotes doubled. NUL
// bytes are rejected before this layer.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

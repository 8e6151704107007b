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
	"container/list"
	"strconv"

	qail "github.com/qail-lang/qail-go"
)

// preparedKey identifies a server-side prepared statement: the structural
// fingerprint of the command plus its parameter OID vector.
type preparedKey struct {
	fp   qail.Fingerprint
	oids string
}

func makePreparedKey(fp qail.Fingerprint, oids []uint32) preparedKey {
	b := make([]byte, 0, len(oids)*4)
	for _, o := range oids {
		b = append(b, byte(o>>24), byte(o>>16), byte(o>>8), byte(o))
	}
	return preparedKey{fp: fp, oids: string(b)}
}

// stmtEntry is one cached prepared statement.
type stmtEntry struct {
	key  preparedKey
	name string
	oids []uint32
}

// stmtCache is a per-connection LRU of prepared statements. The cache is
// owned by its connection and never shared, so it needs no locking. Evicted
// statements must have Close('S') issued on the owning connection; the
// cache only reports them.
type stmtCache struct {
	capacity int
	entries  map[preparedKey]*list.Element
	lru      *list.List // front = most recent
	seq      uint64
}

func newStmtCache(capacity int) *stmtCache {
	return &stmtCache{
		capacity: capacity,
		entries:  make(map[preparedKey]*list.Element),
		lru:      list.New(),
	}
}

// lookup returns the cached statement for the key, refreshing its LRU
// position.
func (sc *stmtCache) lookup(key preparedKey) (*stmtEntry, bool) {
	el, ok := sc.entries[key]
	if !ok {
		return nil, false
	}
	sc.lru.MoveToFront(el)
	return el.Value.(*stmtEntry), true
}

// insert registers a new statement under a generated name and returns it
// together with any entry evicted to make room.
func (sc *stmtCache) insert(key preparedKey, oids []uint32) (entry *stmtEntry, evicted *stmtEntry) {
	if sc.capacity > 0 && sc.lru.Len() >= sc.capacity {
		oldest := sc.lru.Back()
		if oldest != nil {
			evicted = oldest.Value.(*stmtEntry)
			sc.lru.Remove(oldest)
			delete(sc.entries, evicted.key)
		}
	}
	sc.seq++
	entry = &stmtEntry{
		key:  key,
		name: "s_" + strconv.FormatUint(sc.seq, 10),
		oids: oids,
	}
	sc.entries[key] = sc.lru.PushFront(entry)
	return entry, evicted
}

// len returns the number of cached statements.
func (sc *stmtCache) len() int {
	return sc.lru.Len()
}

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
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// Backend message tags.
const (
	MsgAuth             byte = 'R'
	MsgParameterStatus  byte = 'S'
	MsgBackendKeyData   byte = 'K'
	MsgReadyForQuery    byte = 'Z'
	MsgRowDescription   byte = 'T'
	MsgDataRow          byte = 'D'
	MsgCommandComplete  byte = 'C'
	MsgEmptyQuery       byte = 'I'
	MsgNoData           byte = 'n'
	MsgParseComplete    byte = '1'
	MsgBindComplete     byte = '2'
	MsgCloseComplete    byte = '3'
	MsgPortalSuspended  byte = 's'
	MsgError            byte = 'E'
	MsgNotice           byte = 'N'
	MsgNotification     byte = 'A'
	MsgCopyInResponse   byte = 'G'
	MsgCopyOutResponse  byte = 'H'
	MsgCopyBothResponse byte = 'W'
	MsgCopyData         byte = 'd'
	MsgCopyDone         byte = 'c'
)

// maxMessageSize bounds a single backend message (16 MiB). Larger declared
// lengths are framing corruption, not data.
const maxMessageSize = 1 << 24

// Reader decodes backend messages from a stream. The payload slice returned
// by ReadMessage is reused by the next call; callers that keep data across
// messages must copy it.
type Reader struct {
	r   *bufio.Reader
	buf []byte
	tmp [5]byte
}

// NewReader wraps the given stream in a buffered message reader.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReaderSize(r, 8192)}
}

// ReadByte reads a single raw byte. Only the SSLRequest answer arrives
// outside message framing.
func (r *Reader) ReadByte() (byte, error) {
	return r.r.ReadByte()
}

// ReadMessage reads exactly one backend message and returns its tag and
// payload. The read blocks until the declared length is fully buffered.
func (r *Reader) ReadMessage() (byte, []byte, error) {
	if _, err := io.ReadFull(r.r, r.tmp[:]); err != nil {
		return 0, nil, err
	}
	tag := r.tmp[0]
	size := int(binary.BigEndian.Uint32(r.tmp[1:])) - 4
	if size < 0 || size > maxMessageSize {
		return 0, nil, fmt.Errorf("message size %d out of bounds (0..%d)", size, maxMessageSize)
	}
	if cap(r.buf) < size {
		alloc := size
		if alloc < 4096 {
			alloc = 4096
		}
		r.buf = make([]byte, size, alloc)
	} else {
		r.buf = r.buf[:size]
	}
	if _, err := io.ReadFull(r.r, r.buf); err != nil {
		return 0, nil, err
	}
	return tag, r.buf, nil
}

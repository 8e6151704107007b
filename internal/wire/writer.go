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
Package wire implements the PostgreSQL frontend/backend protocol 3.0 frame
codec.

Frame Format:
=============

	+--------+-----------------+----------------+
	| Tag(1) |  Length (4B BE) |  Payload ...   |
	+--------+-----------------+----------------+

The length covers itself and the payload but not the tag. Startup-phase
messages (StartupMessage, SSLRequest, CancelRequest) carry no tag.

The Writer appends frames to one growing buffer so a whole pipeline batch
becomes a single net write. Frame lengths are reserved up front and patched
when the frame is finished, the same trick the backend itself uses.
*/
package wire

import "encoding/binary"

// Protocol constants.
const (
	// ProtocolVersion is protocol 3.0 (196608).
	ProtocolVersion = 196608

	// SSLRequestCode is the magic code of the SSLRequest message.
	SSLRequestCode = 80877103

	// CancelRequestCode is the magic code of the CancelRequest message.
	CancelRequestCode = 80877102
)

// Frontend message tags.
const (
	TagQuery     byte = 'Q'
	TagParse     byte = 'P'
	TagBind      byte = 'B'
	TagDescribe  byte = 'D'
	TagExecute   byte = 'E'
	TagClose     byte = 'C'
	TagSync      byte = 'S'
	TagFlush     byte = 'H'
	TagTerminate byte = 'X'
	TagPassword  byte = 'p'
	TagCopyData  byte = 'd'
	TagCopyDone  byte = 'c'
	TagCopyFail  byte = 'f'
)

// Writer assembles frontend frames into one contiguous buffer. The buffer
// grows monotonically; Bytes returns a view that stays valid until Reset.
type Writer struct {
	buf []byte
}

// NewWriter returns a Writer with the given initial capacity.
func NewWriter(capacity int) *Writer {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Writer{buf: make([]byte, 0, capacity)}
}

// Reset drops all frames but keeps the allocation.
func (w *Writer) Reset() {
	w.buf = w.buf[:0]
}

// Bytes returns the assembled frames.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Len returns the number of assembled bytes.
func (w *Writer) Len() int {
	return len(w.buf)
}

// start opens a tagged frame and reserves its length. It returns the length
// field offset for finish.
func (w *Writer) start(tag byte) int {
	w.buf = append(w.buf, tag, 0, 0, 0, 0)
	return len(w.buf) - 4
}

// startUntagged opens a tagless startup-phase frame.
func (w *Writer) startUntagged() int {
	w.buf = append(w.buf, 0, 0, 0, 0)
	return len(w.buf) - 4
}

// finish patches the reserved length to cover everything appended since
// start, length field included.
func (w *Writer) finish(at int) {
	binary.BigEndian.PutUint32(w.buf[at:], uint32(len(w.buf)-at))
}

func (w *Writer) cstring(s string) {
	w.buf = append(w.buf, s...)
	w.buf = append(w.buf, 0)
}

func (w *Writer) int16(v int16) {
	w.buf = append(w.buf, byte(v>>8), byte(v))
}

func (w *Writer) int32(v int32) {
	w.buf = append(w.buf, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

// Raw appends bytes to the current frame. Callers use it to stream
// parameter payloads without intermediate buffers.
func (w *Writer) Raw(b []byte) {
	w.buf = append(w.buf, b...)
}

// RawString appends string bytes to the current frame.
func (w *Writer) RawString(s string) {
	w.buf = append(w.buf, s...)
}

// Startup writes the StartupMessage with the given parameter pairs in
// order. The trailing NUL closes the list.
func (w *Writer) Startup(params [][2]string) {
	at := w.startUntagged()
	w.int32(ProtocolVersion)
	for _, kv := range params {
		w.cstring(kv[0])
		w.cstring(kv[1])
	}
	w.buf = append(w.buf, 0)
	w.finish(at)
}

// SSLRequest writes the 8-byte SSL negotiation request.
func (w *Writer) SSLRequest() {
	at := w.startUntagged()
	w.int32(SSLRequestCode)
	w.finish(at)
}

// CancelRequest writes the out-of-band cancellation request.
func (w *Writer) CancelRequest(processID, secretKey uint32) {
	at := w.startUntagged()
	w.int32(CancelRequestCode)
	w.int32(int32(processID))
	w.int32(int32(secretKey))
	w.finish(at)
}

// Query writes a Simple Query frame.
func (w *Writer) Query(sql string) {
	at := w.start(TagQuery)
	w.cstring(sql)
	w.finish(at)
}

// Parse writes a Parse frame preparing sql under the given statement name.
// OID zero lets the backend infer the parameter type.
func (w *Writer) Parse(name, sql string, paramOIDs []uint32) {
	at := w.start(TagParse)
	w.cstring(name)
	w.cstring(sql)
	w.int16(int16(len(paramOIDs)))
	for _, oid := range paramOIDs {
		w.int32(int32(oid))
	}
	w.finish(at)
}

// BindStart opens a Bind frame: portal and statement names, parameter
// format codes, and the parameter count. Parameters follow via ParamNull /
// ParamStart+ParamEnd, then BindFinish closes the frame. Splitting the
// frame this way lets value encoders write payload bytes straight into the
// batch buffer.
func (w *Writer) BindStart(portal, stmt string, paramFormats []int16, paramCount int) int {
	at := w.start(TagBind)
	w.cstring(portal)
	w.cstring(stmt)
	w.int16(int16(len(paramFormats)))
	for _, f := range paramFormats {
		w.int16(f)
	}
	w.int16(int16(paramCount))
	return at
}

// ParamNull appends a NULL parameter (length -1, no payload).
func (w *Writer) ParamNull() {
	w.int32(-1)
}

// ParamStart reserves a parameter length field and returns its offset.
func (w *Writer) ParamStart() int {
	w.buf = append(w.buf, 0, 0, 0, 0)
	return len(w.buf) - 4
}

// ParamEnd patches the reserved parameter length to cover the bytes
// appended since ParamStart.
func (w *Writer) ParamEnd(at int) {
	binary.BigEndian.PutUint32(w.buf[at:], uint32(len(w.buf)-at-4))
}

// BindFinish appends the result format codes and closes the Bind frame.
func (w *Writer) BindFinish(at int, resultFormats []int16) {
	w.int16(int16(len(resultFormats)))
	for _, f := range resultFormats {
		w.int16(f)
	}
	w.finish(at)
}

// Describe writes a Describe frame. kind is 'S' for a statement, 'P' for a
// portal.
func (w *Writer) Describe(kind byte, name string) {
	at := w.start(TagDescribe)
	w.buf = append(w.buf, kind)
	w.cstring(name)
	w.finish(at)
}

// Execute writes an Execute frame. maxRows zero means unlimited.
func (w *Writer) Execute(portal string, maxRows int32) {
	at := w.start(TagExecute)
	w.cstring(portal)
	w.int32(maxRows)
	w.finish(at)
}

// Close writes a Close frame. kind is 'S' for a statement, 'P' for a
// portal.
func (w *Writer) Close(kind byte, name string) {
	at := w.start(TagClose)
	w.buf = append(w.buf, kind)
	w.cstring(name)
	w.finish(at)
}

// Sync writes a Sync frame ending an extended-query pipeline.
func (w *Writer) Sync() {
	w.buf = append(w.buf, TagSync, 0, 0, 0, 4)
}

// Flush writes a Flush frame.
func (w *Writer) Flush() {
	w.buf = append(w.buf, TagFlush, 0, 0, 0, 4)
}

// Terminate writes the session termination frame.
func (w *Writer) Terminate() {
	w.buf = append(w.buf, TagTerminate, 0, 0, 0, 4)
}

// Password writes a PasswordMessage (cleartext or md5 digest form; the
// SASL variants have their own writers).
func (w *Writer) Password(secret string) {
	at := w.start(TagPassword)
	w.cstring(secret)
	w.finish(at)
}

// SASLInitialResponse writes the first SASL message naming the mechanism.
func (w *Writer) SASLInitialResponse(mechanism string, initial []byte) {
	at := w.start(TagPassword)
	w.cstring(mechanism)
	w.int32(int32(len(initial)))
	w.Raw(initial)
	w.finish(at)
}

// SASLResponse writes a continuation SASL message.
func (w *Writer) SASLResponse(data []byte) {
	at := w.start(TagPassword)
	w.Raw(data)
	w.finish(at)
}

// CopyData writes one CopyData frame carrying the given bytes.
func (w *Writer) CopyData(data []byte) {
	at := w.start(TagCopyData)
	w.Raw(data)
	w.finish(at)
}

// CopyDataStart opens a CopyData frame for streaming; close with
// CopyDataFinish.
func (w *Writer) CopyDataStart() int {
	return w.start(TagCopyData)
}

// CopyDataFinish closes a streamed CopyData frame.
func (w *Writer) CopyDataFinish(at int) {
	w.finish(at)
}

// CopyDone writes the CopyDone frame.
func (w *Writer) CopyDone() {
	w.buf = append(w.buf, TagCopyDone, 0, 0, 0, 4)
}

// CopyFail writes a CopyFail frame with the given reason.
func (w *Writer) CopyFail(reason string) {
	at := w.start(TagCopyFail)
	w.cstring(reason)
	w.finish(at)
}

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
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"
)

// fakeBackend is an in-process scripted PostgreSQL server. Each accepted
// connection runs the handler on its own goroutine; handlers assert on the
// exact frontend frames they receive and write backend frames in reply.
type fakeBackend struct {
	t  *testing.T
	ln net.Listener
}

func newFakeBackend(t *testing.T, handler func(*serverConn)) *fakeBackend {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	fb := &fakeBackend{t: t, ln: ln}
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go handler(&serverConn{t: t, c: c, rd: bufio.NewReader(c)})
		}
	}()
	t.Cleanup(func() { ln.Close() })
	return fb
}

func (fb *fakeBackend) config() *Config {
	return &Config{
		Host:               "127.0.0.1",
		Port:               fb.ln.Addr().(*net.TCPAddr).Port,
		User:               "test",
		Password:           "sekrit",
		Database:           "testdb",
		SSLMode:            SSLDisable,
		PoolMaxConns:       4,
		StatementCacheSize: 16,
		ConnectTimeout:     2 * time.Second,
		CheckoutTimeout:    2 * time.Second,
	}
}

type serverConn struct {
	t  *testing.T
	c  net.Conn
	rd *bufio.Reader
}

func (s *serverConn) close() {
	s.c.Close()
}

// readStartup consumes the untagged StartupMessage and returns its
// parameter pairs.
func (s *serverConn) readStartup() map[string]string {
	var lenbuf [4]byte
	if _, err := io.ReadFull(s.rd, lenbuf[:]); err != nil {
		s.t.Errorf("server: startup length: %v", err)
		return nil
	}
	size := int(binary.BigEndian.Uint32(lenbuf[:])) - 4
	payload := make([]byte, size)
	if _, err := io.ReadFull(s.rd, payload); err != nil {
		s.t.Errorf("server: startup payload: %v", err)
		return nil
	}
	if got := binary.BigEndian.Uint32(payload[:4]); got != 196608 {
		s.t.Errorf("server: protocol version %d", got)
	}
	params := make(map[string]string)
	rest := payload[4:]
	for len(rest) > 1 {
		k, r := cstr(rest)
		v, r2 := cstr(r)
		params[k] = v
		rest = r2
	}
	return params
}

// readStartupOrCancel reads the first untagged message and distinguishes a
// StartupMessage from a CancelRequest. Cancels signal the channel and
// return nil.
func (s *serverConn) readStartupOrCancel(cancelSeen chan<- struct{}) map[string]string {
	var lenbuf [4]byte
	if _, err := io.ReadFull(s.rd, lenbuf[:]); err != nil {
		return nil
	}
	size := int(binary.BigEndian.Uint32(lenbuf[:])) - 4
	payload := make([]byte, size)
	if _, err := io.ReadFull(s.rd, payload); err != nil {
		return nil
	}
	switch binary.BigEndian.Uint32(payload[:4]) {
	case 196608:
		params := make(map[string]string)
		rest := payload[4:]
		for len(rest) > 1 {
			k, r := cstr(rest)
			v, r2 := cstr(r)
			params[k] = v
			rest = r2
		}
		return params
	case 80877102:
		select {
		case cancelSeen <- struct{}{}:
		default:
		}
		return nil
	default:
		s.t.Errorf("server: unknown startup code")
		return nil
	}
}

func cstr(b []byte) (string, []byte) {
	i := bytes.IndexByte(b, 0)
	if i < 0 {
		return string(b), nil
	}
	return string(b[:i]), b[i+1:]
}

// readFrame reads one tagged frontend frame.
func (s *serverConn) readFrame() (byte, []byte) {
	var hdr [5]byte
	if _, err := io.ReadFull(s.rd, hdr[:]); err != nil {
		return 0, nil
	}
	size := int(binary.BigEndian.Uint32(hdr[1:])) - 4
	payload := make([]byte, size)
	if _, err := io.ReadFull(s.rd, payload); err != nil {
		return 0, nil
	}
	return hdr[0], payload
}

func (s *serverConn) send(tag byte, payload []byte) {
	var hdr [5]byte
	hdr[0] = tag
	binary.BigEndian.PutUint32(hdr[1:], uint32(len(payload)+4))
	s.c.Write(hdr[:])
	if len(payload) > 0 {
		s.c.Write(payload)
	}
}

func (s *serverConn) authRequest(code int32, extra []byte) {
	payload := make([]byte, 4, 4+len(extra))
	binary.BigEndian.PutUint32(payload, uint32(code))
	s.send('R', append(payload, extra...))
}

func (s *serverConn) paramStatus(k, v string) {
	s.send('S', []byte(k+"\x00"+v+"\x00"))
}

func (s *serverConn) keyData(pid, key uint32) {
	payload := make([]byte, 8)
	binary.BigEndian.PutUint32(payload, pid)
	binary.BigEndian.PutUint32(payload[4:], key)
	s.send('K', payload)
}

func (s *serverConn) ready(status byte) {
	s.send('Z', []byte{status})
}

// acceptPlain performs a trust-auth startup.
func (s *serverConn) acceptPlain() {
	s.readStartup()
	s.authRequest(0, nil)
	s.paramStatus("server_version", "16.3")
	s.keyData(4242, 777)
	s.ready('I')
}

type fakeCol struct {
	name string
	oid  uint32
}

func (s *serverConn) rowDesc(cols ...fakeCol) {
	var b bytes.Buffer
	binary.Write(&b, binary.BigEndian, int16(len(cols)))
	for _, col := range cols {
		b.WriteString(col.name)
		b.WriteByte(0)
		binary.Write(&b, binary.BigEndian, int32(0))
		binary.Write(&b, binary.BigEndian, int16(0))
		binary.Write(&b, binary.BigEndian, int32(col.oid))
		binary.Write(&b, binary.BigEndian, int16(-1))
		binary.Write(&b, binary.BigEndian, int32(-1))
		binary.Write(&b, binary.BigEndian, int16(0))
	}
	s.send('T', b.Bytes())
}

// dataRow sends one text-format row; nil means NULL.
func (s *serverConn) dataRow(vals ...any) {
	var b bytes.Buffer
	binary.Write(&b, binary.BigEndian, int16(len(vals)))
	for _, v := range vals {
		if v == nil {
			binary.Write(&b, binary.BigEndian, int32(-1))
			continue
		}
		sv := v.(string)
		binary.Write(&b, binary.BigEndian, int32(len(sv)))
		b.WriteString(sv)
	}
	s.send('D', b.Bytes())
}

func (s *serverConn) complete(tag string) {
	s.send('C', []byte(tag+"\x00"))
}

func (s *serverConn) errorResp(code, msg string) {
	var b bytes.Buffer
	b.WriteString("SERROR\x00")
	b.WriteString("C" + code + "\x00")
	b.WriteString("M" + msg + "\x00")
	b.WriteByte(0)
	s.send('E', b.Bytes())
}

func (s *serverConn) copyInResponse(ncols int) {
	var b bytes.Buffer
	b.WriteByte(0)
	binary.Write(&b, binary.BigEndian, int16(ncols))
	for i := 0; i < ncols; i++ {
		binary.Write(&b, binary.BigEndian, int16(0))
	}
	s.send('G', b.Bytes())
}

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
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// Authentication request codes carried by 'R' messages.
const (
	AuthOK                int32 = 0
	AuthCleartextPassword int32 = 3
	AuthMD5Password       int32 = 5
	AuthSASL              int32 = 10
	AuthSASLContinue      int32 = 11
	AuthSASLFinal         int32 = 12
)

// payload is a cursor over one backend message body.
type payload struct {
	b []byte
}

func (p *payload) int16() (int16, error) {
	if len(p.b) < 2 {
		return 0, fmt.Errorf("insufficient data: %d", len(p.b))
	}
	v := int16(binary.BigEndian.Uint16(p.b[:2]))
	p.b = p.b[2:]
	return v, nil
}

func (p *payload) int32() (int32, error) {
	if len(p.b) < 4 {
		return 0, fmt.Errorf("insufficient data: %d", len(p.b))
	}
	v := int32(binary.BigEndian.Uint32(p.b[:4]))
	p.b = p.b[4:]
	return v, nil
}

func (p *payload) cstring() (string, error) {
	pos := bytes.IndexByte(p.b, 0)
	if pos == -1 {
		return "", fmt.Errorf("NUL terminator not found")
	}
	s := string(p.b[:pos])
	p.b = p.b[pos+1:]
	return s, nil
}

func (p *payload) take(n int) ([]byte, error) {
	if len(p.b) < n {
		return nil, fmt.Errorf("insufficient data: %d < %d", len(p.b), n)
	}
	v := p.b[:n]
	p.b = p.b[n:]
	return v, nil
}

// ParseAuth splits an 'R' message into its auth code and mechanism-specific
// trailer.
func ParseAuth(body []byte) (code int32, rest []byte, err error) {
	p := payload{b: body}
	code, err = p.int32()
	if err != nil {
		return 0, nil, err
	}
	return code, p.b, nil
}

// ParseParameterStatus splits an 'S' message into its key/value pair.
func ParseParameterStatus(body []byte) (key, value string, err error) {
	p := payload{b: body}
	if key, err = p.cstring(); err != nil {
		return "", "", err
	}
	if value, err = p.cstring(); err != nil {
		return "", "", err
	}
	return key, value, nil
}

// ParseBackendKeyData splits a 'K' message into process ID and secret key.
func ParseBackendKeyData(body []byte) (processID, secretKey uint32, err error) {
	p := payload{b: body}
	pid, err := p.int32()
	if err != nil {
		return 0, 0, err
	}
	key, err := p.int32()
	if err != nil {
		return 0, 0, err
	}
	return uint32(pid), uint32(key), nil
}

// ParseReadyForQuery returns the transaction status byte of a 'Z' message:
// 'I' idle, 'T' in transaction, 'E' failed transaction.
func ParseReadyForQuery(body []byte) (byte, error) {
	if len(body) < 1 {
		return 0, fmt.Errorf("empty ReadyForQuery")
	}
	return body[0], nil
}

// ErrorFields is the field map of an 'E' or 'N' message, keyed by the
// protocol's single-letter field codes.
type ErrorFields map[byte]string

// Severity returns the S field.
func (f ErrorFields) Severity() string { return f['S'] }

// Code returns the SQLSTATE C field.
func (f ErrorFields) Code() string { return f['C'] }

// Message returns the M field.
func (f ErrorFields) Message() string { return f['M'] }

// Detail returns the D field.
func (f ErrorFields) Detail() string { return f['D'] }

// Hint returns the H field.
func (f ErrorFields) Hint() string { return f['H'] }

// ParseErrorFields decodes the field list of an ErrorResponse or
// NoticeResponse.
func ParseErrorFields(body []byte) (ErrorFields, error) {
	fields := make(ErrorFields)
	p := payload{b: body}
	for len(p.b) > 0 {
		code := p.b[0]
		p.b = p.b[1:]
		if code == 0 {
			break
		}
		value, err := p.cstring()
		if err != nil {
			return nil, err
		}
		fields[code] = value
	}
	return fields, nil
}

// FieldDesc describes one column of a RowDescription.
type FieldDesc struct {
	Name     string
	TableOID uint32
	Attnum   int16
	TypeOID  uint32
	TypeSize int16
	TypeMod  int32
	Format   int16
}

// ParseRowDescription decodes a 'T' message into its field descriptors.
func ParseRowDescription(body []byte) ([]FieldDesc, error) {
	p := payload{b: body}
	n, err := p.int16()
	if err != nil {
		return nil, err
	}
	fields := make([]FieldDesc, 0, n)
	for i := int16(0); i < n; i++ {
		var fd FieldDesc
		if fd.Name, err = p.cstring(); err != nil {
			return nil, err
		}
		tbl, err := p.int32()
		if err != nil {
			return nil, err
		}
		fd.TableOID = uint32(tbl)
		if fd.Attnum, err = p.int16(); err != nil {
			return nil, err
		}
		typ, err := p.int32()
		if err != nil {
			return nil, err
		}
		fd.TypeOID = uint32(typ)
		if fd.TypeSize, err = p.int16(); err != nil {
			return nil, err
		}
		if fd.TypeMod, err = p.int32(); err != nil {
			return nil, err
		}
		if fd.Format, err = p.int16(); err != nil {
			return nil, err
		}
		fields = append(fields, fd)
	}
	return fields, nil
}

// ParseDataRow decodes a 'D' message into its column payloads. NULL columns
// come back as nil slices. The slices alias the message buffer; callers
// keeping them past the next read must copy.
func ParseDataRow(body []byte) ([][]byte, error) {
	p := payload{b: body}
	n, err := p.int16()
	if err != nil {
		return nil, err
	}
	cols := make([][]byte, 0, n)
	for i := int16(0); i < n; i++ {
		size, err := p.int32()
		if err != nil {
			return nil, err
		}
		if size < 0 {
			cols = append(cols, nil)
			continue
		}
		data, err := p.take(int(size))
		if err != nil {
			return nil, err
		}
		cols = append(cols, data)
	}
	return cols, nil
}

// ParseCommandComplete returns the command tag of a 'C' message, e.g.
// "SELECT 2" or "INSERT 0 1".
func ParseCommandComplete(body []byte) (string, error) {
	p := payload{b: body}
	return p.cstring()
}

// AffectedRows extracts the row count from a command tag. INSERT tags carry
// the count in the third word, everything else in the second. Tags without
// a count (BEGIN, CREATE TABLE, ...) yield zero.
func AffectedRows(tag string) int64 {
	parts := strings.Fields(tag)
	if len(parts) < 2 {
		return 0
	}
	last := parts[len(parts)-1]
	n, err := strconv.ParseInt(last, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// ParseCopyInResponse decodes a 'G' message: overall format (0 text,
// 1 binary) and per-column format codes.
func ParseCopyInResponse(body []byte) (format byte, colFormats []int16, err error) {
	p := payload{b: body}
	f, err := p.take(1)
	if err != nil {
		return 0, nil, err
	}
	n, err := p.int16()
	if err != nil {
		return 0, nil, err
	}
	colFormats = make([]int16, 0, n)
	for i := int16(0); i < n; i++ {
		c, err := p.int16()
		if err != nil {
			return 0, nil, err
		}
		colFormats = append(colFormats, c)
	}
	return f[0], colFormats, nil
}

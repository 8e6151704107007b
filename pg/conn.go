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
	"crypto/md5"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/qail-lang/qail-go/internal/encode"
	"github.com/qail-lang/qail-go/internal/logging"
	"github.com/qail-lang/qail-go/internal/scram"
	"github.com/qail-lang/qail-go/internal/wire"
	"github.com/qail-lang/qail-go/qerr"
)

var connSeq atomic.Uint64

// conn is one backend session. A conn has a single owner at any time — the
// pool or a checked-out caller — so no internal locking is needed.
type conn struct {
	cfg *Config
	id  uint64

	netConn net.Conn
	usedTLS bool
	reader  *wire.Reader
	w       *wire.Writer
	binder  encode.Binder

	state     connState
	poisoned  bool
	cancelled atomic.Bool

	processID uint32
	secretKey uint32

	serverParams map[string]string
	cache        *stmtCache
	// lastPrepared marks a statement parsed in the current cycle; a server
	// error before completion drops it from the cache since the Parse may
	// be the message that failed.
	lastPrepared *preparedKey

	log *logging.Logger
}

// dial opens, upgrades, and authenticates a new connection.
func dial(ctx context.Context, cfg *Config) (*conn, error) {
	d := net.Dialer{Timeout: cfg.ConnectTimeout}
	nc, err := d.DialContext(ctx, "tcp", cfg.addr())
	if err != nil {
		return nil, qerr.ConnectFailed(cfg.addr(), err)
	}

	c := &conn{
		cfg:          cfg,
		id:           connSeq.Add(1),
		netConn:      nc,
		w:            wire.NewWriter(4096),
		state:        stateConnecting,
		serverParams: make(map[string]string),
		cache:        newStmtCache(cfg.StatementCacheSize),
		log:          logging.NewLogger("pg"),
	}

	if deadline, ok := ctx.Deadline(); ok {
		nc.SetDeadline(deadline)
		defer nc.SetDeadline(time.Time{})
	}

	if cfg.SSLMode != SSLDisable {
		if err := c.negotiateSSL(); err != nil {
			nc.Close()
			return nil, err
		}
	}
	c.reader = wire.NewReader(c.netConn)

	if err := c.startup(ctx); err != nil {
		c.netConn.Close()
		return nil, err
	}
	c.log.Debug("connected", "conn", c.id, "addr", cfg.addr(), "tls", c.usedTLS)
	return c, nil
}

// negotiateSSL runs the SSLRequest exchange and, on acceptance, the TLS
// handshake. The answer is a single raw byte outside message framing.
func (c *conn) negotiateSSL() error {
	c.w.Reset()
	c.w.SSLRequest()
	if _, err := c.netConn.Write(c.w.Bytes()); err != nil {
		return qerr.ConnectFailed(c.cfg.addr(), err)
	}
	c.w.Reset()

	var answer [1]byte
	if _, err := io.ReadFull(c.netConn, answer[:]); err != nil {
		return qerr.ConnectFailed(c.cfg.addr(), err)
	}
	switch answer[0] {
	case 'S':
		tlsCfg := &tls.Config{ServerName: c.cfg.Host}
		if c.cfg.SSLRootCert != "" {
			pem, err := os.ReadFile(c.cfg.SSLRootCert)
			if err != nil {
				return qerr.ConnectFailed(c.cfg.addr(), err)
			}
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(pem) {
				return qerr.ConnectFailed(c.cfg.addr(), fmt.Errorf("no certificates in %s", c.cfg.SSLRootCert))
			}
			tlsCfg.RootCAs = pool
		} else {
			tlsCfg.InsecureSkipVerify = true
		}
		tc := tls.Client(c.netConn, tlsCfg)
		if err := tc.Handshake(); err != nil {
			return qerr.ConnectFailed(c.cfg.addr(), err)
		}
		c.netConn = tc
		c.usedTLS = true
		return nil
	case 'N':
		if c.cfg.SSLMode == SSLRequire {
			return qerr.SSLRefused(c.cfg.addr())
		}
		c.log.Debug("server declined SSL, continuing in plaintext", "addr", c.cfg.addr())
		return nil
	default:
		return qerr.ProtocolViolation(fmt.Sprintf("unexpected SSL answer %q", answer[0]))
	}
}

// startup sends the StartupMessage and walks the authentication exchange
// until the backend reports ready.
func (c *conn) startup(ctx context.Context) error {
	c.state = stateAuthenticating
	params := [][2]string{
		{"user", c.cfg.User},
		{"database", c.cfg.Database},
		{"client_encoding", "UTF8"},
	}
	if c.cfg.Database == "" {
		params[1][1] = c.cfg.User
	}
	if c.cfg.ApplicationName != "" {
		params = append(params, [2]string{"application_name", c.cfg.ApplicationName})
	}
	c.w.Reset()
	c.w.Startup(params)
	if err := c.flush(); err != nil {
		return err
	}

	for {
		tag, body, err := c.reader.ReadMessage()
		if err != nil {
			return qerr.ConnectFailed(c.cfg.addr(), err)
		}
		switch tag {
		case wire.MsgAuth:
			code, rest, err := wire.ParseAuth(body)
			if err != nil {
				return qerr.ProtocolViolation(err.Error())
			}
			if err := c.authenticate(code, rest); err != nil {
				return err
			}
		case wire.MsgParameterStatus:
			if k, v, err := wire.ParseParameterStatus(body); err == nil {
				c.serverParams[k] = v
			}
		case wire.MsgBackendKeyData:
			c.processID, c.secretKey, _ = wire.ParseBackendKeyData(body)
		case wire.MsgNotice:
			c.notice(body)
		case wire.MsgError:
			fields, _ := wire.ParseErrorFields(body)
			return qerr.AuthFailed(fields.Message())
		case wire.MsgReadyForQuery:
			status, err := wire.ParseReadyForQuery(body)
			if err != nil {
				return qerr.ProtocolViolation(err.Error())
			}
			c.state = stateForTxStatus(status)
			return nil
		default:
			return qerr.UnexpectedMessage(tag, c.state.String())
		}
	}
}

// authenticate answers one 'R' request.
func (c *conn) authenticate(code int32, rest []byte) error {
	switch code {
	case wire.AuthOK:
		return nil
	case wire.AuthCleartextPassword:
		c.w.Reset()
		c.w.Password(c.cfg.Password)
		return c.flush()
	case wire.AuthMD5Password:
		if len(rest) < 4 {
			return qerr.ProtocolViolation("MD5 auth without salt")
		}
		c.w.Reset()
		c.w.Password(md5Digest(c.cfg.User, c.cfg.Password, rest[:4]))
		return c.flush()
	case wire.AuthSASL:
		return c.authenticateSASL(rest)
	default:
		return qerr.AuthUnsupported(fmt.Sprintf("authType %d", code))
	}
}

// md5Digest computes md5(md5(password+user)+salt) with the "md5" prefix.
func md5Digest(user, password string, salt []byte) string {
	inner := md5.Sum([]byte(password + user))
	innerHex := hex.EncodeToString(inner[:])
	outer := md5.New()
	outer.Write([]byte(innerHex))
	outer.Write(salt)
	return "md5" + hex.EncodeToString(outer.Sum(nil))
}

// authenticateSASL runs the SCRAM-SHA-256 conversation. The -PLUS variant
// with tls-server-end-point binding is chosen when the server offers it and
// the session runs over TLS.
func (c *conn) authenticateSASL(mechList []byte) error {
	mechanisms := parseMechanisms(mechList)
	var binding []byte
	usePlus := false
	if c.usedTLS {
		if _, ok := mechanisms[scram.MechanismSHA256Plus]; ok {
			if h := c.certHash(); h != nil {
				binding = h
				usePlus = true
			}
		}
	}
	if !usePlus {
		if _, ok := mechanisms[scram.MechanismSHA256]; !ok {
			return qerr.AuthUnsupported(strings.Join(mechanismNames(mechanisms), ", "))
		}
		binding = nil
	}

	conv, err := scram.New(c.cfg.User, c.cfg.Password, binding)
	if err != nil {
		return qerr.AuthFailed(err.Error())
	}
	c.w.Reset()
	c.w.SASLInitialResponse(conv.Mechanism(), conv.ClientFirst())
	if err := c.flush(); err != nil {
		return err
	}

	// server-first
	code, rest, err := c.readAuthMessage()
	if err != nil {
		return err
	}
	if code != wire.AuthSASLContinue {
		return qerr.ScramViolation(fmt.Sprintf("expected SASL continue, got authType %d", code))
	}
	final, err := conv.ClientFinal(rest)
	if err != nil {
		return qerr.ScramViolation(err.Error())
	}
	c.w.Reset()
	c.w.SASLResponse(final)
	if err := c.flush(); err != nil {
		return err
	}

	// server-final
	code, rest, err = c.readAuthMessage()
	if err != nil {
		return err
	}
	if code != wire.AuthSASLFinal {
		return qerr.ScramViolation(fmt.Sprintf("expected SASL final, got authType %d", code))
	}
	if err := conv.VerifyServerFinal(rest); err != nil {
		return qerr.ScramViolation(err.Error())
	}
	return nil
}

// readAuthMessage reads the next 'R' frame, surfacing backend errors.
func (c *conn) readAuthMessage() (int32, []byte, error) {
	for {
		tag, body, err := c.reader.ReadMessage()
		if err != nil {
			return 0, nil, qerr.ConnectFailed(c.cfg.addr(), err)
		}
		switch tag {
		case wire.MsgAuth:
			code, rest, err := wire.ParseAuth(body)
			if err != nil {
				return 0, nil, qerr.ProtocolViolation(err.Error())
			}
			return code, rest, nil
		case wire.MsgNotice:
			c.notice(body)
		case wire.MsgError:
			fields, _ := wire.ParseErrorFields(body)
			return 0, nil, qerr.AuthFailed(fields.Message())
		default:
			return 0, nil, qerr.UnexpectedMessage(tag, "authenticating")
		}
	}
}

// certHash returns the tls-server-end-point binding data: the server
// certificate hashed with its signature hash, MD5/SHA-1 upgraded to
// SHA-256 per RFC 5929.
func (c *conn) certHash() []byte {
	tc, ok := c.netConn.(*tls.Conn)
	if !ok {
		return nil
	}
	certs := tc.ConnectionState().PeerCertificates
	if len(certs) == 0 {
		return nil
	}
	cert := certs[0]
	switch cert.SignatureAlgorithm {
	case x509.SHA384WithRSA, x509.ECDSAWithSHA384, x509.SHA384WithRSAPSS:
		sum := sha512.Sum384(cert.Raw)
		return sum[:]
	case x509.SHA512WithRSA, x509.ECDSAWithSHA512, x509.SHA512WithRSAPSS:
		sum := sha512.Sum512(cert.Raw)
		return sum[:]
	default:
		sum := sha256.Sum256(cert.Raw)
		return sum[:]
	}
}

func parseMechanisms(list []byte) map[string]struct{} {
	out := make(map[string]struct{})
	for _, m := range strings.Split(string(list), "\x00") {
		if m != "" {
			out[m] = struct{}{}
		}
	}
	return out
}

func mechanismNames(m map[string]struct{}) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	return names
}

// flush writes every assembled frame and resets the writer. net.Conn.Write
// retries partial writes internally; any error leaves the protocol state
// unknown and poisons the connection.
func (c *conn) flush() error {
	buf := c.w.Bytes()
	c.w.Reset()
	if len(buf) == 0 {
		return nil
	}
	if _, err := c.netConn.Write(buf); err != nil {
		return c.ioError(err)
	}
	return nil
}

// readMessage reads one backend message, poisoning on transport failure.
func (c *conn) readMessage() (byte, []byte, error) {
	tag, body, err := c.reader.ReadMessage()
	if err != nil {
		return 0, nil, c.ioError(err)
	}
	return tag, body, nil
}

func (c *conn) ioError(err error) error {
	c.poisoned = true
	if c.cancelled.Load() {
		c.log.Debug("connection cancelled", "conn", c.id)
		return qerr.Cancelled(err)
	}
	c.log.Warn("connection poisoned", "conn", c.id, "error", err)
	return qerr.ProtocolViolation(err.Error()).WithCause(err)
}

// watch arms context cancellation for one blocking exchange. On cancel the
// socket deadline is forced into the past, failing the pending I/O; the
// connection is poisoned because the wire state is unknown. The returned
// stop function must be called once the exchange completes.
func (c *conn) watch(ctx context.Context) func() {
	if ctx.Done() == nil {
		return func() {}
	}
	finished := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			c.cancelled.Store(true)
			// Ask the backend to abandon the statement, then fail the
			// pending local I/O. The protocol state is unknown either way.
			go func() {
				cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				c.cancel(cctx)
			}()
			c.netConn.SetDeadline(time.Unix(1, 0))
		case <-finished:
		}
	}()
	return func() {
		close(finished)
		if !c.cancelled.Load() {
			c.netConn.SetDeadline(time.Time{})
		}
	}
}

// usable reports whether a new command may start.
func (c *conn) usable() error {
	if c.poisoned {
		return qerr.ConnPoisoned()
	}
	switch c.state {
	case stateIdle, stateInTransaction:
		return nil
	case stateInFailedTransaction:
		return qerr.TransactionAborted()
	case stateClosed:
		return qerr.ConnPoisoned()
	default:
		return qerr.ProtocolViolation("connection busy in state " + c.state.String())
	}
}

// notice delivers an out-of-band NoticeResponse.
func (c *conn) notice(body []byte) {
	fields, err := wire.ParseErrorFields(body)
	if err != nil {
		return
	}
	n := qerr.Server(fields.Code(), fields.Message(), fields.Detail(), fields.Hint())
	if c.cfg.OnNotice != nil {
		c.cfg.OnNotice(n)
		return
	}
	c.log.Debug("notice", "conn", c.id, "message", fields.Message())
}

// serverError converts an ErrorResponse body.
func serverError(body []byte) *qerr.Error {
	fields, err := wire.ParseErrorFields(body)
	if err != nil {
		return qerr.ProtocolViolation(err.Error())
	}
	return qerr.Server(fields.Code(), fields.Message(), fields.Detail(), fields.Hint())
}

// ping runs the cheapest health probe: an empty simple query.
func (c *conn) ping(ctx context.Context) error {
	if err := c.usable(); err != nil {
		return err
	}
	stop := c.watch(ctx)
	defer stop()
	c.w.Reset()
	c.w.Query(";")
	if err := c.flush(); err != nil {
		return err
	}
	for {
		tag, body, err := c.readMessage()
		if err != nil {
			return err
		}
		switch tag {
		case wire.MsgEmptyQuery, wire.MsgCommandComplete:
		case wire.MsgNotice:
			c.notice(body)
		case wire.MsgParameterStatus:
		case wire.MsgError:
			e := serverError(body)
			for {
				t, b, err := c.readMessage()
				if err != nil {
					return err
				}
				if t == wire.MsgReadyForQuery {
					status, _ := wire.ParseReadyForQuery(b)
					c.state = stateForTxStatus(status)
					break
				}
			}
			return e
		case wire.MsgReadyForQuery:
			status, _ := wire.ParseReadyForQuery(body)
			c.state = stateForTxStatus(status)
			return nil
		default:
			return c.ioError(fmt.Errorf("unexpected tag %q during ping", tag))
		}
	}
}

// close terminates the session. A Terminate frame is a courtesy; failures
// here are ignored because the socket is going away regardless.
func (c *conn) close() {
	if c.state == stateClosed {
		return
	}
	if !c.poisoned {
		c.w.Reset()
		c.w.Terminate()
		c.netConn.Write(c.w.Bytes())
		c.w.Reset()
	}
	c.netConn.Close()
	c.state = stateClosed
	c.log.Debug("connection closed", "conn", c.id)
}

// cancel opens a second connection and fires CancelRequest with the key
// data captured at startup. The original socket is never touched.
func (c *conn) cancel(ctx context.Context) error {
	d := net.Dialer{Timeout: c.cfg.ConnectTimeout}
	nc, err := d.DialContext(ctx, "tcp", c.cfg.addr())
	if err != nil {
		return qerr.ConnectFailed(c.cfg.addr(), err)
	}
	defer nc.Close()

	w := wire.NewWriter(64)
	if c.usedTLS {
		w.SSLRequest()
		if _, err := nc.Write(w.Bytes()); err != nil {
			return qerr.ConnectFailed(c.cfg.addr(), err)
		}
		w.Reset()
		var answer [1]byte
		if _, err := io.ReadFull(nc, answer[:]); err != nil {
			return qerr.ConnectFailed(c.cfg.addr(), err)
		}
		if answer[0] == 'S' {
			tc := tls.Client(nc, &tls.Config{ServerName: c.cfg.Host, InsecureSkipVerify: true})
			if err := tc.Handshake(); err != nil {
				return qerr.ConnectFailed(c.cfg.addr(), err)
			}
			defer tc.Close()
			w.CancelRequest(c.processID, c.secretKey)
			_, err = tc.Write(w.Bytes())
			return err
		}
	}
	w.Reset()
	w.CancelRequest(c.processID, c.secretKey)
	_, err = nc.Write(w.Bytes())
	return err
}

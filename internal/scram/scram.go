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
Package scram implements the client side of SCRAM-SHA-256 (RFC 5802,
RFC 7677) as used by PostgreSQL SASL authentication, including the
SCRAM-SHA-256-PLUS channel-binding variant over tls-server-end-point.

The conversation is three client steps:

	client-first:  n,,n=<user>,r=<nonce>
	client-final:  c=<gs2+binding>,r=<combined nonce>,p=<proof>
	verify:        check v=<server signature> from server-final

The salted password is derived with PBKDF2-HMAC-SHA-256 over the server's
salt and iteration count.
*/
package scram

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// Mechanism names.
const (
	MechanismSHA256     = "SCRAM-SHA-256"
	MechanismSHA256Plus = "SCRAM-SHA-256-PLUS"
)

const nonceLen = 18

// Conversation tracks one SCRAM exchange.
type Conversation struct {
	user     string
	password string

	// cbData is the tls-server-end-point certificate hash; nil selects the
	// plain mechanism with gs2 flag "n".
	cbData []byte

	gs2             string
	clientNonce     string
	clientFirstBare string
	serverFirst     string
	authMessage     string
	saltedPassword  []byte
}

// New starts a conversation for the given credentials. channelBinding, when
// non-nil, must be the SHA-256 (or certificate-native) hash of the server's
// TLS certificate and upgrades the exchange to SCRAM-SHA-256-PLUS.
func New(user, password string, channelBinding []byte) (*Conversation, error) {
	raw := make([]byte, nonceLen)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("nonce generation failed: %w", err)
	}
	c := &Conversation{
		user:        user,
		password:    password,
		cbData:      channelBinding,
		clientNonce: base64.StdEncoding.EncodeToString(raw),
	}
	if channelBinding != nil {
		c.gs2 = "p=tls-server-end-point,,"
	} else {
		c.gs2 = "n,,"
	}
	return c, nil
}

// Mechanism returns the SASL mechanism name this conversation speaks.
func (c *Conversation) Mechanism() string {
	if c.cbData != nil {
		return MechanismSHA256Plus
	}
	return MechanismSHA256
}

// ClientFirst returns the initial SASL payload.
func (c *Conversation) ClientFirst() []byte {
	c.clientFirstBare = "n=" + saslName(c.user) + ",r=" + c.clientNonce
	return []byte(c.gs2 + c.clientFirstBare)
}

// ClientFinal consumes the server-first message and produces the
// client-final payload carrying the proof.
func (c *Conversation) ClientFinal(serverFirst []byte) ([]byte, error) {
	c.serverFirst = string(serverFirst)
	attrs, err := parseAttrs(c.serverFirst)
	if err != nil {
		return nil, err
	}
	combined := attrs["r"]
	if !strings.HasPrefix(combined, c.clientNonce) || combined == c.clientNonce {
		return nil, errors.New("server nonce does not extend client nonce")
	}
	salt, err := base64.StdEncoding.DecodeString(attrs["s"])
	if err != nil {
		return nil, fmt.Errorf("bad salt: %w", err)
	}
	iters, err := strconv.Atoi(attrs["i"])
	if err != nil || iters < 1 {
		return nil, errors.New("bad iteration count")
	}

	c.saltedPassword = pbkdf2.Key([]byte(c.password), salt, iters, sha256.Size, sha256.New)

	cbInput := []byte(c.gs2)
	if c.cbData != nil {
		cbInput = append(cbInput, c.cbData...)
	}
	withoutProof := "c=" + base64.StdEncoding.EncodeToString(cbInput) + ",r=" + combined
	c.authMessage = c.clientFirstBare + "," + c.serverFirst + "," + withoutProof

	clientKey := hmacSHA256(c.saltedPassword, "Client Key")
	storedKey := sha256.Sum256(clientKey)
	clientSig := hmacSHA256(storedKey[:], c.authMessage)
	proof := make([]byte, len(clientKey))
	for i := range clientKey {
		proof[i] = clientKey[i] ^ clientSig[i]
	}

	final := withoutProof + ",p=" + base64.StdEncoding.EncodeToString(proof)
	return []byte(final), nil
}

// VerifyServerFinal checks the server signature, completing mutual
// authentication.
func (c *Conversation) VerifyServerFinal(serverFinal []byte) error {
	attrs, err := parseAttrs(string(serverFinal))
	if err != nil {
		return err
	}
	if e, ok := attrs["e"]; ok {
		return errors.New("server rejected proof: " + e)
	}
	expected, err := base64.StdEncoding.DecodeString(attrs["v"])
	if err != nil {
		return fmt.Errorf("bad server signature: %w", err)
	}
	serverKey := hmacSHA256(c.saltedPassword, "Server Key")
	serverSig := hmacSHA256(serverKey, c.authMessage)
	if !hmac.Equal(serverSig, expected) {
		return errors.New("server signature mismatch")
	}
	return nil
}

func hmacSHA256(key []byte, msg string) []byte {
	m := hmac.New(sha256.New, key)
	m.Write([]byte(msg))
	return m.Sum(nil)
}

// saslName escapes '=' and ',' per RFC 5802.
func saslName(s string) string {
	s = strings.ReplaceAll(s, "=", "=3D")
	return strings.ReplaceAll(s, ",", "=2C")
}

// parseAttrs splits "k=v,k=v" SCRAM attribute lists.
func parseAttrs(s string) (map[string]string, error) {
	attrs := make(map[string]string)
	for _, part := range strings.Split(s, ",") {
		if part == "" {
			continue
		}
		if len(part) < 2 || part[1] != '=' {
			return nil, errors.New("malformed SCRAM attribute " + strconv.Quote(part))
		}
		attrs[part[:1]] = part[2:]
	}
	return attrs, nil
}

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

package scram

import (
	"strings"
	"testing"
)

// The worked example from RFC 7677 section 3.
func rfc7677Conversation() *Conversation {
	return &Conversation{
		user:        "user",
		password:    "pencil",
		gs2:         "n,,",
		clientNonce: "rOprNGfwEbeRWgbNEkqO",
	}
}

func TestRFC7677Vector(t *testing.T) {
	c := rfc7677Conversation()

	first := c.ClientFirst()
	if string(first) != "n,,n=user,r=rOprNGfwEbeRWgbNEkqO" {
		t.Fatalf("client-first: %q", first)
	}

	serverFirst := "r=rOprNGfwEbeRWgbNEkqO%hvYDpWUa2RaTCAfuxFIlj)hNlF$k0,s=W22ZaJ0SNY7soEsUEjb6gQ==,i=4096"
	final, err := c.ClientFinal([]byte(serverFirst))
	if err != nil {
		t.Fatalf("client-final: %v", err)
	}
	want := "c=biws,r=rOprNGfwEbeRWgbNEkqO%hvYDpWUa2RaTCAfuxFIlj)hNlF$k0,p=dHzbZapWIk4jUhN+Ute9ytag9zjfMHgsqmmiz7AndVQ="
	if string(final) != want {
		t.Fatalf("client-final:\n got %q\nwant %q", final, want)
	}

	serverFinal := "v=6rriTRBi23WpRR/wtup+mMhUZUn/dB5nLTJRsjl95G4="
	if err := c.VerifyServerFinal([]byte(serverFinal)); err != nil {
		t.Fatalf("server signature: %v", err)
	}
}

func TestServerNonceMustExtendClientNonce(t *testing.T) {
	c := rfc7677Conversation()
	c.ClientFirst()
	_, err := c.ClientFinal([]byte("r=completely-different,s=W22ZaJ0SNY7soEsUEjb6gQ==,i=4096"))
	if err == nil {
		t.Fatal("expected nonce rejection")
	}
}

func TestServerErrorSurfaced(t *testing.T) {
	c := rfc7677Conversation()
	c.ClientFirst()
	if _, err := c.ClientFinal([]byte("r=rOprNGfwEbeRWgbNEkqOxyz,s=W22ZaJ0SNY7soEsUEjb6gQ==,i=4096")); err != nil {
		t.Fatalf("client-final: %v", err)
	}
	err := c.VerifyServerFinal([]byte("e=invalid-proof"))
	if err == nil || !strings.Contains(err.Error(), "invalid-proof") {
		t.Fatalf("expected server rejection, got %v", err)
	}
}

func TestBadServerSignatureRejected(t *testing.T) {
	c := rfc7677Conversation()
	c.ClientFirst()
	serverFirst := "r=rOprNGfwEbeRWgbNEkqO%hvYDpWUa2RaTCAfuxFIlj)hNlF$k0,s=W22ZaJ0SNY7soEsUEjb6gQ==,i=4096"
	if _, err := c.ClientFinal([]byte(serverFirst)); err != nil {
		t.Fatalf("client-final: %v", err)
	}
	if err := c.VerifyServerFinal([]byte("v=AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA=")); err == nil {
		t.Fatal("expected signature mismatch")
	}
}

func TestMechanismSelection(t *testing.T) {
	plain, err := New("alice", "pw", nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if plain.Mechanism() != MechanismSHA256 {
		t.Fatalf("mechanism: %s", plain.Mechanism())
	}
	bound, err := New("alice", "pw", []byte{1, 2, 3})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if bound.Mechanism() != MechanismSHA256Plus {
		t.Fatalf("mechanism: %s", bound.Mechanism())
	}
	if !strings.HasPrefix(string(bound.ClientFirst()), "p=tls-server-end-point,,") {
		t.Fatalf("gs2 header: %q", bound.ClientFirst())
	}
}

func TestSASLNameEscaping(t *testing.T) {
	if got := saslName("a=b,c"); got != "a=3Db=2Cc" {
		t.Fatalf("escaping: %q", got)
	}
}

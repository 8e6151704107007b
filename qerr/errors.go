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
Package qerr provides structured error handling for the QAIL driver.

The package implements a structured error system with:
  - Error categories (Connect, Auth, Protocol, Ast, Param, Server, ...)
  - Error codes for programmatic handling
  - Detail and hint fields mirroring PostgreSQL error responses
  - Error wrapping for root cause analysis

Propagation policy: Server errors leave the connection usable once the
backend reports ready; Decode errors are per-row. Every transport or
protocol error poisons the connection it occurred on.
*/
package qerr

import (
	"errors"
	"fmt"
)

// Code is a unique error identifier.
type Code int

const (
	// Connect errors (1000-1999)
	CodeConnectFailed Code = 1000
	CodeSSLRefused    Code = 1001
	CodeDNSFailure    Code = 1002

	// Auth errors (2000-2999)
	CodeAuthFailed         Code = 2000
	CodeAuthUnsupported    Code = 2001
	CodeAuthScramViolation Code = 2002

	// Protocol errors (3000-3999)
	CodeProtocolViolation Code = 3000
	CodeUnexpectedMessage Code = 3001
	CodeFramingError      Code = 3002

	// AST errors (4000-4999)
	CodeInvalidAst Code = 4000
	CodeDepthLimit Code = 4001

	// Parameter errors (5000-5999)
	CodeInvalidParameter Code = 5000
	CodeNulInText        Code = 5001
	CodeValueOutOfRange  Code = 5002

	// Server errors (6000-6999)
	CodeServer Code = 6000

	// Pool errors (7000-7999)
	CodePoolTimeout Code = 7000
	CodePoolClosed  Code = 7001

	// Decode errors (8000-8999)
	CodeDecode     Code = 8000
	CodeUnknownOid Code = 8001

	// State errors (9000-9999)
	CodeTransactionAborted Code = 9000
	CodeCancelled          Code = 9001
	CodeConnPoisoned       Code = 9002
)

// Category groups error codes.
type Category string

const (
	CategoryConnect  Category = "CONNECT"
	CategoryAuth     Category = "AUTH"
	CategoryProtocol Category = "PROTOCOL"
	CategoryAst      Category = "AST"
	CategoryParam    Category = "PARAM"
	CategoryServer   Category = "SERVER"
	CategoryPool     Category = "POOL"
	CategoryDecode   Category = "DECODE"
	CategoryState    Category = "STATE"
)

// Error is a structured QAIL driver error.
type Error struct {
	Code     Code
	Category Category
	Message  string
	Detail   string
	Hint     string
	Cause    error

	// SQLState carries the five-character code from a backend error
	// response; empty for client-side errors.
	SQLState string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("ERROR %d (%s): %s - %s", e.Code, e.Category, e.Message, e.Detail)
	}
	return fmt.Sprintf("ERROR %d (%s): %s", e.Code, e.Category, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds detail to the error.
func (e *Error) WithDetail(detail string) *Error {
	e.Detail = detail
	return e
}

// WithHint adds a hint to the error.
func (e *Error) WithHint(hint string) *Error {
	e.Hint = hint
	return e
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// ============================================================================
// Connect Error Constructors
// ============================================================================

// ConnectFailed creates an error for a failed TCP/TLS/DNS connection attempt.
func ConnectFailed(addr string, cause error) *Error {
	return &Error{
		Code:     CodeConnectFailed,
		Category: CategoryConnect,
		Message:  fmt.Sprintf("connection to %s failed", addr),
		Cause:    cause,
		Hint:     "Check that the server is running and reachable",
	}
}

// SSLRefused creates an error for a server refusing SSL when required.
func SSLRefused(addr string) *Error {
	return &Error{
		Code:     CodeSSLRefused,
		Category: CategoryConnect,
		Message:  fmt.Sprintf("server at %s refused SSL", addr),
		Hint:     "Use sslmode=prefer or sslmode=disable to allow plaintext",
	}
}

// ============================================================================
// Auth Error Constructors
// ============================================================================

// AuthFailed creates an error for rejected credentials.
func AuthFailed(detail string) *Error {
	return &Error{
		Code:     CodeAuthFailed,
		Category: CategoryAuth,
		Message:  "authentication failed",
		Detail:   detail,
		Hint:     "Check your username and password",
	}
}

// AuthUnsupported creates an error for an authentication method the driver
// does not speak.
func AuthUnsupported(method string) *Error {
	return &Error{
		Code:     CodeAuthUnsupported,
		Category: CategoryAuth,
		Message:  fmt.Sprintf("unsupported authentication method: %s", method),
	}
}

// ScramViolation creates an error for a malformed SCRAM exchange.
func ScramViolation(detail string) *Error {
	return &Error{
		Code:     CodeAuthScramViolation,
		Category: CategoryAuth,
		Message:  "SCRAM exchange violated",
		Detail:   detail,
	}
}

// ============================================================================
// Protocol Error Constructors
// ============================================================================

// ProtocolViolation creates an error for a framing or sequencing violation.
// Connections that observe one must be poisoned.
func ProtocolViolation(detail string) *Error {
	return &Error{
		Code:     CodeProtocolViolation,
		Category: CategoryProtocol,
		Message:  "protocol violation",
		Detail:   detail,
	}
}

// UnexpectedMessage creates an error for a backend tag that is invalid in
// the current state.
func UnexpectedMessage(tag byte, state string) *Error {
	return &Error{
		Code:     CodeUnexpectedMessage,
		Category: CategoryProtocol,
		Message:  fmt.Sprintf("unexpected message %q in state %s", tag, state),
	}
}

// ============================================================================
// AST / Parameter Error Constructors
// ============================================================================

// InvalidAst creates an error for an encoder-side invariant break. The
// command never reaches the wire.
func InvalidAst(reason string) *Error {
	return &Error{
		Code:     CodeInvalidAst,
		Category: CategoryAst,
		Message:  "invalid command tree",
		Detail:   reason,
	}
}

// DepthLimit creates an error for an expression tree beyond the recursion
// bound.
func DepthLimit(limit int) *Error {
	return &Error{
		Code:     CodeDepthLimit,
		Category: CategoryAst,
		Message:  fmt.Sprintf("expression tree deeper than %d", limit),
	}
}

// InvalidParameter creates an error for a value-level problem at the given
// parameter index (0-based).
func InvalidParameter(index int, reason string) *Error {
	return &Error{
		Code:     CodeInvalidParameter,
		Category: CategoryParam,
		Message:  fmt.Sprintf("invalid parameter %d", index),
		Detail:   reason,
	}
}

// NulInText creates an error for a text value carrying a NUL byte.
func NulInText(index int) *Error {
	return &Error{
		Code:     CodeNulInText,
		Category: CategoryParam,
		Message:  fmt.Sprintf("parameter %d contains a NUL byte", index),
		Hint:     "PostgreSQL text values cannot contain 0x00",
	}
}

// ValueOutOfRange creates an error for a value outside its type's range.
func ValueOutOfRange(index int, detail string) *Error {
	return &Error{
		Code:     CodeValueOutOfRange,
		Category: CategoryParam,
		Message:  fmt.Sprintf("parameter %d out of range", index),
		Detail:   detail,
	}
}

// ============================================================================
// Server Error Constructor
// ============================================================================

// Server creates an error from a backend ErrorResponse. The connection
// stays usable once the backend reports ready again.
func Server(sqlstate, message, detail, hint string) *Error {
	return &Error{
		Code:     CodeServer,
		Category: CategoryServer,
		Message:  message,
		Detail:   detail,
		Hint:     hint,
		SQLState: sqlstate,
	}
}

// ============================================================================
// Pool / Decode / State Error Constructors
// ============================================================================

// PoolTimeout creates an error for a checkout that exceeded its deadline.
func PoolTimeout(waited string) *Error {
	return &Error{
		Code:     CodePoolTimeout,
		Category: CategoryPool,
		Message:  "timed out waiting for a connection",
		Detail:   fmt.Sprintf("waited %s", waited),
		Hint:     "Raise pool_max_conns or shorten query runtimes",
	}
}

// PoolClosed creates an error for operations on a closed pool.
func PoolClosed() *Error {
	return &Error{
		Code:     CodePoolClosed,
		Category: CategoryPool,
		Message:  "pool is closed",
	}
}

// Decode creates an error for a row decoding failure.
func Decode(oid uint32, reason string) *Error {
	return &Error{
		Code:     CodeDecode,
		Category: CategoryDecode,
		Message:  fmt.Sprintf("cannot decode value of type oid %d", oid),
		Detail:   reason,
	}
}

// UnknownOid creates a strict-mode error for an OID outside the type table.
func UnknownOid(oid uint32) *Error {
	return &Error{
		Code:     CodeUnknownOid,
		Category: CategoryDecode,
		Message:  fmt.Sprintf("unknown type oid %d", oid),
		Hint:     "Disable strict decoding to receive raw text instead",
	}
}

// TransactionAborted creates an error for statements issued inside a failed
// transaction block.
func TransactionAborted() *Error {
	return &Error{
		Code:     CodeTransactionAborted,
		Category: CategoryState,
		Message:  "current transaction is aborted",
		Hint:     "Issue ROLLBACK before further statements",
	}
}

// Cancelled creates an error for an operation interrupted by context
// cancellation. The connection is poisoned.
func Cancelled(cause error) *Error {
	return &Error{
		Code:     CodeCancelled,
		Category: CategoryState,
		Message:  "operation cancelled",
		Cause:    cause,
	}
}

// ConnPoisoned creates an error for use of a connection whose protocol
// state is unknown.
func ConnPoisoned() *Error {
	return &Error{
		Code:     CodeConnPoisoned,
		Category: CategoryState,
		Message:  "connection is poisoned",
		Hint:     "The connection will be closed, retry on a fresh one",
	}
}

// ============================================================================
// Helper Functions
// ============================================================================

// As extracts a *Error from an error chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// CodeOf returns the error code, or 0 for foreign errors.
func CodeOf(err error) Code {
	if e, ok := As(err); ok {
		return e.Code
	}
	return 0
}

// IsServer checks if an error is a backend error.
func IsServer(err error) bool {
	return categoryOf(err) == CategoryServer
}

// IsPoolTimeout checks if an error is a pool checkout timeout.
func IsPoolTimeout(err error) bool {
	return CodeOf(err) == CodePoolTimeout
}

// IsCancelled checks if an error is a cancellation.
func IsCancelled(err error) bool {
	return CodeOf(err) == CodeCancelled
}

// IsInvalidAst checks if an error is an encoder-side invariant break.
func IsInvalidAst(err error) bool {
	return categoryOf(err) == CategoryAst
}

// IsInvalidParameter checks if an error is a value-level rejection.
func IsInvalidParameter(err error) bool {
	return categoryOf(err) == CategoryParam
}

// Poisons reports whether the error leaves the connection in an unknown
// protocol state. Server and Decode errors do not; transport, protocol,
// and cancellation errors do.
func Poisons(err error) bool {
	switch categoryOf(err) {
	case CategoryServer, CategoryDecode, CategoryAst, CategoryParam, CategoryPool:
		return false
	case "":
		// Foreign errors reaching the connection are I/O failures.
		return true
	default:
		switch CodeOf(err) {
		case CodeTransactionAborted:
			return false
		}
		return true
	}
}

func categoryOf(err error) Category {
	if e, ok := As(err); ok {
		return e.Category
	}
	return ""
}

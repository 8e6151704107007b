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

// connState tracks where a connection sits in the protocol. Transitions are
// driven by backend messages only.
type connState uint8

const (
	stateConnecting connState = iota
	stateAuthenticating
	stateIdle
	stateInTransaction
	stateInFailedTransaction
	stateBusy
	statePipelineBusy
	stateCopying
	stateClosed
)

// String returns the state name for diagnostics.
func (s connState) String() string {
	switch s {
	case stateConnecting:
		return "connecting"
	case stateAuthenticating:
		return "authenticating"
	case stateIdle:
		return "idle"
	case stateInTransaction:
		return "in_transaction"
	case stateInFailedTransaction:
		return "in_failed_transaction"
	case stateBusy:
		return "busy"
	case statePipelineBusy:
		return "pipeline_busy"
	case stateCopying:
		return "copying"
	case stateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// stateForTxStatus maps a ReadyForQuery status byte onto a state.
func stateForTxStatus(status byte) connState {
	switch status {
	case 'T':
		return stateInTransaction
	case 'E':
		return stateInFailedTransaction
	default:
		return stateIdle
	}
}

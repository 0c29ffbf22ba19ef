/*
 * Copyright 2024 ScopeDB, Inc.
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

// Package session implements ClientSession: the state machine that drives a
// wire.FramedTransport through handshake, authentication, and query
// execution, accumulating each query's columnar response bytes.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/borodark/adbc-driver-cube/internal/wire"
)

// State is one node of the session state machine.
type State uint8

const (
	Disconnected State = iota
	Connected
	Handshaked
	Authenticated
	Querying
	Closed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connected:
		return "Connected"
	case Handshaked:
		return "Handshaked"
	case Authenticated:
		return "Authenticated"
	case Querying:
		return "Querying"
	case Closed:
		return "Closed"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// ErrorKind is the driver-wide error taxonomy every operation's errors map into.
type ErrorKind uint8

const (
	InvalidArgument ErrorKind = iota
	InvalidState
	IO
	Unauthenticated
	InvalidData
	Unknown
	NotImplemented
)

func (k ErrorKind) String() string {
	switch k {
	case InvalidArgument:
		return "InvalidArgument"
	case InvalidState:
		return "InvalidState"
	case IO:
		return "IO"
	case Unauthenticated:
		return "Unauthenticated"
	case InvalidData:
		return "InvalidData"
	case Unknown:
		return "Unknown"
	case NotImplemented:
		return "NotImplemented"
	default:
		return fmt.Sprintf("ErrorKind(%d)", uint8(k))
	}
}

// Error is the concrete error type every session operation returns. It
// carries the abstract Kind alongside a human-readable message and, for
// Unknown, the server's original code.
type Error struct {
	Kind       ErrorKind
	Message    string
	ServerCode string
	Cause      error
}

func (e *Error) Error() string {
	if e.ServerCode != "" {
		return fmt.Sprintf("[%s]: %s", e.ServerCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func wrapError(kind ErrorKind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// ClientSession owns one FramedTransport and drives it through the protocol
// state machine: Disconnected -> Connected -> Handshaked -> Authenticated ->
// Querying -> Closed. Not safe for concurrent use by multiple goroutines —
// each session belongs to exactly one caller at a time, with one query
// in flight.
type ClientSession struct {
	mu sync.Mutex

	transport *wire.FramedTransport
	state     State

	readTimeout  time.Duration
	writeTimeout time.Duration

	serverVersion string
	sessionID     string
}

// New wraps an already-dialed transport in Connected state, with no
// per-operation read/write timeout beyond whatever the caller's ctx carries.
func New(transport *wire.FramedTransport) *ClientSession {
	return &ClientSession{transport: transport, state: Connected}
}

// Dial opens a TCP connection, bounded by dialTimeout (zero means no
// timeout beyond ctx's own deadline), and returns a session in Connected
// state. readTimeout and writeTimeout bound every subsequent Handshake,
// Authenticate, and ExecuteQuery frame read/write; zero means no timeout
// beyond ctx's own deadline.
func Dial(ctx context.Context, host string, port uint16, maxFrameSize uint32, dialTimeout, readTimeout, writeTimeout time.Duration) (*ClientSession, error) {
	if dialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, dialTimeout)
		defer cancel()
	}
	t, err := wire.Dial(ctx, host, port, maxFrameSize)
	if err != nil {
		return nil, wrapError(IO, err, "connect to %s:%d", host, port)
	}
	s := New(t)
	s.readTimeout = readTimeout
	s.writeTimeout = writeTimeout
	return s, nil
}

// withOpTimeout wraps ctx with d, unless d is zero, in which case ctx's own
// deadline (or lack of one) governs unchanged.
func withOpTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

// State returns the session's current state.
func (s *ClientSession) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ServerVersion returns the version string learned during Handshake, or "" before then.
func (s *ClientSession) ServerVersion() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serverVersion
}

// Handshake sends HandshakeRequest{version=1} and awaits HandshakeResponse.
// Requires state Connected; leaves the session Handshaked on success. ctx
// bounds the round trip; cancellation or deadline expiry aborts the
// connection and returns an IO error.
func (s *ClientSession) Handshake(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Connected {
		return newError(InvalidState, "handshake requires state Connected, have %s", s.state)
	}

	req := &wire.Message{Type: wire.MessageHandshakeRequest, HandshakeRequest: &wire.HandshakeRequest{Version: wire.ProtocolVersion}}
	if err := s.writeMessage(ctx, req); err != nil {
		return err
	}

	resp, err := s.readMessage(ctx)
	if err != nil {
		return err
	}
	if resp.Type != wire.MessageHandshakeResponse {
		s.transitionToClosedLocked()
		return newError(InvalidData, "expected HandshakeResponse, got message type 0x%02x", byte(resp.Type))
	}
	if resp.HandshakeResponse.Version != wire.ProtocolVersion {
		s.transitionToClosedLocked()
		return newError(InvalidData, "server handshake version %d != %d", resp.HandshakeResponse.Version, wire.ProtocolVersion)
	}

	s.serverVersion = resp.HandshakeResponse.ServerVersion
	s.state = Handshaked
	return nil
}

// Authenticate sends AuthRequest{token, database} and awaits AuthResponse.
// Requires state Handshaked and a non-empty token. On AuthResponse.OK ==
// false, the session closes and returns Unauthenticated. ctx bounds the
// round trip.
func (s *ClientSession) Authenticate(ctx context.Context, token string, database *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Handshaked {
		return newError(InvalidState, "authenticate requires state Handshaked, have %s", s.state)
	}
	if token == "" {
		return newError(InvalidArgument, "token must not be empty")
	}

	req := &wire.Message{Type: wire.MessageAuthRequest, AuthRequest: &wire.AuthRequest{Token: token, Database: database}}
	if err := s.writeMessage(ctx, req); err != nil {
		return err
	}

	resp, err := s.readMessage(ctx)
	if err != nil {
		return err
	}
	if resp.Type != wire.MessageAuthResponse {
		s.transitionToClosedLocked()
		return newError(InvalidData, "expected AuthResponse, got message type 0x%02x", byte(resp.Type))
	}
	if !resp.AuthResponse.OK {
		s.transitionToClosedLocked()
		return newError(Unauthenticated, "authentication rejected by server")
	}

	s.sessionID = resp.AuthResponse.SessionID
	s.state = Authenticated
	return nil
}

// ExecuteQuery sends QueryRequest{sql} and reads frames until QueryComplete
// or Error, collecting the columnar bytes of every QueryResponseBatch frame
// in arrival order as independent segments. Each segment is a complete,
// self-contained columnar stream (its own Schema message plus RecordBatch
// messages): batches concatenate logically, one ColumnarStreamDecoder per
// segment, rather than one frame's bytes silently overwriting another's.
// QueryResponseSchema frames are read and discarded — the columnar stream's
// own embedded schema is authoritative. ctx bounds the whole exchange,
// including every frame read in the loop below.
func (s *ClientSession) ExecuteQuery(ctx context.Context, sql string) ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Authenticated {
		return nil, newError(InvalidState, "execute_query requires state Authenticated, have %s", s.state)
	}

	req := &wire.Message{Type: wire.MessageQueryRequest, QueryRequest: &wire.QueryRequest{SQL: sql}}
	if err := s.writeMessage(ctx, req); err != nil {
		return nil, err
	}
	s.state = Querying

	var segments [][]byte
	for {
		resp, err := s.readMessage(ctx)
		if err != nil {
			return nil, err
		}

		switch resp.Type {
		case wire.MessageQueryResponseSchema:
			continue
		case wire.MessageQueryResponseBatch:
			segments = append(segments, resp.QueryResponseBatch)
		case wire.MessageQueryComplete:
			if len(segments) == 0 {
				s.state = Authenticated
				return nil, newError(InvalidData, "QueryComplete with no prior QueryResponseBatch")
			}
			s.state = Authenticated
			return segments, nil
		case wire.MessageError:
			s.state = Authenticated
			return nil, &Error{Kind: Unknown, Message: resp.Error.Message, ServerCode: resp.Error.Code}
		default:
			s.transitionToClosedLocked()
			return nil, newError(InvalidData, "unexpected message type 0x%02x during query", byte(resp.Type))
		}
	}
}

// Close closes the underlying transport. Idempotent; safe to call from any state.
func (s *ClientSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Closed {
		return nil
	}
	err := s.transport.Close()
	s.state = Closed
	if err != nil {
		return wrapError(IO, err, "close transport")
	}
	return nil
}

func (s *ClientSession) transitionToClosedLocked() {
	_ = s.transport.Close()
	s.state = Closed
}

func (s *ClientSession) writeMessage(ctx context.Context, m *wire.Message) error {
	ctx, cancel := withOpTimeout(ctx, s.writeTimeout)
	defer cancel()
	if err := s.transport.WriteFrameContext(ctx, wire.Encode(m)); err != nil {
		s.transitionToClosedLocked()
		return wrapError(IO, err, "write %T frame", m.Type)
	}
	return nil
}

func (s *ClientSession) readMessage(ctx context.Context) (*wire.Message, error) {
	ctx, cancel := withOpTimeout(ctx, s.readTimeout)
	defer cancel()
	frame, err := s.transport.ReadFrameContext(ctx)
	if err != nil {
		s.transitionToClosedLocked()
		if wire.IsInvalidFrame(err) {
			return nil, wrapError(InvalidData, err, "read frame")
		}
		return nil, wrapError(IO, err, "read frame")
	}
	msg, err := wire.Decode(frame[4:])
	if err != nil {
		s.transitionToClosedLocked()
		return nil, wrapError(InvalidData, err, "decode message")
	}
	return msg, nil
}

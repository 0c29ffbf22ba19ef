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

package session

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/borodark/adbc-driver-cube/internal/wire"
)

// fakeServer wraps the server side of an in-memory pipe with the same
// FramedTransport the client uses, so tests read/write typed messages
// without hand-rolling byte frames.
type fakeServer struct {
	t *testing.T
	*wire.FramedTransport
}

func newSessionPair(t *testing.T) (*ClientSession, *fakeServer) {
	t.Helper()
	clientConn, serverConn := net.Pipe()
	t.Cleanup(func() {
		_ = clientConn.Close()
		_ = serverConn.Close()
	})
	client := New(wire.NewFramedTransport(clientConn, 0))
	server := &fakeServer{t: t, FramedTransport: wire.NewFramedTransport(serverConn, 0)}
	return client, server
}

func (s *fakeServer) recv() *wire.Message {
	s.t.Helper()
	frame, err := s.ReadFrame()
	require.NoError(s.t, err)
	msg, err := wire.Decode(frame[4:])
	require.NoError(s.t, err)
	return msg
}

func (s *fakeServer) send(m *wire.Message) {
	s.t.Helper()
	require.NoError(s.t, s.WriteFrame(wire.Encode(m)))
}

func doHandshake(t *testing.T, client *ClientSession, server *fakeServer) {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- client.Handshake(context.Background()) }()

	req := server.recv()
	require.Equal(t, wire.MessageHandshakeRequest, req.Type)
	require.Equal(t, uint32(1), req.HandshakeRequest.Version)

	server.send(&wire.Message{Type: wire.MessageHandshakeResponse, HandshakeResponse: &wire.HandshakeResponse{Version: 1, ServerVersion: "1.0.0"}})
	require.NoError(t, <-done)
}

// TestHandshakeSuccess mirrors spec scenario 1.
func TestHandshakeSuccess(t *testing.T) {
	client, server := newSessionPair(t)
	doHandshake(t, client, server)
	require.Equal(t, Handshaked, client.State())
	require.Equal(t, "1.0.0", client.ServerVersion())
}

// TestHandshakeContextCancellationAbortsConnection proves a canceled ctx
// unblocks a Handshake stuck waiting on a server that never replies, instead
// of hanging until the process exits.
func TestHandshakeContextCancellationAbortsConnection(t *testing.T) {
	client, _ := newSessionPair(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- client.Handshake(ctx) }()

	cancel()

	select {
	case err := <-done:
		require.Error(t, err)
		require.Equal(t, Closed, client.State())
	case <-time.After(5 * time.Second):
		t.Fatal("Handshake did not return after ctx was canceled")
	}
}

// TestAuthenticationFailure mirrors spec scenario 2.
func TestAuthenticationFailure(t *testing.T) {
	client, server := newSessionPair(t)
	doHandshake(t, client, server)

	done := make(chan error, 1)
	go func() { done <- client.Authenticate(context.Background(), "x", nil) }()

	req := server.recv()
	require.Equal(t, wire.MessageAuthRequest, req.Type)
	require.Equal(t, "x", req.AuthRequest.Token)

	server.send(&wire.Message{Type: wire.MessageAuthResponse, AuthResponse: &wire.AuthResponse{OK: false, SessionID: ""}})

	err := <-done
	require.Error(t, err)
	var sessErr *Error
	require.ErrorAs(t, err, &sessErr)
	require.Equal(t, Unauthenticated, sessErr.Kind)
	require.Equal(t, Closed, client.State())
}

func authenticateOK(t *testing.T, client *ClientSession, server *fakeServer) {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- client.Authenticate(context.Background(), "token", nil) }()
	server.recv()
	server.send(&wire.Message{Type: wire.MessageAuthResponse, AuthResponse: &wire.AuthResponse{OK: true, SessionID: "sess-1"}})
	require.NoError(t, <-done)
}

// TestExecuteQuerySuccess mirrors spec scenario 3's session-level behavior:
// one QueryResponseBatch frame followed by QueryComplete.
func TestExecuteQuerySuccess(t *testing.T) {
	client, server := newSessionPair(t)
	doHandshake(t, client, server)
	authenticateOK(t, client, server)

	type result struct {
		segments [][]byte
		err      error
	}
	done := make(chan result, 1)
	go func() {
		segments, err := client.ExecuteQuery(context.Background(), "SELECT 1")
		done <- result{segments, err}
	}()

	req := server.recv()
	require.Equal(t, wire.MessageQueryRequest, req.Type)
	require.Equal(t, "SELECT 1", req.QueryRequest.SQL)

	batchBytes := []byte{0xAA, 0xBB, 0xCC}
	server.send(&wire.Message{Type: wire.MessageQueryResponseBatch, QueryResponseBatch: batchBytes})
	server.send(&wire.Message{Type: wire.MessageQueryComplete, QueryComplete: &wire.QueryComplete{RowsAffected: -1}})

	r := <-done
	require.NoError(t, r.err)
	require.Equal(t, [][]byte{batchBytes}, r.segments)
	require.Equal(t, Authenticated, client.State())
}

// TestExecuteQueryKeepsMultipleBatchesAsSeparateSegments verifies that each
// QueryResponseBatch frame is kept as its own independent columnar-stream
// segment, in arrival order, rather than concatenated byte-for-byte or
// letting the last one win.
func TestExecuteQueryKeepsMultipleBatchesAsSeparateSegments(t *testing.T) {
	client, server := newSessionPair(t)
	doHandshake(t, client, server)
	authenticateOK(t, client, server)

	type result struct {
		segments [][]byte
		err      error
	}
	done := make(chan result, 1)
	go func() {
		segments, err := client.ExecuteQuery(context.Background(), "SELECT * FROM t")
		done <- result{segments, err}
	}()

	server.recv()
	server.send(&wire.Message{Type: wire.MessageQueryResponseSchema, QueryResponseBatch: []byte{0x01}})
	server.send(&wire.Message{Type: wire.MessageQueryResponseBatch, QueryResponseBatch: []byte{0x01, 0x02}})
	server.send(&wire.Message{Type: wire.MessageQueryResponseBatch, QueryResponseBatch: []byte{0x03, 0x04}})
	server.send(&wire.Message{Type: wire.MessageQueryComplete, QueryComplete: &wire.QueryComplete{RowsAffected: -1}})

	r := <-done
	require.NoError(t, r.err)
	require.Equal(t, [][]byte{{0x01, 0x02}, {0x03, 0x04}}, r.segments)
}

// TestExecuteQueryServerError mirrors spec scenario 4.
func TestExecuteQueryServerError(t *testing.T) {
	client, server := newSessionPair(t)
	doHandshake(t, client, server)
	authenticateOK(t, client, server)

	type result struct {
		segments [][]byte
		err      error
	}
	done := make(chan result, 1)
	go func() {
		segments, err := client.ExecuteQuery(context.Background(), "SELECT bogus")
		done <- result{segments, err}
	}()

	server.recv()
	server.send(&wire.Message{Type: wire.MessageError, Error: &wire.ErrorMessage{Code: "42601", Message: "syntax"}})

	r := <-done
	require.Error(t, r.err)
	require.Equal(t, "[42601]: syntax", r.err.Error())
	var sessErr *Error
	require.ErrorAs(t, r.err, &sessErr)
	require.Equal(t, Unknown, sessErr.Kind)
	require.Equal(t, Authenticated, client.State())
}

func TestExecuteQueryEmptyBufferIsInvalidData(t *testing.T) {
	client, server := newSessionPair(t)
	doHandshake(t, client, server)
	authenticateOK(t, client, server)

	type result struct {
		segments [][]byte
		err      error
	}
	done := make(chan result, 1)
	go func() {
		segments, err := client.ExecuteQuery(context.Background(), "SELECT 1")
		done <- result{segments, err}
	}()

	server.recv()
	server.send(&wire.Message{Type: wire.MessageQueryComplete, QueryComplete: &wire.QueryComplete{RowsAffected: 0}})

	r := <-done
	require.Error(t, r.err)
	var sessErr *Error
	require.ErrorAs(t, r.err, &sessErr)
	require.Equal(t, InvalidData, sessErr.Kind)
}

func TestAuthenticateFromDisconnectedIsInvalidState(t *testing.T) {
	client, _ := newSessionPair(t)
	client.state = Disconnected

	err := client.Authenticate(context.Background(), "token", nil)
	var sessErr *Error
	require.ErrorAs(t, err, &sessErr)
	require.Equal(t, InvalidState, sessErr.Kind)
}

func TestExecuteQueryBeforeAuthenticateIsInvalidState(t *testing.T) {
	client, server := newSessionPair(t)
	doHandshake(t, client, server)

	_, err := client.ExecuteQuery(context.Background(), "SELECT 1")
	var sessErr *Error
	require.ErrorAs(t, err, &sessErr)
	require.Equal(t, InvalidState, sessErr.Kind)
}

func TestOperationsAfterCloseAreInvalidState(t *testing.T) {
	client, _ := newSessionPair(t)
	require.NoError(t, client.Close())
	require.NoError(t, client.Close()) // idempotent

	err := client.Authenticate(context.Background(), "token", nil)
	var sessErr *Error
	require.ErrorAs(t, err, &sessErr)
	require.Equal(t, InvalidState, sessErr.Kind)
}

func TestAuthenticateRejectsEmptyToken(t *testing.T) {
	client, server := newSessionPair(t)
	doHandshake(t, client, server)

	err := client.Authenticate(context.Background(), "", nil)
	var sessErr *Error
	require.ErrorAs(t, err, &sessErr)
	require.Equal(t, InvalidArgument, sessErr.Kind)
}

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

package wire

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"
)

// MessageType is the one-byte discriminant immediately after a frame's
// length prefix.
type MessageType uint8

const (
	MessageHandshakeRequest  MessageType = 0x01
	MessageHandshakeResponse MessageType = 0x02
	MessageAuthRequest       MessageType = 0x03
	MessageAuthResponse      MessageType = 0x04
	MessageQueryRequest      MessageType = 0x10
	MessageQueryResponseSchema MessageType = 0x11
	MessageQueryResponseBatch MessageType = 0x12
	MessageQueryComplete     MessageType = 0x13
	MessageError             MessageType = 0xFF
)

// ProtocolVersion is the only handshake version this driver speaks.
const ProtocolVersion uint32 = 1

// Message is the tagged union of every request/response kind the outer wire
// protocol carries. Exactly one of the typed fields is meaningful, selected
// by Type. A single encode/decode pair switches on the discriminant instead
// of per-kind virtual dispatch.
type Message struct {
	Type MessageType

	HandshakeRequest  *HandshakeRequest
	HandshakeResponse *HandshakeResponse
	AuthRequest       *AuthRequest
	AuthResponse      *AuthResponse
	QueryRequest      *QueryRequest
	QueryResponseBatch []byte // raw columnar-stream bytes, both Schema and Batch payload kinds share this shape
	QueryComplete     *QueryComplete
	Error             *ErrorMessage
}

type HandshakeRequest struct {
	Version uint32
}

type HandshakeResponse struct {
	Version       uint32
	ServerVersion string
}

type AuthRequest struct {
	Token    string
	Database *string
}

type AuthResponse struct {
	OK        bool
	SessionID string
}

type QueryRequest struct {
	SQL string
}

type QueryComplete struct {
	RowsAffected int64
}

type ErrorMessage struct {
	Code    string
	Message string
}

// Encode serializes m into a fresh, owned byte buffer:
// u32 total_payload_len (BE) | u8 MessageType | fields.  Encoders never fail.
func Encode(m *Message) []byte {
	var body []byte
	body = append(body, byte(m.Type))

	switch m.Type {
	case MessageHandshakeRequest:
		body = appendU32(body, m.HandshakeRequest.Version)
	case MessageHandshakeResponse:
		body = appendU32(body, m.HandshakeResponse.Version)
		body = appendStr(body, m.HandshakeResponse.ServerVersion)
	case MessageAuthRequest:
		body = appendStr(body, m.AuthRequest.Token)
		body = appendOptStr(body, m.AuthRequest.Database)
	case MessageAuthResponse:
		body = appendBool(body, m.AuthResponse.OK)
		body = appendStr(body, m.AuthResponse.SessionID)
	case MessageQueryRequest:
		body = appendStr(body, m.QueryRequest.SQL)
	case MessageQueryResponseSchema, MessageQueryResponseBatch:
		body = appendBytes(body, m.QueryResponseBatch)
	case MessageQueryComplete:
		body = appendI64(body, m.QueryComplete.RowsAffected)
	case MessageError:
		body = appendStr(body, m.Error.Code)
		body = appendStr(body, m.Error.Message)
	default:
		panic(fmt.Sprintf("wire: encode: unknown message type 0x%02x", byte(m.Type)))
	}

	framed := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(framed, uint32(len(body)))
	copy(framed[4:], body)
	return framed
}

// Decode parses the payload of a frame (bytes[4:], i.e. length prefix already
// stripped by the caller) into a typed Message. Short input, an out-of-range
// length, or an unrecognized MessageType discriminant fail with an error
// wrapping errInvalidFrame.
func Decode(payload []byte) (*Message, error) {
	c := cursor{buf: payload}

	typeByte, err := c.readU8()
	if err != nil {
		return nil, err
	}
	msgType := MessageType(typeByte)

	m := &Message{Type: msgType}
	switch msgType {
	case MessageHandshakeRequest:
		version, err := c.readU32()
		if err != nil {
			return nil, err
		}
		m.HandshakeRequest = &HandshakeRequest{Version: version}
	case MessageHandshakeResponse:
		version, err := c.readU32()
		if err != nil {
			return nil, err
		}
		serverVersion, err := c.readStr()
		if err != nil {
			return nil, err
		}
		m.HandshakeResponse = &HandshakeResponse{Version: version, ServerVersion: serverVersion}
	case MessageAuthRequest:
		token, err := c.readStr()
		if err != nil {
			return nil, err
		}
		database, err := c.readOptStr()
		if err != nil {
			return nil, err
		}
		m.AuthRequest = &AuthRequest{Token: token, Database: database}
	case MessageAuthResponse:
		ok, err := c.readBool()
		if err != nil {
			return nil, err
		}
		sessionID, err := c.readStr()
		if err != nil {
			return nil, err
		}
		m.AuthResponse = &AuthResponse{OK: ok, SessionID: sessionID}
	case MessageQueryRequest:
		sql, err := c.readStr()
		if err != nil {
			return nil, err
		}
		m.QueryRequest = &QueryRequest{SQL: sql}
	case MessageQueryResponseSchema, MessageQueryResponseBatch:
		blob, err := c.readBytes()
		if err != nil {
			return nil, err
		}
		m.QueryResponseBatch = blob
	case MessageQueryComplete:
		rows, err := c.readI64()
		if err != nil {
			return nil, err
		}
		m.QueryComplete = &QueryComplete{RowsAffected: rows}
	case MessageError:
		code, err := c.readStr()
		if err != nil {
			return nil, err
		}
		message, err := c.readStr()
		if err != nil {
			return nil, err
		}
		m.Error = &ErrorMessage{Code: code, Message: message}
	default:
		return nil, fmt.Errorf("wire: decode: unknown message type 0x%02x: %w", typeByte, errInvalidFrame)
	}

	return m, nil
}

// cursor advances a read pointer over a byte slice, failing fast on short
// input instead of the source's raw (ptr, end) pointer-pair idiom.
type cursor struct {
	buf []byte
	pos int
}

func (c *cursor) remaining() int { return len(c.buf) - c.pos }

func (c *cursor) readU8() (uint8, error) {
	if c.remaining() < 1 {
		return 0, fmt.Errorf("wire: short read for u8: %w", errInvalidFrame)
	}
	v := c.buf[c.pos]
	c.pos++
	return v, nil
}

func (c *cursor) readBool() (bool, error) {
	v, err := c.readU8()
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

func (c *cursor) readU32() (uint32, error) {
	if c.remaining() < 4 {
		return 0, fmt.Errorf("wire: short read for u32: %w", errInvalidFrame)
	}
	v := binary.BigEndian.Uint32(c.buf[c.pos:])
	c.pos += 4
	return v, nil
}

func (c *cursor) readI64() (int64, error) {
	if c.remaining() < 8 {
		return 0, fmt.Errorf("wire: short read for i64: %w", errInvalidFrame)
	}
	v := int64(binary.BigEndian.Uint64(c.buf[c.pos:]))
	c.pos += 8
	return v, nil
}

func (c *cursor) readBytes() ([]byte, error) {
	n, err := c.readU32()
	if err != nil {
		return nil, err
	}
	if c.remaining() < int(n) {
		return nil, fmt.Errorf("wire: short read for bytes(%d): %w", n, errInvalidFrame)
	}
	v := make([]byte, n)
	copy(v, c.buf[c.pos:c.pos+int(n)])
	c.pos += int(n)
	return v, nil
}

func (c *cursor) readStr() (string, error) {
	b, err := c.readBytes()
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", fmt.Errorf("wire: string field is not valid UTF-8: %w", errInvalidFrame)
	}
	return string(b), nil
}

func (c *cursor) readOptStr() (*string, error) {
	present, err := c.readBool()
	if err != nil {
		return nil, err
	}
	if !present {
		return nil, nil
	}
	s, err := c.readStr()
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func appendU32(b []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(b, tmp[:]...)
}

func appendI64(b []byte, v int64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], uint64(v))
	return append(b, tmp[:]...)
}

func appendBool(b []byte, v bool) []byte {
	if v {
		return append(b, 1)
	}
	return append(b, 0)
}

func appendBytes(b []byte, v []byte) []byte {
	b = appendU32(b, uint32(len(v)))
	return append(b, v...)
}

func appendStr(b []byte, v string) []byte {
	return appendBytes(b, []byte(v))
}

func appendOptStr(b []byte, v *string) []byte {
	if v == nil {
		return appendBool(b, false)
	}
	b = appendBool(b, true)
	return appendStr(b, *v)
}

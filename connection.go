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

package cubesql

import (
	"context"

	"go.uber.org/zap"

	"github.com/borodark/adbc-driver-cube/internal/session"
)

// Connection is a single, non-shareable link to a Cube SQL server: one TCP
// socket, one wire.FramedTransport, one session.ClientSession driven through
// its state machine to Authenticated. Not safe for concurrent use.
type Connection struct {
	config *Config
	sess   *session.ClientSession
	log    *zap.Logger
}

// Open validates cfg, dials the server, performs the handshake, and
// authenticates, returning a Connection ready for Execute. On any failure
// the partially-opened socket is closed before returning.
func Open(ctx context.Context, config *Config) (*Connection, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	log := config.logger()

	sess, err := session.Dial(ctx, config.Host, config.Port, config.maxFrameSize(), config.DialTimeout, config.ReadTimeout, config.WriteTimeout)
	if err != nil {
		return nil, asDriverError(err)
	}

	if err := sess.Handshake(ctx); err != nil {
		return nil, asDriverError(err)
	}
	log.Debug("handshake complete", zap.String("server_version", sess.ServerVersion()))

	if err := sess.Authenticate(ctx, config.Token, config.Database); err != nil {
		return nil, asDriverError(err)
	}
	log.Info("connected", zap.String("host", config.Host), zap.Uint16("port", config.Port))

	return &Connection{config: config, sess: sess, log: log}, nil
}

// Close closes the underlying socket. Idempotent.
//
// Unlike a garbage-collected client, this driver does not rely on finalizers
// to release the socket — callers MUST call Close explicitly.
func (conn *Connection) Close() error {
	return asDriverError(conn.sess.Close())
}

// Statement creates a new statement bound to this connection.
func (conn *Connection) Statement(sql string) *Statement {
	return conn.newStatement(sql)
}

// Execute is shorthand for conn.Statement(sql).Execute(ctx).
func (conn *Connection) Execute(ctx context.Context, sql string) (*ResultSet, error) {
	return conn.Statement(sql).Execute(ctx)
}

// ServerVersion returns the version string learned during the handshake.
func (conn *Connection) ServerVersion() string {
	return conn.sess.ServerVersion()
}

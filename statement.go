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

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Statement represents a Cube SQL statement bound to a Connection, ready to
// execute. The wire protocol's execute_query is a single blocking round
// trip, so there is no separate submit/poll pair here — Execute sends the
// query and returns once the full result has arrived.
type Statement struct {
	conn *Connection
	sql  string

	// CorrelationID identifies this statement in log output; it has no wire
	// representation, the protocol carries no statement identifier.
	CorrelationID uuid.UUID
}

// newStatement creates a new statement with the given SQL text, bound to conn.
func (conn *Connection) newStatement(sql string) *Statement {
	return &Statement{conn: conn, sql: sql, CorrelationID: uuid.New()}
}

// Execute sends the statement and blocks until the server returns
// QueryComplete or Error, returning a ResultSet backed by the accumulated
// columnar-stream segments. ctx bounds the round trip; cancellation aborts
// the underlying connection.
func (s *Statement) Execute(ctx context.Context) (*ResultSet, error) {
	log := s.conn.log.With(zap.String("correlation_id", s.CorrelationID.String()))
	log.Debug("executing statement", zap.String("sql", s.sql))

	segments, err := s.conn.sess.ExecuteQuery(ctx, s.sql)
	if err != nil {
		log.Warn("statement failed", zap.Error(err))
		return nil, asDriverError(err)
	}

	rs, err := newResultSet(segments)
	if err != nil {
		return nil, err
	}
	log.Debug("statement complete", zap.Int("segments", len(segments)))
	return rs, nil
}

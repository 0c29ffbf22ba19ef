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

/*
Package cubesql provides a client driver for Cube SQL's native framed binary
protocol: handshake, token authentication, and query execution over a single
TCP connection, with results delivered as a little-endian columnar
interchange stream that this package decodes without any C dependency.

# Connect

Use Open to dial, handshake, and authenticate in one call:

	conn, err := cubesql.Open(ctx, &cubesql.Config{
		Host:  "localhost",
		Port:  6543,
		Token: "cube-token",
	})
	if err != nil {
		return err
	}
	defer conn.Close()

# Query data

Statement.Execute blocks until the server returns the full result:

	result, err := conn.Execute(ctx, "SELECT * FROM orders")
	if err != nil {
		return err
	}

	adapter, err := result.NewStreamAdapter()
	if err != nil {
		return err
	}
	defer adapter.Release()

	schema, err := adapter.GetSchema()
	if err != nil {
		return err
	}
	for {
		batch, err := adapter.GetNext()
		if err != nil {
			return err
		}
		if batch == nil {
			break
		}
		// use schema and batch
	}

Or materialize the whole result set as Arrow records via ResultSet.ToArrowRecords.
*/
package cubesql

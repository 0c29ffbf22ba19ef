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

package integration_tests

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"testing"

	"github.com/lucasepe/codename"
	"go.uber.org/goleak"

	cubesql "github.com/borodark/adbc-driver-cube"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// LoadConfig loads the connection configuration from CUBESQL_HOST/PORT/TOKEN
// environment variables. It returns nil if CUBESQL_HOST is unset, the signal
// integration tests use to skip themselves when no live server is configured.
func LoadConfig() *cubesql.Config {
	host := os.Getenv("CUBESQL_HOST")
	if host == "" {
		return nil
	}
	port, err := strconv.ParseUint(os.Getenv("CUBESQL_PORT"), 10, 16)
	if err != nil {
		return nil
	}
	return &cubesql.Config{
		Host:  host,
		Port:  uint16(port),
		Token: os.Getenv("CUBESQL_TOKEN"),
	}
}

// OptionEnabled returns true if the environment variable is set to a truthy value.
func OptionEnabled(key string) bool {
	value := os.Getenv(key)
	switch strings.ToLower(value) {
	case "1", "true", "y", "yes", "on":
		return true
	default:
		return false
	}
}

// GenerateTableName produces a readable, collision-resistant table name for
// tests that create and drop scratch tables against a live server.
func GenerateTableName() (string, error) {
	rng, err := codename.DefaultRNG()
	if err != nil {
		return "", err
	}
	tableName := strings.ReplaceAll(codename.Generate(rng, 10), "-", "_")
	return tableName, nil
}

// DropTable drops tableName and returns any error the server reports,
// including one for a table that does not exist.
func DropTable(ctx context.Context, conn *cubesql.Connection, tableName string) error {
	ident := cubesql.Identifier{Table: tableName}
	_, err := conn.Execute(ctx, fmt.Sprintf(`DROP TABLE %s`, ident))
	return err
}

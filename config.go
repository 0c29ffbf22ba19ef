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
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/borodark/adbc-driver-cube/internal/wire"
)

// Config defines the configuration for a connection to a Cube SQL server.
type Config struct {
	// Host is the server's hostname or IP address.
	Host string
	// Port is the server's TCP port.
	Port uint16
	// Token is the bearer token used for authentication.
	Token string
	// Database optionally selects a database at authentication time.
	Database *string

	// DialTimeout bounds the initial TCP connect. Zero means no timeout.
	DialTimeout time.Duration
	// ReadTimeout bounds each frame read. Zero means no timeout.
	ReadTimeout time.Duration
	// WriteTimeout bounds each frame write. Zero means no timeout.
	WriteTimeout time.Duration
	// MaxFrameSize caps the size of any single frame. Zero uses wire.DefaultMaxFrameSize (100 MiB).
	MaxFrameSize uint32

	// Logger receives structured diagnostic events. A nil Logger is treated as zap.NewNop().
	Logger *zap.Logger
}

// NewConfig builds a Config from the required fields and validates it
// immediately, returning an *Error with Kind InvalidArgument if host is
// empty, port is zero, or token is empty.
func NewConfig(host string, port uint16, token string) (*Config, error) {
	cfg := &Config{Host: host, Port: port, Token: token}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfigFromEnv builds a Config from CUBESQL_HOST, CUBESQL_PORT,
// CUBESQL_TOKEN, and the optional CUBESQL_DATABASE environment variables,
// then validates it the same way NewConfig does. It returns an error if a
// required variable is unset, CUBESQL_PORT does not parse as a uint16, or
// CUBESQL_PORT is "0".
func LoadConfigFromEnv() (*Config, error) {
	host := os.Getenv("CUBESQL_HOST")
	if host == "" {
		return nil, newError(InvalidArgument, "CUBESQL_HOST is not set")
	}
	portStr := os.Getenv("CUBESQL_PORT")
	if portStr == "" {
		return nil, newError(InvalidArgument, "CUBESQL_PORT is not set")
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return nil, &Error{Kind: InvalidArgument, Message: fmt.Sprintf("invalid CUBESQL_PORT %q", portStr), Cause: err}
	}
	token := os.Getenv("CUBESQL_TOKEN")
	if token == "" {
		return nil, newError(InvalidArgument, "CUBESQL_TOKEN is not set")
	}

	cfg := &Config{Host: host, Port: uint16(port), Token: token}
	if db := os.Getenv("CUBESQL_DATABASE"); db != "" {
		cfg.Database = &db
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// logger returns c.Logger, or a no-op logger if c is nil or c.Logger is unset.
func (c *Config) logger() *zap.Logger {
	if c == nil || c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

func (c *Config) maxFrameSize() uint32 {
	if c.MaxFrameSize == 0 {
		return wire.DefaultMaxFrameSize
	}
	return c.MaxFrameSize
}

// validate checks required fields, returning an *Error with Kind InvalidArgument on failure.
func (c *Config) validate() error {
	if c.Host == "" {
		return newError(InvalidArgument, "Config.Host must not be empty")
	}
	if c.Port == 0 {
		return newError(InvalidArgument, "Config.Port must not be zero")
	}
	if c.Token == "" {
		return newError(InvalidArgument, "Config.Token must not be empty")
	}
	return nil
}

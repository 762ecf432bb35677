// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package paddock

import (
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Config struct {
	logger           *slog.Logger
	promRegistry     prometheus.Registerer
	dataDir          string
	coordinatorUrl   string
	nodeId           string
	nodeEndpoint     string
	apiListenAddress string
	shutdownTimeout  time.Duration
}

func (c *Config) validate() error {
	if c.coordinatorUrl == "" {
		return errors.New("no coordinator URL defined")
	}
	if c.nodeId == "" {
		return errors.New("no node ID defined")
	}
	return nil
}

// ConfigOptionFunc is a type that represents functions that modify the node config
type ConfigOptionFunc func(*Config)

// NewConfig creates a new paddock config with the specified options
func NewConfig(opts ...ConfigOptionFunc) Config {
	c := Config{
		// Default logger will throw away logs
		// We do this so we don't have to add guards around every log operation
		logger: slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}
	// Apply options
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithLogger specifies the logger to use. This defaults to discarding log output
func WithLogger(logger *slog.Logger) ConfigOptionFunc {
	return func(c *Config) {
		c.logger = logger
	}
}

// WithPromRegistry specifies the Prometheus registry for metrics. This defaults to no metrics
func WithPromRegistry(registry prometheus.Registerer) ConfigOptionFunc {
	return func(c *Config) {
		c.promRegistry = registry
	}
}

// WithDataDir specifies the persistent data directory to use. The default is to store everything in memory
func WithDataDir(dataDir string) ConfigOptionFunc {
	return func(c *Config) {
		c.dataDir = dataDir
	}
}

// WithCoordinatorUrl specifies the base URL of the coordination service
func WithCoordinatorUrl(coordinatorUrl string) ConfigOptionFunc {
	return func(c *Config) {
		c.coordinatorUrl = coordinatorUrl
	}
}

// WithNodeId specifies this node's identity on the network
func WithNodeId(nodeId string) ConfigOptionFunc {
	return func(c *Config) {
		c.nodeId = nodeId
	}
}

// WithNodeEndpoint specifies this node's network endpoint, used when building circuit proposals
func WithNodeEndpoint(nodeEndpoint string) ConfigOptionFunc {
	return func(c *Config) {
		c.nodeEndpoint = nodeEndpoint
	}
}

// WithApiListenAddress specifies the listen address for the gameroom REST API. This defaults to the API being disabled
func WithApiListenAddress(listenAddress string) ConfigOptionFunc {
	return func(c *Config) {
		c.apiListenAddress = listenAddress
	}
}

// WithShutdownTimeout specifies the timeout for graceful shutdown. This defaults to 30s
func WithShutdownTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.shutdownTimeout = timeout
	}
}

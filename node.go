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

// Package paddock implements a membership client daemon that mirrors circuit
// proposal state from a coordination service into a local relational store
package paddock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/blinklabs-io/paddock/admin"
	"github.com/blinklabs-io/paddock/api"
	"github.com/blinklabs-io/paddock/client"
	"github.com/blinklabs-io/paddock/connmanager"
	"github.com/blinklabs-io/paddock/database"
	"github.com/blinklabs-io/paddock/event"
)

type Node struct {
	config       Config
	eventBus     *event.EventBus
	db           *database.Database
	applier      *admin.Applier
	connManager  *connmanager.ConnectionManager
	apiServer    *api.Server
	client       *client.Client
	done         chan struct{}
	shutdownOnce sync.Once
}

func New(cfg Config) (*Node, error) {
	eventBus := event.NewEventBus(cfg.promRegistry, cfg.logger)
	n := &Node{
		config:   cfg,
		eventBus: eventBus,
		done:     make(chan struct{}),
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return n, nil
}

// Client returns the coordination service REST client
func (n *Node) Client() *client.Client {
	return n.client
}

// Database returns the proposal store
func (n *Node) Database() *database.Database {
	return n.db
}

func (n *Node) Run() error {
	// Load database
	db, err := database.New(
		&database.Config{
			DataDir: n.config.dataDir,
			Logger:  n.config.logger,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	n.db = db
	// Coordination service REST client
	n.client = client.NewClient(n.config.coordinatorUrl)
	// Event applier
	n.applier = admin.NewApplier(
		admin.ApplierConfig{
			Logger:       n.config.logger,
			Database:     n.db,
			EventBus:     n.eventBus,
			PromRegistry: n.config.promRegistry,
		},
	)
	// Connection manager for the admin event subscription
	connManager, err := connmanager.New(
		connmanager.ConnectionManagerConfig{
			Logger:         n.config.logger,
			EventBus:       n.eventBus,
			Applier:        n.applier,
			CoordinatorURL: n.config.coordinatorUrl,
			PromRegistry:   n.config.promRegistry,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to create connection manager: %w", err)
	}
	n.connManager = connManager
	// Log session lifecycle from the event bus
	n.eventBus.SubscribeFunc(
		connmanager.SessionClosedEventType,
		func(evt event.Event) {
			if data, ok := evt.Data.(connmanager.SessionClosedEvent); ok {
				n.config.logger.Debug(
					"subscription session closed",
					"component", "node",
					"reconnect", data.Reconnect,
				)
			}
		},
	)
	if err := n.connManager.Start(); err != nil {
		return err
	}
	// Gameroom REST API
	if n.config.apiListenAddress != "" {
		apiServer, err := api.NewServer(
			api.ServerConfig{
				Logger:        n.config.logger,
				Database:      n.db,
				PromRegistry:  n.config.promRegistry,
				ListenAddress: n.config.apiListenAddress,
				NodeID:        n.config.nodeId,
				NodeEndpoint:  n.config.nodeEndpoint,
			},
		)
		if err != nil {
			return fmt.Errorf("failed to create API server: %w", err)
		}
		n.apiServer = apiServer
		if err := n.apiServer.Start(); err != nil {
			return err
		}
	}
	// The node is considered stopped once the subscription loops exit,
	// whether from Stop or from a fatal session error
	go func() {
		n.connManager.Wait()
		if err := n.Stop(); err != nil {
			n.config.logger.Error(
				"shutdown error",
				"error", err,
			)
		}
	}()

	// Wait for shutdown signal
	<-n.done
	return nil
}

func (n *Node) Stop() error {
	var err error
	n.shutdownOnce.Do(func() {
		err = n.shutdown()
	})
	return err
}

func (n *Node) shutdown() error {
	// Create shutdown context with timeout (default 30s if not configured)
	shutdownTimeout := 30 * time.Second
	if n.config.shutdownTimeout > 0 {
		shutdownTimeout = n.config.shutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var err error

	n.config.logger.Debug("starting graceful shutdown")

	// Phase 1: stop accepting new work
	if n.apiServer != nil {
		if stopErr := n.apiServer.Stop(ctx); stopErr != nil {
			err = errors.Join(
				err,
				fmt.Errorf("API server shutdown: %w", stopErr),
			)
		}
	}

	// Phase 2: wind down the admin event subscription
	if n.connManager != nil {
		if stopErr := n.connManager.Stop(); stopErr != nil {
			err = errors.Join(
				err,
				fmt.Errorf("connection manager shutdown: %w", stopErr),
			)
		}
		select {
		case <-n.connManager.Done():
		case <-ctx.Done():
			err = errors.Join(
				err,
				errors.New("timed out waiting for subscription loops to exit"),
			)
		}
	}

	// Phase 3: close the database
	if n.db != nil {
		if closeErr := n.db.Close(); closeErr != nil {
			err = errors.Join(
				err,
				fmt.Errorf("database close: %w", closeErr),
			)
		}
	}

	if n.eventBus != nil {
		n.eventBus.Stop()
	}

	n.config.logger.Debug("graceful shutdown complete")
	close(n.done)
	return err
}

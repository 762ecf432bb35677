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

// Package connmanager maintains the durable websocket subscription to the
// coordination service's admin event stream, reconnecting across disconnects
// and coordinating cooperative shutdown between its loops
package connmanager

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blinklabs-io/paddock/admin"
	"github.com/blinklabs-io/paddock/event"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// defaultInvalidMessageThreshold is the number of consecutive invalid
	// messages tolerated on a session before it disconnects
	defaultInvalidMessageThreshold = 10

	// defaultReconnectWait is the pause before redialing after a session ends
	defaultReconnectWait = 10 * time.Second

	// defaultPollInterval is how often blocked receives re-check the running
	// flag
	defaultPollInterval = 1 * time.Second
)

// SessionClosedEventType is emitted on the event bus each time a streaming
// session ends
const SessionClosedEventType event.EventType = "connmanager.session-closed"

// SessionClosedEvent carries whether the manager will attempt to reconnect
type SessionClosedEvent struct {
	Reconnect bool
}

// EventApplier applies a decoded admin event to durable storage
type EventApplier interface {
	Apply(admin.AdminEvent) error
}

// ConnectionManagerConfig provides the configuration for the connection
// manager
type ConnectionManagerConfig struct {
	Logger       *slog.Logger
	EventBus     *event.EventBus
	Applier      EventApplier
	PromRegistry prometheus.Registerer
	// CoordinatorURL is the HTTP(S) base URL of the coordination service
	CoordinatorURL string
	// ReconnectWait overrides the pause before redialing when non-zero
	ReconnectWait time.Duration
	// PollInterval overrides the shutdown-aware receive interval when
	// non-zero
	PollInterval time.Duration
	// InvalidMessageThreshold overrides the per-session invalid message
	// tolerance when non-zero
	InvalidMessageThreshold int
}

// ConnectionManager runs two cooperating loops: an execution loop that runs
// one streaming session at a time, and a manager loop that delivers pending
// close frames and decides whether to reconnect
type ConnectionManager struct {
	config           ConnectionManagerConfig
	logger           *slog.Logger
	eventBus         *event.EventBus
	applier          EventApplier
	metrics          *connectionManagerMetrics
	running          atomic.Bool
	reconnect        atomic.Bool
	sessionCh        chan struct{}
	sinkCh           chan *Sink
	closeMsgCh       chan closeMessage
	doneChan         chan struct{}
	startOnce        sync.Once
	stopOnce         sync.Once
	wg               sync.WaitGroup
	reconnectWait    time.Duration
	pollInterval     time.Duration
	invalidThreshold int
}

type connectionManagerMetrics struct {
	sessionsStarted prometheus.Counter
	reconnects      prometheus.Counter
	eventsReceived  prometheus.Counter
	invalidMessages prometheus.Counter
}

func (m *connectionManagerMetrics) init(promRegistry prometheus.Registerer) {
	promFactory := promauto.With(promRegistry)
	m.sessionsStarted = promFactory.NewCounter(prometheus.CounterOpts{
		Name: "paddock_connmanager_sessions_started_total",
		Help: "total number of streaming sessions established",
	})
	m.reconnects = promFactory.NewCounter(prometheus.CounterOpts{
		Name: "paddock_connmanager_reconnects_total",
		Help: "total number of reconnect attempts",
	})
	m.eventsReceived = promFactory.NewCounter(prometheus.CounterOpts{
		Name: "paddock_connmanager_events_received_total",
		Help: "total number of admin events received",
	})
	m.invalidMessages = promFactory.NewCounter(prometheus.CounterOpts{
		Name: "paddock_connmanager_invalid_messages_total",
		Help: "total number of invalid messages received",
	})
}

// New creates a new connection manager with the provided configuration
func New(cfg ConnectionManagerConfig) (*ConnectionManager, error) {
	if cfg.Applier == nil {
		return nil, fmt.Errorf("no event applier provided")
	}
	if cfg.CoordinatorURL == "" {
		return nil, fmt.Errorf("no coordinator URL provided")
	}
	c := &ConnectionManager{
		config:           cfg,
		eventBus:         cfg.EventBus,
		applier:          cfg.Applier,
		sessionCh:        make(chan struct{}, 1),
		sinkCh:           make(chan *Sink, 1),
		closeMsgCh:       make(chan closeMessage, 8),
		doneChan:         make(chan struct{}),
		reconnectWait:    defaultReconnectWait,
		pollInterval:     defaultPollInterval,
		invalidThreshold: defaultInvalidMessageThreshold,
	}
	if cfg.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		c.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	} else {
		c.logger = cfg.Logger.With("component", "connmanager")
	}
	if cfg.ReconnectWait > 0 {
		c.reconnectWait = cfg.ReconnectWait
	}
	if cfg.PollInterval > 0 {
		c.pollInterval = cfg.PollInterval
	}
	if cfg.InvalidMessageThreshold > 0 {
		c.invalidThreshold = cfg.InvalidMessageThreshold
	}
	if cfg.PromRegistry != nil {
		c.metrics = &connectionManagerMetrics{}
		c.metrics.init(cfg.PromRegistry)
	}
	return c, nil
}

// Start launches the execution and manager loops and requests the initial
// session
func (c *ConnectionManager) Start() error {
	c.startOnce.Do(func() {
		c.running.Store(true)
		// Initial session request
		c.sessionCh <- struct{}{}
		c.wg.Add(2)
		go c.executionLoop()
		go c.managerLoop()
		go func() {
			c.wg.Wait()
			close(c.doneChan)
		}()
	})
	return nil
}

// Stop clears the running flag and enqueues the shutdown close frame. Both
// loops wind down cooperatively; use Wait to block until they have.
func (c *ConnectionManager) Stop() error {
	var err error
	c.stopOnce.Do(func() {
		c.logger.Debug("shutting down connection manager")
		// Enqueue the close frame before clearing the flag so the manager
		// loop delivers it rather than exiting first
		select {
		case c.closeMsgCh <- closeMessage{
			code:   websocket.CloseNormalClosure,
			reason: closeReasonShutdown,
		}:
		default:
			err = fmt.Errorf("unable to enqueue shutdown close message")
		}
		c.running.Store(false)
	})
	return err
}

// Wait blocks until both loops have exited
func (c *ConnectionManager) Wait() {
	<-c.doneChan
}

// Done returns a channel closed once both loops have exited
func (c *ConnectionManager) Done() <-chan struct{} {
	return c.doneChan
}

// recv waits for a value on ch, re-checking the running flag at the poll
// interval so shutdown is never blocked behind an idle channel. A value
// already queued is delivered even after the flag clears, which lets the
// shutdown close frame through.
func recv[T any](
	ch <-chan T,
	running *atomic.Bool,
	pollInterval time.Duration,
) (T, bool) {
	for {
		select {
		case v := <-ch:
			return v, true
		default:
		}
		if !running.Load() {
			var zero T
			return zero, false
		}
		timer := time.NewTimer(pollInterval)
		select {
		case v := <-ch:
			timer.Stop()
			return v, true
		case <-timer.C:
		}
	}
}

// executionLoop waits for session requests and runs one streaming session at
// a time until the running flag clears
func (c *ConnectionManager) executionLoop() {
	defer c.wg.Done()
	for {
		_, ok := recv(c.sessionCh, &c.running, c.pollInterval)
		if !ok || !c.running.Load() {
			break
		}
		sess := &session{
			logger:           c.logger,
			applier:          c.applier,
			metrics:          c.metrics,
			running:          &c.running,
			reconnect:        &c.reconnect,
			sinkCh:           c.sinkCh,
			closeMsgCh:       c.closeMsgCh,
			coordinatorUrl:   c.config.CoordinatorURL,
			invalidThreshold: c.invalidThreshold,
		}
		err := sess.run()
		if c.eventBus != nil {
			c.eventBus.Publish(
				SessionClosedEventType,
				event.NewEvent(
					SessionClosedEventType,
					SessionClosedEvent{
						Reconnect: c.reconnect.Load(),
					},
				),
			)
		}
		if err != nil {
			c.logger.Error(
				"streaming session failed",
				"error", err,
			)
			// Fatal session error brings down the sibling loop as well
			c.running.Store(false)
			break
		}
	}
	c.logger.Debug("execution loop exited")
}

// managerLoop receives the writable half of each session, delivers the
// pending close frame, and decides whether to redial
func (c *ConnectionManager) managerLoop() {
	defer c.wg.Done()
	for {
		sink, ok := recv(c.sinkCh, &c.running, c.pollInterval)
		if !ok {
			break
		}
		if sink != nil {
			msg, ok := recv(c.closeMsgCh, &c.running, c.pollInterval)
			if !ok {
				sink.Close()
				break
			}
			if err := sink.SendClose(msg); err != nil {
				// Shutdown proceeds even when the close frame can't be
				// delivered
				c.logger.Warn(
					"unable to send close message",
					"error", err,
				)
			}
			sink.Close()
		}
		if !c.running.Load() || !c.reconnect.Load() {
			break
		}
		c.logger.Debug(
			"reconnecting to admin event stream",
			"wait", c.reconnectWait.String(),
		)
		time.Sleep(c.reconnectWait)
		if !c.running.Load() {
			break
		}
		c.reconnect.Store(false)
		if c.metrics != nil {
			c.metrics.reconnects.Inc()
		}
		c.sessionCh <- struct{}{}
	}
	// Make sure the sibling loop also winds down if we exited on our own
	c.running.Store(false)
	c.logger.Debug("manager loop exited")
}

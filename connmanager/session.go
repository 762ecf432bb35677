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

package connmanager

import (
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/blinklabs-io/paddock/admin"
	"github.com/gorilla/websocket"
)

const (
	// subscribePath is the coordination service's admin event subscription
	// endpoint
	subscribePath = "/ws/admin/register/gameroom"

	// closeWriteTimeout bounds delivery of an outgoing close frame
	closeWriteTimeout = 10 * time.Second
)

// Close reasons sent by this client
const (
	closeReasonShutdown        = "The client received shutdown signal"
	closeReasonInvalidMessages = "Received too many invalid messages"
)

// closeMessage is a pending websocket close frame waiting to be delivered by
// the connection manager
type closeMessage struct {
	reason string
	code   int
}

// Sink is the writable half of an active session's connection. Ownership
// transfers to the connection manager exactly once per session; the manager
// is the only writer afterward.
type Sink struct {
	conn *websocket.Conn
}

func newSink(conn *websocket.Conn) *Sink {
	return &Sink{conn: conn}
}

// SendClose delivers a close control frame to the remote side
func (s *Sink) SendClose(msg closeMessage) error {
	return s.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(msg.code, msg.reason),
		time.Now().Add(closeWriteTimeout),
	)
}

// Close tears down the underlying connection
func (s *Sink) Close() error {
	return s.conn.Close()
}

// session owns one physical streaming connection to the coordination service:
// the upgrade handshake, the hand-off of the writable half, and the read loop
type session struct {
	logger           *slog.Logger
	applier          EventApplier
	metrics          *connectionManagerMetrics
	running          *atomic.Bool
	reconnect        *atomic.Bool
	sinkCh           chan<- *Sink
	closeMsgCh       chan<- closeMessage
	coordinatorUrl   string
	invalidThreshold int
}

// websocketUrl converts the coordination service's HTTP base URL into the
// websocket URL for the admin event subscription
func websocketUrl(baseUrl string) string {
	wsUrl := baseUrl
	if after, ok := strings.CutPrefix(wsUrl, "https://"); ok {
		wsUrl = "wss://" + after
	} else if after, ok := strings.CutPrefix(wsUrl, "http://"); ok {
		wsUrl = "ws://" + after
	}
	return wsUrl + subscribePath
}

// run dials the subscription endpoint and drives the read loop until the
// running flag clears, the invalid-message threshold is exceeded, or the
// stream fails. A non-nil return is fatal to the owning loop; transport
// failures instead set the reconnect flag and return nil.
func (s *session) run() error {
	conn, resp, err := websocket.DefaultDialer.Dial(
		websocketUrl(s.coordinatorUrl),
		nil,
	)
	if err != nil {
		// Covers both a refused upgrade and an unreachable service
		status := ""
		if resp != nil {
			status = resp.Status
		}
		s.logger.Error(
			"websocket handshake failed",
			"status", status,
			"error", err,
		)
		s.reconnect.Store(true)
		// Hand off an empty sink so the connection manager can proceed to
		// its reconnect decision
		s.sinkCh <- nil
		return nil
	}
	if s.metrics != nil {
		s.metrics.sessionsStarted.Inc()
	}
	s.logger.Info(
		"subscribed to admin events",
		"url", s.coordinatorUrl,
	)
	// Hand off the writable half for close coordination. Ownership of the
	// write side belongs to the connection manager from here on.
	s.sinkCh <- newSink(conn)
	invalidCount := 0
	conn.SetPingHandler(func(data string) error {
		s.logger.Debug("received ping")
		invalidCount = 0
		return conn.WriteControl(
			websocket.PongMessage,
			[]byte(data),
			time.Now().Add(closeWriteTimeout),
		)
	})
	conn.SetCloseHandler(func(code int, text string) error {
		// The remote side ended the subscription. This is not an error, but
		// it does mean the whole client should wind down.
		s.logger.Info(
			"received close message",
			"code", code,
			"reason", text,
		)
		invalidCount = 0
		s.running.Store(false)
		return nil
	})
	for s.running.Load() {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if !s.running.Load() {
				// Close frame handled or shutdown in progress
				return nil
			}
			s.logger.Error(
				"error reading from admin event stream",
				"error", err,
			)
			s.reconnect.Store(true)
			// Unblocks the manager loop; delivery will fail on a dead
			// connection, which the manager tolerates
			s.closeMsgCh <- closeMessage{
				code:   websocket.CloseGoingAway,
				reason: "Connection error",
			}
			return nil
		}
		switch msgType {
		case websocket.TextMessage:
			evt, err := admin.DecodeEvent(data)
			if err != nil {
				s.logger.Warn(
					"failed to decode admin event",
					"error", err,
				)
				invalidCount++
				if s.metrics != nil {
					s.metrics.invalidMessages.Inc()
				}
			} else {
				invalidCount = 0
				if s.metrics != nil {
					s.metrics.eventsReceived.Inc()
				}
				if err := s.applier.Apply(evt); err != nil {
					// Dropping a network-confirmed event would desynchronize
					// local state, so an apply failure ends the session
					return fmt.Errorf(
						"failed to apply admin event: %w",
						err,
					)
				}
			}
		default:
			s.logger.Error(
				"received invalid message",
				"type", msgType,
			)
			invalidCount++
			if s.metrics != nil {
				s.metrics.invalidMessages.Inc()
			}
		}
		if invalidCount > s.invalidThreshold {
			s.logger.Warn(
				"received too many invalid messages from admin event stream, disconnecting",
			)
			s.reconnect.Store(true)
			s.closeMsgCh <- closeMessage{
				code:   websocket.CloseUnsupportedData,
				reason: closeReasonInvalidMessages,
			}
			return nil
		}
	}
	return nil
}

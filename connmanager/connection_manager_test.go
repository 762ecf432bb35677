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

package connmanager_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/blinklabs-io/paddock/admin"
	"github.com/blinklabs-io/paddock/connmanager"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type recordingApplier struct {
	events chan admin.AdminEvent
	err    error
}

func newRecordingApplier() *recordingApplier {
	return &recordingApplier{
		events: make(chan admin.AdminEvent, 16),
	}
}

func (r *recordingApplier) Apply(evt admin.AdminEvent) error {
	if r.err != nil {
		return r.err
	}
	r.events <- evt
	return nil
}

type closeFrame struct {
	code   int
	reason string
}

// testEventServer upgrades connections on the admin subscription path and
// reports each connection and received close frame on channels
type testEventServer struct {
	server   *httptest.Server
	upgrader websocket.Upgrader
	conns    chan *websocket.Conn
	closes   chan closeFrame
}

func newTestEventServer(t *testing.T) *testEventServer {
	t.Helper()
	s := &testEventServer{
		conns:  make(chan *websocket.Conn, 4),
		closes: make(chan closeFrame, 4),
	}
	s.server = httptest.NewServer(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasSuffix(r.URL.Path, "/ws/admin/register/gameroom") {
				http.NotFound(w, r)
				return
			}
			conn, err := s.upgrader.Upgrade(w, r, nil)
			if err != nil {
				return
			}
			s.conns <- conn
			go func() {
				for {
					_, _, err := conn.ReadMessage()
					if err != nil {
						var closeErr *websocket.CloseError
						if errors.As(err, &closeErr) {
							s.closes <- closeFrame{
								code:   closeErr.Code,
								reason: closeErr.Text,
							}
						}
						conn.Close()
						return
					}
				}
			}()
		}),
	)
	return s
}

// Close shuts the server down; tests call it before goroutine leak checks run
func (s *testEventServer) Close() {
	s.server.Close()
}

func (s *testEventServer) waitConn(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-s.conns:
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for client connection")
		return nil
	}
}

func (s *testEventServer) waitClose(t *testing.T) closeFrame {
	t.Helper()
	select {
	case frame := <-s.closes:
		return frame
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for close frame")
		return closeFrame{}
	}
}

func waitDone(t *testing.T, c *connmanager.ConnectionManager) {
	t.Helper()
	select {
	case <-c.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for loops to exit")
	}
}

func TestSessionAppliesEvents(t *testing.T) {
	defer goleak.VerifyNone(t)

	srv := newTestEventServer(t)
	defer srv.Close()
	applier := newRecordingApplier()
	cm, err := connmanager.New(connmanager.ConnectionManagerConfig{
		Applier:        applier,
		CoordinatorURL: srv.server.URL,
		PollInterval:   20 * time.Millisecond,
	})
	require.NoError(t, err)
	require.NoError(t, cm.Start())

	conn := srv.waitConn(t)
	evtData, err := admin.EncodeEvent(
		admin.ProposalSubmitted{
			Proposal: admin.CircuitProposal{
				ProposalType: "Create",
				CircuitID:    "gameroom::alpha-node-000::beta-node-000::x1",
				Requester:    "alpha-node-000",
			},
		},
	)
	require.NoError(t, err)
	require.NoError(
		t,
		conn.WriteMessage(websocket.TextMessage, evtData),
	)

	select {
	case evt := <-applier.events:
		submitted, ok := evt.(admin.ProposalSubmitted)
		require.True(t, ok)
		assert.Equal(
			t,
			"gameroom::alpha-node-000::beta-node-000::x1",
			submitted.Proposal.CircuitID,
		)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for applied event")
	}

	require.NoError(t, cm.Stop())
	frame := srv.waitClose(t)
	assert.Equal(t, websocket.CloseNormalClosure, frame.code)
	assert.Equal(t, "The client received shutdown signal", frame.reason)
	waitDone(t, cm)
}

func TestSessionInvalidMessagesTriggerReconnect(t *testing.T) {
	defer goleak.VerifyNone(t)

	srv := newTestEventServer(t)
	defer srv.Close()
	applier := newRecordingApplier()
	cm, err := connmanager.New(connmanager.ConnectionManagerConfig{
		Applier:                 applier,
		CoordinatorURL:          srv.server.URL,
		PollInterval:            20 * time.Millisecond,
		ReconnectWait:           50 * time.Millisecond,
		InvalidMessageThreshold: 3,
	})
	require.NoError(t, err)
	require.NoError(t, cm.Start())

	conn := srv.waitConn(t)
	for range 4 {
		require.NoError(
			t,
			conn.WriteMessage(
				websocket.TextMessage,
				[]byte("not an admin event"),
			),
		)
	}

	frame := srv.waitClose(t)
	assert.Equal(t, websocket.CloseUnsupportedData, frame.code)
	assert.Equal(t, "Received too many invalid messages", frame.reason)

	// The manager redials the same endpoint after the backoff
	srv.waitConn(t)
	assert.Empty(t, applier.events)

	require.NoError(t, cm.Stop())
	waitDone(t, cm)
}

func TestStopWithoutTraffic(t *testing.T) {
	defer goleak.VerifyNone(t)

	srv := newTestEventServer(t)
	defer srv.Close()
	cm, err := connmanager.New(connmanager.ConnectionManagerConfig{
		Applier:        newRecordingApplier(),
		CoordinatorURL: srv.server.URL,
		PollInterval:   20 * time.Millisecond,
	})
	require.NoError(t, err)
	require.NoError(t, cm.Start())
	srv.waitConn(t)

	require.NoError(t, cm.Stop())
	waitDone(t, cm)
}

func TestFatalApplyErrorStopsLoops(t *testing.T) {
	defer goleak.VerifyNone(t)

	srv := newTestEventServer(t)
	defer srv.Close()
	applier := newRecordingApplier()
	applier.err = errors.New("store unavailable")
	cm, err := connmanager.New(connmanager.ConnectionManagerConfig{
		Applier:        applier,
		CoordinatorURL: srv.server.URL,
		PollInterval:   20 * time.Millisecond,
	})
	require.NoError(t, err)
	require.NoError(t, cm.Start())

	conn := srv.waitConn(t)
	evtData, err := admin.EncodeEvent(
		admin.ProposalSubmitted{
			Proposal: admin.CircuitProposal{
				CircuitID: "gameroom::alpha-node-000::beta-node-000::x2",
			},
		},
	)
	require.NoError(t, err)
	require.NoError(
		t,
		conn.WriteMessage(websocket.TextMessage, evtData),
	)

	// Both loops wind down on their own without Stop being called
	waitDone(t, cm)
}

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

// Package api serves the gameroom REST API used by application clients to
// build circuit proposals and inspect recorded proposal state
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/blinklabs-io/paddock/database"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ServerConfig provides the configuration for the API server
type ServerConfig struct {
	Logger       *slog.Logger
	Database     *database.Database
	PromRegistry prometheus.Registerer
	// ListenAddress is the host:port to serve the API on
	ListenAddress string
	// NodeID is this node's identity on the network
	NodeID string
	// NodeEndpoint is this node's network endpoint, appended to proposed
	// circuit member lists
	NodeEndpoint string
}

// Server is the gameroom REST API server
type Server struct {
	config     ServerConfig
	logger     *slog.Logger
	db         *database.Database
	metrics    *apiMetrics
	httpServer *http.Server
	mu         sync.Mutex
}

type apiMetrics struct {
	requestsTotal *prometheus.CounterVec
}

func (m *apiMetrics) init(promRegistry prometheus.Registerer) {
	promFactory := promauto.With(promRegistry)
	m.requestsTotal = promFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paddock_api_requests_total",
			Help: "total number of API requests by route and status",
		},
		[]string{"route", "status"},
	)
}

// NewServer creates a new API server instance. Returns an error if required
// configuration fields are missing.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Database == nil {
		return nil, errors.New("no database provided")
	}
	if cfg.NodeID == "" {
		return nil, errors.New("no node ID provided")
	}
	s := &Server{
		config: cfg,
		db:     cfg.Database,
	}
	if cfg.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		s.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	} else {
		s.logger = cfg.Logger.With("component", "api")
	}
	if cfg.PromRegistry != nil {
		s.metrics = &apiMetrics{}
		s.metrics.init(cfg.PromRegistry)
	}
	return s, nil
}

// Router builds the API route table
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/gamerooms/propose", s.handleProposeGameroom).
		Methods(http.MethodPost)
	router.HandleFunc("/proposals", s.handleListProposals).
		Methods(http.MethodGet)
	router.HandleFunc("/proposals/{circuitId}", s.handleGetProposal).
		Methods(http.MethodGet)
	return router
}

// Start starts the HTTP server in a background goroutine
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.httpServer != nil {
		return errors.New("server already started")
	}
	server := &http.Server{
		Addr:              s.config.ListenAddress,
		Handler:           s.Router(),
		ReadHeaderTimeout: 60 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen for API server: %w", err)
	}
	s.httpServer = server
	go func() {
		if err := server.Serve(ln); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			s.logger.Error(
				"API server error",
				"error", err,
			)
		}
	}()
	s.logger.Info(
		"API listener started on " + s.config.ListenAddress,
	)
	return nil
}

// Stop gracefully shuts down the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.httpServer = nil
	s.mu.Unlock()
	if srv != nil {
		s.logger.Debug("shutting down API server")
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown API server: %w", err)
		}
	}
	return nil
}

func (s *Server) countRequest(route string, status int) {
	if s.metrics != nil {
		s.metrics.requestsTotal.WithLabelValues(
			route,
			fmt.Sprintf("%d", status),
		).Inc()
	}
}

// writeData writes a successful JSON response wrapped in a data envelope
func (s *Server) writeData(
	w http.ResponseWriter,
	route string,
	payload any,
) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(
		map[string]any{"data": payload},
	); err != nil {
		s.logger.Error(
			"failed to write API response",
			"error", err,
		)
	}
	s.countRequest(route, http.StatusOK)
}

// writeError writes a JSON error response
func (s *Server) writeError(
	w http.ResponseWriter,
	route string,
	status int,
	message string,
) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(
		map[string]any{"error": message},
	); err != nil {
		s.logger.Error(
			"failed to write API error response",
			"error", err,
		)
	}
	s.countRequest(route, status)
}

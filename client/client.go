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

// Package client is an HTTP client for the coordination service's admin REST
// API
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/blinklabs-io/paddock/admin"
)

// Client is an HTTP client for the coordination service's admin REST API.
type Client struct {
	coordinatorURL string
	httpClient     *http.Client
}

// ClientOption is a functional option for configuring a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom *http.Client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient creates a new admin API client. The coordinatorURL should be the
// base URL of the coordination service (e.g., "http://localhost:8085").
func NewClient(
	coordinatorURL string,
	opts ...ClientOption,
) *Client {
	c := &Client{
		coordinatorURL: strings.TrimRight(coordinatorURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SubmitVote sends a signed ballot for a pending circuit proposal.
// Corresponds to POST /admin/vote. The service acknowledges acceptance with
// HTTP 202; any other status is an error carrying the response body.
func (c *Client) SubmitVote(
	ctx context.Context,
	vote *admin.CircuitProposalVote,
) error {
	payload, err := json.Marshal(vote)
	if err != nil {
		return fmt.Errorf("encoding vote: %w", err)
	}
	if err := c.doPost(
		ctx,
		c.coordinatorURL+"/admin/vote",
		"application/json",
		payload,
	); err != nil {
		return fmt.Errorf("submitting vote: %w", err)
	}
	return nil
}

// SubmitCircuitPayload sends a signed circuit management payload.
// Corresponds to POST /admin/submit.
func (c *Client) SubmitCircuitPayload(
	ctx context.Context,
	payload []byte,
) error {
	if err := c.doPost(
		ctx,
		c.coordinatorURL+"/admin/submit",
		"application/octet-stream",
		payload,
	); err != nil {
		return fmt.Errorf("submitting circuit payload: %w", err)
	}
	return nil
}

func (c *Client) doPost(
	ctx context.Context,
	reqURL string,
	contentType string,
	payload []byte,
) error {
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		reqURL,
		bytes.NewReader(payload),
	)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf(
			"unexpected status %d: %s",
			resp.StatusCode,
			strings.TrimSpace(string(body)),
		)
	}
	return nil
}

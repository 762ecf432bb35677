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

package client_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/blinklabs-io/paddock/admin"
	"github.com/blinklabs-io/paddock/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProposalVote() *admin.CircuitProposalVote {
	return &admin.CircuitProposalVote{
		Ballot: admin.Ballot{
			CircuitID:   "gameroom::alpha-node-000::beta-node-000::abc123",
			CircuitHash: "8cd2c2b185ce294c0f1d1a5f2c05db12",
			Vote:        "Accept",
		},
		BallotSignature: []byte{0xde, 0xad, 0xbe, 0xef},
		SignerPublicKey: []byte{0x01, 0x02, 0x03},
	}
}

func TestSubmitVote(t *testing.T) {
	var gotPath string
	var gotVote admin.CircuitProposalVote
	srv := httptest.NewServer(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(
				t,
				"application/json",
				r.Header.Get("Content-Type"),
			)
			require.NoError(
				t,
				json.NewDecoder(r.Body).Decode(&gotVote),
			)
			w.WriteHeader(http.StatusAccepted)
		}),
	)
	defer srv.Close()

	c := client.NewClient(srv.URL)
	vote := testProposalVote()
	require.NoError(t, c.SubmitVote(context.Background(), vote))
	assert.Equal(t, "/admin/vote", gotPath)
	assert.Equal(t, *vote, gotVote)
}

func TestSubmitVoteRejected(t *testing.T) {
	srv := httptest.NewServer(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte("invalid ballot signature"))
		}),
	)
	defer srv.Close()

	c := client.NewClient(srv.URL)
	err := c.SubmitVote(context.Background(), testProposalVote())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Contains(t, err.Error(), "invalid ballot signature")
}

func TestSubmitCircuitPayload(t *testing.T) {
	payload := []byte{0x01, 0x02, 0x03, 0x04}
	var gotBody []byte
	srv := httptest.NewServer(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/admin/submit", r.URL.Path)
			var err error
			gotBody, err = io.ReadAll(r.Body)
			require.NoError(t, err)
			w.WriteHeader(http.StatusAccepted)
		}),
	)
	defer srv.Close()

	c := client.NewClient(srv.URL)
	require.NoError(
		t,
		c.SubmitCircuitPayload(context.Background(), payload),
	)
	assert.Equal(t, payload, gotBody)
}

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

package admin_test

import (
	"testing"

	"github.com/blinklabs-io/paddock/admin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCircuitProposal() admin.CircuitProposal {
	return admin.CircuitProposal{
		ProposalType: "Create",
		CircuitID:    "gameroom::alpha-node-000::beta-node-000::abc123",
		CircuitHash:  "8cd2c2b185ce294c0f1d1a5f2c05db12",
		Requester:    "alpha-node-000",
		Circuit: admin.CreateCircuit{
			CircuitID: "gameroom::alpha-node-000::beta-node-000::abc123",
			Members: []admin.CircuitNode{
				{
					NodeID:   "alpha-node-000",
					Endpoint: "tls://alpha:8044",
				},
				{
					NodeID:   "beta-node-000",
					Endpoint: "tls://beta:8044",
				},
			},
			Roster: []admin.CircuitService{
				{
					ServiceID:    "gameroom_alpha-node-000",
					ServiceType:  "scabbard",
					AllowedNodes: []string{"alpha-node-000"},
				},
			},
			AuthorizationType:     "Trust",
			Persistence:           "Any",
			Routes:                "Any",
			CircuitManagementType: "gameroom",
			ApplicationMetadata:   []byte(`{"alias":"my gameroom"}`),
		},
	}
}

func TestDecodeEventEmpty(t *testing.T) {
	_, err := admin.DecodeEvent(nil)
	require.ErrorIs(t, err, admin.ErrEmptyMessage)
	_, err = admin.DecodeEvent([]byte{})
	require.ErrorIs(t, err, admin.ErrEmptyMessage)
}

func TestDecodeEventMalformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", "this is not json"},
		{"empty object", "{}"},
		{
			"multiple tags",
			`{"ProposalSubmitted": {}, "ProposalVote": {}}`,
		},
		{"unknown tag", `{"CircuitDestroyed": {}}`},
		{
			"wrong payload shape",
			`{"ProposalSubmitted": "not an object"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := admin.DecodeEvent([]byte(tt.data))
			require.ErrorIs(t, err, admin.ErrMalformedEvent)
		})
	}
}

func TestEventRoundTrip(t *testing.T) {
	proposal := testCircuitProposal()
	vote := admin.CircuitProposalVote{
		Ballot: admin.Ballot{
			CircuitID:   proposal.CircuitID,
			CircuitHash: proposal.CircuitHash,
			Vote:        "Accept",
		},
		BallotSignature: []byte{0xde, 0xad, 0xbe, 0xef},
		SignerPublicKey: []byte{0x01, 0x02, 0x03},
	}
	events := []admin.AdminEvent{
		admin.ProposalSubmitted{Proposal: proposal},
		admin.ProposalVote{Vote: vote},
		admin.ProposalAccepted{Proposal: proposal},
		admin.ProposalRejected{Proposal: proposal},
	}
	for _, evt := range events {
		data, err := admin.EncodeEvent(evt)
		require.NoError(t, err)
		decoded, err := admin.DecodeEvent(data)
		require.NoError(t, err)
		assert.Equal(t, evt, decoded)
	}
}

func TestDecodeEventSubmitted(t *testing.T) {
	data := []byte(`{
		"ProposalSubmitted": {
			"proposal_type": "Create",
			"circuit_id": "gameroom::alpha-node-000::beta-node-000::abc123",
			"circuit_hash": "8cd2c2b185ce294c0f1d1a5f2c05db12",
			"requester": "alpha-node-000",
			"circuit": {
				"circuit_id": "gameroom::alpha-node-000::beta-node-000::abc123",
				"roster": [],
				"members": [
					{"node_id": "alpha-node-000", "endpoint": "tls://alpha:8044"}
				],
				"authorization_type": "Trust",
				"persistence": "Any",
				"routes": "Any",
				"circuit_management_type": "gameroom",
				"application_metadata": null
			}
		}
	}`)
	evt, err := admin.DecodeEvent(data)
	require.NoError(t, err)
	submitted, ok := evt.(admin.ProposalSubmitted)
	require.True(t, ok)
	assert.Equal(
		t,
		"gameroom::alpha-node-000::beta-node-000::abc123",
		submitted.Proposal.CircuitID,
	)
	assert.Equal(t, "alpha-node-000", submitted.Proposal.Requester)
	require.Len(t, submitted.Proposal.Circuit.Members, 1)
	assert.Equal(
		t,
		"tls://alpha:8044",
		submitted.Proposal.Circuit.Members[0].Endpoint,
	)
}

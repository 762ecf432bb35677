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
	"time"

	"github.com/blinklabs-io/paddock/admin"
	"github.com/blinklabs-io/paddock/database"
	"github.com/blinklabs-io/paddock/database/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testApplier(t *testing.T) (*admin.Applier, *database.Database) {
	t.Helper()
	db, err := database.New(&database.Config{
		DataDir: "",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	applier := admin.NewApplier(admin.ApplierConfig{
		Database: db,
	})
	return applier, db
}

func testVote(circuitId string, vote string) admin.ProposalVote {
	return admin.ProposalVote{
		Vote: admin.CircuitProposalVote{
			Ballot: admin.Ballot{
				CircuitID:   circuitId,
				CircuitHash: "8cd2c2b185ce294c0f1d1a5f2c05db12",
				Vote:        vote,
			},
			BallotSignature: []byte{0xde, 0xad, 0xbe, 0xef},
			SignerPublicKey: []byte("beta-public-key"),
		},
	}
}

func TestApplySubmitted(t *testing.T) {
	applier, db := testApplier(t)
	proposal := testCircuitProposal()
	require.NoError(
		t,
		applier.Apply(admin.ProposalSubmitted{Proposal: proposal}),
	)

	stored, err := db.GetProposalByCircuitIDAndStatus(
		proposal.CircuitID,
		models.ProposalStatusPending,
		nil,
	)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.NotEmpty(t, stored.ID)
	assert.Equal(t, proposal.Requester, stored.Requester)
	assert.Equal(t, proposal.CircuitHash, stored.CircuitHash)
	assert.Equal(
		t,
		proposal.Circuit.CircuitManagementType,
		stored.CircuitManagementType,
	)
	assert.True(t, stored.UpdatedTime.Equal(stored.CreatedTime))

	members, err := db.GetMembers(stored.ID, nil)
	require.NoError(t, err)
	assert.Len(t, members, len(proposal.Circuit.Members))

	services, err := db.GetServices(stored.ID, nil)
	require.NoError(t, err)
	require.Len(t, services, len(proposal.Circuit.Roster))
	assert.Equal(
		t,
		proposal.Circuit.Roster[0].ServiceID,
		services[0].ServiceID,
	)
}

func TestApplySubmittedDistinctProposalIds(t *testing.T) {
	applier, db := testApplier(t)
	first := testCircuitProposal()
	second := testCircuitProposal()
	second.CircuitID = "gameroom::alpha-node-000::beta-node-000::other"
	second.Circuit.CircuitID = second.CircuitID
	require.NoError(
		t,
		applier.Apply(admin.ProposalSubmitted{Proposal: first}),
	)
	require.NoError(
		t,
		applier.Apply(admin.ProposalSubmitted{Proposal: second}),
	)

	proposals, err := db.GetProposals("", nil)
	require.NoError(t, err)
	require.Len(t, proposals, 2)
	assert.NotEqual(t, proposals[0].ID, proposals[1].ID)
}

func TestApplyVote(t *testing.T) {
	applier, db := testApplier(t)
	proposal := testCircuitProposal()
	require.NoError(
		t,
		applier.Apply(admin.ProposalSubmitted{Proposal: proposal}),
	)
	before, err := db.GetProposalByCircuitIDAndStatus(
		proposal.CircuitID,
		models.ProposalStatusPending,
		nil,
	)
	require.NoError(t, err)
	require.NotNil(t, before)

	// Make sure the clock moves between the insert and the vote
	time.Sleep(5 * time.Millisecond)
	require.NoError(
		t,
		applier.Apply(testVote(proposal.CircuitID, "Accept")),
	)

	after, err := db.GetProposalByCircuitIDAndStatus(
		proposal.CircuitID,
		models.ProposalStatusPending,
		nil,
	)
	require.NoError(t, err)
	require.NotNil(t, after)
	assert.True(
		t,
		after.UpdatedTime.After(before.UpdatedTime),
		"updated time must advance on vote",
	)

	votes, err := db.GetVoteRecords(after.ID, nil)
	require.NoError(t, err)
	require.Len(t, votes, 1)
	assert.Equal(t, "Accept", votes[0].Vote)
	assert.Equal(t, "beta-public-key", votes[0].VoterPublicKey)
	// The vote's creation time matches the proposal refresh exactly
	assert.True(t, votes[0].CreatedTime.Equal(after.UpdatedTime))
}

func TestApplyVoteNoPendingProposal(t *testing.T) {
	applier, db := testApplier(t)
	circuitId := "gameroom::alpha-node-000::beta-node-000::missing"
	err := applier.Apply(testVote(circuitId, "Accept"))
	require.Error(t, err)
	var noPending admin.NoPendingProposalError
	require.ErrorAs(t, err, &noPending)
	assert.Equal(t, circuitId, noPending.CircuitID)

	// No partial writes
	proposals, err := db.GetProposals("", nil)
	require.NoError(t, err)
	assert.Empty(t, proposals)
}

func TestApplyAccepted(t *testing.T) {
	applier, db := testApplier(t)
	proposal := testCircuitProposal()
	require.NoError(
		t,
		applier.Apply(admin.ProposalSubmitted{Proposal: proposal}),
	)
	before, err := db.GetProposalByCircuitIDAndStatus(
		proposal.CircuitID,
		models.ProposalStatusPending,
		nil,
	)
	require.NoError(t, err)
	require.NotNil(t, before)

	time.Sleep(5 * time.Millisecond)
	require.NoError(
		t,
		applier.Apply(admin.ProposalAccepted{Proposal: proposal}),
	)

	accepted, err := db.GetProposalByCircuitIDAndStatus(
		proposal.CircuitID,
		models.ProposalStatusAccepted,
		nil,
	)
	require.NoError(t, err)
	require.NotNil(t, accepted)
	assert.True(t, accepted.UpdatedTime.After(before.UpdatedTime))

	// No pending row remains, so a second outcome for the same circuit fails
	err = applier.Apply(admin.ProposalAccepted{Proposal: proposal})
	require.Error(t, err)
	var noPending admin.NoPendingProposalError
	require.ErrorAs(t, err, &noPending)
}

func TestApplyRejected(t *testing.T) {
	applier, db := testApplier(t)
	proposal := testCircuitProposal()
	require.NoError(
		t,
		applier.Apply(admin.ProposalSubmitted{Proposal: proposal}),
	)
	require.NoError(
		t,
		applier.Apply(admin.ProposalRejected{Proposal: proposal}),
	)

	rejected, err := db.GetProposalByCircuitIDAndStatus(
		proposal.CircuitID,
		models.ProposalStatusRejected,
		nil,
	)
	require.NoError(t, err)
	require.NotNil(t, rejected)

	pending, err := db.GetProposalByCircuitIDAndStatus(
		proposal.CircuitID,
		models.ProposalStatusPending,
		nil,
	)
	require.NoError(t, err)
	assert.Nil(t, pending)
}

func TestApplyOutcomeNoPendingProposal(t *testing.T) {
	applier, _ := testApplier(t)
	proposal := testCircuitProposal()
	err := applier.Apply(admin.ProposalRejected{Proposal: proposal})
	require.Error(t, err)
	var noPending admin.NoPendingProposalError
	require.ErrorAs(t, err, &noPending)
}

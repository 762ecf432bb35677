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

package admin

// CircuitNode is one member node of a proposed circuit as it appears on the
// wire
type CircuitNode struct {
	NodeID   string `json:"node_id"`
	Endpoint string `json:"endpoint"`
}

// CircuitService is one service offered within a proposed circuit as it
// appears on the wire
type CircuitService struct {
	ServiceID    string            `json:"service_id"`
	ServiceType  string            `json:"service_type"`
	AllowedNodes []string          `json:"allowed_nodes"`
	Arguments    map[string]string `json:"arguments,omitempty"`
}

// CreateCircuit is a request to form a new circuit between member nodes
type CreateCircuit struct {
	CircuitID             string           `json:"circuit_id"`
	Roster                []CircuitService `json:"roster"`
	Members               []CircuitNode    `json:"members"`
	AuthorizationType     string           `json:"authorization_type"`
	Persistence           string           `json:"persistence"`
	Durability            string           `json:"durability,omitempty"`
	Routes                string           `json:"routes"`
	CircuitManagementType string           `json:"circuit_management_type"`
	ApplicationMetadata   []byte           `json:"application_metadata"`
}

// CircuitProposal is the network's view of a circuit-creation request as
// carried by proposal events
type CircuitProposal struct {
	ProposalType string        `json:"proposal_type"`
	CircuitID    string        `json:"circuit_id"`
	CircuitHash  string        `json:"circuit_hash"`
	Circuit      CreateCircuit `json:"circuit"`
	Requester    string        `json:"requester"`
}

// Ballot is the signed portion of a vote on a pending proposal
type Ballot struct {
	CircuitID   string `json:"circuit_id"`
	CircuitHash string `json:"circuit_hash"`
	Vote        string `json:"vote"`
}

// CircuitProposalVote is a cast ballot together with its signature and the
// voter's public key
type CircuitProposalVote struct {
	Ballot          Ballot `json:"ballot"`
	BallotSignature []byte `json:"ballot_signature"`
	SignerPublicKey []byte `json:"signer_public_key"`
}

// AdminEvent is a single event from the coordination service's admin event
// stream. The set of implementations is closed: ProposalSubmitted,
// ProposalVote, ProposalAccepted, and ProposalRejected.
type AdminEvent interface {
	isAdminEvent()
}

// ProposalSubmitted announces a newly proposed circuit
type ProposalSubmitted struct {
	Proposal CircuitProposal
}

func (ProposalSubmitted) isAdminEvent() {}

// ProposalVote announces a ballot cast by a member node on a pending proposal
type ProposalVote struct {
	Vote CircuitProposalVote
}

func (ProposalVote) isAdminEvent() {}

// ProposalAccepted announces the network-wide acceptance of a pending proposal
type ProposalAccepted struct {
	Proposal CircuitProposal
}

func (ProposalAccepted) isAdminEvent() {}

// ProposalRejected announces the network-wide rejection of a pending proposal
type ProposalRejected struct {
	Proposal CircuitProposal
}

func (ProposalRejected) isAdminEvent() {}

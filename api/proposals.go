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

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/blinklabs-io/paddock/database"
	"github.com/blinklabs-io/paddock/database/models"
	"github.com/gorilla/mux"
)

// ProposalResponse is the API representation of a stored circuit proposal
type ProposalResponse struct {
	ProposalID            string                  `json:"proposal_id"`
	CircuitID             string                  `json:"circuit_id"`
	ProposalType          string                  `json:"proposal_type"`
	CircuitHash           string                  `json:"circuit_hash"`
	Requester             string                  `json:"requester"`
	AuthorizationType     string                  `json:"authorization_type"`
	Persistence           string                  `json:"persistence"`
	Routes                string                  `json:"routes"`
	CircuitManagementType string                  `json:"circuit_management_type"`
	ApplicationMetadata   []byte                  `json:"application_metadata"`
	Status                string                  `json:"status"`
	CreatedTime           time.Time               `json:"created_time"`
	UpdatedTime           time.Time               `json:"updated_time"`
	Members               []MemberResponse        `json:"members"`
	Services              []ServiceResponse       `json:"services"`
	Votes                 []VoteRecordResponse    `json:"votes"`
}

// MemberResponse is the API representation of a proposed circuit member
type MemberResponse struct {
	NodeID   string `json:"node_id"`
	Endpoint string `json:"endpoint"`
}

// ServiceResponse is the API representation of a proposed circuit service
type ServiceResponse struct {
	ServiceID    string   `json:"service_id"`
	ServiceType  string   `json:"service_type"`
	AllowedNodes []string `json:"allowed_nodes"`
}

// VoteRecordResponse is the API representation of a recorded vote
type VoteRecordResponse struct {
	PublicKey   string    `json:"public_key"`
	Vote        string    `json:"vote"`
	CreatedTime time.Time `json:"created_time"`
}

func (s *Server) buildProposalResponse(
	proposal *models.CircuitProposal,
) (*ProposalResponse, error) {
	members, err := s.db.GetMembers(proposal.ID, nil)
	if err != nil {
		return nil, err
	}
	services, err := s.db.GetServices(proposal.ID, nil)
	if err != nil {
		return nil, err
	}
	votes, err := s.db.GetVoteRecords(proposal.ID, nil)
	if err != nil {
		return nil, err
	}
	resp := &ProposalResponse{
		ProposalID:            proposal.ID,
		CircuitID:             proposal.CircuitID,
		ProposalType:          proposal.ProposalType,
		CircuitHash:           proposal.CircuitHash,
		Requester:             proposal.Requester,
		AuthorizationType:     proposal.AuthorizationType,
		Persistence:           proposal.Persistence,
		Routes:                proposal.Routes,
		CircuitManagementType: proposal.CircuitManagementType,
		ApplicationMetadata:   proposal.ApplicationMetadata,
		Status:                proposal.Status,
		CreatedTime:           proposal.CreatedTime,
		UpdatedTime:           proposal.UpdatedTime,
		Members:               []MemberResponse{},
		Services:              []ServiceResponse{},
		Votes:                 []VoteRecordResponse{},
	}
	for _, member := range members {
		resp.Members = append(
			resp.Members,
			MemberResponse{
				NodeID:   member.NodeID,
				Endpoint: member.Endpoint,
			},
		)
	}
	for _, service := range services {
		resp.Services = append(
			resp.Services,
			ServiceResponse{
				ServiceID:    service.ServiceID,
				ServiceType:  service.ServiceType,
				AllowedNodes: service.AllowedNodes,
			},
		)
	}
	for _, vote := range votes {
		resp.Votes = append(
			resp.Votes,
			VoteRecordResponse{
				PublicKey:   vote.VoterPublicKey,
				Vote:        vote.Vote,
				CreatedTime: vote.CreatedTime,
			},
		)
	}
	return resp, nil
}

// handleListProposals returns all recorded proposals, optionally filtered by
// status via the "status" query parameter
func (s *Server) handleListProposals(
	w http.ResponseWriter,
	r *http.Request,
) {
	const route = "list_proposals"
	status := r.URL.Query().Get("status")
	proposals, err := s.db.GetProposals(status, nil)
	if err != nil {
		s.logger.Error(
			"failed to list proposals",
			"error", err,
		)
		s.writeError(
			w,
			route,
			http.StatusInternalServerError,
			"failed to list proposals",
		)
		return
	}
	resp := make([]*ProposalResponse, 0, len(proposals))
	for i := range proposals {
		item, err := s.buildProposalResponse(&proposals[i])
		if err != nil {
			s.logger.Error(
				"failed to load proposal details",
				"error", err,
			)
			s.writeError(
				w,
				route,
				http.StatusInternalServerError,
				"failed to load proposal details",
			)
			return
		}
		resp = append(resp, item)
	}
	s.writeData(w, route, resp)
}

// handleGetProposal returns the pending proposal for a circuit ID
func (s *Server) handleGetProposal(
	w http.ResponseWriter,
	r *http.Request,
) {
	const route = "get_proposal"
	circuitId := mux.Vars(r)["circuitId"]
	proposal, err := s.db.GetProposalByCircuitIDAndStatus(
		circuitId,
		models.ProposalStatusPending,
		nil,
	)
	if err != nil {
		var dupErr database.DuplicateProposalError
		if errors.As(err, &dupErr) {
			s.logger.Error(
				"duplicate pending proposals",
				"circuit_id", circuitId,
			)
		}
		s.writeError(
			w,
			route,
			http.StatusInternalServerError,
			"failed to load proposal",
		)
		return
	}
	if proposal == nil {
		s.writeError(
			w,
			route,
			http.StatusNotFound,
			"no pending proposal for circuit: "+circuitId,
		)
		return
	}
	resp, err := s.buildProposalResponse(proposal)
	if err != nil {
		s.writeError(
			w,
			route,
			http.StatusInternalServerError,
			"failed to load proposal details",
		)
		return
	}
	s.writeData(w, route, resp)
}

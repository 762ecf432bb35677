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
	"encoding/json"
	"net/http"

	"github.com/blinklabs-io/paddock/admin"
	"github.com/google/uuid"
)

// CreateGameroomForm is the request body for proposing a new gameroom
// circuit
type CreateGameroomForm struct {
	Alias   string           `json:"alias"`
	Members []GameroomMember `json:"member"`
}

// GameroomMember describes one invited node
type GameroomMember struct {
	Identity string         `json:"identity"`
	Metadata MemberMetadata `json:"metadata"`
}

// MemberMetadata carries the registry details for an invited node
type MemberMetadata struct {
	Organization string `json:"organization"`
	Endpoint     string `json:"endpoint"`
	PublicKey    string `json:"public_key"`
}

// ApplicationMetadata is the gameroom-specific data attached to a circuit
// proposal
type ApplicationMetadata struct {
	Alias string `json:"alias"`
}

// handleProposeGameroom builds an unsigned circuit management payload for a
// new gameroom from the invited members plus this node. The caller signs the
// returned bytes and submits them to the coordination service.
func (s *Server) handleProposeGameroom(
	w http.ResponseWriter,
	r *http.Request,
) {
	const route = "propose_gameroom"
	var form CreateGameroomForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		s.writeError(
			w,
			route,
			http.StatusBadRequest,
			"invalid request body: "+err.Error(),
		)
		return
	}
	members := make([]admin.CircuitNode, 0, len(form.Members)+1)
	for _, member := range form.Members {
		members = append(
			members,
			admin.CircuitNode{
				NodeID:   member.Identity,
				Endpoint: member.Metadata.Endpoint,
			},
		)
	}
	// The proposing node is always part of the circuit
	members = append(
		members,
		admin.CircuitNode{
			NodeID:   s.config.NodeID,
			Endpoint: s.config.NodeEndpoint,
		},
	)
	circuitId := "gameroom"
	for _, member := range members {
		circuitId += "::" + member.NodeID
	}
	circuitId += "::" + uuid.NewString()
	appMetadata, err := json.Marshal(
		ApplicationMetadata{Alias: form.Alias},
	)
	if err != nil {
		s.writeError(
			w,
			route,
			http.StatusInternalServerError,
			"failed to serialize application metadata",
		)
		return
	}
	// Every service is administered by the invited members' keys
	adminKeys := make([]string, 0, len(form.Members))
	for _, member := range form.Members {
		adminKeys = append(adminKeys, member.Metadata.PublicKey)
	}
	adminKeysJson, err := json.Marshal(adminKeys)
	if err != nil {
		s.writeError(
			w,
			route,
			http.StatusInternalServerError,
			"failed to serialize member public keys",
		)
		return
	}
	roster := make([]admin.CircuitService, 0, len(members))
	for _, node := range members {
		peerServices := []string{}
		for _, other := range members {
			if other.NodeID != node.NodeID {
				peerServices = append(
					peerServices,
					"gameroom_"+other.NodeID,
				)
			}
		}
		peerServicesJson, err := json.Marshal(peerServices)
		if err != nil {
			s.writeError(
				w,
				route,
				http.StatusInternalServerError,
				"failed to serialize peer services",
			)
			return
		}
		roster = append(
			roster,
			admin.CircuitService{
				ServiceID:    "gameroom_" + node.NodeID,
				ServiceType:  "scabbard",
				AllowedNodes: []string{node.NodeID},
				Arguments: map[string]string{
					"admin_keys":    string(adminKeysJson),
					"peer_services": string(peerServicesJson),
				},
			},
		)
	}
	createRequest := admin.CreateCircuit{
		CircuitID:             circuitId,
		Roster:                roster,
		Members:               members,
		AuthorizationType:     "Trust",
		Persistence:           "Any",
		Durability:            "NoDurability",
		Routes:                "Any",
		CircuitManagementType: "gameroom",
		ApplicationMetadata:   appMetadata,
	}
	payloadBytes, err := admin.BuildCreateCircuitPayload(&createRequest)
	if err != nil {
		s.logger.Error(
			"failed to build circuit management payload",
			"error", err,
		)
		s.writeError(
			w,
			route,
			http.StatusInternalServerError,
			"failed to build circuit management payload",
		)
		return
	}
	s.writeData(
		w,
		route,
		map[string]any{"payload_bytes": payloadBytes},
	)
}

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

package models

import (
	"time"
)

// Proposal status values. A proposal is created as Pending and transitions to
// exactly one of Accepted or Rejected when the network-wide outcome arrives.
const (
	ProposalStatusPending  = "Pending"
	ProposalStatusAccepted = "Accepted"
	ProposalStatusRejected = "Rejected"
)

// CircuitProposal is the durable record of a circuit-creation request. The ID
// is generated locally when the proposal is first seen; the circuit ID is
// assigned by the network and is only unique among Pending proposals.
type CircuitProposal struct {
	ID                    string `gorm:"primaryKey;size:36"`
	CircuitID             string `gorm:"index"`
	ProposalType          string
	CircuitHash           string
	Requester             string
	AuthorizationType     string
	Persistence           string
	Routes                string
	CircuitManagementType string
	ApplicationMetadata   []byte
	Status                string `gorm:"index"`
	CreatedTime           time.Time
	UpdatedTime           time.Time
}

func (CircuitProposal) TableName() string {
	return "circuit_proposal"
}

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

package database

import (
	"errors"
	"fmt"
	"time"

	"github.com/blinklabs-io/paddock/database/models"
	"gorm.io/gorm"
)

// ErrProposalNotFound is returned when an update targets a proposal ID with no
// matching row
var ErrProposalNotFound = errors.New("proposal not found")

// DuplicateProposalError indicates that more than one proposal matched a
// lookup that expects at most one row. This means a prior write violated the
// single-pending invariant and is surfaced loudly rather than resolved by
// picking a row.
type DuplicateProposalError struct {
	CircuitID string
	Status    string
	Count     int
}

func (e DuplicateProposalError) Error() string {
	return fmt.Sprintf(
		"found %d proposals with status %s for circuit %s, expected at most one",
		e.Count,
		e.Status,
		e.CircuitID,
	)
}

// InsertProposal adds a new circuit proposal row
func (d *Database) InsertProposal(
	proposal *models.CircuitProposal,
	txn *gorm.DB,
) error {
	db := d.resolveDB(txn)
	if result := db.Create(proposal); result.Error != nil {
		return result.Error
	}
	return nil
}

// InsertMembers adds the member rows for a proposal
func (d *Database) InsertMembers(
	members []models.CircuitMember,
	txn *gorm.DB,
) error {
	if len(members) == 0 {
		return nil
	}
	db := d.resolveDB(txn)
	if result := db.Create(&members); result.Error != nil {
		return result.Error
	}
	return nil
}

// InsertServices adds the service rows for a proposal
func (d *Database) InsertServices(
	services []models.CircuitService,
	txn *gorm.DB,
) error {
	if len(services) == 0 {
		return nil
	}
	db := d.resolveDB(txn)
	if result := db.Create(&services); result.Error != nil {
		return result.Error
	}
	return nil
}

// InsertVoteRecords appends vote records for a proposal
func (d *Database) InsertVoteRecords(
	votes []models.ProposalVoteRecord,
	txn *gorm.DB,
) error {
	if len(votes) == 0 {
		return nil
	}
	db := d.resolveDB(txn)
	if result := db.Create(&votes); result.Error != nil {
		return result.Error
	}
	return nil
}

// UpdateProposalStatus sets the status and updated time of the proposal with
// the given ID. Returns ErrProposalNotFound if no row matched.
func (d *Database) UpdateProposalStatus(
	proposalID string,
	timestamp time.Time,
	status string,
	txn *gorm.DB,
) error {
	db := d.resolveDB(txn)
	result := db.Model(&models.CircuitProposal{}).
		Where("id = ?", proposalID).
		Updates(map[string]any{
			"status":       status,
			"updated_time": timestamp,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrProposalNotFound
	}
	return nil
}

// GetProposalByCircuitIDAndStatus retrieves the proposal with the given
// circuit ID and status. Returns nil if no proposal matched, and a
// DuplicateProposalError if more than one row matched.
func (d *Database) GetProposalByCircuitIDAndStatus(
	circuitID string,
	status string,
	txn *gorm.DB,
) (*models.CircuitProposal, error) {
	var proposals []models.CircuitProposal
	db := d.resolveDB(txn)
	if result := db.Where(
		"circuit_id = ? AND status = ?",
		circuitID,
		status,
	).Find(&proposals); result.Error != nil {
		return nil, result.Error
	}
	switch len(proposals) {
	case 0:
		return nil, nil
	case 1:
		return &proposals[0], nil
	default:
		return nil, DuplicateProposalError{
			CircuitID: circuitID,
			Status:    status,
			Count:     len(proposals),
		}
	}
}

// GetProposals retrieves all proposals with the given status, or all proposals
// if status is empty
func (d *Database) GetProposals(
	status string,
	txn *gorm.DB,
) ([]models.CircuitProposal, error) {
	var proposals []models.CircuitProposal
	db := d.resolveDB(txn)
	if status != "" {
		db = db.Where("status = ?", status)
	}
	if result := db.Order("created_time").Find(&proposals); result.Error != nil {
		return nil, result.Error
	}
	return proposals, nil
}

// GetMembers retrieves the member rows for a proposal
func (d *Database) GetMembers(
	proposalID string,
	txn *gorm.DB,
) ([]models.CircuitMember, error) {
	var members []models.CircuitMember
	db := d.resolveDB(txn)
	if result := db.Where(
		"proposal_id = ?",
		proposalID,
	).Find(&members); result.Error != nil {
		return nil, result.Error
	}
	return members, nil
}

// GetServices retrieves the service rows for a proposal
func (d *Database) GetServices(
	proposalID string,
	txn *gorm.DB,
) ([]models.CircuitService, error) {
	var services []models.CircuitService
	db := d.resolveDB(txn)
	if result := db.Where(
		"proposal_id = ?",
		proposalID,
	).Find(&services); result.Error != nil {
		return nil, result.Error
	}
	return services, nil
}

// GetVoteRecords retrieves the vote records for a proposal
func (d *Database) GetVoteRecords(
	proposalID string,
	txn *gorm.DB,
) ([]models.ProposalVoteRecord, error) {
	var votes []models.ProposalVoteRecord
	db := d.resolveDB(txn)
	if result := db.Where(
		"proposal_id = ?",
		proposalID,
	).Find(&votes); result.Error != nil {
		return nil, result.Error
	}
	return votes, nil
}

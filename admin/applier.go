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

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/blinklabs-io/paddock/database"
	"github.com/blinklabs-io/paddock/database/models"
	"github.com/blinklabs-io/paddock/event"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// EventAppliedEventType is emitted on the event bus after an admin event
	// has been committed to the proposal store
	EventAppliedEventType event.EventType = "admin.event-applied"
)

// EventAppliedEvent is the event bus payload for EventAppliedEventType
type EventAppliedEvent struct {
	EventTag  string
	CircuitID string
}

// NoPendingProposalError indicates that an event required a pending proposal
// for its circuit ID and none exists
type NoPendingProposalError struct {
	CircuitID string
}

func (e NoPendingProposalError) Error() string {
	return fmt.Sprintf(
		"could not find open proposal for circuit: %s",
		e.CircuitID,
	)
}

// Applier maps decoded admin events to proposal store mutations. Each event is
// applied inside a single store transaction; a partial write is never left
// behind.
type Applier struct {
	logger   *slog.Logger
	db       *database.Database
	eventBus *event.EventBus
	metrics  *applierMetrics
}

type ApplierConfig struct {
	Logger       *slog.Logger
	Database     *database.Database
	EventBus     *event.EventBus
	PromRegistry prometheus.Registerer
}

type applierMetrics struct {
	eventsApplied *prometheus.CounterVec
	applyFailures *prometheus.CounterVec
}

func NewApplier(cfg ApplierConfig) *Applier {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	a := &Applier{
		logger:   cfg.Logger.With("component", "admin"),
		db:       cfg.Database,
		eventBus: cfg.EventBus,
	}
	if cfg.PromRegistry != nil {
		a.initMetrics(cfg.PromRegistry)
	}
	return a
}

func (a *Applier) initMetrics(promRegistry prometheus.Registerer) {
	promautoFactory := promauto.With(promRegistry)
	a.metrics = &applierMetrics{}
	a.metrics.eventsApplied = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paddock_admin_events_applied_total",
			Help: "number of admin events applied to the proposal store",
		},
		[]string{"type"},
	)
	a.metrics.applyFailures = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paddock_admin_apply_failures_total",
			Help: "number of admin events that failed to apply",
		},
		[]string{"type"},
	)
}

// Apply records the given admin event in the proposal store. All writes for
// one event are committed as a single transaction.
func (a *Applier) Apply(evt AdminEvent) error {
	var tag, circuitId string
	var err error
	switch ev := evt.(type) {
	case ProposalSubmitted:
		tag = eventTagProposalSubmitted
		circuitId = ev.Proposal.CircuitID
		err = a.applySubmitted(ev)
	case ProposalVote:
		tag = eventTagProposalVote
		circuitId = ev.Vote.Ballot.CircuitID
		err = a.applyVote(ev)
	case ProposalAccepted:
		tag = eventTagProposalAccepted
		circuitId = ev.Proposal.CircuitID
		err = a.applyOutcome(
			ev.Proposal.CircuitID,
			models.ProposalStatusAccepted,
		)
	case ProposalRejected:
		tag = eventTagProposalRejected
		circuitId = ev.Proposal.CircuitID
		err = a.applyOutcome(
			ev.Proposal.CircuitID,
			models.ProposalStatusRejected,
		)
	default:
		return fmt.Errorf("unknown admin event type %T", evt)
	}
	if err != nil {
		if a.metrics != nil {
			a.metrics.applyFailures.WithLabelValues(tag).Inc()
		}
		return err
	}
	if a.metrics != nil {
		a.metrics.eventsApplied.WithLabelValues(tag).Inc()
	}
	if a.eventBus != nil {
		a.eventBus.Publish(
			EventAppliedEventType,
			event.NewEvent(
				EventAppliedEventType,
				EventAppliedEvent{
					EventTag:  tag,
					CircuitID: circuitId,
				},
			),
		)
	}
	return nil
}

func (a *Applier) applySubmitted(ev ProposalSubmitted) error {
	now := time.Now()
	// Proposal identifiers are generated locally and never echoed from the
	// network, so a duplicate identifier cannot be caused by external events
	proposalId := uuid.NewString()
	proposal := models.CircuitProposal{
		ID:                    proposalId,
		CircuitID:             ev.Proposal.CircuitID,
		ProposalType:          ev.Proposal.ProposalType,
		CircuitHash:           ev.Proposal.CircuitHash,
		Requester:             ev.Proposal.Requester,
		AuthorizationType:     ev.Proposal.Circuit.AuthorizationType,
		Persistence:           ev.Proposal.Circuit.Persistence,
		Routes:                ev.Proposal.Circuit.Routes,
		CircuitManagementType: ev.Proposal.Circuit.CircuitManagementType,
		ApplicationMetadata:   ev.Proposal.Circuit.ApplicationMetadata,
		Status:                models.ProposalStatusPending,
		CreatedTime:           now,
		UpdatedTime:           now,
	}
	members := make([]models.CircuitMember, 0, len(ev.Proposal.Circuit.Members))
	for _, node := range ev.Proposal.Circuit.Members {
		members = append(
			members,
			models.CircuitMember{
				ProposalID: proposalId,
				NodeID:     node.NodeID,
				Endpoint:   node.Endpoint,
			},
		)
	}
	services := make([]models.CircuitService, 0, len(ev.Proposal.Circuit.Roster))
	for _, service := range ev.Proposal.Circuit.Roster {
		services = append(
			services,
			models.CircuitService{
				ProposalID:   proposalId,
				ServiceID:    service.ServiceID,
				ServiceType:  service.ServiceType,
				AllowedNodes: service.AllowedNodes,
			},
		)
	}
	err := a.db.Transaction().Do(func(txn *database.Txn) error {
		if err := a.db.InsertProposal(&proposal, txn.Handle()); err != nil {
			return err
		}
		if err := a.db.InsertMembers(members, txn.Handle()); err != nil {
			return err
		}
		if err := a.db.InsertServices(services, txn.Handle()); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}
	a.logger.Debug(
		"inserted new proposal",
		"circuit_id", ev.Proposal.CircuitID,
		"proposal_id", proposalId,
	)
	return nil
}

func (a *Applier) applyVote(ev ProposalVote) error {
	circuitId := ev.Vote.Ballot.CircuitID
	proposal, err := a.getPendingProposal(circuitId)
	if err != nil {
		return err
	}
	now := time.Now()
	vote := models.ProposalVoteRecord{
		ProposalID:     proposal.ID,
		VoterPublicKey: string(ev.Vote.SignerPublicKey),
		Vote:           ev.Vote.Ballot.Vote,
		// Must match the proposal's refreshed updated time exactly
		CreatedTime: now,
	}
	err = a.db.Transaction().Do(func(txn *database.Txn) error {
		if err := a.db.UpdateProposalStatus(
			proposal.ID,
			now,
			models.ProposalStatusPending,
			txn.Handle(),
		); err != nil {
			return err
		}
		if err := a.db.InsertVoteRecords(
			[]models.ProposalVoteRecord{vote},
			txn.Handle(),
		); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}
	a.logger.Debug(
		"inserted new vote",
		"circuit_id", circuitId,
		"proposal_id", proposal.ID,
	)
	return nil
}

func (a *Applier) applyOutcome(circuitId string, status string) error {
	proposal, err := a.getPendingProposal(circuitId)
	if err != nil {
		return err
	}
	now := time.Now()
	err = a.db.Transaction().Do(func(txn *database.Txn) error {
		return a.db.UpdateProposalStatus(
			proposal.ID,
			now,
			status,
			txn.Handle(),
		)
	})
	if err != nil {
		return err
	}
	a.logger.Debug(
		"updated proposal status",
		"circuit_id", circuitId,
		"proposal_id", proposal.ID,
		"status", status,
	)
	return nil
}

// getPendingProposal looks up the unique pending proposal for a circuit ID.
// Zero matching rows yields a NoPendingProposalError; more than one row is a
// store-level consistency error and propagates as-is.
func (a *Applier) getPendingProposal(
	circuitId string,
) (*models.CircuitProposal, error) {
	proposal, err := a.db.GetProposalByCircuitIDAndStatus(
		circuitId,
		models.ProposalStatusPending,
		nil,
	)
	if err != nil {
		return nil, err
	}
	if proposal == nil {
		return nil, NoPendingProposalError{CircuitID: circuitId}
	}
	return proposal, nil
}

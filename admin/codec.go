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
	"encoding/json"
	"errors"
	"fmt"
)

// ErrEmptyMessage is returned when decoding a zero-length payload
var ErrEmptyMessage = errors.New("empty message")

// ErrMalformedEvent is returned (wrapped) when the payload does not decode
// into a known admin event
var ErrMalformedEvent = errors.New("malformed admin event")

// Wire event type tags. The wire form of an admin event is a JSON object with
// a single key naming the variant, e.g. {"ProposalSubmitted": {...}}
const (
	eventTagProposalSubmitted = "ProposalSubmitted"
	eventTagProposalVote      = "ProposalVote"
	eventTagProposalAccepted  = "ProposalAccepted"
	eventTagProposalRejected  = "ProposalRejected"
)

// DecodeEvent decodes a raw message payload into a typed admin event. It
// performs structural validation only; semantic validation happens when the
// event is applied.
func DecodeEvent(data []byte) (AdminEvent, error) {
	if len(data) == 0 {
		return nil, ErrEmptyMessage
	}
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}
	if len(envelope) != 1 {
		return nil, fmt.Errorf(
			"%w: expected a single event tag, got %d",
			ErrMalformedEvent,
			len(envelope),
		)
	}
	for tag, payload := range envelope {
		switch tag {
		case eventTagProposalSubmitted:
			var proposal CircuitProposal
			if err := json.Unmarshal(payload, &proposal); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
			}
			return ProposalSubmitted{Proposal: proposal}, nil
		case eventTagProposalVote:
			var vote CircuitProposalVote
			if err := json.Unmarshal(payload, &vote); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
			}
			return ProposalVote{Vote: vote}, nil
		case eventTagProposalAccepted:
			var proposal CircuitProposal
			if err := json.Unmarshal(payload, &proposal); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
			}
			return ProposalAccepted{Proposal: proposal}, nil
		case eventTagProposalRejected:
			var proposal CircuitProposal
			if err := json.Unmarshal(payload, &proposal); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
			}
			return ProposalRejected{Proposal: proposal}, nil
		default:
			return nil, fmt.Errorf(
				"%w: unknown event tag %q",
				ErrMalformedEvent,
				tag,
			)
		}
	}
	// Unreachable: the envelope always has exactly one entry here
	return nil, ErrMalformedEvent
}

// EncodeEvent encodes a typed admin event into its wire form
func EncodeEvent(evt AdminEvent) ([]byte, error) {
	var envelope map[string]any
	switch ev := evt.(type) {
	case ProposalSubmitted:
		envelope = map[string]any{eventTagProposalSubmitted: ev.Proposal}
	case ProposalVote:
		envelope = map[string]any{eventTagProposalVote: ev.Vote}
	case ProposalAccepted:
		envelope = map[string]any{eventTagProposalAccepted: ev.Proposal}
	case ProposalRejected:
		envelope = map[string]any{eventTagProposalRejected: ev.Proposal}
	default:
		return nil, fmt.Errorf("unknown admin event type %T", evt)
	}
	return json.Marshal(envelope)
}

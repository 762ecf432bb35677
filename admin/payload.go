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
	"crypto/sha512"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// PayloadAction identifies the operation carried by a circuit management
// payload
type PayloadAction string

const (
	PayloadActionCircuitCreateRequest PayloadAction = "CIRCUIT_CREATE_REQUEST"
)

// PayloadHeader binds a circuit management payload to a digest of its inner
// request
type PayloadHeader struct {
	Action        PayloadAction `json:"action"`
	PayloadSha512 []byte        `json:"payload_sha512"`
}

// CircuitManagementPayload is the signable envelope submitted to the
// coordination service. The header and request are pre-encoded so the
// signature input is stable.
type CircuitManagementPayload struct {
	Header               []byte `json:"header"`
	CircuitCreateRequest []byte `json:"circuit_create_request"`
}

// BuildCreateCircuitPayload encodes a circuit create request into a
// management payload envelope ready for client-side signing
func BuildCreateCircuitPayload(create *CreateCircuit) ([]byte, error) {
	circuitBytes, err := cbor.Marshal(create)
	if err != nil {
		return nil, fmt.Errorf("encoding circuit create request: %w", err)
	}
	digest := sha512.Sum512(circuitBytes)
	headerBytes, err := cbor.Marshal(
		PayloadHeader{
			Action:        PayloadActionCircuitCreateRequest,
			PayloadSha512: digest[:],
		},
	)
	if err != nil {
		return nil, fmt.Errorf("encoding payload header: %w", err)
	}
	payloadBytes, err := cbor.Marshal(
		CircuitManagementPayload{
			Header:               headerBytes,
			CircuitCreateRequest: circuitBytes,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("encoding management payload: %w", err)
	}
	return payloadBytes, nil
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// =============================================================================
// COLLABORATIVE TYPES
// =============================================================================

// Participant is a member of a collaborative session.
type Participant struct {
	UUID    string `json:"uuid"`
	Name    string `json:"name"`
	IsAI    bool   `json:"is_ai"`
	IsOwner bool   `json:"is_owner"`
}

// CollaborativeStatus is the server view of a collaborative consultation.
type CollaborativeStatus struct {
	CollaborativeMode    bool          `json:"collaborative_mode"`
	Participants         []Participant `json:"participants"`
	OwnerParticipantUUID string        `json:"owner_participant_uuid"`
	ConsultationStarted  bool          `json:"consultation_started"`
}

// IsOwner reports whether participantUUID owns the session. An empty id never
// matches.
func (s CollaborativeStatus) IsOwner(participantUUID string) bool {
	return participantUUID != "" && s.OwnerParticipantUUID == participantUUID
}

// Humans returns the participants that are not AI.
func (s CollaborativeStatus) Humans() []Participant {
	var out []Participant
	for _, p := range s.Participants {
		if !p.IsAI {
			out = append(out, p)
		}
	}
	return out
}

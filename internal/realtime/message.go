package realtime

import (
	"github.com/google/uuid"
)

const (
	EventEntityMerged   = "entity-merged"
	EventEntityUnmerged = "entity-unmerged"
)

// Message is the payload published to the realtime channel when a merge
// or unmerge finishes. Consumers (the UI socket layer) key off Event.
type Message struct {
	Event       string     `json:"event"`
	ActorID     *uuid.UUID `json:"actor_id,omitempty"`
	PrimaryID   uuid.UUID  `json:"primary_id"`
	SecondaryID uuid.UUID  `json:"secondary_id"`
	Success     bool       `json:"success"`

	PrimaryDisplayName   string `json:"primary_display_name,omitempty"`
	SecondaryDisplayName string `json:"secondary_display_name,omitempty"`
}

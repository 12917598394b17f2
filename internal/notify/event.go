// Package notify publishes change events after successful mutations.
// Publication is best-effort from the caller's point of view; durability
// comes from the outbox and relay.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Action names the mutation an event describes.
type Action string

const (
	ActionCreate    Action = "create"
	ActionUpdate    Action = "update"
	ActionTombstone Action = "tombstone"
)

// Event is the change-event payload consumers receive.
type Event struct {
	EventID          string              `json:"event_id"`
	Action           Action              `json:"action"`
	PartitionKey     string              `json:"partition_key"`
	SortKey          string              `json:"sort_key"`
	OwningProvenance string              `json:"owning_provenance"`
	RelatedLinks     map[string][]string `json:"related_links"`
	UpdaterIsOwner   bool                `json:"updater_is_owner"`
	OccurredAt       time.Time           `json:"occurred_at"`
}

// NewEvent stamps a fresh event id and timestamp.
func NewEvent(action Action, pk, sk, owner string, related map[string][]string, updaterIsOwner bool) *Event {
	if related == nil {
		related = map[string][]string{}
	}
	return &Event{
		EventID:          uuid.NewString(),
		Action:           action,
		PartitionKey:     pk,
		SortKey:          sk,
		OwningProvenance: owner,
		RelatedLinks:     related,
		UpdaterIsOwner:   updaterIsOwner,
		OccurredAt:       time.Now().UTC(),
	}
}

// Encode returns the JSON wire form.
func (e *Event) Encode() ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode event %s: %w", e.EventID, err)
	}
	return b, nil
}

// DecodeEvent parses the JSON wire form.
func DecodeEvent(b []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	return &e, nil
}

// Publisher delivers change events to a sink.
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
}

// Package sse implements Server-Sent Events so other tabs and devices of the
// same session see entry and allergen changes as they happen.
package sse

import (
	"time"

	"github.com/nibbleapp/nibble-server/internal/domain"
)

// EventType represents the type of SSE Event.
type EventType string

const (
	// EventEntryCreated represents a logged feeding.
	EventEntryCreated EventType = "entry.created"
	// EventEntryUpdated represents an edited feeding.
	EventEntryUpdated EventType = "entry.updated"
	// EventEntryDeleted represents a removed feeding.
	EventEntryDeleted EventType = "entry.deleted"

	// EventAllergenUpdated represents a manual mark or reaction summary change.
	EventAllergenUpdated EventType = "allergen.updated"

	// EventEntriesMigrated is sent to both the guest and the account session
	// after guest entries move to the account.
	EventEntriesMigrated EventType = "entries.migrated"

	// EventHeartbeat represents a connection keepalive event.
	EventHeartbeat EventType = "heartbeat"
)

// Event represents an SSE event to be sent to clients.
// The Data field contains the event payload as a JSON object for direct deserialization.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`

	// SessionKey limits delivery to clients of one session. Empty means all.
	SessionKey string `json:"-"`
}

// EntryEventData is the data payload for entry created/updated events.
type EntryEventData struct {
	Entry domain.FeedingEvent `json:"entry"`
}

// EntryDeletedEventData is the data payload for entry delete events.
type EntryDeletedEventData struct {
	EntryID   string    `json:"entry_id"`
	DeletedAt time.Time `json:"deleted_at"`
}

// AllergenEventData is the data payload for allergen events.
type AllergenEventData struct {
	Record domain.AllergenTrialRecord `json:"record"`
	Status domain.AllergenStatus      `json:"status"`
}

// MigratedEventData is the data payload for migration events.
type MigratedEventData struct {
	GuestID   string `json:"guest_id"`
	AccountID string `json:"account_id"`
	Migrated  int    `json:"migrated"`
}

// HeartbeatEventData is the data payload for heartbeat events.
type HeartbeatEventData struct {
	ServerTime time.Time `json:"server_time"`
}

// NewEntryCreatedEvent creates an entry.created event for one session.
func NewEntryCreatedEvent(sessionKey string, entry domain.FeedingEvent) Event {
	return Event{
		Type:       EventEntryCreated,
		Data:       EntryEventData{Entry: entry},
		Timestamp:  time.Now(),
		SessionKey: sessionKey,
	}
}

// NewEntryUpdatedEvent creates an entry.updated event for one session.
func NewEntryUpdatedEvent(sessionKey string, entry domain.FeedingEvent) Event {
	return Event{
		Type:       EventEntryUpdated,
		Data:       EntryEventData{Entry: entry},
		Timestamp:  time.Now(),
		SessionKey: sessionKey,
	}
}

// NewEntryDeletedEvent creates an entry.deleted event for one session.
func NewEntryDeletedEvent(sessionKey, entryID string) Event {
	now := time.Now()
	return Event{
		Type: EventEntryDeleted,
		Data: EntryDeletedEventData{
			EntryID:   entryID,
			DeletedAt: now,
		},
		Timestamp:  now,
		SessionKey: sessionKey,
	}
}

// NewAllergenUpdatedEvent creates an allergen.updated event for one session.
func NewAllergenUpdatedEvent(sessionKey string, record domain.AllergenTrialRecord, status domain.AllergenStatus) Event {
	return Event{
		Type:       EventAllergenUpdated,
		Data:       AllergenEventData{Record: record, Status: status},
		Timestamp:  time.Now(),
		SessionKey: sessionKey,
	}
}

// NewEntriesMigratedEvent creates an entries.migrated event for one session.
func NewEntriesMigratedEvent(sessionKey, guestID, accountID string, migrated int) Event {
	return Event{
		Type: EventEntriesMigrated,
		Data: MigratedEventData{
			GuestID:   guestID,
			AccountID: accountID,
			Migrated:  migrated,
		},
		Timestamp:  time.Now(),
		SessionKey: sessionKey,
	}
}

// NewHeartbeatEvent creates a heartbeat event.
func NewHeartbeatEvent() Event {
	return Event{
		Type: EventHeartbeat,
		Data: HeartbeatEventData{
			ServerTime: time.Now(),
		},
		Timestamp: time.Now(),
	}
}

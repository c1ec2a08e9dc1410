// Package events models contract notifications and the transactional outbox
// they travel through.
//
// A notification is captured inside the same atomic call that changed state:
// the service appends it to a Store bound to the call's transaction, so it is
// persisted exactly when the state change commits and never on failure. A
// relay later drains the Outbox towards external indexers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "becoming/pkg/domain"
)

// Notification is implemented by domain event payloads.
type Notification interface {
	// EventName is the stable wire name, e.g. "Minted".
	EventName() string
	// Topics are the identity fields indexers look events up by.
	Topics() []id.AccountID
}

// Event is a notification as stored in the outbox.
type Event struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	Topics    []string        `json:"topics"`
	Payload   json.RawMessage `json:"payload"`
	RequestID string          `json:"request_id,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// New captures n as an outbox event.
func New(n Notification, at time.Time, requestID string) (Event, error) {
	payload, err := json.Marshal(n)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", n.EventName(), err)
	}
	keys := n.Topics()
	topics := make([]string, 0, len(keys))
	for _, k := range keys {
		topics = append(topics, k.String())
	}
	return Event{
		ID:        uuid.New(),
		Name:      n.EventName(),
		Topics:    topics,
		Payload:   payload,
		RequestID: requestID,
		CreatedAt: at,
	}, nil
}

// HasTopic reports whether the event is indexed under account.
func (e Event) HasTopic(account id.AccountID) bool {
	key := account.String()
	for _, t := range e.Topics {
		if t == key {
			return true
		}
	}
	return false
}

// Store appends events inside the caller's transaction.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Outbox is the relay's view of persisted events.
type Outbox interface {
	Unpublished(ctx context.Context, limit int) ([]Event, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error
}

// Reader serves committed events by identity.
type Reader interface {
	// ListByTopic returns the events indexed under account, oldest first.
	ListByTopic(ctx context.Context, account id.AccountID) ([]Event, error)
}

// Pruner deletes delivered events once they are no longer needed.
type Pruner interface {
	// PrunePublished removes events published before cutoff and reports how
	// many were removed. Unpublished events are never removed.
	PrunePublished(ctx context.Context, cutoff time.Time) (int, error)
}

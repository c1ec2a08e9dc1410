package store

import (
	"context"
	"sync"
	"time"

	"becoming/internal/becoming/models"
	"becoming/internal/becoming/ports"
	id "becoming/pkg/domain"
	dErrors "becoming/pkg/domain-errors"
	"becoming/pkg/platform/events"
	"becoming/pkg/platform/sentinel"
)

const defaultTxTimeout = 5 * time.Second

// InMemoryStore holds one record in process. Transactions take an exclusive
// lock, work on a copy of the record and buffer their events; both are
// published only when the callback succeeds.
type InMemoryStore struct {
	mu      sync.RWMutex
	record  *models.Record
	outbox  events.Store
	timeout time.Duration
}

// NewInMemoryStore creates an unbound record administered by admin. Events
// of committed transactions are appended to outbox.
func NewInMemoryStore(admin id.AccountID, outbox events.Store, now time.Time) *InMemoryStore {
	return &InMemoryStore{
		record: models.NewRecord(admin, now),
		outbox: outbox,
	}
}

// Load returns a snapshot of the committed record.
func (s *InMemoryStore) Load(_ context.Context) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.record.Clone(), nil
}

func (s *InMemoryStore) RunInTx(ctx context.Context, fn func(ctx context.Context, stores ports.TxStores) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := s.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Check again after acquiring lock
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	staged := &stagedRecord{record: s.record.Clone()}
	pending := &pendingEvents{}
	if err := fn(ctx, ports.TxStores{Records: staged, Events: pending}); err != nil {
		return err
	}

	if s.outbox != nil {
		for _, event := range pending.events {
			if err := s.outbox.Append(ctx, event); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to commit notifications")
			}
		}
	}
	s.record = staged.record
	return nil
}

// stagedRecord applies mutations to a private copy of the record.
type stagedRecord struct {
	record *models.Record
}

func (r *stagedRecord) Load(_ context.Context) (*models.Record, error) {
	return r.record.Clone(), nil
}

func (r *stagedRecord) BindOwner(_ context.Context, owner id.AccountID) error {
	if r.record.IsBound() {
		return sentinel.ErrConflict
	}
	r.record.ApplyMint(owner)
	return nil
}

func (r *stagedRecord) AppendMilestone(_ context.Context, m models.Milestone) error {
	if int(m.ID) != len(r.record.Milestones) {
		return sentinel.ErrConflict
	}
	r.record.ApplyMilestone(m)
	return nil
}

func (r *stagedRecord) SetAdmin(_ context.Context, admin id.AccountID) error {
	r.record.ApplyAdmin(admin)
	return nil
}

// pendingEvents buffers events until commit.
type pendingEvents struct {
	events []events.Event
}

func (p *pendingEvents) Append(_ context.Context, event events.Event) error {
	p.events = append(p.events, event)
	return nil
}

package core

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/majeland/gatekeep/internal/model"
	"github.com/majeland/gatekeep/internal/platform"
)

// RequestTTL is how long a pending request stays resolvable. A pending
// request older than this is observably expired to every reader.
const RequestTTL = 30 * time.Second

// terminalRetention is how long a resolved request stays readable so the
// original poller can observe the outcome before the sweeper drops it.
const terminalRetention = 5 * time.Minute

const sweepInterval = 10 * time.Second

// Outcome is the result of a resolve attempt.
type Outcome string

const (
	OutcomeApplied         Outcome = "applied"
	OutcomeAlreadyResolved Outcome = "already_resolved"
	OutcomeExpired         Outcome = "expired"
)

// trackedRequest pairs a request with the mutex that guards its status
// transition. The read-check-write of "still pending and unexpired" and the
// terminal write are atomic relative to all callers touching this id.
type trackedRequest struct {
	mu  sync.Mutex
	req model.ApprovalRequest
}

// ApprovalBroker creates, stores, and resolves approval requests. Requests
// are held in memory: their whole lifetime is bounded by RequestTTL plus the
// retention window, and the atomic check-and-transition the lifecycle needs
// is an in-process critical section. Different requests are independent and
// resolve fully in parallel.
type ApprovalBroker struct {
	logger zerolog.Logger
	now    func() time.Time

	mu       sync.RWMutex
	requests map[string]*trackedRequest
}

// NewApprovalBroker creates an empty broker.
func NewApprovalBroker(logger zerolog.Logger) *ApprovalBroker {
	return &ApprovalBroker{
		logger:   logger.With().Str("component", "approval-broker").Logger(),
		now:      time.Now,
		requests: make(map[string]*trackedRequest),
	}
}

// Create stores a new pending request and returns its id. It always succeeds.
func (b *ApprovalBroker) Create(endpointID, ownerUserID, userName, command string) string {
	now := b.now()
	req := model.ApprovalRequest{
		ID:          platform.NewID(),
		EndpointID:  endpointID,
		OwnerUserID: ownerUserID,
		UserName:    userName,
		Command:     command,
		Status:      model.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	b.mu.Lock()
	b.requests[req.ID] = &trackedRequest{req: req}
	b.mu.Unlock()

	pendingRequests.Inc()
	b.logger.Info().
		Str("request_id", req.ID).
		Str("endpoint_id", endpointID).
		Str("command", command).
		Msg("approval request created")

	return req.ID
}

// Resolve applies an administrator decision. Exactly one caller ever gets
// OutcomeApplied for a given id: later conflicting decisions get
// OutcomeAlreadyResolved, and a request past its deadline gets
// OutcomeExpired even if the decision arrives "at the same time", since age
// is checked inside the same critical section as the transition.
func (b *ApprovalBroker) Resolve(id, decision string) (Outcome, error) {
	if decision != model.StatusApproved && decision != model.StatusDenied {
		return "", ErrInvalidDecision
	}

	tr, ok := b.get(id)
	if !ok {
		return "", ErrNotFound
	}

	tr.mu.Lock()
	defer tr.mu.Unlock()

	b.expireLocked(tr)

	switch {
	case tr.req.Status == model.StatusExpired:
		return OutcomeExpired, nil
	case tr.req.Terminal():
		return OutcomeAlreadyResolved, nil
	}

	tr.req.Status = decision
	tr.req.UpdatedAt = b.now()
	pendingRequests.Dec()
	approvalResolutions.WithLabelValues(decision).Inc()
	b.logger.Info().
		Str("request_id", id).
		Str("decision", decision).
		Msg("approval request resolved")

	return OutcomeApplied, nil
}

// Poll returns the current status of a request. A pending request past its
// deadline is transitioned to expired before the status is returned, so
// expiry is observable even if no administrator ever acts. Poll never
// blocks; it is a single point-in-time read.
func (b *ApprovalBroker) Poll(id string) (string, error) {
	tr, ok := b.get(id)
	if !ok {
		return "", ErrNotFound
	}

	tr.mu.Lock()
	defer tr.mu.Unlock()

	b.expireLocked(tr)
	return tr.req.Status, nil
}

// Get returns a point-in-time snapshot of a request, lazily expiring it.
func (b *ApprovalBroker) Get(id string) (model.ApprovalRequest, error) {
	tr, ok := b.get(id)
	if !ok {
		return model.ApprovalRequest{}, ErrNotFound
	}

	tr.mu.Lock()
	defer tr.mu.Unlock()

	b.expireLocked(tr)
	return tr.req, nil
}

// ListPending returns snapshots of the owner's actionable requests. Entries
// past the deadline are expired on the fly and excluded.
func (b *ApprovalBroker) ListPending(ownerUserID string) map[string]model.ApprovalRequest {
	b.mu.RLock()
	candidates := make([]*trackedRequest, 0, len(b.requests))
	for _, tr := range b.requests {
		candidates = append(candidates, tr)
	}
	b.mu.RUnlock()

	pending := make(map[string]model.ApprovalRequest)
	for _, tr := range candidates {
		tr.mu.Lock()
		b.expireLocked(tr)
		if tr.req.Status == model.StatusPending && tr.req.OwnerUserID == ownerUserID {
			pending[tr.req.ID] = tr.req
		}
		tr.mu.Unlock()
	}
	return pending
}

// DropEndpoint removes every request referencing a hard-deleted endpoint so
// no orphaned requests survive it. Returns the number of requests dropped.
func (b *ApprovalBroker) DropEndpoint(endpointID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	dropped := 0
	for id, tr := range b.requests {
		if tr.req.EndpointID != endpointID {
			continue
		}
		tr.mu.Lock()
		if tr.req.Status == model.StatusPending {
			pendingRequests.Dec()
		}
		tr.mu.Unlock()
		delete(b.requests, id)
		dropped++
	}

	if dropped > 0 {
		b.logger.Info().
			Str("endpoint_id", endpointID).
			Int("dropped", dropped).
			Msg("dropped requests for deleted endpoint")
	}
	return dropped
}

// Sweep expires overdue pending requests and removes terminal requests past
// the retention window. Returns the number expired and removed.
func (b *ApprovalBroker) Sweep() (expired, removed int) {
	now := b.now()

	b.mu.Lock()
	defer b.mu.Unlock()

	for id, tr := range b.requests {
		tr.mu.Lock()
		wasPending := tr.req.Status == model.StatusPending
		b.expireLocked(tr)
		if wasPending && tr.req.Status == model.StatusExpired {
			expired++
		}
		if tr.req.Terminal() && now.Sub(tr.req.UpdatedAt) > terminalRetention {
			delete(b.requests, id)
			removed++
		}
		tr.mu.Unlock()
	}
	return expired, removed
}

// Run sweeps periodically until the context is cancelled. Memory stays
// bounded even when agents abandon their poll loops.
func (b *ApprovalBroker) Run(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			expired, removed := b.Sweep()
			if expired > 0 || removed > 0 {
				b.logger.Debug().
					Int("expired", expired).
					Int("removed", removed).
					Msg("swept approval requests")
			}
		}
	}
}

// Len returns the number of requests currently held, terminal included.
func (b *ApprovalBroker) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.requests)
}

func (b *ApprovalBroker) get(id string) (*trackedRequest, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	tr, ok := b.requests[id]
	return tr, ok
}

// expireLocked transitions an overdue pending request to expired. The caller
// must hold tr.mu: the age check and the transition are a single critical
// section, so expiry deterministically beats a racing decision.
func (b *ApprovalBroker) expireLocked(tr *trackedRequest) {
	if tr.req.Status != model.StatusPending {
		return
	}
	now := b.now()
	if now.Sub(tr.req.CreatedAt) <= RequestTTL {
		return
	}

	tr.req.Status = model.StatusExpired
	tr.req.UpdatedAt = now
	pendingRequests.Dec()
	requestsExpired.Inc()
	b.logger.Info().
		Str("request_id", tr.req.ID).
		Str("command", tr.req.Command).
		Msg("approval request expired")
}

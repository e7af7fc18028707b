package escrow

import (
	"context"
	"errors"
	"sync"
	"time"

	"meetnmart/pkg/logger"

	"github.com/google/uuid"
)

var (
	ErrNotFound               = errors.New("escrow: transaction not found")
	ErrInvalidArgument        = errors.New("escrow: invalid argument")
	ErrInvalidAmount          = errors.New("escrow: amount must be positive")
	ErrNoActiveCall           = errors.New("escrow: call session not active")
	ErrInvalidStateTransition = errors.New("escrow: invalid state transition")
	ErrReferenceConflict      = errors.New("escrow: provider reference conflict")
	ErrChargeMismatch         = errors.New("escrow: captured charge does not match hold")
)

// CallGate answers whether a call session is currently active.
// Implemented by the call session manager; escrow never mutates call state.
type CallGate interface {
	IsActive(sessionID string) bool
}

// Repository persists transactions. The SQL implementation mirrors rows
// server-side; MemoryRepo backs tests.
type Repository interface {
	Insert(ctx context.Context, t Transaction) error
	Get(ctx context.Context, id string) (Transaction, bool, error)
	Update(ctx context.Context, t Transaction) error

	// DeletePending removes a pending transaction whose charge failed.
	// Failed pendings leave no record; only confirmed money states persist.
	DeletePending(ctx context.Context, id string) error
}

// TxRepository is implemented by repositories that can serialize a
// read-modify-write on one transaction row. The SQL implementation locks the
// row inside a database transaction so duplicate provider callbacks landing
// on different processes queue instead of racing; MemoryRepo relies on the
// service mutex alone and does not implement it.
type TxRepository interface {
	Mutate(ctx context.Context, id string, fn func(t *Transaction) (write bool, err error)) (Transaction, bool, error)
}

// Service owns escrow transaction lifecycles keyed by owning call session.
//
// All transitions run under one mutex so duplicate provider callbacks and
// channel events apply atomically against current state.
type Service struct {
	mu    sync.Mutex
	repo  Repository
	gate  CallGate
	clock func() time.Time
	subs  []func(Transition)
}

func NewService(repo Repository, gate CallGate) *Service {
	return &Service{repo: repo, gate: gate, clock: time.Now}
}

// SubscribeTransitions registers a listener for every state change.
func (s *Service) SubscribeTransitions(fn func(Transition)) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

// CreateRequest describes a new hold. Amount is fixed at creation.
type CreateRequest struct {
	CallSessionID string `json:"call_session_id"`
	Kind          Kind   `json:"kind"`
	PayerID       string `json:"payer_id"`
	PayeeID       string `json:"payee_id"`
	AmountMinor   int64  `json:"amount_minor"`
	Currency      string `json:"currency"`
}

// Create records a pending transaction for an active call.
func (s *Service) Create(ctx context.Context, req CreateRequest) (Transaction, error) {
	if req.CallSessionID == "" || req.PayerID == "" || req.PayeeID == "" || req.Currency == "" {
		return Transaction{}, ErrInvalidArgument
	}
	if !ValidKind(req.Kind) {
		return Transaction{}, ErrInvalidArgument
	}
	if req.AmountMinor <= 0 {
		return Transaction{}, ErrInvalidAmount
	}
	if s.gate == nil || !s.gate.IsActive(req.CallSessionID) {
		return Transaction{}, ErrNoActiveCall
	}

	t := Transaction{
		ID:            uuid.NewString(),
		CallSessionID: req.CallSessionID,
		PayerID:       req.PayerID,
		PayeeID:       req.PayeeID,
		Kind:          req.Kind,
		AmountMinor:   req.AmountMinor,
		Currency:      req.Currency,
		Status:        StatusPending,
		CreatedAt:     s.clock().UTC(),
	}

	s.mu.Lock()
	err := s.repo.Insert(ctx, t)
	s.mu.Unlock()
	if err != nil {
		return Transaction{}, err
	}

	s.emit(Transition{TransactionID: t.ID, CallSessionID: t.CallSessionID, From: "", To: StatusPending, At: t.CreatedAt})
	return t, nil
}

// FundingConfirmation is the provider's evidence that a charge was captured.
// It comes from webhook payloads or a verify call, never from client input.
type FundingConfirmation struct {
	Reference   string
	AmountMinor int64
	Currency    string
}

// ConfirmFunded applies the provider's capture confirmation: pending → held.
//
// The captured amount and currency must match the hold exactly; a successful
// charge for some other amount never confirms this transaction.
//
// Providers redeliver callbacks, so this is idempotent: confirming a held
// transaction with the same reference is a no-op. A different reference on a
// held transaction means two charges mapped to one hold and is rejected.
func (s *Service) ConfirmFunded(ctx context.Context, id string, conf FundingConfirmation) (Transaction, error) {
	if id == "" || conf.Reference == "" {
		return Transaction{}, ErrInvalidArgument
	}

	now := s.clock().UTC()
	var applied bool
	t, err := s.mutate(ctx, id, func(t *Transaction) (bool, error) {
		switch t.Status {
		case StatusPending:
			// fall through to apply
		case StatusHeld:
			if t.Reference == conf.Reference {
				logger.From(ctx).Debug("duplicate funding confirmation ignored",
					"transaction_id", id, "reference", conf.Reference)
				return false, nil
			}
			return false, ErrReferenceConflict
		default:
			return false, ErrInvalidStateTransition
		}

		if conf.AmountMinor != t.AmountMinor || conf.Currency != t.Currency {
			return false, ErrChargeMismatch
		}

		t.Status = StatusHeld
		t.Reference = conf.Reference
		applied = true
		return true, nil
	})
	if err != nil {
		return Transaction{}, err
	}

	if applied {
		s.emit(Transition{TransactionID: t.ID, CallSessionID: t.CallSessionID, From: StatusPending, To: StatusHeld, At: now})
	}
	return t, nil
}

// Discard removes a pending transaction after the provider reported
// failure or the payer closed the widget. No record survives.
func (s *Service) Discard(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidArgument
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	if t.Status != StatusPending {
		return ErrInvalidStateTransition
	}
	return s.repo.DeletePending(ctx, id)
}

// Release pays out to the payee. Legal from held (payer confirms
// satisfaction) and from disputed (moderation resolved for the payee).
func (s *Service) Release(ctx context.Context, id string) (Transaction, error) {
	return s.resolve(ctx, id, StatusReleased, func(st Status) bool {
		return st == StatusHeld || st == StatusDisputed
	})
}

// Refund returns funds to the payer. Legal only from disputed.
func (s *Service) Refund(ctx context.Context, id string) (Transaction, error) {
	return s.resolve(ctx, id, StatusRefunded, func(st Status) bool {
		return st == StatusDisputed
	})
}

// MarkDisputed hands a held transaction to the external moderation workflow.
func (s *Service) MarkDisputed(ctx context.Context, id, reason string) (Transaction, error) {
	if id == "" || reason == "" {
		return Transaction{}, ErrInvalidArgument
	}

	now := s.clock().UTC()
	t, err := s.mutate(ctx, id, func(t *Transaction) (bool, error) {
		if t.Status != StatusHeld {
			return false, ErrInvalidStateTransition
		}
		t.Status = StatusDisputed
		t.DisputeReason = reason
		return true, nil
	})
	if err != nil {
		return Transaction{}, err
	}

	s.emit(Transition{TransactionID: t.ID, CallSessionID: t.CallSessionID, From: StatusHeld, To: StatusDisputed, At: now})
	return t, nil
}

// Get returns a transaction by id.
func (s *Service) Get(ctx context.Context, id string) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok, err := s.repo.Get(ctx, id)
	if err != nil {
		return Transaction{}, err
	}
	if !ok {
		return Transaction{}, ErrNotFound
	}
	return t, nil
}

func (s *Service) resolve(ctx context.Context, id string, to Status, legalFrom func(Status) bool) (Transaction, error) {
	if id == "" {
		return Transaction{}, ErrInvalidArgument
	}

	now := s.clock().UTC()
	var from Status
	t, err := s.mutate(ctx, id, func(t *Transaction) (bool, error) {
		if !legalFrom(t.Status) {
			return false, ErrInvalidStateTransition
		}
		from = t.Status
		t.Status = to
		t.ResolvedAt = &now
		return true, nil
	})
	if err != nil {
		return Transaction{}, err
	}

	s.emit(Transition{TransactionID: t.ID, CallSessionID: t.CallSessionID, From: from, To: to, At: now})
	return t, nil
}

// mutate runs a guarded read-modify-write on one transaction. Repositories
// that can scope it to a database transaction get the row-locked path; the
// in-memory fallback is serialized by the service mutex.
func (s *Service) mutate(ctx context.Context, id string, fn func(*Transaction) (bool, error)) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if txr, ok := s.repo.(TxRepository); ok {
		t, found, err := txr.Mutate(ctx, id, fn)
		if err != nil {
			return Transaction{}, err
		}
		if !found {
			return Transaction{}, ErrNotFound
		}
		return t, nil
	}

	t, found, err := s.repo.Get(ctx, id)
	if err != nil {
		return Transaction{}, err
	}
	if !found {
		return Transaction{}, ErrNotFound
	}
	write, err := fn(&t)
	if err != nil {
		return Transaction{}, err
	}
	if write {
		if err := s.repo.Update(ctx, t); err != nil {
			return Transaction{}, err
		}
	}
	return t, nil
}

func (s *Service) emit(tr Transition) {
	s.mu.Lock()
	subs := make([]func(Transition), len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()
	for _, fn := range subs {
		fn(tr)
	}
}

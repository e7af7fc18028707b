package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only. No Update/Delete methods are provided by design.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service logs internal audit information.
//
// Audit is internal-only; records are not exposed to marketplace users.
// Callers should treat audit logging as best-effort.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}
	if e.ActorUserID == "" {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// LogDisputeResolution records a moderator's decision on a disputed hold.
func (s *Service) LogDisputeResolution(ctx context.Context, actorUserID, actorRole, ip, transactionID, outcome, metadata string) error {
	return s.Append(ctx, Event{
		Type:          EventTypeDisputeResolved,
		ActorUserID:   actorUserID,
		ActorRole:     actorRole,
		IPAddress:     ip,
		TransactionID: transactionID,
		Message:       "dispute resolved: " + outcome,
		Metadata:      metadata,
	})
}

// LogAdminAction records a privileged action against a call or transaction.
func (s *Service) LogAdminAction(ctx context.Context, actorUserID, actorRole, ip, callSessionID, transactionID, message, metadata string) error {
	return s.Append(ctx, Event{
		Type:          EventTypeAdminAction,
		ActorUserID:   actorUserID,
		ActorRole:     actorRole,
		IPAddress:     ip,
		CallSessionID: callSessionID,
		TransactionID: transactionID,
		Message:       message,
		Metadata:      metadata,
	})
}

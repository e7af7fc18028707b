package calls

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"meetnmart/pkg/logger"

	"github.com/google/uuid"
)

var (
	ErrNotFound            = errors.New("calls: session not found")
	ErrInvalidArgument     = errors.New("calls: invalid argument")
	ErrInvalidTarget       = errors.New("calls: target unreachable")
	ErrProviderUnavailable = errors.New("calls: room provider unavailable")
	ErrCallInProgress      = errors.New("calls: call already in progress")
	ErrSessionNotActive    = errors.New("calls: session not active")
)

// RoomProvider creates video rooms at the external call provider.
type RoomProvider interface {
	CreateRoom(ctx context.Context, name string) (string, error)
}

// Presence answers whether a user is currently callable
// (online and not in do-not-disturb).
type Presence interface {
	Reachable(ctx context.Context, userID string) (bool, error)
}

// SlotStore enforces the single-active-call policy across processes.
// Acquire returns false when the user already holds a call slot.
type SlotStore interface {
	Acquire(ctx context.Context, userID, sessionID string) (bool, error)
	Release(ctx context.Context, userID, sessionID string) error
}

// Recorder mirrors session records to the backend store. Mirroring is
// best-effort; the backend reconciles cross-device state asynchronously.
type Recorder interface {
	Save(ctx context.Context, s CallSession) error
}

// Config holds call lifecycle policy.
type Config struct {
	// RingTimeout bounds how long a session may stay requested/ringing.
	RingTimeout time.Duration

	// SlotTTL bounds the call-slot reservation.
	SlotTTL time.Duration
}

func (c Config) withDefaults() Config {
	out := c
	if out.RingTimeout <= 0 {
		out.RingTimeout = 40 * time.Second
	}
	if out.SlotTTL <= 0 {
		out.SlotTTL = 4 * time.Hour
	}
	return out
}

// Manager owns call session lifecycles.
//
// All transitions are applied under one mutex, so channel events arriving
// during a transition queue rather than interleave. The ring timer re-checks
// session status under the same lock before applying the timeout, which
// guarantees it never fires after a resolution.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*CallSession
	timers   map[string]*time.Timer

	// liveByUser maps a user to their one non-terminal session.
	liveByUser map[string]string

	subs []func(Transition)

	cfg      Config
	rooms    RoomProvider
	presence Presence
	slots    SlotStore
	recorder Recorder
	clock    func() time.Time
}

func NewManager(cfg Config, rooms RoomProvider) *Manager {
	return &Manager{
		sessions:   make(map[string]*CallSession),
		timers:     make(map[string]*time.Timer),
		liveByUser: make(map[string]string),
		cfg:        cfg.withDefaults(),
		rooms:      rooms,
		clock:      time.Now,
	}
}

// WithPresence installs the reachability check used by InitiateCall.
func (m *Manager) WithPresence(p Presence) *Manager { m.presence = p; return m }

// WithSlots installs the cross-process single-active-call store.
func (m *Manager) WithSlots(s SlotStore) *Manager { m.slots = s; return m }

// WithRecorder installs the best-effort backend mirror.
func (m *Manager) WithRecorder(r Recorder) *Manager { m.recorder = r; return m }

// SubscribeTransitions registers a listener for every state change.
// Listeners run after the lock is released, in transition order.
func (m *Manager) SubscribeTransitions(fn func(Transition)) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, fn)
}

// InitiateCall starts an outgoing call from buyer to seller.
// The session enters requested and rings until the remote party resolves it
// or the ring window expires.
func (m *Manager) InitiateCall(ctx context.Context, buyerID, sellerID, category string) (CallSession, error) {
	if buyerID == "" || sellerID == "" || buyerID == sellerID {
		return CallSession{}, ErrInvalidArgument
	}

	if m.presence != nil {
		ok, err := m.presence.Reachable(ctx, sellerID)
		if err != nil {
			return CallSession{}, fmt.Errorf("presence lookup: %w", err)
		}
		if !ok {
			return CallSession{}, ErrInvalidTarget
		}
	}

	m.mu.Lock()
	if _, busy := m.liveByUser[buyerID]; busy {
		m.mu.Unlock()
		return CallSession{}, ErrCallInProgress
	}
	m.mu.Unlock()

	id := uuid.NewString()

	// Room creation is an external call; keep it outside the lock.
	room, err := m.rooms.CreateRoom(ctx, "call-"+id)
	if err != nil {
		return CallSession{}, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	if m.slots != nil {
		ok, err := m.slots.Acquire(ctx, buyerID, id)
		if err != nil {
			return CallSession{}, fmt.Errorf("call slot acquire: %w", err)
		}
		if !ok {
			return CallSession{}, ErrCallInProgress
		}
	}

	now := m.clock().UTC()
	s := &CallSession{
		ID:        id,
		RoomName:  room,
		BuyerID:   buyerID,
		SellerID:  sellerID,
		Category:  category,
		Status:    CallStatusRequested,
		CreatedAt: now,
		Participants: []Participant{
			{UserID: buyerID, Role: RoleBuyer, JoinedAt: now},
		},
	}

	m.mu.Lock()
	if _, busy := m.liveByUser[buyerID]; busy {
		m.mu.Unlock()
		m.releaseSlot(ctx, buyerID, id)
		return CallSession{}, ErrCallInProgress
	}
	m.sessions[id] = s
	m.liveByUser[buyerID] = id
	m.armRingTimerLocked(id)
	tr := Transition{SessionID: id, From: "", To: CallStatusRequested, At: now}
	out := *s
	m.mu.Unlock()

	m.emit(tr)
	m.record(ctx, out)
	return out, nil
}

// Invite is an inbound call invite received via the notification channel.
type Invite struct {
	SessionID string
	RoomName  string
	BuyerID   string
	SellerID  string
	Category  string
}

// HandleInvite registers an inbound invite on the callee side and starts
// ringing. Duplicate invites for a known session are a no-op returning the
// existing session.
func (m *Manager) HandleInvite(ctx context.Context, inv Invite) (CallSession, error) {
	if inv.SessionID == "" || inv.BuyerID == "" || inv.SellerID == "" {
		return CallSession{}, ErrInvalidArgument
	}

	m.mu.Lock()
	if existing, ok := m.sessions[inv.SessionID]; ok {
		out := *existing
		m.mu.Unlock()
		return out, nil
	}
	if _, busy := m.liveByUser[inv.SellerID]; busy {
		m.mu.Unlock()
		return CallSession{}, ErrCallInProgress
	}

	now := m.clock().UTC()
	s := &CallSession{
		ID:        inv.SessionID,
		RoomName:  inv.RoomName,
		BuyerID:   inv.BuyerID,
		SellerID:  inv.SellerID,
		Category:  inv.Category,
		Status:    CallStatusRinging,
		CreatedAt: now,
		Participants: []Participant{
			{UserID: inv.BuyerID, Role: RoleBuyer, JoinedAt: now},
		},
	}
	m.sessions[s.ID] = s
	m.liveByUser[inv.SellerID] = s.ID
	m.armRingTimerLocked(s.ID)
	tr := Transition{SessionID: s.ID, From: "", To: CallStatusRinging, At: now}
	out := *s
	m.mu.Unlock()

	m.emit(tr)
	m.record(ctx, out)
	return out, nil
}

type Decision string

const (
	DecisionAccept Decision = "accept"
	DecisionReject Decision = "reject"
)

// RespondToInvite resolves a requested/ringing session with accept or reject.
// Duplicate or late resolutions are logged no-ops; a session resolves once.
func (m *Manager) RespondToInvite(ctx context.Context, sessionID string, decision Decision) error {
	if decision != DecisionAccept && decision != DecisionReject {
		return ErrInvalidArgument
	}

	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	if s.Status != CallStatusRequested && s.Status != CallStatusRinging {
		status := s.Status
		m.mu.Unlock()
		logger.From(ctx).Info("late invite response ignored",
			"session_id", sessionID, "status", string(status), "decision", string(decision))
		return nil
	}

	m.stopRingTimerLocked(sessionID)
	now := m.clock().UTC()
	from := s.Status

	var tr Transition
	if decision == DecisionAccept {
		s.Status = CallStatusAccepted
		s.Participants = append(s.Participants, Participant{
			UserID: s.SellerID, Role: RoleSeller, JoinedAt: now,
		})
		tr = Transition{SessionID: sessionID, From: from, To: CallStatusAccepted, At: now}
	} else {
		s.Status = CallStatusRejected
		m.cleanupLocked(s)
		tr = Transition{SessionID: sessionID, From: from, To: CallStatusRejected, At: now}
	}
	out := *s
	m.mu.Unlock()

	m.emit(tr)
	m.record(ctx, out)
	if decision == DecisionReject {
		m.releaseSlot(ctx, out.BuyerID, out.ID)
	}
	return nil
}

// MarkConnected moves an accepted session to active once the media
// connection reports connected. Duration starts here.
func (m *Manager) MarkConnected(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	if s.Status == CallStatusActive {
		m.mu.Unlock()
		return nil
	}
	if s.Status != CallStatusAccepted {
		status := s.Status
		m.mu.Unlock()
		logger.From(ctx).Info("connected signal ignored",
			"session_id", sessionID, "status", string(status))
		return nil
	}

	now := m.clock().UTC()
	s.Status = CallStatusActive
	s.StartedAt = &now
	tr := Transition{SessionID: sessionID, From: CallStatusAccepted, To: CallStatusActive, At: now}
	out := *s
	m.mu.Unlock()

	m.emit(tr)
	m.record(ctx, out)
	return nil
}

// EndCall marks a session ended. It always succeeds locally for known
// sessions: remote notification and media teardown are best-effort and
// never block the caller. Ending an already-terminal session is a no-op.
func (m *Manager) EndCall(ctx context.Context, sessionID, reason string) error {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	if s.Status.IsTerminal() {
		m.mu.Unlock()
		return nil
	}

	m.stopRingTimerLocked(sessionID)
	now := m.clock().UTC()
	from := s.Status
	s.Status = CallStatusEnded
	s.EndReason = reason
	if from == CallStatusActive {
		s.EndedAt = &now
	}
	for i := range s.Participants {
		if s.Participants[i].LeftAt == nil {
			s.Participants[i].LeftAt = &now
		}
	}
	m.cleanupLocked(s)
	tr := Transition{SessionID: sessionID, From: from, To: CallStatusEnded, Reason: reason, At: now}
	out := *s
	m.mu.Unlock()

	m.emit(tr)
	m.record(ctx, out)
	m.releaseSlot(ctx, out.BuyerID, out.ID)
	return nil
}

// InviteDeliveryAgent adds a delivery participant. Valid only while active.
func (m *Manager) InviteDeliveryAgent(ctx context.Context, sessionID, agentID string) error {
	if agentID == "" {
		return ErrInvalidArgument
	}

	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	if s.Status != CallStatusActive {
		m.mu.Unlock()
		return ErrSessionNotActive
	}
	for _, p := range s.Participants {
		if p.UserID == agentID && p.LeftAt == nil {
			m.mu.Unlock()
			return nil
		}
	}

	now := m.clock().UTC()
	s.DeliveryAgentID = agentID
	s.Participants = append(s.Participants, Participant{
		UserID: agentID, Role: RoleDelivery, JoinedAt: now,
	})
	out := *s
	m.mu.Unlock()

	m.record(ctx, out)
	return nil
}

// ElapsedSeconds returns live elapsed time while active, the frozen duration
// once ended, and 0 for sessions that never went active.
func (m *Manager) ElapsedSeconds(sessionID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return 0, ErrNotFound
	}
	if s.StartedAt == nil {
		return 0, nil
	}
	end := m.clock().UTC()
	if s.EndedAt != nil {
		end = *s.EndedAt
	}
	return int(end.Sub(*s.StartedAt) / time.Second), nil
}

// Session returns a copy of the session, if known.
func (m *Manager) Session(sessionID string) (CallSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return CallSession{}, false
	}
	return *s, true
}

// IsActive reports whether the session is currently active. The escrow
// manager uses this to gate transaction creation.
func (m *Manager) IsActive(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	return ok && s.Status == CallStatusActive
}

/* ===================== internals ===================== */

func (m *Manager) armRingTimerLocked(sessionID string) {
	m.timers[sessionID] = time.AfterFunc(m.cfg.RingTimeout, func() {
		m.applyRingTimeout(sessionID)
	})
}

func (m *Manager) stopRingTimerLocked(sessionID string) {
	if t, ok := m.timers[sessionID]; ok {
		t.Stop()
		delete(m.timers, sessionID)
	}
}

// applyRingTimeout is the timer callback. The status check under the lock is
// what makes the timer safe against the accept/reject race: a timer that
// fires after resolution finds a non-ringing session and does nothing.
func (m *Manager) applyRingTimeout(sessionID string) {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if !ok || (s.Status != CallStatusRequested && s.Status != CallStatusRinging) {
		m.mu.Unlock()
		return
	}

	delete(m.timers, sessionID)
	now := m.clock().UTC()
	from := s.Status
	s.Status = CallStatusTimedOut
	m.cleanupLocked(s)
	tr := Transition{SessionID: sessionID, From: from, To: CallStatusTimedOut, Reason: "ring window expired", At: now}
	out := *s
	m.mu.Unlock()

	m.emit(tr)
	ctx := context.Background()
	m.record(ctx, out)
	m.releaseSlot(ctx, out.BuyerID, out.ID)
}

// cleanupLocked drops live-session bookkeeping once a session is terminal.
// The session record itself stays queryable.
func (m *Manager) cleanupLocked(s *CallSession) {
	for user, sid := range m.liveByUser {
		if sid == s.ID {
			delete(m.liveByUser, user)
		}
	}
}

func (m *Manager) emit(tr Transition) {
	m.mu.Lock()
	subs := make([]func(Transition), len(m.subs))
	copy(subs, m.subs)
	m.mu.Unlock()
	for _, fn := range subs {
		fn(tr)
	}
}

func (m *Manager) record(ctx context.Context, s CallSession) {
	if m.recorder == nil {
		return
	}
	if err := m.recorder.Save(ctx, s); err != nil {
		logger.From(ctx).Warn("session mirror failed", "session_id", s.ID, "err", err)
	}
}

func (m *Manager) releaseSlot(ctx context.Context, userID, sessionID string) {
	if m.slots == nil {
		return
	}
	if err := m.slots.Release(ctx, userID, sessionID); err != nil {
		logger.From(ctx).Warn("call slot release failed", "session_id", sessionID, "err", err)
	}
}

package calls

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeRooms struct {
	fail error
}

func (f *fakeRooms) CreateRoom(ctx context.Context, name string) (string, error) {
	if f.fail != nil {
		return "", f.fail
	}
	return name, nil
}

type fakePresence struct {
	reachable bool
	err       error
}

func (f *fakePresence) Reachable(ctx context.Context, userID string) (bool, error) {
	return f.reachable, f.err
}

type fakeSlots struct {
	mu    sync.Mutex
	slots map[string]string
}

func newFakeSlots() *fakeSlots { return &fakeSlots{slots: make(map[string]string)} }

func (f *fakeSlots) Acquire(ctx context.Context, userID, sessionID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.slots[userID]; ok {
		return false, nil
	}
	f.slots[userID] = sessionID
	return true, nil
}

func (f *fakeSlots) Release(ctx context.Context, userID, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.slots[userID] == sessionID {
		delete(f.slots, userID)
	}
	return nil
}

func newTestManager(t *testing.T) (*Manager, *time.Time) {
	t.Helper()
	now := time.Unix(1700000000, 0).UTC()
	m := NewManager(Config{RingTimeout: time.Hour}, &fakeRooms{})
	m.clock = func() time.Time { return now }
	return m, &now
}

func TestInitiateCall_Lifecycle(t *testing.T) {
	ctx := context.Background()
	m, now := newTestManager(t)

	s, err := m.InitiateCall(ctx, "buyer", "seller", "produce")
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if s.Status != CallStatusRequested {
		t.Fatalf("expected requested, got %s", s.Status)
	}
	if s.RoomName != "call-"+s.ID {
		t.Fatalf("unexpected room name %q", s.RoomName)
	}
	if len(s.Participants) != 1 || s.Participants[0].UserID != "buyer" {
		t.Fatalf("expected buyer participant, got %+v", s.Participants)
	}

	if err := m.RespondToInvite(ctx, s.ID, DecisionAccept); err != nil {
		t.Fatalf("accept: %v", err)
	}
	got, _ := m.Session(s.ID)
	if got.Status != CallStatusAccepted {
		t.Fatalf("expected accepted, got %s", got.Status)
	}
	if len(got.Participants) != 2 {
		t.Fatalf("expected seller joined, got %+v", got.Participants)
	}

	if err := m.MarkConnected(ctx, s.ID); err != nil {
		t.Fatalf("connected: %v", err)
	}
	if !m.IsActive(s.ID) {
		t.Fatalf("expected active session")
	}

	*now = now.Add(90 * time.Second)
	if err := m.EndCall(ctx, s.ID, "buyer hangup"); err != nil {
		t.Fatalf("end: %v", err)
	}

	got, _ = m.Session(s.ID)
	if got.Status != CallStatusEnded || got.EndReason != "buyer hangup" {
		t.Fatalf("unexpected end state: %+v", got)
	}
	if got.StartedAt == nil || got.EndedAt == nil {
		t.Fatalf("expected duration endpoints set")
	}
	for _, p := range got.Participants {
		if p.LeftAt == nil {
			t.Fatalf("expected all participants marked left")
		}
	}

	// duration freezes at end time
	*now = now.Add(time.Hour)
	sec, err := m.ElapsedSeconds(s.ID)
	if err != nil {
		t.Fatalf("elapsed: %v", err)
	}
	if sec != 90 {
		t.Fatalf("expected 90s, got %d", sec)
	}
}

func TestInitiateCall_Validation(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)

	cases := []struct{ buyer, seller string }{
		{"", "seller"},
		{"buyer", ""},
		{"same", "same"},
	}
	for _, tc := range cases {
		if _, err := m.InitiateCall(ctx, tc.buyer, tc.seller, ""); !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("buyer=%q seller=%q: expected ErrInvalidArgument, got %v", tc.buyer, tc.seller, err)
		}
	}
}

func TestInitiateCall_UnreachableSeller(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)
	m.WithPresence(&fakePresence{reachable: false})

	if _, err := m.InitiateCall(ctx, "buyer", "seller", ""); !errors.Is(err, ErrInvalidTarget) {
		t.Fatalf("expected ErrInvalidTarget, got %v", err)
	}
	if _, ok := m.Session("anything"); ok {
		t.Fatalf("no session should exist")
	}
}

func TestInitiateCall_ProviderDown(t *testing.T) {
	ctx := context.Background()
	m := NewManager(Config{}, &fakeRooms{fail: errors.New("503")})

	if _, err := m.InitiateCall(ctx, "buyer", "seller", ""); !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestInitiateCall_SingleActiveCallPerUser(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)
	m.WithSlots(newFakeSlots())

	s, err := m.InitiateCall(ctx, "buyer", "seller", "")
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if _, err := m.InitiateCall(ctx, "buyer", "other-seller", ""); !errors.Is(err, ErrCallInProgress) {
		t.Fatalf("expected ErrCallInProgress, got %v", err)
	}

	if err := m.EndCall(ctx, s.ID, "done"); err != nil {
		t.Fatalf("end: %v", err)
	}
	if _, err := m.InitiateCall(ctx, "buyer", "other-seller", ""); err != nil {
		t.Fatalf("expected new call after end, got %v", err)
	}
}

func TestRespondToInvite_RejectIsTerminal(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)

	s, _ := m.InitiateCall(ctx, "buyer", "seller", "")
	if err := m.RespondToInvite(ctx, s.ID, DecisionReject); err != nil {
		t.Fatalf("reject: %v", err)
	}

	// late accept is a no-op, not an error
	if err := m.RespondToInvite(ctx, s.ID, DecisionAccept); err != nil {
		t.Fatalf("late accept: %v", err)
	}
	got, _ := m.Session(s.ID)
	if got.Status != CallStatusRejected {
		t.Fatalf("expected rejected to stick, got %s", got.Status)
	}

	if err := m.MarkConnected(ctx, s.ID); err != nil {
		t.Fatalf("connected after reject: %v", err)
	}
	got, _ = m.Session(s.ID)
	if got.Status != CallStatusRejected {
		t.Fatalf("terminal state must absorb, got %s", got.Status)
	}
}

func TestRespondToInvite_Validation(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)

	if err := m.RespondToInvite(ctx, "missing", DecisionAccept); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	s, _ := m.InitiateCall(ctx, "buyer", "seller", "")
	if err := m.RespondToInvite(ctx, s.ID, Decision("maybe")); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestRingTimeout(t *testing.T) {
	ctx := context.Background()
	m := NewManager(Config{RingTimeout: 5 * time.Millisecond}, &fakeRooms{})

	s, err := m.InitiateCall(ctx, "buyer", "seller", "")
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		got, _ := m.Session(s.ID)
		if got.Status == CallStatusTimedOut {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("session never timed out, status %s", got.Status)
		}
		time.Sleep(time.Millisecond)
	}

	// a response arriving after the timeout must not resurrect the session
	if err := m.RespondToInvite(ctx, s.ID, DecisionAccept); err != nil {
		t.Fatalf("late response: %v", err)
	}
	got, _ := m.Session(s.ID)
	if got.Status != CallStatusTimedOut {
		t.Fatalf("expected timed_out to stick, got %s", got.Status)
	}
}

func TestRingTimeoutNeverFiresAfterAccept(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)

	s, _ := m.InitiateCall(ctx, "buyer", "seller", "")
	if err := m.RespondToInvite(ctx, s.ID, DecisionAccept); err != nil {
		t.Fatalf("accept: %v", err)
	}

	// simulate a timer callback that lost the race with the accept
	m.applyRingTimeout(s.ID)

	got, _ := m.Session(s.ID)
	if got.Status != CallStatusAccepted {
		t.Fatalf("timeout must not override accept, got %s", got.Status)
	}
}

func TestEndCall_BeforeActiveHasNoDuration(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)

	s, _ := m.InitiateCall(ctx, "buyer", "seller", "")
	if err := m.RespondToInvite(ctx, s.ID, DecisionAccept); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if err := m.EndCall(ctx, s.ID, "changed mind"); err != nil {
		t.Fatalf("end: %v", err)
	}

	got, _ := m.Session(s.ID)
	if got.Status != CallStatusEnded {
		t.Fatalf("expected ended, got %s", got.Status)
	}
	if got.EndedAt != nil {
		t.Fatalf("never-active session must have no end timestamp")
	}
	sec, _ := m.ElapsedSeconds(s.ID)
	if sec != 0 {
		t.Fatalf("expected 0s elapsed, got %d", sec)
	}

	// ending again is a no-op
	if err := m.EndCall(ctx, s.ID, "again"); err != nil {
		t.Fatalf("second end: %v", err)
	}
	got, _ = m.Session(s.ID)
	if got.EndReason != "changed mind" {
		t.Fatalf("end reason must not change on repeat, got %q", got.EndReason)
	}
}

func TestInviteDeliveryAgent(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)

	s, _ := m.InitiateCall(ctx, "buyer", "seller", "")
	if err := m.InviteDeliveryAgent(ctx, s.ID, "agent"); !errors.Is(err, ErrSessionNotActive) {
		t.Fatalf("expected ErrSessionNotActive before active, got %v", err)
	}

	_ = m.RespondToInvite(ctx, s.ID, DecisionAccept)
	_ = m.MarkConnected(ctx, s.ID)

	if err := m.InviteDeliveryAgent(ctx, s.ID, "agent"); err != nil {
		t.Fatalf("invite: %v", err)
	}
	// repeat invite for the same agent is a no-op
	if err := m.InviteDeliveryAgent(ctx, s.ID, "agent"); err != nil {
		t.Fatalf("repeat invite: %v", err)
	}

	got, _ := m.Session(s.ID)
	if got.DeliveryAgentID != "agent" {
		t.Fatalf("expected agent recorded, got %q", got.DeliveryAgentID)
	}
	if len(got.Participants) != 3 {
		t.Fatalf("expected 3 participants, got %d", len(got.Participants))
	}

	if err := m.InviteDeliveryAgent(ctx, s.ID, ""); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestHandleInvite_Idempotent(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)

	inv := Invite{SessionID: "s1", RoomName: "call-s1", BuyerID: "buyer", SellerID: "seller"}
	first, err := m.HandleInvite(ctx, inv)
	if err != nil {
		t.Fatalf("invite: %v", err)
	}
	if first.Status != CallStatusRinging {
		t.Fatalf("expected ringing, got %s", first.Status)
	}

	second, err := m.HandleInvite(ctx, inv)
	if err != nil {
		t.Fatalf("duplicate invite: %v", err)
	}
	if second.ID != first.ID || second.Status != first.Status {
		t.Fatalf("duplicate invite must return existing session")
	}
}

func TestTransitionsEmittedInOrder(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)

	var mu sync.Mutex
	var seen []CallStatus
	m.SubscribeTransitions(func(tr Transition) {
		mu.Lock()
		seen = append(seen, tr.To)
		mu.Unlock()
	})

	s, _ := m.InitiateCall(ctx, "buyer", "seller", "")
	_ = m.RespondToInvite(ctx, s.ID, DecisionAccept)
	_ = m.MarkConnected(ctx, s.ID)
	_ = m.EndCall(ctx, s.ID, "done")

	want := []CallStatus{CallStatusRequested, CallStatusAccepted, CallStatusActive, CallStatusEnded}
	mu.Lock()
	defer mu.Unlock()
	if len(seen) != len(want) {
		t.Fatalf("expected %d transitions, got %v", len(want), seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("transition %d: expected %s, got %s", i, want[i], seen[i])
		}
	}
}

func TestSessionMirroredToRecorder(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)
	rec := NewMemoryRecorder()
	m.WithRecorder(rec)

	s, _ := m.InitiateCall(ctx, "buyer", "seller", "fish")
	_ = m.RespondToInvite(ctx, s.ID, DecisionAccept)
	_ = m.MarkConnected(ctx, s.ID)
	_ = m.EndCall(ctx, s.ID, "done")

	got, ok := rec.Get(s.ID)
	if !ok {
		t.Fatalf("expected mirrored session")
	}
	if got.Status != CallStatusEnded || got.Category != "fish" {
		t.Fatalf("unexpected mirror: %+v", got)
	}
}

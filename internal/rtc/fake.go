package rtc

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// FakeProvider is an in-memory provider for tests and local development.
type FakeProvider struct {
	mu    sync.Mutex
	rooms map[string]RoomInfo

	// FailCreate, when set, is returned from CreateRoom.
	FailCreate error
}

func NewFakeProvider() *FakeProvider {
	return &FakeProvider{rooms: make(map[string]RoomInfo)}
}

func (p *FakeProvider) Name() string { return "fake" }

func (p *FakeProvider) HealthCheck(ctx context.Context) error { return nil }

func (p *FakeProvider) CreateRoom(ctx context.Context, name string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.FailCreate != nil {
		return "", p.FailCreate
	}
	p.rooms[name] = RoomInfo{Name: name, CreatedAt: time.Now().UTC()}
	return name, nil
}

func (p *FakeProvider) AccessToken(room, identity string, isHost bool) (string, error) {
	if room == "" || identity == "" {
		return "", fmt.Errorf("rtc: room and identity are required")
	}
	return fmt.Sprintf("fake-token:%s:%s", room, identity), nil
}

// HasRoom reports whether a room was created.
func (p *FakeProvider) HasRoom(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.rooms[name]
	return ok
}

package rtc

import (
	"context"
	"time"
)

// Provider defines the provider-agnostic video-call interface used by
// business logic.
//
// Rules:
// - No provider SDK calls outside rtc adapters.
// - Media transport internals are the provider's problem; this service only
//   creates rooms and mints join tokens.
type Provider interface {
	Name() string
	HealthCheck(ctx context.Context) error

	// CreateRoom creates an addressable room and returns its handle.
	CreateRoom(ctx context.Context, name string) (string, error)

	// AccessToken mints a join token for a participant.
	// Hosts may admit and remove other participants.
	AccessToken(room, identity string, isHost bool) (string, error)
}

// RoomInfo is a provider-agnostic room descriptor.
type RoomInfo struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`

	// MaxParticipants of 0 means provider default.
	MaxParticipants int `json:"max_participants,omitempty"`
}

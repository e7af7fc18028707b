package rtc

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// VideoGrant mirrors the LiveKit-style grant embedded in room access tokens.
type VideoGrant struct {
	Room         string `json:"room,omitempty"`
	RoomJoin     bool   `json:"roomJoin,omitempty"`
	RoomAdmin    bool   `json:"roomAdmin,omitempty"`
	RoomCreate   bool   `json:"roomCreate,omitempty"`
	CanPublish   bool   `json:"canPublish,omitempty"`
	CanSubscribe bool   `json:"canSubscribe,omitempty"`
}

type tokenClaims struct {
	jwt.RegisteredClaims

	Video VideoGrant `json:"video"`
}

// TokenMinter signs HS256 room access tokens with the provider API key pair.
type TokenMinter struct {
	apiKey    string
	apiSecret []byte
	ttl       time.Duration
	clock     func() time.Time
}

func NewTokenMinter(apiKey, apiSecret string, ttl time.Duration) (*TokenMinter, error) {
	if apiKey == "" || apiSecret == "" {
		return nil, errors.New("rtc: api key and secret are required")
	}
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	return &TokenMinter{
		apiKey:    apiKey,
		apiSecret: []byte(apiSecret),
		ttl:       ttl,
		clock:     time.Now,
	}, nil
}

// Mint returns a join token for identity in room. Hosts get room admin.
func (m *TokenMinter) Mint(room, identity string, isHost bool) (string, error) {
	if room == "" || identity == "" {
		return "", errors.New("rtc: room and identity are required")
	}

	now := m.clock()
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.apiKey,
			Subject:   identity,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
		Video: VideoGrant{
			Room:         room,
			RoomJoin:     true,
			RoomAdmin:    isHost,
			CanPublish:   true,
			CanSubscribe: true,
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(m.apiSecret)
}

// mintServerToken returns a short-lived token for server-to-server API calls.
func (m *TokenMinter) mintServerToken() (string, error) {
	now := m.clock()
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.apiKey,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
		},
		Video: VideoGrant{RoomCreate: true},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(m.apiSecret)
}

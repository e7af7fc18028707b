package rtc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"meetnmart/internal/config"
)

// LiveKitProvider talks to a LiveKit-compatible room service over HTTP.
// Only the room-create and token paths are used; media stays with the provider.
type LiveKitProvider struct {
	hostURL string
	minter  *TokenMinter
	client  *http.Client
}

func NewLiveKitProvider(cfg config.RTCConfig) (*LiveKitProvider, error) {
	minter, err := NewTokenMinter(cfg.APIKey, cfg.APISecret, cfg.TokenTTL)
	if err != nil {
		return nil, err
	}
	return &LiveKitProvider{
		hostURL: cfg.HostURL,
		minter:  minter,
		client:  &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (p *LiveKitProvider) Name() string { return "livekit" }

func (p *LiveKitProvider) HealthCheck(ctx context.Context) error {
	if p.hostURL == "" {
		return fmt.Errorf("rtc: host url not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.hostURL, nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("rtc health check: %w", err)
	}
	defer resp.Body.Close()
	return nil
}

// CreateRoom asks the room service for a new room and returns its name.
func (p *LiveKitProvider) CreateRoom(ctx context.Context, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("rtc: room name is required")
	}
	if p.hostURL == "" {
		return "", fmt.Errorf("rtc: host url not configured")
	}

	token, err := p.minter.mintServerToken()
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(map[string]any{"name": name})
	if err != nil {
		return "", err
	}

	url := p.hostURL + "/twirp/livekit.RoomService/CreateRoom"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("rtc create room: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("rtc create room: status %d", resp.StatusCode)
	}

	var out struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("rtc create room: decode: %w", err)
	}
	if out.Name == "" {
		out.Name = name
	}
	return out.Name, nil
}

func (p *LiveKitProvider) AccessToken(room, identity string, isHost bool) (string, error) {
	return p.minter.Mint(room, identity, isHost)
}

// Package webhook adapts the platform collaborators to a small JSON HTTP
// API served by the chat bot process that owns the platform connection.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ganot/voicematch/internal/platform"
)

const defaultTimeout = 10 * time.Second

// Config configures a Client.
type Config struct {
	// BaseURL is the bot's API root, e.g. "http://localhost:8090".
	BaseURL string
	// Token is sent as a bearer token when set.
	Token string
	// HTTPClient defaults to a client with a 10s timeout.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client implements platform.Platform over HTTP.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ platform.Platform = (*Client)(nil)

// StatusError is returned for unexpected HTTP responses.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("webhook: status %d", e.StatusCode)
	}
	return fmt.Sprintf("webhook: status %d: %s", e.StatusCode, e.Message)
}

// New validates cfg and builds a client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("webhook: base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("webhook: invalid base URL %q: %w", cfg.BaseURL, err)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

type provisionBody struct {
	CommunityID  string   `json:"community_id"`
	Name         string   `json:"name"`
	Participants []string `json:"participants"`
}

type notifyBody struct {
	ParticipantID string `json:"participant_id"`
	Message       string `json:"message"`
}

type occupantsBody struct {
	Occupants []string `json:"occupants"`
}

type errorBody struct {
	Error string `json:"error"`
}

// ProvisionSession asks the bot to create a private channel.
func (c *Client) ProvisionSession(ctx context.Context, req platform.ProvisionRequest) (platform.Channel, error) {
	body, err := c.do(ctx, http.MethodPost, "/sessions", provisionBody{
		CommunityID:  req.CommunityID,
		Name:         req.Name,
		Participants: req.Participants[:],
	})
	if err != nil {
		return platform.Channel{}, fmt.Errorf("provisioning session: %w", err)
	}
	var ch platform.Channel
	if err := json.Unmarshal(body, &ch); err != nil {
		return platform.Channel{}, fmt.Errorf("decoding provisioned session: %w", err)
	}
	if ch.ID == "" {
		return platform.Channel{}, errors.New("provisioning session: empty channel id")
	}
	return ch, nil
}

// DestroySession asks the bot to delete a channel.
func (c *Client) DestroySession(ctx context.Context, communityID, channelID string) error {
	if _, err := c.do(ctx, http.MethodDelete, sessionPath(communityID, channelID, ""), nil); err != nil {
		return fmt.Errorf("destroying session %s: %w", channelID, err)
	}
	return nil
}

// Notify asks the bot to send a direct message.
func (c *Client) Notify(ctx context.Context, participantID, message string) error {
	if _, err := c.do(ctx, http.MethodPost, "/notify", notifyBody{ParticipantID: participantID, Message: message}); err != nil {
		return fmt.Errorf("notifying %s: %w", participantID, err)
	}
	return nil
}

// ListLiveOccupants fetches who is connected to a channel.
func (c *Client) ListLiveOccupants(ctx context.Context, communityID, channelID string) ([]string, error) {
	body, err := c.do(ctx, http.MethodGet, sessionPath(communityID, channelID, "/occupants"), nil)
	if err != nil {
		return nil, fmt.Errorf("listing occupants of %s: %w", channelID, err)
	}
	var resp occupantsBody
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding occupants: %w", err)
	}
	return resp.Occupants, nil
}

func sessionPath(communityID, channelID, suffix string) string {
	q := url.Values{"community_id": {communityID}}
	return "/sessions/" + url.PathEscape(channelID) + suffix + "?" + q.Encode()
}

func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	c.logger.Debug("webhook call", "method", method, "path", path, "status", resp.StatusCode)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}
	return nil, statusError(resp.StatusCode, body)
}

func statusError(code int, body []byte) error {
	var eb errorBody
	_ = json.Unmarshal(body, &eb)
	switch code {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", platform.ErrChannelNotFound, eb.Error)
	case http.StatusGone:
		return fmt.Errorf("%w: %s", platform.ErrCommunityNotFound, eb.Error)
	case http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", platform.ErrParticipantNotFound, eb.Error)
	default:
		return &StatusError{StatusCode: code, Message: eb.Error}
	}
}

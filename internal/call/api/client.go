package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/hirelink/intercall/internal/domain"
	"github.com/hirelink/intercall/internal/infra/ports/http/dto"
)

// Client talks to the interview REST API on behalf of a call participant.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// GetByRoom fetches the interview behind a room id. Only participants may
// look it up; anyone else gets ErrForbidden.
func (c *Client) GetByRoom(ctx context.Context, roomID string) (*domain.Interview, error) {
	endpoint := fmt.Sprintf("%s/api/v1/interviews/room/%s", c.baseURL, url.PathEscape(roomID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	var interview domain.Interview
	if err := c.do(req, &interview); err != nil {
		return nil, err
	}

	return &interview, nil
}

// UpdateStatus patches the interview status, optionally stamping the start
// or end time.
func (c *Client) UpdateStatus(ctx context.Context, id uuid.UUID, update dto.UpdateStatusRequest) error {
	body, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("marshal status update: %w", err)
	}

	endpoint := fmt.Sprintf("%s/api/v1/interviews/%s/status", c.baseURL, id)

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, nil)
}

// IceServers fetches the STUN and short-lived TURN configuration.
func (c *Client) IceServers(ctx context.Context) (*dto.IceServersResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/ice", nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	var resp dto.IceServersResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case resp.StatusCode == http.StatusNotFound:
		return domain.ErrInterviewNotFound
	case resp.StatusCode == http.StatusForbidden:
		return domain.ErrForbidden
	case resp.StatusCode == http.StatusConflict:
		return domain.ErrInvalidTransition
	default:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: unexpected status %d: %s", req.Method, req.URL.Path, resp.StatusCode, snippet)
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

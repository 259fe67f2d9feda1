package boothsim

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/okian/triagebooth/internal/domain/model"
	"github.com/okian/triagebooth/internal/domain/types"
)

// Client talks to the booth REST facade.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a client for baseURL with the given request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type reply struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (r reply) err() error {
	text := r.Message
	if text == "" {
		text = r.Error
	}
	return fmt.Errorf("%w: %s: %s", ErrRejected, r.Code, text)
}

type startReply struct {
	reply
	Session *model.Session `json:"session"`
}

// ScanReply is the outcome of one scan.
type ScanReply struct {
	OK           bool   `json:"ok"`
	Code         string `json:"code"`
	Message      string `json:"message"`
	TotalScanned int    `json:"totalScanned"`
	Total        int    `json:"total"`
}

type decisionReply struct {
	reply
	Result      *model.Result          `json:"result"`
	Leaderboard []types.LeaderboardRow `json:"leaderboard"`
}

// Health checks that the server answers its metrics endpoint.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/healthz", nil)
	if err != nil {
		return err
	}
	_, err = readResponseBody(resp)
	return err
}

// State fetches the current snapshot.
func (c *Client) State(ctx context.Context) (types.StatePayload, error) {
	var state types.StatePayload
	err := c.call(ctx, http.MethodGet, "/api/state", nil, &state)
	return state, err
}

// Start begins a session for scenarioID.
func (c *Client) Start(ctx context.Context, scenarioID, name, mode string) (*model.Session, error) {
	var out startReply
	req := types.StartPayload{ScenarioID: scenarioID, OperatorName: name, Mode: mode}
	if err := c.call(ctx, http.MethodPost, "/api/scenario", req, &out); err != nil {
		return nil, err
	}
	if !out.OK {
		return nil, out.err()
	}
	return out.Session, nil
}

// Scan submits a tag payload. A rejected scan is not an error.
func (c *Client) Scan(ctx context.Context, payload string) (ScanReply, error) {
	var out ScanReply
	err := c.call(ctx, http.MethodPost, "/api/scan", types.ScanPayload{Payload: payload}, &out)
	return out, err
}

// Decide submits a decision. ok is false when the server ignored it.
func (c *Client) Decide(ctx context.Context, d types.DecisionPayload) (res *model.Result, ok bool, err error) {
	var out decisionReply
	if err := c.call(ctx, http.MethodPost, "/api/decision", d, &out); err != nil {
		return nil, false, err
	}
	return out.Result, out.OK, nil
}

// Leaderboard fetches up to limit rows; limit 0 fetches all of them.
func (c *Client) Leaderboard(ctx context.Context, limit int) ([]types.LeaderboardRow, error) {
	path := "/api/leaderboard"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var rows []types.LeaderboardRow
	err := c.call(ctx, http.MethodGet, path, nil, &rows)
	return rows, err
}

// Reset discards the active session.
func (c *Client) Reset(ctx context.Context) error {
	var out reply
	return c.call(ctx, http.MethodPost, "/api/reset", nil, &out)
}

// call performs a request and decodes a 200 JSON body into out.
func (c *Client) call(ctx context.Context, method, path string, body, out interface{}) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	data, err := readResponseBody(resp)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.client.Do(req)
}

// readResponseBody reads and closes the body. Non-200 answers carry an
// error response; it is turned into ErrUnexpectedStatus.
func readResponseBody(resp *http.Response) ([]byte, error) {
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var r reply
		_ = json.Unmarshal(data, &r)
		return nil, fmt.Errorf("%w %d: %s", ErrUnexpectedStatus, resp.StatusCode, strings.TrimSpace(r.Message+" "+r.Error))
	}
	return data, nil
}

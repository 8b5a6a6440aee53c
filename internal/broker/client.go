package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/harlowquant/meanrev-engine/internal/xerrors"
)

// Client is a plain HTTP client for the broker's session, history,
// order, and position endpoints. It does not retry or circuit-break;
// see CircuitBreakerClient for that.
type Client struct {
	http      *http.Client
	baseURL   string
	accountID string
	token     string
}

// NewClient creates a broker HTTP client.
func NewClient(baseURL, accountID, token string) *Client {
	return &Client{
		http:      &http.Client{Timeout: 10 * time.Second},
		baseURL:   strings.TrimRight(baseURL, "/"),
		accountID: accountID,
		token:     token,
	}
}

// Authenticate obtains a streaming session id from the broker.
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	var resp SessionResponse
	if err := c.doRequest(ctx, http.MethodPost, c.baseURL+"/markets/events/session", nil, &resp); err != nil {
		return "", fmt.Errorf("%w: %w", xerrors.ErrAuth, err)
	}
	return resp.Stream.SessionID, nil
}

// History fetches daily bars for symbol over [start, end] inclusive.
func (c *Client) History(ctx context.Context, symbol string, start, end time.Time) (HistoryResponse, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", "daily")
	params.Set("start", start.Format("2006-01-02"))
	params.Set("end", end.Format("2006-01-02"))
	params.Set("session_filter", "all")

	var resp HistoryResponse
	endpoint := c.baseURL + "/markets/history?" + params.Encode()
	if err := c.doRequest(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return HistoryResponse{}, err
	}
	return resp, nil
}

// SubmitOrder submits a market-day order for symbol.
func (c *Client) SubmitOrder(ctx context.Context, symbol string, side string, quantity int64) (OrderResponse, error) {
	body := url.Values{}
	body.Set("account_id", c.accountID)
	body.Set("class", "equity")
	body.Set("symbol", symbol)
	body.Set("side", side)
	body.Set("quantity", fmt.Sprintf("%d", quantity))
	body.Set("type", "market")
	body.Set("duration", "day")

	var resp OrderResponse
	endpoint := fmt.Sprintf("%s/accounts/%s/orders", c.baseURL, c.accountID)
	if err := c.doFormRequest(ctx, endpoint, body, &resp); err != nil {
		return OrderResponse{}, err
	}
	return resp, nil
}

// Positions fetches the broker's current position snapshot.
func (c *Client) Positions(ctx context.Context) (PositionsResponse, error) {
	var resp PositionsResponse
	endpoint := fmt.Sprintf("%s/accounts/%s/positions", c.baseURL, c.accountID)
	if err := c.doRequest(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return PositionsResponse{}, err
	}
	return resp, nil
}

func (c *Client) doRequest(ctx context.Context, method, endpoint string, body io.Reader, out interface{}) error {
	if body == nil {
		body = http.NoBody
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) doFormRequest(ctx context.Context, endpoint string, form url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "meanrev-engine/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", xerrors.ErrTransientTransport, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 500 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return fmt.Errorf("%w: %s", xerrors.ErrTransientTransport, &APIError{Status: resp.StatusCode, Body: string(body)})
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return &APIError{Status: resp.StatusCode, Body: string(body)}
	}

	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(out); err != nil && err != io.EOF {
		return fmt.Errorf("%w: %v", xerrors.ErrProtocol, err)
	}
	return nil
}

// Package coinbt is a Go client for the coinbt HTTP API.
package coinbt

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Result is a stored backtest result.
type Result struct {
	Strategy            string            `json:"strategy"`
	Market              string            `json:"market"`
	Count               int               `json:"count"`
	InvestmentFraction  float64           `json:"investmentFraction"`
	CumulativeReturnPct float64           `json:"cumulativeReturnPct"`
	WinRatePct          float64           `json:"winRatePct"`
	MaxDrawdownPct      float64           `json:"maxDrawdownPct"`
	Trades              int               `json:"trades"`
	Params              map[string]string `json:"params,omitempty"`
	CreatedAt           time.Time         `json:"createdAt"`
}

// Pick is the ranked strategy for one market.
type Pick struct {
	Symbol              string    `json:"symbol"`
	Strategy            string    `json:"strategy"`
	CumulativeReturnPct float64   `json:"cumulativeReturnPct"`
	RankedAt            time.Time `json:"rankedAt"`
}

// Best maps each strategy to the markets it won in the latest ranking.
type Best struct {
	Strategies []string            `json:"strategies"`
	Assets     map[string][]string `json:"assets"`
}

// Signal is a live strategy signal.
type Signal struct {
	ID        int64     `json:"id"`
	Strategy  string    `json:"strategy"`
	Symbol    string    `json:"symbol"`
	Type      string    `json:"type"`
	Price     float64   `json:"price"`
	BarTime   time.Time `json:"barTime"`
	CreatedAt time.Time `json:"createdAt"`
}

// Strategy describes a registered strategy.
type Strategy struct {
	Name      string            `json:"name"`
	Generator string            `json:"generator"`
	Params    map[string]string `json:"params,omitempty"`
}

// APIError is a non-200 response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("coinbt api: %d %s", e.Status, e.Message)
}

// Client provides a Go SDK for interacting with the coinbt server API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new coinbt API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var body struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(raw, &body) != nil || body.Error == "" {
			body.Error = strings.TrimSpace(string(raw))
		}
		return &APIError{Status: resp.StatusCode, Message: body.Error}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func listQuery(strategy string, limit int) url.Values {
	q := url.Values{}
	if strategy != "" {
		q.Set("strategy", strategy)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return q
}

// Results lists recent backtest results, newest first. An empty strategy
// lists all.
func (c *Client) Results(ctx context.Context, strategy string, limit int) ([]Result, error) {
	var resp struct {
		Results []Result `json:"results"`
	}
	if err := c.get(ctx, "/api/results", listQuery(strategy, limit), &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// Picks returns the latest ranking.
func (c *Client) Picks(ctx context.Context) ([]Pick, error) {
	var resp struct {
		Picks []Pick `json:"picks"`
	}
	if err := c.get(ctx, "/api/picks", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Picks, nil
}

// Best returns the strategy -> markets assignment of the latest ranking.
func (c *Client) Best(ctx context.Context) (*Best, error) {
	var b Best
	if err := c.get(ctx, "/api/best", nil, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// Signals lists recent live signals, newest first.
func (c *Client) Signals(ctx context.Context, strategy string, limit int) ([]Signal, error) {
	var resp struct {
		Signals []Signal `json:"signals"`
	}
	if err := c.get(ctx, "/api/signals", listQuery(strategy, limit), &resp); err != nil {
		return nil, err
	}
	return resp.Signals, nil
}

// Strategies lists the server's registered strategies.
func (c *Client) Strategies(ctx context.Context) ([]Strategy, error) {
	var resp struct {
		Strategies []Strategy `json:"strategies"`
	}
	if err := c.get(ctx, "/api/strategies", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Strategies, nil
}

// Subscribe streams new signals from the websocket feed until ctx is
// cancelled or the connection fails. The returned channel is closed then.
func (c *Client) Subscribe(ctx context.Context) (<-chan Signal, error) {
	u, err := url.Parse(c.baseURL + "/ws")
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", u, err)
	}

	out := make(chan Signal)
	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	go func() {
		defer close(out)
		for {
			var s Signal
			if err := conn.ReadJSON(&s); err != nil {
				return
			}
			select {
			case out <- s:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

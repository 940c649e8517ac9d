package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"pennysync/internal/services"
)

// Client wraps the remote expense-analysis endpoint.
type Client struct {
	endpoint   string
	token      string
	httpClient *http.Client
}

// Option customizes the analysis client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithToken sets the bearer token sent on each request.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = strings.TrimSpace(token)
	}
}

// WithTimeout bounds each call. Zero disables the client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient = &http.Client{Timeout: timeout}
	}
}

// NewClient constructs an analysis client for the given endpoint URL.
func NewClient(endpoint string, opts ...Option) *Client {
	client := &Client{
		endpoint:   strings.TrimRight(strings.TrimSpace(endpoint), "/"),
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{}
	}
	return client
}

// Request is the analysis endpoint's input. At least one of Text and
// ImageBase64 should be set.
type Request struct {
	Text        string `json:"text,omitempty"`
	ImageBase64 string `json:"imageBase64,omitempty"`
}

// ExtractedExpense is one expense the remote model pulled out of the input.
type ExtractedExpense struct {
	Vendor      string          `json:"vendor"`
	Amount      decimal.Decimal `json:"amount"`
	Date        string          `json:"date"`
	Category    string          `json:"category"`
	Description string          `json:"description,omitempty"`
}

// Result captures the analysis endpoint's response. Data always holds at
// least one expense; MultiExpense reports whether the remote detected more
// than one in a single input.
type Result struct {
	Data         []ExtractedExpense
	MultiExpense bool
}

type analysisResponse struct {
	Data         json.RawMessage `json:"data"`
	MultiExpense bool            `json:"multiExpense"`
	Error        string          `json:"error"`
}

// Analyze posts the request and decodes the extracted expenses. The data
// field arrives as a single object or an array depending on how many
// expenses the model found; both shapes decode into Result.Data.
func (c *Client) Analyze(ctx context.Context, req Request) (Result, error) {
	var empty Result
	if strings.TrimSpace(req.Text) == "" && strings.TrimSpace(req.ImageBase64) == "" {
		return empty, services.Wrap(services.ErrValidation, "analysis", "analyze", "text or image required", nil)
	}
	if c.endpoint == "" {
		return empty, services.Wrap(services.ErrConfiguration, "analysis", "analyze", "endpoint not configured", nil)
	}

	encoded, err := json.Marshal(req)
	if err != nil {
		return empty, fmt.Errorf("analysis: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(encoded))
	if err != nil {
		return empty, fmt.Errorf("analysis: request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return empty, services.Wrap(services.ErrTimeout, "analysis", "analyze", "", err)
		}
		return empty, services.Wrap(services.ErrUnavailable, "analysis", "analyze", "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return empty, fmt.Errorf("analysis: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return empty, services.Wrap(services.ErrTransient, "analysis", "analyze",
			fmt.Sprintf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	var decoded analysisResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return empty, fmt.Errorf("analysis: decode response: %w", err)
	}
	if len(decoded.Data) == 0 {
		return empty, fmt.Errorf("analysis: response missing data")
	}

	expenses, err := decodeExpenses(decoded.Data)
	if err != nil {
		return empty, err
	}
	return Result{Data: expenses, MultiExpense: decoded.MultiExpense}, nil
}

func decodeExpenses(raw json.RawMessage) ([]ExtractedExpense, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("analysis: empty data field")
	}
	if trimmed[0] == '[' {
		var many []ExtractedExpense
		if err := json.Unmarshal(trimmed, &many); err != nil {
			return nil, fmt.Errorf("analysis: decode expense array: %w", err)
		}
		return many, nil
	}
	var one ExtractedExpense
	if err := json.Unmarshal(trimmed, &one); err != nil {
		return nil, fmt.Errorf("analysis: decode expense: %w", err)
	}
	return []ExtractedExpense{one}, nil
}

package expenses

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

// Client wraps the remote expense-creation endpoint.
type Client struct {
	endpoint   string
	token      string
	httpClient *http.Client
}

// Option customizes the expenses client.
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

// NewClient constructs an expenses client for the given endpoint URL.
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

// Expense is the expense-creation endpoint's input.
type Expense struct {
	Vendor      string          `json:"vendor"`
	Amount      decimal.Decimal `json:"amount"`
	Date        string          `json:"date"`
	Category    string          `json:"category"`
	Description string          `json:"description,omitempty"`
	UserID      string          `json:"userId"`
	GroupID     string          `json:"groupId,omitempty"`
	ReceiptURL  string          `json:"receiptUrl,omitempty"`
	ReceiptPath string          `json:"receiptPath,omitempty"`
}

type createResponse struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// Create posts the expense and returns the remote document id.
func (c *Client) Create(ctx context.Context, expense Expense) (string, error) {
	if strings.TrimSpace(expense.Vendor) == "" {
		return "", services.Wrap(services.ErrValidation, "expenses", "create", "vendor required", nil)
	}
	if strings.TrimSpace(expense.UserID) == "" {
		return "", services.Wrap(services.ErrValidation, "expenses", "create", "user id required", nil)
	}
	if c.endpoint == "" {
		return "", services.Wrap(services.ErrConfiguration, "expenses", "create", "endpoint not configured", nil)
	}

	encoded, err := json.Marshal(expense)
	if err != nil {
		return "", fmt.Errorf("expenses: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("expenses: request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", services.Wrap(services.ErrTimeout, "expenses", "create", "", err)
		}
		return "", services.Wrap(services.ErrUnavailable, "expenses", "create", "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("expenses: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", services.Wrap(services.ErrTransient, "expenses", "create",
			fmt.Sprintf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	var decoded createResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("expenses: decode response: %w", err)
	}
	if decoded.ID == "" {
		return "", fmt.Errorf("expenses: response missing id")
	}
	return decoded.ID, nil
}

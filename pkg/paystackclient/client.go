/**
 * @description
 * Client for the Paystack transaction API: initialize a checkout and look up a
 * transaction by reference. Amounts are in kobo on both sides.
 *
 * @dependencies
 * - net/http, encoding/json: Standard Go libraries.
 */
package paystackclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a client for the Paystack API.
type Client struct {
	BaseURL    string
	SecretKey  string
	HTTPClient *http.Client
}

// NewClient creates a new Paystack API client.
func NewClient(baseURL, secretKey string) *Client {
	return &Client{
		BaseURL:   strings.TrimSuffix(strings.TrimSpace(baseURL), "/"),
		SecretKey: secretKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// InitializeRequest is the payload for POST /transaction/initialize.
type InitializeRequest struct {
	Email       string      `json:"email"`
	Amount      int64       `json:"amount"`
	Reference   string      `json:"reference,omitempty"`
	CallbackURL string      `json:"callback_url,omitempty"`
	Metadata    interface{} `json:"metadata,omitempty"`
}

type InitializeResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	} `json:"data"`
}

type VerifyResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Reference string          `json:"reference"`
		Amount    int64           `json:"amount"`
		Status    string          `json:"status"`
		PaidAt    string          `json:"paid_at"`
		Channel   string          `json:"channel"`
		Currency  string          `json:"currency"`
		Metadata  json.RawMessage `json:"metadata"`
		Customer  struct {
			Email string `json:"email"`
		} `json:"customer"`
	} `json:"data"`
}

// ErrorResponse represents an error from the Paystack API.
type ErrorResponse struct {
	StatusCode int    `json:"-"`
	Status     bool   `json:"status"`
	Message    string `json:"message"`
}

func (e *ErrorResponse) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("paystack api error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("unknown paystack api error (status %d)", e.StatusCode)
}

// InitializeTransaction starts a checkout and returns the hosted authorization URL.
func (c *Client) InitializeTransaction(ctx context.Context, payload InitializeRequest) (*InitializeResponse, error) {
	var out InitializeResponse
	if err := c.do(ctx, http.MethodPost, "/transaction/initialize", payload, &out, "initialize"); err != nil {
		return nil, err
	}
	if out.Data.AuthorizationURL == "" {
		return nil, fmt.Errorf("paystack initialize returned no authorization url")
	}
	return &out, nil
}

// VerifyTransaction fetches the gateway's view of a transaction.
func (c *Client) VerifyTransaction(ctx context.Context, reference string) (*VerifyResponse, error) {
	var out VerifyResponse
	path := "/transaction/verify/" + url.PathEscape(strings.TrimSpace(reference))
	if err := c.do(ctx, http.MethodGet, path, nil, &out, "verify"); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload interface{}, out interface{}, op string) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal %s request: %w", op, err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute %s request: %w", op, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errResp := &ErrorResponse{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(bodyBytes, errResp); err != nil {
			log.Printf("level=warn component=paystack_client op=%s status=%d msg=\"non-2xx response (unparsable error body)\"", op, resp.StatusCode)
			return errResp
		}
		log.Printf("level=warn component=paystack_client op=%s status=%d message=%q", op, resp.StatusCode, errResp.Message)
		return errResp
	}

	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", op, err)
	}
	return nil
}

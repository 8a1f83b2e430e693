// Package stoxkart is a lean Stoxkart trading API client covering market
// order placement in the F&O segment.
package stoxkart

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

type Config struct {
	APIKey      string
	AccessToken string

	RootURL string // default: https://api.stoxkart.com/v1
	Timeout time.Duration
	Debug   bool
}

type Client struct {
	apiKey      string
	accessToken string
	rootURL     string
	debug       bool

	httpClient *http.Client
}

const defaultRoot = "https://api.stoxkart.com/v1"

func NewClient(cfg Config) *Client {
	if cfg.RootURL == "" {
		cfg.RootURL = defaultRoot
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 7 * time.Second
	}
	return &Client{
		apiKey:      cfg.APIKey,
		accessToken: cfg.AccessToken,
		rootURL:     strings.TrimRight(cfg.RootURL, "/"),
		debug:       cfg.Debug,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *Client) SetAccessToken(t string) { c.accessToken = t }

func (c *Client) IsConfigured() bool { return c.apiKey != "" }
func (c *Client) IsConnected() bool  { return c.accessToken != "" }

type orderRequest struct {
	Exchange        string `json:"exchange"` // NFO
	Symbol          string `json:"symbol"`
	Quantity        int    `json:"quantity"`
	TransactionType string `json:"transaction_type"`
	OrderType       string `json:"order_type"`
	Product         string `json:"product"`
	Validity        string `json:"validity"`
}

type orderResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		OrderID string `json:"order_id"`
	} `json:"data"`
}

// PlaceOrder submits a symbol-addressed NFO market order and returns the
// order id. transactionType is BUY or SELL.
func (c *Client) PlaceOrder(symbol string, quantity int, transactionType string) (string, error) {
	payload := orderRequest{
		Exchange:        "NFO",
		Symbol:          symbol,
		Quantity:        quantity,
		TransactionType: strings.ToUpper(transactionType),
		OrderType:       "MARKET",
		Product:         "NRML",
		Validity:        "DAY",
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequest(http.MethodPost, c.rootURL+"/orders", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	if c.debug {
		log.Printf("[stoxkart] POST /orders %s", string(b))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if c.debug {
		log.Printf("[stoxkart] response code=%d body=%s", resp.StatusCode, string(raw))
	}

	var out orderResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("couldn't parse order response (code %d): %w", resp.StatusCode, err)
	}
	if out.Status != "success" {
		return "", fmt.Errorf("order rejected: %s", out.Message)
	}
	return out.Data.OrderID, nil
}

// Package fyersapi is a lean Fyers API v3 order client. The desk only
// routes symbol-addressed market orders through Fyers, so the surface is
// deliberately small: configure, set a token, place an order.
package fyersapi

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
	AppID       string // e.g. "XC4XXXX-100"
	AccessToken string

	RootURL string // default: https://api-t1.fyers.in/api/v3
	Timeout time.Duration
	Debug   bool
}

type Client struct {
	appID       string
	accessToken string
	rootURL     string
	debug       bool

	httpClient *http.Client
}

const defaultRoot = "https://api-t1.fyers.in/api/v3"

func NewClient(cfg Config) *Client {
	if cfg.RootURL == "" {
		cfg.RootURL = defaultRoot
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 7 * time.Second
	}
	return &Client{
		appID:       cfg.AppID,
		accessToken: cfg.AccessToken,
		rootURL:     strings.TrimRight(cfg.RootURL, "/"),
		debug:       cfg.Debug,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *Client) SetAccessToken(t string) { c.accessToken = t }

func (c *Client) IsConfigured() bool { return c.appID != "" }
func (c *Client) IsConnected() bool  { return c.accessToken != "" }

// order side codes per the Fyers API.
const (
	sideBuy  = 1
	sideSell = -1
)

type orderRequest struct {
	Symbol       string  `json:"symbol"` // e.g. "NSE:NIFTY2590925000CE"
	Qty          int     `json:"qty"`
	Type         int     `json:"type"` // 2 = market
	Side         int     `json:"side"`
	ProductType  string  `json:"productType"`
	LimitPrice   float64 `json:"limitPrice"`
	StopPrice    float64 `json:"stopPrice"`
	Validity     string  `json:"validity"`
	DisclosedQty int     `json:"disclosedQty"`
	OfflineOrder bool    `json:"offlineOrder"`
}

type orderResponse struct {
	S       string `json:"s"` // "ok" or "error"
	Code    int    `json:"code"`
	Message string `json:"message"`
	ID      string `json:"id"`
}

// PlaceOrder submits a symbol-addressed market order and returns the Fyers
// order id. transactionType is BUY or SELL.
func (c *Client) PlaceOrder(symbol string, quantity int, transactionType string) (string, error) {
	side := sideBuy
	if strings.EqualFold(transactionType, "SELL") {
		side = sideSell
	}
	payload := orderRequest{
		Symbol:      symbol,
		Qty:         quantity,
		Type:        2,
		Side:        side,
		ProductType: "MARGIN",
		Validity:    "DAY",
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequest(http.MethodPost, c.rootURL+"/orders/sync", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.appID+":"+c.accessToken)

	if c.debug {
		log.Printf("[fyers] POST /orders/sync %s", string(b))
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
		log.Printf("[fyers] response code=%d body=%s", resp.StatusCode, string(raw))
	}

	var out orderResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("couldn't parse order response (code %d): %w", resp.StatusCode, err)
	}
	if out.S != "ok" {
		return "", fmt.Errorf("order rejected (code %d): %s", out.Code, out.Message)
	}
	return out.ID, nil
}

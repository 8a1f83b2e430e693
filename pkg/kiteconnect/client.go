// Package kiteconnect is a minimal Zerodha Kite Connect v3 HTTP client
// covering the surface an options desk needs: session handling (including
// the TOTP auto-login flow), the NFO instrument dump, LTP quotes, margins,
// and order placement.
//
// Usage example:
//
//	kc := kiteconnect.NewClient(kiteconnect.Config{APIKey: "key", APISecret: "secret"})
//	token, err := kc.AutoLogin("AB1234", "password", totpCode)
//	if err != nil { log.Fatal(err) }
//	if _, err := kc.GenerateSession(token); err != nil { log.Fatal(err) }
//	orderID, err := kc.PlaceOrder("regular", url.Values{...})
package kiteconnect

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
)

type Config struct {
	APIKey      string
	APISecret   string
	AccessToken string

	RootURL  string // default: https://api.kite.trade
	LoginURL string // default: https://kite.zerodha.com
	Timeout  time.Duration
	Debug    bool
}

// Client is not safe for concurrent use. The session token and the
// instrument cache are written without locking; callers serialize access.
type Client struct {
	apiKey      string
	apiSecret   string
	accessToken string

	rootURL  string
	loginURL string
	debug    bool

	httpClient *http.Client

	instruments []Instrument
	fetchedAt   time.Time
}

const (
	defaultRoot  = "https://api.kite.trade"
	defaultLogin = "https://kite.zerodha.com"
	kiteVersion  = "3"
)

var routes = map[string]string{
	"session.token":  "/session/token",
	"session.delete": "/session/token",

	"user.margins": "/user/margins/equity",

	"orders":       "/orders",
	"order.place":  "/orders/%s",
	"order.cancel": "/orders/%s/%s",

	"portfolio.positions": "/portfolio/positions",

	"market.quote.ltp":            "/quote/ltp",
	"market.instruments.exchange": "/instruments/%s",
}

func NewClient(cfg Config) *Client {
	if cfg.RootURL == "" {
		cfg.RootURL = defaultRoot
	}
	if cfg.LoginURL == "" {
		cfg.LoginURL = defaultLogin
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 7 * time.Second
	}
	return &Client{
		apiKey:      cfg.APIKey,
		apiSecret:   cfg.APISecret,
		accessToken: cfg.AccessToken,
		rootURL:     strings.TrimRight(cfg.RootURL, "/"),
		loginURL:    strings.TrimRight(cfg.LoginURL, "/"),
		debug:       cfg.Debug,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
	}
}

func (kc *Client) SetAccessToken(t string) { kc.accessToken = t }
func (kc *Client) AccessToken() string     { return kc.accessToken }
func (kc *Client) APIKey() string          { return kc.apiKey }

// IsConfigured reports whether API credentials are present.
func (kc *Client) IsConfigured() bool { return kc.apiKey != "" && kc.apiSecret != "" }

// IsConnected reports whether a session token is set. Tokens expire daily;
// callers learn of a stale token from the next API error.
func (kc *Client) IsConnected() bool { return kc.accessToken != "" }

// ---- Helpers ----

func (kc *Client) requestHeaders() http.Header {
	h := http.Header{}
	h.Set("X-Kite-Version", kiteVersion)
	h.Set("Content-Type", "application/x-www-form-urlencoded")
	if kc.accessToken != "" {
		h.Set("Authorization", "token "+kc.apiKey+":"+kc.accessToken)
	}
	return h
}

func (kc *Client) buildURL(route string, args ...any) (string, error) {
	uri, ok := routes[route]
	if !ok {
		return "", fmt.Errorf("unknown route: %s", route)
	}
	if len(args) > 0 {
		uri = fmt.Sprintf(uri, args...)
	}
	return kc.rootURL + uri, nil
}

type apiEnvelope struct {
	Status    string          `json:"status"`
	Message   string          `json:"message"`
	ErrorType string          `json:"error_type"`
	Data      json.RawMessage `json:"data"`
}

// doRequest performs one form-encoded API call and unwraps the Kite
// response envelope, returning the raw data payload.
func (kc *Client) doRequest(method, fullURL string, params url.Values) (json.RawMessage, error) {
	var body io.Reader
	reqURL := fullURL
	if method == http.MethodGet || method == http.MethodDelete {
		if len(params) > 0 {
			reqURL += "?" + params.Encode()
		}
	} else if params != nil {
		body = strings.NewReader(params.Encode())
	}

	req, err := http.NewRequest(method, reqURL, body)
	if err != nil {
		return nil, err
	}
	req.Header = kc.requestHeaders()

	if kc.debug {
		log.Printf("[kite] %s %s params=%v", method, reqURL, params)
	}

	resp, err := kc.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if kc.debug {
		log.Printf("[kite] response code=%d body=%s", resp.StatusCode, string(raw))
	}

	var env apiEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("couldn't parse JSON response (code %d): %w", resp.StatusCode, err)
	}
	if env.Status != "success" {
		return nil, fmt.Errorf("%s: %s", env.ErrorType, env.Message)
	}
	return env.Data, nil
}

func (kc *Client) getRaw(route string, params url.Values, args ...any) (json.RawMessage, error) {
	fullURL, err := kc.buildURL(route, args...)
	if err != nil {
		return nil, err
	}
	return kc.doRequest(http.MethodGet, fullURL, params)
}

func (kc *Client) postRaw(route string, params url.Values, args ...any) (json.RawMessage, error) {
	fullURL, err := kc.buildURL(route, args...)
	if err != nil {
		return nil, err
	}
	return kc.doRequest(http.MethodPost, fullURL, params)
}

func (kc *Client) deleteRaw(route string, params url.Values, args ...any) (json.RawMessage, error) {
	fullURL, err := kc.buildURL(route, args...)
	if err != nil {
		return nil, err
	}
	return kc.doRequest(http.MethodDelete, fullURL, params)
}

// ---- Session ----

// GenerateSession exchanges a request token for an access token. The
// checksum is SHA-256 over api_key + request_token + api_secret.
func (kc *Client) GenerateSession(requestToken string) (string, error) {
	sum := sha256.Sum256([]byte(kc.apiKey + requestToken + kc.apiSecret))
	params := url.Values{}
	params.Set("api_key", kc.apiKey)
	params.Set("request_token", requestToken)
	params.Set("checksum", hex.EncodeToString(sum[:]))

	data, err := kc.postRaw("session.token", params)
	if err != nil {
		return "", err
	}
	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("session response carried no access_token")
	}
	kc.SetAccessToken(out.AccessToken)
	return out.AccessToken, nil
}

// InvalidateSession logs the access token out.
func (kc *Client) InvalidateSession() error {
	params := url.Values{}
	params.Set("api_key", kc.apiKey)
	params.Set("access_token", kc.accessToken)
	_, err := kc.deleteRaw("session.delete", params)
	if err == nil {
		kc.accessToken = ""
	}
	return err
}

// AutoLogin drives the kite.zerodha.com web login with a user id, password
// and a fresh TOTP code, then follows the connect redirect to capture the
// request token. The returned token still has to go through
// GenerateSession.
func (kc *Client) AutoLogin(userID, password, totpCode string) (string, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return "", err
	}
	jarClient := &http.Client{Timeout: kc.httpClient.Timeout, Jar: jar}

	loginResp, err := jarClient.PostForm(kc.loginURL+"/api/login", url.Values{
		"user_id":  {userID},
		"password": {password},
	})
	if err != nil {
		return "", fmt.Errorf("login step failed: %w", err)
	}
	defer loginResp.Body.Close()

	var loginEnv struct {
		Status string `json:"status"`
		Data   struct {
			RequestID string `json:"request_id"`
		} `json:"data"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(loginResp.Body).Decode(&loginEnv); err != nil {
		return "", fmt.Errorf("login step: %w", err)
	}
	if loginEnv.Status != "success" {
		return "", fmt.Errorf("login step rejected: %s", loginEnv.Message)
	}

	twofaResp, err := jarClient.PostForm(kc.loginURL+"/api/twofa", url.Values{
		"user_id":     {userID},
		"request_id":  {loginEnv.Data.RequestID},
		"twofa_value": {totpCode},
	})
	if err != nil {
		return "", fmt.Errorf("twofa step failed: %w", err)
	}
	io.Copy(io.Discard, twofaResp.Body)
	twofaResp.Body.Close()
	if twofaResp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("twofa step rejected: code %d", twofaResp.StatusCode)
	}

	// The connect redirect lands on the app's redirect URL carrying
	// request_token; capture it instead of following off-site.
	var requestToken string
	capture := &http.Client{
		Timeout: kc.httpClient.Timeout,
		Jar:     jarClient.Jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if tok := req.URL.Query().Get("request_token"); tok != "" {
				requestToken = tok
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
	connectURL := fmt.Sprintf("%s/connect/login?api_key=%s&v=%s", kc.rootURL, kc.apiKey, kiteVersion)
	connResp, err := capture.Get(connectURL)
	if err != nil && requestToken == "" {
		return "", fmt.Errorf("connect step failed: %w", err)
	}
	if connResp != nil {
		io.Copy(io.Discard, connResp.Body)
		connResp.Body.Close()
	}
	if requestToken == "" {
		return "", fmt.Errorf("connect step produced no request token")
	}
	return requestToken, nil
}

// ---- Margins ----

// AvailableCash returns the free cash in the equity segment.
func (kc *Client) AvailableCash() (float64, error) {
	data, err := kc.getRaw("user.margins", nil)
	if err != nil {
		return 0, err
	}
	var out struct {
		Available struct {
			Cash        float64 `json:"cash"`
			LiveBalance float64 `json:"live_balance"`
		} `json:"available"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return 0, err
	}
	if out.Available.LiveBalance > 0 {
		return out.Available.LiveBalance, nil
	}
	return out.Available.Cash, nil
}

// ---- Quotes ----

// LTP returns last traded prices keyed by "EXCHANGE:TRADINGSYMBOL".
func (kc *Client) LTP(instruments ...string) (map[string]float64, error) {
	params := url.Values{}
	for _, ins := range instruments {
		params.Add("i", ins)
	}
	data, err := kc.getRaw("market.quote.ltp", params)
	if err != nil {
		return nil, err
	}
	var out map[string]struct {
		LastPrice float64 `json:"last_price"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	prices := make(map[string]float64, len(out))
	for k, v := range out {
		prices[k] = v.LastPrice
	}
	return prices, nil
}

// ---- Orders ----

type Order struct {
	OrderID         string `json:"order_id"`
	Status          string `json:"status"`
	Exchange        string `json:"exchange"`
	TradingSymbol   string `json:"tradingsymbol"`
	TransactionType string `json:"transaction_type"`
	Variety         string `json:"variety"`
	Product         string `json:"product"`
	Quantity        int    `json:"quantity"`
}

// PlaceOrder submits an order under the given variety ("regular", "amo")
// and returns the exchange order id.
func (kc *Client) PlaceOrder(variety string, params url.Values) (string, error) {
	data, err := kc.postRaw("order.place", params, variety)
	if err != nil {
		return "", err
	}
	var out struct {
		OrderID string `json:"order_id"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return "", err
	}
	return out.OrderID, nil
}

func (kc *Client) CancelOrder(variety, orderID string) error {
	_, err := kc.deleteRaw("order.cancel", nil, variety, orderID)
	return err
}

// Orders returns the day's order book.
func (kc *Client) Orders() ([]Order, error) {
	data, err := kc.getRaw("orders", nil)
	if err != nil {
		return nil, err
	}
	var out []Order
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ---- Positions ----

type Position struct {
	Exchange      string  `json:"exchange"`
	TradingSymbol string  `json:"tradingsymbol"`
	Product       string  `json:"product"`
	Quantity      int     `json:"quantity"`
	AveragePrice  float64 `json:"average_price"`
}

// Positions returns net positions for the day.
func (kc *Client) Positions() ([]Position, error) {
	data, err := kc.getRaw("portfolio.positions", nil)
	if err != nil {
		return nil, err
	}
	var out struct {
		Net []Position `json:"net"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out.Net, nil
}

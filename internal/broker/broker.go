// Package broker defines the capability surface the desk expects from every
// broker (Adapter), the richer contract the deployment engine consumes from
// its primary broker (Client), and the Switcher that tracks which broker is
// currently active.
package broker

import "options-deskv1/internal/model"

// Adapter is the uniform capability set of one configured broker. Adapters
// hold no shared state; each delegates to its own external connector.
type Adapter interface {
	// Name returns the broker identifier (e.g. "zerodha", "fyers").
	Name() string

	// IsConfigured reports whether credentials are present.
	IsConfigured() bool

	// IsConnected reports whether a valid session token is present.
	IsConnected() bool

	// PlaceOrder submits a single-leg order. It fails with a
	// ValidationError when broker-required fields are absent and with a
	// BrokerAPIError when the upstream call is rejected.
	PlaceOrder(order model.OrderRequest) (model.OrderConfirmation, error)
}

// OptionOrder is the full order the deployment engine places through its
// primary broker.
type OptionOrder struct {
	IndexName       string
	Strike          int
	OptionType      string // CE, PE
	Quantity        int    // lots
	TransactionType string // BUY, SELL
	ExpiryDate      string // YYYY-MM-DD, blank = nearest expiry
	Variety         string // REGULAR, AMO
	Product         string // NRML
}

// Client is the contract the deployment engine consumes from its primary
// broker collaborator. All calls are synchronous; blocking is bounded only
// by the connector's own HTTP timeout.
type Client interface {
	IsConfigured() bool
	IsConnected() bool

	// FindOptionContract resolves the nearest live contract matching the
	// given index/strike/type, or the given expiry when non-blank. Fails
	// with a NotFoundError when no live contract matches.
	FindOptionContract(indexName string, strike int, optionType, expiryDate string) (model.OptionContract, error)

	// OptionLTP returns the last traded price for a contract. Zero means
	// the price is unavailable.
	OptionLTP(contract model.OptionContract) (float64, error)

	// AvailableMargin returns the free cash margin.
	AvailableMargin() (float64, error)

	// PlaceOptionOrder submits an order, failing with a BrokerAPIError on
	// rejection.
	PlaceOptionOrder(order OptionOrder) (model.OrderConfirmation, error)

	// CancelPendingNFOOrders is best-effort cleanup of stale pending
	// exchange orders. Callers log and continue on error.
	CancelPendingNFOOrders() error

	// SquareOffActiveBuys flattens every open long option position using
	// the given order mode and returns the reversal confirmations.
	SquareOffActiveBuys(mode model.OrderMode) ([]model.OrderConfirmation, error)
}

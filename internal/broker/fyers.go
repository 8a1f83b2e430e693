package broker

import (
	"options-deskv1/internal/model"
	"options-deskv1/pkg/fyersapi"
)

// FyersConnector is the minimal surface the Fyers adapter needs from its
// external connector. Fyers orders are symbol-addressed.
type FyersConnector interface {
	IsConfigured() bool
	IsConnected() bool
	PlaceOrder(symbol string, quantity int, transactionType string) (model.OrderConfirmation, error)
}

// FyersAdapter exposes the Fyers connector behind the uniform Adapter
// surface.
type FyersAdapter struct {
	client FyersConnector
}

// NewFyersAdapter wraps a Fyers connector.
func NewFyersAdapter(client FyersConnector) *FyersAdapter {
	return &FyersAdapter{client: client}
}

func (a *FyersAdapter) Name() string       { return "fyers" }
func (a *FyersAdapter) IsConfigured() bool { return a.client.IsConfigured() }
func (a *FyersAdapter) IsConnected() bool  { return a.client.IsConnected() }

func (a *FyersAdapter) PlaceOrder(order model.OrderRequest) (model.OrderConfirmation, error) {
	if order.FyersSymbol == "" {
		return model.OrderConfirmation{}, model.Validationf("fyers order requires option symbol")
	}
	return a.client.PlaceOrder(order.FyersSymbol, order.Quantity, order.TransactionType)
}

// FyersHTTP adapts the fyersapi HTTP client to the connector surface.
type FyersHTTP struct {
	API *fyersapi.Client
}

func (f *FyersHTTP) IsConfigured() bool { return f.API.IsConfigured() }
func (f *FyersHTTP) IsConnected() bool  { return f.API.IsConnected() }

func (f *FyersHTTP) PlaceOrder(symbol string, quantity int, transactionType string) (model.OrderConfirmation, error) {
	orderID, err := f.API.PlaceOrder(symbol, quantity, transactionType)
	if err != nil {
		return model.OrderConfirmation{}, model.BrokerAPIErr("fyers", err)
	}
	return model.OrderConfirmation{
		Broker:          "fyers",
		OrderID:         orderID,
		TradingSymbol:   symbol,
		TransactionType: transactionType,
		Quantity:        quantity,
	}, nil
}

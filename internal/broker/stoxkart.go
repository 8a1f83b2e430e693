package broker

import (
	"options-deskv1/internal/model"
	"options-deskv1/pkg/stoxkart"
)

// StoxkartConnector is the minimal surface the Stoxkart adapter needs from
// its external connector.
type StoxkartConnector interface {
	IsConfigured() bool
	IsConnected() bool
	PlaceOrder(symbol string, quantity int, transactionType string) (model.OrderConfirmation, error)
}

// StoxkartAdapter exposes the Stoxkart connector behind the uniform Adapter
// surface.
type StoxkartAdapter struct {
	client StoxkartConnector
}

// NewStoxkartAdapter wraps a Stoxkart connector.
func NewStoxkartAdapter(client StoxkartConnector) *StoxkartAdapter {
	return &StoxkartAdapter{client: client}
}

func (a *StoxkartAdapter) Name() string       { return "stoxkart" }
func (a *StoxkartAdapter) IsConfigured() bool { return a.client.IsConfigured() }
func (a *StoxkartAdapter) IsConnected() bool  { return a.client.IsConnected() }

func (a *StoxkartAdapter) PlaceOrder(order model.OrderRequest) (model.OrderConfirmation, error) {
	if order.StoxkartSymbol == "" {
		return model.OrderConfirmation{}, model.Validationf("stoxkart order requires symbol")
	}
	return a.client.PlaceOrder(order.StoxkartSymbol, order.Quantity, order.TransactionType)
}

// StoxkartHTTP adapts the stoxkart HTTP client to the connector surface.
type StoxkartHTTP struct {
	API *stoxkart.Client
}

func (s *StoxkartHTTP) IsConfigured() bool { return s.API.IsConfigured() }
func (s *StoxkartHTTP) IsConnected() bool  { return s.API.IsConnected() }

func (s *StoxkartHTTP) PlaceOrder(symbol string, quantity int, transactionType string) (model.OrderConfirmation, error) {
	orderID, err := s.API.PlaceOrder(symbol, quantity, transactionType)
	if err != nil {
		return model.OrderConfirmation{}, model.BrokerAPIErr("stoxkart", err)
	}
	return model.OrderConfirmation{
		Broker:          "stoxkart",
		OrderID:         orderID,
		TradingSymbol:   symbol,
		TransactionType: transactionType,
		Quantity:        quantity,
	}, nil
}

package broker

import (
	"time"

	"options-deskv1/internal/markethours"
	"options-deskv1/internal/model"
)

// ZerodhaAdapter exposes the Zerodha client behind the uniform Adapter
// surface. Zerodha orders are resolved from index/strike/type, so both are
// mandatory on the request.
type ZerodhaAdapter struct {
	client Client
}

// NewZerodhaAdapter wraps a Zerodha client.
func NewZerodhaAdapter(client Client) *ZerodhaAdapter {
	return &ZerodhaAdapter{client: client}
}

func (a *ZerodhaAdapter) Name() string       { return "zerodha" }
func (a *ZerodhaAdapter) IsConfigured() bool { return a.client.IsConfigured() }
func (a *ZerodhaAdapter) IsConnected() bool  { return a.client.IsConnected() }

// PlaceOrder submits a market order via the Kite connector using the order
// mode applicable right now (AMO outside regular hours).
func (a *ZerodhaAdapter) PlaceOrder(order model.OrderRequest) (model.OrderConfirmation, error) {
	if order.Strike <= 0 || (order.OptionType != model.OptionCall && order.OptionType != model.OptionPut) {
		return model.OrderConfirmation{}, model.Validationf("zerodha requires strike and option_type (CE/PE)")
	}
	mode := markethours.OrderModeAt(time.Now())
	return a.client.PlaceOptionOrder(OptionOrder{
		IndexName:       order.IndexName,
		Strike:          order.Strike,
		OptionType:      order.OptionType,
		Quantity:        order.Quantity,
		TransactionType: order.TransactionType,
		Variety:         mode.Variety,
		Product:         mode.Product,
	})
}

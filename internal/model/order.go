package model

// Transaction types accepted by every broker adapter.
const (
	TransactionBuy  = "BUY"
	TransactionSell = "SELL"
)

// Option types (NSE convention).
const (
	OptionCall = "CE"
	OptionPut  = "PE"
)

// OppositeTransaction returns SELL for BUY and BUY for anything else.
func OppositeTransaction(tx string) string {
	if tx == TransactionBuy {
		return TransactionSell
	}
	return TransactionBuy
}

// OrderRequest is a single-leg option order. It is built fresh per execution
// attempt and never mutated after construction.
type OrderRequest struct {
	IndexName       string         `json:"index_name"`
	Strike          int            `json:"strike"`
	OptionType      string         `json:"option_type"`      // CE, PE
	Quantity        int            `json:"quantity"`         // lots
	TransactionType string         `json:"transaction_type"` // BUY, SELL
	FyersSymbol     string         `json:"fyers_symbol,omitempty"`
	StoxkartSymbol  string         `json:"stoxkart_symbol,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// OrderConfirmation is the broker's acknowledgement of a placed order.
type OrderConfirmation struct {
	Broker          string `json:"broker"`
	OrderID         string `json:"order_id"`
	TradingSymbol   string `json:"trading_symbol"`
	Strike          int    `json:"strike,omitempty"`
	OptionType      string `json:"option_type,omitempty"`
	Expiry          string `json:"expiry,omitempty"`
	TransactionType string `json:"transaction_type"`
	Quantity        int    `json:"quantity"`
}

// OptionContract describes a live NFO option instrument.
type OptionContract struct {
	TradingSymbol string `json:"trading_symbol"`
	Token         string `json:"token"`
	LotSize       int    `json:"lot_size"`
	Expiry        string `json:"expiry"` // YYYY-MM-DD
	Strike        int    `json:"strike"`
	OptionType    string `json:"option_type"`
}

// OrderMode is the variety/product pair a plan freezes at creation and
// reuses for every order it ever places.
type OrderMode struct {
	Variety string `json:"variety"` // REGULAR, AMO
	Product string `json:"product"` // NRML
}

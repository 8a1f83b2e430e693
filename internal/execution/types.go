package execution

import "options-deskv1/internal/model"

// BrokerAttempt records the outcome of one broker try during failover.
// Attempts are kept in the order the brokers were tried.
type BrokerAttempt struct {
	Broker  string                   `json:"broker"`
	Success bool                     `json:"success"`
	Order   *model.OrderConfirmation `json:"order,omitempty"`
	Error   string                   `json:"error,omitempty"`
}

// Result is the aggregate outcome of executing one order across candidate
// brokers.
type Result struct {
	Success    bool            `json:"success"`
	ExecutedBy string          `json:"executed_by,omitempty"` // first successful broker
	Attempts   []BrokerAttempt `json:"attempts"`
}

// StrategyResult is the aggregate outcome of executing a multi-leg
// strategy. Legs are not atomic as a group: a partial fill across legs is a
// valid, reportable outcome.
type StrategyResult struct {
	Success bool     `json:"success"` // AND across all legs
	Legs    []Result `json:"legs"`
}

// BrokerStatus is the configured/connected view of one broker.
type BrokerStatus struct {
	Configured bool `json:"configured"`
	Connected  bool `json:"connected"`
}

// StrategyLeg is one constituent order in a strategy payload.
type StrategyLeg struct {
	Strike          int    `json:"strike"`
	OptionType      string `json:"option_type"`
	Quantity        int    `json:"quantity,omitempty"` // 0 = payload default
	TransactionType string `json:"transaction_type,omitempty"`
	FyersSymbol     string `json:"fyers_symbol,omitempty"`
	StoxkartSymbol  string `json:"stoxkart_symbol,omitempty"`
}

// StrategyPayload is the request body of a named multi-leg strategy.
type StrategyPayload struct {
	IndexName       string        `json:"index_name"`
	Strike          int           `json:"strike,omitempty"`
	OptionType      string        `json:"option_type,omitempty"`
	Quantity        int           `json:"quantity,omitempty"`
	TransactionType string        `json:"transaction_type,omitempty"`
	FyersSymbol     string        `json:"fyers_symbol,omitempty"`
	StoxkartSymbol  string        `json:"stoxkart_symbol,omitempty"`
	Legs            []StrategyLeg `json:"legs,omitempty"`
}

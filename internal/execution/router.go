package execution

import (
	"strings"

	"options-deskv1/internal/model"
)

// Route expands a named strategy and its payload into an ordered list of
// single-leg order requests. It performs no I/O and never contacts a
// broker.
func Route(strategy string, payload StrategyPayload) ([]model.OrderRequest, error) {
	strategy = strings.ToLower(strings.TrimSpace(strategy))
	if strategy == "" {
		strategy = "single"
	}

	indexName := payload.IndexName
	if indexName == "" {
		indexName = "NIFTY"
	}
	quantity := payload.Quantity
	if quantity <= 0 {
		quantity = 1
	}
	tx := payload.TransactionType
	if tx == "" {
		tx = model.TransactionBuy
	}

	switch strategy {
	case "single":
		return []model.OrderRequest{{
			IndexName:       indexName,
			Strike:          payload.Strike,
			OptionType:      payload.OptionType,
			Quantity:        quantity,
			TransactionType: tx,
			FyersSymbol:     payload.FyersSymbol,
			StoxkartSymbol:  payload.StoxkartSymbol,
		}}, nil

	case "iron_condor":
		if len(payload.Legs) != 4 {
			return nil, &model.UnsupportedStrategyError{Msg: "iron_condor requires 4 legs"}
		}
		return expandLegs(strategy, indexName, quantity, payload), nil

	case "call_spread", "put_spread", "calendar":
		if len(payload.Legs) < 2 {
			return nil, &model.UnsupportedStrategyError{Msg: strategy + " requires at least 2 legs"}
		}
		return expandLegs(strategy, indexName, quantity, payload), nil
	}

	return nil, &model.UnsupportedStrategyError{Msg: "unsupported strategy: " + strategy}
}

// expandLegs keeps each leg's own fields, falling back to payload defaults,
// and tags every request with the strategy name and 1-based leg index.
func expandLegs(strategy, indexName string, defaultQty int, payload StrategyPayload) []model.OrderRequest {
	orders := make([]model.OrderRequest, 0, len(payload.Legs))
	for i, leg := range payload.Legs {
		qty := leg.Quantity
		if qty <= 0 {
			qty = defaultQty
		}
		tx := leg.TransactionType
		if tx == "" {
			tx = model.TransactionBuy
		}
		fyersSym := leg.FyersSymbol
		if fyersSym == "" {
			fyersSym = payload.FyersSymbol
		}
		stoxkartSym := leg.StoxkartSymbol
		if stoxkartSym == "" {
			stoxkartSym = payload.StoxkartSymbol
		}
		orders = append(orders, model.OrderRequest{
			IndexName:       indexName,
			Strike:          leg.Strike,
			OptionType:      leg.OptionType,
			Quantity:        qty,
			TransactionType: tx,
			FyersSymbol:     fyersSym,
			StoxkartSymbol:  stoxkartSym,
			Metadata:        map[string]any{"strategy": strategy, "leg": i + 1},
		})
	}
	return orders
}

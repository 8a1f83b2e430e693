package broker

import (
	"fmt"
	"log"
	"net/url"
	"sort"
	"strings"

	"options-deskv1/internal/model"
	"options-deskv1/pkg/kiteconnect"
)

// KiteClient implements the Client contract over the Kite Connect HTTP
// API. It is the deployment engine's primary broker collaborator.
type KiteClient struct {
	kc *kiteconnect.Client
}

func NewKiteClient(kc *kiteconnect.Client) *KiteClient {
	return &KiteClient{kc: kc}
}

func (c *KiteClient) IsConfigured() bool { return c.kc.IsConfigured() }
func (c *KiteClient) IsConnected() bool  { return c.kc.IsConnected() }

// FindOptionContract scans the NFO dump for live contracts matching the
// index, strike and option type. A blank expiryDate selects the nearest
// expiry; otherwise the expiry must match exactly.
func (c *KiteClient) FindOptionContract(indexName string, strike int, optionType, expiryDate string) (model.OptionContract, error) {
	instruments, err := c.kc.Instruments("NFO")
	if err != nil {
		return model.OptionContract{}, model.BrokerAPIErr("zerodha", err)
	}

	var matches []kiteconnect.Instrument
	for _, ins := range instruments {
		if ins.Name != strings.ToUpper(indexName) || ins.InstrumentType != optionType {
			continue
		}
		if int(ins.Strike) != strike {
			continue
		}
		if expiryDate != "" && ins.Expiry != expiryDate {
			continue
		}
		matches = append(matches, ins)
	}
	if len(matches) == 0 {
		return model.OptionContract{}, model.NotFoundf("no live %s %d %s contract on NFO", indexName, strike, optionType)
	}

	// Expiries in the dump are YYYY-MM-DD, so string order is date order.
	sort.Slice(matches, func(i, j int) bool { return matches[i].Expiry < matches[j].Expiry })
	pick := matches[0]
	return model.OptionContract{
		TradingSymbol: pick.TradingSymbol,
		Token:         pick.Token,
		LotSize:       pick.LotSize,
		Expiry:        pick.Expiry,
		Strike:        strike,
		OptionType:    optionType,
	}, nil
}

func (c *KiteClient) OptionLTP(contract model.OptionContract) (float64, error) {
	key := "NFO:" + contract.TradingSymbol
	prices, err := c.kc.LTP(key)
	if err != nil {
		return 0, model.BrokerAPIErr("zerodha", err)
	}
	return prices[key], nil
}

func (c *KiteClient) AvailableMargin() (float64, error) {
	cash, err := c.kc.AvailableCash()
	if err != nil {
		return 0, model.BrokerAPIErr("zerodha", err)
	}
	return cash, nil
}

// PlaceOptionOrder resolves the contract, converts lots to exchange
// quantity and submits a market order under the caller's variety/product.
func (c *KiteClient) PlaceOptionOrder(order OptionOrder) (model.OrderConfirmation, error) {
	contract, err := c.FindOptionContract(order.IndexName, order.Strike, order.OptionType, order.ExpiryDate)
	if err != nil {
		return model.OrderConfirmation{}, err
	}

	lotSize := contract.LotSize
	if lotSize <= 0 {
		lotSize = 1
	}
	params := url.Values{}
	params.Set("exchange", "NFO")
	params.Set("tradingsymbol", contract.TradingSymbol)
	params.Set("transaction_type", order.TransactionType)
	params.Set("quantity", fmt.Sprintf("%d", order.Quantity*lotSize))
	params.Set("product", order.Product)
	params.Set("order_type", "MARKET")
	params.Set("validity", "DAY")

	orderID, err := c.kc.PlaceOrder(kiteVariety(order.Variety), params)
	if err != nil {
		return model.OrderConfirmation{}, model.BrokerAPIErr("zerodha", err)
	}
	log.Printf("[broker] zerodha order %s: %s %s x%d lots (%s/%s)",
		orderID, order.TransactionType, contract.TradingSymbol, order.Quantity, order.Variety, order.Product)
	return model.OrderConfirmation{
		Broker:          "zerodha",
		OrderID:         orderID,
		TradingSymbol:   contract.TradingSymbol,
		Strike:          order.Strike,
		OptionType:      order.OptionType,
		Expiry:          contract.Expiry,
		TransactionType: order.TransactionType,
		Quantity:        order.Quantity,
	}, nil
}

// pending order states worth cancelling before sizing a new plan.
var cancellableStates = map[string]bool{
	"OPEN":               true,
	"TRIGGER PENDING":    true,
	"AMO REQ RECEIVED":   true,
	"VALIDATION PENDING": true,
}

func (c *KiteClient) CancelPendingNFOOrders() error {
	orders, err := c.kc.Orders()
	if err != nil {
		return model.BrokerAPIErr("zerodha", err)
	}
	var firstErr error
	for _, o := range orders {
		if o.Exchange != "NFO" || !cancellableStates[o.Status] {
			continue
		}
		if err := c.kc.CancelOrder(kiteVariety(o.Variety), o.OrderID); err != nil {
			log.Printf("[broker] zerodha cancel %s failed: %v", o.OrderID, err)
			if firstErr == nil {
				firstErr = model.BrokerAPIErr("zerodha", err)
			}
		}
	}
	return firstErr
}

// SquareOffActiveBuys sells every open NFO long at market, one order per
// position.
func (c *KiteClient) SquareOffActiveBuys(mode model.OrderMode) ([]model.OrderConfirmation, error) {
	positions, err := c.kc.Positions()
	if err != nil {
		return nil, model.BrokerAPIErr("zerodha", err)
	}

	var confirmations []model.OrderConfirmation
	for _, pos := range positions {
		if pos.Exchange != "NFO" || pos.Quantity <= 0 {
			continue
		}
		params := url.Values{}
		params.Set("exchange", "NFO")
		params.Set("tradingsymbol", pos.TradingSymbol)
		params.Set("transaction_type", model.TransactionSell)
		params.Set("quantity", fmt.Sprintf("%d", pos.Quantity))
		params.Set("product", mode.Product)
		params.Set("order_type", "MARKET")
		params.Set("validity", "DAY")

		orderID, err := c.kc.PlaceOrder(kiteVariety(mode.Variety), params)
		if err != nil {
			return confirmations, model.BrokerAPIErr("zerodha", err)
		}
		log.Printf("[broker] zerodha square-off %s: SELL %s x%d", orderID, pos.TradingSymbol, pos.Quantity)
		confirmations = append(confirmations, model.OrderConfirmation{
			Broker:          "zerodha",
			OrderID:         orderID,
			TradingSymbol:   pos.TradingSymbol,
			TransactionType: model.TransactionSell,
			Quantity:        pos.Quantity,
		})
	}
	return confirmations, nil
}

// kiteVariety lowercases the desk's order variety into the API path form.
func kiteVariety(variety string) string {
	if variety == "" {
		return "regular"
	}
	return strings.ToLower(variety)
}

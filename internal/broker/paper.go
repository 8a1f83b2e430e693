package broker

import (
	"fmt"
	"log"
	"math/rand"
	"strings"
	"sync"
	"time"

	"options-deskv1/internal/markethours"
	"options-deskv1/internal/model"
)

// Paper simulates a fully connected broker without real API calls. It
// implements both Adapter and Client, so the whole desk — execution engine
// and deployment engine — can run credential-free for paper trading.
//
// Prices follow a seeded random walk around the start price; fills apply
// basis-point slippage against the taker.
type Paper struct {
	mu       sync.RWMutex
	orderSeq int64
	margin   float64
	ltp      float64
	lotSize  int
	slipBps  int
	rng      *rand.Rand
	long     map[string]int // trading symbol → lots held long
	fills    []model.OrderConfirmation
}

// NewPaper creates a paper broker with the given free margin, starting
// option price, contract lot size, and fill slippage in basis points.
func NewPaper(margin, startPrice float64, lotSize, slippageBps int, seed int64) *Paper {
	return &Paper{
		margin:  margin,
		ltp:     startPrice,
		lotSize: lotSize,
		slipBps: slippageBps,
		rng:     rand.New(rand.NewSource(seed)),
		long:    make(map[string]int),
	}
}

func (p *Paper) Name() string       { return "paper" }
func (p *Paper) IsConfigured() bool { return true }
func (p *Paper) IsConnected() bool  { return true }

// FindOptionContract synthesizes a contract for the nearest weekly expiry.
func (p *Paper) FindOptionContract(indexName string, strike int, optionType, expiryDate string) (model.OptionContract, error) {
	if expiryDate == "" {
		expiryDate = nextThursday(time.Now().In(markethours.IST)).Format("2006-01-02")
	}
	symbol := fmt.Sprintf("%s%s%d%s", indexName, compactExpiry(expiryDate), strike, optionType)
	return model.OptionContract{
		TradingSymbol: symbol,
		Token:         symbol,
		LotSize:       p.lotSize,
		Expiry:        expiryDate,
		Strike:        strike,
		OptionType:    optionType,
	}, nil
}

// OptionLTP advances the random walk one step and returns the new price.
func (p *Paper) OptionLTP(contract model.OptionContract) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	// ±0.5% per observation
	p.ltp *= 1 + (p.rng.Float64()-0.5)/100
	return p.ltp, nil
}

func (p *Paper) AvailableMargin() (float64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.margin, nil
}

// PlaceOptionOrder simulates an immediate fill.
func (p *Paper) PlaceOptionOrder(order OptionOrder) (model.OrderConfirmation, error) {
	contract, _ := p.FindOptionContract(order.IndexName, order.Strike, order.OptionType, order.ExpiryDate)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.orderSeq++
	fillPrice := p.ltp
	if p.slipBps > 0 {
		slip := p.ltp * float64(p.slipBps) / 10000
		if order.TransactionType == model.TransactionBuy {
			fillPrice += slip
		} else {
			fillPrice -= slip
		}
	}

	qty := order.Quantity * p.lotSize
	if order.TransactionType == model.TransactionBuy {
		p.long[contract.TradingSymbol] += order.Quantity
		p.margin -= fillPrice * float64(qty)
	} else {
		p.long[contract.TradingSymbol] -= order.Quantity
		p.margin += fillPrice * float64(qty)
	}

	conf := model.OrderConfirmation{
		Broker:          "paper",
		OrderID:         fmt.Sprintf("PAPER-%d", p.orderSeq),
		TradingSymbol:   contract.TradingSymbol,
		Strike:          order.Strike,
		OptionType:      order.OptionType,
		Expiry:          contract.Expiry,
		TransactionType: order.TransactionType,
		Quantity:        order.Quantity,
	}
	p.fills = append(p.fills, conf)

	log.Printf("[paper] %s %s lots=%d fill=%.2f order=%s",
		order.TransactionType, contract.TradingSymbol, order.Quantity, fillPrice, conf.OrderID)
	return conf, nil
}

// PlaceOrder satisfies Adapter: strike/type orders route through the same
// simulated fill path.
func (p *Paper) PlaceOrder(order model.OrderRequest) (model.OrderConfirmation, error) {
	return p.PlaceOptionOrder(OptionOrder{
		IndexName:       order.IndexName,
		Strike:          order.Strike,
		OptionType:      order.OptionType,
		Quantity:        order.Quantity,
		TransactionType: order.TransactionType,
	})
}

func (p *Paper) CancelPendingNFOOrders() error { return nil }

// SquareOffActiveBuys reverses every simulated long position.
func (p *Paper) SquareOffActiveBuys(mode model.OrderMode) ([]model.OrderConfirmation, error) {
	p.mu.Lock()
	longs := make(map[string]int, len(p.long))
	for sym, lots := range p.long {
		if lots > 0 {
			longs[sym] = lots
		}
	}
	p.mu.Unlock()

	var confirmations []model.OrderConfirmation
	for sym, lots := range longs {
		p.mu.Lock()
		p.orderSeq++
		p.long[sym] -= lots
		conf := model.OrderConfirmation{
			Broker:          "paper",
			OrderID:         fmt.Sprintf("PAPER-%d", p.orderSeq),
			TradingSymbol:   sym,
			TransactionType: model.TransactionSell,
			Quantity:        lots,
		}
		p.fills = append(p.fills, conf)
		p.mu.Unlock()
		confirmations = append(confirmations, conf)
	}
	return confirmations, nil
}

// Fills returns a snapshot of every simulated fill.
func (p *Paper) Fills() []model.OrderConfirmation {
	p.mu.RLock()
	defer p.mu.RUnlock()
	cp := make([]model.OrderConfirmation, len(p.fills))
	copy(cp, p.fills)
	return cp
}

func nextThursday(t time.Time) time.Time {
	d := (int(time.Thursday) - int(t.Weekday()) + 7) % 7
	return t.AddDate(0, 0, d)
}

// compactExpiry turns 2026-09-03 into 26SEP, the NFO monthly symbol shape.
// Good enough for simulated symbols.
func compactExpiry(expiry string) string {
	t, err := time.Parse("2006-01-02", expiry)
	if err != nil {
		return "XX"
	}
	return strings.ToUpper(t.Format("06Jan"))
}

package execution

import (
	"testing"

	"options-deskv1/internal/model"
)

func TestRouteSingle(t *testing.T) {
	orders, err := Route("single", StrategyPayload{
		IndexName: "BANKNIFTY", Strike: 52000, OptionType: "PE",
		Quantity: 2, TransactionType: "SELL",
	})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("expected 1 order, got %d", len(orders))
	}
	o := orders[0]
	if o.IndexName != "BANKNIFTY" || o.Strike != 52000 || o.OptionType != "PE" ||
		o.Quantity != 2 || o.TransactionType != "SELL" {
		t.Errorf("unexpected order: %+v", o)
	}
}

func TestRouteDefaults(t *testing.T) {
	orders, err := Route("", StrategyPayload{Strike: 24000, OptionType: "CE"})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	o := orders[0]
	if o.IndexName != "NIFTY" || o.Quantity != 1 || o.TransactionType != "BUY" {
		t.Errorf("defaults not applied: %+v", o)
	}
}

func TestRouteIronCondorLegCount(t *testing.T) {
	legs3 := []StrategyLeg{
		{Strike: 24000, OptionType: "CE"},
		{Strike: 24200, OptionType: "CE"},
		{Strike: 23800, OptionType: "PE"},
	}
	if _, err := Route("iron_condor", StrategyPayload{Legs: legs3}); err == nil {
		t.Fatal("iron_condor with 3 legs must fail")
	}

	legs4 := append(legs3, StrategyLeg{Strike: 23600, OptionType: "PE"})
	orders, err := Route("iron_condor", StrategyPayload{IndexName: "NIFTY", Quantity: 1, Legs: legs4})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if len(orders) != 4 {
		t.Fatalf("expected 4 legs, got %d", len(orders))
	}
	for i, o := range orders {
		if o.Metadata["strategy"] != "iron_condor" {
			t.Errorf("leg %d missing strategy tag: %v", i, o.Metadata)
		}
		if o.Metadata["leg"] != i+1 {
			t.Errorf("leg %d tagged %v, want %d", i, o.Metadata["leg"], i+1)
		}
		if o.Strike != legs4[i].Strike {
			t.Errorf("leg %d strike = %d, want %d (original order preserved)", i, o.Strike, legs4[i].Strike)
		}
	}
}

func TestRouteSpreadsNeedTwoLegs(t *testing.T) {
	for _, strategy := range []string{"call_spread", "put_spread", "calendar"} {
		_, err := Route(strategy, StrategyPayload{Legs: []StrategyLeg{{Strike: 24000, OptionType: "CE"}}})
		if err == nil {
			t.Errorf("%s with 1 leg must fail", strategy)
		}
		if _, ok := err.(*model.UnsupportedStrategyError); !ok {
			t.Errorf("%s: expected UnsupportedStrategyError, got %T", strategy, err)
		}

		orders, err := Route(strategy, StrategyPayload{Legs: []StrategyLeg{
			{Strike: 24000, OptionType: "CE", TransactionType: "BUY"},
			{Strike: 24200, OptionType: "CE", TransactionType: "SELL"},
		}})
		if err != nil {
			t.Errorf("%s with 2 legs: %v", strategy, err)
			continue
		}
		if len(orders) != 2 || orders[1].TransactionType != "SELL" {
			t.Errorf("%s legs expanded wrong: %+v", strategy, orders)
		}
	}
}

func TestRouteUnknownStrategy(t *testing.T) {
	_, err := Route("butterfly", StrategyPayload{})
	if err == nil {
		t.Fatal("unknown strategy must fail")
	}
	if _, ok := err.(*model.UnsupportedStrategyError); !ok {
		t.Fatalf("expected UnsupportedStrategyError, got %T", err)
	}
}

func TestRouteLegSymbolFallback(t *testing.T) {
	orders, err := Route("call_spread", StrategyPayload{
		FyersSymbol: "NSE:DEFAULT",
		Legs: []StrategyLeg{
			{Strike: 24000, OptionType: "CE", FyersSymbol: "NSE:LEG1"},
			{Strike: 24200, OptionType: "CE"},
		},
	})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if orders[0].FyersSymbol != "NSE:LEG1" {
		t.Errorf("leg override lost: %s", orders[0].FyersSymbol)
	}
	if orders[1].FyersSymbol != "NSE:DEFAULT" {
		t.Errorf("payload fallback lost: %s", orders[1].FyersSymbol)
	}
}

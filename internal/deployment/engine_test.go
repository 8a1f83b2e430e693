package deployment

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"options-deskv1/internal/broker"
	"options-deskv1/internal/markethours"
	"options-deskv1/internal/model"
)

// fakeClient scripts prices per strike so multi-plan tests can fail one
// plan without touching the other.
type fakeClient struct {
	margin    float64
	lotSize   int
	price     float64
	priceFor  map[int]float64
	ltpErrFor map[int]error

	marginErr error
	placeErr  error

	placed    []broker.OptionOrder
	orderSeq  int
	squareOff []model.OrderConfirmation
	cancels   int
}

func (f *fakeClient) IsConfigured() bool { return true }
func (f *fakeClient) IsConnected() bool  { return true }

func (f *fakeClient) FindOptionContract(indexName string, strike int, optionType, expiryDate string) (model.OptionContract, error) {
	lotSize := f.lotSize
	if lotSize == 0 {
		lotSize = 75
	}
	return model.OptionContract{
		TradingSymbol: fmt.Sprintf("%s%d%s", indexName, strike, optionType),
		LotSize:       lotSize,
		Strike:        strike,
		OptionType:    optionType,
		Expiry:        "2026-09-03",
	}, nil
}

func (f *fakeClient) OptionLTP(contract model.OptionContract) (float64, error) {
	if err, ok := f.ltpErrFor[contract.Strike]; ok {
		return 0, err
	}
	if p, ok := f.priceFor[contract.Strike]; ok {
		return p, nil
	}
	return f.price, nil
}

func (f *fakeClient) AvailableMargin() (float64, error) {
	if f.marginErr != nil {
		return 0, f.marginErr
	}
	return f.margin, nil
}

func (f *fakeClient) PlaceOptionOrder(order broker.OptionOrder) (model.OrderConfirmation, error) {
	if f.placeErr != nil {
		return model.OrderConfirmation{}, f.placeErr
	}
	f.orderSeq++
	f.placed = append(f.placed, order)
	return model.OrderConfirmation{
		Broker:          "zerodha",
		OrderID:         fmt.Sprintf("FAKE-%d", f.orderSeq),
		TradingSymbol:   fmt.Sprintf("%s%d%s", order.IndexName, order.Strike, order.OptionType),
		Strike:          order.Strike,
		OptionType:      order.OptionType,
		TransactionType: order.TransactionType,
		Quantity:        order.Quantity,
	}, nil
}

func (f *fakeClient) CancelPendingNFOOrders() error { f.cancels++; return nil }

func (f *fakeClient) SquareOffActiveBuys(mode model.OrderMode) ([]model.OrderConfirmation, error) {
	return f.squareOff, nil
}

// Wednesday 2026-09-02 is a regular NSE trading day.
func at(hour, min int) time.Time {
	return time.Date(2026, time.September, 2, hour, min, 0, 0, markethours.IST)
}

func newTestEngine(client *fakeClient, t time.Time) (*Engine, *time.Time) {
	clock := t
	e := NewEngine(client, nil, nil)
	e.now = func() time.Time { return clock }
	return e, &clock
}

func checkInvariant(t *testing.T, plan model.DeploymentPlan) {
	t.Helper()
	if plan.Status.Terminal() {
		return
	}
	if plan.BoughtLots+plan.PendingLots != plan.EffectiveMaxLots {
		t.Fatalf("invariant broken in %s: bought=%d pending=%d effective=%d",
			plan.Status, plan.BoughtLots, plan.PendingLots, plan.EffectiveMaxLots)
	}
}

func TestCreatePlanRejectsOutsideWindow(t *testing.T) {
	client := &fakeClient{margin: 1_000_000, price: 100}

	e, _ := newTestEngine(client, at(9, 30))
	_, err := e.CreatePlan(model.DeploymentRequest{IndexName: "NIFTY", Strike: 25000, OptionType: "CE", Lots: 2})
	if !model.IsValidation(err) {
		t.Fatalf("expected validation error before 9:40, got %v", err)
	}

	e, _ = newTestEngine(client, at(14, 51))
	_, err = e.CreatePlan(model.DeploymentRequest{IndexName: "NIFTY", Strike: 25000, OptionType: "CE", Lots: 2})
	if !model.IsValidation(err) {
		t.Fatalf("expected validation error after 14:50, got %v", err)
	}

	// Sunday.
	sunday := time.Date(2026, time.September, 6, 11, 0, 0, 0, markethours.IST)
	e, _ = newTestEngine(client, sunday)
	_, err = e.CreatePlan(model.DeploymentRequest{IndexName: "NIFTY", Strike: 25000, OptionType: "CE", Lots: 2})
	if !model.IsValidation(err) {
		t.Fatalf("expected validation error on Sunday, got %v", err)
	}
}

func TestCreatePlanMarginSizing(t *testing.T) {
	// 1,00,000 margin / (100 * 50) = 20 lots cap.
	client := &fakeClient{margin: 100_000, price: 100, lotSize: 50}
	e, _ := newTestEngine(client, at(10, 0))

	plan, err := e.CreatePlan(model.DeploymentRequest{IndexName: "NIFTY", Strike: 25000, OptionType: "CE", Lots: 5})
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	if plan.MaxLotsFromMargin != 20 || plan.EffectiveMaxLots != 5 || plan.PendingLots != 5 {
		t.Fatalf("sizing: cap=%d effective=%d pending=%d", plan.MaxLotsFromMargin, plan.EffectiveMaxLots, plan.PendingLots)
	}
	if plan.Status != model.StatusPendingStart || plan.BoughtLots != 0 {
		t.Fatalf("new plan must be PENDING_START with no fills, got %s/%d", plan.Status, plan.BoughtLots)
	}
	if plan.Mode.Variety != "REGULAR" || plan.Mode.Product != "NRML" {
		t.Fatalf("mode = %+v", plan.Mode)
	}
	if client.cancels != 1 {
		t.Fatalf("expected pending NFO cleanup before sizing, got %d calls", client.cancels)
	}
	checkInvariant(t, plan)

	// Margin caps below the request.
	plan, err = e.CreatePlan(model.DeploymentRequest{IndexName: "NIFTY", Strike: 25000, OptionType: "CE", Lots: 50})
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	if plan.EffectiveMaxLots != 20 {
		t.Fatalf("effective = %d, want margin cap 20", plan.EffectiveMaxLots)
	}

	client.margin = 1000
	if _, err := e.CreatePlan(model.DeploymentRequest{IndexName: "NIFTY", Strike: 25000, OptionType: "CE", Lots: 2}); !model.IsValidation(err) {
		t.Fatalf("expected insufficient-margin validation error, got %v", err)
	}
}

func TestPriceRiseDeploysEverythingThenHolds(t *testing.T) {
	client := &fakeClient{margin: 10_000_000, price: 100, lotSize: 50}
	e, clock := newTestEngine(client, at(10, 0))

	plan, err := e.CreatePlan(model.DeploymentRequest{IndexName: "NIFTY", Strike: 25000, OptionType: "CE", Lots: 3})
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}

	// First tick places exactly one lot.
	processed, err := e.Process(plan.PlanID)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	got := processed[0]
	if got.Status != model.StatusWait5m || got.BoughtLots != 1 || got.PendingLots != 2 {
		t.Fatalf("after first tick: %s bought=%d pending=%d", got.Status, got.BoughtLots, got.PendingLots)
	}
	if got.FirstBuyPrice != 100 || got.AverageBuyPrice != 100 {
		t.Fatalf("first buy bookkeeping: first=%v avg=%v", got.FirstBuyPrice, got.AverageBuyPrice)
	}
	checkInvariant(t, got)

	// Ticks before the 5-minute mark do nothing.
	*clock = at(10, 3)
	processed, _ = e.Process(plan.PlanID)
	if processed[0].Status != model.StatusWait5m || len(client.placed) != 1 {
		t.Fatalf("premature checkpoint: %s orders=%d", processed[0].Status, len(client.placed))
	}

	// Price up at +5m: deploy all remaining lots.
	*clock = at(10, 5)
	client.price = 110
	processed, _ = e.Process(plan.PlanID)
	got = processed[0]
	if got.Status != model.StatusWait10m || got.BoughtLots != 3 || got.PendingLots != 0 {
		t.Fatalf("after 5m: %s bought=%d pending=%d", got.Status, got.BoughtLots, got.PendingLots)
	}
	if got.PriceCheck5m != 110 {
		t.Fatalf("PriceCheck5m = %v", got.PriceCheck5m)
	}
	// VWAP of 1@100 + 2@110.
	wantAvg := (100.0 + 2*110.0) / 3.0
	if got.AverageBuyPrice != wantAvg {
		t.Fatalf("avg = %v, want %v", got.AverageBuyPrice, wantAvg)
	}
	checkInvariant(t, got)

	// Price above average at +10m: hold.
	*clock = at(10, 10)
	client.price = 108
	processed, _ = e.Process(plan.PlanID)
	got = processed[0]
	if got.Status != model.StatusActive || got.BoughtLots != 3 {
		t.Fatalf("after 10m: %s bought=%d", got.Status, got.BoughtLots)
	}
	if len(client.placed) != 2 {
		t.Fatalf("holding must place no order, got %d total", len(client.placed))
	}
}

func TestPriceDropAddsOneLotThenExits(t *testing.T) {
	client := &fakeClient{margin: 10_000_000, price: 100, lotSize: 50}
	e, clock := newTestEngine(client, at(10, 0))

	plan, _ := e.CreatePlan(model.DeploymentRequest{IndexName: "NIFTY", Strike: 25000, OptionType: "CE", Lots: 4})
	e.Process(plan.PlanID)

	// Price down at +5m: add exactly one lot.
	*clock = at(10, 5)
	client.price = 90
	processed, _ := e.Process(plan.PlanID)
	got := processed[0]
	if got.Status != model.StatusWait10m || got.BoughtLots != 2 || got.PendingLots != 2 {
		t.Fatalf("after 5m: %s bought=%d pending=%d", got.Status, got.BoughtLots, got.PendingLots)
	}
	checkInvariant(t, got)

	// Price below the 95 average at +10m: one reversal for the full size.
	*clock = at(10, 10)
	client.price = 80
	processed, _ = e.Process(plan.PlanID)
	got = processed[0]
	if got.Status != model.StatusExited {
		t.Fatalf("status = %s, want EXITED", got.Status)
	}
	last := client.placed[len(client.placed)-1]
	if last.TransactionType != model.TransactionSell || last.Quantity != 2 {
		t.Fatalf("reversal = %s x%d, want SELL x2", last.TransactionType, last.Quantity)
	}
	// Terminal plans are ignored by later ticks.
	*clock = at(10, 20)
	e.Process(plan.PlanID)
	if len(client.placed) != 3 {
		t.Fatalf("terminal plan placed an order: %d total", len(client.placed))
	}
}

func TestFlatPriceAtFiveDeploysNothing(t *testing.T) {
	client := &fakeClient{margin: 10_000_000, price: 100, lotSize: 50}
	e, clock := newTestEngine(client, at(10, 0))

	plan, _ := e.CreatePlan(model.DeploymentRequest{IndexName: "NIFTY", Strike: 25000, OptionType: "CE", Lots: 3})
	e.Process(plan.PlanID)

	*clock = at(10, 6)
	processed, _ := e.Process(plan.PlanID)
	got := processed[0]
	if got.Status != model.StatusWait10m || got.BoughtLots != 1 || got.PendingLots != 2 {
		t.Fatalf("tie must advance without deploying: %s bought=%d pending=%d", got.Status, got.BoughtLots, got.PendingLots)
	}
	if len(client.placed) != 1 {
		t.Fatalf("orders = %d, want 1", len(client.placed))
	}
	checkInvariant(t, got)
}

func TestForcedCloseBeforeThree(t *testing.T) {
	client := &fakeClient{margin: 10_000_000, price: 100, lotSize: 50}
	e, clock := newTestEngine(client, at(14, 45))

	plan, _ := e.CreatePlan(model.DeploymentRequest{IndexName: "NIFTY", Strike: 25000, OptionType: "CE", Lots: 3})
	e.Process(plan.PlanID)

	*clock = at(14, 59)
	processed, _ := e.Process(plan.PlanID)
	got := processed[0]
	if got.Status != model.StatusClosed {
		t.Fatalf("status = %s, want CLOSED", got.Status)
	}
	last := client.placed[len(client.placed)-1]
	if last.TransactionType != model.TransactionSell || last.Quantity != 1 {
		t.Fatalf("close reversal = %s x%d, want SELL x1", last.TransactionType, last.Quantity)
	}
	if last.Variety != "REGULAR" || last.Product != "NRML" {
		t.Fatalf("close must reuse the frozen mode, got %s/%s", last.Variety, last.Product)
	}
}

func TestPendingStartExpiresPastWindow(t *testing.T) {
	client := &fakeClient{margin: 10_000_000, price: 100, lotSize: 50}
	e, clock := newTestEngine(client, at(14, 49))

	plan, _ := e.CreatePlan(model.DeploymentRequest{IndexName: "NIFTY", Strike: 25000, OptionType: "CE", Lots: 3})

	*clock = at(14, 52)
	processed, _ := e.Process(plan.PlanID)
	if processed[0].Status != model.StatusExpired {
		t.Fatalf("status = %s, want EXPIRED", processed[0].Status)
	}
	if len(client.placed) != 0 {
		t.Fatalf("expired plan placed %d orders", len(client.placed))
	}
}

func TestProcessIsolatesFaultsPerPlan(t *testing.T) {
	client := &fakeClient{
		margin:  10_000_000,
		lotSize: 50,
		priceFor: map[int]float64{
			25000: 100,
			26000: 100,
		},
	}
	e, clock := newTestEngine(client, at(10, 0))

	healthy, _ := e.CreatePlan(model.DeploymentRequest{IndexName: "NIFTY", Strike: 25000, OptionType: "CE", Lots: 2})
	broken, _ := e.CreatePlan(model.DeploymentRequest{IndexName: "NIFTY", Strike: 26000, OptionType: "CE", Lots: 2})
	if _, err := e.Process(""); err != nil {
		t.Fatalf("Process: %v", err)
	}

	// The quote feed for one strike dies before the 5-minute checkpoint.
	client.ltpErrFor = map[int]error{26000: errors.New("quote feed down")}
	*clock = at(10, 5)
	if _, err := e.Process(""); err != nil {
		t.Fatalf("Process must not fail the batch: %v", err)
	}

	h, _ := e.GetPlan(healthy.PlanID)
	b, _ := e.GetPlan(broken.PlanID)
	if h.Status != model.StatusWait10m {
		t.Fatalf("healthy plan = %s, want WAIT_10M", h.Status)
	}
	if b.Status != model.StatusError {
		t.Fatalf("broken plan = %s, want ERROR", b.Status)
	}
}

func TestProcessUnknownPlan(t *testing.T) {
	e, _ := newTestEngine(&fakeClient{margin: 1_000_000, price: 100}, at(10, 0))
	if _, err := e.Process("no-such-plan"); !model.IsNotFound(err) {
		t.Fatalf("expected not-found error, got %v", err)
	}
	if _, err := e.GetPlan("no-such-plan"); !model.IsNotFound(err) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestProcessSkipsNonTradingDays(t *testing.T) {
	client := &fakeClient{margin: 10_000_000, price: 100, lotSize: 50}
	e, clock := newTestEngine(client, at(10, 0))

	plan, _ := e.CreatePlan(model.DeploymentRequest{IndexName: "NIFTY", Strike: 25000, OptionType: "CE", Lots: 2})

	*clock = time.Date(2026, time.September, 6, 10, 0, 0, 0, markethours.IST) // Sunday
	processed, err := e.Process("")
	if err != nil || processed != nil {
		t.Fatalf("Sunday tick: processed=%v err=%v", processed, err)
	}
	got, _ := e.GetPlan(plan.PlanID)
	if got.Status != model.StatusPendingStart || len(client.placed) != 0 {
		t.Fatalf("Sunday tick mutated the plan: %s orders=%d", got.Status, len(client.placed))
	}
}

func TestListPlansNewestFirstAndActiveFilter(t *testing.T) {
	client := &fakeClient{margin: 10_000_000, price: 100, lotSize: 50}
	e, clock := newTestEngine(client, at(10, 0))

	older, _ := e.CreatePlan(model.DeploymentRequest{IndexName: "NIFTY", Strike: 25000, OptionType: "CE", Lots: 2})
	*clock = at(10, 1)
	newer, _ := e.CreatePlan(model.DeploymentRequest{IndexName: "NIFTY", Strike: 25100, OptionType: "CE", Lots: 2})

	all := e.ListPlans(false)
	if len(all) != 2 || all[0].PlanID != newer.PlanID || all[1].PlanID != older.PlanID {
		t.Fatalf("ListPlans order wrong: %d plans", len(all))
	}

	// Let the older plan expire, then filter.
	*clock = at(14, 55)
	e.plans[older.PlanID].Status = model.StatusExpired
	active := e.ListPlans(true)
	if len(active) != 1 || active[0].PlanID != newer.PlanID {
		t.Fatalf("activeOnly returned %d plans", len(active))
	}
}

func TestSnapshotsAreDetached(t *testing.T) {
	client := &fakeClient{margin: 10_000_000, price: 100, lotSize: 50}
	e, _ := newTestEngine(client, at(10, 0))

	plan, _ := e.CreatePlan(model.DeploymentRequest{IndexName: "NIFTY", Strike: 25000, OptionType: "CE", Lots: 2})
	snapshot, _ := e.GetPlan(plan.PlanID)
	snapshot.Events = append(snapshot.Events, "caller scribble")
	snapshot.Status = model.StatusError

	again, _ := e.GetPlan(plan.PlanID)
	if again.Status != model.StatusPendingStart || len(again.Events) != 1 {
		t.Fatalf("snapshot mutation leaked into the engine: %s events=%d", again.Status, len(again.Events))
	}
}

func TestSquareOffWindow(t *testing.T) {
	client := &fakeClient{
		margin: 1_000_000, price: 100,
		squareOff: []model.OrderConfirmation{{Broker: "zerodha", OrderID: "SQ-1", TransactionType: "SELL", Quantity: 2}},
	}

	e, _ := newTestEngine(client, at(15, 0))
	if _, err := e.SquareOffActiveBuys(); !model.IsValidation(err) {
		t.Fatalf("expected window-closed error at 15:00, got %v", err)
	}

	e, _ = newTestEngine(client, at(14, 30))
	confs, err := e.SquareOffActiveBuys()
	if err != nil || len(confs) != 1 || confs[0].OrderID != "SQ-1" {
		t.Fatalf("square off: confs=%v err=%v", confs, err)
	}

	sunday := time.Date(2026, time.September, 6, 11, 0, 0, 0, markethours.IST)
	e, _ = newTestEngine(client, sunday)
	confs, err = e.SquareOffActiveBuys()
	if err != nil || confs != nil {
		t.Fatalf("Sunday square off: confs=%v err=%v", confs, err)
	}
}

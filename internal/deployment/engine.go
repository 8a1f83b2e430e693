// Package deployment owns the registry of staged deployment plans and
// advances each plan's state machine on every external tick.
//
// The engine has no internal timer: timeliness is bounded by how often the
// surrounding process calls Process. One mutex serializes plan creation and
// every tick; read paths hold it only long enough to copy snapshots.
package deployment

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"options-deskv1/internal/broker"
	"options-deskv1/internal/execution"
	"options-deskv1/internal/markethours"
	"options-deskv1/internal/metrics"
	"options-deskv1/internal/model"
	"options-deskv1/internal/notification"
)

// Engine is the staged deployment engine. journal and prom may be nil.
type Engine struct {
	client  broker.Client
	journal *execution.Journal
	prom    *metrics.Metrics

	// Notify, when set, receives an alert each time a plan reaches a
	// terminal state. Delivery is fire-and-forget.
	Notify notification.Notifier

	now func() time.Time

	mu    sync.Mutex
	plans map[string]*model.DeploymentPlan
}

// NewEngine creates a deployment engine over the given primary broker
// client.
func NewEngine(client broker.Client, journal *execution.Journal, prom *metrics.Metrics) *Engine {
	return &Engine{
		client:  client,
		journal: journal,
		prom:    prom,
		now:     func() time.Time { return time.Now().In(markethours.IST) },
		plans:   make(map[string]*model.DeploymentPlan),
	}
}

// CreatePlan validates the trading day and deployment window, sizes the
// plan from available margin, and registers it in PENDING_START. The first
// lot is placed by the next tick, not here.
func (e *Engine) CreatePlan(req model.DeploymentRequest) (model.DeploymentPlan, error) {
	now := e.now()

	if !markethours.IsTradingDay(now) {
		return model.DeploymentPlan{}, model.Validationf("deployment is only supported on trading days (Mon-Fri, excluding NSE holidays)")
	}
	if !markethours.InDeploymentWindow(now) {
		return model.DeploymentPlan{}, model.Validationf("deployments allowed only between 9:40 AM and 2:50 PM IST")
	}
	if req.TransactionType == "" {
		req.TransactionType = model.TransactionBuy
	}

	// Stale pending orders are cleaned up best-effort; a failure here never
	// blocks the plan.
	if err := e.client.CancelPendingNFOOrders(); err != nil {
		log.Printf("[deploy] cancel pending NFO orders failed: %v", err)
	}

	margin, err := e.client.AvailableMargin()
	if err != nil {
		return model.DeploymentPlan{}, err
	}
	contract, err := e.client.FindOptionContract(req.IndexName, req.Strike, req.OptionType, req.ExpiryDate)
	if err != nil {
		return model.DeploymentPlan{}, err
	}
	price, err := e.client.OptionLTP(contract)
	if err != nil {
		return model.DeploymentPlan{}, err
	}
	if price <= 0 {
		return model.DeploymentPlan{}, model.Validationf("invalid option LTP for deployment")
	}

	lotSize := contract.LotSize
	if lotSize <= 0 {
		lotSize = 1
	}
	maxByMargin := int(margin / (price * float64(lotSize)))
	maxLots := req.Lots
	if maxByMargin < maxLots {
		maxLots = maxByMargin
	}
	if maxLots <= 0 {
		return model.DeploymentPlan{}, model.Validationf("insufficient margin for even 1 lot")
	}

	plan := &model.DeploymentPlan{
		PlanID:            uuid.NewString(),
		Request:           req,
		CreatedAt:         now,
		Status:            model.StatusPendingStart,
		Mode:              markethours.OrderModeAt(now),
		MaxLotsFromMargin: maxByMargin,
		EffectiveMaxLots:  maxLots,
		InitialPrice:      price,
		PendingLots:       maxLots,
		Events:            []string{"Plan created; waiting for engine tick to place first lot"},
	}

	e.mu.Lock()
	e.plans[plan.PlanID] = plan
	snapshot := plan.Clone()
	active := e.activePlanCountLocked()
	e.mu.Unlock()

	if e.prom != nil {
		e.prom.PlansCreated.Inc()
		e.prom.ActivePlans.Set(float64(active))
	}
	log.Printf("[deploy] plan %s created: %s %d%s lots=%d (margin cap %d) mode=%s",
		plan.PlanID, req.IndexName, req.Strike, req.OptionType, maxLots, maxByMargin, plan.Mode.Variety)
	return snapshot, nil
}

// GetPlan returns a snapshot of one plan.
func (e *Engine) GetPlan(planID string) (model.DeploymentPlan, error) {
	e.mu.Lock()
	plan, ok := e.plans[planID]
	if !ok {
		e.mu.Unlock()
		return model.DeploymentPlan{}, model.NotFoundf("deployment plan not found")
	}
	snapshot := plan.Clone()
	e.mu.Unlock()
	return snapshot, nil
}

// ListPlans returns snapshots of all plans, newest first. With activeOnly
// set, terminal plans are filtered out.
func (e *Engine) ListPlans(activeOnly bool) []model.DeploymentPlan {
	e.mu.Lock()
	snapshots := make([]model.DeploymentPlan, 0, len(e.plans))
	for _, plan := range e.plans {
		if activeOnly && plan.Status.Terminal() {
			continue
		}
		snapshots = append(snapshots, plan.Clone())
	}
	e.mu.Unlock()

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].CreatedAt.After(snapshots[j].CreatedAt)
	})
	return snapshots
}

// Process advances one named plan, or every plan when planID is blank. It
// is a no-op outside trading days. Each plan is processed independently: a
// fault in one becomes that plan's own ERROR status and the batch
// continues.
func (e *Engine) Process(planID string) ([]model.DeploymentPlan, error) {
	now := e.now()
	if !markethours.IsTradingDay(now) {
		return nil, nil
	}

	start := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()

	var batch []*model.DeploymentPlan
	if planID != "" {
		plan, ok := e.plans[planID]
		if !ok {
			return nil, model.NotFoundf("deployment plan not found")
		}
		batch = []*model.DeploymentPlan{plan}
	} else {
		batch = make([]*model.DeploymentPlan, 0, len(e.plans))
		for _, plan := range e.plans {
			batch = append(batch, plan)
		}
	}

	processed := make([]model.DeploymentPlan, 0, len(batch))
	for _, plan := range batch {
		e.tickPlan(plan, now)
		processed = append(processed, plan.Clone())
	}

	if e.prom != nil {
		e.prom.TickDur.Observe(time.Since(start).Seconds())
		e.prom.ActivePlans.Set(float64(e.activePlanCountLocked()))
	}
	return processed, nil
}

// tickPlan isolates one plan's faults: any error or panic during its tick
// converts only that plan to ERROR.
func (e *Engine) tickPlan(plan *model.DeploymentPlan, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			e.transition(plan, model.StatusError)
			plan.Events = append(plan.Events, fmt.Sprintf("Engine panic: %v", r))
			log.Printf("[deploy] plan %s panicked: %v", plan.PlanID, r)
		}
	}()

	if err := e.processPlan(plan, now); err != nil {
		e.transition(plan, model.StatusError)
		plan.Events = append(plan.Events, "Engine error: "+err.Error())
		log.Printf("[deploy] plan %s errored: %v", plan.PlanID, err)
	}
}

func (e *Engine) processPlan(plan *model.DeploymentPlan, now time.Time) error {
	if plan.Status.Terminal() {
		return nil
	}

	// End-of-day guard runs before anything else, whatever the state.
	if markethours.PastForcedClose(now) && plan.BoughtLots > 0 {
		hint := plan.AverageBuyPrice
		if hint == 0 {
			hint = plan.InitialPrice
		}
		if err := e.placeLots(plan, plan.BoughtLots, hint, model.OppositeTransaction(plan.Request.TransactionType)); err != nil {
			return err
		}
		plan.Events = append(plan.Events, "Forced square-off before 3:00 PM IST")
		e.transition(plan, model.StatusClosed)
		return nil
	}

	if plan.Status == model.StatusPendingStart {
		if !markethours.InDeploymentWindow(now) {
			if markethours.PastDeploymentWindow(now) {
				e.transition(plan, model.StatusExpired)
				plan.Events = append(plan.Events, "Plan expired without first deployment")
			}
			return nil
		}

		price, err := e.currentPrice(plan)
		if err != nil {
			return err
		}
		if err := e.placeLots(plan, 1, price, plan.Request.TransactionType); err != nil {
			return err
		}
		plan.FirstBuyPrice = price
		firstAt := now
		plan.FirstBuyAt = &firstAt
		e.transition(plan, model.StatusWait5m)
		plan.Events = append(plan.Events, "First lot deployed; waiting for 5-minute checkpoint")
		return nil
	}

	if plan.FirstBuyAt == nil {
		return nil
	}
	fiveMinDue := plan.FirstBuyAt.Add(5 * time.Minute)
	tenMinDue := plan.FirstBuyAt.Add(10 * time.Minute)

	price, err := e.currentPrice(plan)
	if err != nil {
		return err
	}

	if plan.Status == model.StatusWait5m && !now.Before(fiveMinDue) {
		plan.PriceCheck5m = price
		baseline := plan.FirstBuyPrice
		if baseline == 0 {
			baseline = plan.InitialPrice
		}
		switch {
		case price > baseline && plan.PendingLots > 0:
			lots := plan.PendingLots
			if err := e.placeLots(plan, lots, price, plan.Request.TransactionType); err != nil {
				return err
			}
			plan.Events = append(plan.Events, fmt.Sprintf("5m: price up; deployed remaining %d lots", lots))
		case price < baseline && plan.PendingLots > 0:
			if err := e.placeLots(plan, 1, price, plan.Request.TransactionType); err != nil {
				return err
			}
			plan.Events = append(plan.Events, "5m: price down; deployed 1 additional lot")
		default:
			// Exact tie deploys nothing but still advances.
			plan.Events = append(plan.Events, "5m: price unchanged; waiting for 10-minute checkpoint")
		}
		e.transition(plan, model.StatusWait10m)
		return nil
	}

	if (plan.Status == model.StatusWait10m || plan.Status == model.StatusActive) && !now.Before(tenMinDue) {
		plan.PriceCheck10m = price
		if plan.BoughtLots > 0 && price < plan.AverageBuyPrice {
			if err := e.placeLots(plan, plan.BoughtLots, price, model.OppositeTransaction(plan.Request.TransactionType)); err != nil {
				return err
			}
			plan.Events = append(plan.Events, "10m: price below average buy; exited position")
			e.transition(plan, model.StatusExited)
		} else if plan.Status != model.StatusActive {
			plan.Events = append(plan.Events, "10m: position retained")
			e.transition(plan, model.StatusActive)
		}
	}
	return nil
}

// placeLots submits one order in the plan's frozen mode and, on the BUY
// side, recomputes the volume-weighted average buy price and the pending
// counter.
func (e *Engine) placeLots(plan *model.DeploymentPlan, lots int, priceHint float64, tx string) error {
	if lots <= 0 {
		return nil
	}
	conf, err := e.client.PlaceOptionOrder(broker.OptionOrder{
		IndexName:       plan.Request.IndexName,
		Strike:          plan.Request.Strike,
		OptionType:      plan.Request.OptionType,
		Quantity:        lots,
		TransactionType: tx,
		ExpiryDate:      plan.Request.ExpiryDate,
		Variety:         plan.Mode.Variety,
		Product:         plan.Mode.Product,
	})
	if err != nil {
		return err
	}
	plan.Orders = append(plan.Orders, conf)

	if e.prom != nil {
		e.prom.OrdersPlaced.WithLabelValues(conf.Broker).Inc()
	}
	if e.journal != nil {
		if jerr := e.journal.Record(conf, "deployment"); jerr != nil {
			log.Printf("[deploy] journal write failed: %v", jerr)
		}
	}

	if tx == model.TransactionBuy {
		totalCost := plan.AverageBuyPrice*float64(plan.BoughtLots) + priceHint*float64(lots)
		plan.BoughtLots += lots
		plan.PendingLots = plan.EffectiveMaxLots - plan.BoughtLots
		if plan.PendingLots < 0 {
			plan.PendingLots = 0
		}
		divisor := plan.BoughtLots
		if divisor < 1 {
			divisor = 1
		}
		plan.AverageBuyPrice = totalCost / float64(divisor)
	}
	return nil
}

func (e *Engine) currentPrice(plan *model.DeploymentPlan) (float64, error) {
	contract, err := e.client.FindOptionContract(
		plan.Request.IndexName, plan.Request.Strike, plan.Request.OptionType, plan.Request.ExpiryDate)
	if err != nil {
		return 0, err
	}
	return e.client.OptionLTP(contract)
}

func (e *Engine) transition(plan *model.DeploymentPlan, status model.PlanStatus) {
	plan.Status = status
	if e.prom != nil {
		e.prom.PlanTransitions.WithLabelValues(string(status)).Inc()
	}
	if e.Notify != nil && status.Terminal() {
		alert := notification.PlanAlert(plan.Clone())
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := e.Notify.Send(ctx, alert); err != nil {
				log.Printf("[deploy] alert delivery failed: %v", err)
			}
		}()
	}
}

func (e *Engine) activePlanCountLocked() int {
	n := 0
	for _, plan := range e.plans {
		if !plan.Status.Terminal() {
			n++
		}
	}
	return n
}

// SquareOffActiveBuys flattens every open long position through the broker
// collaborator, independent of any individual plan's bookkeeping. It is
// refused at or after 3:00 PM IST.
func (e *Engine) SquareOffActiveBuys() ([]model.OrderConfirmation, error) {
	now := e.now()
	if !markethours.IsTradingDay(now) {
		return nil, nil
	}
	if markethours.PastSquareOffCutoff(now) {
		return nil, model.Validationf("square off must be completed before 3:00 PM IST")
	}

	mode := markethours.OrderModeAt(now)
	confirmations, err := e.client.SquareOffActiveBuys(mode)
	if err != nil {
		return nil, err
	}

	if e.prom != nil {
		e.prom.SquareOffs.Inc()
	}
	if e.journal != nil {
		for _, conf := range confirmations {
			if jerr := e.journal.Record(conf, "squareoff"); jerr != nil {
				log.Printf("[deploy] journal write failed: %v", jerr)
			}
		}
	}
	return confirmations, nil
}

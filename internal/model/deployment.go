package model

import "time"

// PlanStatus is the lifecycle state of a deployment plan.
//
// Within a trading day a plan only moves forward:
//
//	PENDING_START → WAIT_5M → WAIT_10M → ACTIVE | EXITED
//
// Any non-terminal state may jump to CLOSED (end-of-day square-off) or
// ERROR. EXPIRED is reached only from PENDING_START when the deployment
// window elapses with no fill.
type PlanStatus string

const (
	StatusPendingStart PlanStatus = "PENDING_START"
	StatusWait5m       PlanStatus = "WAIT_5M"
	StatusWait10m      PlanStatus = "WAIT_10M"
	StatusActive       PlanStatus = "ACTIVE"
	StatusExited       PlanStatus = "EXITED"
	StatusClosed       PlanStatus = "CLOSED"
	StatusExpired      PlanStatus = "EXPIRED"
	StatusError        PlanStatus = "ERROR"
)

// Terminal reports whether the engine takes no further action on a plan.
// ACTIVE is not terminal: it still participates in the end-of-day close.
func (s PlanStatus) Terminal() bool {
	switch s {
	case StatusExited, StatusClosed, StatusExpired, StatusError:
		return true
	}
	return false
}

// DeploymentRequest asks the deployment engine to build a staged position.
type DeploymentRequest struct {
	IndexName       string `json:"index_name"`
	Strike          int    `json:"strike"`
	OptionType      string `json:"option_type"`           // CE, PE
	ExpiryDate      string `json:"expiry_date,omitempty"` // YYYY-MM-DD, blank = nearest
	Lots            int    `json:"lots"`                  // requested lot cap
	TransactionType string `json:"transaction_type"`      // BUY, SELL
}

// DeploymentPlan is the full bookkeeping record of one staged deployment.
//
// Invariant outside CLOSED/EXITED/EXPIRED/ERROR:
//
//	BoughtLots + PendingLots == EffectiveMaxLots
type DeploymentPlan struct {
	PlanID    string            `json:"plan_id"`
	Request   DeploymentRequest `json:"request"`
	CreatedAt time.Time         `json:"created_at"`
	Status    PlanStatus        `json:"status"`
	Mode      OrderMode         `json:"mode"` // frozen at creation

	MaxLotsFromMargin int     `json:"max_lots_from_margin"`
	EffectiveMaxLots  int     `json:"effective_max_lots"`
	InitialPrice      float64 `json:"initial_price"`

	BoughtLots      int     `json:"bought_lots"`
	PendingLots     int     `json:"pending_lots"`
	AverageBuyPrice float64 `json:"average_buy_price"`

	FirstBuyPrice float64    `json:"first_buy_price,omitempty"`
	FirstBuyAt    *time.Time `json:"first_buy_at,omitempty"`
	PriceCheck5m  float64    `json:"price_check_5m,omitempty"`
	PriceCheck10m float64    `json:"price_check_10m,omitempty"`

	Orders []OrderConfirmation `json:"orders"` // append-only
	Events []string            `json:"events"` // append-only
}

// Clone returns a deep copy so snapshots can leave the engine lock.
func (p *DeploymentPlan) Clone() DeploymentPlan {
	cp := *p
	if p.FirstBuyAt != nil {
		t := *p.FirstBuyAt
		cp.FirstBuyAt = &t
	}
	cp.Orders = append([]OrderConfirmation(nil), p.Orders...)
	cp.Events = append([]string(nil), p.Events...)
	return cp
}

// Package execution runs single orders and multi-leg strategies against
// one or more brokers with optional failover, and records every
// confirmation to the trade journal.
package execution

import (
	"context"
	"log"
	"time"

	"options-deskv1/internal/broker"
	"options-deskv1/internal/metrics"
	"options-deskv1/internal/model"
	"options-deskv1/internal/notification"
)

// Engine executes orders against the registered broker adapters. journal
// and prom may be nil.
type Engine struct {
	brokers  map[string]broker.Adapter
	switcher *broker.Switcher
	journal  *Journal
	prom     *metrics.Metrics

	// Notify, when set, receives an alert for every confirmed fill.
	// Delivery is fire-and-forget.
	Notify notification.Notifier
}

// NewEngine creates an execution engine over the given adapters.
func NewEngine(switcher *broker.Switcher, journal *Journal, prom *metrics.Metrics, adapters ...broker.Adapter) *Engine {
	brokers := make(map[string]broker.Adapter, len(adapters))
	for _, a := range adapters {
		brokers[a.Name()] = a
	}
	return &Engine{
		brokers:  brokers,
		switcher: switcher,
		journal:  journal,
		prom:     prom,
	}
}

// Switcher returns the engine's broker switcher.
func (e *Engine) Switcher() *broker.Switcher { return e.switcher }

// BrokerNames returns the names of all registered adapters.
func (e *Engine) BrokerNames() []string {
	names := make([]string, 0, len(e.brokers))
	for name := range e.brokers {
		names = append(names, name)
	}
	return names
}

// Status returns the configured/connected view per broker. Pure read, no
// mutation.
func (e *Engine) Status() map[string]BrokerStatus {
	status := make(map[string]BrokerStatus, len(e.brokers))
	for name, a := range e.brokers {
		status[name] = BrokerStatus{Configured: a.IsConfigured(), Connected: a.IsConnected()}
	}
	return status
}

// ExecuteWithFailover tries the order against each candidate broker in
// order. Candidates are selectedBrokers when provided, else the single
// active broker; when the active broker appears in the list it is moved to
// the front, preserving the relative order of the rest.
//
// A failure always continues to the next candidate. failoverEnabled only
// controls early exit on success: when true, the first success wins and no
// further broker is tried; when false every candidate is attempted.
func (e *Engine) ExecuteWithFailover(order model.OrderRequest, selectedBrokers []string, failoverEnabled bool) Result {
	candidates := selectedBrokers
	if len(candidates) == 0 {
		candidates = []string{e.switcher.Active()}
	}
	candidates = frontload(candidates, e.switcher.Active())

	attempts := make([]BrokerAttempt, 0, len(candidates))
	for _, name := range candidates {
		adapter, ok := e.brokers[name]
		if !ok {
			attempts = append(attempts, BrokerAttempt{Broker: name, Error: "unsupported broker"})
			continue
		}

		conf, err := adapter.PlaceOrder(order)
		if err != nil {
			log.Printf("[execution] %s rejected order: %v", name, err)
			attempts = append(attempts, BrokerAttempt{Broker: name, Error: err.Error()})
			if e.prom != nil {
				e.prom.OrdersFailed.WithLabelValues(name).Inc()
				e.prom.FailoverContinues.Inc()
			}
			continue
		}

		attempts = append(attempts, BrokerAttempt{Broker: name, Success: true, Order: &conf})
		e.record(conf, "execution")
		if failoverEnabled {
			break
		}
	}

	result := Result{Attempts: attempts}
	for _, a := range attempts {
		if a.Success {
			result.Success = true
			if result.ExecutedBy == "" {
				result.ExecutedBy = a.Broker
			}
		}
	}
	return result
}

// ExecuteStrategy runs ExecuteWithFailover independently per leg. Legs are
// not atomic as a group; overall success is the AND across all legs.
func (e *Engine) ExecuteStrategy(orders []model.OrderRequest, selectedBrokers []string, failoverEnabled bool) StrategyResult {
	result := StrategyResult{Success: true, Legs: make([]Result, 0, len(orders))}
	for _, order := range orders {
		leg := e.ExecuteWithFailover(order, selectedBrokers, failoverEnabled)
		result.Legs = append(result.Legs, leg)
		result.Success = result.Success && leg.Success
	}
	return result
}

func (e *Engine) record(conf model.OrderConfirmation, source string) {
	if e.prom != nil {
		e.prom.OrdersPlaced.WithLabelValues(conf.Broker).Inc()
	}
	if e.Notify != nil {
		alert := notification.OrderAlert(conf, source)
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := e.Notify.Send(ctx, alert); err != nil {
				log.Printf("[execution] order alert failed: %v", err)
			}
		}()
	}
	if e.journal == nil {
		return
	}
	start := time.Now()
	if err := e.journal.Record(conf, source); err != nil {
		log.Printf("[execution] journal write failed: %v", err)
		return
	}
	if e.prom != nil {
		e.prom.JournalWriteDur.Observe(time.Since(start).Seconds())
	}
}

// frontload moves active to the front when present, keeping the relative
// order of the remaining candidates.
func frontload(candidates []string, active string) []string {
	found := false
	for _, c := range candidates {
		if c == active {
			found = true
			break
		}
	}
	if !found {
		return candidates
	}
	out := make([]string, 0, len(candidates))
	out = append(out, active)
	for _, c := range candidates {
		if c != active {
			out = append(out, c)
		}
	}
	return out
}

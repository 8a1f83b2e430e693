// Package notification delivers desk alerts (plan transitions, forced
// square-offs, broker faults) to external channels such as Telegram or a
// generic webhook.
package notification

import (
	"context"
	"fmt"
	"log"

	"options-deskv1/internal/model"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier is a simple notifier that logs alerts (useful for development).
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	log.Printf("[notify] [%s] %s: %s", alert.Level, alert.Title, alert.Message)
	return nil
}

// planAlertLevel maps terminal plan states to severities.
func planAlertLevel(status model.PlanStatus) AlertLevel {
	switch status {
	case model.StatusError:
		return AlertCritical
	case model.StatusExited, model.StatusClosed:
		return AlertWarning
	default:
		return AlertInfo
	}
}

// PlanAlert builds an alert for a deployment plan reaching a notable state.
func PlanAlert(plan model.DeploymentPlan) Alert {
	title := fmt.Sprintf("Plan %s: %s", plan.PlanID, plan.Status)
	msg := fmt.Sprintf("%s %d%s | bought %d/%d lots | avg %.2f",
		plan.Request.IndexName, plan.Request.Strike, plan.Request.OptionType,
		plan.BoughtLots, plan.EffectiveMaxLots, plan.AverageBuyPrice)
	if n := len(plan.Events); n > 0 {
		msg += " | " + plan.Events[n-1]
	}
	return Alert{Level: planAlertLevel(plan.Status), Title: title, Message: msg}
}

// OrderAlert builds an alert for a placed order confirmation.
func OrderAlert(conf model.OrderConfirmation, source string) Alert {
	return Alert{
		Level: AlertInfo,
		Title: fmt.Sprintf("Order %s via %s", conf.OrderID, conf.Broker),
		Message: fmt.Sprintf("%s %s x%d (%s)",
			conf.TransactionType, conf.TradingSymbol, conf.Quantity, source),
	}
}

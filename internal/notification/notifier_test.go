package notification

import (
	"strings"
	"testing"

	"options-deskv1/internal/model"
)

func TestPlanAlertLevels(t *testing.T) {
	cases := []struct {
		status model.PlanStatus
		want   AlertLevel
	}{
		{model.StatusError, AlertCritical},
		{model.StatusExited, AlertWarning},
		{model.StatusClosed, AlertWarning},
		{model.StatusExpired, AlertInfo},
	}
	for _, c := range cases {
		plan := model.DeploymentPlan{
			PlanID:  "p-1",
			Status:  c.status,
			Request: model.DeploymentRequest{IndexName: "NIFTY", Strike: 25000, OptionType: "CE"},
		}
		alert := PlanAlert(plan)
		if alert.Level != c.want {
			t.Errorf("%s: level = %s, want %s", c.status, alert.Level, c.want)
		}
		if !strings.Contains(alert.Title, "p-1") {
			t.Errorf("%s: title missing plan id: %q", c.status, alert.Title)
		}
	}
}

func TestPlanAlertCarriesLastEvent(t *testing.T) {
	plan := model.DeploymentPlan{
		PlanID:  "p-2",
		Status:  model.StatusExited,
		Request: model.DeploymentRequest{IndexName: "NIFTY", Strike: 25000, OptionType: "PE"},
		Events:  []string{"first", "10m: price below average buy; exited position"},
	}
	alert := PlanAlert(plan)
	if !strings.Contains(alert.Message, "exited position") {
		t.Fatalf("message missing last event: %q", alert.Message)
	}
}

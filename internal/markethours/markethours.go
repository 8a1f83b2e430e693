// Package markethours holds every wall-clock rule the desk engines apply:
// trading-day tests, the NSE regular session, the staged-deployment window,
// and the end-of-day cutoffs. All functions are pure over time.Time so the
// engines stay deterministic under an injected clock.
package markethours

import (
	"time"

	"options-deskv1/internal/model"
)

// IST is the Indian Standard Time location (UTC+5:30).
var IST = time.FixedZone("IST", 5*3600+30*60)

// Session boundaries in IST.
const (
	RegularOpenHour    = 9
	RegularOpenMinute  = 15
	RegularCloseHour   = 15
	RegularCloseMinute = 30

	// Staged deployments are accepted only inside this window.
	DeployOpenHour    = 9
	DeployOpenMinute  = 40
	DeployCloseHour   = 14
	DeployCloseMinute = 50

	// Held lots are force-reversed from 14:59; the global square-off is
	// refused from 15:00.
	ForcedCloseHour     = 14
	ForcedCloseMinute   = 59
	SquareOffCutoffHour = 15
)

func minutesOfDay(t time.Time) int {
	ist := t.In(IST)
	return ist.Hour()*60 + ist.Minute()
}

// IsWeekday returns true if t is Mon–Fri in IST.
func IsWeekday(t time.Time) bool {
	wd := t.In(IST).Weekday()
	return wd >= time.Monday && wd <= time.Friday
}

// IsTradingDay returns true if t is a weekday and not an NSE holiday.
func IsTradingDay(t time.Time) bool {
	ist := t.In(IST)
	return IsWeekday(ist) && !IsHoliday(ist)
}

// IsRegularHours returns true if t falls within the NSE regular session
// (9:15 AM – 3:30 PM IST inclusive). Day-of-week is not checked here.
func IsRegularHours(t time.Time) bool {
	hm := minutesOfDay(t)
	return hm >= RegularOpenHour*60+RegularOpenMinute &&
		hm <= RegularCloseHour*60+RegularCloseMinute
}

// InDeploymentWindow returns true if t falls within the staged-deployment
// window (9:40 AM – 2:50 PM IST inclusive).
func InDeploymentWindow(t time.Time) bool {
	hm := minutesOfDay(t)
	return hm >= DeployOpenHour*60+DeployOpenMinute &&
		hm <= DeployCloseHour*60+DeployCloseMinute
}

// PastDeploymentWindow returns true if t is after the 2:50 PM close of the
// deployment window.
func PastDeploymentWindow(t time.Time) bool {
	return minutesOfDay(t) > DeployCloseHour*60+DeployCloseMinute
}

// PastForcedClose returns true at or after 2:59 PM IST, when any held lots
// are reversed regardless of plan state.
func PastForcedClose(t time.Time) bool {
	return minutesOfDay(t) >= ForcedCloseHour*60+ForcedCloseMinute
}

// PastSquareOffCutoff returns true at or after 3:00 PM IST, when the global
// square-off is no longer accepted.
func PastSquareOffCutoff(t time.Time) bool {
	return minutesOfDay(t) >= SquareOffCutoffHour*60
}

// OrderModeAt returns the variety/product pair applicable at t: AMO on a
// weekday outside regular hours (queued for the next session), REGULAR
// otherwise. Product is always NRML — positions carry overnight.
func OrderModeAt(t time.Time) model.OrderMode {
	if IsWeekday(t) && !IsRegularHours(t) {
		return model.OrderMode{Variety: "AMO", Product: "NRML"}
	}
	return model.OrderMode{Variety: "REGULAR", Product: "NRML"}
}

// Package decision implements the weather decision rules. Evaluate is a pure
// function of one forecast sample and the configured thresholds; it performs
// no I/O and holds no state, so rule precedence can be tested exhaustively.
package decision

import (
	"fmt"

	"github.com/shopspring/decimal"

	"raincheck/internal/types"
)

// Thresholds holds the decision boundaries. All values are deployment
// configuration, never constants in calling code. Precipitation values are
// decimal so boundary comparisons are exact.
type Thresholds struct {
	// KillSwitchCodes force a reassign regardless of precipitation and
	// probability. Defaults to the severe-storm WMO codes {95, 96, 99}.
	KillSwitchCodes []int
	// DrizzleMM: precipitation strictly below this never reassigns.
	DrizzleMM decimal.Decimal
	// ReassignMM: precipitation strictly above this reassigns, provided the
	// probability condition holds.
	ReassignMM decimal.Decimal
	// LowProbability: probability strictly below this never reassigns.
	LowProbability int
	// ReassignProbability: probability at or above this satisfies the
	// heavy-rain rule.
	ReassignProbability int
}

// DefaultThresholds returns the reference decision boundaries.
func DefaultThresholds() Thresholds {
	return Thresholds{
		KillSwitchCodes:     []int{95, 96, 99},
		DrizzleMM:           decimal.RequireFromString("0.5"),
		ReassignMM:          decimal.RequireFromString("2.0"),
		LowProbability:      40,
		ReassignProbability: 50,
	}
}

// Engine evaluates forecast samples against a fixed set of thresholds.
type Engine struct {
	thresholds Thresholds
	killSwitch map[int]struct{}
}

// NewEngine creates an Engine for the given thresholds.
func NewEngine(t Thresholds) *Engine {
	killSwitch := make(map[int]struct{}, len(t.KillSwitchCodes))
	for _, code := range t.KillSwitchCodes {
		killSwitch[code] = struct{}{}
	}
	return &Engine{thresholds: t, killSwitch: killSwitch}
}

// Thresholds returns the engine's configured boundaries.
func (e *Engine) Thresholds() Thresholds {
	return e.thresholds
}

// Evaluate maps one forecast sample to a decision. Rules fire in this exact
// precedence order; exactly one trigger is produced:
//
//  1. weather code in the kill-switch set        -> reassign (kill_switch)
//  2. precipitation < DrizzleMM                  -> keep (light_rain)
//  3. probability < LowProbability               -> keep (low_probability)
//  4. precipitation > ReassignMM AND
//     probability >= ReassignProbability         -> reassign (heavy_rain)
//  5. otherwise                                  -> keep (acceptable)
//
// A sample without a probability is treated as certain (100), so the
// decision rests on precipitation alone.
func (e *Engine) Evaluate(sample *types.ForecastSample) types.Decision {
	if sample.WeatherCode != nil {
		if _, severe := e.killSwitch[*sample.WeatherCode]; severe {
			return types.Decision{
				ShouldReassign: true,
				Trigger:        types.TriggerKillSwitch,
				Reason: fmt.Sprintf("severe weather code %d forecast for %s",
					*sample.WeatherCode, sample.Date.Format("2006-01-02")),
				WeatherCode: sample.WeatherCode,
			}
		}
	}

	probability := 100
	if sample.PrecipitationProb != nil {
		probability = *sample.PrecipitationProb
	}

	if sample.PrecipitationMM.LessThan(e.thresholds.DrizzleMM) {
		return types.Decision{
			Trigger: types.TriggerLightRain,
			Reason: fmt.Sprintf("precipitation %smm is below the %smm drizzle threshold",
				sample.PrecipitationMM, e.thresholds.DrizzleMM),
			WeatherCode: sample.WeatherCode,
		}
	}

	if probability < e.thresholds.LowProbability {
		return types.Decision{
			Trigger: types.TriggerLowProbability,
			Reason: fmt.Sprintf("rain probability %d%% is below the %d%% threshold",
				probability, e.thresholds.LowProbability),
			WeatherCode: sample.WeatherCode,
		}
	}

	if sample.PrecipitationMM.GreaterThan(e.thresholds.ReassignMM) && probability >= e.thresholds.ReassignProbability {
		return types.Decision{
			ShouldReassign: true,
			Trigger:        types.TriggerHeavyRain,
			Reason: fmt.Sprintf("precipitation %smm with %d%% probability exceeds the %smm reassignment threshold",
				sample.PrecipitationMM, probability, e.thresholds.ReassignMM),
			WeatherCode: sample.WeatherCode,
		}
	}

	return types.Decision{
		Trigger:     types.TriggerAcceptable,
		Reason:      "forecast conditions are within operating limits",
		WeatherCode: sample.WeatherCode,
	}
}

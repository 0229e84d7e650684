// Package sobriety tracks drinking sessions and the blood alcohol estimate
// behind the checkout safety gate.
package sobriety

import (
	"math"
	"time"

	"github.com/lastcall-app/lastcall-backend/pkg/enums"
)

// LegalLimit is the BAC at and above which alcohol orders are refused.
const LegalLimit = 0.08

const (
	ethanolDensity     = 0.789 // g/ml
	eliminationPerHour = 0.015

	cautionBAC = 0.05
	warningBAC = 0.08
	dangerBAC  = 0.15

	lowOxygenSaturation = 92.0
	highHeartRate       = 130
)

// AlcoholML is the pure ethanol volume in a drink.
func AlcoholML(abvPercent, volumeML float64) float64 {
	if abvPercent <= 0 || volumeML <= 0 {
		return 0
	}
	return abvPercent / 100 * volumeML
}

func distributionRatio(sex enums.BiologicalSex) float64 {
	switch sex {
	case enums.SexMale:
		return 0.68
	case enums.SexFemale:
		return 0.55
	default:
		return 0.615
	}
}

// EstimateBAC applies the Widmark formula with linear elimination since the
// first drink. The result is floored at zero and rounded to 3 decimals.
func EstimateBAC(alcoholML, weightKg float64, sex enums.BiologicalSex, sinceFirstDrink time.Duration) float64 {
	if alcoholML <= 0 || weightKg <= 0 {
		return 0
	}
	grams := alcoholML * ethanolDensity
	bac := grams/(weightKg*1000*distributionRatio(sex))*100 - eliminationPerHour*sinceFirstDrink.Hours()
	if bac <= 0 {
		return 0
	}
	return math.Round(bac*1000) / 1000
}

// IsSafeToOrder reports whether bac is under the legal limit.
func IsSafeToOrder(bac float64) bool {
	return bac < LegalLimit
}

// SeverityFor maps an estimate to its alert tier; ok is false below caution.
func SeverityFor(bac float64) (severity enums.AlertSeverity, ok bool) {
	switch {
	case bac >= dangerBAC:
		return enums.AlertSeverityDanger, true
	case bac >= warningBAC:
		return enums.AlertSeverityWarning, true
	case bac >= cautionBAC:
		return enums.AlertSeverityCaution, true
	}
	return "", false
}

func severityMessage(severity enums.AlertSeverity) string {
	switch severity {
	case enums.AlertSeverityDanger:
		return "Your estimated BAC is dangerously high. Stop drinking and ask staff for help getting home."
	case enums.AlertSeverityWarning:
		return "You are at or over the legal limit. Alcohol orders are paused and you should not drive."
	case enums.AlertSeverityCaution:
		return "Your estimated BAC is rising. Consider water or food before your next drink."
	}
	return ""
}

// ReadingAdvisory returns a message when vitals look worrying.
func ReadingAdvisory(heartRate *int, oxygenSaturation *float64) (string, bool) {
	if oxygenSaturation != nil && *oxygenSaturation < lowOxygenSaturation {
		return "Your oxygen saturation is low. Take a break and get some fresh air.", true
	}
	if heartRate != nil && *heartRate > highHeartRate {
		return "Your heart rate is elevated. Sit down and drink some water.", true
	}
	return "", false
}

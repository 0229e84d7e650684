package checkout

import "github.com/lastcall-app/lastcall-backend/internal/sobriety"

// Decision is the outcome of the alcohol safety gate.
type Decision string

const (
	DecisionRequireBiometricSetup Decision = "require_biometric_setup"
	DecisionStartSession          Decision = "start_session"
	DecisionBlocked               Decision = "blocked"
	DecisionProceed               Decision = "proceed"
)

// Decide checks biometrics, then the session, then the BAC threshold.
func Decide(hasBiometrics, sessionActive bool, bac float64) Decision {
	switch {
	case !hasBiometrics:
		return DecisionRequireBiometricSetup
	case !sessionActive:
		return DecisionStartSession
	case !sobriety.IsSafeToOrder(bac):
		return DecisionBlocked
	default:
		return DecisionProceed
	}
}

package enums

// SessionStatus is the lifecycle of a drinking session.
type SessionStatus string

const (
	SessionStatusActive SessionStatus = "active"
	SessionStatusEnded  SessionStatus = "ended"
)

func (s SessionStatus) String() string { return string(s) }

// SessionEndReason records why a session ended.
type SessionEndReason string

const (
	SessionEndUser    SessionEndReason = "user"
	SessionEndIdle    SessionEndReason = "idle"
	SessionEndExpired SessionEndReason = "expired"
)

// AlertSeverity orders sobriety alerts from informational to critical.
type AlertSeverity string

const (
	AlertSeverityAdvisory AlertSeverity = "advisory"
	AlertSeverityCaution  AlertSeverity = "caution"
	AlertSeverityWarning  AlertSeverity = "warning"
	AlertSeverityDanger   AlertSeverity = "danger"
)

var alertSeverityRank = map[AlertSeverity]int{
	AlertSeverityAdvisory: 0,
	AlertSeverityCaution:  1,
	AlertSeverityWarning:  2,
	AlertSeverityDanger:   3,
}

func (a AlertSeverity) String() string { return string(a) }

// Rank returns the ordering weight, -1 for unknown values.
func (a AlertSeverity) Rank() int {
	if rank, ok := alertSeverityRank[a]; ok {
		return rank
	}
	return -1
}

// BiologicalSex selects the Widmark distribution ratio.
type BiologicalSex string

const (
	SexMale        BiologicalSex = "male"
	SexFemale      BiologicalSex = "female"
	SexUnspecified BiologicalSex = "unspecified"
)

var validSexes = []BiologicalSex{SexMale, SexFemale, SexUnspecified}

func (b BiologicalSex) String() string { return string(b) }

func ParseBiologicalSex(value string) (BiologicalSex, error) {
	if value == "" {
		return SexUnspecified, nil
	}
	return parse(value, validSexes, "biological sex")
}

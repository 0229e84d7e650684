package enums

// ReminderStage identifies which abandoned-cart nudge is being sent.
type ReminderStage string

const (
	ReminderFirst  ReminderStage = "first"
	ReminderSecond ReminderStage = "second"
)

func (r ReminderStage) String() string { return string(r) }

package mailer

// Template names.
const (
	TemplateOTP               = "otp"
	TemplateOrderConfirmation = "order_confirmation"
	TemplateOrderStatus       = "order_status"
	TemplateCartReminder      = "cart_reminder"
	TemplateSobrietyAlert     = "sobriety_alert"
)

type OTPData struct {
	Code             string
	ExpiresInMinutes int
}

type LineItem struct {
	Name      string
	Quantity  int
	LineTotal string
}

type OrderConfirmationData struct {
	OrderNumber string
	Name        string
	VenueName   string
	Items       []LineItem
	Tip         string
	Total       string
	TrackURL    string
}

type OrderStatusData struct {
	OrderNumber string
	Status      string
	TrackURL    string
}

type CartReminderData struct {
	Name      string
	Second    bool
	Items     []LineItem
	Total     string
	ResumeURL string
	OptOutURL string
}

type SobrietyAlertData struct {
	Severity string
	BAC      string
	Message  string
}

package metrics

import "github.com/prometheus/client_golang/prometheus"

// CartMetrics counts abandoned-cart mirroring and reminder outcomes.
type CartMetrics struct {
	syncWrites *prometheus.CounterVec
	reminders  *prometheus.CounterVec
}

func NewCartMetrics(reg prometheus.Registerer) *CartMetrics {
	if reg == nil {
		return &CartMetrics{}
	}
	m := &CartMetrics{
		syncWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "abandoned_cart",
			Name:      "sync_writes_total",
			Help:      "Debounced abandoned-cart writes by operation and result.",
		}, []string{"op", "result"}),
		reminders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "abandoned_cart",
			Name:      "reminders_total",
			Help:      "Reminder send attempts by stage and result.",
		}, []string{"stage", "result"}),
	}
	reg.MustRegister(m.syncWrites, m.reminders)
	return m
}

// IncSyncWrite records a mirror write; op is "upsert", "delete" or "transfer".
func (m *CartMetrics) IncSyncWrite(op string, err error) {
	if m == nil || m.syncWrites == nil {
		return
	}
	m.syncWrites.WithLabelValues(label(op), result(err)).Inc()
}

func (m *CartMetrics) IncReminder(stage string, err error) {
	if m == nil || m.reminders == nil {
		return
	}
	m.reminders.WithLabelValues(label(stage), result(err)).Inc()
}

// SobrietyMetrics counts alerts and blocked checkouts.
type SobrietyMetrics struct {
	alerts  *prometheus.CounterVec
	blocked prometheus.Counter
}

func NewSobrietyMetrics(reg prometheus.Registerer) *SobrietyMetrics {
	if reg == nil {
		return &SobrietyMetrics{}
	}
	m := &SobrietyMetrics{
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sobriety",
			Name:      "alerts_total",
			Help:      "Sobriety alerts raised by severity.",
		}, []string{"severity"}),
		blocked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sobriety",
			Name:      "checkouts_blocked_total",
			Help:      "Alcohol checkouts refused because the BAC estimate was over the limit.",
		}),
	}
	reg.MustRegister(m.alerts, m.blocked)
	return m
}

func (m *SobrietyMetrics) IncAlert(severity string) {
	if m == nil || m.alerts == nil {
		return
	}
	m.alerts.WithLabelValues(label(severity)).Inc()
}

func (m *SobrietyMetrics) IncBlocked() {
	if m == nil || m.blocked == nil {
		return
	}
	m.blocked.Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

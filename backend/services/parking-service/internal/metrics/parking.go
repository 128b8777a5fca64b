package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "parking"

// Parking holds the lifecycle collectors. A nil *Parking records nothing.
type Parking struct {
	arrivals      prometheus.Counter
	exits         prometheus.Counter
	exitsRejected prometheus.Counter
	settlements   prometheus.Counter
	settledAmount prometheus.Counter
	evaluations   *prometheus.CounterVec
	openSessions  prometheus.Gauge
	conflicts     *prometheus.CounterVec
}

// NewParking registers the lifecycle collectors on reg.
func NewParking(reg prometheus.Registerer) *Parking {
	p := &Parking{
		arrivals: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "arrivals_total",
			Help:      "Vehicles admitted into the facility",
		}),
		exits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exits_total",
			Help:      "Visits closed and archived",
		}),
		exitsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exits_rejected_total",
			Help:      "Exit attempts refused because payment is outstanding",
		}),
		settlements: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_settled_total",
			Help:      "Payment records settled",
		}),
		settledAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_settled_amount_total",
			Help:      "Sum of settled payment amounts",
		}),
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "charge_evaluations_total",
			Help:      "Charge evaluations by outcome",
		}, []string{"needs_payment"}),
		openSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_sessions",
			Help:      "Open sessions tracked by this instance since start",
		}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conflicts_total",
			Help:      "Operations rejected with a conflict",
		}, []string{"operation"}),
	}
	reg.MustRegister(
		p.arrivals,
		p.exits,
		p.exitsRejected,
		p.settlements,
		p.settledAmount,
		p.evaluations,
		p.openSessions,
		p.conflicts,
	)
	return p
}

func (p *Parking) Arrived() {
	if p == nil {
		return
	}
	p.arrivals.Inc()
	p.openSessions.Inc()
}

func (p *Parking) Exited() {
	if p == nil {
		return
	}
	p.exits.Inc()
	p.openSessions.Dec()
}

func (p *Parking) ExitRejected() {
	if p == nil {
		return
	}
	p.exitsRejected.Inc()
}

// Settled records one settlement of amount.
func (p *Parking) Settled(amount float64) {
	if p == nil {
		return
	}
	p.settlements.Inc()
	if amount > 0 {
		p.settledAmount.Add(amount)
	}
}

func (p *Parking) Evaluated(needsPayment bool) {
	if p == nil {
		return
	}
	label := "false"
	if needsPayment {
		label = "true"
	}
	p.evaluations.WithLabelValues(label).Inc()
}

func (p *Parking) Conflict(operation string) {
	if p == nil {
		return
	}
	p.conflicts.WithLabelValues(operation).Inc()
}

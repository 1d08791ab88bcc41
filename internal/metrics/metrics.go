package metrics

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github/chapool/go-ledger/internal/ledger"
)

const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
)

// Metrics counts settlement activity. A nil *Metrics records nothing.
type Metrics struct {
	actions       *prometheus.CounterVec
	deferred      *prometheus.CounterVec
	feesForwarded *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(namespace string, reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "actions_total",
			Help:      "Settlement actions by module, action and outcome.",
		}, []string{"module", "action", "outcome", "kind"}),
		deferred: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "deferred_credits_total",
			Help:      "Pushes that failed and were credited to the withdrawal buffer.",
		}, []string{"module"}),
		feesForwarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fees",
			Name:      "forwarded_total",
			Help:      "Fees forwarded to the sink, by whether the forward was deferred.",
		}, []string{"module", "deferred"}),
	}

	for _, c := range []prometheus.Collector{m.actions, m.deferred, m.feesForwarded} {
		if err := reg.Register(c); err != nil {
			return nil, errors.Wrap(err, "failed to register metrics collector")
		}
	}

	return m, nil
}

// ObserveAction counts one finished action. Rejections are labelled with the
// error kind.
func (m *Metrics) ObserveAction(module string, action string, err error) {
	if m == nil {
		return
	}
	outcome, kind := OutcomeOK, ""
	if err != nil {
		outcome, kind = OutcomeRejected, string(ledger.KindOf(err))
	}
	m.actions.WithLabelValues(module, action, outcome, kind).Inc()
}

func (m *Metrics) ObserveDeferred(module string) {
	if m == nil {
		return
	}
	m.deferred.WithLabelValues(module).Inc()
}

func (m *Metrics) ObserveFeeForwarded(module string, deferred bool) {
	if m == nil {
		return
	}
	label := "false"
	if deferred {
		label = "true"
	}
	m.feesForwarded.WithLabelValues(module, label).Inc()
}

// Action returns the counter for one label set, for inspection in tests.
func (m *Metrics) Action(module string, action string, outcome string, kind ledger.ErrorKind) prometheus.Counter {
	return m.actions.WithLabelValues(module, action, outcome, string(kind))
}

func (m *Metrics) Deferred(module string) prometheus.Counter {
	return m.deferred.WithLabelValues(module)
}

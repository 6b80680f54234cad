package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics exposes risk and anonymization engine metrics.
// A nil *EngineMetrics is valid and records nothing.
type EngineMetrics struct {
	gatherer prometheus.Gatherer

	DatasetsGenerated  prometheus.Counter
	DatasetCacheHits   prometheus.Counter
	UsersScored        prometheus.Counter
	Anonymizations     *prometheus.CounterVec
	UtilityLoss        *prometheus.HistogramVec
	OperationDuration  *prometheus.HistogramVec
	ValidationFailures *prometheus.CounterVec
}

// NewEngineMetrics registers engine metrics against the provided registerer.
func NewEngineMetrics(reg prometheus.Registerer) (*EngineMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	generated, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "privacy_datasets_generated_total",
		Help: "Synthetic datasets drawn by the trajectory synthesizer.",
	}), "privacy_datasets_generated_total")
	if err != nil {
		return nil, err
	}

	hits, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "privacy_dataset_cache_hits_total",
		Help: "Generate requests served from the dataset cache.",
	}), "privacy_dataset_cache_hits_total")
	if err != nil {
		return nil, err
	}

	scored, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "privacy_users_scored_total",
		Help: "User profiles scored for re-identification risk.",
	}), "privacy_users_scored_total")
	if err != nil {
		return nil, err
	}

	anonymizations, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "privacy_anonymizations_total",
		Help: "Anonymization runs by technique.",
	}, []string{"technique"}), "privacy_anonymizations_total")
	if err != nil {
		return nil, err
	}

	utilityLoss, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "privacy_utility_loss_percent",
		Help:    "Utility loss reported by anonymization runs.",
		Buckets: []float64{1, 5, 10, 25, 50, 75, 90, 100},
	}, []string{"technique"}), "privacy_utility_loss_percent")
	if err != nil {
		return nil, err
	}

	duration, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "privacy_operation_duration_seconds",
		Help:    "Duration of engine operations.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"operation"}), "privacy_operation_duration_seconds")
	if err != nil {
		return nil, err
	}

	failures, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "privacy_validation_failures_total",
		Help: "Rejected requests by offending field.",
	}, []string{"field"}), "privacy_validation_failures_total")
	if err != nil {
		return nil, err
	}

	return &EngineMetrics{
		gatherer:           gatherer,
		DatasetsGenerated:  generated,
		DatasetCacheHits:   hits,
		UsersScored:        scored,
		Anonymizations:     anonymizations,
		UtilityLoss:        utilityLoss,
		OperationDuration:  duration,
		ValidationFailures: failures,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the metrics.
func (m *EngineMetrics) Gatherer() prometheus.Gatherer {
	if m == nil {
		return nil
	}
	return m.gatherer
}

func (m *EngineMetrics) IncDatasetsGenerated() {
	if m == nil || m.DatasetsGenerated == nil {
		return
	}
	m.DatasetsGenerated.Inc()
}

func (m *EngineMetrics) IncCacheHit() {
	if m == nil || m.DatasetCacheHits == nil {
		return
	}
	m.DatasetCacheHits.Inc()
}

func (m *EngineMetrics) AddUsersScored(n int) {
	if m == nil || m.UsersScored == nil {
		return
	}
	m.UsersScored.Add(float64(n))
}

// ObserveAnonymization records one run and its utility loss
func (m *EngineMetrics) ObserveAnonymization(technique string, utilityLoss float64) {
	if m == nil || m.Anonymizations == nil {
		return
	}
	m.Anonymizations.WithLabelValues(technique).Inc()
	m.UtilityLoss.WithLabelValues(technique).Observe(utilityLoss)
}

func (m *EngineMetrics) ObserveOperation(operation string, d time.Duration) {
	if m == nil || m.OperationDuration == nil {
		return
	}
	m.OperationDuration.WithLabelValues(operation).Observe(d.Seconds())
}

func (m *EngineMetrics) IncValidationFailure(field string) {
	if m == nil || m.ValidationFailures == nil {
		return
	}
	if field == "" {
		field = "unknown"
	}
	m.ValidationFailures.WithLabelValues(field).Inc()
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "garage",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	statusTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "garage",
			Name:      "status_transitions_total",
			Help:      "Accepted service request transitions by target status.",
		},
		[]string{"status"},
	)

	syncTasks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "garage",
			Name:      "sync_tasks_total",
			Help:      "Journal sync task outcomes.",
		},
		[]string{"result"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, statusTransitions, syncTasks)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// IncTransition counts one accepted transition into status.
func IncTransition(status string) {
	statusTransitions.WithLabelValues(status).Inc()
}

// IncSyncTask counts one processed sync task by result.
func IncSyncTask(result string) {
	syncTasks.WithLabelValues(result).Inc()
}

// TransitionsTotal returns the transition counter for one target status.
func TransitionsTotal(status string) prometheus.Counter {
	return statusTransitions.WithLabelValues(status)
}

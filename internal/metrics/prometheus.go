package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus series:
//
//	fundingwatch_cycles_total
//	fundingwatch_fetch_errors_total{exchange}
//	fundingwatch_records_total{exchange}
//	fundingwatch_digests_total{exchange}
//	fundingwatch_deliveries_total{result}
//	go_* and process_* runtime metrics
var (
	once     sync.Once
	registry *prometheus.Registry

	cyclesTotal      prometheus.Counter
	fetchErrorsTotal *prometheus.CounterVec
	recordsTotal     *prometheus.CounterVec
	digestsTotal     *prometheus.CounterVec
	deliveriesTotal  *prometheus.CounterVec
)

// Init registers the collectors on a dedicated registry. Safe to call more
// than once.
func Init() {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		cyclesTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fundingwatch_cycles_total",
			Help: "Number of funding check cycles run",
		})
		fetchErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fundingwatch_fetch_errors_total",
			Help: "Number of exchange fetches that failed as a whole",
		}, []string{"exchange"})
		recordsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fundingwatch_records_total",
			Help: "Number of funding records fetched",
		}, []string{"exchange"})
		digestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fundingwatch_digests_total",
			Help: "Number of digests produced",
		}, []string{"exchange"})
		deliveriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fundingwatch_deliveries_total",
			Help: "Number of digest deliveries by result",
		}, []string{"result"})

		registry.MustRegister(cyclesTotal, fetchErrorsTotal, recordsTotal, digestsTotal, deliveriesTotal)
		registry.MustRegister(collectors.NewGoCollector())
		registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	Init()
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
